package extract

import (
	"strconv"
	"strings"

	"github.com/pmcharvest/pmcharvest/internal/domain"
	"github.com/pmcharvest/pmcharvest/internal/jats"
)

// ArticleMeta returns the article-meta element, the home of most
// front-matter extraction.
func ArticleMeta(article *jats.Node) *jats.Node {
	return article.Find("article-meta")
}

// Title returns the main article title.
func Title(article *jats.Node) string {
	if tg := article.Find("title-group"); tg != nil {
		if t := tg.Child("article-title"); t != nil {
			return jats.RenderText(t, nil)
		}
	}
	if t := article.Find("article-title"); t != nil {
		return jats.RenderText(t, nil)
	}
	return ""
}

// TranslatedTitles maps language codes to translated titles.
func TranslatedTitles(article *jats.Node) map[string]string {
	out := map[string]string{}
	for _, tg := range article.FindAll("trans-title-group") {
		lang := tg.Attr("lang")
		t := tg.Find("trans-title")
		if t == nil {
			continue
		}
		if lang == "" {
			lang = t.Attr("lang")
		}
		if lang == "" {
			lang = "trans"
		}
		if text := jats.RenderText(t, nil); text != "" {
			out[lang] = text
		}
	}
	return out
}

// ArticleIDs maps pub-id-type to value for every article-id, and always
// records the canonical "pmcid" key with its PMC prefix.
func ArticleIDs(meta *jats.Node, pmcid string) map[string]string {
	out := map[string]string{}
	if meta != nil {
		for _, id := range meta.ChildrenNamed("article-id") {
			typ := id.Attr("pub-id-type")
			if typ == "" {
				typ = "other"
			}
			if v := id.CleanText(); v != "" {
				out[typ] = v
			}
		}
	}
	if pmcid != "" {
		out["pmcid"] = "PMC" + pmcid
	} else if v, ok := out["pmc"]; ok {
		if strings.HasPrefix(strings.ToUpper(v), "PMC") {
			out["pmcid"] = "PMC" + v[3:]
		} else {
			out["pmcid"] = "PMC" + v
		}
	}
	return out
}

// JournalTitle returns the journal's title from journal-meta.
func JournalTitle(article *jats.Node) string {
	jm := article.Find("journal-meta")
	if jm == nil {
		return ""
	}
	if t := jm.Find("journal-title"); t != nil {
		return t.CleanText()
	}
	return ""
}

// JournalIDs maps journal-id-type to value. ISSNs join the map under
// "issn-<pub-type>" keys since they identify the journal as well.
func JournalIDs(article *jats.Node) map[string]string {
	out := map[string]string{}
	jm := article.Find("journal-meta")
	if jm == nil {
		return out
	}
	for _, id := range jm.ChildrenNamed("journal-id") {
		typ := id.Attr("journal-id-type")
		if typ == "" {
			typ = "journal-id"
		}
		if v := id.CleanText(); v != "" {
			out[typ] = v
		}
	}
	for _, issn := range jm.FindAll("issn") {
		key := "issn"
		if pt := issn.Attr("pub-type"); pt != "" {
			key = "issn-" + pt
		} else if pt := issn.Attr("publication-format"); pt != "" {
			key = "issn-" + pt
		}
		if v := issn.CleanText(); v != "" {
			out[key] = v
		}
	}
	return out
}

// Publisher returns the publisher name and location.
func Publisher(article *jats.Node) (name, location string) {
	jm := article.Find("journal-meta")
	if jm == nil {
		return "", ""
	}
	pub := jm.Find("publisher")
	if pub == nil {
		return "", ""
	}
	if n := pub.Child("publisher-name"); n != nil {
		name = n.CleanText()
	}
	if l := pub.Child("publisher-loc"); l != nil {
		location = l.CleanText()
	}
	return name, location
}

// IssueInfo returns volume, issue, page range, and elocation-id.
func IssueInfo(meta *jats.Node) (volume, issue, firstPage, lastPage, elocation string) {
	if meta == nil {
		return
	}
	if v := meta.Child("volume"); v != nil {
		volume = v.CleanText()
	}
	if i := meta.Child("issue"); i != nil {
		issue = i.CleanText()
	}
	if f := meta.Child("fpage"); f != nil {
		firstPage = f.CleanText()
	}
	if l := meta.Child("lpage"); l != nil {
		lastPage = l.CleanText()
	}
	if e := meta.Child("elocation-id"); e != nil {
		elocation = e.CleanText()
	}
	return
}

// PublishedDates keys each pub-date by its pub-type (or date-type)
// attribute and assembles an ISO date, defaulting missing month and day
// to 01.
func PublishedDates(meta *jats.Node) map[string]string {
	out := map[string]string{}
	if meta == nil {
		return out
	}
	for _, pd := range meta.ChildrenNamed("pub-date") {
		key := pd.Attr("pub-type")
		if key == "" {
			key = pd.Attr("date-type")
		}
		if key == "" {
			key = "pub"
		}
		if date := assembleDate(pd); date != "" {
			out[key] = date
		}
	}
	return out
}

// HistoryDates keys each history date (received, accepted, revised, ...)
// by its date-type attribute.
func HistoryDates(meta *jats.Node) map[string]string {
	out := map[string]string{}
	if meta == nil {
		return out
	}
	hist := meta.Child("history")
	if hist == nil {
		return out
	}
	for _, d := range hist.ChildrenNamed("date") {
		key := d.Attr("date-type")
		if key == "" {
			continue
		}
		if date := assembleDate(d); date != "" {
			out[key] = date
		}
	}
	return out
}

// assembleDate builds YYYY-MM-DD from year/month/day children. Year is
// required; month and day default to 01.
func assembleDate(n *jats.Node) string {
	year := 0
	if y := n.Child("year"); y != nil {
		year, _ = strconv.Atoi(y.CleanText())
	}
	if year == 0 {
		return ""
	}
	month, day := 1, 1
	if m := n.Child("month"); m != nil {
		if v, err := strconv.Atoi(m.CleanText()); err == nil && v >= 1 && v <= 12 {
			month = v
		}
	}
	if d := n.Child("day"); d != nil {
		if v, err := strconv.Atoi(d.CleanText()); err == nil && v >= 1 && v <= 31 {
			day = v
		}
	}
	return pad4(year) + "-" + pad2(month) + "-" + pad2(day)
}

func pad4(v int) string {
	s := strconv.Itoa(v)
	for len(s) < 4 {
		s = "0" + s
	}
	return s
}

func pad2(v int) string {
	if v < 10 {
		return "0" + strconv.Itoa(v)
	}
	return strconv.Itoa(v)
}

// Keywords gathers kwd-group entries, deduplicated preserving first-seen
// order, empties skipped.
func Keywords(article *jats.Node) []string {
	out := []string{}
	seen := map[string]bool{}
	for _, kg := range article.FindAll("kwd-group") {
		for _, kw := range kg.FindAll("kwd") {
			text := jats.RenderText(kw, nil)
			if text == "" || seen[text] {
				continue
			}
			seen[text] = true
			out = append(out, text)
		}
	}
	return out
}

// ArticleTypes returns the heading subjects; ArticleCategories returns
// subjects from every other subject group.
func ArticleTypes(article *jats.Node) []string {
	return subjects(article, true)
}

func ArticleCategories(article *jats.Node) []string {
	return subjects(article, false)
}

func subjects(article *jats.Node, heading bool) []string {
	out := []string{}
	seen := map[string]bool{}
	meta := ArticleMeta(article)
	if meta == nil {
		return out
	}
	cats := meta.Child("article-categories")
	if cats == nil {
		return out
	}
	for _, sg := range cats.FindAll("subj-group") {
		isHeading := sg.Attr("subj-group-type") == "heading"
		if isHeading != heading {
			continue
		}
		for _, s := range sg.ChildrenNamed("subject") {
			text := s.CleanText()
			if text == "" || seen[text] {
				continue
			}
			seen[text] = true
			out = append(out, text)
		}
	}
	return out
}

// Counts reads the counts block (fig-count, table-count, page-count, ...)
// into a map keyed by the element name with dashes as underscores.
func Counts(meta *jats.Node) map[string]int {
	out := map[string]int{}
	if meta == nil {
		return out
	}
	counts := meta.Child("counts")
	if counts == nil {
		return out
	}
	for _, c := range counts.Children {
		v, err := strconv.Atoi(c.Attr("count"))
		if err != nil {
			continue
		}
		out[strings.ReplaceAll(c.Name, "-", "_")] = v
	}
	return out
}

// SelfURIs lists the article's self-uri links.
func SelfURIs(meta *jats.Node) []domain.SelfURI {
	out := []domain.SelfURI{}
	if meta == nil {
		return out
	}
	for _, su := range meta.ChildrenNamed("self-uri") {
		out = append(out, domain.SelfURI{
			ContentType: su.Attr("content-type"),
			Href:        su.Attr("href"),
		})
	}
	return out
}

// RelatedArticles lists related-article links with their identifiers.
func RelatedArticles(meta *jats.Node) []domain.RelatedArticle {
	out := []domain.RelatedArticle{}
	if meta == nil {
		return out
	}
	for _, ra := range meta.FindAll("related-article") {
		rel := domain.RelatedArticle{
			Type: ra.Attr("related-article-type"),
			Href: ra.Attr("href"),
		}
		switch ra.Attr("ext-link-type") {
		case "doi":
			rel.DOI = ra.Attr("href")
		case "pmid", "pubmed":
			rel.PMID = ra.Attr("href")
		}
		out = append(out, rel)
	}
	return out
}

// Conference returns conference metadata when the article is part of
// proceedings.
func Conference(meta *jats.Node) map[string]string {
	out := map[string]string{}
	if meta == nil {
		return out
	}
	conf := meta.Find("conference")
	if conf == nil {
		return out
	}
	fields := map[string]string{
		"conf-name":    "name",
		"conf-loc":     "location",
		"conf-date":    "date",
		"conf-sponsor": "sponsor",
	}
	for _, c := range conf.Children {
		key, ok := fields[c.Name]
		if !ok {
			continue
		}
		if v := c.CleanText(); v != "" {
			out[key] = v
		}
	}
	return out
}
