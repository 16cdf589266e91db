package extract

import (
	"strings"

	"github.com/pmcharvest/pmcharvest/internal/domain"
	"github.com/pmcharvest/pmcharvest/internal/jats"
)

// Citations parses every reference-list entry to best-effort structured
// form. The verbatim raw string is always retained; a citation with no
// recognizable structure carries only that.
func Citations(article *jats.Node) []domain.Citation {
	out := []domain.Citation{}
	refList := article.Find("ref-list")
	if refList == nil {
		return out
	}
	for _, ref := range refList.FindAll("ref") {
		out = append(out, parseRef(ref))
	}
	return out
}

func parseRef(ref *jats.Node) domain.Citation {
	c := domain.Citation{ID: ref.Attr("id"), Authors: []string{}}

	src := ref.Child("element-citation")
	if src == nil {
		src = ref.Child("mixed-citation")
	}
	if src == nil {
		src = ref.Child("citation")
	}
	if src == nil {
		src = ref
	}
	c.Raw = rawCitation(src)

	c.Authors = citationAuthors(src)
	if t := src.Find("article-title"); t != nil {
		c.Title = jats.RenderText(t, nil)
	} else if t := src.Find("chapter-title"); t != nil {
		c.Title = jats.RenderText(t, nil)
	}
	if s := src.Find("source"); s != nil {
		c.Source = jats.RenderText(s, nil)
	}
	if y := src.Find("year"); y != nil {
		c.Year = y.CleanText()
	}
	if v := src.Find("volume"); v != nil {
		c.Volume = v.CleanText()
	}
	c.Pages = citationPages(src)
	for _, pid := range src.FindAll("pub-id") {
		switch pid.Attr("pub-id-type") {
		case "doi":
			c.DOI = pid.CleanText()
		case "pmid":
			c.PMID = pid.CleanText()
		case "pmcid", "pmc":
			c.PMCID = pid.CleanText()
		}
	}
	return c
}

// rawCitation renders the reference body with its label stripped, so raw
// holds the citation text rather than "1." style numbering.
func rawCitation(src *jats.Node) string {
	cp := src.Clone()
	var kept []*jats.Node
	for _, c := range cp.Children {
		if c.Name == "label" {
			continue
		}
		kept = append(kept, c)
	}
	cp.Children = kept
	return jats.NormalizeSpace(cp.DeepText())
}

// citationAuthors prefers the author person-group; failing that, every
// name in the reference counts.
func citationAuthors(src *jats.Node) []string {
	out := []string{}
	var scope *jats.Node
	for _, pg := range src.FindAll("person-group") {
		t := pg.Attr("person-group-type")
		if t == "" || t == "author" {
			scope = pg
			break
		}
	}
	if scope == nil {
		scope = src
	}
	for _, name := range scope.FindAll("name") {
		given, surname := "", ""
		if g := name.Child("given-names"); g != nil {
			given = g.CleanText()
		}
		if s := name.Child("surname"); s != nil {
			surname = s.CleanText()
		}
		if full := strings.TrimSpace(given + " " + surname); full != "" {
			out = append(out, full)
		}
	}
	for _, collab := range scope.FindAll("collab") {
		if v := jats.RenderText(collab, nil); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func citationPages(src *jats.Node) string {
	fpage, lpage := "", ""
	if f := src.Find("fpage"); f != nil {
		fpage = f.CleanText()
	}
	if l := src.Find("lpage"); l != nil {
		lpage = l.CleanText()
	}
	switch {
	case fpage != "" && lpage != "":
		return fpage + "-" + lpage
	case fpage != "":
		return fpage
	}
	if pr := src.Find("page-range"); pr != nil {
		return pr.CleanText()
	}
	return ""
}
