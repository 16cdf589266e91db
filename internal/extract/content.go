package extract

import (
	"strings"

	"github.com/google/uuid"

	"github.com/pmcharvest/pmcharvest/internal/domain"
	"github.com/pmcharvest/pmcharvest/internal/jats"
)

// Permissions extracts the permissions block. The returned map carries
// copyright_statement, copyright_year, license_type, and license_text
// when present; the statement and license type are also surfaced as
// top-level artifact keys by the assembler.
func Permissions(article *jats.Node) map[string]string {
	out := map[string]string{}
	perm := article.Find("permissions")
	if perm == nil {
		return out
	}
	if cs := perm.Child("copyright-statement"); cs != nil {
		if v := jats.RenderText(cs, nil); v != "" {
			out["copyright_statement"] = v
		}
	}
	if cy := perm.Child("copyright-year"); cy != nil {
		if v := cy.CleanText(); v != "" {
			out["copyright_year"] = v
		}
	}
	if lic := perm.Child("license"); lic != nil {
		if t := licenseType(lic); t != "" {
			out["license_type"] = t
		}
		var paras []string
		for _, p := range lic.FindAll("license-p") {
			paras = append(paras, jats.RenderText(p, nil))
		}
		if text := jats.JoinNonEmpty(paras, "\n"); text != "" {
			out["license_text"] = text
		}
	}
	return out
}

// licenseType reads the license-type attribute, falling back to a slug
// derived from the first embedded license URL.
func licenseType(lic *jats.Node) string {
	if t := lic.Attr("license-type"); t != "" {
		return t
	}
	href := lic.Attr("href")
	if href == "" {
		if link := lic.Find("ext-link"); link != nil {
			href = link.Attr("href")
		}
	}
	if href == "" {
		return ""
	}
	lower := strings.ToLower(href)
	if strings.Contains(lower, "creativecommons.org") {
		for _, slug := range []string{"by-nc-nd", "by-nc-sa", "by-nd", "by-sa", "by-nc", "by", "zero", "publicdomain"} {
			if strings.Contains(lower, "/"+slug+"/") || strings.HasSuffix(lower, "/"+slug) {
				if slug == "zero" || slug == "publicdomain" {
					return "cc0"
				}
				return "cc-" + slug
			}
		}
		return "cc"
	}
	return "custom"
}

// Funding lists the funding sources named in award groups, deduplicated.
func Funding(article *jats.Node) []string {
	out := []string{}
	seen := map[string]bool{}
	fg := article.Find("funding-group")
	if fg == nil {
		return out
	}
	for _, ag := range fg.FindAll("award-group") {
		for _, fs := range ag.FindAll("funding-source") {
			text := ""
			if inst := fs.Find("institution"); inst != nil {
				text = inst.CleanText()
			} else {
				text = jats.RenderText(fs, nil)
			}
			if text == "" || seen[text] {
				continue
			}
			seen[text] = true
			out = append(out, text)
		}
	}
	return out
}

// Ethics collects the disclosure statements scattered across JATS back
// and front matter: conflicts of interest, ethics approval, trial
// registration, data availability, consent, and author notes.
func Ethics(article *jats.Node) map[string]string {
	out := map[string]string{}
	set := func(key, text string) {
		if text == "" {
			return
		}
		if old, ok := out[key]; ok {
			out[key] = old + "\n" + text
			return
		}
		out[key] = text
	}
	for _, fn := range article.FindAll("fn") {
		switch fn.Attr("fn-type") {
		case "conflict", "COI-statement", "coi-statement":
			set("conflict_of_interest", jats.RenderText(fn, nil))
		}
	}
	for _, n := range article.FindAll("notes") {
		switch n.Attr("notes-type") {
		case "conflict-of-interest", "COI-statement":
			set("conflict_of_interest", jats.RenderText(n, nil))
		case "data-availability":
			set("data_availability", jats.RenderText(n, nil))
		}
	}
	for _, sec := range article.FindAll("sec") {
		switch sec.Attr("sec-type") {
		case "ethics-statement", "ethics-approval":
			set("ethics_statement", jats.RenderText(sec, nil))
		case "data-availability":
			set("data_availability", jats.RenderText(sec, nil))
		case "patient-consent", "consent":
			set("patient_consent", jats.RenderText(sec, nil))
		}
	}
	if ctn := article.Find("clinical-trial-number"); ctn != nil {
		set("clinical_trial_number", ctn.CleanText())
	}
	if an := article.Find("author-notes"); an != nil {
		set("author_notes", jats.RenderText(an, nil))
	}
	return out
}

// Acknowledgements returns the text of each ack block.
func Acknowledgements(article *jats.Node) []string {
	out := []string{}
	for _, ack := range article.FindAll("ack") {
		if text := jats.RenderText(ack, nil); text != "" {
			out = append(out, text)
		}
	}
	return out
}

// Footnotes returns back-matter footnotes, paragraphs within one note
// joined with " - ".
func Footnotes(article *jats.Node) []string {
	out := []string{}
	back := article.Child("back")
	if back == nil {
		return out
	}
	for _, fg := range back.FindAll("fn-group") {
		for _, fn := range fg.ChildrenNamed("fn") {
			var parts []string
			for _, p := range fn.ChildrenNamed("p") {
				parts = append(parts, jats.RenderText(p, nil))
			}
			if text := jats.JoinNonEmpty(parts, " - "); text != "" {
				out = append(out, text)
			}
		}
	}
	return out
}

// Notes returns top-level back-matter notes.
func Notes(article *jats.Node) []string {
	out := []string{}
	back := article.Child("back")
	if back == nil {
		return out
	}
	for _, n := range back.ChildrenNamed("notes") {
		if text := jats.RenderText(n, nil); text != "" {
			out = append(out, text)
		}
	}
	return out
}

// Appendices returns app-group appendices with their titles.
func Appendices(article *jats.Node) []domain.Appendix {
	out := []domain.Appendix{}
	for _, app := range article.FindAll("app") {
		a := domain.Appendix{}
		if t := app.Child("title"); t != nil {
			a.Title = jats.RenderText(t, nil)
		}
		cp := app.Clone()
		var kept []*jats.Node
		for _, c := range cp.Children {
			if c.Name == "title" || c.Name == "label" {
				continue
			}
			kept = append(kept, c)
		}
		cp.Children = kept
		a.Text = jats.RenderText(cp, nil)
		if a.Title != "" || a.Text != "" {
			out = append(out, a)
		}
	}
	return out
}

// Glossary returns def-list entries from the article glossary.
func Glossary(article *jats.Node) []domain.GlossaryEntry {
	out := []domain.GlossaryEntry{}
	gl := article.Find("glossary")
	if gl == nil {
		return out
	}
	for _, item := range gl.FindAll("def-item") {
		e := domain.GlossaryEntry{}
		if t := item.Child("term"); t != nil {
			e.Term = jats.RenderText(t, nil)
		}
		if d := item.Child("def"); d != nil {
			e.Definition = jats.RenderText(d, nil)
		}
		if e.Term != "" || e.Definition != "" {
			out = append(out, e)
		}
	}
	return out
}

// VersionHistory lists article-version entries with assembled dates.
func VersionHistory(article *jats.Node) []domain.VersionEntry {
	out := []domain.VersionEntry{}
	for _, av := range article.FindAll("article-version") {
		v := domain.VersionEntry{Version: av.CleanText()}
		if v.Version == "" {
			v.Version = av.Attr("article-version-type")
		}
		if d := av.Child("date"); d != nil {
			v.Date = assembleDate(d)
		}
		if v.Version != "" || v.Date != "" {
			out = append(out, v)
		}
	}
	// Newer JATS records versioned dates as pub-history events.
	if ph := article.Find("pub-history"); ph != nil {
		for _, ev := range ph.ChildrenNamed("event") {
			v := domain.VersionEntry{Version: ev.Attr("event-type")}
			if desc := ev.Child("event-desc"); desc != nil {
				if text := jats.RenderText(desc, nil); text != "" {
					v.Version = text
				}
			}
			if d := ev.Child("date"); d != nil {
				v.Date = assembleDate(d)
			}
			if v.Version != "" || v.Date != "" {
				out = append(out, v)
			}
		}
	}
	return out
}

// Equations walks the article in document order collecting display and
// inline formulas. MathML is retained verbatim; a TeX annotation is
// extracted when present.
func Equations(article *jats.Node) []domain.Equation {
	out := []domain.Equation{}
	var walk func(n *jats.Node)
	walk = func(n *jats.Node) {
		for _, c := range n.Children {
			switch c.Name {
			case "disp-formula", "inline-formula":
				if eq, ok := formulaEquation(c); ok {
					out = append(out, eq)
				}
			case "math":
				out = append(out, domain.Equation{ID: c.Attr("id"), MathML: c.OuterXML()})
			default:
				walk(c)
			}
		}
	}
	walk(article)
	return out
}

func formulaEquation(f *jats.Node) (domain.Equation, bool) {
	eq := domain.Equation{ID: f.Attr("id")}
	if m := f.Find("math"); m != nil {
		eq.MathML = m.OuterXML()
		if eq.ID == "" {
			eq.ID = m.Attr("id")
		}
	}
	if tm := f.Find("tex-math"); tm != nil {
		eq.Tex = strings.TrimSpace(tm.DeepText())
	}
	if eq.MathML == "" && eq.Tex == "" {
		return eq, false
	}
	return eq, true
}

// Supplementary lists supplementary-material and media entries with
// their labels, captions, and file links.
func Supplementary(article *jats.Node) []domain.Supplement {
	out := []domain.Supplement{}
	nodes := article.FindAll("supplementary-material")
	nodes = append(nodes, article.FindAll("media")...)
	seen := map[*jats.Node]bool{}
	for _, n := range nodes {
		if seen[n] {
			continue
		}
		seen[n] = true
		s := domain.Supplement{}
		if l := n.Child("label"); l != nil {
			s.Label = l.CleanText()
		}
		if c := n.Child("caption"); c != nil {
			s.Caption = jats.RenderText(c, nil)
		}
		s.Href = n.Attr("href")
		if s.Href == "" {
			if link := n.Find("ext-link"); link != nil {
				s.Href = link.Attr("href")
			} else if g := n.Find("graphic"); g != nil {
				s.Href = g.Attr("href")
			}
		}
		if s.Label != "" || s.Caption != "" || s.Href != "" {
			out = append(out, s)
		}
	}
	return out
}

// CustomMeta maps meta-name to meta-value across custom-meta groups.
// Entries without a usable name get a deterministic content-derived key
// so repeated runs over the same bytes serialize identically.
func CustomMeta(article *jats.Node) map[string]string {
	out := map[string]string{}
	for _, cm := range article.FindAll("custom-meta") {
		name, value := "", ""
		if n := cm.Child("meta-name"); n != nil {
			name = n.CleanText()
		}
		if v := cm.Child("meta-value"); v != nil {
			value = jats.RenderText(v, nil)
		}
		if value == "" {
			continue
		}
		if name == "" {
			name = "custom-" + uuid.NewSHA1(uuid.NameSpaceOID, []byte(value)).String()
		}
		out[name] = value
	}
	return out
}
