package extract

import (
	"strings"

	"github.com/pmcharvest/pmcharvest/internal/domain"
	"github.com/pmcharvest/pmcharvest/internal/jats"
)

// Contributors splits the credited people into authors and everyone
// else, preserving declared order. A contributor with no declared type
// defaults to Author.
func Contributors(article *jats.Node) (authors, others []domain.Contributor) {
	authors = []domain.Contributor{}
	others = []domain.Contributor{}
	meta := ArticleMeta(article)
	if meta == nil {
		return authors, others
	}
	affIndex := affiliationIndex(meta)
	for _, cg := range meta.ChildrenNamed("contrib-group") {
		for _, cn := range cg.ChildrenNamed("contrib") {
			c := parseContrib(cn, cg, affIndex)
			if c.Type == "Author" {
				authors = append(authors, c)
			} else {
				others = append(others, c)
			}
		}
	}
	return authors, others
}

func parseContrib(cn, group *jats.Node, affIndex map[string]string) domain.Contributor {
	c := domain.Contributor{
		Type:         contribType(cn.Attr("contrib-type")),
		Affiliations: []string{},
	}
	if name := cn.Child("name"); name != nil {
		if g := name.Child("given-names"); g != nil {
			c.FirstName = g.CleanText()
		}
		if s := name.Child("surname"); s != nil {
			c.LastName = s.CleanText()
		}
	} else if sn := cn.Child("string-name"); sn != nil {
		c.LastName = sn.CleanText()
	} else if collab := cn.Child("collab"); collab != nil {
		c.LastName = jats.RenderText(collab, nil)
	}
	if email := cn.Find("email"); email != nil {
		c.Email = email.CleanText()
	}
	if addr := cn.Child("address"); addr != nil {
		c.Address = addr.CleanText()
		if c.Email == "" {
			if email := addr.Child("email"); email != nil {
				c.Email = email.CleanText()
			}
		}
	}

	// Affiliations: referenced by rid, inline under the contributor, or
	// declared once for the whole group.
	for _, xr := range cn.ChildrenNamed("xref") {
		if xr.Attr("ref-type") != "aff" {
			continue
		}
		for _, rid := range strings.Fields(xr.Attr("rid")) {
			if text, ok := affIndex[rid]; ok && text != "" {
				c.Affiliations = append(c.Affiliations, text)
			}
		}
	}
	for _, aff := range cn.ChildrenNamed("aff") {
		if text := affiliationText(aff); text != "" {
			c.Affiliations = append(c.Affiliations, text)
		}
	}
	if len(c.Affiliations) == 0 && group != nil {
		for _, aff := range group.ChildrenNamed("aff") {
			if text := affiliationText(aff); text != "" {
				c.Affiliations = append(c.Affiliations, text)
			}
		}
	}

	extra := map[string]string{}
	for _, cid := range cn.ChildrenNamed("contrib-id") {
		typ := cid.Attr("contrib-id-type")
		if v := cid.CleanText(); v != "" && (typ == "orcid" || typ == "isni") {
			extra[typ] = v
		}
	}
	if cn.Attr("equal-contrib") == "yes" {
		extra["equal_contrib"] = "yes"
	}
	if deg := cn.Child("degrees"); deg != nil {
		if v := deg.CleanText(); v != "" {
			extra["degrees"] = v
		}
	}
	if cn.Attr("corresp") == "yes" {
		extra["corresponding"] = "yes"
	}
	if len(extra) > 0 {
		c.Extra = extra
	}
	return c
}

// affiliationIndex maps aff ids to their rendered text, covering affs
// declared inside contrib groups as well as loose ones in article-meta.
func affiliationIndex(meta *jats.Node) map[string]string {
	out := map[string]string{}
	for _, aff := range meta.FindAll("aff") {
		id := aff.Attr("id")
		if id == "" {
			continue
		}
		out[id] = affiliationText(aff)
	}
	return out
}

// affiliationText prefers the institution elements and falls back to the
// whole aff body minus its label.
func affiliationText(aff *jats.Node) string {
	var insts []string
	for _, inst := range aff.FindAll("institution") {
		if v := inst.CleanText(); v != "" {
			insts = append(insts, v)
		}
	}
	if len(insts) > 0 {
		return strings.Join(insts, ", ")
	}
	cp := aff.Clone()
	var kept []*jats.Node
	for _, c := range cp.Children {
		if c.Name == "label" || c.Name == "sup" {
			continue
		}
		kept = append(kept, c)
	}
	cp.Children = kept
	return jats.RenderText(cp, nil)
}

// contribType capitalizes the declared contributor type, defaulting to
// Author when absent.
func contribType(t string) string {
	t = strings.TrimSpace(t)
	if t == "" {
		return "Author"
	}
	return strings.ToUpper(t[:1]) + t[1:]
}
