package jats

import "strings"

// stylingTags are presentational wrappers whose contents are spliced into
// the surrounding text.
var stylingTags = map[string]bool{
	"italic": true, "i": true,
	"bold": true, "b": true,
	"underline": true, "u": true,
}

// crossRefTags are inline reference markers deleted from reading text.
// Their tails survive so the surrounding sentence stays grammatical.
var crossRefTags = map[string]bool{
	"xref":   true,
	"target": true,
}

// embeddedRefTags are full entities that sometimes sit inside flowing
// text. They are registered in the RefMap and removed; their dedicated
// extractors pick them up from the document tree separately.
var embeddedRefTags = map[string]bool{
	"fig":         true,
	"table-wrap":  true,
	"fn":          true,
	"disp-formula": true,
}

// CleanInline rewrites inline markup beneath n in place:
//
//   - cross references are removed, tails kept
//   - styling wrappers are spliced out
//   - sub and sup become "_"/"^" plus their text
//   - ext-link becomes a visible "[External URI: ...]" marker
//   - embedded figures, tables, footnotes and display formulas are
//     registered in refs (when non-nil) and removed
//
// Tail text is never dropped by any of these edits.
func CleanInline(n *Node, refs *RefMap) {
	if n == nil {
		return
	}
	for _, c := range n.Children {
		CleanInline(c, refs)
	}
	var kept []*Node
	appendText := func(s string) {
		if s == "" {
			return
		}
		if len(kept) > 0 {
			kept[len(kept)-1].Tail += s
		} else {
			n.Text += s
		}
	}
	for _, c := range n.Children {
		switch {
		case crossRefTags[c.Name]:
			appendText(c.Tail)
		case embeddedRefTags[c.Name]:
			if refs != nil {
				key := c.Attr("id")
				if key == "" {
					key = c.OuterXML()
				}
				refs.Add(c.Name + ":" + key)
			}
			appendText(c.Tail)
		case stylingTags[c.Name]:
			appendText(c.Text)
			for _, gc := range c.Children {
				kept = append(kept, gc)
			}
			appendText(c.Tail)
		case c.Name == "sub":
			appendText("_" + c.DeepText())
			appendText(c.Tail)
		case c.Name == "sup":
			appendText("^" + c.DeepText())
			appendText(c.Tail)
		case c.Name == "ext-link":
			href := c.Attr("href")
			label := NormalizeSpace(c.DeepText())
			switch {
			case label != "" && href != "" && label != href:
				appendText(label + " [External URI: " + href + "]")
			case href != "":
				appendText("[External URI: " + href + "]")
			default:
				appendText(label)
			}
			appendText(c.Tail)
		default:
			kept = append(kept, c)
		}
	}
	n.Children = kept
}

// RenderText produces the reading text of a mixed-content node: a cleaned
// clone is flattened to character data and whitespace-normalized. The
// original tree is left untouched, so attribute-bearing markup such as
// affiliation xrefs stays available to other extractors.
func RenderText(n *Node, refs *RefMap) string {
	if n == nil {
		return ""
	}
	cp := n.Clone()
	CleanInline(cp, refs)
	return NormalizeSpace(cp.DeepText())
}

// JoinNonEmpty joins the non-empty strings with sep.
func JoinNonEmpty(parts []string, sep string) string {
	var kept []string
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}
