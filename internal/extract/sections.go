// Package extract holds the per-entity extraction routines that read a
// parsed JATS tree into Document fields. Extractors return empty values
// for missing input and never fail; structurally surprising elements are
// logged and skipped.
package extract

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/pmcharvest/pmcharvest/internal/domain"
	"github.com/pmcharvest/pmcharvest/internal/jats"
)

// section is an intermediate parse of one <sec> element.
type section struct {
	title string
	paras []string
	subs  []*section
}

// Abstract returns the labeled abstract mapping. Labeled sub-sections
// become keys with their casing preserved; unlabeled prose accumulates
// under the single key "Abstract". Paragraphs within one part join with
// a single space.
func Abstract(article *jats.Node, log logrus.FieldLogger) *domain.OrderedMap {
	out := domain.NewOrderedMap()
	abs := firstAbstract(article)
	if abs == nil {
		return out
	}
	seen := map[string]bool{}
	for _, c := range abs.Children {
		switch c.Name {
		case "title", "label":
		case "p":
			if text := jats.RenderText(c, nil); text != "" {
				out.Append("Abstract", text, " ")
				seen["Abstract"] = true
			}
		case "sec":
			label := ""
			if t := c.Child("title"); t != nil {
				label = jats.RenderText(t, nil)
			}
			var parts []string
			for _, sc := range c.Children {
				if sc.Name == "p" {
					if text := jats.RenderText(sc, nil); text != "" {
						parts = append(parts, text)
					}
				}
			}
			text := strings.Join(parts, " ")
			if text == "" {
				continue
			}
			if label == "" {
				out.Append("Abstract", text, " ")
				seen["Abstract"] = true
				continue
			}
			out.Set(uniqueKey(label, seen), text)
		default:
			if log != nil {
				log.WithField("element", c.Name).Warn("unhandled abstract element; skipping")
			}
		}
	}
	return out
}

// TranslatedAbstracts maps language codes to translated abstract text.
func TranslatedAbstracts(article *jats.Node) map[string]string {
	out := map[string]string{}
	for _, ta := range article.FindAll("trans-abstract") {
		lang := ta.Attr("lang")
		if lang == "" {
			lang = fmt.Sprintf("trans-%d", len(out)+1)
		}
		if text := jats.RenderText(ta, nil); text != "" {
			out[lang] = text
		}
	}
	return out
}

// Body builds the three body views in a single traversal: the flat
// ordered map, the nested view, and the paragraph list. Returns empty
// views for articles without a body.
func Body(article *jats.Node, refs *jats.RefMap, log logrus.FieldLogger) (*domain.OrderedMap, *domain.NestedMap, []domain.ParagraphRef) {
	flat := domain.NewOrderedMap()
	nested := domain.NewNestedMap()
	paras := []domain.ParagraphRef{}

	body := article.Child("body")
	if body == nil {
		body = article.Find("body")
	}
	if body == nil {
		return flat, nested, paras
	}

	var tops []*section
	var loose *section
	for _, c := range body.Children {
		switch c.Name {
		case "sec":
			tops = append(tops, parseSection(c, refs, log))
		case "p":
			if loose == nil {
				loose = &section{}
				tops = append(tops, loose)
			}
			if text := jats.RenderText(c, refs); text != "" {
				loose.paras = append(loose.paras, text)
			}
		case "title", "label":
		default:
			if log != nil {
				log.WithField("element", c.Name).Warn("unhandled body element; skipping")
			}
		}
	}
	assignTitles(tops)

	for _, top := range tops {
		flat.Set(top.title, flatText(top))
		nested.Add(top.title, nestedOf(top))
		collectParas(top, top.title, true, &paras)
	}
	return flat, nested, paras
}

func parseSection(n *jats.Node, refs *jats.RefMap, log logrus.FieldLogger) *section {
	s := &section{}
	if t := n.Child("title"); t != nil {
		s.title = jats.RenderText(t, nil)
	}
	for _, c := range n.Children {
		switch c.Name {
		case "title", "label":
		case "p":
			if text := jats.RenderText(c, refs); text != "" {
				s.paras = append(s.paras, text)
			}
		case "sec":
			s.subs = append(s.subs, parseSection(c, refs, log))
		case "fig", "table-wrap", "table-wrap-group", "disp-formula", "supplementary-material":
			// Lifted out of flowing text; dedicated extractors pick
			// these up from the article tree.
			if refs != nil {
				key := c.Attr("id")
				if key == "" {
					key = c.OuterXML()
				}
				refs.Add(c.Name + ":" + key)
			}
		default:
			if log != nil {
				log.WithField("element", c.Name).Warn("unhandled section element; skipping")
			}
		}
	}
	return s
}

// assignTitles normalizes titles at each nesting level: empty titles
// become "Untitled Section" and duplicates at the same level get " (2)",
// " (3)", ... suffixes in encounter order.
func assignTitles(secs []*section) {
	seen := map[string]bool{}
	for _, s := range secs {
		t := strings.TrimSpace(s.title)
		if t == "" {
			t = "Untitled Section"
		}
		s.title = uniqueKey(t, seen)
		assignTitles(s.subs)
	}
}

// uniqueKey returns t, or the first " (k)"-suffixed variant not yet in
// seen, and records the result.
func uniqueKey(t string, seen map[string]bool) string {
	if !seen[t] {
		seen[t] = true
		return t
	}
	for k := 2; ; k++ {
		cand := fmt.Sprintf("%s (%d)", t, k)
		if !seen[cand] {
			seen[cand] = true
			return cand
		}
	}
}

// flatText renders a top-level section for the flat body view: its
// paragraphs first, then each subsection prefixed with a visible
// "SECTION: <title>:" header and indented four spaces.
func flatText(s *section) string {
	var sb strings.Builder
	for i, p := range s.paras {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(p)
	}
	for _, sub := range s.subs {
		if sb.Len() > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(renderSub(sub))
	}
	return sb.String()
}

func renderSub(s *section) string {
	var sb strings.Builder
	sb.WriteString("SECTION: ")
	sb.WriteString(s.title)
	sb.WriteString(":\n")
	for _, p := range s.paras {
		sb.WriteByte('\n')
		sb.WriteString(indent(p))
		sb.WriteByte('\n')
	}
	for _, sub := range s.subs {
		sb.WriteByte('\n')
		sb.WriteString(indent(renderSub(sub)))
		sb.WriteByte('\n')
	}
	return strings.TrimRight(sb.String(), "\n")
}

func indent(s string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		if l != "" {
			lines[i] = "    " + l
		}
	}
	return strings.Join(lines, "\n")
}

func nestedOf(s *section) *domain.Nested {
	n := domain.NewNested(strings.Join(s.paras, "\n"))
	for _, sub := range s.subs {
		n.Add(sub.title, nestedOf(sub))
	}
	return n
}

func collectParas(s *section, top string, isTop bool, out *[]domain.ParagraphRef) {
	sub := ""
	if !isTop {
		sub = s.title
	}
	for i, p := range s.paras {
		*out = append(*out, domain.ParagraphRef{
			Section:        top,
			Subsection:     sub,
			ParagraphIndex: i,
			Text:           p,
		})
	}
	for _, c := range s.subs {
		collectParas(c, top, false, out)
	}
}

func firstAbstract(article *jats.Node) *jats.Node {
	if meta := article.Find("article-meta"); meta != nil {
		if abs := meta.Child("abstract"); abs != nil {
			return abs
		}
	}
	return article.Find("abstract")
}
