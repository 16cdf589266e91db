// Package jats parses JATS article XML into a navigable tree and
// provides the cleaning transforms applied before text extraction.
//
// Matching is namespace-agnostic throughout: element and attribute names
// are reduced to their local parts at parse time, so xlink:href and href
// are the same attribute and mml:math is just "math".
package jats

import (
	"encoding/xml"
	"io"
	"strings"

	"github.com/pmcharvest/pmcharvest/internal/apperr"
)

// Node is one element of a parsed tree. Text is the character data before
// the first child; Tail is the character data following the element in
// its parent, mirroring how mixed content interleaves text and elements.
type Node struct {
	Name     string
	Attrs    map[string]string
	Text     string
	Tail     string
	Children []*Node
}

// DocType carries the DOCTYPE declaration of a parsed document, if any.
type DocType struct {
	Raw string
}

// knownDTDs are the JATS and NLM article DTD identifiers the advisory
// check recognizes.
var knownDTDs = []string{
	"JATS-archivearticle1.dtd",
	"JATS-archivearticle1-mathml3.dtd",
	"JATS-archivearticle1-3-mathml3.dtd",
	"archivearticle3.dtd",
	"archivearticle.dtd",
	"journalpublishing3.dtd",
	"journalpublishing.dtd",
}

// Advisory returns a warning message when the DOCTYPE is missing or not a
// recognized JATS DTD, and "" when it looks fine. Informational only;
// extraction proceeds either way.
func (d *DocType) Advisory() string {
	if d == nil || d.Raw == "" {
		return "no DOCTYPE declaration; skipping DTD advisory check"
	}
	for _, k := range knownDTDs {
		if strings.Contains(d.Raw, k) {
			return ""
		}
	}
	line := d.Raw
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	return "DOCTYPE is not a recognized JATS DTD: " + line
}

// Parse decodes XML into a tree rooted at the first top-level element.
// Decoding is lenient about entities and unknown namespace prefixes so
// that the long tail of publisher XML still loads.
func Parse(r io.Reader) (*Node, *DocType, error) {
	dec := xml.NewDecoder(r)
	dec.Strict = false
	dec.Entity = xml.HTMLEntity

	var (
		root    *Node
		stack   []*Node
		doctype *DocType
	)
	appendText := func(s string) {
		if s == "" || len(stack) == 0 {
			return
		}
		cur := stack[len(stack)-1]
		if n := len(cur.Children); n > 0 {
			cur.Children[n-1].Tail += s
		} else {
			cur.Text += s
		}
	}
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, apperr.Wrap(apperr.ParseError, "jats.parse", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			n := &Node{Name: t.Name.Local, Attrs: make(map[string]string, len(t.Attr))}
			for _, a := range t.Attr {
				if a.Name.Space == "xmlns" || a.Name.Local == "xmlns" {
					continue
				}
				n.Attrs[a.Name.Local] = a.Value
			}
			if len(stack) == 0 {
				if root == nil {
					root = n
				} else {
					// Junk after the document element; ignore it.
					continue
				}
			} else {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, n)
			}
			stack = append(stack, n)
		case xml.EndElement:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		case xml.CharData:
			appendText(string(t))
		case xml.Directive:
			d := strings.TrimSpace(string(t))
			if strings.HasPrefix(strings.ToUpper(d), "DOCTYPE") {
				doctype = &DocType{Raw: d}
			}
		}
	}
	if root == nil {
		return nil, nil, apperr.New(apperr.ValidationError, "jats.parse", "input contains no XML element")
	}
	return root, doctype, nil
}

// Attr returns the attribute value for the given local name, or "".
func (n *Node) Attr(key string) string {
	if n == nil || n.Attrs == nil {
		return ""
	}
	return n.Attrs[key]
}

// Child returns the first direct child with the given local name.
func (n *Node) Child(name string) *Node {
	if n == nil {
		return nil
	}
	for _, c := range n.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// ChildrenNamed returns all direct children with the given local name.
func (n *Node) ChildrenNamed(name string) []*Node {
	if n == nil {
		return nil
	}
	var out []*Node
	for _, c := range n.Children {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out
}

// Find returns the first descendant with the given local name, in
// document order. The receiver itself is not considered.
func (n *Node) Find(name string) *Node {
	if n == nil {
		return nil
	}
	for _, c := range n.Children {
		if c.Name == name {
			return c
		}
		if d := c.Find(name); d != nil {
			return d
		}
	}
	return nil
}

// FindAll returns every descendant with the given local name, in
// document order.
func (n *Node) FindAll(name string) []*Node {
	if n == nil {
		return nil
	}
	var out []*Node
	for _, c := range n.Children {
		if c.Name == name {
			out = append(out, c)
		}
		out = append(out, c.FindAll(name)...)
	}
	return out
}

// DeepText concatenates all character data beneath the node: its own
// text, then each child recursively followed by that child's tail.
func (n *Node) DeepText() string {
	var sb strings.Builder
	n.deepText(&sb)
	return sb.String()
}

func (n *Node) deepText(sb *strings.Builder) {
	if n == nil {
		return
	}
	sb.WriteString(n.Text)
	for _, c := range n.Children {
		c.deepText(sb)
		sb.WriteString(c.Tail)
	}
}

// CleanText returns DeepText with runs of whitespace collapsed to single
// spaces and the ends trimmed.
func (n *Node) CleanText() string {
	return NormalizeSpace(n.DeepText())
}

// Clone returns a deep copy of the node. The copy's Tail is cleared since
// it belongs to the original's parent context.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	cp := &Node{Name: n.Name, Text: n.Text}
	if len(n.Attrs) > 0 {
		cp.Attrs = make(map[string]string, len(n.Attrs))
		for k, v := range n.Attrs {
			cp.Attrs[k] = v
		}
	}
	for _, c := range n.Children {
		cc := c.Clone()
		cc.Tail = c.Tail
		cp.Children = append(cp.Children, cc)
	}
	return cp
}

// NormalizeSpace collapses every run of whitespace to a single space and
// trims the ends.
func NormalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
