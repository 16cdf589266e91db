package jats

import (
	"sort"
	"strings"
)

// OuterXML serializes the node and everything beneath it back to markup.
// Attributes are emitted in sorted order so output is deterministic.
// Used where the artifact must carry verbatim structure, such as MathML.
func (n *Node) OuterXML() string {
	var sb strings.Builder
	writeXML(&sb, n)
	return sb.String()
}

// InnerXML serializes the node's mixed content without the enclosing tag.
func (n *Node) InnerXML() string {
	var sb strings.Builder
	sb.WriteString(escapeText(n.Text))
	for _, c := range n.Children {
		writeXML(&sb, c)
		sb.WriteString(escapeText(c.Tail))
	}
	return sb.String()
}

func writeXML(sb *strings.Builder, n *Node) {
	sb.WriteByte('<')
	sb.WriteString(n.Name)
	if len(n.Attrs) > 0 {
		keys := make([]string, 0, len(n.Attrs))
		for k := range n.Attrs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			sb.WriteByte(' ')
			sb.WriteString(k)
			sb.WriteString(`="`)
			sb.WriteString(escapeAttr(n.Attrs[k]))
			sb.WriteByte('"')
		}
	}
	if n.Text == "" && len(n.Children) == 0 {
		sb.WriteString("/>")
		return
	}
	sb.WriteByte('>')
	sb.WriteString(escapeText(n.Text))
	for _, c := range n.Children {
		writeXML(sb, c)
		sb.WriteString(escapeText(c.Tail))
	}
	sb.WriteString("</")
	sb.WriteString(n.Name)
	sb.WriteByte('>')
}

var textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

var attrEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")

func escapeText(s string) string { return textEscaper.Replace(s) }

func escapeAttr(s string) string { return attrEscaper.Replace(s) }
