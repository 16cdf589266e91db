package domain

import "bytes"

// Nested is one node of the recursive body view. Its own paragraph text
// serializes under the reserved "_text" key; child sections follow under
// their titles in document order.
type Nested struct {
	Text     string
	keys     []string
	children map[string]*Nested
}

func NewNested(text string) *Nested {
	return &Nested{Text: text, children: make(map[string]*Nested)}
}

// Add registers a child section under title. Titles are unique at each
// level by the time they arrive here (duplicates are suffixed upstream).
func (n *Nested) Add(title string, child *Nested) {
	if _, ok := n.children[title]; !ok {
		n.keys = append(n.keys, title)
	}
	n.children[title] = child
}

func (n *Nested) Child(title string) *Nested {
	return n.children[title]
}

func (n *Nested) Titles() []string {
	out := make([]string, len(n.keys))
	copy(out, n.keys)
	return out
}

func (n *Nested) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	if err := encodeJSON(&buf, "_text"); err != nil {
		return nil, err
	}
	buf.WriteByte(':')
	if err := encodeJSON(&buf, n.Text); err != nil {
		return nil, err
	}
	for _, k := range n.keys {
		buf.WriteByte(',')
		if err := encodeJSON(&buf, k); err != nil {
			return nil, err
		}
		buf.WriteByte(':')
		child, err := n.children[k].MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(child)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// NestedMap is the top level of the body_nested view: section title to
// node, in document order.
type NestedMap struct {
	keys     []string
	sections map[string]*Nested
}

func NewNestedMap() *NestedMap {
	return &NestedMap{sections: make(map[string]*Nested)}
}

func (m *NestedMap) Add(title string, n *Nested) {
	if _, ok := m.sections[title]; !ok {
		m.keys = append(m.keys, title)
	}
	m.sections[title] = n
}

func (m *NestedMap) Section(title string) *Nested {
	return m.sections[title]
}

func (m *NestedMap) Titles() []string {
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

func (m *NestedMap) Len() int { return len(m.keys) }

func (m *NestedMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := encodeJSON(&buf, k); err != nil {
			return nil, err
		}
		buf.WriteByte(':')
		child, err := m.sections[k].MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(child)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
