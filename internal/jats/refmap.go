package jats

// RefMap assigns stable indices to referenceable fragments (figures,
// tables) lifted out of flowing text. Indices are issued in encounter
// order and the same key always maps back to the same index, so repeated
// references resolve consistently across a document.
type RefMap struct {
	keys  []string
	index map[string]int
}

func NewRefMap() *RefMap {
	return &RefMap{index: make(map[string]int)}
}

// Add records the key if unseen and returns its index.
func (m *RefMap) Add(key string) int {
	if i, ok := m.index[key]; ok {
		return i
	}
	i := len(m.keys)
	m.keys = append(m.keys, key)
	m.index[key] = i
	return i
}

// Key returns the key registered at index i, or "" when out of range.
func (m *RefMap) Key(i int) string {
	if i < 0 || i >= len(m.keys) {
		return ""
	}
	return m.keys[i]
}

// Index returns the index for key, if registered.
func (m *RefMap) Index(key string) (int, bool) {
	i, ok := m.index[key]
	return i, ok
}

func (m *RefMap) Len() int { return len(m.keys) }
