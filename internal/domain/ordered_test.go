package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOrderedMapPreservesInsertionOrder(t *testing.T) {
	m := NewOrderedMap()
	m.Set("zebra", "1")
	m.Set("alpha", "2")
	m.Set("mid", "3")
	require.Equal(t, []string{"zebra", "alpha", "mid"}, m.Keys())
	require.Equal(t, []string{"1", "2", "3"}, m.Values())

	// Re-setting keeps the original position.
	m.Set("zebra", "updated")
	require.Equal(t, []string{"zebra", "alpha", "mid"}, m.Keys())

	data, err := json.Marshal(m)
	require.NoError(t, err)
	require.Equal(t, `{"zebra":"updated","alpha":"2","mid":"3"}`, string(data))
}

func TestOrderedMapAppend(t *testing.T) {
	m := NewOrderedMap()
	m.Append("Abstract", "First.", " ")
	m.Append("Abstract", "Second.", " ")
	v, ok := m.Get("Abstract")
	require.True(t, ok)
	require.Equal(t, "First. Second.", v)
	require.Equal(t, 1, m.Len())
}

func TestOrderedMapNoHTMLEscaping(t *testing.T) {
	m := NewOrderedMap()
	m.Set("stat", "p < 0.05 & q > 1")
	data, err := json.Marshal(m)
	require.NoError(t, err)
	require.Equal(t, `{"stat":"p < 0.05 & q > 1"}`, string(data))
}

func TestNestedMarshal(t *testing.T) {
	results := NewNested("Top text.")
	results.Add("Exp A", NewNested("Alpha."))
	results.Add("Exp B", NewNested("Beta."))

	m := NewNestedMap()
	m.Add("Results", results)

	data, err := json.Marshal(m)
	require.NoError(t, err)
	require.Equal(t,
		`{"Results":{"_text":"Top text.","Exp A":{"_text":"Alpha."},"Exp B":{"_text":"Beta."}}}`,
		string(data))
}

func TestDocumentFullText(t *testing.T) {
	d := New("1")
	require.Empty(t, d.FullText())

	d.Body.Set("Intro", "Body only.")
	require.Equal(t, "Body only.", d.FullText())

	d.Abstract.Set("Abstract", "Abstract only.")
	require.Equal(t, "Abstract only.\n\nBody only.", d.FullText())

	d2 := New("2")
	d2.Abstract.Set("Abstract", "Just the abstract.")
	require.Equal(t, "Just the abstract.", d2.FullText())
}

func TestDocumentTOC(t *testing.T) {
	d := New("1")
	d.Body.Set("Introduction", "a")
	d.Body.Set("Methods", "b")
	d.Body.Set("Results", "c")
	require.Equal(t, []string{"Introduction", "Methods", "Results"}, d.TOC())
}
