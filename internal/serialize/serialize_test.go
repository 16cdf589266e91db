package serialize

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pmcharvest/pmcharvest/internal/apperr"
	"github.com/pmcharvest/pmcharvest/internal/domain"
)

// artifactKeys is the emission order the artifact promises.
var artifactKeys = []string{
	"pmc_id", "title", "abstract_text", "abstract", "body", "body_nested",
	"paragraphs", "authors", "non_author_contributors", "article_id",
	"journal_title", "journal_id", "publisher_name", "publisher_location",
	"volume", "issue", "first_page", "last_page", "elocation_id",
	"published_date", "history_dates", "keywords", "article_types",
	"article_categories", "citations", "tables", "figures", "equations",
	"supplementary_materials", "footnotes", "acknowledgements", "notes",
	"appendices", "glossary", "funding", "ethics", "permissions",
	"copyright_statement", "license_type", "related_articles", "conference",
	"translated_titles", "translated_abstracts", "version_history",
	"counts", "self_uris", "custom_meta", "full_text",
}

func sampleDoc() *domain.Document {
	d := domain.New("7181753")
	d.Title = "A sample article"
	d.Abstract.Set("Background", "Why we did it.")
	d.Abstract.Set("Results", "What we found.")
	d.Body.Set("Introduction", "Intro text.")
	d.Body.Set("Methods", "Methods text.")
	return d
}

func keyOrder(t *testing.T, data []byte) []string {
	t.Helper()
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	require.NoError(t, err)
	require.Equal(t, json.Delim('{'), tok)

	var keys []string
	for dec.More() {
		tok, err = dec.Token()
		require.NoError(t, err)
		key, ok := tok.(string)
		require.True(t, ok)
		keys = append(keys, key)

		var raw json.RawMessage
		require.NoError(t, dec.Decode(&raw))
	}
	return keys
}

func TestMarshalKeyOrder(t *testing.T) {
	data, err := Marshal(sampleDoc())
	require.NoError(t, err)
	require.Equal(t, artifactKeys, keyOrder(t, data))
}

func TestMarshalDerivedText(t *testing.T) {
	data, err := MarshalCompact(sampleDoc())
	require.NoError(t, err)

	var got map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &got))

	var abstractText, fullText string
	require.NoError(t, json.Unmarshal(got["abstract_text"], &abstractText))
	require.NoError(t, json.Unmarshal(got["full_text"], &fullText))
	require.Equal(t, "Why we did it.\n\nWhat we found.", abstractText)
	require.Equal(t, "Why we did it.\n\nWhat we found.\n\nIntro text.\n\nMethods text.", fullText)
}

func TestMarshalEmptyDocument(t *testing.T) {
	data, err := MarshalCompact(domain.New("1"))
	require.NoError(t, err)

	var got map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &got))
	require.Len(t, got, len(artifactKeys))
	require.JSONEq(t, `{}`, string(got["abstract"]))
	require.JSONEq(t, `[]`, string(got["citations"]))
	require.JSONEq(t, `""`, string(got["full_text"]))
	require.NotContains(t, string(data), "null")
}

func TestMarshalNilCollectionsNormalized(t *testing.T) {
	d := &domain.Document{PMCID: "2"}
	data, err := MarshalCompact(d)
	require.NoError(t, err)
	require.NotContains(t, string(data), "null")
}

func TestMarshalDeterministic(t *testing.T) {
	a, err := Marshal(sampleDoc())
	require.NoError(t, err)
	b, err := Marshal(sampleDoc())
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestMarshalNoHTMLEscaping(t *testing.T) {
	d := domain.New("3")
	d.Title = "p < 0.05 & q > 1"
	data, err := MarshalCompact(d)
	require.NoError(t, err)
	require.Contains(t, string(data), "p < 0.05 & q > 1")
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()
	path, err := WriteFile(dir, sampleDoc())
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "PMC7181753.json"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, json.Valid(data))
}

func TestWriteFileRejectsMissingPMCID(t *testing.T) {
	dir := t.TempDir()
	_, err := WriteFile(dir, domain.New(""))
	require.True(t, apperr.Is(err, apperr.ValidationError))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestWriteFileAs(t *testing.T) {
	dir := t.TempDir()
	d := domain.New("")
	d.Title = "Nameless"
	path, err := WriteFileAs(dir, "dump-001.json", d)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "dump-001.json"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, json.Valid(data))
}

func TestWriteStream(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteStream(&buf, sampleDoc()))
	line := buf.String()
	require.Equal(t, "\n", line[len(line)-1:])
	require.True(t, json.Valid([]byte(line)))
	require.NotContains(t, line[:len(line)-1], "\n")
}
