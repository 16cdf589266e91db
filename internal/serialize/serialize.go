// Package serialize emits the per-article artifact: a UTF-8 JSON
// document whose top-level keys appear in a fixed contractual order,
// with missing data rendered as empty-of-type values rather than
// omitted.
package serialize

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pmcharvest/pmcharvest/internal/apperr"
	"github.com/pmcharvest/pmcharvest/internal/domain"
)

// field pairs one artifact key with its value.
type field struct {
	key   string
	value interface{}
}

// fields lists the artifact keys in emission order. This order is part
// of the external contract; do not reorder.
func fields(d *domain.Document) []field {
	return []field{
		{"pmc_id", d.PMCID},
		{"title", d.Title},
		{"abstract_text", d.AbstractText()},
		{"abstract", d.Abstract},
		{"body", d.Body},
		{"body_nested", d.BodyNested},
		{"paragraphs", d.Paragraphs},
		{"authors", d.Authors},
		{"non_author_contributors", d.NonAuthorContributors},
		{"article_id", d.ArticleID},
		{"journal_title", d.JournalTitle},
		{"journal_id", d.JournalID},
		{"publisher_name", d.PublisherName},
		{"publisher_location", d.PublisherLocation},
		{"volume", d.Volume},
		{"issue", d.Issue},
		{"first_page", d.FirstPage},
		{"last_page", d.LastPage},
		{"elocation_id", d.ElocationID},
		{"published_date", d.PublishedDate},
		{"history_dates", d.HistoryDates},
		{"keywords", d.Keywords},
		{"article_types", d.ArticleTypes},
		{"article_categories", d.ArticleCategories},
		{"citations", d.Citations},
		{"tables", d.Tables},
		{"figures", d.Figures},
		{"equations", d.Equations},
		{"supplementary_materials", d.Supplementary},
		{"footnotes", d.Footnotes},
		{"acknowledgements", d.Acknowledgements},
		{"notes", d.Notes},
		{"appendices", d.Appendices},
		{"glossary", d.Glossary},
		{"funding", d.Funding},
		{"ethics", d.Ethics},
		{"permissions", d.Permissions},
		{"copyright_statement", d.CopyrightStatement},
		{"license_type", d.LicenseType},
		{"related_articles", d.RelatedArticles},
		{"conference", d.Conference},
		{"translated_titles", d.TranslatedTitles},
		{"translated_abstracts", d.TranslatedAbstracts},
		{"version_history", d.VersionHistory},
		{"counts", d.Counts},
		{"self_uris", d.SelfURIs},
		{"custom_meta", d.CustomMeta},
		{"full_text", d.FullText()},
	}
}

// normalize fills any nil collection so empty-of-type values serialize
// as {} and [] instead of null.
func normalize(d *domain.Document) {
	if d.Abstract == nil {
		d.Abstract = domain.NewOrderedMap()
	}
	if d.Body == nil {
		d.Body = domain.NewOrderedMap()
	}
	if d.BodyNested == nil {
		d.BodyNested = domain.NewNestedMap()
	}
	if d.Paragraphs == nil {
		d.Paragraphs = []domain.ParagraphRef{}
	}
	if d.Authors == nil {
		d.Authors = []domain.Contributor{}
	}
	if d.NonAuthorContributors == nil {
		d.NonAuthorContributors = []domain.Contributor{}
	}
	if d.ArticleID == nil {
		d.ArticleID = map[string]string{}
	}
	if d.JournalID == nil {
		d.JournalID = map[string]string{}
	}
	if d.PublishedDate == nil {
		d.PublishedDate = map[string]string{}
	}
	if d.HistoryDates == nil {
		d.HistoryDates = map[string]string{}
	}
	if d.Keywords == nil {
		d.Keywords = []string{}
	}
	if d.ArticleTypes == nil {
		d.ArticleTypes = []string{}
	}
	if d.ArticleCategories == nil {
		d.ArticleCategories = []string{}
	}
	if d.Citations == nil {
		d.Citations = []domain.Citation{}
	}
	if d.Tables == nil {
		d.Tables = []domain.Table{}
	}
	if d.Figures == nil {
		d.Figures = []domain.Figure{}
	}
	if d.Equations == nil {
		d.Equations = []domain.Equation{}
	}
	if d.Supplementary == nil {
		d.Supplementary = []domain.Supplement{}
	}
	if d.Footnotes == nil {
		d.Footnotes = []string{}
	}
	if d.Acknowledgements == nil {
		d.Acknowledgements = []string{}
	}
	if d.Notes == nil {
		d.Notes = []string{}
	}
	if d.Appendices == nil {
		d.Appendices = []domain.Appendix{}
	}
	if d.Glossary == nil {
		d.Glossary = []domain.GlossaryEntry{}
	}
	if d.Funding == nil {
		d.Funding = []string{}
	}
	if d.Ethics == nil {
		d.Ethics = map[string]string{}
	}
	if d.Permissions == nil {
		d.Permissions = map[string]string{}
	}
	if d.RelatedArticles == nil {
		d.RelatedArticles = []domain.RelatedArticle{}
	}
	if d.Conference == nil {
		d.Conference = map[string]string{}
	}
	if d.TranslatedTitles == nil {
		d.TranslatedTitles = map[string]string{}
	}
	if d.TranslatedAbstracts == nil {
		d.TranslatedAbstracts = map[string]string{}
	}
	if d.VersionHistory == nil {
		d.VersionHistory = []domain.VersionEntry{}
	}
	if d.Counts == nil {
		d.Counts = map[string]int{}
	}
	if d.SelfURIs == nil {
		d.SelfURIs = []domain.SelfURI{}
	}
	if d.CustomMeta == nil {
		d.CustomMeta = map[string]string{}
	}
}

// Marshal renders the artifact with two-space indentation.
func Marshal(d *domain.Document) ([]byte, error) {
	return marshal(d, true)
}

// MarshalCompact renders the artifact as a single line for stream mode.
func MarshalCompact(d *domain.Document) ([]byte, error) {
	return marshal(d, false)
}

func marshal(d *domain.Document, indent bool) ([]byte, error) {
	normalize(d)
	var buf bytes.Buffer
	buf.WriteByte('{')
	fs := fields(d)
	for i, f := range fs {
		if i > 0 {
			buf.WriteByte(',')
		}
		if indent {
			buf.WriteString("\n  ")
		}
		raw, err := encodeValue(f.key)
		if err != nil {
			return nil, fmt.Errorf("encode key %q: %w", f.key, err)
		}
		buf.Write(raw)
		buf.WriteByte(':')
		if indent {
			buf.WriteByte(' ')
		}
		raw, err = encodeValue(f.value)
		if err != nil {
			return nil, fmt.Errorf("encode field %q: %w", f.key, err)
		}
		if indent {
			var pretty bytes.Buffer
			if err := json.Indent(&pretty, raw, "  ", "  "); err != nil {
				return nil, fmt.Errorf("indent field %q: %w", f.key, err)
			}
			buf.Write(pretty.Bytes())
		} else {
			buf.Write(raw)
		}
	}
	if indent {
		buf.WriteByte('\n')
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// encodeValue marshals without HTML escaping so article text survives
// verbatim. Map keys sort deterministically under encoding/json.
func encodeValue(v interface{}) ([]byte, error) {
	var b bytes.Buffer
	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(b.Bytes(), "\n"), nil
}

// WriteFile emits the per-item artifact PMC<id>.json into dir and
// returns its path. Documents without a PMCID are rejected; they would
// all land on the same "PMC.json" path and overwrite each other.
func WriteFile(dir string, d *domain.Document) (string, error) {
	if d.PMCID == "" {
		return "", apperr.New(apperr.ValidationError, "serialize.write", "document has no PMCID")
	}
	return writeArtifact(filepath.Join(dir, "PMC"+d.PMCID+".json"), d)
}

// WriteFileAs emits the artifact under an explicit file name, for local
// sources whose XML carries no PMC identifier.
func WriteFileAs(dir, name string, d *domain.Document) (string, error) {
	return writeArtifact(filepath.Join(dir, name), d)
}

func writeArtifact(path string, d *domain.Document) (string, error) {
	data, err := Marshal(d)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return "", apperr.Wrap(apperr.IOFailed, "serialize.write", err)
	}
	return path, nil
}

// WriteStream writes one compact artifact line to w.
func WriteStream(w io.Writer, d *domain.Document) error {
	data, err := MarshalCompact(d)
	if err != nil {
		return err
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		return apperr.Wrap(apperr.IOFailed, "serialize.stream", err)
	}
	return nil
}
