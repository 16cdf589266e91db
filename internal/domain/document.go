package domain

import (
	"strings"
	"time"
)

// Contributor is one person or collective credited on an article.
// Rarely used attributes (orcid, isni, degrees, equal-contrib) live in
// Extra rather than as first-class fields.
type Contributor struct {
	Type         string            `json:"type"`
	FirstName    string            `json:"first_name"`
	LastName     string            `json:"last_name"`
	Email        string            `json:"email"`
	Address      string            `json:"address,omitempty"`
	Affiliations []string          `json:"affiliations"`
	Extra        map[string]string `json:"extra,omitempty"`
}

// Citation is one reference-list entry. Raw always holds the verbatim
// citation text; the structured fields are best-effort.
type Citation struct {
	ID      string   `json:"id"`
	Raw     string   `json:"raw"`
	Authors []string `json:"authors"`
	Title   string   `json:"title"`
	Source  string   `json:"source"`
	Year    string   `json:"year"`
	Volume  string   `json:"volume"`
	Pages   string   `json:"pages"`
	DOI     string   `json:"doi"`
	PMID    string   `json:"pmid"`
	PMCID   string   `json:"pmcid"`
}

// Table holds one table-wrap as a dense rectangular matrix: header rows
// first, then body rows, with col/rowspans expanded.
type Table struct {
	Label   string     `json:"label"`
	Caption string     `json:"caption"`
	Rows    [][]string `json:"rows"`
}

type Figure struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Caption     string `json:"caption"`
	GraphicHref string `json:"graphic_href"`
	AltText     string `json:"alt_text"`
}

type Equation struct {
	ID     string `json:"id"`
	MathML string `json:"mathml"`
	Tex    string `json:"tex"`
}

type Supplement struct {
	Label   string `json:"label"`
	Caption string `json:"caption"`
	Href    string `json:"href"`
}

type RelatedArticle struct {
	Type string `json:"type"`
	DOI  string `json:"doi"`
	PMID string `json:"pmid"`
	Href string `json:"href"`
}

type VersionEntry struct {
	Version string `json:"version"`
	Date    string `json:"date"`
}

type SelfURI struct {
	ContentType string `json:"content_type"`
	Href        string `json:"href"`
}

type GlossaryEntry struct {
	Term       string `json:"term"`
	Definition string `json:"definition"`
}

type Appendix struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

// ParagraphRef locates one leaf paragraph: its top-level section, the
// innermost subsection ("" when the paragraph sits directly under the
// section), and its zero-based index within the leaf section.
type ParagraphRef struct {
	Section        string `json:"section"`
	Subsection     string `json:"subsection"`
	ParagraphIndex int    `json:"paragraph_index"`
	Text           string `json:"text"`
}

// Document is one fully parsed article. It is built once by a single
// worker, serialized, and never mutated afterwards.
type Document struct {
	PMCID                 string
	Title                 string
	Abstract              *OrderedMap
	Body                  *OrderedMap
	BodyNested            *NestedMap
	Paragraphs            []ParagraphRef
	Authors               []Contributor
	NonAuthorContributors []Contributor
	ArticleID             map[string]string
	JournalTitle          string
	JournalID             map[string]string
	PublisherName         string
	PublisherLocation     string
	Volume                string
	Issue                 string
	FirstPage             string
	LastPage              string
	ElocationID           string
	PublishedDate         map[string]string
	HistoryDates          map[string]string
	Keywords              []string
	ArticleTypes          []string
	ArticleCategories     []string
	Citations             []Citation
	Tables                []Table
	Figures               []Figure
	Equations             []Equation
	Supplementary         []Supplement
	Footnotes             []string
	Acknowledgements      []string
	Notes                 []string
	Appendices            []Appendix
	Glossary              []GlossaryEntry
	Funding               []string
	Ethics                map[string]string
	Permissions           map[string]string
	CopyrightStatement    string
	LicenseType           string
	RelatedArticles       []RelatedArticle
	Conference            map[string]string
	TranslatedTitles      map[string]string
	TranslatedAbstracts   map[string]string
	VersionHistory        []VersionEntry
	Counts                map[string]int
	SelfURIs              []SelfURI
	CustomMeta            map[string]string
	LastUpdated           time.Time
}

// New returns a Document with every collection initialized, so missing
// fields serialize as their empty-of-type value rather than null.
func New(pmcid string) *Document {
	return &Document{
		PMCID:                 pmcid,
		Abstract:              NewOrderedMap(),
		Body:                  NewOrderedMap(),
		BodyNested:            NewNestedMap(),
		Paragraphs:            []ParagraphRef{},
		Authors:               []Contributor{},
		NonAuthorContributors: []Contributor{},
		ArticleID:             map[string]string{},
		JournalID:             map[string]string{},
		PublishedDate:         map[string]string{},
		HistoryDates:          map[string]string{},
		Keywords:              []string{},
		ArticleTypes:          []string{},
		ArticleCategories:     []string{},
		Citations:             []Citation{},
		Tables:                []Table{},
		Figures:               []Figure{},
		Equations:             []Equation{},
		Supplementary:         []Supplement{},
		Footnotes:             []string{},
		Acknowledgements:      []string{},
		Notes:                 []string{},
		Appendices:            []Appendix{},
		Glossary:              []GlossaryEntry{},
		Funding:               []string{},
		Ethics:                map[string]string{},
		Permissions:           map[string]string{},
		RelatedArticles:       []RelatedArticle{},
		Conference:            map[string]string{},
		TranslatedTitles:      map[string]string{},
		TranslatedAbstracts:   map[string]string{},
		VersionHistory:        []VersionEntry{},
		Counts:                map[string]int{},
		SelfURIs:              []SelfURI{},
		CustomMeta:            map[string]string{},
	}
}

// AbstractText joins the abstract values in insertion order with blank
// lines between labeled parts.
func (d *Document) AbstractText() string {
	return strings.Join(d.Abstract.Values(), "\n\n")
}

// FullText is the abstract followed by the flat body, double newlines
// between parts. When one side is empty the other stands alone.
func (d *Document) FullText() string {
	at := d.AbstractText()
	bt := strings.Join(d.Body.Values(), "\n\n")
	switch {
	case at == "":
		return bt
	case bt == "":
		return at
	default:
		return at + "\n\n" + bt
	}
}

// TOC returns the top-level section titles in reading order.
func (d *Document) TOC() []string {
	return d.Body.Keys()
}
