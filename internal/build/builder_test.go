package build

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/pmcharvest/pmcharvest/internal/apperr"
	"github.com/pmcharvest/pmcharvest/internal/retry"
)

const sampleArticle = `<!DOCTYPE article PUBLIC "-//NLM//DTD JATS v1.2//EN" "JATS-archivearticle1.dtd">
<article article-type="research-article">
  <front>
    <journal-meta>
      <journal-id journal-id-type="nlm-ta">Test J</journal-id>
      <journal-title-group><journal-title>Testing Journal</journal-title></journal-title-group>
      <issn pub-type="epub">1234-5678</issn>
      <publisher><publisher-name>Test Press</publisher-name><publisher-loc>Berlin</publisher-loc></publisher>
    </journal-meta>
    <article-meta>
      <article-id pub-id-type="pmc">7181753</article-id>
      <article-id pub-id-type="doi">10.1000/test</article-id>
      <title-group><article-title>On testing</article-title></title-group>
      <contrib-group>
        <contrib contrib-type="author">
          <name><surname>Doe</surname><given-names>Jane</given-names></name>
        </contrib>
      </contrib-group>
      <pub-date pub-type="epub"><day>1</day><month>2</month><year>2020</year></pub-date>
      <volume>7</volume><issue>2</issue><fpage>100</fpage><lpage>110</lpage>
      <abstract>
        <sec><title>Background</title><p>Why.</p></sec>
        <sec><title>Results</title><p>What.</p></sec>
      </abstract>
      <kwd-group><kwd>testing</kwd></kwd-group>
    </article-meta>
  </front>
  <body>
    <sec><title>Introduction</title><p>Intro text.</p></sec>
    <sec><title>Results</title><p>Top text.</p>
      <sec><title>Exp A</title><p>Alpha.</p></sec>
    </sec>
  </body>
  <back>
    <ref-list>
      <ref id="b1"><mixed-citation>Doe J. Prior work. 2019.</mixed-citation></ref>
    </ref-list>
  </back>
</article>`

type fakeFetcher struct {
	responses [][]byte
	errs      []error
	calls     int
}

func (f *fakeFetcher) FetchArticleXML(ctx context.Context, pmcid string) ([]byte, error) {
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	if i < len(f.responses) {
		return f.responses[i], nil
	}
	return f.responses[len(f.responses)-1], nil
}

func TestFromXML(t *testing.T) {
	b := &Builder{}
	doc, err := b.FromXML([]byte(sampleArticle), "7181753")
	require.NoError(t, err)

	require.Equal(t, "7181753", doc.PMCID)
	require.Equal(t, "On testing", doc.Title)
	require.Equal(t, "PMC7181753", doc.ArticleID["pmcid"])
	require.Equal(t, "10.1000/test", doc.ArticleID["doi"])
	require.Equal(t, "Testing Journal", doc.JournalTitle)
	require.Equal(t, "Test Press", doc.PublisherName)
	require.Equal(t, "2020-02-01", doc.PublishedDate["epub"])
	require.Equal(t, []string{"testing"}, doc.Keywords)
	require.Len(t, doc.Authors, 1)
	require.Equal(t, "Doe", doc.Authors[0].LastName)
	require.Len(t, doc.Citations, 1)

	require.Equal(t, []string{"Introduction", "Results"}, doc.TOC())
	require.Equal(t, "Why.\n\nWhat.", doc.AbstractText())
	require.Contains(t, doc.FullText(), "Why.\n\nWhat.\n\nIntro text.")
	require.Contains(t, doc.FullText(), "SECTION: Exp A:")
	require.False(t, doc.LastUpdated.IsZero())
}

func TestFromXMLPMCIDFromArticle(t *testing.T) {
	b := &Builder{}
	doc, err := b.FromXML([]byte(sampleArticle), "")
	require.NoError(t, err)
	require.Equal(t, "7181753", doc.PMCID)
}

func TestFromXMLArticleSet(t *testing.T) {
	b := &Builder{}
	set := `<pmc-articleset>` + stripDoctype(sampleArticle) + `</pmc-articleset>`
	doc, err := b.FromXML([]byte(set), "7181753")
	require.NoError(t, err)
	require.Equal(t, "On testing", doc.Title)
}

func stripDoctype(s string) string {
	i := 0
	for i < len(s) && s[i] != '\n' {
		i++
	}
	return s[i+1:]
}

func TestFromXMLWarnsOnAnonymousInlineFigure(t *testing.T) {
	src := `<article><front><article-meta>
		<title-group><article-title>T</article-title></title-group>
	</article-meta></front>
	<body><sec><title>S</title>
		<p>Before <fig><caption><p>anonymous</p></caption></fig> after.</p>
	</sec></body></article>`

	log, hook := test.NewNullLogger()
	b := &Builder{Log: log}
	_, err := b.FromXML([]byte(src), "1")
	require.NoError(t, err)

	warned := false
	for _, e := range hook.AllEntries() {
		key, _ := e.Data["ref"].(string)
		if e.Level == logrus.WarnLevel && strings.HasPrefix(key, "fig:") {
			warned = true
		}
	}
	require.True(t, warned, "anonymous in-text figure should be flagged")
}

func TestFromXMLCorrelatesInlineFigureByID(t *testing.T) {
	src := `<article><front><article-meta>
		<title-group><article-title>T</article-title></title-group>
	</article-meta></front>
	<body><sec><title>S</title>
		<p>Before <fig id="f1"><caption><p>named</p></caption></fig> after.</p>
	</sec></body></article>`

	log, hook := test.NewNullLogger()
	b := &Builder{Log: log}
	doc, err := b.FromXML([]byte(src), "1")
	require.NoError(t, err)
	require.Len(t, doc.Figures, 1)
	require.Equal(t, "f1", doc.Figures[0].ID)
	require.Contains(t, doc.Body.Values()[0], "Before after.")
	for _, e := range hook.AllEntries() {
		require.NotContains(t, e.Message, "no extracted counterpart")
	}
}

func TestFromXMLRejectsEmptyAndNonArticle(t *testing.T) {
	b := &Builder{}
	_, err := b.FromXML([]byte("   "), "1")
	require.True(t, apperr.Is(err, apperr.ValidationError))

	_, err = b.FromXML([]byte("<html><body>nope</body></html>"), "1")
	require.True(t, apperr.Is(err, apperr.ValidationError))
}

func TestFromIDRetriesTransportFailure(t *testing.T) {
	down := apperr.New(apperr.NetworkError, "test", "down")
	f := &fakeFetcher{
		errs:      []error{down, nil},
		responses: [][]byte{nil, []byte(sampleArticle)},
	}
	p := retry.Default(3)
	p.Sleep = func(ctx context.Context, d time.Duration) error { return nil }
	b := &Builder{Fetcher: f, Retry: p}

	doc, attempts, err := b.FromID(context.Background(), "PMC7181753")
	require.NoError(t, err)
	require.Equal(t, 2, attempts)
	require.Equal(t, "On testing", doc.Title)
}

func TestFromIDGarbledPayloadIsRetried(t *testing.T) {
	f := &fakeFetcher{
		responses: [][]byte{[]byte("<<< not xml at all >>>"), []byte(sampleArticle)},
	}
	p := retry.Default(3)
	p.Sleep = func(ctx context.Context, d time.Duration) error { return nil }
	b := &Builder{Fetcher: f, Retry: p}

	_, attempts, err := b.FromID(context.Background(), "7181753")
	require.NoError(t, err)
	require.Equal(t, 2, attempts)
}

func TestFromIDRejectsBadInput(t *testing.T) {
	b := &Builder{Retry: retry.Default(1)}
	_, attempts, err := b.FromID(context.Background(), "not-an-id")
	require.Equal(t, 0, attempts)
	require.True(t, apperr.Is(err, apperr.UnsupportedInput))
}

func TestFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "PMC7181753.xml")
	require.NoError(t, os.WriteFile(path, []byte(sampleArticle), 0o644))

	b := &Builder{}
	doc, err := b.FromFile(path)
	require.NoError(t, err)
	require.Equal(t, "7181753", doc.PMCID)
}

func TestFromFilePMCIDFromFilename(t *testing.T) {
	noIDs := `<article><front><article-meta><title-group><article-title>Bare</article-title></title-group></article-meta></front></article>`
	dir := t.TempDir()
	path := filepath.Join(dir, "PMC42.xml")
	require.NoError(t, os.WriteFile(path, []byte(noIDs), 0o644))

	b := &Builder{}
	doc, err := b.FromFile(path)
	require.NoError(t, err)
	require.Equal(t, "42", doc.PMCID)
	require.Equal(t, "PMC42", doc.ArticleID["pmcid"])
}

func TestFromFileMissing(t *testing.T) {
	b := &Builder{}
	_, err := b.FromFile(filepath.Join(t.TempDir(), "nope.xml"))
	require.True(t, apperr.Is(err, apperr.NotFound))
}

func TestWalkDirectory(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.xml", "a.nxml", "c.txt", "z.XML"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("<x/>"), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

	paths, err := WalkDirectory(dir)
	require.NoError(t, err)
	require.Equal(t, []string{
		filepath.Join(dir, "a.nxml"),
		filepath.Join(dir, "b.xml"),
		filepath.Join(dir, "z.XML"),
	}, paths)
}
