// Package build runs the per-article pipeline: acquire JATS bytes,
// parse, clean, extract, and assemble one Document.
package build

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pmcharvest/pmcharvest/internal/apperr"
	"github.com/pmcharvest/pmcharvest/internal/domain"
	"github.com/pmcharvest/pmcharvest/internal/extract"
	"github.com/pmcharvest/pmcharvest/internal/ids"
	"github.com/pmcharvest/pmcharvest/internal/jats"
	"github.com/pmcharvest/pmcharvest/internal/retry"
)

// Fetcher acquires raw article XML for a canonical PMCID.
type Fetcher interface {
	FetchArticleXML(ctx context.Context, pmcid string) ([]byte, error)
}

// Builder assembles Documents. Zero value is not usable; construct with
// the fields filled in.
type Builder struct {
	Fetcher  Fetcher
	Retry    retry.Policy
	Log      logrus.FieldLogger
	Validate bool // run the advisory DTD check
}

// FromID fetches and parses one remote article. Fetch and parse run
// inside the retry loop together, so a garbled payload gets retried
// like any transport failure. Returns the Document and the number of
// attempts spent.
func (b *Builder) FromID(ctx context.Context, id string) (*domain.Document, int, error) {
	pmcid, err := ids.NormalizePMCID(id)
	if err != nil {
		return nil, 0, err
	}
	var doc *domain.Document
	attempts, err := retry.Do(ctx, b.Retry, func(ctx context.Context) error {
		data, ferr := b.Fetcher.FetchArticleXML(ctx, pmcid)
		if ferr != nil {
			return ferr
		}
		d, perr := b.FromXML(data, pmcid)
		if perr != nil {
			// Parse failure on a non-empty remote body is worth a
			// refetch; the payload may have been truncated in flight.
			var ae *apperr.Error
			if errors.As(perr, &ae) && ae.Kind == apperr.ParseError && len(bytes.TrimSpace(data)) > 0 {
				ae.Transient = true
			}
			return perr
		}
		doc = d
		return nil
	})
	if err != nil {
		return nil, attempts, err
	}
	return doc, attempts, nil
}

// FromFile parses a local JATS file. The PMCID comes from the article's
// own identifiers, falling back to digits in the file name.
func (b *Builder) FromFile(path string) (*domain.Document, error) {
	data, err := ReadLocal(path)
	if err != nil {
		return nil, err
	}
	doc, err := b.FromXML(data, "")
	if err != nil {
		return nil, err
	}
	if doc.PMCID == "" {
		doc.PMCID = pmcidFromFilename(path)
		if doc.PMCID != "" {
			doc.ArticleID["pmcid"] = "PMC" + doc.PMCID
		}
	}
	return doc, nil
}

// FromXML parses article bytes into a Document. When the payload is an
// article set, the first article element is used.
func (b *Builder) FromXML(data []byte, pmcid string) (*domain.Document, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, apperr.New(apperr.ValidationError, "build.parse", "empty document")
	}
	root, doctype, err := jats.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if b.Validate {
		if msg := doctype.Advisory(); msg != "" {
			b.log().Warn(msg)
		}
	}
	article := root
	if root.Name != "article" {
		if a := root.Find("article"); a != nil {
			article = a
		} else {
			return nil, apperr.New(apperr.ValidationError, "build.parse",
				"root element %q is not a JATS article", root.Name)
		}
	}
	return b.assemble(article, pmcid), nil
}

// assemble runs the extractors in dependency order: identifiers first so
// later fields can reference them, then front matter, body, and back
// matter. Extraction never fails; missing pieces stay empty.
func (b *Builder) assemble(article *jats.Node, pmcid string) *domain.Document {
	log := b.log()
	if pmcid != "" {
		log = log.WithField("pmcid", pmcid)
	}

	doc := domain.New(pmcid)
	meta := extract.ArticleMeta(article)

	doc.ArticleID = extract.ArticleIDs(meta, pmcid)
	if doc.PMCID == "" {
		if v, ok := doc.ArticleID["pmcid"]; ok {
			if norm, err := ids.NormalizePMCID(v); err == nil {
				doc.PMCID = norm
			}
		}
	}

	doc.Title = extract.Title(article)
	doc.TranslatedTitles = extract.TranslatedTitles(article)
	doc.JournalTitle = extract.JournalTitle(article)
	doc.JournalID = extract.JournalIDs(article)
	doc.PublisherName, doc.PublisherLocation = extract.Publisher(article)
	doc.Volume, doc.Issue, doc.FirstPage, doc.LastPage, doc.ElocationID = extract.IssueInfo(meta)
	doc.PublishedDate = extract.PublishedDates(meta)
	doc.HistoryDates = extract.HistoryDates(meta)
	doc.Keywords = extract.Keywords(article)
	doc.ArticleTypes = extract.ArticleTypes(article)
	doc.ArticleCategories = extract.ArticleCategories(article)
	doc.Counts = extract.Counts(meta)
	doc.SelfURIs = extract.SelfURIs(meta)
	doc.RelatedArticles = extract.RelatedArticles(meta)
	doc.Conference = extract.Conference(meta)

	doc.Authors, doc.NonAuthorContributors = extract.Contributors(article)

	doc.Abstract = extract.Abstract(article, log)
	doc.TranslatedAbstracts = extract.TranslatedAbstracts(article)

	refs := jats.NewRefMap()
	doc.Body, doc.BodyNested, doc.Paragraphs = extract.Body(article, refs, log)

	doc.Citations = extract.Citations(article)
	doc.Tables = extract.Tables(article)
	doc.Figures = extract.Figures(article)
	doc.Equations = extract.Equations(article)
	checkRefs(refs, doc, log)
	doc.Supplementary = extract.Supplementary(article)
	doc.Footnotes = extract.Footnotes(article)
	doc.Acknowledgements = extract.Acknowledgements(article)
	doc.Notes = extract.Notes(article)
	doc.Appendices = extract.Appendices(article)
	doc.Glossary = extract.Glossary(article)
	doc.Funding = extract.Funding(article)
	doc.Ethics = extract.Ethics(article)

	doc.Permissions = extract.Permissions(article)
	doc.CopyrightStatement = doc.Permissions["copyright_statement"]
	doc.LicenseType = doc.Permissions["license_type"]

	doc.VersionHistory = extract.VersionHistory(article)
	doc.CustomMeta = extract.CustomMeta(article)
	doc.LastUpdated = time.Now().UTC()
	return doc
}

// checkRefs compares the fragments lifted out of flowing text against
// what the dedicated extractors produced. Correlation is by id, so only
// kinds whose extracted form keeps the id take part. A fragment with no
// extracted counterpart was seen in the text but is absent from the
// artifact, which is worth a warning.
func checkRefs(refs *jats.RefMap, doc *domain.Document, log logrus.FieldLogger) {
	extracted := make(map[string]bool, len(doc.Figures)+len(doc.Equations))
	for _, f := range doc.Figures {
		extracted["fig:"+f.ID] = true
	}
	for _, eq := range doc.Equations {
		extracted["disp-formula:"+eq.ID] = true
	}
	for i := 0; i < refs.Len(); i++ {
		key := refs.Key(i)
		kind, _, _ := strings.Cut(key, ":")
		switch kind {
		case "fig", "disp-formula":
			if !extracted[key] {
				log.WithField("ref", key).Warn("in-text fragment has no extracted counterpart")
			}
		}
	}
}

func (b *Builder) log() logrus.FieldLogger {
	if b.Log != nil {
		return b.Log
	}
	return logrus.StandardLogger()
}
