// Package bioc retrieves PMC open-access articles in BioC form, a
// passage-oriented format used by text-mining pipelines.
package bioc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/pmcharvest/pmcharvest/internal/apperr"
	"github.com/pmcharvest/pmcharvest/internal/ratelimit"
)

// DefaultBaseURL is the BioC converter endpoint for PMC.
const DefaultBaseURL = "https://www.ncbi.nlm.nih.gov/research/bionlp/RESTful/pmcoa.cgi"

// Collection is the top-level BioC container.
type Collection struct {
	Source    string     `json:"source"`
	Date      string     `json:"date"`
	Key       string     `json:"key"`
	Documents []Document `json:"documents"`
}

// Document is one article in a collection.
type Document struct {
	ID       string            `json:"id"`
	Infons   map[string]string `json:"infons"`
	Passages []Passage         `json:"passages"`
}

// Passage is one contiguous span of article text with its metadata.
type Passage struct {
	Offset int               `json:"offset"`
	Infons map[string]string `json:"infons"`
	Text   string            `json:"text"`
}

// Client talks to the BioC converter.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	log        logrus.FieldLogger
}

// Option configures the BioC client.
type Option func(*Client)

func WithBaseURL(u string) Option            { return func(c *Client) { c.baseURL = u } }
func WithHTTPClient(hc *http.Client) Option  { return func(c *Client) { c.httpClient = hc } }
func WithLimiter(l *rate.Limiter) Option     { return func(c *Client) { c.limiter = l } }
func WithLogger(l logrus.FieldLogger) Option { return func(c *Client) { c.log = l } }

// NewClient builds a BioC client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		limiter: ratelimit.New(3),
		log:     logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchJSON returns the BioC collection for one numeric PMCID with
// unicode encoding. The service answers either a bare collection or a
// one-element array of collections depending on deployment; both are
// accepted.
func (c *Client) FetchJSON(ctx context.Context, pmcid string) (*Collection, error) {
	data, err := c.get(ctx, fmt.Sprintf("%s/BioC_json/PMC%s/unicode", c.baseURL, pmcid), pmcid)
	if err != nil {
		return nil, err
	}
	var col Collection
	if err := json.Unmarshal(data, &col); err == nil && len(col.Documents) > 0 {
		return &col, nil
	}
	var cols []Collection
	if err := json.Unmarshal(data, &cols); err != nil {
		return nil, apperr.Wrap(apperr.ParseError, "bioc.fetch", err)
	}
	if len(cols) == 0 {
		return nil, apperr.New(apperr.NotFound, "bioc.fetch", "PMC%s: empty BioC response", pmcid)
	}
	return &cols[0], nil
}

// FetchXML returns the raw BioC XML bytes for one numeric PMCID.
func (c *Client) FetchXML(ctx context.Context, pmcid string) ([]byte, error) {
	return c.get(ctx, fmt.Sprintf("%s/BioC_xml/PMC%s/unicode", c.baseURL, pmcid), pmcid)
}

func (c *Client) get(ctx context.Context, reqURL, pmcid string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, apperr.Wrap(apperr.Cancelled, "bioc.fetch", err)
	}
	c.log.WithField("pmcid", pmcid).Debug("bioc request")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, apperr.Wrap(apperr.NetworkError, "bioc.fetch", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, apperr.Wrap(apperr.Cancelled, "bioc.fetch", ctx.Err())
		}
		return nil, apperr.Wrap(apperr.NetworkError, "bioc.fetch", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		if resp.StatusCode == http.StatusNotFound {
			return nil, apperr.New(apperr.NotFound, "bioc.fetch", "PMC%s: HTTP 404", pmcid)
		}
		e := apperr.New(apperr.NetworkError, "bioc.fetch", "PMC%s: HTTP %d", pmcid, resp.StatusCode)
		e.Status = resp.StatusCode
		return nil, e
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.Wrap(apperr.NetworkError, "bioc.fetch", err)
	}
	if len(data) == 0 {
		return nil, apperr.New(apperr.NotFound, "bioc.fetch", "PMC%s: empty response", pmcid)
	}
	return data, nil
}
