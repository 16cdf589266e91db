// Package litctxp exports citations for PMC articles through the NCBI
// Literature Citation Exporter.
package litctxp

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/pmcharvest/pmcharvest/internal/apperr"
	"github.com/pmcharvest/pmcharvest/internal/ratelimit"
)

// DefaultBaseURL is the citation exporter endpoint for PMC records.
const DefaultBaseURL = "https://api.ncbi.nlm.nih.gov/lit/ctxp/v1/pmc/"

// Formats the exporter understands.
const (
	FormatMedline = "medline"
	FormatRIS     = "ris"
	FormatBibTeX  = "bibtex"
	FormatNBIB    = "nbib"
	FormatPubMed  = "pubmed"
)

var knownFormats = map[string]bool{
	FormatMedline: true,
	FormatRIS:     true,
	FormatBibTeX:  true,
	FormatNBIB:    true,
	FormatPubMed:  true,
}

// Client talks to the citation exporter.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	log        logrus.FieldLogger
}

// Option configures the exporter client.
type Option func(*Client)

func WithBaseURL(u string) Option            { return func(c *Client) { c.baseURL = u } }
func WithHTTPClient(hc *http.Client) Option  { return func(c *Client) { c.httpClient = hc } }
func WithLimiter(l *rate.Limiter) Option     { return func(c *Client) { c.limiter = l } }
func WithLogger(l logrus.FieldLogger) Option { return func(c *Client) { c.log = l } }

// NewClient builds a citation exporter client.
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

// Export returns the citation for one numeric PMCID in the requested
// format. Unknown formats are rejected before any network traffic.
func (c *Client) Export(ctx context.Context, pmcid, format string) ([]byte, error) {
	if !knownFormats[format] {
		return nil, apperr.New(apperr.UnsupportedInput, "litctxp.export",
			"unknown citation format %q", format)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, apperr.Wrap(apperr.Cancelled, "litctxp.export", err)
	}

	q := url.Values{}
	q.Set("format", format)
	q.Set("id", pmcid)
	reqURL := c.baseURL + "?" + q.Encode()
	c.log.WithFields(logrus.Fields{"pmcid": pmcid, "format": format}).Debug("litctxp request")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, apperr.Wrap(apperr.NetworkError, "litctxp.export", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, apperr.Wrap(apperr.Cancelled, "litctxp.export", ctx.Err())
		}
		return nil, apperr.Wrap(apperr.NetworkError, "litctxp.export", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		if resp.StatusCode == http.StatusNotFound {
			return nil, apperr.New(apperr.NotFound, "litctxp.export", "PMC%s: HTTP 404", pmcid)
		}
		e := apperr.New(apperr.NetworkError, "litctxp.export",
			"PMC%s: HTTP %d", pmcid, resp.StatusCode)
		e.Status = resp.StatusCode
		return nil, e
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.Wrap(apperr.NetworkError, "litctxp.export", err)
	}
	if len(data) == 0 {
		return nil, apperr.New(apperr.NotFound, "litctxp.export", "PMC%s: empty response", pmcid)
	}
	return data, nil
}
