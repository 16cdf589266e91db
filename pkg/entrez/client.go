// Package entrez fetches full-text PMC article XML through the NCBI
// E-utilities efetch endpoint.
package entrez

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/pmcharvest/pmcharvest/internal/apperr"
	"github.com/pmcharvest/pmcharvest/internal/ratelimit"
)

const (
	// DefaultBaseURL is the NCBI efetch endpoint.
	DefaultBaseURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils/efetch.fcgi"

	// DefaultTool identifies this client to NCBI.
	DefaultTool = "pmcharvest"
)

// Client talks to the efetch endpoint. All requests pass through the
// shared limiter, so one Client can back many concurrent workers.
type Client struct {
	baseURL    string
	httpClient *http.Client
	apiKey     string
	tool       string
	limiter    *rate.Limiter
	emails     *ratelimit.EmailPool
	log        logrus.FieldLogger
	cacheDir   string
}

// Option configures the efetch client.
type Option func(*Client)

func WithBaseURL(u string) Option                 { return func(c *Client) { c.baseURL = u } }
func WithHTTPClient(hc *http.Client) Option       { return func(c *Client) { c.httpClient = hc } }
func WithAPIKey(key string) Option                { return func(c *Client) { c.apiKey = key } }
func WithTool(tool string) Option                 { return func(c *Client) { c.tool = tool } }
func WithLimiter(l *rate.Limiter) Option          { return func(c *Client) { c.limiter = l } }
func WithEmailPool(p *ratelimit.EmailPool) Option { return func(c *Client) { c.emails = p } }
func WithLogger(l logrus.FieldLogger) Option      { return func(c *Client) { c.log = l } }

// WithCacheDir enables a read-through byte cache keyed by PMCID. Cached
// articles bypass both the network and the limiter.
func WithCacheDir(dir string) Option { return func(c *Client) { c.cacheDir = dir } }

// NewClient builds an efetch client. Without WithLimiter it runs at the
// unauthenticated NCBI rate of 3 requests per second.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		tool:    DefaultTool,
		limiter: ratelimit.New(3),
		log:     logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchArticleXML returns the full JATS XML for one numeric PMCID.
func (c *Client) FetchArticleXML(ctx context.Context, pmcid string) ([]byte, error) {
	if data, ok := c.cacheRead(pmcid); ok {
		c.log.WithField("pmcid", pmcid).Debug("cache hit")
		return data, nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, apperr.Wrap(apperr.Cancelled, "entrez.fetch", err)
	}

	q := url.Values{}
	q.Set("db", "pmc")
	q.Set("id", pmcid)
	q.Set("rettype", "full")
	q.Set("retmode", "xml")
	q.Set("tool", c.tool)
	if c.emails != nil {
		if email := c.emails.Next(); email != "" {
			q.Set("email", email)
		}
	}
	if c.apiKey != "" {
		q.Set("api_key", c.apiKey)
	}

	reqURL := c.baseURL + "?" + q.Encode()
	c.log.WithField("pmcid", pmcid).Debug("efetch request")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, apperr.Wrap(apperr.NetworkError, "entrez.fetch", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, apperr.Wrap(apperr.Cancelled, "entrez.fetch", ctx.Err())
		}
		return nil, apperr.Wrap(apperr.NetworkError, "entrez.fetch", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		if resp.StatusCode == http.StatusNotFound {
			return nil, apperr.New(apperr.NotFound, "entrez.fetch", "PMC%s: HTTP 404", pmcid)
		}
		e := apperr.New(apperr.NetworkError, "entrez.fetch", "PMC%s: HTTP %d", pmcid, resp.StatusCode)
		e.Status = resp.StatusCode
		return nil, e
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.Wrap(apperr.NetworkError, "entrez.fetch", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, apperr.New(apperr.NotFound, "entrez.fetch", "PMC%s: empty response", pmcid)
	}
	// efetch reports unknown IDs inside a 200 body.
	if bytes.Contains(data, []byte("<ERROR>")) {
		return nil, apperr.New(apperr.NotFound, "entrez.fetch", "PMC%s: %s", pmcid, errorLine(data))
	}

	c.cacheWrite(pmcid, data)
	return data, nil
}

func errorLine(data []byte) string {
	start := bytes.Index(data, []byte("<ERROR>"))
	end := bytes.Index(data, []byte("</ERROR>"))
	if start < 0 || end < start {
		return "efetch error"
	}
	return string(bytes.TrimSpace(data[start+len("<ERROR>") : end]))
}

func (c *Client) cachePath(pmcid string) string {
	return filepath.Join(c.cacheDir, fmt.Sprintf("PMC%s.xml", pmcid))
}

func (c *Client) cacheRead(pmcid string) ([]byte, bool) {
	if c.cacheDir == "" {
		return nil, false
	}
	data, err := os.ReadFile(c.cachePath(pmcid))
	if err != nil || len(data) == 0 {
		return nil, false
	}
	return data, true
}

func (c *Client) cacheWrite(pmcid string, data []byte) {
	if c.cacheDir == "" {
		return
	}
	if err := os.MkdirAll(c.cacheDir, 0o755); err != nil {
		c.log.WithError(err).Warn("cache dir unavailable")
		return
	}
	if err := os.WriteFile(c.cachePath(pmcid), data, 0o644); err != nil {
		c.log.WithError(err).Warn("cache write failed")
	}
}
