// Package idconv maps PMIDs, DOIs, and versioned PMCIDs to canonical
// PMCIDs through the NCBI ID converter service.
package idconv

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/pmcharvest/pmcharvest/internal/apperr"
	"github.com/pmcharvest/pmcharvest/internal/ratelimit"
)

const (
	// DefaultBaseURL is the ID converter JSON endpoint.
	DefaultBaseURL = "https://pmc.ncbi.nlm.nih.gov/tools/idconv/v1.0/json/"

	// maxIDsPerRequest is the service's documented batch ceiling.
	maxIDsPerRequest = 200
)

// Record is one converted identifier. Status "error" means the service
// could not map the requested ID; ErrMsg says why.
type Record struct {
	PMCID       string `json:"pmcid"`
	PMID        string `json:"pmid"`
	DOI         string `json:"doi"`
	Status      string `json:"status"`
	ErrMsg      string `json:"errmsg"`
	RequestedID string `json:"requested-id"`
}

type response struct {
	Status  string   `json:"status"`
	Records []Record `json:"records"`
}

// Client talks to the ID converter.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tool       string
	limiter    *rate.Limiter
	emails     *ratelimit.EmailPool
	log        logrus.FieldLogger
}

// Option configures the ID converter client.
type Option func(*Client)

func WithBaseURL(u string) Option                 { return func(c *Client) { c.baseURL = u } }
func WithHTTPClient(hc *http.Client) Option       { return func(c *Client) { c.httpClient = hc } }
func WithTool(tool string) Option                 { return func(c *Client) { c.tool = tool } }
func WithLimiter(l *rate.Limiter) Option          { return func(c *Client) { c.limiter = l } }
func WithEmailPool(p *ratelimit.EmailPool) Option { return func(c *Client) { c.emails = p } }
func WithLogger(l logrus.FieldLogger) Option      { return func(c *Client) { c.log = l } }

// NewClient builds an ID converter client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		tool:    "pmcharvest",
		limiter: ratelimit.New(3),
		log:     logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Convert resolves the given identifiers, batching requests at the
// service limit. Results come back keyed by the requested identifier;
// IDs the service cannot map are absent from the result.
func (c *Client) Convert(ctx context.Context, ids ...string) (map[string]Record, error) {
	out := make(map[string]Record, len(ids))
	unique := dedupe(ids)
	for start := 0; start < len(unique); start += maxIDsPerRequest {
		end := start + maxIDsPerRequest
		if end > len(unique) {
			end = len(unique)
		}
		if err := c.convertChunk(ctx, unique[start:end], out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// PMCIDFor resolves a single PMID or DOI to its numeric PMCID.
func (c *Client) PMCIDFor(ctx context.Context, id string) (string, error) {
	records, err := c.Convert(ctx, id)
	if err != nil {
		return "", err
	}
	rec, ok := records[id]
	if !ok && len(records) == 1 {
		// Single-ID lookups may echo the canonical form instead of the
		// requested one.
		for _, r := range records {
			rec, ok = r, true
		}
	}
	if !ok || rec.PMCID == "" || rec.Status == "error" {
		msg := rec.ErrMsg
		if msg == "" {
			msg = "no PMCID mapping"
		}
		return "", apperr.New(apperr.NotFound, "idconv.resolve", "%s: %s", id, msg)
	}
	return strings.TrimPrefix(rec.PMCID, "PMC"), nil
}

func (c *Client) convertChunk(ctx context.Context, ids []string, out map[string]Record) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return apperr.Wrap(apperr.Cancelled, "idconv.convert", err)
	}

	q := url.Values{}
	q.Set("ids", strings.Join(ids, ","))
	q.Set("format", "json")
	q.Set("tool", c.tool)
	if c.emails != nil {
		if email := c.emails.Next(); email != "" {
			q.Set("email", email)
		}
	}

	reqURL := c.baseURL + "?" + q.Encode()
	c.log.WithField("ids", len(ids)).Debug("idconv request")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return apperr.Wrap(apperr.NetworkError, "idconv.convert", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return apperr.Wrap(apperr.Cancelled, "idconv.convert", ctx.Err())
		}
		return apperr.Wrap(apperr.NetworkError, "idconv.convert", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		e := apperr.New(apperr.NetworkError, "idconv.convert", "HTTP %d", resp.StatusCode)
		e.Status = resp.StatusCode
		return e
	}

	var body response
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return apperr.Wrap(apperr.ParseError, "idconv.convert", err)
	}
	for _, rec := range body.Records {
		key := rec.RequestedID
		if key == "" {
			// The service omits requested-id when it matches the
			// canonical form; fall back to whichever ID it echoes.
			switch {
			case rec.PMCID != "":
				key = rec.PMCID
			case rec.PMID != "":
				key = rec.PMID
			case rec.DOI != "":
				key = rec.DOI
			}
		}
		if key != "" {
			out[key] = rec
		}
	}
	return nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
