// Package oa queries the PMC Open Access web service for package
// download links (tgz and PDF renditions of OA articles).
package oa

import (
	"context"
	"encoding/xml"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/pmcharvest/pmcharvest/internal/apperr"
	"github.com/pmcharvest/pmcharvest/internal/ratelimit"
)

// DefaultBaseURL is the OA service endpoint.
const DefaultBaseURL = "https://www.ncbi.nlm.nih.gov/pmc/utils/oa/oa.fcgi"

type oaResponse struct {
	XMLName xml.Name `xml:"OA"`
	Error   *oaError `xml:"error"`
	Records []Record `xml:"records>record"`
}

type oaError struct {
	Code    string `xml:"code,attr"`
	Message string `xml:",chardata"`
}

// Record describes one OA article and its downloadable renditions.
type Record struct {
	ID           string `xml:"id,attr"`
	Citation     string `xml:"citation,attr"`
	License      string `xml:"license,attr"`
	RetractedYN  string `xml:"retracted,attr"`
	LastModified string `xml:"last-modified,attr"`
	Links        []Link `xml:"link"`
}

// Link is one rendition download link.
type Link struct {
	Format  string `xml:"format,attr"`
	Updated string `xml:"updated,attr"`
	Href    string `xml:"href,attr"`
}

// Client talks to the OA service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	log        logrus.FieldLogger
}

// Option configures the OA client.
type Option func(*Client)

func WithBaseURL(u string) Option            { return func(c *Client) { c.baseURL = u } }
func WithHTTPClient(hc *http.Client) Option  { return func(c *Client) { c.httpClient = hc } }
func WithLimiter(l *rate.Limiter) Option     { return func(c *Client) { c.limiter = l } }
func WithLogger(l logrus.FieldLogger) Option { return func(c *Client) { c.log = l } }

// NewClient builds an OA service client.
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

// Lookup returns the OA record for one numeric PMCID. Articles outside
// the OA subset and unknown IDs both come back as NotFound.
func (c *Client) Lookup(ctx context.Context, pmcid string) (*Record, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, apperr.Wrap(apperr.Cancelled, "oa.lookup", err)
	}

	q := url.Values{}
	q.Set("id", "PMC"+pmcid)
	reqURL := c.baseURL + "?" + q.Encode()
	c.log.WithField("pmcid", pmcid).Debug("oa request")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, apperr.Wrap(apperr.NetworkError, "oa.lookup", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, apperr.Wrap(apperr.Cancelled, "oa.lookup", ctx.Err())
		}
		return nil, apperr.Wrap(apperr.NetworkError, "oa.lookup", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		e := apperr.New(apperr.NetworkError, "oa.lookup", "PMC%s: HTTP %d", pmcid, resp.StatusCode)
		e.Status = resp.StatusCode
		return nil, e
	}

	var body oaResponse
	if err := xml.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, apperr.Wrap(apperr.ParseError, "oa.lookup", err)
	}
	if body.Error != nil {
		switch body.Error.Code {
		case "idDoesNotExist", "idIsNotOpenAccess":
			return nil, apperr.New(apperr.NotFound, "oa.lookup", "PMC%s: %s", pmcid, body.Error.Code)
		default:
			return nil, apperr.New(apperr.NetworkError, "oa.lookup", "PMC%s: %s %s",
				pmcid, body.Error.Code, body.Error.Message)
		}
	}
	if len(body.Records) == 0 {
		return nil, apperr.New(apperr.NotFound, "oa.lookup", "PMC%s: no OA record", pmcid)
	}
	return &body.Records[0], nil
}

// PackageHref returns the tgz package link for one numeric PMCID.
func (c *Client) PackageHref(ctx context.Context, pmcid string) (string, error) {
	rec, err := c.Lookup(ctx, pmcid)
	if err != nil {
		return "", err
	}
	for _, l := range rec.Links {
		if l.Format == "tgz" {
			return l.Href, nil
		}
	}
	if len(rec.Links) > 0 {
		return rec.Links[0].Href, nil
	}
	return "", apperr.New(apperr.NotFound, "oa.lookup", "PMC%s: record has no links", pmcid)
}
