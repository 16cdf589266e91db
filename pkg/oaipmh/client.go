// Package oaipmh implements an OAI-PMH v2.0 client for the PMC
// metadata harvesting endpoint.
// Reference: https://www.ncbi.nlm.nih.gov/pmc/tools/oai/
package oaipmh

import (
	"context"
	"encoding/xml"
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
	// DefaultBaseURL is the PMC OAI-PMH v2.0 endpoint.
	DefaultBaseURL = "https://www.ncbi.nlm.nih.gov/pmc/oai/oai.cgi"

	// MetadataPrefixPMC returns full JATS article metadata.
	MetadataPrefixPMC = "pmc"

	// MetadataPrefixDC is simple Dublin Core.
	MetadataPrefixDC = "oai_dc"
)

// Client interacts with an OAI-PMH endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	log        logrus.FieldLogger
}

// Option configures the OAI-PMH client.
type Option func(*Client)

func WithBaseURL(u string) Option            { return func(c *Client) { c.baseURL = u } }
func WithHTTPClient(hc *http.Client) Option  { return func(c *Client) { c.httpClient = hc } }
func WithLimiter(l *rate.Limiter) Option     { return func(c *Client) { c.limiter = l } }
func WithLogger(l logrus.FieldLogger) Option { return func(c *Client) { c.log = l } }

// NewClient creates a new OAI-PMH client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: 120 * time.Second, // list responses can be large
		},
		limiter: ratelimit.New(3),
		log:     logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ---------- XML response types ----------

type oaiResponse struct {
	XMLName         xml.Name        `xml:"OAI-PMH"`
	ResponseDate    string          `xml:"responseDate"`
	Error           *oaiError       `xml:"error"`
	Identify        *Identity       `xml:"Identify"`
	GetRecord       *getRecordRes   `xml:"GetRecord"`
	ListSets        *listSetsRes    `xml:"ListSets"`
	ListIdentifiers *listHeadersRes `xml:"ListIdentifiers"`
	ListRecords     *listRecordsRes `xml:"ListRecords"`
}

type oaiError struct {
	Code    string `xml:"code,attr"`
	Message string `xml:",chardata"`
}

type getRecordRes struct {
	Record Record `xml:"record"`
}

type listSetsRes struct {
	Sets            []Set            `xml:"set"`
	ResumptionToken *resumptionToken `xml:"resumptionToken"`
}

type listHeadersRes struct {
	Headers         []Header         `xml:"header"`
	ResumptionToken *resumptionToken `xml:"resumptionToken"`
}

type listRecordsRes struct {
	Records         []Record         `xml:"record"`
	ResumptionToken *resumptionToken `xml:"resumptionToken"`
}

type resumptionToken struct {
	Token        string `xml:",chardata"`
	CompleteSize string `xml:"completeListSize,attr"`
	Cursor       string `xml:"cursor,attr"`
}

// Identity describes the repository.
type Identity struct {
	RepositoryName    string `xml:"repositoryName"`
	BaseURL           string `xml:"baseURL"`
	ProtocolVersion   string `xml:"protocolVersion"`
	AdminEmail        string `xml:"adminEmail"`
	EarliestDatestamp string `xml:"earliestDatestamp"`
	DeletedRecord     string `xml:"deletedRecord"`
	Granularity       string `xml:"granularity"`
}

// Set is one harvestable subset of the repository.
type Set struct {
	Spec string `xml:"setSpec"`
	Name string `xml:"setName"`
}

// Header identifies one record without its metadata payload.
type Header struct {
	Identifier string   `xml:"identifier"`
	Datestamp  string   `xml:"datestamp"`
	SetSpec    []string `xml:"setSpec"`
	Status     string   `xml:"status,attr"` // "deleted" if removed
}

// Record is one harvested record. Metadata holds the payload verbatim;
// for the pmc prefix it is the JATS article element.
type Record struct {
	Header   Header `xml:"header"`
	Metadata struct {
		Inner []byte `xml:",innerxml"`
	} `xml:"metadata"`
}

// PMCID extracts the numeric PMCID from an OAI identifier such as
// oai:pubmedcentral.nih.gov:7181753.
func (h Header) PMCID() string {
	parts := strings.SplitN(h.Identifier, ":", 3)
	if len(parts) == 3 {
		return parts[2]
	}
	return ""
}

// ---------- Public API ----------

// ListParams are selective-harvesting parameters shared by
// ListIdentifiers and ListRecords.
type ListParams struct {
	MetadataPrefix string // defaults to "pmc"
	Set            string // optional, e.g. "pmc-open"
	From           string // optional datestamp YYYY-MM-DD
	Until          string // optional datestamp YYYY-MM-DD
}

// Identify fetches the repository description.
func (c *Client) Identify(ctx context.Context) (*Identity, error) {
	resp, err := c.request(ctx, url.Values{"verb": {"Identify"}})
	if err != nil {
		return nil, err
	}
	if resp.Identify == nil {
		return nil, apperr.New(apperr.ParseError, "oaipmh.identify", "response has no Identify element")
	}
	return resp.Identify, nil
}

// GetRecord fetches one record by numeric PMCID.
func (c *Client) GetRecord(ctx context.Context, pmcid, metadataPrefix string) (*Record, error) {
	if metadataPrefix == "" {
		metadataPrefix = MetadataPrefixPMC
	}
	q := url.Values{}
	q.Set("verb", "GetRecord")
	q.Set("identifier", "oai:pubmedcentral.nih.gov:"+pmcid)
	q.Set("metadataPrefix", metadataPrefix)
	resp, err := c.request(ctx, q)
	if err != nil {
		return nil, err
	}
	if resp.GetRecord == nil {
		return nil, apperr.New(apperr.NotFound, "oaipmh.getrecord", "PMC%s: no record", pmcid)
	}
	return &resp.GetRecord.Record, nil
}

// ListSets fetches every set the repository offers.
func (c *Client) ListSets(ctx context.Context) ([]Set, error) {
	var out []Set
	token := ""
	for {
		q := url.Values{"verb": {"ListSets"}}
		if token != "" {
			q.Set("resumptionToken", token)
		}
		resp, err := c.request(ctx, q)
		if err != nil {
			if apperr.Is(err, apperr.NotFound) {
				return out, nil
			}
			return nil, err
		}
		if resp.ListSets == nil {
			return out, nil
		}
		out = append(out, resp.ListSets.Sets...)
		token = tokenOf(resp.ListSets.ResumptionToken)
		if token == "" {
			return out, nil
		}
	}
}

// ListIdentifiers starts a lazy traversal of record headers matching
// params. Pages are fetched on demand as the iterator advances.
func (c *Client) ListIdentifiers(params ListParams) *HeaderIterator {
	return &HeaderIterator{client: c, params: params}
}

// ListRecords starts a lazy traversal of full records matching params.
func (c *Client) ListRecords(params ListParams) *RecordIterator {
	return &RecordIterator{client: c, params: params}
}

// ---------- Iterators ----------

// RecordIterator walks ListRecords pages, following resumption tokens.
// Use like bufio.Scanner: for it.Next(ctx) { r := it.Record() }.
type RecordIterator struct {
	client  *Client
	params  ListParams
	page    []Record
	pos     int
	token   string
	started bool
	done    bool
	err     error
}

// Next advances to the next record, fetching the next page when the
// current one is exhausted. It returns false at the end of the result
// set or on error.
func (it *RecordIterator) Next(ctx context.Context) bool {
	if it.err != nil {
		return false
	}
	if it.pos < len(it.page) {
		it.pos++
		return true
	}
	for {
		if it.started && it.done {
			return false
		}
		q, ok := listQuery("ListRecords", it.params, it.token, it.started)
		if !ok {
			it.err = apperr.New(apperr.ConfigError, "oaipmh.list", "metadataPrefix is required")
			return false
		}
		it.started = true
		resp, err := it.client.request(ctx, q)
		if err != nil {
			if apperr.Is(err, apperr.NotFound) {
				it.done = true
				return false
			}
			it.err = err
			return false
		}
		if resp.ListRecords == nil {
			it.done = true
			return false
		}
		it.page = resp.ListRecords.Records
		it.pos = 0
		it.token = tokenOf(resp.ListRecords.ResumptionToken)
		it.done = it.token == ""
		if len(it.page) > 0 {
			it.pos = 1
			return true
		}
		if it.done {
			return false
		}
	}
}

// Record returns the record Next advanced to.
func (it *RecordIterator) Record() Record { return it.page[it.pos-1] }

// Err reports the first error the traversal hit, if any.
func (it *RecordIterator) Err() error { return it.err }

// HeaderIterator walks ListIdentifiers pages the same way
// RecordIterator walks ListRecords.
type HeaderIterator struct {
	client  *Client
	params  ListParams
	page    []Header
	pos     int
	token   string
	started bool
	done    bool
	err     error
}

func (it *HeaderIterator) Next(ctx context.Context) bool {
	if it.err != nil {
		return false
	}
	if it.pos < len(it.page) {
		it.pos++
		return true
	}
	for {
		if it.started && it.done {
			return false
		}
		q, ok := listQuery("ListIdentifiers", it.params, it.token, it.started)
		if !ok {
			it.err = apperr.New(apperr.ConfigError, "oaipmh.list", "metadataPrefix is required")
			return false
		}
		it.started = true
		resp, err := it.client.request(ctx, q)
		if err != nil {
			if apperr.Is(err, apperr.NotFound) {
				it.done = true
				return false
			}
			it.err = err
			return false
		}
		if resp.ListIdentifiers == nil {
			it.done = true
			return false
		}
		it.page = resp.ListIdentifiers.Headers
		it.pos = 0
		it.token = tokenOf(resp.ListIdentifiers.ResumptionToken)
		it.done = it.token == ""
		if len(it.page) > 0 {
			it.pos = 1
			return true
		}
		if it.done {
			return false
		}
	}
}

// Header returns the header Next advanced to.
func (it *HeaderIterator) Header() Header { return it.page[it.pos-1] }

// Err reports the first error the traversal hit, if any.
func (it *HeaderIterator) Err() error { return it.err }

// ---------- Internal helpers ----------

// listQuery builds the query for one list page. A resumption token is
// exclusive: once harvesting has started, only verb + token may appear.
func listQuery(verb string, params ListParams, token string, started bool) (url.Values, bool) {
	q := url.Values{}
	q.Set("verb", verb)
	if started {
		q.Set("resumptionToken", token)
		return q, true
	}
	prefix := params.MetadataPrefix
	if prefix == "" {
		prefix = MetadataPrefixPMC
	}
	q.Set("metadataPrefix", prefix)
	if params.Set != "" {
		q.Set("set", params.Set)
	}
	if params.From != "" {
		q.Set("from", params.From)
	}
	if params.Until != "" {
		q.Set("until", params.Until)
	}
	return q, true
}

func tokenOf(rt *resumptionToken) string {
	if rt == nil {
		return ""
	}
	return strings.TrimSpace(rt.Token)
}

func (c *Client) request(ctx context.Context, q url.Values) (*oaiResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, apperr.Wrap(apperr.Cancelled, "oaipmh.request", err)
	}

	reqURL := c.baseURL + "?" + q.Encode()
	c.log.WithField("verb", q.Get("verb")).Debug("oai-pmh request")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, apperr.Wrap(apperr.NetworkError, "oaipmh.request", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, apperr.Wrap(apperr.Cancelled, "oaipmh.request", ctx.Err())
		}
		return nil, apperr.Wrap(apperr.NetworkError, "oaipmh.request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		e := apperr.New(apperr.NetworkError, "oaipmh.request", "HTTP %d", resp.StatusCode)
		e.Status = resp.StatusCode
		return nil, e
	}

	var body oaiResponse
	if err := xml.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, apperr.Wrap(apperr.ParseError, "oaipmh.request", err)
	}
	if body.Error != nil {
		switch body.Error.Code {
		case "noRecordsMatch", "idDoesNotExist", "noSetHierarchy":
			return nil, apperr.New(apperr.NotFound, "oaipmh.request", "%s: %s",
				body.Error.Code, strings.TrimSpace(body.Error.Message))
		case "badResumptionToken", "badArgument", "badVerb", "cannotDisseminateFormat":
			return nil, apperr.New(apperr.ValidationError, "oaipmh.request", "%s: %s",
				body.Error.Code, strings.TrimSpace(body.Error.Message))
		default:
			return nil, apperr.New(apperr.NetworkError, "oaipmh.request", "%s: %s",
				body.Error.Code, strings.TrimSpace(body.Error.Message))
		}
	}
	return &body, nil
}
