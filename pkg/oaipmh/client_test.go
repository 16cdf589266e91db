package oaipmh

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pmcharvest/pmcharvest/internal/apperr"
	"github.com/pmcharvest/pmcharvest/internal/ratelimit"
)

const pageOne = `<?xml version="1.0"?>
<OAI-PMH xmlns="http://www.openarchives.org/OAI/2.0/">
  <responseDate>2024-01-01T00:00:00Z</responseDate>
  <ListRecords>
    <record>
      <header>
        <identifier>oai:pubmedcentral.nih.gov:100</identifier>
        <datestamp>2024-01-01</datestamp>
      </header>
      <metadata><article><front/></article></metadata>
    </record>
    <record>
      <header>
        <identifier>oai:pubmedcentral.nih.gov:101</identifier>
        <datestamp>2024-01-02</datestamp>
      </header>
      <metadata><article><front/></article></metadata>
    </record>
    <resumptionToken completeListSize="3" cursor="0">token-abc</resumptionToken>
  </ListRecords>
</OAI-PMH>`

const pageTwo = `<?xml version="1.0"?>
<OAI-PMH xmlns="http://www.openarchives.org/OAI/2.0/">
  <responseDate>2024-01-01T00:00:05Z</responseDate>
  <ListRecords>
    <record>
      <header>
        <identifier>oai:pubmedcentral.nih.gov:102</identifier>
        <datestamp>2024-01-03</datestamp>
      </header>
      <metadata><article><front/></article></metadata>
    </record>
  </ListRecords>
</OAI-PMH>`

func TestListRecordsFollowsResumptionToken(t *testing.T) {
	var queries []map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := map[string]string{}
		for k := range r.URL.Query() {
			q[k] = r.URL.Query().Get(k)
		}
		queries = append(queries, q)
		if r.URL.Query().Get("resumptionToken") == "token-abc" {
			fmt.Fprint(w, pageTwo)
			return
		}
		fmt.Fprint(w, pageOne)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithLimiter(ratelimit.New(100)))
	it := c.ListRecords(ListParams{Set: "pmc-open", From: "2024-01-01"})

	var got []string
	ctx := context.Background()
	for it.Next(ctx) {
		got = append(got, it.Record().Header.PMCID())
	}
	require.NoError(t, it.Err())
	require.Equal(t, []string{"100", "101", "102"}, got)

	// Pages are fetched on demand: one request per page, not up front.
	require.Len(t, queries, 2)
	require.Equal(t, "pmc", queries[0]["metadataPrefix"])
	require.Equal(t, "pmc-open", queries[0]["set"])
	require.Equal(t, "2024-01-01", queries[0]["from"])
	// The second request carries only verb and token.
	require.Equal(t, map[string]string{
		"verb":            "ListRecords",
		"resumptionToken": "token-abc",
	}, queries[1])
}

func TestListRecordsLazyFirstPage(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		fmt.Fprint(w, pageTwo)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithLimiter(ratelimit.New(100)))
	it := c.ListRecords(ListParams{})
	require.Zero(t, calls)
	require.True(t, it.Next(context.Background()))
	require.Equal(t, 1, calls)
}

func TestListRecordsNoRecordsMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<OAI-PMH><responseDate>now</responseDate><error code="noRecordsMatch">nothing</error></OAI-PMH>`)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithLimiter(ratelimit.New(100)))
	it := c.ListRecords(ListParams{From: "2099-01-01"})
	require.False(t, it.Next(context.Background()))
	require.NoError(t, it.Err())
}

func TestListIdentifiers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "ListIdentifiers", r.URL.Query().Get("verb"))
		fmt.Fprint(w, `<OAI-PMH><ListIdentifiers>
			<header><identifier>oai:pubmedcentral.nih.gov:7</identifier><datestamp>2024-02-02</datestamp></header>
		</ListIdentifiers></OAI-PMH>`)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithLimiter(ratelimit.New(100)))
	it := c.ListIdentifiers(ListParams{})
	require.True(t, it.Next(context.Background()))
	require.Equal(t, "7", it.Header().PMCID())
	require.False(t, it.Next(context.Background()))
	require.NoError(t, it.Err())
}

func TestGetRecord(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "oai:pubmedcentral.nih.gov:7181753", r.URL.Query().Get("identifier"))
		fmt.Fprint(w, `<OAI-PMH><GetRecord><record>
			<header><identifier>oai:pubmedcentral.nih.gov:7181753</identifier></header>
			<metadata><article><front/></article></metadata>
		</record></GetRecord></OAI-PMH>`)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithLimiter(ratelimit.New(100)))
	rec, err := c.GetRecord(context.Background(), "7181753", "")
	require.NoError(t, err)
	require.Equal(t, "7181753", rec.Header.PMCID())
	require.Contains(t, string(rec.Metadata.Inner), "<article>")
}

func TestGetRecordMissing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<OAI-PMH><error code="idDoesNotExist">no such record</error></OAI-PMH>`)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithLimiter(ratelimit.New(100)))
	_, err := c.GetRecord(context.Background(), "999999999", "")
	require.True(t, apperr.Is(err, apperr.NotFound))
}

func TestIdentify(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<OAI-PMH><Identify>
			<repositoryName>PubMed Central</repositoryName>
			<protocolVersion>2.0</protocolVersion>
			<earliestDatestamp>1999-01-01</earliestDatestamp>
		</Identify></OAI-PMH>`)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithLimiter(ratelimit.New(100)))
	id, err := c.Identify(context.Background())
	require.NoError(t, err)
	require.Equal(t, "PubMed Central", id.RepositoryName)
	require.Equal(t, "2.0", id.ProtocolVersion)
}
