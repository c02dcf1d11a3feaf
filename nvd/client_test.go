package nvd

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/resilmesh/casm"
	"github.com/resilmesh/casm/pkg/cpe"
)

func testClient(t *testing.T, h http.HandlerFunc, apiKey string) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c := NewClient(srv.Client(), apiKey)
	c.Root = srv.URL
	c.MatchRoot = srv.URL
	return c
}

func TestByID(t *testing.T) {
	ctx := context.Background()
	t.Run("Malformed", func(t *testing.T) {
		c := NewClient(nil, "")
		_, err := c.ByID(ctx, "CVE-17-1")
		if !errors.Is(err, casm.ErrBadInput) {
			t.Errorf("got %v, want BadInput", err)
		}
	})
	t.Run("OK", func(t *testing.T) {
		c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
			if got := r.URL.Query().Get("cveId"); got != "CVE-2017-9999" {
				t.Errorf("cveId: got %q", got)
			}
			if got := r.Header.Get("apiKey"); got != "secret" {
				t.Errorf("apiKey header: got %q", got)
			}
			w.Write([]byte(`{"resultsPerPage":1,"startIndex":0,"totalResults":1,"vulnerabilities":[]}`))
		}, "secret")
		page, err := c.ByID(ctx, "CVE-2017-9999")
		if err != nil {
			t.Fatal(err)
		}
		if page.TotalResults != 1 {
			t.Errorf("totalResults: got %d", page.TotalResults)
		}
	})
}

func TestByCPE(t *testing.T) {
	ctx := context.Background()
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.RawQuery
		if want := "cpeName=" + "cpe%3A2.3%3Ao%3Aacme%3Arouter_fw%3A1.2.3"; !strings.Contains(q, want) {
			t.Errorf("query %q missing %q", q, want)
		}
		if !strings.Contains(q, "&isVulnerable&") {
			t.Errorf("query %q missing bare isVulnerable", q)
		}
		if !strings.Contains(q, "startIndex=2000") {
			t.Errorf("query %q missing startIndex", q)
		}
		if strings.Contains(q, "lastModStartDate") {
			t.Errorf("query %q has unexpected modification window", q)
		}
		w.Write([]byte(`{"resultsPerPage":0,"startIndex":2000,"totalResults":0,"vulnerabilities":[]}`))
	}, "")
	id := cpe.MustFromString("cpe:2.3:o:acme:router_fw:1.2.3")
	if _, err := c.ByCPE(ctx, id, time.Time{}, 2000); err != nil {
		t.Fatal(err)
	}
}

func TestByCPEModificationWindow(t *testing.T) {
	ctx := context.Background()
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.RawQuery
		if !strings.Contains(q, "lastModStartDate=2024-05-01T10%3A00%3A00%2B02%3A00") {
			t.Errorf("query %q missing escaped start date", q)
		}
		if !strings.Contains(q, "lastModEndDate=") {
			t.Errorf("query %q missing end date", q)
		}
		w.Write([]byte(`{"resultsPerPage":0,"startIndex":0,"totalResults":0,"vulnerabilities":[]}`))
	}, "")
	id := cpe.MustFromString("cpe:2.3:a:acme:lib:2.0")
	lastMod := time.Date(2024, 5, 1, 10, 0, 0, 0, time.FixedZone("CEST", 2*60*60))
	if _, err := c.ByCPE(ctx, id, lastMod, 0); err != nil {
		t.Fatal(err)
	}
}

func TestByDateRange(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)
	c := NewClient(nil, "")
	_, err := c.ByDateRange(ctx, start, start.Add(-time.Hour), 0)
	if !errors.Is(err, casm.ErrBadInput) {
		t.Errorf("got %v, want BadInput", err)
	}
}

func TestRateLimited(t *testing.T) {
	ctx := context.Background()
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}, "")
	_, err := c.ByID(ctx, "CVE-2017-9999")
	if !errors.Is(err, casm.ErrRateLimited) {
		t.Errorf("got %v, want RateLimited", err)
	}
}

func TestMatchData(t *testing.T) {
	ctx := context.Background()
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("matchCriteriaId"); got != "AAAA-BBBB" {
			t.Errorf("matchCriteriaId: got %q", got)
		}
		w.Write([]byte(`{"matchStrings":[{"matchString":{"matches":[{"cpeName":"cpe:2.3:a:acme:lib:2.4.1:*:*:*:*:*:*:*"}]}}]}`))
	}, "")
	page, err := c.MatchData(ctx, "AAAA-BBBB")
	if err != nil {
		t.Fatal(err)
	}
	got := page.MatchStrings[0].MatchString.Matches[0].CPEName
	if want := "cpe:2.3:a:acme:lib:2.4.1:*:*:*:*:*:*:*"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
