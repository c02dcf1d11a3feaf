package isim

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/resilmesh/casm"
)

func TestStoreAssets(t *testing.T) {
	var got casm.AssetList
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Path != "/assets" || req.Method != http.MethodPost {
			t.Errorf("unexpected request: %s %s", req.Method, req.URL.Path)
		}
		if ct := req.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type %q", ct)
		}
		if err := json.NewDecoder(req.Body).Decode(&got); err != nil {
			t.Error(err)
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := New(srv.URL, nil)
	list := &casm.AssetList{Hosts: []casm.Host{{IPAddress: "10.0.0.1"}}}
	if err := c.StoreAssets(context.Background(), list); err != nil {
		t.Fatal(err)
	}
	if len(got.Hosts) != 1 || got.Hosts[0].IPAddress != "10.0.0.1" {
		t.Errorf("payload: %+v", got)
	}
}

func TestErrorMapping(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		switch req.URL.Path {
		case "/reject":
			w.WriteHeader(http.StatusUnprocessableEntity)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	c := New(srv.URL, nil)
	err := c.post(context.Background(), "/reject", map[string]string{})
	if !errors.Is(err, casm.ErrBadInput) {
		t.Errorf("got %v, want bad input", err)
	}
	err = c.post(context.Background(), "/boom", map[string]string{})
	if !errors.Is(err, casm.ErrTransient) {
		t.Errorf("got %v, want transient", err)
	}
}

func TestIPs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if got := req.URL.Query().Get("offset"); got != "100" {
			t.Errorf("offset %q", got)
		}
		json.NewEncoder(w).Encode([]map[string]any{
			{"ip": map[string]any{"address": "10.0.0.1"}},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, nil)
	rows, err := c.IPs(context.Background(), 100, 100)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows: %+v", rows)
	}
}
