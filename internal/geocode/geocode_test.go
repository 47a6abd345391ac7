package geocode

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestResolveParsesFirstHit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("q"); got != "Berlin" {
			t.Fatalf("unexpected query %q", got)
		}
		w.Write([]byte(`[{"lat":"52.52","lon":"13.405"}]`))
	}))
	defer srv.Close()

	c := NewNominatimClient(srv.URL)
	got, err := c.Resolve(context.Background(), "Berlin")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got.Lat != 52.52 || got.Lon != 13.405 {
		t.Fatalf("unexpected coord %+v", got)
	}
}

func TestResolveNoResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := NewNominatimClient(srv.URL)
	if _, err := c.Resolve(context.Background(), "nowhere"); err == nil {
		t.Fatal("expected error for empty result set")
	}
}
