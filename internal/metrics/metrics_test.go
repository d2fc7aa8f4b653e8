package metrics

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func TestInstrumentClientCountsRequests(t *testing.T) {
	base := &http.Client{Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusForbidden,
			Header:     make(http.Header),
			Body:       io.NopCloser(strings.NewReader(`{}`)),
			Request:    req,
		}, nil
	})}
	client := InstrumentClient(base)
	if client == base {
		t.Fatal("expected a copy of the client")
	}

	before := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("403", "get"))
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, "https://catalog.example.test/integration/v2/connectors/", nil)
	if err != nil {
		t.Fatalf("NewRequest error: %v", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Do error: %v", err)
	}
	resp.Body.Close()

	after := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("403", "get"))
	if after-before != 1 {
		t.Fatalf("request counter delta = %v, want 1", after-before)
	}
}

func TestStartServerDisabled(t *testing.T) {
	for _, addr := range []string{"", "off", "disabled"} {
		srv, errCh := StartServer(context.Background(), addr)
		if srv != nil || errCh != nil {
			t.Fatalf("StartServer(%q) started a listener", addr)
		}
	}
}
