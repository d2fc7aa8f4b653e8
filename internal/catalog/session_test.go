package catalog

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func jsonResponse(req *http.Request, status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Status:     http.StatusText(status),
		Header:     make(http.Header),
		Body:       io.NopCloser(strings.NewReader(body)),
		Request:    req,
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		token string
		host  string
		field string
	}{
		{name: "empty token", token: "  ", host: "https://catalog.example.test", field: "access token"},
		{name: "empty host", token: "tok", host: "", field: "host"},
		{name: "missing scheme", token: "tok", host: "catalog.example.test", field: "host"},
		{name: "unsupported scheme", token: "tok", host: "ftp://catalog.example.test", field: "host"},
		{name: "missing authority", token: "tok", host: "https:///path", field: "host"},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := New(tc.token, nil, tc.host)
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("New() error = %v, want *ConfigError", err)
			}
			if cfgErr.Field != tc.field {
				t.Fatalf("Field = %q, want %q", cfgErr.Field, tc.field)
			}
		})
	}
}

func TestResolveURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		host string
		path string
		want string
	}{
		{host: "https://catalog.example.test", path: "/integration/v2/connectors/", want: "https://catalog.example.test/integration/v2/connectors/"},
		{host: "https://catalog.example.test/", path: "/integration/v2/connectors/", want: "https://catalog.example.test/integration/v2/connectors/"},
		{host: "https://catalog.example.test/api", path: "/integration/v2/connectors/", want: "https://catalog.example.test/integration/v2/connectors/"},
		{host: "https://catalog.example.test//api//", path: "v2/items", want: "https://catalog.example.test/api/v2/items"},
		{host: "https://catalog.example.test/api", path: "v2/items?limit=5", want: "https://catalog.example.test/api/v2/items?limit=5"},
		{host: "http://localhost:8000", path: "", want: "http://localhost:8000"},
		{host: "https://catalog.example.test/api", path: "v2/a%2Fb/items", want: "https://catalog.example.test/api/v2/a%2Fb/items"},
		{host: "https://catalog.example.test/api", path: "/v2/a%2Fb/", want: "https://catalog.example.test/v2/a%2Fb/"},
	}
	for _, tc := range tests {
		s, err := New("tok", nil, tc.host)
		if err != nil {
			t.Fatalf("New(%q) error = %v", tc.host, err)
		}
		got, err := s.ResolveURL(tc.path)
		if err != nil {
			t.Fatalf("ResolveURL(%q) error = %v", tc.path, err)
		}
		if got != tc.want {
			t.Fatalf("ResolveURL(%q, %q) = %q, want %q", tc.host, tc.path, got, tc.want)
		}
	}
}

func TestResolveURLRejectsAbsolutePath(t *testing.T) {
	t.Parallel()

	s, err := New("tok", nil, "https://catalog.example.test")
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if _, err := s.ResolveURL("https://elsewhere.test/x"); err == nil {
		t.Fatal("expected error for absolute URL")
	}
}

func TestGetSendsAuthAndAcceptHeaders(t *testing.T) {
	t.Parallel()

	var gotAuth, gotAccept, gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotAccept = r.Header.Get("Accept")
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	s, err := New("secret-token", server.Client(), server.URL)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	raw, err := s.Get(context.Background(), ConnectorsPath)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if string(raw) != "[]" {
		t.Fatalf("body = %s, want []", raw)
	}
	if gotAuth != "Bearer secret-token" {
		t.Fatalf("Authorization = %q", gotAuth)
	}
	if gotAccept != "application/json" {
		t.Fatalf("Accept = %q", gotAccept)
	}
	if gotPath != ConnectorsPath {
		t.Fatalf("path = %q, want %q", gotPath, ConnectorsPath)
	}
}

func TestGetUsesCustomTokenHeader(t *testing.T) {
	t.Parallel()

	client := &http.Client{Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		if got := req.Header.Get("TOKEN"); got != "secret-token" {
			t.Errorf("TOKEN header = %q", got)
		}
		if got := req.Header.Get("Authorization"); got != "" {
			t.Errorf("Authorization header = %q, want empty", got)
		}
		return jsonResponse(req, http.StatusOK, `[]`), nil
	})}

	s, err := New("secret-token", client, "https://catalog.example.test", WithTokenHeader("token"))
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if _, err := s.Get(context.Background(), ConnectorsPath); err != nil {
		t.Fatalf("Get error: %v", err)
	}
}

func TestGetReturnsHTTPErrorWithBody(t *testing.T) {
	t.Parallel()

	const body = `{"detail":"Authentication credentials were not provided.","code":"403000"}`
	client := &http.Client{Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		return jsonResponse(req, http.StatusForbidden, body), nil
	})}

	s, err := New("secret-token", client, "https://catalog.example.test")
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	_, err = s.Get(context.Background(), ConnectorsPath)

	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("Get error = %v, want *HTTPError", err)
	}
	if httpErr.StatusCode != http.StatusForbidden {
		t.Fatalf("StatusCode = %d, want 403", httpErr.StatusCode)
	}
	if string(httpErr.Body) != body {
		t.Fatalf("Body = %s", httpErr.Body)
	}
	if httpErr.Response == nil || httpErr.Response.StatusCode != http.StatusForbidden {
		t.Fatalf("Response not preserved: %#v", httpErr.Response)
	}
	replay, err := io.ReadAll(httpErr.Response.Body)
	if err != nil || string(replay) != body {
		t.Fatalf("Response.Body replay = %q, %v", replay, err)
	}
	if strings.Contains(httpErr.Error(), "secret-token") {
		t.Fatalf("error message leaks token: %s", httpErr.Error())
	}
}

func TestGetReturnsDecodeError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		body      string
		wantEmpty bool
	}{
		{name: "empty", body: "", wantEmpty: true},
		{name: "whitespace", body: " \n", wantEmpty: true},
		{name: "invalid", body: `[{"id":`},
		{name: "html", body: `<html></html>`},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			client := &http.Client{Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
				return jsonResponse(req, http.StatusOK, tc.body), nil
			})}
			s, err := New("tok", client, "https://catalog.example.test")
			if err != nil {
				t.Fatalf("New error: %v", err)
			}
			_, err = s.Get(context.Background(), ConnectorsPath)
			var decodeErr *DecodeError
			if !errors.As(err, &decodeErr) {
				t.Fatalf("Get error = %v, want *DecodeError", err)
			}
			if got := errors.Is(err, ErrEmptyBody); got != tc.wantEmpty {
				t.Fatalf("errors.Is(ErrEmptyBody) = %v, want %v", got, tc.wantEmpty)
			}
		})
	}
}

func TestGetReturnsTransportErrorOnConnectionRefused(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	host := server.URL
	server.Close()

	s, err := New("tok", &http.Client{}, host)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	_, err = s.Get(context.Background(), ConnectorsPath)

	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("Get error = %v, want *TransportError", err)
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		t.Fatalf("unexpected *HTTPError: %v", err)
	}
}

func TestGetReturnsTransportErrorOnCancel(t *testing.T) {
	t.Parallel()

	client := &http.Client{Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		<-req.Context().Done()
		return nil, req.Context().Err()
	})}
	s, err := New("tok", client, "https://catalog.example.test")
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Get(ctx, ConnectorsPath)

	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("Get error = %v, want *TransportError", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled in chain, got %v", err)
	}
}

func TestGetNeverLogsToken(t *testing.T) {
	t.Parallel()

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	client := &http.Client{Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		return jsonResponse(req, http.StatusUnauthorized, `{"detail":"bad token"}`), nil
	})}
	s, err := New("very-secret", client, "https://catalog.example.test", WithLogger(logger))
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	_, err = s.Get(context.Background(), ConnectorsPath)
	if err == nil {
		t.Fatal("expected error")
	}
	if logs.Len() == 0 {
		t.Fatal("expected debug request log")
	}
	if strings.Contains(logs.String(), "very-secret") || strings.Contains(err.Error(), "very-secret") {
		t.Fatalf("token leaked: logs=%q err=%q", logs.String(), err.Error())
	}
}

func TestGetKeepsEncodedPathSegments(t *testing.T) {
	t.Parallel()

	var gotRawPath string
	client := &http.Client{Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		gotRawPath = req.URL.EscapedPath()
		return jsonResponse(req, http.StatusOK, `[]`), nil
	})}
	s, err := New("tok", client, "https://catalog.example.test/api")
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if _, err := s.Get(context.Background(), "v2/a%2Fb/items"); err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if gotRawPath != "/api/v2/a%2Fb/items" {
		t.Fatalf("request path = %q, want /api/v2/a%%2Fb/items", gotRawPath)
	}
}

func TestGetErrorsOmitQueryString(t *testing.T) {
	t.Parallel()

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	client := &http.Client{Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		if req.URL.Query().Get("api_key") != "query-secret" {
			t.Errorf("query not sent: %q", req.URL.RawQuery)
		}
		return jsonResponse(req, http.StatusInternalServerError, `{"detail":"boom"}`), nil
	})}
	s, err := New("tok", client, "https://catalog.example.test", WithLogger(logger))
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	_, err = s.Get(context.Background(), "v2/items?api_key=query-secret")

	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("Get error = %v, want *HTTPError", err)
	}
	if httpErr.URL != "https://catalog.example.test/v2/items" {
		t.Fatalf("URL = %q", httpErr.URL)
	}
	if strings.Contains(err.Error(), "query-secret") || strings.Contains(logs.String(), "query-secret") {
		t.Fatalf("query string leaked: err=%q logs=%q", err.Error(), logs.String())
	}
}

func TestGetCapsErrorBody(t *testing.T) {
	t.Parallel()

	huge := strings.Repeat("x", maxErrorBodySize+512)
	client := &http.Client{Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		return jsonResponse(req, http.StatusBadGateway, huge), nil
	})}
	s, err := New("tok", client, "https://catalog.example.test")
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	_, err = s.Get(context.Background(), ConnectorsPath)
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("Get error = %v, want *HTTPError", err)
	}
	if len(httpErr.Body) != maxErrorBodySize {
		t.Fatalf("error body length = %d, want %d", len(httpErr.Body), maxErrorBodySize)
	}
}
