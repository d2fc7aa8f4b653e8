// Package catalog is a client for the data-catalog integration API.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultTokenHeader carries the access token as a bearer credential.
	DefaultTokenHeader = "Authorization"

	defaultUserAgent = "catalogctl"
	maxErrorBodySize = 1 << 20 // 1 MiB
)

// Session is the authenticated request scaffold shared by endpoint facades.
// It is safe for concurrent use when the underlying *http.Client is.
type Session struct {
	host        *url.URL
	token       string
	tokenHeader string
	userAgent   string
	http        *http.Client
	logger      *slog.Logger
}

// Option customizes a Session.
type Option func(*Session)

// WithTokenHeader selects the header carrying the access token. The default
// Authorization header uses the Bearer scheme; any other header gets the raw token.
func WithTokenHeader(name string) Option {
	return func(s *Session) {
		if name = strings.TrimSpace(name); name != "" {
			s.tokenHeader = http.CanonicalHeaderKey(name)
		}
	}
}

// WithUserAgent overrides the User-Agent sent with every request.
func WithUserAgent(ua string) Option {
	return func(s *Session) {
		if ua = strings.TrimSpace(ua); ua != "" {
			s.userAgent = ua
		}
	}
}

// WithLogger sets the logger used for debug request records.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a Session for host using a pre-issued access token. The client is
// shared as-is; a nil client is replaced by one without a timeout.
func New(accessToken string, client *http.Client, host string, opts ...Option) (*Session, error) {
	token := strings.TrimSpace(accessToken)
	if token == "" {
		return nil, &ConfigError{Field: "access token", Reason: "is required"}
	}
	base, err := parseHost(host)
	if err != nil {
		return nil, err
	}
	if client == nil {
		client = &http.Client{}
	}

	s := &Session{
		host:        base,
		token:       token,
		tokenHeader: DefaultTokenHeader,
		userAgent:   defaultUserAgent,
		http:        client,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

func parseHost(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, &ConfigError{Field: "host", Reason: "is required"}
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, &ConfigError{Field: "host", Reason: "is not a valid URL"}
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return nil, &ConfigError{Field: "host", Reason: "must use http or https"}
	}
	if u.Host == "" {
		return nil, &ConfigError{Field: "host", Reason: "must include an authority"}
	}
	u.Path = collapseSlashes(u.Path)
	u.RawPath = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}

// Host returns the normalized base URL.
func (s *Session) Host() string {
	return s.host.String()
}

// ResolveURL joins relativePath onto the host. A leading slash replaces the
// host path; otherwise the path is appended after the host path.
func (s *Session) ResolveURL(relativePath string) (string, error) {
	ref, err := url.Parse(relativePath)
	if err != nil {
		return "", &ConfigError{Field: "path", Reason: "is not a valid URL path"}
	}
	if ref.IsAbs() || ref.Host != "" {
		return "", &ConfigError{Field: "path", Reason: "must be relative to the host"}
	}

	// RawPath carries the caller's escaping so encoded segments such as %2F
	// stay inside their segment.
	u := *s.host
	switch {
	case strings.HasPrefix(ref.Path, "/"):
		u.Path = ref.Path
		u.RawPath = ref.RawPath
	case ref.Path == "":
	default:
		escapedBase := strings.TrimRight(u.EscapedPath(), "/")
		u.Path = strings.TrimRight(u.Path, "/") + "/" + ref.Path
		u.RawPath = ""
		if ref.RawPath != "" {
			u.RawPath = escapedBase + "/" + ref.RawPath
		}
	}
	u.RawQuery = ref.RawQuery
	return u.String(), nil
}

// Get performs one authenticated GET and returns the validated JSON body.
func (s *Session) Get(ctx context.Context, relativePath string) (json.RawMessage, error) {
	endpoint, body, err := s.get(ctx, relativePath)
	if err != nil {
		return nil, err
	}
	if !json.Valid(body) {
		return nil, &DecodeError{URL: endpoint, Err: errors.New("invalid JSON")}
	}
	return json.RawMessage(body), nil
}

// GetJSON performs one authenticated GET and decodes the body into out.
func (s *Session) GetJSON(ctx context.Context, relativePath string, out any) error {
	endpoint, body, err := s.get(ctx, relativePath)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &DecodeError{URL: endpoint, Err: err}
	}
	return nil
}

func (s *Session) get(ctx context.Context, relativePath string) (string, []byte, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	endpoint, err := s.ResolveURL(relativePath)
	if err != nil {
		return "", nil, err
	}
	display := safeURL(endpoint)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return display, nil, &TransportError{URL: display, Err: err}
	}
	s.authorize(req)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", s.userAgent)

	start := time.Now()
	resp, err := s.http.Do(req)
	if err != nil {
		s.logger.DebugContext(ctx, "catalog request failed", "method", http.MethodGet, "url", display, "duration", time.Since(start), "err", scrubURLError(err))
		return display, nil, &TransportError{URL: display, Err: scrubURLError(err)}
	}
	ok := resp.StatusCode >= 200 && resp.StatusCode < 300
	var reader io.Reader = resp.Body
	if !ok {
		reader = io.LimitReader(resp.Body, maxErrorBodySize)
	}
	body, readErr := io.ReadAll(reader)
	resp.Body.Close()
	if readErr != nil {
		return display, nil, &TransportError{URL: display, Err: readErr}
	}
	s.logger.DebugContext(ctx, "catalog request", "method", http.MethodGet, "url", display, "status", resp.StatusCode, "duration", time.Since(start), "bytes", len(body))

	if !ok {
		resp.Body = io.NopCloser(bytes.NewReader(body))
		return display, nil, &HTTPError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			URL:        display,
			Body:       body,
			Response:   resp,
		}
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return display, nil, &DecodeError{URL: display, Err: ErrEmptyBody}
	}
	return display, body, nil
}

func (s *Session) authorize(req *http.Request) {
	if s.tokenHeader == DefaultTokenHeader {
		req.Header.Set(DefaultTokenHeader, "Bearer "+s.token)
		return
	}
	req.Header.Set(s.tokenHeader, s.token)
}

// scrubURLError drops the request URL from *url.Error so callers only see the
// redacted form recorded on TransportError.
func scrubURLError(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) && uerr.Err != nil {
		return uerr.Err
	}
	return err
}

// safeURL drops userinfo passwords and the query string, which may carry
// credentials, from URLs that end up in errors and logs.
func safeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<invalid url>"
	}
	u.RawQuery = ""
	u.ForceQuery = false
	return u.Redacted()
}

func collapseSlashes(p string) string {
	if !strings.Contains(p, "//") {
		return p
	}
	var b strings.Builder
	b.Grow(len(p))
	prevSlash := false
	for _, r := range p {
		if r == '/' {
			if prevSlash {
				continue
			}
			prevSlash = true
		} else {
			prevSlash = false
		}
		b.WriteRune(r)
	}
	return b.String()
}
