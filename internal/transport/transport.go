// Package transport builds the shared HTTP client used to reach the catalog.
package transport

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/publicsuffix"
)

// RequestIDHeader correlates client requests with catalog server logs.
const RequestIDHeader = "X-Request-Id"

type Options struct {
	Timeout       time.Duration
	TLSSkipVerify bool
	CACertPEM     string
	CACertFile    string
}

// NewClient returns a connection-pooled client safe for concurrent use.
func NewClient(opts Options) (*http.Client, error) {
	base, err := NewTransport(opts)
	if err != nil {
		return nil, err
	}
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("cookie jar: %w", err)
	}

	return &http.Client{
		Timeout:   opts.Timeout,
		Jar:       jar,
		Transport: &requestIDTransport{next: base},
	}, nil
}

// NewTransport clones the default transport and applies the TLS settings in
// opts. Timeout is not used here.
func NewTransport(opts Options) (http.RoundTripper, error) {
	caPEM := strings.TrimSpace(opts.CACertPEM)
	if path := strings.TrimSpace(opts.CACertFile); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read CA bundle: %w", err)
		}
		caPEM = string(raw)
	}
	return buildHTTPTransport(opts.TLSSkipVerify, caPEM)
}

type requestIDTransport struct {
	next http.RoundTripper
}

func (t *requestIDTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get(RequestIDHeader) != "" {
		return t.next.RoundTrip(req)
	}
	// RoundTrippers must not modify the caller's request.
	clone := req.Clone(req.Context())
	clone.Header.Set(RequestIDHeader, uuid.NewString())
	return t.next.RoundTrip(clone)
}

func buildHTTPTransport(skipVerify bool, caCertPEM string) (http.RoundTripper, error) {
	base, _ := http.DefaultTransport.(*http.Transport)
	if base == nil {
		return nil, errors.New("default transport is not an *http.Transport")
	}
	transport := base.Clone()
	if transport.TLSClientConfig == nil {
		transport.TLSClientConfig = &tls.Config{}
	} else {
		transport.TLSClientConfig = transport.TLSClientConfig.Clone()
	}
	transport.TLSClientConfig.MinVersion = tls.VersionTLS12
	transport.TLSClientConfig.InsecureSkipVerify = skipVerify
	if strings.TrimSpace(caCertPEM) != "" {
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM([]byte(caCertPEM)) {
			return nil, errors.New("CA bundle contains no PEM certificates")
		}
		transport.TLSClientConfig.RootCAs = pool
	}
	return transport, nil
}
