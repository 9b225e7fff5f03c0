// Package upload delivers finished crash report bytes to a collection
// endpoint. The crash pipeline only needs "write these bytes to this
// destination"; everything smarter (retries, batching, telemetry framing)
// belongs to other layers.
package upload

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/renameio/v2"
)

// DefaultHTTPTimeout bounds a single report POST. The receiver runs in a
// normal execution context, but the parent may be holding its own exit on
// our acknowledgement, so we still never wait forever.
const DefaultHTTPTimeout = 30 * time.Second

// EndpointKind discriminates delivery targets.
type EndpointKind int

const (
	EndpointFile EndpointKind = iota
	EndpointHTTP
)

// Endpoint is a parsed delivery destination: either a filesystem path
// (file scheme or bare path) or an HTTP(S) URL.
type Endpoint struct {
	Kind   EndpointKind
	Path   string // file endpoints
	URL    string // http endpoints
	APIKey string // optional, agentless intake
}

// ParseEndpoint accepts "file:///path", "/bare/path", or an http(s) URL.
func ParseEndpoint(raw string) (*Endpoint, error) {
	if raw == "" {
		return nil, fmt.Errorf("empty endpoint")
	}
	if strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, ".") {
		return &Endpoint{Kind: EndpointFile, Path: raw}, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing endpoint %q: %w", raw, err)
	}
	switch u.Scheme {
	case "file":
		if u.Path == "" {
			return nil, fmt.Errorf("file endpoint %q has no path", raw)
		}
		return &Endpoint{Kind: EndpointFile, Path: u.Path}, nil
	case "http", "https":
		return &Endpoint{Kind: EndpointHTTP, URL: raw}, nil
	default:
		return nil, fmt.Errorf("unsupported endpoint scheme %q", u.Scheme)
	}
}

// String renders the endpoint back to its configuration form.
func (e *Endpoint) String() string {
	if e.Kind == EndpointFile {
		return "file://" + e.Path
	}
	return e.URL
}

// Uploader delivers report payloads.
type Uploader struct {
	client *http.Client
}

// NewUploader creates an uploader with a bounded HTTP client.
func NewUploader() *Uploader {
	return &Uploader{client: &http.Client{Timeout: DefaultHTTPTimeout}}
}

// Deliver writes data to the endpoint. File delivery is atomic (temp file
// plus rename) so a crash mid-write never leaves a torn report on disk.
func (u *Uploader) Deliver(ctx context.Context, endpoint *Endpoint, data []byte) error {
	switch endpoint.Kind {
	case EndpointFile:
		if err := renameio.WriteFile(endpoint.Path, data, 0o600); err != nil {
			return fmt.Errorf("writing report to %s: %w", endpoint.Path, err)
		}
		return nil
	case EndpointHTTP:
		return u.post(ctx, endpoint, data)
	default:
		return fmt.Errorf("unknown endpoint kind %d", endpoint.Kind)
	}
}

func (u *Uploader) post(ctx context.Context, endpoint *Endpoint, data []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.URL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("building report request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if endpoint.APIKey != "" {
		req.Header.Set("DD-API-KEY", endpoint.APIKey)
	}
	resp, err := u.client.Do(req)
	if err != nil {
		return fmt.Errorf("posting report to %s: %w", endpoint.URL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("report endpoint %s returned %s", endpoint.URL, resp.Status)
	}
	return nil
}
