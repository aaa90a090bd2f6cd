package wordpress

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rflorenc/wordpress-node/internal/models"
)

// Request is a JSON call against the wp/v2 REST root.
type Request struct {
	Method   string
	Endpoint string // relative to the REST root, e.g. "posts/12"
	Query    url.Values
	Body     map[string]any
}

// BinaryRequest is a raw upload against the wp/v2 REST root. It is always a POST.
type BinaryRequest struct {
	Endpoint string
	Headers  map[string]string
	Body     []byte
}

// Transport performs calls against one WordPress site. Responses are the
// decoded JSON body, or nil for an empty body.
type Transport interface {
	Request(ctx context.Context, req Request) (any, error)
	RequestBinary(ctx context.Context, req BinaryRequest) (any, error)
}

// Observer receives one callback per completed HTTP call. Status is 0 when the
// call failed before a response arrived.
type Observer interface {
	ObserveRequest(method string, status int, elapsed time.Duration)
}

// HTTPTransport is the net/http Transport used against live sites.
type HTTPTransport struct {
	restRoot   string
	siteRoot   string
	basicAuth  bool
	username   string
	password   string
	httpClient *http.Client
	observer   Observer
}

// TransportOption customises an HTTPTransport.
type TransportOption func(*HTTPTransport)

// WithTimeout sets the per-request timeout of the underlying client.
func WithTimeout(d time.Duration) TransportOption {
	return func(t *HTTPTransport) {
		if d > 0 {
			t.httpClient.Timeout = d
		}
	}
}

// WithObserver reports every call to o.
func WithObserver(o Observer) TransportOption {
	return func(t *HTTPTransport) { t.observer = o }
}

// WithHTTPClient replaces the underlying client. Used by tests.
func WithHTTPClient(c *http.Client) TransportOption {
	return func(t *HTTPTransport) { t.httpClient = c }
}

// NewHTTPTransport creates a transport from a credential. It fails before any
// network activity when the credential has no base URL.
func NewHTTPTransport(cred *models.Credential, opts ...TransportOption) (*HTTPTransport, error) {
	if cred == nil || strings.TrimSpace(cred.BaseURL) == "" {
		return nil, fmt.Errorf("%w: please check your credentials", ErrMissingBaseURL)
	}
	transport := &http.Transport{Proxy: http.ProxyFromEnvironment}
	if cred.Insecure {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	} else if cred.CACert != "" {
		caCertPool := x509.NewCertPool()
		if caCertPool.AppendCertsFromPEM([]byte(cred.CACert)) {
			transport.TLSClientConfig = &tls.Config{RootCAs: caCertPool}
		}
	}
	t := &HTTPTransport{
		restRoot:  cred.RESTRoot(),
		siteRoot:  cred.SiteRoot(),
		basicAuth: cred.UsesBasicAuth(),
		username:  cred.Username,
		password:  cred.Password,
	}
	t.httpClient = &http.Client{
		Transport: transport,
		Timeout:   30 * time.Second,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			// Re-apply basic auth on redirects
			if len(via) > 0 {
				t.authorize(req)
			}
			return nil
		},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

func (t *HTTPTransport) authorize(req *http.Request) {
	if t.basicAuth {
		req.SetBasicAuth(t.username, t.password)
	}
}

func (t *HTTPTransport) endpointURL(endpoint string, query url.Values) string {
	u := t.restRoot + "/" + strings.TrimPrefix(endpoint, "/")
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// Request performs an authenticated JSON call. Non-GET calls always carry a
// JSON object body, "{}" when empty.
func (t *HTTPTransport) Request(ctx context.Context, r Request) (any, error) {
	method := r.Method
	if method == "" {
		method = http.MethodGet
	}
	var bodyReader io.Reader
	if method != http.MethodGet {
		payload := r.Body
		if payload == nil {
			payload = map[string]any{}
		}
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshaling body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, t.endpointURL(r.Endpoint, r.Query), bodyReader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	t.authorize(req)

	return t.do(req, r.Endpoint)
}

// RequestBinary uploads a raw body with the given headers.
func (t *HTTPTransport) RequestBinary(ctx context.Context, r BinaryRequest) (any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpointURL(r.Endpoint, nil), bytes.NewReader(r.Body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range r.Headers {
		req.Header.Set(k, v)
	}
	t.authorize(req)

	return t.do(req, r.Endpoint)
}

func (t *HTTPTransport) do(req *http.Request, path string) (any, error) {
	start := time.Now()
	resp, err := t.httpClient.Do(req)
	if err != nil {
		t.observe(req.Method, 0, start)
		return nil, fmt.Errorf("%s %s: %w", req.Method, path, err)
	}
	defer resp.Body.Close()
	t.observe(req.Method, resp.StatusCode, start)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, newAPIError(req.Method, path, resp.StatusCode, body)
	}
	return decodeJSON(body)
}

func (t *HTTPTransport) observe(method string, status int, start time.Time) {
	if t.observer != nil {
		t.observer.ObserveRequest(method, status, time.Since(start))
	}
}

// Ping checks that the site's /wp-json/ index is reachable (unauthenticated).
func (t *HTTPTransport) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.siteRoot, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	_, err = t.do(req, "/wp-json/")
	return err
}

// CheckAuth verifies the configured credentials against users/me.
func (t *HTTPTransport) CheckAuth(ctx context.Context) error {
	_, err := t.Request(ctx, Request{
		Method:   http.MethodGet,
		Endpoint: "users/me",
		Query:    url.Values{"context": {"edit"}},
	})
	return err
}

// BasicAuth reports whether requests carry an Authorization header.
func (t *HTTPTransport) BasicAuth() bool { return t.basicAuth }

func decodeJSON(body []byte) (any, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}
	return out, nil
}

func newAPIError(method, path string, status int, body []byte) *APIError {
	apiErr := &APIError{Method: method, Path: path, StatusCode: status, Body: string(body)}
	var envelope struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &envelope) == nil {
		apiErr.Code = envelope.Code
		apiErr.Message = envelope.Message
	}
	return apiErr
}
