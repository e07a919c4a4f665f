package sambung

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// HTTPTransport posts JSON envelopes to a single fixed endpoint. The shared
// static credential is appended as a query parameter on every request.
type HTTPTransport struct {
	httpClient      *http.Client
	endpoint        string
	credential      string
	credentialParam string
}

// HTTPTransportOption configures an HTTPTransport.
type HTTPTransportOption func(*HTTPTransport)

// WithTransportHTTPClient sets a custom *http.Client for the transport.
func WithTransportHTTPClient(client *http.Client) HTTPTransportOption {
	return func(t *HTTPTransport) {
		t.httpClient = client
	}
}

// WithCredentialParam overrides the query parameter name carrying the
// credential (default "key").
func WithCredentialParam(name string) HTTPTransportOption {
	return func(t *HTTPTransport) {
		t.credentialParam = name
	}
}

// NewHTTPTransport creates a transport bound to one endpoint URL and a static
// credential. An empty credential omits the query parameter.
func NewHTTPTransport(endpoint, credential string, options ...HTTPTransportOption) *HTTPTransport {
	t := &HTTPTransport{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		endpoint:        endpoint,
		credential:      credential,
		credentialParam: "key",
	}
	for _, option := range options {
		option(t)
	}
	return t
}

// Send posts the body and returns the raw response bytes. Network failures
// and non-2xx statuses are transport errors.
func (t *HTTPTransport) Send(ctx context.Context, body []byte) ([]byte, error) {
	target := t.endpoint
	if t.credential != "" {
		u, err := url.Parse(t.endpoint)
		if err != nil {
			return nil, &ClientError{
				Type:    ErrorTypeTransport,
				Message: "invalid endpoint URL",
				Cause:   err,
			}
		}
		q := u.Query()
		q.Set(t.credentialParam, t.credential)
		u.RawQuery = q.Encode()
		target = u.String()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return nil, &ClientError{
			Type:    ErrorTypeTransport,
			Message: "building request failed",
			Cause:   err,
		}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, &ClientError{
			Type:    ErrorTypeTransport,
			Message: "backend unreachable",
			Cause:   err,
		}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ClientError{
			Type:       ErrorTypeTransport,
			Message:    "reading response failed",
			Cause:      err,
			StatusCode: resp.StatusCode,
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &ClientError{
			Type:       ErrorTypeTransport,
			Message:    fmt.Sprintf("backend returned status %d", resp.StatusCode),
			StatusCode: resp.StatusCode,
		}
	}

	return respBody, nil
}

// TransportFunc adapts a function to the Transport interface, handy for test
// doubles.
type TransportFunc func(ctx context.Context, body []byte) ([]byte, error)

// Send implements Transport.
func (f TransportFunc) Send(ctx context.Context, body []byte) ([]byte, error) {
	return f(ctx, body)
}
