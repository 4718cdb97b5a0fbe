package mocks

import (
	"bytes"
	"io"
	"net/http"
	"sync"
)

// MockRoundTripper is a mock implementation of http.RoundTripper. It answers
// from a table of canned responses keyed by URL and records every request
// URL in order. Unknown URLs get a 404.
type MockRoundTripper struct {
	Responses map[string]*http.Response

	mu       sync.Mutex
	requests []string
}

// RoundTrip implements the http.RoundTripper interface.
func (m *MockRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	url := req.URL.String()
	m.mu.Lock()
	m.requests = append(m.requests, url)
	m.mu.Unlock()

	if resp, ok := m.Responses[url]; ok {
		// Bodies can only be read once, so buffer and rewind on every hit.
		bodyBytes, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		resp.Body = io.NopCloser(bytes.NewReader(bodyBytes))
		clone := *resp
		clone.Body = io.NopCloser(bytes.NewReader(bodyBytes))
		clone.Request = req
		return &clone, nil
	}
	return &http.Response{
		StatusCode: http.StatusNotFound,
		Status:     "404 Not Found",
		Body:       io.NopCloser(bytes.NewBufferString("Not Found")),
		Header:     make(http.Header),
		Request:    req,
	}, nil
}

// Requests returns the URLs requested so far.
func (m *MockRoundTripper) Requests() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.requests...)
}

// NewMockClient creates a new http.Client with a MockRoundTripper.
func NewMockClient(responses map[string]*http.Response) *http.Client {
	return &http.Client{
		Transport: &MockRoundTripper{
			Responses: responses,
		},
	}
}

// Transport returns the MockRoundTripper behind a client built by
// NewMockClient.
func Transport(client *http.Client) *MockRoundTripper {
	rt, _ := client.Transport.(*MockRoundTripper)
	return rt
}

// OK builds a 200 response carrying body.
func OK(body string) *http.Response {
	return &http.Response{
		StatusCode: http.StatusOK,
		Status:     "200 OK",
		Body:       io.NopCloser(bytes.NewBufferString(body)),
		Header:     make(http.Header),
	}
}
