package medullar

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"
	"sync"
)

// call is one request seen by fakeTransport.
type call struct {
	Method string
	URL    string
	Query  url.Values
	Body   json.RawMessage
}

type reply struct {
	body string
	err  error
}

// fakeTransport answers requests by "METHOD path" and records every call.
type fakeTransport struct {
	mu      sync.Mutex
	replies map[string]reply
	calls   []call
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{replies: make(map[string]reply)}
}

func (f *fakeTransport) on(method, path, body string) *fakeTransport {
	f.replies[method+" "+path] = reply{body: body}
	return f
}

func (f *fakeTransport) fail(method, path string, err error) *fakeTransport {
	f.replies[method+" "+path] = reply{err: err}
	return f
}

func (f *fakeTransport) Do(_ context.Context, opts *RequestOptions) ([]byte, error) {
	var body json.RawMessage
	if opts.Body != nil {
		body, _ = json.Marshal(opts.Body)
	}
	f.mu.Lock()
	f.calls = append(f.calls, call{Method: opts.Method, URL: opts.URL, Query: opts.Query, Body: body})
	f.mu.Unlock()

	path := strings.TrimPrefix(opts.URL, testBaseURL)
	r, ok := f.replies[opts.Method+" "+path]
	if !ok {
		return nil, &StatusError{StatusCode: 404, Body: []byte(`{"detail":"Not found."}`)}
	}
	if r.err != nil {
		return nil, r.err
	}
	return []byte(r.body), nil
}

func (f *fakeTransport) count(method, path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.Method == method && c.URL == testBaseURL+path {
			n++
		}
	}
	return n
}

const testBaseURL = "https://medullar.test"

const userBody = `{"uuid":"u-1","email":"ana@example.com","company":{"uuid":"c-1","name":"Acme"}}`

func newTestClient(ft *fakeTransport) *Client {
	return NewClient(testBaseURL, ft)
}
