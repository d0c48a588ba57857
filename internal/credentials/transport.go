package credentials

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/af-corp/medullar-gateway/internal/config"
	"github.com/af-corp/medullar-gateway/internal/medullar"
)

const maxResponseBytes = 10 << 20

// ErrResponseTooLarge is returned instead of a truncated response body.
var ErrResponseTooLarge = errors.New("medullar response too large")

// NewHTTPClient builds the shared upstream client from config.
func NewHTTPClient(cfg config.MedullarConfig) *http.Client {
	return &http.Client{
		Timeout: cfg.Timeout,
		Transport: &http.Transport{
			MaxIdleConns:        cfg.MaxIdleConns,
			MaxIdleConnsPerHost: cfg.MaxIdleConns,
			IdleConnTimeout:     90 * time.Second,
			ForceAttemptHTTP2:   true,
		},
	}
}

// Transport implements medullar.Transport. It attaches the credential as a
// Bearer token plus any configured static headers, and turns non-2xx
// responses into *medullar.StatusError.
type Transport struct {
	client  *http.Client
	cred    Credential
	headers map[string]string
}

func NewTransport(client *http.Client, cred Credential, headers map[string]string) *Transport {
	if client == nil {
		client = http.DefaultClient
	}
	return &Transport{client: client, cred: cred, headers: headers}
}

func (t *Transport) Do(ctx context.Context, opts *medullar.RequestOptions) ([]byte, error) {
	req, err := t.newRequest(ctx, opts)
	if err != nil {
		return nil, err
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if len(body) > maxResponseBytes {
		return nil, fmt.Errorf("%w: status %d, limit %d bytes", ErrResponseTooLarge, resp.StatusCode, maxResponseBytes)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &medullar.StatusError{StatusCode: resp.StatusCode, Body: body}
	}
	return body, nil
}

func (t *Transport) newRequest(ctx context.Context, opts *medullar.RequestOptions) (*http.Request, error) {
	u, err := url.Parse(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("parse url %s: %w", opts.URL, err)
	}
	if len(opts.Query) > 0 {
		q := u.Query()
		for k, vs := range opts.Query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}

	var body io.Reader
	if opts.Body != nil {
		data, err := encodeBody(opts)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, opts.Method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create http request: %w", err)
	}

	for k, v := range t.headers {
		if v != "" {
			req.Header.Set(k, v)
		}
	}
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}
	if opts.JSON && req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	t.authenticate(req)

	return req, nil
}

// authenticate attaches the credential. It runs last so configured headers
// cannot replace it.
func (t *Transport) authenticate(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+t.cred.APIKey)
}

func encodeBody(opts *medullar.RequestOptions) ([]byte, error) {
	switch b := opts.Body.(type) {
	case []byte:
		return b, nil
	case string:
		return []byte(b), nil
	case json.RawMessage:
		return b, nil
	}
	data, err := json.Marshal(opts.Body)
	if err != nil {
		return nil, fmt.Errorf("marshal request body: %w", err)
	}
	return data, nil
}
