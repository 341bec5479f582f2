package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrijs2005/meecokeeper/internal/client/models"
	"github.com/dmitrijs2005/meecokeeper/internal/common"
	"github.com/dmitrijs2005/meecokeeper/internal/logging"
)

const maxErrorBody = 64 << 10

// HTTPClient talks JSON over HTTP to the vault and keystore APIs. Tokens are
// passed per call, so one HTTPClient can serve several users at once.
type HTTPClient struct {
	vaultURL        string
	keystoreURL     string
	subscriptionKey string
	httpClient      *http.Client
	log             logging.Logger
}

var _ API = (*HTTPClient)(nil)

type Option func(*HTTPClient)

// WithHTTPClient replaces the default *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *HTTPClient) { c.httpClient = hc }
}

// WithTimeout sets the per request timeout of the default http client.
func WithTimeout(d time.Duration) Option {
	return func(c *HTTPClient) { c.httpClient.Timeout = d }
}

func WithSubscriptionKey(key string) Option {
	return func(c *HTTPClient) { c.subscriptionKey = key }
}

func WithLogger(l logging.Logger) Option {
	return func(c *HTTPClient) { c.log = l }
}

func NewHTTPClient(vaultURL, keystoreURL string, opts ...Option) *HTTPClient {
	c := &HTTPClient{
		vaultURL:    strings.TrimRight(vaultURL, "/"),
		keystoreURL: strings.TrimRight(keystoreURL, "/"),
		httpClient:  &http.Client{},
		log:         logging.Nop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type request struct {
	base   string
	method string
	path   string
	token  string
	query  url.Values
	body   any
}

func (c *HTTPClient) vault(method, path, token string) *request {
	return &request{base: c.vaultURL, method: method, path: path, token: token}
}

func (c *HTTPClient) keystore(method, path, token string) *request {
	return &request{base: c.keystoreURL, method: method, path: path, token: token}
}

func (r *request) withQuery(q url.Values) *request {
	r.query = q
	return r
}

func (r *request) withBody(body any) *request {
	r.body = body
	return r
}

// do sends r and decodes a JSON response into out (when out is non-nil).
// Non-2xx responses are returned as *APIError.
func (c *HTTPClient) do(ctx context.Context, r *request, out any) error {
	u := r.base + r.path
	if len(r.query) > 0 {
		u += "?" + r.query.Encode()
	}

	var body io.Reader
	if r.body != nil {
		b, err := json.Marshal(r.body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", r.method, r.path, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, u, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.token != "" {
		req.Header.Set(common.AuthorizationHeaderName, r.token)
	}
	if c.subscriptionKey != "" {
		req.Header.Set(common.SubscriptionKeyHeaderName, c.subscriptionKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	c.log.Debug(ctx, "api call", "method", r.method, "path", r.path, "status", resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &APIError{StatusCode: resp.StatusCode, Method: r.method, Path: r.path, Body: b}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
		return fmt.Errorf("decode %s %s: %w", r.method, r.path, err)
	}
	return nil
}

func pageQuery(opts models.PageOptions) url.Values {
	q := url.Values{}
	if opts.NextPageAfter != "" {
		q.Set("next_page_after", opts.NextPageAfter)
	}
	if opts.PerPage > 0 {
		q.Set("per_page", fmt.Sprint(opts.PerPage))
	}
	return q
}
