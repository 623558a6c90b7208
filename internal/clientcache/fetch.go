package clientcache

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"vendorrisk/internal/httpclient"
)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("request failed (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("request failed (status %d)", e.StatusCode)
}

// Result is the outcome of a conditional fetch.
type Result struct {
	Value     json.RawMessage
	Validator string
	// NotModified is true when the server confirmed the cached copy with 304.
	NotModified bool
}

// Fetcher issues conditional GET requests backed by a Store.
type Fetcher struct {
	store  *Store
	client *http.Client
	token  string
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) FetcherOption {
	return func(f *Fetcher) { f.client = c }
}

// WithBearerToken authenticates every request.
func WithBearerToken(token string) FetcherOption {
	return func(f *Fetcher) { f.token = token }
}

// NewFetcher creates a Fetcher storing results in store.
func NewFetcher(store *Store, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		store:  store,
		client: httpclient.NewDefaultHTTPClient(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch GETs rawURL, presenting the validator cached under key. A 304 returns
// the cached value without reading a body; a 2xx stores and returns the new
// value and validator.
func (f *Fetcher) Fetch(ctx context.Context, rawURL, key string) (*Result, error) {
	cached, _ := f.store.Get(key)

	resp, err := f.do(ctx, rawURL, cached)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		if cached != nil {
			return &Result{Value: cached.Value, Validator: cached.Validator, NotModified: true}, nil
		}
		// Nothing to confirm; fall back to an unconditional request.
		resp.Body.Close()
		resp, err = f.do(ctx, rawURL, nil)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{
			StatusCode: resp.StatusCode,
			Message:    gjson.GetBytes(body, "error").String(),
		}
	}

	value := json.RawMessage(body)
	if data := gjson.GetBytes(body, "data"); data.Exists() {
		value = json.RawMessage(data.Raw)
	}

	validator := responseValidator(resp.Header, body)
	if err := f.store.Set(key, value, validator); err != nil {
		slog.Debug("response not cached", "key", key, "error", err)
	}
	return &Result{Value: value, Validator: validator}, nil
}

func (f *Fetcher) do(ctx context.Context, rawURL string, cached *Entry) (*http.Response, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}

	var ifNoneMatch string
	if cached != nil {
		switch {
		case isEntityTag(cached.Validator):
			ifNoneMatch = cached.Validator
		case isTimestamp(cached.Validator):
			q := u.Query()
			q.Set("timestamp", cached.Validator)
			u.RawQuery = q.Encode()
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if ifNoneMatch != "" {
		req.Header.Set("If-None-Match", ifNoneMatch)
	}
	if f.token != "" {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", u.Path, err)
	}
	return resp, nil
}

// responseValidator prefers the ETag header, then the envelope's lastUpdated.
func responseValidator(h http.Header, body []byte) string {
	if tag := strings.TrimSpace(h.Get("ETag")); tag != "" {
		return tag
	}
	if stamp := gjson.GetBytes(body, "lastUpdated"); stamp.Type == gjson.Number && stamp.Int() > 0 {
		return strconv.FormatInt(stamp.Int(), 10)
	}
	return ""
}

func isEntityTag(v string) bool {
	return strings.HasPrefix(v, `"`) || strings.HasPrefix(v, `W/"`)
}

func isTimestamp(v string) bool {
	n, err := strconv.ParseInt(v, 10, 64)
	return err == nil && n > 0
}
