package booksearch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// ErrMalformedResponse is returned when a search response has no books list.
var ErrMalformedResponse = errors.New("malformed search response")

// Fetcher runs one search against the backend.
type Fetcher interface {
	Fetch(ctx context.Context, query string) ([]BookResult, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, query string) ([]BookResult, error)

func (f FetcherFunc) Fetch(ctx context.Context, query string) ([]BookResult, error) {
	return f(ctx, query)
}

// HTTPFetcher queries a remote GET <endpoint>?search=<query> backend.
type HTTPFetcher struct {
	endpoint   string
	httpClient *http.Client
}

func NewHTTPFetcher(endpoint string, timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, query string) ([]BookResult, error) {
	u, err := url.Parse(f.endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid search endpoint: %w", err)
	}
	q := u.Query()
	q.Set("search", query)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("search returned status %d: %s", resp.StatusCode, string(body))
	}

	var payload struct {
		Books *[]BookResult `json:"books"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if payload.Books == nil {
		return nil, fmt.Errorf("%w: no books field", ErrMalformedResponse)
	}
	return *payload.Books, nil
}
