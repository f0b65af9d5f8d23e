// Package catalog is the book search backend: it queries Google Books and shapes the
// volumes into search results, falling back to Open Library for missing covers.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mrlokans/booklog/internal/booksearch"
	"golang.org/x/sync/errgroup"
)

const userAgent = "booklog/1.0 (https://github.com/mrlokans/booklog)"

// CoverLookup finds a cover image for an ISBN.
type CoverLookup interface {
	CoverURL(ctx context.Context, isbn string) (string, error)
}

// Config holds the catalog settings.
type Config struct {
	APIKey  string
	BaseURL string
	Country string
	Timeout time.Duration
	// Workers bounds how many volumes are shaped concurrently.
	Workers int
}

// Catalog implements booksearch.Fetcher against Google Books.
type Catalog struct {
	httpClient *http.Client
	cfg        Config
	covers     CoverLookup
}

func New(cfg Config, covers CoverLookup) *Catalog {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://www.googleapis.com/books/v1"
	}
	if cfg.Country == "" {
		cfg.Country = "UK"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 8
	}
	return &Catalog{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cfg:        cfg,
		covers:     covers,
	}
}

// Fetch satisfies booksearch.Fetcher.
func (c *Catalog) Fetch(ctx context.Context, query string) ([]booksearch.BookResult, error) {
	return c.Search(ctx, query)
}

// Search returns the volumes matching query in the order Google Books ranks them.
func (c *Catalog) Search(ctx context.Context, query string) ([]booksearch.BookResult, error) {
	volumes, err := c.fetchVolumes(ctx, query)
	if err != nil {
		return nil, err
	}

	results := make([]booksearch.BookResult, len(volumes))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Workers)
	for i := range volumes {
		i := i
		g.Go(func() error {
			results[i] = c.buildResult(gctx, volumes[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (c *Catalog) fetchVolumes(ctx context.Context, query string) ([]volume, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("key", c.cfg.APIKey)
	params.Set("country", c.cfg.Country)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/volumes?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search volumes: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var payload struct {
		Items []volume `json:"items"`
	}
	if err := json.Unmarshal([]byte(fixEncoding(string(body))), &payload); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return payload.Items, nil
}

func (c *Catalog) buildResult(ctx context.Context, v volume) booksearch.BookResult {
	info := v.VolumeInfo

	authors := make([]string, 0, len(info.Authors))
	for _, a := range info.Authors {
		authors = append(authors, cleanText(a))
	}

	identifiers := info.IndustryIdentifiers
	if identifiers == nil {
		identifiers = []industryIdentifier{}
	}
	rawIdentifiers, _ := json.Marshal(identifiers)

	return booksearch.BookResult{
		ID:          v.ID,
		Title:       cleanText(info.Title),
		Author:      strings.Join(authors, ", "),
		Year:        publishedYear(info.PublishedDate),
		ImageURL:    c.imageURL(ctx, info),
		ISBN10:      normalizeISBN(info.identifier("ISBN_10")),
		ISBN13:      normalizeISBN(info.identifier("ISBN_13")),
		Identifiers: rawIdentifiers,
	}
}

func (c *Catalog) imageURL(ctx context.Context, info volumeInfo) string {
	if info.ImageLinks.Thumbnail != "" {
		return info.ImageLinks.Thumbnail
	}
	if c.covers == nil {
		return ""
	}

	var isbn string
	for _, ident := range info.IndustryIdentifiers {
		if strings.HasPrefix(ident.Type, "ISBN_") {
			isbn = ident.Identifier
			break
		}
	}
	if isbn == "" {
		return ""
	}

	cover, err := c.covers.CoverURL(ctx, isbn)
	if err != nil {
		log.Printf("[CATALOG] Cover lookup for ISBN %s failed: %v", isbn, err)
		return ""
	}
	return cover
}

type volume struct {
	ID         string     `json:"id"`
	VolumeInfo volumeInfo `json:"volumeInfo"`
}

type volumeInfo struct {
	Title               string               `json:"title"`
	Authors             []string             `json:"authors"`
	PublishedDate       string               `json:"publishedDate"`
	IndustryIdentifiers []industryIdentifier `json:"industryIdentifiers"`
	ImageLinks          struct {
		Thumbnail string `json:"thumbnail"`
	} `json:"imageLinks"`
}

type industryIdentifier struct {
	Type       string `json:"type"`
	Identifier string `json:"identifier"`
}

func (v volumeInfo) identifier(kind string) string {
	for _, ident := range v.IndustryIdentifiers {
		if ident.Type == kind {
			return ident.Identifier
		}
	}
	return ""
}
