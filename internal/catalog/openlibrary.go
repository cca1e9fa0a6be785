package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"bookdex/internal/fetch"
	"bookdex/internal/genre"
	"bookdex/internal/ratelimit"
)

const (
	openLibraryBaseURL       = "https://openlibrary.org"
	openLibraryRatePerSecond = 1
)

// OpenLibrary is the client for the secondary metadata source, queried by
// ISBN through the bibkeys endpoint.
type OpenLibrary struct {
	fetcher     *fetch.Fetcher
	baseURL     string
	rateLimiter *ratelimit.Limiter
}

// OpenLibraryOption is a functional option for configuring the client.
type OpenLibraryOption func(*OpenLibrary)

// WithOpenLibraryBaseURL overrides the API base URL (used in tests).
func WithOpenLibraryBaseURL(base string) OpenLibraryOption {
	return func(c *OpenLibrary) {
		if base != "" {
			c.baseURL = strings.TrimSuffix(base, "/")
		}
	}
}

// WithOpenLibraryRateLimiter sets a custom rate limiter.
func WithOpenLibraryRateLimiter(l *ratelimit.Limiter) OpenLibraryOption {
	return func(c *OpenLibrary) {
		if l != nil {
			c.rateLimiter = l
		}
	}
}

// NewOpenLibrary creates an Open Library bibkeys client.
func NewOpenLibrary(fetcher *fetch.Fetcher, opts ...OpenLibraryOption) *OpenLibrary {
	c := &OpenLibrary{
		fetcher:     fetcher,
		baseURL:     openLibraryBaseURL,
		rateLimiter: ratelimit.New("OpenLibrary", openLibraryRatePerSecond),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// openLibraryBook matches the bibkeys API response structure.
type openLibraryBook struct {
	Title   string `json:"title"`
	Authors []struct {
		Name string `json:"name"`
	} `json:"authors"`
	Subjects []struct {
		Name string `json:"name"`
	} `json:"subjects"`
	Cover struct {
		Small  string `json:"small"`
		Medium string `json:"medium"`
		Large  string `json:"large"`
	} `json:"cover"`
}

// LookupISBN fetches one book record by ISBN. Returns nil when Open Library
// has no entry, or the entry carries no title.
func (c *OpenLibrary) LookupISBN(ctx context.Context, code string) (*Result, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/api/books?bibkeys=ISBN:%s&format=json&jscmd=data", c.baseURL, code)
	body, err := c.fetcher.Get(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	var parsed map[string]openLibraryBook
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &fetch.DecodeError{Source: "Open Library", Err: err}
	}

	book, ok := parsed["ISBN:"+code]
	if !ok || strings.TrimSpace(book.Title) == "" {
		return nil, nil
	}

	author := ""
	if len(book.Authors) > 0 {
		author = book.Authors[0].Name
	}

	g := genre.Other
	if len(book.Subjects) > 0 {
		g = genre.Classify(book.Subjects[0].Name)
	}

	cover := ""
	for _, u := range []string{book.Cover.Large, book.Cover.Medium, book.Cover.Small} {
		if u != "" {
			cover = u
			break
		}
	}

	return NewResult(book.Title, author, code, g, cover), nil
}

// CoverByISBN returns the best available cover URL for one ISBN, or "".
func (c *OpenLibrary) CoverByISBN(ctx context.Context, code string) (string, error) {
	result, err := c.LookupISBN(ctx, code)
	if err != nil {
		return "", err
	}
	if result == nil {
		return "", nil
	}
	return result.CoverURL, nil
}
