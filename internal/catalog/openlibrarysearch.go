package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"bookdex/internal/fetch"
	"bookdex/internal/genre"
	"bookdex/internal/isbn"
	"bookdex/internal/ratelimit"
)

const (
	openLibrarySearchLimit = 10
	coversBaseURL          = "https://covers.openlibrary.org"
)

// CoverURLForID builds the templated cover URL for a numeric cover image id.
func CoverURLForID(coverID int) string {
	return fmt.Sprintf("%s/b/id/%d-L.jpg", coversBaseURL, coverID)
}

// CoverURLForISBN builds the templated cover URL for an ISBN. The
// default=false suffix makes the cover service 404 instead of serving a
// placeholder, so reachability probes stay meaningful.
func CoverURLForISBN(code string) string {
	return fmt.Sprintf("%s/b/isbn/%s-L.jpg?default=false", coversBaseURL, code)
}

// OpenLibrarySearch is the client for the secondary full-text search source.
type OpenLibrarySearch struct {
	fetcher     *fetch.Fetcher
	baseURL     string
	rateLimiter *ratelimit.Limiter
}

// OpenLibrarySearchOption is a functional option for configuring the client.
type OpenLibrarySearchOption func(*OpenLibrarySearch)

// WithSearchBaseURL overrides the API base URL (used in tests).
func WithSearchBaseURL(base string) OpenLibrarySearchOption {
	return func(c *OpenLibrarySearch) {
		if base != "" {
			c.baseURL = strings.TrimSuffix(base, "/")
		}
	}
}

// WithSearchRateLimiter sets a custom rate limiter.
func WithSearchRateLimiter(l *ratelimit.Limiter) OpenLibrarySearchOption {
	return func(c *OpenLibrarySearch) {
		if l != nil {
			c.rateLimiter = l
		}
	}
}

// NewOpenLibrarySearch creates an Open Library search.json client.
func NewOpenLibrarySearch(fetcher *fetch.Fetcher, opts ...OpenLibrarySearchOption) *OpenLibrarySearch {
	c := &OpenLibrarySearch{
		fetcher:     fetcher,
		baseURL:     openLibraryBaseURL,
		rateLimiter: ratelimit.New("OpenLibrarySearch", openLibraryRatePerSecond),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// searchResponse matches the search.json response structure.
type searchResponse struct {
	Docs []searchDoc `json:"docs"`
}

type searchDoc struct {
	Title      string   `json:"title"`
	AuthorName []string `json:"author_name"`
	ISBN       []string `json:"isbn"`
	CoverID    int      `json:"cover_i"`
	Subject    []string `json:"subject"`
}

// Search runs a free-text query. When preferredISBN is set, the first
// document whose ISBN list contains it (digit-normalized) wins; otherwise
// the first document does.
func (c *OpenLibrarySearch) Search(ctx context.Context, query, preferredISBN string) (*Result, error) {
	endpoint := fmt.Sprintf("%s/search.json?q=%s&limit=%d", c.baseURL, url.QueryEscape(query), openLibrarySearchLimit)
	return c.query(ctx, endpoint, preferredISBN)
}

// SearchFields runs a field-scoped query by title and/or author.
func (c *OpenLibrarySearch) SearchFields(ctx context.Context, title, author string) (*Result, error) {
	endpoint := fmt.Sprintf("%s/search.json?title=%s&author=%s&limit=%d",
		c.baseURL, url.QueryEscape(title), url.QueryEscape(author), openLibrarySearchLimit)
	return c.query(ctx, endpoint, "")
}

// CoverSearch looks up a cover image URL by title and author. Returns ""
// when no document yields one.
func (c *OpenLibrarySearch) CoverSearch(ctx context.Context, title, author string) (string, error) {
	result, err := c.SearchFields(ctx, title, author)
	if err != nil {
		return "", err
	}
	if result == nil {
		return "", nil
	}
	return result.CoverURL, nil
}

func (c *OpenLibrarySearch) query(ctx context.Context, endpoint, preferredISBN string) (*Result, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	body, err := c.fetcher.Get(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	var parsed searchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &fetch.DecodeError{Source: "Open Library search", Err: err}
	}
	if len(parsed.Docs) == 0 {
		return nil, nil
	}

	doc := pickDoc(parsed.Docs, preferredISBN)
	return normalizeDoc(doc, preferredISBN), nil
}

func pickDoc(docs []searchDoc, preferredISBN string) searchDoc {
	if preferredISBN != "" {
		for _, doc := range docs {
			for _, code := range doc.ISBN {
				if isbn.Digits(code) == preferredISBN {
					return doc
				}
			}
		}
	}
	return docs[0]
}

func normalizeDoc(doc searchDoc, preferredISBN string) *Result {
	author := ""
	if len(doc.AuthorName) > 0 {
		author = doc.AuthorName[0]
	}

	g := genre.Other
	if len(doc.Subject) > 0 {
		g = genre.Classify(doc.Subject[0])
	}

	resolvedISBN := ""
	if isbn.IsValidLength(preferredISBN) {
		resolvedISBN = preferredISBN
	} else {
		for _, code := range doc.ISBN {
			if isbn.IsValidLength(code) {
				resolvedISBN = code
				break
			}
		}
	}

	cover := ""
	switch {
	case doc.CoverID > 0:
		cover = CoverURLForID(doc.CoverID)
	case resolvedISBN != "":
		cover = CoverURLForISBN(resolvedISBN)
	}

	return NewResult(doc.Title, author, resolvedISBN, g, cover)
}
