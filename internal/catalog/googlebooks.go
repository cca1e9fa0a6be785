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
	googleBooksBaseURL       = "https://www.googleapis.com/books/v1"
	googleBooksMaxResults    = 10
	googleBooksRatePerSecond = 5
)

// GoogleBooks is the client for the primary metadata source.
type GoogleBooks struct {
	fetcher     *fetch.Fetcher
	baseURL     string
	rateLimiter *ratelimit.Limiter
}

// GoogleBooksOption is a functional option for configuring the client.
type GoogleBooksOption func(*GoogleBooks)

// WithGoogleBooksBaseURL overrides the API base URL (used in tests).
func WithGoogleBooksBaseURL(base string) GoogleBooksOption {
	return func(c *GoogleBooks) {
		if base != "" {
			c.baseURL = strings.TrimSuffix(base, "/")
		}
	}
}

// WithGoogleBooksRateLimiter sets a custom rate limiter.
func WithGoogleBooksRateLimiter(l *ratelimit.Limiter) GoogleBooksOption {
	return func(c *GoogleBooks) {
		if l != nil {
			c.rateLimiter = l
		}
	}
}

// NewGoogleBooks creates a Google Books client on top of the shared fetcher.
func NewGoogleBooks(fetcher *fetch.Fetcher, opts ...GoogleBooksOption) *GoogleBooks {
	c := &GoogleBooks{
		fetcher:     fetcher,
		baseURL:     googleBooksBaseURL,
		rateLimiter: ratelimit.New("GoogleBooks", googleBooksRatePerSecond),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// googleVolumesResponse matches the volumes API response structure.
type googleVolumesResponse struct {
	TotalItems int            `json:"totalItems"`
	Items      []googleVolume `json:"items"`
}

type googleVolume struct {
	VolumeInfo struct {
		Title               string   `json:"title"`
		Authors             []string `json:"authors"`
		Categories          []string `json:"categories"`
		IndustryIdentifiers []struct {
			Type       string `json:"type"`
			Identifier string `json:"identifier"`
		} `json:"industryIdentifiers"`
		ImageLinks googleImageLinks `json:"imageLinks"`
	} `json:"volumeInfo"`
}

type googleImageLinks struct {
	SmallThumbnail string `json:"smallThumbnail"`
	Thumbnail      string `json:"thumbnail"`
	Small          string `json:"small"`
	Medium         string `json:"medium"`
	Large          string `json:"large"`
	ExtraLarge     string `json:"extraLarge"`
}

// bestURL returns the largest available image link, upgraded to https.
func (l googleImageLinks) bestURL() string {
	for _, u := range []string{l.ExtraLarge, l.Large, l.Medium, l.Small, l.Thumbnail, l.SmallThumbnail} {
		if u != "" {
			return SecureURL(u)
		}
	}
	return ""
}

func (l googleImageLinks) empty() bool {
	return l.bestURL() == ""
}

// LookupISBN queries volumes with an isbn: field qualifier.
func (c *GoogleBooks) LookupISBN(ctx context.Context, code string) (*Result, error) {
	return c.query(ctx, "isbn:"+code, code)
}

// Search runs a free-text volumes query.
func (c *GoogleBooks) Search(ctx context.Context, query string) (*Result, error) {
	return c.query(ctx, query, "")
}

// SearchTitle runs a title-scoped query, optionally narrowed by author.
func (c *GoogleBooks) SearchTitle(ctx context.Context, title, author string) (*Result, error) {
	q := "intitle:" + title
	if author != "" {
		q += " inauthor:" + author
	}
	return c.query(ctx, q, "")
}

// SearchCandidates returns every valid volume for a query, in API order.
// Used by the interactive picker; the resolver itself uses the
// single-result query path.
func (c *GoogleBooks) SearchCandidates(ctx context.Context, query string) ([]*Result, error) {
	volumes, err := c.fetchVolumes(ctx, query)
	if err != nil {
		return nil, err
	}
	results := make([]*Result, 0, len(volumes))
	for _, v := range volumes {
		if r := c.normalize(v, ""); r != nil {
			results = append(results, r)
		}
	}
	return results, nil
}

// CoverSearch looks up a cover image URL by title and author. Returns ""
// when no volume exposes an image link.
func (c *GoogleBooks) CoverSearch(ctx context.Context, title, author string) (string, error) {
	result, err := c.SearchTitle(ctx, title, author)
	if err != nil {
		return "", err
	}
	if result == nil {
		return "", nil
	}
	return result.CoverURL, nil
}

// CoverByQuery runs a free-text query and returns the picked volume's
// cover URL, or "".
func (c *GoogleBooks) CoverByQuery(ctx context.Context, query string) (string, error) {
	result, err := c.Search(ctx, query)
	if err != nil {
		return "", err
	}
	if result == nil {
		return "", nil
	}
	return result.CoverURL, nil
}

// CoverByISBN looks up a cover image URL for one ISBN.
func (c *GoogleBooks) CoverByISBN(ctx context.Context, code string) (string, error) {
	result, err := c.LookupISBN(ctx, code)
	if err != nil {
		return "", err
	}
	if result == nil {
		return "", nil
	}
	return result.CoverURL, nil
}

func (c *GoogleBooks) query(ctx context.Context, query, queryISBN string) (*Result, error) {
	volumes, err := c.fetchVolumes(ctx, query)
	if err != nil {
		return nil, err
	}
	picked := pickVolume(volumes, queryISBN)
	if picked == nil {
		return nil, nil
	}
	return c.normalize(*picked, queryISBN), nil
}

func (c *GoogleBooks) fetchVolumes(ctx context.Context, query string) ([]googleVolume, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/volumes?q=%s&maxResults=%d", c.baseURL, url.QueryEscape(query), googleBooksMaxResults)
	body, err := c.fetcher.Get(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	var parsed googleVolumesResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &fetch.DecodeError{Source: "Google Books", Err: err}
	}
	if parsed.TotalItems == 0 || len(parsed.Items) == 0 {
		return nil, nil
	}
	return parsed.Items, nil
}

// pickVolume applies the item-preference rules: discard blank titles; when
// the query was a real ISBN prefer items whose identifier list matches it;
// within the preferred set take the first item with any image link, else the
// first item.
func pickVolume(volumes []googleVolume, queryISBN string) *googleVolume {
	valid := make([]googleVolume, 0, len(volumes))
	for _, v := range volumes {
		if strings.TrimSpace(v.VolumeInfo.Title) != "" {
			valid = append(valid, v)
		}
	}
	if len(valid) == 0 {
		return nil
	}

	prioritized := valid
	if isbn.IsValidLength(queryISBN) {
		matching := make([]googleVolume, 0, len(valid))
		for _, v := range valid {
			if volumeHasISBN(v, queryISBN) {
				matching = append(matching, v)
			}
		}
		if len(matching) > 0 {
			prioritized = matching
		}
	}

	for i := range prioritized {
		if !prioritized[i].VolumeInfo.ImageLinks.empty() {
			return &prioritized[i]
		}
	}
	return &prioritized[0]
}

func volumeHasISBN(v googleVolume, code string) bool {
	for _, id := range v.VolumeInfo.IndustryIdentifiers {
		if isbn.Digits(id.Identifier) == code {
			return true
		}
	}
	return false
}

func (c *GoogleBooks) normalize(v googleVolume, queryISBN string) *Result {
	info := v.VolumeInfo

	author := ""
	if len(info.Authors) > 0 {
		author = info.Authors[0]
	}

	g := genre.Other
	if len(info.Categories) > 0 {
		g = genre.Classify(info.Categories[0])
	}

	resolvedISBN := ""
	for _, id := range info.IndustryIdentifiers {
		if strings.Contains(id.Type, "ISBN") {
			resolvedISBN = isbn.Normalize(id.Identifier)
			break
		}
	}
	if resolvedISBN == "" && isbn.IsValidLength(queryISBN) {
		resolvedISBN = queryISBN
	}

	return NewResult(info.Title, author, resolvedISBN, g, info.ImageLinks.bestURL())
}
