package catalog

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"bookdex/internal/fetch"
	"bookdex/internal/genre"
	"bookdex/internal/ratelimit"
)

const classifyBaseURL = "https://classify.oclc.org/classify2"

// Classify is the client for the tertiary classification source, an
// XML-over-HTTP service. The response is not parsed as XML: the answer we
// need lives in the attributes of the first <work> tag, so a narrow
// regex-based scan is enough.
type Classify struct {
	fetcher     *fetch.Fetcher
	baseURL     string
	rateLimiter *ratelimit.Limiter
}

// ClassifyOption is a functional option for configuring the client.
type ClassifyOption func(*Classify)

// WithClassifyBaseURL overrides the API base URL (used in tests).
func WithClassifyBaseURL(base string) ClassifyOption {
	return func(c *Classify) {
		if base != "" {
			c.baseURL = strings.TrimSuffix(base, "/")
		}
	}
}

// WithClassifyRateLimiter sets a custom rate limiter.
func WithClassifyRateLimiter(l *ratelimit.Limiter) ClassifyOption {
	return func(c *Classify) {
		if l != nil {
			c.rateLimiter = l
		}
	}
}

// NewClassify creates an OCLC Classify client.
func NewClassify(fetcher *fetch.Fetcher, opts ...ClassifyOption) *Classify {
	c := &Classify{
		fetcher:     fetcher,
		baseURL:     classifyBaseURL,
		rateLimiter: ratelimit.New("Classify", openLibraryRatePerSecond),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var (
	workTagPattern    = regexp.MustCompile(`<work\b[^>]*>`)
	titleAttrPattern  = regexp.MustCompile(`title="([^"]*)"`)
	authorAttrPattern = regexp.MustCompile(`author="([^"]*)"`)
)

// LookupISBN queries the classification service by ISBN and extracts the
// title and author attributes of the first <work> tag. The result is
// minimal: genre Other, no cover.
func (c *Classify) LookupISBN(ctx context.Context, code string) (*Result, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/Classify?isbn=%s&summary=true", c.baseURL, code)
	body, err := c.fetcher.Get(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	title, author := extractWorkAttributes(string(body))
	if title == "" {
		return nil, nil
	}
	return NewResult(title, author, code, genre.Other, ""), nil
}

// extractWorkAttributes scans for the first <work> tag and pulls out its
// title and author attribute values.
func extractWorkAttributes(body string) (title, author string) {
	tag := workTagPattern.FindString(body)
	if tag == "" {
		return "", ""
	}
	if m := titleAttrPattern.FindStringSubmatch(tag); m != nil {
		title = m[1]
	}
	if m := authorAttrPattern.FindStringSubmatch(tag); m != nil {
		author = m[1]
	}
	return title, author
}
