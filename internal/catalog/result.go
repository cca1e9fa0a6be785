// Package catalog normalizes responses from the external book catalogs
// into a single Result value and hosts one client per catalog service.
package catalog

import (
	"net/url"
	"strings"

	"bookdex/internal/genre"
)

// UnknownAuthor is the author recorded when a catalog lists none.
const UnknownAuthor = "Unknown Author"

// Result is one normalized catalog lookup. It is a value type: refinements
// such as a validated cover produce a new Result rather than mutating.
type Result struct {
	Title    string
	Author   string
	ISBN     string
	Genre    genre.Genre
	CoverURL string
}

// NewResult builds a Result, enforcing the invariants every catalog client
// relies on: the title is trimmed and non-empty (nil otherwise), a blank
// author becomes UnknownAuthor, and cover URLs are stored as https.
func NewResult(title, author, isbn string, g genre.Genre, coverURL string) *Result {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil
	}
	author = strings.TrimSpace(author)
	if author == "" {
		author = UnknownAuthor
	}
	return &Result{
		Title:    title,
		Author:   author,
		ISBN:     isbn,
		Genre:    g,
		CoverURL: SecureURL(coverURL),
	}
}

// WithCover returns a copy of r carrying the given cover URL.
func (r *Result) WithCover(coverURL string) *Result {
	clone := *r
	clone.CoverURL = SecureURL(coverURL)
	return &clone
}

// SecureURL upgrades an http:// URL to https://. Catalog responses still
// hand out plain-http image links.
func SecureURL(u string) string {
	if strings.HasPrefix(u, "http://") {
		return "https://" + strings.TrimPrefix(u, "http://")
	}
	return u
}

// IsGoogleImageURL reports whether u points at Google Books' image hosts.
// Covers served from there are trusted without a reachability probe.
func IsGoogleImageURL(u string) bool {
	parsed, err := url.Parse(u)
	if err != nil {
		return false
	}
	host := parsed.Hostname()
	return host == "books.google.com" ||
		strings.HasSuffix(host, ".books.google.com") ||
		strings.HasSuffix(host, "googleusercontent.com")
}
