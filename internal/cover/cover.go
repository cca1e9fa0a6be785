// Package cover finds and validates cover image URLs. Candidates come from
// the catalog clients and templated cover-service URLs; validation is a
// lightweight HEAD probe.
package cover

import (
	"context"
	"net/url"
	"path"
	"strings"

	"bookdex/internal/catalog"
	"bookdex/internal/fetch"
	"bookdex/internal/isbn"
)

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
}

// Prober checks cover URL candidates for reachability.
type Prober struct {
	fetcher *fetch.Fetcher
}

// NewProber creates a Prober on top of the shared fetcher.
func NewProber(fetcher *fetch.Fetcher) *Prober {
	return &Prober{fetcher: fetcher}
}

// FirstReachable returns the first candidate that answers a HEAD request
// with a 2xx status and looks like an image: either the response declares
// an image content type, or the URL path carries an image extension when
// the content type is absent. Transport errors skip to the next candidate.
// Returns "" when nothing validates.
func (p *Prober) FirstReachable(ctx context.Context, candidates []string) string {
	for _, candidate := range candidates {
		if candidate == "" {
			continue
		}
		probe, err := p.fetcher.Head(ctx, candidate)
		if err != nil {
			continue
		}
		if probe.StatusCode < 200 || probe.StatusCode >= 300 {
			continue
		}
		if acceptable(probe.ContentType, candidate) {
			return candidate
		}
	}
	return ""
}

func acceptable(contentType, candidate string) bool {
	if contentType != "" {
		return strings.HasPrefix(contentType, "image/")
	}
	parsed, err := url.Parse(candidate)
	if err != nil {
		return false
	}
	return imageExtensions[strings.ToLower(path.Ext(parsed.Path))]
}

// Resolver runs metadata-driven cover lookups across the catalogs.
type Resolver struct {
	google  *catalog.GoogleBooks
	openLib *catalog.OpenLibrary
	search  *catalog.OpenLibrarySearch
	prober  *Prober
}

// NewResolver creates a cover Resolver.
func NewResolver(google *catalog.GoogleBooks, openLib *catalog.OpenLibrary, search *catalog.OpenLibrarySearch, prober *Prober) *Resolver {
	return &Resolver{google: google, openLib: openLib, search: search, prober: prober}
}

// LookupCover finds a cover URL from book metadata alone, for books that
// never went through an identifier-based lookup. Candidates are gathered
// best-effort in priority order and probed. Callers asked for a cover
// explicitly, so the first candidate is returned even when nothing probes
// reachable.
func (r *Resolver) LookupCover(ctx context.Context, title, author, code string) string {
	var candidates []string

	normalized := isbn.Normalize(code)
	if normalized != "" {
		candidates = append(candidates,
			fetch.BestEffort("GoogleBooks cover", func() (string, error) {
				return r.google.CoverByISBN(ctx, normalized)
			}),
			fetch.BestEffort("OpenLibrary cover", func() (string, error) {
				return r.openLib.CoverByISBN(ctx, normalized)
			}),
			catalog.CoverURLForISBN(normalized),
		)
	}
	if title != "" || author != "" {
		candidates = append(candidates,
			fetch.BestEffort("GoogleBooks cover", func() (string, error) {
				return r.google.CoverSearch(ctx, title, author)
			}),
			fetch.BestEffort("GoogleBooks cover", func() (string, error) {
				return r.google.CoverByQuery(ctx, strings.TrimSpace(title+" "+author))
			}),
			fetch.BestEffort("OpenLibrary search cover", func() (string, error) {
				return r.search.CoverSearch(ctx, title, author)
			}),
		)
	}

	candidates = dedupe(candidates)
	if len(candidates) == 0 {
		return ""
	}
	if reachable := r.prober.FirstReachable(ctx, candidates); reachable != "" {
		return reachable
	}
	return candidates[0]
}

func dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		result = append(result, v)
	}
	return result
}
