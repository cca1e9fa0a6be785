// Package resolver orchestrates the phased, partly-parallel catalog queries
// that turn a scanned code or a title into a normalized book record.
package resolver

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"bookdex/internal/catalog"
	"bookdex/internal/cover"
	"bookdex/internal/fetch"
	"bookdex/internal/isbn"
)

// Resolver fans lookups out across the catalog clients and picks the first
// usable result by source priority. Every catalog call is best-effort: a
// failing source manifests as an absent result, never as an error.
type Resolver struct {
	google   *catalog.GoogleBooks
	openLib  *catalog.OpenLibrary
	search   *catalog.OpenLibrarySearch
	classify *catalog.Classify
	covers   *cover.Resolver
	prober   *cover.Prober
}

// New creates a Resolver over the given catalog clients.
func New(google *catalog.GoogleBooks, openLib *catalog.OpenLibrary, search *catalog.OpenLibrarySearch, classify *catalog.Classify, covers *cover.Resolver, prober *cover.Prober) *Resolver {
	return &Resolver{
		google:   google,
		openLib:  openLib,
		search:   search,
		classify: classify,
		covers:   covers,
		prober:   prober,
	}
}

// NewFromFetcher wires a Resolver with default clients sharing one fetcher.
func NewFromFetcher(fetcher *fetch.Fetcher) *Resolver {
	google := catalog.NewGoogleBooks(fetcher)
	openLib := catalog.NewOpenLibrary(fetcher)
	search := catalog.NewOpenLibrarySearch(fetcher)
	classify := catalog.NewClassify(fetcher)
	prober := cover.NewProber(fetcher)
	covers := cover.NewResolver(google, openLib, search, prober)
	return New(google, openLib, search, classify, covers, prober)
}

// Lookup resolves a raw scanned code into a book record. It returns nil
// when the code yields no identifier candidates or no catalog knows the
// book; it never returns an error.
func (r *Resolver) Lookup(ctx context.Context, rawCode string) *catalog.Result {
	candidates := isbn.Candidates(rawCode)
	if len(candidates) == 0 {
		return nil
	}

	if result := r.lookupByCandidates(ctx, candidates); result != nil {
		return r.enrichAndValidateCover(ctx, result, candidates)
	}
	if result := r.broadSearch(ctx, rawCode, candidates); result != nil {
		return r.enrichAndValidateCover(ctx, result, candidates)
	}
	if result := r.classifyFallback(ctx, candidates); result != nil {
		return r.enrichAndValidateCover(ctx, result, candidates)
	}

	slog.Debug("Lookup exhausted all phases", "code", rawCode)
	return nil
}

// lookupByCandidates is phase 1: for each candidate in priority order, race
// the primary and secondary ISBN lookups, join both, and prefer the primary
// result. The first candidate that yields anything stops the scan.
func (r *Resolver) lookupByCandidates(ctx context.Context, candidates []string) *catalog.Result {
	for _, candidate := range candidates {
		var googleResult, openLibResult *catalog.Result
		var wg sync.WaitGroup

		wg.Add(1)
		go func() {
			defer wg.Done()
			googleResult = fetch.BestEffort("GoogleBooks", func() (*catalog.Result, error) {
				return r.google.LookupISBN(ctx, candidate)
			})
		}()

		if isbn.IsValidLength(candidate) {
			wg.Add(1)
			go func() {
				defer wg.Done()
				openLibResult = fetch.BestEffort("OpenLibrary", func() (*catalog.Result, error) {
					return r.openLib.LookupISBN(ctx, candidate)
				})
			}()
		}

		wg.Wait()

		if googleResult != nil {
			return googleResult
		}
		if openLibResult != nil {
			return openLibResult
		}
	}
	return nil
}

// broadSearch is phase 2: free-text search against both search-capable
// sources, joined, primary preferred. The secondary search receives the
// first ISBN-length candidate as a hint.
func (r *Resolver) broadSearch(ctx context.Context, rawCode string, candidates []string) *catalog.Result {
	digits := isbn.Digits(rawCode)

	hint := ""
	for _, candidate := range candidates {
		if isbn.IsValidLength(candidate) {
			hint = candidate
			break
		}
	}

	var googleResult, searchResult *catalog.Result
	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		googleResult = fetch.BestEffort("GoogleBooks", func() (*catalog.Result, error) {
			return r.google.Search(ctx, digits)
		})
	}()
	go func() {
		defer wg.Done()
		searchResult = fetch.BestEffort("OpenLibrarySearch", func() (*catalog.Result, error) {
			return r.search.Search(ctx, digits, hint)
		})
	}()
	wg.Wait()

	if googleResult != nil {
		return googleResult
	}
	return searchResult
}

// classifyFallback is phase 3: the tertiary classification source, queried
// sequentially for each ISBN-length candidate.
func (r *Resolver) classifyFallback(ctx context.Context, candidates []string) *catalog.Result {
	for _, candidate := range candidates {
		if !isbn.IsValidLength(candidate) {
			continue
		}
		result := fetch.BestEffort("Classify", func() (*catalog.Result, error) {
			return r.classify.LookupISBN(ctx, candidate)
		})
		if result != nil {
			return result
		}
	}
	return nil
}

// LookupByTitle resolves a free-text title query. Primary and secondary
// searches run concurrently; the primary result wins.
func (r *Resolver) LookupByTitle(ctx context.Context, query string) *catalog.Result {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}

	var googleResult, searchResult *catalog.Result
	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		googleResult = fetch.BestEffort("GoogleBooks", func() (*catalog.Result, error) {
			return r.google.SearchTitle(ctx, query, "")
		})
	}()
	go func() {
		defer wg.Done()
		searchResult = fetch.BestEffort("OpenLibrarySearch", func() (*catalog.Result, error) {
			return r.search.Search(ctx, query, "")
		})
	}()
	wg.Wait()

	result := googleResult
	if result == nil {
		result = searchResult
	}
	if result == nil {
		return nil
	}
	return r.enrichAndValidateCover(ctx, result, nil)
}

// LookupCover finds a cover URL from metadata alone.
func (r *Resolver) LookupCover(ctx context.Context, title, author, code string) string {
	return r.covers.LookupCover(ctx, title, author, code)
}

// enrichAndValidateCover settles the final cover for a resolved book.
// Covers already served from Google's image hosts are trusted as-is.
// Everything else goes through candidate accumulation and a reachability
// probe: the current cover, templated Open Library covers for every known
// ISBN, then metadata-driven cover searches. The primary source's hit is
// trusted outright, the secondary's joins the probe list.
func (r *Resolver) enrichAndValidateCover(ctx context.Context, result *catalog.Result, isbnCandidates []string) *catalog.Result {
	if result.CoverURL != "" && catalog.IsGoogleImageURL(result.CoverURL) {
		return result
	}

	var candidates []string
	if result.CoverURL != "" {
		candidates = append(candidates, result.CoverURL)
	}
	for _, code := range append([]string{result.ISBN}, isbnCandidates...) {
		if normalized := isbn.Normalize(code); normalized != "" {
			candidates = append(candidates, catalog.CoverURLForISBN(normalized))
		}
	}

	if trusted := fetch.BestEffort("GoogleBooks cover", func() (string, error) {
		return r.google.CoverSearch(ctx, result.Title, result.Author)
	}); trusted != "" {
		return result.WithCover(trusted)
	}

	if candidate := fetch.BestEffort("OpenLibrary search cover", func() (string, error) {
		return r.search.CoverSearch(ctx, result.Title, result.Author)
	}); candidate != "" {
		candidates = append(candidates, candidate)
	}

	if validated := r.prober.FirstReachable(ctx, dedupe(candidates)); validated != "" {
		return result.WithCover(validated)
	}
	return result.WithCover("")
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
