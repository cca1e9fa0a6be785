package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"bookdex/internal/cache"
	"bookdex/internal/catalog"
	"bookdex/internal/config"
	"bookdex/internal/fetch"
	"bookdex/internal/isbn"
	"bookdex/internal/library"
	"bookdex/internal/resolver"
	"bookdex/internal/tui"
)

// Seams for tests.
var (
	newResolver = func() *resolver.Resolver {
		return resolver.NewFromFetcher(fetch.New())
	}
	newGoogleBooks = func() *catalog.GoogleBooks {
		return catalog.NewGoogleBooks(fetch.New())
	}
	selectResult = tui.Select
)

// cachedLookup is the cache representation of one resolution attempt.
// Misses are stored too, with a shorter TTL.
type cachedLookup struct {
	Result   *catalog.Result `json:"result,omitempty"`
	NotFound bool            `json:"not_found,omitempty"`
}

func lookupNegativeTTL() func(cachedLookup) time.Duration {
	return cache.SelectNegativeCacheTTL(func(c cachedLookup) bool { return c.NotFound })
}

// resolveCode resolves a scanned code through the cache.
func resolveCode(ctx context.Context, code string) *catalog.Result {
	r := newResolver()
	cached, _, err := cache.GetOrFetchWithTTL("lookup_cache", "code:"+code, func() (cachedLookup, error) {
		result := r.Lookup(ctx, code)
		return cachedLookup{Result: result, NotFound: result == nil}, nil
	}, lookupNegativeTTL())
	if err != nil {
		return nil
	}
	return cached.Result
}

// resolveTitle resolves a free-text title query through the cache.
func resolveTitle(ctx context.Context, query string) *catalog.Result {
	r := newResolver()
	cached, _, err := cache.GetOrFetchWithTTL("lookup_cache", "title:"+query, func() (cachedLookup, error) {
		result := r.LookupByTitle(ctx, query)
		return cachedLookup{Result: result, NotFound: result == nil}, nil
	}, lookupNegativeTTL())
	if err != nil {
		return nil
	}
	return cached.Result
}

// resolve picks the lookup strategy from the shape of the input: anything
// that yields ISBN candidates is treated as a scanned code.
func resolve(ctx context.Context, input string) *catalog.Result {
	if len(isbn.Candidates(input)) > 0 {
		return resolveCode(ctx, input)
	}
	return resolveTitle(ctx, input)
}

func printResult(result *catalog.Result) {
	fmt.Printf("Title:  %s\n", result.Title)
	fmt.Printf("Author: %s\n", result.Author)
	if result.ISBN != "" {
		fmt.Printf("ISBN:   %s\n", result.ISBN)
	}
	if result.Genre != "" {
		fmt.Printf("Genre:  %s\n", result.Genre)
	}
	if result.CoverURL != "" {
		fmt.Printf("Cover:  %s\n", result.CoverURL)
	}
}

// LookupCmd resolves a scanned barcode or ISBN.
type LookupCmd struct {
	Code string `arg:"" help:"Barcode digits or ISBN to resolve"`
}

func (l *LookupCmd) Run() error {
	result := resolveCode(context.Background(), l.Code)
	if result == nil {
		return fmt.Errorf("no book found for code %s", l.Code)
	}
	printResult(result)
	return nil
}

// SearchCmd searches catalogs by title.
type SearchCmd struct {
	Query         []string `arg:"" help:"Title to search for"`
	NoInteractive bool     `help:"Skip the picker and use the best match" default:"false"`
}

func (s *SearchCmd) Run() error {
	query := strings.Join(s.Query, " ")

	result, err := searchWithPicker(context.Background(), query, !s.NoInteractive)
	if err != nil {
		return err
	}
	if result == nil {
		return fmt.Errorf("no book found for %q", query)
	}
	printResult(result)
	return nil
}

// searchWithPicker runs a title search. In interactive mode multiple
// candidates go through the selection UI; otherwise the resolver's best
// match wins.
func searchWithPicker(ctx context.Context, query string, interactive bool) (*catalog.Result, error) {
	if !interactive {
		return resolveTitle(ctx, query), nil
	}

	candidates, err := newGoogleBooks().SearchCandidates(ctx, query)
	if err != nil || len(candidates) == 0 {
		// fall back to the non-interactive path when the candidate
		// search is unavailable
		return resolveTitle(ctx, query), nil
	}
	if len(candidates) == 1 {
		return candidates[0], nil
	}

	selection, err := selectResult(query, candidates)
	if err != nil {
		return nil, err
	}
	switch selection.Action {
	case tui.ActionSelected:
		return selection.Selection, nil
	case tui.ActionStopped:
		return nil, fmt.Errorf("selection aborted")
	default:
		return nil, nil
	}
}

// AddCmd resolves a code or title and stores the book in the library.
type AddCmd struct {
	Query         []string `arg:"" help:"Barcode, ISBN, or title of the book to add"`
	NoCover       bool     `help:"Skip downloading the cover image" default:"false"`
	NoInteractive bool     `help:"Skip the picker for title queries" default:"false"`
}

func (a *AddCmd) Run() error {
	ctx := context.Background()
	query := strings.Join(a.Query, " ")

	var result *catalog.Result
	var err error
	if len(isbn.Candidates(query)) > 0 {
		result = resolveCode(ctx, query)
	} else {
		result, err = searchWithPicker(ctx, query, !a.NoInteractive)
		if err != nil {
			return err
		}
	}
	if result == nil {
		return fmt.Errorf("no book found for %q", query)
	}

	lib, err := library.Load(config.LibraryFile)
	if err != nil {
		return err
	}

	book := library.FromResult(result)
	if err := lib.Add(book); err != nil {
		return err
	}

	if !a.NoCover {
		stored := lib.Find(book.Title)
		if book.ISBN != "" {
			stored = lib.Find(book.ISBN)
		}
		if err := library.FetchCover(stored); err != nil {
			slog.Warn("Could not download cover", "title", book.Title, "error", err)
		}
	}

	if err := lib.Save(); err != nil {
		return err
	}

	fmt.Printf("Added %s by %s\n", book.Title, book.Author)
	return nil
}

// CoverCmd finds and downloads a cover for a book already in the library.
type CoverCmd struct {
	Key string `arg:"" help:"ISBN or title of the library book"`
}

func (c *CoverCmd) Run() error {
	ctx := context.Background()

	lib, err := library.Load(config.LibraryFile)
	if err != nil {
		return err
	}

	book := lib.Find(c.Key)
	if book == nil {
		return fmt.Errorf("book not found: %s", c.Key)
	}

	if book.CoverURL == "" {
		cacheKey := book.ISBN
		if cacheKey == "" {
			cacheKey = book.Title
		}
		r := newResolver()
		url, _, err := cache.GetOrFetch("cover_cache", cacheKey, func() (string, error) {
			return r.LookupCover(ctx, book.Title, book.Author, book.ISBN), nil
		})
		if err != nil {
			return err
		}
		if url == "" {
			return fmt.Errorf("no cover found for %s", book.Title)
		}
		book.CoverURL = url
	}

	if err := library.FetchCover(book); err != nil {
		return err
	}
	if err := lib.Save(); err != nil {
		return err
	}

	fmt.Printf("Cover saved as %s\n", book.CoverFile)
	return nil
}
