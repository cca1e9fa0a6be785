package resolver

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"bookdex/internal/catalog"
	"bookdex/internal/cover"
	"bookdex/internal/fetch"
	"bookdex/internal/genre"
	"bookdex/internal/ratelimit"
)

// newIPv4TestServer starts a test server bound to IPv4 loopback to avoid IPv6 listener issues.
func newIPv4TestServer(t *testing.T, handler http.Handler) *httptest.Server {
	t.Helper()

	listener, err := net.Listen("tcp4", "127.0.0.1:0")
	require.NoError(t, err)

	server := httptest.NewUnstartedServer(handler)
	server.Listener = listener
	server.Start()

	t.Cleanup(server.Close)
	return server
}

// hostLockedDoer refuses any request that would leave the test server, so
// templated cover URLs pointing at real hosts fail like a dead network.
type hostLockedDoer struct {
	inner fetch.HTTPDoer
	host  string
}

func (d hostLockedDoer) Do(req *http.Request) (*http.Response, error) {
	if req.URL.Host != d.host {
		return nil, fmt.Errorf("blocked external request to %s", req.URL.Host)
	}
	return d.inner.Do(req)
}

func newTestResolver(t *testing.T, mux *http.ServeMux) (*Resolver, *httptest.Server) {
	t.Helper()
	server := newIPv4TestServer(t, mux)

	serverURL, err := url.Parse(server.URL)
	require.NoError(t, err)
	locked := hostLockedDoer{inner: server.Client(), host: serverURL.Host}

	fetcher := fetch.New(
		fetch.WithHTTPClient(locked),
		fetch.WithProbeClient(locked),
		fetch.WithBackoffBase(time.Millisecond),
	)

	google := catalog.NewGoogleBooks(fetcher,
		catalog.WithGoogleBooksBaseURL(server.URL),
		catalog.WithGoogleBooksRateLimiter(ratelimit.New("GoogleBooks", 1000)),
	)
	openLib := catalog.NewOpenLibrary(fetcher,
		catalog.WithOpenLibraryBaseURL(server.URL),
		catalog.WithOpenLibraryRateLimiter(ratelimit.New("OpenLibrary", 1000)),
	)
	search := catalog.NewOpenLibrarySearch(fetcher,
		catalog.WithSearchBaseURL(server.URL),
		catalog.WithSearchRateLimiter(ratelimit.New("OpenLibrarySearch", 1000)),
	)
	classify := catalog.NewClassify(fetcher,
		catalog.WithClassifyBaseURL(server.URL),
		catalog.WithClassifyRateLimiter(ratelimit.New("Classify", 1000)),
	)
	prober := cover.NewProber(fetcher)
	covers := cover.NewResolver(google, openLib, search, prober)

	return New(google, openLib, search, classify, covers, prober), server
}

func TestLookupResolvesISBNInPhaseOne(t *testing.T) {
	mux := http.NewServeMux()

	var classifyCalls, searchCalls atomic.Int32
	mux.HandleFunc("/volumes", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("q")
		if q == "isbn:9780143127741" {
			_, _ = w.Write([]byte(`{
				"totalItems": 1,
				"items": [{"volumeInfo": {
					"title": "Being Mortal",
					"authors": ["Atul Gawande"],
					"categories": ["Biography & Autobiography"],
					"industryIdentifiers": [{"type": "ISBN_13", "identifier": "9780143127741"}],
					"imageLinks": {"thumbnail": "http://books.google.com/books/content?id=bm"}
				}}]
			}`))
			return
		}
		_, _ = w.Write([]byte(`{"totalItems": 0, "items": []}`))
	})
	mux.HandleFunc("/api/books", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})
	mux.HandleFunc("/search.json", func(w http.ResponseWriter, r *http.Request) {
		searchCalls.Add(1)
		_, _ = w.Write([]byte(`{"docs": []}`))
	})
	mux.HandleFunc("/Classify", func(w http.ResponseWriter, r *http.Request) {
		classifyCalls.Add(1)
		_, _ = w.Write([]byte(`<classify/>`))
	})

	r, _ := newTestResolver(t, mux)
	result := r.Lookup(context.Background(), "9780143127741")

	require.NotNil(t, result)
	require.Equal(t, "Being Mortal", result.Title)
	require.Equal(t, "Atul Gawande", result.Author)
	require.Equal(t, "9780143127741", result.ISBN)
	require.Equal(t, genre.Biography, result.Genre)
	// the thumbnail is on Google's image host: trusted without probing
	require.Equal(t, "https://books.google.com/books/content?id=bm", result.CoverURL)

	// phases 2 and 3 never ran
	require.Equal(t, int32(0), classifyCalls.Load())
	require.Equal(t, int32(0), searchCalls.Load())
}

func TestLookupPrefersPrimaryOverSecondary(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/volumes", func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Query().Get("q"), "isbn:") {
			_, _ = w.Write([]byte(`{
				"totalItems": 1,
				"items": [{"volumeInfo": {
					"title": "Primary Title",
					"imageLinks": {"thumbnail": "http://books.google.com/books?id=p"}
				}}]
			}`))
			return
		}
		_, _ = w.Write([]byte(`{"totalItems": 0, "items": []}`))
	})
	mux.HandleFunc("/api/books", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"ISBN:9780143127741": {
				"title": "Secondary Title",
				"authors": [{"name": "Someone Else"}],
				"cover": {"large": "https://covers.openlibrary.org/b/id/5-L.jpg"}
			}
		}`))
	})
	emptySearchAndClassify(mux)

	r, _ := newTestResolver(t, mux)
	result := r.Lookup(context.Background(), "9780143127741")

	require.NotNil(t, result)
	require.Equal(t, "Primary Title", result.Title)
}

func TestLookupPrefersPrimaryMetadataEvenWithoutCover(t *testing.T) {
	// The primary item has no image links; the secondary one has a cover.
	// Phase 1 still picks the primary metadata, and only cover enrichment
	// may fill the image afterwards.
	mux := http.NewServeMux()

	var coverURL string
	mux.HandleFunc("/volumes", func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Query().Get("q"), "isbn:") {
			_, _ = w.Write([]byte(`{
				"totalItems": 1,
				"items": [{"volumeInfo": {"title": "Primary Metadata"}}]
			}`))
			return
		}
		// metadata-driven cover search during enrichment
		_, _ = w.Write([]byte(`{
			"totalItems": 1,
			"items": [{"volumeInfo": {
				"title": "Primary Metadata",
				"imageLinks": {"thumbnail": "` + coverURL + `"}
			}}]
		}`))
	})
	mux.HandleFunc("/api/books", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"ISBN:9780143127741": {
				"title": "Secondary Metadata",
				"cover": {"large": "https://covers.openlibrary.org/b/id/5-L.jpg"}
			}
		}`))
	})
	emptySearchAndClassify(mux)

	r, server := newTestResolver(t, mux)
	coverURL = server.URL + "/enriched.jpg"

	result := r.Lookup(context.Background(), "9780143127741")
	require.NotNil(t, result)
	require.Equal(t, "Primary Metadata", result.Title)
	// cover came from enrichment's trusted primary-source search, upgraded to https
	require.Equal(t, "https://"+strings.TrimPrefix(coverURL, "http://"), result.CoverURL)
}

func TestLookupFallsBackToSecondaryInPhaseOne(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/volumes", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"totalItems": 0, "items": []}`))
	})
	mux.HandleFunc("/api/books", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("bibkeys") == "ISBN:9780143127741" {
			_, _ = w.Write([]byte(`{
				"ISBN:9780143127741": {
					"title": "Open Library Hit",
					"authors": [{"name": "Atul Gawande"}]
				}
			}`))
			return
		}
		_, _ = w.Write([]byte(`{}`))
	})
	emptySearchAndClassify(mux)

	r, _ := newTestResolver(t, mux)
	result := r.Lookup(context.Background(), "9780143127741")

	require.NotNil(t, result)
	require.Equal(t, "Open Library Hit", result.Title)
	require.Equal(t, "Atul Gawande", result.Author)
	// nothing probed reachable, so the cover stays empty
	require.Equal(t, "", result.CoverURL)
}

func TestLookupPhaseTwoBroadSearch(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/volumes", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"totalItems": 0, "items": []}`))
	})
	mux.HandleFunc("/api/books", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})

	var sawHintedQuery atomic.Bool
	mux.HandleFunc("/search.json", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("q") == "9780143127741" {
			sawHintedQuery.Store(true)
			_, _ = w.Write([]byte(`{
				"docs": [{"title": "Search Hit", "author_name": ["Atul Gawande"], "isbn": ["9780143127741"]}]
			}`))
			return
		}
		_, _ = w.Write([]byte(`{"docs": []}`))
	})
	mux.HandleFunc("/Classify", func(w http.ResponseWriter, r *http.Request) {
		t.Error("phase 3 must not run when phase 2 succeeds")
	})

	r, _ := newTestResolver(t, mux)
	result := r.Lookup(context.Background(), "9780143127741")

	require.NotNil(t, result)
	require.Equal(t, "Search Hit", result.Title)
	require.Equal(t, "9780143127741", result.ISBN)
	require.True(t, sawHintedQuery.Load())
}

func TestLookupPhaseThreeClassify(t *testing.T) {
	mux2 := http.NewServeMux()
	mux2.HandleFunc("/volumes", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"totalItems": 0, "items": []}`))
	})
	mux2.HandleFunc("/api/books", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})
	mux2.HandleFunc("/search.json", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"docs": []}`))
	})
	mux2.HandleFunc("/Classify", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "9780143127741", r.URL.Query().Get("isbn"))
		_, _ = w.Write([]byte(`<classify><work author="Gawande, Atul" title="Being Mortal"/></classify>`))
	})

	r, _ := newTestResolver(t, mux2)
	result := r.Lookup(context.Background(), "9780143127741")

	require.NotNil(t, result)
	require.Equal(t, "Being Mortal", result.Title)
	require.Equal(t, "Gawande, Atul", result.Author)
	require.Equal(t, genre.Other, result.Genre)
}

func TestLookupNoMatchesAnywhere(t *testing.T) {
	mux := http.NewServeMux()
	var classifyCalls atomic.Int32
	mux.HandleFunc("/volumes", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"totalItems": 0, "items": []}`))
	})
	mux.HandleFunc("/api/books", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})
	mux.HandleFunc("/search.json", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"docs": []}`))
	})
	mux.HandleFunc("/Classify", func(w http.ResponseWriter, r *http.Request) {
		classifyCalls.Add(1)
		_, _ = w.Write([]byte(`<classify><response code="102"/></classify>`))
	})

	r, _ := newTestResolver(t, mux)
	result := r.Lookup(context.Background(), "9780143127741")

	require.Nil(t, result)
	// both ISBN-length candidates were tried against the tertiary source
	require.Equal(t, int32(2), classifyCalls.Load())
}

func TestLookupEmptyAndJunkInput(t *testing.T) {
	r, _ := newTestResolver(t, http.NewServeMux())
	require.Nil(t, r.Lookup(context.Background(), ""))
	require.Nil(t, r.Lookup(context.Background(), "no digits here"))
}

func TestLookupByTitle(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/volumes", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("q")
		if strings.HasPrefix(q, "intitle:") {
			_, _ = w.Write([]byte(`{
				"totalItems": 1,
				"items": [{"volumeInfo": {
					"title": "Dune",
					"authors": ["Frank Herbert"],
					"categories": ["Science Fiction"],
					"imageLinks": {"thumbnail": "http://books.google.com/books?id=dune"}
				}}]
			}`))
			return
		}
		_, _ = w.Write([]byte(`{"totalItems": 0, "items": []}`))
	})
	mux.HandleFunc("/search.json", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"docs": [{"title": "Dune (Open Library)"}]}`))
	})

	r, _ := newTestResolver(t, mux)
	result := r.LookupByTitle(context.Background(), "  Dune  ")

	require.NotNil(t, result)
	require.Equal(t, "Dune", result.Title)
	require.Equal(t, "Frank Herbert", result.Author)
	require.Equal(t, genre.ScienceFiction, result.Genre)
}

func TestLookupByTitleFallsBackToSecondary(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/volumes", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"totalItems": 0, "items": []}`))
	})
	mux.HandleFunc("/search.json", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("q") == "Obscure Title" {
			_, _ = w.Write([]byte(`{"docs": [{"title": "Obscure Title", "author_name": ["Unknown Person"]}]}`))
			return
		}
		_, _ = w.Write([]byte(`{"docs": []}`))
	})

	r, _ := newTestResolver(t, mux)
	result := r.LookupByTitle(context.Background(), "Obscure Title")

	require.NotNil(t, result)
	require.Equal(t, "Obscure Title", result.Title)
	require.Equal(t, "Unknown Person", result.Author)
}

func TestLookupByTitleEmptyQuery(t *testing.T) {
	r, _ := newTestResolver(t, http.NewServeMux())
	require.Nil(t, r.LookupByTitle(context.Background(), "   "))
}

func TestLookupSurvivesFailingSources(t *testing.T) {
	// Primary source is down hard; the secondary still resolves the book.
	mux := http.NewServeMux()
	mux.HandleFunc("/volumes", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	mux.HandleFunc("/api/books", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"ISBN:9780143127741": {"title": "Still Resolved"}
		}`))
	})
	emptySearchAndClassify(mux)

	r, _ := newTestResolver(t, mux)
	result := r.Lookup(context.Background(), "9780143127741")

	require.NotNil(t, result)
	require.Equal(t, "Still Resolved", result.Title)
}

func emptySearchAndClassify(mux *http.ServeMux) {
	mux.HandleFunc("/search.json", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"docs": []}`))
	})
	mux.HandleFunc("/Classify", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<classify/>`))
	})
}
