// Package library persists the personal book collection as a JSON file
// and tracks lending state per book.
package library

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"bookdex/internal/catalog"
	"bookdex/internal/fileutil"
	"bookdex/internal/genre"
)

// Book is one entry of the collection.
type Book struct {
	Title     string      `json:"title"`
	Author    string      `json:"author"`
	ISBN      string      `json:"isbn,omitempty"`
	Genre     genre.Genre `json:"genre,omitempty"`
	CoverURL  string      `json:"cover_url,omitempty"`
	CoverFile string      `json:"cover_file,omitempty"`
	AddedAt   time.Time   `json:"added_at"`
	LentTo    string      `json:"lent_to,omitempty"`
	LentAt    *time.Time  `json:"lent_at,omitempty"`
	DueAt     *time.Time  `json:"due,omitempty"`
}

// Lent reports whether the book is currently lent out.
func (b *Book) Lent() bool {
	return b.LentTo != ""
}

// Overdue reports whether a lent book has passed its due date.
func (b *Book) Overdue(now time.Time) bool {
	return b.Lent() && b.DueAt != nil && now.After(*b.DueAt)
}

// FromResult converts a catalog lookup result into a collection entry.
func FromResult(r *catalog.Result) Book {
	return Book{
		Title:    r.Title,
		Author:   r.Author,
		ISBN:     r.ISBN,
		Genre:    r.Genre,
		CoverURL: r.CoverURL,
		AddedAt:  time.Now().UTC(),
	}
}

// Library is the in-memory view of one collection file.
type Library struct {
	path  string
	Books []Book `json:"books"`
}

// Load reads the collection file at path. A missing file yields an empty
// library bound to that path.
func Load(path string) (*Library, error) {
	lib := &Library{path: path}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return lib, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read library file: %w", err)
	}

	if err := json.Unmarshal(data, lib); err != nil {
		return nil, fmt.Errorf("failed to parse library file %s: %w", path, err)
	}
	return lib, nil
}

// Save writes the collection back to its file.
func (l *Library) Save() error {
	if _, err := fileutil.WriteJSONFile(l, l.path, true); err != nil {
		return fmt.Errorf("failed to save library: %w", err)
	}
	return nil
}

// Add appends a book to the collection. Books with an ISBN already present
// are rejected; ISBN-less books are matched by title and author instead.
func (l *Library) Add(book Book) error {
	if existing := l.find(book); existing != nil {
		return fmt.Errorf("book already in library: %s", existing.Title)
	}
	if book.AddedAt.IsZero() {
		book.AddedAt = time.Now().UTC()
	}
	l.Books = append(l.Books, book)
	return nil
}

// Remove deletes the book matching the given ISBN or exact title.
// It reports whether anything was removed.
func (l *Library) Remove(key string) bool {
	for i := range l.Books {
		if l.matchesKey(&l.Books[i], key) {
			l.Books = append(l.Books[:i], l.Books[i+1:]...)
			return true
		}
	}
	return false
}

// Find returns the book matching the given ISBN or exact title, or nil.
func (l *Library) Find(key string) *Book {
	for i := range l.Books {
		if l.matchesKey(&l.Books[i], key) {
			return &l.Books[i]
		}
	}
	return nil
}

// Search returns all books whose title or author contains the query,
// case-insensitively, sorted by title.
func (l *Library) Search(query string) []Book {
	query = strings.ToLower(strings.TrimSpace(query))

	var matches []Book
	for _, b := range l.Books {
		if query == "" ||
			strings.Contains(strings.ToLower(b.Title), query) ||
			strings.Contains(strings.ToLower(b.Author), query) {
			matches = append(matches, b)
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].Title < matches[j].Title
	})
	return matches
}

// Lend marks a book as lent out to the given person. A nil due date means
// an open-ended loan.
func (l *Library) Lend(key, to string, due *time.Time) error {
	book := l.Find(key)
	if book == nil {
		return fmt.Errorf("book not found: %s", key)
	}
	if book.Lent() {
		return fmt.Errorf("%s is already lent to %s", book.Title, book.LentTo)
	}

	now := time.Now().UTC()
	book.LentTo = to
	book.LentAt = &now
	book.DueAt = due
	return nil
}

// Return clears the lending state of a book.
func (l *Library) Return(key string) error {
	book := l.Find(key)
	if book == nil {
		return fmt.Errorf("book not found: %s", key)
	}
	if !book.Lent() {
		return fmt.Errorf("%s is not lent out", book.Title)
	}

	book.LentTo = ""
	book.LentAt = nil
	book.DueAt = nil
	return nil
}

func (l *Library) find(book Book) *Book {
	for i := range l.Books {
		existing := &l.Books[i]
		if book.ISBN != "" && existing.ISBN == book.ISBN {
			return existing
		}
		if book.ISBN == "" && existing.ISBN == "" &&
			strings.EqualFold(existing.Title, book.Title) &&
			strings.EqualFold(existing.Author, book.Author) {
			return existing
		}
	}
	return nil
}

func (l *Library) matchesKey(book *Book, key string) bool {
	if book.ISBN != "" && book.ISBN == key {
		return true
	}
	return strings.EqualFold(book.Title, key)
}
