package library

import (
	"fmt"
	"strings"
	"time"

	"bookdex/internal/csvutil"
	"bookdex/internal/isbn"
)

// Goodreads export column positions used by the importer.
const (
	colTitle  = 1
	colAuthor = 2
	colISBN   = 5
	colISBN13 = 6

	minImportColumns = 7
)

// ImportCSV parses a Goodreads library export into collection entries.
// Records without a title are skipped.
func ImportCSV(filename string) ([]Book, error) {
	books, err := csvutil.ProcessCSV(filename, parseImportRecord, csvutil.ProcessorOptions{
		SkipInvalid: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to import CSV: %w", err)
	}
	return books, nil
}

func parseImportRecord(record []string) (Book, error) {
	if len(record) < minImportColumns {
		return Book{}, fmt.Errorf("record has %d columns, want at least %d", len(record), minImportColumns)
	}

	title := strings.TrimSpace(record[colTitle])
	if title == "" {
		return Book{}, fmt.Errorf("record has no title")
	}

	code := sanitizeISBNValue(record[colISBN13])
	if code == "" {
		code = sanitizeISBNValue(record[colISBN])
	}

	return Book{
		Title:   title,
		Author:  strings.TrimSpace(record[colAuthor]),
		ISBN:    code,
		AddedAt: time.Now().UTC(),
	}, nil
}

// sanitizeISBNValue strips the ="..." wrapper Goodreads uses to keep
// spreadsheet applications from mangling ISBNs, then normalizes the rest.
func sanitizeISBNValue(value string) string {
	trimmed := strings.TrimSuffix(value, "\"")
	trimmed = strings.TrimPrefix(trimmed, "=\"")
	return isbn.Normalize(trimmed)
}
