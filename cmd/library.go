package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"bookdex/internal/config"
	"bookdex/internal/library"
)

// ImportCmd imports books from a Goodreads library export.
type ImportCmd struct {
	Input   string `arg:"" help:"Path to the Goodreads library export CSV file"`
	Resolve bool   `help:"Resolve imported ISBNs against the catalogs for covers and genres" default:"false"`
	Covers  bool   `help:"Download cover images for imported books" default:"false"`
}

func (i *ImportCmd) Run() error {
	ctx := context.Background()

	books, err := library.ImportCSV(i.Input)
	if err != nil {
		return err
	}

	lib, err := library.Load(config.LibraryFile)
	if err != nil {
		return err
	}

	imported := 0
	for _, book := range books {
		if i.Resolve && book.ISBN != "" {
			if result := resolveCode(ctx, book.ISBN); result != nil {
				book.Genre = result.Genre
				book.CoverURL = result.CoverURL
				if result.ISBN != "" {
					book.ISBN = result.ISBN
				}
			}
		}

		if err := lib.Add(book); err != nil {
			slog.Debug("Skipping import entry", "title", book.Title, "reason", err)
			continue
		}

		if i.Covers {
			if stored := lib.Find(keyFor(book)); stored != nil {
				if err := library.FetchCover(stored); err != nil {
					slog.Warn("Could not download cover", "title", book.Title, "error", err)
				}
			}
		}
		imported++
	}

	if err := lib.Save(); err != nil {
		return err
	}

	fmt.Printf("Imported %d of %d books\n", imported, len(books))
	return nil
}

func keyFor(book library.Book) string {
	if book.ISBN != "" {
		return book.ISBN
	}
	return book.Title
}

// ListCmd lists library books, optionally filtered.
type ListCmd struct {
	Query []string `arg:"" optional:"" help:"Filter by title or author substring"`
	Lent  bool     `help:"Only show books that are currently lent out" default:"false"`
}

func (l *ListCmd) Run() error {
	lib, err := library.Load(config.LibraryFile)
	if err != nil {
		return err
	}

	query := ""
	for _, part := range l.Query {
		if query != "" {
			query += " "
		}
		query += part
	}

	books := lib.Search(query)
	if l.Lent {
		lent := books[:0]
		for _, book := range books {
			if book.Lent() {
				lent = append(lent, book)
			}
		}
		books = lent
	}
	if len(books) == 0 {
		fmt.Println("No books found")
		return nil
	}

	now := time.Now().UTC()
	for _, book := range books {
		line := fmt.Sprintf("%s by %s", book.Title, book.Author)
		if book.ISBN != "" {
			line += fmt.Sprintf(" [%s]", book.ISBN)
		}
		if book.Lent() {
			line += fmt.Sprintf(" (lent to %s", book.LentTo)
			if book.DueAt != nil {
				line += fmt.Sprintf(", due %s", book.DueAt.Format("2006-01-02"))
				if book.Overdue(now) {
					line += ", overdue"
				}
			}
			line += ")"
		}
		fmt.Println(line)
	}
	fmt.Printf("%d books\n", len(books))
	return nil
}

// LendCmd marks a book as lent out.
type LendCmd struct {
	Key string `arg:"" help:"ISBN or title of the book"`
	To  string `arg:"" help:"Person the book is lent to"`
	Due string `help:"Due date for the loan (YYYY-MM-DD)" default:""`
}

func (l *LendCmd) Run() error {
	var due *time.Time
	if l.Due != "" {
		parsed, err := time.Parse("2006-01-02", l.Due)
		if err != nil {
			return fmt.Errorf("invalid due date %q: %w", l.Due, err)
		}
		due = &parsed
	}

	lib, err := library.Load(config.LibraryFile)
	if err != nil {
		return err
	}
	if err := lib.Lend(l.Key, l.To, due); err != nil {
		return err
	}
	if err := lib.Save(); err != nil {
		return err
	}
	fmt.Printf("Lent %s to %s\n", l.Key, l.To)
	return nil
}

// ReturnCmd clears the lending state of a book.
type ReturnCmd struct {
	Key string `arg:"" help:"ISBN or title of the book"`
}

func (r *ReturnCmd) Run() error {
	lib, err := library.Load(config.LibraryFile)
	if err != nil {
		return err
	}
	if err := lib.Return(r.Key); err != nil {
		return err
	}
	if err := lib.Save(); err != nil {
		return err
	}
	fmt.Printf("Returned %s\n", r.Key)
	return nil
}

// RemoveCmd removes a book from the library.
type RemoveCmd struct {
	Key string `arg:"" help:"ISBN or title of the book"`
}

func (r *RemoveCmd) Run() error {
	lib, err := library.Load(config.LibraryFile)
	if err != nil {
		return err
	}
	if !lib.Remove(r.Key) {
		return fmt.Errorf("book not found: %s", r.Key)
	}
	if err := lib.Save(); err != nil {
		return err
	}
	fmt.Printf("Removed %s\n", r.Key)
	return nil
}
