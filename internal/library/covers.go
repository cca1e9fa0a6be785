package library

import (
	"bookdex/internal/config"
	"bookdex/internal/fileutil"
)

// FetchCover downloads the book's cover image into the configured cover
// directory and records the local filename on the book. Books without a
// cover URL are left untouched.
func FetchCover(book *Book) error {
	if book.CoverURL == "" {
		return nil
	}

	result, err := fileutil.DownloadCover(fileutil.CoverDownloadOptions{
		URL:          book.CoverURL,
		OutputDir:    config.CoverDir,
		Filename:     fileutil.BuildCoverFilename(book.Title),
		UpdateCovers: config.OverwriteFiles,
	})
	if err != nil {
		return err
	}
	if result != nil {
		book.CoverFile = result.Filename
	}
	return nil
}
