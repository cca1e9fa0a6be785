// Package genre maps free-form catalog category strings onto the fixed set
// of genres the collection understands.
package genre

import "strings"

// Genre is a normalized book genre.
type Genre string

const (
	Fiction        Genre = "fiction"
	Fantasy        Genre = "fantasy"
	Mystery        Genre = "mystery"
	Thriller       Genre = "thriller"
	ScienceFiction Genre = "scienceFiction"
	Romance        Genre = "romance"
	Historical     Genre = "historical"
	Biography      Genre = "biography"
	SelfHelp       Genre = "selfHelp"
	Children       Genre = "children"
	NonFiction     Genre = "nonFiction"
	Other          Genre = "other"
)

// keywordRule maps a category substring onto a genre. Order matters: more
// specific keywords come before the generic fiction/nonfiction buckets.
type keywordRule struct {
	keyword string
	genre   Genre
}

var rules = []keywordRule{
	{"fantasy", Fantasy},
	{"mystery", Mystery},
	{"thriller", Thriller},
	{"science", ScienceFiction},
	{"sci-fi", ScienceFiction},
	{"romance", Romance},
	{"history", Historical},
	{"biography", Biography},
	{"memoir", Biography},
	{"self", SelfHelp},
	{"juvenile", Children},
	{"children", Children},
	{"nonfiction", NonFiction},
	{"fiction", Fiction},
}

// Classify maps a raw category string (e.g. a Google Books category or an
// Open Library subject) onto a Genre via case-insensitive substring match.
// Unrecognized categories fall through to Other.
func Classify(category string) Genre {
	lowered := strings.ToLower(category)
	for _, rule := range rules {
		if strings.Contains(lowered, rule.keyword) {
			return rule.genre
		}
	}
	return Other
}
