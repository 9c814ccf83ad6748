package plan

import (
	"errors"
	"fmt"
)

var (
	ErrNoBooks  = errors.New("book list is empty")
	ErrBadDays  = errors.New("days must be at least 1")
	ErrTooShort = errors.New("more days than chapters")
)

// Book is a named book with a chapter count. Slug prefixes chapter keys.
type Book struct {
	Slug     string `json:"slug"`
	Name     string `json:"name"`
	Chapters int    `json:"chapters"`
}

// Chapter is one chapter of a book. Key matches the content unit ID
// convention "<slug>_<n>".
type Chapter struct {
	Book   string `json:"book"`
	Number int    `json:"number"`
	Key    string `json:"key"`
}

// Day is one day of a reading plan.
type Day struct {
	Day      int       `json:"day"`
	Chapters []Chapter `json:"chapters"`
}

// Chapters flattens books into their chapters in order.
func Chapters(books []Book) []Chapter {
	var out []Chapter
	for _, b := range books {
		for n := 1; n <= b.Chapters; n++ {
			out = append(out, Chapter{Book: b.Name, Number: n, Key: fmt.Sprintf("%s_%d", b.Slug, n)})
		}
	}
	return out
}

// Generate splits the chapters of books into days contiguous chunks. Sizes
// differ by at most one; the earlier days take the extra chapters.
func Generate(books []Book, days int) ([]Day, error) {
	if days < 1 {
		return nil, ErrBadDays
	}
	chapters := Chapters(books)
	if len(chapters) == 0 {
		return nil, ErrNoBooks
	}
	if days > len(chapters) {
		return nil, fmt.Errorf("%w: %d days for %d chapters", ErrTooShort, days, len(chapters))
	}

	base, extra := len(chapters)/days, len(chapters)%days
	plan := make([]Day, 0, days)
	start := 0
	for d := 0; d < days; d++ {
		size := base
		if d < extra {
			size++
		}
		plan = append(plan, Day{Day: d + 1, Chapters: chapters[start : start+size]})
		start += size
	}
	return plan, nil
}
