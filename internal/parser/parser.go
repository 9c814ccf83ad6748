package parser

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/conorfennell/memoria/internal/domain"
)

// Fiche files hold one or more content units:
//
//	K: genesis_1
//	T: Genesis 1
//	S: God creates the heavens and the earth.
//	B: Optional body,
//	which may span lines.
//	---
//
// A unit without a key is dropped; a unit without a title uses its key.
const (
	keyPrefix     = "K:"
	titlePrefix   = "T:"
	summaryPrefix = "S:"
	bodyPrefix    = "B:"
	separator     = "---"
)

type state int

const (
	seeking state = iota
	readingKey
	readingTitle
	readingSummary
	readingBody
)

var prefixes = []struct {
	prefix string
	state  state
}{
	{keyPrefix, readingKey},
	{titlePrefix, readingTitle},
	{summaryPrefix, readingSummary},
	{bodyPrefix, readingBody},
}

// ParseFile reads a file from the given path and extracts all content units.
func ParseFile(path string) ([]domain.ContentUnit, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return Parse(file)
}

// Parse reads from an io.Reader and extracts all content units.
func Parse(r io.Reader) ([]domain.ContentUnit, error) {
	scanner := bufio.NewScanner(r)
	var units []domain.ContentUnit
	var current domain.ContentUnit
	var block []string
	currentState := seeking

	flushBlock := func() {
		if len(block) == 0 {
			return
		}
		content := strings.TrimSpace(strings.Join(block, "\n"))
		switch currentState {
		case readingKey:
			current.ID = content
		case readingTitle:
			current.Title = content
		case readingSummary:
			current.Summary = content
		case readingBody:
			current.Body = content
		}
		block = nil
	}

	finishUnit := func() {
		flushBlock()
		if current.ID != "" {
			if current.Title == "" {
				current.Title = current.ID
			}
			units = append(units, current)
		}
		current = domain.ContentUnit{}
		currentState = seeking
	}

	for scanner.Scan() {
		line := scanner.Text()

		if strings.TrimSpace(line) == separator {
			finishUnit()
			continue
		}

		next, rest, ok := matchPrefix(line)
		if !ok {
			if currentState != seeking {
				block = append(block, line)
			}
			continue
		}

		// A new key always starts a new unit.
		if next == readingKey && currentState != seeking {
			finishUnit()
		}
		flushBlock()
		currentState = next
		block = append(block, rest)
	}

	finishUnit() // Finish the very last unit in the file

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return units, nil
}

func matchPrefix(line string) (state, string, bool) {
	for _, p := range prefixes {
		if rest, ok := strings.CutPrefix(line, p.prefix); ok {
			return p.state, strings.TrimPrefix(rest, " "), true
		}
	}
	return seeking, "", false
}
