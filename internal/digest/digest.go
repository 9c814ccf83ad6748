package digest

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/conorfennell/memoria/internal/domain"
)

// Normalize joins the unit's key and metadata after cleaning each part.
// Whitespace is trimmed and line endings are normalized; case is kept, since
// a title change is a real change.
func Normalize(u domain.ContentUnit) string {
	clean := func(part string) string {
		p := strings.ReplaceAll(part, "\r\n", "\n")
		return strings.TrimSpace(p)
	}

	// Newline separation keeps "ab"+"c" and "a"+"bc" apart.
	return strings.Join([]string{clean(u.ID), clean(u.Title), clean(u.Summary), clean(u.Body)}, "\n")
}

// Sum returns the SHA-256 of the normalized unit as a hex string.
func Sum(u domain.ContentUnit) string {
	return fmt.Sprintf("%x", sha256.Sum256([]byte(Normalize(u))))
}
