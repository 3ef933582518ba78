package domain

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	maxSlugLen = 255
	// suffixLen is the hex length of the random suffix.
	suffixLen   = 8
	maxSlugBase = maxSlugLen - 1 - suffixLen
)

// NewSlug derives a URL slug from title followed by a random 8-hex-digit suffix,
// e.g. "Héllo, World!" becomes "hello-world-1a2b3c4d".
func NewSlug(title string) (string, error) {
	return newSlug(title, rand.Reader)
}

func newSlug(title string, src io.Reader) (string, error) {
	var suffix [4]byte
	if _, err := io.ReadFull(src, suffix[:]); err != nil {
		return "", fmt.Errorf("slug suffix: %w", err)
	}
	base := Slugify(title)
	if len(base) > maxSlugBase {
		base = strings.TrimRight(base[:maxSlugBase], "-")
	}
	if base == "" {
		return hex.EncodeToString(suffix[:]), nil
	}
	return base + "-" + hex.EncodeToString(suffix[:]), nil
}

// Slugify lower-cases s, strips diacritics and joins runs of ASCII letters and digits with "-".
// Other characters are dropped.
func Slugify(s string) string {
	folded, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), s)
	if err != nil {
		folded = s
	}
	var b strings.Builder
	pendingDash := false
	for _, r := range strings.ToLower(folded) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r)
		case unicode.IsSpace(r), r == '-', r == '_':
			pendingDash = true
		}
	}
	return b.String()
}
