// Package slug derives URL-safe node identifiers from titles.
package slug

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Fallback is used when a title has no ASCII letters or digits left after slugification.
const Fallback = "node"

var (
	// Matches any non-alphanumeric character.
	nonAlphanumeric = regexp.MustCompile(`[^a-z0-9]+`)
	// Matches multiple hyphens.
	multipleHyphens = regexp.MustCompile(`-+`)
	// Canonical slug shape.
	pattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)
)

// Slugify converts a string to a URL-safe slug.
// "Science Fiction" -> "science-fiction".
// "Café Links" -> "cafe-links".
// "Docs/API" -> "docs-api".
func Slugify(s string) string {
	// Decompose accented characters so the base letter survives the ASCII filter.
	s = norm.NFKD.String(s)

	s = strings.Map(func(r rune) rune {
		if r > unicode.MaxASCII {
			return -1
		}
		return r
	}, s)

	s = strings.ToLower(s)
	s = nonAlphanumeric.ReplaceAllString(s, "-")
	s = multipleHyphens.ReplaceAllString(s, "-")

	return strings.Trim(s, "-")
}

// Base returns the slug a title starts from before uniqueness suffixes.
func Base(title string) string {
	if s := Slugify(title); s != "" {
		return s
	}
	return Fallback
}

// IsValid reports whether s already has the canonical slug shape.
func IsValid(s string) bool {
	return pattern.MatchString(s)
}

// Unique tries base, base-2, base-3, ... and returns the first candidate
// for which taken reports false.
func Unique(base string, taken func(candidate string) bool) string {
	if base == "" {
		base = Fallback
	}
	candidate := base
	for n := 2; taken(candidate); n++ {
		candidate = base + "-" + strconv.Itoa(n)
	}
	return candidate
}

// Resolve turns an externally supplied node address into a slug.
// The raw value is percent-decoded; if the result is not already a valid slug
// it is slugified the same way titles are.
func Resolve(raw string) string {
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		decoded = raw
	}
	decoded = strings.TrimSpace(decoded)
	if IsValid(decoded) {
		return decoded
	}
	return Base(decoded)
}
