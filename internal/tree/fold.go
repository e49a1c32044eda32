package tree

import (
	"golang.org/x/text/cases"
)

// Fold returns the case-insensitive comparison key for a title.
// Titles are compared with Unicode full case folding, so "Straße" and
// "STRASSE" collide just like "Docs" and "docs".
func Fold(title string) string {
	// A Caser keeps state between calls, so each comparison gets its own.
	return cases.Fold().String(title)
}

// SameTitle reports whether two titles are equal under Fold.
func SameTitle(a, b string) bool {
	return Fold(a) == Fold(b)
}
