// Package id generates identifiers for stored trees, SSE clients, and inbox jobs.
package id

import (
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// revisionAlphabet keeps revisions safe inside quoted ETag headers and file names.
const (
	revisionAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	revisionLength   = 16
)

// Generate creates a prefixed unique ID using NanoID.
// Format: prefix-nanoid (e.g., "sse-V1StGXR8_Z5jdHi6B-myT").
func Generate(prefix string) (string, error) {
	id, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate nanoid: %w", err)
	}
	return prefix + "-" + id, nil
}

// MustGenerate is like Generate but panics if ID generation fails.
func MustGenerate(prefix string) string {
	id, err := Generate(prefix)
	if err != nil {
		panic(fmt.Sprintf("failed to generate ID: %v", err))
	}
	return id
}

// Revision returns a fresh revision tag for a saved tree.
// Every whole-tree write gets a new one, so clients can detect changes cheaply.
func Revision() (string, error) {
	rev, err := gonanoid.Generate(revisionAlphabet, revisionLength)
	if err != nil {
		return "", fmt.Errorf("generate revision: %w", err)
	}
	return rev, nil
}
