package domain

import (
	"time"
)

// Default seed used when an account's tree is first accessed.
const (
	DefaultSeedTitle = "Fishdan"
	DefaultSeedValue = "https://www.fishdan.com"
)

// TreeRecord is the persisted form of one account's tree.
// The whole record is written on every change.
type TreeRecord struct {
	AccountID string    `json:"account_id"`
	Revision  string    `json:"revision"` // Regenerated on every save
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Root      *Node     `json:"root"`
}

// SeedTree returns the starter tree for a new account: a single root leaf.
// rootSlug must already be a valid slug for title.
func SeedTree(title, rootSlug, value string) *Node {
	return &Node{
		Title:    title,
		Slug:     rootSlug,
		Value:    value,
		Children: []*Node{},
	}
}
