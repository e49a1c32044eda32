package store

import (
	"context"

	"github.com/fishdan-plugins/jsonmaker/internal/domain"
)

// SeedFunc builds the starter tree for an account seen for the first time.
type SeedFunc func() *domain.Node

// TreeStore is the persistence contract for account trees. Both the Badger
// store and the SQLite store implement it.
type TreeStore interface {
	// GetTree returns the stored record or ErrTreeNotFound.
	GetTree(ctx context.Context, accountID string) (*domain.TreeRecord, error)
	// GetOrCreateTree returns the stored record, persisting seed() first if
	// the account has none. created reports whether seeding happened.
	GetOrCreateTree(ctx context.Context, accountID string, seed SeedFunc) (rec *domain.TreeRecord, created bool, err error)
	// SaveTree overwrites the account's whole tree and assigns a new revision.
	SaveTree(ctx context.Context, accountID string, root *domain.Node) (*domain.TreeRecord, error)
	// DeleteTree removes the account's record or returns ErrTreeNotFound.
	DeleteTree(ctx context.Context, accountID string) error
	// ListAccounts returns every account with a stored tree, sorted.
	ListAccounts(ctx context.Context) ([]string, error)
	Ping() error
	Close() error
}

var _ TreeStore = (*Store)(nil)
