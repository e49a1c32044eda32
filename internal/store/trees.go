package store

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/fishdan-plugins/jsonmaker/internal/domain"
	"github.com/fishdan-plugins/jsonmaker/internal/id"
	"github.com/fishdan-plugins/jsonmaker/internal/sse"
	"github.com/fishdan-plugins/jsonmaker/internal/tree"
)

// GetTree retrieves the tree stored for an account.
func (s *Store) GetTree(ctx context.Context, accountID string) (*domain.TreeRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if accountID == "" {
		return nil, ErrInvalidAccount
	}

	var rec domain.TreeRecord
	err := s.db.View(func(txn *badger.Txn) error {
		key := buildKey(treePrefix, accountID)
		defer releaseKey(key)

		err := get(txn, key, &rec)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrTreeNotFound
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// GetOrCreateTree retrieves an account's tree, storing seed() first when the
// account has none. Lookup and creation happen in one transaction.
func (s *Store) GetOrCreateTree(ctx context.Context, accountID string, seed SeedFunc) (*domain.TreeRecord, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	if accountID == "" {
		return nil, false, ErrInvalidAccount
	}

	var (
		rec     domain.TreeRecord
		created bool
	)
	err := s.db.Update(func(txn *badger.Txn) error {
		key := treeKey(accountID)
		err := get(txn, key, &rec)
		if err == nil {
			return nil
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		fresh, err := NewRecord(accountID, seed(), nil)
		if err != nil {
			return err
		}
		rec = *fresh
		created = true
		return set(txn, key, &rec)
	})
	if errors.Is(err, badger.ErrConflict) {
		// Another writer seeded concurrently; theirs wins.
		r, getErr := s.GetTree(ctx, accountID)
		return r, false, getErr
	}
	if err != nil {
		return nil, false, err
	}

	if created {
		if s.logger != nil {
			s.logger.Info("seeded tree", "account", accountID, "root", rec.Root.Slug)
		}
		s.emitUpdated(&rec)
	}
	return &rec, created, nil
}

// SaveTree overwrites an account's whole tree with root.
func (s *Store) SaveTree(ctx context.Context, accountID string, root *domain.Node) (*domain.TreeRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if accountID == "" {
		return nil, ErrInvalidAccount
	}
	if root == nil {
		return nil, ErrInvalidTree
	}

	var rec *domain.TreeRecord
	err := s.db.Update(func(txn *badger.Txn) error {
		key := treeKey(accountID)

		var prev domain.TreeRecord
		var prevPtr *domain.TreeRecord
		err := get(txn, key, &prev)
		switch {
		case err == nil:
			prevPtr = &prev
		case !errors.Is(err, badger.ErrKeyNotFound):
			return err
		}

		rec, err = NewRecord(accountID, root, prevPtr)
		if err != nil {
			return err
		}
		return set(txn, key, rec)
	})
	if err != nil {
		return nil, err
	}

	if s.logger != nil {
		s.logger.Debug("saved tree", "account", accountID, "revision", rec.Revision)
	}
	s.emitUpdated(rec)
	return rec, nil
}

// DeleteTree removes an account's tree record.
func (s *Store) DeleteTree(ctx context.Context, accountID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if accountID == "" {
		return ErrInvalidAccount
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		key := treeKey(accountID)
		if _, err := txn.Get(key); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrTreeNotFound
			}
			return err
		}
		return txn.Delete(key)
	})
	if err != nil {
		return err
	}

	if s.logger != nil {
		s.logger.Info("deleted tree", "account", accountID)
	}
	s.eventEmitter.Emit(sse.NewTreeDeletedEvent(accountID, time.Now()))
	return nil
}

// ListAccounts returns the ids of every account with a stored tree, sorted.
func (s *Store) ListAccounts(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var accounts []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(treePrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			accounts = append(accounts, strings.TrimPrefix(string(it.Item().Key()), treePrefix))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(accounts)
	return accounts, nil
}

func (s *Store) emitUpdated(rec *domain.TreeRecord) {
	s.eventEmitter.Emit(sse.NewTreeUpdatedEvent(rec.AccountID, rec.Revision, tree.Count(rec.Root), rec.UpdatedAt))
}

// NewRecord stamps root with a fresh revision. CreatedAt carries over from prev.
func NewRecord(accountID string, root *domain.Node, prev *domain.TreeRecord) (*domain.TreeRecord, error) {
	rev, err := id.Revision()
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	rec := &domain.TreeRecord{
		AccountID: accountID,
		Revision:  rev,
		CreatedAt: now,
		UpdatedAt: now,
		Root:      root,
	}
	if prev != nil && !prev.CreatedAt.IsZero() {
		rec.CreatedAt = prev.CreatedAt
	}
	return rec, nil
}
