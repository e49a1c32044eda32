package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fishdan-plugins/jsonmaker/internal/domain"
	"github.com/fishdan-plugins/jsonmaker/internal/sse"
	"github.com/fishdan-plugins/jsonmaker/internal/store"
	"github.com/fishdan-plugins/jsonmaker/internal/tree"
)

const treeColumns = `account_id, revision, root_json, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTree(sc rowScanner) (*domain.TreeRecord, error) {
	var (
		rec                  domain.TreeRecord
		rootJSON             string
		createdAt, updatedAt string
	)
	if err := sc.Scan(&rec.AccountID, &rec.Revision, &rootJSON, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	var root domain.Node
	if err := json.Unmarshal([]byte(rootJSON), &root); err != nil {
		return nil, fmt.Errorf("decode tree for %s: %w", rec.AccountID, err)
	}
	rec.Root = &root

	var err error
	if rec.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if rec.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &rec, nil
}

func getTree(ctx context.Context, q interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}, accountID string) (*domain.TreeRecord, error) {
	row := q.QueryRowContext(ctx, `SELECT `+treeColumns+` FROM trees WHERE account_id = ?`, accountID)
	rec, err := scanTree(row)
	if isNoRows(err) {
		return nil, store.ErrTreeNotFound
	}
	return rec, err
}

func upsertTree(ctx context.Context, tx *sql.Tx, rec *domain.TreeRecord) error {
	rootJSON, err := json.Marshal(rec.Root)
	if err != nil {
		return fmt.Errorf("encode tree: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO trees (account_id, revision, root_json, node_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(account_id) DO UPDATE SET
			revision = excluded.revision,
			root_json = excluded.root_json,
			node_count = excluded.node_count,
			updated_at = excluded.updated_at`,
		rec.AccountID, rec.Revision, string(rootJSON), tree.Count(rec.Root),
		formatTime(rec.CreatedAt), formatTime(rec.UpdatedAt))
	return err
}

// GetTree retrieves the tree stored for an account.
func (s *Store) GetTree(ctx context.Context, accountID string) (*domain.TreeRecord, error) {
	if accountID == "" {
		return nil, store.ErrInvalidAccount
	}
	return getTree(ctx, s.db, accountID)
}

// GetOrCreateTree retrieves an account's tree, storing seed() first when the
// account has none.
func (s *Store) GetOrCreateTree(ctx context.Context, accountID string, seed store.SeedFunc) (*domain.TreeRecord, bool, error) {
	if accountID == "" {
		return nil, false, store.ErrInvalidAccount
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	rec, err := getTree(ctx, tx, accountID)
	if err == nil {
		return rec, false, tx.Commit()
	}
	if !errors.Is(err, store.ErrTreeNotFound) {
		return nil, false, err
	}

	rec, err = store.NewRecord(accountID, seed(), nil)
	if err != nil {
		return nil, false, err
	}
	if err := upsertTree(ctx, tx, rec); err != nil {
		return nil, false, fmt.Errorf("insert tree: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("commit: %w", err)
	}

	if s.logger != nil {
		s.logger.Info("seeded tree", "account", accountID, "root", rec.Root.Slug)
	}
	s.emitter.Emit(sse.NewTreeUpdatedEvent(accountID, rec.Revision, tree.Count(rec.Root), rec.UpdatedAt))
	return rec, true, nil
}

// SaveTree overwrites an account's whole tree with root.
func (s *Store) SaveTree(ctx context.Context, accountID string, root *domain.Node) (*domain.TreeRecord, error) {
	if accountID == "" {
		return nil, store.ErrInvalidAccount
	}
	if root == nil {
		return nil, store.ErrInvalidTree
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	prev, err := getTree(ctx, tx, accountID)
	if err != nil && !errors.Is(err, store.ErrTreeNotFound) {
		return nil, err
	}

	rec, err := store.NewRecord(accountID, root, prev)
	if err != nil {
		return nil, err
	}
	if err := upsertTree(ctx, tx, rec); err != nil {
		return nil, fmt.Errorf("save tree: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	s.emitter.Emit(sse.NewTreeUpdatedEvent(accountID, rec.Revision, tree.Count(rec.Root), rec.UpdatedAt))
	return rec, nil
}

// DeleteTree removes an account's tree record.
func (s *Store) DeleteTree(ctx context.Context, accountID string) error {
	if accountID == "" {
		return store.ErrInvalidAccount
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM trees WHERE account_id = ?`, accountID)
	if err != nil {
		return fmt.Errorf("delete tree: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrTreeNotFound
	}

	s.emitter.Emit(sse.NewTreeDeletedEvent(accountID, time.Now()))
	return nil
}

// ListAccounts returns the ids of every account with a stored tree, sorted.
func (s *Store) ListAccounts(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT account_id FROM trees ORDER BY account_id`)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []string
	for rows.Next() {
		var account string
		if err := rows.Scan(&account); err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	return accounts, rows.Err()
}
