package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fishdan-plugins/jsonmaker/internal/domain"
	"github.com/fishdan-plugins/jsonmaker/internal/search"
	"github.com/fishdan-plugins/jsonmaker/internal/store"
)

// SearchService keeps the node index in step with stored trees and answers
// per-account queries.
type SearchService struct {
	index  *search.SearchIndex
	store  store.TreeStore
	logger *slog.Logger
}

var _ TreeIndexer = (*SearchService)(nil)

// NewSearchService creates a new search service.
func NewSearchService(index *search.SearchIndex, store store.TreeStore, logger *slog.Logger) *SearchService {
	return &SearchService{
		index:  index,
		store:  store,
		logger: logger,
	}
}

// Search runs a query within one account.
func (s *SearchService) Search(ctx context.Context, params search.SearchParams) (*search.SearchResult, error) {
	return s.index.Search(ctx, params)
}

// IndexTree replaces everything indexed for the account with root's nodes.
func (s *SearchService) IndexTree(ctx context.Context, accountID string, root *domain.Node) error {
	docs := search.DocumentsFromTree(accountID, root)
	if err := s.index.ReplaceAccount(ctx, accountID, docs); err != nil {
		return fmt.Errorf("index tree %s: %w", accountID, err)
	}
	s.logger.Debug("indexed tree", "account", accountID, "nodes", len(docs))
	return nil
}

// RemoveAccount drops the account's nodes from the index.
func (s *SearchService) RemoveAccount(ctx context.Context, accountID string) error {
	removed, err := s.index.RemoveAccount(ctx, accountID)
	if err != nil {
		return fmt.Errorf("remove account %s: %w", accountID, err)
	}
	s.logger.Debug("removed account from index", "account", accountID, "nodes", removed)
	return nil
}

// ReindexAll rebuilds the index from every stored tree.
// Used at startup and when the index is suspected to be stale.
func (s *SearchService) ReindexAll(ctx context.Context) error {
	start := time.Now()
	s.logger.Info("starting full reindex")

	if err := s.index.Rebuild(); err != nil {
		return fmt.Errorf("rebuild index: %w", err)
	}

	accounts, err := s.store.ListAccounts(ctx)
	if err != nil {
		return fmt.Errorf("list accounts: %w", err)
	}

	var docs []*search.NodeDocument
	for _, accountID := range accounts {
		if err := ctx.Err(); err != nil {
			return err
		}
		rec, err := s.store.GetTree(ctx, accountID)
		if err != nil {
			if errors.Is(err, store.ErrTreeNotFound) {
				continue
			}
			return fmt.Errorf("load tree %s: %w", accountID, err)
		}
		docs = append(docs, search.DocumentsFromTree(accountID, rec.Root)...)
	}

	if err := s.index.IndexDocuments(docs); err != nil {
		return fmt.Errorf("index documents: %w", err)
	}

	s.logger.Info("full reindex complete",
		"accounts", len(accounts),
		"nodes", len(docs),
		"duration", time.Since(start),
	)
	return nil
}

// Stats returns the total number of indexed nodes.
func (s *SearchService) Stats() (uint64, error) {
	return s.index.DocumentCount()
}
