package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/fishdan-plugins/jsonmaker/internal/config"
	"github.com/fishdan-plugins/jsonmaker/internal/logger"
	"github.com/fishdan-plugins/jsonmaker/internal/search"
	"github.com/fishdan-plugins/jsonmaker/internal/service"
)

// SearchIndexHandle wraps the search index with shutdown capability.
// SearchIndex is nil when search is disabled.
type SearchIndexHandle struct {
	*search.SearchIndex
}

// Shutdown implements do.Shutdownable.
func (h *SearchIndexHandle) Shutdown() error {
	if h.SearchIndex == nil {
		return nil
	}
	return h.Close()
}

// ProvideSearchIndex provides the Bleve search index.
func ProvideSearchIndex(i do.Injector) (*SearchIndexHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	if !cfg.Search.Enabled {
		log.Info("Search disabled by configuration")
		return &SearchIndexHandle{}, nil
	}

	index, err := search.NewSearchIndex(search.Options{
		Path:   cfg.Search.IndexPath,
		Logger: log.Logger,
	})
	if err != nil {
		return nil, err
	}

	docCount, _ := index.DocumentCount()
	log.Info("Search index initialized", "path", cfg.Search.IndexPath, "documents", docCount)

	return &SearchIndexHandle{SearchIndex: index}, nil
}

// ProvideSearchService provides the search service, or nil when search is disabled.
func ProvideSearchService(i do.Injector) (*service.SearchService, error) {
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	if indexHandle.SearchIndex == nil {
		return nil, nil
	}
	return service.NewSearchService(indexHandle.SearchIndex, storeHandle.TreeStore, log.Logger), nil
}

// TriggerSearchReindexIfNeeded rebuilds the index in the background when it is
// empty but trees exist, e.g. after the index directory was removed.
// Should be called after all services are wired.
func TriggerSearchReindexIfNeeded(i do.Injector) {
	searchService := do.MustInvoke[*service.SearchService](i)
	if searchService == nil {
		return
	}
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	docCount, _ := searchService.Stats()
	if docCount > 0 {
		return
	}

	ctx := context.Background()
	accounts, err := storeHandle.ListAccounts(ctx)
	if err != nil || len(accounts) == 0 {
		return
	}

	log.Info("Search index is empty but trees exist, triggering initial reindex",
		"account_count", len(accounts),
	)

	go func() {
		if err := searchService.ReindexAll(ctx); err != nil {
			log.Error("Initial search reindex failed", "error", err)
		} else {
			count, _ := searchService.Stats()
			log.Info("Initial search reindex completed", "documents", count)
		}
	}()
}
