package providers

import (
	"github.com/samber/do/v2"

	"github.com/fishdan-plugins/jsonmaker/internal/config"
	"github.com/fishdan-plugins/jsonmaker/internal/logger"
	"github.com/fishdan-plugins/jsonmaker/internal/service"
)

// ProvideTreeService provides the tree service, wired to the search index
// when search is enabled.
func ProvideTreeService(i do.Injector) (*service.TreeService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	searchService := do.MustInvoke[*service.SearchService](i)
	log := do.MustInvoke[*logger.Logger](i)

	svc := service.NewTreeService(storeHandle.TreeStore, service.SeedConfig{
		Title: cfg.Seed.Title,
		Value: cfg.Seed.Value,
	}, log.Logger)

	if searchService != nil {
		svc.SetIndexer(searchService)
	}

	return svc, nil
}
