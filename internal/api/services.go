package api

import (
	"github.com/fishdan-plugins/jsonmaker/internal/service"
	"github.com/fishdan-plugins/jsonmaker/internal/sse"
	"github.com/fishdan-plugins/jsonmaker/internal/store"
)

// Services groups the dependencies used by the API server.
// This reduces the parameter count for NewServer and improves testability.
type Services struct {
	Trees  *service.TreeService
	Search *service.SearchService // nil when search is disabled
	Store  store.TreeStore        // Health checks only
	SSE    *sse.Manager           // nil disables the event stream
}
