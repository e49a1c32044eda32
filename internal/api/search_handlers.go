package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/fishdan-plugins/jsonmaker/internal/search"
)

func (s *Server) registerSearchRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "searchNodes",
		Method:      http.MethodGet,
		Path:        "/api/v1/accounts/{account}/search",
		Summary:     "Search nodes",
		Description: "Full-text search over one account's titles and values",
		Tags:        []string{"Search"},
	}, s.handleSearch)
}

// === DTOs ===

// SearchInput contains parameters for searching an account's tree.
type SearchInput struct {
	Account    string `path:"account" doc:"Account ID"`
	Query      string `query:"q" maxLength:"200" doc:"Search query; empty lists every node"`
	Limit      int    `query:"limit" minimum:"0" maximum:"100" doc:"Max results (default 20)"`
	Offset     int    `query:"offset" minimum:"0" doc:"Pagination offset (default 0)"`
	LeavesOnly bool   `query:"leaves" doc:"Only return nodes without children"`
}

// SearchResponse contains search results.
type SearchResponse struct {
	Query  string             `json:"query" doc:"Original search query"`
	Total  uint64             `json:"total" doc:"Total matches"`
	TookMs int64              `json:"took_ms" doc:"Search duration in milliseconds"`
	Hits   []search.SearchHit `json:"hits" doc:"Matching nodes"`
}

// SearchOutput wraps the search response for Huma.
type SearchOutput struct {
	Body SearchResponse
}

// === Handlers ===

func (s *Server) handleSearch(ctx context.Context, input *SearchInput) (*SearchOutput, error) {
	if s.services.Search == nil {
		return nil, huma.Error503ServiceUnavailable("search is disabled")
	}

	if err := s.services.Trees.ValidateAccount(input.Account); err != nil {
		return nil, toAPIError(err)
	}

	limit := input.Limit
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	result, err := s.services.Search.Search(ctx, search.SearchParams{
		Account:    input.Account,
		Query:      input.Query,
		LeavesOnly: input.LeavesOnly,
		Limit:      limit,
		Offset:     input.Offset,
		Highlight:  true,
	})
	if err != nil {
		s.logger.Error("Search failed", "error", err, "account", input.Account, "query", input.Query)
		return nil, toAPIError(err)
	}

	s.logger.Debug("Search completed",
		"account", input.Account,
		"query", input.Query,
		"total", result.Total,
		"took_ms", result.TookMs,
	)

	return &SearchOutput{Body: SearchResponse{
		Query:  input.Query,
		Total:  result.Total,
		TookMs: result.TookMs,
		Hits:   result.Hits,
	}}, nil
}
