package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
)

// SearchParams configures a search query.
type SearchParams struct {
	Account string // Required; results never cross accounts
	Query   string // User's search query; empty lists every node

	// Filters
	LeavesOnly bool // Only nodes without children

	// Pagination
	Limit  int
	Offset int

	Highlight bool // Include match highlighting
}

// DefaultSearchParams returns sensible defaults.
func DefaultSearchParams() SearchParams {
	return SearchParams{
		Limit:     20,
		Highlight: true,
	}
}

// MaxLimit caps the page size of a single search.
const MaxLimit = 100

// SearchResult represents the search results.
type SearchResult struct {
	Query  string      `json:"query"`
	Total  uint64      `json:"total"`
	TookMs int64       `json:"took_ms"`
	Hits   []SearchHit `json:"hits"`
}

// SearchHit represents a single matching node.
type SearchHit struct {
	Slug       string            `json:"slug"`
	Title      string            `json:"title"`
	Value      string            `json:"value,omitempty"`
	Path       string            `json:"path,omitempty"`
	Depth      int               `json:"depth"`
	Leaf       bool              `json:"leaf"`
	Score      float64           `json:"score"`
	Highlights map[string]string `json:"highlights,omitempty"`
}

// Search executes a search query within one account.
func (s *SearchIndex) Search(ctx context.Context, params SearchParams) (*SearchResult, error) {
	if params.Account == "" {
		return nil, fmt.Errorf("search: account is required")
	}
	if params.Limit <= 0 {
		params.Limit = DefaultSearchParams().Limit
	}
	params.Limit = min(params.Limit, MaxLimit)
	params.Offset = max(params.Offset, 0)

	s.mu.RLock()
	defer s.mu.RUnlock()

	searchRequest := bleve.NewSearchRequestOptions(buildSearchQuery(params), params.Limit, params.Offset, false)
	if strings.TrimSpace(params.Query) == "" {
		// No relevance to rank by; keep tree order stable
		searchRequest.SortBy([]string{"depth", "_id"})
	} else {
		searchRequest.SortBy([]string{"-_score", "depth"})
	}

	if params.Highlight {
		searchRequest.Highlight = bleve.NewHighlight()
		searchRequest.Highlight.AddField("title")
		searchRequest.Highlight.AddField("value")
	}

	searchRequest.Fields = []string{"slug", "title", "value", "path", "depth", "leaf"}

	searchResult, err := s.index.SearchInContext(ctx, searchRequest)
	if err != nil {
		return nil, fmt.Errorf("execute search: %w", err)
	}

	result := &SearchResult{
		Query:  params.Query,
		Total:  searchResult.Total,
		TookMs: searchResult.Took.Milliseconds(),
		Hits:   make([]SearchHit, 0, len(searchResult.Hits)),
	}

	for _, hit := range searchResult.Hits {
		searchHit := SearchHit{Score: hit.Score}

		if v, ok := hit.Fields["slug"].(string); ok {
			searchHit.Slug = v
		}
		if v, ok := hit.Fields["title"].(string); ok {
			searchHit.Title = v
		}
		if v, ok := hit.Fields["value"].(string); ok {
			searchHit.Value = v
		}
		if v, ok := hit.Fields["path"].(string); ok {
			searchHit.Path = v
		}
		if v, ok := hit.Fields["depth"].(float64); ok {
			searchHit.Depth = int(v)
		}
		if v, ok := hit.Fields["leaf"].(bool); ok {
			searchHit.Leaf = v
		}

		if len(hit.Fragments) > 0 {
			searchHit.Highlights = make(map[string]string)
			for field, fragments := range hit.Fragments {
				if len(fragments) > 0 {
					searchHit.Highlights[field] = fragments[0]
				}
			}
		}

		result.Hits = append(result.Hits, searchHit)
	}

	return result, nil
}

func accountQuery(accountID string) query.Query {
	q := bleve.NewTermQuery(accountID)
	q.SetField("account")
	return q
}

// buildSearchQuery constructs the Bleve query from params.
func buildSearchQuery(params SearchParams) query.Query {
	queries := []query.Query{accountQuery(params.Account)}

	// Search strategy:
	// - title match ranks highest, then the value (URL words)
	// - ancestor titles pull in the contents of a matching folder
	// - fuzzy and prefix on title for typos and autocomplete
	text := strings.TrimSpace(params.Query)
	if text != "" {
		textQueries := []query.Query{}

		titleMatch := bleve.NewMatchQuery(text)
		titleMatch.SetField("title")
		titleMatch.SetBoost(3.0)
		textQueries = append(textQueries, titleMatch)

		valueMatch := bleve.NewMatchQuery(text)
		valueMatch.SetField("value")
		valueMatch.SetBoost(1.5)
		textQueries = append(textQueries, valueMatch)

		pathMatch := bleve.NewMatchQuery(text)
		pathMatch.SetField("path")
		pathMatch.SetBoost(0.5)
		textQueries = append(textQueries, pathMatch)

		fuzzyQuery := bleve.NewFuzzyQuery(strings.ToLower(text))
		fuzzyQuery.SetFuzziness(1)
		fuzzyQuery.SetField("title")
		fuzzyQuery.SetBoost(0.8)
		textQueries = append(textQueries, fuzzyQuery)

		// Prefix query for autocomplete (minimum 2 chars)
		if len(text) >= 2 {
			prefixQuery := bleve.NewPrefixQuery(strings.ToLower(text))
			prefixQuery.SetField("title")
			prefixQuery.SetBoost(0.5)
			textQueries = append(textQueries, prefixQuery)
		}

		queries = append(queries, bleve.NewDisjunctionQuery(textQueries...))
	}

	if params.LeavesOnly {
		leafQuery := bleve.NewBoolFieldQuery(true)
		leafQuery.SetField("leaf")
		queries = append(queries, leafQuery)
	}

	if len(queries) == 1 {
		return queries[0]
	}
	return bleve.NewConjunctionQuery(queries...)
}
