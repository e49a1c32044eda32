package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/fishdan-plugins/jsonmaker/internal/domain"
	"github.com/fishdan-plugins/jsonmaker/internal/service"
)

func (s *Server) registerTreeRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listAccounts",
		Method:      http.MethodGet,
		Path:        "/api/v1/accounts",
		Summary:     "List accounts",
		Description: "Returns every account with a stored tree",
		Tags:        []string{"Trees"},
	}, s.handleListAccounts)

	huma.Register(s.api, huma.Operation{
		OperationID: "exportTree",
		Method:      http.MethodGet,
		Path:        "/api/v1/accounts/{account}/tree",
		Summary:     "Export tree",
		Description: "Returns the full stored tree including slugs. An account without a stored tree returns the seed tree.",
		Tags:        []string{"Trees"},
	}, s.handleExportTree)

	huma.Register(s.api, huma.Operation{
		OperationID: "previewTree",
		Method:      http.MethodGet,
		Path:        "/api/v1/accounts/{account}/preview",
		Summary:     "Preview tree",
		Description: "Returns the public projection of the whole tree",
		Tags:        []string{"Trees"},
	}, s.handlePreviewTree)

	huma.Register(s.api, huma.Operation{
		OperationID: "resetTree",
		Method:      http.MethodDelete,
		Path:        "/api/v1/accounts/{account}/tree",
		Summary:     "Reset tree",
		Description: "Discards the account's tree and stores a fresh seed tree",
		Tags:        []string{"Trees"},
	}, s.handleResetTree)
}

// === DTOs ===

// AccountInput identifies the account a request operates on.
type AccountInput struct {
	Account string `path:"account" doc:"Account ID"`
}

// ListAccountsOutput contains all known accounts.
type ListAccountsOutput struct {
	Body struct {
		Accounts []string `json:"accounts" doc:"Account IDs, sorted"`
	}
}

// TreeOutput contains a stored tree record.
type TreeOutput struct {
	Body *domain.TreeRecord
}

// PreviewOutput contains the public projection of a tree.
type PreviewOutput struct {
	Body domain.PublicNode
}

// ResultOutput carries a successful tree operation result.
type ResultOutput struct {
	Status int
	Body   *service.Result
}

// === Handlers ===

func (s *Server) handleListAccounts(ctx context.Context, _ *struct{}) (*ListAccountsOutput, error) {
	accounts, err := s.services.Trees.Accounts(ctx)
	if err != nil {
		s.logger.Error("Failed to list accounts", "error", err)
		return nil, toAPIError(err)
	}
	if accounts == nil {
		accounts = []string{}
	}
	out := &ListAccountsOutput{}
	out.Body.Accounts = accounts
	return out, nil
}

func (s *Server) handleExportTree(ctx context.Context, input *AccountInput) (*TreeOutput, error) {
	rec, err := s.services.Trees.Export(ctx, input.Account)
	if err != nil {
		return nil, toAPIError(err)
	}
	return &TreeOutput{Body: rec}, nil
}

func (s *Server) handlePreviewTree(ctx context.Context, input *AccountInput) (*PreviewOutput, error) {
	node, err := s.services.Trees.Preview(ctx, input.Account)
	if err != nil {
		return nil, toAPIError(err)
	}
	return &PreviewOutput{Body: node}, nil
}

func (s *Server) handleResetTree(ctx context.Context, input *AccountInput) (*ResultOutput, error) {
	res, err := s.services.Trees.Reset(ctx, input.Account)
	return resultOutput(res, err)
}

// resultOutput maps a service result to its HTTP response: success codes
// carry their own status, failures become APIErrors.
func resultOutput(res *service.Result, err error) (*ResultOutput, error) {
	if err != nil {
		return nil, toAPIError(err)
	}
	if !res.Success {
		return nil, resultError(res)
	}
	return &ResultOutput{Status: res.Code.HTTPStatus(), Body: res}, nil
}
