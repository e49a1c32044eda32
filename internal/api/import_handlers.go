package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

func (s *Server) registerImportRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:  "importTree",
		Method:       http.MethodPost,
		Path:         "/api/v1/accounts/{account}/import",
		Summary:      "Import JSON",
		Description:  "Replaces the tree with the posted JSON, or appends it under target when mode=append. A rejected import leaves the tree untouched.",
		Tags:         []string{"Import"},
		MaxBodyBytes: MaxImportSize,
	}, s.handleImport)
}

// ImportInput carries a raw JSON document and how to apply it.
type ImportInput struct {
	Account string `path:"account" doc:"Account ID"`
	Mode    string `query:"mode" doc:"replace (default) or append"`
	Target  string `query:"target" doc:"Slug of the node to append under (append mode)"`
	RawBody []byte `contentType:"application/json"`
}

func (s *Server) handleImport(ctx context.Context, input *ImportInput) (*ResultOutput, error) {
	res, err := s.services.Trees.ImportJSON(ctx, input.Account, input.RawBody, input.Mode, input.Target)
	if err == nil && !res.Success {
		s.logger.Info("Import rejected", "account", input.Account, "code", res.Code, "issue", res.Issue)
	}
	return resultOutput(res, err)
}
