package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/fishdan-plugins/jsonmaker/internal/service"
)

func (s *Server) registerNodeRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "addNode",
		Method:        http.MethodPost,
		Path:          "/api/v1/accounts/{account}/nodes",
		Summary:       "Add node",
		Description:   "Adds a child under the parent node. A parent leaf loses its value.",
		Tags:          []string{"Nodes"},
		DefaultStatus: http.StatusCreated,
	}, s.handleAddNode)

	huma.Register(s.api, huma.Operation{
		OperationID: "renameNode",
		Method:      http.MethodPatch,
		Path:        "/api/v1/accounts/{account}/nodes/{slug}",
		Summary:     "Rename node",
		Description: "Changes a node's title; its slug is regenerated from the new title",
		Tags:        []string{"Nodes"},
	}, s.handleRenameNode)

	huma.Register(s.api, huma.Operation{
		OperationID: "deleteNode",
		Method:      http.MethodDelete,
		Path:        "/api/v1/accounts/{account}/nodes/{slug}",
		Summary:     "Delete node",
		Description: "Deletes a leaf node. The root and nodes with children cannot be deleted.",
		Tags:        []string{"Nodes"},
	}, s.handleDeleteNode)
}

// === DTOs ===

// AddNodeInput contains parameters for adding a node.
// Blank fields are reported as missing_fields by the service, so nothing is
// marked required here.
type AddNodeInput struct {
	Account string `path:"account" doc:"Account ID"`
	Body    struct {
		Parent string `json:"parent" required:"false" maxLength:"200" doc:"Slug of the parent node"`
		Title  string `json:"title" required:"false" maxLength:"200" doc:"Title of the new node"`
		Value  string `json:"value,omitempty" maxLength:"4096" doc:"Optional value, usually a URL"`
	}
}

// NodeInput addresses a single node.
type NodeInput struct {
	Account string `path:"account" doc:"Account ID"`
	Slug    string `path:"slug" doc:"Node slug"`
}

// RenameNodeInput contains parameters for renaming a node.
type RenameNodeInput struct {
	Account string `path:"account" doc:"Account ID"`
	Slug    string `path:"slug" doc:"Node slug"`
	Body    struct {
		Title string `json:"title" required:"false" maxLength:"200" doc:"New title"`
	}
}

// === Handlers ===

func (s *Server) handleAddNode(ctx context.Context, input *AddNodeInput) (*ResultOutput, error) {
	res, err := s.services.Trees.Add(ctx, input.Account, service.AddRequest{
		Parent: input.Body.Parent,
		Title:  input.Body.Title,
		Value:  input.Body.Value,
	})
	return resultOutput(res, err)
}

func (s *Server) handleRenameNode(ctx context.Context, input *RenameNodeInput) (*ResultOutput, error) {
	res, err := s.services.Trees.Rename(ctx, input.Account, service.RenameRequest{
		Target: input.Slug,
		Title:  input.Body.Title,
	})
	return resultOutput(res, err)
}

func (s *Server) handleDeleteNode(ctx context.Context, input *NodeInput) (*ResultOutput, error) {
	res, err := s.services.Trees.Delete(ctx, input.Account, service.DeleteRequest{Target: input.Slug})
	return resultOutput(res, err)
}
