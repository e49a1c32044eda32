// Package search provides full-text search over bookmark nodes using Bleve.
// Every node of every account is one document; queries are always scoped to
// a single account.
package search

import (
	"strings"

	"github.com/fishdan-plugins/jsonmaker/internal/domain"
)

// PathSeparator joins ancestor titles in a document's path.
const PathSeparator = " / "

// NodeDocument is the indexed form of one node.
//
// The path of ancestor titles is denormalized into every document so that a
// query for "docs" also finds the links filed under Docs.
type NodeDocument struct {
	ID      string `json:"id"` // account/slug
	Account string `json:"account"`
	Slug    string `json:"slug"`
	Title   string `json:"title"`
	Value   string `json:"value,omitempty"`
	Path    string `json:"path"` // Ancestor titles, root first, excluding the node itself
	Depth   int    `json:"depth"`
	Leaf    bool   `json:"leaf"`
}

// DocumentID returns the index id of a node.
func DocumentID(accountID, slug string) string {
	return accountID + "/" + slug
}

// DocumentsFromTree flattens an account's tree into documents, pre-order.
func DocumentsFromTree(accountID string, root *domain.Node) []*NodeDocument {
	if root == nil {
		return nil
	}
	var docs []*NodeDocument
	var visit func(n *domain.Node, ancestors []string)
	visit = func(n *domain.Node, ancestors []string) {
		docs = append(docs, &NodeDocument{
			ID:      DocumentID(accountID, n.Slug),
			Account: accountID,
			Slug:    n.Slug,
			Title:   n.Title,
			Value:   n.Value,
			Path:    strings.Join(ancestors, PathSeparator),
			Depth:   len(ancestors),
			Leaf:    !n.HasChildren(),
		})
		next := append(ancestors[:len(ancestors):len(ancestors)], n.Title)
		for _, c := range n.Children {
			visit(c, next)
		}
	}
	visit(root, nil)
	return docs
}

// ToMap converts the document to a map for Bleve indexing.
// Field names must match the mapping.
func (d *NodeDocument) ToMap() map[string]any {
	return map[string]any{
		"id":      d.ID,
		"account": d.Account,
		"slug":    d.Slug,
		"title":   d.Title,
		"value":   d.Value,
		"path":    d.Path,
		"depth":   float64(d.Depth),
		"leaf":    d.Leaf,
	}
}
