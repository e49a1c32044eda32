package treeimport

import (
	"github.com/fishdan-plugins/jsonmaker/internal/domain"
	domainerrors "github.com/fishdan-plugins/jsonmaker/internal/errors"
	"github.com/fishdan-plugins/jsonmaker/internal/tree"
)

// Replace parses payload and returns it as a brand new tree.
func Replace(payload []byte) (*domain.Node, error) {
	input, err := Parse(payload)
	if err != nil {
		return nil, err
	}
	return ReplaceValue(input)
}

// ReplaceValue is Replace for an already decoded payload.
func ReplaceValue(input any) (*domain.Node, error) {
	return NormalizeTree(input, nil)
}

// Append parses payload and returns a copy of root with the imported subtree
// added as the last child of targetSlug. root itself is never modified.
func Append(root *domain.Node, payload []byte, targetSlug string) (*domain.Node, error) {
	if targetSlug == "" {
		return nil, domainerrors.New(domainerrors.CodeImportTargetMissing)
	}
	input, err := Parse(payload)
	if err != nil {
		return nil, err
	}
	return AppendValue(root, input, targetSlug)
}

// AppendValue is Append for an already decoded payload.
func AppendValue(root *domain.Node, input any, targetSlug string) (*domain.Node, error) {
	if targetSlug == "" {
		return nil, domainerrors.New(domainerrors.CodeImportTargetMissing)
	}

	subtree, err := NormalizeTree(input, root)
	if err != nil {
		return nil, err
	}

	next := root.Clone()
	if !tree.AddChild(next, targetSlug, subtree) {
		return nil, domainerrors.New(domainerrors.CodeImportTargetNotFound).
			WithDetails(Issue{Path: "target", Reason: "no node is slugged " + targetSlug})
	}
	return next, nil
}
