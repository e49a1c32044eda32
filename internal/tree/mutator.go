package tree

import (
	"slices"

	"github.com/fishdan-plugins/jsonmaker/internal/domain"
)

// AddChild appends child to the first node slugged parentSlug.
// The parent's value is discarded because a node with children cannot carry one.
// It returns false and leaves the tree unchanged when no such parent exists.
func AddChild(root *domain.Node, parentSlug string, child *domain.Node) bool {
	parent := FindByID(root, parentSlug)
	if parent == nil {
		return false
	}
	parent.Value = ""
	if parent.Children == nil {
		parent.Children = []*domain.Node{}
	}
	parent.Children = append(parent.Children, child)
	return true
}

// RemoveChild removes the first node slugged targetSlug from its parent's
// children, keeping the order of the remaining siblings. The root itself is
// never matched; callers reject deleting it beforehand.
func RemoveChild(root *domain.Node, targetSlug string) bool {
	if root == nil {
		return false
	}
	for i, child := range root.Children {
		if child.Slug == targetSlug {
			root.Children = slices.Delete(root.Children, i, i+1)
			return true
		}
		if RemoveChild(child, targetSlug) {
			return true
		}
	}
	return false
}

// RenameNode sets the title and slug of the first node slugged targetSlug.
// It performs no uniqueness checks: callers derive newSlug with MakeUniqueSlug
// and check the title with ExistsByTitle, both excluding targetSlug.
func RenameNode(root *domain.Node, targetSlug, newTitle, newSlug string) bool {
	n := FindByID(root, targetSlug)
	if n == nil {
		return false
	}
	n.Title = newTitle
	n.Slug = newSlug
	return true
}
