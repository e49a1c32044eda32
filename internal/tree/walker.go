package tree

import (
	"github.com/fishdan-plugins/jsonmaker/internal/domain"
)

// Walk visits every node of the tree in pre-order.
// Traversal stops early when fn returns false.
func Walk(root *domain.Node, fn func(n *domain.Node) bool) {
	walk(root, fn)
}

func walk(n *domain.Node, fn func(n *domain.Node) bool) bool {
	if n == nil {
		return true
	}
	if !fn(n) {
		return false
	}
	for _, child := range n.Children {
		if !walk(child, fn) {
			return false
		}
	}
	return true
}

// FindByID returns the first node whose slug equals slug, or nil.
func FindByID(root *domain.Node, slug string) *domain.Node {
	var found *domain.Node
	Walk(root, func(n *domain.Node) bool {
		if n.Slug == slug {
			found = n
			return false
		}
		return true
	})
	return found
}

// ExistsByID reports whether a node other than the one slugged excludeSlug
// uses slug. An empty excludeSlug excludes nothing.
func ExistsByID(root *domain.Node, slug, excludeSlug string) bool {
	exists := false
	Walk(root, func(n *domain.Node) bool {
		if n.Slug == slug && (excludeSlug == "" || n.Slug != excludeSlug) {
			exists = true
			return false
		}
		return true
	})
	return exists
}

// ExistsByTitle reports whether a node other than the one slugged excludeSlug
// has a title equal to title under case folding. Nodes with empty titles never match.
func ExistsByTitle(root *domain.Node, title, excludeSlug string) bool {
	want := Fold(title)
	exists := false
	Walk(root, func(n *domain.Node) bool {
		if n.Title == "" || (excludeSlug != "" && n.Slug == excludeSlug) {
			return true
		}
		if Fold(n.Title) == want {
			exists = true
			return false
		}
		return true
	})
	return exists
}

// Slugs collects every slug in the tree.
func Slugs(root *domain.Node) map[string]struct{} {
	set := make(map[string]struct{})
	Walk(root, func(n *domain.Node) bool {
		set[n.Slug] = struct{}{}
		return true
	})
	return set
}

// Titles collects the folded form of every non-empty title in the tree.
func Titles(root *domain.Node) map[string]struct{} {
	set := make(map[string]struct{})
	Walk(root, func(n *domain.Node) bool {
		if n.Title != "" {
			set[Fold(n.Title)] = struct{}{}
		}
		return true
	})
	return set
}

// Count returns the number of nodes in the tree.
func Count(root *domain.Node) int {
	count := 0
	Walk(root, func(*domain.Node) bool {
		count++
		return true
	})
	return count
}

// Path returns the chain of nodes from the root to the first node slugged slug,
// or nil if there is none.
func Path(root *domain.Node, slug string) []*domain.Node {
	if root == nil {
		return nil
	}
	if root.Slug == slug {
		return []*domain.Node{root}
	}
	for _, child := range root.Children {
		if p := Path(child, slug); p != nil {
			return append([]*domain.Node{root}, p...)
		}
	}
	return nil
}
