package tree

import (
	"github.com/fishdan-plugins/jsonmaker/internal/domain"
)

// ToPublic projects a subtree into its served shape: title, value when
// non-empty, children when non-empty, in storage order. Slugs are dropped.
func ToPublic(n *domain.Node) domain.PublicNode {
	out := domain.PublicNode{
		Title: n.Title,
		Value: n.Value,
	}
	if len(n.Children) > 0 {
		out.Children = make([]domain.PublicNode, 0, len(n.Children))
		for _, child := range n.Children {
			out.Children = append(out.Children, ToPublic(child))
		}
	}
	return out
}

// FromPublic rebuilds an internal subtree from its public shape, assigning
// slugs in pre-order so that they are unique within the result.
func FromPublic(p domain.PublicNode) *domain.Node {
	return fromPublic(p, make(map[string]struct{}))
}

func fromPublic(p domain.PublicNode, used map[string]struct{}) *domain.Node {
	s := MakeUniqueSlugIn(p.Title, used)
	used[s] = struct{}{}

	n := &domain.Node{
		Title:    p.Title,
		Slug:     s,
		Value:    p.Value,
		Children: make([]*domain.Node, 0, len(p.Children)),
	}
	for _, child := range p.Children {
		n.Children = append(n.Children, fromPublic(child, used))
	}
	return n
}
