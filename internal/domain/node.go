package domain

import (
	"encoding/json"
	"strings"
)

// Node is one entry of an account's bookmark tree.
// A node is either a leaf carrying a Value or a container with Children, never both.
type Node struct {
	Title    string  `json:"title"`           // Display name, unique per tree (case-insensitive)
	Slug     string  `json:"slug"`            // URL-safe key, unique per tree
	Value    string  `json:"value,omitempty"` // Usually a URL; empty means absent
	Children []*Node `json:"children"`        // Insertion order is significant
}

// HasChildren reports whether the node is a container.
func (n *Node) HasChildren() bool {
	return len(n.Children) > 0
}

// Clone returns a deep copy of the subtree rooted at n.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	out := &Node{
		Title:    n.Title,
		Slug:     n.Slug,
		Value:    n.Value,
		Children: make([]*Node, 0, len(n.Children)),
	}
	for _, child := range n.Children {
		out.Children = append(out.Children, child.Clone())
	}
	return out
}

// MarshalJSON always writes children as an array so stored leaves keep the
// `"children": []` shape.
func (n Node) MarshalJSON() ([]byte, error) {
	type plain Node
	p := plain(n)
	if p.Children == nil {
		p.Children = []*Node{}
	}
	return json.Marshal(p)
}

// UnmarshalJSON accepts records written before `value` replaced `url`.
func (n *Node) UnmarshalJSON(data []byte) error {
	type plain Node
	var raw struct {
		plain
		URL string `json:"url"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*n = Node(raw.plain)
	if n.Value == "" {
		n.Value = strings.TrimSpace(raw.URL)
	}
	if n.Children == nil {
		n.Children = []*Node{}
	}
	return nil
}

// PublicNode is the externally served shape of a node. Slugs are not part of it;
// the public endpoint addresses nodes by path instead.
type PublicNode struct {
	Title    string       `json:"title"`
	Value    string       `json:"value,omitempty"`
	Children []PublicNode `json:"children,omitempty"`
}
