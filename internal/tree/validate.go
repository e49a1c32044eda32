package tree

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fishdan-plugins/jsonmaker/internal/domain"
	"github.com/fishdan-plugins/jsonmaker/internal/slug"
)

// Validate checks the structural invariants of a whole tree and returns the
// first violation found in pre-order. A nil error means every slug is a valid
// and unique slug, every title is non-empty, trimmed and unique under Fold,
// and no node carries both a value and children.
func Validate(root *domain.Node) error {
	if root == nil {
		return errors.New("tree has no root")
	}

	slugs := make(map[string]struct{})
	titles := make(map[string]string)
	var err error

	Walk(root, func(n *domain.Node) bool {
		switch {
		case n.Title == "" || strings.TrimSpace(n.Title) != n.Title:
			err = fmt.Errorf("node %q: title must be non-empty and trimmed", n.Slug)
		case !slug.IsValid(n.Slug):
			err = fmt.Errorf("node %q: invalid slug", n.Slug)
		case n.Value != "" && len(n.Children) > 0:
			err = fmt.Errorf("node %q: has both a value and children", n.Slug)
		}
		if err != nil {
			return false
		}

		if _, dup := slugs[n.Slug]; dup {
			err = fmt.Errorf("slug %q used more than once", n.Slug)
			return false
		}
		slugs[n.Slug] = struct{}{}

		key := Fold(n.Title)
		if other, dup := titles[key]; dup {
			err = fmt.Errorf("node %q: title %q collides with node %q", n.Slug, n.Title, other)
			return false
		}
		titles[key] = n.Slug
		return true
	})

	return err
}
