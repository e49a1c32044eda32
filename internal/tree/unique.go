package tree

import (
	"github.com/fishdan-plugins/jsonmaker/internal/domain"
	"github.com/fishdan-plugins/jsonmaker/internal/slug"
)

// MakeUniqueSlug derives a slug from title that no node in the tree uses,
// ignoring the node slugged excludeSlug. Candidates are tried as base,
// base-2, base-3, ...; titles without usable characters start from "node".
func MakeUniqueSlug(title string, root *domain.Node, excludeSlug string) string {
	return slug.Unique(slug.Base(title), func(candidate string) bool {
		return ExistsByID(root, candidate, excludeSlug)
	})
}

// MakeUniqueSlugIn is MakeUniqueSlug against a flat set of used slugs.
// The chosen slug is not added to the set.
func MakeUniqueSlugIn(title string, used map[string]struct{}) string {
	return slug.Unique(slug.Base(title), func(candidate string) bool {
		_, taken := used[candidate]
		return taken
	})
}
