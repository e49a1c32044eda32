package tree_test

import (
	"testing"

	"github.com/fishdan-plugins/jsonmaker/internal/tree"
	"github.com/stretchr/testify/assert"
)

func TestMakeUniqueSlug(t *testing.T) {
	root := branch("Root", "root", leaf("Docs", "docs", ""), leaf("Docs 2", "docs-2", ""))

	tests := []struct {
		name    string
		title   string
		exclude string
		want    string
	}{
		{"free base", "Links", "", "links"},
		{"skips taken suffixes", "Docs", "", "docs-3"},
		{"exclusion frees own slug", "Docs", "docs", "docs"},
		{"empty slugification", "???", "", "node"},
		{"root collision", "Root", "", "root-2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tree.MakeUniqueSlug(tt.title, root, tt.exclude))
		})
	}
}

func TestMakeUniqueSlug_FallbackCollides(t *testing.T) {
	root := branch("Root", "root", leaf("!", "node", ""))

	assert.Equal(t, "node-2", tree.MakeUniqueSlug("日本", root, ""))
}

func TestMakeUniqueSlugIn(t *testing.T) {
	used := map[string]struct{}{"a": {}, "a-2": {}}

	assert.Equal(t, "a-3", tree.MakeUniqueSlugIn("A", used))
	assert.Len(t, used, 2)
	assert.Equal(t, "b", tree.MakeUniqueSlugIn("B", used))
}
