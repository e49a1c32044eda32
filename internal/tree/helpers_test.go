package tree_test

import (
	"github.com/fishdan-plugins/jsonmaker/internal/domain"
)

func leaf(title, slug, value string) *domain.Node {
	return &domain.Node{Title: title, Slug: slug, Value: value, Children: []*domain.Node{}}
}

func branch(title, slug string, children ...*domain.Node) *domain.Node {
	if children == nil {
		children = []*domain.Node{}
	}
	return &domain.Node{Title: title, Slug: slug, Children: children}
}

// sampleTree:
//
//	Root (root)
//	├── Docs (docs)
//	│   ├── Go (go) = https://go.dev
//	│   └── Rust (rust) = https://rust-lang.org
//	└── News (news) = https://news.example
func sampleTree() *domain.Node {
	return branch("Root", "root",
		branch("Docs", "docs",
			leaf("Go", "go", "https://go.dev"),
			leaf("Rust", "rust", "https://rust-lang.org"),
		),
		leaf("News", "news", "https://news.example"),
	)
}
