package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fishdan-plugins/jsonmaker/internal/domain"
	domainerrors "github.com/fishdan-plugins/jsonmaker/internal/errors"
	"github.com/fishdan-plugins/jsonmaker/internal/store"
	"github.com/fishdan-plugins/jsonmaker/internal/tree"
)

const account = "dan"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestTreeService(t *testing.T) *TreeService {
	t.Helper()

	s, err := store.Open("", nil, nil, store.Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	return NewTreeService(s, SeedConfig{Title: "Root"}, testLogger())
}

type recordingIndexer struct {
	mu      sync.Mutex
	calls   map[string]int
	removed map[string]int
	err     error
}

func (r *recordingIndexer) IndexTree(_ context.Context, accountID string, _ *domain.Node) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.calls == nil {
		r.calls = map[string]int{}
	}
	r.calls[accountID]++
	return r.err
}

func (r *recordingIndexer) RemoveAccount(_ context.Context, accountID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.removed == nil {
		r.removed = map[string]int{}
	}
	r.removed[accountID]++
	return r.err
}

func mustAdd(t *testing.T, svc *TreeService, parent, title, value string) *Result {
	t.Helper()
	res, err := svc.Add(context.Background(), account, AddRequest{Parent: parent, Title: title, Value: value})
	require.NoError(t, err)
	return res
}

func loadRoot(t *testing.T, svc *TreeService) *domain.Node {
	t.Helper()
	rec, err := svc.LoadTree(context.Background(), account)
	require.NoError(t, err)
	return rec.Root
}

func TestTreeService_LoadTreeSeedsOnce(t *testing.T) {
	svc := newTestTreeService(t)
	idx := &recordingIndexer{}
	svc.SetIndexer(idx)
	ctx := context.Background()

	first, err := svc.LoadTree(ctx, account)
	require.NoError(t, err)
	assert.Equal(t, "Root", first.Root.Title)
	assert.Equal(t, "root", first.Root.Slug)
	assert.Empty(t, first.Root.Children)

	second, err := svc.LoadTree(ctx, account)
	require.NoError(t, err)
	assert.Equal(t, first.Revision, second.Revision)
	assert.Equal(t, 1, idx.calls[account], "only the seeding is indexed")
}

func TestTreeService_DefaultSeed(t *testing.T) {
	s, err := store.Open("", nil, nil, store.Options{InMemory: true})
	require.NoError(t, err)
	defer s.Close()

	svc := NewTreeService(s, SeedConfig{}, testLogger())
	root := svc.SeedTree()

	assert.Equal(t, "Fishdan", root.Title)
	assert.Equal(t, "fishdan", root.Slug)
	assert.Equal(t, "https://www.fishdan.com", root.Value)
}

func TestTreeService_InvalidAccount(t *testing.T) {
	svc := newTestTreeService(t)

	_, err := svc.LoadTree(context.Background(), "../etc")
	require.Error(t, err)
	assert.True(t, domainerrors.Is(err, domainerrors.ErrValidation))

	_, err = svc.Add(context.Background(), "", AddRequest{Parent: "root", Title: "Docs"})
	assert.Error(t, err)
}

func TestTreeService_AddToSeedTree(t *testing.T) {
	svc := newTestTreeService(t)

	res := mustAdd(t, svc, "root", "Docs", "")
	assert.True(t, res.Success)
	assert.Equal(t, domainerrors.CodeNodeAdded, res.Code)
	assert.Equal(t, "Node added.", res.Message)
	assert.Equal(t, "docs", res.Slug)
	assert.NotEmpty(t, res.Revision)

	root := loadRoot(t, svc)
	require.Len(t, root.Children, 1)
	assert.Equal(t, &domain.Node{Title: "Docs", Slug: "docs", Children: []*domain.Node{}}, root.Children[0])
}

func TestTreeService_AddCaseVariantTitle(t *testing.T) {
	svc := newTestTreeService(t)

	require.True(t, mustAdd(t, svc, "root", "Docs", "").Success)

	res := mustAdd(t, svc, "root", "docs", "")
	assert.False(t, res.Success)
	assert.Equal(t, domainerrors.CodeTitleExists, res.Code)
	assert.Len(t, loadRoot(t, svc).Children, 1)
}

func TestTreeService_AddSkipsTakenSlugs(t *testing.T) {
	svc := newTestTreeService(t)
	ctx := context.Background()

	root := loadRoot(t, svc)
	root.Children = []*domain.Node{
		{Title: "Old Docs", Slug: "docs", Children: []*domain.Node{}},
		{Title: "Docs Two", Slug: "docs-2", Children: []*domain.Node{}},
	}
	_, err := svc.SaveTree(ctx, account, root)
	require.NoError(t, err)

	res := mustAdd(t, svc, "root", "Docs", "")
	require.True(t, res.Success)
	assert.Equal(t, "docs-3", res.Slug)
}

func TestTreeService_DeleteGuardsChildren(t *testing.T) {
	svc := newTestTreeService(t)
	ctx := context.Background()

	require.True(t, mustAdd(t, svc, "root", "Docs", "").Success)
	require.True(t, mustAdd(t, svc, "docs", "Go", "https://go.dev").Success)

	res, err := svc.Delete(ctx, account, DeleteRequest{Target: "docs"})
	require.NoError(t, err)
	assert.Equal(t, domainerrors.CodeHasChildren, res.Code)

	res, err = svc.Delete(ctx, account, DeleteRequest{Target: "go"})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, domainerrors.CodeNodeDeleted, res.Code)

	res, err = svc.Delete(ctx, account, DeleteRequest{Target: "docs"})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Empty(t, loadRoot(t, svc).Children)
}

func TestTreeService_DeleteCheckOrder(t *testing.T) {
	svc := newTestTreeService(t)
	ctx := context.Background()
	require.True(t, mustAdd(t, svc, "root", "Docs", "").Success)
	require.True(t, mustAdd(t, svc, "docs", "Go", "").Success)

	tests := []struct {
		target string
		want   domainerrors.Code
	}{
		{"  ", domainerrors.CodeMissingFields},
		{"root", domainerrors.CodeCannotDeleteRoot},
		{"missing", domainerrors.CodeNodeNotFound},
		{"docs", domainerrors.CodeHasChildren},
	}

	for _, tt := range tests {
		t.Run(string(tt.want), func(t *testing.T) {
			res, err := svc.Delete(ctx, account, DeleteRequest{Target: tt.target})
			require.NoError(t, err)
			assert.False(t, res.Success)
			assert.Equal(t, tt.want, res.Code)
			assert.Equal(t, tt.want.Message(), res.Message)
		})
	}
}

func TestTreeService_DeleteRootAlwaysRefused(t *testing.T) {
	svc := newTestTreeService(t)

	// Root with children still reports cannot_delete_root, not has_children.
	require.True(t, mustAdd(t, svc, "root", "Docs", "").Success)

	res, err := svc.Delete(context.Background(), account, DeleteRequest{Target: "root"})
	require.NoError(t, err)
	assert.Equal(t, domainerrors.CodeCannotDeleteRoot, res.Code)
}

func TestTreeService_AddCheckOrder(t *testing.T) {
	svc := newTestTreeService(t)
	require.True(t, mustAdd(t, svc, "root", "Docs", "").Success)

	tests := []struct {
		name string
		req  AddRequest
		want domainerrors.Code
	}{
		{"blank title", AddRequest{Parent: "root", Title: " "}, domainerrors.CodeMissingFields},
		{"blank parent", AddRequest{Parent: "", Title: "News"}, domainerrors.CodeMissingFields},
		{"title before parent", AddRequest{Parent: "missing", Title: "DOCS"}, domainerrors.CodeTitleExists},
		{"parent missing", AddRequest{Parent: "missing", Title: "News"}, domainerrors.CodeParentNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := svc.Add(context.Background(), account, tt.req)
			require.NoError(t, err)
			assert.False(t, res.Success)
			assert.Equal(t, tt.want, res.Code)
		})
	}
	assert.Equal(t, 2, tree.Count(loadRoot(t, svc)))
}

func TestTreeService_AddClearsParentValue(t *testing.T) {
	svc := newTestTreeService(t)

	require.True(t, mustAdd(t, svc, "root", "Docs", "https://docs.example").Success)
	require.True(t, mustAdd(t, svc, "root", "News", "").Success)
	require.True(t, mustAdd(t, svc, "docs", "Go", "  https://go.dev  ").Success)

	root := loadRoot(t, svc)
	docs := tree.FindByID(root, "docs")
	require.NotNil(t, docs)
	assert.Empty(t, docs.Value)
	require.Len(t, docs.Children, 1)
	assert.Equal(t, "go", docs.Children[0].Slug)
	assert.Equal(t, "https://go.dev", docs.Children[0].Value)
}

func TestTreeService_Rename(t *testing.T) {
	svc := newTestTreeService(t)
	ctx := context.Background()
	require.True(t, mustAdd(t, svc, "root", "Docs", "").Success)
	require.True(t, mustAdd(t, svc, "root", "News", "").Success)

	t.Run("reslugs the node", func(t *testing.T) {
		res, err := svc.Rename(ctx, account, RenameRequest{Target: "docs", Title: "Guides"})
		require.NoError(t, err)
		assert.True(t, res.Success)
		assert.Equal(t, domainerrors.CodeTitleUpdated, res.Code)
		assert.Equal(t, "guides", res.Slug)
		assert.Nil(t, tree.FindByID(loadRoot(t, svc), "docs"))
	})

	t.Run("case change of own title", func(t *testing.T) {
		res, err := svc.Rename(ctx, account, RenameRequest{Target: "guides", Title: "GUIDES"})
		require.NoError(t, err)
		assert.True(t, res.Success)
		assert.Equal(t, "guides", res.Slug)
	})

	t.Run("collides with another title", func(t *testing.T) {
		res, err := svc.Rename(ctx, account, RenameRequest{Target: "guides", Title: "news"})
		require.NoError(t, err)
		assert.Equal(t, domainerrors.CodeTitleExists, res.Code)
	})

	t.Run("unknown target", func(t *testing.T) {
		res, err := svc.Rename(ctx, account, RenameRequest{Target: "nope", Title: "Fresh"})
		require.NoError(t, err)
		assert.Equal(t, domainerrors.CodeNodeNotFound, res.Code)
	})

	t.Run("missing title", func(t *testing.T) {
		res, err := svc.Rename(ctx, account, RenameRequest{Target: "news"})
		require.NoError(t, err)
		assert.Equal(t, domainerrors.CodeMissingFields, res.Code)
	})

	t.Run("root can be renamed", func(t *testing.T) {
		res, err := svc.Rename(ctx, account, RenameRequest{Target: "root", Title: "Bookmarks"})
		require.NoError(t, err)
		assert.True(t, res.Success)
		assert.Equal(t, "bookmarks", loadRoot(t, svc).Slug)
	})
}

func TestTreeService_InvariantsHoldAcrossOperations(t *testing.T) {
	svc := newTestTreeService(t)
	ctx := context.Background()

	titles := []string{"Docs", "docs!", "Docs?", "Straße", "STRASSE", "", "***", "News", "news"}
	for i, title := range titles {
		parent := "root"
		if i%2 == 1 {
			parent = "docs"
		}
		_, err := svc.Add(ctx, account, AddRequest{Parent: parent, Title: title})
		require.NoError(t, err)
	}
	_, err := svc.Rename(ctx, account, RenameRequest{Target: "news", Title: "Docs!"})
	require.NoError(t, err)

	assert.NoError(t, tree.Validate(loadRoot(t, svc)))
}

func TestTreeService_ImportReplace(t *testing.T) {
	svc := newTestTreeService(t)
	idx := &recordingIndexer{}
	svc.SetIndexer(idx)

	payload := []byte(`{"title":"Links","value":"  ","children":[{"title":"Go","value":"https://go.dev"}]}`)
	res, err := svc.ImportJSON(context.Background(), account, payload, "replace", "")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, domainerrors.CodeImportReplaced, res.Code)
	assert.Equal(t, "links", res.Slug)

	root := loadRoot(t, svc)
	assert.Equal(t, "Links", root.Title)
	assert.Empty(t, root.Value)
	require.Len(t, root.Children, 1)
	assert.Equal(t, "go", root.Children[0].Slug)
	assert.Equal(t, 2, idx.calls[account], "seed and import are both indexed")
}

func TestTreeService_ImportAppend(t *testing.T) {
	svc := newTestTreeService(t)
	require.True(t, mustAdd(t, svc, "root", "Docs", "https://docs.example").Success)

	payload := []byte(`{"dan":{"title":"Go","children":[{"title":"Tour","value":"https://go.dev/tour"}]}}`)
	res, err := svc.ImportJSON(context.Background(), account, payload, "append", "docs")
	require.NoError(t, err)
	require.True(t, res.Success, res.Message)
	assert.Equal(t, domainerrors.CodeImportAppended, res.Code)

	docs := tree.FindByID(loadRoot(t, svc), "docs")
	require.NotNil(t, docs)
	assert.Empty(t, docs.Value)
	require.Len(t, docs.Children, 1)
	assert.Equal(t, "Go", docs.Children[0].Title)
	assert.Equal(t, "tour", docs.Children[0].Children[0].Slug)
}

func TestTreeService_ImportAppendAvoidsExistingSlugs(t *testing.T) {
	svc := newTestTreeService(t)
	require.True(t, mustAdd(t, svc, "root", "Docs", "").Success)

	res, err := svc.ImportJSON(context.Background(), account, []byte(`{"title":"Docs!"}`), "append", "root")
	require.NoError(t, err)
	require.True(t, res.Success, res.Message)

	imported := tree.FindByID(loadRoot(t, svc), "docs-2")
	require.NotNil(t, imported)
	assert.Equal(t, "Docs!", imported.Title)
}

func TestTreeService_ImportFailures(t *testing.T) {
	tests := []struct {
		name     string
		payload  string
		mode     string
		target   string
		want     domainerrors.Code
		wantPath string
	}{
		{"bad mode", `{"title":"A"}`, "merge", "", domainerrors.CodeImportInvalidMode, ""},
		{"append without target", `{"title":"A"}`, "append", " ", domainerrors.CodeImportTargetMissing, ""},
		{"invalid json", `{"title":`, "replace", "", domainerrors.CodeImportInvalidJSON, "$"},
		{"array top level", `[{"title":"A"}]`, "replace", "", domainerrors.CodeImportInvalidJSON, "$"},
		{"unknown key", `{"title":"A","url":"x"}`, "replace", "", domainerrors.CodeImportInvalidStructure, "$.url"},
		{"numeric title", `{"title":7}`, "replace", "", domainerrors.CodeImportInvalidStructure, "$.title"},
		{"child repeats parent title", `{"title":"A","children":[{"title":"A"}]}`, "replace", "", domainerrors.CodeImportDuplicateTitle, "$.children[0].title"},
		{"append target missing from tree", `{"title":"A"}`, "append", "nowhere", domainerrors.CodeImportTargetNotFound, "target"},
		{"foreign wrapper", `{"someone":{"title":"A"}}`, "append", "root", domainerrors.CodeImportInvalidStructure, "$.someone"},
		{"collides with tree", `{"title":"docs"}`, "append", "root", domainerrors.CodeImportDuplicateTitle, "$.title"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestTreeService(t)
			ctx := context.Background()
			require.True(t, mustAdd(t, svc, "root", "Docs", "").Success)

			before, err := svc.Export(ctx, account)
			require.NoError(t, err)
			beforeJSON, err := json.Marshal(before)
			require.NoError(t, err)

			res, err := svc.ImportJSON(ctx, account, []byte(tt.payload), tt.mode, tt.target)
			require.NoError(t, err)
			assert.False(t, res.Success)
			assert.Equal(t, tt.want, res.Code)
			if tt.wantPath != "" {
				require.NotNil(t, res.Issue)
				assert.Equal(t, tt.wantPath, res.Issue.Path)
			}

			after, err := svc.Export(ctx, account)
			require.NoError(t, err)
			afterJSON, err := json.Marshal(after)
			require.NoError(t, err)
			assert.Equal(t, string(beforeJSON), string(afterJSON), "tree must be unchanged")
		})
	}
}

func TestTreeService_PublicAndPreview(t *testing.T) {
	svc := newTestTreeService(t)
	ctx := context.Background()
	require.True(t, mustAdd(t, svc, "root", "Café Links", "").Success)
	require.True(t, mustAdd(t, svc, "cafe-links", "Menu", "https://cafe.example/menu").Success)

	node, found, err := svc.Public(ctx, account, "cafe-links")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, domain.PublicNode{
		Title:    "Café Links",
		Children: []domain.PublicNode{{Title: "Menu", Value: "https://cafe.example/menu"}},
	}, node)

	// Raw titles resolve through percent-decoding and slugification.
	_, found, err = svc.Public(ctx, account, "Caf%C3%A9%20Links")
	require.NoError(t, err)
	assert.True(t, found)

	_, found, err = svc.Public(ctx, account, "nothing-here")
	require.NoError(t, err)
	assert.False(t, found)

	preview, err := svc.Preview(ctx, account)
	require.NoError(t, err)
	assert.Equal(t, "Root", preview.Title)
	require.Len(t, preview.Children, 1)
}

func TestTreeService_ReadsDoNotCreateRecords(t *testing.T) {
	svc := newTestTreeService(t)
	idx := &recordingIndexer{}
	svc.SetIndexer(idx)
	ctx := context.Background()

	rec, err := svc.Export(ctx, "newcomer")
	require.NoError(t, err)
	assert.Equal(t, "Root", rec.Root.Title)
	assert.Empty(t, rec.Revision)

	preview, err := svc.Preview(ctx, "newcomer")
	require.NoError(t, err)
	assert.Equal(t, domain.PublicNode{Title: "Root"}, preview)

	_, found, err := svc.Public(ctx, "newcomer", "root")
	require.NoError(t, err)
	assert.True(t, found)

	_, _, err = svc.Public(ctx, "../etc", "root")
	assert.True(t, domainerrors.Is(err, domainerrors.ErrValidation))

	accounts, err := svc.Accounts(ctx)
	require.NoError(t, err)
	assert.Empty(t, accounts)
	assert.Empty(t, idx.calls)
}

func TestTreeService_Reset(t *testing.T) {
	svc := newTestTreeService(t)
	idx := &recordingIndexer{}
	svc.SetIndexer(idx)
	ctx := context.Background()
	require.True(t, mustAdd(t, svc, "root", "Docs", "").Success)

	res, err := svc.Reset(ctx, account)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, domainerrors.CodeTreeReset, res.Code)
	assert.Equal(t, "root", res.Slug)
	assert.Empty(t, loadRoot(t, svc).Children)
	assert.Equal(t, 1, idx.removed[account], "old nodes leave the index")
	assert.Equal(t, 3, idx.calls[account], "seed, add and reseed are indexed")

	// Reset of an account that never existed just seeds it.
	res, err = svc.Reset(ctx, "newcomer")
	require.NoError(t, err)
	assert.True(t, res.Success)

	accounts, err := svc.Accounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{account, "newcomer"}, accounts)
}

func TestTreeService_IndexerFailureDoesNotFailSave(t *testing.T) {
	svc := newTestTreeService(t)
	svc.SetIndexer(&recordingIndexer{err: errors.New("index offline")})

	res := mustAdd(t, svc, "root", "Docs", "")
	assert.True(t, res.Success)
}

func TestTreeService_ConcurrentAddsAreSerialised(t *testing.T) {
	svc := newTestTreeService(t)
	ctx := context.Background()
	_ = loadRoot(t, svc)

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := svc.Add(ctx, account, AddRequest{Parent: "root", Title: fmt.Sprintf("Node %d", i)})
			if err == nil && !res.Success {
				err = fmt.Errorf("add %d: %s", i, res.Code)
			}
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	root := loadRoot(t, svc)
	assert.Len(t, root.Children, n)
	assert.NoError(t, tree.Validate(root))
}

func TestUnwrapAccountEnvelope(t *testing.T) {
	inner := map[string]any{"title": "Go"}

	tests := []struct {
		name  string
		input any
		want  any
	}{
		{"matching account", map[string]any{"dan": inner}, inner},
		{"case-insensitive account", map[string]any{"DAN": inner}, inner},
		{"other account", map[string]any{"eve": inner}, map[string]any{"eve": inner}},
		{"plain node", inner, inner},
		{"two keys", map[string]any{"dan": inner, "x": inner}, map[string]any{"dan": inner, "x": inner}},
		{"non-object inner", map[string]any{"dan": "Go"}, map[string]any{"dan": "Go"}},
		{"not an object", []any{inner}, []any{inner}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, UnwrapAccountEnvelope(tt.input, account))
		})
	}

	// A schema key is never treated as a wrapper, even for an account of that name.
	titled := map[string]any{"title": map[string]any{"title": "x"}}
	assert.Equal(t, titled, UnwrapAccountEnvelope(titled, "title"))
}
