package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fishdan-plugins/jsonmaker/internal/domain"
	"github.com/fishdan-plugins/jsonmaker/internal/search"
	"github.com/fishdan-plugins/jsonmaker/internal/store"
)

func run(t *testing.T, dataPath string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCommand()
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(append([]string{"--data-path", dataPath, "--storage-backend", "badger"}, args...))
	err := root.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestCommands_Lifecycle(t *testing.T) {
	dataPath := t.TempDir()
	docs := t.TempDir()

	doc := writeFile(t, docs, "tree.json", `{"title":"Bookmarks","children":[{"title":"Go","value":"https://go.dev"}]}`)

	out, err := run(t, dataPath, "import", "dan", doc)
	require.NoError(t, err)
	assert.Contains(t, out, "import_replaced")

	out, err = run(t, dataPath, "accounts")
	require.NoError(t, err)
	assert.Equal(t, "dan\n", out)

	out, err = run(t, dataPath, "show", "dan", "go")
	require.NoError(t, err)
	assert.Equal(t, "{\n    \"title\": \"Go\",\n    \"value\": \"https://go.dev\"\n}\n", out)

	_, err = run(t, dataPath, "show", "dan", "missing")
	assert.Error(t, err)

	exported := filepath.Join(docs, "export.json")
	_, err = run(t, dataPath, "export", "dan", "-o", exported)
	require.NoError(t, err)
	body, err := os.ReadFile(exported)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"account_id": "dan"`)
	assert.Contains(t, string(body), `"slug": "go"`)

	out, err = run(t, dataPath, "check")
	require.NoError(t, err)
	assert.Contains(t, out, "ok   dan (2 nodes")

	out, err = run(t, dataPath, "reset", "dan")
	require.NoError(t, err)
	assert.Contains(t, out, "tree_reset")

	out, err = run(t, dataPath, "show", "dan")
	require.NoError(t, err)
	assert.Contains(t, out, `"title": "`+domain.DefaultSeedTitle+`"`)
}

func TestCommands_ChangesMarkSearchIndexStale(t *testing.T) {
	dataPath := t.TempDir()
	indexPath := filepath.Join(dataPath, "search.bleve")
	doc := writeFile(t, t.TempDir(), "tree.json", `{"title":"Bookmarks"}`)

	openIndex := func() {
		index, err := search.NewSearchIndex(search.Options{Path: indexPath})
		require.NoError(t, err)
		require.NoError(t, index.Close())
		require.FileExists(t, indexPath+".version")
	}

	openIndex()
	_, err := run(t, dataPath, "import", "dan", doc)
	require.NoError(t, err)
	assert.NoFileExists(t, indexPath+".version")

	openIndex()
	_, err = run(t, dataPath, "reset", "dan")
	require.NoError(t, err)
	assert.NoFileExists(t, indexPath+".version")

	openIndex()
	_, err = run(t, dataPath, "show", "dan")
	require.NoError(t, err)
	assert.FileExists(t, indexPath+".version", "reads leave the index alone")
}

func TestCommands_ImportRejected(t *testing.T) {
	dataPath := t.TempDir()
	doc := writeFile(t, t.TempDir(), "dup.json", `{"title":"A","children":[{"title":"x"},{"title":"X"}]}`)

	_, err := run(t, dataPath, "import", "dan", doc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "import_duplicate_title")
	assert.Contains(t, err.Error(), "$.children[1].title")
}

func TestCommands_ImportAppendNeedsTarget(t *testing.T) {
	dataPath := t.TempDir()
	doc := writeFile(t, t.TempDir(), "extra.json", `{"title":"Extra"}`)

	_, err := run(t, dataPath, "import", "dan", doc, "--mode", "append")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "import_target_missing")
}

func TestCommands_UnknownBackend(t *testing.T) {
	_, err := run(t, t.TempDir(), "--storage-backend", "postgres", "accounts")
	assert.Error(t, err)
}

func TestCheckTrees_ReportsBrokenTree(t *testing.T) {
	ctx := context.Background()
	st, err := store.Open("", nil, nil, store.Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	_, err = st.SaveTree(ctx, "good", domain.SeedTree("Root", "root", ""))
	require.NoError(t, err)

	broken := domain.SeedTree("Root", "root", "")
	broken.Children = []*domain.Node{
		{Title: "A", Slug: "a", Children: []*domain.Node{}},
		{Title: "a", Slug: "a2", Children: []*domain.Node{}},
	}
	_, err = st.SaveTree(ctx, "bad", broken)
	require.NoError(t, err)

	var out bytes.Buffer
	err = checkTrees(ctx, &out, st)
	assert.ErrorIs(t, err, errCheckFailed)
	assert.Contains(t, out.String(), "FAIL bad")
	assert.Contains(t, out.String(), "ok   good (1 nodes")
}
