package service

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/fishdan-plugins/jsonmaker/internal/errors"
	"github.com/fishdan-plugins/jsonmaker/internal/sse"
	"github.com/fishdan-plugins/jsonmaker/internal/treeimport"
)

type recordingEmitter struct {
	mu     sync.Mutex
	events []sse.Event
}

func (r *recordingEmitter) Emit(event any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if evt, ok := event.(sse.Event); ok {
		r.events = append(r.events, evt)
	}
}

func (r *recordingEmitter) snapshot() []sse.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]sse.Event(nil), r.events...)
}

func newTestInbox(t *testing.T) (*InboxService, *TreeService, *recordingEmitter, string) {
	t.Helper()
	trees := newTestTreeService(t)
	emitter := &recordingEmitter{}
	dir := t.TempDir()
	inbox := NewInboxService(trees, emitter, InboxOptions{
		Dir:         dir,
		SettleDelay: 20 * time.Millisecond,
	}, testLogger())
	require.NoError(t, inbox.ensureDirs())
	return inbox, trees, emitter, dir
}

func writeInboxFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestParseInboxName(t *testing.T) {
	tests := []struct {
		name    string
		want    InboxFile
		wantErr bool
	}{
		{name: "dan.json", want: InboxFile{Account: "dan", Mode: treeimport.ModeReplace}},
		{name: "/in/dan.JSON", want: InboxFile{Account: "dan", Mode: treeimport.ModeReplace}},
		{name: "dan@docs.json", want: InboxFile{Account: "dan", Mode: treeimport.ModeAppend, Target: "docs"}},
		{name: "dan@.json", wantErr: true},
		{name: "@docs.json", wantErr: true},
		{name: "dan.txt", wantErr: true},
		{name: "no spaces.json", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseInboxName(tt.name)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInboxFileName)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInbox_ProcessFile_Replace(t *testing.T) {
	ctx := context.Background()
	inbox, trees, emitter, dir := newTestInbox(t)

	path := writeInboxFile(t, dir, "dan.json", `{"title":"Bookmarks","children":[{"title":"Go","value":"https://go.dev"}]}`)

	res, err := inbox.ProcessFile(ctx, path)
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Equal(t, domainerrors.CodeImportReplaced, res.Code)

	assert.NoFileExists(t, path)
	assert.FileExists(t, filepath.Join(dir, InboxDoneDir, "dan.json"))
	assert.Empty(t, emitter.snapshot())

	rec, err := trees.Export(ctx, "dan")
	require.NoError(t, err)
	assert.Equal(t, "Bookmarks", rec.Root.Title)
	require.Len(t, rec.Root.Children, 1)
	assert.Equal(t, "go", rec.Root.Children[0].Slug)
}

func TestInbox_ProcessFile_Append(t *testing.T) {
	ctx := context.Background()
	inbox, trees, _, dir := newTestInbox(t)

	mustAdd(t, trees, "root", "Docs", "")
	path := writeInboxFile(t, dir, "dan@docs.json", `{"title":"Go","value":"https://go.dev"}`)

	res, err := inbox.ProcessFile(ctx, path)
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Equal(t, domainerrors.CodeImportAppended, res.Code)

	root := loadRoot(t, trees)
	require.Len(t, root.Children, 1)
	require.Len(t, root.Children[0].Children, 1)
	assert.Equal(t, "Go", root.Children[0].Children[0].Title)
}

func TestInbox_ProcessFile_RejectedImport(t *testing.T) {
	ctx := context.Background()
	inbox, trees, emitter, dir := newTestInbox(t)
	_ = loadRoot(t, trees)

	before, err := trees.Export(ctx, "dan")
	require.NoError(t, err)
	require.NotEmpty(t, before.Revision)

	path := writeInboxFile(t, dir, "dan.json", `{"title":"A","children":[{"title":"x"},{"title":"X"}]}`)

	res, err := inbox.ProcessFile(ctx, path)
	require.NoError(t, err)
	require.False(t, res.Success)
	assert.Equal(t, domainerrors.CodeImportDuplicateTitle, res.Code)

	failedPath := filepath.Join(dir, InboxFailedDir, "dan.json")
	assert.FileExists(t, failedPath)

	sidecar, err := os.ReadFile(failedPath + errorSidecar)
	require.NoError(t, err)
	var failure inboxFailure
	require.NoError(t, json.Unmarshal(sidecar, &failure))
	assert.Equal(t, "dan.json", failure.File)
	assert.Equal(t, domainerrors.CodeImportDuplicateTitle, failure.Code)
	require.NotNil(t, failure.Issue)
	assert.Equal(t, "$.children[1].title", failure.Issue.Path)

	events := emitter.snapshot()
	require.Len(t, events, 1)
	assert.Equal(t, sse.EventImportFailed, events[0].Type)

	after, err := trees.Export(ctx, "dan")
	require.NoError(t, err)
	assert.Equal(t, before.Revision, after.Revision, "rejected import leaves the tree untouched")
}

func TestInbox_ProcessFile_BadName(t *testing.T) {
	inbox, _, emitter, dir := newTestInbox(t)

	path := writeInboxFile(t, dir, "no spaces.json", `{"title":"A"}`)

	res, err := inbox.ProcessFile(context.Background(), path)
	require.NoError(t, err)
	assert.Nil(t, res)
	assert.FileExists(t, filepath.Join(dir, InboxFailedDir, "no spaces.json"+errorSidecar))
	assert.Empty(t, emitter.snapshot(), "no account to notify")
}

func TestInbox_ProcessFile_KeepsEarlierResults(t *testing.T) {
	ctx := context.Background()
	inbox, _, _, dir := newTestInbox(t)
	inbox.now = func() time.Time { return time.Unix(1700000000, 0) }

	_, err := inbox.ProcessFile(ctx, writeInboxFile(t, dir, "dan.json", `{"title":"One"}`))
	require.NoError(t, err)
	_, err = inbox.ProcessFile(ctx, writeInboxFile(t, dir, "dan.json", `{"title":"Two"}`))
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(dir, InboxDoneDir, "dan.json"))
	assert.FileExists(t, filepath.Join(dir, InboxDoneDir, "dan-1700000000000000000.json"))
}

func TestInbox_ProcessFile_AlreadyHandled(t *testing.T) {
	inbox, _, _, dir := newTestInbox(t)

	res, err := inbox.ProcessFile(context.Background(), filepath.Join(dir, "dan.json"))
	assert.NoError(t, err)
	assert.Nil(t, res)
}

func TestInbox_ScanExisting(t *testing.T) {
	inbox, trees, _, dir := newTestInbox(t)

	writeInboxFile(t, dir, "amy.json", `{"title":"Amy"}`)
	writeInboxFile(t, dir, "dan.json", `{"title":"Dan"}`)
	writeInboxFile(t, dir, "notes.txt", "ignored")

	n, err := inbox.ScanExisting(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.FileExists(t, filepath.Join(dir, "notes.txt"))

	accounts, err := trees.Accounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"amy", "dan"}, accounts)
}

func TestInbox_RunPicksUpNewFiles(t *testing.T) {
	inbox, trees, _, dir := newTestInbox(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- inbox.Run(ctx) }()

	// Give the watcher a moment to register.
	time.Sleep(100 * time.Millisecond)
	writeInboxFile(t, dir, "dan.json", `{"title":"Dropped"}`)

	require.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(dir, InboxDoneDir, "dan.json"))
		return err == nil
	}, 2*time.Second, 20*time.Millisecond)

	rec, err := trees.Export(context.Background(), "dan")
	require.NoError(t, err)
	assert.Equal(t, "Dropped", rec.Root.Title)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
