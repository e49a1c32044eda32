package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fishdan-plugins/jsonmaker/internal/domain"
	domainerrors "github.com/fishdan-plugins/jsonmaker/internal/errors"
	"github.com/fishdan-plugins/jsonmaker/internal/ratelimit"
	"github.com/fishdan-plugins/jsonmaker/internal/sse"
	"github.com/fishdan-plugins/jsonmaker/internal/store"
	"github.com/fishdan-plugins/jsonmaker/internal/treeimport"
	"github.com/fishdan-plugins/jsonmaker/internal/validation"
	"github.com/fishdan-plugins/jsonmaker/internal/watcher"
)

// Inbox subdirectories for processed files.
const (
	InboxDoneDir   = "done"
	InboxFailedDir = "failed"

	inboxExt      = ".json"
	errorSidecar  = ".error"
	targetMarker  = "@"
	inboxFileMode = 0o644
)

// InboxOptions configures the import inbox.
type InboxOptions struct {
	Dir         string
	SettleDelay time.Duration
	RateLimit   float64 // Imports per second per account; 0 disables limiting
	Burst       int
}

// InboxService imports JSON files dropped into a directory.
//
//	dan.json       replaces dan's tree
//	dan@docs.json  appends under dan's node "docs"
//
// Each file ends up in done/ or, with a .error sidecar, in failed/.
type InboxService struct {
	trees   *TreeService
	emitter store.EventEmitter
	limiter *ratelimit.KeyedRateLimiter
	opts    InboxOptions
	logger  *slog.Logger
	now     func() time.Time
}

// InboxFile is the import instruction encoded in an inbox file name.
type InboxFile struct {
	Account string
	Mode    treeimport.Mode
	Target  string
}

// ErrInboxFileName is returned for file names that do not encode an import.
var ErrInboxFileName = errors.New("inbox file name must be <account>.json or <account>@<target>.json")

// NewInboxService creates a new inbox service.
func NewInboxService(trees *TreeService, emitter store.EventEmitter, opts InboxOptions, logger *slog.Logger) *InboxService {
	if emitter == nil {
		emitter = store.NewNoopEmitter()
	}
	var limiter *ratelimit.KeyedRateLimiter
	if opts.RateLimit > 0 {
		limiter = ratelimit.New(opts.RateLimit, max(opts.Burst, 1))
	}
	return &InboxService{
		trees:   trees,
		emitter: emitter,
		limiter: limiter,
		opts:    opts,
		logger:  logger,
		now:     time.Now,
	}
}

// ParseInboxName decodes an inbox file name.
func ParseInboxName(name string) (InboxFile, error) {
	base := filepath.Base(name)
	if !strings.EqualFold(filepath.Ext(base), inboxExt) {
		return InboxFile{}, ErrInboxFileName
	}
	stem := base[:len(base)-len(inboxExt)]

	account, target, hasTarget := strings.Cut(stem, targetMarker)
	if !validation.ValidAccount(account) {
		return InboxFile{}, ErrInboxFileName
	}
	if !hasTarget {
		return InboxFile{Account: account, Mode: treeimport.ModeReplace}, nil
	}
	if strings.TrimSpace(target) == "" {
		return InboxFile{}, ErrInboxFileName
	}
	return InboxFile{Account: account, Mode: treeimport.ModeAppend, Target: target}, nil
}

// Run prepares the inbox directories, imports files already waiting, and then
// imports every new file until ctx is cancelled.
func (s *InboxService) Run(ctx context.Context) error {
	if err := s.ensureDirs(); err != nil {
		return err
	}
	if s.limiter != nil {
		defer s.limiter.Stop()
	}

	w, err := watcher.New(s.logger, watcher.Options{
		SettleDelay:    s.opts.SettleDelay,
		Extensions:     []string{inboxExt},
		IgnorePatterns: []string{"*" + errorSidecar},
		IgnoreHidden:   true,
	})
	if err != nil {
		return fmt.Errorf("create inbox watcher: %w", err)
	}
	defer w.Stop() //nolint:errcheck // Shutdown path

	if err := w.Watch(s.opts.Dir); err != nil {
		return fmt.Errorf("watch inbox: %w", err)
	}

	go w.Start(ctx) //nolint:errcheck // Returns when ctx is done

	if _, err := s.ScanExisting(ctx); err != nil && ctx.Err() == nil {
		s.logger.Warn("inbox scan failed", "error", err)
	}

	s.logger.Info("inbox watching", "dir", s.opts.Dir)

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-w.Errors():
			s.logger.Warn("inbox watcher error", "error", err)
		case event := <-w.Events():
			if event.Type == watcher.EventRemoved {
				continue
			}
			if _, err := s.ProcessFile(ctx, event.Path); err != nil && ctx.Err() == nil {
				s.logger.Error("inbox import failed", "file", event.Path, "error", err)
			}
		}
	}
}

// ScanExisting imports every inbox file present right now, in name order.
func (s *InboxService) ScanExisting(ctx context.Context) (int, error) {
	if err := s.ensureDirs(); err != nil {
		return 0, err
	}
	entries, err := os.ReadDir(s.opts.Dir)
	if err != nil {
		return 0, fmt.Errorf("read inbox: %w", err)
	}

	processed := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), inboxExt) {
			continue
		}
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		if err := ctx.Err(); err != nil {
			return processed, err
		}
		if _, err := s.ProcessFile(ctx, filepath.Join(s.opts.Dir, entry.Name())); err != nil {
			s.logger.Error("inbox import failed", "file", entry.Name(), "error", err)
			continue
		}
		processed++
	}
	return processed, nil
}

// ProcessFile imports one inbox file and moves it out of the inbox.
// A rule violation is reported through the Result; the error is only set when
// the file could not be handled at all.
func (s *InboxService) ProcessFile(ctx context.Context, path string) (*Result, error) {
	name := filepath.Base(path)
	logger := s.logger.With("file", name)

	file, err := ParseInboxName(name)
	if err != nil {
		logger.Warn("ignoring inbox file", "error", err)
		return nil, s.fail(path, "", &Result{Code: domainerrors.CodeValidation, Message: err.Error()})
	}

	payload, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			// Picked up by the scan and the watcher; already handled.
			return nil, nil
		}
		return nil, fmt.Errorf("read inbox file: %w", err)
	}

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx, file.Account); err != nil {
			return nil, err
		}
	}

	res, err := s.trees.ImportJSON(ctx, file.Account, payload, string(file.Mode), file.Target)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		res = &Result{Code: domainerrors.CodeOf(err), Message: err.Error()}
	}

	if !res.Success {
		logger.Info("inbox import rejected", "account", file.Account, "code", res.Code)
		return res, s.fail(path, file.Account, res)
	}

	if _, err := s.move(path, InboxDoneDir); err != nil {
		return res, err
	}
	logger.Info("inbox import applied", "account", file.Account, "mode", file.Mode, "revision", res.Revision)
	return res, nil
}

// inboxFailure is the content of a .error sidecar.
type inboxFailure struct {
	File     string            `json:"file"`
	Code     domainerrors.Code `json:"code"`
	Message  string            `json:"message"`
	Issue    *treeimport.Issue `json:"issue,omitempty"`
	FailedAt time.Time         `json:"failed_at"`
}

func (s *InboxService) fail(path, accountID string, res *Result) error {
	dest, err := s.move(path, InboxFailedDir)
	if err != nil {
		return err
	}

	message := res.Message
	if res.Issue != nil {
		message = res.Issue.String()
	}

	body, err := domain.MarshalPretty(inboxFailure{
		File:     filepath.Base(path),
		Code:     res.Code,
		Message:  message,
		Issue:    res.Issue,
		FailedAt: s.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode error sidecar: %w", err)
	}
	if err := os.WriteFile(dest+errorSidecar, append(body, '\n'), inboxFileMode); err != nil {
		return fmt.Errorf("write error sidecar: %w", err)
	}

	if accountID != "" {
		s.emitter.Emit(sse.NewImportFailedEvent(accountID, filepath.Base(path), string(res.Code), message))
	}
	return nil
}

// move relocates path into the named inbox subdirectory without overwriting
// an earlier file of the same name.
func (s *InboxService) move(path, subdir string) (string, error) {
	name := filepath.Base(path)
	dest := filepath.Join(s.opts.Dir, subdir, name)
	if _, err := os.Stat(dest); err == nil {
		ext := filepath.Ext(name)
		dest = filepath.Join(s.opts.Dir, subdir,
			fmt.Sprintf("%s-%d%s", strings.TrimSuffix(name, ext), s.now().UnixNano(), ext))
	}
	if err := os.Rename(path, dest); err != nil {
		return "", fmt.Errorf("move %s to %s: %w", name, subdir, err)
	}
	return dest, nil
}

func (s *InboxService) ensureDirs() error {
	for _, dir := range []string{s.opts.Dir, filepath.Join(s.opts.Dir, InboxDoneDir), filepath.Join(s.opts.Dir, InboxFailedDir)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create inbox dir: %w", err)
		}
	}
	return nil
}
