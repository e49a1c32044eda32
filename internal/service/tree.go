package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/fishdan-plugins/jsonmaker/internal/domain"
	domainerrors "github.com/fishdan-plugins/jsonmaker/internal/errors"
	"github.com/fishdan-plugins/jsonmaker/internal/slug"
	"github.com/fishdan-plugins/jsonmaker/internal/store"
	"github.com/fishdan-plugins/jsonmaker/internal/tree"
	"github.com/fishdan-plugins/jsonmaker/internal/treeimport"
	"github.com/fishdan-plugins/jsonmaker/internal/validation"
)

// TreeIndexer receives every tree the service persists, and every account
// whose tree is discarded.
type TreeIndexer interface {
	IndexTree(ctx context.Context, accountID string, root *domain.Node) error
	RemoveAccount(ctx context.Context, accountID string) error
}

// SeedConfig describes the tree an account starts with.
type SeedConfig struct {
	Title string
	Value string
}

// Result reports the outcome of a tree operation. Rule violations are results,
// not errors; a non-nil error from the service always means infrastructure
// trouble (storage, cancelled context) or an unusable account id.
type Result struct {
	Success  bool              `json:"success"`
	Code     domainerrors.Code `json:"code"`
	Message  string            `json:"message"`
	Slug     string            `json:"slug,omitempty"`
	Revision string            `json:"revision,omitempty"`
	Issue    *treeimport.Issue `json:"issue,omitempty"`
}

func succeeded(code domainerrors.Code, nodeSlug string, rec *domain.TreeRecord) *Result {
	return &Result{
		Success:  true,
		Code:     code,
		Message:  code.Message(),
		Slug:     nodeSlug,
		Revision: rec.Revision,
	}
}

func failed(code domainerrors.Code) *Result {
	return &Result{Code: code, Message: code.Message()}
}

// AddRequest contains fields for adding a node.
type AddRequest struct {
	Parent string `json:"parent" validate:"notblank"`
	Title  string `json:"title" validate:"notblank"`
	Value  string `json:"value,omitempty"`
}

// RenameRequest contains fields for retitling a node.
type RenameRequest struct {
	Target string `json:"target" validate:"notblank"`
	Title  string `json:"title" validate:"notblank"`
}

// DeleteRequest identifies the node to delete.
type DeleteRequest struct {
	Target string `json:"target" validate:"notblank"`
}

// TreeService orchestrates reads and mutations of account trees.
type TreeService struct {
	store     store.TreeStore
	logger    *slog.Logger
	validator *validation.Validator
	seed      SeedConfig
	locks     *accountLocks
	indexer   TreeIndexer
}

// NewTreeService creates a new tree service.
func NewTreeService(store store.TreeStore, seed SeedConfig, logger *slog.Logger) *TreeService {
	if strings.TrimSpace(seed.Title) == "" {
		seed.Title = domain.DefaultSeedTitle
		seed.Value = domain.DefaultSeedValue
	}
	return &TreeService{
		store:     store,
		logger:    logger,
		validator: validation.New(),
		seed:      seed,
		locks:     newAccountLocks(),
	}
}

// SetIndexer registers the search indexer.
// This is set after construction because the search service reads trees back
// through this service.
func (s *TreeService) SetIndexer(indexer TreeIndexer) {
	s.indexer = indexer
}

// SeedTree builds the starter tree for a new account.
func (s *TreeService) SeedTree() *domain.Node {
	title := strings.TrimSpace(s.seed.Title)
	return domain.SeedTree(title, slug.Base(title), strings.TrimSpace(s.seed.Value))
}

// Accounts lists every account with a stored tree.
func (s *TreeService) Accounts(ctx context.Context) ([]string, error) {
	return s.store.ListAccounts(ctx)
}

// LoadTree returns the account's tree, persisting the seed tree on first access.
func (s *TreeService) LoadTree(ctx context.Context, accountID string) (*domain.TreeRecord, error) {
	if err := s.ValidateAccount(accountID); err != nil {
		return nil, err
	}

	rec, created, err := s.store.GetOrCreateTree(ctx, accountID, s.SeedTree)
	if err != nil {
		return nil, fmt.Errorf("load tree: %w", err)
	}
	if created {
		s.index(ctx, rec)
	}
	if err := tree.Validate(rec.Root); err != nil {
		s.logger.Warn("stored tree breaks an invariant", "account", accountID, "error", err)
	}
	return rec, nil
}

// SaveTree overwrites the account's whole tree.
func (s *TreeService) SaveTree(ctx context.Context, accountID string, root *domain.Node) (*domain.TreeRecord, error) {
	if err := s.ValidateAccount(accountID); err != nil {
		return nil, err
	}

	rec, err := s.store.SaveTree(ctx, accountID, root)
	if err != nil {
		return nil, fmt.Errorf("save tree: %w", err)
	}
	s.index(ctx, rec)
	return rec, nil
}

// readTree returns the stored tree, or an unsaved seed tree when the account
// has none. Read paths never create records.
func (s *TreeService) readTree(ctx context.Context, accountID string) (*domain.TreeRecord, error) {
	if err := s.ValidateAccount(accountID); err != nil {
		return nil, err
	}

	rec, err := s.store.GetTree(ctx, accountID)
	if errors.Is(err, store.ErrTreeNotFound) {
		return &domain.TreeRecord{AccountID: accountID, Root: s.SeedTree()}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load tree: %w", err)
	}
	return rec, nil
}

// Export returns the full stored tree, slugs included. An account without a
// stored tree exports the seed tree with an empty revision.
func (s *TreeService) Export(ctx context.Context, accountID string) (*domain.TreeRecord, error) {
	return s.readTree(ctx, accountID)
}

// Preview returns the public projection of the whole tree.
func (s *TreeService) Preview(ctx context.Context, accountID string) (domain.PublicNode, error) {
	rec, err := s.readTree(ctx, accountID)
	if err != nil {
		return domain.PublicNode{}, err
	}
	return tree.ToPublic(rec.Root), nil
}

// Public resolves an externally supplied node address and projects the node.
// found is false when no node has the resolved slug.
func (s *TreeService) Public(ctx context.Context, accountID, rawSlug string) (node domain.PublicNode, found bool, err error) {
	rec, err := s.readTree(ctx, accountID)
	if err != nil {
		return domain.PublicNode{}, false, err
	}

	n := tree.FindByID(rec.Root, slug.Resolve(rawSlug))
	if n == nil {
		return domain.PublicNode{}, false, nil
	}
	return tree.ToPublic(n), true, nil
}

// Add creates a child node under req.Parent.
func (s *TreeService) Add(ctx context.Context, accountID string, req AddRequest) (*Result, error) {
	if err := s.ValidateAccount(accountID); err != nil {
		return nil, err
	}
	if res, err := s.validate(req); res != nil || err != nil {
		return res, err
	}

	unlock := s.locks.Lock(accountID)
	defer unlock()

	rec, err := s.LoadTree(ctx, accountID)
	if err != nil {
		return nil, err
	}
	root := rec.Root

	title := strings.TrimSpace(req.Title)
	if tree.ExistsByTitle(root, title, "") {
		return failed(domainerrors.CodeTitleExists), nil
	}

	child := &domain.Node{
		Title:    title,
		Slug:     tree.MakeUniqueSlug(title, root, ""),
		Value:    strings.TrimSpace(req.Value),
		Children: []*domain.Node{},
	}
	if !tree.AddChild(root, strings.TrimSpace(req.Parent), child) {
		return failed(domainerrors.CodeParentNotFound), nil
	}

	saved, err := s.SaveTree(ctx, accountID, root)
	if err != nil {
		return nil, err
	}

	s.logger.Info("node added", "account", accountID, "slug", child.Slug, "parent", req.Parent)
	return succeeded(domainerrors.CodeNodeAdded, child.Slug, saved), nil
}

// Delete removes a leaf node.
func (s *TreeService) Delete(ctx context.Context, accountID string, req DeleteRequest) (*Result, error) {
	if err := s.ValidateAccount(accountID); err != nil {
		return nil, err
	}
	if res, err := s.validate(req); res != nil || err != nil {
		return res, err
	}

	unlock := s.locks.Lock(accountID)
	defer unlock()

	rec, err := s.LoadTree(ctx, accountID)
	if err != nil {
		return nil, err
	}
	root := rec.Root
	target := strings.TrimSpace(req.Target)

	if target == root.Slug {
		return failed(domainerrors.CodeCannotDeleteRoot), nil
	}
	n := tree.FindByID(root, target)
	if n == nil {
		return failed(domainerrors.CodeNodeNotFound), nil
	}
	if n.HasChildren() {
		return failed(domainerrors.CodeHasChildren), nil
	}
	if !tree.RemoveChild(root, target) {
		return failed(domainerrors.CodeNodeNotFound), nil
	}

	saved, err := s.SaveTree(ctx, accountID, root)
	if err != nil {
		return nil, err
	}

	s.logger.Info("node deleted", "account", accountID, "slug", target)
	return succeeded(domainerrors.CodeNodeDeleted, target, saved), nil
}

// Rename retitles a node and re-derives its slug.
func (s *TreeService) Rename(ctx context.Context, accountID string, req RenameRequest) (*Result, error) {
	if err := s.ValidateAccount(accountID); err != nil {
		return nil, err
	}
	if res, err := s.validate(req); res != nil || err != nil {
		return res, err
	}

	unlock := s.locks.Lock(accountID)
	defer unlock()

	rec, err := s.LoadTree(ctx, accountID)
	if err != nil {
		return nil, err
	}
	root := rec.Root
	target := strings.TrimSpace(req.Target)
	title := strings.TrimSpace(req.Title)

	if tree.ExistsByTitle(root, title, target) {
		return failed(domainerrors.CodeTitleExists), nil
	}
	newSlug := tree.MakeUniqueSlug(title, root, target)
	if !tree.RenameNode(root, target, title, newSlug) {
		return failed(domainerrors.CodeNodeNotFound), nil
	}

	saved, err := s.SaveTree(ctx, accountID, root)
	if err != nil {
		return nil, err
	}

	s.logger.Info("node renamed", "account", accountID, "from", target, "to", newSlug)
	return succeeded(domainerrors.CodeTitleUpdated, newSlug, saved), nil
}

// ImportJSON replaces the account's tree with payload, or appends payload
// under targetSlug. A failed import leaves the stored tree untouched.
func (s *TreeService) ImportJSON(ctx context.Context, accountID string, payload []byte, mode, targetSlug string) (*Result, error) {
	if err := s.ValidateAccount(accountID); err != nil {
		return nil, err
	}

	m, ok := treeimport.ParseMode(mode)
	if !ok {
		return failed(domainerrors.CodeImportInvalidMode), nil
	}
	targetSlug = strings.TrimSpace(targetSlug)
	if m == treeimport.ModeAppend && targetSlug == "" {
		return failed(domainerrors.CodeImportTargetMissing), nil
	}

	input, err := treeimport.Parse(payload)
	if err != nil {
		return importFailed(err)
	}

	unlock := s.locks.Lock(accountID)
	defer unlock()

	var (
		next *domain.Node
		code domainerrors.Code
	)
	switch m {
	case treeimport.ModeAppend:
		rec, err := s.LoadTree(ctx, accountID)
		if err != nil {
			return nil, err
		}
		next, err = treeimport.AppendValue(rec.Root, UnwrapAccountEnvelope(input, accountID), targetSlug)
		if err != nil {
			return importFailed(err)
		}
		code = domainerrors.CodeImportAppended
	default:
		next, err = treeimport.ReplaceValue(input)
		if err != nil {
			return importFailed(err)
		}
		code = domainerrors.CodeImportReplaced
	}

	saved, err := s.SaveTree(ctx, accountID, next)
	if err != nil {
		return nil, err
	}

	resultSlug := targetSlug
	if m == treeimport.ModeReplace {
		resultSlug = next.Slug
	}

	s.logger.Info("tree imported", "account", accountID, "mode", m, "target", targetSlug, "nodes", tree.Count(next))
	return succeeded(code, resultSlug, saved), nil
}

// Reset discards the account's tree and stores a fresh seed tree.
func (s *TreeService) Reset(ctx context.Context, accountID string) (*Result, error) {
	if err := s.ValidateAccount(accountID); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(accountID)
	defer unlock()

	if err := s.store.DeleteTree(ctx, accountID); err != nil && !errors.Is(err, store.ErrTreeNotFound) {
		return nil, fmt.Errorf("delete tree: %w", err)
	}
	s.unindex(ctx, accountID)
	rec, err := s.LoadTree(ctx, accountID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("tree reset", "account", accountID)
	return succeeded(domainerrors.CodeTreeReset, rec.Root.Slug, rec), nil
}

// UnwrapAccountEnvelope strips a {"<account>": {...}} wrapper from a decoded
// payload. Anything else is returned unchanged.
func UnwrapAccountEnvelope(input any, accountID string) any {
	obj, ok := input.(map[string]any)
	if !ok || len(obj) != 1 {
		return input
	}
	for key, inner := range obj {
		switch key {
		case "title", "value", "children":
			return input
		}
		if !strings.EqualFold(key, accountID) {
			return input
		}
		if _, ok := inner.(map[string]any); ok {
			return inner
		}
	}
	return input
}

func importFailed(err error) (*Result, error) {
	code := domainerrors.CodeOf(err)
	if !strings.HasPrefix(string(code), "import_") {
		return nil, err
	}
	res := failed(code)
	if issue, ok := treeimport.IssueOf(err); ok {
		res.Issue = &issue
	}
	return res, nil
}

// validate maps blank required fields to missing_fields.
func (s *TreeService) validate(req any) (*Result, error) {
	err := s.validator.Validate(req)
	if err == nil {
		return nil, nil
	}
	if validation.Missing(err) {
		return failed(domainerrors.CodeMissingFields), nil
	}
	return nil, err
}

// ValidateAccount reports a validation error for ids that cannot name an account.
func (s *TreeService) ValidateAccount(accountID string) error {
	return s.validator.Var("account", accountID, "account")
}

func (s *TreeService) index(ctx context.Context, rec *domain.TreeRecord) {
	if s.indexer == nil {
		return
	}
	if err := s.indexer.IndexTree(ctx, rec.AccountID, rec.Root); err != nil {
		s.logger.Warn("failed to index tree", "account", rec.AccountID, "error", err)
	}
}

func (s *TreeService) unindex(ctx context.Context, accountID string) {
	if s.indexer == nil {
		return
	}
	if err := s.indexer.RemoveAccount(ctx, accountID); err != nil {
		s.logger.Warn("failed to remove account from index", "account", accountID, "error", err)
	}
}
