// Package treeimport turns untrusted JSON into a valid bookmark subtree.
//
// A payload is decoded into generic JSON values and walked by hand; a typed
// domain.Node is only produced once the whole payload has passed validation.
// The first problem anywhere in the payload aborts the import, and the
// caller's tree is never touched.
package treeimport

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/fishdan-plugins/jsonmaker/internal/domain"
	domainerrors "github.com/fishdan-plugins/jsonmaker/internal/errors"
	"github.com/fishdan-plugins/jsonmaker/internal/tree"
)

// Mode selects how an import is applied to an account's tree.
type Mode string

// Import modes.
const (
	ModeReplace Mode = "replace" // Imported node becomes the new root
	ModeAppend  Mode = "append"  // Imported node is added under a target node
)

// ParseMode converts user input to a Mode. An empty string means replace.
func ParseMode(s string) (Mode, bool) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeReplace, "":
		return ModeReplace, true
	case ModeAppend:
		return ModeAppend, true
	default:
		return "", false
	}
}

// Issue locates an import failure inside the payload.
type Issue struct {
	Path   string `json:"path"`   // JSONPath-like location, e.g. $.children[1].title
	Reason string `json:"reason"` // Human readable explanation
}

func (i Issue) String() string {
	return i.Path + ": " + i.Reason
}

var allowedKeys = map[string]bool{
	"title":    true,
	"value":    true,
	"children": true,
}

func invalidJSON(reason string, cause error) error {
	return domainerrors.New(domainerrors.CodeImportInvalidJSON).
		WithDetails(Issue{Path: "$", Reason: reason}).
		WithCause(cause)
}

func invalidStructure(path, reason string) error {
	return domainerrors.New(domainerrors.CodeImportInvalidStructure).
		WithDetails(Issue{Path: path, Reason: reason})
}

func duplicateTitle(path, title string) error {
	return domainerrors.New(domainerrors.CodeImportDuplicateTitle).
		WithDetails(Issue{Path: path, Reason: fmt.Sprintf("title %q is already used", title)})
}

// IssueOf returns the location details of an import error, if it has any.
func IssueOf(err error) (Issue, bool) {
	var de *domainerrors.Error
	if !errors.As(err, &de) {
		return Issue{}, false
	}
	issue, ok := de.Details.(Issue)
	return issue, ok
}

// Parse decodes a raw payload. The payload must hold exactly one JSON object;
// numbers are kept as json.Number so that no value is silently reinterpreted.
func Parse(payload []byte) (any, error) {
	if len(bytes.TrimSpace(payload)) == 0 {
		return nil, invalidJSON("payload is empty", nil)
	}

	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, invalidJSON("payload is not valid JSON", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, invalidJSON("unexpected data after the top-level value", err)
	}
	if _, ok := v.(map[string]any); !ok {
		return nil, invalidJSON("top-level value must be an object", nil)
	}
	return v, nil
}

// NormalizeNode validates input against the node schema and builds the subtree.
// usedTitles holds folded titles and usedSlugs holds slugs that the result must
// not reuse; both are extended in place as nodes are accepted, depth-first and
// left to right.
func NormalizeNode(input any, usedTitles, usedSlugs map[string]struct{}) (*domain.Node, error) {
	n := &normalizer{titles: usedTitles, slugs: usedSlugs}
	return n.node(input, "$")
}

// NormalizeTree normalizes input as a whole tree (existing == nil) or as a
// subtree that must not collide with any title or slug of existing.
func NormalizeTree(input any, existing *domain.Node) (*domain.Node, error) {
	titles := map[string]struct{}{}
	slugs := map[string]struct{}{}
	if existing != nil {
		titles = tree.Titles(existing)
		slugs = tree.Slugs(existing)
	}
	return NormalizeNode(input, titles, slugs)
}

type normalizer struct {
	titles map[string]struct{}
	slugs  map[string]struct{}
}

func (z *normalizer) node(input any, path string) (*domain.Node, error) {
	obj, ok := input.(map[string]any)
	if !ok {
		return nil, invalidStructure(path, "expected an object, got "+kindOf(input))
	}

	// Sorted so the reported key does not depend on map order.
	keys := make([]string, 0, len(obj))
	for key := range obj {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if !allowedKeys[key] {
			return nil, invalidStructure(path+"."+key, "unknown key")
		}
	}

	rawTitle, ok := obj["title"]
	if !ok {
		return nil, invalidStructure(path+".title", "title is required")
	}
	title, ok := rawTitle.(string)
	if !ok {
		return nil, invalidStructure(path+".title", "title must be a string, got "+kindOf(rawTitle))
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, invalidStructure(path+".title", "title must not be empty")
	}

	folded := tree.Fold(title)
	if _, taken := z.titles[folded]; taken {
		return nil, duplicateTitle(path+".title", title)
	}
	z.titles[folded] = struct{}{}

	s := tree.MakeUniqueSlugIn(title, z.slugs)
	z.slugs[s] = struct{}{}

	out := &domain.Node{Title: title, Slug: s, Children: []*domain.Node{}}

	if rawValue, present := obj["value"]; present {
		switch v := rawValue.(type) {
		case nil:
		case string:
			out.Value = strings.TrimSpace(v)
		default:
			return nil, invalidStructure(path+".value", "value must be a string or null, got "+kindOf(rawValue))
		}
	}

	if rawChildren, present := obj["children"]; present {
		items, ok := rawChildren.([]any)
		if !ok {
			return nil, invalidStructure(path+".children", "children must be an array, got "+kindOf(rawChildren))
		}
		for i, item := range items {
			childPath := fmt.Sprintf("%s.children[%d]", path, i)
			if _, ok := item.(map[string]any); !ok {
				return nil, invalidStructure(childPath, "child must be an object, got "+kindOf(item))
			}
			child, err := z.node(item, childPath)
			if err != nil {
				return nil, err
			}
			out.Children = append(out.Children, child)
		}
	}

	// A container never keeps a value.
	if len(out.Children) > 0 {
		out.Value = ""
	}

	return out, nil
}

func kindOf(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case json.Number, float64:
		return "number"
	case string:
		return "string"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
