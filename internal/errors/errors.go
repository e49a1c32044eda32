// Package errors provides coded domain errors and the result codes reported by
// tree operations.
//
// Usage:
//
//	// In the engine - return typed errors
//	if seen[folded] {
//	    return nil, errors.New(errors.CodeImportDuplicateTitle).WithDetails(path)
//	}
//
//	// In handlers - check with errors.Is
//	if errors.Is(err, errors.ErrValidation) {
//	    ...
//	}
//
//	// Or switch on the Code directly
//	if code := errors.CodeOf(err); code == errors.CodeImportDuplicateTitle {
//	    ...
//	}
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Is re-exports the standard library function for convenience.
var Is = errors.Is

// Code represents a machine-readable result code.
type Code string

// Failure codes reported by tree operations.
const (
	CodeMissingFields          Code = "missing_fields"
	CodeTitleExists            Code = "title_exists"
	CodeParentNotFound         Code = "parent_not_found"
	CodeNodeNotFound           Code = "node_not_found"
	CodeCannotDeleteRoot       Code = "cannot_delete_root"
	CodeHasChildren            Code = "has_children"
	CodeImportInvalidJSON      Code = "import_invalid_json"
	CodeImportInvalidStructure Code = "import_invalid_structure"
	CodeImportDuplicateTitle   Code = "import_duplicate_title"
	CodeImportInvalidMode      Code = "import_invalid_mode"
	CodeImportTargetMissing    Code = "import_target_missing"
	CodeImportTargetNotFound   Code = "import_target_not_found"
)

// Success codes reported by tree operations.
const (
	CodeNodeAdded      Code = "node_added"
	CodeNodeDeleted    Code = "node_deleted"
	CodeTitleUpdated   Code = "title_updated"
	CodeImportReplaced Code = "import_replaced"
	CodeImportAppended Code = "import_appended"
	CodeTreeReset      Code = "tree_reset"
)

// Generic codes used outside the tree engine.
const (
	CodeNotFound   Code = "not_found"
	CodeValidation Code = "validation"
	CodeConflict   Code = "conflict"
	CodeInternal   Code = "internal"
)

var messages = map[Code]string{
	CodeNodeAdded:              "Node added.",
	CodeNodeDeleted:            "Node deleted.",
	CodeTitleUpdated:           "Title updated.",
	CodeImportReplaced:         "Tree replaced from import.",
	CodeImportAppended:         "Imported nodes appended.",
	CodeTreeReset:              "Tree reset.",
	CodeParentNotFound:         "Unable to find the parent node.",
	CodeMissingFields:          "Please provide all required fields.",
	CodeCannotDeleteRoot:       "Cannot delete the root node.",
	CodeNodeNotFound:           "The requested node could not be found.",
	CodeHasChildren:            "Remove child nodes before deleting this node.",
	CodeTitleExists:            "A node with that title already exists. Choose a different title.",
	CodeImportInvalidJSON:      "The import payload is not valid JSON.",
	CodeImportInvalidStructure: "The import payload does not match the node structure.",
	CodeImportDuplicateTitle:   "The import payload contains a duplicate title.",
	CodeImportInvalidMode:      "Import mode must be replace or append.",
	CodeImportTargetMissing:    "Choose a node to append the import to.",
	CodeImportTargetNotFound:   "The node to append the import to could not be found.",
	CodeNotFound:               "not found",
	CodeValidation:             "validation error",
	CodeConflict:               "conflict",
	CodeInternal:               "internal error",
}

// Message returns the human readable notice for a code, or "" if it has none.
func (c Code) Message() string {
	return messages[c]
}

// IsSuccess reports whether the code describes a completed operation.
func (c Code) IsSuccess() bool {
	switch c {
	case CodeNodeAdded, CodeNodeDeleted, CodeTitleUpdated,
		CodeImportReplaced, CodeImportAppended, CodeTreeReset:
		return true
	default:
		return false
	}
}

// HTTPStatus returns the appropriate HTTP status code for a code.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeNodeAdded:
		return http.StatusCreated
	case CodeNodeDeleted, CodeTitleUpdated, CodeImportReplaced, CodeImportAppended, CodeTreeReset:
		return http.StatusOK
	case CodeNotFound, CodeParentNotFound, CodeNodeNotFound, CodeImportTargetNotFound:
		return http.StatusNotFound
	case CodeTitleExists, CodeHasChildren, CodeCannotDeleteRoot, CodeConflict:
		return http.StatusConflict
	case CodeMissingFields, CodeValidation, CodeImportInvalidJSON, CodeImportInvalidStructure,
		CodeImportDuplicateTitle, CodeImportInvalidMode, CodeImportTargetMissing:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Error is a domain error with a code, message, and optional details.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
	cause   error  // unexported, for wrapping
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is reports whether target matches this error.
// Matches if target is an *Error with the same Code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// HTTPStatus returns the HTTP status code for this error.
func (e *Error) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// WithDetails returns a new error with additional details.
func (e *Error) WithDetails(details any) *Error {
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		cause:   e.cause,
	}
}

// WithCause wraps an underlying error.
func (e *Error) WithCause(err error) *Error {
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		cause:   err,
	}
}

// ErrValidation matches any validation error with errors.Is().
var ErrValidation = New(CodeValidation)

// New creates an error carrying the code's notice message.
func New(code Code) *Error {
	return &Error{Code: code, Message: code.Message()}
}

// ValidationWithDetails creates a validation error with details.
func ValidationWithDetails(msg string, details any) *Error {
	return &Error{Code: CodeValidation, Message: msg, Details: details}
}

// CodeOf returns the code of the first *Error in err's chain, or CodeInternal.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}
