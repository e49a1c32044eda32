// Package sse implements Server-Sent Events so editors of a bookmark tree see
// changes made elsewhere (another tab, the admin CLI, the import inbox).
package sse

import (
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of SSE Event.
type EventType string

const (
	// EventTreeUpdated is sent after an account's tree was saved.
	EventTreeUpdated EventType = "tree.updated"
	// EventTreeDeleted is sent after an account's tree record was removed.
	EventTreeDeleted EventType = "tree.deleted"
	// EventImportFailed is sent when an inbox import for the account was rejected.
	EventImportFailed EventType = "import.failed"
	// EventHeartbeat represents a connection keepalive event.
	EventHeartbeat EventType = "heartbeat"
)

// Event represents an SSE event to be sent to clients.
type Event struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
	Type      EventType `json:"type"`

	// AccountID limits delivery to clients watching that account.
	// Empty means broadcast to all.
	AccountID string `json:"-"`
}

// TreeUpdatedEventData is the data payload for tree.updated events.
type TreeUpdatedEventData struct {
	AccountID string    `json:"account_id"`
	Revision  string    `json:"revision"`
	NodeCount int       `json:"node_count"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TreeDeletedEventData is the data payload for tree.deleted events.
type TreeDeletedEventData struct {
	AccountID string    `json:"account_id"`
	DeletedAt time.Time `json:"deleted_at"`
}

// ImportFailedEventData is the data payload for import.failed events.
type ImportFailedEventData struct {
	AccountID string `json:"account_id"`
	File      string `json:"file"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

// HeartbeatEventData is the data payload for heartbeat events.
type HeartbeatEventData struct {
	ServerTime time.Time `json:"server_time"`
}

func newEvent(t EventType, accountID string, data any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      t,
		Data:      data,
		Timestamp: time.Now(),
		AccountID: accountID,
	}
}

// NewTreeUpdatedEvent creates a tree.updated event.
func NewTreeUpdatedEvent(accountID, revision string, nodeCount int, updatedAt time.Time) Event {
	return newEvent(EventTreeUpdated, accountID, TreeUpdatedEventData{
		AccountID: accountID,
		Revision:  revision,
		NodeCount: nodeCount,
		UpdatedAt: updatedAt,
	})
}

// NewTreeDeletedEvent creates a tree.deleted event.
func NewTreeDeletedEvent(accountID string, deletedAt time.Time) Event {
	return newEvent(EventTreeDeleted, accountID, TreeDeletedEventData{
		AccountID: accountID,
		DeletedAt: deletedAt,
	})
}

// NewImportFailedEvent creates an import.failed event.
func NewImportFailedEvent(accountID, file, code, message string) Event {
	return newEvent(EventImportFailed, accountID, ImportFailedEventData{
		AccountID: accountID,
		File:      file,
		Code:      code,
		Message:   message,
	})
}

// NewHeartbeatEvent creates a heartbeat event.
func NewHeartbeatEvent() Event {
	return newEvent(EventHeartbeat, "", HeartbeatEventData{ServerTime: time.Now()})
}
