package domain

import (
	"encoding/json"
	"sync/atomic"
	"time"
)

const (
	TaskCreated    = "task-created"
	TaskMoved      = "task-moved"
	TaskUpdated    = "task-updated"
	TaskDeleted    = "task-deleted"
	CommentAdded   = "comment-added"
	CommentEdited  = "comment-edited"
	CommentDeleted = "comment-deleted"
)

// Event notifies downstream consumers of a board change after it has been
// durably applied.
type Event struct {
	ID        string          `json:"id"`
	ProjectID string          `json:"projectId"`
	EntityID  string          `json:"entityId"`
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Time      int64           `json:"time"`
	UserID    string          `json:"userId"`
}

// TaskMovedEventData describes where a task landed.
type TaskMovedEventData struct {
	FromColumnID string  `json:"fromColumnId"`
	ColumnID     string  `json:"columnId"`
	Order        float64 `json:"order"`
}

var lastEventTime int64

// NextEventTime returns a strictly increasing nanosecond timestamp so events
// emitted within the same wall-clock tick still order deterministically.
func NextEventTime() int64 {
	for {
		now := time.Now().UnixNano()
		last := atomic.LoadInt64(&lastEventTime)
		if now <= last {
			now = last + 1
		}
		if atomic.CompareAndSwapInt64(&lastEventTime, last, now) {
			return now
		}
	}
}
