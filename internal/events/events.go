// Package events publishes committed audit entries to subscribers outside the
// process. Publication happens after commit and is best effort: a lost event
// never rolls back or fails the mutation that produced it.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/baiirun/taskflow/internal/model"
)

// Publisher delivers a committed audit entry.
type Publisher interface {
	Publish(ctx context.Context, e model.AuditEntry) error
	Close() error
}

// Message is the wire form of an audit entry.
type Message struct {
	ID             string             `json:"id"`
	Action         model.Action       `json:"action"`
	EntityType     model.EntityType   `json:"entityType"`
	EntityID       string             `json:"entityId"`
	ActorID        string             `json:"actorId"`
	OrganizationID string             `json:"organizationId"`
	Details        model.AuditDetails `json:"details"`
	CreatedAt      time.Time          `json:"createdAt"`
}

func NewMessage(e model.AuditEntry) Message {
	return Message{
		ID:             e.ID,
		Action:         e.Action,
		EntityType:     e.EntityType,
		EntityID:       e.EntityID,
		ActorID:        e.ActorID,
		OrganizationID: e.OrganizationID,
		Details:        e.Details,
		CreatedAt:      e.CreatedAt,
	}
}

// Encode marshals e as a Message.
func Encode(e model.AuditEntry) ([]byte, error) {
	data, err := json.Marshal(NewMessage(e))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal audit event: %w", err)
	}
	return data, nil
}

// Subject returns "<prefix>.<action>" with the action lowercased, e.g.
// "taskflow.audit.task_created".
func Subject(prefix string, action model.Action) string {
	return strings.TrimSuffix(prefix, ".") + "." + strings.ToLower(string(action))
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, model.AuditEntry) error { return nil }
func (Nop) Close() error                                    { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	mu      sync.Mutex
	entries []model.AuditEntry
	Err     error // returned from Publish when set
}

func (r *Recorder) Publish(_ context.Context, e model.AuditEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.entries = append(r.entries, e)
	return nil
}

func (r *Recorder) Close() error { return nil }

// Entries returns a copy of the recorded events in publish order.
func (r *Recorder) Entries() []model.AuditEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.AuditEntry(nil), r.entries...)
}
