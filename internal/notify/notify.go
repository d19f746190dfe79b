// Package notify fans case events out to user inboxes. A dispatcher
// subscribes to the event bus, resolves the recipients for each event
// type and writes one notification per recipient. Re-delivery of the
// same event to the same recipient within a minute is deduplicated.
package notify

import (
	"context"
	"time"

	"github.com/emabi2002/landcasesystem-sub000/internal/shared/types"
)

// Notification is one inbox entry for one recipient
type Notification struct {
	ID             types.ID  `json:"id"`
	RecipientID    types.ID  `json:"recipient_id"`
	CaseID         types.ID  `json:"case_id"`
	EventType      string    `json:"event_type"`
	Title          string    `json:"title"`
	Message        string    `json:"message"`
	Priority       string    `json:"priority"`
	ActionRequired bool      `json:"action_required"`
	Read           bool      `json:"read"`
	MinuteBucket   int64     `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
}

// ListFilter narrows inbox queries
type ListFilter struct {
	UnreadOnly bool
	Limit      int
	Offset     int
}

// Repository defines notification persistence
type Repository interface {
	// Save inserts a notification. It reports false without error
	// when the dedup key already exists.
	Save(ctx context.Context, n *Notification) (bool, error)

	// ListByRecipient lists a user's inbox, newest first
	ListByRecipient(ctx context.Context, recipientID types.ID, filter ListFilter) ([]Notification, error)

	// MarkRead marks one notification read. It reports whether the
	// notification existed and belonged to the recipient.
	MarkRead(ctx context.Context, id, recipientID types.ID) (bool, error)

	// UnreadCount counts unread notifications for a user
	UnreadCount(ctx context.Context, recipientID types.ID) (int, error)
}

// RecipientSource resolves role names to the active users holding them
type RecipientSource interface {
	UserIDsByRole(ctx context.Context, role string) ([]types.ID, error)
}
