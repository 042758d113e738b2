// Package notifier defines the notification dispatch contract and an AMQP
// implementation that publishes messages for an external delivery worker.
// The engine only needs the contract: a nil result with a nil error means
// delivery was not actually attempted, which triggers the auto-verify
// fallback in sign-up.
package notifier

import (
	"context"

	"github.com/revline/identity-engine/internal/model"
)

// Recipient is one addressee of a notification.
type Recipient struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// Notification is a rendered message ready for dispatch.
type Notification struct {
	Recipients []Recipient     `json:"recipients"`
	Subject    string          `json:"subject"`
	HTML       string          `json:"html,omitempty"`
	Text       string          `json:"text,omitempty"`
	ProjectID  uint64          `json:"projectId"`
	Operation  model.Operation `json:"operation"`
}

// Result reports an accepted dispatch.
type Result struct {
	MessageID string `json:"messageId"`
}

// Sender dispatches notifications. Returning (nil, nil) means the sender
// declined to attempt delivery; callers treat that differently from a
// delivery error.
type Sender interface {
	Send(ctx context.Context, n Notification) (*Result, error)
}
