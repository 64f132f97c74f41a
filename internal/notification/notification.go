// Package notification delivers admin alerts through shoutrrr services such
// as ntfy, Pushover, Discord or email.
package notification

import (
	"time"

	"github.com/google/uuid"
)

// Type classifies a notification.
type Type string

const (
	TypeAlert Type = "alert" // intruder alert from the deterrent
	TypeError Type = "error" // operational failures
	TypeInfo  Type = "info"  // tests and lifecycle messages
)

// Priority represents the urgency of a notification.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Notification is one admin message.
type Notification struct {
	ID        string
	Type      Type
	Priority  Priority
	Title     string
	Message   string
	Timestamp time.Time
}

// NewNotification creates a notification with a fresh ID.
func NewNotification(notifType Type, priority Priority, title, message string) *Notification {
	return &Notification{
		ID:        uuid.NewString(),
		Type:      notifType,
		Priority:  priority,
		Title:     title,
		Message:   message,
		Timestamp: time.Now(),
	}
}
