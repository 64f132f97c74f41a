// Package messaging defines the chat transport used to reach recipients.
// The Telegram implementation lives in the telegram subpackage; tests use
// an in-memory Messenger.
package messaging

import (
	"context"
	"fmt"
)

// RecipientID identifies a chat.
type RecipientID int64

// Handle identifies one delivered confirmation request.
// It is comparable and used as a map key by the confirmation resolver.
type Handle struct {
	Recipient RecipientID
	MessageID int
}

func (h Handle) String() string {
	return fmt.Sprintf("%d/%d", h.Recipient, h.MessageID)
}

// Action is one answer button on a confirmation request.
type Action struct {
	Label string
	Data  string
}

// Request is a confirmation request: an image, a caption and answer actions.
type Request struct {
	ImagePath string
	Caption   string
	Actions   []Action
}

// Reply is a recipient pressing an action on a request.
type Reply struct {
	Handle Handle
	Data   string
	// CallbackID is the transport's identifier used to acknowledge the press.
	CallbackID string
}

// Command is a slash command sent by a chat.
type Command struct {
	From     RecipientID
	Name     string // without the leading slash, lower case
	Args     []string
	UserName string
}

// Update is one inbound event; exactly one field is set.
type Update struct {
	Reply   *Reply
	Command *Command
}

// Messenger is the outbound and inbound chat transport.
type Messenger interface {
	// SendRequest delivers a confirmation request and returns its handle.
	SendRequest(ctx context.Context, to RecipientID, req Request) (Handle, error)
	// ClearRequest removes a delivered request so it can no longer be answered.
	ClearRequest(ctx context.Context, h Handle) error
	// Notify sends a plain text message.
	Notify(ctx context.Context, to RecipientID, text string) error
	// SendDocument uploads a file with a caption.
	SendDocument(ctx context.Context, to RecipientID, path, caption string) error
	// Acknowledge answers a reply, optionally as a modal alert.
	Acknowledge(ctx context.Context, r Reply, text string, alert bool) error
	// Updates streams inbound events until ctx is cancelled.
	Updates(ctx context.Context) <-chan Update
}
