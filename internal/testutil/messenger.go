package testutil

import (
	"context"
	"sync"

	"github.com/tphakala/cropguard/internal/messaging"
)

// SentRequest is a confirmation request captured by FakeMessenger.
type SentRequest struct {
	To      messaging.RecipientID
	Handle  messaging.Handle
	Request messaging.Request
}

// Notice is a plain text message captured by FakeMessenger.
type Notice struct {
	To   messaging.RecipientID
	Text string
}

// Document is an uploaded file captured by FakeMessenger.
type Document struct {
	To      messaging.RecipientID
	Path    string
	Caption string
}

// Ack is an acknowledged reply captured by FakeMessenger.
type Ack struct {
	Reply messaging.Reply
	Text  string
	Alert bool
}

// FakeMessenger is an in-memory messaging.Messenger. Message IDs are
// assigned sequentially starting at 1.
type FakeMessenger struct {
	mu        sync.Mutex
	nextID    int
	requests  []SentRequest
	cleared   []messaging.Handle
	notices   []Notice
	documents []Document
	acks      []Ack
	failures  map[messaging.RecipientID]error

	updates chan messaging.Update
}

var _ messaging.Messenger = (*FakeMessenger)(nil)

// NewFakeMessenger returns an empty FakeMessenger.
func NewFakeMessenger() *FakeMessenger {
	return &FakeMessenger{
		failures: make(map[messaging.RecipientID]error),
		updates:  make(chan messaging.Update, 16),
	}
}

// FailFor makes every outbound call to the recipient return err.
func (f *FakeMessenger) FailFor(to messaging.RecipientID, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[to] = err
}

// Push queues an inbound update for Updates consumers.
func (f *FakeMessenger) Push(u messaging.Update) {
	f.updates <- u
}

func (f *FakeMessenger) SendRequest(_ context.Context, to messaging.RecipientID, req messaging.Request) (messaging.Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failures[to]; err != nil {
		return messaging.Handle{}, messaging.DeliveryError(err, to, "send_request")
	}
	f.nextID++
	h := messaging.Handle{Recipient: to, MessageID: f.nextID}
	f.requests = append(f.requests, SentRequest{To: to, Handle: h, Request: req})
	return h, nil
}

func (f *FakeMessenger) ClearRequest(_ context.Context, h messaging.Handle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failures[h.Recipient]; err != nil {
		return messaging.DeliveryError(err, h.Recipient, "clear_request")
	}
	f.cleared = append(f.cleared, h)
	return nil
}

func (f *FakeMessenger) Notify(_ context.Context, to messaging.RecipientID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failures[to]; err != nil {
		return messaging.DeliveryError(err, to, "notify")
	}
	f.notices = append(f.notices, Notice{To: to, Text: text})
	return nil
}

func (f *FakeMessenger) SendDocument(_ context.Context, to messaging.RecipientID, path, caption string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failures[to]; err != nil {
		return messaging.DeliveryError(err, to, "send_document")
	}
	f.documents = append(f.documents, Document{To: to, Path: path, Caption: caption})
	return nil
}

func (f *FakeMessenger) Acknowledge(_ context.Context, r messaging.Reply, text string, alert bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acks = append(f.acks, Ack{Reply: r, Text: text, Alert: alert})
	return nil
}

// Updates forwards pushed updates until ctx is cancelled.
func (f *FakeMessenger) Updates(ctx context.Context) <-chan messaging.Update {
	out := make(chan messaging.Update)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case u := <-f.updates:
				select {
				case out <- u:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

// Requests returns a copy of the delivered confirmation requests.
func (f *FakeMessenger) Requests() []SentRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]SentRequest(nil), f.requests...)
}

// Cleared returns a copy of the removed request handles.
func (f *FakeMessenger) Cleared() []messaging.Handle {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]messaging.Handle(nil), f.cleared...)
}

// Notices returns a copy of the plain text messages.
func (f *FakeMessenger) Notices() []Notice {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Notice(nil), f.notices...)
}

// Documents returns a copy of the uploaded documents.
func (f *FakeMessenger) Documents() []Document {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Document(nil), f.documents...)
}

// Acks returns a copy of the acknowledged replies.
func (f *FakeMessenger) Acks() []Ack {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Ack(nil), f.acks...)
}
