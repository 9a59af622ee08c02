// Package mock provides a recording test double for chat.Transport.
package mock

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"

	"github.com/MrWong99/speaksmart/internal/chat"
)

// Sent records one successful Send call.
type Sent struct {
	UserID    int64
	MessageID int64
	Msg       chat.Outgoing
}

// Answer records one AnswerAction call.
type Answer struct {
	ActionID string
	Text     string
	Alert    bool
}

// Cleared records one ClearControls call.
type Cleared struct {
	UserID    int64
	MessageID int64
}

// Transport is a mock implementation of chat.Transport. Message ids are
// assigned sequentially starting at 1.
type Transport struct {
	mu sync.Mutex

	// SendErr maps a recipient to the error returned by Send for them.
	SendErr map[int64]error

	// Files maps attachment refs to their content for Fetch.
	Files map[string][]byte

	// FetchErr, if non-nil, is returned by every Fetch call.
	FetchErr error

	// ClearErr, if non-nil, is returned by every ClearControls call.
	ClearErr error

	sent    []Sent
	answers []Answer
	cleared []Cleared
	nextID  int64
}

var _ chat.Transport = (*Transport)(nil)

// Send records msg and returns the next message id.
func (t *Transport) Send(_ context.Context, userID int64, msg chat.Outgoing) (int64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.SendErr[userID]; err != nil {
		return 0, err
	}
	t.nextID++
	t.sent = append(t.sent, Sent{UserID: userID, MessageID: t.nextID, Msg: msg})
	return t.nextID, nil
}

// Fetch returns the content registered under att.Ref.
func (t *Transport) Fetch(_ context.Context, att chat.Attachment) (io.ReadCloser, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.FetchErr != nil {
		return nil, t.FetchErr
	}
	data, ok := t.Files[att.Ref]
	if !ok {
		return nil, errors.New("mock: unknown attachment " + att.Ref)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// AnswerAction records the acknowledgement.
func (t *Transport) AnswerAction(_ context.Context, actionID, text string, alert bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.answers = append(t.answers, Answer{ActionID: actionID, Text: text, Alert: alert})
	return nil
}

// ClearControls records the call and returns ClearErr.
func (t *Transport) ClearControls(_ context.Context, userID, messageID int64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cleared = append(t.cleared, Cleared{UserID: userID, MessageID: messageID})
	return t.ClearErr
}

// Sent returns all successfully sent messages in order.
func (t *Transport) Sent() []Sent {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Sent(nil), t.sent...)
}

// SentTo returns the messages sent to userID in order.
func (t *Transport) SentTo(userID int64) []chat.Outgoing {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []chat.Outgoing
	for _, s := range t.sent {
		if s.UserID == userID {
			out = append(out, s.Msg)
		}
	}
	return out
}

// Last returns the last message sent to userID and whether there was one.
func (t *Transport) Last(userID int64) (chat.Outgoing, bool) {
	msgs := t.SentTo(userID)
	if len(msgs) == 0 {
		return chat.Outgoing{}, false
	}
	return msgs[len(msgs)-1], true
}

// Answers returns all AnswerAction calls.
func (t *Transport) Answers() []Answer {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Answer(nil), t.answers...)
}

// Cleared returns all ClearControls calls.
func (t *Transport) Cleared() []Cleared {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Cleared(nil), t.cleared...)
}

// Reset forgets all recorded calls.
func (t *Transport) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sent, t.answers, t.cleared = nil, nil, nil
}
