// Package chat defines the message transport contract the bot talks to.
//
// The bot core never imports a platform SDK. It consumes [Event] values and
// drives a [Transport] for replies; internal/discord adapts Discord to this
// contract and internal/chat/mock provides a recording double for tests.
package chat

import (
	"context"
	"errors"
	"io"
)

var (
	// ErrForbidden reports that the platform refused delivery, typically
	// because the recipient never opened a conversation with the bot or
	// blocked it.
	ErrForbidden = errors.New("chat: delivery forbidden")

	// ErrBadRequest reports that the platform rejected the request, e.g. an
	// unknown chat or an invalid payload.
	ErrBadRequest = errors.New("chat: bad request")
)

// IsDeliveryRefused reports whether err means the platform will not deliver
// the message to that recipient.
func IsDeliveryRefused(err error) bool {
	return errors.Is(err, ErrForbidden) || errors.Is(err, ErrBadRequest)
}

// User identifies the sender of an event.
type User struct {
	ID       int64
	Username string
}

// Attachment references a media file held by the platform.
type Attachment struct {
	// Ref is the platform's file reference (a URL or file id).
	Ref string
	// Filename is the original name, used to derive the file extension.
	Filename string
	// ContentType is the MIME type, if known.
	ContentType string
}

// EventKind discriminates [Event] values.
type EventKind int

const (
	// KindMessage is a plain message: text, a keyboard label, or a voice note.
	KindMessage EventKind = iota
	// KindCommand is a slash command such as /start.
	KindCommand
	// KindAction is a press on an inline action button.
	KindAction
)

// String returns the kind's name for logs.
func (k EventKind) String() string {
	switch k {
	case KindMessage:
		return "message"
	case KindCommand:
		return "command"
	case KindAction:
		return "action"
	default:
		return "unknown"
	}
}

// Event is one inbound interaction.
type Event struct {
	Kind EventKind
	User User

	// ChatID is the conversation the event came from. Replies go to User.ID;
	// ChatID is kept for the operator reply map.
	ChatID int64

	// MessageID is the platform id of the inbound message, 0 for actions.
	MessageID int64

	// Text is the message text or keyboard label. For commands it holds
	// the full command line, e.g. "/close 5".
	Text string

	// Command is the command name without the slash, lower-cased.
	Command string
	// Args are the whitespace-separated tokens after the command.
	Args []string

	// Voice is set when the message carries a voice/audio attachment.
	Voice *Attachment

	// ReplyTo is the id of the message this one replies to, 0 if none.
	ReplyTo int64

	// ActionID identifies the button press for [Transport.AnswerAction].
	ActionID string
	// ActionData is the payload of the pressed inline button.
	ActionData string
	// ActionMessageID is the message carrying the pressed button.
	ActionMessageID int64
}

// Button is an inline action button.
type Button struct {
	Label string
	Data  string
}

// Keyboard is a reply keyboard given as rows of labels. Pressing a label
// sends it back as a [KindMessage] event with that text.
type Keyboard [][]string

// RemoveKeyboard asks the transport to hide the current reply keyboard.
var RemoveKeyboard = Keyboard{}

// Outgoing is one message to send.
type Outgoing struct {
	Text string

	// AudioPath, if set, sends the file as a voice/audio message with Text
	// as its caption.
	AudioPath string

	// Keyboard replaces the reply keyboard. nil leaves it unchanged;
	// RemoveKeyboard (empty, non-nil) removes it.
	Keyboard Keyboard

	// Actions are inline buttons attached to the message.
	Actions []Button
}

// Sender sends messages to users.
type Sender interface {
	// Send delivers msg to the user's private chat and returns the new
	// message id. Delivery refusals wrap ErrForbidden or ErrBadRequest.
	Send(ctx context.Context, userID int64, msg Outgoing) (int64, error)
}

// Fetcher downloads attachments.
type Fetcher interface {
	// Fetch opens the attachment's content. The caller must close it.
	Fetch(ctx context.Context, att Attachment) (io.ReadCloser, error)
}

// Transport is everything the bot needs from a chat platform.
type Transport interface {
	Sender
	Fetcher

	// AnswerAction acknowledges an action button press, optionally showing
	// text to the presser (as an alert when alert is true).
	AnswerAction(ctx context.Context, actionID, text string, alert bool) error

	// ClearControls removes the inline buttons from a previously sent
	// message in the user's chat.
	ClearControls(ctx context.Context, userID, messageID int64) error
}
