// Package store persists users, the message log, tickets and the
// operator-reply map.
//
// Each operation is a single statement with no surrounding transaction. The
// at-most-one-open-ticket-per-user rule is enforced by callers looking up the
// open ticket before creating one; two concurrent escalations for the same
// user may therefore both create a ticket.
//
// Backends live in sub-packages: postgres (pgx), sqlite (gorm) and the
// in-memory [MemStore] in this package.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by lookups that match no row.
var ErrNotFound = errors.New("store: not found")

// Direction classifies a message log entry.
type Direction string

const (
	DirIn           Direction = "in"
	DirOut          Direction = "out"
	DirInTranscript Direction = "in_transcript"
	DirOperatorIn   Direction = "operator_in"
	DirOperatorOut  Direction = "operator_out"
	DirError        Direction = "error"
)

// MessageType is the payload kind of a message log entry.
type MessageType string

const (
	TypeText  MessageType = "text"
	TypeVoice MessageType = "voice"
)

// TicketStatus is the lifecycle state of a ticket. A ticket only moves from
// open to closed.
type TicketStatus string

const (
	StatusOpen   TicketStatus = "open"
	StatusClosed TicketStatus = "closed"
)

// Entry is one append-only message log record.
type Entry struct {
	UserID    int64
	Direction Direction
	Type      MessageType
	Text      string
	FileRef   string

	// CreatedAt is set by the store when zero.
	CreatedAt time.Time
}

// Ticket is a support escalation.
type Ticket struct {
	ID              int64
	UserID          int64
	Status          TicketStatus
	LastUserMessage string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Store is the persistence contract used by the bot and the relay.
// Implementations must be safe for concurrent use.
type Store interface {
	// UpsertUser records userID, refreshing the stored username. An empty
	// username is stored as absent.
	UpsertUser(ctx context.Context, userID int64, username string) error

	// LogMessage appends e to the message log.
	LogMessage(ctx context.Context, e Entry) error

	// CreateTicket inserts a new open ticket and returns its id.
	CreateTicket(ctx context.Context, userID int64, lastMessage string) (int64, error)

	// UpdateTicketLastMessage replaces the ticket's last user message and
	// bumps its update time. Unknown ids are not an error.
	UpdateTicketLastMessage(ctx context.Context, ticketID int64, text string) error

	// CloseTicket marks the ticket closed. It reports true when a ticket with
	// that id exists, including one that was already closed, and false
	// without mutation otherwise.
	CloseTicket(ctx context.Context, ticketID int64) (bool, error)

	// OpenTicketByUser returns the id of the most recent open ticket of
	// userID, or [ErrNotFound].
	OpenTicketByUser(ctx context.Context, userID int64) (int64, error)

	// TicketUserID returns the owner of ticketID, or [ErrNotFound].
	TicketUserID(ctx context.Context, ticketID int64) (int64, error)

	// Ticket returns the full ticket row, or [ErrNotFound].
	Ticket(ctx context.Context, ticketID int64) (*Ticket, error)

	// SaveOperatorMap remembers that messageID in the operator's chat was a
	// notice about userID.
	SaveOperatorMap(ctx context.Context, operatorChatID, messageID, userID int64) error

	// UserIDByOperatorReply resolves the most recently saved mapping for the
	// pair, or [ErrNotFound].
	UserIDByOperatorReply(ctx context.Context, operatorChatID, messageID int64) (int64, error)

	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases the backend's resources.
	Close() error
}
