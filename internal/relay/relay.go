// Package relay connects users with the single human operator.
//
// Escalating a question opens (or refreshes) a ticket and sends the
// operator a notice with a close button. The operator answers by replying to
// a notice; the relay maps the replied-to message back to the user through
// the operator-reply map and forwards the text verbatim. Tickets are closed
// with /close or the notice's button.
package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/MrWong99/speaksmart/internal/chat"
	"github.com/MrWong99/speaksmart/internal/observe"
	"github.com/MrWong99/speaksmart/internal/store"
)

var (
	// ErrDelivery is returned when the platform refused to deliver the
	// notice to the operator.
	ErrDelivery = errors.New("relay: operator delivery failed")

	// ErrNotFound is returned when closing a ticket id that does not exist.
	ErrNotFound = errors.New("relay: ticket not found")
)

// CloseActionPrefix prefixes the payload of a notice's close button.
const CloseActionPrefix = "close_ticket:"

// Config holds the collaborators of a [Relay].
type Config struct {
	// OperatorID is the platform id of the operator. Required.
	OperatorID int64

	Store     store.Store
	Transport chat.Transport

	// Metrics defaults to [observe.DefaultMetrics].
	Metrics *observe.Metrics
}

// Relay routes tickets between users and the operator. It keeps no state of
// its own and is safe for concurrent use.
type Relay struct {
	operatorID int64
	store      store.Store
	transport  chat.Transport
	metrics    *observe.Metrics
}

// New validates cfg and returns a Relay.
func New(cfg Config) (*Relay, error) {
	var errs []error
	if cfg.OperatorID == 0 {
		errs = append(errs, errors.New("relay: operator id is required"))
	}
	if cfg.Store == nil {
		errs = append(errs, errors.New("relay: store is required"))
	}
	if cfg.Transport == nil {
		errs = append(errs, errors.New("relay: transport is required"))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	m := cfg.Metrics
	if m == nil {
		m = observe.DefaultMetrics()
	}
	return &Relay{
		operatorID: cfg.OperatorID,
		store:      cfg.Store,
		transport:  cfg.Transport,
		metrics:    m,
	}, nil
}

// OperatorID returns the configured operator.
func (r *Relay) OperatorID() int64 { return r.operatorID }

// IsOperator reports whether userID is the operator.
func (r *Relay) IsOperator(userID int64) bool { return userID == r.operatorID }

// CloseButton returns the inline action that closes ticketID.
func CloseButton(ticketID int64) chat.Button {
	return chat.Button{Label: "Close ticket", Data: CloseActionPrefix + strconv.FormatInt(ticketID, 10)}
}

// Escalate hands question to the operator. The user's open ticket is reused
// when one exists, otherwise a new one is created. When the platform refuses
// to deliver the notice, an error entry is logged and the returned error
// wraps [ErrDelivery]; the ticket stays open.
func (r *Relay) Escalate(ctx context.Context, user chat.User, question string) (int64, error) {
	ticketID, err := r.store.OpenTicketByUser(ctx, user.ID)
	switch {
	case err == nil:
		if err := r.store.UpdateTicketLastMessage(ctx, ticketID, question); err != nil {
			return 0, fmt.Errorf("relay: escalate: %w", err)
		}
		r.metrics.RecordTicket(ctx, "updated")
	case errors.Is(err, store.ErrNotFound):
		ticketID, err = r.store.CreateTicket(ctx, user.ID, question)
		if err != nil {
			return 0, fmt.Errorf("relay: escalate: %w", err)
		}
		r.metrics.RecordTicket(ctx, "opened")
	default:
		return 0, fmt.Errorf("relay: escalate: %w", err)
	}

	handle := user.Username
	if handle == "" {
		handle = "-"
	}
	notice := fmt.Sprintf("New ticket #%d\nuser_id: %d\nusername: @%s\n\nQuestion:\n%s",
		ticketID, user.ID, handle, question)

	if err := r.notify(ctx, user.ID, ticketID, notice); err != nil {
		if !chat.IsDeliveryRefused(err) {
			return ticketID, err
		}
		r.metrics.RecordTicket(ctx, "notify_failed")
		r.logEntry(ctx, store.Entry{
			UserID:    user.ID,
			Direction: store.DirError,
			Type:      store.TypeText,
			Text:      fmt.Sprintf("operator_notify_failed:%d:%v", ticketID, err),
		})
		return ticketID, fmt.Errorf("%w: %w", ErrDelivery, err)
	}

	r.logEntry(ctx, store.Entry{
		UserID:    user.ID,
		Direction: store.DirOperatorOut,
		Type:      store.TypeText,
		Text:      fmt.Sprintf("ticket_notify:%d", ticketID),
	})
	slog.Info("relay: operator notified", "ticket_id", ticketID, "user_id", user.ID)
	return ticketID, nil
}

// FollowUp records text as the ticket's latest user message and forwards it
// to the operator.
func (r *Relay) FollowUp(ctx context.Context, userID, ticketID int64, text string) error {
	if err := r.store.UpdateTicketLastMessage(ctx, ticketID, text); err != nil {
		return fmt.Errorf("relay: follow up: %w", err)
	}
	notice := fmt.Sprintf("Ticket #%d: user added:\n%s", ticketID, text)
	if err := r.notify(ctx, userID, ticketID, notice); err != nil {
		if chat.IsDeliveryRefused(err) {
			return fmt.Errorf("%w: %w", ErrDelivery, err)
		}
		return err
	}
	return nil
}

// notify sends a notice carrying the close button to the operator and maps
// the sent message back to userID. A refused delivery is returned unwrapped
// so callers can record the platform's reason.
func (r *Relay) notify(ctx context.Context, userID, ticketID int64, text string) error {
	msgID, err := r.transport.Send(ctx, r.operatorID, chat.Outgoing{
		Text:    text,
		Actions: []chat.Button{CloseButton(ticketID)},
	})
	if err != nil {
		if chat.IsDeliveryRefused(err) {
			slog.Warn("relay: operator notify failed", "ticket_id", ticketID, "err", err)
			return err
		}
		return fmt.Errorf("relay: notify operator: %w", err)
	}
	if err := r.store.SaveOperatorMap(ctx, r.operatorID, msgID, userID); err != nil {
		return fmt.Errorf("relay: save operator map: %w", err)
	}
	return nil
}

// Close closes ticketID and tells its owner. Closing an already closed
// ticket succeeds again; an unknown id returns [ErrNotFound].
func (r *Relay) Close(ctx context.Context, ticketID int64) error {
	ok, err := r.store.CloseTicket(ctx, ticketID)
	if err != nil {
		return fmt.Errorf("relay: close: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: #%d", ErrNotFound, ticketID)
	}
	r.metrics.RecordTicket(ctx, "closed")

	userID, err := r.store.TicketUserID(ctx, ticketID)
	if err != nil {
		slog.Warn("relay: ticket owner lookup failed", "ticket_id", ticketID, "err", err)
		return nil
	}
	msg := chat.Outgoing{Text: fmt.Sprintf("Ticket #%d was closed by the operator. If you need help, use /support.", ticketID)}
	if _, err := r.transport.Send(ctx, userID, msg); err != nil {
		slog.Warn("relay: closure notice failed", "ticket_id", ticketID, "user_id", userID, "err", err)
		return nil
	}
	r.logEntry(ctx, store.Entry{
		UserID:    userID,
		Direction: store.DirOut,
		Type:      store.TypeText,
		Text:      fmt.Sprintf("ticket_closed:%d", ticketID),
	})
	return nil
}

// CloseCommand handles "/close <ticket_id>" from the operator. args are the
// tokens after the command; a leading '#' on the id is accepted. Messages
// from anyone else are ignored.
func (r *Relay) CloseCommand(ctx context.Context, from chat.User, args []string) error {
	if !r.IsOperator(from.ID) {
		return nil
	}
	ticketID, ok := parseTicketID(strings.Join(args, " "))
	if !ok {
		return r.reply(ctx, "Usage: /close <ticket_id>")
	}
	if err := r.Close(ctx, ticketID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return r.reply(ctx, fmt.Sprintf("Ticket #%d not found.", ticketID))
		}
		return err
	}
	return r.reply(ctx, fmt.Sprintf("OK. Ticket #%d closed.", ticketID))
}

// CloseAction handles a press on a notice's close button. messageID is the
// notice whose buttons are cleared after a successful close.
func (r *Relay) CloseAction(ctx context.Context, from chat.User, actionID, data string, messageID int64) error {
	if !r.IsOperator(from.ID) {
		return r.transport.AnswerAction(ctx, actionID, "Insufficient rights.", true)
	}
	ticketID, ok := parseCloseAction(data)
	if !ok {
		return r.transport.AnswerAction(ctx, actionID, "", false)
	}
	if err := r.Close(ctx, ticketID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return r.transport.AnswerAction(ctx, actionID, "Ticket not found.", true)
		}
		return err
	}
	if err := r.transport.AnswerAction(ctx, actionID, fmt.Sprintf("Ticket #%d closed.", ticketID), false); err != nil {
		return fmt.Errorf("relay: answer action: %w", err)
	}
	if messageID != 0 {
		if err := r.transport.ClearControls(ctx, r.operatorID, messageID); err != nil {
			slog.Warn("relay: clear notice controls failed", "ticket_id", ticketID, "message_id", messageID, "err", err)
		}
	}
	return nil
}

// RouteReply forwards an operator message that replies to a notice to the
// mapped user. replyTo is 0 when the message is not a reply. Messages from
// anyone else are ignored.
func (r *Relay) RouteReply(ctx context.Context, from chat.User, replyTo int64, text string) error {
	if !r.IsOperator(from.ID) {
		return nil
	}
	if replyTo == 0 {
		return r.reply(ctx, "Reply to the user's message (the one the bot sent you) so I know who to forward your answer to.\n\n"+
			"Or use /close 123 (where 123 is the ticket number).")
	}
	userID, err := r.store.UserIDByOperatorReply(ctx, r.operatorID, replyTo)
	if errors.Is(err, store.ErrNotFound) {
		return r.reply(ctx, "Couldn't match the reply to a user. Reply to the bot's latest message for this ticket.")
	}
	if err != nil {
		return fmt.Errorf("relay: route reply: %w", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return r.reply(ctx, "Only text replies from the operator are supported for now.")
	}
	if _, err := r.transport.Send(ctx, userID, chat.Outgoing{Text: text}); err != nil {
		return fmt.Errorf("relay: forward reply to %d: %w", userID, err)
	}
	r.logEntry(ctx, store.Entry{
		UserID:    userID,
		Direction: store.DirOperatorIn,
		Type:      store.TypeText,
		Text:      text,
	})
	return nil
}

// reply sends text to the operator.
func (r *Relay) reply(ctx context.Context, text string) error {
	if _, err := r.transport.Send(ctx, r.operatorID, chat.Outgoing{Text: text}); err != nil {
		return fmt.Errorf("relay: reply to operator: %w", err)
	}
	return nil
}

func (r *Relay) logEntry(ctx context.Context, e store.Entry) {
	if err := r.store.LogMessage(ctx, e); err != nil {
		slog.Warn("relay: message log failed", "user_id", e.UserID, "direction", string(e.Direction), "err", err)
	}
}

func parseTicketID(s string) (int64, bool) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

func parseCloseAction(data string) (int64, bool) {
	rest, ok := strings.CutPrefix(data, CloseActionPrefix)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
