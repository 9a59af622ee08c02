// Package bot is the conversation state machine.
//
// A [Machine] receives platform-neutral [chat.Event] values, looks up the
// sender's [session.Mode] and decides what to say and which mode comes next.
// Dispatch order for one event is fixed:
//
//  1. Action button presses go to the ticket relay.
//  2. Every other event is recorded in the message log.
//  3. Known commands run regardless of the current mode.
//  4. Outside Idle the mode's handler takes the event.
//  5. In Idle, messages from the operator are routed as ticket replies;
//     anything else is ignored.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/MrWong99/speaksmart/internal/chat"
	"github.com/MrWong99/speaksmart/internal/faq"
	"github.com/MrWong99/speaksmart/internal/observe"
	"github.com/MrWong99/speaksmart/internal/relay"
	"github.com/MrWong99/speaksmart/internal/session"
	"github.com/MrWong99/speaksmart/internal/store"
)

// Transcriber runs a practice answer through the voice pipeline and writes
// its audit entry. *voice.Pipeline implements it.
type Transcriber interface {
	Run(ctx context.Context, userID int64, phraseID string, att chat.Attachment) (string, error)
}

// Answerer looks up FAQ answers. *faq.Matcher implements it.
type Answerer interface {
	FindBestAnswer(ctx context.Context, query string) (*faq.Match, error)
}

// Config holds the collaborators of a [Machine].
type Config struct {
	Store     store.Store
	Sessions  session.Store
	Transport chat.Transport
	Relay     *relay.Relay
	Voice     Transcriber
	FAQ       Answerer

	// PracticePath is the phrase list, reloaded on every use.
	PracticePath string

	// Metrics defaults to [observe.DefaultMetrics].
	Metrics *observe.Metrics
}

// Machine dispatches events. Events of one user are handled one at a time;
// different users proceed in parallel.
type Machine struct {
	store        store.Store
	sessions     session.Store
	transport    chat.Transport
	relay        *relay.Relay
	voice        Transcriber
	faq          Answerer
	practicePath string
	metrics      *observe.Metrics

	locks userLocks
}

// New validates cfg and returns a Machine.
func New(cfg Config) (*Machine, error) {
	var errs []error
	if cfg.Store == nil {
		errs = append(errs, errors.New("bot: store is required"))
	}
	if cfg.Sessions == nil {
		errs = append(errs, errors.New("bot: session store is required"))
	}
	if cfg.Transport == nil {
		errs = append(errs, errors.New("bot: transport is required"))
	}
	if cfg.Relay == nil {
		errs = append(errs, errors.New("bot: relay is required"))
	}
	if cfg.Voice == nil {
		errs = append(errs, errors.New("bot: voice pipeline is required"))
	}
	if cfg.FAQ == nil {
		errs = append(errs, errors.New("bot: faq matcher is required"))
	}
	if cfg.PracticePath == "" {
		errs = append(errs, errors.New("bot: practice path is required"))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	m := cfg.Metrics
	if m == nil {
		m = observe.DefaultMetrics()
	}
	return &Machine{
		store:        cfg.Store,
		sessions:     cfg.Sessions,
		transport:    cfg.Transport,
		relay:        cfg.Relay,
		voice:        cfg.Voice,
		faq:          cfg.FAQ,
		practicePath: cfg.PracticePath,
		metrics:      m,
	}, nil
}

// Handle processes one event. The returned error is for the caller's log;
// the user has already been told whatever could be told.
func (m *Machine) Handle(ctx context.Context, ev chat.Event) error {
	ctx, span := observe.StartSpan(ctx, "bot.handle")
	defer span.End()

	m.metrics.RecordEvent(ctx, ev.Kind.String())

	unlock := m.locks.lock(ev.User.ID)
	defer unlock()

	if ev.Kind == chat.KindAction {
		return m.handleAction(ctx, ev)
	}

	m.record(ctx, ev)

	if ev.Kind == chat.KindCommand {
		if handled, err := m.handleCommand(ctx, ev); handled {
			return err
		}
	}

	mode, err := m.sessions.Get(ctx, ev.User.ID)
	if err != nil {
		return fmt.Errorf("bot: load mode for %d: %w", ev.User.ID, err)
	}

	switch md := mode.(type) {
	case session.PracticeWaitAnswer:
		return m.onPracticeAnswer(ctx, ev, md)
	case session.SupportWaitQuestion:
		return m.onSupportQuestion(ctx, ev)
	case session.SupportWaitEscalation:
		return m.onSupportEscalation(ctx, ev, md)
	case session.OperatorActive:
		return m.onOperatorActive(ctx, ev, md)
	}

	if m.relay.IsOperator(ev.User.ID) {
		return m.relay.RouteReply(ctx, ev.User, ev.ReplyTo, ev.Text)
	}
	observe.Logger(ctx).Debug("bot: ignoring idle message", "user_id", ev.User.ID)
	return nil
}

// handleCommand runs a known command. handled is false for commands the bot
// does not know, which then fall through to the mode handlers as text.
func (m *Machine) handleCommand(ctx context.Context, ev chat.Event) (handled bool, err error) {
	switch ev.Command {
	case "start":
		if err := m.setMode(ctx, ev.User.ID, session.Idle{}); err != nil {
			return true, err
		}
		return true, m.send(ctx, ev.User.ID, chat.Outgoing{Text: msgStart})
	case "help":
		return true, m.send(ctx, ev.User.ID, chat.Outgoing{Text: msgHelp})
	case "cancel":
		return true, m.cancel(ctx, ev.User.ID)
	case "practice":
		return true, m.startPractice(ctx, ev.User.ID)
	case "support":
		return true, m.startSupport(ctx, ev.User.ID)
	case "close":
		return true, m.relay.CloseCommand(ctx, ev.User, ev.Args)
	}
	return false, nil
}

func (m *Machine) cancel(ctx context.Context, userID int64) error {
	mode, err := m.sessions.Get(ctx, userID)
	if err != nil {
		return fmt.Errorf("bot: load mode for %d: %w", userID, err)
	}
	if session.IsIdle(mode) {
		return m.send(ctx, userID, chat.Outgoing{Text: msgCancelIdle})
	}
	if err := m.setMode(ctx, userID, session.Idle{}); err != nil {
		return err
	}
	return m.send(ctx, userID, chat.Outgoing{Text: msgCancelActive, Keyboard: chat.RemoveKeyboard})
}

func (m *Machine) handleAction(ctx context.Context, ev chat.Event) error {
	if strings.HasPrefix(ev.ActionData, relay.CloseActionPrefix) {
		return m.relay.CloseAction(ctx, ev.User, ev.ActionID, ev.ActionData, ev.ActionMessageID)
	}
	slog.Debug("bot: unknown action", "user_id", ev.User.ID, "data", ev.ActionData)
	return m.transport.AnswerAction(ctx, ev.ActionID, "", false)
}

// record upserts the sender and appends the inbound message to the log.
// Failures are logged and never stop the dispatch.
func (m *Machine) record(ctx context.Context, ev chat.Event) {
	if err := m.store.UpsertUser(ctx, ev.User.ID, ev.User.Username); err != nil {
		slog.Warn("bot: upsert user failed", "user_id", ev.User.ID, "err", err)
	}
	e := store.Entry{
		UserID:    ev.User.ID,
		Direction: store.DirIn,
		Type:      store.TypeText,
		Text:      ev.Text,
	}
	if ev.Voice != nil {
		e.Type = store.TypeVoice
		e.FileRef = ev.Voice.Ref
	}
	m.logEntry(ctx, e)
}

func (m *Machine) logEntry(ctx context.Context, e store.Entry) {
	if err := m.store.LogMessage(ctx, e); err != nil {
		slog.Warn("bot: message log failed", "user_id", e.UserID, "direction", string(e.Direction), "err", err)
	}
}

func (m *Machine) setMode(ctx context.Context, userID int64, mode session.Mode) error {
	if err := m.sessions.Set(ctx, userID, mode); err != nil {
		return fmt.Errorf("bot: set mode %s for %d: %w", mode.Name(), userID, err)
	}
	return nil
}

func (m *Machine) send(ctx context.Context, userID int64, msg chat.Outgoing) error {
	if _, err := m.transport.Send(ctx, userID, msg); err != nil {
		return fmt.Errorf("bot: send to %d: %w", userID, err)
	}
	return nil
}

// sendText sends text with an optional keyboard replacement.
func (m *Machine) sendText(ctx context.Context, userID int64, text string, kb chat.Keyboard) error {
	return m.send(ctx, userID, chat.Outgoing{Text: text, Keyboard: kb})
}

// apologize tells the user something broke and returns err for the caller.
func (m *Machine) apologize(ctx context.Context, userID int64, err error) error {
	if serr := m.send(ctx, userID, chat.Outgoing{Text: msgInternalError}); serr != nil {
		return errors.Join(err, serr)
	}
	return err
}

// text returns the trimmed message text, empty for voice-only messages.
func text(ev chat.Event) string {
	return strings.TrimSpace(ev.Text)
}
