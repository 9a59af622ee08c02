package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MrWong99/speaksmart/internal/chat"
	"github.com/MrWong99/speaksmart/internal/observe"
	"github.com/MrWong99/speaksmart/internal/relay"
	"github.com/MrWong99/speaksmart/internal/session"
	"github.com/MrWong99/speaksmart/internal/store"
)

func (m *Machine) startSupport(ctx context.Context, userID int64) error {
	if err := m.setMode(ctx, userID, session.SupportWaitQuestion{}); err != nil {
		return err
	}
	return m.sendText(ctx, userID, msgSupportIntro, supportKeyboard)
}

func (m *Machine) onSupportQuestion(ctx context.Context, ev chat.Event) error {
	userID := ev.User.ID
	q := text(ev)
	if q == "" {
		return m.send(ctx, userID, chat.Outgoing{Text: msgSupportNeedText})
	}
	if q == BtnBack {
		if err := m.setMode(ctx, userID, session.Idle{}); err != nil {
			return err
		}
		return m.sendText(ctx, userID, msgSupportExit, chat.RemoveKeyboard)
	}

	match, err := m.faq.FindBestAnswer(ctx, q)
	if err != nil {
		observe.Logger(ctx).Error("bot: faq lookup", "user_id", userID, "err", err)
		m.metrics.RecordFAQQuery(ctx, "error")
		return m.sendText(ctx, userID, msgSupportFAQFailed, supportKeyboard)
	}

	if match.Usable() {
		m.metrics.RecordFAQQuery(ctx, "hit")
		if err := m.sendText(ctx, userID, match.Item.Answer, supportKeyboard); err != nil {
			return err
		}
		m.logEntry(ctx, store.Entry{
			UserID:    userID,
			Direction: store.DirOut,
			Type:      store.TypeText,
			Text:      fmt.Sprintf("faq_answer(score=%.2f)", match.Score),
		})
		return nil
	}

	m.metrics.RecordFAQQuery(ctx, "miss")
	if err := m.setMode(ctx, userID, session.SupportWaitEscalation{Question: q}); err != nil {
		return err
	}
	return m.sendText(ctx, userID, msgSupportNoAnswer, supportKeyboard)
}

func (m *Machine) onSupportEscalation(ctx context.Context, ev chat.Event, mode session.SupportWaitEscalation) error {
	userID := ev.User.ID
	switch text(ev) {
	case BtnBack:
		if err := m.setMode(ctx, userID, session.SupportWaitQuestion{}); err != nil {
			return err
		}
		return m.sendText(ctx, userID, msgSupportAskAgain, supportKeyboard)
	case BtnEscalate:
	default:
		return m.sendText(ctx, userID, msgSupportUseButtons, supportKeyboard)
	}

	question := strings.TrimSpace(mode.Question)
	if question == "" {
		if err := m.setMode(ctx, userID, session.SupportWaitQuestion{}); err != nil {
			return err
		}
		return m.sendText(ctx, userID, msgSupportNoQuestion, supportKeyboard)
	}

	ticketID, err := m.relay.Escalate(ctx, ev.User, question)
	switch {
	case errors.Is(err, relay.ErrDelivery):
		if err := m.setMode(ctx, userID, session.SupportWaitQuestion{}); err != nil {
			return err
		}
		return m.sendText(ctx, userID, msgSupportDelivery, supportKeyboard)
	case err != nil:
		return m.apologize(ctx, userID, fmt.Errorf("bot: escalate for %d: %w", userID, err))
	}

	if err := m.setMode(ctx, userID, session.OperatorActive{TicketID: ticketID}); err != nil {
		return err
	}
	return m.sendText(ctx, userID, fmt.Sprintf(msgEscalatedFmt, ticketID), operatorKeyboard)
}

func (m *Machine) onOperatorActive(ctx context.Context, ev chat.Event, mode session.OperatorActive) error {
	userID := ev.User.ID
	t := text(ev)
	if t == BtnBack {
		if err := m.setMode(ctx, userID, session.Idle{}); err != nil {
			return err
		}
		return m.sendText(ctx, userID, msgOperatorExit, chat.RemoveKeyboard)
	}
	if t != "" {
		if err := m.relay.FollowUp(ctx, userID, mode.TicketID, t); err != nil {
			observe.Logger(ctx).Warn("bot: follow-up not delivered", "user_id", userID, "ticket_id", mode.TicketID, "err", err)
		}
	}
	return m.sendText(ctx, userID, msgOperatorWaiting, operatorKeyboard)
}
