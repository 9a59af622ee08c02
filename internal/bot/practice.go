package bot

import (
	"context"
	"fmt"
	"os"

	"github.com/MrWong99/speaksmart/internal/chat"
	"github.com/MrWong99/speaksmart/internal/observe"
	"github.com/MrWong99/speaksmart/internal/practice"
	"github.com/MrWong99/speaksmart/internal/session"
	"github.com/MrWong99/speaksmart/internal/store"
)

// loadPhrases reads the phrase list and tells the user when it is unusable.
// ok is false when the caller should stop.
func (m *Machine) loadPhrases(ctx context.Context, userID int64) (phrases []practice.Phrase, ok bool, err error) {
	phrases, err = practice.Load(m.practicePath)
	if err != nil {
		observe.Logger(ctx).Error("bot: load practice phrases", "path", m.practicePath, "err", err)
		return nil, false, m.send(ctx, userID, chat.Outgoing{Text: msgPracticeLoadFailed})
	}
	if len(phrases) == 0 {
		return nil, false, m.send(ctx, userID, chat.Outgoing{Text: fmt.Sprintf(msgPracticeEmptyFmt, m.practicePath)})
	}
	return phrases, true, nil
}

func (m *Machine) startPractice(ctx context.Context, userID int64) error {
	phrases, ok, err := m.loadPhrases(ctx, userID)
	if !ok {
		if serr := m.setMode(ctx, userID, session.Idle{}); serr != nil {
			return serr
		}
		return err
	}
	if err := m.setMode(ctx, userID, session.PracticeWaitAnswer{Index: 0}); err != nil {
		return err
	}
	if err := m.sendText(ctx, userID, msgPracticeIntro, practiceKeyboard); err != nil {
		return err
	}
	return m.sendPrompt(ctx, userID, phrases[0])
}

// sendPrompt sends the phrase's audio prompt, or a notice naming the missing
// file.
func (m *Machine) sendPrompt(ctx context.Context, userID int64, p practice.Phrase) error {
	if _, err := os.Stat(p.File); err != nil {
		m.logEntry(ctx, store.Entry{
			UserID:    userID,
			Direction: store.DirError,
			Type:      store.TypeText,
			Text:      "Missing prompt audio: " + p.File,
		})
		return m.send(ctx, userID, chat.Outgoing{Text: fmt.Sprintf(msgPracticeMissingFmt, p.File)})
	}
	if err := m.send(ctx, userID, chat.Outgoing{AudioPath: p.File}); err != nil {
		return err
	}
	m.logEntry(ctx, store.Entry{
		UserID:    userID,
		Direction: store.DirOut,
		Type:      store.TypeVoice,
		Text:      "practice_prompt:" + p.ID,
		FileRef:   p.File,
	})
	return nil
}

func (m *Machine) onPracticeAnswer(ctx context.Context, ev chat.Event, mode session.PracticeWaitAnswer) error {
	userID := ev.User.ID
	if text(ev) == BtnExit {
		if err := m.setMode(ctx, userID, session.Idle{}); err != nil {
			return err
		}
		return m.sendText(ctx, userID, msgPracticeExit, chat.RemoveKeyboard)
	}

	phrases, ok, err := m.loadPhrases(ctx, userID)
	if !ok {
		return err
	}
	// The list may have shrunk since the index was stored.
	idx := mode.Index % len(phrases)

	switch text(ev) {
	case BtnRepeat:
		return m.sendPrompt(ctx, userID, phrases[idx])
	case BtnNext:
		idx = (idx + 1) % len(phrases)
		if err := m.setMode(ctx, userID, session.PracticeWaitAnswer{Index: idx}); err != nil {
			return err
		}
		return m.sendPrompt(ctx, userID, phrases[idx])
	}

	if ev.Voice == nil {
		return m.send(ctx, userID, chat.Outgoing{Text: msgPracticeNeedVoice})
	}

	phrase := phrases[idx]
	transcript, err := m.voice.Run(ctx, userID, phrase.ID, *ev.Voice)
	if err != nil {
		observe.Logger(ctx).Error("bot: practice pipeline", "user_id", userID, "phrase", phrase.ID, "err", err)
		m.metrics.RecordPracticeAttempt(ctx, "failed")
		return m.send(ctx, userID, chat.Outgoing{Text: msgPracticeFailed})
	}

	score := practice.ScoreKeywords(transcript, phrase.Keywords)
	m.metrics.RecordPracticeAttempt(ctx, band(score.Value))

	reply := practice.Feedback(score)
	if near := practice.NearMisses(transcript, score.Missing); len(near) > 0 {
		reply += "\n" + practice.FormatNearMisses(near)
	}
	return m.sendText(ctx, userID, reply, practiceKeyboard)
}

// band names the feedback band of a score for metrics.
func band(v float64) string {
	switch {
	case v >= practice.CorrectScore:
		return "correct"
	case v >= practice.CloseScore:
		return "close"
	default:
		return "retry"
	}
}
