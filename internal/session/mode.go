// Package session tracks which conversation mode each user is in.
//
// A [Mode] is a closed set of variants; data that only makes sense in one
// mode (the practice phrase index, the remembered question, the active
// ticket) lives on that variant. A [Store] keeps exactly one mode per user,
// and a user with no stored mode is [Idle].
package session

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnknownMode is returned when decoding a mode name that is not one of
// the known variants.
var ErrUnknownMode = errors.New("session: unknown mode")

// Mode is the current conversation mode of a user. The variants are [Idle],
// [PracticeWaitAnswer], [SupportWaitQuestion], [SupportWaitEscalation] and
// [OperatorActive].
type Mode interface {
	// Name is the stable identifier used in logs and serialised state.
	Name() string
	isMode()
}

// Idle is the resting mode. Free text is ignored.
type Idle struct{}

// PracticeWaitAnswer waits for a voice answer to phrase Index.
type PracticeWaitAnswer struct {
	Index int
}

// SupportWaitQuestion waits for a free-text question.
type SupportWaitQuestion struct{}

// SupportWaitEscalation offers to escalate Question to the operator.
type SupportWaitEscalation struct {
	Question string
}

// OperatorActive forwards follow-ups to the operator for TicketID.
type OperatorActive struct {
	TicketID int64
}

func (Idle) Name() string                  { return "idle" }
func (PracticeWaitAnswer) Name() string    { return "practice_wait_answer" }
func (SupportWaitQuestion) Name() string   { return "support_wait_question" }
func (SupportWaitEscalation) Name() string { return "support_wait_escalation" }
func (OperatorActive) Name() string        { return "operator_active" }

func (Idle) isMode()                  {}
func (PracticeWaitAnswer) isMode()    {}
func (SupportWaitQuestion) isMode()   {}
func (SupportWaitEscalation) isMode() {}
func (OperatorActive) isMode()        {}

// IsIdle reports whether m is nil or [Idle].
func IsIdle(m Mode) bool {
	if m == nil {
		return true
	}
	_, ok := m.(Idle)
	return ok
}

// record is the serialised form of a Mode.
type record struct {
	Mode     string `json:"mode"`
	Index    int    `json:"index,omitempty"`
	Question string `json:"question,omitempty"`
	TicketID int64  `json:"ticket_id,omitempty"`
}

// Marshal encodes m as JSON.
func Marshal(m Mode) ([]byte, error) {
	r := record{Mode: "idle"}
	switch v := m.(type) {
	case nil, Idle:
	case PracticeWaitAnswer:
		r = record{Mode: v.Name(), Index: v.Index}
	case SupportWaitQuestion:
		r = record{Mode: v.Name()}
	case SupportWaitEscalation:
		r = record{Mode: v.Name(), Question: v.Question}
	case OperatorActive:
		r = record{Mode: v.Name(), TicketID: v.TicketID}
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownMode, m)
	}
	return json.Marshal(r)
}

// Unmarshal decodes a mode produced by [Marshal].
func Unmarshal(data []byte) (Mode, error) {
	var r record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("session: decode mode: %w", err)
	}
	switch r.Mode {
	case Idle{}.Name():
		return Idle{}, nil
	case PracticeWaitAnswer{}.Name():
		return PracticeWaitAnswer{Index: r.Index}, nil
	case SupportWaitQuestion{}.Name():
		return SupportWaitQuestion{}, nil
	case SupportWaitEscalation{}.Name():
		return SupportWaitEscalation{Question: r.Question}, nil
	case OperatorActive{}.Name():
		return OperatorActive{TicketID: r.TicketID}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, r.Mode)
	}
}
