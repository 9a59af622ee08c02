package store

import (
	"context"
	"sync"
	"time"
)

var _ Store = (*MemStore)(nil)

type operatorKey struct {
	chatID    int64
	messageID int64
}

// MemStore is an in-memory [Store]. Nothing survives a restart.
type MemStore struct {
	mu sync.Mutex

	users    map[int64]string
	messages []Entry
	tickets  []Ticket
	opMap    map[operatorKey]int64
	now      func() time.Time
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		users: make(map[int64]string),
		opMap: make(map[operatorKey]int64),
		now:   time.Now,
	}
}

// UpsertUser implements [Store].
func (s *MemStore) UpsertUser(_ context.Context, userID int64, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[userID] = username
	return nil
}

// LogMessage implements [Store].
func (s *MemStore) LogMessage(_ context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now()
	}
	s.messages = append(s.messages, e)
	return nil
}

// CreateTicket implements [Store]. Ids start at 1.
func (s *MemStore) CreateTicket(_ context.Context, userID int64, lastMessage string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	t := Ticket{
		ID:              int64(len(s.tickets) + 1),
		UserID:          userID,
		Status:          StatusOpen,
		LastUserMessage: lastMessage,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	s.tickets = append(s.tickets, t)
	return t.ID, nil
}

// UpdateTicketLastMessage implements [Store].
func (s *MemStore) UpdateTicketLastMessage(_ context.Context, ticketID int64, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t := s.find(ticketID); t != nil {
		t.LastUserMessage = text
		t.UpdatedAt = s.now()
	}
	return nil
}

// CloseTicket implements [Store].
func (s *MemStore) CloseTicket(_ context.Context, ticketID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.find(ticketID)
	if t == nil {
		return false, nil
	}
	t.Status = StatusClosed
	t.UpdatedAt = s.now()
	return true, nil
}

// OpenTicketByUser implements [Store].
func (s *MemStore) OpenTicketByUser(_ context.Context, userID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.tickets) - 1; i >= 0; i-- {
		if t := s.tickets[i]; t.UserID == userID && t.Status == StatusOpen {
			return t.ID, nil
		}
	}
	return 0, ErrNotFound
}

// TicketUserID implements [Store].
func (s *MemStore) TicketUserID(_ context.Context, ticketID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.find(ticketID)
	if t == nil {
		return 0, ErrNotFound
	}
	return t.UserID, nil
}

// Ticket implements [Store].
func (s *MemStore) Ticket(_ context.Context, ticketID int64) (*Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.find(ticketID)
	if t == nil {
		return nil, ErrNotFound
	}
	cp := *t
	return &cp, nil
}

// SaveOperatorMap implements [Store]. A later save for the same pair
// shadows the earlier one.
func (s *MemStore) SaveOperatorMap(_ context.Context, operatorChatID, messageID, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opMap[operatorKey{operatorChatID, messageID}] = userID
	return nil
}

// UserIDByOperatorReply implements [Store].
func (s *MemStore) UserIDByOperatorReply(_ context.Context, operatorChatID, messageID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	uid, ok := s.opMap[operatorKey{operatorChatID, messageID}]
	if !ok {
		return 0, ErrNotFound
	}
	return uid, nil
}

// Ping implements [Store].
func (s *MemStore) Ping(context.Context) error { return nil }

// Close implements [Store].
func (s *MemStore) Close() error { return nil }

// Messages returns a copy of the message log in insertion order.
func (s *MemStore) Messages() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, len(s.messages))
	copy(out, s.messages)
	return out
}

// Username returns the stored handle for userID and whether the user is known.
func (s *MemStore) Username(userID int64) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	name, ok := s.users[userID]
	return name, ok
}

// find returns a pointer into s.tickets. Callers hold s.mu.
func (s *MemStore) find(id int64) *Ticket {
	if id < 1 || id > int64(len(s.tickets)) {
		return nil
	}
	return &s.tickets[id-1]
}
