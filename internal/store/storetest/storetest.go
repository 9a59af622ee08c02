// Package storetest is a conformance suite run against every store.Store
// backend.
package storetest

import (
	"context"
	"errors"
	"testing"

	"github.com/MrWong99/speaksmart/internal/store"
)

// Factory returns a fresh, empty store. It registers its own cleanup.
type Factory func(t *testing.T) store.Store

// Run executes the suite. Each subtest gets its own store from newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	t.Run("UpsertUserAndLog", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		if err := s.UpsertUser(ctx, 42, "alice"); err != nil {
			t.Fatalf("UpsertUser: %v", err)
		}
		if err := s.UpsertUser(ctx, 42, "alice_renamed"); err != nil {
			t.Fatalf("UpsertUser again: %v", err)
		}
		if err := s.UpsertUser(ctx, 43, ""); err != nil {
			t.Fatalf("UpsertUser without handle: %v", err)
		}
		entries := []store.Entry{
			{UserID: 42, Direction: store.DirIn, Type: store.TypeText, Text: "hello"},
			{UserID: 42, Direction: store.DirIn, Type: store.TypeVoice, FileRef: "https://cdn/x.ogg"},
			{UserID: 42, Direction: store.DirError, Type: store.TypeText, Text: "boom"},
		}
		for _, e := range entries {
			if err := s.LogMessage(ctx, e); err != nil {
				t.Fatalf("LogMessage(%v): %v", e.Direction, err)
			}
		}
	})

	t.Run("TicketLifecycle", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		if _, err := s.OpenTicketByUser(ctx, 7); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("OpenTicketByUser on empty store: err = %v, want ErrNotFound", err)
		}

		id, err := s.CreateTicket(ctx, 7, "How do I reset my password?")
		if err != nil {
			t.Fatalf("CreateTicket: %v", err)
		}
		if id <= 0 {
			t.Fatalf("CreateTicket id = %d, want > 0", id)
		}

		open, err := s.OpenTicketByUser(ctx, 7)
		if err != nil || open != id {
			t.Fatalf("OpenTicketByUser = (%d, %v), want (%d, nil)", open, err, id)
		}

		if err := s.UpdateTicketLastMessage(ctx, id, "still broken"); err != nil {
			t.Fatalf("UpdateTicketLastMessage: %v", err)
		}
		tk, err := s.Ticket(ctx, id)
		if err != nil {
			t.Fatalf("Ticket: %v", err)
		}
		if tk.UserID != 7 || tk.Status != store.StatusOpen || tk.LastUserMessage != "still broken" {
			t.Errorf("Ticket = %+v, want open ticket of user 7 with updated message", tk)
		}
		if tk.UpdatedAt.Before(tk.CreatedAt) {
			t.Errorf("UpdatedAt %v before CreatedAt %v", tk.UpdatedAt, tk.CreatedAt)
		}

		uid, err := s.TicketUserID(ctx, id)
		if err != nil || uid != 7 {
			t.Fatalf("TicketUserID = (%d, %v), want (7, nil)", uid, err)
		}

		ok, err := s.CloseTicket(ctx, id)
		if err != nil || !ok {
			t.Fatalf("CloseTicket = (%v, %v), want (true, nil)", ok, err)
		}
		if _, err := s.OpenTicketByUser(ctx, 7); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("OpenTicketByUser after close: err = %v, want ErrNotFound", err)
		}

		// Closing again still matches the row.
		ok, err = s.CloseTicket(ctx, id)
		if err != nil || !ok {
			t.Fatalf("second CloseTicket = (%v, %v), want (true, nil)", ok, err)
		}
		tk, err = s.Ticket(ctx, id)
		if err != nil {
			t.Fatalf("Ticket after close: %v", err)
		}
		if tk.Status != store.StatusClosed {
			t.Errorf("Status = %q, want closed", tk.Status)
		}

		// The owner is still resolvable for closure notices.
		if uid, err := s.TicketUserID(ctx, id); err != nil || uid != 7 {
			t.Errorf("TicketUserID after close = (%d, %v), want (7, nil)", uid, err)
		}

		next, err := s.CreateTicket(ctx, 7, "new problem")
		if err != nil {
			t.Fatalf("CreateTicket after close: %v", err)
		}
		if next == id {
			t.Errorf("new ticket reused id %d", id)
		}
	})

	t.Run("UnknownTicket", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		ok, err := s.CloseTicket(ctx, 999)
		if err != nil || ok {
			t.Fatalf("CloseTicket(999) = (%v, %v), want (false, nil)", ok, err)
		}
		if _, err := s.TicketUserID(ctx, 999); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("TicketUserID(999) err = %v, want ErrNotFound", err)
		}
		if _, err := s.Ticket(ctx, 999); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("Ticket(999) err = %v, want ErrNotFound", err)
		}
		if err := s.UpdateTicketLastMessage(ctx, 999, "x"); err != nil {
			t.Errorf("UpdateTicketLastMessage(999) = %v, want nil", err)
		}
	})

	t.Run("OpenTicketsAreScopedByUser", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		a, err := s.CreateTicket(ctx, 1, "a")
		if err != nil {
			t.Fatalf("CreateTicket: %v", err)
		}
		b, err := s.CreateTicket(ctx, 2, "b")
		if err != nil {
			t.Fatalf("CreateTicket: %v", err)
		}
		if got, _ := s.OpenTicketByUser(ctx, 1); got != a {
			t.Errorf("OpenTicketByUser(1) = %d, want %d", got, a)
		}
		if got, _ := s.OpenTicketByUser(ctx, 2); got != b {
			t.Errorf("OpenTicketByUser(2) = %d, want %d", got, b)
		}
	})

	t.Run("OperatorMapMostRecentWins", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		if _, err := s.UserIDByOperatorReply(ctx, 100, 5); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("lookup on empty map: err = %v, want ErrNotFound", err)
		}
		if err := s.SaveOperatorMap(ctx, 100, 5, 11); err != nil {
			t.Fatalf("SaveOperatorMap: %v", err)
		}
		if err := s.SaveOperatorMap(ctx, 100, 6, 12); err != nil {
			t.Fatalf("SaveOperatorMap: %v", err)
		}
		if err := s.SaveOperatorMap(ctx, 100, 5, 13); err != nil {
			t.Fatalf("SaveOperatorMap: %v", err)
		}

		tests := []struct {
			chat, msg int64
			want      int64
			wantErr   error
		}{
			{chat: 100, msg: 5, want: 13},
			{chat: 100, msg: 6, want: 12},
			{chat: 101, msg: 5, wantErr: store.ErrNotFound},
			{chat: 100, msg: 7, wantErr: store.ErrNotFound},
		}
		for _, tc := range tests {
			got, err := s.UserIDByOperatorReply(ctx, tc.chat, tc.msg)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Errorf("UserIDByOperatorReply(%d, %d) err = %v, want %v", tc.chat, tc.msg, err, tc.wantErr)
				}
				continue
			}
			if err != nil || got != tc.want {
				t.Errorf("UserIDByOperatorReply(%d, %d) = (%d, %v), want (%d, nil)", tc.chat, tc.msg, got, err, tc.want)
			}
		}
	})

	t.Run("Ping", func(t *testing.T) {
		s := newStore(t)
		if err := s.Ping(context.Background()); err != nil {
			t.Errorf("Ping: %v", err)
		}
	})
}
