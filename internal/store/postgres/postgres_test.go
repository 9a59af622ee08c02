package postgres

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/MrWong99/speaksmart/internal/store"
)

// mockRow implements pgx.Row for testing.
type mockRow struct {
	scanFunc func(dest ...any) error
}

func (r *mockRow) Scan(dest ...any) error { return r.scanFunc(dest...) }

type execCall struct {
	sql  string
	args []any
}

// mockDB implements DB for testing.
type mockDB struct {
	queryRowFunc func(ctx context.Context, sql string, args ...any) pgx.Row
	execFunc     func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	pingErr      error

	execs []execCall
}

func (m *mockDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if m.queryRowFunc != nil {
		return m.queryRowFunc(ctx, sql, args...)
	}
	return &mockRow{scanFunc: func(dest ...any) error { return pgx.ErrNoRows }}
}

func (m *mockDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	m.execs = append(m.execs, execCall{sql: sql, args: args})
	if m.execFunc != nil {
		return m.execFunc(ctx, sql, args...)
	}
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (m *mockDB) Ping(context.Context) error { return m.pingErr }

func TestMigrate(t *testing.T) {
	t.Parallel()

	t.Run("executes schema", func(t *testing.T) {
		t.Parallel()
		db := &mockDB{}
		if err := NewWithDB(db).Migrate(context.Background()); err != nil {
			t.Fatalf("Migrate: %v", err)
		}
		if len(db.execs) != 1 || db.execs[0].sql != Schema {
			t.Fatalf("Migrate executed %d statements, want the schema once", len(db.execs))
		}
		for _, table := range []string{"users", "messages", "tickets", "operator_map"} {
			if !strings.Contains(Schema, "CREATE TABLE IF NOT EXISTS "+table) {
				t.Errorf("Schema missing table %q", table)
			}
		}
	})

	t.Run("wraps exec error", func(t *testing.T) {
		t.Parallel()
		db := &mockDB{execFunc: func(context.Context, string, ...any) (pgconn.CommandTag, error) {
			return pgconn.CommandTag{}, errors.New("permission denied")
		}}
		err := NewWithDB(db).Migrate(context.Background())
		if err == nil || !strings.Contains(err.Error(), "permission denied") {
			t.Fatalf("Migrate err = %v, want wrapped permission denied", err)
		}
	})
}

func TestCloseTicket_RowsAffected(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		tag  string
		want bool
	}{
		{name: "existing", tag: "UPDATE 1", want: true},
		{name: "unknown", tag: "UPDATE 0", want: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			db := &mockDB{execFunc: func(context.Context, string, ...any) (pgconn.CommandTag, error) {
				return pgconn.NewCommandTag(tc.tag), nil
			}}
			got, err := NewWithDB(db).CloseTicket(context.Background(), 3)
			if err != nil {
				t.Fatalf("CloseTicket: %v", err)
			}
			if got != tc.want {
				t.Errorf("CloseTicket = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestLookups_NoRowsIsNotFound(t *testing.T) {
	t.Parallel()

	s := NewWithDB(&mockDB{})
	ctx := context.Background()

	if _, err := s.OpenTicketByUser(ctx, 1); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("OpenTicketByUser err = %v, want ErrNotFound", err)
	}
	if _, err := s.TicketUserID(ctx, 1); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("TicketUserID err = %v, want ErrNotFound", err)
	}
	if _, err := s.UserIDByOperatorReply(ctx, 1, 2); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("UserIDByOperatorReply err = %v, want ErrNotFound", err)
	}
	if _, err := s.Ticket(ctx, 1); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Ticket err = %v, want ErrNotFound", err)
	}
}

func TestLookups_DatabaseError(t *testing.T) {
	t.Parallel()

	db := &mockDB{queryRowFunc: func(context.Context, string, ...any) pgx.Row {
		return &mockRow{scanFunc: func(...any) error { return errors.New("connection lost") }}
	}}
	_, err := NewWithDB(db).OpenTicketByUser(context.Background(), 1)
	if err == nil || errors.Is(err, store.ErrNotFound) {
		t.Fatalf("OpenTicketByUser err = %v, want non-NotFound error", err)
	}
	if !strings.Contains(err.Error(), "connection lost") {
		t.Errorf("err = %v, want cause attached", err)
	}
}

func TestTicket_Scan(t *testing.T) {
	t.Parallel()

	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	db := &mockDB{queryRowFunc: func(_ context.Context, _ string, args ...any) pgx.Row {
		return &mockRow{scanFunc: func(dest ...any) error {
			*(dest[0].(*int64)) = args[0].(int64)
			*(dest[1].(*int64)) = 77
			*(dest[2].(*string)) = "closed"
			*(dest[3].(*string)) = "help"
			*(dest[4].(*time.Time)) = fixed
			*(dest[5].(*time.Time)) = fixed
			return nil
		}}
	}}
	tk, err := NewWithDB(db).Ticket(context.Background(), 9)
	if err != nil {
		t.Fatalf("Ticket: %v", err)
	}
	want := store.Ticket{ID: 9, UserID: 77, Status: store.StatusClosed, LastUserMessage: "help", CreatedAt: fixed, UpdatedAt: fixed}
	if *tk != want {
		t.Errorf("Ticket = %+v, want %+v", *tk, want)
	}
}

func TestUpsertUser_EmptyUsernameIsNull(t *testing.T) {
	t.Parallel()

	db := &mockDB{}
	if err := NewWithDB(db).UpsertUser(context.Background(), 5, ""); err != nil {
		t.Fatalf("UpsertUser: %v", err)
	}
	if got := db.execs[0].args[1]; got != nil {
		t.Errorf("username arg = %#v, want nil", got)
	}
}

func TestLogMessage_Args(t *testing.T) {
	t.Parallel()

	db := &mockDB{}
	e := store.Entry{UserID: 5, Direction: store.DirInTranscript, Type: store.TypeText, Text: "practice:p1:hello"}
	if err := NewWithDB(db).LogMessage(context.Background(), e); err != nil {
		t.Fatalf("LogMessage: %v", err)
	}
	args := db.execs[0].args
	if args[1] != "in_transcript" || args[2] != "text" || args[3] != "practice:p1:hello" {
		t.Errorf("args = %#v", args)
	}
	if args[4] != nil || args[5] != nil {
		t.Errorf("file_ref/created_at = %#v/%#v, want nil/nil", args[4], args[5])
	}
}

func TestPing(t *testing.T) {
	t.Parallel()

	if err := NewWithDB(&mockDB{}).Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
	down := errors.New("down")
	if err := NewWithDB(&mockDB{pingErr: down}).Ping(context.Background()); !errors.Is(err, down) {
		t.Errorf("Ping err = %v, want %v", err, down)
	}
}
