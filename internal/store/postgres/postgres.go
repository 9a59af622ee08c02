// Package postgres implements store.Store on PostgreSQL using pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/speaksmart/internal/store"
)

// Schema is the SQL DDL for all tables. Execute it via [Store.Migrate] or
// apply it manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS users (
    id         BIGINT PRIMARY KEY,
    username   TEXT,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS messages (
    id         BIGSERIAL PRIMARY KEY,
    user_id    BIGINT NOT NULL,
    direction  TEXT NOT NULL,
    type       TEXT NOT NULL,
    text       TEXT,
    file_ref   TEXT,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_messages_user ON messages(user_id, created_at);

CREATE TABLE IF NOT EXISTS tickets (
    id                BIGSERIAL PRIMARY KEY,
    user_id           BIGINT NOT NULL,
    status            TEXT NOT NULL DEFAULT 'open',
    last_user_message TEXT NOT NULL DEFAULT '',
    created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_tickets_user_status ON tickets(user_id, status);

CREATE TABLE IF NOT EXISTS operator_map (
    id                   BIGSERIAL PRIMARY KEY,
    operator_chat_id     BIGINT NOT NULL,
    forwarded_message_id BIGINT NOT NULL,
    user_id              BIGINT NOT NULL,
    created_at           TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_operator_map_lookup ON operator_map(operator_chat_id, forwarded_message_id);
`

// DB is the database interface used by [Store]. Both *pgxpool.Pool and
// *pgx.Conn satisfy it.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Ping(ctx context.Context) error
}

// Store is a [store.Store] backed by PostgreSQL.
type Store struct {
	db   DB
	pool *pgxpool.Pool
}

var _ store.Store = (*Store)(nil)

// New opens a connection pool to dsn and verifies it with a ping. The caller
// runs [Store.Migrate] before first use and [Store.Close] when done.
func New(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres store: parse dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres store: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: ping: %w", err)
	}
	return &Store{db: pool, pool: pool}, nil
}

// NewWithDB wraps an existing connection or pool. [Store.Close] does not
// close db.
func NewWithDB(db DB) *Store {
	return &Store{db: db}
}

// Migrate executes [Schema].
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("postgres store: migrate: %w", err)
	}
	return nil
}

// UpsertUser implements [store.Store].
func (s *Store) UpsertUser(ctx context.Context, userID int64, username string) error {
	const q = `
		INSERT INTO users (id, username) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET username = EXCLUDED.username, updated_at = now()`
	if _, err := s.db.Exec(ctx, q, userID, nullable(username)); err != nil {
		return fmt.Errorf("postgres store: upsert user: %w", err)
	}
	return nil
}

// LogMessage implements [store.Store].
func (s *Store) LogMessage(ctx context.Context, e store.Entry) error {
	const q = `
		INSERT INTO messages (user_id, direction, type, text, file_ref, created_at)
		VALUES ($1, $2, $3, $4, $5, COALESCE($6, now()))`
	var createdAt any
	if !e.CreatedAt.IsZero() {
		createdAt = e.CreatedAt
	}
	_, err := s.db.Exec(ctx, q,
		e.UserID, string(e.Direction), string(e.Type),
		nullable(e.Text), nullable(e.FileRef), createdAt,
	)
	if err != nil {
		return fmt.Errorf("postgres store: log message: %w", err)
	}
	return nil
}

// CreateTicket implements [store.Store].
func (s *Store) CreateTicket(ctx context.Context, userID int64, lastMessage string) (int64, error) {
	const q = `
		INSERT INTO tickets (user_id, status, last_user_message)
		VALUES ($1, 'open', $2)
		RETURNING id`
	var id int64
	if err := s.db.QueryRow(ctx, q, userID, lastMessage).Scan(&id); err != nil {
		return 0, fmt.Errorf("postgres store: create ticket: %w", err)
	}
	return id, nil
}

// UpdateTicketLastMessage implements [store.Store].
func (s *Store) UpdateTicketLastMessage(ctx context.Context, ticketID int64, text string) error {
	const q = `UPDATE tickets SET last_user_message = $2, updated_at = now() WHERE id = $1`
	if _, err := s.db.Exec(ctx, q, ticketID, text); err != nil {
		return fmt.Errorf("postgres store: update ticket %d: %w", ticketID, err)
	}
	return nil
}

// CloseTicket implements [store.Store].
func (s *Store) CloseTicket(ctx context.Context, ticketID int64) (bool, error) {
	const q = `UPDATE tickets SET status = 'closed', updated_at = now() WHERE id = $1`
	tag, err := s.db.Exec(ctx, q, ticketID)
	if err != nil {
		return false, fmt.Errorf("postgres store: close ticket %d: %w", ticketID, err)
	}
	return tag.RowsAffected() > 0, nil
}

// OpenTicketByUser implements [store.Store].
func (s *Store) OpenTicketByUser(ctx context.Context, userID int64) (int64, error) {
	const q = `
		SELECT id FROM tickets
		WHERE user_id = $1 AND status = 'open'
		ORDER BY id DESC LIMIT 1`
	return s.scanID(ctx, "open ticket", q, userID)
}

// TicketUserID implements [store.Store].
func (s *Store) TicketUserID(ctx context.Context, ticketID int64) (int64, error) {
	return s.scanID(ctx, "ticket user", `SELECT user_id FROM tickets WHERE id = $1`, ticketID)
}

// Ticket implements [store.Store].
func (s *Store) Ticket(ctx context.Context, ticketID int64) (*store.Ticket, error) {
	const q = `
		SELECT id, user_id, status, last_user_message, created_at, updated_at
		FROM tickets WHERE id = $1`
	var (
		t      store.Ticket
		status string
	)
	err := s.db.QueryRow(ctx, q, ticketID).Scan(
		&t.ID, &t.UserID, &status, &t.LastUserMessage, &t.CreatedAt, &t.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres store: get ticket %d: %w", ticketID, err)
	}
	t.Status = store.TicketStatus(status)
	return &t, nil
}

// SaveOperatorMap implements [store.Store].
func (s *Store) SaveOperatorMap(ctx context.Context, operatorChatID, messageID, userID int64) error {
	const q = `
		INSERT INTO operator_map (operator_chat_id, forwarded_message_id, user_id)
		VALUES ($1, $2, $3)`
	if _, err := s.db.Exec(ctx, q, operatorChatID, messageID, userID); err != nil {
		return fmt.Errorf("postgres store: save operator map: %w", err)
	}
	return nil
}

// UserIDByOperatorReply implements [store.Store].
func (s *Store) UserIDByOperatorReply(ctx context.Context, operatorChatID, messageID int64) (int64, error) {
	const q = `
		SELECT user_id FROM operator_map
		WHERE operator_chat_id = $1 AND forwarded_message_id = $2
		ORDER BY id DESC LIMIT 1`
	return s.scanID(ctx, "operator map", q, operatorChatID, messageID)
}

// Ping implements [store.Store].
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.Ping(ctx); err != nil {
		return fmt.Errorf("postgres store: ping: %w", err)
	}
	return nil
}

// Close releases the pool opened by [New].
func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

func (s *Store) scanID(ctx context.Context, what, q string, args ...any) (int64, error) {
	var id int64
	err := s.db.QueryRow(ctx, q, args...).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, store.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("postgres store: %s: %w", what, err)
	}
	return id, nil
}

// nullable maps "" to SQL NULL.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
