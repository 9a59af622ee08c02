// Package sqlite implements store.Store on an embedded SQLite database using
// gorm and the pure-Go glebarez driver.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/MrWong99/speaksmart/internal/store"
)

// UserModel is the users table.
type UserModel struct {
	ID        int64 `gorm:"primaryKey;autoIncrement:false"`
	Username  *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (UserModel) TableName() string { return "users" }

// MessageModel is the append-only message log.
type MessageModel struct {
	ID        int64  `gorm:"primaryKey"`
	UserID    int64  `gorm:"not null;index:idx_messages_user"`
	Direction string `gorm:"size:20;not null"`
	Type      string `gorm:"size:10;not null"`
	Text      *string
	FileRef   *string
	CreatedAt time.Time `gorm:"not null;index:idx_messages_user"`
}

func (MessageModel) TableName() string { return "messages" }

// TicketModel is the tickets table.
type TicketModel struct {
	ID              int64  `gorm:"primaryKey"`
	UserID          int64  `gorm:"not null;index:idx_tickets_user_status"`
	Status          string `gorm:"size:10;not null;default:open;index:idx_tickets_user_status"`
	LastUserMessage string `gorm:"type:text;not null;default:''"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (TicketModel) TableName() string { return "tickets" }

// OperatorMapModel maps a notice in the operator's chat to a user.
type OperatorMapModel struct {
	ID                 int64 `gorm:"primaryKey"`
	OperatorChatID     int64 `gorm:"not null;index:idx_operator_map_lookup"`
	ForwardedMessageID int64 `gorm:"not null;index:idx_operator_map_lookup"`
	UserID             int64 `gorm:"not null"`
	CreatedAt          time.Time
}

func (OperatorMapModel) TableName() string { return "operator_map" }

// Store is a [store.Store] backed by SQLite.
type Store struct {
	db *gorm.DB
}

var _ store.Store = (*Store)(nil)

// New opens the SQLite database at dsn, e.g. "data/speaksmart.db" or
// "file::memory:?cache=shared".
func New(dsn string) (*Store, error) {
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("sqlite store: open %q: %w", dsn, err)
	}
	return &Store{db: db}, nil
}

// Migrate creates or updates all tables.
func (s *Store) Migrate(ctx context.Context) error {
	err := s.db.WithContext(ctx).AutoMigrate(
		&UserModel{}, &MessageModel{}, &TicketModel{}, &OperatorMapModel{},
	)
	if err != nil {
		return fmt.Errorf("sqlite store: migrate: %w", err)
	}
	return nil
}

// UpsertUser implements [store.Store].
func (s *Store) UpsertUser(ctx context.Context, userID int64, username string) error {
	now := time.Now()
	err := s.db.WithContext(ctx).Exec(
		`INSERT INTO users (id, username, created_at, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET username = excluded.username, updated_at = excluded.updated_at`,
		userID, optional(username), now, now,
	).Error
	if err != nil {
		return fmt.Errorf("sqlite store: upsert user: %w", err)
	}
	return nil
}

// LogMessage implements [store.Store].
func (s *Store) LogMessage(ctx context.Context, e store.Entry) error {
	m := MessageModel{
		UserID:    e.UserID,
		Direction: string(e.Direction),
		Type:      string(e.Type),
		Text:      optional(e.Text),
		FileRef:   optional(e.FileRef),
		CreatedAt: e.CreatedAt,
	}
	if err := s.db.WithContext(ctx).Create(&m).Error; err != nil {
		return fmt.Errorf("sqlite store: log message: %w", err)
	}
	return nil
}

// CreateTicket implements [store.Store].
func (s *Store) CreateTicket(ctx context.Context, userID int64, lastMessage string) (int64, error) {
	t := TicketModel{
		UserID:          userID,
		Status:          string(store.StatusOpen),
		LastUserMessage: lastMessage,
	}
	if err := s.db.WithContext(ctx).Create(&t).Error; err != nil {
		return 0, fmt.Errorf("sqlite store: create ticket: %w", err)
	}
	return t.ID, nil
}

// UpdateTicketLastMessage implements [store.Store].
func (s *Store) UpdateTicketLastMessage(ctx context.Context, ticketID int64, text string) error {
	err := s.db.WithContext(ctx).Model(&TicketModel{}).
		Where("id = ?", ticketID).
		Updates(map[string]any{"last_user_message": text, "updated_at": time.Now()}).Error
	if err != nil {
		return fmt.Errorf("sqlite store: update ticket %d: %w", ticketID, err)
	}
	return nil
}

// CloseTicket implements [store.Store].
func (s *Store) CloseTicket(ctx context.Context, ticketID int64) (bool, error) {
	res := s.db.WithContext(ctx).Model(&TicketModel{}).
		Where("id = ?", ticketID).
		Updates(map[string]any{"status": string(store.StatusClosed), "updated_at": time.Now()})
	if res.Error != nil {
		return false, fmt.Errorf("sqlite store: close ticket %d: %w", ticketID, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// OpenTicketByUser implements [store.Store].
func (s *Store) OpenTicketByUser(ctx context.Context, userID int64) (int64, error) {
	var t TicketModel
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, string(store.StatusOpen)).
		Order("id DESC").
		Take(&t).Error
	if err != nil {
		return 0, notFound("open ticket", err)
	}
	return t.ID, nil
}

// TicketUserID implements [store.Store].
func (s *Store) TicketUserID(ctx context.Context, ticketID int64) (int64, error) {
	t, err := s.Ticket(ctx, ticketID)
	if err != nil {
		return 0, err
	}
	return t.UserID, nil
}

// Ticket implements [store.Store].
func (s *Store) Ticket(ctx context.Context, ticketID int64) (*store.Ticket, error) {
	var t TicketModel
	if err := s.db.WithContext(ctx).Where("id = ?", ticketID).Take(&t).Error; err != nil {
		return nil, notFound(fmt.Sprintf("ticket %d", ticketID), err)
	}
	return &store.Ticket{
		ID:              t.ID,
		UserID:          t.UserID,
		Status:          store.TicketStatus(t.Status),
		LastUserMessage: t.LastUserMessage,
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
	}, nil
}

// SaveOperatorMap implements [store.Store].
func (s *Store) SaveOperatorMap(ctx context.Context, operatorChatID, messageID, userID int64) error {
	m := OperatorMapModel{
		OperatorChatID:     operatorChatID,
		ForwardedMessageID: messageID,
		UserID:             userID,
	}
	if err := s.db.WithContext(ctx).Create(&m).Error; err != nil {
		return fmt.Errorf("sqlite store: save operator map: %w", err)
	}
	return nil
}

// UserIDByOperatorReply implements [store.Store].
func (s *Store) UserIDByOperatorReply(ctx context.Context, operatorChatID, messageID int64) (int64, error) {
	var m OperatorMapModel
	err := s.db.WithContext(ctx).
		Where("operator_chat_id = ? AND forwarded_message_id = ?", operatorChatID, messageID).
		Order("id DESC").
		Take(&m).Error
	if err != nil {
		return 0, notFound("operator map", err)
	}
	return m.UserID, nil
}

// Ping implements [store.Store].
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("sqlite store: ping: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("sqlite store: ping: %w", err)
	}
	return nil
}

// Close implements [store.Store].
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("sqlite store: close: %w", err)
	}
	return sqlDB.Close()
}

func notFound(what string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return store.ErrNotFound
	}
	return fmt.Errorf("sqlite store: %s: %w", what, err)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
