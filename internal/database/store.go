package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
)

// Store defines the interface for database operations. Methods accept
// context.Context for cancellation and timeouts.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// SaveMessage inserts a new message record.
	SaveMessage(ctx context.Context, message *Message) error

	// GetMessagesInChat retrieves all messages for a chat in chronological order.
	GetMessagesInChat(ctx context.Context, chatID int64) ([]Message, error)

	// UpsertUser inserts or updates a user's observed profile fields.
	UpsertUser(ctx context.Context, user *User) error

	// GetUser retrieves a user by ID. Returns nil, nil if not found.
	GetUser(ctx context.Context, userID int64) (*User, error)

	// GetTimeRecords retrieves all attendance records for a chat in stored order.
	GetTimeRecords(ctx context.Context, chatID int64) ([]TimeRecord, error)

	// GetTrackedChatIDs lists the chats that have at least one record.
	GetTrackedChatIDs(ctx context.Context) ([]int64, error)

	// GetTimeRecord retrieves one user's record in a chat. Returns nil, nil if not found.
	GetTimeRecord(ctx context.Context, chatID, userID int64) (*TimeRecord, error)

	// SaveTimeRecord inserts or updates a record keyed by (chat_id, user_id).
	SaveTimeRecord(ctx context.Context, record *TimeRecord) error

	// DeleteChatData removes a chat's records, messages, call sessions, and
	// sheet preference in a single transaction.
	DeleteChatData(ctx context.Context, chatID int64) error

	// StartCallSession opens a call session for a chat, closing any session
	// left open from a previous call.
	StartCallSession(ctx context.Context, chatID int64, at time.Time) error

	// EndCallSession closes the open call session for a chat, if any.
	EndCallSession(ctx context.Context, chatID int64, at time.Time) error

	// GetOpenCallSession returns the chat's open call session, or nil, nil
	// when no call is in progress.
	GetOpenCallSession(ctx context.Context, chatID int64) (*CallSession, error)

	// GetSheetURL returns the chat's last used sheet URL, or "" if none.
	GetSheetURL(ctx context.Context, chatID int64) (string, error)

	// SaveSheetURL remembers the chat's sheet URL for the next export.
	SaveSheetURL(ctx context.Context, chatID int64, sheetURL string) error

	// RunSQLMaintenance performs database maintenance tasks like VACUUM.
	RunSQLMaintenance(ctx context.Context) error
}

// sqlxStore provides an implementation of the Store interface using sqlx.
type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStore creates a new Store implementation backed by sqlx. It requires a
// connected sqlx.DB instance and a logger.
func NewStore(db *sqlx.DB, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &sqlxStore{
		db:     db,
		logger: logger.With("component", "store"),
	}
}

func (s *sqlxStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *sqlxStore) SaveMessage(ctx context.Context, message *Message) error {
	if message == nil {
		return fmt.Errorf("cannot save nil message")
	}
	if message.ChatID == 0 {
		return fmt.Errorf("message must have a non-zero chat_id")
	}
	if message.UserID == 0 {
		return fmt.Errorf("message must have a non-zero user_id")
	}
	if message.Timestamp.IsZero() {
		return fmt.Errorf("message must have a non-zero timestamp")
	}

	now := time.Now().UTC()
	message.CreatedAt = now
	message.UpdatedAt = now

	query := `
        INSERT INTO messages (chat_id, user_id, content, timestamp, created_at, updated_at)
        VALUES (:chat_id, :user_id, :content, :timestamp, :created_at, :updated_at);
    `

	result, err := s.db.NamedExecContext(ctx, query, message)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error saving message", "chat_id", message.ChatID, "user_id", message.UserID, "error", err)
		return fmt.Errorf("failed to save message (chat %d, user %d): %w", message.ChatID, message.UserID, err)
	}

	if id, err := result.LastInsertId(); err == nil {
		message.ID = uint(id)
	}

	return nil
}

func (s *sqlxStore) GetMessagesInChat(ctx context.Context, chatID int64) ([]Message, error) {
	if chatID == 0 {
		return nil, fmt.Errorf("chat_id cannot be zero")
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var messages []Message
	query := `
        SELECT id, chat_id, user_id, content, timestamp, created_at, updated_at
        FROM messages
        WHERE chat_id = ?
        ORDER BY timestamp ASC, id ASC;
    `

	err := s.db.SelectContext(ctx, &messages, query, chatID)
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return nil, err
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "Error getting chat messages", "chat_id", chatID, "error", err)
		return nil, fmt.Errorf("failed to get messages for chat %d: %w", chatID, err)
	}

	s.logger.DebugContext(ctx, "Fetched chat messages", "chat_id", chatID, "count", len(messages))
	return messages, nil
}

func (s *sqlxStore) UpsertUser(ctx context.Context, user *User) error {
	if user == nil {
		return fmt.Errorf("cannot save nil user")
	}
	if user.UserID == 0 {
		return fmt.Errorf("user must have a non-zero user_id")
	}

	now := time.Now().UTC()
	user.UpdatedAt = now
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}

	query := `
        INSERT INTO users (user_id, phone, first_name, last_name, username, created_at, updated_at)
        VALUES (:user_id, :phone, :first_name, :last_name, :username, :created_at, :updated_at)
        ON CONFLICT (user_id) DO UPDATE SET
            phone = excluded.phone,
            first_name = excluded.first_name,
            last_name = excluded.last_name,
            username = excluded.username,
            updated_at = excluded.updated_at;
    `

	if _, err := s.db.NamedExecContext(ctx, query, user); err != nil {
		s.logger.ErrorContext(ctx, "Error upserting user", "user_id", user.UserID, "error", err)
		return fmt.Errorf("failed to upsert user %d: %w", user.UserID, err)
	}

	return nil
}

func (s *sqlxStore) GetUser(ctx context.Context, userID int64) (*User, error) {
	if userID == 0 {
		return nil, fmt.Errorf("user_id cannot be zero")
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var user User
	query := `SELECT user_id, phone, first_name, last_name, username, created_at, updated_at
	          FROM users WHERE user_id = ?`

	err := s.db.GetContext(ctx, &user, query, userID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		return nil, err
	case err != nil:
		s.logger.ErrorContext(ctx, "Error getting user", "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to get user %d: %w", userID, err)
	}

	return &user, nil
}

func (s *sqlxStore) GetTimeRecords(ctx context.Context, chatID int64) ([]TimeRecord, error) {
	if chatID == 0 {
		return nil, fmt.Errorf("chat_id cannot be zero")
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var records []TimeRecord
	query := `SELECT id, chat_id, user_id, onlines, offlines, duration, created_at, updated_at
	          FROM time_records WHERE chat_id = ? ORDER BY id ASC`

	err := s.db.SelectContext(ctx, &records, query, chatID)
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return nil, err
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "Error getting time records", "chat_id", chatID, "error", err)
		return nil, fmt.Errorf("failed to get time records for chat %d: %w", chatID, err)
	}

	return records, nil
}

func (s *sqlxStore) GetTrackedChatIDs(ctx context.Context) ([]int64, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var chatIDs []int64
	err := s.db.SelectContext(ctx, &chatIDs, `SELECT DISTINCT chat_id FROM time_records ORDER BY chat_id`)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error listing tracked chats", "error", err)
		return nil, fmt.Errorf("failed to list tracked chats: %w", err)
	}

	return chatIDs, nil
}

func (s *sqlxStore) GetTimeRecord(ctx context.Context, chatID, userID int64) (*TimeRecord, error) {
	if chatID == 0 || userID == 0 {
		return nil, fmt.Errorf("chat_id and user_id cannot be zero")
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var record TimeRecord
	query := `SELECT id, chat_id, user_id, onlines, offlines, duration, created_at, updated_at
	          FROM time_records WHERE chat_id = ? AND user_id = ?`

	err := s.db.GetContext(ctx, &record, query, chatID, userID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		return nil, err
	case err != nil:
		s.logger.ErrorContext(ctx, "Error getting time record", "chat_id", chatID, "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to get time record (chat %d, user %d): %w", chatID, userID, err)
	}

	return &record, nil
}

func (s *sqlxStore) SaveTimeRecord(ctx context.Context, record *TimeRecord) error {
	if record == nil {
		return fmt.Errorf("cannot save nil time record")
	}
	if record.ChatID == 0 || record.UserID == 0 {
		return fmt.Errorf("time record must have non-zero chat_id and user_id")
	}

	now := time.Now().UTC()
	record.UpdatedAt = now
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	if record.Onlines == "" {
		record.Onlines = "[]"
	}
	if record.Offlines == "" {
		record.Offlines = "[]"
	}

	query := `
        INSERT INTO time_records (chat_id, user_id, onlines, offlines, duration, created_at, updated_at)
        VALUES (:chat_id, :user_id, :onlines, :offlines, :duration, :created_at, :updated_at)
        ON CONFLICT (chat_id, user_id) DO UPDATE SET
            onlines = excluded.onlines,
            offlines = excluded.offlines,
            duration = excluded.duration,
            updated_at = excluded.updated_at;
    `

	if _, err := s.db.NamedExecContext(ctx, query, record); err != nil {
		s.logger.ErrorContext(ctx, "Error saving time record", "chat_id", record.ChatID, "user_id", record.UserID, "error", err)
		return fmt.Errorf("failed to save time record (chat %d, user %d): %w", record.ChatID, record.UserID, err)
	}

	return nil
}

func (s *sqlxStore) DeleteChatData(ctx context.Context, chatID int64) error {
	if chatID == 0 {
		return fmt.Errorf("chat_id cannot be zero")
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for chat data delete: %w", err)
	}
	defer func() {
		if tx != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil {
				if !errors.Is(rollbackErr, sql.ErrTxDone) {
					s.logger.WarnContext(ctx, "Error rolling back transaction", "error", rollbackErr)
				}
			}
		}
	}()

	recordResult, err := tx.ExecContext(ctx, `DELETE FROM time_records WHERE chat_id = ?`, chatID)
	if err != nil {
		return fmt.Errorf("failed to delete time records for chat %d: %w", chatID, err)
	}
	recordCount, _ := recordResult.RowsAffected()

	messageResult, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE chat_id = ?`, chatID)
	if err != nil {
		return fmt.Errorf("failed to delete messages for chat %d: %w", chatID, err)
	}
	messageCount, _ := messageResult.RowsAffected()

	if _, err := tx.ExecContext(ctx, `DELETE FROM call_sessions WHERE chat_id = ?`, chatID); err != nil {
		return fmt.Errorf("failed to delete call sessions for chat %d: %w", chatID, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sheet_prefs WHERE chat_id = ?`, chatID); err != nil {
		return fmt.Errorf("failed to delete sheet preference for chat %d: %w", chatID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit chat data delete: %w", err)
	}
	tx = nil

	s.logger.InfoContext(ctx, "Deleted chat data",
		"chat_id", chatID, "records_deleted", recordCount, "messages_deleted", messageCount)
	return nil
}

func (s *sqlxStore) StartCallSession(ctx context.Context, chatID int64, at time.Time) error {
	if chatID == 0 {
		return fmt.Errorf("chat_id cannot be zero")
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for call session start: %w", err)
	}
	defer func() {
		if tx != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil {
				if !errors.Is(rollbackErr, sql.ErrTxDone) {
					s.logger.WarnContext(ctx, "Error rolling back transaction", "error", rollbackErr)
				}
			}
		}
	}()

	// A crashed or missed end event can leave a session open; close it so
	// the new call starts clean.
	if _, err := tx.ExecContext(ctx,
		`UPDATE call_sessions SET ended_at = ? WHERE chat_id = ? AND ended_at IS NULL`,
		at.UTC(), chatID); err != nil {
		return fmt.Errorf("failed to close stale call sessions for chat %d: %w", chatID, err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO call_sessions (chat_id, started_at) VALUES (?, ?)`,
		chatID, at.UTC()); err != nil {
		return fmt.Errorf("failed to start call session for chat %d: %w", chatID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit call session start: %w", err)
	}
	tx = nil

	s.logger.InfoContext(ctx, "Call session started", "chat_id", chatID)
	return nil
}

func (s *sqlxStore) EndCallSession(ctx context.Context, chatID int64, at time.Time) error {
	if chatID == 0 {
		return fmt.Errorf("chat_id cannot be zero")
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE call_sessions SET ended_at = ? WHERE chat_id = ? AND ended_at IS NULL`,
		at.UTC(), chatID)
	if err != nil {
		return fmt.Errorf("failed to end call session for chat %d: %w", chatID, err)
	}

	affected, _ := result.RowsAffected()
	s.logger.InfoContext(ctx, "Call session ended", "chat_id", chatID, "sessions_closed", affected)
	return nil
}

func (s *sqlxStore) GetOpenCallSession(ctx context.Context, chatID int64) (*CallSession, error) {
	if chatID == 0 {
		return nil, fmt.Errorf("chat_id cannot be zero")
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var session CallSession
	query := `SELECT id, chat_id, started_at, ended_at FROM call_sessions
	          WHERE chat_id = ? AND ended_at IS NULL ORDER BY id DESC LIMIT 1`

	err := s.db.GetContext(ctx, &session, query, chatID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		return nil, err
	case err != nil:
		s.logger.ErrorContext(ctx, "Error getting open call session", "chat_id", chatID, "error", err)
		return nil, fmt.Errorf("failed to get open call session for chat %d: %w", chatID, err)
	}

	return &session, nil
}

func (s *sqlxStore) GetSheetURL(ctx context.Context, chatID int64) (string, error) {
	if chatID == 0 {
		return "", fmt.Errorf("chat_id cannot be zero")
	}

	var pref SheetPref
	err := s.db.GetContext(ctx, &pref,
		`SELECT chat_id, sheet_url, updated_at FROM sheet_prefs WHERE chat_id = ?`, chatID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return "", nil
	case err != nil:
		s.logger.ErrorContext(ctx, "Error getting sheet URL", "chat_id", chatID, "error", err)
		return "", fmt.Errorf("failed to get sheet URL for chat %d: %w", chatID, err)
	}

	return pref.SheetURL, nil
}

func (s *sqlxStore) SaveSheetURL(ctx context.Context, chatID int64, sheetURL string) error {
	if chatID == 0 {
		return fmt.Errorf("chat_id cannot be zero")
	}

	query := `
        INSERT INTO sheet_prefs (chat_id, sheet_url, updated_at)
        VALUES (?, ?, ?)
        ON CONFLICT (chat_id) DO UPDATE SET
            sheet_url = excluded.sheet_url,
            updated_at = excluded.updated_at;
    `

	if _, err := s.db.ExecContext(ctx, query, chatID, sheetURL, time.Now().UTC()); err != nil {
		s.logger.ErrorContext(ctx, "Error saving sheet URL", "chat_id", chatID, "error", err)
		return fmt.Errorf("failed to save sheet URL for chat %d: %w", chatID, err)
	}

	return nil
}

// RunSQLMaintenance executes a VACUUM command on the SQLite database.
func (s *sqlxStore) RunSQLMaintenance(ctx context.Context) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	s.logger.InfoContext(ctx, "Starting database maintenance (VACUUM)...")

	// VACUUM must run outside a transaction in SQLite.
	_, err := s.db.ExecContext(ctx, "VACUUM;")

	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		return fmt.Errorf("database maintenance (VACUUM) timed out: %w", err)
	case err != nil:
		s.logger.ErrorContext(ctx, "Database maintenance (VACUUM) failed", "error", err)
		return fmt.Errorf("failed to execute VACUUM: %w", err)
	}

	s.logger.InfoContext(ctx, "Database maintenance (VACUUM) completed successfully")
	return nil
}
