package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// User holds the profile fields observed for a chat member. Rows are
// upserted from incoming updates; fields Telegram never exposes to bots
// (the phone number, typically) stay empty.
type User struct {
	UserID    int64     `db:"user_id"`
	Phone     string    `db:"phone"`
	FirstName string    `db:"first_name"`
	LastName  string    `db:"last_name"`
	Username  string    `db:"username"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Name returns the user's display name.
func (u *User) Name() string {
	if u.FirstName != "" && u.LastName != "" {
		return u.FirstName + " " + u.LastName
	}
	if u.FirstName != "" {
		return u.FirstName
	}
	return u.LastName
}

// Message represents a message observed in a tracked group chat, kept for
// question/answer scanning during exports.
type Message struct {
	ID        uint      `db:"id"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`

	ChatID    int64     `db:"chat_id"`
	UserID    int64     `db:"user_id"`
	Content   string    `db:"content"`
	Timestamp time.Time `db:"timestamp"`
}

// TimeRecord is one user's attendance record for a chat: the online and
// offline marks collected across group calls, plus the cached formatted
// total duration. Onlines and Offlines are stored as JSON arrays of epoch
// milliseconds.
type TimeRecord struct {
	ID        uint      `db:"id"`
	ChatID    int64     `db:"chat_id"`
	UserID    int64     `db:"user_id"`
	Onlines   string    `db:"onlines"`
	Offlines  string    `db:"offlines"`
	Duration  string    `db:"duration"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// OnlineTimes decodes the online marks.
func (r *TimeRecord) OnlineTimes() ([]int64, error) {
	return decodeMarks(r.Onlines)
}

// OfflineTimes decodes the offline marks.
func (r *TimeRecord) OfflineTimes() ([]int64, error) {
	return decodeMarks(r.Offlines)
}

// SetOnlineTimes encodes the online marks.
func (r *TimeRecord) SetOnlineTimes(marks []int64) error {
	s, err := encodeMarks(marks)
	if err != nil {
		return err
	}
	r.Onlines = s
	return nil
}

// SetOfflineTimes encodes the offline marks.
func (r *TimeRecord) SetOfflineTimes(marks []int64) error {
	s, err := encodeMarks(marks)
	if err != nil {
		return err
	}
	r.Offlines = s
	return nil
}

func decodeMarks(s string) ([]int64, error) {
	if s == "" {
		return nil, nil
	}
	var marks []int64
	if err := json.Unmarshal([]byte(s), &marks); err != nil {
		return nil, fmt.Errorf("failed to decode timestamp marks: %w", err)
	}
	return marks, nil
}

func encodeMarks(marks []int64) (string, error) {
	if marks == nil {
		marks = []int64{}
	}
	b, err := json.Marshal(marks)
	if err != nil {
		return "", fmt.Errorf("failed to encode timestamp marks: %w", err)
	}
	return string(b), nil
}

// CallSession tracks one group call per chat: opened when the call starts,
// closed when it ends. At most one open session per chat.
type CallSession struct {
	ID        uint         `db:"id"`
	ChatID    int64        `db:"chat_id"`
	StartedAt time.Time    `db:"started_at"`
	EndedAt   sql.NullTime `db:"ended_at"`
}

// SheetPref remembers the last sheet URL used for a chat's export.
type SheetPref struct {
	ChatID    int64     `db:"chat_id"`
	SheetURL  string    `db:"sheet_url"`
	UpdatedAt time.Time `db:"updated_at"`
}
