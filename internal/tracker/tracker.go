// Package tracker maintains per-user attendance records across group call
// lifecycles: online marks when users join a call, offline marks when they
// leave, and automatic hangup marks when a call ends.
package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/emezav/rollcall/internal/database"
)

// Tracker applies call lifecycle events to the stored attendance records.
type Tracker struct {
	store  database.Store
	logger *slog.Logger
}

// New creates a Tracker backed by the given store.
func New(store database.Store, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		store:  store,
		logger: logger.With("component", "tracker"),
	}
}

// CallStarted opens a call session for the chat and marks the starter
// online. Marks from a previous, unfinished call stay in place; the new
// session only gates which marks are accepted from now on.
func (t *Tracker) CallStarted(ctx context.Context, chatID, starterID int64, at time.Time) error {
	if err := t.store.StartCallSession(ctx, chatID, at); err != nil {
		return fmt.Errorf("failed to start call session: %w", err)
	}
	if starterID != 0 {
		if err := t.MarkOnline(ctx, chatID, starterID, at); err != nil {
			return err
		}
	}
	return nil
}

// CallEnded closes the chat's call session and appends an offline mark to
// every record with more onlines than offlines, so users who never hung up
// still get a complete interval.
func (t *Tracker) CallEnded(ctx context.Context, chatID int64, at time.Time) error {
	if err := t.store.EndCallSession(ctx, chatID, at); err != nil {
		return fmt.Errorf("failed to end call session: %w", err)
	}

	records, err := t.store.GetTimeRecords(ctx, chatID)
	if err != nil {
		return fmt.Errorf("failed to load records for call end: %w", err)
	}

	for i := range records {
		record := &records[i]
		onlines, err := record.OnlineTimes()
		if err != nil {
			t.logger.WarnContext(ctx, "Skipping corrupt record at call end", "chat_id", chatID, "user_id", record.UserID, "error", err)
			continue
		}
		offlines, err := record.OfflineTimes()
		if err != nil {
			t.logger.WarnContext(ctx, "Skipping corrupt record at call end", "chat_id", chatID, "user_id", record.UserID, "error", err)
			continue
		}
		if len(offlines) >= len(onlines) {
			continue
		}

		offlines = append(offlines, at.UnixMilli())
		if err := record.SetOfflineTimes(offlines); err != nil {
			return err
		}
		record.Duration = FormatDuration(onlines, offlines)
		if err := t.store.SaveTimeRecord(ctx, record); err != nil {
			return fmt.Errorf("failed to auto-close record for user %d: %w", record.UserID, err)
		}
	}

	t.logger.InfoContext(ctx, "Call ended, dangling records closed", "chat_id", chatID)
	return nil
}

// MarkOnline appends an online timestamp to the user's record, creating
// the record on first sight. Marks are only accepted while a call session
// is open for the chat.
func (t *Tracker) MarkOnline(ctx context.Context, chatID, userID int64, at time.Time) error {
	return t.mark(ctx, chatID, userID, at, true)
}

// MarkOffline appends an offline timestamp to the user's record. Marks are
// only accepted while a call session is open for the chat.
func (t *Tracker) MarkOffline(ctx context.Context, chatID, userID int64, at time.Time) error {
	return t.mark(ctx, chatID, userID, at, false)
}

func (t *Tracker) mark(ctx context.Context, chatID, userID int64, at time.Time, online bool) error {
	session, err := t.store.GetOpenCallSession(ctx, chatID)
	if err != nil {
		return fmt.Errorf("failed to check call session: %w", err)
	}
	if session == nil {
		t.logger.DebugContext(ctx, "Ignoring mark outside a call session", "chat_id", chatID, "user_id", userID, "online", online)
		return nil
	}

	record, err := t.store.GetTimeRecord(ctx, chatID, userID)
	if err != nil {
		return fmt.Errorf("failed to load record: %w", err)
	}
	if record == nil {
		record = &database.TimeRecord{ChatID: chatID, UserID: userID}
	}

	onlines, err := record.OnlineTimes()
	if err != nil {
		return fmt.Errorf("record for user %d is corrupt: %w", userID, err)
	}
	offlines, err := record.OfflineTimes()
	if err != nil {
		return fmt.Errorf("record for user %d is corrupt: %w", userID, err)
	}

	if online {
		onlines = append(onlines, at.UnixMilli())
		if err := record.SetOnlineTimes(onlines); err != nil {
			return err
		}
	} else {
		offlines = append(offlines, at.UnixMilli())
		if err := record.SetOfflineTimes(offlines); err != nil {
			return err
		}
	}
	record.Duration = FormatDuration(onlines, offlines)

	if err := t.store.SaveTimeRecord(ctx, record); err != nil {
		return fmt.Errorf("failed to save record: %w", err)
	}

	t.logger.DebugContext(ctx, "Attendance mark recorded", "chat_id", chatID, "user_id", userID, "online", online)
	return nil
}

// RefreshDurations recomputes and persists the cached duration of every
// record in the chat. Corrupt records are skipped, never fatal.
func (t *Tracker) RefreshDurations(ctx context.Context, chatID int64) error {
	records, err := t.store.GetTimeRecords(ctx, chatID)
	if err != nil {
		return fmt.Errorf("failed to load records for refresh: %w", err)
	}

	for i := range records {
		record := &records[i]
		onlines, err := record.OnlineTimes()
		if err != nil {
			t.logger.WarnContext(ctx, "Skipping corrupt record during refresh", "chat_id", chatID, "user_id", record.UserID, "error", err)
			continue
		}
		offlines, err := record.OfflineTimes()
		if err != nil {
			t.logger.WarnContext(ctx, "Skipping corrupt record during refresh", "chat_id", chatID, "user_id", record.UserID, "error", err)
			continue
		}

		duration := FormatDuration(onlines, offlines)
		if duration == record.Duration {
			continue
		}
		record.Duration = duration
		if err := t.store.SaveTimeRecord(ctx, record); err != nil {
			return fmt.Errorf("failed to save refreshed record for user %d: %w", record.UserID, err)
		}
	}

	return nil
}

// FormatDuration sums the paired online/offline intervals and formats the
// total compactly ("2h05m", "45m"). An online mark without a matching
// offline mark does not count until the pair completes.
func FormatDuration(onlines, offlines []int64) string {
	pairs := len(onlines)
	if len(offlines) < pairs {
		pairs = len(offlines)
	}

	var total time.Duration
	for i := 0; i < pairs; i++ {
		delta := offlines[i] - onlines[i]
		if delta > 0 {
			total += time.Duration(delta) * time.Millisecond
		}
	}

	hours := int(total.Hours())
	minutes := int(total.Minutes()) % 60
	if hours > 0 {
		return fmt.Sprintf("%dh%02dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}
