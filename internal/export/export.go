// Package export orchestrates one attendance export: it snapshots the
// chat's records, classifies the message stream into question blocks,
// builds the table, fetches every row's avatar concurrently, and writes
// the finished table to the sheet service.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/emezav/rollcall/internal/avatar"
	"github.com/emezav/rollcall/internal/database"
	"github.com/emezav/rollcall/internal/report"
)

// SheetWriter writes a finished table to a destination sheet.
type SheetWriter interface {
	Write(ctx context.Context, sheetURL string, values [][]string) error
}

// Exporter runs the build-and-write pipeline for a chat.
type Exporter struct {
	store      database.Store
	sheets     SheetWriter
	avatars    avatar.Fetcher
	labels     report.Labels
	operatorID int64
	logger     *slog.Logger
}

// New creates an Exporter. operatorID is the bot's own user id; a user
// present only in the answer map under that id gets no extra row.
func New(store database.Store, sheets SheetWriter, avatars avatar.Fetcher, labels report.Labels, operatorID int64, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{
		store:      store,
		sheets:     sheets,
		avatars:    avatars,
		labels:     labels,
		operatorID: operatorID,
		logger:     logger.With("component", "exporter"),
	}
}

// Run executes the full export for one chat. Avatar fetch failures degrade
// to empty cells; a sheet write failure is returned to the caller. When ctx
// is cancelled before the avatar barrier completes, in-flight fetches stop
// and no write is attempted.
func (e *Exporter) Run(ctx context.Context, chatID int64, sheetURL string, adminIDs map[int64]struct{}) error {
	startTime := time.Now()

	table, cls, err := e.buildTable(ctx, chatID, adminIDs)
	if err != nil {
		return err
	}

	if err := e.mergeAvatars(ctx, table); err != nil {
		return err
	}

	// The barrier is satisfied; a cancellation that raced the last payload
	// still skips the write.
	if ctx.Err() != nil {
		return ctx.Err()
	}

	if err := e.sheets.Write(ctx, sheetURL, table.Values()); err != nil {
		return fmt.Errorf("failed to write sheet: %w", err)
	}

	e.logger.InfoContext(ctx, "Export completed",
		"chat_id", chatID,
		"rows", len(table.Values())-1,
		"questions", cls.Count,
		"duration", time.Since(startTime))
	return nil
}

// TableValues builds the attendance table for a chat without avatars and
// without touching the sheet service. Used by the summary command.
func (e *Exporter) TableValues(ctx context.Context, chatID int64, adminIDs map[int64]struct{}) ([][]string, error) {
	table, _, err := e.buildTable(ctx, chatID, adminIDs)
	if err != nil {
		return nil, err
	}
	return table.Values(), nil
}

// buildTable assembles the table for a chat from its stored records and
// message stream.
func (e *Exporter) buildTable(ctx context.Context, chatID int64, adminIDs map[int64]struct{}) (*report.Table, report.Classification, error) {
	records, err := e.loadRecords(ctx, chatID)
	if err != nil {
		return nil, report.Classification{}, err
	}

	messages, err := e.store.GetMessagesInChat(ctx, chatID)
	if err != nil {
		return nil, report.Classification{}, fmt.Errorf("failed to load chat messages: %w", err)
	}

	stream := make([]report.ChatMessage, len(messages))
	for i, m := range messages {
		stream[i] = report.ChatMessage{SenderID: m.UserID, Text: m.Content}
	}
	cls := report.Classify(stream, adminIDs)

	table := report.BuildTable(records, cls, e.lookup(ctx), e.operatorID, e.labels, time.Local, e.logger)
	return table, cls, nil
}

// loadRecords snapshots the chat's stored records for export. A record
// that fails to deserialize is skipped and logged, never fatal.
func (e *Exporter) loadRecords(ctx context.Context, chatID int64) ([]report.Record, error) {
	stored, err := e.store.GetTimeRecords(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("failed to load time records: %w", err)
	}

	records := make([]report.Record, 0, len(stored))
	for i := range stored {
		rec := &stored[i]
		onlines, err := rec.OnlineTimes()
		if err != nil {
			e.logger.WarnContext(ctx, "Skipping unreadable record", "chat_id", chatID, "user_id", rec.UserID, "error", err)
			continue
		}
		offlines, err := rec.OfflineTimes()
		if err != nil {
			e.logger.WarnContext(ctx, "Skipping unreadable record", "chat_id", chatID, "user_id", rec.UserID, "error", err)
			continue
		}
		records = append(records, report.Record{
			UserID:   rec.UserID,
			Duration: rec.Duration,
			Onlines:  onlines,
			Offlines: offlines,
		})
	}

	return records, nil
}

// lookup adapts the store to the table builder's per-user profile lookup.
// Unknown users resolve to a bare profile rather than an error.
func (e *Exporter) lookup(ctx context.Context) report.UserLookup {
	return func(userID int64) (report.Profile, error) {
		user, err := e.store.GetUser(ctx, userID)
		if err != nil {
			return report.Profile{ID: userID}, err
		}
		if user == nil {
			return report.Profile{ID: userID}, nil
		}
		return report.Profile{
			ID:        user.UserID,
			Phone:     user.Phone,
			FirstName: user.FirstName,
			LastName:  user.LastName,
			Username:  user.Username,
		}, nil
	}
}

// mergeAvatars launches one fetch per table row and patches the avatar
// cells once every fetch has delivered its terminal payload. The merge
// itself runs on this goroutine only; payload arrival order is irrelevant.
func (e *Exporter) mergeAvatars(ctx context.Context, table *report.Table) error {
	userIDs := table.UserIDs()
	if len(userIDs) == 0 {
		return nil
	}

	payloads := make(chan avatar.Payload, len(userIDs))

	g, gctx := errgroup.WithContext(ctx)
	for _, userID := range userIDs {
		g.Go(func() error {
			payload, err := e.avatars.Fetch(gctx, userID)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				// A failed fetch means an empty avatar cell, not a failed
				// export.
				e.logger.WarnContext(gctx, "Avatar fetch failed", "user_id", userID, "error", err)
				payload = avatar.Payload{UserID: userID}
			}
			payloads <- payload
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	close(payloads)

	for payload := range payloads {
		table.MergeAvatar(payload.UserID, payload.DataURI)
	}

	return nil
}
