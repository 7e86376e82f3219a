package tasks

import (
	"context"
	"fmt"
	"time"
)

// newRecordRefreshTask creates the periodic task that re-reads every
// tracked chat's records and refreshes their cached durations. Each run
// works on a fresh snapshot from the store; it never touches a table that
// an in-flight export already built.
func newRecordRefreshTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "record_refresh")

	return func(ctx context.Context) error {
		startTime := time.Now()

		chatIDs, err := deps.Store.GetTrackedChatIDs(ctx)
		if err != nil {
			return fmt.Errorf("record refresh failed to list chats: %w", err)
		}

		for _, chatID := range chatIDs {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if err := deps.Tracker.RefreshDurations(ctx, chatID); err != nil {
				// Keep refreshing the other chats.
				log.ErrorContext(ctx, "Record refresh failed for chat", "chat_id", chatID, "error", err)
			}
		}

		log.DebugContext(ctx, "Record refresh completed", "chats", len(chatIDs), "duration", time.Since(startTime))
		return nil
	}
}
