package handlers

import (
	"context"
	"encoding/json"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewCopyHandler returns a handler for the /rollcall_copy command.
func NewCopyHandler(deps HandlerDeps) bot.HandlerFunc {
	return copyHandler{deps}.Handle
}

// copyHandler replies with the chat's raw attendance records as JSON so
// they can be pasted elsewhere.
type copyHandler struct {
	deps HandlerDeps
}

type recordExportRow struct {
	UserID   int64   `json:"user_id"`
	Onlines  []int64 `json:"onlines"`
	Offlines []int64 `json:"offlines"`
	Duration string  `json:"duration"`
}

func (h copyHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "copy")

	if update.Message == nil || update.Message.From == nil {
		log.ErrorContext(ctx, "Copy handler called with nil Message or From", "update_id", update.ID)
		return
	}

	chatID := update.Message.Chat.ID
	log.InfoContext(ctx, "Handling /rollcall_copy command", "chat_id", chatID, "user_id", update.Message.From.ID)

	records, err := h.deps.Store.GetTimeRecords(ctx, chatID)
	if err != nil {
		log.ErrorContext(ctx, "Failed to get time records", "error", err, "chat_id", chatID)
		_, sendErr := b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: chatID,
			Text:   h.deps.Config.Telegram.Messages.GeneralError,
		})
		if sendErr != nil {
			log.ErrorContext(ctx, "Failed to send error message", "error", sendErr, "chat_id", chatID)
		}
		return
	}

	if len(records) == 0 {
		_, sendErr := b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: chatID,
			Text:   h.deps.Config.Telegram.Messages.NoRecords,
		})
		if sendErr != nil {
			log.ErrorContext(ctx, "Failed to send no records message", "error", sendErr, "chat_id", chatID)
		}
		return
	}

	rows := make([]recordExportRow, 0, len(records))
	for i := range records {
		rec := &records[i]
		onlines, onErr := rec.OnlineTimes()
		offlines, offErr := rec.OfflineTimes()
		if onErr != nil || offErr != nil {
			log.WarnContext(ctx, "Skipping unreadable record", "chat_id", chatID, "user_id", rec.UserID)
			continue
		}
		rows = append(rows, recordExportRow{
			UserID:   rec.UserID,
			Onlines:  onlines,
			Offlines: offlines,
			Duration: rec.Duration,
		})
	}

	payload, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		log.ErrorContext(ctx, "Failed to encode records", "error", err, "chat_id", chatID)
		return
	}

	_, err = b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   string(payload),
	})
	if err != nil {
		log.ErrorContext(ctx, "Failed to send records JSON", "error", err, "chat_id", chatID)
		return
	}

	log.InfoContext(ctx, "Successfully sent records JSON", "count", len(rows), "chat_id", chatID)
}
