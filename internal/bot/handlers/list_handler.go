package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/emezav/rollcall/internal/report"
)

// NewListHandler returns a handler for the /rollcall_list command.
func NewListHandler(deps HandlerDeps) bot.HandlerFunc {
	return listHandler{deps}.Handle
}

// listHandler renders the chat's attendance records as a plain-text reply.
type listHandler struct {
	deps HandlerDeps
}

func (h listHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "list")

	if update.Message == nil || update.Message.From == nil {
		log.ErrorContext(ctx, "List handler called with nil Message or From", "update_id", update.ID)
		return
	}

	chatID := update.Message.Chat.ID
	log.InfoContext(ctx, "Handling /rollcall_list command", "chat_id", chatID, "user_id", update.Message.From.ID)

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

	labels := h.deps.Config.Export.Labels.Table()
	var lines []string
	for i := range records {
		rec := &records[i]

		name := fmt.Sprintf("UID %d", rec.UserID)
		if user, err := h.deps.Store.GetUser(ctx, rec.UserID); err == nil && user != nil {
			if display := user.Name(); display != "" {
				name = display
			}
			if user.Username != "" {
				name += " (@" + user.Username + ")"
			}
		}

		line := name + "\n" + h.deps.Config.Telegram.Messages.DurationPrefix + rec.Duration
		onlines, onErr := rec.OnlineTimes()
		offlines, offErr := rec.OfflineTimes()
		if onErr == nil && offErr == nil {
			line += "\n" + report.TimestampDetail(onlines, offlines, labels, time.Local)
		}
		lines = append(lines, line)
	}

	var replyBuilder strings.Builder
	replyBuilder.WriteString(h.deps.Config.Telegram.Messages.RecordsHeader)
	replyBuilder.WriteString(strings.Join(lines, "\n\n"))

	_, err = b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   replyBuilder.String(),
	})
	if err != nil {
		log.ErrorContext(ctx, "Failed to send records list", "error", err, "chat_id", chatID)
		return
	}

	log.InfoContext(ctx, "Successfully sent records list", "count", len(records), "chat_id", chatID)
}
