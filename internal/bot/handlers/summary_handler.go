package handlers

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewSummaryHandler returns a handler for the /rollcall_summary command.
func NewSummaryHandler(deps HandlerDeps) bot.HandlerFunc {
	return summaryHandler{deps}.Handle
}

// summaryHandler builds the attendance table and asks the AI client for a
// short natural-language summary of it.
type summaryHandler struct {
	deps HandlerDeps
}

func (h summaryHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "summary")

	if update.Message == nil || update.Message.From == nil {
		log.ErrorContext(ctx, "Summary handler called with nil Message or From", "update_id", update.ID)
		return
	}

	chatID := update.Message.Chat.ID
	log.InfoContext(ctx, "Admin requested attendance summary", "chat_id", chatID, "user_id", update.Message.From.ID)

	if h.deps.Gemini == nil {
		log.WarnContext(ctx, "Summary requested but no AI client is configured", "chat_id", chatID)
		_, sendErr := b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: chatID,
			Text:   h.deps.Config.Telegram.Messages.GeneralError,
		})
		if sendErr != nil {
			log.ErrorContext(ctx, "Failed to send error message", "error", sendErr, "chat_id", chatID)
		}
		return
	}

	adminIDs := adminUserIDs(ctx, b, h.deps, chatID, log)

	values, err := h.deps.Exporter.TableValues(ctx, chatID, adminIDs)
	if err != nil {
		log.ErrorContext(ctx, "Failed to build attendance table", "error", err, "chat_id", chatID)
		_, sendErr := b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: chatID,
			Text:   h.deps.Config.Telegram.Messages.GeneralError,
		})
		if sendErr != nil {
			log.ErrorContext(ctx, "Failed to send error message", "error", sendErr, "chat_id", chatID)
		}
		return
	}

	if len(values) <= 1 {
		_, sendErr := b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: chatID,
			Text:   h.deps.Config.Telegram.Messages.NoRecords,
		})
		if sendErr != nil {
			log.ErrorContext(ctx, "Failed to send no records message", "error", sendErr, "chat_id", chatID)
		}
		return
	}

	summary, err := h.deps.Gemini.SummarizeTable(ctx, values)
	if err != nil {
		log.ErrorContext(ctx, "Failed to generate summary", "error", err, "chat_id", chatID)
		_, sendErr := b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: chatID,
			Text:   h.deps.Config.Telegram.Messages.GeneralError,
		})
		if sendErr != nil {
			log.ErrorContext(ctx, "Failed to send error message", "error", sendErr, "chat_id", chatID)
		}
		return
	}

	_, err = b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   summary,
	})
	if err != nil {
		log.ErrorContext(ctx, "Failed to send summary", "error", err, "chat_id", chatID)
		return
	}

	log.InfoContext(ctx, "Successfully sent attendance summary", "chat_id", chatID)
}
