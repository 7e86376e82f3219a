package handlers

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewExportHandler returns a handler for the /rollcall_export command.
func NewExportHandler(deps HandlerDeps) bot.HandlerFunc {
	return exportHandler{deps}.Handle
}

// exportHandler runs the attendance export pipeline for the chat. The sheet
// URL comes from the command argument or, when omitted, from the URL stored
// by the chat's previous export.
type exportHandler struct {
	deps HandlerDeps
}

func (h exportHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "export")

	if update.Message == nil || update.Message.From == nil {
		log.ErrorContext(ctx, "Export handler called with nil Message or From", "update_id", update.ID)
		return
	}

	chatID := update.Message.Chat.ID
	log.InfoContext(ctx, "Admin requested export", "chat_id", chatID, "user_id", update.Message.From.ID)

	sheetURL, ok := h.resolveSheetURL(ctx, b, update, log)
	if !ok {
		return
	}

	adminIDs := adminUserIDs(ctx, b, h.deps, chatID, log)

	if err := h.deps.Exporter.Run(ctx, chatID, sheetURL, adminIDs); err != nil {
		if errors.Is(err, context.Canceled) {
			// Shutdown interrupted the run; nothing was written, no reply.
			log.InfoContext(ctx, "Export cancelled", "chat_id", chatID)
			return
		}
		log.ErrorContext(ctx, "Export failed", "error", err, "chat_id", chatID)
		_, sendErr := b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: chatID,
			Text:   h.deps.Config.Telegram.Messages.ExportFailed,
		})
		if sendErr != nil {
			log.ErrorContext(ctx, "Failed to send export failure message", "error", sendErr, "chat_id", chatID)
		}
		return
	}

	_, err := b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   h.deps.Config.Telegram.Messages.ExportDone,
	})
	if err != nil {
		log.ErrorContext(ctx, "Failed to send export confirmation message", "error", err, "chat_id", chatID)
	}
}

// resolveSheetURL picks the destination sheet from the command argument or
// the stored preference. A URL given as an argument becomes the new stored
// preference for the chat.
func (h exportHandler) resolveSheetURL(ctx context.Context, b *bot.Bot, update *models.Update, log *slog.Logger) (string, bool) {
	chatID := update.Message.Chat.ID

	fields := strings.Fields(update.Message.Text)
	if len(fields) > 1 {
		sheetURL := fields[1]
		if err := h.deps.Store.SaveSheetURL(ctx, chatID, sheetURL); err != nil {
			log.WarnContext(ctx, "Failed to save sheet URL preference", "error", err, "chat_id", chatID)
		}
		return sheetURL, true
	}

	sheetURL, err := h.deps.Store.GetSheetURL(ctx, chatID)
	if err != nil {
		log.ErrorContext(ctx, "Failed to load sheet URL preference", "error", err, "chat_id", chatID)
		sheetURL = ""
	}
	if sheetURL == "" {
		_, sendErr := b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: chatID,
			Text:   h.deps.Config.Telegram.Messages.ProvideSheet,
		})
		if sendErr != nil {
			log.ErrorContext(ctx, "Failed to send sheet prompt", "error", sendErr, "chat_id", chatID)
		}
		return "", false
	}

	return sheetURL, true
}
