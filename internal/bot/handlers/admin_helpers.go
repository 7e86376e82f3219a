package handlers

import (
	"context"
	"log/slog"

	"github.com/go-telegram/bot"
)

// adminUserIDs resolves the set of user ids whose messages count as
// questions for a chat: the chat's owner and administrators, plus the
// configured admin. Falls back to the configured admin alone when the
// administrator list cannot be fetched.
func adminUserIDs(ctx context.Context, b *bot.Bot, deps HandlerDeps, chatID int64, log *slog.Logger) map[int64]struct{} {
	adminIDs := map[int64]struct{}{
		deps.Config.Telegram.AdminUserID: {},
	}

	members, err := b.GetChatAdministrators(ctx, &bot.GetChatAdministratorsParams{ChatID: chatID})
	if err != nil {
		log.WarnContext(ctx, "Failed to get chat administrators, using configured admin only", "error", err, "chat_id", chatID)
		return adminIDs
	}

	for _, member := range members {
		switch {
		case member.Owner != nil:
			adminIDs[member.Owner.User.ID] = struct{}{}
		case member.Administrator != nil:
			adminIDs[member.Administrator.User.ID] = struct{}{}
		}
	}

	return adminIDs
}
