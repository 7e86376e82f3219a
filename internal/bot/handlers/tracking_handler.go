package handlers

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/emezav/rollcall/internal/database"
)

const dbSaveTimeout = 5 * time.Second

// NewTrackingHandler creates the default handler. It observes group chats:
// every text message is stored for question scanning, user profiles are
// kept current, and video chat service messages drive the call lifecycle.
func NewTrackingHandler(deps HandlerDeps) bot.HandlerFunc {
	return trackingHandler{deps}.Handle
}

type trackingHandler struct {
	deps HandlerDeps
}

func (h trackingHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "tracking")

	msg := update.Message
	if msg == nil {
		return
	}
	if msg.Chat.Type != models.ChatTypeGroup && msg.Chat.Type != models.ChatTypeSupergroup {
		return
	}

	chatID := msg.Chat.ID
	at := time.Unix(int64(msg.Date), 0)

	switch {
	case msg.VideoChatStarted != nil:
		log.InfoContext(ctx, "Group call started", "chat_id", chatID)
		if msg.From != nil && !msg.From.IsBot {
			h.upsertSender(ctx, msg, log)
		}
		starterID := int64(0)
		if msg.From != nil {
			starterID = msg.From.ID
		}
		if err := h.deps.Tracker.CallStarted(ctx, chatID, starterID, at); err != nil {
			log.ErrorContext(ctx, "Failed to record call start", "error", err, "chat_id", chatID)
		}
		return

	case msg.VideoChatEnded != nil:
		log.InfoContext(ctx, "Group call ended", "chat_id", chatID)
		if err := h.deps.Tracker.CallEnded(ctx, chatID, at); err != nil {
			log.ErrorContext(ctx, "Failed to record call end", "error", err, "chat_id", chatID)
		}
		return

	case msg.VideoChatParticipantsInvited != nil:
		for _, user := range msg.VideoChatParticipantsInvited.Users {
			if user.IsBot {
				continue
			}
			h.upsertUser(ctx, &user, log)
			if err := h.deps.Tracker.MarkOnline(ctx, chatID, user.ID, at); err != nil {
				log.ErrorContext(ctx, "Failed to mark participant online", "error", err, "chat_id", chatID, "user_id", user.ID)
			}
		}
		return
	}

	if msg.From == nil || msg.From.IsBot || msg.Text == "" {
		return
	}

	h.upsertSender(ctx, msg, log)
	h.saveMessage(ctx, &database.Message{
		ChatID:    chatID,
		UserID:    msg.From.ID,
		Content:   msg.Text,
		Timestamp: at,
	}, log)
}

func (h trackingHandler) upsertSender(ctx context.Context, msg *models.Message, log *slog.Logger) {
	h.upsertUser(ctx, msg.From, log)
}

func (h trackingHandler) upsertUser(ctx context.Context, from *models.User, log *slog.Logger) {
	dbCtx, cancel := context.WithTimeout(ctx, dbSaveTimeout)
	defer cancel()

	err := h.deps.Store.UpsertUser(dbCtx, &database.User{
		UserID:    from.ID,
		FirstName: from.FirstName,
		LastName:  from.LastName,
		Username:  from.Username,
	})
	if err != nil {
		log.WarnContext(ctx, "Failed to upsert user profile", "error", err, "user_id", from.ID)
	}
}

// saveMessage attempts to save a message with retry logic. A message lost
// here is a message missing from future question scans, so it retries a
// few times before giving up.
func (h trackingHandler) saveMessage(ctx context.Context, msg *database.Message, log *slog.Logger) {
	const maxRetries = 3
	var err error

	for i := range [maxRetries]struct{}{} {
		if ctx.Err() != nil {
			log.WarnContext(ctx, "Context cancelled, aborting message save attempts", "error", ctx.Err(), "chat_id", msg.ChatID, "attempt", i+1)
			return
		}

		dbCtx, cancel := context.WithTimeout(ctx, dbSaveTimeout)
		err = h.deps.Store.SaveMessage(dbCtx, msg)
		cancel()

		if err == nil {
			return
		}

		log.ErrorContext(ctx, "Failed to save message, retrying", "error", err, "chat_id", msg.ChatID, "attempt", i+1)
		time.Sleep(time.Duration(500*(i+1)) * time.Millisecond)
	}

	log.ErrorContext(ctx, "Failed to save message after retries", "last_error", err, "chat_id", msg.ChatID)
}
