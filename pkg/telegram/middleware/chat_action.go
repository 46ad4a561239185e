package middleware

import (
	"context"
	"log/slog"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// ChatAction shows the given action (typing, uploading a photo...) while the handler works.
func ChatAction(action models.ChatAction) bot.Middleware {
	return func(next bot.HandlerFunc) bot.HandlerFunc {
		return func(ctx context.Context, b *bot.Bot, update *models.Update) {
			var (
				chatID  int64
				topicID int
			)

			switch {
			case update.Message != nil:
				chatID, topicID = update.Message.Chat.ID, update.Message.MessageThreadID
			case update.CallbackQuery != nil && update.CallbackQuery.Message.Message != nil:
				chatID = update.CallbackQuery.Message.Message.Chat.ID
				topicID = update.CallbackQuery.Message.Message.MessageThreadID
			}

			if chatID != 0 {
				if _, err := b.SendChatAction(ctx, &bot.SendChatActionParams{
					ChatID:          chatID,
					MessageThreadID: topicID,
					Action:          action,
				}); err != nil {
					slog.DebugContext(ctx, "Chat action not sent", "action", action, "err", err)
				}
			}

			next(ctx, b, update)
		}
	}
}
