package middleware

import (
	"context"
	"log/slog"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

type OwnerChecker interface {
	IsOwner(userID int64) bool
}

// OwnerOnly lets the update through only when it comes from a bot owner.
func OwnerOnly(owners OwnerChecker) bot.Middleware {
	return func(next bot.HandlerFunc) bot.HandlerFunc {
		return func(ctx context.Context, b *bot.Bot, update *models.Update) {
			var (
				userID  int64
				chatID  int64
				topicID int
			)

			switch {
			case update.Message != nil && update.Message.From != nil:
				userID = update.Message.From.ID
				chatID, topicID = update.Message.Chat.ID, update.Message.MessageThreadID
			case update.CallbackQuery != nil && update.CallbackQuery.Message.Message != nil:
				userID = update.CallbackQuery.From.ID
				chatID = update.CallbackQuery.Message.Message.Chat.ID
			default:
				slog.WarnContext(ctx, "Received unknown update type", "update", update)
				return
			}

			if owners.IsOwner(userID) {
				next(ctx, b, update)
				return
			}

			slog.WarnContext(ctx, "Unauthorized access attempt", "userID", userID)

			b.SendMessage(ctx, &bot.SendMessageParams{
				ChatID:          chatID,
				MessageThreadID: topicID,
				Text:            "⛔ This command is only available to the bot owners.",
			})
		}
	}
}
