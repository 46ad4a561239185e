package middleware

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/dskvich/brahmos-bot/pkg/services"
)

type UserToucher interface {
	Touch(user services.User)
}

// TrackUser remembers everyone who sends the bot a message or presses a button.
func TrackUser(toucher UserToucher) bot.Middleware {
	return func(next bot.HandlerFunc) bot.HandlerFunc {
		return func(ctx context.Context, b *bot.Bot, update *models.Update) {
			switch {
			case update.Message != nil && update.Message.From != nil:
				toucher.Touch(userOf(*update.Message.From))
			case update.CallbackQuery != nil:
				toucher.Touch(userOf(update.CallbackQuery.From))
			}

			next(ctx, b, update)
		}
	}
}

func userOf(u models.User) services.User {
	return services.User{ID: u.ID, FirstName: u.FirstName, Username: u.Username}
}
