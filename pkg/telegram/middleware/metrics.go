package middleware

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/samber/lo"

	"github.com/dskvich/brahmos-bot/pkg/telegram/matchers"
)

type CommandRecorder interface {
	IncCommand(command string)
}

// CountCommands counts known commands and button presses. Anything else is counted as "other".
func CountCommands(recorder CommandRecorder, botUsername string, known []string) bot.Middleware {
	return func(next bot.HandlerFunc) bot.HandlerFunc {
		return func(ctx context.Context, b *bot.Bot, update *models.Update) {
			switch {
			case update.Message != nil:
				if name, _, ok := matchers.ParseCommand(lo.CoalesceOrEmpty(update.Message.Text, update.Message.Caption), botUsername); ok {
					recorder.IncCommand(lo.Ternary(lo.Contains(known, name), name, "other"))
				}
			case update.CallbackQuery != nil:
				data := update.CallbackQuery.Data
				recorder.IncCommand(lo.Ternary(lo.Contains(known, data), data, "other"))
			}

			next(ctx, b, update)
		}
	}
}
