package matchers

import (
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/samber/lo"
)

// Addressed matches group messages the bot should answer: replies to the bot's own
// messages and messages that mention one of its names.
func Addressed(provider PendingProvider, botID int64, botUsername string, names []string) bot.MatchFunc {
	names = lo.Map(names, func(n string, _ int) string { return strings.ToLower(n) })
	if botUsername != "" {
		names = append(names, "@"+strings.ToLower(botUsername))
	}

	return func(update *models.Update) bool {
		msg := update.Message
		if msg == nil || !IsGroup(msg.Chat) {
			return false
		}
		if msg.Text == "" || IsCommand(msg.Text) {
			return false
		}
		if msg.From != nil && awaitingText(provider, msg.From.ID) {
			return false
		}

		if reply := msg.ReplyToMessage; reply != nil && reply.From != nil && reply.From.ID == botID {
			return true
		}

		return Mentions(msg.Text, names)
	}
}

// Mentions reports whether text contains any of the lower-cased names.
func Mentions(text string, names []string) bool {
	text = strings.ToLower(text)
	return lo.ContainsBy(names, func(name string) bool {
		return name != "" && strings.Contains(text, name)
	})
}

func IsGroup(chat models.Chat) bool {
	return chat.Type == models.ChatTypeGroup || chat.Type == models.ChatTypeSupergroup
}
