package matchers

import (
	"strings"
	"unicode"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// Command matches "/name", "/name args" and "/name@botname args".
func Command(name, botUsername string) bot.MatchFunc {
	return func(update *models.Update) bool {
		if update.Message == nil {
			return false
		}

		cmd, _, ok := ParseCommand(update.Message.Text, botUsername)
		return ok && cmd == name
	}
}

// ParseCommand splits a command message into its lower-cased name and the trimmed arguments.
// Commands addressed to another bot with the @username suffix are rejected.
func ParseCommand(text, botUsername string) (name, args string, ok bool) {
	if !strings.HasPrefix(text, "/") {
		return "", "", false
	}

	head := text[1:]
	if i := strings.IndexFunc(head, unicode.IsSpace); i >= 0 {
		head, args = head[:i], strings.TrimSpace(head[i:])
	}

	name, target, addressed := strings.Cut(head, "@")
	if addressed && !strings.EqualFold(target, botUsername) {
		return "", "", false
	}
	if name == "" {
		return "", "", false
	}

	return strings.ToLower(name), args, true
}

// IsCommand reports whether the text looks like any bot command.
func IsCommand(text string) bool {
	return strings.HasPrefix(text, "/")
}

// Callback matches a button press carrying exactly data.
func Callback(data string) bot.MatchFunc {
	return func(update *models.Update) bool {
		return update.CallbackQuery != nil && update.CallbackQuery.Data == data
	}
}
