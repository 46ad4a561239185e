package matchers

import (
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/dskvich/brahmos-bot/pkg/domain"
)

type PendingProvider interface {
	Pending(userID int64) (domain.Pending, bool)
}

type StateProvider interface {
	PendingProvider
	ChatEnabled(userID int64) bool
}

// PendingText matches a plain text message from a user who was asked for input of the given kind.
func PendingText(provider PendingProvider, kind domain.PendingKind) bot.MatchFunc {
	return func(update *models.Update) bool {
		msg := update.Message
		if msg == nil || msg.From == nil || msg.Text == "" || IsCommand(msg.Text) {
			return false
		}

		p, ok := provider.Pending(msg.From.ID)
		return ok && p.Kind == kind
	}
}

// PendingEditPhoto matches a photo sent after /edit.
func PendingEditPhoto(provider PendingProvider) bot.MatchFunc {
	return func(update *models.Update) bool {
		msg := update.Message
		if msg == nil || msg.From == nil || len(msg.Photo) == 0 {
			return false
		}

		p, ok := provider.Pending(msg.From.ID)
		return ok && p.Kind == domain.PendingEditPhoto
	}
}

// PrivateChat matches plain text in a private chat of a user who turned chat mode on.
func PrivateChat(provider StateProvider) bot.MatchFunc {
	return func(update *models.Update) bool {
		msg := update.Message
		if msg == nil || msg.From == nil || msg.Chat.Type != models.ChatTypePrivate {
			return false
		}
		if msg.Text == "" || IsCommand(msg.Text) || awaitingText(provider, msg.From.ID) {
			return false
		}

		return provider.ChatEnabled(msg.From.ID)
	}
}

// awaitingText reports whether the next text of the user answers an earlier question.
// A pending photo edit does not count, it waits for a photo.
func awaitingText(provider PendingProvider, userID int64) bool {
	p, ok := provider.Pending(userID)
	return ok && p.Kind != domain.PendingEditPhoto
}
