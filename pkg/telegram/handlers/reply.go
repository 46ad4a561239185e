package handlers

import (
	"context"
	"html"
	"log/slog"
	"strings"
	"unicode"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/samber/lo"

	"github.com/dskvich/brahmos-bot/pkg/logger"
	"github.com/dskvich/brahmos-bot/pkg/render"
	"github.com/dskvich/brahmos-bot/pkg/services"
)

const (
	maxMessageLength = 4096
	maxCaptionPrompt = 900
	lowQuotaWarning  = 10
)

// request is the part of a message or button press the handlers care about.
type request struct {
	chatID   int64
	topicID  int
	replyTo  int
	chatType models.ChatType
	user     models.User
	text     string
	photos   []models.PhotoSize
}

// requestOf extracts the request and acknowledges button presses.
func requestOf(ctx context.Context, b *bot.Bot, update *models.Update) (request, bool) {
	switch {
	case update.Message != nil && update.Message.From != nil:
		msg := update.Message
		return request{
			chatID:   msg.Chat.ID,
			topicID:  msg.MessageThreadID,
			replyTo:  msg.ID,
			chatType: msg.Chat.Type,
			user:     *msg.From,
			text:     lo.CoalesceOrEmpty(msg.Text, msg.Caption),
			photos:   msg.Photo,
		}, true
	case update.CallbackQuery != nil && update.CallbackQuery.Message.Message != nil:
		b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
			CallbackQueryID: update.CallbackQuery.ID,
		})

		msg := update.CallbackQuery.Message.Message
		return request{
			chatID:   msg.Chat.ID,
			topicID:  msg.MessageThreadID,
			chatType: msg.Chat.Type,
			user:     update.CallbackQuery.From,
		}, true
	default:
		slog.WarnContext(ctx, "Received unknown update type", "update", update)
		return request{}, false
	}
}

func (r request) private() bool {
	return r.chatType == models.ChatTypePrivate
}

func (r request) firstName() string {
	return lo.CoalesceOrEmpty(r.user.FirstName, "User")
}

func (r request) replyParameters() *models.ReplyParameters {
	if r.replyTo == 0 {
		return nil
	}
	return &models.ReplyParameters{MessageID: r.replyTo, AllowSendingWithoutReply: true}
}

// sendHTML sends text in the Telegram HTML subset, split into messages Telegram accepts.
// The keyboard, if any, goes under the last part.
func sendHTML(ctx context.Context, b *bot.Bot, r request, text string, keyboard *models.InlineKeyboardMarkup) error {
	return send(ctx, b, r, text, models.ParseModeHTML, keyboard)
}

func sendText(ctx context.Context, b *bot.Bot, r request, text string) error {
	return send(ctx, b, r, text, "", nil)
}

func send(ctx context.Context, b *bot.Bot, r request, text string, mode models.ParseMode, keyboard *models.InlineKeyboardMarkup) error {
	parts := render.Split(text, maxMessageLength)
	for i, part := range parts {
		params := &bot.SendMessageParams{
			ChatID:          r.chatID,
			MessageThreadID: r.topicID,
			Text:            part,
			ParseMode:       mode,
		}
		if i == 0 {
			params.ReplyParameters = r.replyParameters()
		}
		if i == len(parts)-1 && keyboard != nil {
			params.ReplyMarkup = keyboard
		}

		if _, err := b.SendMessage(ctx, params); err != nil {
			return err
		}
	}
	return nil
}

// sendAnswer renders a model answer. When Telegram rejects the markup the raw answer is sent instead.
func sendAnswer(ctx context.Context, b *bot.Bot, r request, answer string) {
	if err := sendHTML(ctx, b, r, render.ToHTML(answer), nil); err != nil {
		slog.WarnContext(ctx, "Formatted answer rejected, sending plain text", logger.Err(err))

		if err := sendText(ctx, b, r, answer); err != nil {
			slog.ErrorContext(ctx, "Sending answer", logger.Err(err))
		}
	}
}

// sendFailure logs err and tells the user what went wrong in plain words.
func sendFailure(ctx context.Context, b *bot.Bot, r request, err error) {
	slog.ErrorContext(ctx, "Request failed", "userID", r.user.ID, logger.Err(err))

	if err := sendText(ctx, b, r, services.FailureText(err)); err != nil {
		slog.ErrorContext(ctx, "Sending failure message", logger.Err(err))
	}
}

func reply(ctx context.Context, b *bot.Bot, r request, text string) {
	if err := sendHTML(ctx, b, r, text, nil); err != nil {
		slog.ErrorContext(ctx, "Sending reply", logger.Err(err))
	}
}

func escape(s string) string {
	return html.EscapeString(s)
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}

// commandArgs returns what follows the command word. The matcher already checked the command itself.
func commandArgs(text string) string {
	if !strings.HasPrefix(text, "/") {
		return strings.TrimSpace(text)
	}
	if i := strings.IndexFunc(text, unicode.IsSpace); i >= 0 {
		return strings.TrimSpace(text[i:])
	}
	return ""
}
