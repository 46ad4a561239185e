package handlers

import (
	"context"
	"log/slog"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/dskvich/brahmos-bot/pkg/services"
)

type ChatModeEnabler interface {
	EnableChat(userID int64)
}

type ChatReplier interface {
	Reply(ctx context.Context, req services.ChatRequest) (string, error)
}

type ChatForgetter interface {
	Forget(chatID int64)
}

type PendingClearer interface {
	ClearPending(userID int64)
}

type PromptEnhancer interface {
	EnhancePrompt(ctx context.Context, idea string) (string, error)
}

// EnableChat turns on chat mode for the user. Groups use mentions instead.
func EnableChat(enabler ChatModeEnabler) bot.HandlerFunc {
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		r, ok := requestOf(ctx, b, update)
		if !ok {
			return
		}

		if !r.private() {
			reply(ctx, b, r, "💬 Chat mode is only available in direct messages. Here, mention me or reply to my message.")
			return
		}

		enabler.EnableChat(r.user.ID)
		slog.InfoContext(ctx, "Chat mode enabled", "userID", r.user.ID)

		reply(ctx, b, r, `💬 <b>Chat mode activated!</b>

Just type your message and I'll answer. I remember the last few messages of our conversation.
Use /new to start over.`)
	}
}

// ClearChat forgets the conversation of the chat and any question the user left unanswered.
func ClearChat(forgetter ChatForgetter, pending PendingClearer) bot.HandlerFunc {
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		r, ok := requestOf(ctx, b, update)
		if !ok {
			return
		}

		slog.InfoContext(ctx, "Clearing chat", "chatID", r.chatID)
		forgetter.Forget(r.chatID)
		pending.ClearPending(r.user.ID)

		reply(ctx, b, r, "🧹 Conversation cleared! Let's start fresh. 🚀")
	}
}

// Chat answers a message in chat mode or a group message addressed to the bot.
func Chat(replier ChatReplier) bot.HandlerFunc {
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		r, ok := requestOf(ctx, b, update)
		if !ok {
			return
		}

		answer, err := replier.Reply(ctx, services.ChatRequest{
			ChatID:   r.chatID,
			UserName: r.firstName(),
			Text:     r.text,
			Context:  messageContext(update.Message, r),
		})
		if err != nil {
			sendFailure(ctx, b, r, err)
			return
		}

		sendAnswer(ctx, b, r, answer)
	}
}

func messageContext(msg *models.Message, r request) string {
	switch {
	case msg != nil && msg.ReplyToMessage != nil:
		return "Replying to previous message"
	case !r.private():
		return "Group conversation"
	default:
		return ""
	}
}

func EnhancePrompt(enhancer PromptEnhancer) bot.HandlerFunc {
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		r, ok := requestOf(ctx, b, update)
		if !ok {
			return
		}

		idea := commandArgs(r.text)
		if idea == "" {
			reply(ctx, b, r, `❓ <b>Prompt Enhancement</b>

<b>Usage:</b> <code>/prompt your idea</code>

<b>Examples:</b>
• <code>/prompt a warrior</code>
• <code>/prompt sunset landscape</code>
• <code>/prompt a calm bedtime story intro</code>`)
			return
		}

		slog.InfoContext(ctx, "Enhancing prompt", "userID", r.user.ID)

		enhanced, err := enhancer.EnhancePrompt(ctx, idea)
		if err != nil {
			sendFailure(ctx, b, r, err)
			return
		}

		reply(ctx, b, r, "✨ <b>Enhanced Prompt:</b>\n\n<code>"+escape(enhanced)+"</code>\n\n💡 <i>Copy the text above for better results!</i>")
	}
}

// Hint answers private messages nothing else handled. Everything else is ignored.
func Hint() bot.HandlerFunc {
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		if update.CallbackQuery != nil {
			b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
				CallbackQueryID: update.CallbackQuery.ID,
				Text:            "Unknown action!",
			})
			return
		}

		if update.Message == nil || update.Message.From == nil || update.Message.Chat.Type != models.ChatTypePrivate {
			return
		}

		r, _ := requestOf(ctx, b, update)
		reply(ctx, b, r, `👋 <b>Hi there!</b> I'm BrahMos AI.

<b>Quick commands:</b>
• /chat - start a conversation
• /image - generate images
• /say - text to speech
• /help - see all features`)
	}
}
