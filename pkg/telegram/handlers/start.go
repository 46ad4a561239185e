package handlers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/dskvich/brahmos-bot/pkg/domain"
	"github.com/dskvich/brahmos-bot/pkg/services"
)

type StatusProvider interface {
	Status(ctx context.Context, userID int64) services.Status
}

func Start(provider StatusProvider) bot.HandlerFunc {
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		r, ok := requestOf(ctx, b, update)
		if !ok {
			return
		}

		slog.InfoContext(ctx, "Showing welcome", "userID", r.user.ID)

		status := provider.Status(ctx, r.user.ID)

		text := fmt.Sprintf(`🚀 <b>Welcome to BrahMos AI!</b>

Hey %s! I'm your AI assistant.

🤖 <b>What I can do:</b>
• 💬 Smart conversations
• 🎨 Image generation and photo editing
• 🎤 Text-to-speech
• 👥 Group chats, just mention me or reply to my message

%s`, escape(r.firstName()), statusLine(status))

		keyboard := &models.InlineKeyboardMarkup{
			InlineKeyboard: [][]models.InlineKeyboardButton{{
				{Text: "❓ Help & Features", CallbackData: domain.HelpCallback},
				{Text: "ℹ️ My Info", CallbackData: domain.MyInfoCallback},
			}},
		}
		if !status.Premium {
			keyboard.InlineKeyboard = append(keyboard.InlineKeyboard, []models.InlineKeyboardButton{
				{Text: "💎 Upgrade to Premium", CallbackData: domain.UpgradeCallback},
			})
		}

		if err := sendHTML(ctx, b, r, text, keyboard); err != nil {
			slog.ErrorContext(ctx, "Sending welcome", "err", err)
		}
	}
}

func Help(provider StatusProvider) bot.HandlerFunc {
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		r, ok := requestOf(ctx, b, update)
		if !ok {
			return
		}

		status := provider.Status(ctx, r.user.ID)

		text := fmt.Sprintf(`🚀 <b>BrahMos AI Features</b>

💬 /chat - start a conversation (direct messages)
🆕 /new - forget the conversation
🎨 /image <i>description</i> - generate an image
✏️ /edit <i>instruction</i> - edit the next photo you send
🎤 /say <i>text</i> - text to speech
⚡ /prompt <i>idea</i> - turn an idea into a detailed prompt
ℹ️ /myinfo - your plan and remaining usage
💎 /upgrade - unlimited images and speech
📡 /ping - check the bot

%s`, statusLine(status))

		keyboard := &models.InlineKeyboardMarkup{
			InlineKeyboard: [][]models.InlineKeyboardButton{
				{
					{Text: "💬 Chat", CallbackData: domain.QuickChatCallback},
					{Text: "🎨 Create", CallbackData: domain.QuickImageCallback},
				},
				{
					{Text: "✏️ Edit", CallbackData: domain.QuickEditCallback},
					{Text: "🎤 Speech", CallbackData: domain.QuickTTSCallback},
				},
			},
		}

		if err := sendHTML(ctx, b, r, text, keyboard); err != nil {
			slog.ErrorContext(ctx, "Sending help", "err", err)
		}
	}
}

// Upgrade explains premium and links to whoever grants it.
func Upgrade(contactURL string) bot.HandlerFunc {
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		r, ok := requestOf(ctx, b, update)
		if !ok {
			return
		}

		text := `💎 <b>Upgrade to Premium</b>

🌟 <b>Premium benefits:</b>
• ∞ Unlimited image generations and edits
• ∞ Unlimited text-to-speech

Premium is granted by the bot owners. Send them your user ID from /myinfo.`

		rows := [][]models.InlineKeyboardButton{{
			{Text: "🔙 Back", CallbackData: domain.BackToStartCallback},
		}}
		if contactURL != "" {
			rows = append([][]models.InlineKeyboardButton{{{Text: "📞 Contact Developer", URL: contactURL}}}, rows...)
		}

		if err := sendHTML(ctx, b, r, text, &models.InlineKeyboardMarkup{InlineKeyboard: rows}); err != nil {
			slog.ErrorContext(ctx, "Sending upgrade info", "err", err)
		}
	}
}

func MyInfo(provider StatusProvider) bot.HandlerFunc {
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		r, ok := requestOf(ctx, b, update)
		if !ok {
			return
		}

		reply(ctx, b, r, accountText(r.user, provider.Status(ctx, r.user.ID)))
	}
}

func accountText(user models.User, status services.Status) string {
	username := "none"
	if user.Username != "" {
		username = "@" + user.Username
	}

	plan, access := "Free", "Limited access"
	if status.Premium {
		plan, access = "Premium", "Unlimited access"
	}

	return fmt.Sprintf(`ℹ️ <b>Your Account</b>

👤 <b>Profile</b>
• Name: %s
• Username: %s
• User ID: <code>%d</code>

💎 <b>Subscription:</b> %s

📊 <b>Remaining today</b>
• Images: %s
• Speech: %s

⚡ <b>Status:</b> %s`,
		escape(firstNameOf(user)),
		escape(username),
		user.ID,
		plan,
		remainingText(status.Premium, status.ImagesRemaining, status.ImageLimit),
		remainingText(status.Premium, status.TTSRemaining, status.TTSLimit),
		access,
	)
}

func firstNameOf(user models.User) string {
	if user.FirstName == "" {
		return "Unknown"
	}
	return user.FirstName
}
