package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/dskvich/brahmos-bot/pkg/domain"
	"github.com/dskvich/brahmos-bot/pkg/logger"
	"github.com/dskvich/brahmos-bot/pkg/services"
)

type PremiumManager interface {
	Grant(ctx context.Context, userID int64) (bool, error)
	Revoke(ctx context.Context, userID int64) (bool, error)
}

type UserDirectory interface {
	Users() []services.User
	Stats() services.Stats
	Status(ctx context.Context, userID int64) services.Status
}

type ChatModeCounter interface {
	ChatUsers() int
}

type ConversationCounter interface {
	Chats() int
}

type BalanceProvider interface {
	GetBalanceMessage(ctx context.Context) (string, error)
}

// DebugInfo describes the upstream setup shown by /debug.
type DebugInfo struct {
	ChatURL     string
	ChatModel   string
	ImageURL    string
	ImageModel  string
	EditModel   string
	SpeechURL   string
	SpeechModel string
	Voice       string
	Storage     string
}

func AddPremium(manager PremiumManager) bot.HandlerFunc {
	return changePremium(func(ctx context.Context, userID int64) (string, error) {
		changed, err := manager.Grant(ctx, userID)
		if err != nil {
			return "", err
		}
		if !changed {
			return fmt.Sprintf("ℹ️ User <code>%d</code> is already premium.", userID), nil
		}
		return fmt.Sprintf("✅ User <code>%d</code> is now premium.", userID), nil
	}, "/addpro")
}

func RemovePremium(manager PremiumManager) bot.HandlerFunc {
	return changePremium(func(ctx context.Context, userID int64) (string, error) {
		changed, err := manager.Revoke(ctx, userID)
		if err != nil {
			return "", err
		}
		if !changed {
			return fmt.Sprintf("ℹ️ User <code>%d</code> was not premium.", userID), nil
		}
		return fmt.Sprintf("✅ Premium removed from user <code>%d</code>.", userID), nil
	}, "/removepro")
}

func changePremium(change func(ctx context.Context, userID int64) (string, error), command string) bot.HandlerFunc {
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		r, ok := requestOf(ctx, b, update)
		if !ok {
			return
		}

		userID, err := domain.ParseUserID(commandArgs(r.text))
		if err != nil {
			reply(ctx, b, r, fmt.Sprintf("❌ <b>Usage:</b> <code>%s user_id</code>", command))
			return
		}

		text, err := change(ctx, userID)
		if err != nil {
			slog.ErrorContext(ctx, "Changing premium", "userID", userID, logger.Err(err))
			reply(ctx, b, r, "❌ The change was applied but could not be saved. Check the logs.")
			return
		}

		reply(ctx, b, r, text)
	}
}

func AllUsers(directory UserDirectory) bot.HandlerFunc {
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		r, ok := requestOf(ctx, b, update)
		if !ok {
			return
		}

		users := directory.Users()
		if len(users) == 0 {
			reply(ctx, b, r, "👥 Nobody has used the bot since the last restart.")
			return
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "👥 <b>Users since restart: %d</b>\n\n", len(users))
		for i, u := range users {
			mark := ""
			if directory.Status(ctx, u.ID).Premium {
				mark = " 💎"
			}
			name := escape(firstNameOf(models.User{FirstName: u.FirstName}))
			if u.Username != "" {
				name += " (@" + escape(u.Username) + ")"
			}
			fmt.Fprintf(&sb, "%d. %s - <code>%d</code>%s\n", i+1, name, u.ID, mark)
		}

		reply(ctx, b, r, sb.String())
	}
}

func Stats(directory UserDirectory, chatMode ChatModeCounter, conversations ConversationCounter, balance BalanceProvider, startedAt time.Time) bot.HandlerFunc {
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		r, ok := requestOf(ctx, b, update)
		if !ok {
			return
		}

		stats := directory.Stats()
		text := fmt.Sprintf(`📊 <b>Bot Statistics</b>

👥 Users since restart: %d
💎 Premium users: %d
💬 Chat mode users: %d
🧠 Conversations in memory: %d
⏱ Uptime: %s`,
			stats.Users, stats.PremiumUsers, chatMode.ChatUsers(), conversations.Chats(), uptime(startedAt))

		if balance != nil {
			msg, err := balance.GetBalanceMessage(ctx)
			if err != nil {
				slog.WarnContext(ctx, "Fetching hosting balance", logger.Err(err))
			} else {
				text += "\n\n<pre>" + escape(msg) + "</pre>"
			}
		}

		reply(ctx, b, r, text)
	}
}

func Debug(info DebugInfo) bot.HandlerFunc {
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		r, ok := requestOf(ctx, b, update)
		if !ok {
			return
		}

		reply(ctx, b, r, fmt.Sprintf(`🔧 <b>Debug</b>

<b>Chat:</b> <code>%s</code> (%s)
<b>Images:</b> <code>%s</code> (%s, edits %s)
<b>Speech:</b> <code>%s</code> (%s, voice %s)
<b>Storage:</b> %s`,
			escape(info.ChatURL), escape(info.ChatModel),
			escape(info.ImageURL), escape(info.ImageModel), escape(info.EditModel),
			escape(info.SpeechURL), escape(info.SpeechModel), escape(info.Voice),
			escape(info.Storage)))
	}
}

func Ping(startedAt time.Time) bot.HandlerFunc {
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		r, ok := requestOf(ctx, b, update)
		if !ok {
			return
		}

		start := time.Now()
		_, err := b.GetMe(ctx)
		latency := time.Since(start)

		status := "✅ Online"
		if err != nil {
			slog.WarnContext(ctx, "Telegram API ping failed", logger.Err(err))
			status = "⚠️ Telegram API unreachable"
		}

		reply(ctx, b, r, fmt.Sprintf("🏓 <b>Pong!</b>\n\n⚡ Latency: %d ms\n⏱ Uptime: %s\n📡 Status: %s",
			latency.Milliseconds(), uptime(startedAt), status))
	}
}

func uptime(startedAt time.Time) string {
	return time.Since(startedAt).Truncate(time.Second).String()
}
