package handlers

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/google/uuid"

	"github.com/dskvich/brahmos-bot/pkg/domain"
	"github.com/dskvich/brahmos-bot/pkg/services"
)

type Speaker interface {
	Synthesize(ctx context.Context, userID int64, text string) (services.SpeechResult, error)
}

const sayHelp = `🎤 <b>Text-to-Speech</b>

<b>Usage:</b> <code>/say text</code>

<b>Example:</b> <code>/say Hello, welcome to BrahMos AI!</code>`

func Say(speaker Speaker) bot.HandlerFunc {
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		r, ok := requestOf(ctx, b, update)
		if !ok {
			return
		}

		text := commandArgs(r.text)
		if text == "" {
			reply(ctx, b, r, sayHelp)
			return
		}

		speak(ctx, b, r, speaker, text)
	}
}

// SpeechFromPending reads out the text a user sent after pressing Speech.
func SpeechFromPending(speaker Speaker, store PendingStore) bot.HandlerFunc {
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		r, ok := requestOf(ctx, b, update)
		if !ok {
			return
		}

		if _, ok := store.TakePending(r.user.ID, domain.PendingSpeechText); !ok {
			slog.DebugContext(ctx, "Speech text already taken", "userID", r.user.ID)
			return
		}

		speak(ctx, b, r, speaker, r.text)
	}
}

func AskSpeechText(store PendingStore) bot.HandlerFunc {
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		r, ok := requestOf(ctx, b, update)
		if !ok {
			return
		}

		if err := store.SetPending(r.user.ID, domain.Pending{Kind: domain.PendingSpeechText}); err != nil {
			sendFailure(ctx, b, r, err)
			return
		}

		reply(ctx, b, r, "🎤 <b>Speech mode!</b>\n\nSend me the text you want to hear.")
	}
}

func speak(ctx context.Context, b *bot.Bot, r request, speaker Speaker, text string) {
	res, err := speaker.Synthesize(ctx, r.user.ID, text)
	if err != nil {
		sendFailure(ctx, b, r, err)
		return
	}

	_, err = b.SendAudio(ctx, &bot.SendAudioParams{
		ChatID:          r.chatID,
		MessageThreadID: r.topicID,
		Audio: &models.InputFileUpload{
			Filename: uuid.NewString() + ".mp3",
			Data:     bytes.NewReader(res.Audio),
		},
		Title:           "BrahMos AI",
		Caption:         "🎤 " + quotaLine(res.Premium, res.Remaining, res.Limit),
		ReplyParameters: r.replyParameters(),
	})
	if err != nil {
		sendFailure(ctx, b, r, fmt.Errorf("sending audio: %w", err))
		return
	}

	if notice := lowQuotaNotice(res.Premium, res.Remaining, "speech conversions"); notice != "" {
		reply(ctx, b, r, notice)
	}
}
