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
	"github.com/dskvich/brahmos-bot/pkg/logger"
	"github.com/dskvich/brahmos-bot/pkg/services"
)

type ImageMaker interface {
	Generate(ctx context.Context, userID int64, prompt string) (services.ImageResult, error)
	Edit(ctx context.Context, userID int64, image []byte, instruction string) (services.ImageResult, error)
}

type PendingStore interface {
	SetPending(userID int64, p domain.Pending) error
	TakePending(userID int64, kind domain.PendingKind) (domain.Pending, bool)
}

type FileDownloader interface {
	Download(ctx context.Context, url string) ([]byte, error)
}

const imageHelp = `🎨 <b>Image Generation</b>

<b>Usage:</b> <code>/image description</code>

<b>Examples:</b>
• <code>/image cyberpunk samurai warrior</code>
• <code>/image sunset over mountains</code>
• <code>/image cute cat in a space suit</code>

💡 Be descriptive for better results!`

const editHelp = `✏️ <b>Photo Editing</b>

<b>Step 1:</b> <code>/edit instruction</code>
<b>Step 2:</b> send the photo you want to edit

<b>Examples:</b>
• <code>/edit make it darker and more dramatic</code>
• <code>/edit add sunglasses and a hat</code>
• <code>/edit change the background to a beach</code>`

func GenerateImage(maker ImageMaker) bot.HandlerFunc {
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		r, ok := requestOf(ctx, b, update)
		if !ok {
			return
		}

		prompt := commandArgs(r.text)
		if prompt == "" {
			reply(ctx, b, r, imageHelp)
			return
		}

		generate(ctx, b, r, maker, prompt)
	}
}

// ImageFromPending generates an image from the text a user sent after pressing Create.
func ImageFromPending(maker ImageMaker, store PendingStore) bot.HandlerFunc {
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		r, ok := requestOf(ctx, b, update)
		if !ok {
			return
		}

		if _, ok := store.TakePending(r.user.ID, domain.PendingImagePrompt); !ok {
			slog.DebugContext(ctx, "Image prompt already taken", "userID", r.user.ID)
			return
		}

		generate(ctx, b, r, maker, r.text)
	}
}

func generate(ctx context.Context, b *bot.Bot, r request, maker ImageMaker, prompt string) {
	res, err := maker.Generate(ctx, r.user.ID, prompt)
	if err != nil {
		sendFailure(ctx, b, r, err)
		return
	}

	sendImage(ctx, b, r, res, "Generated Image", "Prompt", prompt)
}

func AskImagePrompt(store PendingStore) bot.HandlerFunc {
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		r, ok := requestOf(ctx, b, update)
		if !ok {
			return
		}

		if err := store.SetPending(r.user.ID, domain.Pending{Kind: domain.PendingImagePrompt}); err != nil {
			sendFailure(ctx, b, r, err)
			return
		}

		reply(ctx, b, r, "🎨 <b>Image mode!</b>\n\nSend me a description of the image you want.")
	}
}

// RequestEdit remembers the instruction until the user sends a photo.
func RequestEdit(store PendingStore) bot.HandlerFunc {
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		r, ok := requestOf(ctx, b, update)
		if !ok {
			return
		}

		instruction := commandArgs(r.text)
		if instruction == "" {
			reply(ctx, b, r, editHelp)
			return
		}

		if err := store.SetPending(r.user.ID, domain.Pending{Kind: domain.PendingEditPhoto, Payload: instruction}); err != nil {
			sendFailure(ctx, b, r, err)
			return
		}

		reply(ctx, b, r, fmt.Sprintf("📷 <b>Ready to edit!</b>\n\n<b>Instruction:</b> <code>%s</code>\n\nNow send me the photo you want to edit.",
			escape(truncate(instruction, maxCaptionPrompt))))
	}
}

func EditHelp() bot.HandlerFunc {
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		r, ok := requestOf(ctx, b, update)
		if !ok {
			return
		}
		reply(ctx, b, r, editHelp)
	}
}

func EditPhoto(maker ImageMaker, store PendingStore, downloader FileDownloader) bot.HandlerFunc {
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		r, ok := requestOf(ctx, b, update)
		if !ok || len(r.photos) == 0 {
			return
		}

		pending, ok := store.TakePending(r.user.ID, domain.PendingEditPhoto)
		if !ok {
			return
		}

		largest := r.photos[len(r.photos)-1]
		file, err := b.GetFile(ctx, &bot.GetFileParams{FileID: largest.FileID})
		if err != nil {
			sendFailure(ctx, b, r, fmt.Errorf("getting photo metadata: %w", err))
			return
		}

		photo, err := downloader.Download(ctx, b.FileDownloadLink(file))
		if err != nil {
			sendFailure(ctx, b, r, fmt.Errorf("downloading photo: %w", err))
			return
		}

		slog.InfoContext(ctx, "Editing photo", "userID", r.user.ID, "size", len(photo))

		res, err := maker.Edit(ctx, r.user.ID, photo, pending.Payload)
		if err != nil {
			sendFailure(ctx, b, r, err)
			return
		}

		sendImage(ctx, b, r, res, "Edited Image", "Edit", pending.Payload)
	}
}

func sendImage(ctx context.Context, b *bot.Bot, r request, res services.ImageResult, title, label, prompt string) {
	caption := fmt.Sprintf("🎨 <b>%s</b>\n\n📝 <b>%s:</b> <code>%s</code>\n\n✨ <i>Created by BrahMos AI</i>\n\n%s",
		title, label, escape(truncate(prompt, maxCaptionPrompt)), quotaLine(res.Premium, res.Remaining, res.Limit))

	params := &bot.SendPhotoParams{
		ChatID:          r.chatID,
		MessageThreadID: r.topicID,
		Photo: &models.InputFileUpload{
			Filename: uuid.NewString() + ".png",
			Data:     bytes.NewReader(res.Image),
		},
		Caption:         caption,
		ParseMode:       models.ParseModeHTML,
		ReplyParameters: r.replyParameters(),
	}

	if _, err := b.SendPhoto(ctx, params); err != nil {
		slog.WarnContext(ctx, "Photo with caption rejected, retrying without it", logger.Err(err))

		params.Photo = &models.InputFileUpload{Filename: uuid.NewString() + ".png", Data: bytes.NewReader(res.Image)}
		params.Caption, params.ParseMode = "", ""
		if _, err := b.SendPhoto(ctx, params); err != nil {
			sendFailure(ctx, b, r, fmt.Errorf("sending photo: %w", err))
			return
		}
	}

	if notice := lowQuotaNotice(res.Premium, res.Remaining, "image generations"); notice != "" {
		reply(ctx, b, r, notice)
	}
}
