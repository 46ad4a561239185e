package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/samber/lo"

	"github.com/dskvich/brahmos-bot/pkg/domain"
)

type chatCompleter interface {
	Complete(ctx context.Context, turns []domain.Turn) (string, error)
}

type conversationMemory interface {
	Lock(chatID int64) (unlock func())
	Context(chatID int64) []domain.Turn
	Append(chatID int64, turns ...domain.Turn)
	Clear(chatID int64)
}

// ChatRequest is one user message addressed to the assistant.
type ChatRequest struct {
	ChatID   int64
	UserName string
	Text     string
	// Context tells the model how the message reached the bot, for example a reply in a group.
	Context string
}

const enhanceTemplate = `You write prompts for image generation and text-to-speech.
Rewrite the idea below into one vivid, detailed description of at most 500 characters.
For images focus on realism, textures, lighting, mood, depth of field and background details.
For speech focus on natural wording that is easy to pronounce; respect any requested length.
Do not add styles such as anime or cartoon unless the idea asks for them.
Reply with the rewritten prompt only.

Idea: %s`

type chatService struct {
	client       chatCompleter
	memory       conversationMemory
	systemPrompt string
}

func NewChatService(client chatCompleter, memory conversationMemory, systemPrompt string) *chatService {
	return &chatService{
		client:       client,
		memory:       memory,
		systemPrompt: strings.TrimSpace(systemPrompt),
	}
}

// Reply answers a message using the recent turns of the chat and remembers the exchange on success.
// Exchanges of one chat are serialized so concurrent messages cannot interleave in memory.
func (s *chatService) Reply(ctx context.Context, req ChatRequest) (string, error) {
	if strings.TrimSpace(req.Text) == "" {
		return "", ErrEmptyInput
	}

	unlock := s.memory.Lock(req.ChatID)
	defer unlock()

	userTurn := domain.Turn{Role: domain.RoleUser, Content: formatUserMessage(req)}

	turns := s.withSystemPrompt(s.memory.Context(req.ChatID)...)
	turns = append(turns, userTurn)

	slog.InfoContext(ctx, "Requesting chat completion", "chatID", req.ChatID, "turns", len(turns))

	answer, err := s.client.Complete(ctx, turns)
	if err != nil {
		return "", fmt.Errorf("completing chat: %w", err)
	}

	s.memory.Append(req.ChatID, userTurn, domain.Turn{Role: domain.RoleAssistant, Content: answer})

	return answer, nil
}

// EnhancePrompt rewrites a short idea into a detailed prompt. It does not touch conversation memory.
func (s *chatService) EnhancePrompt(ctx context.Context, idea string) (string, error) {
	idea = strings.TrimSpace(idea)
	if idea == "" {
		return "", ErrEmptyInput
	}

	answer, err := s.client.Complete(ctx, s.withSystemPrompt(domain.Turn{
		Role:    domain.RoleUser,
		Content: fmt.Sprintf(enhanceTemplate, idea),
	}))
	if err != nil {
		return "", fmt.Errorf("enhancing prompt: %w", err)
	}

	return strings.Trim(strings.TrimSpace(answer), "`\""), nil
}

func (s *chatService) Forget(chatID int64) {
	s.memory.Clear(chatID)
}

func (s *chatService) withSystemPrompt(turns ...domain.Turn) []domain.Turn {
	out := make([]domain.Turn, 0, len(turns)+2)
	if s.systemPrompt != "" {
		out = append(out, domain.Turn{Role: domain.RoleSystem, Content: s.systemPrompt})
	}
	return append(out, turns...)
}

func formatUserMessage(req ChatRequest) string {
	name := lo.CoalesceOrEmpty(strings.TrimSpace(req.UserName), "User")
	msg := name + ": " + strings.TrimSpace(req.Text)
	if req.Context != "" {
		msg = "[Context: " + req.Context + "] " + msg
	}
	return msg
}
