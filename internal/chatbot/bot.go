// Package chatbot is the Yellow Card assistant: scripted answers first, the
// remote backend for everything else.
package chatbot

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/anonto42/yellowcard/backend/internal/models"
	"github.com/anonto42/yellowcard/backend/internal/repositories"
)

const (
	SenderMember = "member"
	SenderBot    = "bot"

	SourceScript   = "script"
	SourceRemote   = "remote"
	SourceFallback = "fallback"
)

// Responder answers free-form prompts.
type Responder interface {
	Reply(ctx context.Context, text string) (string, error)
}

type Bot struct {
	script *Script
	remote Responder
	chats  repositories.ChatRepository
	logger *slog.Logger
	now    func() time.Time
}

// New builds a Bot. remote may be nil, in which case unmatched prompts get the
// fallback reply.
func New(script *Script, remote Responder, chats repositories.ChatRepository, logger *slog.Logger) *Bot {
	if chats == nil {
		chats = repositories.NopChatRepository{}
	}
	return &Bot{
		script: script,
		remote: remote,
		chats:  chats,
		logger: logger.With("component", "chatbot"),
		now:    time.Now,
	}
}

// Greeting is the first bot message of a conversation.
func (b *Bot) Greeting() models.ChatResponse {
	return models.ChatResponse{
		Message:      b.message("", SenderBot, b.script.Greeting, SourceScript),
		QuickReplies: b.script.QuickReplies,
	}
}

// Respond answers text for uid and records both turns.
func (b *Bot) Respond(ctx context.Context, uid, text string) models.ChatResponse {
	in := b.message(uid, SenderMember, text, "")

	var resp models.ChatResponse
	if rule, ok := b.script.Match(text); ok {
		resp = models.ChatResponse{
			Message:      b.message(uid, SenderBot, rule.Reply, SourceScript),
			QuickReplies: rule.QuickReplies,
		}
	} else {
		resp = models.ChatResponse{Message: b.ask(ctx, uid, text)}
	}

	if err := b.chats.SaveMessages(ctx, in, resp.Message); err != nil {
		b.logger.Error("saving chat transcript failed", "uid", uid, "error", err)
	}
	return resp
}

func (b *Bot) ask(ctx context.Context, uid, text string) models.ChatMessage {
	if b.remote == nil {
		return b.message(uid, SenderBot, b.script.Fallback, SourceFallback)
	}
	reply, err := b.remote.Reply(ctx, text)
	if err != nil {
		b.logger.Error("chatbot backend failed", "uid", uid, "error", err)
		return b.message(uid, SenderBot, b.script.Offline, SourceFallback)
	}
	if reply == "" {
		return b.message(uid, SenderBot, b.script.Fallback, SourceFallback)
	}
	return b.message(uid, SenderBot, reply, SourceRemote)
}

func (b *Bot) message(uid, sender, text, source string) models.ChatMessage {
	return models.ChatMessage{
		ID:        uuid.NewString(),
		UID:       uid,
		Sender:    sender,
		Text:      text,
		Source:    source,
		CreatedAt: b.now().UTC(),
	}
}

// History returns the member's recent transcript.
func (b *Bot) History(ctx context.Context, uid string, limit int64) ([]models.ChatMessage, error) {
	return b.chats.GetConversation(ctx, uid, limit)
}
