// Package chat owns the message lifecycle: creation, delivery and read
// marking, edits, soft deletes and reaction toggles, plus the
// conversation aggregates they maintain.
package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Etopia1/UberAppBackend/internal/apperr"
	"github.com/Etopia1/UberAppBackend/internal/models"
	"github.com/Etopia1/UberAppBackend/internal/repository"
)

// Publisher emits lifecycle events to the event stream. Best-effort:
// failures are logged, never surfaced to the sender.
type Publisher interface {
	PublishMessageSent(ctx context.Context, conversationID string, payload any) error
}

type Engine struct {
	store repository.Store
	pub   Publisher
	log   *zap.SugaredLogger
}

func NewEngine(store repository.Store, pub Publisher, log *zap.SugaredLogger) *Engine {
	return &Engine{store: store, pub: pub, log: log}
}

type SendInput struct {
	ConversationID string
	SenderID       string
	ReceiverID     string
	Content        string
	Kind           string
	MediaURL       string
	MediaDuration  int
	Location       *models.Location
	ReplyTo        string
}

func preview(kind, content string) string {
	if kind == models.KindText {
		return content
	}
	return "📷 " + kind
}

// Send persists a new message in sent state and updates the owning
// conversation's denormalized preview and unread counter. When no
// conversation id is supplied the direct conversation for the sender/
// receiver pair is resolved, creating it on first exchange.
func (e *Engine) Send(ctx context.Context, in SendInput) (*models.Message, error) {
	if in.Kind == "" {
		in.Kind = models.KindText
	}
	conv, err := e.resolveConversation(ctx, in.ConversationID, in.SenderID, in.ReceiverID)
	if err != nil {
		return nil, err
	}

	m := &models.Message{
		ConversationID: conv.ID,
		SenderID:       in.SenderID,
		ReceiverID:     in.ReceiverID,
		Content:        in.Content,
		Kind:           in.Kind,
		Status:         models.StatusSent,
		MediaURL:       in.MediaURL,
		MediaDuration:  in.MediaDuration,
		Location:       in.Location,
		ReplyTo:        in.ReplyTo,
		CreatedAt:      time.Now().UTC(),
	}
	m, err = e.store.InsertMessage(ctx, m)
	if err != nil {
		return nil, err
	}

	if err := e.store.UpdateConversationPreview(ctx, conv.ID, preview(in.Kind, in.Content), in.SenderID, m.CreatedAt); err != nil {
		return nil, err
	}
	if err := e.store.IncrementUnread(ctx, conv.ID, in.ReceiverID); err != nil {
		return nil, err
	}

	if e.pub != nil {
		if err := e.pub.PublishMessageSent(ctx, conv.ID, m); err != nil {
			e.log.Warnw("publish message_sent", "message", m.ID, "err", err)
		}
	}
	return m, nil
}

func (e *Engine) resolveConversation(ctx context.Context, id, senderID, receiverID string) (*models.Conversation, error) {
	if id != "" {
		return e.store.GetConversation(ctx, id)
	}
	conv, err := e.store.FindConversationByParticipants(ctx, []string{senderID, receiverID})
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}
	return e.store.CreateConversation(ctx, []string{senderID, receiverID})
}

// Edit replaces the content of actor's own, non-deleted message.
func (e *Engine) Edit(ctx context.Context, messageID, actorID, newContent string) (*models.Message, error) {
	m, err := e.store.GetMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if m.SenderID != actorID {
		return nil, fmt.Errorf("edit message %s: %w", messageID, apperr.ErrForbidden)
	}
	if m.IsDeleted {
		return nil, fmt.Errorf("edit deleted message %s: %w", messageID, apperr.ErrInvalidState)
	}
	now := time.Now().UTC()
	edited := true
	if err := e.store.SetMessageFields(ctx, messageID, models.MessagePatch{
		Content:  &newContent,
		IsEdited: &edited,
		EditedAt: &now,
	}); err != nil {
		return nil, err
	}
	m.Content = newContent
	m.IsEdited = true
	m.EditedAt = &now
	return m, nil
}

// SoftDelete replaces the message content with the fixed placeholder
// and clears media. Deletion is logical; the document stays.
func (e *Engine) SoftDelete(ctx context.Context, messageID, actorID string) (*models.Message, error) {
	m, err := e.store.GetMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if m.SenderID != actorID {
		return nil, fmt.Errorf("delete message %s: %w", messageID, apperr.ErrForbidden)
	}
	now := time.Now().UTC()
	placeholder := models.DeletedPlaceholder
	kind := models.KindText
	empty := ""
	deleted := true
	if err := e.store.SetMessageFields(ctx, messageID, models.MessagePatch{
		Content:   &placeholder,
		Kind:      &kind,
		MediaURL:  &empty,
		IsDeleted: &deleted,
		DeletedAt: &now,
	}); err != nil {
		return nil, err
	}
	m.Content = placeholder
	m.Kind = models.KindText
	m.MediaURL = ""
	m.IsDeleted = true
	m.DeletedAt = &now
	return m, nil
}

// React toggles the (actor, emoji) reaction: present -> removed,
// absent -> added. Returns the updated message and the action taken.
func (e *Engine) React(ctx context.Context, messageID, actorID, emoji string) (*models.Message, string, error) {
	m, err := e.store.GetMessage(ctx, messageID)
	if err != nil {
		return nil, "", err
	}
	action := "added"
	idx := -1
	for i, r := range m.Reactions {
		if r.UserID == actorID && r.Emoji == emoji {
			idx = i
			break
		}
	}
	if idx >= 0 {
		m.Reactions = append(m.Reactions[:idx], m.Reactions[idx+1:]...)
		action = "removed"
	} else {
		m.Reactions = append(m.Reactions, models.Reaction{
			UserID:    actorID,
			Emoji:     emoji,
			CreatedAt: time.Now().UTC(),
		})
	}
	if err := e.store.SetMessageFields(ctx, messageID, models.MessagePatch{Reactions: &m.Reactions}); err != nil {
		return nil, "", err
	}
	return m, action, nil
}

// MarkConversationRead flips every unread message addressed to actor
// in the conversation to read and zeroes the actor's unread counter.
// Idempotent: a second call finds nothing unread and changes nothing.
func (e *Engine) MarkConversationRead(ctx context.Context, convID, actorID string) (int64, error) {
	if _, err := e.store.GetConversation(ctx, convID); err != nil {
		return 0, err
	}
	n, err := e.store.MarkConversationRead(ctx, convID, actorID, time.Now().UTC())
	if err != nil {
		return 0, err
	}
	if err := e.store.ResetUnread(ctx, convID, actorID); err != nil {
		return 0, err
	}
	return n, nil
}

// LogCall records a call or missed_call message in the direct
// conversation between from and to, if one exists. Used by the
// signaling relay; callers treat failure as non-fatal.
func (e *Engine) LogCall(ctx context.Context, from, to, kind string) (*models.Message, error) {
	conv, err := e.store.FindConversationByParticipants(ctx, []string{from, to})
	if err != nil {
		return nil, err
	}
	content := "📞 Call Started"
	if kind == models.KindMissedCall {
		content = "📱 Missed Call"
	}
	return e.store.InsertMessage(ctx, &models.Message{
		ConversationID: conv.ID,
		SenderID:       from,
		ReceiverID:     to,
		Content:        content,
		Kind:           kind,
		Status:         models.StatusSent,
		CreatedAt:      time.Now().UTC(),
	})
}
