// Package repository is the boundary to the collaborator data layer
// that owns durable copies of conversations, messages, blocks and user
// presence. Every method is a single-entity atomic operation.
package repository

import (
	"context"
	"time"

	"github.com/Etopia1/UberAppBackend/internal/models"
)

type Store interface {
	FindConversationByParticipants(ctx context.Context, ids []string) (*models.Conversation, error)
	CreateConversation(ctx context.Context, ids []string) (*models.Conversation, error)
	GetConversation(ctx context.Context, id string) (*models.Conversation, error)
	ListConversations(ctx context.Context, userID string) ([]*models.Conversation, error)
	UpdateConversationPreview(ctx context.Context, id, preview, senderID string, at time.Time) error
	IncrementUnread(ctx context.Context, id, userID string) error
	ResetUnread(ctx context.Context, id, userID string) error

	InsertMessage(ctx context.Context, m *models.Message) (*models.Message, error)
	GetMessage(ctx context.Context, id string) (*models.Message, error)
	SetMessageFields(ctx context.Context, id string, patch models.MessagePatch) error
	ListMessages(ctx context.Context, convID string, limit, page int64) ([]*models.Message, error)
	ListConversationMedia(ctx context.Context, convID string) ([]*models.Message, error)
	FindPendingMessagesTo(ctx context.Context, userID string) ([]*models.Message, error)
	MarkDeliveredBatch(ctx context.Context, ids []string, at time.Time) error
	MarkConversationRead(ctx context.Context, convID, userID string, at time.Time) (int64, error)

	IsBlocked(ctx context.Context, a, b string) (bool, error)
	SetBlock(ctx context.Context, blockerID, blockedID string, blocked bool) error

	SetUserPresence(ctx context.Context, userID string, online bool, lastSeen time.Time) error
}
