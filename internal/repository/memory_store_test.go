package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Etopia1/UberAppBackend/internal/apperr"
	"github.com/Etopia1/UberAppBackend/internal/models"
)

func TestFindConversationByExactParticipantSet(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_, err := s.FindConversationByParticipants(ctx, []string{"a", "b"})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	conv, err := s.CreateConversation(ctx, []string{"a", "b"})
	require.NoError(t, err)

	found, err := s.FindConversationByParticipants(ctx, []string{"b", "a"})
	require.NoError(t, err, "participant order must not matter")
	assert.Equal(t, conv.ID, found.ID)

	_, err = s.FindConversationByParticipants(ctx, []string{"a", "b", "c"})
	assert.ErrorIs(t, err, apperr.ErrNotFound, "superset must not match")
}

func TestIncrementUnreadConcurrently(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	conv, err := s.CreateConversation(ctx, []string{"a", "b"})
	require.NoError(t, err)

	const n = 100
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.IncrementUnread(ctx, conv.ID, "b")
		}()
	}
	wg.Wait()

	got, err := s.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, n, got.UnreadCount["b"], "no lost updates under concurrent arrival")
}

func TestMarkDeliveredBatchSkipsNonPending(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	conv, err := s.CreateConversation(ctx, []string{"a", "b"})
	require.NoError(t, err)

	m1, err := s.InsertMessage(ctx, &models.Message{
		ConversationID: conv.ID, SenderID: "a", ReceiverID: "b", Status: models.StatusSent,
	})
	require.NoError(t, err)

	readAt := time.Now().UTC()
	_, err = s.MarkConversationRead(ctx, conv.ID, "b", readAt)
	require.NoError(t, err)

	// already read: the delivered batch must not regress the status
	require.NoError(t, s.MarkDeliveredBatch(ctx, []string{m1.ID}, time.Now().UTC()))
	got, err := s.GetMessage(ctx, m1.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRead, got.Status)
}

func TestListMessagesPagesFromNewest(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	conv, err := s.CreateConversation(ctx, []string{"a", "b"})
	require.NoError(t, err)

	base := time.Now().UTC()
	for i := 0; i < 5; i++ {
		_, err := s.InsertMessage(ctx, &models.Message{
			ConversationID: conv.ID, SenderID: "a", ReceiverID: "b",
			Content: string(rune('a' + i)), Status: models.StatusSent,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		})
		require.NoError(t, err)
	}

	page1, err := s.ListMessages(ctx, conv.ID, 2, 1)
	require.NoError(t, err)
	require.Len(t, page1, 2)
	assert.Equal(t, "d", page1[0].Content)
	assert.Equal(t, "e", page1[1].Content)

	page3, err := s.ListMessages(ctx, conv.ID, 2, 3)
	require.NoError(t, err)
	require.Len(t, page3, 1)
	assert.Equal(t, "a", page3[0].Content)
}

func TestBlockIsBidirectional(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.SetBlock(ctx, "a", "b", true))
	for _, pair := range [][2]string{{"a", "b"}, {"b", "a"}} {
		blocked, err := s.IsBlocked(ctx, pair[0], pair[1])
		require.NoError(t, err)
		assert.True(t, blocked)
	}

	require.NoError(t, s.SetBlock(ctx, "a", "b", false))
	blocked, err := s.IsBlocked(ctx, "a", "b")
	require.NoError(t, err)
	assert.False(t, blocked)
}

func TestMediaListingExcludesDeleted(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	conv, err := s.CreateConversation(ctx, []string{"a", "b"})
	require.NoError(t, err)

	img, err := s.InsertMessage(ctx, &models.Message{
		ConversationID: conv.ID, SenderID: "a", ReceiverID: "b",
		Kind: models.KindImage, MediaURL: "https://cdn/x.jpg", Status: models.StatusSent,
	})
	require.NoError(t, err)
	_, err = s.InsertMessage(ctx, &models.Message{
		ConversationID: conv.ID, SenderID: "a", ReceiverID: "b",
		Kind: models.KindText, Content: "hi", Status: models.StatusSent,
	})
	require.NoError(t, err)

	media, err := s.ListConversationMedia(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, media, 1)

	deleted := true
	require.NoError(t, s.SetMessageFields(ctx, img.ID, models.MessagePatch{IsDeleted: &deleted}))
	media, err = s.ListConversationMedia(ctx, conv.ID)
	require.NoError(t, err)
	assert.Empty(t, media)
}
