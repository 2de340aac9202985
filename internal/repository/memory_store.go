package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Etopia1/UberAppBackend/internal/apperr"
	"github.com/Etopia1/UberAppBackend/internal/models"
)

// MemoryStore is a Store kept entirely in process memory. It backs
// tests and local runs without a Mongo instance.
type MemoryStore struct {
	mu       sync.RWMutex
	convs    map[string]*models.Conversation
	messages map[string]*models.Message
	blocks   map[[2]string]struct{}
	presence map[string]*models.Presence
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		convs:    make(map[string]*models.Conversation),
		messages: make(map[string]*models.Message),
		blocks:   make(map[[2]string]struct{}),
		presence: make(map[string]*models.Presence),
	}
}

func sameParticipants(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]struct{}, len(a))
	for _, id := range a {
		set[id] = struct{}{}
	}
	for _, id := range b {
		if _, ok := set[id]; !ok {
			return false
		}
	}
	return true
}

func copyConv(c *models.Conversation) *models.Conversation {
	out := *c
	out.Participants = append([]string(nil), c.Participants...)
	out.UnreadCount = make(map[string]int, len(c.UnreadCount))
	for k, v := range c.UnreadCount {
		out.UnreadCount[k] = v
	}
	return &out
}

func copyMsg(m *models.Message) *models.Message {
	out := *m
	out.Reactions = append([]models.Reaction(nil), m.Reactions...)
	return &out
}

func (s *MemoryStore) FindConversationByParticipants(_ context.Context, ids []string) (*models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.convs {
		if sameParticipants(c.Participants, ids) {
			return copyConv(c), nil
		}
	}
	return nil, apperr.ErrNotFound
}

func (s *MemoryStore) CreateConversation(_ context.Context, ids []string) (*models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	c := &models.Conversation{
		ID:           uuid.NewString(),
		Participants: append([]string(nil), ids...),
		UnreadCount:  map[string]int{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.convs[c.ID] = c
	return copyConv(c), nil
}

func (s *MemoryStore) GetConversation(_ context.Context, id string) (*models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.convs[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return copyConv(c), nil
}

func (s *MemoryStore) ListConversations(_ context.Context, userID string) ([]*models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Conversation
	for _, c := range s.convs {
		for _, p := range c.Participants {
			if p == userID {
				out = append(out, copyConv(c))
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastMessageTime.After(out[j].LastMessageTime)
	})
	return out, nil
}

func (s *MemoryStore) UpdateConversationPreview(_ context.Context, id, preview, senderID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.convs[id]
	if !ok {
		return apperr.ErrNotFound
	}
	c.LastMessage = preview
	c.LastMessageTime = at
	c.LastMessageSender = senderID
	c.UpdatedAt = at
	return nil
}

func (s *MemoryStore) IncrementUnread(_ context.Context, id, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.convs[id]
	if !ok {
		return apperr.ErrNotFound
	}
	c.UnreadCount[userID]++
	return nil
}

func (s *MemoryStore) ResetUnread(_ context.Context, id, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.convs[id]
	if !ok {
		return apperr.ErrNotFound
	}
	c.UnreadCount[userID] = 0
	return nil
}

func (s *MemoryStore) InsertMessage(_ context.Context, m *models.Message) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := copyMsg(m)
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	s.messages[stored.ID] = stored
	return copyMsg(stored), nil
}

func (s *MemoryStore) GetMessage(_ context.Context, id string) (*models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.messages[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return copyMsg(m), nil
}

func (s *MemoryStore) SetMessageFields(_ context.Context, id string, patch models.MessagePatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id]
	if !ok {
		return apperr.ErrNotFound
	}
	if patch.Content != nil {
		m.Content = *patch.Content
	}
	if patch.Kind != nil {
		m.Kind = *patch.Kind
	}
	if patch.MediaURL != nil {
		m.MediaURL = *patch.MediaURL
	}
	if patch.Status != nil {
		m.Status = *patch.Status
	}
	if patch.IsEdited != nil {
		m.IsEdited = *patch.IsEdited
	}
	if patch.EditedAt != nil {
		at := *patch.EditedAt
		m.EditedAt = &at
	}
	if patch.IsDeleted != nil {
		m.IsDeleted = *patch.IsDeleted
	}
	if patch.DeletedAt != nil {
		at := *patch.DeletedAt
		m.DeletedAt = &at
	}
	if patch.Reactions != nil {
		m.Reactions = append([]models.Reaction(nil), (*patch.Reactions)...)
	}
	return nil
}

func (s *MemoryStore) ListMessages(_ context.Context, convID string, limit, page int64) ([]*models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var all []*models.Message
	for _, m := range s.messages {
		if m.ConversationID == convID {
			all = append(all, m)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.Before(all[j].CreatedAt) })
	if limit <= 0 {
		limit = 50
	}
	if page <= 0 {
		page = 1
	}
	// page counts back from the newest
	end := int64(len(all)) - (page-1)*limit
	if end <= 0 {
		return nil, nil
	}
	start := end - limit
	if start < 0 {
		start = 0
	}
	out := make([]*models.Message, 0, end-start)
	for _, m := range all[start:end] {
		out = append(out, copyMsg(m))
	}
	return out, nil
}

func (s *MemoryStore) ListConversationMedia(_ context.Context, convID string) ([]*models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Message
	for _, m := range s.messages {
		if m.ConversationID != convID || m.IsDeleted {
			continue
		}
		switch m.Kind {
		case models.KindImage, models.KindVideo, models.KindSticker:
			out = append(out, copyMsg(m))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) FindPendingMessagesTo(_ context.Context, userID string) ([]*models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Message
	for _, m := range s.messages {
		if m.ReceiverID == userID && m.Status == models.StatusSent {
			out = append(out, copyMsg(m))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) MarkDeliveredBatch(_ context.Context, ids []string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		if m, ok := s.messages[id]; ok && m.Status == models.StatusSent {
			m.Status = models.StatusDelivered
			t := at
			m.DeliveredAt = &t
		}
	}
	return nil
}

func (s *MemoryStore) MarkConversationRead(_ context.Context, convID, userID string, at time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, m := range s.messages {
		if m.ConversationID == convID && m.ReceiverID == userID && !m.Read {
			m.Read = true
			t := at
			m.ReadAt = &t
			m.Status = models.StatusRead
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) IsBlocked(_ context.Context, a, b string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.blocks[[2]string{a, b}]; ok {
		return true, nil
	}
	_, ok := s.blocks[[2]string{b, a}]
	return ok, nil
}

func (s *MemoryStore) SetBlock(_ context.Context, blockerID, blockedID string, blocked bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := [2]string{blockerID, blockedID}
	if blocked {
		s.blocks[key] = struct{}{}
	} else {
		delete(s.blocks, key)
	}
	return nil
}

func (s *MemoryStore) SetUserPresence(_ context.Context, userID string, online bool, lastSeen time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.presence[userID] = &models.Presence{UserID: userID, IsOnline: online, LastSeen: lastSeen}
	return nil
}

// GetUserPresence reads back what SetUserPresence stored. Test helper.
func (s *MemoryStore) GetUserPresence(userID string) (*models.Presence, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.presence[userID]
	if !ok {
		return nil, false
	}
	out := *p
	return &out, true
}
