package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Etopia1/UberAppBackend/internal/apperr"
	"github.com/Etopia1/UberAppBackend/internal/models"
)

type MongoStore struct {
	convCol  *mongo.Collection
	msgCol   *mongo.Collection
	blockCol *mongo.Collection
	userCol  *mongo.Collection
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{
		convCol:  db.Collection("conversations"),
		msgCol:   db.Collection("messages"),
		blockCol: db.Collection("blocks"),
		userCol:  db.Collection("users"),
	}
}

// EnsureIndexes creates the lookup indexes the hot paths rely on.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.msgCol.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "conversation_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "receiver_id", Value: 1}, {Key: "status", Value: 1}}},
	})
	if err != nil {
		return err
	}
	_, err = s.convCol.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "participants", Value: 1}},
	})
	if err != nil {
		return err
	}
	_, err = s.blockCol.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "blocker_id", Value: 1}, {Key: "blocked_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, apperr.ErrUnavailable, err)
}

func (s *MongoStore) FindConversationByParticipants(ctx context.Context, ids []string) (*models.Conversation, error) {
	var conv models.Conversation
	err := s.convCol.FindOne(ctx, bson.M{
		"participants": bson.M{"$all": ids, "$size": len(ids)},
	}).Decode(&conv)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, storeErr("find conversation", err)
	}
	return &conv, nil
}

func (s *MongoStore) CreateConversation(ctx context.Context, ids []string) (*models.Conversation, error) {
	now := time.Now().UTC()
	conv := &models.Conversation{
		ID:           uuid.NewString(),
		Participants: ids,
		UnreadCount:  map[string]int{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if _, err := s.convCol.InsertOne(ctx, conv); err != nil {
		return nil, storeErr("create conversation", err)
	}
	return conv, nil
}

func (s *MongoStore) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	var conv models.Conversation
	err := s.convCol.FindOne(ctx, bson.M{"_id": id}).Decode(&conv)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, storeErr("get conversation", err)
	}
	return &conv, nil
}

func (s *MongoStore) ListConversations(ctx context.Context, userID string) ([]*models.Conversation, error) {
	cur, err := s.convCol.Find(ctx, bson.M{"participants": userID},
		options.Find().SetSort(bson.D{{Key: "last_message_time", Value: -1}}))
	if err != nil {
		return nil, storeErr("list conversations", err)
	}
	defer cur.Close(ctx)

	var out []*models.Conversation
	if err := cur.All(ctx, &out); err != nil {
		return nil, storeErr("list conversations", err)
	}
	return out, nil
}

func (s *MongoStore) UpdateConversationPreview(ctx context.Context, id, preview, senderID string, at time.Time) error {
	res, err := s.convCol.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"last_message":        preview,
		"last_message_time":   at,
		"last_message_sender": senderID,
		"updated_at":          at,
	}})
	if err != nil {
		return storeErr("update preview", err)
	}
	if res.MatchedCount == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (s *MongoStore) IncrementUnread(ctx context.Context, id, userID string) error {
	// atomic $inc, not read-modify-write
	_, err := s.convCol.UpdateOne(ctx, bson.M{"_id": id},
		bson.M{"$inc": bson.M{"unread_count." + userID: 1}})
	if err != nil {
		return storeErr("increment unread", err)
	}
	return nil
}

func (s *MongoStore) ResetUnread(ctx context.Context, id, userID string) error {
	_, err := s.convCol.UpdateOne(ctx, bson.M{"_id": id},
		bson.M{"$set": bson.M{"unread_count." + userID: 0}})
	if err != nil {
		return storeErr("reset unread", err)
	}
	return nil
}

func (s *MongoStore) InsertMessage(ctx context.Context, m *models.Message) (*models.Message, error) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	if _, err := s.msgCol.InsertOne(ctx, m); err != nil {
		return nil, storeErr("insert message", err)
	}
	return m, nil
}

func (s *MongoStore) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	var m models.Message
	err := s.msgCol.FindOne(ctx, bson.M{"_id": id}).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, storeErr("get message", err)
	}
	return &m, nil
}

func (s *MongoStore) SetMessageFields(ctx context.Context, id string, patch models.MessagePatch) error {
	set := bson.M{}
	if patch.Content != nil {
		set["content"] = *patch.Content
	}
	if patch.Kind != nil {
		set["kind"] = *patch.Kind
	}
	if patch.MediaURL != nil {
		set["media_url"] = *patch.MediaURL
	}
	if patch.Status != nil {
		set["status"] = *patch.Status
	}
	if patch.IsEdited != nil {
		set["is_edited"] = *patch.IsEdited
	}
	if patch.EditedAt != nil {
		set["edited_at"] = *patch.EditedAt
	}
	if patch.IsDeleted != nil {
		set["is_deleted"] = *patch.IsDeleted
	}
	if patch.DeletedAt != nil {
		set["deleted_at"] = *patch.DeletedAt
	}
	if patch.Reactions != nil {
		set["reactions"] = *patch.Reactions
	}
	if len(set) == 0 {
		return nil
	}
	res, err := s.msgCol.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return storeErr("set message fields", err)
	}
	if res.MatchedCount == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (s *MongoStore) ListMessages(ctx context.Context, convID string, limit, page int64) ([]*models.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	if page <= 0 {
		page = 1
	}
	cur, err := s.msgCol.Find(ctx, bson.M{"conversation_id": convID},
		options.Find().
			SetSort(bson.D{{Key: "created_at", Value: -1}}).
			SetLimit(limit).
			SetSkip((page-1)*limit))
	if err != nil {
		return nil, storeErr("list messages", err)
	}
	defer cur.Close(ctx)

	var out []*models.Message
	if err := cur.All(ctx, &out); err != nil {
		return nil, storeErr("list messages", err)
	}
	// oldest first within the page
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (s *MongoStore) ListConversationMedia(ctx context.Context, convID string) ([]*models.Message, error) {
	cur, err := s.msgCol.Find(ctx, bson.M{
		"conversation_id": convID,
		"kind":            bson.M{"$in": []string{models.KindImage, models.KindVideo, models.KindSticker}},
		"is_deleted":      bson.M{"$ne": true},
	}, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, storeErr("list media", err)
	}
	defer cur.Close(ctx)

	var out []*models.Message
	if err := cur.All(ctx, &out); err != nil {
		return nil, storeErr("list media", err)
	}
	return out, nil
}

func (s *MongoStore) FindPendingMessagesTo(ctx context.Context, userID string) ([]*models.Message, error) {
	cur, err := s.msgCol.Find(ctx, bson.M{"receiver_id": userID, "status": models.StatusSent})
	if err != nil {
		return nil, storeErr("find pending", err)
	}
	defer cur.Close(ctx)

	var out []*models.Message
	if err := cur.All(ctx, &out); err != nil {
		return nil, storeErr("find pending", err)
	}
	return out, nil
}

func (s *MongoStore) MarkDeliveredBatch(ctx context.Context, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.msgCol.UpdateMany(ctx,
		bson.M{"_id": bson.M{"$in": ids}, "status": models.StatusSent},
		bson.M{"$set": bson.M{"status": models.StatusDelivered, "delivered_at": at}})
	if err != nil {
		return storeErr("mark delivered", err)
	}
	return nil
}

func (s *MongoStore) MarkConversationRead(ctx context.Context, convID, userID string, at time.Time) (int64, error) {
	res, err := s.msgCol.UpdateMany(ctx,
		bson.M{"conversation_id": convID, "receiver_id": userID, "read": false},
		bson.M{"$set": bson.M{"read": true, "read_at": at, "status": models.StatusRead}})
	if err != nil {
		return 0, storeErr("mark read", err)
	}
	return res.ModifiedCount, nil
}

func (s *MongoStore) IsBlocked(ctx context.Context, a, b string) (bool, error) {
	err := s.blockCol.FindOne(ctx, bson.M{"$or": []bson.M{
		{"blocker_id": a, "blocked_id": b},
		{"blocker_id": b, "blocked_id": a},
	}}).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, storeErr("is blocked", err)
	}
	return true, nil
}

func (s *MongoStore) SetBlock(ctx context.Context, blockerID, blockedID string, blocked bool) error {
	if blocked {
		_, err := s.blockCol.UpdateOne(ctx,
			bson.M{"blocker_id": blockerID, "blocked_id": blockedID},
			bson.M{"$setOnInsert": bson.M{
				"blocker_id": blockerID,
				"blocked_id": blockedID,
				"created_at": time.Now().UTC(),
			}},
			options.Update().SetUpsert(true))
		if err != nil {
			return storeErr("set block", err)
		}
		return nil
	}
	_, err := s.blockCol.DeleteOne(ctx, bson.M{"blocker_id": blockerID, "blocked_id": blockedID})
	if err != nil {
		return storeErr("unset block", err)
	}
	return nil
}

func (s *MongoStore) SetUserPresence(ctx context.Context, userID string, online bool, lastSeen time.Time) error {
	_, err := s.userCol.UpdateOne(ctx, bson.M{"_id": userID},
		bson.M{"$set": bson.M{"is_online": online, "last_seen": lastSeen}},
		options.Update().SetUpsert(true))
	if err != nil {
		return storeErr("set presence", err)
	}
	return nil
}
