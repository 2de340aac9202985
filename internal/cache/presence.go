// Package cache mirrors presence state into Redis so other instances
// and the REST surface can read it without touching the registry.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type PresenceStore struct {
	client *redis.Client
	prefix string
}

type presenceDoc struct {
	Status   string `json:"status"`
	LastSeen int64  `json:"last_seen"`
}

func NewPresenceStore(client *redis.Client, prefix string) *PresenceStore {
	return &PresenceStore{client: client, prefix: prefix}
}

func (s *PresenceStore) key(userID string) string {
	return fmt.Sprintf("%s:presence:%s", s.prefix, userID)
}

func (s *PresenceStore) SetPresence(ctx context.Context, userID string, online bool, lastSeen time.Time) error {
	doc := presenceDoc{Status: "offline", LastSeen: lastSeen.Unix()}
	if online {
		doc.Status = "online"
	}
	b, _ := json.Marshal(doc)
	return s.client.Set(ctx, s.key(userID), b, 0).Err()
}

func (s *PresenceStore) GetPresence(ctx context.Context, userID string) (online bool, lastSeen time.Time, err error) {
	b, err := s.client.Get(ctx, s.key(userID)).Bytes()
	if err != nil {
		return false, time.Time{}, err
	}
	var doc presenceDoc
	if err := json.Unmarshal(b, &doc); err != nil {
		return false, time.Time{}, err
	}
	return doc.Status == "online", time.Unix(doc.LastSeen, 0).UTC(), nil
}
