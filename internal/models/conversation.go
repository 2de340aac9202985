package models

import "time"

type Conversation struct {
	ID                string         `bson:"_id,omitempty" json:"id"`
	Participants      []string       `bson:"participants" json:"participants"`
	LastMessage       string         `bson:"last_message" json:"lastMessage"`
	LastMessageTime   time.Time      `bson:"last_message_time" json:"lastMessageTime"`
	LastMessageSender string         `bson:"last_message_sender,omitempty" json:"lastMessageSender,omitempty"`
	UnreadCount       map[string]int `bson:"unread_count" json:"unreadCount"`
	CreatedAt         time.Time      `bson:"created_at" json:"createdAt"`
	UpdatedAt         time.Time      `bson:"updated_at" json:"updatedAt"`
}

// Other returns the participant that is not userID, for direct
// conversations.
func (c *Conversation) Other(userID string) string {
	for _, p := range c.Participants {
		if p != userID {
			return p
		}
	}
	return ""
}

type Block struct {
	BlockerID string    `bson:"blocker_id" json:"blockerId"`
	BlockedID string    `bson:"blocked_id" json:"blockedId"`
	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
}

type Presence struct {
	UserID   string    `bson:"_id" json:"userId"`
	IsOnline bool      `bson:"is_online" json:"isOnline"`
	LastSeen time.Time `bson:"last_seen" json:"lastSeen"`
}
