package models

import "time"

// Message kinds, matching the wire protocol values.
const (
	KindText       = "text"
	KindImage      = "image"
	KindVideo      = "video"
	KindAudio      = "audio"
	KindDocument   = "document"
	KindLocation   = "location"
	KindCall       = "call"
	KindMissedCall = "missed_call"
	KindSticker    = "sticker"
)

// Delivery states on the sent -> delivered -> read axis.
const (
	StatusSent      = "sent"
	StatusDelivered = "delivered"
	StatusRead      = "read"
)

// DeletedPlaceholder replaces the content of soft-deleted messages.
const DeletedPlaceholder = "🚫 This message was deleted"

type Reaction struct {
	UserID    string    `bson:"user_id" json:"userId"`
	Emoji     string    `bson:"emoji" json:"emoji"`
	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
}

type Location struct {
	Latitude  float64 `bson:"latitude" json:"latitude"`
	Longitude float64 `bson:"longitude" json:"longitude"`
	Address   string  `bson:"address,omitempty" json:"address,omitempty"`
}

type Message struct {
	ID             string     `bson:"_id,omitempty" json:"id"`
	ConversationID string     `bson:"conversation_id" json:"conversationId"`
	SenderID       string     `bson:"sender_id" json:"senderId"`
	ReceiverID     string     `bson:"receiver_id" json:"receiverId"`
	Content        string     `bson:"content" json:"content"`
	Kind           string     `bson:"kind" json:"kind"`
	Status         string     `bson:"status" json:"status"`
	MediaURL       string     `bson:"media_url,omitempty" json:"mediaUrl,omitempty"`
	MediaThumbnail string     `bson:"media_thumbnail,omitempty" json:"mediaThumbnail,omitempty"`
	MediaDuration  int        `bson:"media_duration,omitempty" json:"mediaDuration,omitempty"`
	DocumentName   string     `bson:"document_name,omitempty" json:"documentName,omitempty"`
	Location       *Location  `bson:"location,omitempty" json:"location,omitempty"`
	ReplyTo        string     `bson:"reply_to,omitempty" json:"replyTo,omitempty"`
	ForwardedFrom  string     `bson:"forwarded_from,omitempty" json:"forwardedFrom,omitempty"`
	Reactions      []Reaction `bson:"reactions,omitempty" json:"reactions,omitempty"`
	IsEdited       bool       `bson:"is_edited" json:"isEdited"`
	EditedAt       *time.Time `bson:"edited_at,omitempty" json:"editedAt,omitempty"`
	IsDeleted      bool       `bson:"is_deleted" json:"isDeleted"`
	DeletedAt      *time.Time `bson:"deleted_at,omitempty" json:"deletedAt,omitempty"`
	Read           bool       `bson:"read" json:"read"`
	ReadAt         *time.Time `bson:"read_at,omitempty" json:"readAt,omitempty"`
	DeliveredAt    *time.Time `bson:"delivered_at,omitempty" json:"deliveredAt,omitempty"`
	CreatedAt      time.Time  `bson:"created_at" json:"createdAt"`
}

// MessagePatch carries the fields a lifecycle transition may set.
// Nil pointers are left untouched by the store.
type MessagePatch struct {
	Content   *string
	Kind      *string
	MediaURL  *string
	Status    *string
	IsEdited  *bool
	EditedAt  *time.Time
	IsDeleted *bool
	DeletedAt *time.Time
	Reactions *[]Reaction
}
