// Package events defines the wire protocol of the realtime core: a
// closed set of tagged payloads exchanged over a connection as
// {"event": <name>, "data": <payload>} envelopes.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Etopia1/UberAppBackend/internal/models"
)

// Event is any outbound payload. EventName is the envelope tag.
type Event interface {
	EventName() string
}

// Envelope is the on-the-wire frame for both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Wrap marshals an outbound event into its envelope.
func Wrap(ev Event) ([]byte, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: ev.EventName(), Data: data})
}

// Inbound event names.
const (
	InJoinUserSession = "join_user_session"
	InSendMessage     = "send_message"
	InTyping          = "typing"
	InStopTyping      = "stop_typing"
	InEditMessage     = "edit_message"
	InDeleteMessage   = "delete_message"
	InReactMessage    = "react_message"
	InMarkRead        = "mark_read"
	InBlockUser       = "block_user"
	InCallInvite      = "call_invite"
	InWebrtcSignal    = "webrtc_signal"
	InToggleMedia     = "toggle_media"
	InVideoFrame      = "video_frame"
	InAnswerCall      = "answer_call"
	InEndCall         = "end_call"
	InJoinRide        = "join_ride"
	InUpdateLocation  = "update_location"
)

// Inbound payloads. The acting user is taken from the authenticated
// connection, never from the payload, except where the field is the
// action's target.

type JoinUserSession struct {
	UserID string `json:"userId"`
}

type SendMessage struct {
	ConversationID string           `json:"conversationId,omitempty"`
	ReceiverID     string           `json:"receiverId"`
	Content        string           `json:"content"`
	Kind           string           `json:"kind,omitempty"`
	MediaURL       string           `json:"mediaUrl,omitempty"`
	MediaDuration  int              `json:"mediaDuration,omitempty"`
	Location       *models.Location `json:"location,omitempty"`
	ReplyTo        string           `json:"replyTo,omitempty"`
}

type Typing struct {
	ReceiverID string `json:"receiverId"`
}

type EditMessage struct {
	MessageID string `json:"messageId"`
	Content   string `json:"content"`
}

type DeleteMessage struct {
	MessageID string `json:"messageId"`
}

type ReactMessage struct {
	MessageID string `json:"messageId"`
	Emoji     string `json:"emoji"`
}

type MarkRead struct {
	ConversationID string `json:"conversationId"`
}

type BlockUser struct {
	BlockedID string `json:"blockedId"`
	IsBlocked bool   `json:"isBlocked"`
}

type CallInvite struct {
	To      string          `json:"to"`
	Payload json.RawMessage `json:"payload"`
}

type WebrtcSignal struct {
	To     string          `json:"to"`
	Signal json.RawMessage `json:"signal"`
}

type ToggleMedia struct {
	To      string `json:"to"`
	Kind    string `json:"kind"` // "video" or "audio"
	Enabled bool   `json:"enabled"`
}

type VideoFrame struct {
	To    string `json:"to"`
	Frame string `json:"frame"` // base64 jpeg
}

type AnswerCall struct {
	To      string          `json:"to"`
	Payload json.RawMessage `json:"payload"`
}

type EndCall struct {
	To        string `json:"to"`
	WasMissed bool   `json:"wasMissed"`
}

type JoinRide struct {
	RideID string `json:"rideId"`
}

type UpdateLocation struct {
	RideID   string          `json:"rideId"`
	Location models.Location `json:"location"`
}

// Decode parses an inbound envelope into its typed payload.
func Decode(raw []byte) (string, any, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return "", nil, err
	}
	var payload any
	switch env.Event {
	case InJoinUserSession:
		payload = &JoinUserSession{}
	case InSendMessage:
		payload = &SendMessage{}
	case InTyping, InStopTyping:
		payload = &Typing{}
	case InEditMessage:
		payload = &EditMessage{}
	case InDeleteMessage:
		payload = &DeleteMessage{}
	case InReactMessage:
		payload = &ReactMessage{}
	case InMarkRead:
		payload = &MarkRead{}
	case InBlockUser:
		payload = &BlockUser{}
	case InCallInvite:
		payload = &CallInvite{}
	case InWebrtcSignal:
		payload = &WebrtcSignal{}
	case InToggleMedia:
		payload = &ToggleMedia{}
	case InVideoFrame:
		payload = &VideoFrame{}
	case InAnswerCall:
		payload = &AnswerCall{}
	case InEndCall:
		payload = &EndCall{}
	case InJoinRide:
		payload = &JoinRide{}
	case InUpdateLocation:
		payload = &UpdateLocation{}
	default:
		return env.Event, nil, fmt.Errorf("unknown event %q", env.Event)
	}
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, payload); err != nil {
			return env.Event, nil, err
		}
	}
	return env.Event, payload, nil
}

// Outbound events.

type MessageReceived struct {
	Message *models.Message `json:"message"`
}

func (MessageReceived) EventName() string { return "message_received" }

type MessageSent struct {
	Message *models.Message `json:"message"`
}

func (MessageSent) EventName() string { return "message_sent" }

type MessageStatusUpdate struct {
	MessageID      string `json:"messageId"`
	ConversationID string `json:"conversationId"`
	Status         string `json:"status"`
}

func (MessageStatusUpdate) EventName() string { return "message_status_update" }

type MessageUpdated struct {
	MessageID      string `json:"messageId"`
	ConversationID string `json:"conversationId"`
	Content        string `json:"content"`
	IsEdited       bool   `json:"isEdited"`
}

func (MessageUpdated) EventName() string { return "message_updated" }

type MessageDeleted struct {
	MessageID      string `json:"messageId"`
	ConversationID string `json:"conversationId"`
}

func (MessageDeleted) EventName() string { return "message_deleted" }

type MessageReaction struct {
	MessageID      string            `json:"messageId"`
	ConversationID string            `json:"conversationId"`
	Reactions      []models.Reaction `json:"reactions"`
	Action         string            `json:"action"` // "added" or "removed"
}

func (MessageReaction) EventName() string { return "message_reaction" }

type MessageError struct {
	Event  string `json:"event"`
	Reason string `json:"reason"`
}

func (MessageError) EventName() string { return "message_error" }

type ConversationRead struct {
	ConversationID string `json:"conversationId"`
	ReaderID       string `json:"readerId"`
}

func (ConversationRead) EventName() string { return "conversation_read" }

type UserStatusUpdate struct {
	UserID   string     `json:"userId"`
	IsOnline bool       `json:"isOnline"`
	LastSeen *time.Time `json:"lastSeen,omitempty"`
}

func (UserStatusUpdate) EventName() string { return "user_status_update" }

type UserTyping struct {
	UserID string `json:"userId"`
}

func (UserTyping) EventName() string { return "user_typing" }

type UserStopTyping struct {
	UserID string `json:"userId"`
}

func (UserStopTyping) EventName() string { return "user_stop_typing" }

type BlockStatusChanged struct {
	By        string `json:"by"`
	IsBlocked bool   `json:"isBlocked"`
}

func (BlockStatusChanged) EventName() string { return "block_status_changed" }

type BlockSuccess struct {
	BlockedID string `json:"blockedId"`
	IsBlocked bool   `json:"isBlocked"`
}

func (BlockSuccess) EventName() string { return "block_success" }

type IncomingCall struct {
	From    string          `json:"from"`
	Payload json.RawMessage `json:"payload"`
}

func (IncomingCall) EventName() string { return "incoming_call" }

type SignalRelayed struct {
	From   string          `json:"from"`
	Signal json.RawMessage `json:"signal"`
}

func (SignalRelayed) EventName() string { return "webrtc_signal" }

type RemoteMediaStatus struct {
	From    string `json:"from"`
	Kind    string `json:"kind"`
	Enabled bool   `json:"enabled"`
}

func (RemoteMediaStatus) EventName() string { return "remote_media_status" }

type VideoFrameRelayed struct {
	From  string `json:"from"`
	Frame string `json:"frame"`
}

func (VideoFrameRelayed) EventName() string { return "video_frame" }

type CallAccepted struct {
	From    string          `json:"from"`
	Payload json.RawMessage `json:"payload"`
}

func (CallAccepted) EventName() string { return "call_accepted" }

type CallEnded struct {
	From string `json:"from"`
}

func (CallEnded) EventName() string { return "call_ended" }

type DriverLocation struct {
	RideID   string          `json:"rideId"`
	Location models.Location `json:"location"`
}

func (DriverLocation) EventName() string { return "driver_location" }
