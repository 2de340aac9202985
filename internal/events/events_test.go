package events

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapTagsEnvelope(t *testing.T) {
	frame, err := Wrap(MessageDeleted{MessageID: "m1", ConversationID: "c1"})
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(frame, &env))
	assert.Equal(t, "message_deleted", env.Event)

	var data MessageDeleted
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "m1", data.MessageID)
}

func TestDecodeDispatchesByName(t *testing.T) {
	name, payload, err := Decode([]byte(`{"event":"send_message","data":{"receiverId":"bob","content":"hi","kind":"text"}}`))
	require.NoError(t, err)
	assert.Equal(t, InSendMessage, name)
	send, ok := payload.(*SendMessage)
	require.True(t, ok)
	assert.Equal(t, "bob", send.ReceiverID)
	assert.Equal(t, "hi", send.Content)
}

func TestDecodeTypingVariants(t *testing.T) {
	for _, name := range []string{InTyping, InStopTyping} {
		got, payload, err := Decode([]byte(`{"event":"` + name + `","data":{"receiverId":"bob"}}`))
		require.NoError(t, err)
		assert.Equal(t, name, got)
		typing, ok := payload.(*Typing)
		require.True(t, ok)
		assert.Equal(t, "bob", typing.ReceiverID)
	}
}

func TestDecodeSignalKeepsPayloadOpaque(t *testing.T) {
	raw := `{"event":"webrtc_signal","data":{"to":"bob","signal":{"sdp":"v=0","type":"offer"}}}`
	_, payload, err := Decode([]byte(raw))
	require.NoError(t, err)
	sig := payload.(*WebrtcSignal)
	assert.JSONEq(t, `{"sdp":"v=0","type":"offer"}`, string(sig.Signal))
}

func TestDecodeRejectsUnknownEvent(t *testing.T) {
	name, payload, err := Decode([]byte(`{"event":"self_destruct","data":{}}`))
	assert.Error(t, err)
	assert.Equal(t, "self_destruct", name)
	assert.Nil(t, payload)
}

func TestDecodeRejectsMalformedFrame(t *testing.T) {
	_, _, err := Decode([]byte(`not json`))
	assert.Error(t, err)
}
