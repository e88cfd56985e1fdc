package game

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// MessageType tags the closed set of client-to-host message kinds.
type MessageType string

const (
	MessageTypeGeneration MessageType = "Generation"
	MessageTypeCaption    MessageType = "CaptionResponse"
	MessageTypeVote       MessageType = "CaptionVote"
)

// Message is a decoded client submission. Exactly one payload field is set,
// matching Type. Anything that does not decode into one of the known shapes
// is rejected at the channel boundary instead of being applied blindly.
type Message struct {
	ID     uuid.UUID
	Sender uuid.UUID
	Type   MessageType

	Generation *Generation
	Caption    *CaptionPayload
	Vote       *VotePayload
}

// CaptionPayload carries a submitted lie.
type CaptionPayload struct {
	Text string `json:"text"`
}

// VotePayload accuses an author of the selected caption.
type VotePayload struct {
	Accused uuid.UUID `json:"accused"`
}

// DecodeMessage turns a raw envelope payload into a typed Message. Unknown
// types and malformed or incomplete payloads return an error; the host drops
// those deliveries.
func DecodeMessage(id, sender uuid.UUID, msgType string, payload []byte) (Message, error) {
	m := Message{ID: id, Sender: sender, Type: MessageType(msgType)}
	if sender == uuid.Nil {
		return Message{}, fmt.Errorf("message %s has no sender", id)
	}

	switch m.Type {
	case MessageTypeGeneration:
		var g Generation
		if err := json.Unmarshal(payload, &g); err != nil {
			return Message{}, fmt.Errorf("decode generation payload: %w", err)
		}
		if g.Author == uuid.Nil {
			g.Author = sender
		}
		if g.Prompt == "" {
			return Message{}, fmt.Errorf("generation from %s has no prompt", sender)
		}
		m.Generation = &g

	case MessageTypeCaption:
		var c CaptionPayload
		if err := json.Unmarshal(payload, &c); err != nil {
			return Message{}, fmt.Errorf("decode caption payload: %w", err)
		}
		if c.Text == "" {
			return Message{}, fmt.Errorf("caption from %s is empty", sender)
		}
		m.Caption = &c

	case MessageTypeVote:
		var v VotePayload
		if err := json.Unmarshal(payload, &v); err != nil {
			return Message{}, fmt.Errorf("decode vote payload: %w", err)
		}
		if v.Accused == uuid.Nil {
			return Message{}, fmt.Errorf("vote from %s accuses nobody", sender)
		}
		m.Vote = &v

	default:
		return Message{}, fmt.Errorf("unknown message type %q", msgType)
	}

	return m, nil
}
