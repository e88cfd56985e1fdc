package generate

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/kmorel/fibbit/internal/channel"
	"github.com/kmorel/fibbit/internal/game"
	"github.com/kmorel/fibbit/internal/game/variant"
)

// Request is one participant asking for content in their room.
type Request struct {
	RoomID     uuid.UUID `json:"room_id"`
	Author     uuid.UUID `json:"author"`
	VariantKey string    `json:"variant"`
	Prompt     string    `json:"prompt"`
	Hint       string    `json:"hint,omitempty"`
}

// Service fulfills generation requests and appends the result to the room's
// message log. The host never calls a completer; generated content reaches it
// the same way every other submission does.
type Service struct {
	completer Completer
	appender  channel.Appender
}

// NewService wires a Service.
func NewService(completer Completer, appender channel.Appender) *Service {
	return &Service{completer: completer, appender: appender}
}

// RequestGeneration completes the prompt under the room's variant and appends
// the resulting Generation message. A completer failure is returned to the
// caller so the client can revert the participant to prompting.
func (s *Service) RequestGeneration(ctx context.Context, req Request) error {
	v, err := variant.Get(req.VariantKey)
	if err != nil {
		return fmt.Errorf("resolve variant: %w", err)
	}
	genReq := v.BuildGenerationRequest(req.Prompt, req.Hint)

	comp, err := s.completer.Complete(ctx, genReq)
	if err != nil {
		return fmt.Errorf("complete prompt: %w", err)
	}

	gen := game.Generation{
		Author:     req.Author,
		Kind:       genReq.Kind,
		Prompt:     req.Prompt,
		Text:       comp.Text,
		URL:        comp.URL,
		ListPrefix: genReq.ListPrefix,
	}
	env, err := channel.NewEnvelope(req.RoomID, req.Author, string(game.MessageTypeGeneration), gen)
	if err != nil {
		return fmt.Errorf("build generation envelope: %w", err)
	}
	if err := s.appender.AppendMessage(ctx, env); err != nil {
		return fmt.Errorf("append generation: %w", err)
	}

	log.Debug().
		Str("room_id", req.RoomID.String()).
		Str("author", req.Author.String()).
		Str("variant", req.VariantKey).
		Msg("generation appended")
	return nil
}
