package generate

import (
	"context"
	"fmt"

	"github.com/kmorel/fibbit/internal/game"
	"github.com/kmorel/fibbit/internal/game/variant"
)

// Echo is a completer that reflects the prompt back as the generated content.
// It backs local play and tests where no generation API is reachable.
type Echo struct{}

func (Echo) Complete(ctx context.Context, req variant.GenerationRequest) (Completion, error) {
	switch req.Kind {
	case game.GenerationKindImage:
		return Completion{URL: "echo://" + req.Prompt}, nil
	case game.GenerationKindList:
		return Completion{Text: fmt.Sprintf("1. %s\n2. %s\n3. %s", req.Prompt, req.Prompt, req.Prompt)}, nil
	default:
		return Completion{Text: req.Prompt}, nil
	}
}

var _ Completer = Echo{}
