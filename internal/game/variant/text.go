package variant

import (
	"math/rand"

	"github.com/kmorel/fibbit/internal/game"
)

func init() {
	mustRegister(textVariant{})
}

// textVariant is the plain text-completion game.
type textVariant struct{}

func (textVariant) Key() string               { return "false-starts" }
func (textVariant) Name() string              { return "False Starts" }
func (textVariant) Kind() game.GenerationKind { return game.GenerationKindText }

func (textVariant) PromptHint(*rand.Rand) string {
	return "Write the start of a story"
}

func (textVariant) BuildGenerationRequest(prompt, _ string) GenerationRequest {
	return GenerationRequest{Kind: game.GenerationKindText, Prompt: prompt}
}

func (textVariant) RenderGeneration(g game.Generation) Rendered {
	return Rendered{Kind: game.GenerationKindText, Text: g.Text}
}
