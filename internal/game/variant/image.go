package variant

import (
	"math/rand"

	"github.com/kmorel/fibbit/internal/game"
)

func init() {
	mustRegister(imageVariant{})
}

// imageVariant is the image-generation game.
type imageVariant struct{}

func (imageVariant) Key() string               { return "farsketched" }
func (imageVariant) Name() string              { return "Farsketched" }
func (imageVariant) Kind() game.GenerationKind { return game.GenerationKindImage }

func (imageVariant) PromptHint(*rand.Rand) string {
	return "Describe a picture"
}

func (imageVariant) BuildGenerationRequest(prompt, _ string) GenerationRequest {
	return GenerationRequest{Kind: game.GenerationKindImage, Prompt: prompt}
}

func (imageVariant) RenderGeneration(g game.Generation) Rendered {
	return Rendered{Kind: game.GenerationKindImage, URL: g.URL}
}
