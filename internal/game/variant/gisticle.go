package variant

import (
	"math/rand"

	"github.com/kmorel/fibbit/internal/game"
)

func init() {
	mustRegister(gisticleVariant{})
}

// listTemplates are the prompt scaffolds for the listicle game. A fresh one
// is dealt each writing phase.
var listTemplates = []string{
	"List the top 5 best",
	"List the top 5 reasons you should",
	"List the top 5 most ridiculous ways to",
	"List the top 5 most obvious signs",
}

// gisticleVariant is the generated-listicle game.
type gisticleVariant struct{}

func (gisticleVariant) Key() string               { return "gisticle" }
func (gisticleVariant) Name() string              { return "Gisticle" }
func (gisticleVariant) Kind() game.GenerationKind { return game.GenerationKindList }

func (gisticleVariant) PromptHint(rng *rand.Rand) string {
	return game.ChooseOne(rng, listTemplates)
}

func (gisticleVariant) BuildGenerationRequest(prompt, hint string) GenerationRequest {
	return GenerationRequest{
		Kind:       game.GenerationKindList,
		Prompt:     prompt,
		ListPrefix: hint,
	}
}

func (gisticleVariant) RenderGeneration(g game.Generation) Rendered {
	return Rendered{Kind: game.GenerationKindList, Text: g.Text}
}
