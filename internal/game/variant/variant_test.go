package variant

import (
	"math/rand"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kmorel/fibbit/internal/game"
)

func TestRegistryHasBuiltins(t *testing.T) {
	for _, key := range []string{"false-starts", "farsketched", "gisticle"} {
		v, err := Get(key)
		require.NoError(t, err, key)
		assert.Equal(t, key, v.Key())
		assert.NotEmpty(t, v.Name())
	}
	assert.Len(t, Keys(), 3)

	_, err := Get("charades")
	assert.Error(t, err)
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	v, err := Get("false-starts")
	require.NoError(t, err)
	assert.Error(t, Register(v))
}

func TestTextVariant(t *testing.T) {
	v, err := Get("false-starts")
	require.NoError(t, err)
	assert.Equal(t, game.GenerationKindText, v.Kind())

	req := v.BuildGenerationRequest("Once upon a time", "")
	assert.Equal(t, game.GenerationKindText, req.Kind)
	assert.Equal(t, "Once upon a time", req.Prompt)

	r := v.RenderGeneration(game.Generation{Kind: game.GenerationKindText, Text: "a story"})
	assert.Equal(t, "a story", r.Text)
	assert.Empty(t, r.URL)
}

func TestImageVariant(t *testing.T) {
	v, err := Get("farsketched")
	require.NoError(t, err)
	assert.Equal(t, game.GenerationKindImage, v.Kind())

	r := v.RenderGeneration(game.Generation{Kind: game.GenerationKindImage, URL: "https://example.com/img.png"})
	assert.Equal(t, "https://example.com/img.png", r.URL)
	assert.Empty(t, r.Text)
}

func TestGisticleVariant(t *testing.T) {
	v, err := Get("gisticle")
	require.NoError(t, err)
	assert.Equal(t, game.GenerationKindList, v.Kind())

	rng := rand.New(rand.NewSource(1))
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		hint := v.PromptHint(rng)
		require.NotEmpty(t, hint)
		seen[hint] = true
	}
	assert.Len(t, seen, 4, "every list template gets picked eventually")

	hint := v.PromptHint(rng)
	req := v.BuildGenerationRequest("dogs wearing hats", hint)
	assert.Equal(t, game.GenerationKindList, req.Kind)
	assert.Equal(t, hint, req.ListPrefix)

	gen := game.Generation{
		Author:     uuid.New(),
		Kind:       game.GenerationKindList,
		Prompt:     "dogs wearing hats",
		Text:       "1. fedora\n2. beret",
		ListPrefix: hint,
	}
	r := v.RenderGeneration(gen)
	assert.Contains(t, r.Text, "fedora")
}
