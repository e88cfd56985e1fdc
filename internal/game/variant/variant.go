package variant

import (
	"fmt"
	"math/rand"
	"sync"

	"github.com/kmorel/fibbit/internal/game"
)

// Variant supplies the per-game capabilities the generic engine is
// parameterized by. One engine drives every variant; only the content kind,
// the shape of the generation request, and the display form differ.
type Variant interface {
	// Key identifies the variant in room records and config.
	Key() string
	// Name is the player-facing game title.
	Name() string
	// Kind is the content kind this variant generates.
	Kind() game.GenerationKind

	// PromptHint returns the writing-phase prompt scaffold shown to players.
	// List variants pick a fresh template each time.
	PromptHint(rng *rand.Rand) string

	// BuildGenerationRequest shapes a submitted prompt into the request the
	// generation service understands.
	BuildGenerationRequest(prompt, hint string) GenerationRequest

	// RenderGeneration returns the display form of a finished generation.
	RenderGeneration(g game.Generation) Rendered
}

// GenerationRequest is handed to the generation service.
type GenerationRequest struct {
	Kind       game.GenerationKind `json:"kind"`
	Prompt     string              `json:"prompt"`
	ListPrefix string              `json:"list_prefix,omitempty"`
}

// Rendered is what the presentation layer shows during lying and voting.
type Rendered struct {
	Kind game.GenerationKind `json:"kind"`
	Text string              `json:"text,omitempty"`
	URL  string              `json:"url,omitempty"`
}

var (
	registry   = make(map[string]Variant)
	registryMu sync.RWMutex
)

// Register adds a variant under its key. It is called from each variant's
// init function; a duplicate key is a programming error.
func Register(v Variant) error {
	registryMu.Lock()
	defer registryMu.Unlock()
	if v.Key() == "" {
		return fmt.Errorf("variant key cannot be empty")
	}
	if _, exists := registry[v.Key()]; exists {
		return fmt.Errorf("variant already registered for key %q", v.Key())
	}
	registry[v.Key()] = v
	return nil
}

// Get retrieves a variant by key or returns an error if not found.
func Get(key string) (Variant, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	v, exists := registry[key]
	if !exists {
		return nil, fmt.Errorf("no variant registered for key %q", key)
	}
	return v, nil
}

// Keys lists the registered variant keys.
func Keys() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	keys := make([]string, 0, len(registry))
	for k := range registry {
		keys = append(keys, k)
	}
	return keys
}

func mustRegister(v Variant) {
	if err := Register(v); err != nil {
		panic(err)
	}
}
