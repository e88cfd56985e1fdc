package session

import (
	"math/rand"
	"strings"
	"sync"
)

// shortcodeAlphabet omits letters that read ambiguously on a phone screen.
const shortcodeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ"

const shortcodeLength = 4

// ShortcodeGenerator produces join codes. Uniqueness is enforced by the
// rooms table; the generator only needs to be well distributed.
type ShortcodeGenerator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewShortcodeGenerator seeds a generator from src.
func NewShortcodeGenerator(src rand.Source) *ShortcodeGenerator {
	return &ShortcodeGenerator{rng: rand.New(src)}
}

// Next returns a fresh candidate code.
func (g *ShortcodeGenerator) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	var b strings.Builder
	b.Grow(shortcodeLength)
	for i := 0; i < shortcodeLength; i++ {
		b.WriteByte(shortcodeAlphabet[g.rng.Intn(len(shortcodeAlphabet))])
	}
	return b.String()
}

// NormalizeShortcode maps user input onto the canonical code form.
func NormalizeShortcode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
