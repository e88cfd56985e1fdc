package generate

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kmorel/fibbit/internal/channel"
	"github.com/kmorel/fibbit/internal/game"
	"github.com/kmorel/fibbit/internal/game/variant"
)

func TestRequestGenerationAppendsMessage(t *testing.T) {
	ctx := context.Background()
	mem := channel.NewMemory()
	roomID, author := uuid.New(), uuid.New()

	msgs, err := mem.SubscribeMessages(ctx, roomID)
	require.NoError(t, err)

	svc := NewService(Echo{}, mem)
	err = svc.RequestGeneration(ctx, Request{
		RoomID:     roomID,
		Author:     author,
		VariantKey: "false-starts",
		Prompt:     "Once upon a time",
	})
	require.NoError(t, err)

	select {
	case env := <-msgs:
		assert.Equal(t, string(game.MessageTypeGeneration), env.Type)
		assert.Equal(t, author, env.SenderID)

		// The host-side decode must accept what the service appends.
		m, err := game.DecodeMessage(env.ID, env.SenderID, env.Type, env.Payload)
		require.NoError(t, err)
		require.NotNil(t, m.Generation)
		assert.Equal(t, author, m.Generation.Author)
		assert.Equal(t, "Once upon a time", m.Generation.Prompt)
		assert.Equal(t, game.GenerationKindText, m.Generation.Kind)
		assert.Equal(t, "Once upon a time", m.Generation.Text, "echo reflects the prompt")
	case <-time.After(time.Second):
		t.Fatal("generation was not appended")
	}
}

func TestRequestGenerationUnknownVariant(t *testing.T) {
	svc := NewService(Echo{}, channel.NewMemory())
	err := svc.RequestGeneration(context.Background(), Request{
		RoomID:     uuid.New(),
		Author:     uuid.New(),
		VariantKey: "charades",
		Prompt:     "anything",
	})
	assert.Error(t, err)
}

func TestRequestGenerationCompleterFailure(t *testing.T) {
	ctx := context.Background()
	mem := channel.NewMemory()
	roomID := uuid.New()
	msgs, err := mem.SubscribeMessages(ctx, roomID)
	require.NoError(t, err)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	svc := NewService(NewHTTPCompleter(server.URL), mem)
	err = svc.RequestGeneration(ctx, Request{
		RoomID:     roomID,
		Author:     uuid.New(),
		VariantKey: "false-starts",
		Prompt:     "doomed",
	})
	require.Error(t, err)

	select {
	case <-msgs:
		t.Fatal("a failed completion must not append anything")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHTTPCompleter(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		assert.Equal(t, "/v1/completions", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"url":"https://cdn.example.com/drawing.png"}`))
	}))
	defer server.Close()

	c := NewHTTPCompleter(server.URL)
	c.SetHeader("Authorization", "Bearer sk-test")

	comp, err := c.Complete(context.Background(), variant.GenerationRequest{
		Kind:   game.GenerationKindImage,
		Prompt: "a dog in a hat",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/drawing.png", comp.URL)
	assert.Equal(t, "Bearer sk-test", gotAuth)
}
