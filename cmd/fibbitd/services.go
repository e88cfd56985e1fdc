package main

import (
	"context"
	"math/rand"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kmorel/fibbit/internal/channel"
	"github.com/kmorel/fibbit/internal/gateway"
	"github.com/kmorel/fibbit/internal/generate"
	"github.com/kmorel/fibbit/internal/session"
)

type Services struct {
	Sessions    *session.App
	Hosts       *gateway.HostManager
	Feed        *gateway.Feed
	Connections *gateway.ConnectionManager
	Generator   *generate.Service
	Handler     *gateway.Handler
}

func setupServices(ctx context.Context, pool *pgxpool.Pool, ch *channel.JetStream, config *Config) *Services {
	// Wire up dependency injection chain
	// Database layer → Repository layer → App layer → HTTP layer

	repo := session.NewRepository(pool)
	codes := session.NewShortcodeGenerator(rand.NewSource(time.Now().UnixNano()))
	sessions := session.NewApp(repo, ch, codes, nil)

	hosts := gateway.NewHostManager(ch, sessions, config.Game)
	connections := gateway.NewConnectionManager(gateway.DefaultConnectionConfig())
	feed := gateway.NewFeed(ch, connections)

	var completer generate.Completer
	if config.Generation.BaseURL != "" {
		httpCompleter := generate.NewHTTPCompleter(config.Generation.BaseURL)
		if config.Generation.APIKey != "" {
			httpCompleter.SetHeader("Authorization", "Bearer "+config.Generation.APIKey)
		}
		completer = httpCompleter
	} else {
		// No generation API configured; echo prompts back for local play.
		completer = generate.Echo{}
	}
	generator := generate.NewService(completer, ch)

	handler := gateway.NewHandler(ctx, sessions, hosts, feed, connections, generator, ch)

	return &Services{
		Sessions:    sessions,
		Hosts:       hosts,
		Feed:        feed,
		Connections: connections,
		Generator:   generator,
		Handler:     handler,
	}
}
