package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"

	"github.com/kmorel/fibbit/internal/game"
	"github.com/kmorel/fibbit/internal/roster"
)

// JetStreamConfig holds the NATS wiring for the shared store.
type JetStreamConfig struct {
	URL            string
	StreamName     string
	SubjectPrefix  string // per-room message subjects live under <prefix>.<roomID>
	SnapshotBucket string
	RosterBucket   string
	MaxDeliver     int
	AckWait        time.Duration
	MaxReconnects  int
	ReconnectWait  time.Duration
}

// DefaultJetStreamConfig returns the stock single-cluster configuration.
func DefaultJetStreamConfig() JetStreamConfig {
	return JetStreamConfig{
		URL:            nats.DefaultURL,
		StreamName:     "FIBBIT_MESSAGES",
		SubjectPrefix:  "fibbit.msg",
		SnapshotBucket: "fibbit-snapshots",
		RosterBucket:   "fibbit-roster",
		MaxDeliver:     5,
		AckWait:        30 * time.Second,
		MaxReconnects:  -1, // infinite
		ReconnectWait:  2 * time.Second,
	}
}

// JetStream implements Channel on NATS JetStream: a stream carries the
// append-only message log (one subject per room, host durable consumer) and
// two KeyValue buckets hold the mutable room snapshot and the roster records.
type JetStream struct {
	nc        *nats.Conn
	js        jetstream.JetStream
	stream    jetstream.Stream
	snapshots jetstream.KeyValue
	rosters   jetstream.KeyValue
	config    JetStreamConfig
}

// NewJetStream connects and provisions the stream and buckets.
func NewJetStream(ctx context.Context, config JetStreamConfig) (*JetStream, error) {
	opts := []nats.Option{
		nats.MaxReconnects(config.MaxReconnects),
		nats.ReconnectWait(config.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	stream, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        config.StreamName,
		Description: "Per-room append-only client message log",
		Subjects:    []string{config.SubjectPrefix + ".>"},
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure stream: %w", err)
	}

	snapshots, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      config.SnapshotBucket,
		Description: "Authoritative room snapshots, one key per room",
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure snapshot bucket: %w", err)
	}

	rosters, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      config.RosterBucket,
		Description: "Merged participant records, one key per room and participant",
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure roster bucket: %w", err)
	}

	return &JetStream{
		nc:        nc,
		js:        js,
		stream:    stream,
		snapshots: snapshots,
		rosters:   rosters,
		config:    config,
	}, nil
}

// Close tears down the NATS connection.
func (c *JetStream) Close() {
	if c.nc != nil {
		c.nc.Close()
	}
}

func (c *JetStream) subject(roomID uuid.UUID) string {
	return fmt.Sprintf("%s.%s", c.config.SubjectPrefix, roomID)
}

func (c *JetStream) AppendMessage(ctx context.Context, env Envelope) error {
	if env.SentAt.IsZero() {
		env.SentAt = time.Now()
	}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	if _, err := c.js.Publish(ctx, c.subject(env.RoomID), data); err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

// SubscribeMessages attaches the host's durable consumer for one room. The
// durable name survives host restarts so a rejoining host resumes where the
// previous process stopped acking.
func (c *JetStream) SubscribeMessages(ctx context.Context, roomID uuid.UUID) (<-chan Envelope, error) {
	durable := "host-" + strings.ReplaceAll(roomID.String(), "-", "")
	consumer, err := c.stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Name:          durable,
		Durable:       durable,
		Description:   "Host message consumer",
		FilterSubject: c.subject(roomID),
		AckPolicy:     jetstream.AckExplicitPolicy,
		MaxDeliver:    c.config.MaxDeliver,
		AckWait:       c.config.AckWait,
	})
	if err != nil {
		return nil, fmt.Errorf("ensure host consumer: %w", err)
	}

	out := make(chan Envelope, 256)
	consumeCtx, err := consumer.Consume(func(msg jetstream.Msg) {
		var env Envelope
		if err := json.Unmarshal(msg.Data(), &env); err != nil {
			log.Error().Err(err).Str("subject", msg.Subject()).Msg("dropping undecodable envelope")
			msg.Term()
			return
		}
		select {
		case out <- env:
			msg.Ack()
		case <-ctx.Done():
			msg.Nak()
		}
	})
	if err != nil {
		return nil, fmt.Errorf("start host consumer: %w", err)
	}

	go func() {
		<-ctx.Done()
		stopAndClose(consumeCtx, out)
	}()
	return out, nil
}

// messageConsumer is the slice of jetstream.ConsumeContext the shutdown path
// needs.
type messageConsumer interface {
	Stop()
	Closed() <-chan struct{}
}

// stopAndClose waits for the consumer to quiesce before closing the bridge
// channel. Stop does not wait for an in-flight delivery callback, and a
// callback racing shutdown must never send on a closed channel.
func stopAndClose(cc messageConsumer, out chan Envelope) {
	cc.Stop()
	<-cc.Closed()
	close(out)
}

func (c *JetStream) UpdateSnapshot(ctx context.Context, roomID uuid.UUID, snap game.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if _, err := c.snapshots.Put(ctx, roomID.String(), data); err != nil {
		return fmt.Errorf("update snapshot: %w", err)
	}
	return nil
}

func (c *JetStream) FetchSnapshot(ctx context.Context, roomID uuid.UUID) (game.Snapshot, error) {
	entry, err := c.snapshots.Get(ctx, roomID.String())
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return game.Snapshot{}, ErrNoSnapshot
		}
		return game.Snapshot{}, fmt.Errorf("fetch snapshot: %w", err)
	}
	var snap game.Snapshot
	if err := json.Unmarshal(entry.Value(), &snap); err != nil {
		return game.Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, nil
}

func (c *JetStream) WatchSnapshot(ctx context.Context, roomID uuid.UUID) (<-chan game.Snapshot, error) {
	watcher, err := c.snapshots.Watch(ctx, roomID.String(), jetstream.UpdatesOnly(), jetstream.IgnoreDeletes())
	if err != nil {
		return nil, fmt.Errorf("watch snapshot: %w", err)
	}

	out := make(chan game.Snapshot, 256)
	go func() {
		defer close(out)
		defer watcher.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case entry, ok := <-watcher.Updates():
				if !ok {
					return
				}
				if entry == nil {
					continue // end of initial replay marker
				}
				var snap game.Snapshot
				if err := json.Unmarshal(entry.Value(), &snap); err != nil {
					log.Error().Err(err).Str("room_id", roomID.String()).Msg("dropping undecodable snapshot")
					continue
				}
				select {
				case out <- snap:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (c *JetStream) rosterKey(roomID, participantID uuid.UUID) string {
	return fmt.Sprintf("%s.%s", roomID, participantID)
}

func (c *JetStream) getParticipant(ctx context.Context, key string) (roster.Participant, bool, error) {
	entry, err := c.rosters.Get(ctx, key)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return roster.Participant{}, false, nil
		}
		return roster.Participant{}, false, err
	}
	var p roster.Participant
	if err := json.Unmarshal(entry.Value(), &p); err != nil {
		return roster.Participant{}, false, fmt.Errorf("decode participant: %w", err)
	}
	return p, true, nil
}

func (c *JetStream) putParticipant(ctx context.Context, key string, p roster.Participant) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal participant: %w", err)
	}
	if _, err := c.rosters.Put(ctx, key, data); err != nil {
		return fmt.Errorf("put participant: %w", err)
	}
	return nil
}

func (c *JetStream) UpsertParticipant(ctx context.Context, roomID uuid.UUID, p roster.Participant) (roster.Participant, error) {
	key := c.rosterKey(roomID, p.ID)
	cur, found, err := c.getParticipant(ctx, key)
	if err != nil {
		return roster.Participant{}, err
	}
	if found {
		p = roster.Merge(cur, p)
	}
	if err := c.putParticipant(ctx, key, p); err != nil {
		return roster.Participant{}, err
	}
	return p, nil
}

func (c *JetStream) UpdateParticipant(ctx context.Context, roomID, participantID uuid.UUID, u roster.Update) (roster.Participant, error) {
	key := c.rosterKey(roomID, participantID)
	cur, found, err := c.getParticipant(ctx, key)
	if err != nil {
		return roster.Participant{}, err
	}
	if !found {
		cur = roster.Participant{ID: participantID}
	}
	cur = u.Apply(cur)
	if err := c.putParticipant(ctx, key, cur); err != nil {
		return roster.Participant{}, err
	}
	return cur, nil
}

func (c *JetStream) FetchRoster(ctx context.Context, roomID uuid.UUID) ([]roster.Participant, error) {
	lister, err := c.rosters.ListKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("list roster keys: %w", err)
	}
	prefix := roomID.String() + "."
	var out []roster.Participant
	for key := range lister.Keys() {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		p, found, err := c.getParticipant(ctx, key)
		if err != nil {
			return nil, err
		}
		if found {
			out = append(out, p)
		}
	}
	return out, nil
}

func (c *JetStream) WatchRoster(ctx context.Context, roomID uuid.UUID) (<-chan roster.Participant, error) {
	watcher, err := c.rosters.Watch(ctx, roomID.String()+".*", jetstream.IgnoreDeletes())
	if err != nil {
		return nil, fmt.Errorf("watch roster: %w", err)
	}

	out := make(chan roster.Participant, 256)
	go func() {
		defer close(out)
		defer watcher.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case entry, ok := <-watcher.Updates():
				if !ok {
					return
				}
				if entry == nil {
					continue
				}
				var p roster.Participant
				if err := json.Unmarshal(entry.Value(), &p); err != nil {
					log.Error().Err(err).Str("room_id", roomID.String()).Msg("dropping undecodable participant")
					continue
				}
				select {
				case out <- p:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

var _ Channel = (*JetStream)(nil)
