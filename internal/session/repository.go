package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/kmorel/fibbit/internal/game"
)

// ErrRoomNotFound is returned when no room matches the lookup.
var ErrRoomNotFound = errors.New("session: room not found")

// ErrShortcodeTaken is returned when a candidate join code collides with a
// live room.
var ErrShortcodeTaken = errors.New("session: shortcode already in use")

// DB defines what the repository needs from the database layer. pgxpool.Pool
// satisfies it.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Repository implements room data access operations.
type Repository struct {
	db DB
}

// NewRepository creates a new session repository.
func NewRepository(db DB) *Repository {
	return &Repository{db: db}
}

// CreateRoom inserts a room row.
func (r *Repository) CreateRoom(ctx context.Context, room Room) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO rooms (id, shortcode, owner_id, variant, host_phase, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		room.ID, room.Shortcode, room.OwnerID, room.Variant, room.HostPhase.String(), room.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		// 23505 is unique_violation; the only unique constraint besides the
		// primary key is the shortcode.
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrShortcodeTaken
		}
		return fmt.Errorf("failed to create room: %w", err)
	}
	return nil
}

// GetRoom retrieves a room by ID.
func (r *Repository) GetRoom(ctx context.Context, id uuid.UUID) (*Room, error) {
	return r.scanRoom(r.db.QueryRow(ctx, `
		SELECT id, shortcode, owner_id, variant, host_phase, created_at
		FROM rooms WHERE id = $1`, id,
	))
}

// GetRoomByShortcode retrieves a room by its join code.
func (r *Repository) GetRoomByShortcode(ctx context.Context, shortcode string) (*Room, error) {
	return r.scanRoom(r.db.QueryRow(ctx, `
		SELECT id, shortcode, owner_id, variant, host_phase, created_at
		FROM rooms WHERE shortcode = $1`, shortcode,
	))
}

// UpdateHostPhase records the coarse phase label on the room row.
func (r *Repository) UpdateHostPhase(ctx context.Context, id uuid.UUID, phase game.Phase) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE rooms SET host_phase = $2 WHERE id = $1`,
		id, phase.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to update host phase: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRoomNotFound
	}
	return nil
}

// DeleteRoom removes a room row, typically after the session finishes.
func (r *Repository) DeleteRoom(ctx context.Context, id uuid.UUID) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM rooms WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete room: %w", err)
	}
	return nil
}

func (r *Repository) scanRoom(row pgx.Row) (*Room, error) {
	var room Room
	var phase string
	err := row.Scan(&room.ID, &room.Shortcode, &room.OwnerID, &room.Variant, &phase, &room.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRoomNotFound
		}
		return nil, fmt.Errorf("failed to get room: %w", err)
	}
	p, err := game.ParsePhase(phase)
	if err != nil {
		return nil, fmt.Errorf("failed to decode room phase: %w", err)
	}
	room.HostPhase = p
	return &room, nil
}
