package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/parmenashp/felpsbot-backend/internal/domain"
)

type LastPlayedRepo struct {
	pool *pgxpool.Pool
}

func NewLastPlayedRepo(pool *pgxpool.Pool) *LastPlayedRepo {
	return &LastPlayedRepo{pool: pool}
}

// Upsert records that streamerID was observed playing gameID at observedAt,
// overwriting any previous observation for the pair.
func (r *LastPlayedRepo) Upsert(ctx context.Context, streamerID, gameID string, observedAt time.Time) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO last_time_played (streamer_id, game_id, last_time)
		VALUES ($1, $2, $3)
		ON CONFLICT (streamer_id, game_id) DO UPDATE SET last_time = EXCLUDED.last_time
	`, streamerID, gameID, observedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert last time played for streamer %s game %s: %w", streamerID, gameID, err)
	}
	return nil
}

// Find returns the record for a (streamer, game) pair, or
// domain.ErrLastPlayedNotFound.
func (r *LastPlayedRepo) Find(ctx context.Context, streamerID, gameID string) (*domain.LastPlayed, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT streamer_id, game_id, last_time
		FROM last_time_played
		WHERE streamer_id = $1 AND game_id = $2
	`, streamerID, gameID)

	var record domain.LastPlayed
	err := row.Scan(&record.StreamerID, &record.GameID, &record.LastTime)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrLastPlayedNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find last time played for streamer %s game %s: %w", streamerID, gameID, err)
	}
	return &record, nil
}
