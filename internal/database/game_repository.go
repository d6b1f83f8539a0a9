package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type GameRepo struct {
	pool *pgxpool.Pool
}

func NewGameRepo(pool *pgxpool.Pool) *GameRepo {
	return &GameRepo{pool: pool}
}

// Upsert creates the game or refreshes its name.
func (r *GameRepo) Upsert(ctx context.Context, twitchID, name string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO games (twitch_id, name)
		VALUES ($1, $2)
		ON CONFLICT (twitch_id) DO UPDATE SET name = EXCLUDED.name
	`, twitchID, name)
	if err != nil {
		return fmt.Errorf("failed to upsert game %s: %w", twitchID, err)
	}
	return nil
}
