package database

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Projector implements the channel.update projection over the games and
// last_time_played tables.
type Projector struct {
	games      *GameRepo
	lastPlayed *LastPlayedRepo
}

func NewProjector(pool *pgxpool.Pool) *Projector {
	return &Projector{
		games:      NewGameRepo(pool),
		lastPlayed: NewLastPlayedRepo(pool),
	}
}

func (p *Projector) UpsertGame(ctx context.Context, gameID, gameName string) error {
	return p.games.Upsert(ctx, gameID, gameName)
}

func (p *Projector) UpsertLastPlayed(ctx context.Context, streamerID, gameID string, observedAt time.Time) error {
	return p.lastPlayed.Upsert(ctx, streamerID, gameID, observedAt)
}
