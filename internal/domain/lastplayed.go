// Package domain holds the persisted records and errors shared across
// adapters.
package domain

import (
	"errors"
	"time"
)

// ErrLastPlayedNotFound is returned when no record exists for a
// (streamer, game) pair.
var ErrLastPlayedNotFound = errors.New("last time played record not found")

// LastPlayed records when a streamer was last observed playing a game.
// Unique per (streamer_id, game_id); upserts overwrite LastTime.
type LastPlayed struct {
	StreamerID string
	GameID     string
	LastTime   time.Time
}

// Game is a Twitch game/category as seen in channel.update notifications.
type Game struct {
	TwitchID string
	Name     string
}
