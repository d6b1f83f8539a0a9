// Package gametime answers "how long has this streamer been playing the
// current game", read from the last-time-played projection.
package gametime

import (
	"context"
	"log/slog"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/jonboulle/clockwork"

	"github.com/parmenashp/felpsbot-backend/internal/domain"
	"github.com/parmenashp/felpsbot-backend/internal/twitch"
)

// Messages are the caller-supplied templates. Placeholders: {streamer},
// {game}, {duration}.
type Messages struct {
	Offline string
	Online  string
	Unknown string
	Error   string
}

// DefaultMessages mirror the chat-bot phrasing used by the main consumer.
func DefaultMessages() Messages {
	return Messages{
		Offline: "{streamer} está offline.",
		Online:  "{streamer} está jogando {game} há {duration}.",
		Unknown: "{streamer} está jogando {game} há um tempo desconhecido.",
		Error:   "Ocorreu um erro ao buscar informações do streamer.",
	}
}

type helixAPI interface {
	GetChannel(ctx context.Context, broadcasterID string) (*twitch.Channel, error)
	GetStream(ctx context.Context, userID string) (*twitch.Stream, error)
}

type lastPlayedFinder interface {
	Find(ctx context.Context, streamerID, gameID string) (*domain.LastPlayed, error)
}

type Service struct {
	helix      helixAPI
	lastPlayed lastPlayedFinder
	clock      clockwork.Clock
}

func NewService(helix helixAPI, lastPlayed lastPlayedFinder, clock clockwork.Clock) *Service {
	return &Service{helix: helix, lastPlayed: lastPlayed, clock: clock}
}

// StreamGameTime renders one of the message templates for the streamer's
// current state. Lookup failures render the error template; the chat bot
// consuming this endpoint can only display plain text.
func (s *Service) StreamGameTime(ctx context.Context, streamerID string, msgs Messages) string {
	stream, err := s.helix.GetStream(ctx, streamerID)
	if err != nil {
		slog.Error("Failed to fetch stream", "streamer_id", streamerID, "error", err)
		return msgs.Error
	}

	if stream == nil {
		slog.Info("Streamer is offline, returning fallback", "streamer_id", streamerID)
		channel, err := s.helix.GetChannel(ctx, streamerID)
		if err != nil || channel == nil {
			slog.Error("Failed to fetch channel for offline streamer", "streamer_id", streamerID, "error", err)
			return msgs.Error
		}
		return render(msgs.Offline, channel.BroadcasterName, "", "")
	}

	record, err := s.lastPlayed.Find(ctx, stream.UserID, stream.GameID)
	if err == domain.ErrLastPlayedNotFound {
		slog.Info("Streamer is playing a game that is not in the database", "streamer_id", streamerID, "game_id", stream.GameID)
		return render(msgs.Unknown, stream.UserName, stream.GameName, "")
	}
	if err != nil {
		slog.Error("Failed to look up last time played", "streamer_id", streamerID, "game_id", stream.GameID, "error", err)
		return msgs.Error
	}

	duration := strings.TrimSpace(humanize.RelTime(record.LastTime, s.clock.Now(), "", ""))
	slog.Info("Streamer is playing", "game_name", stream.GameName, "duration", duration)
	return render(msgs.Online, stream.UserName, stream.GameName, duration)
}

func render(template, streamer, game, duration string) string {
	return strings.NewReplacer(
		"{streamer}", streamer,
		"{game}", game,
		"{duration}", duration,
	).Replace(template)
}
