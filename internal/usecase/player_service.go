package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/proofofputt/putt-api/internal/domain/player"
)

type PlayerService struct {
	playerRepo player.Repository
}

func NewPlayerService(playerRepo player.Repository) *PlayerService {
	return &PlayerService{playerRepo: playerRepo}
}

func (s *PlayerService) Profile(ctx context.Context, playerID int64) (player.Profile, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.PlayerService.Profile")
	defer span.End()

	if playerID <= 0 {
		return player.Profile{}, fmt.Errorf("%w: player id is required", ErrInvalidInput)
	}
	p, exists, err := s.playerRepo.GetByID(ctx, playerID)
	if err != nil {
		return player.Profile{}, fmt.Errorf("get player: %w", err)
	}
	if !exists || p.IsHidden {
		return player.Profile{}, fmt.Errorf("%w: player=%d", ErrNotFound, playerID)
	}
	stats, _, err := s.playerRepo.GetStats(ctx, playerID)
	if err != nil {
		return player.Profile{}, fmt.Errorf("get player stats: %w", err)
	}
	stats.PlayerID = playerID
	p.PasswordHash = ""
	return player.Profile{Player: p, Stats: stats}, nil
}

// Search matches a name or email prefix among registered players.
func (s *PlayerService) Search(ctx context.Context, query string) ([]player.Player, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.PlayerService.Search")
	defer span.End()

	query = strings.TrimSpace(query)
	if len(query) < 2 {
		return nil, fmt.Errorf("%w: query must be at least 2 characters", ErrInvalidInput)
	}
	players, err := s.playerRepo.Search(ctx, query, 20)
	if err != nil {
		return nil, fmt.Errorf("search players: %w", err)
	}
	return players, nil
}

func (s *PlayerService) Friends(ctx context.Context, playerID int64) ([]player.Player, error) {
	friends, err := s.playerRepo.ListFriends(ctx, playerID)
	if err != nil {
		return nil, fmt.Errorf("list friends: %w", err)
	}
	return friends, nil
}
