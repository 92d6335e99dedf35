package service

import (
	"context"
	"fmt"
	"unicode"

	"club-ladder/internal/constants"
	"club-ladder/internal/domain"
	"club-ladder/internal/repository"

	"github.com/rs/zerolog"
)

type PlayerService struct {
	playerRepo *repository.PlayerRepository
	matchRepo  *repository.MatchRepository
	ledger     *LedgerService
	logger     zerolog.Logger
}

func NewPlayerService(playerRepo *repository.PlayerRepository, matchRepo *repository.MatchRepository, ledger *LedgerService, logger zerolog.Logger) *PlayerService {
	return &PlayerService{
		playerRepo: playerRepo,
		matchRepo:  matchRepo,
		ledger:     ledger,
		logger:     logger,
	}
}

// Register adds a new player. Names are letters only, 2..50 runes, starting
// with a capital, and unique.
func (s *PlayerService) Register(ctx context.Context, name string) (*domain.Player, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.RequestTimeout)
	defer cancel()

	if err := validateName(name); err != nil {
		return nil, err
	}

	if _, err := s.playerRepo.GetByName(ctx, name); err == nil {
		return nil, &domain.ValidationError{Field: "name", Reason: "name already taken"}
	} else if err != domain.ErrPlayerNotFound {
		return nil, err
	}

	player, err := s.playerRepo.Create(ctx, name)
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("player_id", player.ID).Str("name", name).Msg("player registered")
	return player, nil
}

func (s *PlayerService) List(ctx context.Context) ([]domain.Player, error) {
	return s.playerRepo.List(ctx)
}

// Delete removes a player who has never played. Players with match history
// stay, since their matches anchor everyone else's ratings.
func (s *PlayerService) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, constants.RequestTimeout)
	defer cancel()

	if _, err := s.playerRepo.Get(ctx, id); err != nil {
		return err
	}

	hasMatches, err := s.matchRepo.HasMatchesFor(ctx, id)
	if err != nil {
		return err
	}
	if hasMatches {
		return &domain.ValidationError{Field: "id", Reason: "player has match history and cannot be deleted"}
	}

	if err := s.playerRepo.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.Info().Str("player_id", id).Msg("player deleted")
	return nil
}

func validateName(name string) error {
	runes := []rune(name)
	if len(runes) < constants.PlayerNameMinLen || len(runes) > constants.PlayerNameMaxLen {
		return &domain.ValidationError{
			Field:  "name",
			Reason: fmt.Sprintf("name must be %d to %d characters", constants.PlayerNameMinLen, constants.PlayerNameMaxLen),
		}
	}
	for _, r := range runes {
		if !unicode.IsLetter(r) {
			return &domain.ValidationError{Field: "name", Reason: "name may only contain letters"}
		}
	}
	if !unicode.IsUpper(runes[0]) {
		return &domain.ValidationError{Field: "name", Reason: "name must start with a capital letter"}
	}
	return nil
}
