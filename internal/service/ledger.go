package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"club-ladder/internal/constants"
	"club-ladder/internal/domain"
	"club-ladder/internal/rating"
	"club-ladder/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// MatchInput is a match submission before the core has assigned identity.
type MatchInput struct {
	Home1ID    string
	Home2ID    string
	Away1ID    string
	Away2ID    string
	HomeScore  int
	AwayScore  int
	Home1Bonus int
	Home2Bonus int
	Away1Bonus int
	Away2Bonus int
	PlayedAt   time.Time
}

// LedgerService is the core's single writer lane. Match commits and
// recomputations serialize on mu; reads are point queries against the ledger
// and run lock free.
type LedgerService struct {
	mu         sync.Mutex
	matchRepo  *repository.MatchRepository
	playerRepo *repository.PlayerRepository
	ledgerRepo *repository.LedgerRepository
	logger     zerolog.Logger
}

func NewLedgerService(matchRepo *repository.MatchRepository, playerRepo *repository.PlayerRepository, ledgerRepo *repository.LedgerRepository, logger zerolog.Logger) *LedgerService {
	return &LedgerService{
		matchRepo:  matchRepo,
		playerRepo: playerRepo,
		ledgerRepo: ledgerRepo,
		logger:     logger,
	}
}

// SubmitMatch validates that all four participants resolve, computes both
// sides' new ratings, and commits the match plus one rating event per
// participant as a single atomic unit. It returns each participant's new
// rating keyed by player id.
//
// A backdated submission (played before a match already on record) is
// followed by a partial replay from its timestamp, since every later match
// was rated against inputs that have now changed.
func (s *LedgerService) SubmitMatch(ctx context.Context, in MatchInput) (map[string]int, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.RequestTimeout)
	defer cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := validateScores(in.HomeScore, in.AwayScore); err != nil {
		return nil, err
	}

	match := &domain.Match{
		ID:         uuid.New().String(),
		Home1ID:    in.Home1ID,
		Home2ID:    in.Home2ID,
		Away1ID:    in.Away1ID,
		Away2ID:    in.Away2ID,
		HomeScore:  in.HomeScore,
		AwayScore:  in.AwayScore,
		Home1Bonus: in.Home1Bonus,
		Home2Bonus: in.Home2Bonus,
		Away1Bonus: in.Away1Bonus,
		Away2Bonus: in.Away2Bonus,
		PlayedAt:   in.PlayedAt.UTC(),
		CreatedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}

	ids := match.ParticipantIDs()
	if err := s.playerRepo.ResolveAll(ctx, ids[:]); err != nil {
		return nil, err
	}

	current := make(map[string]int, 4)
	for _, id := range ids {
		r, err := s.currentRating(ctx, id)
		if err != nil {
			return nil, err
		}
		current[id] = r
	}

	out := rating.Sides(
		current[match.Home1ID], current[match.Home2ID],
		current[match.Away1ID], current[match.Away2ID],
		match.HomeScore, match.AwayScore,
	)
	newRatings := map[string]int{
		match.Home1ID: out.Home1,
		match.Home2ID: out.Home2,
		match.Away1ID: out.Away1,
		match.Away2ID: out.Away2,
	}

	events := make([]domain.RatingEvent, 0, len(ids))
	for _, id := range ids {
		events = append(events, domain.RatingEvent{
			PlayerID: id,
			MatchID:  match.ID,
			Rating:   newRatings[id],
			PlayedAt: match.PlayedAt,
		})
	}

	if err := s.ledgerRepo.CommitMatch(ctx, match, events); err != nil {
		s.logger.Error().Err(err).Str("match_id", match.ID).Msg("match commit failed")
		return nil, err
	}

	s.logger.Info().
		Str("match_id", match.ID).
		Time("played_at", match.PlayedAt).
		Float64("home_delta", out.HomeDelta).
		Float64("away_delta", out.AwayDelta).
		Msg("match committed")

	backdated, err := s.isBackdated(ctx, match)
	if err != nil {
		return nil, err
	}
	if backdated {
		s.logger.Info().Str("match_id", match.ID).Msg("backdated submission, replaying suffix")
		if err := s.partialReplay(ctx, match.PlayedAt); err != nil {
			return nil, err
		}
		for _, id := range ids {
			r, err := s.currentRating(ctx, id)
			if err != nil {
				return nil, err
			}
			newRatings[id] = r
		}
	}

	return newRatings, nil
}

// isBackdated reports whether any other match on record was played after
// this one.
func (s *LedgerService) isBackdated(ctx context.Context, match *domain.Match) (bool, error) {
	later, err := s.matchRepo.ListOrderedFrom(ctx, match.PlayedAt)
	if err != nil {
		return false, err
	}
	for _, m := range later {
		if m.ID != match.ID {
			return true, nil
		}
	}
	return false, nil
}

// EditMatch persists the change and partially replays from the earlier of
// the old and new timestamps, since both positions in history are
// invalidated when the timestamp moves.
func (s *LedgerService) EditMatch(ctx context.Context, id string, in MatchInput) error {
	ctx, cancel := context.WithTimeout(ctx, constants.RequestTimeout)
	defer cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := validateScores(in.HomeScore, in.AwayScore); err != nil {
		return err
	}

	existing, err := s.matchRepo.Get(ctx, id)
	if err != nil {
		return err
	}

	updated := *existing
	updated.Home1ID = in.Home1ID
	updated.Home2ID = in.Home2ID
	updated.Away1ID = in.Away1ID
	updated.Away2ID = in.Away2ID
	updated.HomeScore = in.HomeScore
	updated.AwayScore = in.AwayScore
	updated.Home1Bonus = in.Home1Bonus
	updated.Home2Bonus = in.Home2Bonus
	updated.Away1Bonus = in.Away1Bonus
	updated.Away2Bonus = in.Away2Bonus
	updated.PlayedAt = in.PlayedAt.UTC()

	ids := updated.ParticipantIDs()
	if err := s.playerRepo.ResolveAll(ctx, ids[:]); err != nil {
		return err
	}

	if err := s.matchRepo.Update(ctx, &updated); err != nil {
		return err
	}

	cut := existing.PlayedAt
	if updated.PlayedAt.Before(cut) {
		cut = updated.PlayedAt
	}

	s.logger.Info().
		Str("match_id", id).
		Time("cut", cut).
		Msg("match edited, replaying from cut point")

	return s.partialReplay(ctx, cut)
}

// DeleteMatch removes the match and partially replays from its timestamp.
func (s *LedgerService) DeleteMatch(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, constants.RequestTimeout)
	defer cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	match, err := s.matchRepo.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := s.matchRepo.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.Info().
		Str("match_id", id).
		Time("cut", match.PlayedAt).
		Msg("match deleted, replaying from its timestamp")

	return s.partialReplay(ctx, match.PlayedAt)
}

// ResetAllRatings rebuilds the entire ledger from the full match history.
func (s *LedgerService) ResetAllRatings(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, constants.RequestTimeout)
	defer cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.fullReset(ctx)
}

// CurrentRating returns the rating carried by the player's latest ledger
// event, or the default for a known player with no history. An unknown id is
// ErrPlayerNotFound, never a silent default.
func (s *LedgerService) CurrentRating(ctx context.Context, playerID string) (int, error) {
	if _, err := s.playerRepo.Get(ctx, playerID); err != nil {
		return 0, err
	}
	return s.currentRating(ctx, playerID)
}

func (s *LedgerService) currentRating(ctx context.Context, playerID string) (int, error) {
	ev, err := s.ledgerRepo.Latest(ctx, playerID)
	if err != nil {
		return 0, err
	}
	if ev == nil {
		return rating.Default, nil
	}
	return ev.Rating, nil
}

// RatingHistory returns the player's rating development in ledger order.
func (s *LedgerService) RatingHistory(ctx context.Context, playerID string) ([]domain.HistoryPoint, error) {
	if _, err := s.playerRepo.Get(ctx, playerID); err != nil {
		return nil, err
	}
	return s.ledgerRepo.History(ctx, playerID)
}

// ListMatches returns the full match history in replay order.
func (s *LedgerService) ListMatches(ctx context.Context) ([]domain.Match, error) {
	return s.matchRepo.ListOrdered(ctx)
}

func validateScores(home, away int) error {
	if home == away {
		return &domain.ValidationError{Field: "score", Reason: "tied scores are not a completed match"}
	}
	winner := home
	if away > winner {
		winner = away
	}
	if winner != rating.WinThreshold {
		return &domain.ValidationError{
			Field:  "score",
			Reason: fmt.Sprintf("winning side must score exactly %d", rating.WinThreshold),
		}
	}
	return nil
}
