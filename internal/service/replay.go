package service

import (
	"context"
	"time"

	"club-ladder/internal/domain"
	"club-ladder/internal/rating"
)

// The recomputation engine. Both modes stage the complete replacement event
// set in memory and swap it into the ledger in one transaction, so an
// aborted replay leaves the ledger exactly as it was. The match store is
// only read, never mutated.

// fullReset rebuilds the whole ledger: every player starts over at the
// default rating and the complete match history is replayed in
// (played_at, id) order. Idempotent; rerunning it always converges to the
// same ledger.
func (s *LedgerService) fullReset(ctx context.Context) error {
	matches, err := s.matchRepo.ListOrdered(ctx)
	if err != nil {
		return err
	}

	events, err := replay(matches, nil)
	if err != nil {
		s.logger.Error().Err(err).Msg("full reset aborted, ledger untouched")
		return err
	}

	if err := s.ledgerRepo.Swap(ctx, nil, events); err != nil {
		return err
	}

	s.logger.Info().
		Int("matches", len(matches)).
		Int("events", len(events)).
		Msg("full reset completed")
	return nil
}

// partialReplay rebuilds the ledger from the cut point onward. Each
// participant's baseline is their last event strictly before the cut, or the
// default when none exists, which makes a cut before all history behave
// exactly like a full reset for those players.
func (s *LedgerService) partialReplay(ctx context.Context, cut time.Time) error {
	matches, err := s.matchRepo.ListOrderedFrom(ctx, cut)
	if err != nil {
		return err
	}

	baseline := make(map[string]int)
	for _, m := range matches {
		for _, id := range m.ParticipantIDs() {
			if _, ok := baseline[id]; ok {
				continue
			}
			ev, err := s.ledgerRepo.LatestBefore(ctx, id, cut)
			if err != nil {
				return err
			}
			if ev == nil {
				baseline[id] = rating.Default
			} else {
				baseline[id] = ev.Rating
			}
		}
	}

	events, err := replay(matches, baseline)
	if err != nil {
		s.logger.Error().Err(err).Time("cut", cut).Msg("partial replay aborted, ledger untouched")
		return err
	}

	if err := s.ledgerRepo.Swap(ctx, &cut, events); err != nil {
		return err
	}

	s.logger.Info().
		Time("cut", cut).
		Int("matches", len(matches)).
		Int("events", len(events)).
		Msg("partial replay completed")
	return nil
}

// replay streams matches through the rating formula starting from the given
// baseline ratings (default for players absent from the baseline) and
// returns the resulting event set. A malformed match aborts the whole run;
// the engine never silently skips.
func replay(matches []domain.Match, baseline map[string]int) ([]domain.RatingEvent, error) {
	current := make(map[string]int, len(baseline))
	for id, r := range baseline {
		current[id] = r
	}
	get := func(id string) int {
		if r, ok := current[id]; ok {
			return r
		}
		return rating.Default
	}

	events := make([]domain.RatingEvent, 0, len(matches)*4)
	for i := range matches {
		m := &matches[i]
		if err := checkReplayable(m); err != nil {
			return nil, err
		}

		out := rating.Sides(
			get(m.Home1ID), get(m.Home2ID),
			get(m.Away1ID), get(m.Away2ID),
			m.HomeScore, m.AwayScore,
		)
		next := map[string]int{
			m.Home1ID: out.Home1,
			m.Home2ID: out.Home2,
			m.Away1ID: out.Away1,
			m.Away2ID: out.Away2,
		}
		for _, id := range m.ParticipantIDs() {
			current[id] = next[id]
			events = append(events, domain.RatingEvent{
				PlayerID: id,
				MatchID:  m.ID,
				Rating:   next[id],
				PlayedAt: m.PlayedAt,
			})
		}
	}
	return events, nil
}

func checkReplayable(m *domain.Match) error {
	if m.HomeScore == m.AwayScore {
		return &domain.ReplayError{MatchID: m.ID, Reason: "tied scores"}
	}
	winner := m.HomeScore
	if m.AwayScore > winner {
		winner = m.AwayScore
	}
	if winner != rating.WinThreshold {
		return &domain.ReplayError{MatchID: m.ID, Reason: "no side reached the win threshold"}
	}
	return nil
}
