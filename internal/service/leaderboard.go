package service

import (
	"context"
	"sort"

	"club-ladder/internal/domain"

	"golang.org/x/sync/errgroup"
)

// PlayerRating is one leaderboard row.
type PlayerRating struct {
	Player domain.Player `json:"player"`
	Rating int           `json:"rating"`
}

// Leaderboard lists every player with their current rating, highest first.
// Ratings are fetched concurrently; each is a single point query.
func (s *PlayerService) Leaderboard(ctx context.Context) ([]PlayerRating, error) {
	players, err := s.playerRepo.List(ctx)
	if err != nil {
		return nil, err
	}

	rows := make([]PlayerRating, len(players))
	g, gCtx := errgroup.WithContext(ctx)
	for i, p := range players {
		i, p := i, p
		g.Go(func() error {
			r, err := s.ledger.CurrentRating(gCtx, p.ID)
			if err != nil {
				return err
			}
			rows[i] = PlayerRating{Player: p, Rating: r}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Rating > rows[j].Rating
	})
	return rows, nil
}
