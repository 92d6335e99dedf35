package repository

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"club-ladder/internal/database"
	"club-ladder/internal/domain"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRepos(t *testing.T) (*sql.DB, *PlayerRepository, *MatchRepository, *LedgerRepository) {
	t.Helper()
	log := zerolog.Nop()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"), log)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, NewPlayerRepository(db, log), NewMatchRepository(db, log), NewLedgerRepository(db, log)
}

func testMatch(players [4]string, playedAt time.Time) *domain.Match {
	now := time.Now().UTC()
	return &domain.Match{
		ID:        "match-1",
		Home1ID:   players[0],
		Home2ID:   players[1],
		Away1ID:   players[2],
		Away2ID:   players[3],
		HomeScore: 10,
		AwayScore: 5,
		PlayedAt:  playedAt,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// A failure partway through the commit (here the fourth event violating the
// per-match uniqueness constraint, after the match row and three events went
// in) must leave the match fully absent and no rating event visible.
func TestCommitMatchRollsBackOnMidwayFailure(t *testing.T) {
	ctx := context.Background()
	_, playerRepo, matchRepo, ledgerRepo := setupRepos(t)

	var ids [4]string
	for i, name := range []string{"Anna", "Bart", "Coen", "Daan"} {
		p, err := playerRepo.Create(ctx, name)
		require.NoError(t, err)
		ids[i] = p.ID
	}

	playedAt := time.Date(2025, 3, 1, 20, 0, 0, 0, time.UTC)
	match := testMatch(ids, playedAt)

	events := []domain.RatingEvent{
		{PlayerID: ids[0], MatchID: match.ID, Rating: 1008, PlayedAt: playedAt},
		{PlayerID: ids[1], MatchID: match.ID, Rating: 1008, PlayedAt: playedAt},
		{PlayerID: ids[2], MatchID: match.ID, Rating: 992, PlayedAt: playedAt},
		{PlayerID: ids[2], MatchID: match.ID, Rating: 992, PlayedAt: playedAt}, // duplicate slot
	}

	err := ledgerRepo.CommitMatch(ctx, match, events)
	var commitErr *domain.CommitError
	require.ErrorAs(t, err, &commitErr)
	assert.Equal(t, match.ID, commitErr.MatchID)

	_, err = matchRepo.Get(ctx, match.ID)
	assert.ErrorIs(t, err, domain.ErrMatchNotFound, "the match row must not survive the rollback")

	all, err := ledgerRepo.All(ctx)
	require.NoError(t, err)
	assert.Empty(t, all, "no rating event of the failed commit may be visible")
}

func TestCommitMatchRejectsDuplicateMatchID(t *testing.T) {
	ctx := context.Background()
	_, playerRepo, _, ledgerRepo := setupRepos(t)

	var ids [4]string
	for i, name := range []string{"Anna", "Bart", "Coen", "Daan"} {
		p, err := playerRepo.Create(ctx, name)
		require.NoError(t, err)
		ids[i] = p.ID
	}

	playedAt := time.Date(2025, 3, 1, 20, 0, 0, 0, time.UTC)
	match := testMatch(ids, playedAt)
	events := []domain.RatingEvent{
		{PlayerID: ids[0], MatchID: match.ID, Rating: 1008, PlayedAt: playedAt},
	}

	require.NoError(t, ledgerRepo.CommitMatch(ctx, match, events))

	err := ledgerRepo.CommitMatch(ctx, match, events)
	var commitErr *domain.CommitError
	require.ErrorAs(t, err, &commitErr)

	all, err := ledgerRepo.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1, "the first commit stays intact, the conflicting one writes nothing")
}

func TestLatestBeforeIsStrict(t *testing.T) {
	ctx := context.Background()
	_, playerRepo, _, ledgerRepo := setupRepos(t)

	p, err := playerRepo.Create(ctx, "Anna")
	require.NoError(t, err)

	cut := time.Date(2025, 3, 1, 20, 0, 0, 0, time.UTC)
	require.NoError(t, ledgerRepo.Swap(ctx, nil, []domain.RatingEvent{
		{PlayerID: p.ID, MatchID: "m1", Rating: 1010, PlayedAt: cut.Add(-time.Hour)},
		{PlayerID: p.ID, MatchID: "m2", Rating: 1020, PlayedAt: cut},
	}))

	ev, err := ledgerRepo.LatestBefore(ctx, p.ID, cut)
	require.NoError(t, err)
	require.NotNil(t, ev)
	assert.Equal(t, 1010, ev.Rating, "an event exactly at the cut is part of the invalidated suffix")

	ev, err = ledgerRepo.LatestBefore(ctx, p.ID, cut.Add(-time.Hour))
	require.NoError(t, err)
	assert.Nil(t, ev, "no event strictly before the first one")
}

func TestSwapReplacesSuffixOnly(t *testing.T) {
	ctx := context.Background()
	_, playerRepo, _, ledgerRepo := setupRepos(t)

	p, err := playerRepo.Create(ctx, "Anna")
	require.NoError(t, err)

	cut := time.Date(2025, 3, 1, 20, 0, 0, 0, time.UTC)
	require.NoError(t, ledgerRepo.Swap(ctx, nil, []domain.RatingEvent{
		{PlayerID: p.ID, MatchID: "m1", Rating: 1010, PlayedAt: cut.Add(-time.Hour)},
		{PlayerID: p.ID, MatchID: "m2", Rating: 1020, PlayedAt: cut},
		{PlayerID: p.ID, MatchID: "m3", Rating: 1030, PlayedAt: cut.Add(time.Hour)},
	}))

	require.NoError(t, ledgerRepo.Swap(ctx, &cut, []domain.RatingEvent{
		{PlayerID: p.ID, MatchID: "m2", Rating: 1005, PlayedAt: cut},
	}))

	history, err := ledgerRepo.History(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, 1010, history[0].Rating, "the prefix before the cut is untouched")
	assert.Equal(t, 1005, history[1].Rating)
}
