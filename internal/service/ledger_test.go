package service

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"club-ladder/internal/database"
	"club-ladder/internal/domain"
	"club-ladder/internal/repository"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	db         *sql.DB
	ledgerRepo *repository.LedgerRepository
	matchRepo  *repository.MatchRepository
	ledger     *LedgerService
	players    *PlayerService

	// registered in setup, keyed by single-letter name
	ids map[string]string
}

func setup(t *testing.T) *fixture {
	t.Helper()

	log := zerolog.Nop()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"), log)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	playerRepo := repository.NewPlayerRepository(db, log)
	matchRepo := repository.NewMatchRepository(db, log)
	ledgerRepo := repository.NewLedgerRepository(db, log)
	ledger := NewLedgerService(matchRepo, playerRepo, ledgerRepo, log)
	players := NewPlayerService(playerRepo, matchRepo, ledger, log)

	f := &fixture{
		db:         db,
		ledgerRepo: ledgerRepo,
		matchRepo:  matchRepo,
		ledger:     ledger,
		players:    players,
		ids:        map[string]string{},
	}
	for _, name := range []string{"Anna", "Bart", "Coen", "Daan"} {
		p, err := players.Register(context.Background(), name)
		require.NoError(t, err)
		f.ids[name[:1]] = p.ID
	}
	return f
}

var t0 = time.Date(2025, 3, 1, 20, 0, 0, 0, time.UTC)

func at(hours int) time.Time { return t0.Add(time.Duration(hours) * time.Hour) }

// submit sends home pair a,b against away pair c,d.
func (f *fixture) submit(t *testing.T, a, b, c, d string, homeScore, awayScore int, playedAt time.Time) map[string]int {
	t.Helper()
	ratings, err := f.ledger.SubmitMatch(context.Background(), MatchInput{
		Home1ID:   f.ids[a],
		Home2ID:   f.ids[b],
		Away1ID:   f.ids[c],
		Away2ID:   f.ids[d],
		HomeScore: homeScore,
		AwayScore: awayScore,
		PlayedAt:  playedAt,
	})
	require.NoError(t, err)
	return ratings
}

func (f *fixture) rating(t *testing.T, name string) int {
	t.Helper()
	r, err := f.ledger.CurrentRating(context.Background(), f.ids[name])
	require.NoError(t, err)
	return r
}

type eventKey struct {
	PlayerID string
	MatchID  string
	Rating   int
	PlayedAt int64
}

// snapshot reads the whole ledger normalized for comparison: row ids are
// random nanoids and irrelevant to equivalence.
func (f *fixture) snapshot(t *testing.T) []eventKey {
	t.Helper()
	events, err := f.ledgerRepo.All(context.Background())
	require.NoError(t, err)
	keys := make([]eventKey, len(events))
	for i, ev := range events {
		keys[i] = eventKey{
			PlayerID: ev.PlayerID,
			MatchID:  ev.MatchID,
			Rating:   ev.Rating,
			PlayedAt: ev.PlayedAt.Unix(),
		}
	}
	return keys
}

func TestCurrentRatingDefault(t *testing.T) {
	f := setup(t)

	assert.Equal(t, 1000, f.rating(t, "A"),
		"a player with zero matches starts at the default rating")
}

func TestCurrentRatingUnknownPlayer(t *testing.T) {
	f := setup(t)

	_, err := f.ledger.CurrentRating(context.Background(), "no-such-id")
	assert.ErrorIs(t, err, domain.ErrPlayerNotFound,
		"unknown ids must not be confused with zero-history players")
}

func TestSubmitMatchUpdatesAllFourRatings(t *testing.T) {
	f := setup(t)

	ratings := f.submit(t, "A", "C", "B", "D", 10, 5, at(0))

	assert.Equal(t, 1008, ratings[f.ids["A"]])
	assert.Equal(t, 1008, ratings[f.ids["C"]])
	assert.Equal(t, 992, ratings[f.ids["B"]])
	assert.Equal(t, 992, ratings[f.ids["D"]])

	assert.Equal(t, 1008, f.rating(t, "A"))
	assert.Equal(t, 992, f.rating(t, "D"))
}

func TestSubmitMatchUnknownParticipantWritesNothing(t *testing.T) {
	f := setup(t)

	_, err := f.ledger.SubmitMatch(context.Background(), MatchInput{
		Home1ID:   f.ids["A"],
		Home2ID:   f.ids["B"],
		Away1ID:   f.ids["C"],
		Away2ID:   "ghost",
		HomeScore: 10,
		AwayScore: 5,
		PlayedAt:  at(0),
	})
	assert.ErrorIs(t, err, domain.ErrPlayerNotFound)

	matches, err := f.ledger.ListMatches(context.Background())
	require.NoError(t, err)
	assert.Empty(t, matches)
	assert.Empty(t, f.snapshot(t))
}

func TestSubmitMatchRejectsMalformedScores(t *testing.T) {
	tests := []struct {
		name      string
		homeScore int
		awayScore int
	}{{
		"tied",
		7, 7,
	}, {
		"nobody reached the threshold",
		8, 5,
	}, {
		"overshot the threshold",
		12, 5,
	}}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			f := setup(t)
			_, err := f.ledger.SubmitMatch(context.Background(), MatchInput{
				Home1ID:   f.ids["A"],
				Home2ID:   f.ids["B"],
				Away1ID:   f.ids["C"],
				Away2ID:   f.ids["D"],
				HomeScore: test.homeScore,
				AwayScore: test.awayScore,
				PlayedAt:  at(0),
			})
			var valErr *domain.ValidationError
			assert.ErrorAs(t, err, &valErr)
		})
	}
}

// The concrete two-match scenario: A+C beat B+D 10-5, then B+D reverse it
// 10-0. The bigger margin must move ratings further than the first match
// did.
func TestTwoMatchReversalScenario(t *testing.T) {
	f := setup(t)

	f.submit(t, "A", "C", "B", "D", 10, 5, at(1))

	afterFirstWinner := f.rating(t, "A")
	afterFirstLoser := f.rating(t, "B")
	assert.Equal(t, f.rating(t, "C"), afterFirstWinner, "teammates move together")
	assert.Equal(t, f.rating(t, "D"), afterFirstLoser)
	assert.Equal(t, afterFirstWinner-1000, 1000-afterFirstLoser,
		"equal starts move equal and opposite")

	f.submit(t, "B", "D", "A", "C", 10, 0, at(2))

	afterSecond := f.rating(t, "B")
	assert.Equal(t, f.rating(t, "D"), afterSecond)
	assert.Greater(t, afterSecond, afterFirstLoser)
	assert.Greater(t, afterSecond-afterFirstLoser, 1000-afterFirstLoser,
		"the 10-0 reversal outweighs the 10-5 loss")
}

func TestMarginSensitivity(t *testing.T) {
	narrow := setup(t)
	blowout := setup(t)

	narrow.submit(t, "A", "B", "C", "D", 10, 8, at(0))
	blowout.submit(t, "A", "B", "C", "D", 10, 1, at(0))

	narrowDelta := narrow.rating(t, "A") - 1000
	blowoutDelta := blowout.rating(t, "A") - 1000
	assert.Greater(t, blowoutDelta, narrowDelta)
}

func TestFullResetIsDeterministic(t *testing.T) {
	f := setup(t)

	f.submit(t, "A", "B", "C", "D", 10, 3, at(1))
	f.submit(t, "A", "C", "B", "D", 10, 8, at(2))
	f.submit(t, "C", "D", "A", "B", 10, 0, at(3))

	live := f.snapshot(t)

	require.NoError(t, f.ledger.ResetAllRatings(context.Background()))
	first := f.snapshot(t)

	require.NoError(t, f.ledger.ResetAllRatings(context.Background()))
	second := f.snapshot(t)

	assert.Equal(t, first, second, "two full resets must agree exactly")
	assert.Equal(t, live, first,
		"live submission and replay share one formula and must agree")
}

func TestEditReplaysDownstreamMatches(t *testing.T) {
	f := setup(t)

	f.submit(t, "A", "C", "B", "D", 10, 5, at(1))
	f.submit(t, "B", "D", "A", "C", 10, 0, at(2))

	matches, err := f.ledger.ListMatches(context.Background())
	require.NoError(t, err)
	require.Len(t, matches, 2)
	first := matches[0]

	before := f.snapshot(t)

	// Narrow the first match down: its own events and the second match's
	// expected-outcome inputs both change.
	err = f.ledger.EditMatch(context.Background(), first.ID, MatchInput{
		Home1ID:   first.Home1ID,
		Home2ID:   first.Home2ID,
		Away1ID:   first.Away1ID,
		Away2ID:   first.Away2ID,
		HomeScore: 10,
		AwayScore: 9,
		PlayedAt:  first.PlayedAt,
	})
	require.NoError(t, err)

	after := f.snapshot(t)
	assert.NotEqual(t, before, after)

	// Replay equivalence: the partial replay must match a from-scratch
	// rebuild of the edited history.
	require.NoError(t, f.ledger.ResetAllRatings(context.Background()))
	assert.Equal(t, after, f.snapshot(t))
}

func TestEditTimestampUsesEarlierCutPoint(t *testing.T) {
	f := setup(t)

	f.submit(t, "A", "B", "C", "D", 10, 4, at(1))
	f.submit(t, "A", "C", "B", "D", 10, 6, at(2))
	f.submit(t, "B", "C", "A", "D", 10, 2, at(3))

	matches, err := f.ledger.ListMatches(context.Background())
	require.NoError(t, err)
	require.Len(t, matches, 3)

	// Move the middle match before the first one.
	mid := matches[1]
	err = f.ledger.EditMatch(context.Background(), mid.ID, MatchInput{
		Home1ID:   mid.Home1ID,
		Home2ID:   mid.Home2ID,
		Away1ID:   mid.Away1ID,
		Away2ID:   mid.Away2ID,
		HomeScore: mid.HomeScore,
		AwayScore: mid.AwayScore,
		PlayedAt:  at(0),
	})
	require.NoError(t, err)

	after := f.snapshot(t)
	require.NoError(t, f.ledger.ResetAllRatings(context.Background()))
	assert.Equal(t, after, f.snapshot(t),
		"replay from the earlier timestamp must equal a full rebuild")
}

func TestDeleteMatchReplaysFromItsTimestamp(t *testing.T) {
	f := setup(t)

	f.submit(t, "A", "C", "B", "D", 10, 5, at(1))
	f.submit(t, "B", "D", "A", "C", 10, 0, at(2))

	matches, err := f.ledger.ListMatches(context.Background())
	require.NoError(t, err)
	first := matches[0]

	require.NoError(t, f.ledger.DeleteMatch(context.Background(), first.ID))

	// Only the second match remains; replayed from scratch it is a 10-0
	// between all-default sides.
	assert.Equal(t, 1013, f.rating(t, "B"))
	assert.Equal(t, 1013, f.rating(t, "D"))
	assert.Equal(t, 987, f.rating(t, "A"))
	assert.Equal(t, 987, f.rating(t, "C"))

	history, err := f.ledger.RatingHistory(context.Background(), f.ids["A"])
	require.NoError(t, err)
	assert.Len(t, history, 1, "the deleted match's events are gone")
}

func TestDeleteUnknownMatch(t *testing.T) {
	f := setup(t)

	err := f.ledger.DeleteMatch(context.Background(), "no-such-match")
	assert.ErrorIs(t, err, domain.ErrMatchNotFound)
}

func TestBackdatedSubmissionRestoresChronology(t *testing.T) {
	f := setup(t)

	// Later match arrives first.
	f.submit(t, "B", "D", "A", "C", 10, 0, at(2))
	// Then an earlier one is filed after the fact.
	ratings := f.submit(t, "A", "C", "B", "D", 10, 5, at(1))

	after := f.snapshot(t)
	require.NoError(t, f.ledger.ResetAllRatings(context.Background()))
	assert.Equal(t, after, f.snapshot(t),
		"a backdated submission must leave the same ledger as a full rebuild")

	// The returned ratings reflect the replayed suffix, not the stale
	// pre-replay projection.
	assert.Equal(t, f.rating(t, "A"), ratings[f.ids["A"]])
	assert.Equal(t, f.rating(t, "B"), ratings[f.ids["B"]])
}

func TestResetAbortsOnMalformedMatchAndKeepsLedger(t *testing.T) {
	f := setup(t)

	f.submit(t, "A", "B", "C", "D", 10, 5, at(1))
	before := f.snapshot(t)

	// A tied match smuggled past upstream validation.
	_, err := f.db.Exec(
		`INSERT INTO matches (id, home1_id, home2_id, away1_id, away2_id,
			home_score, away_score, home1_bonus, home2_bonus, away1_bonus, away2_bonus,
			played_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, 7, 7, 0, 0, 0, 0, ?, ?, ?)`,
		"bad-match", f.ids["A"], f.ids["B"], f.ids["C"], f.ids["D"],
		at(5), at(5), at(5),
	)
	require.NoError(t, err)

	err = f.ledger.ResetAllRatings(context.Background())
	var replayErr *domain.ReplayError
	require.ErrorAs(t, err, &replayErr)
	assert.Equal(t, "bad-match", replayErr.MatchID)

	assert.Equal(t, before, f.snapshot(t),
		"an aborted replay must leave the ledger in its pre-replay state")
}

func TestRatingHistoryOrdered(t *testing.T) {
	f := setup(t)

	f.submit(t, "A", "B", "C", "D", 10, 5, at(1))
	f.submit(t, "A", "C", "B", "D", 10, 0, at(2))
	f.submit(t, "C", "D", "A", "B", 10, 7, at(3))

	history, err := f.ledger.RatingHistory(context.Background(), f.ids["A"])
	require.NoError(t, err)
	require.Len(t, history, 3)
	for i := 1; i < len(history); i++ {
		assert.True(t, history[i-1].PlayedAt.Before(history[i].PlayedAt))
	}
}
