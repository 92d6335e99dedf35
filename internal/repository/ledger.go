package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"club-ladder/internal/constants"
	"club-ladder/internal/domain"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

// LedgerRepository owns the rating_events table: the append-only, per-player,
// time-ordered record every rating is derived from.
type LedgerRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewLedgerRepository(sqlDB *sql.DB, logger zerolog.Logger) *LedgerRepository {
	return &LedgerRepository{
		db:     sqlDB,
		logger: logger,
	}
}

// CommitMatch writes the match row and its rating events in one transaction.
// Either every write lands or none do; readers never see a match without its
// ratings or ratings without their match.
func (r *LedgerRepository) CommitMatch(ctx context.Context, match *domain.Match, events []domain.RatingEvent) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return &domain.CommitError{MatchID: match.ID, Err: fmt.Errorf("failed to begin transaction: %w", err)}
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO matches (`+matchColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		match.ID, match.Home1ID, match.Home2ID, match.Away1ID, match.Away2ID,
		match.HomeScore, match.AwayScore,
		match.Home1Bonus, match.Home2Bonus, match.Away1Bonus, match.Away2Bonus,
		match.PlayedAt, match.CreatedAt, match.UpdatedAt,
	)
	if err != nil {
		r.logger.Error().Err(err).Str("match_id", match.ID).Msg("failed to insert match")
		return &domain.CommitError{MatchID: match.ID, Err: fmt.Errorf("failed to insert match: %w", err)}
	}

	if err := insertEvents(ctx, tx, events); err != nil {
		r.logger.Error().Err(err).Str("match_id", match.ID).Msg("failed to insert rating events")
		return &domain.CommitError{MatchID: match.ID, Err: err}
	}

	if err := tx.Commit(); err != nil {
		return &domain.CommitError{MatchID: match.ID, Err: fmt.Errorf("failed to commit: %w", err)}
	}
	return nil
}

func insertEvents(ctx context.Context, tx *sql.Tx, events []domain.RatingEvent) error {
	for _, ev := range events {
		id := ev.ID
		if id == "" {
			var err error
			id, err = gonanoid.New()
			if err != nil {
				return fmt.Errorf("failed to generate nanoid: %w", err)
			}
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO rating_events (id, player_id, match_id, rating, played_at)
			 VALUES (?, ?, ?, ?, ?)`,
			id, ev.PlayerID, ev.MatchID, ev.Rating, ev.PlayedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert rating event for player %s: %w", ev.PlayerID, err)
		}
	}
	return nil
}

// Swap atomically replaces a suffix of the ledger with a staged event set.
// A nil cut replaces the whole ledger (full reset); otherwise every event
// with played_at at or after the cut is deleted before the staged events go
// in. The staging-then-swap shape is what keeps a failed replay from leaving
// the ledger half rebuilt.
func (r *LedgerRepository) Swap(ctx context.Context, cut *time.Time, events []domain.RatingEvent) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if cut == nil {
		_, err = tx.ExecContext(ctx, `DELETE FROM rating_events`)
	} else {
		_, err = tx.ExecContext(ctx, `DELETE FROM rating_events WHERE played_at >= ?`, *cut)
	}
	if err != nil {
		return fmt.Errorf("failed to delete ledger suffix: %w", err)
	}

	for i := 0; i < len(events); i += constants.DBBatchSize {
		end := i + constants.DBBatchSize
		if end > len(events) {
			end = len(events)
		}
		if err := insertEvents(ctx, tx, events[i:end]); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// Latest returns the player's most recent event, or (nil, nil) if the player
// has no history yet.
func (r *LedgerRepository) Latest(ctx context.Context, playerID string) (*domain.RatingEvent, error) {
	return r.latestBefore(ctx, playerID, nil)
}

// LatestBefore returns the player's most recent event strictly before the
// cut point, or (nil, nil) when the player has no events there. The replay
// engine uses it to reconstruct the baseline ratings as of just before a
// cut.
func (r *LedgerRepository) LatestBefore(ctx context.Context, playerID string, cut time.Time) (*domain.RatingEvent, error) {
	return r.latestBefore(ctx, playerID, &cut)
}

func (r *LedgerRepository) latestBefore(ctx context.Context, playerID string, cut *time.Time) (*domain.RatingEvent, error) {
	query := `SELECT id, player_id, match_id, rating, played_at
		FROM rating_events WHERE player_id = ?`
	args := []any{playerID}
	if cut != nil {
		query += ` AND played_at < ?`
		args = append(args, *cut)
	}
	query += ` ORDER BY played_at DESC, match_id DESC LIMIT 1`

	var ev domain.RatingEvent
	err := r.db.QueryRowContext(ctx, query, args...).
		Scan(&ev.ID, &ev.PlayerID, &ev.MatchID, &ev.Rating, &ev.PlayedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest rating event: %w", err)
	}
	return &ev, nil
}

// History returns the player's full rating development in ledger order.
func (r *LedgerRepository) History(ctx context.Context, playerID string) ([]domain.HistoryPoint, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT played_at, rating FROM rating_events
		 WHERE player_id = ?
		 ORDER BY played_at ASC, match_id ASC`, playerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get rating history: %w", err)
	}
	defer rows.Close()

	var points []domain.HistoryPoint
	for rows.Next() {
		var p domain.HistoryPoint
		if err := rows.Scan(&p.PlayedAt, &p.Rating); err != nil {
			return nil, fmt.Errorf("failed to scan history point: %w", err)
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

// All returns every event in ledger order. Tests use it to compare whole
// ledgers between replay strategies.
func (r *LedgerRepository) All(ctx context.Context) ([]domain.RatingEvent, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, player_id, match_id, rating, played_at
		 FROM rating_events
		 ORDER BY played_at ASC, match_id ASC, player_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list rating events: %w", err)
	}
	defer rows.Close()

	var events []domain.RatingEvent
	for rows.Next() {
		var ev domain.RatingEvent
		if err := rows.Scan(&ev.ID, &ev.PlayerID, &ev.MatchID, &ev.Rating, &ev.PlayedAt); err != nil {
			return nil, fmt.Errorf("failed to scan rating event: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}
