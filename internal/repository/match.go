package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"club-ladder/internal/domain"

	"github.com/rs/zerolog"
)

// MatchRepository owns the match store. The recomputation engine only ever
// reads from it; edits and deletes come through the service's writer lane.
type MatchRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewMatchRepository(sqlDB *sql.DB, logger zerolog.Logger) *MatchRepository {
	return &MatchRepository{
		db:     sqlDB,
		logger: logger,
	}
}

const matchColumns = `id, home1_id, home2_id, away1_id, away2_id,
	home_score, away_score,
	home1_bonus, home2_bonus, away1_bonus, away2_bonus,
	played_at, created_at, updated_at`

func scanMatch(row interface{ Scan(...any) error }) (*domain.Match, error) {
	var m domain.Match
	err := row.Scan(
		&m.ID, &m.Home1ID, &m.Home2ID, &m.Away1ID, &m.Away2ID,
		&m.HomeScore, &m.AwayScore,
		&m.Home1Bonus, &m.Home2Bonus, &m.Away1Bonus, &m.Away2Bonus,
		&m.PlayedAt, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *MatchRepository) Get(ctx context.Context, id string) (*domain.Match, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+matchColumns+` FROM matches WHERE id = ?`, id)
	m, err := scanMatch(row)
	if err == sql.ErrNoRows {
		return nil, domain.ErrMatchNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get match: %w", err)
	}
	return m, nil
}

// ListOrdered streams the full match history in replay order: ascending
// played_at, ties broken by id so replays are deterministic run to run.
func (r *MatchRepository) ListOrdered(ctx context.Context) ([]domain.Match, error) {
	return r.listFrom(ctx, nil)
}

// ListOrderedFrom returns matches with played_at at or after the cut point,
// in the same replay order.
func (r *MatchRepository) ListOrderedFrom(ctx context.Context, cut time.Time) ([]domain.Match, error) {
	return r.listFrom(ctx, &cut)
}

func (r *MatchRepository) listFrom(ctx context.Context, cut *time.Time) ([]domain.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches`
	args := []any{}
	if cut != nil {
		query += ` WHERE played_at >= ?`
		args = append(args, *cut)
	}
	query += ` ORDER BY played_at ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches: %w", err)
	}
	defer rows.Close()

	var matches []domain.Match
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan match: %w", err)
		}
		matches = append(matches, *m)
	}
	return matches, rows.Err()
}

func (r *MatchRepository) Update(ctx context.Context, m *domain.Match) error {
	m.UpdatedAt = time.Now().UTC()
	res, err := r.db.ExecContext(ctx,
		`UPDATE matches SET
			home1_id = ?, home2_id = ?, away1_id = ?, away2_id = ?,
			home_score = ?, away_score = ?,
			home1_bonus = ?, home2_bonus = ?, away1_bonus = ?, away2_bonus = ?,
			played_at = ?, updated_at = ?
		WHERE id = ?`,
		m.Home1ID, m.Home2ID, m.Away1ID, m.Away2ID,
		m.HomeScore, m.AwayScore,
		m.Home1Bonus, m.Home2Bonus, m.Away1Bonus, m.Away2Bonus,
		m.PlayedAt, m.UpdatedAt,
		m.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update match: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrMatchNotFound
	}
	return nil
}

func (r *MatchRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM matches WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete match: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrMatchNotFound
	}
	return nil
}

// HasMatchesFor reports whether a player appears in any match. Used to
// refuse deleting players with history.
func (r *MatchRepository) HasMatchesFor(ctx context.Context, playerID string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM matches
		 WHERE home1_id = ? OR home2_id = ? OR away1_id = ? OR away2_id = ?`,
		playerID, playerID, playerID, playerID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to count matches for player: %w", err)
	}
	return count > 0, nil
}
