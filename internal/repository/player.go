package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"club-ladder/internal/domain"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

type PlayerRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewPlayerRepository(sqlDB *sql.DB, logger zerolog.Logger) *PlayerRepository {
	return &PlayerRepository{
		db:     sqlDB,
		logger: logger,
	}
}

func (r *PlayerRepository) Create(ctx context.Context, name string) (*domain.Player, error) {
	id, err := gonanoid.New()
	if err != nil {
		return nil, fmt.Errorf("failed to generate nanoid: %w", err)
	}

	player := &domain.Player{
		ID:        id,
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO players (id, name, created_at) VALUES (?, ?, ?)`,
		player.ID, player.Name, player.CreatedAt,
	)
	if err != nil {
		r.logger.Error().Err(err).Str("name", name).Msg("failed to insert player")
		return nil, fmt.Errorf("failed to insert player: %w", err)
	}

	return player, nil
}

func (r *PlayerRepository) Get(ctx context.Context, id string) (*domain.Player, error) {
	var p domain.Player
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, created_at FROM players WHERE id = ?`, id,
	).Scan(&p.ID, &p.Name, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, domain.ErrPlayerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get player: %w", err)
	}
	return &p, nil
}

func (r *PlayerRepository) GetByName(ctx context.Context, name string) (*domain.Player, error) {
	var p domain.Player
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, created_at FROM players WHERE name = ?`, name,
	).Scan(&p.ID, &p.Name, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, domain.ErrPlayerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get player by name: %w", err)
	}
	return &p, nil
}

func (r *PlayerRepository) List(ctx context.Context) ([]domain.Player, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, created_at FROM players ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list players: %w", err)
	}
	defer rows.Close()

	var players []domain.Player
	for rows.Next() {
		var p domain.Player
		if err := rows.Scan(&p.ID, &p.Name, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan player: %w", err)
		}
		players = append(players, p)
	}
	return players, rows.Err()
}

// ResolveAll checks that every id exists. Returns the first missing id
// wrapped in ErrPlayerNotFound.
func (r *PlayerRepository) ResolveAll(ctx context.Context, ids []string) error {
	for _, id := range ids {
		var one int
		err := r.db.QueryRowContext(ctx,
			`SELECT 1 FROM players WHERE id = ?`, id).Scan(&one)
		if err == sql.ErrNoRows {
			return fmt.Errorf("%w: %s", domain.ErrPlayerNotFound, id)
		}
		if err != nil {
			return fmt.Errorf("failed to resolve player %s: %w", id, err)
		}
	}
	return nil
}

func (r *PlayerRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM players WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete player: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrPlayerNotFound
	}
	return nil
}
