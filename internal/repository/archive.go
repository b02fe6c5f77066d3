package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rocketscienceinc/ultimate-tictactoe/internal/entity"
)

type ArchiveRepository interface {
	Save(ctx context.Context, match *entity.Match) error
	List(ctx context.Context, limit int) ([]entity.MatchResult, error)
	Standings(ctx context.Context) ([]entity.Standing, error)
}

type dbArchive struct {
	pool *pgxpool.Pool
}

func NewArchiveRepository(pool *pgxpool.Pool) ArchiveRepository {
	return &dbArchive{
		pool: pool,
	}
}

func (that *dbArchive) Save(ctx context.Context, match *entity.Match) error {
	history, err := json.Marshal(match.State.History)
	if err != nil {
		return fmt.Errorf("could not marshal history: %w", err)
	}

	_, err = that.pool.Exec(ctx, `
		INSERT INTO match_results (id, x_provider, o_provider, status, winner, moves, history, created_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, $8, $9)
		ON CONFLICT (id) DO UPDATE
		   SET status = EXCLUDED.status,
		       winner = EXCLUDED.winner,
		       moves = EXCLUDED.moves,
		       history = EXCLUDED.history,
		       finished_at = EXCLUDED.finished_at
	`,
		match.ID,
		match.SeatProvider(entity.X),
		match.SeatProvider(entity.O),
		string(match.State.Status),
		string(match.State.Winner),
		len(match.State.History),
		string(history),
		match.CreatedAt,
		match.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to archive match: %w", err)
	}

	return nil
}

// List - most recently finished first, without move histories.
func (that *dbArchive) List(ctx context.Context, limit int) ([]entity.MatchResult, error) {
	rows, err := that.pool.Query(ctx, `
		SELECT id, x_provider, o_provider, status, winner, moves, created_at, finished_at
		  FROM match_results
		 ORDER BY finished_at DESC
		 LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list results: %w", err)
	}

	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (entity.MatchResult, error) {
		var (
			result         entity.MatchResult
			status, winner string
		)

		err := row.Scan(&result.ID, &result.XProvider, &result.OProvider, &status, &winner,
			&result.Moves, &result.CreatedAt, &result.FinishedAt)
		result.Status = entity.Status(status)
		result.Winner = entity.Mark(winner)

		return result, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan results: %w", err)
	}

	return results, nil
}

func (that *dbArchive) Standings(ctx context.Context) ([]entity.Standing, error) {
	rows, err := that.pool.Query(ctx, `
		SELECT provider,
		       COUNT(*) AS played,
		       COUNT(*) FILTER (WHERE winner = mark) AS wins,
		       COUNT(*) FILTER (WHERE winner <> '' AND winner <> mark) AS losses,
		       COUNT(*) FILTER (WHERE winner = '') AS draws
		  FROM (
		        SELECT x_provider AS provider, 'X' AS mark, winner FROM match_results
		        UNION ALL
		        SELECT o_provider AS provider, 'O' AS mark, winner FROM match_results
		       ) seats
		 GROUP BY provider
		 ORDER BY wins DESC, provider
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query standings: %w", err)
	}

	standings, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (entity.Standing, error) {
		var standing entity.Standing
		err := row.Scan(&standing.Provider, &standing.Played, &standing.Wins, &standing.Losses, &standing.Draws)

		return standing, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan standings: %w", err)
	}

	return standings, nil
}

// NopArchive - used when no postgres DSN is configured.
type NopArchive struct{}

func (NopArchive) Save(context.Context, *entity.Match) error { return nil }

func (NopArchive) List(context.Context, int) ([]entity.MatchResult, error) {
	return []entity.MatchResult{}, nil
}

func (NopArchive) Standings(context.Context) ([]entity.Standing, error) {
	return []entity.Standing{}, nil
}
