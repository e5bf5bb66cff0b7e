package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/courtside/cbbpoll/models"
)

var (
	ErrResultNotFound = errors.New("game result not found")
	ErrResultExists   = errors.New("game already has a recorded result")
)

type ResultRepository interface {
	Create(ctx context.Context, exec SQLExecutor, result *models.GameResult) error
	GetByGameID(ctx context.Context, exec SQLExecutor, gameID int) (*models.GameResult, error)
	ListByConference(ctx context.Context, exec SQLExecutor, conferenceID int) ([]models.GameResult, error)
	Delete(ctx context.Context, exec SQLExecutor, gameID int) error
}

type postgresResultRepository struct {
	db *sql.DB
}

func NewPostgresResultRepository(db *sql.DB) ResultRepository {
	return &postgresResultRepository{db: db}
}

func (r *postgresResultRepository) exec(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresResultRepository) Create(ctx context.Context, exec SQLExecutor, result *models.GameResult) error {
	query := `
		INSERT INTO game_results (game_id, winner_team_id)
		VALUES ($1, $2)
		RETURNING id, recorded_at`

	err := r.exec(exec).QueryRowContext(ctx, query, result.GameID, result.WinnerTeamID).
		Scan(&result.ID, &result.RecordedAt)
	if err != nil {
		// game_results_game_id_key: a concurrent writer beat us to it.
		if pqConstraint(err, pqUniqueViolation) == "game_results_game_id_key" {
			return ErrResultExists
		}
		return err
	}
	return nil
}

func (r *postgresResultRepository) GetByGameID(ctx context.Context, exec SQLExecutor, gameID int) (*models.GameResult, error) {
	result := &models.GameResult{}
	err := r.exec(exec).QueryRowContext(ctx,
		`SELECT id, game_id, winner_team_id, recorded_at FROM game_results WHERE game_id = $1`, gameID,
	).Scan(&result.ID, &result.GameID, &result.WinnerTeamID, &result.RecordedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrResultNotFound
		}
		return nil, err
	}
	return result, nil
}

func (r *postgresResultRepository) ListByConference(ctx context.Context, exec SQLExecutor, conferenceID int) ([]models.GameResult, error) {
	query := `
		SELECT gr.id, gr.game_id, gr.winner_team_id, gr.recorded_at
		FROM game_results gr
		JOIN games g ON g.id = gr.game_id
		WHERE g.conference_id = $1
		ORDER BY gr.game_id ASC`

	rows, err := r.exec(exec).QueryContext(ctx, query, conferenceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]models.GameResult, 0)
	for rows.Next() {
		var result models.GameResult
		if err := rows.Scan(&result.ID, &result.GameID, &result.WinnerTeamID, &result.RecordedAt); err != nil {
			return nil, err
		}
		results = append(results, result)
	}
	return results, rows.Err()
}

func (r *postgresResultRepository) Delete(ctx context.Context, exec SQLExecutor, gameID int) error {
	result, err := r.exec(exec).ExecContext(ctx, `DELETE FROM game_results WHERE game_id = $1`, gameID)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrResultNotFound)
}
