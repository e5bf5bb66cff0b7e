package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/courtside/cbbpoll/models"
)

var (
	ErrPredictionNotFound = errors.New("prediction not found")
	ErrPredictionInvalid  = errors.New("prediction references a missing user, game, or team")
)

type PredictionRepository interface {
	// Upsert inserts or replaces the (user, game) pick and refreshes its
	// timestamp. Postgres serializes concurrent upserts for the same pair.
	Upsert(ctx context.Context, exec SQLExecutor, prediction *models.Prediction) error
	GetByUserAndGame(ctx context.Context, userID, gameID int) (*models.Prediction, error)
	ListByUserAndSeason(ctx context.Context, userID, season int) ([]models.Prediction, error)
	ScoreByUserAndSeason(ctx context.Context, userID, season int) (int, error)
	SeasonLeaderboard(ctx context.Context, season int, limit int) ([]models.LeaderboardEntry, error)
	DeleteByUser(ctx context.Context, exec SQLExecutor, userID int) error
}

type postgresPredictionRepository struct {
	db *sql.DB
}

func NewPostgresPredictionRepository(db *sql.DB) PredictionRepository {
	return &postgresPredictionRepository{db: db}
}

func (r *postgresPredictionRepository) exec(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresPredictionRepository) Upsert(ctx context.Context, exec SQLExecutor, prediction *models.Prediction) error {
	query := `
		INSERT INTO predictions (user_id, game_id, team_id, updated)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (user_id, game_id)
		DO UPDATE SET team_id = EXCLUDED.team_id, updated = now()
		RETURNING id, updated`

	err := r.exec(exec).QueryRowContext(ctx, query,
		prediction.UserID,
		prediction.GameID,
		prediction.TeamID,
	).Scan(&prediction.ID, &prediction.Updated)
	if err != nil {
		if pqConstraint(err, pqForeignKeyViolation) != "" {
			return ErrPredictionInvalid
		}
		return err
	}
	return nil
}

func (r *postgresPredictionRepository) GetByUserAndGame(ctx context.Context, userID, gameID int) (*models.Prediction, error) {
	prediction := &models.Prediction{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, game_id, team_id, updated FROM predictions WHERE user_id = $1 AND game_id = $2`,
		userID, gameID,
	).Scan(&prediction.ID, &prediction.UserID, &prediction.GameID, &prediction.TeamID, &prediction.Updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPredictionNotFound
		}
		return nil, err
	}
	return prediction, nil
}

func (r *postgresPredictionRepository) ListByUserAndSeason(ctx context.Context, userID, season int) ([]models.Prediction, error) {
	query := `
		SELECT p.id, p.user_id, p.game_id, p.team_id, p.updated
		FROM predictions p
		JOIN games g ON g.id = p.game_id
		JOIN conferences c ON c.id = g.conference_id
		WHERE p.user_id = $1 AND c.season = $2
		ORDER BY p.game_id ASC`

	rows, err := r.db.QueryContext(ctx, query, userID, season)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	predictions := make([]models.Prediction, 0)
	for rows.Next() {
		var prediction models.Prediction
		if err := rows.Scan(
			&prediction.ID,
			&prediction.UserID,
			&prediction.GameID,
			&prediction.TeamID,
			&prediction.Updated,
		); err != nil {
			return nil, err
		}
		predictions = append(predictions, prediction)
	}
	return predictions, rows.Err()
}

// ScoreByUserAndSeason sums point values of predictions whose game has a
// result and whose pick matches the winner. Games without a result
// contribute nothing.
func (r *postgresPredictionRepository) ScoreByUserAndSeason(ctx context.Context, userID, season int) (int, error) {
	query := `
		SELECT COALESCE(SUM(g.point_value), 0)
		FROM predictions p
		JOIN games g ON g.id = p.game_id
		JOIN conferences c ON c.id = g.conference_id
		JOIN game_results gr ON gr.game_id = g.id
		WHERE p.user_id = $1 AND c.season = $2 AND p.team_id = gr.winner_team_id`

	var score int
	if err := r.db.QueryRowContext(ctx, query, userID, season).Scan(&score); err != nil {
		return 0, err
	}
	return score, nil
}

func (r *postgresPredictionRepository) SeasonLeaderboard(ctx context.Context, season int, limit int) ([]models.LeaderboardEntry, error) {
	query := `
		SELECT u.id, u.nickname, COALESCE(SUM(g.point_value), 0) AS score
		FROM predictions p
		JOIN users u ON u.id = p.user_id
		JOIN games g ON g.id = p.game_id
		JOIN conferences c ON c.id = g.conference_id
		JOIN game_results gr ON gr.game_id = g.id AND p.team_id = gr.winner_team_id
		WHERE c.season = $1
		GROUP BY u.id, u.nickname
		ORDER BY score DESC, u.nickname ASC
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, season, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]models.LeaderboardEntry, 0)
	for rows.Next() {
		var entry models.LeaderboardEntry
		if err := rows.Scan(&entry.UserID, &entry.Nickname, &entry.Score); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (r *postgresPredictionRepository) DeleteByUser(ctx context.Context, exec SQLExecutor, userID int) error {
	_, err := r.exec(exec).ExecContext(ctx, `DELETE FROM predictions WHERE user_id = $1`, userID)
	return err
}
