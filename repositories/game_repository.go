package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/courtside/cbbpoll/models"
)

var (
	ErrGameNotFound          = errors.New("game not found")
	ErrGameFeederSlotTaken   = errors.New("another game already feeds that slot")
	ErrGameReferenceInvalid  = errors.New("game references a missing conference, team, or game")
	ErrGameConferenceInvalid = errors.New("game conference invalid")
)

type GameRepository interface {
	Create(ctx context.Context, game *models.Game) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Game, error)
	// GetByIDForUpdate locks the row for the duration of the transaction;
	// RecordResult uses it to serialize concurrent result submissions.
	GetByIDForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Game, error)
	ListByConference(ctx context.Context, exec SQLExecutor, conferenceID int) ([]models.Game, error)
	Update(ctx context.Context, game *models.Game) error
	SetEntrant(ctx context.Context, exec SQLExecutor, gameID int, teamID int, home bool) error
	// ClearEntrant empties one slot; the bracket recompute uses it to drop
	// slots whose feeding result was retracted.
	ClearEntrant(ctx context.Context, exec SQLExecutor, gameID int, home bool) error
	Delete(ctx context.Context, id int) error
}

type postgresGameRepository struct {
	db *sql.DB
}

func NewPostgresGameRepository(db *sql.DB) GameRepository {
	return &postgresGameRepository{db: db}
}

func (r *postgresGameRepository) exec(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const gameColumns = `id, conference_id, point_value, home_team_id, away_team_id, next_game_id, winner_to_home, is_championship`

func (r *postgresGameRepository) Create(ctx context.Context, game *models.Game) error {
	query := `
		INSERT INTO games (conference_id, point_value, home_team_id, away_team_id, next_game_id, winner_to_home, is_championship)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`

	err := r.db.QueryRowContext(ctx, query,
		game.ConferenceID,
		game.PointValue,
		game.HomeTeamID,
		game.AwayTeamID,
		game.NextGameID,
		game.WinnerToHome,
		game.IsChampionship,
	).Scan(&game.ID)
	return r.handleGameError(err)
}

func (r *postgresGameRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Game, error) {
	query := `SELECT ` + gameColumns + ` FROM games WHERE id = $1`
	return r.scanGame(r.exec(exec).QueryRowContext(ctx, query, id))
}

func (r *postgresGameRepository) GetByIDForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Game, error) {
	query := `SELECT ` + gameColumns + ` FROM games WHERE id = $1 FOR UPDATE`
	return r.scanGame(r.exec(exec).QueryRowContext(ctx, query, id))
}

func (r *postgresGameRepository) ListByConference(ctx context.Context, exec SQLExecutor, conferenceID int) ([]models.Game, error) {
	query := `SELECT ` + gameColumns + ` FROM games WHERE conference_id = $1 ORDER BY id ASC`

	rows, err := r.exec(exec).QueryContext(ctx, query, conferenceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	games := make([]models.Game, 0)
	for rows.Next() {
		var game models.Game
		if err := rows.Scan(
			&game.ID,
			&game.ConferenceID,
			&game.PointValue,
			&game.HomeTeamID,
			&game.AwayTeamID,
			&game.NextGameID,
			&game.WinnerToHome,
			&game.IsChampionship,
		); err != nil {
			return nil, err
		}
		games = append(games, game)
	}
	return games, rows.Err()
}

func (r *postgresGameRepository) Update(ctx context.Context, game *models.Game) error {
	query := `
		UPDATE games SET
			conference_id = $1,
			point_value = $2,
			home_team_id = $3,
			away_team_id = $4,
			next_game_id = $5,
			winner_to_home = $6,
			is_championship = $7
		WHERE id = $8`

	result, err := r.db.ExecContext(ctx, query,
		game.ConferenceID,
		game.PointValue,
		game.HomeTeamID,
		game.AwayTeamID,
		game.NextGameID,
		game.WinnerToHome,
		game.IsChampionship,
		game.ID,
	)
	if err != nil {
		return r.handleGameError(err)
	}
	return checkAffectedRows(result, ErrGameNotFound)
}

func (r *postgresGameRepository) SetEntrant(ctx context.Context, exec SQLExecutor, gameID int, teamID int, home bool) error {
	column := "away_team_id"
	if home {
		column = "home_team_id"
	}
	query := fmt.Sprintf(`UPDATE games SET %s = $1 WHERE id = $2`, column)

	result, err := r.exec(exec).ExecContext(ctx, query, teamID, gameID)
	if err != nil {
		return r.handleGameError(err)
	}
	return checkAffectedRows(result, ErrGameNotFound)
}

func (r *postgresGameRepository) ClearEntrant(ctx context.Context, exec SQLExecutor, gameID int, home bool) error {
	column := "away_team_id"
	if home {
		column = "home_team_id"
	}
	query := fmt.Sprintf(`UPDATE games SET %s = NULL WHERE id = $1`, column)

	result, err := r.exec(exec).ExecContext(ctx, query, gameID)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrGameNotFound)
}

func (r *postgresGameRepository) Delete(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM games WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrGameNotFound)
}

func (r *postgresGameRepository) scanGame(row *sql.Row) (*models.Game, error) {
	game := &models.Game{}
	err := row.Scan(
		&game.ID,
		&game.ConferenceID,
		&game.PointValue,
		&game.HomeTeamID,
		&game.AwayTeamID,
		&game.NextGameID,
		&game.WinnerToHome,
		&game.IsChampionship,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrGameNotFound
		}
		return nil, fmt.Errorf("failed to scan game: %w", err)
	}
	return game, nil
}

func (r *postgresGameRepository) handleGameError(err error) error {
	if err == nil {
		return nil
	}
	if pqConstraint(err, pqUniqueViolation) == "games_feeder_slot_key" {
		return ErrGameFeederSlotTaken
	}
	if pqConstraint(err, pqForeignKeyViolation) != "" {
		return ErrGameReferenceInvalid
	}
	return err
}
