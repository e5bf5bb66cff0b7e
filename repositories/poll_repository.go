package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/courtside/cbbpoll/models"
)

var (
	ErrPollNotFound     = errors.New("poll not found")
	ErrPollWeekConflict = errors.New("poll already exists for that season and week")
)

type PollRepository interface {
	Create(ctx context.Context, poll *models.Poll) error
	GetByID(ctx context.Context, id int) (*models.Poll, error)
	GetBySeasonWeek(ctx context.Context, season, week int) (*models.Poll, error)
	ListBySeason(ctx context.Context, season int) ([]models.Poll, error)
	// ListClosedSince returns polls whose window closed in (since, until];
	// the results sweeper uses it to find polls due for a recompute.
	ListClosedSince(ctx context.Context, since, until time.Time) ([]models.Poll, error)
	ReplaceResults(ctx context.Context, exec SQLExecutor, pollID int, results []models.PollResult) error
	GetResults(ctx context.Context, pollID int) ([]models.PollResult, error)
	Delete(ctx context.Context, exec SQLExecutor, id int) error
}

type postgresPollRepository struct {
	db *sql.DB
}

func NewPostgresPollRepository(db *sql.DB) PollRepository {
	return &postgresPollRepository{db: db}
}

func (r *postgresPollRepository) exec(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const pollColumns = `id, season, week, week_name, open_time, close_time`

func (r *postgresPollRepository) Create(ctx context.Context, poll *models.Poll) error {
	query := `
		INSERT INTO polls (season, week, week_name, open_time, close_time)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`

	err := r.db.QueryRowContext(ctx, query,
		poll.Season,
		poll.Week,
		poll.WeekName,
		poll.OpenTime,
		poll.CloseTime,
	).Scan(&poll.ID)
	if err != nil {
		if pqConstraint(err, pqUniqueViolation) == "polls_season_week_key" {
			return ErrPollWeekConflict
		}
		return err
	}
	return nil
}

func (r *postgresPollRepository) GetByID(ctx context.Context, id int) (*models.Poll, error) {
	query := `SELECT ` + pollColumns + ` FROM polls WHERE id = $1`
	return r.scanPoll(r.db.QueryRowContext(ctx, query, id))
}

func (r *postgresPollRepository) GetBySeasonWeek(ctx context.Context, season, week int) (*models.Poll, error) {
	query := `SELECT ` + pollColumns + ` FROM polls WHERE season = $1 AND week = $2`
	return r.scanPoll(r.db.QueryRowContext(ctx, query, season, week))
}

func (r *postgresPollRepository) ListBySeason(ctx context.Context, season int) ([]models.Poll, error) {
	query := `SELECT ` + pollColumns + ` FROM polls WHERE season = $1 ORDER BY week ASC`
	return r.listPolls(ctx, query, season)
}

func (r *postgresPollRepository) ListClosedSince(ctx context.Context, since, until time.Time) ([]models.Poll, error) {
	query := `SELECT ` + pollColumns + ` FROM polls WHERE close_time > $1 AND close_time <= $2 ORDER BY close_time ASC`
	return r.listPolls(ctx, query, since, until)
}

// ReplaceResults realizes a poll's derived ranking: existing rows are
// dropped and the freshly aggregated ones inserted, all on the caller's
// transaction so readers never see a half-written ranking.
func (r *postgresPollRepository) ReplaceResults(ctx context.Context, exec SQLExecutor, pollID int, results []models.PollResult) error {
	e := r.exec(exec)
	if _, err := e.ExecContext(ctx, `DELETE FROM poll_results WHERE poll_id = $1`, pollID); err != nil {
		return err
	}
	for _, result := range results {
		_, err := e.ExecContext(ctx, `
			INSERT INTO poll_results (poll_id, team_id, rank, score, first_place_votes)
			VALUES ($1, $2, $3, $4, $5)`,
			pollID, result.TeamID, result.Rank, result.Score, result.FirstPlaceVotes,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *postgresPollRepository) GetResults(ctx context.Context, pollID int) ([]models.PollResult, error) {
	query := `
		SELECT pr.poll_id, pr.team_id, pr.rank, pr.score, pr.first_place_votes, t.short_name, t.slug
		FROM poll_results pr
		JOIN teams t ON t.id = pr.team_id
		WHERE pr.poll_id = $1
		ORDER BY pr.rank ASC`

	rows, err := r.db.QueryContext(ctx, query, pollID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]models.PollResult, 0)
	for rows.Next() {
		var result models.PollResult
		if err := rows.Scan(
			&result.PollID,
			&result.TeamID,
			&result.Rank,
			&result.Score,
			&result.FirstPlaceVotes,
			&result.TeamName,
			&result.TeamSlug,
		); err != nil {
			return nil, err
		}
		results = append(results, result)
	}
	return results, rows.Err()
}

func (r *postgresPollRepository) Delete(ctx context.Context, exec SQLExecutor, id int) error {
	result, err := r.exec(exec).ExecContext(ctx, `DELETE FROM polls WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrPollNotFound)
}

func (r *postgresPollRepository) scanPoll(row *sql.Row) (*models.Poll, error) {
	poll := &models.Poll{}
	err := row.Scan(
		&poll.ID,
		&poll.Season,
		&poll.Week,
		&poll.WeekName,
		&poll.OpenTime,
		&poll.CloseTime,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPollNotFound
		}
		return nil, err
	}
	return poll, nil
}

func (r *postgresPollRepository) listPolls(ctx context.Context, query string, args ...interface{}) ([]models.Poll, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	polls := make([]models.Poll, 0)
	for rows.Next() {
		var poll models.Poll
		if err := rows.Scan(
			&poll.ID,
			&poll.Season,
			&poll.Week,
			&poll.WeekName,
			&poll.OpenTime,
			&poll.CloseTime,
		); err != nil {
			return nil, err
		}
		polls = append(polls, poll)
	}
	return polls, rows.Err()
}
