package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/courtside/cbbpoll/models"
)

var (
	ErrBallotNotFound = errors.New("ballot not found")
	ErrBallotConflict = errors.New("ballot already exists for this user and poll")
	ErrBallotInvalid  = errors.New("ballot references a missing user, poll, or team")
)

type BallotRepository interface {
	// Replace deletes any prior ballot for the (user, poll) pair and writes
	// the new one with its votes, all on the caller's transaction.
	Replace(ctx context.Context, exec SQLExecutor, ballot *models.Ballot) error
	GetByUserAndPoll(ctx context.Context, userID, pollID int) (*models.Ballot, error)
	ListByPoll(ctx context.Context, exec SQLExecutor, pollID int) ([]models.Ballot, error)
	DeleteByUser(ctx context.Context, exec SQLExecutor, userID int) error
	DeleteByPoll(ctx context.Context, exec SQLExecutor, pollID int) error
}

type postgresBallotRepository struct {
	db *sql.DB
}

func NewPostgresBallotRepository(db *sql.DB) BallotRepository {
	return &postgresBallotRepository{db: db}
}

func (r *postgresBallotRepository) exec(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresBallotRepository) Replace(ctx context.Context, exec SQLExecutor, ballot *models.Ballot) error {
	e := r.exec(exec)

	// Children first: votes reference the ballot row.
	_, err := e.ExecContext(ctx, `
		DELETE FROM votes WHERE ballot_id IN
			(SELECT id FROM ballots WHERE user_id = $1 AND poll_id = $2)`,
		ballot.UserID, ballot.PollID)
	if err != nil {
		return err
	}
	_, err = e.ExecContext(ctx, `DELETE FROM ballots WHERE user_id = $1 AND poll_id = $2`,
		ballot.UserID, ballot.PollID)
	if err != nil {
		return err
	}

	err = e.QueryRowContext(ctx, `
		INSERT INTO ballots (user_id, poll_id, updated)
		VALUES ($1, $2, now())
		RETURNING id, updated`,
		ballot.UserID, ballot.PollID,
	).Scan(&ballot.ID, &ballot.Updated)
	if err != nil {
		// A concurrent submitter re-inserted between our delete and insert.
		if pqConstraint(err, pqUniqueViolation) == "ballots_user_id_poll_id_key" {
			return ErrBallotConflict
		}
		if pqConstraint(err, pqForeignKeyViolation) != "" {
			return ErrBallotInvalid
		}
		return err
	}

	for i := range ballot.Votes {
		vote := &ballot.Votes[i]
		vote.BallotID = ballot.ID
		err = e.QueryRowContext(ctx, `
			INSERT INTO votes (ballot_id, team_id, rank, reason)
			VALUES ($1, $2, $3, $4)
			RETURNING id`,
			vote.BallotID, vote.TeamID, vote.Rank, vote.Reason,
		).Scan(&vote.ID)
		if err != nil {
			if pqConstraint(err, pqForeignKeyViolation) != "" {
				return ErrBallotInvalid
			}
			return err
		}
	}
	return nil
}

func (r *postgresBallotRepository) GetByUserAndPoll(ctx context.Context, userID, pollID int) (*models.Ballot, error) {
	ballot := &models.Ballot{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, poll_id, updated FROM ballots WHERE user_id = $1 AND poll_id = $2`,
		userID, pollID,
	).Scan(&ballot.ID, &ballot.UserID, &ballot.PollID, &ballot.Updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBallotNotFound
		}
		return nil, err
	}

	votes, err := r.votesForBallots(ctx, r.db, []int{ballot.ID})
	if err != nil {
		return nil, err
	}
	ballot.Votes = votes[ballot.ID]
	return ballot, nil
}

func (r *postgresBallotRepository) ListByPoll(ctx context.Context, exec SQLExecutor, pollID int) ([]models.Ballot, error) {
	e := r.exec(exec)
	rows, err := e.QueryContext(ctx,
		`SELECT id, user_id, poll_id, updated FROM ballots WHERE poll_id = $1 ORDER BY id ASC`, pollID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ballots := make([]models.Ballot, 0)
	ids := make([]int, 0)
	for rows.Next() {
		var ballot models.Ballot
		if err := rows.Scan(&ballot.ID, &ballot.UserID, &ballot.PollID, &ballot.Updated); err != nil {
			return nil, err
		}
		ballots = append(ballots, ballot)
		ids = append(ids, ballot.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(ids) == 0 {
		return ballots, nil
	}
	votes, err := r.votesForBallots(ctx, e, ids)
	if err != nil {
		return nil, err
	}
	for i := range ballots {
		ballots[i].Votes = votes[ballots[i].ID]
	}
	return ballots, nil
}

func (r *postgresBallotRepository) votesForBallots(ctx context.Context, e SQLExecutor, ballotIDs []int) (map[int][]models.Vote, error) {
	rows, err := e.QueryContext(ctx, `
		SELECT id, ballot_id, team_id, rank, reason
		FROM votes
		WHERE ballot_id = ANY($1)
		ORDER BY ballot_id ASC, rank ASC`,
		intArray(ballotIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	votes := make(map[int][]models.Vote, len(ballotIDs))
	for rows.Next() {
		var vote models.Vote
		if err := rows.Scan(&vote.ID, &vote.BallotID, &vote.TeamID, &vote.Rank, &vote.Reason); err != nil {
			return nil, err
		}
		votes[vote.BallotID] = append(votes[vote.BallotID], vote)
	}
	return votes, rows.Err()
}

func (r *postgresBallotRepository) DeleteByUser(ctx context.Context, exec SQLExecutor, userID int) error {
	e := r.exec(exec)
	_, err := e.ExecContext(ctx, `
		DELETE FROM votes WHERE ballot_id IN (SELECT id FROM ballots WHERE user_id = $1)`, userID)
	if err != nil {
		return err
	}
	_, err = e.ExecContext(ctx, `DELETE FROM ballots WHERE user_id = $1`, userID)
	return err
}

func (r *postgresBallotRepository) DeleteByPoll(ctx context.Context, exec SQLExecutor, pollID int) error {
	e := r.exec(exec)
	_, err := e.ExecContext(ctx, `
		DELETE FROM votes WHERE ballot_id IN (SELECT id FROM ballots WHERE poll_id = $1)`, pollID)
	if err != nil {
		return err
	}
	_, err = e.ExecContext(ctx, `DELETE FROM ballots WHERE poll_id = $1`, pollID)
	return err
}
