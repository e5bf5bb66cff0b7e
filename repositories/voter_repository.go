package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/courtside/cbbpoll/models"
)

// VoterEventRepository backs the default voter directory with an
// append-only event log: status is whatever the latest event says.
type VoterEventRepository interface {
	Append(ctx context.Context, event *models.VoterEvent) error
	LatestForUser(ctx context.Context, userID int) (*models.VoterEvent, error)
	LatestForUserAt(ctx context.Context, userID int, at time.Time) (*models.VoterEvent, error)
	DeleteByUser(ctx context.Context, exec SQLExecutor, userID int) error
}

type postgresVoterEventRepository struct {
	db *sql.DB
}

func NewPostgresVoterEventRepository(db *sql.DB) VoterEventRepository {
	return &postgresVoterEventRepository{db: db}
}

func (r *postgresVoterEventRepository) exec(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresVoterEventRepository) Append(ctx context.Context, event *models.VoterEvent) error {
	query := `
		INSERT INTO voter_events (user_id, is_voter, effective_time)
		VALUES ($1, $2, COALESCE($3, now()))
		RETURNING id, effective_time`

	var effective interface{}
	if !event.EffectiveTime.IsZero() {
		effective = event.EffectiveTime
	}
	return r.db.QueryRowContext(ctx, query, event.UserID, event.IsVoter, effective).
		Scan(&event.ID, &event.EffectiveTime)
}

func (r *postgresVoterEventRepository) LatestForUser(ctx context.Context, userID int) (*models.VoterEvent, error) {
	query := `
		SELECT id, user_id, is_voter, effective_time
		FROM voter_events
		WHERE user_id = $1
		ORDER BY effective_time DESC, id DESC
		LIMIT 1`
	return r.scanEvent(ctx, query, userID)
}

func (r *postgresVoterEventRepository) LatestForUserAt(ctx context.Context, userID int, at time.Time) (*models.VoterEvent, error) {
	query := `
		SELECT id, user_id, is_voter, effective_time
		FROM voter_events
		WHERE user_id = $1 AND effective_time <= $2
		ORDER BY effective_time DESC, id DESC
		LIMIT 1`
	return r.scanEvent(ctx, query, userID, at)
}

func (r *postgresVoterEventRepository) DeleteByUser(ctx context.Context, exec SQLExecutor, userID int) error {
	_, err := r.exec(exec).ExecContext(ctx, `DELETE FROM voter_events WHERE user_id = $1`, userID)
	return err
}

func (r *postgresVoterEventRepository) scanEvent(ctx context.Context, query string, args ...interface{}) (*models.VoterEvent, error) {
	event := &models.VoterEvent{}
	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&event.ID,
		&event.UserID,
		&event.IsVoter,
		&event.EffectiveTime,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // no event yet means "never a voter"
		}
		return nil, err
	}
	return event, nil
}
