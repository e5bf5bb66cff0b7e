package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/courtside/cbbpoll/models"
)

var (
	ErrConferenceNotFound     = errors.New("conference not found")
	ErrConferenceNameConflict = errors.New("conference already exists for that season")
)

type ConferenceRepository interface {
	Create(ctx context.Context, conference *models.Conference) error
	GetByID(ctx context.Context, id int) (*models.Conference, error)
	ListBySeason(ctx context.Context, season int) ([]models.Conference, error)
	Delete(ctx context.Context, id int) error
}

type postgresConferenceRepository struct {
	db *sql.DB
}

func NewPostgresConferenceRepository(db *sql.DB) ConferenceRepository {
	return &postgresConferenceRepository{db: db}
}

func (r *postgresConferenceRepository) Create(ctx context.Context, conference *models.Conference) error {
	query := `
		INSERT INTO conferences (name, season)
		VALUES ($1, $2)
		RETURNING id`

	err := r.db.QueryRowContext(ctx, query, conference.Name, conference.Season).Scan(&conference.ID)
	if err != nil {
		if pqConstraint(err, pqUniqueViolation) == "conferences_name_season_key" {
			return ErrConferenceNameConflict
		}
		return err
	}
	return nil
}

func (r *postgresConferenceRepository) GetByID(ctx context.Context, id int) (*models.Conference, error) {
	conference := &models.Conference{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, season FROM conferences WHERE id = $1`, id,
	).Scan(&conference.ID, &conference.Name, &conference.Season)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrConferenceNotFound
		}
		return nil, err
	}
	return conference, nil
}

func (r *postgresConferenceRepository) ListBySeason(ctx context.Context, season int) ([]models.Conference, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, season FROM conferences WHERE season = $1 ORDER BY name ASC`, season)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	conferences := make([]models.Conference, 0)
	for rows.Next() {
		var conference models.Conference
		if err := rows.Scan(&conference.ID, &conference.Name, &conference.Season); err != nil {
			return nil, err
		}
		conferences = append(conferences, conference)
	}
	return conferences, rows.Err()
}

func (r *postgresConferenceRepository) Delete(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM conferences WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrConferenceNotFound)
}
