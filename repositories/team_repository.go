package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/courtside/cbbpoll/models"
)

var (
	ErrTeamNotFound     = errors.New("team not found")
	ErrTeamSlugConflict = errors.New("team slug conflict")
)

type TeamRepository interface {
	Create(ctx context.Context, team *models.Team) error
	GetByID(ctx context.Context, id int) (*models.Team, error)
	GetBySlug(ctx context.Context, slug string) (*models.Team, error)
	List(ctx context.Context) ([]models.Team, error)
	Update(ctx context.Context, team *models.Team) error
	UpdateLogoKey(ctx context.Context, id int, logoKey *string) error
	Delete(ctx context.Context, id int) error
}

type postgresTeamRepository struct {
	db *sql.DB
}

func NewPostgresTeamRepository(db *sql.DB) TeamRepository {
	return &postgresTeamRepository{db: db}
}

const teamColumns = `id, full_name, short_name, nickname, slug, conference, logo_key`

func (r *postgresTeamRepository) Create(ctx context.Context, team *models.Team) error {
	query := `
		INSERT INTO teams (full_name, short_name, nickname, slug, conference, logo_key)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	err := r.db.QueryRowContext(ctx, query,
		team.FullName,
		team.ShortName,
		team.Nickname,
		team.Slug,
		team.Conference,
		team.LogoKey,
	).Scan(&team.ID)
	if err != nil {
		if pqConstraint(err, pqUniqueViolation) == "teams_slug_key" {
			return ErrTeamSlugConflict
		}
		return err
	}
	return nil
}

func (r *postgresTeamRepository) GetByID(ctx context.Context, id int) (*models.Team, error) {
	query := `SELECT ` + teamColumns + ` FROM teams WHERE id = $1`
	return r.scanTeam(ctx, query, id)
}

func (r *postgresTeamRepository) GetBySlug(ctx context.Context, slug string) (*models.Team, error) {
	query := `SELECT ` + teamColumns + ` FROM teams WHERE slug = $1`
	return r.scanTeam(ctx, query, slug)
}

func (r *postgresTeamRepository) List(ctx context.Context) ([]models.Team, error) {
	query := `SELECT ` + teamColumns + ` FROM teams ORDER BY full_name ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	teams := make([]models.Team, 0)
	for rows.Next() {
		var team models.Team
		if err := rows.Scan(
			&team.ID,
			&team.FullName,
			&team.ShortName,
			&team.Nickname,
			&team.Slug,
			&team.Conference,
			&team.LogoKey,
		); err != nil {
			return nil, err
		}
		teams = append(teams, team)
	}
	return teams, rows.Err()
}

func (r *postgresTeamRepository) Update(ctx context.Context, team *models.Team) error {
	query := `
		UPDATE teams SET
			full_name = $1,
			short_name = $2,
			nickname = $3,
			slug = $4,
			conference = $5
		WHERE id = $6`

	result, err := r.db.ExecContext(ctx, query,
		team.FullName,
		team.ShortName,
		team.Nickname,
		team.Slug,
		team.Conference,
		team.ID,
	)
	if err != nil {
		if pqConstraint(err, pqUniqueViolation) == "teams_slug_key" {
			return ErrTeamSlugConflict
		}
		return err
	}
	return checkAffectedRows(result, ErrTeamNotFound)
}

func (r *postgresTeamRepository) UpdateLogoKey(ctx context.Context, id int, logoKey *string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE teams SET logo_key = $1 WHERE id = $2`, logoKey, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrTeamNotFound)
}

func (r *postgresTeamRepository) Delete(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM teams WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrTeamNotFound)
}

func (r *postgresTeamRepository) scanTeam(ctx context.Context, query string, args ...interface{}) (*models.Team, error) {
	team := &models.Team{}
	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&team.ID,
		&team.FullName,
		&team.ShortName,
		&team.Nickname,
		&team.Slug,
		&team.Conference,
		&team.LogoKey,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTeamNotFound
		}
		return nil, fmt.Errorf("failed to scan team: %w", err)
	}
	return team, nil
}
