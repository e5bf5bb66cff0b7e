package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/courtside/cbbpoll/models"
)

var ErrAPIKeyNotFound = errors.New("api key not found")

type APIKeyRepository interface {
	Create(ctx context.Context, key *models.APIKey) error
	GetByID(ctx context.Context, id string) (*models.APIKey, error)
	DeleteByUser(ctx context.Context, exec SQLExecutor, userID int) error
	Delete(ctx context.Context, id string) error
}

type postgresAPIKeyRepository struct {
	db *sql.DB
}

func NewPostgresAPIKeyRepository(db *sql.DB) APIKeyRepository {
	return &postgresAPIKeyRepository{db: db}
}

func (r *postgresAPIKeyRepository) exec(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresAPIKeyRepository) Create(ctx context.Context, key *models.APIKey) error {
	query := `
		INSERT INTO api_keys (id, user_id, label, secret_hash)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`
	return r.db.QueryRowContext(ctx, query, key.ID, key.UserID, key.Label, key.SecretHash).
		Scan(&key.CreatedAt)
}

func (r *postgresAPIKeyRepository) GetByID(ctx context.Context, id string) (*models.APIKey, error) {
	key := &models.APIKey{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, label, secret_hash, created_at FROM api_keys WHERE id = $1`, id,
	).Scan(&key.ID, &key.UserID, &key.Label, &key.SecretHash, &key.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAPIKeyNotFound
		}
		return nil, err
	}
	return key, nil
}

func (r *postgresAPIKeyRepository) DeleteByUser(ctx context.Context, exec SQLExecutor, userID int) error {
	_, err := r.exec(exec).ExecContext(ctx, `DELETE FROM api_keys WHERE user_id = $1`, userID)
	return err
}

func (r *postgresAPIKeyRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM api_keys WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrAPIKeyNotFound)
}
