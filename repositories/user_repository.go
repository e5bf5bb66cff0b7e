package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/courtside/cbbpoll/models"
)

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrUserNicknameConflict = errors.New("user nickname conflict")
)

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id int) (*models.User, error)
	GetByNickname(ctx context.Context, nickname string) (*models.User, error)
	List(ctx context.Context) ([]models.User, error)
	ListFlagged(ctx context.Context) ([]models.User, error)
	Update(ctx context.Context, exec SQLExecutor, user *models.User) error
	UpdateRemoteTokens(ctx context.Context, id int, access, refresh *string, refreshAfter *time.Time) error
	SetEmailConfirmed(ctx context.Context, exec SQLExecutor, id int, email string) error
	SetApplicationFlag(ctx context.Context, id int, flagged bool) error
	SetRole(ctx context.Context, id int, role models.UserRole) error
	Delete(ctx context.Context, exec SQLExecutor, id int) error
}

type postgresUserRepository struct {
	db *sql.DB
}

func NewPostgresUserRepository(db *sql.DB) UserRepository {
	return &postgresUserRepository{db: db}
}

func (r *postgresUserRepository) exec(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const userColumns = `id, nickname, email, email_confirmed, role, access_token, refresh_token, refresh_after, email_reminders, pm_reminders, application_flag, created_at`

func (r *postgresUserRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (nickname, email, email_confirmed, role, access_token, refresh_token, refresh_after, email_reminders, pm_reminders, application_flag)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		user.Nickname,
		user.Email,
		user.EmailConfirmed,
		user.Role,
		user.AccessToken,
		user.RefreshToken,
		user.RefreshAfter,
		user.EmailReminders,
		user.PMReminders,
		user.ApplicationFlag,
	).Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		if pqConstraint(err, pqUniqueViolation) == "users_nickname_key" {
			return ErrUserNicknameConflict
		}
		return err
	}
	return nil
}

func (r *postgresUserRepository) GetByID(ctx context.Context, id int) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.scanUser(ctx, query, id)
}

func (r *postgresUserRepository) GetByNickname(ctx context.Context, nickname string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE nickname = $1`
	return r.scanUser(ctx, query, nickname)
}

func (r *postgresUserRepository) List(ctx context.Context) ([]models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY nickname ASC`
	return r.listUsers(ctx, query)
}

func (r *postgresUserRepository) ListFlagged(ctx context.Context) ([]models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE application_flag = TRUE ORDER BY nickname ASC`
	return r.listUsers(ctx, query)
}

func (r *postgresUserRepository) Update(ctx context.Context, exec SQLExecutor, user *models.User) error {
	query := `
		UPDATE users SET
			nickname = $1,
			email = $2,
			email_confirmed = $3,
			role = $4,
			email_reminders = $5,
			pm_reminders = $6,
			application_flag = $7
		WHERE id = $8`

	result, err := r.exec(exec).ExecContext(ctx, query,
		user.Nickname,
		user.Email,
		user.EmailConfirmed,
		user.Role,
		user.EmailReminders,
		user.PMReminders,
		user.ApplicationFlag,
		user.ID,
	)
	if err != nil {
		if pqConstraint(err, pqUniqueViolation) == "users_nickname_key" {
			return ErrUserNicknameConflict
		}
		return err
	}
	return checkAffectedRows(result, ErrUserNotFound)
}

func (r *postgresUserRepository) UpdateRemoteTokens(ctx context.Context, id int, access, refresh *string, refreshAfter *time.Time) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE users SET access_token = $1, refresh_token = $2, refresh_after = $3 WHERE id = $4`,
		access, refresh, refreshAfter, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrUserNotFound)
}

// SetEmailConfirmed flips the confirmed flag only when the stored email
// still matches the one the token was issued for.
func (r *postgresUserRepository) SetEmailConfirmed(ctx context.Context, exec SQLExecutor, id int, email string) error {
	result, err := r.exec(exec).ExecContext(ctx, `
		UPDATE users SET email_confirmed = TRUE WHERE id = $1 AND email = $2`, id, email)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrUserNotFound)
}

func (r *postgresUserRepository) SetApplicationFlag(ctx context.Context, id int, flagged bool) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET application_flag = $1 WHERE id = $2`, flagged, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrUserNotFound)
}

func (r *postgresUserRepository) SetRole(ctx context.Context, id int, role models.UserRole) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET role = $1 WHERE id = $2`, role, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrUserNotFound)
}

func (r *postgresUserRepository) Delete(ctx context.Context, exec SQLExecutor, id int) error {
	result, err := r.exec(exec).ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrUserNotFound)
}

func (r *postgresUserRepository) listUsers(ctx context.Context, query string, args ...interface{}) ([]models.User, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]models.User, 0)
	for rows.Next() {
		var user models.User
		if err := rows.Scan(
			&user.ID,
			&user.Nickname,
			&user.Email,
			&user.EmailConfirmed,
			&user.Role,
			&user.AccessToken,
			&user.RefreshToken,
			&user.RefreshAfter,
			&user.EmailReminders,
			&user.PMReminders,
			&user.ApplicationFlag,
			&user.CreatedAt,
		); err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func (r *postgresUserRepository) scanUser(ctx context.Context, query string, args ...interface{}) (*models.User, error) {
	user := &models.User{}
	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&user.ID,
		&user.Nickname,
		&user.Email,
		&user.EmailConfirmed,
		&user.Role,
		&user.AccessToken,
		&user.RefreshToken,
		&user.RefreshAfter,
		&user.EmailReminders,
		&user.PMReminders,
		&user.ApplicationFlag,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	return user, nil
}
