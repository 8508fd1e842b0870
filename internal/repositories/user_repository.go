package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"messenger-service/internal/models"
)

const userColumns = `id, username, password_hash, public_key, avatar_url, about, status, created_at`

// UserRepository is the narrow read surface onto the account
// collaborator's users, plus the presence status write.
type UserRepository interface {
	FindByID(ctx context.Context, userID int) (models.User, error)
	FindByUsername(ctx context.Context, username string) (models.User, error)
	SetStatus(ctx context.Context, userID int, status string) error
}

// UserRepo is a sqlx implementation of UserRepository.
type UserRepo struct {
	db *sqlx.DB
}

// NewUserRepo constructs a UserRepo.
func NewUserRepo(db *sqlx.DB) *UserRepo {
	return &UserRepo{db: db}
}

func (r *UserRepo) FindByID(ctx context.Context, userID int) (models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE id=$1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	return user, err
}

func (r *UserRepo) FindByUsername(ctx context.Context, username string) (models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE username=$1`, username)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	return user, err
}

// SetStatus persists the presence transition driven by the gateway.
func (r *UserRepo) SetStatus(ctx context.Context, userID int, status string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE users SET status=$2 WHERE id=$1`, userID, status)
	return err
}
