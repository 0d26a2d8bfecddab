package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/isdelr/iserve-be/internal/models"
	"github.com/jmoiron/sqlx"
)

const userColumns = "id, username, email, password_hash, profession, contact, created_at, updated_at"

// SQLUserRepository is the SQLite-backed UserRepository.
type SQLUserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new SQLUserRepository.
func NewUserRepository(db *sqlx.DB) *SQLUserRepository {
	return &SQLUserRepository{db: db}
}

// Insert stores a new user. A second account with the same email yields ErrDuplicate.
func (r *SQLUserRepository) Insert(ctx context.Context, user models.User) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES (:id, :username, :email, :password_hash, :profession, :contact, :created_at, :updated_at)`, user)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// FindByEmail retrieves a single user by their email, including the password hash.
func (r *SQLUserRepository) FindByEmail(ctx context.Context, email string) (models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, "SELECT "+userColumns+" FROM users WHERE email = ?", email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, fmt.Errorf("find user by email: %w", err)
	}
	return user, nil
}

// FindByID retrieves a single user by their ID.
func (r *SQLUserRepository) FindByID(ctx context.Context, id string) (models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, "SELECT "+userColumns+" FROM users WHERE id = ?", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, fmt.Errorf("find user by id: %w", err)
	}
	return user, nil
}

// List returns every user, oldest first.
func (r *SQLUserRepository) List(ctx context.Context) ([]models.User, error) {
	users := []models.User{}
	if err := r.db.SelectContext(ctx, &users, "SELECT "+userColumns+" FROM users ORDER BY created_at, email"); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// UpdateFields applies the non-nil fields of update to the user with the
// given email and returns the updated record.
func (r *SQLUserRepository) UpdateFields(ctx context.Context, email string, update models.ProfileUpdate) (models.User, error) {
	sets := []string{"updated_at = ?"}
	args := []interface{}{time.Now().UTC()}
	if update.Username != nil {
		sets = append(sets, "username = ?")
		args = append(args, *update.Username)
	}
	if update.Profession != nil {
		sets = append(sets, "profession = ?")
		args = append(args, *update.Profession)
	}
	if update.Contact != nil {
		sets = append(sets, "contact = ?")
		args = append(args, *update.Contact)
	}
	args = append(args, email)

	res, err := r.db.ExecContext(ctx, "UPDATE users SET "+strings.Join(sets, ", ")+" WHERE email = ?", args...)
	if err != nil {
		return models.User{}, fmt.Errorf("update user: %w", err)
	}
	if err := requireAffected(res); err != nil {
		return models.User{}, err
	}
	return r.FindByEmail(ctx, email)
}

// UpdatePasswordHash replaces the stored hash of the user with the given id.
func (r *SQLUserRepository) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?", hash, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update password hash: %w", err)
	}
	return requireAffected(res)
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
