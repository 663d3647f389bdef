package repositories

import (
	"context"
	"errors"

	"github.com/jmoiron/sqlx"

	"messaging-service/internal/models"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrUserConflict = errors.New("username or email already registered")
)

const userColumns = `id, username, email, hashed_password, full_name, profile_pic_url, is_active, created_at, updated_at`

// UserRepository abstracts user persistence.
type UserRepository interface {
	Create(ctx context.Context, user models.User) (models.User, error)
	GetByID(ctx context.Context, userID int) (models.User, error)
	GetByUsername(ctx context.Context, username string) (models.User, error)
	GetByEmail(ctx context.Context, email string) (models.User, error)
	List(ctx context.Context, skip, limit int) ([]models.User, error)
	CountExisting(ctx context.Context, userIDs []int) (int, error)
	Update(ctx context.Context, user models.User) (models.User, error)
}

// UserRepo is a sqlx implementation of UserRepository.
type UserRepo struct {
	db sqlx.ExtContext
}

// NewUserRepo constructs a UserRepo on a database or transaction handle.
func NewUserRepo(db sqlx.ExtContext) *UserRepo {
	return &UserRepo{db: db}
}

// Create inserts an active user.
func (r *UserRepo) Create(ctx context.Context, user models.User) (models.User, error) {
	user.IsActive = true
	user.CreatedAt = now()
	user.UpdatedAt = nil

	query := r.db.Rebind(`INSERT INTO users (username, email, hashed_password, full_name, profile_pic_url, is_active, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING id`)
	err := r.db.QueryRowxContext(ctx, query, user.Username, user.Email, user.HashedPassword, user.FullName, user.ProfilePicURL, user.IsActive, user.CreatedAt).
		Scan(&user.ID)
	if isUniqueViolation(err) {
		return models.User{}, ErrUserConflict
	}
	if err != nil {
		return models.User{}, err
	}
	return user, nil
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, userID int) (models.User, error) {
	return r.getBy(ctx, "id", userID)
}

// GetByUsername fetches a user by username.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (models.User, error) {
	return r.getBy(ctx, "username", username)
}

// GetByEmail fetches a user by email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (models.User, error) {
	return r.getBy(ctx, "email", email)
}

func (r *UserRepo) getBy(ctx context.Context, column string, value any) (models.User, error) {
	var user models.User
	err := sqlx.GetContext(ctx, r.db, &user, r.db.Rebind(`SELECT `+userColumns+` FROM users WHERE `+column+`=?`), value)
	if err != nil {
		return models.User{}, notFound(err, ErrUserNotFound)
	}
	return user, nil
}

// List returns users ordered by id.
func (r *UserRepo) List(ctx context.Context, skip, limit int) ([]models.User, error) {
	users := []models.User{}
	err := sqlx.SelectContext(ctx, r.db, &users, r.db.Rebind(`SELECT `+userColumns+` FROM users ORDER BY id LIMIT ? OFFSET ?`), limit, skip)
	return users, err
}

// CountExisting counts how many of the given ids belong to existing users.
func (r *UserRepo) CountExisting(ctx context.Context, userIDs []int) (int, error) {
	if len(userIDs) == 0 {
		return 0, nil
	}
	query, args, err := sqlx.In(`SELECT COUNT(*) FROM users WHERE id IN (?)`, userIDs)
	if err != nil {
		return 0, err
	}
	var count int
	err = sqlx.GetContext(ctx, r.db, &count, r.db.Rebind(query), args...)
	return count, err
}

// Update writes every mutable column of user.
func (r *UserRepo) Update(ctx context.Context, user models.User) (models.User, error) {
	updatedAt := now()
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE users SET username=?, email=?, hashed_password=?, full_name=?, profile_pic_url=?, is_active=?, updated_at=?
        WHERE id=?`), user.Username, user.Email, user.HashedPassword, user.FullName, user.ProfilePicURL, user.IsActive, updatedAt, user.ID)
	if isUniqueViolation(err) {
		return models.User{}, ErrUserConflict
	}
	if err != nil {
		return models.User{}, err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return models.User{}, err
	}
	if count == 0 {
		return models.User{}, ErrUserNotFound
	}
	user.UpdatedAt = &updatedAt
	return user, nil
}
