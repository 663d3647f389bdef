package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"messaging-service/internal/models"
)

var ErrAuthorizedIPNotFound = errors.New("authorized ip not found")

const authorizedIPColumns = `id, user_id, ip_address, description, status, created_at, last_used_at`

// AuthorizedIPRepository persists the per-user address allow-list.
type AuthorizedIPRepository interface {
	Find(ctx context.Context, userID int, address string) (models.AuthorizedIP, error)
	FindActive(ctx context.Context, userID int, address string) (models.AuthorizedIP, error)
	Insert(ctx context.Context, entry models.AuthorizedIP) (models.AuthorizedIP, bool, error)
	Reactivate(ctx context.Context, entryID int, description *string) (models.AuthorizedIP, error)
	Deactivate(ctx context.Context, userID int, address string) error
	TouchLastUsed(ctx context.Context, entryID int) error
	ListActive(ctx context.Context, userID int) ([]models.AuthorizedIP, error)
}

// AuthorizedIPRepo is a sqlx implementation of AuthorizedIPRepository.
type AuthorizedIPRepo struct {
	db sqlx.ExtContext
}

// NewAuthorizedIPRepo constructs an AuthorizedIPRepo on a database or transaction handle.
func NewAuthorizedIPRepo(db sqlx.ExtContext) *AuthorizedIPRepo {
	return &AuthorizedIPRepo{db: db}
}

// Find returns the entry for (userID, address) in any status, locking it.
func (r *AuthorizedIPRepo) Find(ctx context.Context, userID int, address string) (models.AuthorizedIP, error) {
	var entry models.AuthorizedIP
	query := `SELECT ` + authorizedIPColumns + ` FROM authorized_ips WHERE user_id=? AND ip_address=?` + lockClause(r.db, "UPDATE")
	if err := sqlx.GetContext(ctx, r.db, &entry, r.db.Rebind(query), userID, address); err != nil {
		return models.AuthorizedIP{}, notFound(err, ErrAuthorizedIPNotFound)
	}
	return entry, nil
}

// FindActive returns the active entry for (userID, address). It takes no row
// lock so concurrent address checks for the same entry do not queue.
func (r *AuthorizedIPRepo) FindActive(ctx context.Context, userID int, address string) (models.AuthorizedIP, error) {
	var entry models.AuthorizedIP
	query := `SELECT ` + authorizedIPColumns + ` FROM authorized_ips WHERE user_id=? AND ip_address=? AND status=?`
	if err := sqlx.GetContext(ctx, r.db, &entry, r.db.Rebind(query), userID, address, models.IPActive); err != nil {
		return models.AuthorizedIP{}, notFound(err, ErrAuthorizedIPNotFound)
	}
	return entry, nil
}

// Insert adds an active entry. It reports false, without error, when a row for
// the same (user, address) already exists.
func (r *AuthorizedIPRepo) Insert(ctx context.Context, entry models.AuthorizedIP) (models.AuthorizedIP, bool, error) {
	entry.Status = models.IPActive
	entry.CreatedAt = now()
	query := `INSERT INTO authorized_ips (user_id, ip_address, description, status, created_at) VALUES (?, ?, ?, ?, ?)
        ON CONFLICT (user_id, ip_address) DO NOTHING RETURNING id`
	err := r.db.QueryRowxContext(ctx, r.db.Rebind(query), entry.UserID, entry.IPAddress, entry.Description, entry.Status, entry.CreatedAt).
		Scan(&entry.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.AuthorizedIP{}, false, nil
	}
	if err != nil {
		return models.AuthorizedIP{}, false, err
	}
	return entry, true, nil
}

// Reactivate marks an entry active again and overwrites its description.
func (r *AuthorizedIPRepo) Reactivate(ctx context.Context, entryID int, description *string) (models.AuthorizedIP, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE authorized_ips SET status=?, description=? WHERE id=?`), models.IPActive, description, entryID)
	if err != nil {
		return models.AuthorizedIP{}, err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return models.AuthorizedIP{}, err
	}
	if count == 0 {
		return models.AuthorizedIP{}, ErrAuthorizedIPNotFound
	}
	var entry models.AuthorizedIP
	err = sqlx.GetContext(ctx, r.db, &entry, r.db.Rebind(`SELECT `+authorizedIPColumns+` FROM authorized_ips WHERE id=?`), entryID)
	return entry, err
}

// Deactivate flips the active entry for (userID, address) to inactive.
func (r *AuthorizedIPRepo) Deactivate(ctx context.Context, userID int, address string) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE authorized_ips SET status=? WHERE user_id=? AND ip_address=? AND status=?`),
		models.IPInactive, userID, address, models.IPActive)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrAuthorizedIPNotFound
	}
	return nil
}

// TouchLastUsed stamps the entry with the current time. Entries deactivated
// since they were read are left alone.
func (r *AuthorizedIPRepo) TouchLastUsed(ctx context.Context, entryID int) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE authorized_ips SET last_used_at=? WHERE id=? AND status=?`), now(), entryID, models.IPActive)
	return err
}

// ListActive returns the active entries of a user ordered by id.
func (r *AuthorizedIPRepo) ListActive(ctx context.Context, userID int) ([]models.AuthorizedIP, error) {
	entries := []models.AuthorizedIP{}
	err := sqlx.SelectContext(ctx, r.db, &entries, r.db.Rebind(`SELECT `+authorizedIPColumns+` FROM authorized_ips
        WHERE user_id=? AND status=? ORDER BY id`), userID, models.IPActive)
	return entries, err
}
