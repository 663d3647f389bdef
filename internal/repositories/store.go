package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

// Repositories groups the repositories bound to one connection or transaction.
type Repositories interface {
	Users() UserRepository
	Chats() ChatRepository
	Messages() MessageRepository
	AuthorizedIPs() AuthorizedIPRepository
}

// Store gives access to repositories and runs units of work atomically.
type Store interface {
	Repositories
	WithinTx(ctx context.Context, fn func(tx Repositories) error) error
	Ping(ctx context.Context) error
}

// SQLStore is the sqlx implementation of Store.
type SQLStore struct {
	db *sqlx.DB
}

// NewSQLStore constructs a SQLStore.
func NewSQLStore(db *sqlx.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) Users() UserRepository                 { return &UserRepo{db: s.db} }
func (s *SQLStore) Chats() ChatRepository                 { return &ChatRepo{db: s.db} }
func (s *SQLStore) Messages() MessageRepository           { return &MessageRepo{db: s.db} }
func (s *SQLStore) AuthorizedIPs() AuthorizedIPRepository { return &AuthorizedIPRepo{db: s.db} }

// Ping checks database connectivity.
func (s *SQLStore) Ping(ctx context.Context) error {
	var one int
	return s.db.GetContext(ctx, &one, `SELECT 1`)
}

// WithinTx runs fn in a transaction, committing only when fn returns nil.
func (s *SQLStore) WithinTx(ctx context.Context, fn func(tx Repositories) error) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
		if err != nil {
			tx.Rollback()
		}
	}()

	if err = fn(txRepos{tx: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

type txRepos struct {
	tx *sqlx.Tx
}

func (t txRepos) Users() UserRepository                 { return &UserRepo{db: t.tx} }
func (t txRepos) Chats() ChatRepository                 { return &ChatRepo{db: t.tx} }
func (t txRepos) Messages() MessageRepository           { return &MessageRepo{db: t.tx} }
func (t txRepos) AuthorizedIPs() AuthorizedIPRepository { return &AuthorizedIPRepo{db: t.tx} }

// lockClause returns a row-locking suffix for drivers that support it. SQLite
// transactions already hold the database write lock once they write.
func lockClause(db sqlx.ExtContext, mode string) string {
	if db.DriverName() == "postgres" {
		return " FOR " + mode
	}
	return ""
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique || liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

func notFound(err error, sentinel error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return sentinel
	}
	return err
}

func now() time.Time {
	return time.Now().UTC()
}

var (
	_ Store        = (*SQLStore)(nil)
	_ Repositories = txRepos{}
)
