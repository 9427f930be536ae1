package userstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrEthical07/authcore/lockout"
)

const uniqueViolation = "23505"

// DB is the subset of *pgxpool.Pool used by PostgresStore.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

// PostgresStore keeps accounts and their lockout state in the auth_accounts table.
type PostgresStore struct {
	db DB
}

// NewPostgresStore wraps an existing pool or connection.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// OpenPool connects to dsn and pings the server.
func OpenPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// Create inserts a new account.
func (s *PostgresStore) Create(ctx context.Context, a Account) error {
	if err := a.validate(); err != nil {
		return err
	}
	authorities := a.Authorities
	if authorities == nil {
		authorities = []string{}
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO auth_accounts (id, username, email, password_hash, authorities)
		VALUES ($1, $2, $3, $4, $5)
	`, a.ID, a.Username, a.Email, a.PasswordHash, authorities)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrDuplicateAccount
		}
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

// FindByUsername returns the account with the exact username.
func (s *PostgresStore) FindByUsername(ctx context.Context, username string) (Account, error) {
	var a Account
	err := s.db.QueryRow(ctx, `
		SELECT id, username, email, password_hash, authorities
		FROM auth_accounts
		WHERE username = $1
	`, username).Scan(&a.ID, &a.Username, &a.Email, &a.PasswordHash, &a.Authorities)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, fmt.Errorf("query account by username: %w", err)
	}
	return a, nil
}

// GetLockoutState reads the failure counter and lock expiry.
func (s *PostgresStore) GetLockoutState(ctx context.Context, accountID string) (lockout.State, error) {
	var st lockout.State
	err := s.db.QueryRow(ctx, `
		SELECT failed_attempts, locked_until
		FROM auth_accounts
		WHERE id = $1
	`, accountID).Scan(&st.FailedAttempts, &st.LockedUntil)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return lockout.State{}, nil
		}
		return lockout.State{}, fmt.Errorf("query lockout state: %w", err)
	}
	return st, nil
}

// SetLockoutState overwrites the failure counter and lock expiry.
func (s *PostgresStore) SetLockoutState(ctx context.Context, accountID string, st lockout.State) error {
	_, err := s.db.Exec(ctx, `
		UPDATE auth_accounts
		SET failed_attempts = $2, locked_until = $3, updated_at = NOW()
		WHERE id = $1
	`, accountID, st.FailedAttempts, st.LockedUntil)
	if err != nil {
		return fmt.Errorf("update lockout state: %w", err)
	}
	return nil
}

// ApplyFailure applies lockout.NextFailureState under a row lock.
func (s *PostgresStore) ApplyFailure(ctx context.Context, accountID string, now time.Time, policy lockout.Policy) (lockout.State, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return lockout.State{}, fmt.Errorf("begin lockout tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var current lockout.State
	err = tx.QueryRow(ctx, `
		SELECT failed_attempts, locked_until
		FROM auth_accounts
		WHERE id = $1
		FOR UPDATE
	`, accountID).Scan(&current.FailedAttempts, &current.LockedUntil)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return lockout.State{}, nil
		}
		return lockout.State{}, fmt.Errorf("lock account row: %w", err)
	}

	next := lockout.NextFailureState(current, now, policy)
	if _, err := tx.Exec(ctx, `
		UPDATE auth_accounts
		SET failed_attempts = $2, locked_until = $3, updated_at = NOW()
		WHERE id = $1
	`, accountID, next.FailedAttempts, next.LockedUntil); err != nil {
		return lockout.State{}, fmt.Errorf("update lockout state: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return lockout.State{}, fmt.Errorf("commit lockout tx: %w", err)
	}
	return next, nil
}

// SetLastLogin records the time of the latest successful login.
func (s *PostgresStore) SetLastLogin(ctx context.Context, accountID string, at time.Time) error {
	if _, err := s.db.Exec(ctx, `
		UPDATE auth_accounts SET last_login_at = $2, updated_at = NOW() WHERE id = $1
	`, accountID, at.UTC()); err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return nil
}
