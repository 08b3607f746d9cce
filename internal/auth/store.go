package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Sentinel errors surfaced by the store.
var (
	ErrUserNotFound    = errors.New("auth: user not found")
	ErrSessionNotFound = errors.New("auth: session not found")
	ErrEmailTaken      = errors.New("auth: email already registered")
)

// UserRecord is a stored user including the password hash. Never serialise it
// directly; convert to User first.
type UserRecord struct {
	ID           uuid.UUID
	Name         string
	Email        string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Session is one refresh token session. Only the token hash is stored.
type Session struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	TokenHash string
	UserAgent string
	IP        string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// PGStore persists users and refresh sessions in Postgres.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewStore constructs a PGStore over the shared connection pool.
func NewStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

const userColumns = `id, name, email, password_hash, role, created_at, updated_at`

// CreateUser inserts a new user. A duplicate email maps to ErrEmailTaken.
func (s *PGStore) CreateUser(ctx context.Context, name, email, passwordHash, role string) (UserRecord, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO users (name, email, password_hash, role)
		VALUES ($1, $2, $3, $4)
		RETURNING `+userColumns,
		name, email, passwordHash, role)
	user, err := scanUser(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return UserRecord{}, ErrEmailTaken
		}
		return UserRecord{}, fmt.Errorf("auth: insert user: %w", err)
	}
	return user, nil
}

// GetUserByEmail loads a user by normalised email.
func (s *PGStore) GetUserByEmail(ctx context.Context, email string) (UserRecord, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return UserRecord{}, ErrUserNotFound
		}
		return UserRecord{}, fmt.Errorf("auth: load user by email: %w", err)
	}
	return user, nil
}

// GetUserByID loads a user by id.
func (s *PGStore) GetUserByID(ctx context.Context, id uuid.UUID) (UserRecord, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return UserRecord{}, ErrUserNotFound
		}
		return UserRecord{}, fmt.Errorf("auth: load user by id: %w", err)
	}
	return user, nil
}

// CreateSession stores a refresh session keyed by token hash.
func (s *PGStore) CreateSession(ctx context.Context, userID uuid.UUID, tokenHash, userAgent, ip string, expiresAt time.Time) (Session, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO refresh_tokens (user_id, token_hash, user_agent, ip, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, user_id, token_hash, user_agent, ip, expires_at, created_at`,
		userID, tokenHash, userAgent, ip, expiresAt)
	session, err := scanSession(row)
	if err != nil {
		return Session{}, fmt.Errorf("auth: insert session: %w", err)
	}
	return session, nil
}

// GetSessionByToken looks a session up by token hash.
func (s *PGStore) GetSessionByToken(ctx context.Context, tokenHash string) (Session, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, user_id, token_hash, user_agent, ip, expires_at, created_at
		FROM refresh_tokens
		WHERE token_hash = $1`, tokenHash)
	session, err := scanSession(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Session{}, ErrSessionNotFound
		}
		return Session{}, fmt.Errorf("auth: load session: %w", err)
	}
	return session, nil
}

// RotateSessionToken swaps the stored hash and extends the session.
func (s *PGStore) RotateSessionToken(ctx context.Context, id uuid.UUID, tokenHash string, expiresAt time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE refresh_tokens SET token_hash = $2, expires_at = $3 WHERE id = $1`,
		id, tokenHash, expiresAt)
	if err != nil {
		return fmt.Errorf("auth: rotate session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// DeleteSessionByToken revokes one session by token hash.
func (s *PGStore) DeleteSessionByToken(ctx context.Context, tokenHash string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM refresh_tokens WHERE token_hash = $1`, tokenHash)
	if err != nil {
		return fmt.Errorf("auth: delete session: %w", err)
	}
	return nil
}

// DeleteSessionsByUser revokes every session a user holds.
func (s *PGStore) DeleteSessionsByUser(ctx context.Context, userID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM refresh_tokens WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("auth: delete user sessions: %w", err)
	}
	return nil
}

func scanUser(row pgx.Row) (UserRecord, error) {
	var u UserRecord
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

func scanSession(row pgx.Row) (Session, error) {
	var s Session
	err := row.Scan(&s.ID, &s.UserID, &s.TokenHash, &s.UserAgent, &s.IP, &s.ExpiresAt, &s.CreatedAt)
	return s, err
}
