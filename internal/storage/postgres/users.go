package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"roadAccident/internal/domain"
	"roadAccident/pkg/e"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type UserRepo struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewUserRepo(pool *pgxpool.Pool, logger *slog.Logger) *UserRepo {
	return &UserRepo{pool: pool, logger: logger}
}

func (p *UserRepo) Create(ctx context.Context, u *domain.User) error {
	const op = "postgres.User.Create"

	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))

	const query = `
		INSERT INTO users (id, email, full_name, password_hash, role, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := p.pool.Exec(ctx, query, u.ID, u.Email, u.FullName, u.PasswordHash, string(u.Role), u.CreatedAt)
	if err != nil {
		wrapped := e.WrapError(ctx, op, err)
		if errors.Is(wrapped, e.ErrUniqueViolation) {
			return fmt.Errorf("%s: %w", op, e.ErrEmailTaken)
		}
		p.logger.Error("db exec failed", slog.String("op", op), slog.Any("error", err))
		return wrapped
	}
	return nil
}

func (p *UserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	const op = "postgres.User.GetByEmail"

	const query = `
		SELECT id, email, full_name, password_hash, role, created_at
		FROM users
		WHERE email = $1
	`

	var u domain.User
	err := p.pool.QueryRow(ctx, query, strings.ToLower(strings.TrimSpace(email))).Scan(
		&u.ID, &u.Email, &u.FullName, &u.PasswordHash, &u.Role, &u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, e.ErrNotFound)
		}
		p.logger.Error("db queryrow scan failed", slog.String("op", op), slog.Any("error", err))
		return nil, e.WrapError(ctx, op, err)
	}
	return &u, nil
}

// UpsertAdmin creates the admin account or resets the password and role of an existing one.
func (p *UserRepo) UpsertAdmin(ctx context.Context, u *domain.User) error {
	const op = "postgres.User.UpsertAdmin"

	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}

	const query = `
		INSERT INTO users (id, email, full_name, password_hash, role, created_at)
		VALUES ($1, $2, $3, $4, 'admin', $5)
		ON CONFLICT (email) DO UPDATE
		SET password_hash = EXCLUDED.password_hash,
			role          = 'admin'
		RETURNING id, created_at
	`

	err := p.pool.QueryRow(ctx, query,
		u.ID, strings.ToLower(strings.TrimSpace(u.Email)), u.FullName, u.PasswordHash, u.CreatedAt,
	).Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		p.logger.Error("db upsert failed", slog.String("op", op), slog.Any("error", err))
		return e.WrapError(ctx, op, err)
	}
	u.Role = domain.RoleAdmin
	return nil
}
