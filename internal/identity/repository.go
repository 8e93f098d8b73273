package identity

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates the requested user does not exist.
var ErrNotFound = errors.New("user not found")

// Repository persists users.
type Repository interface {
	Create(ctx context.Context, user User) error
	FindByID(ctx context.Context, id string) (User, error)
	FindBySubject(ctx context.Context, subject string) (User, error)
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed identity repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a new user.
func (r *PostgresRepository) Create(ctx context.Context, user User) error {
	userID, err := uuid.Parse(user.ID)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO users (id, google_id, email, name, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $5)`, userID, user.Subject, user.Email, user.Name, user.CreatedAt.UTC())
	return err
}

// FindByID fetches a user by internal identifier.
func (r *PostgresRepository) FindByID(ctx context.Context, id string) (User, error) {
	userID, err := uuid.Parse(id)
	if err != nil {
		return User{}, err
	}
	return scanUser(r.db.QueryRow(ctx, `SELECT id, google_id, email, name, created_at FROM users WHERE id = $1`, userID))
}

// FindBySubject fetches a user by the upstream subject identifier.
func (r *PostgresRepository) FindBySubject(ctx context.Context, subject string) (User, error) {
	return scanUser(r.db.QueryRow(ctx, `SELECT id, google_id, email, name, created_at FROM users WHERE google_id = $1`, subject))
}

func scanUser(row pgx.Row) (User, error) {
	var (
		user      User
		id        uuid.UUID
		createdAt time.Time
	)
	if err := row.Scan(&id, &user.Subject, &user.Email, &user.Name, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	user.ID = id.String()
	user.CreatedAt = createdAt.UTC()
	return user, nil
}
