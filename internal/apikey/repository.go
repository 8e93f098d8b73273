package apikey

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates the requested key does not exist.
var ErrNotFound = errors.New("api key not found")

// Repository persists API keys. MarkInactive/MarkExpired maintain the stored
// Active flag as a best-effort cache of the wall-clock expiry predicate.
type Repository interface {
	Create(ctx context.Context, key Key) error
	FindByKeyID(ctx context.Context, keyID string) (Key, error)
	Get(ctx context.Context, id, userID string) (Key, error)
	ListByUser(ctx context.Context, userID string) ([]Key, error)
	CountActive(ctx context.Context, userID string, now time.Time) (int, error)
	MarkInactive(ctx context.Context, id string) error
	MarkExpired(ctx context.Context, userID string, now time.Time) (int, error)
	Revoke(ctx context.Context, id, userID string) error
	TouchLastUsed(ctx context.Context, id string, now time.Time) error
}

// PostgresRepository stores API keys in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed API key repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const keyColumns = `id, user_id, name, key_id, secret_hash, prefix, capabilities, expires_at, revoked, active, created_at, last_used_at`

// Create inserts a key record.
func (r *PostgresRepository) Create(ctx context.Context, key Key) error {
	id, err := uuid.Parse(key.ID)
	if err != nil {
		return err
	}
	userID, err := uuid.Parse(key.UserID)
	if err != nil {
		return err
	}
	caps := make([]string, 0, len(key.Capabilities))
	for _, c := range key.Capabilities {
		caps = append(caps, string(c))
	}
	_, err = r.db.Exec(ctx, `INSERT INTO api_keys (id, user_id, name, key_id, secret_hash, prefix, capabilities, expires_at, revoked, active, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		id, userID, key.Name, key.KeyID, key.SecretHash, key.Prefix, caps,
		key.ExpiresAt.UTC(), key.Revoked, key.Active, key.CreatedAt.UTC())
	return err
}

// FindByKeyID fetches a key by its public token identifier.
func (r *PostgresRepository) FindByKeyID(ctx context.Context, keyID string) (Key, error) {
	return scanKey(r.db.QueryRow(ctx, `SELECT `+keyColumns+` FROM api_keys WHERE key_id = $1`, keyID))
}

// Get fetches a key by identifier scoped to its owner.
func (r *PostgresRepository) Get(ctx context.Context, id, userID string) (Key, error) {
	keyUUID, err := uuid.Parse(id)
	if err != nil {
		return Key{}, ErrNotFound
	}
	ownerUUID, err := uuid.Parse(userID)
	if err != nil {
		return Key{}, ErrNotFound
	}
	return scanKey(r.db.QueryRow(ctx, `SELECT `+keyColumns+` FROM api_keys WHERE id = $1 AND user_id = $2`, keyUUID, ownerUUID))
}

// ListByUser returns all keys for a user, newest first.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]Key, error) {
	ownerUUID, err := uuid.Parse(userID)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.Query(ctx, `SELECT `+keyColumns+` FROM api_keys WHERE user_id = $1 ORDER BY created_at DESC`, ownerUUID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Key
	for rows.Next() {
		key, err := scanKey(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, key)
	}
	return out, rows.Err()
}

// CountActive counts keys that are usable at the given instant, regardless of
// the stored Active flag.
func (r *PostgresRepository) CountActive(ctx context.Context, userID string, now time.Time) (int, error) {
	ownerUUID, err := uuid.Parse(userID)
	if err != nil {
		return 0, err
	}
	var count int
	err = r.db.QueryRow(ctx, `SELECT COUNT(*) FROM api_keys
        WHERE user_id = $1 AND NOT revoked AND expires_at > $2`, ownerUUID, now.UTC()).Scan(&count)
	return count, err
}

// MarkInactive clears the stored Active flag.
func (r *PostgresRepository) MarkInactive(ctx context.Context, id string) error {
	keyUUID, err := uuid.Parse(id)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `UPDATE api_keys SET active = FALSE WHERE id = $1`, keyUUID)
	return err
}

// MarkExpired clears the Active flag on all of the user's expired keys.
func (r *PostgresRepository) MarkExpired(ctx context.Context, userID string, now time.Time) (int, error) {
	ownerUUID, err := uuid.Parse(userID)
	if err != nil {
		return 0, err
	}
	cmd, err := r.db.Exec(ctx, `UPDATE api_keys SET active = FALSE
        WHERE user_id = $1 AND active AND expires_at <= $2`, ownerUUID, now.UTC())
	if err != nil {
		return 0, err
	}
	return int(cmd.RowsAffected()), nil
}

// Revoke permanently disables a key.
func (r *PostgresRepository) Revoke(ctx context.Context, id, userID string) error {
	keyUUID, err := uuid.Parse(id)
	if err != nil {
		return ErrNotFound
	}
	ownerUUID, err := uuid.Parse(userID)
	if err != nil {
		return ErrNotFound
	}
	cmd, err := r.db.Exec(ctx, `UPDATE api_keys SET revoked = TRUE, active = FALSE
        WHERE id = $1 AND user_id = $2`, keyUUID, ownerUUID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// TouchLastUsed records usage telemetry. Failures are non-critical.
func (r *PostgresRepository) TouchLastUsed(ctx context.Context, id string, now time.Time) error {
	keyUUID, err := uuid.Parse(id)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `UPDATE api_keys SET last_used_at = $1 WHERE id = $2`, now.UTC(), keyUUID)
	return err
}

func scanKey(row pgx.Row) (Key, error) {
	var (
		key        Key
		id         uuid.UUID
		userID     uuid.UUID
		caps       []string
		lastUsedAt *time.Time
	)
	err := row.Scan(&id, &userID, &key.Name, &key.KeyID, &key.SecretHash, &key.Prefix,
		&caps, &key.ExpiresAt, &key.Revoked, &key.Active, &key.CreatedAt, &lastUsedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Key{}, ErrNotFound
		}
		return Key{}, err
	}
	key.ID = id.String()
	key.UserID = userID.String()
	key.Capabilities = make([]Capability, 0, len(caps))
	for _, c := range caps {
		key.Capabilities = append(key.Capabilities, Capability(c))
	}
	key.ExpiresAt = key.ExpiresAt.UTC()
	key.CreatedAt = key.CreatedAt.UTC()
	if lastUsedAt != nil {
		key.LastUsedAt = lastUsedAt.UTC()
	}
	return key, nil
}
