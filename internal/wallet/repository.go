package wallet

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates the requested wallet does not exist.
var ErrNotFound = errors.New("wallet not found")

// Repository persists wallet metadata.
type Repository interface {
	Create(ctx context.Context, wallet Wallet) error
	Get(ctx context.Context, id string) (Wallet, error)
	GetByUser(ctx context.Context, userID string) (Wallet, error)
	GetByNumber(ctx context.Context, walletNumber string) (Wallet, error)
}

// PostgresRepository stores wallets in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a wallet record with a zero opening balance.
func (r *PostgresRepository) Create(ctx context.Context, wallet Wallet) error {
	walletID, err := uuid.Parse(wallet.ID)
	if err != nil {
		return err
	}
	userID, err := uuid.Parse(wallet.UserID)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO wallets (id, user_id, wallet_number, balance, currency, version, created_at, updated_at)
        VALUES ($1, $2, $3, 0, $4, 0, $5, $5)`, walletID, userID, wallet.WalletNumber, wallet.Currency, wallet.CreatedAt.UTC())
	return err
}

// Get fetches wallet metadata by identifier.
func (r *PostgresRepository) Get(ctx context.Context, id string) (Wallet, error) {
	walletID, err := uuid.Parse(id)
	if err != nil {
		return Wallet{}, err
	}
	return r.scanOne(r.db.QueryRow(ctx, `SELECT id, user_id, wallet_number, currency, created_at
        FROM wallets WHERE id = $1`, walletID))
}

// GetByUser fetches the wallet owned by a user.
func (r *PostgresRepository) GetByUser(ctx context.Context, userID string) (Wallet, error) {
	ownerID, err := uuid.Parse(userID)
	if err != nil {
		return Wallet{}, err
	}
	return r.scanOne(r.db.QueryRow(ctx, `SELECT id, user_id, wallet_number, currency, created_at
        FROM wallets WHERE user_id = $1`, ownerID))
}

// GetByNumber fetches a wallet by its public wallet number.
func (r *PostgresRepository) GetByNumber(ctx context.Context, walletNumber string) (Wallet, error) {
	return r.scanOne(r.db.QueryRow(ctx, `SELECT id, user_id, wallet_number, currency, created_at
        FROM wallets WHERE wallet_number = $1`, walletNumber))
}

func (r *PostgresRepository) scanOne(row pgx.Row) (Wallet, error) {
	var (
		w         Wallet
		id        uuid.UUID
		userID    uuid.UUID
		createdAt time.Time
	)
	if err := row.Scan(&id, &userID, &w.WalletNumber, &w.Currency, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Wallet{}, ErrNotFound
		}
		return Wallet{}, err
	}
	w.ID = id.String()
	w.UserID = userID.String()
	w.CreatedAt = createdAt.UTC()
	return w, nil
}
