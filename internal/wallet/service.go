package wallet

import (
	"context"
	"crypto/rand"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/kobopay/kobopay/internal/ledger"
)

const defaultCurrency = "NGN"

// Service exposes wallet operations backed by the ledger.
type Service struct {
	repo   Repository
	ledger ledger.Ledger
}

// NewService builds a wallet service instance.
func NewService(repo Repository, ledger ledger.Ledger) *Service {
	return &Service{repo: repo, ledger: ledger}
}

// CreateInput captures data required to create a wallet.
type CreateInput struct {
	UserID   string
	Currency string
}

// Create provisions a wallet with a fresh 13-digit wallet number and registers
// it with the ledger.
func (s *Service) Create(ctx context.Context, input CreateInput) (Wallet, error) {
	if _, err := uuid.Parse(input.UserID); err != nil {
		return Wallet{}, err
	}

	number, err := generateWalletNumber()
	if err != nil {
		return Wallet{}, err
	}

	currency := input.Currency
	if currency == "" {
		currency = defaultCurrency
	}

	wallet := Wallet{
		ID:           uuid.NewString(),
		UserID:       input.UserID,
		WalletNumber: number,
		Currency:     currency,
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.repo.Create(ctx, wallet); err != nil {
		return Wallet{}, err
	}
	if err := s.ledger.EnsureWallet(ctx, wallet.ID); err != nil {
		return Wallet{}, err
	}

	return wallet, nil
}

// Get retrieves wallet metadata by identifier.
func (s *Service) Get(ctx context.Context, id string) (Wallet, error) {
	return s.repo.Get(ctx, id)
}

// GetByUser retrieves the wallet owned by the given user.
func (s *Service) GetByUser(ctx context.Context, userID string) (Wallet, error) {
	return s.repo.GetByUser(ctx, userID)
}

// GetByNumber retrieves a wallet by its public wallet number.
func (s *Service) GetByNumber(ctx context.Context, walletNumber string) (Wallet, error) {
	return s.repo.GetByNumber(ctx, walletNumber)
}

// Balance returns the ledger balance for the wallet.
func (s *Service) Balance(ctx context.Context, id string) (Balance, error) {
	wallet, err := s.repo.Get(ctx, id)
	if err != nil {
		return Balance{}, err
	}
	amount, err := s.ledger.Balance(ctx, wallet.ID)
	if err != nil {
		return Balance{}, err
	}
	return Balance{
		WalletID:     wallet.ID,
		WalletNumber: wallet.WalletNumber,
		Amount:       amount,
		Currency:     wallet.Currency,
		AsOf:         time.Now().UTC(),
	}, nil
}

// History returns the wallet's transaction records, newest first.
func (s *Service) History(ctx context.Context, id string, limit, offset int) ([]ledger.Transaction, error) {
	wallet, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.ledger.History(ctx, wallet.ID, limit, offset)
}

// Transaction fetches a single transaction by reference, scoped to the wallet.
func (s *Service) Transaction(ctx context.Context, id, reference string) (ledger.Transaction, error) {
	wallet, err := s.repo.Get(ctx, id)
	if err != nil {
		return ledger.Transaction{}, err
	}
	return s.ledger.FindByReference(ctx, wallet.ID, reference)
}

func generateWalletNumber() (string, error) {
	// 13 digits, leading digit non-zero: [1e12, 1e13).
	span := new(big.Int).Sub(big.NewInt(0).SetUint64(10_000_000_000_000), big.NewInt(1_000_000_000_000))
	n, err := rand.Int(rand.Reader, span)
	if err != nil {
		return "", err
	}
	return new(big.Int).Add(n, big.NewInt(1_000_000_000_000)).String(), nil
}
