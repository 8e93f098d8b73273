package identity

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/kobopay/kobopay/internal/wallet"
)

// Service manages user records derived from verified external identities.
type Service struct {
	repo    Repository
	wallets *wallet.Service
}

// NewService creates a new identity service. A wallet is provisioned alongside
// every new user.
func NewService(repo Repository, wallets *wallet.Service) *Service {
	return &Service{repo: repo, wallets: wallets}
}

// Ensure resolves the user for a verified identity, creating the user and
// their wallet on first sight. The identity is treated as a trusted input.
func (s *Service) Ensure(ctx context.Context, id Identity) (User, error) {
	if id.Subject == "" {
		return User{}, errors.New("identity subject is required")
	}

	user, err := s.repo.FindBySubject(ctx, id.Subject)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return User{}, err
	}

	user = User{
		ID:        uuid.NewString(),
		Subject:   id.Subject,
		Email:     id.Email,
		Name:      id.Name,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return User{}, err
	}
	if _, err := s.wallets.Create(ctx, wallet.CreateInput{UserID: user.ID}); err != nil {
		return User{}, err
	}
	return user, nil
}

// Get fetches a user by internal identifier.
func (s *Service) Get(ctx context.Context, id string) (User, error) {
	return s.repo.FindByID(ctx, id)
}
