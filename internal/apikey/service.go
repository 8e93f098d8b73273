package apikey

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrKeyLimitReached indicates the user already holds the maximum number of
	// active keys.
	ErrKeyLimitReached = fmt.Errorf("maximum of %d active api keys allowed", MaxActiveKeys)

	// ErrInvalidExpiry indicates an unknown expiry code.
	ErrInvalidExpiry = errors.New("invalid expiry code")

	// ErrKeyInvalid indicates the presented token does not resolve to a usable key.
	ErrKeyInvalid = errors.New("invalid api key")

	// ErrKeyExpired indicates the key's expiry instant has passed.
	ErrKeyExpired = errors.New("api key expired")

	// ErrKeyRevoked indicates the key was explicitly revoked.
	ErrKeyRevoked = errors.New("api key revoked")

	// ErrKeyNotExpired indicates a rollover was attempted on a live key.
	ErrKeyNotExpired = errors.New("api key is not expired")
)

// MaxActiveKeys caps how many usable keys a user may hold at once.
const MaxActiveKeys = 5

var expiryDurations = map[string]time.Duration{
	"1H": time.Hour,
	"1D": 24 * time.Hour,
	"1M": 30 * 24 * time.Hour,
	"1Y": 365 * 24 * time.Hour,
}

// Service manages the API credential lifecycle.
type Service struct {
	repo Repository
}

// NewService creates a new API key service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Create issues a new key for the user. The plaintext token is returned once
// and never stored. Creation is rejected once the user holds MaxActiveKeys
// keys that are active under the wall clock, regardless of their stored flag.
func (s *Service) Create(ctx context.Context, userID, name string, caps []Capability, expiryCode string) (Key, string, error) {
	ttl, ok := expiryDurations[expiryCode]
	if !ok {
		return Key{}, "", ErrInvalidExpiry
	}
	if len(caps) == 0 {
		return Key{}, "", errors.New("at least one capability is required")
	}

	now := time.Now().UTC()
	active, err := s.repo.CountActive(ctx, userID, now)
	if err != nil {
		return Key{}, "", err
	}
	if active >= MaxActiveKeys {
		return Key{}, "", ErrKeyLimitReached
	}

	token, keyID, secret, err := generateToken()
	if err != nil {
		return Key{}, "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return Key{}, "", err
	}

	key := Key{
		ID:           uuid.NewString(),
		UserID:       userID,
		Name:         name,
		KeyID:        keyID,
		SecretHash:   hash,
		Prefix:       token[:15],
		Capabilities: caps,
		ExpiresAt:    now.Add(ttl),
		Active:       true,
		CreatedAt:    now,
	}
	if err := s.repo.Create(ctx, key); err != nil {
		return Key{}, "", err
	}
	return key, token, nil
}

// Verify resolves a presented token to a usable key. An expired key still
// marked active is flipped inactive as a side effect of the check (lazy
// marking); the rejection itself is driven by the wall clock either way.
func (s *Service) Verify(ctx context.Context, token string) (Key, error) {
	keyID, secret, ok := splitToken(token)
	if !ok {
		return Key{}, ErrKeyInvalid
	}

	key, err := s.repo.FindByKeyID(ctx, keyID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Key{}, ErrKeyInvalid
		}
		return Key{}, err
	}

	if key.Revoked {
		return Key{}, ErrKeyRevoked
	}
	now := time.Now().UTC()
	if !now.Before(key.ExpiresAt) {
		if key.Active {
			_ = s.repo.MarkInactive(ctx, key.ID) // best-effort cache invalidation
		}
		return Key{}, ErrKeyExpired
	}

	if bcrypt.CompareHashAndPassword(key.SecretHash, []byte(secret)) != nil {
		return Key{}, ErrKeyInvalid
	}

	_ = s.repo.TouchLastUsed(ctx, key.ID, now) // non-critical telemetry
	return key, nil
}

// List returns the user's keys, proactively flipping expired-but-still-marked
// keys so the observed state is consistent with the wall clock.
func (s *Service) List(ctx context.Context, userID string) ([]Key, error) {
	if _, err := s.repo.MarkExpired(ctx, userID, time.Now().UTC()); err != nil {
		return nil, err
	}
	return s.repo.ListByUser(ctx, userID)
}

// Revoke permanently disables a key.
func (s *Service) Revoke(ctx context.Context, id, userID string) error {
	return s.repo.Revoke(ctx, id, userID)
}

// Rollover issues a fresh key reusing the capabilities of a truly expired one.
func (s *Service) Rollover(ctx context.Context, expiredKeyID, userID, expiryCode string) (Key, string, error) {
	expired, err := s.repo.Get(ctx, expiredKeyID, userID)
	if err != nil {
		return Key{}, "", err
	}
	if time.Now().UTC().Before(expired.ExpiresAt) {
		return Key{}, "", ErrKeyNotExpired
	}

	key, token, err := s.Create(ctx, userID, expired.Name+" (rolled over)", expired.Capabilities, expiryCode)
	if err != nil {
		return Key{}, "", err
	}
	if expired.Active {
		_ = s.repo.MarkInactive(ctx, expired.ID)
	}
	return key, token, nil
}

func generateToken() (token, keyID, secret string, err error) {
	idBytes := make([]byte, 8)
	if _, err = rand.Read(idBytes); err != nil {
		return "", "", "", err
	}
	secretBytes := make([]byte, 32)
	if _, err = rand.Read(secretBytes); err != nil {
		return "", "", "", err
	}
	keyID = hex.EncodeToString(idBytes)
	secret = base64.RawURLEncoding.EncodeToString(secretBytes)
	return tokenPrefix + keyID + "_" + secret, keyID, secret, nil
}
