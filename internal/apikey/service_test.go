package apikey

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateReturnsUsableToken(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	svc := NewService(repo)
	userID := uuid.NewString()

	key, token, err := svc.Create(ctx, userID, "ci-bot", []Capability{CapabilityRead}, "1D")
	require.NoError(t, err)
	assert.True(t, IsToken(token))
	assert.Equal(t, token[:15], key.Prefix)
	assert.True(t, key.IsActive(time.Now()))

	verified, err := svc.Verify(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, key.ID, verified.ID)
	assert.True(t, verified.Permits(CapabilityRead))
	assert.False(t, verified.Permits(CapabilityTransfer))
}

func TestVerifyRejectsTamperedSecret(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewMemoryRepository())

	_, token, err := svc.Create(ctx, uuid.NewString(), "ci-bot", []Capability{CapabilityRead}, "1H")
	require.NoError(t, err)

	tampered := token[:len(token)-4] + "XXXX"
	_, err = svc.Verify(ctx, tampered)
	assert.ErrorIs(t, err, ErrKeyInvalid)
}

func TestVerifyLazilyMarksExpiredKey(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	svc := NewService(repo)
	userID := uuid.NewString()

	key, token, err := svc.Create(ctx, userID, "short-lived", []Capability{CapabilityDeposit}, "1H")
	require.NoError(t, err)

	repo.(*memoryRepository).expire(key.ID, time.Now().Add(-time.Minute))

	_, err = svc.Verify(ctx, token)
	assert.ErrorIs(t, err, ErrKeyExpired)

	stored, err := repo.Get(ctx, key.ID, userID)
	require.NoError(t, err)
	assert.False(t, stored.Active, "expired key should be flipped inactive by the check")
}

func TestCreateEnforcesActiveKeyLimit(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	svc := NewService(repo)
	userID := uuid.NewString()

	var last Key
	for i := 0; i < MaxActiveKeys; i++ {
		key, _, err := svc.Create(ctx, userID, "bot", []Capability{CapabilityRead}, "1D")
		require.NoError(t, err)
		last = key
	}

	_, _, err := svc.Create(ctx, userID, "one-too-many", []Capability{CapabilityRead}, "1D")
	assert.ErrorIs(t, err, ErrKeyLimitReached)

	// An expired key stops counting immediately, even before it is marked.
	repo.(*memoryRepository).expire(last.ID, time.Now().Add(-time.Minute))
	_, _, err = svc.Create(ctx, userID, "replacement", []Capability{CapabilityRead}, "1D")
	assert.NoError(t, err)
}

func TestListProactivelyMarksExpiredKeys(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	svc := NewService(repo)
	userID := uuid.NewString()

	key, _, err := svc.Create(ctx, userID, "stale", []Capability{CapabilityRead}, "1H")
	require.NoError(t, err)
	repo.(*memoryRepository).expire(key.ID, time.Now().Add(-time.Minute))

	keys, err := svc.List(ctx, userID)
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.False(t, keys[0].Active)
	assert.False(t, keys[0].IsActive(time.Now()))
}

func TestRevokeDisablesKey(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewMemoryRepository())
	userID := uuid.NewString()

	key, token, err := svc.Create(ctx, userID, "doomed", []Capability{CapabilityTransfer}, "1D")
	require.NoError(t, err)
	require.NoError(t, svc.Revoke(ctx, key.ID, userID))

	_, err = svc.Verify(ctx, token)
	assert.ErrorIs(t, err, ErrKeyRevoked)

	// Revoking someone else's key is not possible.
	other, _, err := svc.Create(ctx, uuid.NewString(), "other", []Capability{CapabilityRead}, "1D")
	require.NoError(t, err)
	assert.ErrorIs(t, svc.Revoke(ctx, other.ID, userID), ErrNotFound)
}

func TestRolloverRequiresExpiredKey(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	svc := NewService(repo)
	userID := uuid.NewString()

	key, _, err := svc.Create(ctx, userID, "prod", []Capability{CapabilityDeposit, CapabilityRead}, "1H")
	require.NoError(t, err)

	_, _, err = svc.Rollover(ctx, key.ID, userID, "1M")
	assert.ErrorIs(t, err, ErrKeyNotExpired)

	repo.(*memoryRepository).expire(key.ID, time.Now().Add(-time.Minute))

	rolled, token, err := svc.Rollover(ctx, key.ID, userID, "1M")
	require.NoError(t, err)
	assert.True(t, IsToken(token))
	assert.ElementsMatch(t, key.Capabilities, rolled.Capabilities)
	assert.Contains(t, rolled.Name, "rolled over")
}

func TestParseCapabilitiesRejectsUnknown(t *testing.T) {
	caps, err := ParseCapabilities([]string{"deposit", "read"})
	require.NoError(t, err)
	assert.Len(t, caps, 2)

	_, err = ParseCapabilities([]string{"admin"})
	assert.Error(t, err)
}
