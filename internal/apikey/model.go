package apikey

import (
	"fmt"
	"strings"
	"time"
)

// Capability is a closed enumeration of actions an API key may perform.
type Capability string

const (
	// CapabilityDeposit allows initiating wallet deposits.
	CapabilityDeposit Capability = "deposit"
	// CapabilityTransfer allows wallet-to-wallet transfers.
	CapabilityTransfer Capability = "transfer"
	// CapabilityRead allows reading balances and transaction history.
	CapabilityRead Capability = "read"
)

// AllCapabilities is the full capability set, granted to primary-identity
// callers that do not authenticate with an API key.
var AllCapabilities = []Capability{CapabilityDeposit, CapabilityTransfer, CapabilityRead}

// ParseCapabilities validates a list of capability names.
func ParseCapabilities(names []string) ([]Capability, error) {
	out := make([]Capability, 0, len(names))
	for _, name := range names {
		switch c := Capability(name); c {
		case CapabilityDeposit, CapabilityTransfer, CapabilityRead:
			out = append(out, c)
		default:
			return nil, fmt.Errorf("unknown capability %q", name)
		}
	}
	return out, nil
}

// Key is a stored API credential. The secret itself is never persisted; only
// its bcrypt hash is, looked up via the public KeyID embedded in the token.
type Key struct {
	ID           string
	UserID       string
	Name         string
	KeyID        string
	SecretHash   []byte
	Prefix       string
	Capabilities []Capability
	ExpiresAt    time.Time
	Revoked      bool
	Active       bool
	CreatedAt    time.Time
	LastUsedAt   time.Time
}

// IsActive reports whether the key is usable at the given instant. The wall
// clock is the source of truth; the stored Active flag is only a lazily
// maintained cache of this predicate.
func (k Key) IsActive(now time.Time) bool {
	return !k.Revoked && now.Before(k.ExpiresAt)
}

// Permits reports whether the key grants the capability.
func (k Key) Permits(c Capability) bool {
	for _, held := range k.Capabilities {
		if held == c {
			return true
		}
	}
	return false
}

const tokenPrefix = "sk_live_"

// IsToken reports whether a bearer credential looks like an API key token
// rather than a JWT.
func IsToken(token string) bool {
	return strings.HasPrefix(token, tokenPrefix)
}

func splitToken(token string) (keyID, secret string, ok bool) {
	rest, found := strings.CutPrefix(token, tokenPrefix)
	if !found {
		return "", "", false
	}
	keyID, secret, found = strings.Cut(rest, "_")
	if !found || keyID == "" || secret == "" {
		return "", "", false
	}
	return keyID, secret, true
}
