package funding

import (
	"context"

	"github.com/google/uuid"
)

// Provider represents a connector to the external payment processor.
type Provider interface {
	Initialize(ctx context.Context, input InitializeInput) (Checkout, error)
	Verify(ctx context.Context, reference string) (Charge, error)
}

// InitializeInput captures the data needed to open a hosted checkout session.
// Amount is in integer minor units.
type InitializeInput struct {
	Email       string
	Amount      int64
	Reference   string
	CallbackURL string
}

// Checkout is the provider's hosted-payment handle for a pending deposit.
type Checkout struct {
	AuthorizationURL string
	AccessCode       string
	Reference        string
}

// Charge is the provider's view of a payment, as returned by verification.
type Charge struct {
	Reference string
	Status    string
	Amount    int64
	Currency  string
	Channel   string
	PaidAt    string
}

// StaticProvider simulates a provider that approves every request. Useful for
// local development and tests.
type StaticProvider struct{}

// Initialize returns a synthetic checkout session.
func (StaticProvider) Initialize(_ context.Context, input InitializeInput) (Checkout, error) {
	return Checkout{
		AuthorizationURL: "https://checkout.example.com/" + input.Reference,
		AccessCode:       uuid.NewString(),
		Reference:        input.Reference,
	}, nil
}

// Verify reports the charge as successful.
func (StaticProvider) Verify(_ context.Context, reference string) (Charge, error) {
	return Charge{Reference: reference, Status: "success", Currency: "NGN"}, nil
}
