package funding

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"

	"github.com/kobopay/kobopay/internal/ledger"
	"github.com/kobopay/kobopay/internal/wallet"
)

type fakeProvider struct {
	initErr   error
	lastInit  InitializeInput
	verifyFor map[string]Charge
}

func (f *fakeProvider) Initialize(_ context.Context, input InitializeInput) (Checkout, error) {
	f.lastInit = input
	if f.initErr != nil {
		return Checkout{}, f.initErr
	}
	return Checkout{
		AuthorizationURL: "https://checkout.example.com/" + input.Reference,
		AccessCode:       "ac_" + input.Reference,
		Reference:        input.Reference,
	}, nil
}

func (f *fakeProvider) Verify(_ context.Context, reference string) (Charge, error) {
	if charge, ok := f.verifyFor[reference]; ok {
		return charge, nil
	}
	return Charge{Reference: reference, Status: "success", Currency: "NGN"}, nil
}

var testSecret = []byte("sk_test_webhook_secret")

func newTestService(t *testing.T, provider Provider) (*Service, ledger.Ledger, string, string) {
	t.Helper()

	led := ledger.NewInMemory()
	wallets := wallet.NewService(wallet.NewMemoryRepository(), led)
	userID := uuid.NewString()
	w, err := wallets.Create(context.Background(), wallet.CreateInput{UserID: userID})
	if err != nil {
		t.Fatalf("create wallet: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewService(led, wallets, provider, [][]byte{testSecret}, nil, logger)
	return svc, led, userID, w.ID
}

func successEvent(reference string, amount int64) []byte {
	return []byte(fmt.Sprintf(`{"event":"charge.success","data":{"reference":"%s","amount":%d,"status":"success"}}`, reference, amount))
}

func TestInitiateCreatesPendingDepositWithCheckout(t *testing.T) {
	provider := &fakeProvider{}
	svc, led, userID, walletID := newTestService(t, provider)
	ctx := context.Background()

	deposit, err := svc.Initiate(ctx, userID, "ada@example.com", 5000, "top up")
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if deposit.Status != ledger.StatusPending {
		t.Fatalf("status = %q, want pending", deposit.Status)
	}
	if deposit.AuthorizationURL == "" || deposit.AccessCode == "" {
		t.Fatal("checkout session missing from response")
	}
	if provider.lastInit.Amount != 5000 || provider.lastInit.Email != "ada@example.com" {
		t.Fatalf("provider initialized with %+v", provider.lastInit)
	}
	if provider.lastInit.Reference != deposit.Reference {
		t.Fatal("provider and ledger must share the reference")
	}

	// Initiation alone never credits.
	balance, err := led.Balance(ctx, walletID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 0 {
		t.Fatalf("balance = %d, want 0 before settlement", balance)
	}
}

func TestInitiateClosesDepositWhenProviderRejects(t *testing.T) {
	provider := &fakeProvider{initErr: errors.New("provider down")}
	svc, led, userID, walletID := newTestService(t, provider)
	ctx := context.Background()

	_, err := svc.Initiate(ctx, userID, "ada@example.com", 5000, "")
	if err == nil {
		t.Fatal("expected initiate to fail")
	}

	history, err := led.History(ctx, walletID, 10, 0)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("history has %d rows, want 1", len(history))
	}
	if history[0].Status != ledger.StatusFailed {
		t.Fatalf("abandoned deposit status = %q, want failed", history[0].Status)
	}
}

func TestHandleWebhookSettlesDepositExactlyOnce(t *testing.T) {
	svc, led, userID, walletID := newTestService(t, &fakeProvider{})
	ctx := context.Background()

	deposit, err := svc.Initiate(ctx, userID, "ada@example.com", 5000, "")
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}

	payload := successEvent(deposit.Reference, 5000)
	signature := sign(payload, testSecret)

	for i := 0; i < 3; i++ {
		if err := svc.HandleWebhook(ctx, payload, signature); err != nil {
			t.Fatalf("delivery %d: %v", i+1, err)
		}
	}

	balance, err := led.Balance(ctx, walletID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 5000 {
		t.Fatalf("balance = %d after redeliveries, want 5000", balance)
	}

	tx, err := led.FindByReference(ctx, walletID, deposit.Reference)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if tx.Status != ledger.StatusSuccess {
		t.Fatalf("status = %q, want success", tx.Status)
	}
}

func TestHandleWebhookDiscardsBadSignature(t *testing.T) {
	svc, led, userID, walletID := newTestService(t, &fakeProvider{})
	ctx := context.Background()

	deposit, err := svc.Initiate(ctx, userID, "ada@example.com", 5000, "")
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}

	payload := successEvent(deposit.Reference, 5000)
	if err := svc.HandleWebhook(ctx, payload, sign(payload, []byte("attacker"))); err != nil {
		t.Fatalf("forged delivery must be acknowledged, got %v", err)
	}

	balance, err := led.Balance(ctx, walletID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 0 {
		t.Fatalf("balance = %d after forged delivery, want 0", balance)
	}
}

func TestHandleWebhookAcknowledgesUnknownReference(t *testing.T) {
	svc, _, _, _ := newTestService(t, &fakeProvider{})

	payload := successEvent("DEP_0_DEADBEEF", 100)
	if err := svc.HandleWebhook(context.Background(), payload, sign(payload, testSecret)); err != nil {
		t.Fatalf("unknown reference must be acknowledged, got %v", err)
	}
}

func TestHandleWebhookAcknowledgesMalformedPayload(t *testing.T) {
	svc, _, _, _ := newTestService(t, &fakeProvider{})

	payload := []byte("not json")
	if err := svc.HandleWebhook(context.Background(), payload, sign(payload, testSecret)); err != nil {
		t.Fatalf("malformed payload must be acknowledged, got %v", err)
	}
}

func TestHandleWebhookChargeFailedIsTerminal(t *testing.T) {
	svc, led, userID, walletID := newTestService(t, &fakeProvider{})
	ctx := context.Background()

	deposit, err := svc.Initiate(ctx, userID, "ada@example.com", 5000, "")
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}

	failed := []byte(fmt.Sprintf(`{"event":"charge.failed","data":{"reference":"%s","status":"failed"}}`, deposit.Reference))
	if err := svc.HandleWebhook(ctx, failed, sign(failed, testSecret)); err != nil {
		t.Fatalf("charge.failed: %v", err)
	}

	// A late success delivery for the same reference cannot revive it.
	success := successEvent(deposit.Reference, 5000)
	if err := svc.HandleWebhook(ctx, success, sign(success, testSecret)); err != nil {
		t.Fatalf("late success delivery: %v", err)
	}

	balance, err := led.Balance(ctx, walletID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 0 {
		t.Fatalf("balance = %d, want 0 for failed deposit", balance)
	}
	tx, err := led.FindByReference(ctx, walletID, deposit.Reference)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if tx.Status != ledger.StatusFailed {
		t.Fatalf("status = %q, want failed", tx.Status)
	}
}

func TestHandleWebhookIgnoresUnrelatedEvents(t *testing.T) {
	svc, led, userID, walletID := newTestService(t, &fakeProvider{})
	ctx := context.Background()

	deposit, err := svc.Initiate(ctx, userID, "ada@example.com", 5000, "")
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}

	payload := []byte(fmt.Sprintf(`{"event":"transfer.success","data":{"reference":"%s","status":"success"}}`, deposit.Reference))
	if err := svc.HandleWebhook(ctx, payload, sign(payload, testSecret)); err != nil {
		t.Fatalf("unrelated event: %v", err)
	}

	tx, err := led.FindByReference(ctx, walletID, deposit.Reference)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if tx.Status != ledger.StatusPending {
		t.Fatalf("status = %q, want pending after unrelated event", tx.Status)
	}
}
