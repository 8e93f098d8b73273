package wallet

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/kobopay/kobopay/internal/ledger"
)

func TestServiceCreateAndBalance(t *testing.T) {
	repo := NewMemoryRepository()
	led := ledger.NewInMemory()
	svc := NewService(repo, led)

	ctx := context.Background()
	userID := uuid.NewString()
	wallet, err := svc.Create(ctx, CreateInput{UserID: userID})
	if err != nil {
		t.Fatalf("create wallet: %v", err)
	}
	if len(wallet.WalletNumber) != 13 {
		t.Fatalf("expected 13-digit wallet number, got %q", wallet.WalletNumber)
	}
	if wallet.Currency != "NGN" {
		t.Fatalf("expected default currency NGN, got %s", wallet.Currency)
	}

	fetched, err := svc.GetByUser(ctx, userID)
	if err != nil {
		t.Fatalf("get by user: %v", err)
	}
	if fetched.ID != wallet.ID {
		t.Fatalf("expected wallet %s, got %s", wallet.ID, fetched.ID)
	}

	byNumber, err := svc.GetByNumber(ctx, wallet.WalletNumber)
	if err != nil {
		t.Fatalf("get by number: %v", err)
	}
	if byNumber.ID != wallet.ID {
		t.Fatalf("expected wallet %s, got %s", wallet.ID, byNumber.ID)
	}

	ledger.SeedBalance(led, wallet.ID, 2_500)

	balance, err := svc.Balance(ctx, wallet.ID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.Amount != 2_500 {
		t.Fatalf("expected balance 2500, got %d", balance.Amount)
	}
}

func TestServiceHistoryAndLookup(t *testing.T) {
	repo := NewMemoryRepository()
	led := ledger.NewInMemory()
	svc := NewService(repo, led)

	ctx := context.Background()
	wallet, err := svc.Create(ctx, CreateInput{UserID: uuid.NewString()})
	if err != nil {
		t.Fatalf("create wallet: %v", err)
	}

	if _, err := led.CreatePendingDeposit(ctx, ledger.DepositInput{WalletID: wallet.ID, Amount: 500, Reference: "dep-a"}); err != nil {
		t.Fatalf("create deposit: %v", err)
	}

	history, err := svc.History(ctx, wallet.ID, 10, 0)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 || history[0].Reference != "dep-a" {
		t.Fatalf("unexpected history: %+v", history)
	}

	tx, err := svc.Transaction(ctx, wallet.ID, "dep-a")
	if err != nil {
		t.Fatalf("transaction lookup: %v", err)
	}
	if tx.Status != ledger.StatusPending {
		t.Fatalf("expected pending, got %s", tx.Status)
	}
}
