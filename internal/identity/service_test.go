package identity

import (
	"context"
	"testing"

	"github.com/kobopay/kobopay/internal/ledger"
	"github.com/kobopay/kobopay/internal/wallet"
)

func TestEnsureProvisionsUserAndWallet(t *testing.T) {
	ctx := context.Background()
	walletSvc := wallet.NewService(wallet.NewMemoryRepository(), ledger.NewInMemory())
	svc := NewService(NewMemoryRepository(), walletSvc)

	user, err := svc.Ensure(ctx, Identity{Subject: "google-123", Email: "ada@example.com", Name: "Ada"})
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if user.ID == "" || user.Email != "ada@example.com" {
		t.Fatalf("unexpected user: %+v", user)
	}

	w, err := walletSvc.GetByUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("wallet not provisioned: %v", err)
	}
	if w.UserID != user.ID {
		t.Fatalf("wallet owned by %s, want %s", w.UserID, user.ID)
	}

	// A second sighting of the same subject resolves to the same user.
	again, err := svc.Ensure(ctx, Identity{Subject: "google-123", Email: "ada@example.com", Name: "Ada"})
	if err != nil {
		t.Fatalf("ensure again: %v", err)
	}
	if again.ID != user.ID {
		t.Fatalf("expected same user, got %s and %s", user.ID, again.ID)
	}
}

func TestEnsureRequiresSubject(t *testing.T) {
	walletSvc := wallet.NewService(wallet.NewMemoryRepository(), ledger.NewInMemory())
	svc := NewService(NewMemoryRepository(), walletSvc)

	if _, err := svc.Ensure(context.Background(), Identity{Email: "no-subject@example.com"}); err == nil {
		t.Fatal("expected error for missing subject")
	}
}
