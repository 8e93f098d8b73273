package payments

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"

	"github.com/kobopay/kobopay/internal/ledger"
	"github.com/kobopay/kobopay/internal/notification"
	"github.com/kobopay/kobopay/internal/wallet"
)

type recordingNotifier struct {
	messages []notification.Message
}

func (n *recordingNotifier) Send(_ context.Context, message notification.Message) error {
	n.messages = append(n.messages, message)
	return nil
}

type fixture struct {
	service  *Service
	ledger   ledger.Ledger
	notifier *recordingNotifier
	sender   string
	receiver wallet.Wallet
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()

	led := ledger.NewInMemory()
	wallets := wallet.NewService(wallet.NewMemoryRepository(), led)

	senderID := uuid.NewString()
	senderWallet, err := wallets.Create(ctx, wallet.CreateInput{UserID: senderID})
	if err != nil {
		t.Fatalf("create sender wallet: %v", err)
	}
	receiverWallet, err := wallets.Create(ctx, wallet.CreateInput{UserID: uuid.NewString()})
	if err != nil {
		t.Fatalf("create receiver wallet: %v", err)
	}

	ledger.SeedBalance(led, senderWallet.ID, 10_000)

	notifier := &recordingNotifier{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return fixture{
		service:  NewService(led, wallets, notifier, logger),
		ledger:   led,
		notifier: notifier,
		sender:   senderID,
		receiver: receiverWallet,
	}
}

func TestTransferMovesFundsAndNotifiesRecipient(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	result, err := f.service.Transfer(ctx, TransferInput{
		FromUserID:     f.sender,
		ToWalletNumber: f.receiver.WalletNumber,
		Amount:         2500,
	})
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if result.FromBalance != 7500 {
		t.Fatalf("sender balance = %d, want 7500", result.FromBalance)
	}
	if result.ToBalance != 2500 {
		t.Fatalf("receiver balance = %d, want 2500", result.ToBalance)
	}
	if result.TransferID == "" || result.DebitReference == "" || result.CreditReference == "" {
		t.Fatalf("incomplete posting %+v", result)
	}

	if len(f.notifier.messages) != 1 {
		t.Fatalf("notifications = %d, want 1", len(f.notifier.messages))
	}
	if f.notifier.messages[0].Kind != notification.KindTransferReceived {
		t.Fatalf("notification kind = %q", f.notifier.messages[0].Kind)
	}
	if f.notifier.messages[0].Destination != f.receiver.ID {
		t.Fatal("notification must target the receiving wallet")
	}
}

func TestTransferReplayReturnsOriginalPosting(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	input := TransferInput{
		FromUserID:     f.sender,
		ToWalletNumber: f.receiver.WalletNumber,
		Amount:         2500,
		ClientTxID:     "order-42",
	}
	first, err := f.service.Transfer(ctx, input)
	if err != nil {
		t.Fatalf("first transfer: %v", err)
	}

	second, err := f.service.Transfer(ctx, input)
	if !errors.Is(err, ledger.ErrDuplicateTransaction) {
		t.Fatalf("replay err = %v, want ErrDuplicateTransaction", err)
	}
	if second.TransferID != first.TransferID {
		t.Fatalf("replay transfer_id = %q, want %q", second.TransferID, first.TransferID)
	}

	// Funds moved exactly once; only the first posting notified.
	balance, err := f.ledger.Balance(ctx, f.receiver.ID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 2500 {
		t.Fatalf("receiver balance = %d after replay, want 2500", balance)
	}
	if len(f.notifier.messages) != 1 {
		t.Fatalf("notifications = %d after replay, want 1", len(f.notifier.messages))
	}
}

func TestTransferRejectsUnknownDestination(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Transfer(context.Background(), TransferInput{
		FromUserID:     f.sender,
		ToWalletNumber: "0000000000000",
		Amount:         100,
	})
	if !errors.Is(err, ErrInvalidDestination) {
		t.Fatalf("err = %v, want ErrInvalidDestination", err)
	}
}

func TestTransferRejectsSelfTransfer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	senderWallet, err := f.service.wallets.GetByUser(ctx, f.sender)
	if err != nil {
		t.Fatalf("sender wallet: %v", err)
	}
	_, err = f.service.Transfer(ctx, TransferInput{
		FromUserID:     f.sender,
		ToWalletNumber: senderWallet.WalletNumber,
		Amount:         100,
	})
	if !errors.Is(err, ErrInvalidDestination) {
		t.Fatalf("err = %v, want ErrInvalidDestination", err)
	}
}

func TestTransferSurfacesInsufficientFunds(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Transfer(context.Background(), TransferInput{
		FromUserID:     f.sender,
		ToWalletNumber: f.receiver.WalletNumber,
		Amount:         10_001,
	})
	if !errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Fatalf("err = %v, want ErrInsufficientFunds", err)
	}
	if len(f.notifier.messages) != 0 {
		t.Fatal("failed transfer must not notify")
	}
}
