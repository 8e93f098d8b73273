package payments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kobopay/kobopay/internal/ledger"
	"github.com/kobopay/kobopay/internal/notification"
	"github.com/kobopay/kobopay/internal/wallet"
)

// ErrInvalidDestination indicates the destination wallet is missing or is the
// sender's own wallet.
var ErrInvalidDestination = errors.New("invalid destination wallet")

// Service moves funds between wallets through balanced ledger postings.
type Service struct {
	ledger   ledger.Ledger
	wallets  *wallet.Service
	notifier notification.Notifier
	logger   *slog.Logger
}

// NewService wires a payments service.
func NewService(l ledger.Ledger, wallets *wallet.Service, notifier notification.Notifier, logger *slog.Logger) *Service {
	return &Service{ledger: l, wallets: wallets, notifier: notifier, logger: logger}
}

// TransferInput captures a wallet-to-wallet transfer request. ClientTxID is
// optional; when present, replays of the same identifier return the original
// posting instead of moving funds again.
type TransferInput struct {
	FromUserID     string
	ToWalletNumber string
	Amount         int64
	ClientTxID     string
}

// Transfer debits the sender and credits the recipient atomically. A replayed
// ClientTxID returns the original result wrapped in
// ledger.ErrDuplicateTransaction.
func (s *Service) Transfer(ctx context.Context, input TransferInput) (ledger.TransferResult, error) {
	from, err := s.wallets.GetByUser(ctx, input.FromUserID)
	if err != nil {
		return ledger.TransferResult{}, err
	}
	to, err := s.wallets.GetByNumber(ctx, input.ToWalletNumber)
	if err != nil {
		if errors.Is(err, wallet.ErrNotFound) {
			return ledger.TransferResult{}, ErrInvalidDestination
		}
		return ledger.TransferResult{}, err
	}
	if to.ID == from.ID {
		return ledger.TransferResult{}, ErrInvalidDestination
	}

	result, err := s.ledger.Transfer(ctx, ledger.TransferInput{
		FromWalletID: from.ID,
		ToWalletID:   to.ID,
		Amount:       input.Amount,
		ClientTxID:   input.ClientTxID,
	})
	if err != nil {
		if errors.Is(err, ledger.ErrDuplicateTransaction) {
			s.logger.Info("transfer replayed", "client_tx_id", input.ClientTxID, "transfer_id", result.TransferID)
			return result, err
		}
		return ledger.TransferResult{}, err
	}

	s.logger.Info("transfer posted",
		"transfer_id", result.TransferID,
		"from_wallet", from.ID,
		"to_wallet", to.ID,
		"amount", input.Amount)

	if s.notifier != nil {
		_ = s.notifier.Send(ctx, notification.Message{
			Kind:        notification.KindTransferReceived,
			Destination: to.ID,
			Body:        fmt.Sprintf("You received %d from wallet %s", input.Amount, from.WalletNumber),
		})
	}
	return result, nil
}
