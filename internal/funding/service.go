package funding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kobopay/kobopay/internal/ledger"
	"github.com/kobopay/kobopay/internal/notification"
	"github.com/kobopay/kobopay/internal/wallet"
)

const referencePrefix = "DEP"

// Service drives the deposit lifecycle: checkout initiation, webhook
// settlement, and status queries.
type Service struct {
	ledger   ledger.Ledger
	wallets  *wallet.Service
	provider Provider
	secrets  [][]byte
	notifier notification.Notifier
	logger   *slog.Logger
}

// NewService wires a funding service. secrets holds every webhook signing
// secret currently considered valid (current plus, during rotation, previous).
func NewService(l ledger.Ledger, wallets *wallet.Service, provider Provider, secrets [][]byte, notifier notification.Notifier, logger *slog.Logger) *Service {
	return &Service{
		ledger:   l,
		wallets:  wallets,
		provider: provider,
		secrets:  secrets,
		notifier: notifier,
		logger:   logger,
	}
}

// Deposit is the caller-facing view of an initiated deposit.
type Deposit struct {
	Reference        string
	Amount           int64
	Status           string
	AuthorizationURL string
	AccessCode       string
}

// Initiate records a pending deposit and opens a provider checkout session for
// it. The wallet is only credited later, when the provider's webhook confirms
// the charge.
func (s *Service) Initiate(ctx context.Context, userID, email string, amount int64, description string) (Deposit, error) {
	w, err := s.wallets.GetByUser(ctx, userID)
	if err != nil {
		return Deposit{}, err
	}

	reference := ledger.GenerateReference(referencePrefix)
	tx, err := s.ledger.CreatePendingDeposit(ctx, ledger.DepositInput{
		WalletID:    w.ID,
		Amount:      amount,
		Reference:   reference,
		Description: description,
	})
	if err != nil {
		return Deposit{}, err
	}

	checkout, err := s.provider.Initialize(ctx, InitializeInput{
		Email:     email,
		Amount:    amount,
		Reference: reference,
	})
	if err != nil {
		// The provider never saw this reference, so the pending row can never
		// settle. Close it out rather than leaving it dangling.
		if _, failErr := s.ledger.FailDeposit(ctx, reference); failErr != nil {
			s.logger.Error("abandoning unfunded deposit failed", "reference", reference, "error", failErr)
		}
		return Deposit{}, fmt.Errorf("initialize checkout: %w", err)
	}

	return Deposit{
		Reference:        tx.Reference,
		Amount:           tx.Amount,
		Status:           tx.Status,
		AuthorizationURL: checkout.AuthorizationURL,
		AccessCode:       checkout.AccessCode,
	}, nil
}

type webhookEvent struct {
	Event string `json:"event"`
	Data  struct {
		Reference string `json:"reference"`
		Amount    int64  `json:"amount"`
		Status    string `json:"status"`
	} `json:"data"`
}

// HandleWebhook ingests a provider event delivery. Validation failures (bad
// signature, malformed body, unknown reference, replayed delivery) return nil
// so the caller acknowledges and the provider stops retrying; only
// infrastructure failures surface as errors.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	if !VerifySignature(payload, signature, s.secrets...) {
		s.logger.Warn("webhook signature verification failed", "signature", signature)
		return nil
	}

	var event webhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		s.logger.Warn("webhook payload is not valid json", "error", err)
		return nil
	}
	if event.Data.Reference == "" {
		s.logger.Warn("webhook event carries no reference", "event", event.Event)
		return nil
	}

	switch event.Event {
	case "charge.success":
		return s.settle(ctx, event)
	case "charge.failed":
		return s.fail(ctx, event)
	default:
		s.logger.Info("ignoring webhook event", "event", event.Event, "reference", event.Data.Reference)
		return nil
	}
}

func (s *Service) settle(ctx context.Context, event webhookEvent) error {
	result, err := s.ledger.SettleDeposit(ctx, event.Data.Reference)
	switch {
	case errors.Is(err, ledger.ErrUnknownReference):
		s.logger.Warn("webhook references unknown transaction", "reference", event.Data.Reference)
		return nil
	case errors.Is(err, ledger.ErrAlreadyProcessed):
		s.logger.Info("webhook redelivery for settled transaction", "reference", event.Data.Reference)
		return nil
	case err != nil:
		return fmt.Errorf("settle deposit %s: %w", event.Data.Reference, err)
	}

	if event.Data.Amount != 0 && event.Data.Amount != result.Amount {
		s.logger.Warn("webhook amount differs from recorded deposit",
			"reference", event.Data.Reference,
			"recorded", result.Amount,
			"reported", event.Data.Amount)
	}

	s.logger.Info("deposit settled",
		"reference", event.Data.Reference,
		"wallet_id", result.WalletID,
		"amount", result.Amount)

	if s.notifier != nil {
		_ = s.notifier.Send(ctx, notification.Message{
			Kind:        notification.KindDepositSettled,
			Destination: result.WalletID,
			Body:        fmt.Sprintf("Deposit %s of %d settled", event.Data.Reference, result.Amount),
		})
	}
	return nil
}

func (s *Service) fail(ctx context.Context, event webhookEvent) error {
	_, err := s.ledger.FailDeposit(ctx, event.Data.Reference)
	switch {
	case errors.Is(err, ledger.ErrUnknownReference):
		s.logger.Warn("webhook references unknown transaction", "reference", event.Data.Reference)
		return nil
	case errors.Is(err, ledger.ErrAlreadyProcessed):
		s.logger.Info("webhook redelivery for finalized transaction", "reference", event.Data.Reference)
		return nil
	case err != nil:
		return fmt.Errorf("fail deposit %s: %w", event.Data.Reference, err)
	}
	s.logger.Info("deposit marked failed", "reference", event.Data.Reference)
	return nil
}

// Status returns the caller's view of a deposit from the local ledger.
func (s *Service) Status(ctx context.Context, userID, reference string) (ledger.Transaction, error) {
	w, err := s.wallets.GetByUser(ctx, userID)
	if err != nil {
		return ledger.Transaction{}, err
	}
	return s.ledger.FindByReference(ctx, w.ID, reference)
}

// VerifyWithProvider pairs the local record with the provider's view of the
// charge. It is a read-only cross-check; settlement only ever happens through
// the webhook path.
func (s *Service) VerifyWithProvider(ctx context.Context, userID, reference string) (ledger.Transaction, Charge, error) {
	tx, err := s.Status(ctx, userID, reference)
	if err != nil {
		return ledger.Transaction{}, Charge{}, err
	}
	charge, err := s.provider.Verify(ctx, reference)
	if err != nil {
		return ledger.Transaction{}, Charge{}, err
	}
	return tx, charge, nil
}
