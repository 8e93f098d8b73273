package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrWalletNotFound indicates a referenced wallet does not exist.
	ErrWalletNotFound = errors.New("wallet not found")

	// ErrInsufficientFunds occurs when the source wallet lacks available balance
	// to cover a requested debit.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrDuplicateTransaction indicates the provided client transaction identifier
	// already exists and therefore the operation should be treated as idempotent.
	ErrDuplicateTransaction = errors.New("duplicate transaction")

	// ErrUnknownReference indicates an external notification referenced a
	// transaction the ledger has no record of.
	ErrUnknownReference = errors.New("unknown transaction reference")

	// ErrAlreadyProcessed indicates the referenced transaction has already left
	// the pending state, so the notification carries no further effect.
	ErrAlreadyProcessed = errors.New("transaction already processed")
)

const (
	// KindDeposit is a provider-funded credit awaiting settlement confirmation.
	KindDeposit = "deposit"
	// KindTransferOut is the debit side of a wallet-to-wallet transfer.
	KindTransferOut = "transfer_out"
	// KindTransferIn is the credit side of a wallet-to-wallet transfer.
	KindTransferIn = "transfer_in"
)

const (
	// StatusPending marks a transaction awaiting external confirmation.
	StatusPending = "pending"
	// StatusSuccess marks a settled transaction. Terminal.
	StatusSuccess = "success"
	// StatusFailed marks a transaction that will never settle. Terminal.
	StatusFailed = "failed"
)

// Transaction is a single balance-affecting ledger record. Amounts are integer
// minor currency units (kobo).
type Transaction struct {
	ID                   string
	WalletID             string
	Kind                 string
	Status               string
	Amount               int64
	Reference            string
	ClientTxID           string
	TransferID           string
	CounterpartyWalletID string
	Description          string
	CreatedAt            time.Time
	UpdatedAt            time.Time
	CompletedAt          time.Time
}

// DepositInput captures data required to open a pending deposit.
type DepositInput struct {
	WalletID    string
	Amount      int64
	Reference   string
	Description string
}

// SettlementResult captures the outcome of settling or failing a deposit.
type SettlementResult struct {
	TransactionID string
	WalletID      string
	Amount        int64
	WalletBalance int64
}

// TransferInput captures data required to move funds between two wallets.
// ClientTxID is optional; when supplied, replays of the same identifier return
// the original posting instead of applying a second one.
type TransferInput struct {
	FromWalletID string
	ToWalletID   string
	Amount       int64
	ClientTxID   string
}

// TransferResult captures the outcome of a balanced transfer posting. The debit
// and credit rows share TransferID for audit correlation.
type TransferResult struct {
	TransferID      string
	DebitReference  string
	CreditReference string
	FromBalance     int64
	ToBalance       int64
}

// Ledger defines the contract implemented by ledger backends (e.g. Postgres).
// A wallet balance only mutates inside an atomic unit that also records the
// causing transaction row.
type Ledger interface {
	EnsureWallet(ctx context.Context, walletID string) error
	Balance(ctx context.Context, walletID string) (int64, error)
	CreatePendingDeposit(ctx context.Context, input DepositInput) (Transaction, error)
	SettleDeposit(ctx context.Context, reference string) (SettlementResult, error)
	FailDeposit(ctx context.Context, reference string) (SettlementResult, error)
	Transfer(ctx context.Context, input TransferInput) (TransferResult, error)
	History(ctx context.Context, walletID string, limit, offset int) ([]Transaction, error)
	FindByReference(ctx context.Context, walletID, reference string) (Transaction, error)
}

// GenerateReference builds a unique transaction reference in the form
// PREFIX_<unix millis>_<8 random hex chars>, e.g. DEP_1712345678901_1A2B3C4D.
func GenerateReference(prefix string) string {
	random := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("%s_%d_%s", prefix, time.Now().UnixMilli(), random)
}
