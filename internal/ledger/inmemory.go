package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type inMemoryLedger struct {
	mu           sync.RWMutex
	balances     map[string]int64
	byReference  map[string]*Transaction
	byClientTxID map[string]*Transaction
	byWallet     map[string][]*Transaction
}

// NewInMemory creates a concurrency-safe in-memory ledger useful for unit tests.
func NewInMemory() Ledger {
	return &inMemoryLedger{
		balances:     make(map[string]int64),
		byReference:  make(map[string]*Transaction),
		byClientTxID: make(map[string]*Transaction),
		byWallet:     make(map[string][]*Transaction),
	}
}

func (l *inMemoryLedger) EnsureWallet(_ context.Context, walletID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.balances[walletID]; !exists {
		l.balances[walletID] = 0
	}
	return nil
}

func (l *inMemoryLedger) Balance(_ context.Context, walletID string) (int64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	balance, exists := l.balances[walletID]
	if !exists {
		return 0, ErrWalletNotFound
	}
	return balance, nil
}

func (l *inMemoryLedger) CreatePendingDeposit(_ context.Context, input DepositInput) (Transaction, error) {
	if input.Amount <= 0 {
		return Transaction{}, fmt.Errorf("amount must be positive")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.balances[input.WalletID]; !exists {
		return Transaction{}, ErrWalletNotFound
	}
	if _, exists := l.byReference[input.Reference]; exists {
		return Transaction{}, ErrDuplicateTransaction
	}

	now := time.Now().UTC()
	tx := &Transaction{
		ID:          uuid.NewString(),
		WalletID:    input.WalletID,
		Kind:        KindDeposit,
		Status:      StatusPending,
		Amount:      input.Amount,
		Reference:   input.Reference,
		Description: input.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	l.byReference[tx.Reference] = tx
	l.byWallet[tx.WalletID] = append(l.byWallet[tx.WalletID], tx)
	return *tx, nil
}

func (l *inMemoryLedger) SettleDeposit(_ context.Context, reference string) (SettlementResult, error) {
	return l.finishDeposit(reference, StatusSuccess)
}

func (l *inMemoryLedger) FailDeposit(_ context.Context, reference string) (SettlementResult, error) {
	return l.finishDeposit(reference, StatusFailed)
}

func (l *inMemoryLedger) finishDeposit(reference, target string) (SettlementResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	tx, exists := l.byReference[reference]
	if !exists || tx.Kind != KindDeposit {
		return SettlementResult{}, ErrUnknownReference
	}

	result := SettlementResult{
		TransactionID: tx.ID,
		WalletID:      tx.WalletID,
		Amount:        tx.Amount,
		WalletBalance: l.balances[tx.WalletID],
	}
	if tx.Status != StatusPending {
		return result, ErrAlreadyProcessed
	}

	now := time.Now().UTC()
	tx.Status = target
	tx.UpdatedAt = now
	tx.CompletedAt = now
	if target == StatusSuccess {
		l.balances[tx.WalletID] += tx.Amount
		result.WalletBalance = l.balances[tx.WalletID]
	}
	return result, nil
}

func (l *inMemoryLedger) Transfer(_ context.Context, input TransferInput) (TransferResult, error) {
	if input.Amount <= 0 {
		return TransferResult{}, fmt.Errorf("amount must be positive")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if input.ClientTxID != "" {
		if prior, exists := l.byClientTxID[input.ClientTxID]; exists {
			return TransferResult{
				TransferID:      prior.TransferID,
				DebitReference:  prior.Reference,
				CreditReference: prior.Reference[:len(prior.Reference)-len("_OUT")] + "_IN",
				FromBalance:     l.balances[prior.WalletID],
				ToBalance:       l.balances[prior.CounterpartyWalletID],
			}, ErrDuplicateTransaction
		}
	}

	fromBalance, ok := l.balances[input.FromWalletID]
	if !ok {
		return TransferResult{}, ErrWalletNotFound
	}
	if _, ok := l.balances[input.ToWalletID]; !ok {
		return TransferResult{}, ErrWalletNotFound
	}
	if fromBalance < input.Amount {
		return TransferResult{}, ErrInsufficientFunds
	}

	now := time.Now().UTC()
	transferID := uuid.NewString()
	base := GenerateReference("TRF")
	l.balances[input.FromWalletID] -= input.Amount
	l.balances[input.ToWalletID] += input.Amount

	debit := &Transaction{
		ID:                   uuid.NewString(),
		WalletID:             input.FromWalletID,
		Kind:                 KindTransferOut,
		Status:               StatusSuccess,
		Amount:               input.Amount,
		Reference:            base + "_OUT",
		ClientTxID:           input.ClientTxID,
		TransferID:           transferID,
		CounterpartyWalletID: input.ToWalletID,
		CreatedAt:            now,
		UpdatedAt:            now,
		CompletedAt:          now,
	}
	credit := &Transaction{
		ID:                   uuid.NewString(),
		WalletID:             input.ToWalletID,
		Kind:                 KindTransferIn,
		Status:               StatusSuccess,
		Amount:               input.Amount,
		Reference:            base + "_IN",
		TransferID:           transferID,
		CounterpartyWalletID: input.FromWalletID,
		CreatedAt:            now,
		UpdatedAt:            now,
		CompletedAt:          now,
	}

	l.byReference[debit.Reference] = debit
	l.byReference[credit.Reference] = credit
	l.byWallet[debit.WalletID] = append(l.byWallet[debit.WalletID], debit)
	l.byWallet[credit.WalletID] = append(l.byWallet[credit.WalletID], credit)
	if input.ClientTxID != "" {
		l.byClientTxID[input.ClientTxID] = debit
	}

	return TransferResult{
		TransferID:      transferID,
		DebitReference:  debit.Reference,
		CreditReference: credit.Reference,
		FromBalance:     l.balances[input.FromWalletID],
		ToBalance:       l.balances[input.ToWalletID],
	}, nil
}

func (l *inMemoryLedger) History(_ context.Context, walletID string, limit, offset int) ([]Transaction, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if _, exists := l.balances[walletID]; !exists {
		return nil, ErrWalletNotFound
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	records := l.byWallet[walletID]
	sorted := make([]*Transaction, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})

	if offset >= len(sorted) {
		return nil, nil
	}
	sorted = sorted[offset:]
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}

	out := make([]Transaction, 0, len(sorted))
	for _, tx := range sorted {
		out = append(out, *tx)
	}
	return out, nil
}

func (l *inMemoryLedger) FindByReference(_ context.Context, walletID, reference string) (Transaction, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	tx, exists := l.byReference[reference]
	if !exists || tx.WalletID != walletID {
		return Transaction{}, ErrUnknownReference
	}
	return *tx, nil
}
