package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresLedger persists wallet balances and transaction records in
// PostgreSQL. Mutual exclusion for balance changes relies on row-level locks so
// the ledger stays correct across multiple service processes.
type PostgresLedger struct {
	db *pgxpool.Pool
}

// NewPostgresLedger constructs a Postgres-backed ledger implementation.
func NewPostgresLedger(db *pgxpool.Pool) *PostgresLedger {
	return &PostgresLedger{db: db}
}

// EnsureWallet verifies the wallet row exists. The row itself is created by the
// wallet repository; the ledger only mutates its balance.
func (l *PostgresLedger) EnsureWallet(ctx context.Context, walletID string) error {
	id, err := uuid.Parse(walletID)
	if err != nil {
		return err
	}
	var found uuid.UUID
	if err := l.db.QueryRow(ctx, `SELECT id FROM wallets WHERE id = $1`, id).Scan(&found); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrWalletNotFound
		}
		return err
	}
	return nil
}

// Balance returns the stored balance for the wallet.
func (l *PostgresLedger) Balance(ctx context.Context, walletID string) (int64, error) {
	id, err := uuid.Parse(walletID)
	if err != nil {
		return 0, err
	}
	var balance int64
	if err := l.db.QueryRow(ctx, `SELECT balance FROM wallets WHERE id = $1`, id).Scan(&balance); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrWalletNotFound
		}
		return 0, err
	}
	return balance, nil
}

// CreatePendingDeposit records a deposit awaiting provider confirmation. No
// balance changes until the deposit settles.
func (l *PostgresLedger) CreatePendingDeposit(ctx context.Context, input DepositInput) (Transaction, error) {
	if input.Amount <= 0 {
		return Transaction{}, fmt.Errorf("amount must be positive")
	}
	walletID, err := uuid.Parse(input.WalletID)
	if err != nil {
		return Transaction{}, err
	}
	if err := l.EnsureWallet(ctx, input.WalletID); err != nil {
		return Transaction{}, err
	}

	now := time.Now().UTC()
	tx := Transaction{
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

	_, err = l.db.Exec(ctx, `INSERT INTO transactions (id, wallet_id, kind, status, amount, reference, description, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		uuid.MustParse(tx.ID), walletID, tx.Kind, tx.Status, tx.Amount, tx.Reference, tx.Description, tx.CreatedAt, tx.UpdatedAt)
	if err != nil {
		return Transaction{}, err
	}
	return tx, nil
}

// SettleDeposit flips the referenced deposit to success and credits the wallet
// in one atomic unit. The pending -> success compare-and-set ensures two
// concurrent deliveries for the same reference cannot both credit.
func (l *PostgresLedger) SettleDeposit(ctx context.Context, reference string) (SettlementResult, error) {
	return l.finishDeposit(ctx, reference, StatusSuccess)
}

// FailDeposit flips the referenced deposit to failed without touching the
// balance. Failed is terminal just like success.
func (l *PostgresLedger) FailDeposit(ctx context.Context, reference string) (SettlementResult, error) {
	return l.finishDeposit(ctx, reference, StatusFailed)
}

func (l *PostgresLedger) finishDeposit(ctx context.Context, reference, target string) (SettlementResult, error) {
	tx, err := l.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return SettlementResult{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	var (
		txID     uuid.UUID
		walletID uuid.UUID
		amount   int64
		status   string
	)
	err = tx.QueryRow(ctx, `SELECT id, wallet_id, amount, status FROM transactions
        WHERE reference = $1 AND kind = $2 FOR UPDATE`, reference, KindDeposit).
		Scan(&txID, &walletID, &amount, &status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return SettlementResult{}, ErrUnknownReference
		}
		return SettlementResult{}, err
	}

	result := SettlementResult{TransactionID: txID.String(), WalletID: walletID.String(), Amount: amount}

	if status != StatusPending {
		if err := tx.QueryRow(ctx, `SELECT balance FROM wallets WHERE id = $1`, walletID).Scan(&result.WalletBalance); err != nil {
			return SettlementResult{}, err
		}
		return result, ErrAlreadyProcessed
	}

	now := time.Now().UTC()
	cmd, err := tx.Exec(ctx, `UPDATE transactions SET status = $1, completed_at = $2, updated_at = $2
        WHERE id = $3 AND status = $4`, target, now, txID, StatusPending)
	if err != nil {
		return SettlementResult{}, err
	}
	if cmd.RowsAffected() == 0 {
		// Lost the compare-and-set race to a concurrent delivery.
		return result, ErrAlreadyProcessed
	}

	if target == StatusSuccess {
		err = tx.QueryRow(ctx, `UPDATE wallets SET balance = balance + $1, version = version + 1, updated_at = $2
            WHERE id = $3 RETURNING balance`, amount, now, walletID).Scan(&result.WalletBalance)
	} else {
		err = tx.QueryRow(ctx, `SELECT balance FROM wallets WHERE id = $1`, walletID).Scan(&result.WalletBalance)
	}
	if err != nil {
		return SettlementResult{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return SettlementResult{}, err
	}
	return result, nil
}

// Transfer debits the source wallet, credits the destination wallet and appends
// the debit/credit transaction pair in one atomic unit. Wallet rows are locked
// in id order so two opposing transfers cannot deadlock.
func (l *PostgresLedger) Transfer(ctx context.Context, input TransferInput) (TransferResult, error) {
	if input.Amount <= 0 {
		return TransferResult{}, fmt.Errorf("amount must be positive")
	}
	fromID, err := uuid.Parse(input.FromWalletID)
	if err != nil {
		return TransferResult{}, err
	}
	toID, err := uuid.Parse(input.ToWalletID)
	if err != nil {
		return TransferResult{}, err
	}

	tx, err := l.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return TransferResult{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if input.ClientTxID != "" {
		prior, err := l.priorTransfer(ctx, tx, input.ClientTxID)
		if err == nil {
			return prior, ErrDuplicateTransaction
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return TransferResult{}, err
		}
	}

	first, second := fromID, toID
	if second.String() < first.String() {
		first, second = second, first
	}
	balances := make(map[uuid.UUID]int64, 2)
	for _, id := range []uuid.UUID{first, second} {
		var balance int64
		if err := tx.QueryRow(ctx, `SELECT balance FROM wallets WHERE id = $1 FOR UPDATE`, id).Scan(&balance); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return TransferResult{}, ErrWalletNotFound
			}
			return TransferResult{}, err
		}
		balances[id] = balance
	}

	if balances[fromID] < input.Amount {
		return TransferResult{}, ErrInsufficientFunds
	}

	now := time.Now().UTC()
	transferID := uuid.New()
	base := GenerateReference("TRF")
	result := TransferResult{
		TransferID:      transferID.String(),
		DebitReference:  base + "_OUT",
		CreditReference: base + "_IN",
	}

	err = tx.QueryRow(ctx, `UPDATE wallets SET balance = balance - $1, version = version + 1, updated_at = $2
        WHERE id = $3 RETURNING balance`, input.Amount, now, fromID).Scan(&result.FromBalance)
	if err != nil {
		return TransferResult{}, err
	}
	err = tx.QueryRow(ctx, `UPDATE wallets SET balance = balance + $1, version = version + 1, updated_at = $2
        WHERE id = $3 RETURNING balance`, input.Amount, now, toID).Scan(&result.ToBalance)
	if err != nil {
		return TransferResult{}, err
	}

	const insertTx = `INSERT INTO transactions (id, wallet_id, kind, status, amount, reference, client_tx_id, transfer_id, counterparty_wallet_id, created_at, updated_at, completed_at)
        VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, $9, $10, $10, $10)`
	if _, err := tx.Exec(ctx, insertTx, uuid.New(), fromID, KindTransferOut, StatusSuccess, input.Amount, result.DebitReference, input.ClientTxID, transferID, toID, now); err != nil {
		return TransferResult{}, err
	}
	if _, err := tx.Exec(ctx, insertTx, uuid.New(), toID, KindTransferIn, StatusSuccess, input.Amount, result.CreditReference, "", transferID, fromID, now); err != nil {
		return TransferResult{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return TransferResult{}, err
	}
	return result, nil
}

func (l *PostgresLedger) priorTransfer(ctx context.Context, tx pgx.Tx, clientTxID string) (TransferResult, error) {
	var (
		transferID   uuid.UUID
		debitRef     string
		fromWalletID uuid.UUID
		toWalletID   uuid.UUID
	)
	err := tx.QueryRow(ctx, `SELECT transfer_id, reference, wallet_id, counterparty_wallet_id FROM transactions
        WHERE client_tx_id = $1 AND kind = $2`, clientTxID, KindTransferOut).
		Scan(&transferID, &debitRef, &fromWalletID, &toWalletID)
	if err != nil {
		return TransferResult{}, err
	}
	result := TransferResult{
		TransferID:      transferID.String(),
		DebitReference:  debitRef,
		CreditReference: debitRef[:len(debitRef)-len("_OUT")] + "_IN",
	}
	if err := tx.QueryRow(ctx, `SELECT balance FROM wallets WHERE id = $1`, fromWalletID).Scan(&result.FromBalance); err != nil {
		return TransferResult{}, err
	}
	if err := tx.QueryRow(ctx, `SELECT balance FROM wallets WHERE id = $1`, toWalletID).Scan(&result.ToBalance); err != nil {
		return TransferResult{}, err
	}
	return result, nil
}

// History returns the wallet's transactions, newest first.
func (l *PostgresLedger) History(ctx context.Context, walletID string, limit, offset int) ([]Transaction, error) {
	id, err := uuid.Parse(walletID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := l.db.Query(ctx, `SELECT id, wallet_id, kind, status, amount, reference,
        COALESCE(client_tx_id, ''), COALESCE(transfer_id::text, ''), COALESCE(counterparty_wallet_id::text, ''),
        COALESCE(description, ''), created_at, updated_at, completed_at
        FROM transactions WHERE wallet_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, id, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// FindByReference fetches a single transaction scoped to the given wallet.
func (l *PostgresLedger) FindByReference(ctx context.Context, walletID, reference string) (Transaction, error) {
	id, err := uuid.Parse(walletID)
	if err != nil {
		return Transaction{}, err
	}
	row := l.db.QueryRow(ctx, `SELECT id, wallet_id, kind, status, amount, reference,
        COALESCE(client_tx_id, ''), COALESCE(transfer_id::text, ''), COALESCE(counterparty_wallet_id::text, ''),
        COALESCE(description, ''), created_at, updated_at, completed_at
        FROM transactions WHERE wallet_id = $1 AND reference = $2`, id, reference)
	t, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transaction{}, ErrUnknownReference
		}
		return Transaction{}, err
	}
	return t, nil
}

func scanTransaction(row pgx.Row) (Transaction, error) {
	var (
		t           Transaction
		id          uuid.UUID
		walletID    uuid.UUID
		completedAt *time.Time
	)
	err := row.Scan(&id, &walletID, &t.Kind, &t.Status, &t.Amount, &t.Reference,
		&t.ClientTxID, &t.TransferID, &t.CounterpartyWalletID, &t.Description,
		&t.CreatedAt, &t.UpdatedAt, &completedAt)
	if err != nil {
		return Transaction{}, err
	}
	t.ID = id.String()
	t.WalletID = walletID.String()
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()
	if completedAt != nil {
		t.CompletedAt = completedAt.UTC()
	}
	return t, nil
}
