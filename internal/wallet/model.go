package wallet

import "time"

// Wallet holds per-user balance metadata. The balance itself lives in the
// ledger and only moves through ledger postings.
type Wallet struct {
	ID           string
	UserID       string
	WalletNumber string
	Currency     string
	CreatedAt    time.Time
}

// Balance encapsulates available funds for a wallet in minor currency units.
type Balance struct {
	WalletID     string
	WalletNumber string
	Amount       int64
	Currency     string
	AsOf         time.Time
}
