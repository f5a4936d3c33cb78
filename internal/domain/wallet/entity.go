package wallet

import (
	"time"

	"github.com/google/uuid"
)

// EntryType classifies wallet ledger movements.
type EntryType string

const (
	EntryTypeCommission         EntryType = "commission"
	EntryTypeCommissionReversal EntryType = "commission_reversal"
	EntryTypeAdjustment         EntryType = "adjustment"
	EntryTypePendingRelease     EntryType = "pending_release"
	EntryTypePendingReject      EntryType = "pending_reject"
	EntryTypePayout             EntryType = "payout"
)

// Destination selects which balance a commission credit lands on.
type Destination string

const (
	// DestinationBalance credits straight to the withdrawable balance.
	DestinationBalance Destination = "balance"
	// DestinationPending holds the credit until admin approval.
	DestinationPending Destination = "pending"
)

// ParseDestination maps a config string to a Destination, defaulting to
// the immediately-withdrawable balance.
func ParseDestination(s string) Destination {
	if s == string(DestinationPending) {
		return DestinationPending
	}
	return DestinationBalance
}

// Wallet is one user's balance record. All amounts are whole rupiah.
// TotalEarnings is the lifetime commission sum and never decreases on
// payouts; reconciliation reversals are the only debits it sees.
type Wallet struct {
	UserID         uuid.UUID `db:"user_id" json:"user_id"`
	Balance        int64     `db:"balance" json:"balance"`
	BalancePending int64     `db:"balance_pending" json:"balance_pending"`
	TotalEarnings  int64     `db:"total_earnings" json:"total_earnings"`
	TotalPayout    int64     `db:"total_payout" json:"total_payout"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// LedgerEntry is an append-only record of one wallet movement.
type LedgerEntry struct {
	ID          uuid.UUID `db:"id" json:"id"`
	UserID      uuid.UUID `db:"user_id" json:"user_id"`
	Amount      int64     `db:"amount" json:"amount"`
	Type        EntryType `db:"type" json:"type"`
	ReferenceID *string   `db:"reference_id" json:"reference_id,omitempty"`
	Description string    `db:"description" json:"description"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// PayoutStatus tracks withdrawal requests.
type PayoutStatus string

const (
	PayoutPending   PayoutStatus = "PENDING"
	PayoutCompleted PayoutStatus = "COMPLETED"
	PayoutRejected  PayoutStatus = "REJECTED"
)

// Payout is a withdrawal request debited from the available balance.
type Payout struct {
	ID        uuid.UUID    `db:"id" json:"id"`
	UserID    uuid.UUID    `db:"user_id" json:"user_id"`
	Amount    int64        `db:"amount" json:"amount"`
	Method    string       `db:"method" json:"method"`
	Status    PayoutStatus `db:"status" json:"status"`
	CreatedAt time.Time    `db:"created_at" json:"created_at"`
}
