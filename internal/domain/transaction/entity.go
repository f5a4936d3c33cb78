package transaction

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Status follows the payment lifecycle. SUCCESS and FAILED are terminal
// except for the SUCCESS -> REFUNDED transition.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusSuccess  Status = "SUCCESS"
	StatusFailed   Status = "FAILED"
	StatusRefunded Status = "REFUNDED"
)

// Transaction is one sale. Amount is what the buyer actually paid,
// which coupons may push below the catalog price. A null affiliate
// means a direct sale.
type Transaction struct {
	ID                    uuid.UUID      `db:"id" json:"id"`
	BuyerUserID           uuid.UUID      `db:"buyer_user_id" json:"buyer_user_id"`
	SellableItemID        uuid.UUID      `db:"sellable_item_id" json:"sellable_item_id"`
	Amount                int64          `db:"amount" json:"amount"`
	Status                Status         `db:"status" json:"status"`
	AffiliateIdentityID   uuid.NullUUID  `db:"affiliate_identity_id" json:"affiliate_identity_id,omitempty"`
	ExternalTransactionID sql.NullString `db:"external_transaction_id" json:"external_transaction_id,omitempty"`
	CreatedAt             time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time      `db:"updated_at" json:"updated_at"`
}

// IsTerminal reports whether no further status change is allowed,
// refunds aside.
func (t *Transaction) IsTerminal() bool {
	return t.Status == StatusSuccess || t.Status == StatusFailed || t.Status == StatusRefunded
}
