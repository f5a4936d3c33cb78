package commission

import (
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/eksporyuk/affiliate-api/internal/domain/catalog"
)

// Entry is the commission ledger record. At most one entry exists per
// platform transaction, enforced by a unique constraint. Entries are
// never deleted outside duplicate-repair and never updated except for
// the paid-out flip and reconciliation amount corrections.
type Entry struct {
	ID                    uuid.UUID              `db:"id" json:"id"`
	TransactionID         uuid.UUID              `db:"transaction_id" json:"transaction_id"`
	AffiliateIdentityID   uuid.UUID              `db:"affiliate_identity_id" json:"affiliate_identity_id"`
	CommissionAmount      int64                  `db:"commission_amount" json:"commission_amount"`
	CommissionRateApplied float64                `db:"commission_rate_applied" json:"commission_rate_applied"`
	CommissionType        catalog.CommissionType `db:"commission_type" json:"commission_type"`
	Source                string                 `db:"source" json:"source"`
	ExternalTransactionID sql.NullString         `db:"external_transaction_id" json:"external_transaction_id,omitempty"`
	PaidOut               bool                   `db:"paid_out" json:"paid_out"`
	PaidOutAt             sql.NullTime           `db:"paid_out_at" json:"paid_out_at,omitempty"`
	CreatedAt             time.Time              `db:"created_at" json:"created_at"`
}
