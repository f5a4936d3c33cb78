package affiliate

import (
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ApprovalStatus tracks the affiliate application workflow.
type ApprovalStatus string

const (
	StatusPending  ApprovalStatus = "PENDING"
	StatusApproved ApprovalStatus = "APPROVED"
	StatusRejected ApprovalStatus = "REJECTED"
)

// Identity represents one user acting as an affiliate. Identities are
// soft-retired, never deleted, while commission entries reference them.
type Identity struct {
	ID               uuid.UUID      `db:"id" json:"id"`
	UserID           uuid.UUID      `db:"user_id" json:"user_id"`
	ReferralCode     string         `db:"referral_code" json:"referral_code"`
	ApprovalStatus   ApprovalStatus `db:"approval_status" json:"approval_status"`
	LegacyExternalID sql.NullInt64  `db:"legacy_external_id" json:"legacy_external_id,omitempty"`
	TotalEarnings    int64          `db:"total_earnings" json:"total_earnings"`
	TotalConversions int64          `db:"total_conversions" json:"total_conversions"`
	RetiredAt        sql.NullTime   `db:"retired_at" json:"retired_at,omitempty"`
	CreatedAt        time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time      `db:"updated_at" json:"updated_at"`
}

// IsApproved reports whether the identity may receive commission.
func (i *Identity) IsApproved() bool {
	return i.ApprovalStatus == StatusApproved && !i.RetiredAt.Valid
}

// NormalizeEmail canonicalizes emails before they enter the legacy user map.
// Legacy exports vary in case and whitespace for the same person.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
