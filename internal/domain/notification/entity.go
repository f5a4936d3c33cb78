package notification

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Type represents notification type
type Type string

const (
	TypeCommissionEarned   Type = "commission_earned"   // Affiliate: commission credited
	TypeCommissionReversed Type = "commission_reversed" // Affiliate: commission removed
	TypePendingReleased    Type = "pending_released"    // Affiliate: pending funds released
	TypePendingRejected    Type = "pending_rejected"    // Affiliate: pending funds rejected
	TypePayoutProcessed    Type = "payout_processed"    // Affiliate: payout completed
	TypeAffiliateApproved  Type = "affiliate_approved"  // Applicant: affiliate application approved
	TypeAffiliateRejected  Type = "affiliate_rejected"  // Applicant: affiliate application rejected
)

// Notification represents a user notification
type Notification struct {
	ID        uuid.UUID       `db:"id" json:"id"`
	UserID    uuid.UUID       `db:"user_id" json:"user_id"`
	Type      Type            `db:"type" json:"type"`
	Title     string          `db:"title" json:"title"`
	Body      sql.NullString  `db:"body" json:"body,omitempty"`
	Data      json.RawMessage `db:"data" json:"data,omitempty"`
	IsRead    bool            `db:"is_read" json:"is_read"`
	ReadAt    sql.NullTime    `db:"read_at" json:"read_at,omitempty"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

// NotificationData for linking to entities
type NotificationData struct {
	EntryID       *uuid.UUID `json:"entry_id,omitempty"`
	TransactionID *uuid.UUID `json:"transaction_id,omitempty"`
	PayoutID      *uuid.UUID `json:"payout_id,omitempty"`
	Amount        int64      `json:"amount,omitempty"`
}

// SetData encodes data to JSON
func (n *Notification) SetData(data *NotificationData) {
	if data != nil {
		n.Data, _ = json.Marshal(data)
	}
}

// GetData decodes data from JSON
func (n *Notification) GetData() *NotificationData {
	if n.Data == nil {
		return &NotificationData{}
	}
	var data NotificationData
	_ = json.Unmarshal(n.Data, &data)
	return &data
}
