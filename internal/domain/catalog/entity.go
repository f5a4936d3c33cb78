package catalog

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// ItemType distinguishes the sellable kinds on the platform.
type ItemType string

const (
	ItemTypeMembership ItemType = "membership"
	ItemTypeProduct    ItemType = "product"
	ItemTypeCourse     ItemType = "course"
	ItemTypeEvent      ItemType = "event"
)

// CommissionType selects how the affiliate commission is computed.
type CommissionType string

const (
	CommissionFlat       CommissionType = "FLAT"
	CommissionPercentage CommissionType = "PERCENTAGE"
)

// SellableItem is a catalog record: a membership plan, product, course or
// event. Prices and flat commission amounts are whole rupiah.
type SellableItem struct {
	ID                uuid.UUID      `db:"id" json:"id"`
	Type              ItemType       `db:"type" json:"type"`
	Name              string         `db:"name" json:"name"`
	Price             int64          `db:"price" json:"price"`
	CommissionEnabled bool           `db:"commission_enabled" json:"commission_enabled"`
	CommissionType    CommissionType `db:"commission_type" json:"commission_type"`
	CommissionRate    float64        `db:"commission_rate" json:"commission_rate"`
	LegacyExternalID  sql.NullInt64  `db:"legacy_external_id" json:"legacy_external_id,omitempty"`
	CreatedAt         time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time      `db:"updated_at" json:"updated_at"`
}
