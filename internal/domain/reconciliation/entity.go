package reconciliation

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// State classifies one authoritative record against the ledger.
type State string

const (
	StateMatched      State = "MATCHED"
	StateMissing      State = "MISSING"
	StateOrphaned     State = "ORPHANED"
	StateRateMismatch State = "RATE_MISMATCH"
	StateDuplicate    State = "DUPLICATE"
)

// Mode selects whether a run repairs what it finds. Report-only is the
// safe default.
type Mode string

const (
	ModeReport Mode = "report"
	ModeRepair Mode = "repair"
)

// Run is one reconciliation batch over a snapshot.
type Run struct {
	ID             uuid.UUID      `db:"id" json:"id"`
	Mode           Mode           `db:"mode" json:"mode"`
	SnapshotSource string         `db:"snapshot_source" json:"snapshot_source"`
	Total          int            `db:"total" json:"total"`
	Matched        int            `db:"matched" json:"matched"`
	Missing        int            `db:"missing" json:"missing"`
	Orphaned       int            `db:"orphaned" json:"orphaned"`
	RateMismatch   int            `db:"rate_mismatch" json:"rate_mismatch"`
	Duplicate      int            `db:"duplicate" json:"duplicate"`
	Repaired       int            `db:"repaired" json:"repaired"`
	Failed         int            `db:"failed" json:"failed"`
	ReportKey      sql.NullString `db:"report_key" json:"report_key,omitempty"`
	StartedAt      time.Time      `db:"started_at" json:"started_at"`
	FinishedAt     sql.NullTime   `db:"finished_at" json:"finished_at,omitempty"`
}

// Row is one classified discrepancy (or orphan) within a run, with the
// before/after amounts and wallet delta an auditor needs. MATCHED
// records are counted in the run summary but not stored row by row.
type Row struct {
	ID                    uuid.UUID      `db:"id" json:"id"`
	RunID                 uuid.UUID      `db:"run_id" json:"run_id"`
	ExternalTransactionID string         `db:"external_transaction_id" json:"external_transaction_id"`
	State                 State          `db:"state" json:"state"`
	EntryID               uuid.NullUUID  `db:"entry_id" json:"entry_id,omitempty"`
	BeforeAmount          int64          `db:"before_amount" json:"before_amount"`
	ExpectedAmount        int64          `db:"expected_amount" json:"expected_amount"`
	AfterAmount           int64          `db:"after_amount" json:"after_amount"`
	WalletDelta           int64          `db:"wallet_delta" json:"wallet_delta"`
	RateSource            string         `db:"rate_source" json:"rate_source"`
	Repaired              bool           `db:"repaired" json:"repaired"`
	RepairError           sql.NullString `db:"repair_error" json:"repair_error,omitempty"`
	CreatedAt             time.Time      `db:"created_at" json:"created_at"`
}
