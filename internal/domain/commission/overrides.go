package commission

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
)

// OverrideEntry is one legacy per-product flat commission with its
// provenance, so reconciliation reports can explain why an amount was
// chosen.
type OverrideEntry struct {
	Amount int64  `json:"amount"`
	Source string `json:"source"`
}

// OverrideTable consolidates the per-product commission amounts that the
// legacy system accumulated across its migration scripts into a single
// versioned mapping keyed by legacy product id.
type OverrideTable struct {
	Version string                  `json:"version"`
	Entries map[int64]OverrideEntry `json:"-"`

	// RawEntries carries the JSON form; keys arrive as strings.
	RawEntries map[string]OverrideEntry `json:"entries"`
}

// Lookup returns the override for a legacy product id, if any.
func (t *OverrideTable) Lookup(legacyProductID int64) (OverrideEntry, bool) {
	if t == nil {
		return OverrideEntry{}, false
	}
	entry, ok := t.Entries[legacyProductID]
	return entry, ok
}

// Len reports the number of override entries.
func (t *OverrideTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Entries)
}

// ParseOverrideTable decodes a JSON override table:
//
//	{"version": "2024-06", "entries": {"179": {"amount": 250000, "source": "mysql-dump"}}}
func ParseOverrideTable(r io.Reader) (*OverrideTable, error) {
	var table OverrideTable
	if err := json.NewDecoder(r).Decode(&table); err != nil {
		return nil, fmt.Errorf("decode override table: %w", err)
	}
	table.Entries = make(map[int64]OverrideEntry, len(table.RawEntries))
	for key, entry := range table.RawEntries {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("override table: invalid product id %q", key)
		}
		table.Entries[id] = entry
	}
	table.RawEntries = nil
	return &table, nil
}

// LoadOverrideTable reads an override table from a local file. Returns
// nil when path is empty: running without overrides is valid outside of
// reconciliation.
func LoadOverrideTable(path string) (*OverrideTable, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open override table: %w", err)
	}
	defer f.Close()
	return ParseOverrideTable(f)
}
