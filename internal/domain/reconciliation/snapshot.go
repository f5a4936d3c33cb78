package reconciliation

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
)

// AuthoritativeRecord is one sale as the legacy system recorded it. All
// identifiers are in the legacy id space and must be mapped before any
// ledger comparison.
type AuthoritativeRecord struct {
	ExternalTransactionID string `json:"external_transaction_id"`
	BuyerExternalID       int64  `json:"buyer_external_id"`
	SellableExternalID    int64  `json:"sellable_external_id"`
	AffiliateExternalID   int64  `json:"affiliate_external_id"`
	SaleAmount            int64  `json:"sale_amount"`
	Status                string `json:"status"`
	CommissionAmount      int64  `json:"commission_amount"`
}

// Source yields authoritative records one at a time. Next returns
// io.EOF when the snapshot is exhausted. Snapshots reach 10k+ records,
// so the engine never asks for the whole set at once.
type Source interface {
	Name() string
	Next() (*AuthoritativeRecord, error)
}

// JSONLSource reads one JSON record per line, the format the legacy
// export scripts produce.
type JSONLSource struct {
	name    string
	scanner *bufio.Scanner
	line    int
}

func NewJSONLSource(name string, r io.Reader) *JSONLSource {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &JSONLSource{name: name, scanner: sc}
}

func (s *JSONLSource) Name() string { return s.name }

func (s *JSONLSource) Next() (*AuthoritativeRecord, error) {
	for s.scanner.Scan() {
		s.line++
		line := s.scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec AuthoritativeRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("snapshot %s line %d: %w", s.name, s.line, err)
		}
		return &rec, nil
	}
	if err := s.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

// SliceSource serves records from memory.
type SliceSource struct {
	name    string
	records []AuthoritativeRecord
	pos     int
}

func NewSliceSource(name string, records []AuthoritativeRecord) *SliceSource {
	return &SliceSource{name: name, records: records}
}

func (s *SliceSource) Name() string { return s.name }

func (s *SliceSource) Next() (*AuthoritativeRecord, error) {
	if s.pos >= len(s.records) {
		return nil, io.EOF
	}
	rec := s.records[s.pos]
	s.pos++
	return &rec, nil
}
