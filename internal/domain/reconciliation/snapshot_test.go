package reconciliation

import (
	"errors"
	"io"
	"strings"
	"testing"
)

func TestJSONLSource(t *testing.T) {
	input := `{"external_transaction_id":"ORD-1","buyer_external_id":7,"sellable_external_id":179,"affiliate_external_id":42,"sale_amount":500000,"status":"completed","commission_amount":150000}

{"external_transaction_id":"ORD-2","sellable_external_id":13401,"sale_amount":600000,"status":"FAILED"}
`
	src := NewJSONLSource("dump.jsonl", strings.NewReader(input))

	first, err := src.Next()
	if err != nil {
		t.Fatalf("first record: %v", err)
	}
	if first.ExternalTransactionID != "ORD-1" || first.SaleAmount != 500000 || first.CommissionAmount != 150000 {
		t.Errorf("unexpected first record: %+v", first)
	}

	second, err := src.Next()
	if err != nil {
		t.Fatalf("second record (blank line should be skipped): %v", err)
	}
	if second.ExternalTransactionID != "ORD-2" || second.AffiliateExternalID != 0 {
		t.Errorf("unexpected second record: %+v", second)
	}

	if _, err := src.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("err = %v, want io.EOF", err)
	}
}

func TestJSONLSourceBadLine(t *testing.T) {
	src := NewJSONLSource("dump.jsonl", strings.NewReader("not json\n"))
	if _, err := src.Next(); err == nil || errors.Is(err, io.EOF) {
		t.Fatalf("err = %v, want parse error naming the line", err)
	}
}
