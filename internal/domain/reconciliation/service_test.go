package reconciliation

import (
	"context"
	"database/sql"
	"io"
	"testing"
)

type fakeStore struct {
	deleted []string
}

func (f *fakeStore) Put(ctx context.Context, key string, r io.Reader, contentType string) error {
	return nil
}

func (f *fakeStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	return nil, io.EOF
}

func (f *fakeStore) Delete(ctx context.Context, key string) error {
	f.deleted = append(f.deleted, key)
	return nil
}

func (f *fakeStore) GetURL(key string) string {
	return "https://reports.example.com/" + key
}

func TestReportURL(t *testing.T) {
	svc := NewService(nil, nil, nil, &fakeStore{})

	run := &Run{ReportKey: sql.NullString{String: "reconciliation/reports/abc.json", Valid: true}}
	want := "https://reports.example.com/reconciliation/reports/abc.json"
	if got := svc.ReportURL(run); got != want {
		t.Errorf("ReportURL = %q, want %q", got, want)
	}

	if got := svc.ReportURL(&Run{}); got != "" {
		t.Errorf("ReportURL without report key = %q, want empty", got)
	}

	noStore := NewService(nil, nil, nil, nil)
	if got := noStore.ReportURL(run); got != "" {
		t.Errorf("ReportURL without storage = %q, want empty", got)
	}
}
