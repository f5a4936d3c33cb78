package storage_test

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/eksporyuk/affiliate-api/internal/pkg/storage"
)

func TestLocalStoragePutGetDelete(t *testing.T) {
	ctx := context.Background()
	store, err := storage.NewLocalStorage(t.TempDir(), "/files")
	if err != nil {
		t.Fatalf("NewLocalStorage: %v", err)
	}

	key := "reconciliation/reports/run-1.json"
	body := `{"run":{"total":3}}`
	if err := store.Put(ctx, key, strings.NewReader(body), "application/json"); err != nil {
		t.Fatalf("Put: %v", err)
	}

	rc, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	got, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got) != body {
		t.Errorf("Get returned %q, want %q", got, body)
	}

	// Put replaces the previous object.
	if err := store.Put(ctx, key, strings.NewReader("v2"), "application/json"); err != nil {
		t.Fatalf("Put overwrite: %v", err)
	}
	rc, err = store.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get after overwrite: %v", err)
	}
	got, _ = io.ReadAll(rc)
	rc.Close()
	if string(got) != "v2" {
		t.Errorf("Get after overwrite returned %q, want %q", got, "v2")
	}

	if err := store.Delete(ctx, key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Get(ctx, key); err == nil {
		t.Error("Get after Delete succeeded, want error")
	}
}

func TestLocalStorageDeleteMissingKey(t *testing.T) {
	store, err := storage.NewLocalStorage(t.TempDir(), "/files")
	if err != nil {
		t.Fatalf("NewLocalStorage: %v", err)
	}
	if err := store.Delete(context.Background(), "reconciliation/reports/gone.json"); err != nil {
		t.Errorf("Delete of missing key returned %v, want nil", err)
	}
}

func TestLocalStorageRejectsEscapingKeys(t *testing.T) {
	ctx := context.Background()
	base := t.TempDir()
	store, err := storage.NewLocalStorage(filepath.Join(base, "objects"), "/files")
	if err != nil {
		t.Fatalf("NewLocalStorage: %v", err)
	}

	outside := filepath.Join(base, "secret.txt")
	if err := os.WriteFile(outside, []byte("keep out"), 0o600); err != nil {
		t.Fatal(err)
	}

	for _, key := range []string{"", "../secret.txt", "a/../../secret.txt"} {
		if err := store.Put(ctx, key, strings.NewReader("x"), "text/plain"); err == nil {
			t.Errorf("Put(%q) succeeded, want error", key)
		}
		if _, err := store.Get(ctx, key); err == nil {
			t.Errorf("Get(%q) succeeded, want error", key)
		}
		if key != "" {
			if err := store.Delete(ctx, key); err == nil {
				t.Errorf("Delete(%q) succeeded, want error", key)
			}
		}
	}

	if data, err := os.ReadFile(outside); err != nil || string(data) != "keep out" {
		t.Errorf("file outside base path was touched: %q, %v", data, err)
	}
}

func TestLocalStorageGetURL(t *testing.T) {
	store, err := storage.NewLocalStorage(t.TempDir(), "/files/")
	if err != nil {
		t.Fatalf("NewLocalStorage: %v", err)
	}
	got := store.GetURL("reconciliation/reports/run-1.json")
	want := "/files/reconciliation/reports/run-1.json"
	if got != want {
		t.Errorf("GetURL = %q, want %q", got, want)
	}
}
