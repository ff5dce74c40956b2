package shared

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewDatabase(t *testing.T) {
	t.Run("file database creates its directory and uses WAL", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "veechar.db")

		db, err := NewDatabase(path)
		if err != nil {
			t.Fatalf("NewDatabase failed: %v", err)
		}
		defer db.Close()

		if _, err := os.Stat(path); err != nil {
			t.Errorf("expected database file at %s: %v", path, err)
		}

		var mode string
		if err := db.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
			t.Fatalf("failed to read journal mode: %v", err)
		}
		if !strings.EqualFold(mode, "wal") {
			t.Errorf("expected WAL journal mode, got %s", mode)
		}

		var timeout int
		if err := db.QueryRow("PRAGMA busy_timeout").Scan(&timeout); err != nil {
			t.Fatalf("failed to read busy timeout: %v", err)
		}
		if timeout != busyTimeoutMS {
			t.Errorf("expected busy timeout %d, got %d", busyTimeoutMS, timeout)
		}
	})

	t.Run("memory database is limited to one connection", func(t *testing.T) {
		db, err := NewDatabase(":memory:")
		if err != nil {
			t.Fatalf("NewDatabase failed: %v", err)
		}
		defer db.Close()

		if got := db.Stats().MaxOpenConnections; got != 1 {
			t.Errorf("expected 1 max open connection, got %d", got)
		}
	})

	t.Run("ConfigureDatabase ignores non-positive limits", func(t *testing.T) {
		db, err := NewDatabase(":memory:")
		if err != nil {
			t.Fatalf("NewDatabase failed: %v", err)
		}
		defer db.Close()

		ConfigureDatabase(db, 0, -1)
		if got := db.Stats().MaxOpenConnections; got != 1 {
			t.Errorf("expected limit unchanged, got %d", got)
		}
	})
}
