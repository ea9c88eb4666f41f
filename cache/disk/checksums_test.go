package disk

import (
	"os"
	"path/filepath"
	"testing"
)

func TestChecksumStoreSetGet(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	c, err := NewChecksumStore(dir)
	if err != nil {
		t.Fatalf("NewChecksumStore() error = %v", err)
	}

	if _, ok := c.Checksum("a"); ok {
		t.Fatal("Checksum() ok = true for unknown name")
	}
	if err := c.SetChecksum("a", "crc32:1"); err != nil {
		t.Fatalf("SetChecksum() error = %v", err)
	}
	if err := c.SetChecksum("a", "crc32:2"); err != nil {
		t.Fatalf("SetChecksum() replace error = %v", err)
	}
	sum, ok := c.Checksum("a")
	if !ok || sum != "crc32:2" {
		t.Fatalf("Checksum() = %q, %v; want %q, true", sum, ok, "crc32:2")
	}

	// Survives reopening.
	reopened, err := NewChecksumStore(dir)
	if err != nil {
		t.Fatalf("NewChecksumStore() reopen error = %v", err)
	}
	if sum, ok := reopened.Checksum("a"); !ok || sum != "crc32:2" {
		t.Fatalf("reopened Checksum() = %q, %v", sum, ok)
	}

	if err := reopened.Delete("a"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, ok := reopened.Checksum("a"); ok {
		t.Fatal("Checksum() ok = true after Delete")
	}
	if err := reopened.Delete("a"); err != nil {
		t.Fatalf("Delete() missing error = %v", err)
	}
}

func TestChecksumStoreRejectsInvalid(t *testing.T) {
	t.Parallel()

	c, err := NewChecksumStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewChecksumStore() error = %v", err)
	}
	for _, sum := range []string{"", "two\nlines"} {
		if err := c.SetChecksum("a", sum); err == nil {
			t.Fatalf("SetChecksum(%q) error = nil, want error", sum)
		}
	}
	if err := c.SetChecksum("", "crc32:1"); err == nil {
		t.Fatal("SetChecksum with empty name error = nil, want error")
	}
}

func TestChecksumStoreDropsCorruptRecords(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	c, err := NewChecksumStore(dir)
	if err != nil {
		t.Fatalf("NewChecksumStore() error = %v", err)
	}
	path := filepath.Join(dir, c.path("a"))
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if err := os.WriteFile(path, []byte("torn\nrecord"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	if _, ok := c.Checksum("a"); ok {
		t.Fatal("Checksum() ok = true for corrupt record")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("corrupt record not removed: %v", err)
	}
}

func TestChecksumStoreClear(t *testing.T) {
	t.Parallel()

	c, err := NewChecksumStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewChecksumStore() error = %v", err)
	}
	for _, name := range []string{"a", "b/c"} {
		if err := c.SetChecksum(name, "h"); err != nil {
			t.Fatalf("SetChecksum() error = %v", err)
		}
	}
	if err := c.Clear(); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	for _, name := range []string{"a", "b/c"} {
		if _, ok := c.Checksum(name); ok {
			t.Fatalf("Checksum(%q) ok = true after Clear", name)
		}
	}
}
