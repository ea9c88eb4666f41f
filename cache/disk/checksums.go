package disk

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/meigma/bundle/cache"
)

// maxChecksumLen bounds a stored checksum; longer files are treated as corrupt.
const maxChecksumLen = 512

// ChecksumStore persists bundle name -> content hash records on disk.
//
// Each record is one small file. SetChecksum writes a temp file and renames
// it over the record, so a reader observes either the previous or the new
// value, never a torn write.
type ChecksumStore struct {
	dir            string
	shardPrefixLen int
	dirPerm        os.FileMode
	mu             sync.Mutex // serializes writers
}

var _ cache.ChecksumStore = (*ChecksumStore)(nil)

// NewChecksumStore creates a disk-backed checksum store rooted at dir.
// WithMaxBytes is ignored.
func NewChecksumStore(dir string, opts ...Option) (*ChecksumStore, error) {
	cfg, err := newConfig(dir, opts)
	if err != nil {
		return nil, err
	}
	return &ChecksumStore{
		dir:            dir,
		shardPrefixLen: cfg.shardPrefixLen,
		dirPerm:        cfg.dirPerm,
	}, nil
}

// Checksum returns the recorded hash for name.
//
// Records that are empty, oversized, or span multiple lines are deleted and
// reported as missing.
func (c *ChecksumStore) Checksum(name string) (string, bool) {
	path := c.path(name)
	root, err := os.OpenRoot(c.dir)
	if err != nil {
		return "", false
	}
	defer root.Close()

	data, err := root.ReadFile(path)
	if err != nil {
		return "", false
	}
	sum := string(data)
	if sum == "" || len(sum) > maxChecksumLen || strings.ContainsAny(sum, "\r\n") {
		c.mu.Lock()
		_ = root.Remove(path)
		c.mu.Unlock()
		return "", false
	}
	return sum, true
}

// SetChecksum records sum for name.
func (c *ChecksumStore) SetChecksum(name, sum string) error {
	if name == "" {
		return errors.New("bundle name is empty")
	}
	if sum == "" || len(sum) > maxChecksumLen || strings.ContainsAny(sum, "\r\n") {
		return fmt.Errorf("invalid checksum %q", sum)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := writeAtomic(filepath.Join(c.dir, c.path(name)), []byte(sum), c.dirPerm); err != nil {
		return fmt.Errorf("write checksum: %w", err)
	}
	return nil
}

// Delete forgets the hash for name.
func (c *ChecksumStore) Delete(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	err := os.Remove(filepath.Join(c.dir, c.path(name)))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Clear forgets every recorded hash.
func (c *ChecksumStore) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return clearDir(c.dir)
}

func (c *ChecksumStore) path(name string) string {
	return entryPath(c.shardPrefixLen, name)
}
