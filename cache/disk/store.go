package disk

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/meigma/bundle/cache"
)

const (
	defaultShardPrefixLen = 2
	defaultDirPerm        = 0o700
	defaultFilePerm       = 0o600
)

// config holds shared configuration for disk stores.
type config struct {
	shardPrefixLen int
	dirPerm        os.FileMode
	maxBytes       int64
}

// Option configures a disk store.
type Option func(*config)

// WithShardPrefixLen sets the number of hex characters used for sharding.
// Use 0 to disable sharding. Defaults to 2.
func WithShardPrefixLen(n int) Option {
	return func(c *config) {
		c.shardPrefixLen = n
	}
}

// WithDirPerm sets the directory permissions used for store directories.
func WithDirPerm(mode os.FileMode) Option {
	return func(c *config) {
		c.dirPerm = mode
	}
}

// WithMaxBytes sets the maximum store size in bytes.
// Values < 0 are invalid. Use 0 to disable the limit.
func WithMaxBytes(n int64) Option {
	return func(c *config) {
		c.maxBytes = n
	}
}

func newConfig(dir string, opts []Option) (config, error) {
	cfg := config{
		shardPrefixLen: defaultShardPrefixLen,
		dirPerm:        defaultDirPerm,
	}
	if dir == "" {
		return cfg, errors.New("cache dir is empty")
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.shardPrefixLen < 0 {
		return cfg, errors.New("shard prefix length must be >= 0")
	}
	if cfg.maxBytes < 0 {
		return cfg, errors.New("max bytes must be >= 0")
	}
	if err := os.MkdirAll(dir, cfg.dirPerm); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// entryPath maps a bundle name to its sharded relative path.
func entryPath(shardPrefixLen int, name string) string {
	sum := sha256.Sum256([]byte(name))
	hexHash := hex.EncodeToString(sum[:])
	if shardPrefixLen <= 0 {
		return hexHash
	}
	prefixLen := min(shardPrefixLen, len(hexHash))
	return filepath.Join(hexHash[:prefixLen], hexHash)
}

// Store implements cache.Store using the local filesystem.
// The store is safe for concurrent use.
type Store struct {
	dir            string       // root directory for stored bundles
	shardPrefixLen int          // number of hex chars for subdirectory sharding
	dirPerm        os.FileMode  // permissions for created directories
	maxBytes       int64        // maximum store size (0 = unlimited)
	bytes          atomic.Int64 // current total size of stored bundles
	writeMu        sync.Mutex   // serializes writes, deletes, and prunes
}

var _ cache.Store = (*Store)(nil)

// NewStore creates a disk-backed bundle store rooted at dir.
func NewStore(dir string, opts ...Option) (*Store, error) {
	cfg, err := newConfig(dir, opts)
	if err != nil {
		return nil, err
	}
	s := &Store{
		dir:            dir,
		shardPrefixLen: cfg.shardPrefixLen,
		dirPerm:        cfg.dirPerm,
		maxBytes:       cfg.maxBytes,
	}
	size, err := dirSize(dir)
	if err != nil {
		return nil, err
	}
	s.bytes.Store(size)
	return s, nil
}

// Get returns the stored bytes for name.
func (s *Store) Get(name string) ([]byte, bool) {
	data, err := os.ReadFile(s.path(name))
	if err != nil {
		return nil, false
	}
	return data, true
}

// Has reports whether bytes are stored for name.
func (s *Store) Has(name string) bool {
	info, err := os.Stat(s.path(name))
	return err == nil && info.Mode().IsRegular()
}

// Put stores data for name, replacing any previous copy.
// Data larger than the configured limit is silently not stored.
func (s *Store) Put(name string, data []byte) error {
	if name == "" {
		return errors.New("bundle name is empty")
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	path := s.path(name)
	var previous int64
	if info, err := os.Stat(path); err == nil {
		previous = info.Size()
	}

	written := int64(len(data))
	if ok, err := s.ensureCapacity(written - previous); err != nil {
		return err
	} else if !ok {
		return nil
	}

	// The prune above may have removed the previous copy.
	previous = 0
	if info, err := os.Stat(path); err == nil {
		previous = info.Size()
	}
	if err := writeAtomic(path, data, s.dirPerm); err != nil {
		return err
	}
	s.bytes.Add(written - previous)
	return nil
}

// Delete removes the stored copy for name.
func (s *Store) Delete(name string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.deleteLocked(s.path(name))
}

func (s *Store) deleteLocked(path string) error {
	info, statErr := os.Stat(path)
	if statErr != nil {
		if errors.Is(statErr, os.ErrNotExist) {
			return nil
		}
		return statErr
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	s.bytes.Add(-info.Size())
	return nil
}

// Clear removes every stored copy.
func (s *Store) Clear() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := clearDir(s.dir); err != nil {
		return err
	}
	s.bytes.Store(0)
	return nil
}

// MaxBytes returns the configured size limit (0 = unlimited).
func (s *Store) MaxBytes() int64 {
	return s.maxBytes
}

// SizeBytes returns the current size in bytes.
func (s *Store) SizeBytes() int64 {
	return s.bytes.Load()
}

// Prune removes the oldest stored copies until the store is at or below targetBytes.
func (s *Store) Prune(targetBytes int64) (int64, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.pruneLocked(targetBytes)
}

func (s *Store) pruneLocked(targetBytes int64) (int64, error) {
	freed, remaining, err := pruneDir(s.dir, targetBytes)
	if err != nil {
		return 0, err
	}
	s.bytes.Store(remaining)
	return freed, nil
}

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, entryPath(s.shardPrefixLen, name))
}

// ensureCapacity makes room for need additional bytes. It reports false
// when the entry can never fit.
func (s *Store) ensureCapacity(need int64) (bool, error) {
	if s.maxBytes <= 0 || need <= 0 {
		return true, nil
	}
	if need > s.maxBytes {
		return false, nil
	}
	if s.SizeBytes()+need <= s.maxBytes {
		return true, nil
	}
	if _, err := s.pruneLocked(s.maxBytes - need); err != nil {
		return false, fmt.Errorf("prune store: %w", err)
	}
	return s.SizeBytes()+need <= s.maxBytes, nil
}

// writeAtomic writes data to a temp file in the target directory and
// renames it over path.
func writeAtomic(path string, data []byte, dirPerm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Chmod(defaultFilePerm); err != nil {
		tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}
