// Package sizing bounds sizes read from untrusted bundle data.
package sizing

import (
	"bytes"
	"io"
	"math"
)

// ToInt converts a uint64 to int, returning overflowErr if it doesn't fit.
func ToInt(size uint64, overflowErr error) (int, error) {
	if size > uint64(math.MaxInt) {
		return 0, overflowErr
	}
	return int(size), nil
}

// ReadAllWithLimit reads r to EOF into a buffer presized for maxSize.
// Returns overflowErr if more than maxSize bytes are available.
func ReadAllWithLimit(r io.Reader, maxSize int, overflowErr error) ([]byte, error) {
	if maxSize < 0 || maxSize > math.MaxInt-1 {
		return nil, overflowErr
	}
	buf := bytes.NewBuffer(make([]byte, 0, maxSize))
	if _, err := buf.ReadFrom(io.LimitReader(r, int64(maxSize)+1)); err != nil {
		return nil, err
	}
	if buf.Len() > maxSize {
		return nil, overflowErr
	}
	return buf.Bytes(), nil
}
