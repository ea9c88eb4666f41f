package manifest

import (
	_ "crypto/sha256" // registers sha256 for go-digest
	_ "crypto/sha512" // registers sha384/sha512 for go-digest
	"encoding/hex"
	"fmt"
	"hash/crc32"
	"strconv"
	"strings"

	digest "github.com/opencontainers/go-digest"
	"github.com/zeebo/blake3"
)

const (
	crcPrefix    = "crc32:"
	blake3Prefix = "blake3:"
)

// Hash is a content hash recorded for a bundle.
//
// Recognized forms are OCI digests ("sha256:<hex>", "sha512:<hex>"),
// "blake3:<hex>", and "crc32:<decimal>". Any other value is opaque: it is
// compared for equality during staleness checks but cannot verify content.
type Hash string

// CRCHash returns the Hash form of a CRC32 change token.
func CRCHash(crc uint32) Hash {
	return Hash(crcPrefix + strconv.FormatUint(uint64(crc), 10))
}

// IsZero reports whether no hash is recorded.
func (h Hash) IsZero() bool {
	return h == ""
}

// String returns the hash as recorded.
func (h Hash) String() string {
	return string(h)
}

// Verifiable reports whether Verify can check content against h.
func (h Hash) Verifiable() bool {
	s := string(h)
	switch {
	case s == "":
		return false
	case strings.HasPrefix(s, crcPrefix), strings.HasPrefix(s, blake3Prefix):
		return true
	}
	d, err := digest.Parse(s)
	return err == nil && d.Algorithm().Available()
}

// Verify checks data against h. Opaque and empty hashes always verify.
// A mismatch is reported as ErrChecksumMismatch.
func (h Hash) Verify(data []byte) error {
	s := string(h)
	switch {
	case s == "":
		return nil
	case strings.HasPrefix(s, crcPrefix):
		want, err := strconv.ParseUint(strings.TrimPrefix(s, crcPrefix), 10, 32)
		if err != nil {
			return fmt.Errorf("%w: invalid crc32 %q", ErrChecksumMismatch, s)
		}
		if got := crc32.ChecksumIEEE(data); got != uint32(want) {
			return fmt.Errorf("%w: crc32 is %d, want %d", ErrChecksumMismatch, got, want)
		}
		return nil
	case strings.HasPrefix(s, blake3Prefix):
		sum := blake3.Sum256(data)
		got := hex.EncodeToString(sum[:])
		if !strings.EqualFold(got, strings.TrimPrefix(s, blake3Prefix)) {
			return fmt.Errorf("%w: blake3 is %s, want %s", ErrChecksumMismatch, got, strings.TrimPrefix(s, blake3Prefix))
		}
		return nil
	}

	d, err := digest.Parse(s)
	if err != nil || !d.Algorithm().Available() {
		return nil
	}
	verifier := d.Verifier()
	if _, err := verifier.Write(data); err != nil {
		return fmt.Errorf("verify %s: %w", d, err)
	}
	if !verifier.Verified() {
		return fmt.Errorf("%w: content does not match %s", ErrChecksumMismatch, d)
	}
	return nil
}

// Blake3Hash returns the blake3 Hash of data.
func Blake3Hash(data []byte) Hash {
	sum := blake3.Sum256(data)
	return Hash(blake3Prefix + hex.EncodeToString(sum[:]))
}

// DigestHash returns the sha256 OCI digest Hash of data.
func DigestHash(data []byte) Hash {
	return Hash(digest.FromBytes(data).String())
}
