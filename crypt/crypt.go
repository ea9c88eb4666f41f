// Package crypt provides the symmetric transform applied to encrypted bundles.
//
// Keys are derived from a password and salt with PBKDF2-HMAC-SHA1 (1000
// iterations). The first 32 derived bytes form an AES-256 key and the next
// 16 bytes the CBC initialization vector. Plaintext is padded with PKCS#7.
//
// The transform is deterministic: the same password, salt, and plaintext
// always produce the same ciphertext. Bundles encrypted by a publishing
// pipeline can therefore be decrypted by any client holding the same
// password and salt.
package crypt

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha1" //nolint:gosec // PBKDF2-HMAC-SHA1 is the published key derivation
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// MinSaltLen is the minimum accepted salt length in bytes.
	MinSaltLen = 8

	iterations = 1000
	keyLen     = 32
	ivLen      = aes.BlockSize
)

var (
	// ErrSaltTooShort is returned when the salt is shorter than MinSaltLen.
	ErrSaltTooShort = errors.New("crypt: salt must be at least 8 bytes")

	// ErrEmptyPassword is returned when the password is empty.
	ErrEmptyPassword = errors.New("crypt: password is empty")

	// ErrInvalidPadding is returned when ciphertext does not decrypt to
	// correctly padded plaintext, usually because the password or salt is wrong.
	ErrInvalidPadding = errors.New("crypt: invalid padding")

	// ErrInvalidLength is returned when ciphertext is not a whole number of blocks.
	ErrInvalidLength = errors.New("crypt: ciphertext is not a multiple of the block size")
)

// Cipher encrypts and decrypts bundle bytes with a fixed derived key.
// A Cipher is safe for concurrent use.
type Cipher struct {
	block cipher.Block
	iv    []byte
}

// New derives a Cipher from password and salt.
func New(password, salt []byte) (*Cipher, error) {
	if len(password) == 0 {
		return nil, ErrEmptyPassword
	}
	if len(salt) < MinSaltLen {
		return nil, ErrSaltTooShort
	}
	derived := pbkdf2.Key(password, salt, iterations, keyLen+ivLen, sha1.New)
	block, err := aes.NewCipher(derived[:keyLen])
	if err != nil {
		return nil, fmt.Errorf("crypt: %w", err)
	}
	return &Cipher{block: block, iv: derived[keyLen:]}, nil
}

// Encrypt returns the padded ciphertext of plaintext.
func (c *Cipher) Encrypt(plaintext []byte) []byte {
	padded := pad(plaintext, aes.BlockSize)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(c.block, c.iv).CryptBlocks(out, padded)
	return out
}

// Decrypt returns the plaintext of ciphertext.
func (c *Cipher) Decrypt(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, ErrInvalidLength
	}
	out := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(c.block, c.iv).CryptBlocks(out, ciphertext)
	return unpad(out, aes.BlockSize)
}

// Encrypt derives a Cipher from password and salt and encrypts plaintext.
func Encrypt(plaintext, password, salt []byte) ([]byte, error) {
	c, err := New(password, salt)
	if err != nil {
		return nil, err
	}
	return c.Encrypt(plaintext), nil
}

// Decrypt derives a Cipher from password and salt and decrypts ciphertext.
func Decrypt(ciphertext, password, salt []byte) ([]byte, error) {
	c, err := New(password, salt)
	if err != nil {
		return nil, err
	}
	return c.Decrypt(ciphertext)
}

func pad(data []byte, size int) []byte {
	n := size - len(data)%size
	out := make([]byte, len(data), len(data)+n)
	copy(out, data)
	return append(out, bytes.Repeat([]byte{byte(n)}, n)...)
}

func unpad(data []byte, size int) ([]byte, error) {
	if len(data) == 0 {
		return nil, ErrInvalidPadding
	}
	n := int(data[len(data)-1])
	if n == 0 || n > size || n > len(data) {
		return nil, ErrInvalidPadding
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, ErrInvalidPadding
		}
	}
	return data[:len(data)-n], nil
}
