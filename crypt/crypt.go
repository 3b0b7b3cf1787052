// Package crypt reverses the at-rest obfuscation applied to partner credentials
// stored in the integrations table.
//
// The scheme is AES-256-CTR with an all-zero IV and hex encoded output. The IV
// never changes, so equal plaintexts always produce equal ciphertexts. It must
// not be used for anything that needs semantic security.
package crypt

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/hex"
	"fmt"

	apperrors "github.com/jrsteele09/zonesync/internal/errors"
)

// KeySize is the required key length in bytes (AES-256).
const KeySize = 32

// Encrypt obfuscates plaintext with key and returns lowercase hex.
func Encrypt(plaintext, key string) (string, error) {
	stream, err := newStream(key)
	if err != nil {
		return "", err
	}
	out := make([]byte, len(plaintext))
	stream.XORKeyStream(out, []byte(plaintext))
	return hex.EncodeToString(out), nil
}

// Decrypt reverses Encrypt.
func Decrypt(ciphertextHex, key string) (string, error) {
	ciphertext, err := hex.DecodeString(ciphertextHex)
	if err != nil {
		return "", apperrors.Mark(apperrors.ErrCrypto, fmt.Errorf("malformed ciphertext: %w", err))
	}
	stream, err := newStream(key)
	if err != nil {
		return "", err
	}
	out := make([]byte, len(ciphertext))
	stream.XORKeyStream(out, ciphertext)
	return string(out), nil
}

func newStream(key string) (cipher.Stream, error) {
	if len(key) != KeySize {
		return nil, apperrors.Mark(apperrors.ErrCrypto, fmt.Errorf("key must be %d bytes, got %d", KeySize, len(key)))
	}
	block, err := aes.NewCipher([]byte(key))
	if err != nil {
		return nil, apperrors.Mark(apperrors.ErrCrypto, err)
	}
	iv := make([]byte, aes.BlockSize)
	return cipher.NewCTR(block, iv), nil
}
