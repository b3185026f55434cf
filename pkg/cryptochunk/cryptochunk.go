// Package cryptochunk implements per-chunk AES-256-CBC encryption
// with PKCS#7 padding and a random 16-byte IV prepended to the
// ciphertext. This wire format is a system contract: it is
// deliberately not an AEAD mode, and must never be swapped without
// re-deriving every already-stored digest.
package cryptochunk

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"io"

	"github.com/hivechunk/core/pkg/coreerr"
)

// KeySize is the AES-256 key length in bytes.
const KeySize = 32

const blockSize = aes.BlockSize // 16

// GenerateKey returns a fresh random 256-bit key suitable for Encrypt.
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, coreerr.Wrap(coreerr.InvalidKey, "failed to generate key", err)
	}
	return key, nil
}

// Encrypt pads plaintext with PKCS#7, encrypts it under AES-256-CBC
// with a freshly generated IV, and returns iv||ciphertext.
func Encrypt(key, plaintext []byte) ([]byte, error) {
	if len(key) != KeySize {
		return nil, coreerr.New(coreerr.InvalidKey, "key must be 32 bytes")
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, coreerr.Wrap(coreerr.InvalidKey, "failed to create cipher", err)
	}

	padded := pkcs7Pad(plaintext, blockSize)

	iv := make([]byte, blockSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return nil, coreerr.Wrap(coreerr.InvalidKey, "failed to generate iv", err)
	}

	out := make([]byte, blockSize+len(padded))
	copy(out[:blockSize], iv)

	mode := cipher.NewCBCEncrypter(block, iv)
	mode.CryptBlocks(out[blockSize:], padded)

	return out, nil
}

// Decrypt reverses Encrypt: it splits off the leading IV, decrypts
// the remainder under AES-256-CBC, and strips PKCS#7 padding.
// Malformed input (wrong length, wrong padding) fails with
// DecryptionFailed — this is a terminal failure and must not be
// silently retried against a different peer.
func Decrypt(key, blob []byte) ([]byte, error) {
	if len(key) != KeySize {
		return nil, coreerr.New(coreerr.InvalidKey, "key must be 32 bytes")
	}
	if len(blob) < blockSize || (len(blob)-blockSize)%blockSize != 0 || len(blob) == blockSize {
		return nil, coreerr.New(coreerr.DecryptionFailed, "ciphertext has invalid length")
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, coreerr.Wrap(coreerr.InvalidKey, "failed to create cipher", err)
	}

	iv := blob[:blockSize]
	ciphertext := blob[blockSize:]

	plain := make([]byte, len(ciphertext))
	mode := cipher.NewCBCDecrypter(block, iv)
	mode.CryptBlocks(plain, ciphertext)

	unpadded, err := pkcs7Unpad(plain, blockSize)
	if err != nil {
		return nil, coreerr.Wrap(coreerr.DecryptionFailed, "invalid padding", err)
	}

	return unpadded, nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - (len(data) % blockSize)
	padded := make([]byte, len(data)+padLen)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(padLen)
	}
	return padded
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, coreerr.New(coreerr.DecryptionFailed, "data is not block-aligned")
	}
	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > blockSize || padLen > len(data) {
		return nil, coreerr.New(coreerr.DecryptionFailed, "invalid pad length")
	}
	for _, b := range data[len(data)-padLen:] {
		if int(b) != padLen {
			return nil, coreerr.New(coreerr.DecryptionFailed, "inconsistent padding bytes")
		}
	}
	return data[:len(data)-padLen], nil
}
