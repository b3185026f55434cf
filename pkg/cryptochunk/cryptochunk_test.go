package cryptochunk

import (
	"bytes"
	"testing"

	"github.com/hivechunk/core/pkg/coreerr"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}

	plaintext := []byte("the quick brown fox jumps over the lazy dog")
	ciphertext, err := Encrypt(key, plaintext)
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	if len(ciphertext) <= blockSize {
		t.Fatalf("ciphertext too short: %d bytes", len(ciphertext))
	}

	got, err := Decrypt(key, ciphertext)
	if err != nil {
		t.Fatalf("Decrypt failed: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Fatalf("round trip mismatch: got %q, want %q", got, plaintext)
	}
}

func TestEncryptIVsAreRandom(t *testing.T) {
	key, _ := GenerateKey()
	plaintext := []byte("same plaintext twice")

	c1, err := Encrypt(key, plaintext)
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	c2, err := Encrypt(key, plaintext)
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	if bytes.Equal(c1, c2) {
		t.Fatalf("two encryptions of the same plaintext produced identical ciphertext")
	}
	if bytes.Equal(c1[:blockSize], c2[:blockSize]) {
		t.Fatalf("IVs collided across two encryptions")
	}
}

func TestEncryptEmptyPlaintext(t *testing.T) {
	key, _ := GenerateKey()
	ciphertext, err := Encrypt(key, nil)
	if err != nil {
		t.Fatalf("Encrypt failed on empty plaintext: %v", err)
	}
	got, err := Decrypt(key, ciphertext)
	if err != nil {
		t.Fatalf("Decrypt failed: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty plaintext, got %d bytes", len(got))
	}
}

func TestEncryptRejectsBadKeySize(t *testing.T) {
	_, err := Encrypt([]byte("short"), []byte("data"))
	if coreerr.KindOf(err) != coreerr.InvalidKey {
		t.Fatalf("expected InvalidKey, got %v", err)
	}
}

func TestDecryptRejectsTamperedPadding(t *testing.T) {
	key, _ := GenerateKey()
	ciphertext, _ := Encrypt(key, []byte("some data that spans a couple of blocks of text"))
	ciphertext[len(ciphertext)-1] ^= 0xFF

	_, err := Decrypt(key, ciphertext)
	if coreerr.KindOf(err) != coreerr.DecryptionFailed {
		t.Fatalf("expected DecryptionFailed, got %v", err)
	}
}

func TestDecryptRejectsShortBlob(t *testing.T) {
	key, _ := GenerateKey()
	_, err := Decrypt(key, []byte("too short"))
	if coreerr.KindOf(err) != coreerr.DecryptionFailed {
		t.Fatalf("expected DecryptionFailed, got %v", err)
	}
}

func TestDecryptWrongKeyFails(t *testing.T) {
	key1, _ := GenerateKey()
	key2, _ := GenerateKey()
	ciphertext, err := Encrypt(key1, []byte("confidential chunk payload of some length"))
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	_, err = Decrypt(key2, ciphertext)
	if coreerr.KindOf(err) != coreerr.DecryptionFailed {
		t.Fatalf("expected DecryptionFailed with wrong key, got %v", err)
	}
}
