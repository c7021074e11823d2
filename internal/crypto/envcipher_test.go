package crypto

import (
	"bytes"
	"encoding/hex"
	"testing"
)

// testKey returns a valid 32-byte key for use in tests.
func testKey() []byte {
	return bytes.Repeat([]byte("k"), 32)
}

func TestNewEnvCipher(t *testing.T) {
	t.Run("valid 32-byte key", func(t *testing.T) {
		ec, err := NewEnvCipher(testKey())
		if err != nil {
			t.Fatalf("NewEnvCipher() unexpected error: %v", err)
		}
		if ec == nil {
			t.Fatal("NewEnvCipher() returned nil cipher")
		}
	})

	tests := []struct {
		name   string
		keyLen int
	}{
		{"too short (16 bytes)", 16},
		{"too long (64 bytes)", 64},
		{"empty key", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewEnvCipher(make([]byte, tt.keyLen))
			if err != ErrKeyLengthInvalid {
				t.Errorf("NewEnvCipher(len=%d) error = %v, want ErrKeyLengthInvalid", tt.keyLen, err)
			}
		})
	}
}

func TestNewEnvCipherFromHex(t *testing.T) {
	ec, err := NewEnvCipherFromHex(hex.EncodeToString(testKey()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ec == nil {
		t.Fatal("returned nil cipher")
	}

	if _, err := NewEnvCipherFromHex("not-hex"); err != ErrKeyLengthInvalid {
		t.Errorf("bad hex error = %v, want ErrKeyLengthInvalid", err)
	}
	if _, err := NewEnvCipherFromHex("abcd"); err != ErrKeyLengthInvalid {
		t.Errorf("short hex key error = %v, want ErrKeyLengthInvalid", err)
	}
}

func TestSealOpenRoundTrip(t *testing.T) {
	ec, _ := NewEnvCipher(testKey())

	plaintext := "https://api.internal.example.com?key=s3cret"
	sealed, err := ec.Seal(plaintext)
	if err != nil {
		t.Fatalf("Seal() error: %v", err)
	}
	if sealed == plaintext {
		t.Fatal("Seal() returned plaintext")
	}

	opened, err := ec.Open(sealed)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	if opened != plaintext {
		t.Errorf("Open() = %q, want %q", opened, plaintext)
	}
}

func TestSealEmptyPassesThrough(t *testing.T) {
	ec, _ := NewEnvCipher(testKey())
	sealed, err := ec.Seal("")
	if err != nil || sealed != "" {
		t.Errorf("Seal(\"\") = (%q, %v), want empty passthrough", sealed, err)
	}
	opened, err := ec.Open("")
	if err != nil || opened != "" {
		t.Errorf("Open(\"\") = (%q, %v), want empty passthrough", opened, err)
	}
}

func TestOpenRejectsCorruption(t *testing.T) {
	ec, _ := NewEnvCipher(testKey())

	if _, err := ec.Open("!!not-base64!!"); err != ErrCiphertextCorrupted {
		t.Errorf("invalid base64 error = %v, want ErrCiphertextCorrupted", err)
	}
	if _, err := ec.Open("AAAA"); err != ErrCiphertextCorrupted {
		t.Errorf("truncated ciphertext error = %v, want ErrCiphertextCorrupted", err)
	}

	sealed, _ := ec.Seal("value")
	other, _ := NewEnvCipher(bytes.Repeat([]byte("x"), 32))
	if _, err := other.Open(sealed); err != ErrDecryptionFailed {
		t.Errorf("wrong key error = %v, want ErrDecryptionFailed", err)
	}
}

func TestSealMapOpenMapRoundTrip(t *testing.T) {
	ec, _ := NewEnvCipher(testKey())

	in := map[string]string{
		"base_url": "https://api.test",
		"token":    "tok-123",
		"empty":    "",
	}

	sealed, err := ec.SealMap(in)
	if err != nil {
		t.Fatalf("SealMap() error: %v", err)
	}
	if sealed["base_url"] == in["base_url"] {
		t.Error("SealMap left a value in plaintext")
	}

	opened, err := ec.OpenMap(sealed)
	if err != nil {
		t.Fatalf("OpenMap() error: %v", err)
	}
	for k, v := range in {
		if opened[k] != v {
			t.Errorf("round trip %q = %q, want %q", k, opened[k], v)
		}
	}

	if out, err := ec.SealMap(nil); err != nil || out != nil {
		t.Error("SealMap(nil) should pass nil through")
	}
}
