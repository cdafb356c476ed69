package secretbox

import (
	"encoding/base64"
	"strings"
	"testing"
)

// No t.Parallel in this file: the package caches the master key globally.

func setKey(t *testing.T, seed byte) {
	t.Helper()
	UnsafeResetForTests()
	raw := make([]byte, 32)
	for i := range raw {
		raw[i] = seed + byte(i)
	}
	t.Setenv("SECRETBOX_MASTER_KEY", base64.StdEncoding.EncodeToString(raw))
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	setKey(t, 1)

	msg := "super-secret client secret ✓"
	ct, err := Encrypt(msg)
	if err != nil {
		t.Fatalf("Encrypt err: %v", err)
	}
	if !IsEncrypted(ct) {
		t.Fatalf("missing prefix: %q", ct)
	}
	pt, err := Decrypt(ct)
	if err != nil {
		t.Fatalf("Decrypt err: %v", err)
	}
	if pt != msg {
		t.Fatalf("plaintext mismatch: got %q want %q", pt, msg)
	}
}

func TestDecrypt_DetectsTamper(t *testing.T) {
	setKey(t, 100)

	ct, err := Encrypt("top secret")
	if err != nil {
		t.Fatalf("Encrypt err: %v", err)
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(ct, EncPrefix))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	raw[len(raw)-1] ^= 0x01
	corrupted := EncPrefix + base64.StdEncoding.EncodeToString(raw)

	if _, err := Decrypt(corrupted); err == nil {
		t.Fatal("expected auth error, got nil")
	}
}

func TestEncrypt_ErrorWhenNoKey(t *testing.T) {
	UnsafeResetForTests()
	t.Setenv("SECRETBOX_MASTER_KEY", "")

	if _, err := Encrypt("x"); err == nil {
		t.Fatal("expected error when key missing")
	}
	if Ready() {
		t.Fatal("Ready true without key")
	}
	UnsafeResetForTests()
}

func TestEncrypt_ErrorOnShortKey(t *testing.T) {
	UnsafeResetForTests()
	t.Setenv("SECRETBOX_MASTER_KEY", base64.StdEncoding.EncodeToString([]byte("short")))

	if _, err := Encrypt("x"); err == nil {
		t.Fatal("expected error for short key")
	}
	UnsafeResetForTests()
}
