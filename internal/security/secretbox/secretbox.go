// Package secretbox encrypts provider client secrets at rest in the YAML
// config. Values written as "enc|<base64 nonce|box>" are decrypted at load
// time with the master key from SECRETBOX_MASTER_KEY (base64, 32 bytes).
package secretbox

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/crypto/nacl/secretbox"
)

const (
	masterKeyEnvVar = "SECRETBOX_MASTER_KEY"
	keyLength       = 32
	nonceLength     = 24

	// EncPrefix marks an encrypted config value.
	EncPrefix = "enc|"
)

var (
	masterKey [keyLength]byte
	loaded    bool
	loadErr   error
	mu        sync.Mutex
)

func ensureLoaded() error {
	mu.Lock()
	defer mu.Unlock()
	if loaded {
		return loadErr
	}
	loaded = true
	kb64 := strings.TrimSpace(os.Getenv(masterKeyEnvVar))
	if kb64 == "" {
		loadErr = fmt.Errorf("%s not set; generate one with: openssl rand -base64 32", masterKeyEnvVar)
		return loadErr
	}
	k, err := base64.StdEncoding.DecodeString(kb64)
	if err != nil {
		loadErr = fmt.Errorf("decode %s: %w", masterKeyEnvVar, err)
		return loadErr
	}
	if len(k) != keyLength {
		loadErr = fmt.Errorf("%s must decode to %d bytes, got %d", masterKeyEnvVar, keyLength, len(k))
		return loadErr
	}
	copy(masterKey[:], k)
	return nil
}

// Ready reports whether the master key is available. Useful for startup checks.
func Ready() bool {
	return ensureLoaded() == nil
}

// Encrypt seals plaintext and returns it with the "enc|" prefix, ready to be
// pasted into the config file.
func Encrypt(plaintext string) (string, error) {
	if err := ensureLoaded(); err != nil {
		return "", err
	}
	var nonce [nonceLength]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("nonce: %w", err)
	}
	out := secretbox.Seal(nonce[:], []byte(plaintext), &nonce, &masterKey)
	return EncPrefix + base64.StdEncoding.EncodeToString(out), nil
}

// Decrypt opens a value produced by Encrypt. The "enc|" prefix is optional.
func Decrypt(value string) (string, error) {
	if err := ensureLoaded(); err != nil {
		return "", err
	}
	value = strings.TrimPrefix(value, EncPrefix)
	raw, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", err)
	}
	if len(raw) < nonceLength+secretbox.Overhead {
		return "", errors.New("ciphertext too short")
	}
	var nonce [nonceLength]byte
	copy(nonce[:], raw[:nonceLength])
	pt, ok := secretbox.Open(nil, raw[nonceLength:], &nonce, &masterKey)
	if !ok {
		return "", errors.New("decrypt failed: wrong key or corrupted value")
	}
	return string(pt), nil
}

// IsEncrypted reports whether a config value carries the "enc|" prefix.
func IsEncrypted(value string) bool {
	return strings.HasPrefix(value, EncPrefix)
}

// UnsafeResetForTests clears the cached master key so tests can swap env vars.
func UnsafeResetForTests() {
	mu.Lock()
	defer mu.Unlock()
	loaded = false
	loadErr = nil
	masterKey = [keyLength]byte{}
}
