package securestore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
)

// IsStorageConfigured reports whether encrypted persistence is configured.
func IsStorageConfigured(path, passphrase string) bool {
	return strings.TrimSpace(path) != "" && strings.TrimSpace(passphrase) != ""
}

// ReadDecryptedFile reads and decrypts file content with the provided passphrase.
func ReadDecryptedFile(path, passphrase string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Decrypt(passphrase, raw)
}

// WriteEncryptedJSON marshals, encrypts and writes a JSON snapshot.
func WriteEncryptedJSON(path, passphrase string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	encrypted, err := Encrypt(passphrase, payload)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, encrypted, 0o600)
}
