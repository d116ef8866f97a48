// Package crypto recovers secrets stored encrypted in model spec configs.
// Ciphertexts are AES-256-GCM sealed and base64 encoded; the key is derived
// from a master key taken from the environment.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"os"
)

// MasterKeyEnv names the environment variable holding the master key.
const MasterKeyEnv = "INFERD_MASTER_KEY"

func gcmFromEnv() (cipher.AEAD, error) {
	key := os.Getenv(MasterKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("%s is not set", MasterKeyEnv)
	}
	sum := sha256.Sum256([]byte(key))
	block, err := aes.NewCipher(sum[:])
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Encrypt seals plain with the master key and returns a base64 ciphertext.
func Encrypt(plain string) (string, error) {
	gcm, err := gcmFromEnv()
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	sealed := gcm.Seal(nonce, nonce, []byte(plain), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt recovers a secret sealed by Encrypt. Any failure (no master key,
// malformed base64, tampered ciphertext) returns the input unchanged so
// legacy plaintext configs keep working.
func Decrypt(s string) string {
	if s == "" {
		return s
	}
	gcm, err := gcmFromEnv()
	if err != nil {
		return s
	}
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil || len(raw) < gcm.NonceSize() {
		return s
	}
	plain, err := gcm.Open(nil, raw[:gcm.NonceSize()], raw[gcm.NonceSize():], nil)
	if err != nil {
		return s
	}
	return string(plain)
}
