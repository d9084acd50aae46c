package piicrypt

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"github.com/pobyzaarif/goshortcute"
	"golang.org/x/crypto/hkdf"
)

const keyInfo = "customer-profile-pii"

// Cipher encrypts raw PII (email, phone, names) before it is written to the profile store.
type Cipher struct {
	key []byte
}

// New derives a 32-byte AES key from secret.
func New(secret string) (*Cipher, error) {
	if secret == "" {
		return nil, errors.New("missing pii secret")
	}

	key := make([]byte, 32)
	r := hkdf.New(sha256.New, []byte(secret), nil, []byte(keyInfo))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("failed to derive pii key: %w", err)
	}

	return &Cipher{key: key}, nil
}

func (c *Cipher) Encrypt(plain string) (string, error) {
	if plain == "" {
		return "", nil
	}

	enc, err := goshortcute.AESCBCEncrypt([]byte(plain), c.key)
	if err != nil {
		return "", fmt.Errorf("failed to encrypt pii: %w", err)
	}

	return goshortcute.StringtoBase64Encode(enc), nil
}

func (c *Cipher) Decrypt(cipherText string) (string, error) {
	if cipherText == "" {
		return "", nil
	}

	raw := goshortcute.StringtoBase64Decode(cipherText)
	plain, err := goshortcute.AESCBCDecrypt([]byte(raw), c.key)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt pii: %w", err)
	}

	return plain, nil
}
