package wallet

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
)

// Keeper seals and opens signing material with XChaCha20-Poly1305 under the
// process-wide wallet key. There is no plaintext storage path: an Open
// failure is final for the caller.
type Keeper struct {
	aead cipher.AEAD
}

func NewKeeper(hexKey string) (*Keeper, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("wallet key is not valid hex: %w", err)
	}
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("wallet key must be %d bytes, got %d", chacha20poly1305.KeySize, len(key))
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("cipher init: %w", err)
	}

	return &Keeper{aead: aead}, nil
}

// Seal encrypts signing material and returns hex(nonce || ciphertext).
func (k *Keeper) Seal(plain []byte) (string, error) {
	nonce := make([]byte, k.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("nonce gen: %w", err)
	}

	sealed := k.aead.Seal(nonce, nonce, plain, nil)
	return hex.EncodeToString(sealed), nil
}

func (k *Keeper) Open(encHex string) ([]byte, error) {
	data, err := hex.DecodeString(encHex)
	if err != nil {
		return nil, fmt.Errorf("invalid hex: %w", err)
	}

	nonceSize := k.aead.NonceSize()
	if len(data) < nonceSize {
		return nil, fmt.Errorf("invalid ciphertext")
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plain, err := k.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt: %w", err)
	}

	return plain, nil
}
