package credstore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"
)

// gcmPrefix versions the sealed format so a future scheme change can
// coexist with old files.
const gcmPrefix = "gcm1"

// EncryptValue seals value with AES-GCM under key. The output is
// prefix || nonce || ciphertext.
func EncryptValue(value string, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	ciphertext := gcm.Seal(nil, nonce, []byte(value), nil)
	out := make([]byte, 0, len(gcmPrefix)+len(nonce)+len(ciphertext))
	out = append(out, gcmPrefix...)
	out = append(out, nonce...)
	out = append(out, ciphertext...)
	return out, nil
}

// DecryptValue opens a value sealed by EncryptValue.
func DecryptValue(sealed []byte, key []byte) ([]byte, error) {
	if len(sealed) < len(gcmPrefix) || string(sealed[:len(gcmPrefix)]) != gcmPrefix {
		return nil, fmt.Errorf("unrecognized sealed format")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonceSize := gcm.NonceSize()
	if len(sealed) < len(gcmPrefix)+nonceSize {
		return nil, fmt.Errorf("sealed value too short")
	}
	nonce := sealed[len(gcmPrefix) : len(gcmPrefix)+nonceSize]
	data := sealed[len(gcmPrefix)+nonceSize:]
	return gcm.Open(nil, nonce, data, nil)
}
