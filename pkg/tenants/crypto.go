package tenants

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
)

// Stored secret format: version byte followed by the payload.
//   0x00 | plaintext                      (no ENCRYPTION_KEY configured)
//   0x01 | nonce | ciphertext[AES-GCM]    (key = sha256(ENCRYPTION_KEY))
const (
	secretPlain     byte = 0x00
	secretEncrypted byte = 0x01
)

func sealSecret(plain, key []byte) ([]byte, error) {
	if len(key) == 0 {
		return append([]byte{secretPlain}, plain...), nil
	}
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	ct := gcm.Seal(nil, nonce, plain, nil)
	out := make([]byte, 1+len(nonce)+len(ct))
	out[0] = secretEncrypted
	copy(out[1:1+len(nonce)], nonce)
	copy(out[1+len(nonce):], ct)
	return out, nil
}

func openSecret(blob, key []byte) ([]byte, error) {
	if len(blob) == 0 {
		return nil, nil
	}
	switch blob[0] {
	case secretPlain:
		return blob[1:], nil
	case secretEncrypted:
	default:
		return nil, errors.New("unsupported secret version")
	}
	if len(key) == 0 {
		return nil, errors.New("secret is encrypted but no ENCRYPTION_KEY is configured")
	}
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(blob) < 1+gcm.NonceSize() {
		return nil, errors.New("short nonce")
	}
	nonce := blob[1 : 1+gcm.NonceSize()]
	return gcm.Open(nil, nonce, blob[1+gcm.NonceSize():], nil)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	h := sha256.Sum256(key)
	block, err := aes.NewCipher(h[:])
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
