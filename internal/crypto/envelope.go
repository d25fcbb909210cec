package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

// Prefix marks campaign text stored as ciphertext on the ledger.
const Prefix = "enc:v1:"

const (
	saltSize = 16

	kdfTime     = 2
	kdfMemoryKB = 64 * 1024
	kdfThreads  = 1
)

var (
	ErrAuthFailed   = errors.New("campaign text authentication failed")
	ErrInvalid      = errors.New("campaign text envelope is invalid")
	ErrNotEncrypted = errors.New("campaign text is not encrypted")
)

func IsEncrypted(value string) bool {
	return strings.HasPrefix(value, Prefix)
}

// Encrypt seals plaintext under a key stretched from password and returns
// Prefix followed by base64(salt | nonce | ciphertext).
func Encrypt(password string, plaintext string) (string, error) {
	if password == "" {
		return "", errors.New("empty password")
	}
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", errors.Wrap(err, "read salt")
	}
	key := deriveKey(password, salt)
	defer zeroBytes(key)

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return "", errors.Wrap(err, "read nonce")
	}

	out := make([]byte, 0, saltSize+len(nonce)+len(plaintext)+aead.Overhead())
	out = append(out, salt...)
	out = append(out, nonce...)
	out = aead.Seal(out, nonce, []byte(plaintext), nil)
	return Prefix + base64.StdEncoding.EncodeToString(out), nil
}

func Decrypt(password string, value string) (string, error) {
	if !IsEncrypted(value) {
		return "", ErrNotEncrypted
	}
	raw, err := base64.StdEncoding.DecodeString(value[len(Prefix):])
	if err != nil {
		return "", ErrInvalid
	}
	if len(raw) < saltSize+chacha20poly1305.NonceSizeX+chacha20poly1305.Overhead {
		return "", ErrInvalid
	}
	salt := raw[:saltSize]
	nonce := raw[saltSize : saltSize+chacha20poly1305.NonceSizeX]
	ciphertext := raw[saltSize+chacha20poly1305.NonceSizeX:]

	key := deriveKey(password, salt)
	defer zeroBytes(key)

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return "", err
	}
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", ErrAuthFailed
	}
	return string(plaintext), nil
}

func deriveKey(password string, salt []byte) []byte {
	return argon2.IDKey([]byte(password), salt, kdfTime, kdfMemoryKB, kdfThreads, chacha20poly1305.KeySize)
}

func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
