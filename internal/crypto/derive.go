package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"io"

	"campaignclient/internal/model"

	"github.com/pkg/errors"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const (
	hkdfInfoIdentity = "campaign/identity/v1"
	hkdfInfoPassword = "campaign/password/v1"

	SeedSize = 32
)

// IdentityKey binds an identity secret to an address. The same secret and
// address always produce the same key.
func IdentityKey(secret []byte, address string) ([]byte, error) {
	if len(secret) == 0 {
		return nil, errors.New("empty identity secret")
	}
	return hkdfExpand(secret, []byte(model.NormalizeAddress(address)), hkdfInfoIdentity, chacha20poly1305.KeySize)
}

// DerivePassword recomputes a creator's campaign password from the campaign
// seed published on the ledger and the creator's identity key.
func DerivePassword(campaignSeed []byte, identityKey []byte) (string, error) {
	if len(campaignSeed) == 0 {
		return "", errors.New("empty campaign seed")
	}
	if len(identityKey) == 0 {
		return "", errors.New("empty identity key")
	}
	out, err := hkdfExpand(identityKey, campaignSeed, hkdfInfoPassword, 32)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(out), nil
}

// SealResponseSeed encrypts the campaign password under the respondent's
// identity key so it can be stored with the response and recovered later.
func SealResponseSeed(password string, identityKey []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(identityKey)
	if err != nil {
		return nil, errors.Wrap(err, "identity key")
	}
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return nil, errors.Wrap(err, "read nonce")
	}
	return aead.Seal(nonce, nonce, []byte(password), nil), nil
}

func OpenResponseSeed(seed []byte, identityKey []byte) (string, error) {
	aead, err := chacha20poly1305.NewX(identityKey)
	if err != nil {
		return "", errors.Wrap(err, "identity key")
	}
	if len(seed) < chacha20poly1305.NonceSizeX+chacha20poly1305.Overhead {
		return "", ErrInvalid
	}
	password, err := aead.Open(nil, seed[:chacha20poly1305.NonceSizeX], seed[chacha20poly1305.NonceSizeX:], nil)
	if err != nil {
		return "", ErrAuthFailed
	}
	return string(password), nil
}

func NewSeed() ([]byte, error) {
	seed := make([]byte, SeedSize)
	if _, err := rand.Read(seed); err != nil {
		return nil, errors.Wrap(err, "read seed")
	}
	return seed, nil
}

// RandomPassword is used for encrypted campaigns created without an identity
// secret; such a password can only be recovered from local storage.
func RandomPassword() (string, error) {
	raw := make([]byte, 24)
	if _, err := rand.Read(raw); err != nil {
		return "", errors.Wrap(err, "read password")
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

func hkdfExpand(secret, salt []byte, info string, outLen int) ([]byte, error) {
	reader := hkdf.New(sha256.New, secret, salt, []byte(info))
	out := make([]byte, outLen)
	if _, err := io.ReadFull(reader, out); err != nil {
		return nil, err
	}
	return out, nil
}
