package signer

import (
	"context"
	"crypto/ed25519"
	"crypto/sha256"
	"io"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/crypto/hkdf"
)

const (
	hkdfInfoSessionSigning  = "campaign/session/signing/v1"
	hkdfInfoSessionIdentity = "campaign/session/identity/v1"
)

// SessionSigner holds an ephemeral key that stops signing at expiresAt. The
// session secret also yields the identity secret, so recovery needs no prompt.
type SessionSigner struct {
	key       ed25519.PrivateKey
	address   string
	identity  []byte
	expiresAt time.Time
	now       func() time.Time
}

func NewSessionSigner(secret []byte, expiresAt time.Time) (*SessionSigner, error) {
	if len(secret) == 0 {
		return nil, errors.New("empty session secret")
	}
	signingSeed, err := hkdfExpand(secret, hkdfInfoSessionSigning, ed25519.SeedSize)
	if err != nil {
		return nil, err
	}
	identity, err := hkdfExpand(secret, hkdfInfoSessionIdentity, 32)
	if err != nil {
		return nil, err
	}
	key := ed25519.NewKeyFromSeed(signingSeed)
	return &SessionSigner{
		key:       key,
		address:   AddressOf(key.Public().(ed25519.PublicKey)),
		identity:  identity,
		expiresAt: expiresAt,
		now:       time.Now,
	}, nil
}

// WithClock replaces the time source.
func (s *SessionSigner) WithClock(now func() time.Time) *SessionSigner {
	s.now = now
	return s
}

func (s *SessionSigner) Address() string {
	return s.address
}

func (s *SessionSigner) ExpiresAt() time.Time {
	return s.expiresAt
}

func (s *SessionSigner) Expired() bool {
	return !s.expiresAt.IsZero() && !s.now().Before(s.expiresAt)
}

func (s *SessionSigner) SignTransaction(ctx context.Context, txBytes string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &SignatureError{Kind: Transient, Err: err}
	}
	if s.Expired() {
		return "", &SignatureError{Kind: SessionExpired, Err: errors.Errorf("session expired at %s", s.expiresAt.UTC().Format(time.RFC3339))}
	}
	return signTransaction(s.key, txBytes)
}

func (s *SessionSigner) IdentitySecret(ctx context.Context) ([]byte, bool, error) {
	return append([]byte(nil), s.identity...), true, nil
}

func hkdfExpand(secret []byte, info string, outLen int) ([]byte, error) {
	reader := hkdf.New(sha256.New, secret, nil, []byte(info))
	out := make([]byte, outLen)
	if _, err := io.ReadFull(reader, out); err != nil {
		return nil, err
	}
	return out, nil
}
