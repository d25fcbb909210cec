package signer

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"

	"github.com/pkg/errors"
	"golang.org/x/crypto/blake2b"
)

const ed25519Flag byte = 0x00

// transaction data intent: scope 0, version 0, app id 0
var transactionIntent = []byte{0, 0, 0}

// Signer produces the sender's signature over sponsor-augmented transaction
// bytes. txBytes and the returned signature are base64.
type Signer interface {
	Address() string
	SignTransaction(ctx context.Context, txBytes string) (string, error)
}

// IdentitySource yields the secret campaign passwords are derived from. ok is
// false when the signer cannot provide one without user interaction.
type IdentitySource interface {
	IdentitySecret(ctx context.Context) (secret []byte, ok bool, err error)
}

// AddressOf derives the ledger address of an ed25519 public key.
func AddressOf(pub ed25519.PublicKey) string {
	hasher, _ := blake2b.New256(nil)
	hasher.Write([]byte{ed25519Flag})
	hasher.Write(pub)
	return "0x" + hex.EncodeToString(hasher.Sum(nil))
}

func signTransaction(key ed25519.PrivateKey, txBytes string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(txBytes)
	if err != nil {
		return "", &SignatureError{Kind: Invalid, Err: errors.Wrap(err, "transaction bytes are not base64")}
	}
	hasher, _ := blake2b.New256(nil)
	hasher.Write(transactionIntent)
	hasher.Write(raw)
	signature := ed25519.Sign(key, hasher.Sum(nil))

	pub := key.Public().(ed25519.PublicKey)
	serialized := make([]byte, 0, 1+len(signature)+len(pub))
	serialized = append(serialized, ed25519Flag)
	serialized = append(serialized, signature...)
	serialized = append(serialized, pub...)
	return base64.StdEncoding.EncodeToString(serialized), nil
}

// Verify checks a serialized signature against txBytes.
func Verify(txBytes string, serialized string) (bool, error) {
	raw, err := base64.StdEncoding.DecodeString(txBytes)
	if err != nil {
		return false, err
	}
	sig, err := base64.StdEncoding.DecodeString(serialized)
	if err != nil {
		return false, err
	}
	if len(sig) != 1+ed25519.SignatureSize+ed25519.PublicKeySize || sig[0] != ed25519Flag {
		return false, errors.New("unsupported signature scheme")
	}
	hasher, _ := blake2b.New256(nil)
	hasher.Write(transactionIntent)
	hasher.Write(raw)
	pub := ed25519.PublicKey(sig[1+ed25519.SignatureSize:])
	return ed25519.Verify(pub, hasher.Sum(nil), sig[1:1+ed25519.SignatureSize]), nil
}
