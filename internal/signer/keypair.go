package signer

import (
	"context"
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/binary"
	"strings"

	"github.com/pkg/errors"
	"github.com/tyler-smith/go-bip39"
)

// DerivationPath is m/44'/784'/0'/0'/0', all hardened.
var DerivationPath = []uint32{44, 784, 0, 0, 0}

const hardenedOffset uint32 = 0x80000000

var ErrInvalidMnemonic = errors.New("invalid wallet mnemonic")

// KeypairSigner signs with a wallet key restored from a mnemonic. It cannot
// provide an identity secret on its own.
type KeypairSigner struct {
	key     ed25519.PrivateKey
	address string
}

func NewKeypairSigner(mnemonic string) (*KeypairSigner, error) {
	mnemonic = strings.Join(strings.Fields(mnemonic), " ")
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, ErrInvalidMnemonic
	}
	seed := bip39.NewSeed(mnemonic, "")
	key := deriveEd25519(seed, DerivationPath)
	return &KeypairSigner{
		key:     key,
		address: AddressOf(key.Public().(ed25519.PublicKey)),
	}, nil
}

func (s *KeypairSigner) Address() string {
	return s.address
}

func (s *KeypairSigner) SignTransaction(ctx context.Context, txBytes string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &SignatureError{Kind: Transient, Err: err}
	}
	return signTransaction(s.key, txBytes)
}

func (s *KeypairSigner) IdentitySecret(ctx context.Context) ([]byte, bool, error) {
	return nil, false, nil
}

// deriveEd25519 follows SLIP-0010 for ed25519, where every level is hardened.
func deriveEd25519(seed []byte, path []uint32) ed25519.PrivateKey {
	mac := hmac.New(sha512.New, []byte("ed25519 seed"))
	mac.Write(seed)
	sum := mac.Sum(nil)
	key, chain := sum[:32], sum[32:]

	for _, index := range path {
		data := make([]byte, 0, 37)
		data = append(data, 0)
		data = append(data, key...)
		data = binary.BigEndian.AppendUint32(data, index|hardenedOffset)

		mac = hmac.New(sha512.New, chain)
		mac.Write(data)
		sum = mac.Sum(nil)
		key, chain = sum[:32], sum[32:]
	}
	return ed25519.NewKeyFromSeed(key)
}
