package blockchain

import (
	"github.com/mr-tron/base58"
	"golang.org/x/crypto/blake2b"
)

const transactionDataTag = "TransactionData::"

// TransactionDigest computes the ledger digest of BCS transaction bytes, which
// lets a submitter look a transaction up even when execution returned nothing.
func TransactionDigest(txBytes []byte) string {
	hasher, _ := blake2b.New256(nil)
	hasher.Write([]byte(transactionDataTag))
	hasher.Write(txBytes)
	return base58.Encode(hasher.Sum(nil))
}

func ValidDigest(digest string) bool {
	raw, err := base58.Decode(digest)
	return err == nil && len(raw) == blake2b.Size256
}
