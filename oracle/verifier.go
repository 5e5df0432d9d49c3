package oracle

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"confidential-voting/encryption"
)

// Verifier accepts a proof when at least threshold distinct recognized
// signers signed the response digest.
type Verifier struct {
	crypto    *encryption.CryptoService
	signers   map[common.Address]struct{}
	threshold int
}

func NewVerifier(signers []common.Address, threshold int) (*Verifier, error) {
	if threshold < 1 {
		return nil, errors.New("verifier threshold must be at least 1")
	}

	set := make(map[common.Address]struct{}, len(signers))
	for _, s := range signers {
		set[s] = struct{}{}
	}
	if len(set) < threshold {
		return nil, errors.New("fewer recognized signers than threshold")
	}

	return &Verifier{
		crypto:    encryption.NewCryptoService(),
		signers:   set,
		threshold: threshold,
	}, nil
}

// VerifySignature rejects any proof that is not a whole number of
// signatures or holds an unrecoverable one. Unrecognized signers and
// duplicates do not count toward the threshold.
func (v *Verifier) VerifySignature(requestID string, payload, proof []byte) bool {
	if len(proof) == 0 || len(proof)%crypto.SignatureLength != 0 {
		return false
	}

	digest := v.crypto.ResponseDigest(requestID, payload)
	recognized := make(map[common.Address]struct{})
	for i := 0; i < len(proof); i += crypto.SignatureLength {
		addr, err := v.crypto.Recover(digest, proof[i:i+crypto.SignatureLength])
		if err != nil {
			return false
		}
		if _, ok := v.signers[addr]; ok {
			recognized[addr] = struct{}{}
		}
	}
	return len(recognized) >= v.threshold
}
