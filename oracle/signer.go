package oracle

import (
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"confidential-voting/encryption"
)

// Signer attests decryption responses. A proof is the concatenation of one
// 65-byte recoverable signature per key over keccak256(requestID || payload).
type Signer struct {
	crypto *encryption.CryptoService
	keys   []*ecdsa.PrivateKey
}

func NewSigner(keys []*ecdsa.PrivateKey) *Signer {
	return &Signer{
		crypto: encryption.NewCryptoService(),
		keys:   keys,
	}
}

// ParseKeys decodes hex secp256k1 private keys, with or without 0x prefix.
func ParseKeys(hexKeys []string) ([]*ecdsa.PrivateKey, error) {
	keys := make([]*ecdsa.PrivateKey, 0, len(hexKeys))
	for i, h := range hexKeys {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(h, "0x"))
		if err != nil {
			return nil, fmt.Errorf("signer key %d: %w", i, err)
		}
		keys = append(keys, key)
	}
	return keys, nil
}

func (s *Signer) Sign(requestID string, payload []byte) ([]byte, error) {
	digest := s.crypto.ResponseDigest(requestID, payload)

	proof := make([]byte, 0, len(s.keys)*crypto.SignatureLength)
	for _, key := range s.keys {
		sig, err := s.crypto.Sign(digest, key)
		if err != nil {
			return nil, err
		}
		proof = append(proof, sig...)
	}
	return proof, nil
}

// Addresses returns the signer identities a Verifier should recognize.
func (s *Signer) Addresses() []common.Address {
	addrs := make([]common.Address, 0, len(s.keys))
	for _, key := range s.keys {
		addrs = append(addrs, s.crypto.AddressOf(key))
	}
	return addrs
}
