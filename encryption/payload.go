package encryption

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// WordSize is the width of one plaintext in a decryption payload.
const WordSize = 32

var ErrMalformedPayload = errors.New("malformed decryption payload")

// EncodePlaintexts packs values as consecutive 32-byte big-endian words.
func EncodePlaintexts(values []*big.Int) ([]byte, error) {
	payload := make([]byte, 0, len(values)*WordSize)
	for _, v := range values {
		if v.Sign() < 0 || v.BitLen() > WordSize*8 {
			return nil, ErrMalformedPayload
		}
		payload = append(payload, common.LeftPadBytes(v.Bytes(), WordSize)...)
	}
	return payload, nil
}

// DecodePlaintexts unpacks exactly n words. Every word must fit in a uint64.
func DecodePlaintexts(payload []byte, n int) ([]uint64, error) {
	if n <= 0 || len(payload) != n*WordSize {
		return nil, ErrMalformedPayload
	}

	values := make([]uint64, n)
	for i := range values {
		word := new(big.Int).SetBytes(payload[i*WordSize : (i+1)*WordSize])
		if !word.IsUint64() {
			return nil, ErrMalformedPayload
		}
		values[i] = word.Uint64()
	}
	return values, nil
}

// ResponseDigest is the message the oracle signs for a decryption response.
func (cs *CryptoService) ResponseDigest(requestID string, payload []byte) []byte {
	return cs.Keccak256([]byte(requestID), payload)
}
