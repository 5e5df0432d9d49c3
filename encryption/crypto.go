package encryption

import (
	"crypto/ecdsa"
	"encoding/binary"
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/sha3"
)

var ErrInvalidSignature = errors.New("invalid signature")

type CryptoService struct{}

func NewCryptoService() *CryptoService {
	return &CryptoService{}
}

// GenerateKeyPair generates a new secp256k1 key pair
func (cs *CryptoService) GenerateKeyPair() (*ecdsa.PrivateKey, error) {
	return crypto.GenerateKey()
}

// Keccak256 computes Keccak-256 hash
func (cs *CryptoService) Keccak256(data ...[]byte) []byte {
	d := sha3.NewLegacyKeccak256()
	for _, b := range data {
		d.Write(b)
	}
	return d.Sum(nil)
}

// StateHash fingerprints an ordered ciphertext list for one engine instance.
// Every ciphertext is length-prefixed so that no two distinct lists share an
// encoding.
func (cs *CryptoService) StateHash(cts []Ciphertext, instance common.Address) common.Hash {
	d := sha3.NewLegacyKeccak256()

	var word [8]byte
	binary.BigEndian.PutUint64(word[:], uint64(len(cts)))
	d.Write(word[:])
	for _, ct := range cts {
		binary.BigEndian.PutUint64(word[:], uint64(len(ct)))
		d.Write(word[:])
		d.Write(ct)
	}
	d.Write(instance.Bytes())

	return common.BytesToHash(d.Sum(nil))
}

// Sign creates a recoverable signature over a 32-byte digest
func (cs *CryptoService) Sign(digest []byte, privateKey *ecdsa.PrivateKey) ([]byte, error) {
	return crypto.Sign(digest, privateKey)
}

// Recover returns the address that produced signature over digest.
func (cs *CryptoService) Recover(digest, signature []byte) (common.Address, error) {
	if len(signature) != crypto.SignatureLength {
		return common.Address{}, ErrInvalidSignature
	}
	pub, err := crypto.SigToPub(digest, signature)
	if err != nil {
		return common.Address{}, ErrInvalidSignature
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// AddressOf serializes a public key into its account address.
func (cs *CryptoService) AddressOf(privateKey *ecdsa.PrivateKey) common.Address {
	return crypto.PubkeyToAddress(privateKey.PublicKey)
}
