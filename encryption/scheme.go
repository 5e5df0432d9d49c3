package encryption

import (
	"errors"
	"math/big"
)

// Ciphertext is an opaque encrypted integer. Its layout belongs to the
// scheme that produced it.
type Ciphertext []byte

var (
	ErrKeyNotSet         = errors.New("encryption key not set")
	ErrEmptyCiphertext   = errors.New("ciphertext is empty")
	ErrNegativePlaintext = errors.New("plaintext must be non-negative")
)

// Evaluator is the capability set the tally engine needs from a homomorphic
// encryption backend. No method returns plaintext.
type Evaluator interface {
	// Identity information
	Name() string
	KeySize() int

	// Encrypt encrypts a non-negative integer under the scheme public key.
	Encrypt(value *big.Int) (Ciphertext, error)
	// Validate rejects byte strings that are not ciphertexts of this scheme.
	Validate(ct Ciphertext) error
	Zero() (Ciphertext, error)
	One() (Ciphertext, error)

	// Add returns Enc(a + b).
	Add(a, b Ciphertext) (Ciphertext, error)
	// GreaterOrEqual returns Enc(1) when a >= b and Enc(0) otherwise.
	GreaterOrEqual(a, b Ciphertext) (Ciphertext, error)
	// Select returns a fresh encryption of a when cond encrypts a non-zero
	// value and of b otherwise.
	Select(cond, a, b Ciphertext) (Ciphertext, error)
}

// Decrypter turns ciphertexts back into plaintext. Only the decryption
// oracle holds one.
type Decrypter interface {
	Decrypt(ct Ciphertext) (*big.Int, error)
}
