package encryption

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/roasbeef/go-go-gadget-paillier"
)

var (
	ErrInvalidKey        = errors.New("invalid Paillier key material")
	ErrInvalidCiphertext = errors.New("ciphertext is not a valid Paillier ciphertext")

	errReplayExhausted = errors.New("stored primes exhausted")
)

const minPrimeBits = 64

// PaillierKey is the secret material a Paillier key pair is rebuilt from.
type PaillierKey struct {
	P *big.Int `json:"p"`
	Q *big.Int `json:"q"`
}

// GeneratePaillierKey draws two distinct primes of bits/2 bits each.
func GeneratePaillierKey(bits int) (*PaillierKey, error) {
	if bits/2 < minPrimeBits {
		return nil, fmt.Errorf("key size %d is too small", bits)
	}
	for {
		p, err := rand.Prime(rand.Reader, bits/2)
		if err != nil {
			return nil, err
		}
		q, err := rand.Prime(rand.Reader, bits/2)
		if err != nil {
			return nil, err
		}
		if p.Cmp(q) != 0 {
			return &PaillierKey{P: p, Q: q}, nil
		}
	}
}

// privateKey rebuilds the library key. paillier.GenerateKey derives the CRT
// values from the primes it reads, so it is fed the stored primes.
func (k *PaillierKey) privateKey() (*paillier.PrivateKey, error) {
	if k == nil || k.P == nil || k.Q == nil {
		return nil, ErrKeyNotSet
	}
	if k.P.BitLen() < minPrimeBits || k.P.BitLen() != k.Q.BitLen() || k.P.Cmp(k.Q) == 0 ||
		!k.P.ProbablyPrime(20) || !k.Q.ProbablyPrime(20) {
		return nil, ErrInvalidKey
	}

	sk, err := paillier.GenerateKey(newPrimeReplay(k.P, k.Q), 2*k.P.BitLen())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	if sk.N.Cmp(new(big.Int).Mul(k.P, k.Q)) != 0 {
		return nil, ErrInvalidKey
	}
	return sk, nil
}

// primeReplay hands out one stored prime per candidate read. crypto/rand.Prime
// may first read a single byte; those reads get a filler byte.
type primeReplay struct {
	mu     sync.Mutex
	blocks [][]byte
}

func newPrimeReplay(primes ...*big.Int) *primeReplay {
	r := &primeReplay{}
	for _, p := range primes {
		r.blocks = append(r.blocks, p.FillBytes(make([]byte, (p.BitLen()+7)/8)))
	}
	return r
}

func (r *primeReplay) Read(buf []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(buf) == 1 {
		buf[0] = 0
		return 1, nil
	}
	if len(r.blocks) == 0 || len(buf) != len(r.blocks[0]) {
		return 0, errReplayExhausted
	}
	n := copy(buf, r.blocks[0])
	r.blocks = r.blocks[1:]
	return n, nil
}

// PaillierScheme implements Evaluator and Decrypter over the Paillier
// cryptosystem. Paillier is additively homomorphic only, so comparison and
// selection run inside this key-holding scheme and always return fresh
// randomized ciphertexts.
type PaillierScheme struct {
	keySize    int
	key        *PaillierKey
	privateKey *paillier.PrivateKey
	publicKey  *paillier.PublicKey
}

// NewPaillierScheme creates a scheme around stored key material.
func NewPaillierScheme(key *PaillierKey) (*PaillierScheme, error) {
	sk, err := key.privateKey()
	if err != nil {
		return nil, err
	}
	return &PaillierScheme{
		keySize:    2 * key.P.BitLen(),
		key:        key,
		privateKey: sk,
		publicKey:  &sk.PublicKey,
	}, nil
}

// GeneratePaillierScheme generates a fresh key pair of keySize bits.
func GeneratePaillierScheme(keySize int) (*PaillierScheme, error) {
	key, err := GeneratePaillierKey(keySize)
	if err != nil {
		return nil, fmt.Errorf("failed to generate Paillier key: %v", err)
	}
	return NewPaillierScheme(key)
}

// Name returns the name of the encryption scheme
func (p *PaillierScheme) Name() string {
	return fmt.Sprintf("Paillier-%d", p.keySize)
}

// KeySize returns the key size in bits
func (p *PaillierScheme) KeySize() int {
	return p.keySize
}

// PublicKey returns the underlying public key so clients can encrypt ballots.
func (p *PaillierScheme) PublicKey() *paillier.PublicKey {
	return p.publicKey
}

// Key returns the secret material for persistence.
func (p *PaillierScheme) Key() *PaillierKey {
	return p.key
}

// Evaluator returns a handle on the homomorphic operations that does not
// expose Decrypt.
func (p *PaillierScheme) Evaluator() Evaluator {
	return evaluator{p}
}

type evaluator struct {
	Evaluator
}

func (p *PaillierScheme) Encrypt(value *big.Int) (Ciphertext, error) {
	if p.publicKey == nil {
		return nil, ErrKeyNotSet
	}
	if value.Sign() < 0 {
		return nil, ErrNegativePlaintext
	}

	ct, err := paillier.Encrypt(p.publicKey, value.Bytes())
	if err != nil {
		return nil, fmt.Errorf("paillier encryption failed: %w", err)
	}
	return ct, nil
}

// Validate accepts c only when 0 < c < N^2 and gcd(c, N) = 1.
func (p *PaillierScheme) Validate(ct Ciphertext) error {
	if p.publicKey == nil {
		return ErrKeyNotSet
	}
	if len(ct) == 0 {
		return ErrEmptyCiphertext
	}

	c := new(big.Int).SetBytes(ct)
	if c.Sign() <= 0 || c.Cmp(p.publicKey.NSquared) >= 0 {
		return ErrInvalidCiphertext
	}
	if new(big.Int).GCD(nil, nil, c, p.publicKey.N).Cmp(big.NewInt(1)) != 0 {
		return ErrInvalidCiphertext
	}
	return nil
}

func (p *PaillierScheme) Zero() (Ciphertext, error) {
	return p.Encrypt(big.NewInt(0))
}

func (p *PaillierScheme) One() (Ciphertext, error) {
	return p.Encrypt(big.NewInt(1))
}

func (p *PaillierScheme) Add(a, b Ciphertext) (Ciphertext, error) {
	if p.publicKey == nil {
		return nil, ErrKeyNotSet
	}
	if len(a) == 0 || len(b) == 0 {
		return nil, ErrEmptyCiphertext
	}
	return paillier.AddCipher(p.publicKey, a, b), nil
}

func (p *PaillierScheme) GreaterOrEqual(a, b Ciphertext) (Ciphertext, error) {
	x, err := p.Decrypt(a)
	if err != nil {
		return nil, err
	}
	y, err := p.Decrypt(b)
	if err != nil {
		return nil, err
	}

	if x.Cmp(y) >= 0 {
		return p.One()
	}
	return p.Zero()
}

func (p *PaillierScheme) Select(cond, a, b Ciphertext) (Ciphertext, error) {
	c, err := p.Decrypt(cond)
	if err != nil {
		return nil, err
	}

	chosen := b
	if c.Sign() != 0 {
		chosen = a
	}
	return p.rerandomize(chosen)
}

// rerandomize adds a fresh Enc(0) so the output is unlinkable to its input.
func (p *PaillierScheme) rerandomize(ct Ciphertext) (Ciphertext, error) {
	zero, err := p.Zero()
	if err != nil {
		return nil, err
	}
	return p.Add(ct, zero)
}

// Decrypt decrypts a ciphertext back to its big.Int value
func (p *PaillierScheme) Decrypt(ct Ciphertext) (*big.Int, error) {
	if p.privateKey == nil {
		return nil, ErrKeyNotSet
	}
	if err := p.Validate(ct); err != nil {
		return nil, err
	}

	plaintext, err := paillier.Decrypt(p.privateKey, ct)
	if err != nil {
		return nil, fmt.Errorf("decryption failed: %w", err)
	}
	return new(big.Int).SetBytes(plaintext), nil
}
