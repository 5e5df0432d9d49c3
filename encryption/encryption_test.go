package encryption

import (
	"bytes"
	"encoding/json"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	schemeOnce sync.Once
	testScheme *PaillierScheme
)

func scheme(t *testing.T) *PaillierScheme {
	t.Helper()
	schemeOnce.Do(func() {
		var err error
		testScheme, err = GeneratePaillierScheme(512)
		if err != nil {
			panic(err)
		}
	})
	return testScheme
}

func decrypt(t *testing.T, ct Ciphertext) int64 {
	t.Helper()
	v, err := scheme(t).Decrypt(ct)
	require.NoError(t, err)
	return v.Int64()
}

func encrypt(t *testing.T, v int64) Ciphertext {
	t.Helper()
	ct, err := scheme(t).Encrypt(big.NewInt(v))
	require.NoError(t, err)
	return ct
}

func TestPaillierScheme_Add(t *testing.T) {
	sum, err := scheme(t).Add(encrypt(t, 20), encrypt(t, 22))
	require.NoError(t, err)
	assert.Equal(t, int64(42), decrypt(t, sum))

	_, err = scheme(t).Add(nil, encrypt(t, 1))
	assert.Equal(t, ErrEmptyCiphertext, err)
}

func TestPaillierScheme_Randomized(t *testing.T) {
	a := encrypt(t, 7)
	b := encrypt(t, 7)
	assert.NotEqual(t, a, b)
	assert.Equal(t, decrypt(t, a), decrypt(t, b))
}

func TestPaillierScheme_GreaterOrEqual(t *testing.T) {
	tests := map[string]struct {
		a, b int64
		want int64
	}{
		"greater": {a: 5, b: 1, want: 1},
		"equal":   {a: 1, b: 1, want: 1},
		"less":    {a: 0, b: 1, want: 0},
	}
	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			ge, err := scheme(t).GreaterOrEqual(encrypt(t, test.a), encrypt(t, test.b))
			require.NoError(t, err)
			assert.Equal(t, test.want, decrypt(t, ge))
		})
	}
}

func TestPaillierScheme_Select(t *testing.T) {
	one, err := scheme(t).One()
	require.NoError(t, err)
	zero, err := scheme(t).Zero()
	require.NoError(t, err)
	a, b := encrypt(t, 10), encrypt(t, 20)

	chosen, err := scheme(t).Select(one, a, b)
	require.NoError(t, err)
	assert.Equal(t, int64(10), decrypt(t, chosen))
	assert.NotEqual(t, a, chosen, "selection re-randomizes its output")

	chosen, err = scheme(t).Select(zero, a, b)
	require.NoError(t, err)
	assert.Equal(t, int64(20), decrypt(t, chosen))
}

func TestPaillierScheme_Errors(t *testing.T) {
	_, err := scheme(t).Encrypt(big.NewInt(-1))
	assert.Equal(t, ErrNegativePlaintext, err)

	empty := &PaillierScheme{keySize: 512}
	_, err = empty.Encrypt(big.NewInt(1))
	assert.Equal(t, ErrKeyNotSet, err)
	_, err = empty.Decrypt(encrypt(t, 1))
	assert.Equal(t, ErrKeyNotSet, err)

	_, err = NewPaillierScheme(nil)
	assert.Equal(t, ErrKeyNotSet, err)

	_, err = scheme(t).Decrypt(nil)
	assert.Equal(t, ErrEmptyCiphertext, err)
}

func TestPaillierScheme_RebuildFromKey(t *testing.T) {
	original := scheme(t)
	data, err := json.Marshal(original.Key())
	require.NoError(t, err)

	var key PaillierKey
	require.NoError(t, json.Unmarshal(data, &key))
	rebuilt, err := NewPaillierScheme(&key)
	require.NoError(t, err)

	assert.Equal(t, original.Name(), rebuilt.Name())
	assert.Equal(t, 0, original.PublicKey().N.Cmp(rebuilt.PublicKey().N))

	v, err := rebuilt.Decrypt(encrypt(t, 42))
	require.NoError(t, err)
	assert.Equal(t, int64(42), v.Int64())

	ct, err := rebuilt.Encrypt(big.NewInt(7))
	require.NoError(t, err)
	assert.Equal(t, int64(7), decrypt(t, ct))
}

func TestPaillierScheme_RebuildRejectsBadKey(t *testing.T) {
	p := scheme(t).Key().P
	tests := []struct {
		name string
		key  *PaillierKey
	}{
		{"missing prime", &PaillierKey{P: p}},
		{"equal primes", &PaillierKey{P: p, Q: p}},
		{"composite", &PaillierKey{P: p, Q: new(big.Int).Add(p, big.NewInt(1))}},
		{"too small", &PaillierKey{P: big.NewInt(11), Q: big.NewInt(13)}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := NewPaillierScheme(test.key)
			assert.Error(t, err)
		})
	}
}

func TestPaillierScheme_Validate(t *testing.T) {
	pk := scheme(t).PublicKey()
	tests := []struct {
		name string
		ct   Ciphertext
		want error
	}{
		{"fresh ciphertext", encrypt(t, 3), nil},
		{"empty", nil, ErrEmptyCiphertext},
		{"zero", Ciphertext{0, 0}, ErrInvalidCiphertext},
		{"too large", bytes.Repeat([]byte{0xff}, 200), ErrInvalidCiphertext},
		{"equal to N squared", pk.NSquared.Bytes(), ErrInvalidCiphertext},
		{"shares a factor with N", pk.N.Bytes(), ErrInvalidCiphertext},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.want, scheme(t).Validate(test.ct))
		})
	}

	_, err := scheme(t).Decrypt(bytes.Repeat([]byte{0xff}, 200))
	assert.Equal(t, ErrInvalidCiphertext, err)
}

func TestPaillierScheme_EvaluatorHidesDecrypt(t *testing.T) {
	ev := scheme(t).Evaluator()
	_, ok := ev.(Decrypter)
	assert.False(t, ok)

	sum, err := ev.Add(encrypt(t, 1), encrypt(t, 2))
	require.NoError(t, err)
	assert.Equal(t, int64(3), decrypt(t, sum))
	assert.Equal(t, scheme(t).Name(), ev.Name())
}

func TestCryptoService_StateHash(t *testing.T) {
	cs := NewCryptoService()
	instance := common.HexToAddress("0x01")
	a, b := Ciphertext{1, 2}, Ciphertext{3}

	h := cs.StateHash([]Ciphertext{a, b}, instance)
	assert.Equal(t, h, cs.StateHash([]Ciphertext{a, b}, instance))
	assert.NotEqual(t, h, cs.StateHash([]Ciphertext{b, a}, instance))
	assert.NotEqual(t, h, cs.StateHash([]Ciphertext{a, b}, common.HexToAddress("0x02")))
	// Length prefixes keep concatenation-equal lists apart.
	assert.NotEqual(t, h, cs.StateHash([]Ciphertext{{1}, {2, 3}}, instance))
}

func TestCryptoService_SignRecover(t *testing.T) {
	cs := NewCryptoService()
	key, err := cs.GenerateKeyPair()
	require.NoError(t, err)

	digest := cs.ResponseDigest("req", []byte("payload"))
	sig, err := cs.Sign(digest, key)
	require.NoError(t, err)
	require.Len(t, sig, crypto.SignatureLength)

	addr, err := cs.Recover(digest, sig)
	require.NoError(t, err)
	assert.Equal(t, cs.AddressOf(key), addr)

	_, err = cs.Recover(digest, sig[:64])
	assert.Equal(t, ErrInvalidSignature, err)
}

func TestPlaintextCodec(t *testing.T) {
	payload, err := EncodePlaintexts([]*big.Int{big.NewInt(5), big.NewInt(3)})
	require.NoError(t, err)
	require.Len(t, payload, 2*WordSize)

	values, err := DecodePlaintexts(payload, 2)
	require.NoError(t, err)
	assert.Equal(t, []uint64{5, 3}, values)

	tests := map[string]struct {
		payload []byte
		n       int
	}{
		"short":       {payload: payload[:63], n: 2},
		"long":        {payload: append(append([]byte(nil), payload...), 0), n: 2},
		"wrong count": {payload: payload, n: 3},
		"zero count":  {payload: nil, n: 0},
		"overflow":    {payload: append([]byte{1}, make([]byte, 31)...), n: 1},
	}
	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := DecodePlaintexts(test.payload, test.n)
			assert.Equal(t, ErrMalformedPayload, err)
		})
	}

	_, err = EncodePlaintexts([]*big.Int{big.NewInt(-1)})
	assert.Equal(t, ErrMalformedPayload, err)
}
