package hasher

import (
	"testing"

	"github.com/alexedwards/argon2id"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// cheap parameters keep the suite fast; the algorithm is the same.
var testParams = &argon2id.Params{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}

func TestHashVerifyRoundTrip(t *testing.T) {
	h := NewArgon2idHasherWithParams("pepper", testParams)

	for _, pwd := range []string{"Str0ng!Pw", "a", "пароль-с-юникодом", "  spaces  "} {
		hash, err := h.Hash(pwd)
		require.NoError(t, err)

		ok, err := h.Verify(pwd, hash)
		require.NoError(t, err)
		require.True(t, ok, pwd)

		ok, err = h.Verify(pwd+"x", hash)
		require.NoError(t, err)
		require.False(t, ok, pwd)
	}
}

func TestHash_SaltedPerCall(t *testing.T) {
	h := NewArgon2idHasherWithParams("", testParams)

	a, err := h.Hash("Str0ng!Pw")
	require.NoError(t, err)
	b, err := h.Hash("Str0ng!Pw")
	require.NoError(t, err)
	require.NotEqual(t, a, b)
	require.False(t, h.NeedsRehash(a))
}

func TestHash_Empty(t *testing.T) {
	h := NewArgon2idHasherWithParams("", testParams)
	_, err := h.Hash("")
	require.ErrorIs(t, err, ErrEmptyPassword)
}

func TestVerify_PepperMatters(t *testing.T) {
	hash, err := NewArgon2idHasherWithParams("one", testParams).Hash("Str0ng!Pw")
	require.NoError(t, err)

	ok, err := NewArgon2idHasherWithParams("two", testParams).Verify("Str0ng!Pw", hash)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestVerify_LegacyBcrypt(t *testing.T) {
	legacy, err := bcrypt.GenerateFromPassword([]byte("Str0ng!Pw"), bcrypt.MinCost)
	require.NoError(t, err)

	h := NewArgon2idHasherWithParams("pepper", testParams)
	require.True(t, h.NeedsRehash(string(legacy)))

	ok, err := h.Verify("Str0ng!Pw", string(legacy))
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = h.Verify("wrong", string(legacy))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestVerify_GarbageHash(t *testing.T) {
	h := NewArgon2idHasherWithParams("", testParams)
	_, err := h.Verify("x", "not-a-hash")
	require.Error(t, err)
}
