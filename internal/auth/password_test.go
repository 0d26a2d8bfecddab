package auth

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestHasher() *Hasher {
	return NewHasher(bcrypt.MinCost)
}

func TestNewHasher_ClampsCost(t *testing.T) {
	assert.Equal(t, bcrypt.MinCost, NewHasher(0).Cost())
	assert.Equal(t, bcrypt.MaxCost, NewHasher(99).Cost())
	assert.Equal(t, 10, NewHasher(10).Cost())
}

func TestHashPassword_VerifiesRoundTrip(t *testing.T) {
	h := newTestHasher()

	for _, p := range []string{"secret1", "p", "pässwörd with spaces", strings.Repeat("x", MaxPasswordBytes)} {
		hash, err := h.HashPassword(p)
		require.NoError(t, err)
		assert.NotEqual(t, p, hash)
		assert.True(t, strings.HasPrefix(hash, "$2a$04$"), hash)

		ok, err := h.VerifyPassword(p, hash)
		require.NoError(t, err)
		assert.True(t, ok, "password %q should verify", p)
	}
}

func TestHashPassword_FreshSaltPerCall(t *testing.T) {
	h := newTestHasher()

	first, err := h.HashPassword("secret1")
	require.NoError(t, err)
	second, err := h.HashPassword("secret1")
	require.NoError(t, err)
	other, err := h.HashPassword("secret2")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.NotEqual(t, first, other)
}

func TestHashPassword_TooLong(t *testing.T) {
	_, err := newTestHasher().HashPassword(strings.Repeat("x", MaxPasswordBytes+1))
	require.ErrorIs(t, err, ErrPasswordTooLong)
}

func TestVerifyPassword_MismatchIsNotAnError(t *testing.T) {
	h := newTestHasher()
	hash, err := h.HashPassword("secret1")
	require.NoError(t, err)

	ok, err := h.VerifyPassword("wrong", hash)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = h.VerifyPassword("", hash)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyPassword_HashFromOtherCostVerifies(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("secret1"), 5)
	require.NoError(t, err)

	ok, err := newTestHasher().VerifyPassword("secret1", string(hash))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerifyPassword_MalformedHash(t *testing.T) {
	h := newTestHasher()

	for _, stored := range []string{"", "secret1", "$2a$04$short", "$9z$04$abcdefghijklmnopqrstuvwxyzabcdefghijklmnopqrstuvwxyz0"} {
		ok, err := h.VerifyPassword("secret1", stored)
		require.ErrorIs(t, err, ErrHashing, "stored %q", stored)
		assert.False(t, ok)
	}
}

func TestEqualize_DoesNotPanic(t *testing.T) {
	h := newTestHasher()
	h.Equalize("anything")
	h.Equalize("anything else")
	assert.NotEmpty(t, h.dummy)
}

func TestVerifyPassword_RejectsTextBeyondBcryptLimit(t *testing.T) {
	h := newTestHasher()
	password := strings.Repeat("p", MaxPasswordBytes)
	hash, err := h.HashPassword(password)
	require.NoError(t, err)

	ok, err := h.VerifyPassword(password+"-not-my-password", hash)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = h.VerifyPassword(password, hash)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEqualize_RetriesAfterDummyHashFailure(t *testing.T) {
	h := newTestHasher()
	h.generate = func([]byte, int) ([]byte, error) {
		return nil, errors.New("entropy unavailable")
	}
	h.Equalize("anything")
	assert.Nil(t, h.dummy)

	h.generate = bcrypt.GenerateFromPassword
	h.Equalize("anything")
	require.NotEmpty(t, h.dummy)
	cost, err := bcrypt.Cost(h.dummy)
	require.NoError(t, err)
	assert.Equal(t, h.Cost(), cost)
}
