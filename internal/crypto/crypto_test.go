package crypto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptRoundtrip(t *testing.T) {
	value, err := Encrypt("pass", "Team offsite")
	require.NoError(t, err)
	require.True(t, IsEncrypted(value))
	require.NotContains(t, value, "offsite")

	plain, err := Decrypt("pass", value)
	require.NoError(t, err)
	require.Equal(t, "Team offsite", plain)

	other, err := Encrypt("pass", "Team offsite")
	require.NoError(t, err)
	require.NotEqual(t, value, other)
}

func TestDecryptFailures(t *testing.T) {
	value, err := Encrypt("pass", "secret")
	require.NoError(t, err)

	_, err = Decrypt("wrong", value)
	require.ErrorIs(t, err, ErrAuthFailed)

	_, err = Decrypt("pass", "plain title")
	require.ErrorIs(t, err, ErrNotEncrypted)

	_, err = Decrypt("pass", Prefix+"!!!")
	require.ErrorIs(t, err, ErrInvalid)

	_, err = Decrypt("pass", Prefix+"AAAA")
	require.ErrorIs(t, err, ErrInvalid)

	_, err = Encrypt("", "secret")
	require.Error(t, err)
}

func TestDerivePasswordIsDeterministic(t *testing.T) {
	seed, err := NewSeed()
	require.NoError(t, err)
	require.Len(t, seed, SeedSize)

	key, err := IdentityKey([]byte("identity secret"), "0xA1")
	require.NoError(t, err)
	again, err := IdentityKey([]byte("identity secret"), "0x00a1")
	require.NoError(t, err)
	require.Equal(t, key, again)

	p1, err := DerivePassword(seed, key)
	require.NoError(t, err)
	p2, err := DerivePassword(seed, key)
	require.NoError(t, err)
	require.Equal(t, p1, p2)
	require.False(t, strings.ContainsAny(p1, "+/="))

	otherKey, err := IdentityKey([]byte("identity secret"), "0xb2")
	require.NoError(t, err)
	p3, err := DerivePassword(seed, otherKey)
	require.NoError(t, err)
	require.NotEqual(t, p1, p3)

	_, err = IdentityKey(nil, "0xa1")
	require.Error(t, err)
	_, err = DerivePassword(nil, key)
	require.Error(t, err)
}

func TestResponseSeedRoundtrip(t *testing.T) {
	key, err := IdentityKey([]byte("respondent"), "0xb2")
	require.NoError(t, err)

	seed, err := SealResponseSeed("campaign password", key)
	require.NoError(t, err)

	password, err := OpenResponseSeed(seed, key)
	require.NoError(t, err)
	require.Equal(t, "campaign password", password)

	otherKey, err := IdentityKey([]byte("someone else"), "0xb2")
	require.NoError(t, err)
	_, err = OpenResponseSeed(seed, otherKey)
	require.ErrorIs(t, err, ErrAuthFailed)

	_, err = OpenResponseSeed([]byte{1, 2, 3}, key)
	require.ErrorIs(t, err, ErrInvalid)
}

func TestRandomPassword(t *testing.T) {
	a, err := RandomPassword()
	require.NoError(t, err)
	b, err := RandomPassword()
	require.NoError(t, err)
	require.NotEqual(t, a, b)
	require.Len(t, a, 32)
}
