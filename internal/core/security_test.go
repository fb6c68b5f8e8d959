// AngelaMos | 2026
// security_test.go

package core

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashPasswordIsSalted(t *testing.T) {
	first, err := HashPassword("correct horse")
	require.NoError(t, err)
	second, err := HashPassword("correct horse")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.True(t, strings.HasPrefix(first, "$argon2id$"))
	assert.Len(t, strings.Split(first, "$"), 6)
}

func TestVerifyPassword(t *testing.T) {
	hash, err := HashPassword("s3cret-pass")
	require.NoError(t, err)

	tests := []struct {
		name     string
		password string
		want     bool
	}{
		{"correct", "s3cret-pass", true},
		{"wrong", "s3cret-pasS", false},
		{"empty", "", false},
		{"prefix", "s3cret", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := VerifyPassword(tt.password, hash)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestVerifyPasswordMalformedDigest(t *testing.T) {
	digests := []string{
		"",
		"plaintext",
		"$argon2i$v=19$m=65536,t=1,p=4$c2FsdA$aGFzaA",
		"$argon2id$v=1$m=65536,t=1,p=4$c2FsdA$aGFzaA",
		"$argon2id$v=19$garbage$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=65536,t=1,p=4$!!!$aGFzaA",
		"$argon2id$v=19$m=65536,t=1,p=4$c2FsdA$",
		"$2a$10$short",
	}

	for _, digest := range digests {
		t.Run(digest, func(t *testing.T) {
			ok, err := VerifyPassword("anything", digest)
			assert.False(t, ok)
			assert.ErrorIs(t, err, ErrHashFormat)
		})
	}
}

func TestVerifyPasswordBcrypt(t *testing.T) {
	legacy, err := bcrypt.GenerateFromPassword([]byte("legacy-pass"), bcrypt.MinCost)
	require.NoError(t, err)

	ok, err := VerifyPassword("legacy-pass", string(legacy))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyPassword("other-pass", string(legacy))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyPasswordWithRehashUpgradesBcrypt(t *testing.T) {
	legacy, err := bcrypt.GenerateFromPassword([]byte("legacy-pass"), bcrypt.MinCost)
	require.NoError(t, err)

	ok, newHash, err := VerifyPasswordWithRehash("legacy-pass", string(legacy))
	require.NoError(t, err)
	assert.True(t, ok)
	require.NotEmpty(t, newHash)
	assert.True(t, strings.HasPrefix(newHash, "$argon2id$"))

	ok, err = VerifyPassword("legacy-pass", newHash)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerifyPasswordWithRehashCurrentParams(t *testing.T) {
	hash, err := HashPassword("fresh-pass")
	require.NoError(t, err)

	ok, newHash, err := VerifyPasswordWithRehash("fresh-pass", hash)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, newHash)
}

func TestVerifyPasswordTimingSafe(t *testing.T) {
	hash, err := HashPassword("pw-12345")
	require.NoError(t, err)

	ok, _, err := VerifyPasswordTimingSafe("pw-12345", &hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _, err = VerifyPasswordTimingSafe("dummy_password_for_timing_attack_prevention", nil)
	require.NoError(t, err)
	assert.False(t, ok, "missing account must never verify")

	empty := ""
	ok, _, err = VerifyPasswordTimingSafe("pw-12345", &empty)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHashToken(t *testing.T) {
	a := HashToken("token-a")
	assert.Len(t, a, 64)
	assert.Equal(t, a, HashToken("token-a"))
	assert.NotEqual(t, a, HashToken("token-b"))
}
