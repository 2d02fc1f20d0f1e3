package security_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/watchfi/storefront/pkg/config"
	"github.com/watchfi/storefront/pkg/security"
)

var cheap = config.PasswordConfig{ArgonMemoryKB: 8192, ArgonTime: 1, ArgonParallelism: 1, ArgonSaltLen: 16, ArgonKeyLen: 32}

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := security.HashPassword("very-secure-password", cheap)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$v=19$m=8192,t=1,p=1$"), hash)

	ok, err := security.VerifyPassword("very-secure-password", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = security.VerifyPassword("bogus-password", hash)
	require.NoError(t, err)
	assert.False(t, ok)

	again, err := security.HashPassword("very-secure-password", cheap)
	require.NoError(t, err)
	assert.NotEqual(t, hash, again, "salts must differ")
}

func TestVerifyPasswordRejectsMalformedHashes(t *testing.T) {
	for _, encoded := range []string{
		"not-a-hash",
		"$argon2i$v=19$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$a2V5",
		"$argon2id$v=16$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$a2V5",
		"$argon2id$v=19$m=99999999,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$a2V5",
		"$argon2id$v=19$m=8192,t=1,p=1$!!!$a2V5",
		"$argon2id$v=19$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$",
	} {
		_, err := security.VerifyPassword("pw", encoded)
		assert.True(t, errors.Is(err, security.ErrInvalidHash), encoded)
	}
}

func TestNeedsRehash(t *testing.T) {
	hash, err := security.HashPassword("pw-for-rehash", cheap)
	require.NoError(t, err)

	assert.False(t, security.NeedsRehash(hash, cheap))
	stronger := cheap
	stronger.ArgonTime = 3
	assert.True(t, security.NeedsRehash(hash, stronger))
	assert.True(t, security.NeedsRehash("garbage", cheap))
}

func TestParamsFromConfigClamps(t *testing.T) {
	p := security.ParamsFromConfig(config.PasswordConfig{ArgonMemoryKB: 1, ArgonParallelism: 900, ArgonKeyLen: 4096})
	assert.Equal(t, uint32(8*1024), p.MemoryKB)
	assert.Equal(t, uint32(1), p.Iterations)
	assert.Equal(t, uint8(16), p.Parallelism)
	assert.Equal(t, uint32(16), p.SaltLen)
	assert.Equal(t, uint32(64), p.KeyLen)
}

func TestGenerateTempPassword(t *testing.T) {
	_, err := security.GenerateTempPassword(4)
	assert.Error(t, err)

	pw, err := security.GenerateTempPassword(24)
	require.NoError(t, err)
	assert.Len(t, pw, 24)
	assert.NotContainsf(t, pw, "0", "look-alike characters are excluded")
	assert.NotContains(t, pw, "O")
	assert.NotContains(t, pw, "l")
}
