package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHasher(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)

	digest, err := h.Hash("pw123456")
	require.NoError(t, err)
	assert.NotEqual(t, "pw123456", digest)
	assert.True(t, h.Verify("pw123456", digest))
	assert.False(t, h.Verify("wrong", digest))

	again, err := h.Hash("pw123456")
	require.NoError(t, err)
	assert.NotEqual(t, digest, again, "salted")
	assert.True(t, h.Verify("pw123456", again))
}

func TestHasher_CostOutOfRange(t *testing.T) {
	assert.Equal(t, bcrypt.DefaultCost, NewHasher(0).cost)
	assert.Equal(t, bcrypt.DefaultCost, NewHasher(99).cost)
	assert.Equal(t, 12, NewHasher(12).cost)
}

func TestHasher_VerifyGarbageDigest(t *testing.T) {
	assert.False(t, NewHasher(bcrypt.MinCost).Verify("pw", "not-a-bcrypt-digest"))
}
