package password

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHasher_HashAndVerify(t *testing.T) {
	h, err := New(WithCost(bcrypt.MinCost))
	require.NoError(t, err)

	hash, err := h.Hash("s3cret")
	require.NoError(t, err)

	assert.True(t, h.Verify("s3cret", hash))
	assert.False(t, h.Verify("wrong", hash))
	assert.False(t, h.Verify("s3cret", "not-a-hash"))
}

func TestHasher_DebounceOnlyOnMismatch(t *testing.T) {
	var slept []time.Duration
	h, err := New(
		WithCost(bcrypt.MinCost),
		WithDebounce(time.Second, 2*time.Second),
		WithSleeper(func(d time.Duration) { slept = append(slept, d) }),
	)
	require.NoError(t, err)

	hash, err := h.Hash("pw")
	require.NoError(t, err)

	require.True(t, h.Verify("pw", hash))
	assert.Empty(t, slept)

	require.False(t, h.Verify("nope", hash))
	require.Len(t, slept, 1)
	assert.GreaterOrEqual(t, slept[0], time.Second)
	assert.LessOrEqual(t, slept[0], 2*time.Second)
}

func TestHasher_NeedsRehash(t *testing.T) {
	low, err := New(WithCost(bcrypt.MinCost))
	require.NoError(t, err)
	high, err := New(WithCost(bcrypt.MinCost + 1))
	require.NoError(t, err)

	hash, err := low.Hash("pw")
	require.NoError(t, err)

	assert.False(t, low.NeedsRehash(hash))
	assert.True(t, high.NeedsRehash(hash))
	assert.True(t, low.NeedsRehash("garbage"))
}

func TestNew_RejectsInvalidCost(t *testing.T) {
	_, err := New(WithCost(bcrypt.MaxCost + 1))
	require.Error(t, err)
}
