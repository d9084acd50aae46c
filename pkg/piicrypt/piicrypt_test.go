package piicrypt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCipher_RoundTrip(t *testing.T) {
	c, err := New("local-dev-secret")
	require.NoError(t, err)

	enc, err := c.Encrypt("jane.doe@example.com")
	require.NoError(t, err)
	assert.NotEqual(t, "jane.doe@example.com", enc)

	plain, err := c.Decrypt(enc)
	require.NoError(t, err)
	assert.Equal(t, "jane.doe@example.com", plain)
}

func TestCipher_EmptyPassthrough(t *testing.T) {
	c, err := New("local-dev-secret")
	require.NoError(t, err)

	enc, err := c.Encrypt("")
	require.NoError(t, err)
	assert.Empty(t, enc)

	plain, err := c.Decrypt("")
	require.NoError(t, err)
	assert.Empty(t, plain)
}

func TestNew_RequiresSecret(t *testing.T) {
	_, err := New("")
	assert.Error(t, err)
}
