package crypto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAPIKeyHasherRequiresSecret(t *testing.T) {
	_, err := NewAPIKeyHasher("")
	assert.Error(t, err)
}

func TestGenerateKeyPairShape(t *testing.T) {
	hasher, err := NewAPIKeyHasher("test-app-secret")
	require.NoError(t, err)

	keyID, secretKey, keyHash, err := hasher.GenerateKeyPair()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(keyID, "ak_"))
	assert.True(t, strings.HasPrefix(secretKey, "sk_"))
	assert.NotEmpty(t, keyHash)
	assert.NotContains(t, keyHash, secretKey, "the hash never embeds the secret")
}

func TestGenerateKeyPairIsUnique(t *testing.T) {
	hasher, err := NewAPIKeyHasher("test-app-secret")
	require.NoError(t, err)

	seen := make(map[string]struct{})
	for i := 0; i < 50; i++ {
		keyID, secretKey, _, err := hasher.GenerateKeyPair()
		require.NoError(t, err)
		_, dupID := seen[keyID]
		_, dupSecret := seen[secretKey]
		assert.False(t, dupID)
		assert.False(t, dupSecret)
		seen[keyID] = struct{}{}
		seen[secretKey] = struct{}{}
	}
}

func TestVerifySecretRoundTrip(t *testing.T) {
	hasher, err := NewAPIKeyHasher("test-app-secret")
	require.NoError(t, err)

	_, secretKey, keyHash, err := hasher.GenerateKeyPair()
	require.NoError(t, err)

	assert.True(t, hasher.VerifySecret(secretKey, keyHash))
	assert.False(t, hasher.VerifySecret("sk_wrong", keyHash))
	assert.False(t, hasher.VerifySecret(secretKey, "not-hex!"))
}

func TestVerifySecretDependsOnAppSecret(t *testing.T) {
	first, err := NewAPIKeyHasher("secret-one")
	require.NoError(t, err)
	second, err := NewAPIKeyHasher("secret-two")
	require.NoError(t, err)

	_, secretKey, keyHash, err := first.GenerateKeyPair()
	require.NoError(t, err)

	assert.False(t, second.VerifySecret(secretKey, keyHash),
		"a different app secret must not validate the hash")
}

func TestHasSecretPrefix(t *testing.T) {
	assert.True(t, HasSecretPrefix("sk_abc"))
	assert.False(t, HasSecretPrefix("ak_abc"))
	assert.False(t, HasSecretPrefix(""))
	assert.False(t, HasSecretPrefix("Bearer sk_abc"))
}
