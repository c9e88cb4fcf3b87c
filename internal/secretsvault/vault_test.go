package secretsvault_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/r3elabs/execforge/internal/domain/secret"
	"github.com/r3elabs/execforge/internal/secretsvault"
	"github.com/r3elabs/execforge/internal/storage/memory"
	"github.com/r3elabs/execforge/pkg/logger"
)

func TestSetGetRoundTrip(t *testing.T) {
	keyFile := filepath.Join(t.TempDir(), ".env_key")
	store := memory.New()
	vault, err := secretsvault.Open(store, keyFile, logger.NewDefault("secretsvault"))
	require.NoError(t, err)

	_, err = vault.Set(context.Background(), "API_KEY", "super-secret", "")
	require.NoError(t, err)

	value, ok := vault.Get(context.Background(), "API_KEY")
	require.True(t, ok)
	require.Equal(t, "super-secret", value)
}

func TestKeyFilePersistsAcrossReopen(t *testing.T) {
	keyFile := filepath.Join(t.TempDir(), ".env_key")
	store := memory.New()

	v1, err := secretsvault.Open(store, keyFile, logger.NewDefault("secretsvault"))
	require.NoError(t, err)
	_, err = v1.Set(context.Background(), "TOKEN", "abc", "")
	require.NoError(t, err)

	v2, err := secretsvault.Open(store, keyFile, logger.NewDefault("secretsvault"))
	require.NoError(t, err)
	value, ok := v2.Get(context.Background(), "TOKEN")
	require.True(t, ok)
	require.Equal(t, "abc", value)
}

func TestAllDecryptedSkipsUndecryptableEntries(t *testing.T) {
	store := memory.New()
	keyFile := filepath.Join(t.TempDir(), ".env_key")
	vault, err := secretsvault.Open(store, keyFile, logger.NewDefault("secretsvault"))
	require.NoError(t, err)

	_, err = vault.Set(context.Background(), "GOOD", "value", "")
	require.NoError(t, err)

	// Corrupt a second entry directly in the store to simulate key rotation.
	_, err = store.SetSecret(context.Background(), secret.Secret{Name: "BAD", Ciphertext: []byte("not-valid-ciphertext")})
	require.NoError(t, err)

	all := vault.AllDecrypted(context.Background())
	require.Equal(t, "value", all["GOOD"])
	_, exists := all["BAD"]
	require.False(t, exists)
}
