package keys

import (
	"context"
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanasol-ws/dualauth/internal/fs"
)

func TestDiskKeyStore_GeneratesOnFirstUse(t *testing.T) {
	memFS := fs.NewMemFileSystem()
	store, err := NewDiskKeyStore(DiskKeyStoreConfig{
		Path:       "/keys/signing.json",
		FileSystem: memFS,
	})
	require.NoError(t, err)

	ctx := context.Background()

	record, err := store.PublicKeyRecord(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, record.KeyID)
	assert.Equal(t, "EdDSA", record.Algorithm)
	assert.Equal(t, "sig", record.Use)

	public, ok := record.Key.(ed25519.PublicKey)
	require.True(t, ok, "expected ed25519 public key, got %T", record.Key)

	sig, err := store.Sign(ctx, []byte("payload"))
	require.NoError(t, err)
	assert.True(t, ed25519.Verify(public, []byte("payload"), sig))

	// Record was persisted
	_, err = memFS.ReadFile("/keys/signing.json")
	require.NoError(t, err)
}

func TestDiskKeyStore_KeyIdentitySurvivesRestart(t *testing.T) {
	memFS := fs.NewMemFileSystem()
	ctx := context.Background()

	first, err := NewDiskKeyStore(DiskKeyStoreConfig{
		Path:       "/keys/signing.json",
		FileSystem: memFS,
	})
	require.NoError(t, err)

	firstRecord, err := first.PublicKeyRecord(ctx)
	require.NoError(t, err)

	// New store over the same filesystem simulates a restart
	second, err := NewDiskKeyStore(DiskKeyStoreConfig{
		Path:       "/keys/signing.json",
		FileSystem: memFS,
	})
	require.NoError(t, err)

	secondRecord, err := second.PublicKeyRecord(ctx)
	require.NoError(t, err)

	assert.Equal(t, firstRecord.KeyID, secondRecord.KeyID)
	assert.Equal(t, firstRecord.Key, secondRecord.Key)
}

func TestDiskKeyStore_CorruptRecordRegenerates(t *testing.T) {
	memFS := fs.NewMemFileSystem()
	require.NoError(t, memFS.WriteFileAtomic("/keys/signing.json", []byte("{not json"), 0600))

	store, err := NewDiskKeyStore(DiskKeyStoreConfig{
		Path:       "/keys/signing.json",
		FileSystem: memFS,
	})
	require.NoError(t, err)

	record, err := store.PublicKeyRecord(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, record.KeyID)
}

func TestDiskKeyStore_WrongAlgorithmRegenerates(t *testing.T) {
	memFS := fs.NewMemFileSystem()
	require.NoError(t, memFS.WriteFileAtomic("/keys/signing.json",
		[]byte(`{"id":"k1","algorithm":"RS256","private_key":"","public_key":"","created_at":"2026-01-01T00:00:00Z"}`), 0600))

	store, err := NewDiskKeyStore(DiskKeyStoreConfig{
		Path:       "/keys/signing.json",
		FileSystem: memFS,
	})
	require.NoError(t, err)

	keyID, err := store.KeyID(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, "k1", keyID)
}

func TestDiskKeyStore_RequiresPath(t *testing.T) {
	_, err := NewDiskKeyStore(DiskKeyStoreConfig{})
	assert.Error(t, err)
}
