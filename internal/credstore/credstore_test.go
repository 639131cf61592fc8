// ABOUTME: Tests for the encrypted credential store
// ABOUTME: Covers profile CRUD, encryption at rest, and key file handling

package credstore

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()

	store, err := Open(dir, nil)
	require.NoError(t, err)

	t.Cleanup(func() {
		store.Close()
	})

	return store, dir
}

func TestSaveAndLoad(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	profile := &Profile{
		Name:     "default",
		Endpoint: "wss://gateway.example.com:7411/ws",
		Email:    "op@example.com",
		Token:    "tok-abc123",
		Password: "hunter2",
	}
	require.NoError(t, store.Save(ctx, profile))

	got, err := store.Load(ctx, "default")
	require.NoError(t, err)

	assert.Equal(t, "default", got.Name)
	assert.Equal(t, "wss://gateway.example.com:7411/ws", got.Endpoint)
	assert.Equal(t, "op@example.com", got.Email)
	assert.Equal(t, "tok-abc123", got.Token)
	assert.Equal(t, "hunter2", got.Password)
	assert.False(t, got.CreatedAt.IsZero())
	assert.False(t, got.UpdatedAt.IsZero())
}

func TestSave_UpsertReplacesExisting(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, &Profile{
		Name:     "default",
		Endpoint: "ws://old.example.com/ws",
		Token:    "old-token",
		Password: "old-pass",
	}))
	require.NoError(t, store.Save(ctx, &Profile{
		Name:     "default",
		Endpoint: "ws://new.example.com/ws",
		Token:    "new-token",
	}))

	got, err := store.Load(ctx, "default")
	require.NoError(t, err)
	assert.Equal(t, "ws://new.example.com/ws", got.Endpoint)
	assert.Equal(t, "new-token", got.Token)
	assert.Empty(t, got.Password, "cleared fields must not survive an upsert")
}

func TestSave_RequiresName(t *testing.T) {
	store, _ := setupTestStore(t)
	require.Error(t, store.Save(context.Background(), &Profile{Endpoint: "ws://x/ws"}))
}

func TestLoad_NotFound(t *testing.T) {
	store, _ := setupTestStore(t)

	_, err := store.Load(context.Background(), "ghost")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDelete(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, &Profile{Name: "work", Endpoint: "ws://w/ws"}))
	require.NoError(t, store.Delete(ctx, "work"))

	_, err := store.Load(ctx, "work")
	require.ErrorIs(t, err, ErrNotFound)

	require.ErrorIs(t, store.Delete(ctx, "work"), ErrNotFound)
}

func TestList_OmitsSecrets(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, &Profile{Name: "b", Endpoint: "ws://b/ws", Token: "tok-b"}))
	require.NoError(t, store.Save(ctx, &Profile{Name: "a", Endpoint: "ws://a/ws", Email: "a@example.com", Password: "pw"}))

	profiles, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, profiles, 2)

	assert.Equal(t, "a", profiles[0].Name)
	assert.Equal(t, "b", profiles[1].Name)
	assert.Equal(t, "a@example.com", profiles[0].Email)
	for _, p := range profiles {
		assert.Empty(t, p.Token)
		assert.Empty(t, p.Password)
	}
}

func TestList_Empty(t *testing.T) {
	store, _ := setupTestStore(t)

	profiles, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, profiles)
}

func TestSecretsAreEncryptedAtRest(t *testing.T) {
	store, dir := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, &Profile{
		Name:     "default",
		Endpoint: "ws://g/ws",
		Token:    "super-secret-token",
		Password: "super-secret-password",
	}))

	// Read the raw columns straight out of the database file.
	db, err := sql.Open("sqlite", filepath.Join(dir, dbFileName))
	require.NoError(t, err)
	defer db.Close()

	var tokenCipher, passwordCipher []byte
	err = db.QueryRow(`SELECT token_cipher, password_cipher FROM credentials WHERE profile = 'default'`).
		Scan(&tokenCipher, &passwordCipher)
	require.NoError(t, err)

	assert.NotContains(t, string(tokenCipher), "super-secret-token")
	assert.NotContains(t, string(passwordCipher), "super-secret-password")
	assert.Greater(t, len(tokenCipher), nonceSize)
}

func TestEmptySecretsStayAbsent(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, &Profile{Name: "default", Endpoint: "ws://g/ws"}))

	got, err := store.Load(ctx, "default")
	require.NoError(t, err)
	assert.Empty(t, got.Token)
	assert.Empty(t, got.Password)
}

func TestKeyFile_CreatedWithTightPermissions(t *testing.T) {
	_, dir := setupTestStore(t)

	info, err := os.Stat(filepath.Join(dir, keyFileName))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
	assert.Equal(t, int64(keySize), info.Size())
}

func TestKeyFile_ReusedAcrossOpens(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	first, err := Open(dir, nil)
	require.NoError(t, err)
	require.NoError(t, first.Save(ctx, &Profile{Name: "default", Endpoint: "ws://g/ws", Token: "keep-me"}))
	require.NoError(t, first.Close())

	second, err := Open(dir, nil)
	require.NoError(t, err)
	defer second.Close()

	got, err := second.Load(ctx, "default")
	require.NoError(t, err)
	assert.Equal(t, "keep-me", got.Token, "secrets must decrypt under the persisted key")
}

func TestKeyFile_ReplacedKeyFailsDecryption(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	first, err := Open(dir, nil)
	require.NoError(t, err)
	require.NoError(t, first.Save(ctx, &Profile{Name: "default", Endpoint: "ws://g/ws", Token: "sealed"}))
	require.NoError(t, first.Close())

	// Simulate a lost key by replacing it with a fresh one.
	require.NoError(t, os.Remove(filepath.Join(dir, keyFileName)))

	second, err := Open(dir, nil)
	require.NoError(t, err)
	defer second.Close()

	_, err = second.Load(ctx, "default")
	require.Error(t, err)
}

func TestKeyFile_RejectsTruncatedKey(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, keyFileName), []byte("short"), 0600))

	_, err := Open(dir, nil)
	require.Error(t, err)
}

func TestSchemaVersion_StampedOnCreate(t *testing.T) {
	_, dir := setupTestStore(t)

	db, err := sql.Open("sqlite", filepath.Join(dir, dbFileName))
	require.NoError(t, err)
	defer db.Close()

	var version int
	require.NoError(t, db.QueryRow("PRAGMA user_version").Scan(&version))
	assert.Equal(t, schemaVersion, version)
}

func TestSchemaVersion_NewerDatabaseRefused(t *testing.T) {
	dir := t.TempDir()

	first, err := Open(dir, nil)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	// Stamp a version from a future build.
	db, err := sql.Open("sqlite", filepath.Join(dir, dbFileName))
	require.NoError(t, err)
	_, err = db.Exec("PRAGMA user_version = 99")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = Open(dir, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "newer")
}
