package artifacts

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	model := Artifact{Name: "MCOMP.mzn", MediaType: MediaTypeModel, Data: []byte("constraint true;\n")}
	d, err := store.Put(ctx, model)
	require.NoError(t, err)
	assert.Equal(t, Digest(model.Data), d.Digest)
	assert.Equal(t, "MCOMP.mzn", d.Name)
	assert.Equal(t, len(model.Data), d.Size)

	again, err := store.Put(ctx, Artifact{Name: "copy.mzn", Data: model.Data})
	require.NoError(t, err)
	assert.Equal(t, d.Digest, again.Digest)

	ok, err := store.Exists(ctx, d.Digest)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := store.Get(ctx, d.Digest)
	require.NoError(t, err)
	assert.Equal(t, model.Data, got)

	require.NoError(t, store.Delete(ctx, d.Digest))
	ok, err = store.Exists(ctx, d.Digest)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = store.Get(ctx, d.Digest)
	require.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, store.Delete(ctx, d.Digest), "deleting a missing blob is not an error")
}

func TestFileStoreRejectsBadDigests(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	for _, digest := range []string{"", "md5:abcd", "sha256:zz", "sha256:abcd", "sha256:../../etc/passwd"} {
		_, err := store.Get(ctx, digest)
		assert.ErrorIs(t, err, ErrInvalidDigest, digest)
		_, err = store.Exists(ctx, digest)
		assert.ErrorIs(t, err, ErrInvalidDigest, digest)
	}
}

func TestExportWritesNamedFile(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	d, err := store.Put(ctx, Artifact{Name: "out/MCOMP.dzn", MediaType: MediaTypeData, Data: []byte("start_semester = 1;\n")})
	require.NoError(t, err)

	dir := filepath.Join(t.TempDir(), "export")
	path, err := Export(ctx, store, d, dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "MCOMP.dzn"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "start_semester = 1;\n", string(data))
}

func TestNewStoreFromEnv(t *testing.T) {
	ctx := context.Background()

	t.Run("defaults to filesystem under DATA_DIR", func(t *testing.T) {
		dir := t.TempDir()
		t.Setenv("ARTIFACT_STORAGE_TYPE", "")
		t.Setenv("DATA_DIR", dir)

		store, err := NewStoreFromEnv(ctx)
		require.NoError(t, err)
		require.IsType(t, &FileStore{}, store)
		assert.DirExists(t, filepath.Join(dir, "artifacts"))
	})

	t.Run("s3 requires a bucket", func(t *testing.T) {
		t.Setenv("ARTIFACT_STORAGE_TYPE", "s3")
		t.Setenv("ARTIFACT_S3_BUCKET", "")

		_, err := NewStoreFromEnv(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ARTIFACT_S3_BUCKET")
	})

	t.Run("unknown type", func(t *testing.T) {
		t.Setenv("ARTIFACT_STORAGE_TYPE", "tape")

		_, err := NewStoreFromEnv(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown artifact storage type")
	})
}
