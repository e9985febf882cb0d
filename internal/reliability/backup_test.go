package reliability

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStorage struct {
	objects map[string][]byte
	deleted []string
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: make(map[string][]byte)}
}

func (f *fakeStorage) Upload(ctx context.Context, key string, body io.Reader) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	f.objects[key] = data
	return nil
}

func (f *fakeStorage) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	var objects []ObjectInfo
	for key, data := range f.objects {
		objects = append(objects, ObjectInfo{Key: key, SizeBytes: int64(len(data))})
	}
	return objects, nil
}

func (f *fakeStorage) Delete(ctx context.Context, key string) error {
	delete(f.objects, key)
	f.deleted = append(f.deleted, key)
	return nil
}

func seedDataDir(t *testing.T) string {
	t.Helper()

	dataDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "performance.db"), []byte("performance payload"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "cache.db"), []byte("cache payload"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "notes.txt"), []byte("not a database"), 0644))
	return dataDir
}

func readArchive(t *testing.T, data []byte) map[string][]byte {
	t.Helper()

	gz, err := gzip.NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer gz.Close()

	files := make(map[string][]byte)
	tr := tar.NewReader(gz)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)

		content, err := io.ReadAll(tr)
		require.NoError(t, err)
		files[header.Name] = content
	}
	return files
}

func TestCreateAndUploadBackup(t *testing.T) {
	dataDir := seedDataDir(t)
	storage := newFakeStorage()
	fixed := time.Date(2024, 6, 3, 2, 0, 0, 0, time.UTC)

	svc := NewBackupService(storage, dataDir, 14, zerolog.Nop()).
		WithClock(func() time.Time { return fixed })

	require.NoError(t, svc.CreateAndUploadBackup(context.Background()))

	require.Len(t, storage.objects, 1)
	archiveName := "marketmind-backup-2024-06-03-020000.tar.gz"
	data, ok := storage.objects[archiveName]
	require.True(t, ok, "archive name must embed the clock timestamp")

	files := readArchive(t, data)
	assert.Equal(t, []byte("performance payload"), files["performance.db"])
	assert.Equal(t, []byte("cache payload"), files["cache.db"])
	assert.NotContains(t, files, "notes.txt", "only .db files are archived")

	var metadata BackupMetadata
	require.NoError(t, json.Unmarshal(files["backup-metadata.json"], &metadata))
	require.Len(t, metadata.Databases, 2)
	assert.Equal(t, "cache", metadata.Databases[0].Name)
	assert.Equal(t, int64(len("cache payload")), metadata.Databases[0].SizeBytes)
	assert.Contains(t, metadata.Databases[0].Checksum, "sha256:")
	assert.Equal(t, fixed, metadata.Timestamp)

	entries, err := os.ReadDir(dataDir)
	require.NoError(t, err)
	for _, entry := range entries {
		assert.NotEqual(t, "backup-staging", entry.Name(), "staging directory is cleaned up")
	}
}

func TestCreateAndUploadBackup_EmptyDataDir(t *testing.T) {
	svc := NewBackupService(newFakeStorage(), t.TempDir(), 14, zerolog.Nop())

	err := svc.CreateAndUploadBackup(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no database files")
}

func TestListBackups_SortedNewestFirst(t *testing.T) {
	storage := newFakeStorage()
	storage.objects["marketmind-backup-2024-06-01-020000.tar.gz"] = []byte("a")
	storage.objects["marketmind-backup-2024-06-03-020000.tar.gz"] = []byte("b")
	storage.objects["marketmind-backup-2024-06-02-020000.tar.gz"] = []byte("c")
	storage.objects["marketmind-backup-garbage.tar.gz"] = []byte("d")

	svc := NewBackupService(storage, t.TempDir(), 14, zerolog.Nop())

	backups, err := svc.ListBackups(context.Background())
	require.NoError(t, err)
	require.Len(t, backups, 3, "unparseable filenames are skipped")
	assert.Equal(t, "marketmind-backup-2024-06-03-020000.tar.gz", backups[0].Filename)
	assert.Equal(t, "marketmind-backup-2024-06-01-020000.tar.gz", backups[2].Filename)
}

func TestPruneOldBackups(t *testing.T) {
	storage := newFakeStorage()
	for _, day := range []string{"01", "02", "03", "04", "05"} {
		storage.objects["marketmind-backup-2024-06-"+day+"-020000.tar.gz"] = []byte("x")
	}

	svc := NewBackupService(storage, t.TempDir(), 3, zerolog.Nop())

	require.NoError(t, svc.PruneOldBackups(context.Background()))

	assert.Len(t, storage.objects, 3)
	assert.ElementsMatch(t, []string{
		"marketmind-backup-2024-06-01-020000.tar.gz",
		"marketmind-backup-2024-06-02-020000.tar.gz",
	}, storage.deleted, "the two oldest archives are pruned")
}

func TestPruneOldBackups_RetentionDisabled(t *testing.T) {
	storage := newFakeStorage()
	for _, day := range []string{"01", "02", "03", "04", "05"} {
		storage.objects["marketmind-backup-2024-06-"+day+"-020000.tar.gz"] = []byte("x")
	}

	svc := NewBackupService(storage, t.TempDir(), 0, zerolog.Nop())

	require.NoError(t, svc.PruneOldBackups(context.Background()))
	assert.Len(t, storage.objects, 5)
	assert.Empty(t, storage.deleted)
}
