package backup

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeInputs(t *testing.T, dir string, files map[string]string) []string {
	t.Helper()

	var paths []string
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		paths = append(paths, path)
	}
	return paths
}

func TestArchiveRoundTrip(t *testing.T) {
	for _, codec := range []CompressionCodec{CodecZstd, CodecLZ4} {
		t.Run(string(codec), func(t *testing.T) {
			inputDir := t.TempDir()
			contents := map[string]string{
				"app.sql":   "CREATE TABLE users (id INT);",
				"audit.sql": "CREATE TABLE events (id INT);",
			}
			files := writeInputs(t, inputDir, contents)

			archiver := NewArchiver(codec, 3, testLogger())
			outputPath := filepath.Join(t.TempDir(), "mysql_20260829_020000"+archiver.Extension(false))

			info, err := archiver.Package(files, outputPath, "")
			require.NoError(t, err)
			assert.Equal(t, outputPath, info.Path)
			assert.False(t, info.Encrypted)
			assert.Positive(t, info.Size)

			destDir := t.TempDir()
			require.NoError(t, archiver.Unpack(outputPath, destDir, ""))

			for name, expected := range contents {
				data, err := os.ReadFile(filepath.Join(destDir, name))
				require.NoError(t, err)
				assert.Equal(t, expected, string(data))
			}
		})
	}
}

func TestArchiveSealedRoundTrip(t *testing.T) {
	inputDir := t.TempDir()
	files := writeInputs(t, inputDir, map[string]string{
		"customers.sql": "INSERT INTO customers VALUES (1);",
	})

	archiver := NewArchiver(CodecZstd, 3, testLogger())
	outputPath := filepath.Join(t.TempDir(), "postgresql_20260829_020000"+archiver.Extension(true))

	info, err := archiver.Package(files, outputPath, "correct horse")
	require.NoError(t, err)
	assert.True(t, info.Encrypted)

	sealed, err := IsSealed(outputPath)
	require.NoError(t, err)
	assert.True(t, sealed)

	destDir := t.TempDir()
	require.NoError(t, archiver.Unpack(outputPath, destDir, "correct horse"))

	data, err := os.ReadFile(filepath.Join(destDir, "customers.sql"))
	require.NoError(t, err)
	assert.Equal(t, "INSERT INTO customers VALUES (1);", string(data))
}

func TestSealedArchiveHidesMemberNames(t *testing.T) {
	inputDir := t.TempDir()
	files := writeInputs(t, inputDir, map[string]string{
		"very_secret_database_name.sql": "data",
	})

	archiver := NewArchiver(CodecZstd, 3, testLogger())
	outputPath := filepath.Join(t.TempDir(), "archive"+archiver.Extension(true))

	_, err := archiver.Package(files, outputPath, "hunter2")
	require.NoError(t, err)

	raw, err := os.ReadFile(outputPath)
	require.NoError(t, err)
	assert.False(t, bytes.Contains(raw, []byte("very_secret_database_name")),
		"sealed archive must not leak member names")
}

func TestSealedArchiveRejectsWrongPassword(t *testing.T) {
	inputDir := t.TempDir()
	files := writeInputs(t, inputDir, map[string]string{"app.sql": "data"})

	archiver := NewArchiver(CodecZstd, 3, testLogger())
	outputPath := filepath.Join(t.TempDir(), "archive"+archiver.Extension(true))

	_, err := archiver.Package(files, outputPath, "right")
	require.NoError(t, err)

	err = archiver.Unpack(outputPath, t.TempDir(), "wrong")
	assert.Error(t, err)
}

func TestPackageSkipsMissingInputs(t *testing.T) {
	inputDir := t.TempDir()
	files := writeInputs(t, inputDir, map[string]string{"app.sql": "data"})
	files = append(files, filepath.Join(inputDir, "vanished.sql"))

	archiver := NewArchiver(CodecZstd, 3, testLogger())
	outputPath := filepath.Join(t.TempDir(), "archive"+archiver.Extension(false))

	_, err := archiver.Package(files, outputPath, "")
	require.NoError(t, err)

	destDir := t.TempDir()
	require.NoError(t, archiver.Unpack(outputPath, destDir, ""))

	assert.FileExists(t, filepath.Join(destDir, "app.sql"))
	assert.NoFileExists(t, filepath.Join(destDir, "vanished.sql"))
}

func TestPackageLeavesNoPartialFile(t *testing.T) {
	inputDir := t.TempDir()
	files := writeInputs(t, inputDir, map[string]string{"app.sql": "data"})

	outDir := t.TempDir()
	archiver := NewArchiver(CodecZstd, 3, testLogger())
	outputPath := filepath.Join(outDir, "archive"+archiver.Extension(false))

	_, err := archiver.Package(files, outputPath, "")
	require.NoError(t, err)

	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, filepath.Base(outputPath), entries[0].Name())
}

func TestArchiverExtension(t *testing.T) {
	tests := []struct {
		codec     CompressionCodec
		encrypted bool
		expected  string
	}{
		{CodecZstd, false, ".tar.zst"},
		{CodecZstd, true, ".tar.zst.enc"},
		{CodecLZ4, false, ".tar.lz4"},
		{CodecLZ4, true, ".tar.lz4.enc"},
	}

	for _, tt := range tests {
		archiver := NewArchiver(tt.codec, 3, testLogger())
		assert.Equal(t, tt.expected, archiver.Extension(tt.encrypted))
	}
}

func TestIsSealedPlainArchive(t *testing.T) {
	inputDir := t.TempDir()
	files := writeInputs(t, inputDir, map[string]string{"app.sql": "data"})

	archiver := NewArchiver(CodecZstd, 3, testLogger())
	outputPath := filepath.Join(t.TempDir(), "archive"+archiver.Extension(false))

	_, err := archiver.Package(files, outputPath, "")
	require.NoError(t, err)

	sealed, err := IsSealed(outputPath)
	require.NoError(t, err)
	assert.False(t, sealed)
}
