package fileloader

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failingReadFs opens files normally but every read fails.
type failingReadFs struct {
	afero.Fs
}

func (f failingReadFs) Open(name string) (afero.File, error) {
	file, err := f.Fs.Open(name)
	if err != nil {
		return nil, err
	}
	return failingFile{File: file}, nil
}

type failingFile struct {
	afero.File
}

func (failingFile) Read([]byte) (int, error) {
	return 0, errors.New("input/output error")
}

func TestLoad(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/dist/index.html", []byte("<h1>grid</h1>"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/dist/empty.txt", nil, 0o644))

	loader := New(fs)

	t.Run("reads whole file", func(t *testing.T) {
		data, err := loader.Load("/dist/index.html")
		require.NoError(t, err)
		assert.Equal(t, []byte("<h1>grid</h1>"), data)
	})

	t.Run("empty file is not absent", func(t *testing.T) {
		data, err := loader.Load("/dist/empty.txt")
		require.NoError(t, err)
		assert.Empty(t, data)
	})

	t.Run("missing file is absent", func(t *testing.T) {
		data, err := loader.Load("/dist/missing.js")
		assert.Nil(t, data)
		assert.ErrorIs(t, err, ErrAbsent)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}

func TestLoadReadFailure(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/dist/app.js", []byte("console.log(1)"), 0o644))

	data, err := New(failingReadFs{Fs: fs}).Load("/dist/app.js")

	require.Error(t, err)
	assert.Nil(t, data)
	assert.False(t, errors.Is(err, ErrAbsent))
	assert.Contains(t, err.Error(), "input/output error")
}

func TestLoadOsFs(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bundle.wasm")
	payload := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
	require.NoError(t, os.WriteFile(path, payload, 0o644))

	data, err := New(nil).Load(path)
	require.NoError(t, err)
	assert.Equal(t, payload, data)
}
