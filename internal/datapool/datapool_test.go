package datapool

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpen_AnonymousRegion(t *testing.T) {
	p, err := Open("", 1<<20, false)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })

	require.Len(t, p.Bytes(), 1<<20)
	require.Equal(t, int64(1<<20), p.Size())

	// the region is writable end to end
	p.Bytes()[0] = 0xaa
	p.Bytes()[1<<20-1] = 0xbb
	require.Equal(t, byte(0xaa), p.Bytes()[0])
	require.Equal(t, byte(0xbb), p.Bytes()[1<<20-1])
}

func TestOpen_AnonymousPrealloc(t *testing.T) {
	p, err := Open("", 64<<10, true)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })

	require.Len(t, p.Bytes(), 64<<10)
}

func TestOpen_FileBacked(t *testing.T) {
	path := filepath.Join(t.TempDir(), "datapool.bin")

	p, err := Open(path, 128<<10, false)
	require.NoError(t, err)

	copy(p.Bytes(), []byte("persisted"))
	require.NoError(t, p.Close())

	// the file exists at the requested size; content is a raw arena
	fi, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, int64(128<<10), fi.Size())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, []byte("persisted"), raw[:9])
}

func TestOpen_FileBackedReopenIsColdStart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "datapool.bin")

	p, err := Open(path, 64<<10, false)
	require.NoError(t, err)
	copy(p.Bytes(), []byte("old"))
	require.NoError(t, p.Close())

	// reopening maps the same arena; the engine treats it as cold
	p, err = Open(path, 64<<10, false)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	require.Len(t, p.Bytes(), 64<<10)
}

func TestOpen_RejectsNonPositiveSize(t *testing.T) {
	_, err := Open("", 0, false)
	require.Error(t, err)
}

func TestClose_Idempotent(t *testing.T) {
	p, err := Open("", 4096, false)
	require.NoError(t, err)
	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
}
