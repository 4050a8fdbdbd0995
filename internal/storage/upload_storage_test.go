package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store := NewStore(t.TempDir(), "/uploads", 1, zap.NewNop())
	store.now = func() time.Time { return time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC) }
	return store
}

func TestStore_Save(t *testing.T) {
	store := newTestStore(t)

	t.Run("writes the file under the ticket folder", func(t *testing.T) {
		ref, err := store.Save("PD-202501", "bukti.pdf", []byte("isi berkas"))
		require.NoError(t, err)

		assert.Equal(t, "bukti.pdf", ref.OriginalName)
		assert.True(t, strings.HasPrefix(ref.URL, "/uploads/PD-202501/"))
		assert.True(t, strings.HasSuffix(ref.URL, "_bukti.pdf"))

		onDisk := filepath.Join(store.BaseDir(), strings.TrimPrefix(ref.URL, "/uploads/"))
		content, err := os.ReadFile(onDisk)
		require.NoError(t, err)
		assert.Equal(t, []byte("isi berkas"), content)
	})

	t.Run("sanitizes traversal attempts in names", func(t *testing.T) {
		ref, err := store.Save("PD-202501", "../../etc/passwd", []byte("x"))
		require.NoError(t, err)
		assert.NotContains(t, ref.URL, "..")
		assert.True(t, strings.HasPrefix(ref.URL, "/uploads/PD-202501/"))
	})

	t.Run("rejects an empty file name", func(t *testing.T) {
		_, err := store.Save("PD-202501", "", []byte("x"))
		assert.Error(t, err)
	})

	t.Run("rejects oversized files", func(t *testing.T) {
		_, err := store.Save("PD-202501", "besar.bin", make([]byte, 2*1024*1024))
		assert.Error(t, err)
	})
}

func TestStore_SaveDistinctNames(t *testing.T) {
	store := newTestStore(t)

	first, err := store.Save("PD-202501", "bukti.pdf", []byte("a"))
	require.NoError(t, err)

	store.now = func() time.Time { return time.Date(2025, 3, 10, 9, 0, 1, 0, time.UTC) }
	second, err := store.Save("PD-202501", "bukti.pdf", []byte("b"))
	require.NoError(t, err)

	assert.NotEqual(t, first.URL, second.URL)
}
