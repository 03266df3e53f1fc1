package storage_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tu-usuario/fiscal-bridge/internal/infrastructure/storage"
)

// Save crea la jerarquía de carpetas completa y Exists la ve.
func TestDiskStore_GuardaYDetecta(t *testing.T) {
	root := t.TempDir()
	store := storage.NewDiskStore(root)

	path := "fiscal-invoices/2024/05/SINV-001.pdf"
	assert.False(t, store.Exists(path))

	require.NoError(t, store.Save(path, []byte("%PDF-contenido")))
	assert.True(t, store.Exists(path))

	data, err := os.ReadFile(filepath.Join(root, "fiscal-invoices", "2024", "05", "SINV-001.pdf"))
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-contenido"), data)
}

// Un directorio con el nombre del archivo no cuenta como existente.
func TestDiskStore_DirectorioNoEsArchivo(t *testing.T) {
	root := t.TempDir()
	store := storage.NewDiskStore(root)

	require.NoError(t, os.MkdirAll(filepath.Join(root, "a", "b.pdf"), 0o755))
	assert.False(t, store.Exists("a/b.pdf"))
}
