// Package storage implementa el almacenamiento en disco de los PDFs
// fiscales, bajo la jerarquía fiscal-invoices/{año}/{mes}/{factura}.pdf.
package storage

import (
	"fmt"
	"os"
	"path/filepath"

	appfiscal "github.com/tu-usuario/fiscal-bridge/internal/application/fiscal"
)

var _ appfiscal.FileStore = (*DiskStore)(nil)

// DiskStore guarda archivos bajo un directorio raíz configurable.
type DiskStore struct {
	root string
}

// NewDiskStore construye el store. root es el directorio raíz; las carpetas
// intermedias se crean al guardar.
func NewDiskStore(root string) *DiskStore {
	return &DiskStore{root: root}
}

// Exists indica si el path relativo ya tiene contenido.
func (s *DiskStore) Exists(path string) bool {
	info, err := os.Stat(filepath.Join(s.root, filepath.FromSlash(path)))
	return err == nil && !info.IsDir()
}

// Save escribe el contenido en el path relativo, creando las carpetas
// intermedias que falten.
func (s *DiskStore) Save(path string, content []byte) error {
	full := filepath.Join(s.root, filepath.FromSlash(path))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("storage: crear carpeta de %s: %w", path, err)
	}
	if err := os.WriteFile(full, content, 0o644); err != nil {
		return fmt.Errorf("storage: escribir %s: %w", path, err)
	}
	return nil
}
