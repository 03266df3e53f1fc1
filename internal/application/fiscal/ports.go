package fiscal

import (
	"context"

	"github.com/tu-usuario/fiscal-bridge/internal/domain/entity"
)

// ProofPDFGenerator puerto de salida para generar localmente el PDF de la
// factura fiscalizada (representación con código QR de verificación).
// La implementación concreta usa Maroto; para tests se inyecta un mock.
type ProofPDFGenerator interface {
	GenerateProof(
		ctx context.Context,
		invoice *entity.SalesInvoice,
		items []*entity.SalesInvoiceItem,
		customer *entity.Customer,
		sig *entity.FiscalSignature,
	) ([]byte, error)
}

// FileStore puerto de almacenamiento de los PDFs fiscales. La jerarquía de
// carpetas categoría/año/mes la decide el caller vía el path.
type FileStore interface {
	Exists(path string) bool
	Save(path string, content []byte) error
}

// Config comportamiento de la integración, inyectado en construcción
// (reemplaza el singleton de configuración global del diseño original).
type Config struct {
	IncludeHSCodes bool
	AttachLocalPDF bool // true: generar el PDF localmente; false: descargarlo de la plataforma
	BypassTin      bool
	TimeZone       string // zona horaria para los timestamps del payload
}
