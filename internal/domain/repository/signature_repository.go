package repository

import (
	"context"

	"github.com/tu-usuario/fiscal-bridge/internal/domain/entity"
)

// SignatureRepository define el puerto de persistencia para Fiscal Signature.
type SignatureRepository interface {
	Create(ctx context.Context, sig *entity.FiscalSignature) error
	GetByID(ctx context.Context, id string) (*entity.FiscalSignature, error)
	// GetByHarmonyID localiza la firma por el id de seguimiento externo
	// (RequestId de los webhooks). Devuelve nil si no existe.
	GetByHarmonyID(ctx context.Context, harmonyID string) (*entity.FiscalSignature, error)
	GetByInvoiceID(ctx context.Context, invoiceID string) (*entity.FiscalSignature, error)
	// Update persiste la firma con control de concurrencia optimista:
	// solo escribe si Version coincide con la fila actual, e incrementa
	// Version. Devuelve domain.ErrConflict si otro escritor ganó.
	Update(ctx context.Context, sig *entity.FiscalSignature) error
	// ListRetryable devuelve las firmas con is_retry=true (para el job de reenvío).
	ListRetryable(ctx context.Context, limit int) ([]*entity.FiscalSignature, error)
}
