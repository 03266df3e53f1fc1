package repository

import (
	"context"
	"time"

	"github.com/tu-usuario/fiscal-bridge/internal/domain/entity"
)

// MappingRepository puerto de persistencia para las tablas de mapeo
// moneda/impuesto y el indicador de vida de la integración.
type MappingRepository interface {
	ListTaxMappings(ctx context.Context) ([]*entity.TaxMapping, error)
	SaveTaxMapping(ctx context.Context, m *entity.TaxMapping) error
	ListCurrencyMappings(ctx context.Context) ([]*entity.CurrencyMapping, error)
	SaveCurrencyMapping(ctx context.Context, m *entity.CurrencyMapping) error
	// TouchLastSuccessfulRequest actualiza el timestamp de la última
	// petición exitosa contra la plataforma.
	TouchLastSuccessfulRequest(ctx context.Context, at time.Time) error
	GetLastSuccessfulRequest(ctx context.Context) (time.Time, error)
}

// LogRepository puerto de persistencia del log de auditoría (solo inserción).
type LogRepository interface {
	Insert(ctx context.Context, log *entity.FiscalLog) error
	ListRecent(ctx context.Context, limit int) ([]*entity.FiscalLog, error)
}

// UserRepository puerto de persistencia de operadores.
type UserRepository interface {
	GetByEmail(ctx context.Context, email string) (*entity.User, error)
	Create(ctx context.Context, user *entity.User) error
}
