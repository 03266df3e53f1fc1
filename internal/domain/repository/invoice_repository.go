package repository

import (
	"context"

	"github.com/tu-usuario/fiscal-bridge/internal/domain/entity"
)

// InvoiceRepository puerto de lectura de facturas/notas de crédito del ERP.
// El puente no crea facturas; solo las lee para construir payloads.
type InvoiceRepository interface {
	GetByID(ctx context.Context, id string) (*entity.SalesInvoice, error)
	GetItems(ctx context.Context, invoiceID string) ([]*entity.SalesInvoiceItem, error)
}

// CustomerRepository puerto de lectura de clientes y sus datos de contacto.
type CustomerRepository interface {
	GetByID(ctx context.Context, id string) (*entity.Customer, error)
	GetContact(ctx context.Context, contactID string) (*entity.Contact, error)
	GetAddress(ctx context.Context, addressID string) (*entity.Address, error)
}

// ItemRepository puerto de lectura/escritura de productos y grupos (HS Codes).
type ItemRepository interface {
	GetByCode(ctx context.Context, code string) (*entity.Item, error)
	GetGroup(ctx context.Context, name string) (*entity.ItemGroup, error)
	UpsertGroup(ctx context.Context, group *entity.ItemGroup) error
	// BackfillGroupHSCode copia el HS Code del grupo a los items del grupo
	// que no tengan uno propio. Devuelve el número de items actualizados.
	BackfillGroupHSCode(ctx context.Context, groupName string) (int, error)
}
