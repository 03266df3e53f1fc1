package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/tu-usuario/fiscal-bridge/internal/domain/entity"
	"github.com/tu-usuario/fiscal-bridge/internal/domain/repository"
)

var _ repository.CustomerRepository = (*CustomerRepo)(nil)

// CustomerRepo lectura de clientes, contactos y direcciones (usable con pool o tx).
type CustomerRepo struct {
	q Querier
}

// NewCustomerRepository construye el adaptador. Pasar pool o tx (Querier).
func NewCustomerRepository(q Querier) *CustomerRepo {
	return &CustomerRepo{q: q}
}

// GetByID obtiene un cliente. Devuelve nil si no existe.
func (r *CustomerRepo) GetByID(ctx context.Context, id string) (*entity.Customer, error) {
	query := `
		SELECT id, name, type, tin_number, tax_id, created_at, updated_at
		FROM customers WHERE id = $1`
	var c entity.Customer
	var tin, taxID *string
	err := r.q.QueryRow(ctx, query, id).Scan(
		&c.ID, &c.Name, &c.Type, &tin, &taxID, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get customer: %w", err)
	}
	c.TinNumber = derefStr(tin)
	c.TaxID = derefStr(taxID)
	return &c, nil
}

// GetContact obtiene un contacto. Devuelve nil si no existe.
func (r *CustomerRepo) GetContact(ctx context.Context, contactID string) (*entity.Contact, error) {
	query := `SELECT id, customer_id, phone, email FROM contacts WHERE id = $1`
	var c entity.Contact
	var phone, email *string
	err := r.q.QueryRow(ctx, query, contactID).Scan(&c.ID, &c.CustomerID, &phone, &email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get contact: %w", err)
	}
	c.Phone = derefStr(phone)
	c.Email = derefStr(email)
	return &c, nil
}

// GetAddress obtiene una dirección de facturación. Devuelve nil si no existe.
func (r *CustomerRepo) GetAddress(ctx context.Context, addressID string) (*entity.Address, error) {
	query := `
		SELECT id, customer_id, address_line1, address_line2, city, country
		FROM addresses WHERE id = $1`
	var a entity.Address
	var line2 *string
	err := r.q.QueryRow(ctx, query, addressID).Scan(
		&a.ID, &a.CustomerID, &a.AddressLine1, &line2, &a.City, &a.Country,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get address: %w", err)
	}
	a.AddressLine2 = derefStr(line2)
	return &a, nil
}
