package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/tu-usuario/fiscal-bridge/internal/domain/entity"
	"github.com/tu-usuario/fiscal-bridge/internal/domain/repository"
)

var _ repository.MappingRepository = (*MappingRepo)(nil)

// MappingRepo mapeos de impuestos/moneda y el indicador de vida (usable con pool o tx).
type MappingRepo struct {
	q Querier
}

// NewMappingRepository construye el adaptador. Pasar pool o tx (Querier).
func NewMappingRepository(q Querier) *MappingRepo {
	return &MappingRepo{q: q}
}

// ListTaxMappings devuelve todos los mapeos de impuestos.
func (r *MappingRepo) ListTaxMappings(ctx context.Context) ([]*entity.TaxMapping, error) {
	query := `SELECT id, tax_code, destination_tax_id, is_default, remote_id FROM tax_mappings ORDER BY tax_code`
	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list tax_mappings: %w", err)
	}
	defer rows.Close()

	var out []*entity.TaxMapping
	for rows.Next() {
		var m entity.TaxMapping
		if err := rows.Scan(&m.ID, &m.TaxCode, &m.DestinationTaxID, &m.IsDefault, &m.RemoteID); err != nil {
			return nil, fmt.Errorf("scan tax_mapping: %w", err)
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

// SaveTaxMapping crea o actualiza un mapeo de impuestos.
func (r *MappingRepo) SaveTaxMapping(ctx context.Context, m *entity.TaxMapping) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	query := `
		INSERT INTO tax_mappings (id, tax_code, destination_tax_id, is_default, remote_id)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET tax_code = EXCLUDED.tax_code,
		    destination_tax_id = EXCLUDED.destination_tax_id,
		    is_default = EXCLUDED.is_default,
		    remote_id = EXCLUDED.remote_id`
	if _, err := r.q.Exec(ctx, query, m.ID, m.TaxCode, m.DestinationTaxID, m.IsDefault, m.RemoteID); err != nil {
		return fmt.Errorf("save tax_mapping: %w", err)
	}
	return nil
}

// ListCurrencyMappings devuelve todos los mapeos de moneda.
func (r *MappingRepo) ListCurrencyMappings(ctx context.Context) ([]*entity.CurrencyMapping, error) {
	query := `SELECT id, system_currency, target_currency, remote_id FROM currency_mappings ORDER BY system_currency`
	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list currency_mappings: %w", err)
	}
	defer rows.Close()

	var out []*entity.CurrencyMapping
	for rows.Next() {
		var m entity.CurrencyMapping
		if err := rows.Scan(&m.ID, &m.SystemCurrency, &m.TargetCurrency, &m.RemoteID); err != nil {
			return nil, fmt.Errorf("scan currency_mapping: %w", err)
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

// SaveCurrencyMapping crea o actualiza un mapeo de moneda.
func (r *MappingRepo) SaveCurrencyMapping(ctx context.Context, m *entity.CurrencyMapping) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	query := `
		INSERT INTO currency_mappings (id, system_currency, target_currency, remote_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET system_currency = EXCLUDED.system_currency,
		    target_currency = EXCLUDED.target_currency,
		    remote_id = EXCLUDED.remote_id`
	if _, err := r.q.Exec(ctx, query, m.ID, m.SystemCurrency, m.TargetCurrency, m.RemoteID); err != nil {
		return fmt.Errorf("save currency_mapping: %w", err)
	}
	return nil
}

// TouchLastSuccessfulRequest actualiza el indicador de vida de la
// integración (fila única).
func (r *MappingRepo) TouchLastSuccessfulRequest(ctx context.Context, at time.Time) error {
	query := `
		INSERT INTO harmony_status (id, last_successful_request)
		VALUES (1, $1)
		ON CONFLICT (id) DO UPDATE SET last_successful_request = EXCLUDED.last_successful_request`
	if _, err := r.q.Exec(ctx, query, at); err != nil {
		return fmt.Errorf("touch harmony_status: %w", err)
	}
	return nil
}

// GetLastSuccessfulRequest devuelve el timestamp de la última petición
// exitosa, o cero si nunca hubo una.
func (r *MappingRepo) GetLastSuccessfulRequest(ctx context.Context) (time.Time, error) {
	var at time.Time
	err := r.q.QueryRow(ctx, `SELECT last_successful_request FROM harmony_status WHERE id = 1`).Scan(&at)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return time.Time{}, nil
		}
		return time.Time{}, fmt.Errorf("get harmony_status: %w", err)
	}
	return at, nil
}
