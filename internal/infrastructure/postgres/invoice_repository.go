package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/tu-usuario/fiscal-bridge/internal/domain/entity"
	"github.com/tu-usuario/fiscal-bridge/internal/domain/repository"
)

var _ repository.InvoiceRepository = (*InvoiceRepo)(nil)

// InvoiceRepo lectura de facturas del ERP (usable con pool o tx).
type InvoiceRepo struct {
	q Querier
}

// NewInvoiceRepository construye el adaptador. Pasar pool o tx (Querier).
func NewInvoiceRepository(q Querier) *InvoiceRepo {
	return &InvoiceRepo{q: q}
}

// GetByID obtiene la cabecera de una factura. Devuelve nil si no existe.
func (r *InvoiceRepo) GetByID(ctx context.Context, id string) (*entity.SalesInvoice, error) {
	query := `
		SELECT id, customer_id, contact_id, address_id, customer_name, po_no,
		       is_return, return_against, return_reason, is_discounted,
		       posting_date, posting_time, net_total, tax_total, grand_total,
		       currency, tax_template, created_at, updated_at
		FROM sales_invoices WHERE id = $1`
	var inv entity.SalesInvoice
	var contactID, addressID, poNo, returnAgainst, returnReason, taxTemplate *string
	err := r.q.QueryRow(ctx, query, id).Scan(
		&inv.ID, &inv.CustomerID, &contactID, &addressID, &inv.CustomerName, &poNo,
		&inv.IsReturn, &returnAgainst, &returnReason, &inv.IsDiscounted,
		&inv.PostingDate, &inv.PostingTime, &inv.NetTotal, &inv.TaxTotal, &inv.GrandTotal,
		&inv.Currency, &taxTemplate, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get sales_invoice: %w", err)
	}
	inv.ContactID = derefStr(contactID)
	inv.AddressID = derefStr(addressID)
	inv.PONo = derefStr(poNo)
	inv.ReturnAgainst = derefStr(returnAgainst)
	inv.ReturnReason = derefStr(returnReason)
	inv.TaxTemplate = derefStr(taxTemplate)
	return &inv, nil
}

// GetItems obtiene las líneas de una factura en orden de inserción.
func (r *InvoiceRepo) GetItems(ctx context.Context, invoiceID string) ([]*entity.SalesInvoiceItem, error) {
	query := `
		SELECT id, invoice_id, item_code, item_name, item_group,
		       qty, rate, amount, discount_amount, tax_template
		FROM sales_invoice_items
		WHERE invoice_id = $1
		ORDER BY idx ASC`
	rows, err := r.q.Query(ctx, query, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("get sales_invoice_items: %w", err)
	}
	defer rows.Close()

	var out []*entity.SalesInvoiceItem
	for rows.Next() {
		var it entity.SalesInvoiceItem
		var itemCode, itemGroup, taxTemplate *string
		if err := rows.Scan(
			&it.ID, &it.InvoiceID, &itemCode, &it.ItemName, &itemGroup,
			&it.Qty, &it.Rate, &it.Amount, &it.DiscountAmount, &taxTemplate,
		); err != nil {
			return nil, fmt.Errorf("scan sales_invoice_item: %w", err)
		}
		it.ItemCode = derefStr(itemCode)
		it.ItemGroup = derefStr(itemGroup)
		it.TaxTemplate = derefStr(taxTemplate)
		out = append(out, &it)
	}
	return out, rows.Err()
}
