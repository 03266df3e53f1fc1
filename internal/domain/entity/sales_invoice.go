package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// SalesInvoice representa la cabecera de una factura o nota de crédito del ERP.
// En una nota de crédito IsReturn es true y los montos se almacenan en negativo.
type SalesInvoice struct {
	ID           string
	CustomerID   string
	ContactID    string
	AddressID    string
	CustomerName string // display name; puede incluir " t/a " para el nombre comercial
	PONo         string // referencia de orden de compra (facturas)
	IsReturn     bool
	ReturnAgainst string // factura original (notas de crédito)
	ReturnReason  string
	IsDiscounted bool
	PostingDate  time.Time     // solo fecha
	PostingTime  time.Duration // hora del día, almacenada por separado
	NetTotal     decimal.Decimal
	TaxTotal     decimal.Decimal
	GrandTotal   decimal.Decimal
	Currency     string
	TaxTemplate  string // plantilla de impuestos a nivel de documento
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// SalesInvoiceItem línea de una factura o nota de crédito.
type SalesInvoiceItem struct {
	ID             string
	InvoiceID      string
	ItemCode       string
	ItemName       string
	ItemGroup      string
	Qty            decimal.Decimal
	Rate           decimal.Decimal
	Amount         decimal.Decimal
	DiscountAmount decimal.Decimal
	TaxTemplate    string // plantilla de impuestos a nivel de línea (prioridad sobre el documento)
}
