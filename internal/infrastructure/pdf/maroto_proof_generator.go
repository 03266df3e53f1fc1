// Package pdf implementa la representación impresa de una factura
// fiscalizada ante el FDMS de ZIMRA.
//
// Layout de la página A4:
//
//	┌─────────────────────────────────────────────────────────────┐
//	│  HEADER: FACTURA FISCAL  │  N° Factura + Fecha              │
//	│  ─────────────────────────────────────────────────────────  │
//	│  COMPRADOR: Nombre + TIN                                     │
//	│  ─────────────────────────────────────────────────────────  │
//	│  TABLA: Cant | Descripción | P.Unit | Importe                │
//	│  ─────────────────────────────────────────────────────────  │
//	│  TOTALES: Neto / Impuestos / TOTAL                           │
//	│  ─────────────────────────────────────────────────────────  │
//	│  FOOTER FISCAL: Código de verificación + QR + N° fiscal      │
//	└─────────────────────────────────────────────────────────────┘
package pdf

import (
	"context"
	"fmt"

	maroto "github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/code"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"

	appfiscal "github.com/tu-usuario/fiscal-bridge/internal/application/fiscal"
	"github.com/tu-usuario/fiscal-bridge/internal/domain/entity"
)

// ── Paleta de colores ─────────────────────────────────────────────────────────

var (
	colorPrimary = &props.Color{Red: 16, Green: 82, Blue: 62}
	colorGray    = &props.Color{Red: 100, Green: 100, Blue: 100}
	colorWhite   = &props.Color{Red: 255, Green: 255, Blue: 255}
)

var _ appfiscal.ProofPDFGenerator = (*MarotoProofGenerator)(nil)

// ── Generator ─────────────────────────────────────────────────────────────────

// MarotoProofGenerator implementa fiscal.ProofPDFGenerator usando Maroto v2.
type MarotoProofGenerator struct{}

// NewMarotoProofGenerator construye el generador.
func NewMarotoProofGenerator() *MarotoProofGenerator { return &MarotoProofGenerator{} }

// GenerateProof genera el PDF fiscal de la factura y devuelve sus bytes.
func (g *MarotoProofGenerator) GenerateProof(
	_ context.Context,
	invoice *entity.SalesInvoice,
	items []*entity.SalesInvoiceItem,
	customer *entity.Customer,
	sig *entity.FiscalSignature,
) ([]byte, error) {
	cfg := config.NewBuilder().
		WithPageSize(pagesize.A4).
		WithLeftMargin(10).WithRightMargin(10).
		WithTopMargin(10).WithBottomMargin(10).
		WithDefaultFont(&props.Font{Family: "helvetica", Size: 9}).
		WithTitle("Factura Fiscal "+invoice.ID, true).
		Build()

	m := maroto.New(cfg)

	m.AddRows(headerRow(invoice, sig))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.5}))
	m.AddRows(buyerRow(invoice, customer))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))

	m.AddRows(tableHeaderRow())
	for _, r := range tableItemRows(items) {
		m.AddRows(r)
	}

	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))
	m.AddRows(totalsRow(invoice))

	m.AddRows(line.NewRow(3))
	m.AddRows(line.NewRow(1, props.Line{Color: colorGray, Thickness: 0.3}))
	for _, r := range fiscalFooterRows(sig) {
		m.AddRows(r)
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("pdf: generar documento: %w", err)
	}
	return doc.GetBytes(), nil
}

// ── Secciones ─────────────────────────────────────────────────────────────────

// headerRow: tipo de documento (izq) y número + fecha (der).
func headerRow(invoice *entity.SalesInvoice, sig *entity.FiscalSignature) core.Row {
	title := "FACTURA FISCAL"
	if invoice.IsReturn {
		title = "NOTA DE CRÉDITO FISCAL"
	}
	fecha := invoice.PostingDate.Format("02/01/2006")

	return row.New(18).Add(
		col.New(7).Add(
			text.New(title, props.Text{
				Style: fontstyle.Bold, Size: 13, Color: colorPrimary, Top: 1,
			}),
			text.New(fmt.Sprintf("Factura fiscal N° %d  |  Dispositivo %d", sig.InvoiceNumber, sig.DeviceID), props.Text{
				Size: 9, Top: 9, Color: colorGray,
			}),
		),
		col.New(5).Add(
			text.New(invoice.ID, props.Text{
				Style: fontstyle.Bold, Size: 12, Align: align.Right, Top: 3,
			}),
			text.New("Fecha: "+fecha, props.Text{
				Size: 8, Align: align.Right, Top: 11, Color: colorGray,
			}),
		),
	)
}

// buyerRow: datos del comprador.
func buyerRow(invoice *entity.SalesInvoice, customer *entity.Customer) core.Row {
	tin := customer.TinNumber
	if tin == "" {
		tin = "—"
	}
	vat := customer.TaxID
	if vat == "" {
		vat = "—"
	}
	return row.New(14).Add(
		col.New(12).Add(
			text.New("COMPRADOR", props.Text{
				Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 1,
			}),
			text.New(invoice.CustomerName, props.Text{
				Style: fontstyle.Bold, Size: 10, Top: 6,
			}),
			text.New(fmt.Sprintf("TIN: %s   |   VAT: %s", tin, vat), props.Text{
				Size: 8, Top: 12, Color: colorGray,
			}),
		),
	)
}

// tableHeaderRow: cabecera de la tabla de líneas.
func tableHeaderRow() core.Row {
	h := func(label string, size int, a align.Type) core.Col {
		return col.New(size).Add(text.New(label, props.Text{
			Style: fontstyle.Bold, Size: 8, Align: a,
			Color: colorWhite, Top: 2, Left: 1, Right: 1,
		}))
	}
	return row.New(8).Add(
		h("Cant.", 2, align.Center),
		h("Descripción", 6, align.Left),
		h("P. Unit.", 2, align.Right),
		h("Importe", 2, align.Right),
	)
}

// tableItemRows: una fila por línea del documento.
func tableItemRows(items []*entity.SalesInvoiceItem) []core.Row {
	result := make([]core.Row, 0, len(items))
	for _, it := range items {
		result = append(result, row.New(7).Add(
			col.New(2).Add(text.New(
				it.Qty.Abs().StringFixed(3),
				props.Text{Size: 8, Align: align.Center, Top: 1},
			)),
			col.New(6).Add(text.New(
				it.ItemName,
				props.Text{Size: 8, Align: align.Left, Top: 1, Left: 1},
			)),
			col.New(2).Add(text.New(
				it.Rate.Abs().StringFixed(2),
				props.Text{Size: 8, Align: align.Right, Top: 1, Right: 1},
			)),
			col.New(2).Add(text.New(
				it.Amount.Abs().StringFixed(2),
				props.Text{Size: 8, Align: align.Right, Top: 1, Right: 1},
			)),
		))
	}
	return result
}

// totalsRow: bloque de totales alineado a la derecha.
func totalsRow(invoice *entity.SalesInvoice) core.Row {
	label := func(s string) core.Component {
		return text.New(s, props.Text{
			Style: fontstyle.Bold, Size: 9, Align: align.Right, Right: 2,
		})
	}
	value := func(s string) core.Component {
		return text.New(s, props.Text{Size: 9, Align: align.Right, Right: 1})
	}
	grandLabel := func(s string) core.Component {
		return text.New(s, props.Text{
			Style: fontstyle.Bold, Size: 10, Align: align.Right,
			Color: colorPrimary, Right: 2,
		})
	}
	grandValue := func(s string) core.Component {
		return text.New(s, props.Text{
			Style: fontstyle.Bold, Size: 10, Align: align.Right,
			Color: colorPrimary, Right: 1,
		})
	}

	cur := invoice.Currency + " "
	return row.New(26).Add(
		col.New(3),
		col.New(3).Add(
			label("Neto:"),
			label("Impuestos:"),
			grandLabel("TOTAL:"),
		),
		col.New(3).Add(
			value(cur+invoice.NetTotal.Abs().StringFixed(2)),
			value(cur+invoice.TaxTotal.Abs().StringFixed(2)),
			grandValue(cur+invoice.GrandTotal.Abs().StringFixed(2)),
		),
		col.New(3),
	)
}

// fiscalFooterRows: código de verificación + QR de validación en el FDMS.
func fiscalFooterRows(sig *entity.FiscalSignature) []core.Row {
	rows := []core.Row{
		row.New(6).Add(col.New(12).Add(
			text.New("INFORMACIÓN FISCAL ZIMRA FDMS", props.Text{
				Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 1,
			}),
		)),
		row.New(5).Add(col.New(12).Add(
			text.New(fmt.Sprintf("Código de verificación: %s   |   Día fiscal: %d",
				sig.VerificationCode, sig.FiscalDay), props.Text{
				Size: 8, Top: 1, Color: colorGray,
			}),
		)),
	}

	if sig.FDMSUrl != "" {
		rows = append(rows, row.New(50).Add(
			col.New(4).Add(code.NewQr(sig.FDMSUrl, props.Rect{
				Percent: 95,
				Center:  true,
			})),
			col.New(8).Add(
				text.New("Escanea el código QR para validar\nesta factura en el portal del FDMS.", props.Text{
					Size: 8, Top: 4, Left: 3, Color: colorGray,
				}),
				text.New("FACTURA FISCALIZADA", props.Text{
					Style: fontstyle.Bold, Size: 10, Top: 22,
					Left: 3, Color: colorPrimary,
				}),
			),
		))
	}

	return rows
}
