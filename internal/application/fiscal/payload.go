package fiscal

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tu-usuario/fiscal-bridge/internal/domain"
	"github.com/tu-usuario/fiscal-bridge/internal/domain/entity"
	"github.com/tu-usuario/fiscal-bridge/internal/domain/repository"
)

// tradeNameSeparator separa el nombre legal del nombre comercial en el
// display name del cliente ("Acme Ltd t/a Corner Store").
const tradeNameSeparator = " t/a "

// cashPrefix prefijo para ventas de mostrador sin TIN.
const cashPrefix = "Cash "

// PayloadInput registros ya cargados necesarios para construir el payload.
type PayloadInput struct {
	Invoice   *entity.SalesInvoice
	Items     []*entity.SalesInvoiceItem
	Customer  *entity.Customer
	Contact   *entity.Contact // puede ser nil
	Address   *entity.Address
	Signature *entity.FiscalSignature
}

// IsCreditNote indica si el documento origen es una nota de crédito.
func (in *PayloadInput) IsCreditNote() bool { return in.Invoice.IsReturn }

// PayloadBuilder construye el objeto JSON canónico de una factura o nota de
// crédito para la plataforma fiscal. Los payloads se arman como maps para que
// la serialización canónica (claves ordenadas) sea estable byte a byte.
type PayloadBuilder struct {
	items    repository.ItemRepository
	mappings repository.MappingRepository
	cfg      Config
	loc      *time.Location
}

// NewPayloadBuilder construye el builder. Falla si la zona horaria
// configurada no existe.
func NewPayloadBuilder(items repository.ItemRepository, mappings repository.MappingRepository, cfg Config) (*PayloadBuilder, error) {
	loc, err := time.LoadLocation(cfg.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("payload: zona horaria %q: %w", cfg.TimeZone, err)
	}
	return &PayloadBuilder{items: items, mappings: mappings, cfg: cfg, loc: loc}, nil
}

// Build genera el payload del documento. Devuelve domain.ErrMappingUnresolved
// (envuelto con el detalle) si no se puede resolver un tax code o un HS Code.
func (b *PayloadBuilder) Build(ctx context.Context, in *PayloadInput) (map[string]any, error) {
	buyer, err := b.buyerContact(in)
	if err != nil {
		return nil, err
	}
	lines, err := b.lineItems(ctx, in)
	if err != nil {
		return nil, err
	}

	inv := in.Invoice
	data := map[string]any{
		"IsTaxInclusive": true,
		"BuyerContact":   buyer,
		"Date":           b.timestamp(inv.PostingDate, inv.PostingTime),
		"LineItems":      lines,
		"CurrencyCode":   inv.Currency,
		"IsRetry":        in.Signature.IsRetry,
	}

	if in.IsCreditNote() {
		// Los montos de una nota de crédito se almacenan en negativo; el
		// payload viaja siempre con valores absolutos.
		data["CreditNoteId"] = inv.ID
		data["CreditNoteNumber"] = inv.ID
		data["OriginalInvoiceId"] = inv.ReturnAgainst
		data["Reference"] = inv.ReturnReason
		data["SubTotal"] = round2(inv.NetTotal.Abs())
		data["TotalTax"] = round2(inv.TaxTotal.Abs())
		data["Total"] = round2(inv.GrandTotal.Abs())
	} else {
		data["InvoiceId"] = inv.ID
		data["InvoiceNumber"] = inv.ID
		data["Reference"] = inv.PONo
		data["IsDiscounted"] = inv.IsDiscounted
		data["SubTotal"] = round2(inv.NetTotal)
		data["TotalTax"] = round2(inv.TaxTotal)
		data["Total"] = round2(inv.GrandTotal)
	}

	return data, nil
}

// lineItems arma las líneas del documento resolviendo tax codes y HS Codes.
func (b *PayloadBuilder) lineItems(ctx context.Context, in *PayloadInput) ([]map[string]any, error) {
	taxMappings, err := b.mappings.ListTaxMappings(ctx)
	if err != nil {
		return nil, fmt.Errorf("payload: cargar tax mappings: %w", err)
	}
	taxCodes := make(map[string]bool, len(taxMappings))
	defaultTaxCode := ""
	for _, m := range taxMappings {
		taxCodes[m.TaxCode] = true
		if m.IsDefault {
			defaultTaxCode = m.TaxCode
		}
	}

	lines := make([]map[string]any, 0, len(in.Items))
	for _, item := range in.Items {
		line := map[string]any{
			"Description": item.ItemName,
			"UnitAmount":  round3(item.Rate.Abs()),
			"LineAmount":  round2(item.Amount.Abs()),
			"Quantity":    round3(item.Qty.Abs()),
		}

		// DiscountAmount viaja como null cuando no hay descuento.
		if item.DiscountAmount.IsZero() {
			line["DiscountAmount"] = nil
		} else {
			line["DiscountAmount"] = round2(item.DiscountAmount.Abs())
		}

		// Resolución del tax code: línea → documento → default.
		taxCode := ""
		switch {
		case taxCodes[item.TaxTemplate]:
			taxCode = item.TaxTemplate
		case taxCodes[in.Invoice.TaxTemplate]:
			taxCode = in.Invoice.TaxTemplate
		case defaultTaxCode != "":
			taxCode = defaultTaxCode
		}
		if taxCode == "" {
			return nil, fmt.Errorf(
				"no se pudo generar el payload fiscal de %s: ninguna plantilla de impuestos está mapeada: %w",
				in.Invoice.ID, domain.ErrMappingUnresolved)
		}
		line["TaxCode"] = taxCode

		if b.cfg.IncludeHSCodes {
			hsCode, err := b.resolveHSCode(ctx, in.Invoice.ID, item)
			if err != nil {
				return nil, err
			}
			line["ProductCode"] = hsCode
		}

		lines = append(lines, line)
	}

	return lines, nil
}

// resolveHSCode busca el HS Code del item, cayendo al del grupo.
func (b *PayloadBuilder) resolveHSCode(ctx context.Context, invoiceID string, line *entity.SalesInvoiceItem) (string, error) {
	if line.ItemCode != "" {
		item, err := b.items.GetByCode(ctx, line.ItemCode)
		if err != nil {
			return "", fmt.Errorf("payload: cargar item %s: %w", line.ItemCode, err)
		}
		if item != nil && item.HSCode != "" {
			return item.HSCode, nil
		}
	}

	if line.ItemGroup != "" {
		group, err := b.items.GetGroup(ctx, line.ItemGroup)
		if err != nil {
			return "", fmt.Errorf("payload: cargar grupo %s: %w", line.ItemGroup, err)
		}
		if group != nil && group.HSCode != "" {
			return group.HSCode, nil
		}
	}

	return "", fmt.Errorf(
		"no se pudo generar el payload fiscal de %s: falta el HS Code del item %q: %w",
		invoiceID, line.ItemName, domain.ErrMappingUnresolved)
}

// buyerContact arma los datos del comprador a partir del cliente, contacto y
// dirección vinculados.
func (b *PayloadBuilder) buyerContact(in *PayloadInput) (map[string]any, error) {
	if in.Customer == nil || in.Address == nil {
		return nil, fmt.Errorf("payload: factura %s sin cliente o dirección: %w",
			in.Invoice.ID, domain.ErrInvalidInput)
	}

	names := strings.SplitN(in.Invoice.CustomerName, tradeNameSeparator, 2)

	street := in.Address.AddressLine2
	if street == "" {
		street = in.Address.AddressLine1
	}
	buyer := map[string]any{
		"Name": names[0],
		"Address": map[string]any{
			"Province": in.Address.Country,
			"Street":   street,
			"HouseNo":  in.Address.AddressLine1,
			"City":     in.Address.City,
		},
	}

	if len(names) > 1 {
		buyer["TradeName"] = names[1]
	}
	if in.Contact != nil && in.Contact.Phone != "" {
		buyer["Phone"] = in.Contact.Phone
	}
	if in.Contact != nil && in.Contact.Email != "" {
		buyer["Email"] = in.Contact.Email
	}

	if in.Customer.TinNumber != "" {
		buyer["Tin"] = in.Customer.TinNumber
		if in.Customer.TaxID != "" {
			buyer["VatNumber"] = in.Customer.TaxID
		}
		return buyer, nil
	}

	// Sin TIN: las ventas a individuos (o con bypass activo) se tratan como
	// ventas de mostrador.
	bypass := b.cfg.BypassTin || in.Signature.BypassTin
	name := buyer["Name"].(string)
	if (in.Customer.Type == entity.CustomerTypeIndividual || bypass) && !strings.HasPrefix(name, cashPrefix) {
		buyer["Name"] = cashPrefix + name
	}

	return buyer, nil
}

// timestamp combina la fecha y la hora del día, localiza en la zona
// configurada y formatea con el offset con dos puntos que exige la plataforma
// (variante de ISO-8601: 2024-05-01T14:30:00+02:00).
func (b *PayloadBuilder) timestamp(date time.Time, timeOfDay time.Duration) string {
	dt := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, b.loc).Add(timeOfDay)
	return dt.Format("2006-01-02T15:04:05-07:00")
}

// round2 y round3 convierten a float para el JSON del payload: montos a 2
// decimales, tarifas unitarias y cantidades a 3.
func round2(d decimal.Decimal) float64 { return d.Round(2).InexactFloat64() }
func round3(d decimal.Decimal) float64 { return d.Round(3).InexactFloat64() }
