package fiscal_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tu-usuario/fiscal-bridge/internal/application/fiscal"
	"github.com/tu-usuario/fiscal-bridge/internal/domain"
	"github.com/tu-usuario/fiscal-bridge/internal/domain/entity"
)

// buildPayload arma el input estándar del fixture y ejecuta el builder.
func buildPayload(t *testing.T, f *fixture, cfg fiscal.Config) (map[string]any, error) {
	t.Helper()
	if cfg.TimeZone == "" {
		cfg.TimeZone = "Africa/Harare"
	}
	builder, err := fiscal.NewPayloadBuilder(f.items, f.mappings, cfg)
	require.NoError(t, err)

	ctx := context.Background()
	inv := f.invoices.invoices["SINV-001"]
	in := &fiscal.PayloadInput{
		Invoice:   inv,
		Items:     f.invoices.items["SINV-001"],
		Customer:  f.customers.customers[inv.CustomerID],
		Address:   f.customers.addresses[inv.AddressID],
		Signature: &entity.FiscalSignature{ID: "SIG-001", SalesInvoiceID: "SINV-001"},
	}
	if inv.ContactID != "" {
		in.Contact = f.customers.contacts[inv.ContactID]
	}
	return builder.Build(ctx, in)
}

// Factura estándar: campos de factura presentes, campos de nota de crédito ausentes.
func TestPayload_FacturaEstandar(t *testing.T) {
	f := newFixture(fiscal.Config{})
	f.seedInvoice()

	data, err := buildPayload(t, f, fiscal.Config{})
	require.NoError(t, err)

	assert.Equal(t, "SINV-001", data["InvoiceId"])
	assert.Equal(t, "SINV-001", data["InvoiceNumber"])
	assert.Equal(t, "PO-77", data["Reference"], "la referencia de una factura es la orden de compra")
	assert.Equal(t, false, data["IsDiscounted"])
	assert.Equal(t, 100.0, data["SubTotal"])
	assert.Equal(t, 15.0, data["TotalTax"])
	assert.Equal(t, 115.0, data["Total"])
	assert.Equal(t, true, data["IsTaxInclusive"])
	assert.Equal(t, "USD", data["CurrencyCode"])
	assert.Equal(t, false, data["IsRetry"])

	assert.NotContains(t, data, "CreditNoteId")
	assert.NotContains(t, data, "OriginalInvoiceId")

	lines, ok := data["LineItems"].([]map[string]any)
	require.True(t, ok)
	require.Len(t, lines, 1)
	assert.Equal(t, "Widget", lines[0]["Description"])
	assert.Equal(t, 57.5, lines[0]["UnitAmount"])
	assert.Equal(t, 115.0, lines[0]["LineAmount"])
	assert.Equal(t, 2.0, lines[0]["Quantity"])
	assert.Nil(t, lines[0]["DiscountAmount"], "sin descuento viaja null")
	assert.Equal(t, "Standard VAT", lines[0]["TaxCode"])
	assert.NotContains(t, lines[0], "ProductCode", "sin HS Codes habilitados no viaja ProductCode")
}

// Nota de crédito: montos negativos en el ERP, absolutos en el payload.
func TestPayload_NotaDeCredito(t *testing.T) {
	f := newFixture(fiscal.Config{})
	f.seedInvoice()
	inv := f.invoices.invoices["SINV-001"]
	inv.IsReturn = true
	inv.ReturnAgainst = "SINV-000"
	inv.ReturnReason = "Producto defectuoso"
	inv.NetTotal = dec("-100.00")
	inv.TaxTotal = dec("-15.00")
	inv.GrandTotal = dec("-115.00")
	f.invoices.items["SINV-001"][0].Qty = dec("-2")
	f.invoices.items["SINV-001"][0].Rate = dec("57.50")
	f.invoices.items["SINV-001"][0].Amount = dec("-115.00")

	data, err := buildPayload(t, f, fiscal.Config{})
	require.NoError(t, err)

	assert.Equal(t, "SINV-001", data["CreditNoteId"])
	assert.Equal(t, "SINV-000", data["OriginalInvoiceId"])
	assert.Equal(t, "Producto defectuoso", data["Reference"], "la referencia de una nota de crédito es el motivo")
	assert.Equal(t, 100.0, data["SubTotal"])
	assert.Equal(t, 15.0, data["TotalTax"])
	assert.Equal(t, 115.0, data["Total"])
	assert.NotContains(t, data, "InvoiceId")
	assert.NotContains(t, data, "IsDiscounted")

	lines := data["LineItems"].([]map[string]any)
	assert.Equal(t, 2.0, lines[0]["Quantity"], "las cantidades viajan en valor absoluto")
	assert.Equal(t, 115.0, lines[0]["LineAmount"])
}

// Precedencia del tax code: línea sobre documento sobre default.
func TestPayload_PrecedenciaTaxCode(t *testing.T) {
	f := newFixture(fiscal.Config{})
	f.seedInvoice()
	f.mappings.taxes = []*entity.TaxMapping{
		{ID: "TM-1", TaxCode: "Zero Rated", DestinationTaxID: "FH-0", IsDefault: true},
		{ID: "TM-2", TaxCode: "Standard VAT", DestinationTaxID: "FH-15"},
		{ID: "TM-3", TaxCode: "Line VAT", DestinationTaxID: "FH-L"},
	}
	inv := f.invoices.invoices["SINV-001"]
	line := f.invoices.items["SINV-001"][0]

	// 1. La plantilla de la línea gana.
	line.TaxTemplate = "Line VAT"
	inv.TaxTemplate = "Standard VAT"
	data, err := buildPayload(t, f, fiscal.Config{})
	require.NoError(t, err)
	assert.Equal(t, "Line VAT", data["LineItems"].([]map[string]any)[0]["TaxCode"])

	// 2. Sin plantilla de línea gana la del documento.
	line.TaxTemplate = ""
	data, err = buildPayload(t, f, fiscal.Config{})
	require.NoError(t, err)
	assert.Equal(t, "Standard VAT", data["LineItems"].([]map[string]any)[0]["TaxCode"])

	// 3. Sin ninguna plantilla cae al default.
	inv.TaxTemplate = ""
	data, err = buildPayload(t, f, fiscal.Config{})
	require.NoError(t, err)
	assert.Equal(t, "Zero Rated", data["LineItems"].([]map[string]any)[0]["TaxCode"])
}

// Sin plantilla resoluble en ningún nivel el payload no se puede generar.
func TestPayload_SinTaxCodeResoluble(t *testing.T) {
	f := newFixture(fiscal.Config{})
	f.seedInvoice()
	f.mappings.taxes = []*entity.TaxMapping{
		{ID: "TM-1", TaxCode: "Unrelated", DestinationTaxID: "FH-X", IsDefault: false},
	}

	_, err := buildPayload(t, f, fiscal.Config{})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrMappingUnresolved)
	assert.Contains(t, err.Error(), "SINV-001", "el error debe identificar la factura")
}

// HS Codes habilitados: item primero, grupo como fallback, error si no hay ninguno.
func TestPayload_ResolucionHSCode(t *testing.T) {
	cfg := fiscal.Config{IncludeHSCodes: true}
	f := newFixture(cfg)
	f.seedInvoice()

	// 1. El HS Code del item gana.
	f.items.items["WIDGET"] = &entity.Item{Code: "WIDGET", HSCode: "84713000"}
	f.items.groups["Hardware"] = &entity.ItemGroup{Name: "Hardware", HSCode: "85444200"}
	data, err := buildPayload(t, f, cfg)
	require.NoError(t, err)
	assert.Equal(t, "84713000", data["LineItems"].([]map[string]any)[0]["ProductCode"])

	// 2. Sin HS Code en el item cae al del grupo.
	f.items.items["WIDGET"].HSCode = ""
	data, err = buildPayload(t, f, cfg)
	require.NoError(t, err)
	assert.Equal(t, "85444200", data["LineItems"].([]map[string]any)[0]["ProductCode"])

	// 3. Sin HS Code en ningún nivel el payload falla nombrando item y factura.
	f.items.groups["Hardware"].HSCode = ""
	_, err = buildPayload(t, f, cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrMappingUnresolved)
	assert.Contains(t, err.Error(), "SINV-001")
	assert.Contains(t, err.Error(), "Widget")
}

// Nombre comercial: " t/a " separa nombre legal y TradeName.
func TestPayload_NombreComercial(t *testing.T) {
	f := newFixture(fiscal.Config{})
	f.seedInvoice()
	f.invoices.invoices["SINV-001"].CustomerName = "Acme Ltd t/a Corner Store"

	data, err := buildPayload(t, f, fiscal.Config{})
	require.NoError(t, err)

	buyer := data["BuyerContact"].(map[string]any)
	assert.Equal(t, "Acme Ltd", buyer["Name"])
	assert.Equal(t, "Corner Store", buyer["TradeName"])
}

// Venta de mostrador: individuo sin TIN recibe el prefijo "Cash ".
func TestPayload_PrefijoCash(t *testing.T) {
	f := newFixture(fiscal.Config{})
	f.seedInvoice()
	cust := f.customers.customers["CUST-001"]
	cust.Type = entity.CustomerTypeIndividual
	cust.TinNumber = ""
	cust.TaxID = ""
	f.invoices.invoices["SINV-001"].CustomerName = "John Moyo"

	data, err := buildPayload(t, f, fiscal.Config{})
	require.NoError(t, err)
	buyer := data["BuyerContact"].(map[string]any)
	assert.Equal(t, "Cash John Moyo", buyer["Name"])
	assert.NotContains(t, buyer, "Tin")

	// El prefijo no se duplica si el nombre ya lo trae.
	f.invoices.invoices["SINV-001"].CustomerName = "Cash John Moyo"
	data, err = buildPayload(t, f, fiscal.Config{})
	require.NoError(t, err)
	assert.Equal(t, "Cash John Moyo", data["BuyerContact"].(map[string]any)["Name"])
}

// Empresa sin TIN solo recibe el prefijo con el bypass activo.
func TestPayload_EmpresaSinTinConBypass(t *testing.T) {
	f := newFixture(fiscal.Config{})
	f.seedInvoice()
	cust := f.customers.customers["CUST-001"]
	cust.TinNumber = ""
	cust.TaxID = ""

	// Sin bypass: el nombre queda intacto.
	data, err := buildPayload(t, f, fiscal.Config{})
	require.NoError(t, err)
	assert.Equal(t, "Acme Ltd", data["BuyerContact"].(map[string]any)["Name"])

	// Con bypass global: se trata como venta de mostrador.
	data, err = buildPayload(t, f, fiscal.Config{BypassTin: true})
	require.NoError(t, err)
	assert.Equal(t, "Cash Acme Ltd", data["BuyerContact"].(map[string]any)["Name"])
}

// Cliente con TIN: viajan Tin y VatNumber, nunca el prefijo.
func TestPayload_ClienteConTin(t *testing.T) {
	f := newFixture(fiscal.Config{})
	f.seedInvoice()

	data, err := buildPayload(t, f, fiscal.Config{})
	require.NoError(t, err)
	buyer := data["BuyerContact"].(map[string]any)
	assert.Equal(t, "1000123", buyer["Tin"])
	assert.Equal(t, "VAT-555", buyer["VatNumber"])
	assert.Equal(t, "Acme Ltd", buyer["Name"])
}

// Dirección: línea 2 como calle cuando existe, línea 1 como fallback.
func TestPayload_Direccion(t *testing.T) {
	f := newFixture(fiscal.Config{})
	f.seedInvoice()

	data, err := buildPayload(t, f, fiscal.Config{})
	require.NoError(t, err)
	addr := data["BuyerContact"].(map[string]any)["Address"].(map[string]any)
	assert.Equal(t, "Suite 4", addr["Street"])
	assert.Equal(t, "12 Samora Machel Ave", addr["HouseNo"])
	assert.Equal(t, "Harare", addr["City"])
	assert.Equal(t, "Zimbabwe", addr["Province"])

	f.customers.addresses["ADDR-001"].AddressLine2 = ""
	data, err = buildPayload(t, f, fiscal.Config{})
	require.NoError(t, err)
	addr = data["BuyerContact"].(map[string]any)["Address"].(map[string]any)
	assert.Equal(t, "12 Samora Machel Ave", addr["Street"])
}

// Timestamp: fecha + hora del día localizados con offset con dos puntos.
func TestPayload_Timestamp(t *testing.T) {
	f := newFixture(fiscal.Config{})
	f.seedInvoice()
	f.invoices.invoices["SINV-001"].PostingDate = time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)
	f.invoices.invoices["SINV-001"].PostingTime = 14*time.Hour + 30*time.Minute

	data, err := buildPayload(t, f, fiscal.Config{TimeZone: "Africa/Harare"})
	require.NoError(t, err)
	// Harare es UTC+2 sin horario de verano.
	assert.Equal(t, "2024-05-10T14:30:00+02:00", data["Date"])
}
