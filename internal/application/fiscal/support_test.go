package fiscal_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tu-usuario/fiscal-bridge/internal/application/fiscal"
	"github.com/tu-usuario/fiscal-bridge/internal/domain"
	"github.com/tu-usuario/fiscal-bridge/internal/domain/entity"
	"github.com/tu-usuario/fiscal-bridge/internal/infrastructure/harmony"
	"github.com/tu-usuario/fiscal-bridge/pkg/logger"
)

// ──────────────────────────────────────────────────────────────────────────────
// Fakes en memoria para los tests del caso de uso
// ──────────────────────────────────────────────────────────────────────────────

const testSecret = "test-secret"

// memSignatureRepo implementación en memoria con versionado optimista real.
type memSignatureRepo struct {
	mu   sync.Mutex
	rows map[string]*entity.FiscalSignature
}

func newMemSignatureRepo() *memSignatureRepo {
	return &memSignatureRepo{rows: make(map[string]*entity.FiscalSignature)}
}

func (r *memSignatureRepo) Create(_ context.Context, sig *entity.FiscalSignature) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[sig.ID]; ok {
		return domain.ErrDuplicate
	}
	cp := *sig
	r.rows[sig.ID] = &cp
	return nil
}

func (r *memSignatureRepo) GetByID(_ context.Context, id string) (*entity.FiscalSignature, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if row, ok := r.rows[id]; ok {
		cp := *row
		return &cp, nil
	}
	return nil, nil
}

func (r *memSignatureRepo) GetByHarmonyID(_ context.Context, harmonyID string) (*entity.FiscalSignature, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if row.FiscalHarmonyID == harmonyID {
			cp := *row
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memSignatureRepo) GetByInvoiceID(_ context.Context, invoiceID string) (*entity.FiscalSignature, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if row.SalesInvoiceID == invoiceID {
			cp := *row
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memSignatureRepo) Update(_ context.Context, sig *entity.FiscalSignature) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.rows[sig.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if current.Version != sig.Version {
		return fmt.Errorf("version %d esperada, hay %d: %w", sig.Version, current.Version, domain.ErrConflict)
	}
	sig.Version++
	cp := *sig
	r.rows[sig.ID] = &cp
	return nil
}

func (r *memSignatureRepo) ListRetryable(_ context.Context, limit int) ([]*entity.FiscalSignature, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.FiscalSignature
	for _, row := range r.rows {
		if row.IsRetry && row.FDMSUrl == "" {
			cp := *row
			out = append(out, &cp)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

// memInvoiceRepo facturas precargadas.
type memInvoiceRepo struct {
	invoices map[string]*entity.SalesInvoice
	items    map[string][]*entity.SalesInvoiceItem
}

func (r *memInvoiceRepo) GetByID(_ context.Context, id string) (*entity.SalesInvoice, error) {
	return r.invoices[id], nil
}

func (r *memInvoiceRepo) GetItems(_ context.Context, invoiceID string) ([]*entity.SalesInvoiceItem, error) {
	return r.items[invoiceID], nil
}

// memCustomerRepo clientes, contactos y direcciones precargados.
type memCustomerRepo struct {
	customers map[string]*entity.Customer
	contacts  map[string]*entity.Contact
	addresses map[string]*entity.Address
}

func (r *memCustomerRepo) GetByID(_ context.Context, id string) (*entity.Customer, error) {
	return r.customers[id], nil
}

func (r *memCustomerRepo) GetContact(_ context.Context, id string) (*entity.Contact, error) {
	return r.contacts[id], nil
}

func (r *memCustomerRepo) GetAddress(_ context.Context, id string) (*entity.Address, error) {
	return r.addresses[id], nil
}

// memItemRepo items y grupos con HS Codes.
type memItemRepo struct {
	items  map[string]*entity.Item
	groups map[string]*entity.ItemGroup
}

func (r *memItemRepo) GetByCode(_ context.Context, code string) (*entity.Item, error) {
	return r.items[code], nil
}

func (r *memItemRepo) GetGroup(_ context.Context, name string) (*entity.ItemGroup, error) {
	return r.groups[name], nil
}

func (r *memItemRepo) UpsertGroup(_ context.Context, g *entity.ItemGroup) error {
	r.groups[g.Name] = g
	return nil
}

func (r *memItemRepo) BackfillGroupHSCode(_ context.Context, _ string) (int, error) {
	return 0, nil
}

// memMappingRepo mapeos de impuestos y moneda.
type memMappingRepo struct {
	taxes      []*entity.TaxMapping
	currencies []*entity.CurrencyMapping
	lastOK     time.Time
}

func (r *memMappingRepo) ListTaxMappings(_ context.Context) ([]*entity.TaxMapping, error) {
	return r.taxes, nil
}

func (r *memMappingRepo) SaveTaxMapping(_ context.Context, m *entity.TaxMapping) error {
	for i, t := range r.taxes {
		if t.ID == m.ID {
			r.taxes[i] = m
			return nil
		}
	}
	r.taxes = append(r.taxes, m)
	return nil
}

func (r *memMappingRepo) ListCurrencyMappings(_ context.Context) ([]*entity.CurrencyMapping, error) {
	return r.currencies, nil
}

func (r *memMappingRepo) SaveCurrencyMapping(_ context.Context, m *entity.CurrencyMapping) error {
	for i, c := range r.currencies {
		if c.ID == m.ID {
			r.currencies[i] = m
			return nil
		}
	}
	r.currencies = append(r.currencies, m)
	return nil
}

func (r *memMappingRepo) TouchLastSuccessfulRequest(_ context.Context, at time.Time) error {
	r.lastOK = at
	return nil
}

func (r *memMappingRepo) GetLastSuccessfulRequest(_ context.Context) (time.Time, error) {
	return r.lastOK, nil
}

// memLogRepo bitácora en memoria.
type memLogRepo struct {
	mu      sync.Mutex
	entries []*entity.FiscalLog
}

func (r *memLogRepo) Insert(_ context.Context, log *entity.FiscalLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, log)
	return nil
}

func (r *memLogRepo) ListRecent(_ context.Context, limit int) ([]*entity.FiscalLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if limit > len(r.entries) {
		limit = len(r.entries)
	}
	return r.entries[len(r.entries)-limit:], nil
}

// fakeTransport transporte programable: una respuesta (o error) por
// método + ruta.
type fakeTransport struct {
	mu        sync.Mutex
	responses map[string]*harmony.Response
	errs      map[string]error
	calls     []transportCall
}

type transportCall struct {
	Method  string
	Route   string
	Payload []byte
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		responses: make(map[string]*harmony.Response),
		errs:      make(map[string]error),
	}
}

func (t *fakeTransport) respond(method, route string, status int, body string) {
	t.responses[method+" "+route] = &harmony.Response{
		StatusCode: status,
		Body:       []byte(body),
		Outcome:    classifyStatus(status),
	}
}

func (t *fakeTransport) fail(method, route string, err error) {
	t.errs[method+" "+route] = err
}

func classifyStatus(status int) harmony.Outcome {
	switch {
	case status >= 200 && status < 300:
		return harmony.OutcomeSuccess
	case status == 401:
		return harmony.OutcomeUnauthorised
	case status == 400:
		return harmony.OutcomeInvalidPayload
	default:
		return harmony.OutcomeServiceFailure
	}
}

func (t *fakeTransport) do(method, route string, payload []byte) (*harmony.Response, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls = append(t.calls, transportCall{Method: method, Route: route, Payload: payload})
	key := method + " " + route
	if err, ok := t.errs[key]; ok {
		return nil, err
	}
	if resp, ok := t.responses[key]; ok {
		return resp, nil
	}
	return &harmony.Response{StatusCode: 404, Outcome: harmony.OutcomeServiceFailure}, nil
}

func (t *fakeTransport) Get(_ context.Context, route string) (*harmony.Response, error) {
	return t.do("GET", route, nil)
}

func (t *fakeTransport) Post(_ context.Context, route string, payload []byte) (*harmony.Response, error) {
	return t.do("POST", route, payload)
}

func (t *fakeTransport) Put(_ context.Context, route string, payload []byte) (*harmony.Response, error) {
	return t.do("PUT", route, payload)
}

func (t *fakeTransport) Delete(_ context.Context, route string) (*harmony.Response, error) {
	return t.do("DELETE", route, nil)
}

// fakePDF generador de PDFs que devuelve contenido fijo.
type fakePDF struct {
	calls int
}

func (p *fakePDF) GenerateProof(_ context.Context, _ *entity.SalesInvoice, _ []*entity.SalesInvoiceItem, _ *entity.Customer, _ *entity.FiscalSignature) ([]byte, error) {
	p.calls++
	return []byte("%PDF-fake"), nil
}

// fakeStore almacenamiento en memoria.
type fakeStore struct {
	mu    sync.Mutex
	files map[string][]byte
}

func newFakeStore() *fakeStore { return &fakeStore{files: make(map[string][]byte)} }

func (s *fakeStore) Exists(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.files[path]
	return ok
}

func (s *fakeStore) Save(path string, content []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[path] = content
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Fixture completo
// ──────────────────────────────────────────────────────────────────────────────

// fixture arma un Fiscaliser con todos los fakes y una factura de venta
// estándar lista para fiscalizar.
type fixture struct {
	sigs      *memSignatureRepo
	invoices  *memInvoiceRepo
	customers *memCustomerRepo
	items     *memItemRepo
	mappings  *memMappingRepo
	logs      *memLogRepo
	transport *fakeTransport
	pdf       *fakePDF
	store     *fakeStore
	fisc      *fiscal.Fiscaliser
	webhooks  *fiscal.WebhookProcessor
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func newFixture(cfg fiscal.Config) *fixture {
	if cfg.TimeZone == "" {
		cfg.TimeZone = "Africa/Harare"
	}

	f := &fixture{
		sigs: newMemSignatureRepo(),
		invoices: &memInvoiceRepo{
			invoices: make(map[string]*entity.SalesInvoice),
			items:    make(map[string][]*entity.SalesInvoiceItem),
		},
		customers: &memCustomerRepo{
			customers: make(map[string]*entity.Customer),
			contacts:  make(map[string]*entity.Contact),
			addresses: make(map[string]*entity.Address),
		},
		items: &memItemRepo{
			items:  make(map[string]*entity.Item),
			groups: make(map[string]*entity.ItemGroup),
		},
		mappings:  &memMappingRepo{},
		logs:      &memLogRepo{},
		transport: newFakeTransport(),
		pdf:       &fakePDF{},
		store:     newFakeStore(),
	}

	builder, err := fiscal.NewPayloadBuilder(f.items, f.mappings, cfg)
	if err != nil {
		panic(err)
	}
	log := logger.Nop()
	f.fisc = fiscal.NewFiscaliser(f.sigs, f.invoices, f.customers, builder, f.transport, f.pdf, f.store, cfg, log)
	f.webhooks = fiscal.NewWebhookProcessor(f.sigs, f.logs, f.fisc, testSecret, log)
	return f
}

// seedInvoice carga la factura SINV-001 con su cliente, dirección, línea
// única y mapeo de impuestos default.
func (f *fixture) seedInvoice() {
	f.invoices.invoices["SINV-001"] = &entity.SalesInvoice{
		ID:           "SINV-001",
		CustomerID:   "CUST-001",
		AddressID:    "ADDR-001",
		CustomerName: "Acme Ltd",
		PONo:         "PO-77",
		PostingDate:  time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC),
		PostingTime:  14*time.Hour + 30*time.Minute,
		NetTotal:     dec("100.00"),
		TaxTotal:     dec("15.00"),
		GrandTotal:   dec("115.00"),
		Currency:     "USD",
		TaxTemplate:  "",
	}
	f.invoices.items["SINV-001"] = []*entity.SalesInvoiceItem{
		{
			ID:        "ROW-1",
			InvoiceID: "SINV-001",
			ItemCode:  "WIDGET",
			ItemName:  "Widget",
			ItemGroup: "Hardware",
			Qty:       dec("2"),
			Rate:      dec("57.50"),
			Amount:    dec("115.00"),
		},
	}
	f.customers.customers["CUST-001"] = &entity.Customer{
		ID:        "CUST-001",
		Name:      "Acme Ltd",
		Type:      entity.CustomerTypeCompany,
		TinNumber: "1000123",
		TaxID:     "VAT-555",
	}
	f.customers.addresses["ADDR-001"] = &entity.Address{
		ID:           "ADDR-001",
		CustomerID:   "CUST-001",
		AddressLine1: "12 Samora Machel Ave",
		AddressLine2: "Suite 4",
		City:         "Harare",
		Country:      "Zimbabwe",
	}
	f.mappings.taxes = []*entity.TaxMapping{
		{ID: "TM-1", TaxCode: "Standard VAT", DestinationTaxID: "FH-VAT-15", IsDefault: true},
	}
}

// seedSignature crea una firma ya persistida para SINV-001.
func (f *fixture) seedSignature(sig *entity.FiscalSignature) *entity.FiscalSignature {
	if sig.ID == "" {
		sig.ID = "SIG-001"
	}
	if sig.SalesInvoiceID == "" {
		sig.SalesInvoiceID = "SINV-001"
	}
	if err := f.sigs.Create(context.Background(), sig); err != nil {
		panic(err)
	}
	return sig
}

// signedBody firma un body de webhook con el secreto de test.
func signedBody(body string) (raw []byte, signature string) {
	raw = []byte(body)
	return raw, harmony.Sign(raw, []byte(testSecret))
}
