package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tu-usuario/fiscal-bridge/internal/application/fiscal"
	"github.com/tu-usuario/fiscal-bridge/internal/domain"
	"github.com/tu-usuario/fiscal-bridge/internal/domain/entity"
	"github.com/tu-usuario/fiscal-bridge/internal/infrastructure/harmony"
	apphttp "github.com/tu-usuario/fiscal-bridge/internal/interfaces/http"
	"github.com/tu-usuario/fiscal-bridge/pkg/logger"
)

const webhookSecret = "webhook-test-secret"

// ──────────────────────────────────────────────────────────────────────────────
// Stubs mínimos para el ciclo del webhook
// ──────────────────────────────────────────────────────────────────────────────

type stubSigRepo struct {
	rows map[string]*entity.FiscalSignature
}

func (r *stubSigRepo) Create(_ context.Context, sig *entity.FiscalSignature) error {
	r.rows[sig.ID] = sig
	return nil
}

func (r *stubSigRepo) GetByID(_ context.Context, id string) (*entity.FiscalSignature, error) {
	return r.rows[id], nil
}

func (r *stubSigRepo) GetByHarmonyID(_ context.Context, harmonyID string) (*entity.FiscalSignature, error) {
	for _, s := range r.rows {
		if s.FiscalHarmonyID == harmonyID {
			return s, nil
		}
	}
	return nil, nil
}

func (r *stubSigRepo) GetByInvoiceID(_ context.Context, invoiceID string) (*entity.FiscalSignature, error) {
	for _, s := range r.rows {
		if s.SalesInvoiceID == invoiceID {
			return s, nil
		}
	}
	return nil, nil
}

func (r *stubSigRepo) Update(_ context.Context, sig *entity.FiscalSignature) error {
	if _, ok := r.rows[sig.ID]; !ok {
		return domain.ErrNotFound
	}
	r.rows[sig.ID] = sig
	return nil
}

func (r *stubSigRepo) ListRetryable(_ context.Context, _ int) ([]*entity.FiscalSignature, error) {
	return nil, nil
}

type stubLogRepo struct {
	entries []*entity.FiscalLog
}

func (r *stubLogRepo) Insert(_ context.Context, l *entity.FiscalLog) error {
	r.entries = append(r.entries, l)
	return nil
}

func (r *stubLogRepo) ListRecent(_ context.Context, _ int) ([]*entity.FiscalLog, error) {
	return r.entries, nil
}

type stubInvoiceRepo struct{}

func (stubInvoiceRepo) GetByID(_ context.Context, _ string) (*entity.SalesInvoice, error) {
	return nil, nil
}

func (stubInvoiceRepo) GetItems(_ context.Context, _ string) ([]*entity.SalesInvoiceItem, error) {
	return nil, nil
}

type stubCustomerRepo struct{}

func (stubCustomerRepo) GetByID(_ context.Context, _ string) (*entity.Customer, error) {
	return nil, nil
}
func (stubCustomerRepo) GetContact(_ context.Context, _ string) (*entity.Contact, error) {
	return nil, nil
}
func (stubCustomerRepo) GetAddress(_ context.Context, _ string) (*entity.Address, error) {
	return nil, nil
}

type stubItemRepo struct{}

func (stubItemRepo) GetByCode(_ context.Context, _ string) (*entity.Item, error) { return nil, nil }

func (stubItemRepo) GetGroup(_ context.Context, _ string) (*entity.ItemGroup, error) {
	return nil, nil
}

func (stubItemRepo) UpsertGroup(_ context.Context, _ *entity.ItemGroup) error { return nil }

func (stubItemRepo) BackfillGroupHSCode(_ context.Context, _ string) (int, error) { return 0, nil }

type stubMappingRepo struct{}

func (stubMappingRepo) ListTaxMappings(_ context.Context) ([]*entity.TaxMapping, error) {
	return nil, nil
}
func (stubMappingRepo) SaveTaxMapping(_ context.Context, _ *entity.TaxMapping) error { return nil }
func (stubMappingRepo) ListCurrencyMappings(_ context.Context) ([]*entity.CurrencyMapping, error) {
	return nil, nil
}
func (stubMappingRepo) SaveCurrencyMapping(_ context.Context, _ *entity.CurrencyMapping) error {
	return nil
}
func (stubMappingRepo) TouchLastSuccessfulRequest(_ context.Context, _ time.Time) error { return nil }
func (stubMappingRepo) GetLastSuccessfulRequest(_ context.Context) (time.Time, error) {
	return time.Time{}, nil
}

type stubTransport struct{}

func (stubTransport) Get(_ context.Context, _ string) (*harmony.Response, error) {
	return nil, domain.ErrServiceUnavailable
}
func (stubTransport) Post(_ context.Context, _ string, _ []byte) (*harmony.Response, error) {
	return nil, domain.ErrServiceUnavailable
}
func (stubTransport) Put(_ context.Context, _ string, _ []byte) (*harmony.Response, error) {
	return nil, domain.ErrServiceUnavailable
}
func (stubTransport) Delete(_ context.Context, _ string) (*harmony.Response, error) {
	return nil, domain.ErrServiceUnavailable
}

type stubPDF struct{}

func (stubPDF) GenerateProof(_ context.Context, _ *entity.SalesInvoice, _ []*entity.SalesInvoiceItem, _ *entity.Customer, _ *entity.FiscalSignature) ([]byte, error) {
	return nil, nil
}

type stubStore struct{}

func (stubStore) Exists(_ string) bool { return true }

func (stubStore) Save(_ string, _ []byte) error { return nil }

// buildWebhookApp arma la app Fiber con el webhook montado y una firma
// SUBMITTED precargada.
func buildWebhookApp(t *testing.T) (*fiber.App, *stubSigRepo, *stubLogRepo) {
	t.Helper()
	sigs := &stubSigRepo{rows: map[string]*entity.FiscalSignature{
		"SIG-1": {ID: "SIG-1", SalesInvoiceID: "SINV-001", FiscalHarmonyID: "FH-REQ-001"},
	}}
	logs := &stubLogRepo{}

	cfg := fiscal.Config{TimeZone: "UTC"}
	builder, err := fiscal.NewPayloadBuilder(stubItemRepo{}, stubMappingRepo{}, cfg)
	require.NoError(t, err)
	fisc := fiscal.NewFiscaliser(sigs, stubInvoiceRepo{}, stubCustomerRepo{}, builder,
		stubTransport{}, stubPDF{}, stubStore{}, cfg, logger.Nop())
	processor := fiscal.NewWebhookProcessor(sigs, logs, fisc, webhookSecret, logger.Nop())

	app := fiber.New()
	app.Post("/api/fiscal-signatures", apphttp.NewWebhookHandler(processor).Receive)
	return app, sigs, logs
}

func postWebhook(t *testing.T, app *fiber.App, body []byte, signature string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/fiscal-signatures", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set("X-Api-Signature", signature)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

// ──────────────────────────────────────────────────────────────────────────────
// Tests
// ──────────────────────────────────────────────────────────────────────────────

// Webhook firmado y válido: 200 {"status":"Success"} y firma fiscalizada.
func TestWebhookEndpoint_LoteValido(t *testing.T) {
	app, sigs, logs := buildWebhookApp(t)
	body := []byte(`[{"RequestId":"FH-REQ-001","Success":true,"QrData":{"QrCodeUrl":"https://fdms.zimra.co.zw/v/A","VerificationCode":"A","FiscalDay":1,"DeviceId":1,"InvoiceNumber":1}}]`)

	resp := postWebhook(t, app, body, harmony.Sign(body, []byte(webhookSecret)))
	defer resp.Body.Close()

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	var payload map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	assert.Equal(t, "Success", payload["status"])

	assert.Equal(t, entity.SignatureStateFiscalised, sigs.rows["SIG-1"].State())
	require.Len(t, logs.entries, 1)
	assert.Equal(t, entity.LogStatusSuccess, logs.entries[0].Status)
}

// Firma HMAC inválida: 401 y el registro queda intacto.
func TestWebhookEndpoint_FirmaInvalida(t *testing.T) {
	app, sigs, logs := buildWebhookApp(t)
	body := []byte(`[{"RequestId":"FH-REQ-001","Success":true,"QrData":null}]`)

	resp := postWebhook(t, app, body, "no-es-una-firma")
	defer resp.Body.Close()

	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, entity.SignatureStateSubmitted, sigs.rows["SIG-1"].State())
	require.Len(t, logs.entries, 1)
	require.NotNil(t, logs.entries[0].SignatureValid)
	assert.False(t, *logs.entries[0].SignatureValid)
}

// RequestId desconocido: 404.
func TestWebhookEndpoint_RequestIdDesconocido(t *testing.T) {
	app, _, _ := buildWebhookApp(t)
	body := []byte(`[{"RequestId":"FH-NADIE","Success":true,"QrData":null}]`)

	resp := postWebhook(t, app, body, harmony.Sign(body, []byte(webhookSecret)))
	defer resp.Body.Close()

	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	var payload map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	assert.Equal(t, "RequestId is unknown", payload["error"])
}

// Body malformado firmado: 400 Invalid JSON.
func TestWebhookEndpoint_JSONInvalido(t *testing.T) {
	app, _, _ := buildWebhookApp(t)
	body := []byte(`{rotisimo`)

	resp := postWebhook(t, app, body, harmony.Sign(body, []byte(webhookSecret)))
	defer resp.Body.Close()

	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	var payload map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	assert.Equal(t, "Invalid JSON", payload["error"])
}
