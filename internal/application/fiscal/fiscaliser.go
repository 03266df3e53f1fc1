package fiscal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tu-usuario/fiscal-bridge/internal/domain"
	"github.com/tu-usuario/fiscal-bridge/internal/domain/entity"
	"github.com/tu-usuario/fiscal-bridge/internal/domain/repository"
	"github.com/tu-usuario/fiscal-bridge/internal/infrastructure/harmony"
	"github.com/tu-usuario/fiscal-bridge/pkg/logger"
)

// processTimeout plazo del ciclo asíncrono de fiscalización, desacoplado del
// ciclo HTTP que lo disparó.
const processTimeout = 30 * time.Second

// applyRetries reintentos ante conflicto de versión al aplicar un resultado.
// Webhooks y reintentos manuales pueden competir por la misma firma; el
// perdedor recarga la fila y vuelve a aplicar.
const applyRetries = 3

// Fiscaliser orquesta el ciclo de fiscalización de una firma:
//
//	payload → firma HMAC → POST /invoice|/creditnote → update de la firma
//
// y aplica los resultados entregados por webhook o por POST /status,
// disparando la descarga/generación del PDF fiscal al fiscalizar.
type Fiscaliser struct {
	signatures repository.SignatureRepository
	invoices   repository.InvoiceRepository
	customers  repository.CustomerRepository
	builder    *PayloadBuilder
	transport  harmony.Transport
	pdf        ProofPDFGenerator
	store      FileStore
	cfg        Config
	log        *logger.Logger
}

// NewFiscaliser construye el orquestador con todas sus dependencias.
func NewFiscaliser(
	signatures repository.SignatureRepository,
	invoices repository.InvoiceRepository,
	customers repository.CustomerRepository,
	builder *PayloadBuilder,
	transport harmony.Transport,
	pdf ProofPDFGenerator,
	store FileStore,
	cfg Config,
	log *logger.Logger,
) *Fiscaliser {
	return &Fiscaliser{
		signatures: signatures,
		invoices:   invoices,
		customers:  customers,
		builder:    builder,
		transport:  transport,
		pdf:        pdf,
		store:      store,
		cfg:        cfg,
		log:        log.Component("fiscaliser"),
	}
}

// CreateForInvoice crea la Fiscal Signature de una factura recién finalizada
// (relación uno a uno) y dispara el envío inmediato en segundo plano.
// Devuelve domain.ErrDuplicate si la factura ya tiene firma.
func (f *Fiscaliser) CreateForInvoice(ctx context.Context, invoiceID string, bypassTin bool) (*entity.FiscalSignature, error) {
	inv, err := f.invoices.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("fiscaliser: cargar factura %s: %w", invoiceID, err)
	}
	if inv == nil {
		return nil, fmt.Errorf("fiscaliser: factura %s: %w", invoiceID, domain.ErrNotFound)
	}

	existing, err := f.signatures.GetByInvoiceID(ctx, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("fiscaliser: buscar firma de %s: %w", invoiceID, err)
	}
	if existing != nil {
		return existing, domain.ErrDuplicate
	}

	now := time.Now()
	sig := &entity.FiscalSignature{
		ID:             uuid.New().String(),
		SalesInvoiceID: invoiceID,
		BypassTin:      bypassTin,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := f.signatures.Create(ctx, sig); err != nil {
		return nil, fmt.Errorf("fiscaliser: crear firma de %s: %w", invoiceID, err)
	}

	f.ProcessAsync(sig.ID)
	return sig, nil
}

// ProcessAsync dispara la fiscalización en una goroutine independiente con su
// propio timeout, desacoplada del request HTTP que la originó.
func (f *Fiscaliser) ProcessAsync(signatureID string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), processTimeout)
		defer cancel()
		if err := f.Fiscalise(ctx, signatureID); err != nil {
			f.log.Error().Err(err).Str("signature_id", signatureID).Msg("fiscalización fallida")
		}
	}()
}

// Fiscalise envía el documento de la firma a la plataforma. Una firma ya
// fiscalizada nunca se reenvía.
func (f *Fiscaliser) Fiscalise(ctx context.Context, signatureID string) error {
	sig, err := f.mustGet(ctx, signatureID)
	if err != nil {
		return err
	}
	if sig.IsFiscalised() {
		return fmt.Errorf("fiscaliser: la firma %s ya está fiscalizada: %w", signatureID, domain.ErrConflict)
	}

	// El flag de reintento se consume al entrar al flujo de envío.
	if sig.IsRetry {
		sig.IsRetry = false
		sig.UpdatedAt = time.Now()
		if err := f.signatures.Update(ctx, sig); err != nil {
			return fmt.Errorf("fiscaliser: consumir is_retry de %s: %w", signatureID, err)
		}
	}

	return f.submit(ctx, sig)
}

// Retry reenvía una firma en estado de fallo recuperable. Cualquier otro
// estado se rechaza.
func (f *Fiscaliser) Retry(ctx context.Context, signatureID string) error {
	sig, err := f.mustGet(ctx, signatureID)
	if err != nil {
		return err
	}
	if !sig.CanRetry() {
		return fmt.Errorf(
			"fiscaliser: la firma %s ya fue fiscalizada o tiene un error irrecuperable: %w",
			signatureID, domain.ErrNotRetryable)
	}
	return f.Fiscalise(ctx, signatureID)
}

// FetchSignatureData consulta POST /status para una firma enviada cuyos datos
// no llegaron por webhook.
func (f *Fiscaliser) FetchSignatureData(ctx context.Context, signatureID string) error {
	sig, err := f.mustGet(ctx, signatureID)
	if err != nil {
		return err
	}
	if sig.FiscalHarmonyID == "" {
		return fmt.Errorf("fiscaliser: la firma %s no tiene Fiscal Harmony ID para consultar: %w",
			signatureID, domain.ErrInvalidInput)
	}
	if sig.IsFiscalised() {
		return fmt.Errorf("fiscaliser: la firma %s ya tiene todos sus datos: %w",
			signatureID, domain.ErrConflict)
	}

	payload, err := harmony.EncodeCanonical([]string{sig.FiscalHarmonyID})
	if err != nil {
		return err
	}
	resp, err := f.transport.Post(ctx, "/status", payload)
	if err != nil {
		// Timeout o fallo de red: recuperable.
		return f.markRetryable(ctx, sig, err.Error(), err)
	}
	if !resp.Ok() {
		return f.handleFailure(ctx, sig, resp)
	}

	batch, err := harmony.ParseSignatureBatch(resp.Body)
	if err != nil {
		return f.markRetryable(ctx, sig, "respuesta de /status malformada: "+err.Error(), domain.ErrServiceUnavailable)
	}
	if len(batch) == 0 {
		return fmt.Errorf("fiscaliser: /status no devolvió resultados para %s: %w",
			sig.FiscalHarmonyID, domain.ErrUnknownReference)
	}
	return f.ApplyResult(ctx, sig, &batch[0])
}

// ApplyResult aplica un resultado (de webhook o de /status) a la firma según
// las reglas de transición:
//
//	Success=true + QrData  → FISCALISED (limpia el error previo)
//	Success=false + IsActionable  → FAILED_RETRYABLE
//	Success=false sin IsActionable → FAILED_TERMINAL
//
// La escritura usa versionado optimista; ante conflicto recarga y reaplica.
func (f *Fiscaliser) ApplyResult(ctx context.Context, sig *entity.FiscalSignature, r *harmony.SignatureResult) error {
	var lastErr error
	for attempt := 0; attempt < applyRetries; attempt++ {
		apply(sig, r)
		sig.UpdatedAt = time.Now()

		err := f.signatures.Update(ctx, sig)
		if err == nil {
			if sig.FiscalFilename != "" {
				f.attachProof(ctx, sig)
			}
			return nil
		}
		if !errors.Is(err, domain.ErrConflict) {
			return fmt.Errorf("fiscaliser: actualizar firma %s: %w", sig.ID, err)
		}
		lastErr = err

		fresh, getErr := f.signatures.GetByID(ctx, sig.ID)
		if getErr != nil || fresh == nil {
			return fmt.Errorf("fiscaliser: recargar firma %s tras conflicto: %w", sig.ID, getErr)
		}
		*sig = *fresh
	}
	return fmt.Errorf("fiscaliser: conflicto persistente al actualizar %s: %w", sig.ID, lastErr)
}

// apply muta la firma con el resultado recibido. Una firma ya fiscalizada no
// retrocede: solo se permite completar datos.
func apply(sig *entity.FiscalSignature, r *harmony.SignatureResult) {
	sig.IsRetry = r.IsActionable && !*r.Success

	if r.Error != "" {
		sig.Error = r.Error
	} else if sig.Error != "" {
		sig.Error = ""
	}

	if q := r.QrData; q != nil {
		sig.FDMSUrl = *q.QrCodeUrl
		sig.VerificationCode = *q.VerificationCode
		sig.FiscalDay = *q.FiscalDay
		sig.DeviceID = *q.DeviceId
		sig.InvoiceNumber = *q.InvoiceNumber
	}

	sig.FiscalFilename = r.FiscalInvoicePdf

	// La fiscalización es terminal: nunca dejar una firma con prueba QR
	// marcada para reenvío.
	if sig.FDMSUrl != "" {
		sig.IsRetry = false
	}
}

// submit construye, firma y envía el payload del documento.
func (f *Fiscaliser) submit(ctx context.Context, sig *entity.FiscalSignature) error {
	in, err := f.loadInput(ctx, sig)
	if err != nil {
		return err
	}
	data, err := f.builder.Build(ctx, in)
	if err != nil {
		// Errores de mapeo: fatales, bloquean el envío y se muestran al operador.
		return err
	}
	payload, err := harmony.EncodeCanonical(data)
	if err != nil {
		return err
	}

	route := "/invoice"
	if in.IsCreditNote() {
		route = "/creditnote"
	}

	resp, err := f.transport.Post(ctx, route, payload)
	if err != nil {
		return f.markRetryable(ctx, sig, err.Error(), err)
	}
	if !resp.Ok() {
		return f.handleFailure(ctx, sig, resp)
	}

	// El body del 2xx es el id de seguimiento asignado por la plataforma.
	sig.FiscalHarmonyID = strings.Trim(strings.TrimSpace(string(resp.Body)), `"`)
	sig.UpdatedAt = time.Now()
	if err := f.signatures.Update(ctx, sig); err != nil {
		return fmt.Errorf("fiscaliser: guardar id externo de %s: %w", sig.ID, err)
	}
	f.log.Info().
		Str("signature_id", sig.ID).
		Str("invoice", sig.SalesInvoiceID).
		Str("harmony_id", sig.FiscalHarmonyID).
		Msg("documento aceptado por la plataforma")
	return nil
}

// handleFailure clasifica una respuesta no exitosa: los fallos de servicio
// son recuperables; 400 y 401 son terminales y no marcan reintento.
func (f *Fiscaliser) handleFailure(ctx context.Context, sig *entity.FiscalSignature, resp *harmony.Response) error {
	detail := fmt.Sprintf("HTTP %d al procesar %s", resp.StatusCode, sig.SalesInvoiceID)

	switch resp.Outcome {
	case harmony.OutcomeServiceFailure:
		return f.markRetryable(ctx, sig, detail, domain.ErrServiceUnavailable)
	case harmony.OutcomeUnauthorised:
		return f.markTerminal(ctx, sig, detail, domain.ErrUnauthorized)
	default:
		return f.markTerminal(ctx, sig, detail, domain.ErrMalformedPayload)
	}
}

// markRetryable registra un fallo recuperable: is_retry pasa a true.
func (f *Fiscaliser) markRetryable(ctx context.Context, sig *entity.FiscalSignature, detail string, cause error) error {
	sig.IsRetry = true
	sig.Error = detail
	sig.UpdatedAt = time.Now()
	if err := f.signatures.Update(ctx, sig); err != nil {
		f.log.Error().Err(err).Str("signature_id", sig.ID).Msg("no se pudo persistir el fallo recuperable")
	}
	return fmt.Errorf("fiscaliser: %s: %w", detail, cause)
}

// markTerminal registra un fallo no recuperable: el error queda anotado y
// is_retry NO se enciende.
func (f *Fiscaliser) markTerminal(ctx context.Context, sig *entity.FiscalSignature, detail string, cause error) error {
	sig.Error = detail
	sig.UpdatedAt = time.Now()
	if err := f.signatures.Update(ctx, sig); err != nil {
		f.log.Error().Err(err).Str("signature_id", sig.ID).Msg("no se pudo persistir el fallo terminal")
	}
	return fmt.Errorf("fiscaliser: %s: %w", detail, cause)
}

// attachProof descarga o genera el PDF fiscal y lo guarda en
// fiscal-invoices/{año}/{mes}/{factura}.pdf, deduplicado por path.
// Es un efecto secundario: sus fallos se loguean pero no revierten la
// transición de estado.
func (f *Fiscaliser) attachProof(ctx context.Context, sig *entity.FiscalSignature) {
	inv, err := f.invoices.GetByID(ctx, sig.SalesInvoiceID)
	if err != nil || inv == nil {
		f.log.Error().Err(err).Str("invoice", sig.SalesInvoiceID).Msg("PDF fiscal: factura no encontrada")
		return
	}

	path := fmt.Sprintf("fiscal-invoices/%04d/%02d/%s.pdf",
		inv.PostingDate.Year(), int(inv.PostingDate.Month()), inv.ID)
	if f.store.Exists(path) {
		return
	}

	var pdf []byte
	if f.cfg.AttachLocalPDF {
		pdf, err = f.generateProof(ctx, sig, inv)
	} else {
		pdf, err = f.downloadProof(ctx, sig)
	}
	if err != nil {
		f.log.Error().Err(err).Str("invoice", inv.ID).Msg("PDF fiscal: no se pudo obtener el contenido")
		return
	}
	if len(pdf) == 0 {
		return
	}

	if err := f.store.Save(path, pdf); err != nil {
		f.log.Error().Err(err).Str("path", path).Msg("PDF fiscal: no se pudo guardar el adjunto")
	}
}

func (f *Fiscaliser) generateProof(ctx context.Context, sig *entity.FiscalSignature, inv *entity.SalesInvoice) ([]byte, error) {
	items, err := f.invoices.GetItems(ctx, inv.ID)
	if err != nil {
		return nil, err
	}
	customer, err := f.customers.GetByID(ctx, inv.CustomerID)
	if err != nil {
		return nil, err
	}
	return f.pdf.GenerateProof(ctx, inv, items, customer, sig)
}

func (f *Fiscaliser) downloadProof(ctx context.Context, sig *entity.FiscalSignature) ([]byte, error) {
	resp, err := f.transport.Get(ctx, "/download/"+sig.FiscalFilename)
	if err != nil {
		return nil, err
	}
	if !resp.Ok() {
		return nil, fmt.Errorf("descarga de %s: HTTP %d", sig.FiscalFilename, resp.StatusCode)
	}
	return resp.Body, nil
}

// loadInput carga todos los registros necesarios para construir el payload.
func (f *Fiscaliser) loadInput(ctx context.Context, sig *entity.FiscalSignature) (*PayloadInput, error) {
	inv, err := f.invoices.GetByID(ctx, sig.SalesInvoiceID)
	if err != nil {
		return nil, fmt.Errorf("fiscaliser: cargar factura %s: %w", sig.SalesInvoiceID, err)
	}
	if inv == nil {
		return nil, fmt.Errorf("fiscaliser: factura %s: %w", sig.SalesInvoiceID, domain.ErrNotFound)
	}
	items, err := f.invoices.GetItems(ctx, inv.ID)
	if err != nil {
		return nil, fmt.Errorf("fiscaliser: cargar líneas de %s: %w", inv.ID, err)
	}
	customer, err := f.customers.GetByID(ctx, inv.CustomerID)
	if err != nil {
		return nil, fmt.Errorf("fiscaliser: cargar cliente %s: %w", inv.CustomerID, err)
	}
	var contact *entity.Contact
	if inv.ContactID != "" {
		if contact, err = f.customers.GetContact(ctx, inv.ContactID); err != nil {
			return nil, fmt.Errorf("fiscaliser: cargar contacto %s: %w", inv.ContactID, err)
		}
	}
	address, err := f.customers.GetAddress(ctx, inv.AddressID)
	if err != nil {
		return nil, fmt.Errorf("fiscaliser: cargar dirección %s: %w", inv.AddressID, err)
	}

	return &PayloadInput{
		Invoice:   inv,
		Items:     items,
		Customer:  customer,
		Contact:   contact,
		Address:   address,
		Signature: sig,
	}, nil
}

func (f *Fiscaliser) mustGet(ctx context.Context, signatureID string) (*entity.FiscalSignature, error) {
	sig, err := f.signatures.GetByID(ctx, signatureID)
	if err != nil {
		return nil, fmt.Errorf("fiscaliser: cargar firma %s: %w", signatureID, err)
	}
	if sig == nil {
		return nil, fmt.Errorf("fiscaliser: firma %s: %w", signatureID, domain.ErrNotFound)
	}
	return sig, nil
}
