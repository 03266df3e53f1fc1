package entity

import "time"

// Estados derivados de una Fiscal Signature.
const (
	SignatureStateNew             = "NEW"              // sin FiscalHarmonyID: todavía no aceptada
	SignatureStateSubmitted       = "SUBMITTED"        // aceptada, esperando datos QR
	SignatureStateFiscalised      = "FISCALISED"       // con FDMSUrl: éxito terminal
	SignatureStateFailedRetryable = "FAILED_RETRYABLE" // fallo recuperable, elegible para reenvío
	SignatureStateFailedTerminal  = "FAILED_TERMINAL"  // error sin reintento posible
)

// FiscalSignature registra el ciclo de fiscalización de una factura o nota
// de crédito ante Fiscal Harmony. Se crea una sola vez al finalizar la
// factura, nunca se elimina, y se muta con cada intento o webhook.
type FiscalSignature struct {
	ID               string
	SalesInvoiceID   string // inmutable después de la creación
	FiscalHarmonyID  string // id de seguimiento externo; vacío hasta que la plataforma acepta
	FDMSUrl          string // URL del QR; su presencia marca éxito terminal
	VerificationCode string
	FiscalDay        int
	DeviceID         int
	InvoiceNumber    int
	FiscalFilename   string // nombre del PDF fiscal en la plataforma; dispara la descarga
	Error            string // último error reportado; se limpia al tener éxito
	IsRetry          bool   // true: fallo recuperable, elegible para reenvío
	BypassTin        bool   // fuerza el prefijo "Cash " en el payload
	Version          int    // versión optimista; evita last-writer-wins entre webhook y reintentos
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// State deriva el estado del ciclo de vida a partir de los campos persistidos.
func (s *FiscalSignature) State() string {
	switch {
	case s.FDMSUrl != "":
		return SignatureStateFiscalised
	case s.IsRetry:
		return SignatureStateFailedRetryable
	case s.Error != "":
		return SignatureStateFailedTerminal
	case s.FiscalHarmonyID != "":
		return SignatureStateSubmitted
	default:
		return SignatureStateNew
	}
}

// CanRetry indica si la firma admite un reenvío manual o programado.
// Una firma con FDMSUrl ya está fiscalizada y nunca se reenvía.
func (s *FiscalSignature) CanRetry() bool {
	return s.IsRetry && s.FDMSUrl == ""
}

// IsFiscalised indica si la firma alcanzó el éxito terminal.
func (s *FiscalSignature) IsFiscalised() bool {
	return s.FDMSUrl != ""
}
