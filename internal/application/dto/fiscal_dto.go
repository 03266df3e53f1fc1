package dto

import (
	"time"

	"github.com/tu-usuario/fiscal-bridge/internal/domain/entity"
)

// SignatureResponse estado de una Fiscal Signature para los operadores.
type SignatureResponse struct {
	ID               string    `json:"id"`
	SalesInvoiceID   string    `json:"sales_invoice_id"`
	State            string    `json:"state"`
	FiscalHarmonyID  string    `json:"fiscal_harmony_id,omitempty"`
	FDMSUrl          string    `json:"fdms_url,omitempty"`
	VerificationCode string    `json:"verification_code,omitempty"`
	FiscalDay        int       `json:"fiscal_day,omitempty"`
	DeviceID         int       `json:"device_id,omitempty"`
	InvoiceNumber    int       `json:"invoice_number,omitempty"`
	Error            string    `json:"error,omitempty"`
	IsRetry          bool      `json:"is_retry"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// ToSignatureResponse mapea la entidad al contrato JSON.
func ToSignatureResponse(sig *entity.FiscalSignature) *SignatureResponse {
	return &SignatureResponse{
		ID:               sig.ID,
		SalesInvoiceID:   sig.SalesInvoiceID,
		State:            sig.State(),
		FiscalHarmonyID:  sig.FiscalHarmonyID,
		FDMSUrl:          sig.FDMSUrl,
		VerificationCode: sig.VerificationCode,
		FiscalDay:        sig.FiscalDay,
		DeviceID:         sig.DeviceID,
		InvoiceNumber:    sig.InvoiceNumber,
		Error:            sig.Error,
		IsRetry:          sig.IsRetry,
		CreatedAt:        sig.CreatedAt,
		UpdatedAt:        sig.UpdatedAt,
	}
}

// FiscalDetailsResponse datos fiscales para imprimir en la factura.
type FiscalDetailsResponse struct {
	SalesInvoiceID   string `json:"sales_invoice_id"`
	FDMSUrl          string `json:"fdms_url"`
	VerificationCode string `json:"verification_code"`
	FiscalDay        int    `json:"fiscal_day"`
	DeviceID         int    `json:"device_id"`
	InvoiceNumber    int    `json:"invoice_number"`
}

// FiscaliseRequest opciones al crear la firma de una factura.
type FiscaliseRequest struct {
	BypassTin bool `json:"bypass_tin"`
}

// CurrencyCheckResponse monedas locales que la plataforma no soporta.
type CurrencyCheckResponse struct {
	Unsupported []string `json:"unsupported"`
}

// LogResponse entrada de la bitácora de auditoría.
type LogResponse struct {
	ID                 string    `json:"id"`
	Status             string    `json:"status"`
	RequestURL         string    `json:"request_url"`
	ResponseStatusCode int       `json:"response_status_code"`
	SignatureValid     *bool     `json:"signature_valid,omitempty"`
	RequestID          string    `json:"request_id,omitempty"`
	ErrorDetails       string    `json:"error_details,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
}

// ToLogResponse mapea la entidad al contrato JSON. El payload y la respuesta
// crudos no se exponen por la API.
func ToLogResponse(l *entity.FiscalLog) *LogResponse {
	return &LogResponse{
		ID:                 l.ID,
		Status:             l.Status,
		RequestURL:         l.RequestURL,
		ResponseStatusCode: l.ResponseStatusCode,
		SignatureValid:     l.SignatureValid,
		RequestID:          l.RequestID,
		ErrorDetails:       l.ErrorDetails,
		CreatedAt:          l.CreatedAt,
	}
}
