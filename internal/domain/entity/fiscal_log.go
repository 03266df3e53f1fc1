package entity

import "time"

// Clasificación del resultado de un intercambio con Fiscal Harmony.
const (
	LogStatusSuccess      = "Success"
	LogStatusFailure      = "Failure"
	LogStatusUnauthorised = "Unauthorised"
	LogStatusInvalidJSON  = "Invalid JSON"
)

// FiscalLog registro inmutable de auditoría de un intercambio HTTP o evento
// de webhook. Se crea uno por intento, éxito o fallo, y nunca se muta.
type FiscalLog struct {
	ID                 string
	Status             string
	RequestURL         string
	Payload            string // JSON crudo enviado o recibido
	Response           string // JSON crudo de la respuesta
	ResponseStatusCode int
	SignatureValid     *bool // solo webhooks: false si la firma HMAC no verificó; nil en intercambios salientes
	RequestID          string
	ErrorDetails       string
	CreatedAt          time.Time
}

// HarmonyStatus fila única con el indicador de vida de la integración.
type HarmonyStatus struct {
	LastSuccessfulRequest time.Time
}
