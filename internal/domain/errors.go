package domain

import "errors"

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound     = errors.New("recurso no encontrado")
	ErrInvalidInput = errors.New("entrada inválida")
	ErrDuplicate    = errors.New("recurso duplicado")
	ErrUnauthorized = errors.New("no autorizado")
	ErrForbidden    = errors.New("acceso denegado")
	ErrConflict     = errors.New("conflicto con el estado actual")

	// Taxonomía de la integración Fiscal Harmony.

	// ErrSignatureInvalid firma HMAC del webhook entrante incorrecta.
	ErrSignatureInvalid = errors.New("firma del payload inválida")
	// ErrMalformedPayload body JSON inválido o que no cumple el esquema.
	ErrMalformedPayload = errors.New("payload malformado")
	// ErrUnknownReference RequestId sin Fiscal Signature asociada.
	ErrUnknownReference = errors.New("request id desconocido")
	// ErrMappingUnresolved no se pudo resolver un tax code o HS Code.
	// Bloquea el envío y se muestra al operador.
	ErrMappingUnresolved = errors.New("mapeo de impuesto o producto sin resolver")
	// ErrTimeout la plataforma no respondió dentro del plazo (recuperable).
	ErrTimeout = errors.New("tiempo de espera agotado")
	// ErrServiceUnavailable fallo 5xx o de red en la plataforma (recuperable).
	ErrServiceUnavailable = errors.New("la autoridad fiscal no está disponible")
	// ErrNotRetryable la firma no está en estado reintentable.
	ErrNotRetryable = errors.New("la firma no admite reenvío")
)
