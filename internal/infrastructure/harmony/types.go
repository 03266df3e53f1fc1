package harmony

import (
	"encoding/json"
	"errors"
	"fmt"
)

// QrData datos de verificación fiscal devueltos al fiscalizar un documento.
// Juntos forman la prueba QR que se imprime en la factura.
type QrData struct {
	QrCodeUrl        *string `json:"QrCodeUrl"`
	VerificationCode *string `json:"VerificationCode"`
	FiscalDay        *int    `json:"FiscalDay"`
	DeviceId         *int    `json:"DeviceId"`
	InvoiceNumber    *int    `json:"InvoiceNumber"`
}

// SignatureResult elemento del lote que la plataforma entrega por webhook o
// en la respuesta de POST /status.
type SignatureResult struct {
	RequestId        *string `json:"RequestId"`
	Success          *bool   `json:"Success"`
	IsActionable     bool    `json:"IsActionable"`
	Error            string  `json:"Error"`
	FiscalInvoicePdf string  `json:"FiscalInvoicePdf"`
	QrData           *QrData `json:"QrData"`
}

// Validate verifica el esquema de un elemento: RequestId y Success son
// obligatorios; QrData puede ser null, pero si viene debe traer los cinco
// campos completos.
func (r *SignatureResult) Validate() error {
	if r.RequestId == nil || *r.RequestId == "" {
		return fmt.Errorf("RequestId ausente o vacío")
	}
	if r.Success == nil {
		return fmt.Errorf("Success ausente")
	}
	if r.QrData != nil {
		q := r.QrData
		if q.QrCodeUrl == nil || q.VerificationCode == nil ||
			q.FiscalDay == nil || q.DeviceId == nil || q.InvoiceNumber == nil {
			return fmt.Errorf("QrData incompleto para RequestId %s", *r.RequestId)
		}
	}
	return nil
}

// ParseSignatureBatch decodifica y valida el body de un webhook o de la
// respuesta de /status. Un JSON sintácticamente inválido y un JSON que no
// cumple el esquema se reportan como errores distintos, porque producen
// respuestas HTTP distintas.
func ParseSignatureBatch(raw []byte) ([]SignatureResult, error) {
	var batch []SignatureResult
	if err := json.Unmarshal(raw, &batch); err != nil {
		// Un error de tipo es JSON bien formado que no cumple el esquema;
		// solo los errores de sintaxis cuentan como "Invalid JSON".
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, &ParseError{Kind: ParseErrorSchema, Err: err}
		}
		return nil, &ParseError{Kind: ParseErrorJSON, Err: err}
	}
	for i := range batch {
		if err := batch[i].Validate(); err != nil {
			return nil, &ParseError{Kind: ParseErrorSchema, Err: fmt.Errorf("elemento %d: %w", i, err)}
		}
	}
	return batch, nil
}

// Tipos de error de parseo de un lote.
const (
	ParseErrorJSON   = "json"   // body no es JSON válido
	ParseErrorSchema = "schema" // JSON válido pero no cumple el esquema
)

// ParseError distingue JSON inválido de esquema inválido.
type ParseError struct {
	Kind string
	Err  error
}

func (e *ParseError) Error() string { return fmt.Sprintf("parsear lote (%s): %v", e.Kind, e.Err) }
func (e *ParseError) Unwrap() error { return e.Err }
