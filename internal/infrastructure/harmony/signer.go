// Package harmony implementa el cliente HTTP, la firma HMAC y los tipos de
// cable de la plataforma Fiscal Harmony.
//
// Toda petición de escritura viaja firmada: el body se serializa en forma
// canónica (claves ordenadas, sin espacios extra), se calcula HMAC-SHA256 con
// el API Secret y el digest en base64 va en el header X-Api-Signature. Los
// webhooks entrantes se verifican con el mismo esquema sobre los bytes crudos
// del body: cualquier diferencia de un byte invalida la firma.
package harmony

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Sign calcula la firma HMAC-SHA256 del payload con el secreto dado y la
// devuelve codificada en base64 estándar.
func Sign(payload, secret []byte) string {
	hasher := hmac.New(sha256.New, secret)
	hasher.Write(payload)
	return base64.StdEncoding.EncodeToString(hasher.Sum(nil))
}

// Verify recalcula la firma sobre rawBody y la compara con la recibida.
// La comparación es de tiempo constante.
func Verify(receivedSignature string, rawBody, secret []byte) bool {
	expected := Sign(rawBody, secret)
	return hmac.Equal([]byte(receivedSignature), []byte(expected))
}

// EncodeCanonical serializa v como JSON canónico para firmar: claves
// ordenadas, sin espacios y sin escape HTML (las URLs del payload deben
// viajar tal cual). encoding/json ya ordena las claves de los maps, por lo
// que los payloads se construyen como maps y no como structs.
func EncodeCanonical(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("harmony: serializar payload: %w", err)
	}
	// Encode agrega un '\n' final que no forma parte de la representación firmada.
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
