package fiscal

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/tu-usuario/fiscal-bridge/internal/domain"
	"github.com/tu-usuario/fiscal-bridge/internal/domain/entity"
	"github.com/tu-usuario/fiscal-bridge/internal/domain/repository"
	"github.com/tu-usuario/fiscal-bridge/internal/infrastructure/harmony"
	"github.com/tu-usuario/fiscal-bridge/pkg/logger"
)

// WebhookOutcome resultado ya serializable de procesar un webhook: el código
// HTTP a devolver y el body JSON. El handler solo lo transmite.
type WebhookOutcome struct {
	StatusCode int
	Body       map[string]any
}

// WebhookProcessor procesa los webhooks entrantes de la plataforma fiscal:
// verifica la firma HMAC del body crudo, valida el esquema del lote y aplica
// cada resultado a su Fiscal Signature. Cada request deja exactamente una
// entrada en la bitácora, incluso los rechazados.
type WebhookProcessor struct {
	signatures repository.SignatureRepository
	logs       repository.LogRepository
	fiscaliser *Fiscaliser
	secret     []byte
	log        *logger.Logger
}

// NewWebhookProcessor construye el procesador. secret es el API secret
// compartido con la plataforma.
func NewWebhookProcessor(
	signatures repository.SignatureRepository,
	logs repository.LogRepository,
	fiscaliser *Fiscaliser,
	secret string,
	log *logger.Logger,
) *WebhookProcessor {
	return &WebhookProcessor{
		signatures: signatures,
		logs:       logs,
		fiscaliser: fiscaliser,
		secret:     []byte(secret),
		log:        log.Component("webhook"),
	}
}

// Process ejecuta el ciclo completo de un webhook:
//
//	firma inválida   → 401, ningún registro se toca
//	JSON inválido    → 400 "Invalid JSON"
//	esquema inválido → 400 "Invalid JSON structure"
//	RequestId desconocido → 404, los elementos anteriores quedan aplicados
//	todo aplicado    → 200 {"status":"Success"}
func (p *WebhookProcessor) Process(ctx context.Context, requestURL string, rawBody []byte, receivedSignature string) *WebhookOutcome {
	if !harmony.Verify(receivedSignature, rawBody, p.secret) {
		return p.finish(ctx, requestURL, rawBody, "", &WebhookOutcome{
			StatusCode: http.StatusUnauthorized,
			Body:       map[string]any{"error": "Invalid signature"},
		}, entity.LogStatusUnauthorised, false)
	}

	batch, err := harmony.ParseSignatureBatch(rawBody)
	if err != nil {
		out := &WebhookOutcome{StatusCode: http.StatusBadRequest}
		status := entity.LogStatusInvalidJSON
		var perr *harmony.ParseError
		switch {
		case errors.As(err, &perr) && perr.Kind == harmony.ParseErrorJSON:
			out.Body = map[string]any{"error": "Invalid JSON"}
		case perr != nil:
			out.Body = map[string]any{"error": "Invalid JSON structure", "details": perr.Err.Error()}
		default:
			out.Body = map[string]any{"error": "Invalid JSON structure", "details": err.Error()}
		}
		return p.finish(ctx, requestURL, rawBody, "", out, status, true)
	}

	// Aplicación best-effort: un elemento desconocido aborta el lote pero
	// no revierte los anteriores ya aplicados.
	for _, r := range batch {
		sig, err := p.signatures.GetByHarmonyID(ctx, *r.RequestId)
		if err != nil {
			p.log.Error().Err(err).Str("request_id", *r.RequestId).Msg("lookup de firma fallido")
			return p.finish(ctx, requestURL, rawBody, *r.RequestId, &WebhookOutcome{
				StatusCode: http.StatusInternalServerError,
				Body:       map[string]any{"error": "Internal Server Error"},
			}, entity.LogStatusFailure, true)
		}
		if sig == nil {
			return p.finish(ctx, requestURL, rawBody, *r.RequestId, &WebhookOutcome{
				StatusCode: http.StatusNotFound,
				Body:       map[string]any{"error": "RequestId is unknown"},
			}, entity.LogStatusFailure, true)
		}

		result := r
		if err := p.fiscaliser.ApplyResult(ctx, sig, &result); err != nil {
			if errors.Is(err, domain.ErrConflict) {
				p.log.Warn().Str("request_id", *r.RequestId).Msg("conflicto de versión sin resolver")
			}
			p.log.Error().Err(err).Str("request_id", *r.RequestId).Msg("no se pudo aplicar el resultado")
			return p.finish(ctx, requestURL, rawBody, *r.RequestId, &WebhookOutcome{
				StatusCode: http.StatusInternalServerError,
				Body:       map[string]any{"error": "Internal Server Error"},
			}, entity.LogStatusFailure, true)
		}
	}

	return p.finish(ctx, requestURL, rawBody, firstRequestID(batch), &WebhookOutcome{
		StatusCode: http.StatusOK,
		Body:       map[string]any{"status": "Success"},
	}, entity.LogStatusSuccess, true)
}

// finish registra la entrada de bitácora del request y devuelve el outcome.
// La bitácora nunca bloquea la respuesta.
func (p *WebhookProcessor) finish(ctx context.Context, requestURL string, rawBody []byte, requestID string, out *WebhookOutcome, status string, signatureValid bool) *WebhookOutcome {
	respBody, _ := json.Marshal(out.Body)
	entry := &entity.FiscalLog{
		CreatedAt:          time.Now(),
		Status:             status,
		RequestURL:         requestURL,
		Payload:            string(rawBody),
		Response:           string(respBody),
		ResponseStatusCode: out.StatusCode,
		SignatureValid:     &signatureValid,
		RequestID:          requestID,
	}
	if status != entity.LogStatusSuccess {
		if e, ok := out.Body["error"].(string); ok {
			entry.ErrorDetails = e
		}
	}
	if err := p.logs.Insert(ctx, entry); err != nil {
		p.log.Error().Err(err).Msg("no se pudo registrar el webhook en la bitácora")
	}
	return out
}

func firstRequestID(batch []harmony.SignatureResult) string {
	if len(batch) == 0 {
		return ""
	}
	return *batch[0].RequestId
}
