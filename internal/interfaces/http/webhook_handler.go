package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/tu-usuario/fiscal-bridge/internal/application/fiscal"
)

// WebhookHandler recibe los webhooks de Fiscal Harmony (público, autenticado
// por la firma HMAC del body, no por JWT).
type WebhookHandler struct {
	processor *fiscal.WebhookProcessor
}

// NewWebhookHandler construye el handler.
func NewWebhookHandler(processor *fiscal.WebhookProcessor) *WebhookHandler {
	return &WebhookHandler{processor: processor}
}

// Receive procesa un lote de resultados de fiscalización.
// POST /api/fiscal-signatures
func (h *WebhookHandler) Receive(c *fiber.Ctx) error {
	// El body crudo es lo que está firmado; cualquier re-serialización
	// rompería la verificación.
	out := h.processor.Process(c.Context(), c.OriginalURL(), c.Body(), c.Get("X-Api-Signature"))
	return c.Status(out.StatusCode).JSON(out.Body)
}
