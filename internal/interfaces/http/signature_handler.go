package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/tu-usuario/fiscal-bridge/internal/application/dto"
	"github.com/tu-usuario/fiscal-bridge/internal/application/fiscal"
	"github.com/tu-usuario/fiscal-bridge/internal/domain"
	"github.com/tu-usuario/fiscal-bridge/internal/domain/repository"
)

// SignatureHandler operaciones de operador sobre las Fiscal Signatures.
type SignatureHandler struct {
	signatures repository.SignatureRepository
	fiscaliser *fiscal.Fiscaliser
}

// NewSignatureHandler construye el handler.
func NewSignatureHandler(signatures repository.SignatureRepository, fiscaliser *fiscal.Fiscaliser) *SignatureHandler {
	return &SignatureHandler{signatures: signatures, fiscaliser: fiscaliser}
}

// GetByID consulta el estado de una firma.
// GET /api/signatures/:id
func (h *SignatureHandler) GetByID(c *fiber.Ctx) error {
	sig, err := h.signatures.GetByID(c.Context(), c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	if sig == nil {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "firma no encontrada"})
	}
	return c.JSON(dto.ToSignatureResponse(sig))
}

// Retry reenvía una firma en fallo recuperable.
// POST /api/signatures/:id/retry
func (h *SignatureHandler) Retry(c *fiber.Ctx) error {
	err := h.fiscaliser.Retry(c.Context(), c.Params("id"))
	if err != nil {
		return h.fiscalError(c, err)
	}
	return c.JSON(dto.MessageResponse{Message: "reenvío ejecutado"})
}

// Fetch consulta POST /status para una firma ya enviada sin datos QR.
// POST /api/signatures/:id/fetch
func (h *SignatureHandler) Fetch(c *fiber.Ctx) error {
	err := h.fiscaliser.FetchSignatureData(c.Context(), c.Params("id"))
	if err != nil {
		return h.fiscalError(c, err)
	}
	return c.JSON(dto.MessageResponse{Message: "datos de la firma actualizados"})
}

// Fiscalise crea la firma de una factura finalizada y dispara el envío.
// POST /api/invoices/:id/fiscalise
func (h *SignatureHandler) Fiscalise(c *fiber.Ctx) error {
	var in dto.FiscaliseRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&in); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
		}
	}
	sig, err := h.fiscaliser.CreateForInvoice(c.Context(), c.Params("id"), in.BypassTin)
	if err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			// Idempotente: la firma ya existe, se devuelve tal cual.
			return c.Status(fiber.StatusConflict).JSON(dto.ToSignatureResponse(sig))
		}
		return h.fiscalError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.ToSignatureResponse(sig))
}

// FiscalDetails datos de verificación para imprimir en la factura.
// GET /api/invoices/:id/fiscal-details
func (h *SignatureHandler) FiscalDetails(c *fiber.Ctx) error {
	sig, err := h.signatures.GetByInvoiceID(c.Context(), c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	if sig == nil {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "la factura no tiene firma fiscal"})
	}
	if !sig.IsFiscalised() {
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "NOT_FISCALISED", Message: "la factura aún no está fiscalizada"})
	}
	return c.JSON(dto.FiscalDetailsResponse{
		SalesInvoiceID:   sig.SalesInvoiceID,
		FDMSUrl:          sig.FDMSUrl,
		VerificationCode: sig.VerificationCode,
		FiscalDay:        sig.FiscalDay,
		DeviceID:         sig.DeviceID,
		InvoiceNumber:    sig.InvoiceNumber,
	})
}

// fiscalError traduce los errores del dominio a respuestas HTTP.
func (h *SignatureHandler) fiscalError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: err.Error()})
	case errors.Is(err, domain.ErrNotRetryable):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "NOT_RETRYABLE", Message: err.Error()})
	case errors.Is(err, domain.ErrConflict):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "CONFLICT", Message: err.Error()})
	case errors.Is(err, domain.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: err.Error()})
	case errors.Is(err, domain.ErrMappingUnresolved):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(dto.ErrorResponse{Code: "MAPPING_UNRESOLVED", Message: err.Error()})
	case errors.Is(err, domain.ErrUnauthorized), errors.Is(err, domain.ErrMalformedPayload):
		return c.Status(fiber.StatusBadGateway).JSON(dto.ErrorResponse{Code: "PLATFORM_REJECTED", Message: err.Error()})
	case errors.Is(err, domain.ErrTimeout), errors.Is(err, domain.ErrServiceUnavailable):
		return c.Status(fiber.StatusBadGateway).JSON(dto.ErrorResponse{Code: "PLATFORM_UNAVAILABLE", Message: err.Error()})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
}
