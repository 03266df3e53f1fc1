package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/tu-usuario/fiscal-bridge/internal/application/dto"
	"github.com/tu-usuario/fiscal-bridge/internal/application/fiscal"
	"github.com/tu-usuario/fiscal-bridge/internal/domain/repository"
)

// SettingsHandler operaciones de configuración de la integración:
// perfil/dispositivo remotos, sincronización de mapeos y bitácora.
type SettingsHandler struct {
	sync     *fiscal.MappingSync
	logs     repository.LogRepository
	mappings repository.MappingRepository
}

// NewSettingsHandler construye el handler.
func NewSettingsHandler(sync *fiscal.MappingSync, logs repository.LogRepository, mappings repository.MappingRepository) *SettingsHandler {
	return &SettingsHandler{sync: sync, logs: logs, mappings: mappings}
}

// Profile perfil de la cuenta en la plataforma.
// GET /api/harmony/profile
func (h *SettingsHandler) Profile(c *fiber.Ctx) error {
	profile, err := h.sync.Profile(c.Context())
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(dto.ErrorResponse{Code: "PLATFORM_UNAVAILABLE", Message: err.Error()})
	}
	return c.JSON(profile)
}

// Device información del dispositivo fiscal registrado.
// GET /api/harmony/device
func (h *SettingsHandler) Device(c *fiber.Ctx) error {
	info, err := h.sync.DeviceInfo(c.Context())
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(dto.ErrorResponse{Code: "PLATFORM_UNAVAILABLE", Message: err.Error()})
	}
	return c.JSON(info)
}

// Currencies monedas mapeadas localmente que la plataforma no soporta.
// GET /api/harmony/currencies
func (h *SettingsHandler) Currencies(c *fiber.Ctx) error {
	unsupported, err := h.sync.CheckSupportedCurrencies(c.Context())
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(dto.ErrorResponse{Code: "PLATFORM_UNAVAILABLE", Message: err.Error()})
	}
	return c.JSON(dto.CurrencyCheckResponse{Unsupported: unsupported})
}

// SyncTaxMappings replica los mapeos de impuestos hacia la plataforma.
// POST /api/harmony/mappings/tax
func (h *SettingsHandler) SyncTaxMappings(c *fiber.Ctx) error {
	if err := h.sync.SyncTaxMappings(c.Context()); err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(dto.ErrorResponse{Code: "SYNC_FAILED", Message: err.Error()})
	}
	return c.JSON(dto.MessageResponse{Message: "mapeos de impuestos sincronizados"})
}

// SyncCurrencyMappings replica los mapeos de moneda hacia la plataforma.
// POST /api/harmony/mappings/currency
func (h *SettingsHandler) SyncCurrencyMappings(c *fiber.Ctx) error {
	if err := h.sync.SyncCurrencyMappings(c.Context()); err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(dto.ErrorResponse{Code: "SYNC_FAILED", Message: err.Error()})
	}
	return c.JSON(dto.MessageResponse{Message: "mapeos de moneda sincronizados"})
}

// Logs últimas entradas de la bitácora de auditoría.
// GET /api/harmony/logs
func (h *SettingsHandler) Logs(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 50)
	if limit < 1 || limit > 500 {
		limit = 50
	}
	entries, err := h.logs.ListRecent(c.Context(), limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	out := make([]*dto.LogResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, dto.ToLogResponse(e))
	}
	return c.JSON(out)
}

// Status indicador de vida de la integración.
// GET /api/harmony/status
func (h *SettingsHandler) Status(c *fiber.Ctx) error {
	at, err := h.mappings.GetLastSuccessfulRequest(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	return c.JSON(fiber.Map{"last_successful_request": at})
}
