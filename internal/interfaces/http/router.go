// Package http expone la API del puente fiscal: el webhook público de
// Fiscal Harmony y los endpoints de operador protegidos por JWT.
package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/tu-usuario/fiscal-bridge/internal/application/auth"
	"github.com/tu-usuario/fiscal-bridge/internal/application/fiscal"
	"github.com/tu-usuario/fiscal-bridge/internal/domain/entity"
	"github.com/tu-usuario/fiscal-bridge/internal/domain/repository"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	AuthUC      *auth.AuthUseCase
	Fiscaliser  *fiscal.Fiscaliser
	Webhooks    *fiscal.WebhookProcessor
	MappingSync *fiscal.MappingSync
	Signatures  repository.SignatureRepository
	Logs        repository.LogRepository
	Mappings    repository.MappingRepository
	JWTSecret   string
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	api := app.Group("/api")

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// Webhook de Fiscal Harmony (público: lo autentica la firma HMAC del body)
	webhookHandler := NewWebhookHandler(deps.Webhooks)
	api.Post("/fiscal-signatures", webhookHandler.Receive)

	// Auth (público)
	authHandler := NewAuthHandler(deps.AuthUC)
	api.Group("/auth").Post("/login", authHandler.Login)

	// Rutas protegidas (requieren Bearer Token)
	protected := api.Group("/", AuthMiddleware(deps.JWTSecret))
	manager := RequireRole(entity.RoleSystemManager)

	// Firmas fiscales (lectura para todos los roles; mutaciones solo manager)
	signatureHandler := NewSignatureHandler(deps.Signatures, deps.Fiscaliser)
	signatures := protected.Group("/signatures")
	signatures.Get("/:id", signatureHandler.GetByID)
	signatures.Post("/:id/retry", manager, signatureHandler.Retry)
	signatures.Post("/:id/fetch", manager, signatureHandler.Fetch)

	// Facturas
	invoices := protected.Group("/invoices")
	invoices.Get("/:id/fiscal-details", signatureHandler.FiscalDetails)
	invoices.Post("/:id/fiscalise", manager, signatureHandler.Fiscalise)

	// Configuración de la integración
	settingsHandler := NewSettingsHandler(deps.MappingSync, deps.Logs, deps.Mappings)
	harmony := protected.Group("/harmony")
	harmony.Get("/profile", settingsHandler.Profile)
	harmony.Get("/device", settingsHandler.Device)
	harmony.Get("/currencies", settingsHandler.Currencies)
	harmony.Get("/logs", settingsHandler.Logs)
	harmony.Get("/status", settingsHandler.Status)
	harmony.Post("/mappings/tax", manager, settingsHandler.SyncTaxMappings)
	harmony.Post("/mappings/currency", manager, settingsHandler.SyncCurrencyMappings)
}
