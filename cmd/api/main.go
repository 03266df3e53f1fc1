package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/tu-usuario/fiscal-bridge/internal/application/auth"
	"github.com/tu-usuario/fiscal-bridge/internal/application/fiscal"
	"github.com/tu-usuario/fiscal-bridge/internal/infrastructure/harmony"
	infrapdf "github.com/tu-usuario/fiscal-bridge/internal/infrastructure/pdf"
	"github.com/tu-usuario/fiscal-bridge/internal/infrastructure/postgres"
	infrastorage "github.com/tu-usuario/fiscal-bridge/internal/infrastructure/storage"
	httpRouter "github.com/tu-usuario/fiscal-bridge/internal/interfaces/http"
	"github.com/tu-usuario/fiscal-bridge/pkg/config"
	"github.com/tu-usuario/fiscal-bridge/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: "info",
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Msg("iniciando aplicación")

	if err := cfg.Harmony.Validate(); err != nil {
		log.Fatal().Err(err).Msg("configuración de Fiscal Harmony")
	}

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	defer pool.Close()

	signatureRepo := postgres.NewSignatureRepository(pool)
	invoiceRepo := postgres.NewInvoiceRepository(pool)
	customerRepo := postgres.NewCustomerRepository(pool)
	itemRepo := postgres.NewItemRepository(pool)
	mappingRepo := postgres.NewMappingRepository(pool)
	logRepo := postgres.NewLogRepository(pool)
	userRepo := postgres.NewUserRepository(pool)

	transport := harmony.NewClient(harmony.Config{
		Endpoint:    cfg.Harmony.Endpoint,
		APIKey:      cfg.Harmony.APIKey,
		APISecret:   cfg.Harmony.APISecret,
		Application: cfg.Harmony.Application,
		Station:     cfg.Harmony.Station,
	}, logRepo, mappingRepo, log)

	fiscalCfg := fiscal.Config{
		IncludeHSCodes: cfg.Harmony.IncludeHSCodes,
		AttachLocalPDF: cfg.Harmony.AttachLocalPDF,
		BypassTin:      cfg.Harmony.BypassTin,
		TimeZone:       cfg.App.TimeZone,
	}
	builder, err := fiscal.NewPayloadBuilder(itemRepo, mappingRepo, fiscalCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("constructor de payloads")
	}

	pdfGenerator := infrapdf.NewMarotoProofGenerator()
	fileStore := infrastorage.NewDiskStore(cfg.Storage.Dir)

	fiscaliser := fiscal.NewFiscaliser(
		signatureRepo, invoiceRepo, customerRepo,
		builder, transport, pdfGenerator, fileStore, fiscalCfg, log,
	)
	webhooks := fiscal.NewWebhookProcessor(
		signatureRepo, logRepo, fiscaliser, cfg.Harmony.APISecret, log,
	)
	mappingSync := fiscal.NewMappingSync(mappingRepo, transport, log)

	authUC := auth.NewAuthUseCase(userRepo, auth.JWTConfig{
		Secret:     cfg.JWT.Secret,
		ExpMinutes: cfg.JWT.Expiration,
		Issuer:     cfg.JWT.Issuer,
	})

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 10,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	// Swagger UI en local: http://localhost:<port>/docs
	// El middleware entra en pánico si el archivo no existe, así que solo se
	// monta cuando el swagger.json generado está presente.
	const swaggerSpec = "./docs/swagger.json"
	if _, err := os.Stat(swaggerSpec); err == nil {
		app.Use(swagger.New(swagger.Config{
			BasePath: "/",
			FilePath: swaggerSpec,
			Path:     "docs",
			Title:    "Fiscal Bridge API",
		}))
	} else {
		log.Warn().Str("file", swaggerSpec).Msg("swagger.json no encontrado, UI de docs deshabilitada")
	}

	httpRouter.Router(app, httpRouter.RouterDeps{
		AuthUC:      authUC,
		Fiscaliser:  fiscaliser,
		Webhooks:    webhooks,
		MappingSync: mappingSync,
		Signatures:  signatureRepo,
		Logs:        logRepo,
		Mappings:    mappingRepo,
		JWTSecret:   cfg.JWT.Secret,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}

	log.Info().Msg("aplicación detenida")
}
