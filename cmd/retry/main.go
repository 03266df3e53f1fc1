// retry reenvía las firmas fiscales marcadas como recuperables (is_retry=true
// sin FDMS URL). Pensado para correr bajo cron cada pocos minutos; procesa un
// lote acotado por corrida y termina.
//
// Uso: go run ./cmd/retry [-limit 20]
package main

import (
	"context"
	"flag"
	"time"

	"github.com/tu-usuario/fiscal-bridge/internal/application/fiscal"
	"github.com/tu-usuario/fiscal-bridge/internal/infrastructure/harmony"
	infrapdf "github.com/tu-usuario/fiscal-bridge/internal/infrastructure/pdf"
	"github.com/tu-usuario/fiscal-bridge/internal/infrastructure/postgres"
	infrastorage "github.com/tu-usuario/fiscal-bridge/internal/infrastructure/storage"
	"github.com/tu-usuario/fiscal-bridge/pkg/config"
	"github.com/tu-usuario/fiscal-bridge/pkg/logger"
)

const runTimeout = 5 * time.Minute

func main() {
	limit := flag.Int("limit", 20, "máximo de firmas a reenviar por corrida")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: "info",
	})

	if err := cfg.Harmony.Validate(); err != nil {
		log.Fatal().Err(err).Msg("configuración de Fiscal Harmony")
	}

	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

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

	fiscaliser := fiscal.NewFiscaliser(
		signatureRepo, invoiceRepo, customerRepo,
		builder, transport, infrapdf.NewMarotoProofGenerator(),
		infrastorage.NewDiskStore(cfg.Storage.Dir), fiscalCfg, log,
	)

	pending, err := signatureRepo.ListRetryable(ctx, *limit)
	if err != nil {
		log.Fatal().Err(err).Msg("listar firmas recuperables")
	}
	if len(pending) == 0 {
		log.Info().Msg("sin firmas pendientes de reenvío")
		return
	}

	var failed int
	for _, sig := range pending {
		if err := fiscaliser.Retry(ctx, sig.ID); err != nil {
			failed++
			log.Error().Err(err).
				Str("signature_id", sig.ID).
				Str("invoice_id", sig.SalesInvoiceID).
				Msg("reenvío fallido")
		}
	}

	log.Info().
		Int("total", len(pending)).
		Int("fallidos", failed).
		Msg("corrida de reenvío finalizada")
}
