// seed_hscodes carga los HS Codes del arancel aduanero en los grupos de
// productos y rellena los productos cuyo grupo ya tiene código. El CSV de
// entrada (exportado del arancel, codificado en ISO-8859-1) tiene dos
// columnas: nombre del grupo y HS Code.
//
// Uso: go run ./cmd/seed_hscodes [ruta/arancel.csv]
// Por defecto busca arancel.csv en el directorio actual.
package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"github.com/tu-usuario/fiscal-bridge/internal/domain/entity"
	"github.com/tu-usuario/fiscal-bridge/internal/domain/repository"
	"github.com/tu-usuario/fiscal-bridge/internal/infrastructure/postgres"
	"github.com/tu-usuario/fiscal-bridge/pkg/config"
	"github.com/tu-usuario/fiscal-bridge/pkg/logger"
)

const runTimeout = 2 * time.Minute

func main() {
	csvPath := "arancel.csv"
	if len(os.Args) > 1 {
		csvPath = os.Args[1]
	}

	groups, err := readTariff(csvPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Leer arancel: %v\n", err)
		os.Exit(1)
	}
	if len(groups) == 0 {
		fmt.Fprintln(os.Stderr, "El arancel no contiene filas válidas")
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cargar configuración: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(logger.Config{Env: cfg.App.Env, Level: "info"})

	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	defer pool.Close()

	// Todo el lote en una sola transacción: o entra el arancel completo o nada.
	var backfilled int
	txRunner := postgres.NewTxRunner(pool)
	err = txRunner.RunItems(ctx, func(items repository.ItemRepository) error {
		for _, g := range groups {
			if err := items.UpsertGroup(ctx, g); err != nil {
				return fmt.Errorf("grupo %q: %w", g.Name, err)
			}
			n, err := items.BackfillGroupHSCode(ctx, g.Name)
			if err != nil {
				return fmt.Errorf("backfill del grupo %q: %w", g.Name, err)
			}
			backfilled += n
		}
		return nil
	})
	if err != nil {
		log.Fatal().Err(err).Msg("cargar arancel")
	}

	log.Info().
		Int("grupos", len(groups)).
		Int("productos_actualizados", backfilled).
		Msg("arancel cargado")
}

// readTariff parsea el CSV del arancel (ISO-8859-1) y devuelve los grupos con
// HS Code válido. Las filas con código malformado se reportan y se omiten.
func readTariff(path string) ([]*entity.ItemGroup, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(transform.NewReader(f, charmap.ISO8859_1.NewDecoder()))
	r.FieldsPerRecord = 2
	rows, err := r.ReadAll()
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var groups []*entity.ItemGroup
	for i, row := range rows {
		name := strings.TrimSpace(row[0])
		code := strings.TrimSpace(row[1])
		if i == 0 && strings.EqualFold(code, "hs_code") {
			continue // cabecera
		}
		if name == "" || seen[name] {
			continue
		}
		if err := entity.ValidateHSCode(code); err != nil {
			fmt.Fprintf(os.Stderr, "Fila %d omitida: %v\n", i+1, err)
			continue
		}
		seen[name] = true
		groups = append(groups, &entity.ItemGroup{Name: name, HSCode: code})
	}
	return groups, nil
}
