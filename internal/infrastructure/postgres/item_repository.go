package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/tu-usuario/fiscal-bridge/internal/domain/entity"
	"github.com/tu-usuario/fiscal-bridge/internal/domain/repository"
)

var _ repository.ItemRepository = (*ItemRepo)(nil)

// ItemRepo productos y grupos con sus HS Codes (usable con pool o tx).
type ItemRepo struct {
	q Querier
}

// NewItemRepository construye el adaptador. Pasar pool o tx (Querier).
func NewItemRepository(q Querier) *ItemRepo {
	return &ItemRepo{q: q}
}

// GetByCode obtiene un producto por su código. Devuelve nil si no existe.
func (r *ItemRepo) GetByCode(ctx context.Context, code string) (*entity.Item, error) {
	query := `SELECT code, name, group_name, hs_code FROM items WHERE code = $1`
	var it entity.Item
	var hsCode *string
	err := r.q.QueryRow(ctx, query, code).Scan(&it.Code, &it.Name, &it.GroupName, &hsCode)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get item: %w", err)
	}
	it.HSCode = derefStr(hsCode)
	return &it, nil
}

// GetGroup obtiene un grupo de productos. Devuelve nil si no existe.
func (r *ItemRepo) GetGroup(ctx context.Context, name string) (*entity.ItemGroup, error) {
	query := `SELECT name, hs_code FROM item_groups WHERE name = $1`
	var g entity.ItemGroup
	var hsCode *string
	err := r.q.QueryRow(ctx, query, name).Scan(&g.Name, &hsCode)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get item_group: %w", err)
	}
	g.HSCode = derefStr(hsCode)
	return &g, nil
}

// UpsertGroup crea o actualiza un grupo con su HS Code.
func (r *ItemRepo) UpsertGroup(ctx context.Context, group *entity.ItemGroup) error {
	query := `
		INSERT INTO item_groups (name, hs_code)
		VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET hs_code = EXCLUDED.hs_code`
	if _, err := r.q.Exec(ctx, query, group.Name, nullIfEmpty(group.HSCode)); err != nil {
		return fmt.Errorf("upsert item_group: %w", err)
	}
	return nil
}

// BackfillGroupHSCode copia el HS Code del grupo a los items del grupo que
// no tengan uno propio. Devuelve el número de items actualizados.
func (r *ItemRepo) BackfillGroupHSCode(ctx context.Context, groupName string) (int, error) {
	query := `
		UPDATE items
		SET hs_code = g.hs_code
		FROM item_groups g
		WHERE g.name = $1
		  AND items.group_name = g.name
		  AND g.hs_code IS NOT NULL
		  AND items.hs_code IS NULL`
	tag, err := r.q.Exec(ctx, query, groupName)
	if err != nil {
		return 0, fmt.Errorf("backfill hs_code del grupo %s: %w", groupName, err)
	}
	return int(tag.RowsAffected()), nil
}
