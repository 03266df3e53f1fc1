package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/tu-usuario/fiscal-bridge/internal/domain/entity"
	"github.com/tu-usuario/fiscal-bridge/internal/domain/repository"
)

var _ repository.LogRepository = (*LogRepo)(nil)

// LogRepo bitácora de auditoría de la integración. Solo inserta y lista:
// las entradas nunca se actualizan ni se borran.
type LogRepo struct {
	q Querier
}

// NewLogRepository construye el adaptador. Pasar pool o tx (Querier).
func NewLogRepository(q Querier) *LogRepo {
	return &LogRepo{q: q}
}

// Insert persiste una entrada de auditoría.
func (r *LogRepo) Insert(ctx context.Context, log *entity.FiscalLog) error {
	if log.ID == "" {
		log.ID = uuid.New().String()
	}
	query := `
		INSERT INTO fiscal_logs (id, status, request_url, payload, response,
			response_status_code, signature_valid, request_id, error_details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := r.q.Exec(ctx, query,
		log.ID, log.Status, log.RequestURL,
		nullIfEmpty(log.Payload), nullIfEmpty(log.Response),
		log.ResponseStatusCode, log.SignatureValid,
		nullIfEmpty(log.RequestID), nullIfEmpty(log.ErrorDetails), log.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert fiscal_log: %w", err)
	}
	return nil
}

// ListRecent devuelve las últimas entradas, la más reciente primero.
func (r *LogRepo) ListRecent(ctx context.Context, limit int) ([]*entity.FiscalLog, error) {
	query := `
		SELECT id, status, request_url, payload, response,
		       response_status_code, signature_valid, request_id, error_details, created_at
		FROM fiscal_logs
		ORDER BY created_at DESC
		LIMIT $1`
	rows, err := r.q.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list fiscal_logs: %w", err)
	}
	defer rows.Close()

	var out []*entity.FiscalLog
	for rows.Next() {
		var l entity.FiscalLog
		var payload, response, requestID, errorDetails *string
		if err := rows.Scan(
			&l.ID, &l.Status, &l.RequestURL, &payload, &response,
			&l.ResponseStatusCode, &l.SignatureValid, &requestID, &errorDetails, &l.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan fiscal_log: %w", err)
		}
		l.Payload = derefStr(payload)
		l.Response = derefStr(response)
		l.RequestID = derefStr(requestID)
		l.ErrorDetails = derefStr(errorDetails)
		out = append(out, &l)
	}
	return out, rows.Err()
}
