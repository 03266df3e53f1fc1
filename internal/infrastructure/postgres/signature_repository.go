package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/tu-usuario/fiscal-bridge/internal/domain"
	"github.com/tu-usuario/fiscal-bridge/internal/domain/entity"
	"github.com/tu-usuario/fiscal-bridge/internal/domain/repository"
)

var _ repository.SignatureRepository = (*SignatureRepo)(nil)

// SignatureRepo implementación de SignatureRepository (usable con pool o tx).
type SignatureRepo struct {
	q Querier
}

// NewSignatureRepository construye el adaptador. Pasar pool o tx (Querier).
func NewSignatureRepository(q Querier) *SignatureRepo {
	return &SignatureRepo{q: q}
}

const signatureColumns = `
	id, sales_invoice_id, fiscal_harmony_id, fdms_url, verification_code,
	fiscal_day, device_id, invoice_number, fiscal_filename, error,
	is_retry, bypass_tin, version, created_at, updated_at`

// Create persiste una firma nueva. El constraint único de sales_invoice_id
// garantiza la relación uno a uno con la factura.
func (r *SignatureRepo) Create(ctx context.Context, sig *entity.FiscalSignature) error {
	if sig.ID == "" {
		sig.ID = uuid.New().String()
	}
	query := `
		INSERT INTO fiscal_signatures (id, sales_invoice_id, fiscal_harmony_id, fdms_url, verification_code,
			fiscal_day, device_id, invoice_number, fiscal_filename, error, is_retry, bypass_tin, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`
	_, err := r.q.Exec(ctx, query,
		sig.ID, sig.SalesInvoiceID,
		nullIfEmpty(sig.FiscalHarmonyID), nullIfEmpty(sig.FDMSUrl), nullIfEmpty(sig.VerificationCode),
		sig.FiscalDay, sig.DeviceID, sig.InvoiceNumber,
		nullIfEmpty(sig.FiscalFilename), nullIfEmpty(sig.Error),
		sig.IsRetry, sig.BypassTin, sig.Version, sig.CreatedAt, sig.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("la factura %s ya tiene firma fiscal: %w", sig.SalesInvoiceID, domain.ErrDuplicate)
		}
		return fmt.Errorf("insert fiscal_signature: %w", err)
	}
	return nil
}

// Update escribe la firma con control optimista: solo si la versión en la
// fila coincide con la leída. 0 filas afectadas significa que otro escritor
// ganó la carrera.
func (r *SignatureRepo) Update(ctx context.Context, sig *entity.FiscalSignature) error {
	query := `
		UPDATE fiscal_signatures
		SET fiscal_harmony_id = $2,
		    fdms_url          = $3,
		    verification_code = $4,
		    fiscal_day        = $5,
		    device_id         = $6,
		    invoice_number    = $7,
		    fiscal_filename   = $8,
		    error             = $9,
		    is_retry          = $10,
		    bypass_tin        = $11,
		    version           = version + 1,
		    updated_at        = $12
		WHERE id = $1 AND version = $13`
	tag, err := r.q.Exec(ctx, query,
		sig.ID,
		nullIfEmpty(sig.FiscalHarmonyID), nullIfEmpty(sig.FDMSUrl), nullIfEmpty(sig.VerificationCode),
		sig.FiscalDay, sig.DeviceID, sig.InvoiceNumber,
		nullIfEmpty(sig.FiscalFilename), nullIfEmpty(sig.Error),
		sig.IsRetry, sig.BypassTin, sig.UpdatedAt, sig.Version,
	)
	if err != nil {
		return fmt.Errorf("update fiscal_signature: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("la firma %s fue modificada por otro escritor: %w", sig.ID, domain.ErrConflict)
	}
	sig.Version++
	return nil
}

// GetByID obtiene una firma por su id. Devuelve nil si no existe.
func (r *SignatureRepo) GetByID(ctx context.Context, id string) (*entity.FiscalSignature, error) {
	return r.getOne(ctx, `SELECT `+signatureColumns+` FROM fiscal_signatures WHERE id = $1`, id)
}

// GetByHarmonyID localiza la firma por el RequestId externo.
func (r *SignatureRepo) GetByHarmonyID(ctx context.Context, harmonyID string) (*entity.FiscalSignature, error) {
	return r.getOne(ctx, `SELECT `+signatureColumns+` FROM fiscal_signatures WHERE fiscal_harmony_id = $1`, harmonyID)
}

// GetByInvoiceID localiza la firma de una factura.
func (r *SignatureRepo) GetByInvoiceID(ctx context.Context, invoiceID string) (*entity.FiscalSignature, error) {
	return r.getOne(ctx, `SELECT `+signatureColumns+` FROM fiscal_signatures WHERE sales_invoice_id = $1`, invoiceID)
}

// ListRetryable devuelve las firmas en fallo recuperable, las más antiguas primero.
func (r *SignatureRepo) ListRetryable(ctx context.Context, limit int) ([]*entity.FiscalSignature, error) {
	query := `
		SELECT ` + signatureColumns + `
		FROM fiscal_signatures
		WHERE is_retry = TRUE AND fdms_url IS NULL
		ORDER BY updated_at ASC
		LIMIT $1`
	rows, err := r.q.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list retryable signatures: %w", err)
	}
	defer rows.Close()

	var out []*entity.FiscalSignature
	for rows.Next() {
		sig, err := scanSignature(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sig)
	}
	return out, rows.Err()
}

func (r *SignatureRepo) getOne(ctx context.Context, query string, arg any) (*entity.FiscalSignature, error) {
	sig, err := scanSignature(r.q.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get fiscal_signature: %w", err)
	}
	return sig, nil
}

func scanSignature(row pgx.Row) (*entity.FiscalSignature, error) {
	var sig entity.FiscalSignature
	var harmonyID, fdmsURL, verification, filename, errMsg *string
	err := row.Scan(
		&sig.ID, &sig.SalesInvoiceID, &harmonyID, &fdmsURL, &verification,
		&sig.FiscalDay, &sig.DeviceID, &sig.InvoiceNumber, &filename, &errMsg,
		&sig.IsRetry, &sig.BypassTin, &sig.Version, &sig.CreatedAt, &sig.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	sig.FiscalHarmonyID = derefStr(harmonyID)
	sig.FDMSUrl = derefStr(fdmsURL)
	sig.VerificationCode = derefStr(verification)
	sig.FiscalFilename = derefStr(filename)
	sig.Error = derefStr(errMsg)
	return &sig, nil
}
