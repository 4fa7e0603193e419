package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jhoicas/Fiscal-api/internal/domain"
	"github.com/jhoicas/Fiscal-api/internal/domain/entity"
	"github.com/jhoicas/Fiscal-api/internal/domain/repository"
)

var _ repository.InvoiceRepository = (*InvoiceRepo)(nil)

const invoiceColumns = `
	id, seller_id, event_kind, event_id,
	amount, customer_name, customer_email, customer_tax_id, description,
	status, remote_status, remote_id,
	rps_serial, rps_number, rps_batch,
	pdf_url, xml_url, response_payload, error_message,
	created_at, updated_at, emitted_at`

// InvoiceRepo implementa InvoiceRepository sobre PostgreSQL.
type InvoiceRepo struct {
	q Querier
}

// NewInvoiceRepository construye el adaptador. Pasar pool o tx (Querier).
func NewInvoiceRepository(q Querier) *InvoiceRepo {
	return &InvoiceRepo{q: q}
}

func (r *InvoiceRepo) Create(ctx context.Context, inv *entity.Invoice) error {
	if inv.ID == "" {
		inv.ID = uuid.NewString()
	}
	const q = `
		INSERT INTO invoices
			(id, seller_id, event_kind, event_id,
			 amount, customer_name, customer_email, customer_tax_id, description,
			 status, remote_status, remote_id,
			 rps_serial, rps_number, rps_batch,
			 pdf_url, xml_url, response_payload, error_message,
			 created_at, updated_at, emitted_at)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
			 $13, $14, $15, $16, $17, $18, $19, now(), now(), $20)`
	_, err := r.q.Exec(ctx, q,
		inv.ID, inv.SellerID, inv.EventKind, inv.EventID,
		inv.Amount, inv.CustomerName, inv.CustomerEmail, inv.CustomerTaxID, inv.Description,
		inv.Status, inv.RemoteStatus, inv.RemoteID,
		inv.RPSSerial, inv.RPSNumber, inv.RPSBatch,
		inv.PDFURL, inv.XMLURL, inv.ResponsePayload, inv.ErrorMessage,
		nullTime(inv.EmittedAt),
	)
	if err != nil {
		// Índice parcial único sobre (event_kind, event_id) con status <> 'error':
		// red de seguridad por si el INSERT corre fuera de la tx con el lock.
		if isUniqueViolation(err) {
			return domain.ErrInvoiceAlreadyActive
		}
		return fmt.Errorf("insert invoice: %w", err)
	}
	return nil
}

// Update persiste los campos mutables del intento. La identidad del evento y
// el snapshot del monto/cliente son inmutables después del INSERT.
func (r *InvoiceRepo) Update(ctx context.Context, inv *entity.Invoice) error {
	const q = `
		UPDATE invoices
		SET status = $2, remote_status = $3, remote_id = $4,
		    rps_serial = $5, rps_number = $6, rps_batch = $7,
		    pdf_url = $8, xml_url = $9, response_payload = $10, error_message = $11,
		    emitted_at = $12, updated_at = now()
		WHERE id = $1`
	tag, err := r.q.Exec(ctx, q,
		inv.ID, inv.Status, inv.RemoteStatus, inv.RemoteID,
		inv.RPSSerial, inv.RPSNumber, inv.RPSBatch,
		inv.PDFURL, inv.XMLURL, inv.ResponsePayload, inv.ErrorMessage,
		nullTime(inv.EmittedAt),
	)
	if err != nil {
		return fmt.Errorf("update invoice: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update invoice: id %s no existe", inv.ID)
	}
	return nil
}

func (r *InvoiceRepo) GetByID(ctx context.Context, id string) (*entity.Invoice, error) {
	const q = `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = $1`
	inv, err := scanInvoice(r.q.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get invoice by id: %w", err)
	}
	return inv, nil
}

// GetActiveByEvent es el chequeo de a-lo-sumo-una-activa-por-evento: cualquier
// estado distinto de error bloquea una nueva emisión. Debe correr dentro de la
// misma transacción que la asignación de numeración.
func (r *InvoiceRepo) GetActiveByEvent(ctx context.Context, ref entity.EventRef) (*entity.Invoice, error) {
	const q = `
		SELECT ` + invoiceColumns + `
		FROM invoices
		WHERE event_kind = $1 AND event_id = $2 AND status <> 'error'
		ORDER BY created_at DESC
		LIMIT 1`
	inv, err := scanInvoice(r.q.QueryRow(ctx, q, ref.Kind, ref.ID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get active invoice by event: %w", err)
	}
	return inv, nil
}

func (r *InvoiceRepo) ListByEvent(ctx context.Context, ref entity.EventRef) ([]*entity.Invoice, error) {
	const q = `
		SELECT ` + invoiceColumns + `
		FROM invoices
		WHERE event_kind = $1 AND event_id = $2
		ORDER BY created_at DESC`
	rows, err := r.q.Query(ctx, q, ref.Kind, ref.ID)
	if err != nil {
		return nil, fmt.Errorf("list invoices by event: %w", err)
	}
	defer rows.Close()
	return collectInvoices(rows)
}

func (r *InvoiceRepo) ListBySeller(ctx context.Context, sellerID string, limit, offset int) ([]*entity.Invoice, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	const q = `
		SELECT ` + invoiceColumns + `
		FROM invoices
		WHERE seller_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`
	rows, err := r.q.Query(ctx, q, sellerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list invoices by seller: %w", err)
	}
	defer rows.Close()
	return collectInvoices(rows)
}

// ── helpers ───────────────────────────────────────────────────────────────────

func collectInvoices(rows pgx.Rows) ([]*entity.Invoice, error) {
	var list []*entity.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("scan invoice: %w", err)
		}
		list = append(list, inv)
	}
	return list, rows.Err()
}

func scanInvoice(row pgxScanner) (*entity.Invoice, error) {
	var inv entity.Invoice
	var emittedAt *time.Time
	err := row.Scan(
		&inv.ID, &inv.SellerID, &inv.EventKind, &inv.EventID,
		&inv.Amount, &inv.CustomerName, &inv.CustomerEmail, &inv.CustomerTaxID, &inv.Description,
		&inv.Status, &inv.RemoteStatus, &inv.RemoteID,
		&inv.RPSSerial, &inv.RPSNumber, &inv.RPSBatch,
		&inv.PDFURL, &inv.XMLURL, &inv.ResponsePayload, &inv.ErrorMessage,
		&inv.CreatedAt, &inv.UpdatedAt, &emittedAt,
	)
	if err != nil {
		return nil, err
	}
	if emittedAt != nil {
		inv.EmittedAt = *emittedAt
	}
	return &inv, nil
}

// nullTime convierte el cero de time.Time en NULL para columnas opcionales.
func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
