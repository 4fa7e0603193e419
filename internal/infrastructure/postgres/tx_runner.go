package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jhoicas/Fiscal-api/internal/application/invoicing"
	"github.com/jhoicas/Fiscal-api/internal/domain/repository"
)

var _ invoicing.TxRunner = (*TxRunner)(nil)

// TxRunner ejecuta callbacks dentro de una transacción PostgreSQL.
type TxRunner struct {
	pool *pgxpool.Pool
}

// NewTxRunner construye el runner con el pool.
func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool}
}

// RunInvoicing inicia una transacción con los repos del flujo de emisión
// atados a la tx y hace Commit o Rollback. El lock de fila que toma
// GetBySellerForUpdate vive hasta el cierre de esta transacción.
func (r *TxRunner) RunInvoicing(ctx context.Context, fn func(
	cfgRepo repository.IssuerConfigRepository,
	invRepo repository.InvoiceRepository,
) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	cfgRepo := NewIssuerConfigRepository(tx)
	invRepo := NewInvoiceRepository(tx)

	if err := fn(cfgRepo, invRepo); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
