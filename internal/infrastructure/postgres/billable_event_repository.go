package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jhoicas/Fiscal-api/internal/domain/entity"
	"github.com/jhoicas/Fiscal-api/internal/domain/repository"
)

var _ repository.BillableEventRepository = (*BillableEventRepo)(nil)

// BillableEventRepo lee transacciones y ventas avulsas del subsistema de
// pagos. Solo SELECT: estas tablas pertenecen a otro subsistema.
type BillableEventRepo struct {
	q Querier
}

// NewBillableEventRepository construye el adaptador. Pasar pool o tx (Querier).
func NewBillableEventRepository(q Querier) *BillableEventRepo {
	return &BillableEventRepo{q: q}
}

// GetByRef resuelve la variante concreta según ref.Kind. Las referencias
// manuales no apuntan a ninguna fila, así que aquí son un error de uso.
func (r *BillableEventRepo) GetByRef(ctx context.Context, ref entity.EventRef) (entity.BillableEvent, error) {
	switch ref.Kind {
	case entity.EventTransaction:
		return r.getTransaction(ctx, ref.ID)
	case entity.EventSingleSale:
		return r.getSingleSale(ctx, ref.ID)
	default:
		return nil, fmt.Errorf("get billable event: tipo %q no resoluble", ref.Kind)
	}
}

func (r *BillableEventRepo) getTransaction(ctx context.Context, id string) (entity.BillableEvent, error) {
	const q = `
		SELECT t.id, t.seller_id, t.amount, t.currency, t.course_title, t.custom_description,
		       t.student_name, t.student_email, t.student_tax_id,
		       t.student_street, t.student_number, t.student_complement, t.student_district,
		       t.student_city, t.student_state, t.student_postal_code
		FROM payment_transactions t
		WHERE t.id = $1 AND t.paid = true`
	var tx entity.PaymentTransaction
	err := r.q.QueryRow(ctx, q, id).Scan(
		&tx.ID, &tx.Seller, &tx.Value, &tx.CurrencyCode, &tx.CourseTitle, &tx.CustomDescription,
		&tx.Student.Name, &tx.Student.Email, &tx.Student.TaxID,
		&tx.Student.Address.Street, &tx.Student.Address.Number, &tx.Student.Address.Complement,
		&tx.Student.Address.District, &tx.Student.Address.City, &tx.Student.Address.State,
		&tx.Student.Address.PostalCode,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get payment_transaction: %w", err)
	}
	return tx, nil
}

func (r *BillableEventRepo) getSingleSale(ctx context.Context, id string) (entity.BillableEvent, error) {
	const q = `
		SELECT s.id, s.seller_id, s.amount, s.currency, s.description,
		       s.buyer_name, s.buyer_email, s.buyer_tax_id,
		       s.buyer_street, s.buyer_number, s.buyer_complement, s.buyer_district,
		       s.buyer_city, s.buyer_state, s.buyer_postal_code
		FROM single_sales s
		WHERE s.id = $1 AND s.paid = true`
	var sale entity.SingleSale
	err := r.q.QueryRow(ctx, q, id).Scan(
		&sale.ID, &sale.Seller, &sale.Value, &sale.CurrencyCode, &sale.ItemDescription,
		&sale.Purchaser.Name, &sale.Purchaser.Email, &sale.Purchaser.TaxID,
		&sale.Purchaser.Address.Street, &sale.Purchaser.Address.Number,
		&sale.Purchaser.Address.Complement, &sale.Purchaser.Address.District,
		&sale.Purchaser.Address.City, &sale.Purchaser.Address.State,
		&sale.Purchaser.Address.PostalCode,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get single_sale: %w", err)
	}
	return sale, nil
}
