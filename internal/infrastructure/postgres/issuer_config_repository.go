package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jhoicas/Fiscal-api/internal/domain/entity"
	"github.com/jhoicas/Fiscal-api/internal/domain/repository"
)

var _ repository.IssuerConfigRepository = (*IssuerConfigRepo)(nil)

const issuerConfigColumns = `
	id, seller_id, external_id, enabled,
	tax_id, legal_name, trade_name, municipal_registration, tax_regime,
	street, number, complement, district, city, state, postal_code, phone, email,
	rps_serial, rps_next_number, rps_batch,
	created_at, updated_at`

// IssuerConfigRepo implementa IssuerConfigRepository sobre PostgreSQL.
type IssuerConfigRepo struct {
	q Querier
}

// NewIssuerConfigRepository construye el adaptador. Pasar pool o tx (Querier).
func NewIssuerConfigRepository(q Querier) *IssuerConfigRepo {
	return &IssuerConfigRepo{q: q}
}

func (r *IssuerConfigRepo) GetBySeller(ctx context.Context, sellerID string) (*entity.IssuerConfig, error) {
	const q = `SELECT ` + issuerConfigColumns + ` FROM issuer_configs WHERE seller_id = $1`
	cfg, err := scanIssuerConfig(r.q.QueryRow(ctx, q, sellerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get issuer_config by seller: %w", err)
	}
	return cfg, nil
}

// GetBySellerForUpdate toma el lock de fila del vendedor. Dentro de la
// transacción de emisión serializa el chequeo de nota-activa con la asignación
// de numeración: dos emisiones concurrentes del mismo evento nunca pasan ambas.
func (r *IssuerConfigRepo) GetBySellerForUpdate(ctx context.Context, sellerID string) (*entity.IssuerConfig, error) {
	const q = `SELECT ` + issuerConfigColumns + ` FROM issuer_configs WHERE seller_id = $1 FOR UPDATE`
	cfg, err := scanIssuerConfig(r.q.QueryRow(ctx, q, sellerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get issuer_config for update: %w", err)
	}
	return cfg, nil
}

// Upsert crea o actualiza la configuración del vendedor. En una fila existente
// NUNCA toca el cursor (rps_serial, rps_next_number, rps_batch): editar los
// datos fiscales no puede retroceder la numeración.
func (r *IssuerConfigRepo) Upsert(ctx context.Context, cfg *entity.IssuerConfig) error {
	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}
	const q = `
		INSERT INTO issuer_configs
			(id, seller_id, external_id, enabled,
			 tax_id, legal_name, trade_name, municipal_registration, tax_regime,
			 street, number, complement, district, city, state, postal_code, phone, email,
			 rps_serial, rps_next_number, rps_batch,
			 created_at, updated_at)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18,
			 $19, $20, $21, now(), now())
		ON CONFLICT (seller_id) DO UPDATE SET
			external_id            = EXCLUDED.external_id,
			enabled                = EXCLUDED.enabled,
			tax_id                 = EXCLUDED.tax_id,
			legal_name             = EXCLUDED.legal_name,
			trade_name             = EXCLUDED.trade_name,
			municipal_registration = EXCLUDED.municipal_registration,
			tax_regime             = EXCLUDED.tax_regime,
			street                 = EXCLUDED.street,
			number                 = EXCLUDED.number,
			complement             = EXCLUDED.complement,
			district               = EXCLUDED.district,
			city                   = EXCLUDED.city,
			state                  = EXCLUDED.state,
			postal_code            = EXCLUDED.postal_code,
			phone                  = EXCLUDED.phone,
			email                  = EXCLUDED.email,
			updated_at             = now()`
	_, err := r.q.Exec(ctx, q,
		cfg.ID, cfg.SellerID, cfg.ExternalID, cfg.Enabled,
		cfg.TaxID, cfg.LegalName, cfg.TradeName, cfg.MunicipalRegistration, cfg.TaxRegime,
		cfg.Street, cfg.Number, cfg.Complement, cfg.District, cfg.City, cfg.State,
		cfg.PostalCode, cfg.Phone, cfg.Email,
		cfg.RPSSerial, cfg.RPSNextNumber, cfg.RPSBatch,
	)
	if err != nil {
		return fmt.Errorf("upsert issuer_config: %w", err)
	}
	return nil
}

// AllocateNumber incrementa el cursor en un único UPDATE atómico y devuelve la
// tripleta asignada (el valor PREVIO del cursor). El incremento queda escrito
// antes de devolver: si el proceso muere después, la numeración queda con un
// hueco, nunca con un duplicado. No existe camino de rollback del cursor.
func (r *IssuerConfigRepo) AllocateNumber(ctx context.Context, sellerID string) (*entity.RPSAllocation, error) {
	const q = `
		UPDATE issuer_configs
		SET rps_next_number = rps_next_number + 1, updated_at = now()
		WHERE seller_id = $1
		RETURNING rps_serial, rps_next_number - 1, rps_batch`
	var alloc entity.RPSAllocation
	err := r.q.QueryRow(ctx, q, sellerID).Scan(&alloc.Serial, &alloc.Number, &alloc.Batch)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("allocate rps number: vendedor %s sin configuración", sellerID)
		}
		return nil, fmt.Errorf("allocate rps number: %w", err)
	}
	return &alloc, nil
}

// ── helpers ───────────────────────────────────────────────────────────────────

// pgxScanner abstrae pgx.Row y pgx.Rows para reutilizar los helpers de scan.
type pgxScanner interface {
	Scan(dest ...any) error
}

func scanIssuerConfig(row pgxScanner) (*entity.IssuerConfig, error) {
	var c entity.IssuerConfig
	err := row.Scan(
		&c.ID, &c.SellerID, &c.ExternalID, &c.Enabled,
		&c.TaxID, &c.LegalName, &c.TradeName, &c.MunicipalRegistration, &c.TaxRegime,
		&c.Street, &c.Number, &c.Complement, &c.District, &c.City, &c.State,
		&c.PostalCode, &c.Phone, &c.Email,
		&c.RPSSerial, &c.RPSNextNumber, &c.RPSBatch,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
