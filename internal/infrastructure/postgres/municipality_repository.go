package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jhoicas/Fiscal-api/internal/domain/repository"
)

var _ repository.MunicipalityRepository = (*MunicipalityRepo)(nil)

// MunicipalityRepo resuelve códigos IBGE desde la tabla paramétrica de
// municipios (poblada por cmd/seed_ibge).
type MunicipalityRepo struct {
	q Querier
}

// NewMunicipalityRepository construye el adaptador. Pasar pool o tx (Querier).
func NewMunicipalityRepository(q Querier) *MunicipalityRepo {
	return &MunicipalityRepo{q: q}
}

// CodeFor busca el código IBGE por nombre normalizado + UF. Devuelve "" sin
// error si no está en el catálogo: el llamador decide el código por defecto.
func (r *MunicipalityRepo) CodeFor(ctx context.Context, name, state string) (string, error) {
	const q = `
		SELECT ibge_code FROM municipalities
		WHERE lower(name) = lower($1) AND state = upper($2)
		LIMIT 1`
	var code string
	err := r.q.QueryRow(ctx, q, strings.TrimSpace(name), strings.TrimSpace(state)).Scan(&code)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("get municipality code: %w", err)
	}
	return code, nil
}
