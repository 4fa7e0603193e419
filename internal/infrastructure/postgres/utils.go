package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// isUniqueViolation detecta la violación de constraint único (23505). El caso
// que interesa aquí es el índice parcial de nota-activa-por-evento: la capa de
// arriba lo traduce a domain.ErrInvoiceAlreadyActive.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
