package repository

import (
	"context"

	"github.com/jhoicas/Fiscal-api/internal/domain/entity"
)

// InvoiceRepository define el puerto de persistencia para intentos de emisión.
type InvoiceRepository interface {
	Create(ctx context.Context, invoice *entity.Invoice) error

	// Update persiste los campos mutables del intento: estado local, estado
	// remoto literal, id remoto, artefactos, última respuesta cruda, mensaje
	// de error y timestamps.
	Update(ctx context.Context, invoice *entity.Invoice) error

	// GetByID devuelve nil, nil si no existe.
	GetByID(ctx context.Context, id string) (*entity.Invoice, error)

	// GetActiveByEvent devuelve la nota activa (status != error) para el
	// evento, o nil, nil. Es el chequeo de a-lo-sumo-una-activa-por-evento;
	// debe correr dentro de la misma transacción que la asignación de
	// numeración para que dos emisiones concurrentes no pasen ambas.
	GetActiveByEvent(ctx context.Context, ref entity.EventRef) (*entity.Invoice, error)

	// ListByEvent devuelve todos los intentos del evento, el más reciente primero.
	ListByEvent(ctx context.Context, ref entity.EventRef) ([]*entity.Invoice, error)

	// ListBySeller devuelve los intentos del vendedor, el más reciente primero.
	ListBySeller(ctx context.Context, sellerID string, limit, offset int) ([]*entity.Invoice, error)
}
