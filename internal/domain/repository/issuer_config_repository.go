package repository

import (
	"context"

	"github.com/jhoicas/Fiscal-api/internal/domain/entity"
)

// IssuerConfigRepository define el puerto de persistencia para la
// configuración fiscal del vendedor y su cursor de numeración.
type IssuerConfigRepository interface {
	// GetBySeller devuelve nil, nil si el vendedor no tiene configuración.
	GetBySeller(ctx context.Context, sellerID string) (*entity.IssuerConfig, error)

	// GetBySellerForUpdate carga la configuración tomando el lock de fila.
	// Solo tiene sentido dentro de una transacción: serializa emisiones
	// concurrentes del mismo vendedor.
	GetBySellerForUpdate(ctx context.Context, sellerID string) (*entity.IssuerConfig, error)

	// Upsert crea o actualiza la configuración del vendedor. Nunca toca el
	// cursor de numeración de una fila existente.
	Upsert(ctx context.Context, cfg *entity.IssuerConfig) error

	// AllocateNumber incrementa el cursor y devuelve la tripleta asignada.
	// Es el ÚNICO camino que incrementa rps_next_number. El cursor
	// incrementado queda persistido antes de devolver: un crash posterior
	// deja un hueco en la numeración, nunca un duplicado.
	// Llamadas concurrentes para el mismo vendedor se serializan en el
	// lock de fila.
	AllocateNumber(ctx context.Context, sellerID string) (*entity.RPSAllocation, error)
}
