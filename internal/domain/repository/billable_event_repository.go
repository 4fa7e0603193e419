package repository

import (
	"context"

	"github.com/jhoicas/Fiscal-api/internal/domain/entity"
)

// BillableEventRepository lee los eventos facturables producidos por el
// subsistema de pagos/matrículas. Solo lectura: este subsistema nunca muta
// transacciones ni ventas avulsas.
type BillableEventRepository interface {
	// GetByRef resuelve la variante concreta según ref.Kind.
	// Devuelve nil, nil si el evento no existe.
	GetByRef(ctx context.Context, ref entity.EventRef) (entity.BillableEvent, error)
}

// MunicipalityRepository resuelve el código IBGE de un municipio para el par
// {code, name} que exige el emisor en la dirección del tomador.
type MunicipalityRepository interface {
	// CodeFor devuelve "" (sin error) si el municipio no está en el catálogo.
	CodeFor(ctx context.Context, name, state string) (string, error)
}
