package domain

import "errors"

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound     = errors.New("recurso no encontrado")
	ErrInvalidInput = errors.New("entrada inválida")
	ErrUnauthorized = errors.New("no autorizado")
	ErrForbidden    = errors.New("acceso denegado")
	ErrConflict     = errors.New("conflicto con el estado actual")

	// ErrIssuerConfigIncomplete la configuración fiscal del vendedor no está
	// completa o la emisión está deshabilitada: se rechaza antes de cualquier
	// llamada de red.
	ErrIssuerConfigIncomplete = errors.New("configuración fiscal incompleta o deshabilitada")

	// ErrInvoiceAlreadyActive ya existe una nota fiscal activa (no terminada en
	// error) para el mismo evento facturable.
	ErrInvoiceAlreadyActive = errors.New("ya existe una nota fiscal activa para el evento")

	// ErrInvalidTransition la operación pedida no es válida desde el estado
	// actual de la nota (ej: cancelar una nota no aprobada). Se rechaza en
	// local, sin llamada de red ni mutación.
	ErrInvalidTransition = errors.New("transición de estado inválida")

	// ErrNoRemoteID la nota nunca llegó a registrarse en el emisor; no hay id
	// remoto para consultar ni cancelar.
	ErrNoRemoteID = errors.New("la nota fiscal no tiene id remoto")
)
