package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Estados locales de una nota fiscal. El ciclo de vida es
//
//	draft → pending → submitted → {approved | error | cancelled}
//
// approved y cancelled son terminales de éxito; error es terminal a secas:
// un reintento crea una nota NUEVA, nunca reabre una fila en error.
// submitted puede reentrar en sí mismo durante el polling.
const (
	StatusDraft     = "draft"     // creada, sin numeración asignada
	StatusPending   = "pending"   // numeración asignada, aún sin envío
	StatusSubmitted = "submitted" // enviada al emisor, esperando resultado
	StatusApproved  = "approved"  // autorizada por el emisor
	StatusCancelled = "cancelled" // cancelada (por poll o cancelación explícita)
	StatusError     = "error"     // fallo terminal del intento
)

// Invoice representa UN intento de emisión de nota fiscal de servicio.
// Un intento fallido puede ser superado por un intento nuevo; por eso la fila
// referencia el evento facturable pero no es única por evento.
type Invoice struct {
	ID       string
	SellerID string

	// Referencia al evento facturable (unión etiquetada). Para notas manuales
	// EventKind es EventManual y EventID queda vacío.
	EventKind string
	EventID   string

	// Snapshot del evento al momento del intento: la fila sigue siendo
	// interpretable aunque el evento origen desaparezca.
	Amount        decimal.Decimal
	CustomerName  string
	CustomerEmail string
	CustomerTaxID string
	Description   string

	Status       string // estado local (constantes Status*)
	RemoteStatus string // flowStatus del emisor, literal
	RemoteID     string // id en el emisor; se fija en el primer envío exitoso

	// Tripleta de numeración asignada (cero hasta la asignación)
	RPSSerial string
	RPSNumber int64
	RPSBatch  int64

	// Artefactos y última respuesta cruda del emisor
	PDFURL          string
	XMLURL          string
	ResponsePayload string // cuerpo literal de la última respuesta
	ErrorMessage    string

	CreatedAt time.Time
	UpdatedAt time.Time
	EmittedAt time.Time // cero hasta la primera entrada en approved
}

// Ref devuelve la referencia al evento facturable de la nota.
func (i *Invoice) Ref() EventRef {
	return EventRef{Kind: i.EventKind, ID: i.EventID}
}

// IsTerminal indica si el intento ya no va a cambiar por sí solo.
func (i *Invoice) IsTerminal() bool {
	return i.Status == StatusApproved || i.Status == StatusCancelled || i.Status == StatusError
}

// IsActive indica si la nota bloquea una nueva emisión para el mismo evento.
// Solo error libera el evento: approved y cancelled siguen siendo "la" nota.
func (i *Invoice) IsActive() bool {
	return i.Status != StatusError
}

// transiciones válidas de la máquina de estados. Cualquier estado puede caer
// a error por fallo local de transporte o parseo, eso se contempla aparte en
// Transition.
var transitions = map[string][]string{
	StatusDraft:     {StatusPending},
	StatusPending:   {StatusSubmitted},
	StatusSubmitted: {StatusSubmitted, StatusApproved, StatusCancelled},
	StatusApproved:  {StatusApproved, StatusCancelled},
	StatusCancelled: {},
	StatusError:     {},
}

// CanTransition consulta la tabla de transiciones. error como destino es
// válido desde cualquier estado salvo error mismo: un fallo local de
// transporte o parseo puede golpear en cualquier punto del ciclo.
func CanTransition(from, to string) bool {
	if to == StatusError {
		return from != StatusError
	}
	for _, t := range transitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// Transition muta el estado local validando contra la tabla. En la primera
// entrada a approved estampa EmittedAt; reentradas posteriores no lo pisan.
func (i *Invoice) Transition(to string, now time.Time) error {
	if !CanTransition(i.Status, to) {
		return ErrTransition{From: i.Status, To: to}
	}
	i.Status = to
	i.UpdatedAt = now
	if to == StatusApproved {
		i.StampEmitted(now)
	}
	return nil
}

// MarkError lleva la nota a error registrando el mensaje literal del fallo.
func (i *Invoice) MarkError(msg string, now time.Time) {
	i.Status = StatusError
	i.ErrorMessage = msg
	i.UpdatedAt = now
}

// StampEmitted fija la fecha de emisión exactamente una vez (idempotente).
func (i *Invoice) StampEmitted(now time.Time) {
	if i.EmittedAt.IsZero() {
		i.EmittedAt = now
	}
}

// ErrTransition error tipado para transiciones rechazadas.
type ErrTransition struct {
	From string
	To   string
}

func (e ErrTransition) Error() string {
	return "transición inválida: " + e.From + " → " + e.To
}
