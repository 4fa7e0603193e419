package nfeio

import "github.com/jhoicas/Fiscal-api/internal/domain/entity"

// Estados del pipeline del emisor (vocabulario flowStatus).
const (
	FlowAuthorized = "Authorized"
	FlowCancelled  = "Cancelled"
	FlowError      = "Error"
)

// flowStatusToLocal es la tabla fija de mapeo del vocabulario del emisor al
// enum local. Los Waiting* y Processing significan "sigue en el pipeline":
// el estado local queda en submitted. Códigos fuera de la tabla no cambian el
// estado local (sujeto a la regla de staleness del driver).
var flowStatusToLocal = map[string]string{
	FlowAuthorized:          entity.StatusApproved,
	FlowCancelled:           entity.StatusCancelled,
	FlowError:               entity.StatusError,
	"WaitingCalculateTaxes": entity.StatusSubmitted,
	"WaitingDefineRpsNumber": entity.StatusSubmitted,
	"WaitingSend":            entity.StatusSubmitted,
	"WaitingSendCancel":      entity.StatusSubmitted,
	"WaitingReturn":          entity.StatusSubmitted,
	"Processing":             entity.StatusSubmitted,
}

// MapFlowStatus traduce un flowStatus del emisor al estado local.
// ok es false para códigos desconocidos: el llamador no debe mutar el estado.
func MapFlowStatus(flowStatus string) (local string, ok bool) {
	local, ok = flowStatusToLocal[flowStatus]
	return local, ok
}
