package nfeio

import (
	"errors"
	"fmt"
)

// ── Payload de emisión ─────────────────────────────────────────────────────────

// submitPayload es el cuerpo de POST /companies/{id}/serviceinvoices.
type submitPayload struct {
	Borrower              borrowerPayload `json:"borrower"`
	CityServiceCode       string          `json:"cityServiceCode"`
	Description           string          `json:"description"`
	ServicesAmount        float64         `json:"servicesAmount"`
	Environment           string          `json:"environment"`
	Reference             string          `json:"reference"`
	AdditionalInformation string          `json:"additionalInformation,omitempty"`
	RPSSerialNumber       string          `json:"rpsSerialNumber,omitempty"`
	RPSNumber             int64           `json:"rpsNumber,omitempty"`
}

// borrowerPayload identidad del tomador del servicio. El emisor exige el
// documento como entero sin formato.
type borrowerPayload struct {
	Type             string         `json:"type"` // NaturalPerson | LegalEntity
	Name             string         `json:"name"`
	Email            string         `json:"email,omitempty"`
	FederalTaxNumber int64          `json:"federalTaxNumber"`
	Address          addressPayload `json:"address"`
}

type addressPayload struct {
	Country               string      `json:"country"`
	State                 string      `json:"state"`
	City                  cityPayload `json:"city"`
	District              string      `json:"district"`
	Street                string      `json:"street"`
	Number                string      `json:"number"`
	PostalCode            string      `json:"postalCode"`
	AdditionalInformation string      `json:"additionalInformation,omitempty"`
}

// cityPayload el emisor exige el municipio como par {código IBGE, nombre}.
type cityPayload struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// cancelPayload cuerpo de POST .../cancel.
type cancelPayload struct {
	Reason string `json:"reason"`
}

// ── Respuestas ────────────────────────────────────────────────────────────────

// statusEnvelope es el sobre que devuelve el emisor tanto en la emisión como
// en la consulta de estado y la cancelación.
type statusEnvelope struct {
	ID          string        `json:"id"`
	FlowStatus  string        `json:"flowStatus"`
	FlowMessage string        `json:"flowMessage"`
	PDF         *artifactLink `json:"pdf"`
	XML         *artifactLink `json:"xml"`
}

type artifactLink struct {
	URL string `json:"url"`
}

// RemoteResult es el resultado normalizado de una operación contra el emisor.
// Raw conserva el cuerpo literal de la respuesta para auditoría.
type RemoteResult struct {
	ID          string
	FlowStatus  string
	FlowMessage string
	PDFURL      string
	XMLURL      string
	Raw         []byte
}

// RequestError respuesta no-2xx del emisor; el cuerpo se conserva literal.
type RequestError struct {
	StatusCode int
	Body       string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("nfeio: HTTP %d: %s", e.StatusCode, e.Body)
}

// IsNotFound indica si err es una respuesta 404 del emisor. Una nota en
// pending/submitted que el emisor no conoce pasa a error.
func IsNotFound(err error) bool {
	var reqErr *RequestError
	return errors.As(err, &reqErr) && reqErr.StatusCode == 404
}
