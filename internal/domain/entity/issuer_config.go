package entity

import "time"

// Regímenes tributarios reconocidos por el emisor (Brasil).
const (
	TaxRegimeSimplesNacional = "simples_nacional"
	TaxRegimeLucroPresumido  = "lucro_presumido"
	TaxRegimeLucroReal       = "lucro_real"
)

// IssuerConfig representa la identidad fiscal de un vendedor (profesor) y su
// cursor de numeración RPS. Cada vendedor que emite notas fiscales tiene
// exactamente una configuración.
//
// Invariante del cursor: para un (vendedor, serie) dado, RPSNextNumber es
// monótono no decreciente, se incrementa exactamente una vez por asignación
// exitosa y nunca se reutiliza. Un crash después de asignar deja un hueco en
// la numeración, nunca un duplicado.
type IssuerConfig struct {
	ID         string
	SellerID   string // usuario dueño de la configuración
	ExternalID string // id de la empresa en el emisor: companies/{ExternalID}
	Enabled    bool

	// Identidad legal del emisor
	TaxID                 string // CNPJ, solo dígitos
	LegalName             string // razón social
	TradeName             string // nombre fantasía
	MunicipalRegistration string // inscripción municipal
	TaxRegime             string

	// Dirección fiscal
	Street     string
	Number     string
	Complement string
	District   string
	City       string
	State      string // UF, 2 letras
	PostalCode string
	Phone      string
	Email      string

	// Cursor de numeración RPS (Recibo Provisorio de Servicio)
	RPSSerial     string
	RPSNextNumber int64 // próximo número a asignar; positivo
	RPSBatch      int64 // lote de envío; positivo

	CreatedAt time.Time
	UpdatedAt time.Time
}

// RPSAllocation es la tripleta de numeración asignada a una nota fiscal.
type RPSAllocation struct {
	Serial string
	Number int64
	Batch  int64
}

// IsComplete es el predicado puro que habilita la emisión: todos los campos
// legalmente obligatorios están presentes Y la emisión está habilitada.
func (c *IssuerConfig) IsComplete() bool {
	required := []string{
		c.ExternalID,
		c.TaxID,
		c.LegalName,
		c.TradeName,
		c.TaxRegime,
		c.Street,
		c.Number,
		c.District,
		c.City,
		c.State,
		c.PostalCode,
	}
	for _, f := range required {
		if f == "" {
			return false
		}
	}
	return c.Enabled
}
