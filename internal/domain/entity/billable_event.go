package entity

import "github.com/shopspring/decimal"

// Tipos de evento facturable. "transaction" y "single_sale" son dos variantes
// del mismo concepto (algo pagado y elegible para nota fiscal); "manual" cubre
// emisiones con snapshot libre de monto y cliente.
const (
	EventTransaction = "transaction"
	EventSingleSale  = "single_sale"
	EventManual      = "manual"
)

// EventRef identifica un evento facturable: tipo + id.
type EventRef struct {
	Kind string
	ID   string
}

// IsManual indica que la referencia no apunta a ninguna fila upstream.
func (r EventRef) IsManual() bool { return r.Kind == EventManual }

// Address dirección estructurada del comprador.
type Address struct {
	Street     string
	Number     string
	Complement string
	District   string
	City       string
	State      string
	PostalCode string
}

// BuyerIdentity identidad del tomador del servicio tal como la reporta el
// subsistema de pagos.
type BuyerIdentity struct {
	Name    string
	Email   string
	TaxID   string // CPF o CNPJ, puede venir con puntuación
	Address Address
}

// BillableEvent es la unión etiquetada sobre las variantes de evento
// facturable: expone monto, comprador y descripción de manera uniforme en vez
// de dos referencias opcionales con chequeos de nil manuales.
type BillableEvent interface {
	Ref() EventRef
	SellerID() string
	Amount() decimal.Decimal
	Currency() string
	Buyer() BuyerIdentity
	Description() string
}

// PaymentTransaction es un pago confirmado de una matrícula de curso.
// Se consume en modo lectura desde el subsistema de pagos.
type PaymentTransaction struct {
	ID                string
	Seller            string
	Value             decimal.Decimal
	CurrencyCode      string
	Student           BuyerIdentity
	CourseTitle       string
	CustomDescription string
}

func (t PaymentTransaction) Ref() EventRef            { return EventRef{Kind: EventTransaction, ID: t.ID} }
func (t PaymentTransaction) SellerID() string         { return t.Seller }
func (t PaymentTransaction) Amount() decimal.Decimal  { return t.Value }
func (t PaymentTransaction) Currency() string         { return t.CurrencyCode }
func (t PaymentTransaction) Buyer() BuyerIdentity     { return t.Student }

// Description usa la descripción personalizada de la transacción si existe;
// si no, la arma a partir del título del curso.
func (t PaymentTransaction) Description() string {
	if t.CustomDescription != "" {
		return t.CustomDescription
	}
	return "Aula de " + t.CourseTitle
}

// SingleSale es una venta avulsa (fuera del flujo de matrículas) ya pagada.
type SingleSale struct {
	ID              string
	Seller          string
	Value           decimal.Decimal
	CurrencyCode    string
	Purchaser       BuyerIdentity
	ItemDescription string
}

func (s SingleSale) Ref() EventRef           { return EventRef{Kind: EventSingleSale, ID: s.ID} }
func (s SingleSale) SellerID() string        { return s.Seller }
func (s SingleSale) Amount() decimal.Decimal { return s.Value }
func (s SingleSale) Currency() string        { return s.CurrencyCode }
func (s SingleSale) Buyer() BuyerIdentity    { return s.Purchaser }
func (s SingleSale) Description() string     { return s.ItemDescription }

// ManualSale es un snapshot libre para emisiones administrativas: no
// referencia ninguna fila upstream, por eso su EventRef no lleva id.
type ManualSale struct {
	Seller       string
	Value        decimal.Decimal
	CurrencyCode string
	Purchaser    BuyerIdentity
	Note         string
}

func (m ManualSale) Ref() EventRef           { return EventRef{Kind: EventManual} }
func (m ManualSale) SellerID() string        { return m.Seller }
func (m ManualSale) Amount() decimal.Decimal { return m.Value }
func (m ManualSale) Currency() string        { return m.CurrencyCode }
func (m ManualSale) Buyer() BuyerIdentity    { return m.Purchaser }
func (m ManualSale) Description() string     { return m.Note }
