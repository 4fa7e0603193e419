package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/Fiscal-api/internal/domain/entity"
)

// IssueInvoiceRequest body para POST /api/invoices/issue.
// Para event_kind "manual" se ignora event_id y se usa el snapshot libre.
type IssueInvoiceRequest struct {
	EventKind string `json:"event_kind"` // transaction | single_sale | manual
	EventID   string `json:"event_id,omitempty"`

	// Snapshot libre, solo para emisiones manuales.
	Amount        decimal.Decimal `json:"amount,omitempty"`
	CustomerName  string          `json:"customer_name,omitempty"`
	CustomerEmail string          `json:"customer_email,omitempty"`
	CustomerTaxID string          `json:"customer_tax_id,omitempty"`
	Description   string          `json:"description,omitempty"`
}

// CancelInvoiceRequest body para POST /api/invoices/:id/cancel.
type CancelInvoiceRequest struct {
	Reason string `json:"reason,omitempty"`
}

// InvoiceResponse nota fiscal en respuestas.
type InvoiceResponse struct {
	ID        string `json:"id"`
	SellerID  string `json:"seller_id"`
	EventKind string `json:"event_kind"`
	EventID   string `json:"event_id,omitempty"`

	Amount        decimal.Decimal `json:"amount"`
	CustomerName  string          `json:"customer_name"`
	CustomerEmail string          `json:"customer_email,omitempty"`
	CustomerTaxID string          `json:"customer_tax_id,omitempty"`
	Description   string          `json:"description"`

	Status       string `json:"status"`
	RemoteStatus string `json:"remote_status,omitempty"`
	RemoteID     string `json:"remote_id,omitempty"`

	RPSSerial string `json:"rps_serial,omitempty"`
	RPSNumber int64  `json:"rps_number,omitempty"`
	RPSBatch  int64  `json:"rps_batch,omitempty"`

	PDFURL       string `json:"pdf_url,omitempty"`
	XMLURL       string `json:"xml_url,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	EmittedAt *time.Time `json:"emitted_at,omitempty"`
}

// FromInvoice proyecta la entidad a la respuesta HTTP.
func FromInvoice(inv *entity.Invoice) InvoiceResponse {
	resp := InvoiceResponse{
		ID:            inv.ID,
		SellerID:      inv.SellerID,
		EventKind:     inv.EventKind,
		EventID:       inv.EventID,
		Amount:        inv.Amount,
		CustomerName:  inv.CustomerName,
		CustomerEmail: inv.CustomerEmail,
		CustomerTaxID: inv.CustomerTaxID,
		Description:   inv.Description,
		Status:        inv.Status,
		RemoteStatus:  inv.RemoteStatus,
		RemoteID:      inv.RemoteID,
		RPSSerial:     inv.RPSSerial,
		RPSNumber:     inv.RPSNumber,
		RPSBatch:      inv.RPSBatch,
		PDFURL:        inv.PDFURL,
		XMLURL:        inv.XMLURL,
		ErrorMessage:  inv.ErrorMessage,
		CreatedAt:     inv.CreatedAt,
		UpdatedAt:     inv.UpdatedAt,
	}
	if !inv.EmittedAt.IsZero() {
		emitted := inv.EmittedAt
		resp.EmittedAt = &emitted
	}
	return resp
}

// PollDiffResponse antes/después de un poll, para mostrar al operador.
type PollDiffResponse struct {
	Before InvoiceStateView `json:"before"`
	After  InvoiceStateView `json:"after"`
}

// InvoiceStateView proyección ligera del estado visible de una nota.
type InvoiceStateView struct {
	Status       string     `json:"status"`
	RemoteStatus string     `json:"remote_status,omitempty"`
	PDFURL       string     `json:"pdf_url,omitempty"`
	XMLURL       string     `json:"xml_url,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	EmittedAt    *time.Time `json:"emitted_at,omitempty"`
}

// UpsertIssuerConfigRequest body para PUT /api/issuer-config.
type UpsertIssuerConfigRequest struct {
	ExternalID            string `json:"external_id"`
	Enabled               bool   `json:"enabled"`
	TaxID                 string `json:"tax_id"`
	LegalName             string `json:"legal_name"`
	TradeName             string `json:"trade_name"`
	MunicipalRegistration string `json:"municipal_registration,omitempty"`
	TaxRegime             string `json:"tax_regime,omitempty"`
	Street                string `json:"street"`
	Number                string `json:"number"`
	Complement            string `json:"complement,omitempty"`
	District              string `json:"district"`
	City                  string `json:"city"`
	State                 string `json:"state"`
	PostalCode            string `json:"postal_code"`
	Phone                 string `json:"phone,omitempty"`
	Email                 string `json:"email,omitempty"`
}

// IssuerConfigResponse configuración fiscal en respuestas. Expone el cursor en
// modo solo lectura.
type IssuerConfigResponse struct {
	ID                    string `json:"id"`
	SellerID              string `json:"seller_id"`
	ExternalID            string `json:"external_id"`
	Enabled               bool   `json:"enabled"`
	IsComplete            bool   `json:"is_complete"`
	TaxID                 string `json:"tax_id"`
	LegalName             string `json:"legal_name"`
	TradeName             string `json:"trade_name"`
	MunicipalRegistration string `json:"municipal_registration,omitempty"`
	TaxRegime             string `json:"tax_regime"`
	Street                string `json:"street"`
	Number                string `json:"number"`
	Complement            string `json:"complement,omitempty"`
	District              string `json:"district"`
	City                  string `json:"city"`
	State                 string `json:"state"`
	PostalCode            string `json:"postal_code"`
	Phone                 string `json:"phone,omitempty"`
	Email                 string `json:"email,omitempty"`
	RPSSerial             string `json:"rps_serial"`
	RPSNextNumber         int64  `json:"rps_next_number"`
	RPSBatch              int64  `json:"rps_batch"`
}

// FromIssuerConfig proyecta la entidad a la respuesta HTTP.
func FromIssuerConfig(cfg *entity.IssuerConfig) IssuerConfigResponse {
	return IssuerConfigResponse{
		ID:                    cfg.ID,
		SellerID:              cfg.SellerID,
		ExternalID:            cfg.ExternalID,
		Enabled:               cfg.Enabled,
		IsComplete:            cfg.IsComplete(),
		TaxID:                 cfg.TaxID,
		LegalName:             cfg.LegalName,
		TradeName:             cfg.TradeName,
		MunicipalRegistration: cfg.MunicipalRegistration,
		TaxRegime:             cfg.TaxRegime,
		Street:                cfg.Street,
		Number:                cfg.Number,
		Complement:            cfg.Complement,
		District:              cfg.District,
		City:                  cfg.City,
		State:                 cfg.State,
		PostalCode:            cfg.PostalCode,
		Phone:                 cfg.Phone,
		Email:                 cfg.Email,
		RPSSerial:             cfg.RPSSerial,
		RPSNextNumber:         cfg.RPSNextNumber,
		RPSBatch:              cfg.RPSBatch,
	}
}

// ToEntity convierte el request de configuración a la entidad (el cursor no
// viaja en el request).
func (r *UpsertIssuerConfigRequest) ToEntity() *entity.IssuerConfig {
	return &entity.IssuerConfig{
		ExternalID:            r.ExternalID,
		Enabled:               r.Enabled,
		TaxID:                 r.TaxID,
		LegalName:             r.LegalName,
		TradeName:             r.TradeName,
		MunicipalRegistration: r.MunicipalRegistration,
		TaxRegime:             r.TaxRegime,
		Street:                r.Street,
		Number:                r.Number,
		Complement:            r.Complement,
		District:              r.District,
		City:                  r.City,
		State:                 r.State,
		PostalCode:            r.PostalCode,
		Phone:                 r.Phone,
		Email:                 r.Email,
	}
}
