package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/jhoicas/Fiscal-api/internal/application/dto"
	"github.com/jhoicas/Fiscal-api/internal/application/invoicing"
	"github.com/jhoicas/Fiscal-api/internal/domain"
	"github.com/jhoicas/Fiscal-api/internal/domain/entity"
)

// InvoiceHandler maneja las peticiones HTTP del flujo de notas fiscales
// (protegido, alcance por vendedor).
type InvoiceHandler struct {
	rec       *invoicing.Reconciler
	receiptUC *invoicing.ReceiptUseCase
}

// NewInvoiceHandler construye el handler.
func NewInvoiceHandler(rec *invoicing.Reconciler, receiptUC *invoicing.ReceiptUseCase) *InvoiceHandler {
	return &InvoiceHandler{rec: rec, receiptUC: receiptUC}
}

// Issue emite una nota fiscal para un evento facturable o desde snapshot manual.
// POST /api/invoices/issue
func (h *InvoiceHandler) Issue(c *fiber.Ctx) error {
	sellerID := GetUserID(c)
	if sellerID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	var in dto.IssueInvoiceRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}

	var (
		inv *entity.Invoice
		err error
	)
	switch in.EventKind {
	case entity.EventManual:
		inv, err = h.rec.IssueManual(c.Context(), entity.ManualSale{
			Seller: sellerID,
			Value:  in.Amount,
			Purchaser: entity.BuyerIdentity{
				Name:  in.CustomerName,
				Email: in.CustomerEmail,
				TaxID: in.CustomerTaxID,
			},
			Note: in.Description,
		})
	case entity.EventTransaction, entity.EventSingleSale:
		// La propiedad del evento se verifica antes de asignar numeración o
		// llamar al emisor: una emisión ajena no deja fila ni consume cursor.
		inv, err = h.rec.IssueFor(c.Context(), sellerID, entity.EventRef{Kind: in.EventKind, ID: in.EventID})
	default:
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "event_kind desconocido"})
	}
	if err != nil {
		return domainError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.FromInvoice(inv))
}

// Retry emite una nota nueva para el evento de una nota en error.
// POST /api/invoices/:id/retry
func (h *InvoiceHandler) Retry(c *fiber.Ctx) error {
	inv, err := h.ownedInvoice(c)
	if err != nil {
		return domainError(c, err)
	}
	fresh, err := h.rec.Retry(c.Context(), inv.ID)
	if err != nil {
		return domainError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.FromInvoice(fresh))
}

// Poll consulta el estado remoto y devuelve el antes/después.
// POST /api/invoices/:id/poll
func (h *InvoiceHandler) Poll(c *fiber.Ctx) error {
	inv, err := h.ownedInvoice(c)
	if err != nil {
		return domainError(c, err)
	}
	diff, err := h.rec.Poll(c.Context(), inv.ID)
	if err != nil {
		return domainError(c, err)
	}
	return c.JSON(dto.PollDiffResponse{
		Before: stateView(diff.Before),
		After:  stateView(diff.After),
	})
}

// Cancel cancela una nota aprobada en el emisor.
// POST /api/invoices/:id/cancel
func (h *InvoiceHandler) Cancel(c *fiber.Ctx) error {
	inv, err := h.ownedInvoice(c)
	if err != nil {
		return domainError(c, err)
	}
	var in dto.CancelInvoiceRequest
	if err := c.BodyParser(&in); err != nil && len(c.Body()) > 0 {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	out, err := h.rec.Cancel(c.Context(), inv.ID, in.Reason)
	if err != nil {
		return domainError(c, err)
	}
	return c.JSON(dto.FromInvoice(out))
}

// GetByID devuelve una nota del vendedor.
// GET /api/invoices/:id
func (h *InvoiceHandler) GetByID(c *fiber.Ctx) error {
	inv, err := h.ownedInvoice(c)
	if err != nil {
		return domainError(c, err)
	}
	return c.JSON(dto.FromInvoice(inv))
}

// List lista las notas del vendedor, la más reciente primero.
// GET /api/invoices
func (h *InvoiceHandler) List(c *fiber.Ctx) error {
	sellerID := GetUserID(c)
	if sellerID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	var page dto.PageRequest
	if err := c.QueryParser(&page); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "paginación inválida"})
	}
	page.DefaultPage()

	list, err := h.rec.ListInvoices(c.Context(), sellerID, page.Limit, page.Offset)
	if err != nil {
		return domainError(c, err)
	}
	out := make([]dto.InvoiceResponse, 0, len(list))
	for _, inv := range list {
		out = append(out, dto.FromInvoice(inv))
	}
	return c.JSON(fiber.Map{
		"invoices": out,
		"page":     dto.PageResponse{Limit: page.Limit, Offset: page.Offset},
	})
}

// Artifact devuelve la URL del PDF definitivo del emisor (cacheada o resuelta
// con un poll).
// GET /api/invoices/:id/pdf
func (h *InvoiceHandler) Artifact(c *fiber.Ctx) error {
	inv, err := h.ownedInvoice(c)
	if err != nil {
		return domainError(c, err)
	}
	url, err := h.rec.FetchArtifact(c.Context(), inv.ID)
	if err != nil {
		return domainError(c, err)
	}
	if url == "" {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "ARTIFACT_PENDING", Message: "la nota aún no tiene PDF disponible"})
	}
	return c.JSON(fiber.Map{"url": url})
}

// Receipt genera y descarga el recibo provisorio local (representación del RPS).
// GET /api/invoices/:id/receipt
func (h *InvoiceHandler) Receipt(c *fiber.Ctx) error {
	sellerID := GetUserID(c)
	if sellerID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	id := c.Params("id")
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "id requerido"})
	}
	pdfBytes, filename, err := h.receiptUC.DownloadReceiptPDF(c.Context(), sellerID, id)
	if err != nil {
		return domainError(c, err)
	}
	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+filename+`"`)
	return c.Send(pdfBytes)
}

// ownedInvoice carga la nota de :id y verifica que pertenece al vendedor del
// token (admin puede ver todas).
func (h *InvoiceHandler) ownedInvoice(c *fiber.Ctx) (*entity.Invoice, error) {
	sellerID := GetUserID(c)
	if sellerID == "" {
		return nil, domain.ErrUnauthorized
	}
	id := c.Params("id")
	if id == "" {
		return nil, domain.ErrInvalidInput
	}
	inv, err := h.rec.GetInvoice(c.Context(), id)
	if err != nil {
		return nil, err
	}
	if inv.SellerID != sellerID && GetRole(c) != "admin" {
		return nil, domain.ErrForbidden
	}
	return inv, nil
}

func stateView(v invoicing.InvoiceView) dto.InvoiceStateView {
	out := dto.InvoiceStateView{
		Status:       v.Status,
		RemoteStatus: v.RemoteStatus,
		PDFURL:       v.PDFURL,
		XMLURL:       v.XMLURL,
		ErrorMessage: v.ErrorMessage,
	}
	if !v.EmittedAt.IsZero() {
		emitted := v.EmittedAt
		out.EmittedAt = &emitted
	}
	return out
}
