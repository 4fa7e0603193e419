package invoicing

import (
	"context"
	"fmt"

	"github.com/jhoicas/Fiscal-api/internal/domain"
	"github.com/jhoicas/Fiscal-api/internal/domain/entity"
	"github.com/jhoicas/Fiscal-api/internal/domain/repository"
)

// ReceiptPDFGenerator renderiza el recibo provisorio (representación del RPS).
type ReceiptPDFGenerator interface {
	GenerateReceiptPDF(ctx context.Context, inv *entity.Invoice, cfg *entity.IssuerConfig) ([]byte, error)
}

// ReceiptUseCase genera el PDF del recibo provisorio local. Mientras el emisor
// no entrega el artefacto definitivo (o lo rechazó), el vendedor puede
// entregar esta representación de la numeración asignada.
type ReceiptUseCase struct {
	invRepo   repository.InvoiceRepository
	cfgRepo   repository.IssuerConfigRepository
	generator ReceiptPDFGenerator
}

// NewReceiptUseCase construye el caso de uso.
func NewReceiptUseCase(
	invRepo repository.InvoiceRepository,
	cfgRepo repository.IssuerConfigRepository,
	generator ReceiptPDFGenerator,
) *ReceiptUseCase {
	return &ReceiptUseCase{invRepo: invRepo, cfgRepo: cfgRepo, generator: generator}
}

// DownloadReceiptPDF genera el recibo provisorio de una nota con numeración ya
// asignada.
//
// Retorna:
//   - (pdfBytes, filename, nil)  si todo sale bien.
//   - domain.ErrNotFound         si la nota no existe.
//   - domain.ErrForbidden        si la nota no pertenece al vendedor del token.
//   - domain.ErrInvalidInput     si la nota está en draft (sin numeración).
func (uc *ReceiptUseCase) DownloadReceiptPDF(
	ctx context.Context,
	sellerID, invoiceID string,
) (pdfBytes []byte, filename string, err error) {
	inv, err := uc.invRepo.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, "", fmt.Errorf("recibo: obtener nota: %w", err)
	}
	if inv == nil {
		return nil, "", domain.ErrNotFound
	}
	if inv.SellerID != sellerID {
		return nil, "", domain.ErrForbidden
	}
	if inv.Status == entity.StatusDraft || inv.RPSNumber == 0 {
		return nil, "", fmt.Errorf("%w: la nota aún no tiene numeración asignada", domain.ErrInvalidInput)
	}

	cfg, err := uc.cfgRepo.GetBySeller(ctx, sellerID)
	if err != nil || cfg == nil {
		return nil, "", fmt.Errorf("recibo: obtener configuración fiscal: %w", err)
	}

	pdfBytes, err = uc.generator.GenerateReceiptPDF(ctx, inv, cfg)
	if err != nil {
		return nil, "", fmt.Errorf("recibo: generación fallida: %w", err)
	}

	filename = fmt.Sprintf("rps_%s_%d.pdf", inv.RPSSerial, inv.RPSNumber)
	return pdfBytes, filename, nil
}
