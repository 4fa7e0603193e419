// Package pdf implementa la generación del recibo provisorio de servicios
// (representación gráfica del RPS mientras el emisor no entrega la nota
// definitiva).
//
// Layout de la página A4:
//
//	┌─────────────────────────────────────────────────────────────┐
//	│  HEADER: Nombre fantasía + CNPJ  │  RPS serie/número + Fecha │
//	│  ─────────────────────────────────────────────────────────  │
//	│  PRESTADOR: Dirección / Tel / Email                          │
//	│  TOMADOR: Nombre + CPF/CNPJ + contacto                       │
//	│  ─────────────────────────────────────────────────────────  │
//	│  SERVICIO: Descripción + Valor                               │
//	│  ─────────────────────────────────────────────────────────  │
//	│  ESTADO: estado local + estado del emisor                    │
//	│  FOOTER: leyenda legal del RPS                               │
//	└─────────────────────────────────────────────────────────────┘
package pdf

import (
	"context"
	"fmt"

	maroto "github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"

	"github.com/jhoicas/Fiscal-api/internal/application/invoicing"
	"github.com/jhoicas/Fiscal-api/internal/domain/entity"
)

// ── Paleta de colores ─────────────────────────────────────────────────────────

var (
	colorPrimary = &props.Color{Red: 0, Green: 70, Blue: 127}
	colorGray    = &props.Color{Red: 100, Green: 100, Blue: 100}
)

// ── Generator ─────────────────────────────────────────────────────────────────

var _ invoicing.ReceiptPDFGenerator = (*MarotoReceiptGenerator)(nil)

// MarotoReceiptGenerator implementa invoicing.ReceiptPDFGenerator usando Maroto v2.
type MarotoReceiptGenerator struct{}

// NewMarotoReceiptGenerator construye el generador.
func NewMarotoReceiptGenerator() *MarotoReceiptGenerator { return &MarotoReceiptGenerator{} }

// GenerateReceiptPDF genera el PDF del recibo provisorio y devuelve sus bytes.
func (g *MarotoReceiptGenerator) GenerateReceiptPDF(
	_ context.Context,
	inv *entity.Invoice,
	cfg *entity.IssuerConfig,
) ([]byte, error) {
	builder := config.NewBuilder().
		WithPageSize(pagesize.A4).
		WithLeftMargin(10).WithRightMargin(10).
		WithTopMargin(10).WithBottomMargin(10).
		WithDefaultFont(&props.Font{Family: "helvetica", Size: 9}).
		WithTitle("Recibo Provisorio de Servicios", true).
		WithAuthor(cfg.TradeName, true).
		Build()

	m := maroto.New(builder)

	m.AddRows(headerRow(inv, cfg))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.5}))
	m.AddRows(prestadorRow(cfg))
	m.AddRows(tomadorRow(inv))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))
	m.AddRows(servicioRow(inv))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))
	m.AddRows(estadoRow(inv))
	m.AddRows(line.NewRow(3))
	m.AddRows(line.NewRow(1, props.Line{Color: colorGray, Thickness: 0.3}))
	m.AddRows(footerRow())

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("pdf: generar documento: %w", err)
	}
	return doc.GetBytes(), nil
}

// ── Secciones ─────────────────────────────────────────────────────────────────

// headerRow: nombre fantasía + CNPJ (izq) y tripleta RPS + fecha (der).
func headerRow(inv *entity.Invoice, cfg *entity.IssuerConfig) core.Row {
	numRPS := fmt.Sprintf("RPS %s-%d (lote %d)", inv.RPSSerial, inv.RPSNumber, inv.RPSBatch)
	fecha := inv.CreatedAt.Format("02/01/2006")

	return row.New(18).Add(
		col.New(7).Add(
			text.New(cfg.TradeName, props.Text{
				Style: fontstyle.Bold, Size: 13, Color: colorPrimary, Top: 1,
			}),
			text.New("CNPJ: "+cfg.TaxID, props.Text{
				Size: 9, Top: 9, Color: colorGray,
			}),
		),
		col.New(5).Add(
			text.New("RECIBO PROVISORIO DE SERVICIOS", props.Text{
				Style: fontstyle.Bold, Size: 8, Align: align.Right,
				Color: colorPrimary, Top: 1,
			}),
			text.New(numRPS, props.Text{
				Style: fontstyle.Bold, Size: 12, Align: align.Right, Top: 7,
			}),
			text.New("Fecha: "+fecha, props.Text{
				Size: 8, Align: align.Right, Top: 14, Color: colorGray,
			}),
		),
	)
}

// prestadorRow: identidad fiscal del prestador del servicio.
func prestadorRow(cfg *entity.IssuerConfig) core.Row {
	direccion := fmt.Sprintf("%s %s, %s, %s - %s", cfg.Street, cfg.Number, cfg.District, cfg.City, cfg.State)
	return row.New(14).Add(
		col.New(12).Add(
			text.New("PRESTADOR DEL SERVICIO", props.Text{
				Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 1,
			}),
			text.New(cfg.LegalName, props.Text{
				Style: fontstyle.Bold, Size: 10, Top: 6,
			}),
			text.New(fmt.Sprintf("Dirección: %s   |   Tel: %s   |   Email: %s",
				direccion,
				nonEmpty(cfg.Phone, "—"),
				nonEmpty(cfg.Email, "—"),
			), props.Text{Size: 8, Top: 12, Color: colorGray}),
		),
	)
}

// tomadorRow: snapshot del tomador guardado en la nota.
func tomadorRow(inv *entity.Invoice) core.Row {
	return row.New(14).Add(
		col.New(12).Add(
			text.New("TOMADOR DEL SERVICIO", props.Text{
				Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 1,
			}),
			text.New(inv.CustomerName, props.Text{
				Style: fontstyle.Bold, Size: 10, Top: 6,
			}),
			text.New(fmt.Sprintf("CPF/CNPJ: %s   |   Email: %s",
				nonEmpty(inv.CustomerTaxID, "—"),
				nonEmpty(inv.CustomerEmail, "—"),
			), props.Text{Size: 8, Top: 12, Color: colorGray}),
		),
	)
}

// servicioRow: descripción del servicio y su valor.
func servicioRow(inv *entity.Invoice) core.Row {
	return row.New(16).Add(
		col.New(9).Add(
			text.New("DESCRIPCIÓN DEL SERVICIO", props.Text{
				Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 1,
			}),
			text.New(inv.Description, props.Text{Size: 9, Top: 7}),
		),
		col.New(3).Add(
			text.New("VALOR", props.Text{
				Style: fontstyle.Bold, Size: 8, Align: align.Right,
				Color: colorPrimary, Top: 1,
			}),
			text.New("R$ "+inv.Amount.StringFixed(2), props.Text{
				Style: fontstyle.Bold, Size: 12, Align: align.Right,
				Color: colorPrimary, Top: 7,
			}),
		),
	)
}

// estadoRow: estado local y estado del emisor, tal cual están en la fila.
func estadoRow(inv *entity.Invoice) core.Row {
	remoto := nonEmpty(inv.RemoteStatus, "sin respuesta del emisor")
	return row.New(10).Add(
		col.New(12).Add(
			text.New("ESTADO DE LA NOTA FISCAL", props.Text{
				Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 1,
			}),
			text.New(fmt.Sprintf("Local: %s   |   Emisor: %s", inv.Status, remoto),
				props.Text{Size: 8, Top: 6, Color: colorGray}),
		),
	)
}

// footerRow: leyenda legal del RPS.
func footerRow() core.Row {
	return row.New(10).Add(col.New(12).Add(
		text.New(
			"Este Recibo Provisorio de Servicios (RPS) será convertido en Nota Fiscal "+
				"de Servicios Electrónica (NFS-e) por la prefectura correspondiente. "+
				"Conserve este documento hasta recibir la nota definitiva.",
			props.Text{Size: 6.5, Color: colorGray, Top: 2},
		),
	))
}

func nonEmpty(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
