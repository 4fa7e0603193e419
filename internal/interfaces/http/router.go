package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/jhoicas/Fiscal-api/internal/application/invoicing"
)

// RouterDeps dependencias del router: casos de uso ya armados y el secreto JWT
// para el middleware de auth.
type RouterDeps struct {
	Reconciler *invoicing.Reconciler
	ConfigUC   *invoicing.ConfigUseCase
	ReceiptUC  *invoicing.ReceiptUseCase
	JWTSecret  string
}

// SetupRoutes registra todas las rutas de la API. Todo lo que muta o lee notas
// fiscales va detrás del JWT; /health queda abierto para los probes.
func SetupRoutes(app *fiber.App, deps RouterDeps) {
	invoiceHandler := NewInvoiceHandler(deps.Reconciler, deps.ReceiptUC)
	configHandler := NewIssuerConfigHandler(deps.ConfigUC)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api", AuthMiddleware(deps.JWTSecret), RequireRole("professor", "admin"))

	// ── Notas fiscales ──────────────────────────────────────────────────────
	invoices := api.Group("/invoices")
	invoices.Post("/issue", invoiceHandler.Issue)
	invoices.Get("/", invoiceHandler.List)
	invoices.Get("/:id", invoiceHandler.GetByID)
	invoices.Post("/:id/retry", invoiceHandler.Retry)
	invoices.Post("/:id/poll", invoiceHandler.Poll)
	invoices.Post("/:id/cancel", invoiceHandler.Cancel)
	invoices.Get("/:id/pdf", invoiceHandler.Artifact)
	invoices.Get("/:id/receipt", invoiceHandler.Receipt)

	// ── Configuración fiscal ────────────────────────────────────────────────
	config := api.Group("/issuer-config")
	config.Get("/", configHandler.Get)
	config.Put("/", configHandler.Upsert)
	config.Get("/diagnostics", configHandler.Diagnostics)
}
