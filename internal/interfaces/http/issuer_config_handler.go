package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/jhoicas/Fiscal-api/internal/application/dto"
	"github.com/jhoicas/Fiscal-api/internal/application/invoicing"
)

// IssuerConfigHandler maneja la configuración fiscal del vendedor autenticado.
type IssuerConfigHandler struct {
	uc *invoicing.ConfigUseCase
}

// NewIssuerConfigHandler construye el handler.
func NewIssuerConfigHandler(uc *invoicing.ConfigUseCase) *IssuerConfigHandler {
	return &IssuerConfigHandler{uc: uc}
}

// Get devuelve la configuración fiscal del vendedor (incluye el cursor en
// modo solo lectura).
// GET /api/issuer-config
func (h *IssuerConfigHandler) Get(c *fiber.Ctx) error {
	sellerID := GetUserID(c)
	if sellerID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	cfg, err := h.uc.Get(c.Context(), sellerID)
	if err != nil {
		return domainError(c, err)
	}
	return c.JSON(dto.FromIssuerConfig(cfg))
}

// Upsert crea o actualiza la configuración fiscal. El cursor de numeración
// nunca viaja en el request: la actualización lo preserva tal cual.
// PUT /api/issuer-config
func (h *IssuerConfigHandler) Upsert(c *fiber.Ctx) error {
	sellerID := GetUserID(c)
	if sellerID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	var in dto.UpsertIssuerConfigRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	cfg, err := h.uc.Upsert(c.Context(), sellerID, in.ToEntity())
	if err != nil {
		return domainError(c, err)
	}
	return c.JSON(dto.FromIssuerConfig(cfg))
}

// Diagnostics consulta el registro de la compañía en el emisor y devuelve el
// payload crudo, para depurar configuraciones que no emiten.
// GET /api/issuer-config/diagnostics
func (h *IssuerConfigHandler) Diagnostics(c *fiber.Ctx) error {
	sellerID := GetUserID(c)
	if sellerID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	raw, err := h.uc.Diagnostics(c.Context(), sellerID)
	if err != nil {
		return domainError(c, err)
	}
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Send(raw)
}
