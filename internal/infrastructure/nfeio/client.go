// Package nfeio implementa el cliente HTTP/JSON contra el emisor de notas
// fiscales de servicio (API NFE.io). El cliente es sin estado: traduce una
// nota + configuración del vendedor al formato de cable del emisor y devuelve
// resultados normalizados; las transiciones de estado las aplica el driver.
package nfeio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jhoicas/Fiscal-api/internal/domain/entity"
	"github.com/jhoicas/Fiscal-api/pkg/fiscal"
)

// Timeouts por defecto. La emisión y la cancelación pueden tardar varios
// segundos en el emisor; las consultas son livianas.
const (
	defaultSubmitTimeout = 30 * time.Second
	defaultQueryTimeout  = 10 * time.Second

	maxResponseBytes = 1 << 20 // 1 MB

	defaultCancelReason = "Cancelamento a pedido do cliente"
)

// Config parámetros de construcción del cliente. El tag de ambiente es un
// parámetro explícito de construcción, nunca estado global del proceso.
type Config struct {
	APIKey      string
	BaseURL     string // ej: https://api.nfe.io/v1
	Environment string // "Development" | "Production"; viaja en cada emisión

	SubmitTimeout time.Duration // 0 = 30s
	QueryTimeout  time.Duration // 0 = 10s
}

// Client cliente del emisor. Las cuatro operaciones comparten el mismo helper
// de transporte/autenticación (do).
type Client struct {
	httpClient    *http.Client
	baseURL       string
	apiKey        string
	environment   string
	submitTimeout time.Duration
	queryTimeout  time.Duration
}

// NewClient construye el cliente. Los timeouts se aplican por operación vía
// context; no hay reintentos internos: el único camino de reintento es la
// operación retry del driver, que crea una nota nueva.
func NewClient(cfg Config) *Client {
	st := cfg.SubmitTimeout
	if st <= 0 {
		st = defaultSubmitTimeout
	}
	qt := cfg.QueryTimeout
	if qt <= 0 {
		qt = defaultQueryTimeout
	}
	return &Client{
		httpClient:    &http.Client{},
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:        cfg.APIKey,
		environment:   cfg.Environment,
		submitTimeout: st,
		queryTimeout:  qt,
	}
}

// SubmitContext datos necesarios para armar el payload de emisión.
type SubmitContext struct {
	Config          *entity.IssuerConfig
	Invoice         *entity.Invoice
	Buyer           entity.BuyerIdentity
	CityCode        string // código IBGE ya resuelto del municipio del tomador
	CityServiceCode string // código municipal del servicio
}

// Submit emite la nota en el emisor.
// POST /companies/{externalID}/serviceinvoices
func (c *Client) Submit(ctx context.Context, sc *SubmitContext) (*RemoteResult, error) {
	if sc == nil || sc.Config == nil || sc.Invoice == nil {
		return nil, fmt.Errorf("nfeio: contexto de emisión incompleto")
	}
	payload := buildSubmitPayload(sc, c.environment)
	path := fmt.Sprintf("/companies/%s/serviceinvoices", sc.Config.ExternalID)
	raw, err := c.do(ctx, http.MethodPost, path, payload, c.submitTimeout)
	if err != nil {
		return nil, err
	}
	return parseEnvelope(raw)
}

// CheckStatus consulta el estado de una nota ya registrada en el emisor.
// GET /companies/{externalID}/serviceinvoices/{remoteID}/status
func (c *Client) CheckStatus(ctx context.Context, companyExternalID, remoteID string) (*RemoteResult, error) {
	if remoteID == "" {
		return nil, fmt.Errorf("nfeio: remoteID vacío")
	}
	path := fmt.Sprintf("/companies/%s/serviceinvoices/%s/status", companyExternalID, remoteID)
	raw, err := c.do(ctx, http.MethodGet, path, nil, c.queryTimeout)
	if err != nil {
		return nil, err
	}
	return parseEnvelope(raw)
}

// Cancel cancela una nota autorizada.
// POST /companies/{externalID}/serviceinvoices/{remoteID}/cancel
func (c *Client) Cancel(ctx context.Context, companyExternalID, remoteID, reason string) (*RemoteResult, error) {
	if remoteID == "" {
		return nil, fmt.Errorf("nfeio: remoteID vacío")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = defaultCancelReason
	}
	if len(reason) > 255 {
		reason = reason[:255]
	}
	path := fmt.Sprintf("/companies/%s/serviceinvoices/%s/cancel", companyExternalID, remoteID)
	raw, err := c.do(ctx, http.MethodPost, path, cancelPayload{Reason: reason}, c.submitTimeout)
	if err != nil {
		return nil, err
	}
	return parseEnvelope(raw)
}

// ArtifactURL pide la URL del PDF de una nota autorizada.
// GET /companies/{externalID}/serviceinvoices/{remoteID}/pdf
func (c *Client) ArtifactURL(ctx context.Context, companyExternalID, remoteID string) (string, error) {
	if remoteID == "" {
		return "", fmt.Errorf("nfeio: remoteID vacío")
	}
	path := fmt.Sprintf("/companies/%s/serviceinvoices/%s/pdf", companyExternalID, remoteID)
	raw, err := c.do(ctx, http.MethodGet, path, nil, c.queryTimeout)
	if err != nil {
		return "", err
	}
	var out struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("nfeio: parsear respuesta de pdf: %w", err)
	}
	return out.URL, nil
}

// CheckCompany consulta los datos de la empresa en el emisor. Diagnóstico
// fuera de banda: no participa del flujo de reconciliación.
// GET /companies/{externalID}
func (c *Client) CheckCompany(ctx context.Context, companyExternalID string) (json.RawMessage, error) {
	path := fmt.Sprintf("/companies/%s", companyExternalID)
	raw, err := c.do(ctx, http.MethodGet, path, nil, c.queryTimeout)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(raw), nil
}

// ── transporte compartido ─────────────────────────────────────────────────────

// do ejecuta una llamada al emisor con timeout propio. Respuestas no-2xx se
// devuelven como *RequestError con el cuerpo literal; fallos de red o de
// contexto se devuelven tal cual.
func (c *Client) do(ctx context.Context, method, path string, body any, timeout time.Duration) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("nfeio: serializar payload: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("nfeio: crear request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Basic "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("nfeio: timeout o cancelación: %w", ctx.Err())
		}
		return nil, fmt.Errorf("nfeio: llamada HTTP fallida: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("nfeio: leer respuesta: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &RequestError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return raw, nil
}

// parseEnvelope desempaqueta el sobre de estado del emisor. Un 2xx con cuerpo
// no parseable es un fallo de parseo (terminal para el intento en el driver).
func parseEnvelope(raw []byte) (*RemoteResult, error) {
	var env statusEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("nfeio: respuesta no es JSON válido: %w", err)
	}
	res := &RemoteResult{
		ID:          env.ID,
		FlowStatus:  env.FlowStatus,
		FlowMessage: env.FlowMessage,
		Raw:         raw,
	}
	if env.PDF != nil {
		res.PDFURL = env.PDF.URL
	}
	if env.XML != nil {
		res.XMLURL = env.XML.URL
	}
	return res, nil
}

// ── construcción del payload ──────────────────────────────────────────────────

// buildSubmitPayload arma el cuerpo de emisión a partir de la nota, la
// configuración del vendedor y la identidad del tomador.
func buildSubmitPayload(sc *SubmitContext, environment string) *submitPayload {
	buyer := sc.Buyer
	taxDigits := fiscal.NormalizeTaxID(buyer.TaxID)
	// El emisor exige el documento como entero; un documento vacío o
	// malformado queda en cero y el emisor lo rechaza con mensaje propio.
	taxNumber, _ := strconv.ParseInt(taxDigits, 10, 64)

	return &submitPayload{
		Borrower: borrowerPayload{
			Type:             fiscal.BorrowerTypeFor(buyer.TaxID),
			Name:             buyer.Name,
			Email:            buyer.Email,
			FederalTaxNumber: taxNumber,
			Address: addressPayload{
				Country: "BRA",
				State:   nonEmpty(buyer.Address.State, "SP"),
				City: cityPayload{
					Code: sc.CityCode,
					Name: nonEmpty(buyer.Address.City, "São Paulo"),
				},
				District:              nonEmpty(buyer.Address.District, "Centro"),
				Street:                nonEmpty(buyer.Address.Street, "No informado"),
				Number:                nonEmpty(buyer.Address.Number, "S/N"),
				PostalCode:            nonEmpty(strings.ReplaceAll(buyer.Address.PostalCode, "-", ""), "00000000"),
				AdditionalInformation: buyer.Address.Complement,
			},
		},
		CityServiceCode:       sc.CityServiceCode,
		Description:           sc.Invoice.Description,
		ServicesAmount:        sc.Invoice.Amount.InexactFloat64(),
		Environment:           environment,
		Reference:             referenceFor(sc.Invoice),
		AdditionalInformation: "Servicio prestado por " + sc.Config.TradeName,
		RPSSerialNumber:       sc.Invoice.RPSSerial,
		RPSNumber:             sc.Invoice.RPSNumber,
	}
}

// referenceFor genera la referencia de idempotencia que viaja al emisor.
func referenceFor(inv *entity.Invoice) string {
	switch inv.EventKind {
	case entity.EventTransaction:
		return "TRANSACTION_" + inv.EventID
	case entity.EventSingleSale:
		return "SINGLESALE_" + inv.EventID
	default:
		return "MANUAL_" + inv.ID
	}
}

func nonEmpty(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}
