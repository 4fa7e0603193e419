package nfeio_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/Fiscal-api/internal/domain/entity"
	"github.com/jhoicas/Fiscal-api/internal/infrastructure/nfeio"
)

// ──────────────────────────────────────────────────────────────────────────────
// Helpers de test
// ──────────────────────────────────────────────────────────────────────────────

const (
	testAPIKey     = "test-api-key"
	testExternalID = "co_0123456789"
	testRemoteID   = "si_abcdef"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *nfeio.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return nfeio.NewClient(nfeio.Config{
		APIKey:      testAPIKey,
		BaseURL:     srv.URL,
		Environment: "Development",
	})
}

func buildSubmitContext() *nfeio.SubmitContext {
	return &nfeio.SubmitContext{
		Config: &entity.IssuerConfig{
			SellerID:   "seller-1",
			ExternalID: testExternalID,
			TradeName:  "Academia Delta",
		},
		Invoice: &entity.Invoice{
			ID:          "inv-1",
			EventKind:   entity.EventTransaction,
			EventID:     "tx-42",
			Amount:      decimal.NewFromFloat(150.50),
			Description: "Aula de Guitarra",
			RPSSerial:   "1",
			RPSNumber:   7,
			RPSBatch:    1,
		},
		Buyer: entity.BuyerIdentity{
			Name:  "María Souza",
			Email: "maria@example.com",
			TaxID: "529.982.247-25",
			Address: entity.Address{
				City:  "São Paulo",
				State: "SP",
			},
		},
		CityCode:        "3550308",
		CityServiceCode: "0107",
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Submit
// ──────────────────────────────────────────────────────────────────────────────

func TestSubmit_PayloadYRespuesta(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]any

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &gotBody))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"si_abcdef","flowStatus":"WaitingSend","pdf":{"url":"https://cdn/pdf"}}`))
	})

	res, err := client.Submit(context.Background(), buildSubmitContext())
	require.NoError(t, err)

	assert.Equal(t, "/companies/"+testExternalID+"/serviceinvoices", gotPath)
	assert.Equal(t, "Basic "+testAPIKey, gotAuth)

	// Tomador: tipo inferido por largo del documento, documento como entero
	borrower := gotBody["borrower"].(map[string]any)
	assert.Equal(t, "NaturalPerson", borrower["type"])
	assert.EqualValues(t, 52998224725, borrower["federalTaxNumber"])
	city := borrower["address"].(map[string]any)["city"].(map[string]any)
	assert.Equal(t, "3550308", city["code"])
	assert.Equal(t, "São Paulo", city["name"])

	// Tripleta RPS y referencia de idempotencia
	assert.EqualValues(t, 7, gotBody["rpsNumber"])
	assert.Equal(t, "1", gotBody["rpsSerialNumber"])
	assert.Equal(t, "TRANSACTION_tx-42", gotBody["reference"])
	assert.Equal(t, "Development", gotBody["environment"])

	assert.Equal(t, testRemoteID, res.ID)
	assert.Equal(t, "WaitingSend", res.FlowStatus)
	assert.Equal(t, "https://cdn/pdf", res.PDFURL)
	assert.NotEmpty(t, res.Raw, "la respuesta cruda se conserva para auditoría")
}

func TestSubmit_TomadorPersonaJuridica(t *testing.T) {
	var gotBody map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		_, _ = w.Write([]byte(`{"id":"si_1","flowStatus":"WaitingSend"}`))
	})

	sc := buildSubmitContext()
	sc.Buyer.TaxID = "11.222.333/0001-81" // CNPJ, 14 dígitos

	_, err := client.Submit(context.Background(), sc)
	require.NoError(t, err)
	borrower := gotBody["borrower"].(map[string]any)
	assert.Equal(t, "LegalEntity", borrower["type"])
}

// Una respuesta no-2xx se devuelve como *RequestError con el cuerpo literal:
// el driver lo registra tal cual en la nota.
func TestSubmit_HTTP503EsRequestError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`servicio no disponible`))
	})

	res, err := client.Submit(context.Background(), buildSubmitContext())
	assert.Nil(t, res)
	var reqErr *nfeio.RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, http.StatusServiceUnavailable, reqErr.StatusCode)
	assert.Contains(t, reqErr.Body, "servicio no disponible")
}

// Un 2xx con cuerpo no parseable es un fallo de parseo, no un resultado.
func TestSubmit_CuerpoNoJSONEsError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>gateway</html>`))
	})

	res, err := client.Submit(context.Background(), buildSubmitContext())
	assert.Nil(t, res)
	assert.Error(t, err)
}

// ──────────────────────────────────────────────────────────────────────────────
// CheckStatus / Cancel / ArtifactURL
// ──────────────────────────────────────────────────────────────────────────────

func TestCheckStatus_RutaYResultado(t *testing.T) {
	var gotPath string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(`{"id":"si_abcdef","flowStatus":"Authorized","xml":{"url":"https://cdn/xml"}}`))
	})

	res, err := client.CheckStatus(context.Background(), testExternalID, testRemoteID)
	require.NoError(t, err)
	assert.Equal(t, "/companies/"+testExternalID+"/serviceinvoices/"+testRemoteID+"/status", gotPath)
	assert.Equal(t, "Authorized", res.FlowStatus)
	assert.Equal(t, "https://cdn/xml", res.XMLURL)
}

func TestCheckStatus_404EsNotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := client.CheckStatus(context.Background(), testExternalID, testRemoteID)
	require.Error(t, err)
	assert.True(t, nfeio.IsNotFound(err))
}

func TestCheckStatus_SinRemoteIDRechazaLocal(t *testing.T) {
	called := false
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	_, err := client.CheckStatus(context.Background(), testExternalID, "")
	assert.Error(t, err)
	assert.False(t, called, "sin id remoto no debe haber llamada de red")
}

func TestCancel_MotivoPorDefectoYTruncado(t *testing.T) {
	var gotReason string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		gotReason = body["reason"]
		_, _ = w.Write([]byte(`{"id":"si_abcdef","flowStatus":"Cancelled"}`))
	})

	res, err := client.Cancel(context.Background(), testExternalID, testRemoteID, "")
	require.NoError(t, err)
	assert.NotEmpty(t, gotReason, "motivo por defecto cuando viene vacío")
	assert.Equal(t, "Cancelled", res.FlowStatus)

	long := make([]byte, 300)
	for i := range long {
		long[i] = 'x'
	}
	_, err = client.Cancel(context.Background(), testExternalID, testRemoteID, string(long))
	require.NoError(t, err)
	assert.Len(t, gotReason, 255, "el motivo se trunca a 255")
}

func TestArtifactURL(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/companies/"+testExternalID+"/serviceinvoices/"+testRemoteID+"/pdf", r.URL.Path)
		_, _ = w.Write([]byte(`{"url":"https://cdn/pdf-final"}`))
	})

	url, err := client.ArtifactURL(context.Background(), testExternalID, testRemoteID)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn/pdf-final", url)
}

// ──────────────────────────────────────────────────────────────────────────────
// Tabla de mapeo flowStatus → estado local
// ──────────────────────────────────────────────────────────────────────────────

func TestMapFlowStatus_TablaFija(t *testing.T) {
	cases := map[string]string{
		"Authorized":             entity.StatusApproved,
		"Cancelled":              entity.StatusCancelled,
		"Error":                  entity.StatusError,
		"WaitingCalculateTaxes":  entity.StatusSubmitted,
		"WaitingDefineRpsNumber": entity.StatusSubmitted,
		"WaitingSend":            entity.StatusSubmitted,
		"WaitingSendCancel":      entity.StatusSubmitted,
		"WaitingReturn":          entity.StatusSubmitted,
		"Processing":             entity.StatusSubmitted,
	}
	for flow, want := range cases {
		got, ok := nfeio.MapFlowStatus(flow)
		assert.True(t, ok, flow)
		assert.Equal(t, want, got, flow)
	}

	// Códigos fuera de la tabla: el llamador no debe mutar el estado local.
	_, ok := nfeio.MapFlowStatus("IssuerMaintenanceWindow")
	assert.False(t, ok)
}
