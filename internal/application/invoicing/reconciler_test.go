package invoicing_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/Fiscal-api/internal/application/invoicing"
	"github.com/jhoicas/Fiscal-api/internal/domain"
	"github.com/jhoicas/Fiscal-api/internal/domain/entity"
	"github.com/jhoicas/Fiscal-api/internal/domain/repository"
	"github.com/jhoicas/Fiscal-api/internal/infrastructure/nfeio"
	"github.com/jhoicas/Fiscal-api/pkg/logger"
)

// ──────────────────────────────────────────────────────────────────────────────
// Fakes en memoria. El runner de transacciones serializa con un mutex global,
// que es exactamente la garantía que da el lock de fila en PostgreSQL.
// ──────────────────────────────────────────────────────────────────────────────

type fakeStore struct {
	mu       sync.Mutex
	configs  map[string]*entity.IssuerConfig
	invoices map[string]*entity.Invoice
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		configs:  make(map[string]*entity.IssuerConfig),
		invoices: make(map[string]*entity.Invoice),
	}
}

type fakeCfgRepo struct{ s *fakeStore }

func (r *fakeCfgRepo) GetBySeller(_ context.Context, sellerID string) (*entity.IssuerConfig, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cfg, ok := r.s.configs[sellerID]
	if !ok {
		return nil, nil
	}
	c := *cfg
	return &c, nil
}

func (r *fakeCfgRepo) GetBySellerForUpdate(ctx context.Context, sellerID string) (*entity.IssuerConfig, error) {
	return r.GetBySeller(ctx, sellerID)
}

func (r *fakeCfgRepo) Upsert(_ context.Context, cfg *entity.IssuerConfig) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c := *cfg
	r.s.configs[cfg.SellerID] = &c
	return nil
}

func (r *fakeCfgRepo) AllocateNumber(_ context.Context, sellerID string) (*entity.RPSAllocation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cfg, ok := r.s.configs[sellerID]
	if !ok {
		return nil, fmt.Errorf("vendedor %s sin configuración", sellerID)
	}
	alloc := &entity.RPSAllocation{Serial: cfg.RPSSerial, Number: cfg.RPSNextNumber, Batch: cfg.RPSBatch}
	cfg.RPSNextNumber++
	return alloc, nil
}

type fakeInvRepo struct{ s *fakeStore }

func (r *fakeInvRepo) Create(_ context.Context, inv *entity.Invoice) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if inv.ID == "" {
		inv.ID = uuid.NewString()
	}
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = time.Now()
	}
	c := *inv
	r.s.invoices[inv.ID] = &c
	return nil
}

func (r *fakeInvRepo) Update(_ context.Context, inv *entity.Invoice) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.invoices[inv.ID]; !ok {
		return fmt.Errorf("invoice %s no existe", inv.ID)
	}
	c := *inv
	r.s.invoices[inv.ID] = &c
	return nil
}

func (r *fakeInvRepo) GetByID(_ context.Context, id string) (*entity.Invoice, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	inv, ok := r.s.invoices[id]
	if !ok {
		return nil, nil
	}
	c := *inv
	return &c, nil
}

func (r *fakeInvRepo) GetActiveByEvent(_ context.Context, ref entity.EventRef) (*entity.Invoice, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, inv := range r.s.invoices {
		if inv.EventKind == ref.Kind && inv.EventID == ref.ID && inv.IsActive() {
			c := *inv
			return &c, nil
		}
	}
	return nil, nil
}

func (r *fakeInvRepo) ListByEvent(_ context.Context, ref entity.EventRef) ([]*entity.Invoice, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var list []*entity.Invoice
	for _, inv := range r.s.invoices {
		if inv.EventKind == ref.Kind && inv.EventID == ref.ID {
			c := *inv
			list = append(list, &c)
		}
	}
	return list, nil
}

func (r *fakeInvRepo) ListBySeller(_ context.Context, sellerID string, _, _ int) ([]*entity.Invoice, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var list []*entity.Invoice
	for _, inv := range r.s.invoices {
		if inv.SellerID == sellerID {
			c := *inv
			list = append(list, &c)
		}
	}
	return list, nil
}

// fakeTxRunner serializa la sección crítica completa con un mutex, igual que
// el lock de fila serializa las transacciones reales.
type fakeTxRunner struct {
	mu sync.Mutex
	s  *fakeStore
}

func (t *fakeTxRunner) RunInvoicing(ctx context.Context, fn func(
	cfgRepo repository.IssuerConfigRepository,
	invRepo repository.InvoiceRepository,
) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return fn(&fakeCfgRepo{s: t.s}, &fakeInvRepo{s: t.s})
}

type fakeEventRepo struct {
	events map[string]entity.BillableEvent
}

func (r *fakeEventRepo) GetByRef(_ context.Context, ref entity.EventRef) (entity.BillableEvent, error) {
	ev, ok := r.events[ref.Kind+"/"+ref.ID]
	if !ok {
		return nil, nil
	}
	return ev, nil
}

type fakeMuniRepo struct{}

func (fakeMuniRepo) CodeFor(context.Context, string, string) (string, error) { return "", nil }

// fakeIssuer implementa el puerto del emisor con funciones intercambiables y
// contadores de llamadas.
type fakeIssuer struct {
	mu          sync.Mutex
	submitFn    func(*nfeio.SubmitContext) (*nfeio.RemoteResult, error)
	statusFn    func(remoteID string) (*nfeio.RemoteResult, error)
	cancelFn    func(remoteID, reason string) (*nfeio.RemoteResult, error)
	artifactFn  func(remoteID string) (string, error)
	submitCalls int
	statusCalls int
	cancelCalls int
}

func (f *fakeIssuer) Submit(_ context.Context, sc *nfeio.SubmitContext) (*nfeio.RemoteResult, error) {
	f.mu.Lock()
	f.submitCalls++
	fn := f.submitFn
	f.mu.Unlock()
	return fn(sc)
}

func (f *fakeIssuer) CheckStatus(_ context.Context, _, remoteID string) (*nfeio.RemoteResult, error) {
	f.mu.Lock()
	f.statusCalls++
	fn := f.statusFn
	f.mu.Unlock()
	return fn(remoteID)
}

func (f *fakeIssuer) Cancel(_ context.Context, _, remoteID, reason string) (*nfeio.RemoteResult, error) {
	f.mu.Lock()
	f.cancelCalls++
	fn := f.cancelFn
	f.mu.Unlock()
	return fn(remoteID, reason)
}

func (f *fakeIssuer) ArtifactURL(_ context.Context, _, remoteID string) (string, error) {
	if f.artifactFn != nil {
		return f.artifactFn(remoteID)
	}
	return "", nil
}

func (f *fakeIssuer) CheckCompany(context.Context, string) (json.RawMessage, error) {
	return json.RawMessage(`{}`), nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Helpers de armado
// ──────────────────────────────────────────────────────────────────────────────

const sellerID = "11111111-1111-1111-1111-111111111111"

func completeConfig() *entity.IssuerConfig {
	return &entity.IssuerConfig{
		ID:            uuid.NewString(),
		SellerID:      sellerID,
		ExternalID:    "co_test",
		Enabled:       true,
		TaxID:         "11222333000181",
		LegalName:     "Academia Delta Ltda",
		TradeName:     "Academia Delta",
		TaxRegime:     entity.TaxRegimeSimplesNacional,
		Street:        "Rua das Flores",
		Number:        "100",
		District:      "Centro",
		City:          "São Paulo",
		State:         "SP",
		PostalCode:    "01000000",
		RPSSerial:     "1",
		RPSNextNumber: 1,
		RPSBatch:      1,
	}
}

func transactionEvent(id string) entity.PaymentTransaction {
	return entity.PaymentTransaction{
		ID:           id,
		Seller:       sellerID,
		Value:        decimal.NewFromFloat(150.50),
		CurrencyCode: "BRL",
		Student: entity.BuyerIdentity{
			Name:  "María Souza",
			Email: "maria@example.com",
			TaxID: "52998224725",
		},
		CourseTitle: "Guitarra",
	}
}

type harness struct {
	rec    *invoicing.Reconciler
	store  *fakeStore
	issuer *fakeIssuer
	events *fakeEventRepo
}

func newHarness(t *testing.T, opts invoicing.Options) *harness {
	t.Helper()
	store := newFakeStore()
	issuer := &fakeIssuer{
		submitFn: func(*nfeio.SubmitContext) (*nfeio.RemoteResult, error) {
			return remoteResult("si_1", "WaitingSend", "", ""), nil
		},
		statusFn: func(string) (*nfeio.RemoteResult, error) {
			return remoteResult("si_1", "WaitingSend", "", ""), nil
		},
	}
	events := &fakeEventRepo{events: make(map[string]entity.BillableEvent)}
	rec := invoicing.NewReconciler(
		&fakeTxRunner{s: store},
		&fakeCfgRepo{s: store},
		&fakeInvRepo{s: store},
		events,
		fakeMuniRepo{},
		issuer,
		opts,
		logger.New(logger.Config{Env: "development", Level: "error"}),
	)
	return &harness{rec: rec, store: store, issuer: issuer, events: events}
}

func (h *harness) addEvent(ev entity.BillableEvent) {
	ref := ev.Ref()
	h.events.events[ref.Kind+"/"+ref.ID] = ev
}

func (h *harness) cursor(t *testing.T) int64 {
	t.Helper()
	cfg, err := (&fakeCfgRepo{s: h.store}).GetBySeller(context.Background(), sellerID)
	require.NoError(t, err)
	require.NotNil(t, cfg)
	return cfg.RPSNextNumber
}

func (h *harness) invoiceCount() int {
	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	return len(h.store.invoices)
}

func remoteResult(id, flowStatus, pdfURL, flowMessage string) *nfeio.RemoteResult {
	return &nfeio.RemoteResult{
		ID:          id,
		FlowStatus:  flowStatus,
		FlowMessage: flowMessage,
		PDFURL:      pdfURL,
		Raw:         []byte(fmt.Sprintf(`{"id":%q,"flowStatus":%q}`, id, flowStatus)),
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Emisión
// ──────────────────────────────────────────────────────────────────────────────

// Escenario: cursor en 1, submit devuelve WaitingSend y el poll inmediato
// Authorized. La nota queda con número 1, el cursor en 2, estado approved y
// fecha de emisión estampada.
func TestIssue_WaitingSendLuegoAuthorized(t *testing.T) {
	h := newHarness(t, invoicing.Options{})
	require.NoError(t, (&fakeCfgRepo{s: h.store}).Upsert(context.Background(), completeConfig()))
	h.addEvent(transactionEvent("tx-42"))

	h.issuer.statusFn = func(string) (*nfeio.RemoteResult, error) {
		return remoteResult("si_1", "Authorized", "https://cdn/pdf", ""), nil
	}

	inv, err := h.rec.Issue(context.Background(), entity.EventRef{Kind: entity.EventTransaction, ID: "tx-42"})
	require.NoError(t, err)

	assert.EqualValues(t, 1, inv.RPSNumber)
	assert.Equal(t, "1", inv.RPSSerial)
	assert.EqualValues(t, 2, h.cursor(t))
	assert.Equal(t, entity.StatusApproved, inv.Status)
	assert.Equal(t, "Authorized", inv.RemoteStatus)
	assert.Equal(t, "si_1", inv.RemoteID)
	assert.Equal(t, "https://cdn/pdf", inv.PDFURL)
	assert.False(t, inv.EmittedAt.IsZero(), "EmittedAt se estampa en la primera entrada a approved")
}

// Escenario: el emisor devuelve HTTP 503 en el submit. La nota queda en error
// con el cuerpo literal y el cursor NO se retrocede: hueco, nunca duplicado.
func TestIssue_Submit503DejaErrorSinRollbackDelCursor(t *testing.T) {
	h := newHarness(t, invoicing.Options{})
	require.NoError(t, (&fakeCfgRepo{s: h.store}).Upsert(context.Background(), completeConfig()))
	h.addEvent(transactionEvent("tx-42"))

	h.issuer.submitFn = func(*nfeio.SubmitContext) (*nfeio.RemoteResult, error) {
		return nil, &nfeio.RequestError{StatusCode: http.StatusServiceUnavailable, Body: "servicio no disponible"}
	}

	inv, err := h.rec.Issue(context.Background(), entity.EventRef{Kind: entity.EventTransaction, ID: "tx-42"})
	require.NoError(t, err)

	assert.Equal(t, entity.StatusError, inv.Status)
	assert.Contains(t, inv.ErrorMessage, "servicio no disponible")
	assert.EqualValues(t, 2, h.cursor(t), "el cursor no se retrocede tras un fallo de envío")
}

// Dos emisiones para el mismo evento: la segunda se rechaza sin crear fila ni
// consumir numeración.
func TestIssue_SegundaEmisionRechazada(t *testing.T) {
	h := newHarness(t, invoicing.Options{})
	require.NoError(t, (&fakeCfgRepo{s: h.store}).Upsert(context.Background(), completeConfig()))
	h.addEvent(transactionEvent("tx-42"))

	ref := entity.EventRef{Kind: entity.EventTransaction, ID: "tx-42"}
	_, err := h.rec.Issue(context.Background(), ref)
	require.NoError(t, err)

	_, err = h.rec.Issue(context.Background(), ref)
	assert.ErrorIs(t, err, domain.ErrInvoiceAlreadyActive)
	assert.Equal(t, 1, h.invoiceCount())
	assert.EqualValues(t, 2, h.cursor(t), "la emisión rechazada no consume numeración")
}

func TestIssue_ConfigIncompletaRechazaAntesDeRed(t *testing.T) {
	h := newHarness(t, invoicing.Options{})
	cfg := completeConfig()
	cfg.Enabled = false
	require.NoError(t, (&fakeCfgRepo{s: h.store}).Upsert(context.Background(), cfg))
	h.addEvent(transactionEvent("tx-42"))

	_, err := h.rec.Issue(context.Background(), entity.EventRef{Kind: entity.EventTransaction, ID: "tx-42"})
	assert.ErrorIs(t, err, domain.ErrIssuerConfigIncomplete)
	assert.Equal(t, 0, h.issuer.submitCalls, "ninguna llamada de red con config incompleta")
	assert.EqualValues(t, 1, h.cursor(t))
	assert.Equal(t, 0, h.invoiceCount())
}

// Un vendedor autenticado no puede emitir contra el evento de otro vendedor:
// el rechazo ocurre antes de cualquier efecto. Sin fila nueva, sin consumo del
// cursor del dueño y sin llamada al emisor.
func TestIssueFor_EventoDeOtroVendedorSinEfectos(t *testing.T) {
	h := newHarness(t, invoicing.Options{})
	require.NoError(t, (&fakeCfgRepo{s: h.store}).Upsert(context.Background(), completeConfig()))
	h.addEvent(transactionEvent("tx-victima"))

	const intruso = "22222222-2222-2222-2222-222222222222"
	_, err := h.rec.IssueFor(context.Background(), intruso,
		entity.EventRef{Kind: entity.EventTransaction, ID: "tx-victima"})

	assert.ErrorIs(t, err, domain.ErrForbidden)
	assert.Equal(t, 0, h.invoiceCount(), "no se crea fila para el intruso")
	assert.Equal(t, 0, h.issuer.submitCalls, "nada viaja al emisor")
	assert.EqualValues(t, 1, h.cursor(t), "el cursor del dueño queda intacto")

	// El dueño legítimo emite sin fricción por el mismo camino.
	inv, err := h.rec.IssueFor(context.Background(), sellerID,
		entity.EventRef{Kind: entity.EventTransaction, ID: "tx-victima"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, inv.RPSNumber)
}

// Propiedad: N emisiones concurrentes del mismo vendedor asignan exactamente
// {1..N}, sin duplicados ni incrementos perdidos.
func TestIssue_AsignacionConcurrenteSinHuecosNiDuplicados(t *testing.T) {
	const n = 50
	h := newHarness(t, invoicing.Options{})
	require.NoError(t, (&fakeCfgRepo{s: h.store}).Upsert(context.Background(), completeConfig()))
	for i := 0; i < n; i++ {
		h.addEvent(transactionEvent(fmt.Sprintf("tx-%d", i)))
	}

	var wg sync.WaitGroup
	numbers := make([]int64, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			inv, err := h.rec.Issue(context.Background(),
				entity.EventRef{Kind: entity.EventTransaction, ID: fmt.Sprintf("tx-%d", i)})
			if assert.NoError(t, err) {
				numbers[i] = inv.RPSNumber
			}
		}(i)
	}
	wg.Wait()

	sort.Slice(numbers, func(i, j int) bool { return numbers[i] < numbers[j] })
	for i := 0; i < n; i++ {
		assert.EqualValues(t, i+1, numbers[i])
	}
	assert.EqualValues(t, n+1, h.cursor(t))
}

// ──────────────────────────────────────────────────────────────────────────────
// Poll
// ──────────────────────────────────────────────────────────────────────────────

func issueSubmitted(t *testing.T, h *harness, eventID string) *entity.Invoice {
	t.Helper()
	h.addEvent(transactionEvent(eventID))
	inv, err := h.rec.Issue(context.Background(), entity.EventRef{Kind: entity.EventTransaction, ID: eventID})
	require.NoError(t, err)
	require.Equal(t, entity.StatusSubmitted, inv.Status)
	return inv
}

// Dos polls con el mismo estado remoto dejan la nota idéntica.
func TestPoll_Idempotente(t *testing.T) {
	h := newHarness(t, invoicing.Options{})
	require.NoError(t, (&fakeCfgRepo{s: h.store}).Upsert(context.Background(), completeConfig()))
	inv := issueSubmitted(t, h, "tx-42")

	d1, err := h.rec.Poll(context.Background(), inv.ID)
	require.NoError(t, err)
	d2, err := h.rec.Poll(context.Background(), inv.ID)
	require.NoError(t, err)

	assert.Equal(t, d1.After, d2.After, "sin cambio remoto, sin cambio local")
	assert.Equal(t, entity.StatusSubmitted, d2.After.Status)
}

// Reentrar a approved en un poll posterior no pisa EmittedAt.
func TestPoll_EmittedAtSeEstampaUnaSolaVez(t *testing.T) {
	h := newHarness(t, invoicing.Options{})
	require.NoError(t, (&fakeCfgRepo{s: h.store}).Upsert(context.Background(), completeConfig()))
	inv := issueSubmitted(t, h, "tx-42")

	h.issuer.statusFn = func(string) (*nfeio.RemoteResult, error) {
		return remoteResult("si_1", "Authorized", "https://cdn/pdf", ""), nil
	}
	d1, err := h.rec.Poll(context.Background(), inv.ID)
	require.NoError(t, err)
	require.Equal(t, entity.StatusApproved, d1.After.Status)
	first := d1.After.EmittedAt
	require.False(t, first.IsZero())

	time.Sleep(5 * time.Millisecond)
	d2, err := h.rec.Poll(context.Background(), inv.ID)
	require.NoError(t, err)
	assert.Equal(t, first, d2.After.EmittedAt, "EmittedAt no cambia en reentradas a approved")
}

// 404 del emisor sobre una nota en vuelo es terminal.
func TestPoll_404EnSubmittedPasaAError(t *testing.T) {
	h := newHarness(t, invoicing.Options{})
	require.NoError(t, (&fakeCfgRepo{s: h.store}).Upsert(context.Background(), completeConfig()))
	inv := issueSubmitted(t, h, "tx-42")

	h.issuer.statusFn = func(string) (*nfeio.RemoteResult, error) {
		return nil, &nfeio.RequestError{StatusCode: http.StatusNotFound, Body: "not found"}
	}
	diff, err := h.rec.Poll(context.Background(), inv.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusError, diff.After.Status)
	assert.NotEmpty(t, diff.After.ErrorMessage)
}

// flowStatus fuera de la tabla: sin cambio hasta superar el umbral de
// staleness, error después.
func TestPoll_CodigoDesconocidoYStaleness(t *testing.T) {
	h := newHarness(t, invoicing.Options{StalenessThreshold: time.Hour})
	require.NoError(t, (&fakeCfgRepo{s: h.store}).Upsert(context.Background(), completeConfig()))
	inv := issueSubmitted(t, h, "tx-42")

	h.issuer.statusFn = func(string) (*nfeio.RemoteResult, error) {
		return remoteResult("si_1", "IssuerMaintenanceWindow", "", ""), nil
	}

	// Nota fresca: el código desconocido no muta el estado.
	diff, err := h.rec.Poll(context.Background(), inv.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusSubmitted, diff.After.Status)

	// Retroceder la fecha de creación más allá del umbral.
	h.store.mu.Lock()
	h.store.invoices[inv.ID].CreatedAt = time.Now().Add(-2 * time.Hour)
	h.store.mu.Unlock()

	diff, err = h.rec.Poll(context.Background(), inv.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusError, diff.After.Status)
	assert.Contains(t, diff.After.ErrorMessage, "IssuerMaintenanceWindow")
}

func TestPoll_SinRemoteID(t *testing.T) {
	h := newHarness(t, invoicing.Options{})
	require.NoError(t, (&fakeCfgRepo{s: h.store}).Upsert(context.Background(), completeConfig()))
	h.addEvent(transactionEvent("tx-42"))
	h.issuer.submitFn = func(*nfeio.SubmitContext) (*nfeio.RemoteResult, error) {
		return nil, fmt.Errorf("conexión rechazada")
	}
	inv, err := h.rec.Issue(context.Background(), entity.EventRef{Kind: entity.EventTransaction, ID: "tx-42"})
	require.NoError(t, err)
	require.Equal(t, entity.StatusError, inv.Status)

	_, err = h.rec.Poll(context.Background(), inv.ID)
	assert.ErrorIs(t, err, domain.ErrNoRemoteID)
}

// ──────────────────────────────────────────────────────────────────────────────
// Cancel
// ──────────────────────────────────────────────────────────────────────────────

// Solo una nota aprobada puede cancelarse; el resto se rechaza sin red.
func TestCancel_MatrizDeElegibilidad(t *testing.T) {
	h := newHarness(t, invoicing.Options{})
	require.NoError(t, (&fakeCfgRepo{s: h.store}).Upsert(context.Background(), completeConfig()))

	for _, status := range []string{
		entity.StatusPending, entity.StatusSubmitted, entity.StatusError, entity.StatusCancelled,
	} {
		inv := &entity.Invoice{
			SellerID: sellerID, EventKind: entity.EventManual,
			Amount: decimal.NewFromInt(10), Status: status, RemoteID: "si_x",
		}
		require.NoError(t, (&fakeInvRepo{s: h.store}).Create(context.Background(), inv))

		_, err := h.rec.Cancel(context.Background(), inv.ID, "motivo")
		assert.ErrorIs(t, err, domain.ErrInvalidTransition, status)
	}
	assert.Equal(t, 0, h.issuer.cancelCalls, "los rechazos locales no llaman al emisor")
}

func TestCancel_AprobadaPasaACancelada(t *testing.T) {
	h := newHarness(t, invoicing.Options{})
	require.NoError(t, (&fakeCfgRepo{s: h.store}).Upsert(context.Background(), completeConfig()))
	inv := issueSubmitted(t, h, "tx-42")

	h.issuer.statusFn = func(string) (*nfeio.RemoteResult, error) {
		return remoteResult("si_1", "Authorized", "", ""), nil
	}
	_, err := h.rec.Poll(context.Background(), inv.ID)
	require.NoError(t, err)

	h.issuer.cancelFn = func(_, reason string) (*nfeio.RemoteResult, error) {
		assert.Equal(t, "pedido del cliente", reason)
		return remoteResult("si_1", "Cancelled", "", ""), nil
	}
	out, err := h.rec.Cancel(context.Background(), inv.ID, "pedido del cliente")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusCancelled, out.Status)
	assert.Equal(t, 1, h.issuer.cancelCalls)
}

// ──────────────────────────────────────────────────────────────────────────────
// Retry
// ──────────────────────────────────────────────────────────────────────────────

// Retry sobre una nota en error crea una segunda fila para el mismo evento; la
// primera queda intacta y un issue() directo se rechaza porque la segunda
// está activa.
func TestRetry_CreaNotaNuevaYBloqueaIssueDirecto(t *testing.T) {
	h := newHarness(t, invoicing.Options{})
	require.NoError(t, (&fakeCfgRepo{s: h.store}).Upsert(context.Background(), completeConfig()))
	h.addEvent(transactionEvent("tx-42"))

	h.issuer.submitFn = func(*nfeio.SubmitContext) (*nfeio.RemoteResult, error) {
		return nil, &nfeio.RequestError{StatusCode: 503, Body: "caído"}
	}
	first, err := h.rec.Issue(context.Background(), entity.EventRef{Kind: entity.EventTransaction, ID: "tx-42"})
	require.NoError(t, err)
	require.Equal(t, entity.StatusError, first.Status)

	h.issuer.submitFn = func(*nfeio.SubmitContext) (*nfeio.RemoteResult, error) {
		return remoteResult("si_2", "WaitingSend", "", ""), nil
	}
	second, err := h.rec.Retry(context.Background(), first.ID)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, first.EventID, second.EventID)
	assert.Equal(t, entity.StatusSubmitted, second.Status)

	// La primera fila no se toca.
	untouched, err := h.rec.GetInvoice(context.Background(), first.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusError, untouched.Status)
	assert.EqualValues(t, first.RPSNumber, untouched.RPSNumber)

	// issue() directo sobre el mismo evento: rechazado, la segunda está activa.
	_, err = h.rec.Issue(context.Background(), entity.EventRef{Kind: entity.EventTransaction, ID: "tx-42"})
	assert.ErrorIs(t, err, domain.ErrInvoiceAlreadyActive)
}

func TestRetry_SoloDesdeError(t *testing.T) {
	h := newHarness(t, invoicing.Options{})
	require.NoError(t, (&fakeCfgRepo{s: h.store}).Upsert(context.Background(), completeConfig()))
	inv := issueSubmitted(t, h, "tx-42")

	_, err := h.rec.Retry(context.Background(), inv.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

// ──────────────────────────────────────────────────────────────────────────────
// FetchArtifact / emisiones manuales
// ──────────────────────────────────────────────────────────────────────────────

func TestFetchArtifact(t *testing.T) {
	h := newHarness(t, invoicing.Options{})
	require.NoError(t, (&fakeCfgRepo{s: h.store}).Upsert(context.Background(), completeConfig()))
	inv := issueSubmitted(t, h, "tx-42")

	// No aprobada: vacío, aunque haya URL en el sobre remoto.
	url, err := h.rec.FetchArtifact(context.Background(), inv.ID)
	require.NoError(t, err)
	assert.Empty(t, url)

	// Aprobada con link en el sobre de estado: un poll la resuelve.
	h.issuer.statusFn = func(string) (*nfeio.RemoteResult, error) {
		return remoteResult("si_1", "Authorized", "https://cdn/pdf", ""), nil
	}
	url, err = h.rec.FetchArtifact(context.Background(), inv.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn/pdf", url)

	// Segunda llamada: sale del cache sin tocar la red.
	before := h.issuer.statusCalls
	url, err = h.rec.FetchArtifact(context.Background(), inv.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn/pdf", url)
	assert.Equal(t, before, h.issuer.statusCalls)
}

func TestIssueManual_EmiteDesdeSnapshotLibre(t *testing.T) {
	h := newHarness(t, invoicing.Options{})
	require.NoError(t, (&fakeCfgRepo{s: h.store}).Upsert(context.Background(), completeConfig()))

	inv, err := h.rec.IssueManual(context.Background(), entity.ManualSale{
		Seller: sellerID,
		Value:  decimal.NewFromInt(200),
		Purchaser: entity.BuyerIdentity{
			Name:  "Juan Pérez",
			TaxID: "52998224725",
		},
		Note: "Clase particular",
	})
	require.NoError(t, err)
	assert.Equal(t, entity.EventManual, inv.EventKind)
	assert.Empty(t, inv.EventID)
	assert.Equal(t, entity.StatusSubmitted, inv.Status)
	assert.EqualValues(t, 1, inv.RPSNumber)

	// Las manuales no bloquean entre sí: otra manual asigna el siguiente número.
	second, err := h.rec.IssueManual(context.Background(), entity.ManualSale{
		Seller:    sellerID,
		Value:     decimal.NewFromInt(300),
		Purchaser: entity.BuyerIdentity{Name: "Ana Lima"},
	})
	require.NoError(t, err)
	assert.EqualValues(t, 2, second.RPSNumber)
}
