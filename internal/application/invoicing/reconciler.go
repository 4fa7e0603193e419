package invoicing

import (
	"context"
	"fmt"
	"time"

	"github.com/jhoicas/Fiscal-api/internal/domain"
	"github.com/jhoicas/Fiscal-api/internal/domain/entity"
	"github.com/jhoicas/Fiscal-api/internal/domain/repository"
	"github.com/jhoicas/Fiscal-api/internal/infrastructure/nfeio"
	"github.com/jhoicas/Fiscal-api/pkg/logger"
)

// Options parámetros del driver de reconciliación.
type Options struct {
	// StalenessThreshold cuánto puede quedar una nota en submitted con
	// flowStatus desconocido antes de declararla en error (el emisor no
	// garantiza callback). Cero usa una hora.
	StalenessThreshold time.Duration

	// DefaultCityCode código IBGE de respaldo cuando el municipio del tomador
	// no está en el catálogo.
	DefaultCityCode string

	// CityServiceCode código municipal del servicio prestado.
	CityServiceCode string
}

// Reconciler orquesta el ciclo de vida de una nota fiscal:
//
//	asignar numeración → emitir → poll inmediato → {retry | poll | cancel} manuales
//
// Sin scheduler de fondo: cada operación la dispara un llamador externo y corre
// hasta el final, incluida la llamada de red, antes de devolver. El único
// camino de reintento es Retry, que crea una nota NUEVA.
type Reconciler struct {
	txRunner  TxRunner
	cfgRepo   repository.IssuerConfigRepository
	invRepo   repository.InvoiceRepository
	eventRepo repository.BillableEventRepository
	muniRepo  repository.MunicipalityRepository
	client    IssuerClient
	opts      Options
	log       *logger.Logger
}

// NewReconciler construye el driver con todas sus dependencias.
func NewReconciler(
	txRunner TxRunner,
	cfgRepo repository.IssuerConfigRepository,
	invRepo repository.InvoiceRepository,
	eventRepo repository.BillableEventRepository,
	muniRepo repository.MunicipalityRepository,
	client IssuerClient,
	opts Options,
	log *logger.Logger,
) *Reconciler {
	if opts.StalenessThreshold <= 0 {
		opts.StalenessThreshold = time.Hour
	}
	return &Reconciler{
		txRunner:  txRunner,
		cfgRepo:   cfgRepo,
		invRepo:   invRepo,
		eventRepo: eventRepo,
		muniRepo:  muniRepo,
		client:    client,
		opts:      opts,
		log:       log.WithComponent("reconciler"),
	}
}

// PollDiff es el antes/después de un poll, para mostrar al operador.
type PollDiff struct {
	Before InvoiceView
	After  InvoiceView
}

// InvoiceView proyección de los campos visibles de una nota.
type InvoiceView struct {
	Status       string
	RemoteStatus string
	PDFURL       string
	XMLURL       string
	ErrorMessage string
	EmittedAt    time.Time
}

func viewOf(inv *entity.Invoice) InvoiceView {
	return InvoiceView{
		Status:       inv.Status,
		RemoteStatus: inv.RemoteStatus,
		PDFURL:       inv.PDFURL,
		XMLURL:       inv.XMLURL,
		ErrorMessage: inv.ErrorMessage,
		EmittedAt:    inv.EmittedAt,
	}
}

// ── Emisión ───────────────────────────────────────────────────────────────────

// Issue emite una nota para un evento facturable upstream (transacción o venta
// avulsa). Rechaza si ya existe una nota activa para el evento o si la
// configuración fiscal del vendedor está incompleta, antes de cualquier
// llamada de red.
func (r *Reconciler) Issue(ctx context.Context, ref entity.EventRef) (*entity.Invoice, error) {
	event, err := r.loadEvent(ctx, ref)
	if err != nil {
		return nil, err
	}
	return r.issueEvent(ctx, event)
}

// IssueFor emite en nombre de un vendedor autenticado. Si el evento pertenece
// a otro vendedor se rechaza con ErrForbidden ANTES de crear la fila, consumir
// numeración o tocar la red: una emisión ajena no debe dejar rastro.
func (r *Reconciler) IssueFor(ctx context.Context, sellerID string, ref entity.EventRef) (*entity.Invoice, error) {
	if sellerID == "" {
		return nil, domain.ErrInvalidInput
	}
	event, err := r.loadEvent(ctx, ref)
	if err != nil {
		return nil, err
	}
	if event.SellerID() != sellerID {
		return nil, domain.ErrForbidden
	}
	return r.issueEvent(ctx, event)
}

func (r *Reconciler) loadEvent(ctx context.Context, ref entity.EventRef) (entity.BillableEvent, error) {
	if ref.IsManual() {
		return nil, fmt.Errorf("%w: las emisiones manuales van por IssueManual", domain.ErrInvalidInput)
	}
	if ref.ID == "" {
		return nil, domain.ErrInvalidInput
	}
	event, err := r.eventRepo.GetByRef(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("cargar evento facturable: %w", err)
	}
	if event == nil {
		return nil, domain.ErrNotFound
	}
	return event, nil
}

// IssueManual emite una nota desde un snapshot libre de monto y cliente, sin
// referencia a filas upstream.
func (r *Reconciler) IssueManual(ctx context.Context, sale entity.ManualSale) (*entity.Invoice, error) {
	if sale.Seller == "" || !sale.Value.IsPositive() || sale.Purchaser.Name == "" {
		return nil, domain.ErrInvalidInput
	}
	return r.issueEvent(ctx, sale)
}

// issueEvent es el núcleo de la emisión. La sección crítica (lock del cursor,
// chequeo de nota-activa, asignación, INSERT en pending) corre en UNA
// transacción; el envío al emisor corre después del commit: si el proceso
// muere en el medio, la numeración queda con un hueco, nunca duplicada.
func (r *Reconciler) issueEvent(ctx context.Context, event entity.BillableEvent) (*entity.Invoice, error) {
	sellerID := event.SellerID()
	ref := event.Ref()

	// Pre-chequeo barato fuera de la tx: configuración incompleta se rechaza
	// sin tocar el cursor ni la red.
	cfg, err := r.cfgRepo.GetBySeller(ctx, sellerID)
	if err != nil {
		return nil, fmt.Errorf("cargar configuración fiscal: %w", err)
	}
	if cfg == nil || !cfg.IsComplete() {
		return nil, domain.ErrIssuerConfigIncomplete
	}

	buyer := event.Buyer()
	inv := &entity.Invoice{
		SellerID:      sellerID,
		EventKind:     ref.Kind,
		EventID:       ref.ID,
		Amount:        event.Amount(),
		CustomerName:  buyer.Name,
		CustomerEmail: buyer.Email,
		CustomerTaxID: buyer.TaxID,
		Description:   event.Description(),
		Status:        entity.StatusDraft,
	}

	err = r.txRunner.RunInvoicing(ctx, func(
		cfgRepo repository.IssuerConfigRepository,
		invRepo repository.InvoiceRepository,
	) error {
		// El lock de fila serializa emisiones concurrentes del vendedor: el
		// chequeo de nota-activa y la asignación quedan bajo el mismo lock.
		locked, err := cfgRepo.GetBySellerForUpdate(ctx, sellerID)
		if err != nil {
			return fmt.Errorf("lock de configuración: %w", err)
		}
		if locked == nil || !locked.IsComplete() {
			return domain.ErrIssuerConfigIncomplete
		}
		cfg = locked

		if !ref.IsManual() {
			active, err := invRepo.GetActiveByEvent(ctx, ref)
			if err != nil {
				return fmt.Errorf("buscar nota activa: %w", err)
			}
			if active != nil {
				return domain.ErrInvoiceAlreadyActive
			}
		}

		alloc, err := cfgRepo.AllocateNumber(ctx, sellerID)
		if err != nil {
			return err
		}
		inv.RPSSerial = alloc.Serial
		inv.RPSNumber = alloc.Number
		inv.RPSBatch = alloc.Batch
		inv.Status = entity.StatusPending

		return invRepo.Create(ctx, inv)
	})
	if err != nil {
		return nil, err
	}

	r.log.Info().
		Str("invoice_id", inv.ID).
		Str("event_kind", ref.Kind).
		Str("event_id", ref.ID).
		Int64("rps_number", inv.RPSNumber).
		Msg("numeración asignada, enviando al emisor")

	r.submit(ctx, inv, cfg, buyer)
	return inv, nil
}

// submit envía la nota al emisor y aplica el resultado. Un fallo de transporte
// o un rechazo del emisor dejan la nota en error con el mensaje literal; el
// cursor de numeración NO se retrocede.
func (r *Reconciler) submit(ctx context.Context, inv *entity.Invoice, cfg *entity.IssuerConfig, buyer entity.BuyerIdentity) {
	now := time.Now()

	res, err := r.client.Submit(ctx, &nfeio.SubmitContext{
		Config:          cfg,
		Invoice:         inv,
		Buyer:           buyer,
		CityCode:        r.resolveCityCode(ctx, buyer),
		CityServiceCode: r.opts.CityServiceCode,
	})
	if err != nil {
		inv.MarkError(err.Error(), now)
		r.persist(ctx, inv, "persistir fallo de emisión")
		r.log.Warn().Str("invoice_id", inv.ID).Err(err).Msg("emisión fallida")
		return
	}

	inv.RemoteID = res.ID
	if terr := inv.Transition(entity.StatusSubmitted, now); terr != nil {
		inv.MarkError(terr.Error(), now)
		r.persist(ctx, inv, "persistir transición inválida")
		return
	}
	r.applyRemote(inv, res, now)
	r.persist(ctx, inv, "persistir resultado de emisión")

	r.log.Info().
		Str("invoice_id", inv.ID).
		Str("remote_id", inv.RemoteID).
		Str("flow_status", res.FlowStatus).
		Str("status", inv.Status).
		Msg("nota enviada al emisor")

	// Poll inmediato: el emisor suele resolver casi-síncrono; esto captura
	// resultados terminales sin esperar un trigger manual.
	if inv.Status == entity.StatusSubmitted && inv.RemoteID != "" {
		if _, err := r.Poll(ctx, inv.ID); err != nil {
			r.log.Warn().Str("invoice_id", inv.ID).Err(err).Msg("poll post-emisión fallido")
		} else if fresh, err := r.invRepo.GetByID(ctx, inv.ID); err == nil && fresh != nil {
			*inv = *fresh
		}
	}
}

// ── Operaciones manuales ──────────────────────────────────────────────────────

// Retry emite una nota NUEVA para el mismo evento de una nota en error. La
// fila original no se toca: error es terminal.
func (r *Reconciler) Retry(ctx context.Context, invoiceID string) (*entity.Invoice, error) {
	inv, err := r.invRepo.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, domain.ErrNotFound
	}
	if inv.Status != entity.StatusError {
		return nil, fmt.Errorf("%w: retry solo aplica a notas en error (estado %s)",
			domain.ErrInvalidTransition, inv.Status)
	}

	if inv.Ref().IsManual() {
		// Reconstruir el snapshot libre desde la fila fallida.
		return r.IssueManual(ctx, entity.ManualSale{
			Seller: inv.SellerID,
			Value:  inv.Amount,
			Purchaser: entity.BuyerIdentity{
				Name:  inv.CustomerName,
				Email: inv.CustomerEmail,
				TaxID: inv.CustomerTaxID,
			},
			Note: inv.Description,
		})
	}
	return r.Issue(ctx, inv.Ref())
}

// Poll consulta el estado remoto y aplica el mapeo fijo. Idempotente: si el
// emisor no cambió, los campos quedan idénticos salvo UpdatedAt. Devuelve el
// antes/después para mostrar.
func (r *Reconciler) Poll(ctx context.Context, invoiceID string) (*PollDiff, error) {
	inv, err := r.invRepo.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, domain.ErrNotFound
	}
	if inv.RemoteID == "" {
		return nil, domain.ErrNoRemoteID
	}
	cfg, err := r.cfgRepo.GetBySeller(ctx, inv.SellerID)
	if err != nil {
		return nil, fmt.Errorf("cargar configuración fiscal: %w", err)
	}
	if cfg == nil {
		return nil, domain.ErrIssuerConfigIncomplete
	}

	diff := &PollDiff{Before: viewOf(inv)}
	now := time.Now()

	res, err := r.client.CheckStatus(ctx, cfg.ExternalID, inv.RemoteID)
	if err != nil {
		// 404 sobre una nota en vuelo: el emisor no la conoce, terminal.
		if nfeio.IsNotFound(err) &&
			(inv.Status == entity.StatusPending || inv.Status == entity.StatusSubmitted) {
			inv.MarkError("nota no encontrada en el emisor: "+err.Error(), now)
			if uerr := r.invRepo.Update(ctx, inv); uerr != nil {
				return nil, uerr
			}
			diff.After = viewOf(inv)
			return diff, nil
		}
		// Timeout o fallo de red en un poll: sin cambio local.
		return nil, err
	}

	r.applyRemote(inv, res, now)
	if err := r.invRepo.Update(ctx, inv); err != nil {
		return nil, err
	}
	diff.After = viewOf(inv)

	r.log.Info().
		Str("invoice_id", inv.ID).
		Str("flow_status", res.FlowStatus).
		Str("status_before", diff.Before.Status).
		Str("status_after", diff.After.Status).
		Msg("poll aplicado")
	return diff, nil
}

// Cancel cancela una nota autorizada. Cualquier otro estado se rechaza en
// local, sin llamada de red y sin mutación.
func (r *Reconciler) Cancel(ctx context.Context, invoiceID, reason string) (*entity.Invoice, error) {
	inv, err := r.invRepo.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, domain.ErrNotFound
	}
	if inv.Status != entity.StatusApproved {
		return nil, fmt.Errorf("%w: solo una nota aprobada puede cancelarse (estado %s)",
			domain.ErrInvalidTransition, inv.Status)
	}
	if inv.RemoteID == "" {
		return nil, domain.ErrNoRemoteID
	}
	cfg, err := r.cfgRepo.GetBySeller(ctx, inv.SellerID)
	if err != nil {
		return nil, fmt.Errorf("cargar configuración fiscal: %w", err)
	}
	if cfg == nil {
		return nil, domain.ErrIssuerConfigIncomplete
	}

	res, err := r.client.Cancel(ctx, cfg.ExternalID, inv.RemoteID, reason)
	if err != nil {
		// La nota sigue aprobada; el fallo se devuelve sin mutar la fila.
		return nil, fmt.Errorf("cancelar en el emisor: %w", err)
	}

	now := time.Now()
	r.applyRemote(inv, res, now)
	if err := r.invRepo.Update(ctx, inv); err != nil {
		return nil, err
	}
	r.log.Info().
		Str("invoice_id", inv.ID).
		Str("flow_status", res.FlowStatus).
		Str("status", inv.Status).
		Msg("cancelación procesada")
	return inv, nil
}

// FetchArtifact devuelve la URL del PDF de una nota aprobada. Si no hay URL
// cacheada hace UN CheckStatus y relee; vacío salvo en approved.
func (r *Reconciler) FetchArtifact(ctx context.Context, invoiceID string) (string, error) {
	inv, err := r.invRepo.GetByID(ctx, invoiceID)
	if err != nil {
		return "", err
	}
	if inv == nil {
		return "", domain.ErrNotFound
	}
	if inv.Status == entity.StatusApproved && inv.PDFURL != "" {
		return inv.PDFURL, nil
	}
	if inv.RemoteID == "" {
		return "", nil
	}

	if _, err := r.Poll(ctx, invoiceID); err != nil {
		return "", err
	}
	fresh, err := r.invRepo.GetByID(ctx, invoiceID)
	if err != nil || fresh == nil {
		return "", err
	}
	if fresh.Status != entity.StatusApproved {
		return "", nil
	}
	if fresh.PDFURL != "" {
		return fresh.PDFURL, nil
	}
	// Aprobada pero el sobre de estado no trajo el link: pedirlo aparte.
	cfg, err := r.cfgRepo.GetBySeller(ctx, fresh.SellerID)
	if err != nil || cfg == nil {
		return "", err
	}
	url, err := r.client.ArtifactURL(ctx, cfg.ExternalID, fresh.RemoteID)
	if err != nil {
		return "", err
	}
	if url != "" {
		fresh.PDFURL = url
		fresh.UpdatedAt = time.Now()
		if uerr := r.invRepo.Update(ctx, fresh); uerr != nil {
			return "", uerr
		}
	}
	return url, nil
}

// ── Lectura ───────────────────────────────────────────────────────────────────

// GetInvoice devuelve una nota por id (nil, ErrNotFound si no existe).
func (r *Reconciler) GetInvoice(ctx context.Context, invoiceID string) (*entity.Invoice, error) {
	inv, err := r.invRepo.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, domain.ErrNotFound
	}
	return inv, nil
}

// ListInvoices lista las notas del vendedor, la más reciente primero.
func (r *Reconciler) ListInvoices(ctx context.Context, sellerID string, limit, offset int) ([]*entity.Invoice, error) {
	return r.invRepo.ListBySeller(ctx, sellerID, limit, offset)
}

// ── Internos ──────────────────────────────────────────────────────────────────

// applyRemote aplica un resultado del emisor sobre la nota: estado remoto
// literal, artefactos, cuerpo crudo, y la transición local que dicte la tabla
// de mapeo. Códigos desconocidos no mutan el estado, salvo que la nota lleve
// en submitted más que el umbral de staleness.
func (r *Reconciler) applyRemote(inv *entity.Invoice, res *nfeio.RemoteResult, now time.Time) {
	inv.RemoteStatus = res.FlowStatus
	inv.ResponsePayload = string(res.Raw)
	inv.UpdatedAt = now
	if res.ID != "" && inv.RemoteID == "" {
		inv.RemoteID = res.ID
	}
	if res.PDFURL != "" {
		inv.PDFURL = res.PDFURL
	}
	if res.XMLURL != "" {
		inv.XMLURL = res.XMLURL
	}

	local, ok := nfeio.MapFlowStatus(res.FlowStatus)
	if !ok {
		// flowStatus fuera de la tabla. El emisor no garantiza resolución:
		// pasado el umbral, el intento se declara en error.
		if inv.Status == entity.StatusSubmitted && now.Sub(inv.CreatedAt) > r.opts.StalenessThreshold {
			inv.MarkError(fmt.Sprintf("flowStatus desconocido %q por más de %s", res.FlowStatus, r.opts.StalenessThreshold), now)
		}
		return
	}
	if local == entity.StatusError {
		msg := res.FlowMessage
		if msg == "" {
			msg = "el emisor reportó Error"
		}
		inv.MarkError(msg, now)
		return
	}
	if entity.CanTransition(inv.Status, local) {
		// La primera entrada a approved estampa EmittedAt; reentradas no.
		_ = inv.Transition(local, now)
	}
}

// resolveCityCode busca el código IBGE del municipio del tomador; si el
// catálogo no lo tiene, usa el código por defecto (São Paulo).
func (r *Reconciler) resolveCityCode(ctx context.Context, buyer entity.BuyerIdentity) string {
	if buyer.Address.City != "" && buyer.Address.State != "" {
		if code, err := r.muniRepo.CodeFor(ctx, buyer.Address.City, buyer.Address.State); err == nil && code != "" {
			return code
		}
	}
	return r.opts.DefaultCityCode
}

// persist guarda la nota registrando el fallo de persistencia si lo hay; en
// ese punto el estado en memoria es la fuente de verdad del llamador.
func (r *Reconciler) persist(ctx context.Context, inv *entity.Invoice, step string) {
	if err := r.invRepo.Update(ctx, inv); err != nil {
		r.log.Error().Str("invoice_id", inv.ID).Err(err).Msg(step)
	}
}
