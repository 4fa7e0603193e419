package invoicing

import (
	"context"
	"encoding/json"

	"github.com/jhoicas/Fiscal-api/internal/domain/repository"
	"github.com/jhoicas/Fiscal-api/internal/infrastructure/nfeio"
)

// TxRunner ejecuta una función dentro de una transacción que incluye los repos
// del flujo de emisión. El chequeo de nota-activa y la asignación de numeración
// DEBEN correr dentro del mismo fn: es la sección crítica del subsistema.
type TxRunner interface {
	RunInvoicing(ctx context.Context, fn func(
		cfgRepo repository.IssuerConfigRepository,
		invRepo repository.InvoiceRepository,
	) error) error
}

// IssuerClient es el puerto sobre el cliente del emisor. Lo implementa
// nfeio.Client; los tests del driver lo sustituyen por un fake.
type IssuerClient interface {
	Submit(ctx context.Context, sc *nfeio.SubmitContext) (*nfeio.RemoteResult, error)
	CheckStatus(ctx context.Context, companyExternalID, remoteID string) (*nfeio.RemoteResult, error)
	Cancel(ctx context.Context, companyExternalID, remoteID, reason string) (*nfeio.RemoteResult, error)
	ArtifactURL(ctx context.Context, companyExternalID, remoteID string) (string, error)
	CheckCompany(ctx context.Context, companyExternalID string) (json.RawMessage, error)
}
