package invoicing

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jhoicas/Fiscal-api/internal/domain"
	"github.com/jhoicas/Fiscal-api/internal/domain/entity"
	"github.com/jhoicas/Fiscal-api/internal/domain/repository"
	"github.com/jhoicas/Fiscal-api/pkg/fiscal"
)

// ConfigUseCase administra la configuración fiscal del vendedor. La edición
// nunca toca el cursor de numeración: eso es territorio exclusivo de
// AllocateNumber.
type ConfigUseCase struct {
	cfgRepo repository.IssuerConfigRepository
	client  IssuerClient
}

// NewConfigUseCase construye el caso de uso.
func NewConfigUseCase(cfgRepo repository.IssuerConfigRepository, client IssuerClient) *ConfigUseCase {
	return &ConfigUseCase{cfgRepo: cfgRepo, client: client}
}

// Get devuelve la configuración del vendedor o ErrNotFound.
func (uc *ConfigUseCase) Get(ctx context.Context, sellerID string) (*entity.IssuerConfig, error) {
	cfg, err := uc.cfgRepo.GetBySeller(ctx, sellerID)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, domain.ErrNotFound
	}
	return cfg, nil
}

// Upsert crea o actualiza la configuración. El CNPJ se normaliza a dígitos y
// se valida por dígitos verificadores antes de persistir. Una configuración
// nueva arranca el cursor en serie "1", número 1, lote 1.
func (uc *ConfigUseCase) Upsert(ctx context.Context, sellerID string, in *entity.IssuerConfig) (*entity.IssuerConfig, error) {
	if sellerID == "" || in == nil {
		return nil, domain.ErrInvalidInput
	}

	in.TaxID = fiscal.NormalizeTaxID(in.TaxID)
	if in.TaxID != "" {
		if err := fiscal.ValidateCNPJ(in.TaxID); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
		}
	}
	in.State = strings.ToUpper(strings.TrimSpace(in.State))
	in.PostalCode = strings.ReplaceAll(strings.TrimSpace(in.PostalCode), "-", "")
	switch in.TaxRegime {
	case "", entity.TaxRegimeSimplesNacional, entity.TaxRegimeLucroPresumido, entity.TaxRegimeLucroReal:
	default:
		return nil, fmt.Errorf("%w: régimen tributario desconocido %q", domain.ErrInvalidInput, in.TaxRegime)
	}

	existing, err := uc.cfgRepo.GetBySeller(ctx, sellerID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		// Preservar identidad y cursor de la fila existente.
		in.ID = existing.ID
		in.RPSSerial = existing.RPSSerial
		in.RPSNextNumber = existing.RPSNextNumber
		in.RPSBatch = existing.RPSBatch
	} else {
		if in.RPSSerial == "" {
			in.RPSSerial = "1"
		}
		if in.RPSNextNumber <= 0 {
			in.RPSNextNumber = 1
		}
		if in.RPSBatch <= 0 {
			in.RPSBatch = 1
		}
	}
	in.SellerID = sellerID

	if err := uc.cfgRepo.Upsert(ctx, in); err != nil {
		return nil, err
	}
	return uc.Get(ctx, sellerID)
}

// Diagnostics consulta los datos de la empresa directamente en el emisor.
// Fuera de banda: sirve para verificar el registro sin emitir nada.
func (uc *ConfigUseCase) Diagnostics(ctx context.Context, sellerID string) (json.RawMessage, error) {
	cfg, err := uc.Get(ctx, sellerID)
	if err != nil {
		return nil, err
	}
	if cfg.ExternalID == "" {
		return nil, fmt.Errorf("%w: el vendedor no tiene empresa registrada en el emisor", domain.ErrInvalidInput)
	}
	return uc.client.CheckCompany(ctx, cfg.ExternalID)
}
