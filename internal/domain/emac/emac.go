package emac

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rfa/backend/internal/domain/shared"
)

// EMACStatus is the reconciliation state of a statement.
type EMACStatus string

const (
	StatusNonVerifie   EMACStatus = "non_verifie"
	StatusConforme     EMACStatus = "conforme"
	StatusEcartDetecte EMACStatus = "ecart_detecte"
	StatusAnomalie     EMACStatus = "anomalie"
)

// IsValid checks if the status is a valid value
func (s EMACStatus) IsValid() bool {
	switch s {
	case StatusNonVerifie, StatusConforme, StatusEcartDetecte, StatusAnomalie:
		return true
	}
	return false
}

// EMAC is a vendor-declared monthly statement of commercial advantages.
// Declared fields come from the laboratory document; computed fields are
// filled by the reconciler.
type EMAC struct {
	shared.TenantAggregateRoot
	LaboratoryID uuid.UUID `json:"laboratory_id"`
	PeriodStart  time.Time `json:"period_start"`
	PeriodEnd    time.Time `json:"period_end"`

	DeclaredCA         decimal.Decimal `json:"declared_ca"`
	DeclaredRFA        decimal.Decimal `json:"declared_rfa"`
	DeclaredCOP        decimal.Decimal `json:"declared_cop"`
	DeclaredDiffered   decimal.Decimal `json:"declared_differed"`
	OtherAdvantages    decimal.Decimal `json:"other_advantages"`
	TotalDeclared      decimal.Decimal `json:"total_declared_advantages"`
	AmountPaid         decimal.Decimal `json:"amount_paid"`
	RemainingBalance   decimal.Decimal `json:"remaining_balance"`

	CAReel             decimal.Decimal `json:"ca_reel"`
	NbInvoicesMatched  int             `json:"nb_invoices_matched"`
	EcartCA            decimal.Decimal `json:"ecart_ca"`
	EcartCAPct         decimal.Decimal `json:"ecart_ca_pct"`
	RFAAttendue        decimal.Decimal `json:"rfa_attendue_calculee"`
	EcartRFA           decimal.Decimal `json:"ecart_rfa"`
	AnomaliesResume    string          `json:"anomalies_resume"`
	NbAnomalies        int             `json:"nb_anomalies"`
	Status             EMACStatus      `json:"statut"`
	MontantRecouvrable decimal.Decimal `json:"montant_recouvrable"`
	VerifiedAt         *time.Time      `json:"verified_at,omitempty"`
}

// NewEMAC creates an unverified statement for one laboratory and period.
func NewEMAC(tenantID, laboratoryID uuid.UUID, periodStart, periodEnd time.Time) (*EMAC, error) {
	if laboratoryID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_LABORATORY", "Laboratory ID cannot be empty")
	}
	if periodStart.IsZero() || periodEnd.IsZero() {
		return nil, shared.NewDomainError("INVALID_PERIOD", "EMAC period is required")
	}
	if periodEnd.Before(periodStart) {
		return nil, shared.NewDomainError("INVALID_PERIOD", "EMAC period end precedes its start")
	}

	return &EMAC{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		LaboratoryID:        laboratoryID,
		PeriodStart:         periodStart,
		PeriodEnd:           periodEnd,
		Status:              StatusNonVerifie,
	}, nil
}

// CoversMonth reports whether the statement period overlaps the given month.
// Any overlap counts as covered.
func (e *EMAC) CoversMonth(year int, month time.Month) bool {
	monthStart := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	monthEnd := monthStart.AddDate(0, 1, 0).Add(-time.Nanosecond)
	return !e.PeriodEnd.Before(monthStart) && !e.PeriodStart.After(monthEnd)
}

// EMACFilter carries list-query options for statements.
type EMACFilter struct {
	LaboratoryID *uuid.UUID
	Status       *EMACStatus
	Year         *int
	Page         int
	PageSize     int
}

// EMACRepository provides access to EMAC statements.
type EMACRepository interface {
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*EMAC, error)
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter EMACFilter) ([]EMAC, int64, error)
	// FindByYearForTenant returns every statement whose period touches the
	// calendar year.
	FindByYearForTenant(ctx context.Context, tenantID uuid.UUID, year int) ([]EMAC, error)
	Save(ctx context.Context, emac *EMAC) error
	DeleteForTenant(ctx context.Context, tenantID, id uuid.UUID) error
}

// EMACAnomalyRepository provides access to reconciliation anomalies.
type EMACAnomalyRepository interface {
	FindByEMAC(ctx context.Context, tenantID, emacID uuid.UUID) ([]Anomaly, error)
	// DeleteUnresolvedByEMAC clears unresolved findings before a re-run.
	DeleteUnresolvedByEMAC(ctx context.Context, tenantID, emacID uuid.UUID) error
	SaveAll(ctx context.Context, anomalies []Anomaly) error
	Save(ctx context.Context, anomaly *Anomaly) error
}
