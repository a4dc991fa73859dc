package rebate

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rfa/backend/internal/domain/shared"
)

// AgreementStatus is the lifecycle state of an agreement.
type AgreementStatus string

const (
	AgreementStatusDraft     AgreementStatus = "draft"
	AgreementStatusActive    AgreementStatus = "active"
	AgreementStatusSuspended AgreementStatus = "suspended"
	AgreementStatusExpired   AgreementStatus = "expired"
	AgreementStatusArchived  AgreementStatus = "archived"
)

// IsValid checks if the status is a valid value
func (s AgreementStatus) IsValid() bool {
	switch s {
	case AgreementStatusDraft, AgreementStatusActive, AgreementStatusSuspended, AgreementStatusExpired, AgreementStatusArchived:
		return true
	}
	return false
}

// LaboratoryAgreement is the contract between one tenant and one laboratory.
// Once an agreement has produced schedules it evolves by copy-on-write:
// NewVersion archives the current row and returns a draft successor.
type LaboratoryAgreement struct {
	shared.TenantAggregateRoot
	LaboratoryID       uuid.UUID        `json:"laboratory_id"`
	TemplateID         *uuid.UUID       `json:"template_id,omitempty"`
	TemplateVersion    int              `json:"template_version"`
	Name               string           `json:"name"`
	StartDate          time.Time        `json:"start_date"`
	EndDate            *time.Time       `json:"end_date,omitempty"`
	Status             AgreementStatus  `json:"status"`
	TargetRateA        decimal.Decimal  `json:"target_rate_a"` // percent
	TargetRateB        decimal.Decimal  `json:"target_rate_b"`
	TargetRateOTC      decimal.Decimal  `json:"target_rate_otc"`
	EscompteApplicable bool             `json:"escompte_applicable"`
	EscompteRate       decimal.Decimal  `json:"escompte_rate"`
	EscompteDelayDays  int              `json:"escompte_delay_days"`
	CooperationRate    decimal.Decimal  `json:"cooperation_rate"`
	FrancoThreshold    decimal.Decimal  `json:"franco_threshold"`
	ShippingFeeEstim   decimal.Decimal  `json:"shipping_fee_estim"`
	FreeGoodsEnabled   bool             `json:"free_goods_enabled"`
	FreeGoodsRatio     string           `json:"free_goods_ratio"`
	FreeGoodsThreshold int              `json:"free_goods_threshold"`
	AnnualObjective    decimal.Decimal  `json:"annual_objective"`
	Config             AgreementConfig  `json:"agreement_config"`
	Structure          Structure        `json:"structure"`
	CustomTiers        Tiers            `json:"custom_tiers"`
	AgreementVersion   int              `json:"agreement_version"`
	PreviousVersionID  *uuid.UUID       `json:"previous_version_id,omitempty"`
	CACumule           decimal.Decimal  `json:"ca_cumule"`
	RemiseCumulee      decimal.Decimal  `json:"remise_cumulee"`
	LastRecomputeAt    *time.Time       `json:"last_recompute_at,omitempty"`
}

// NewLaboratoryAgreement creates a draft agreement at version 1.
func NewLaboratoryAgreement(tenantID, laboratoryID uuid.UUID, name string, startDate time.Time) (*LaboratoryAgreement, error) {
	if laboratoryID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_LABORATORY", "Laboratory ID cannot be empty")
	}
	if name == "" {
		return nil, shared.NewDomainError("INVALID_AGREEMENT_NAME", "Agreement name cannot be empty")
	}
	if startDate.IsZero() {
		return nil, shared.NewDomainError("INVALID_START_DATE", "Agreement start date is required")
	}

	return &LaboratoryAgreement{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		LaboratoryID:        laboratoryID,
		Name:                name,
		StartDate:           startDate,
		Status:              AgreementStatusDraft,
		AgreementVersion:    1,
	}, nil
}

// ApplyTemplate copies a template's grid into the agreement and pins the
// template version in force.
func (a *LaboratoryAgreement) ApplyTemplate(t *RebateTemplate) {
	id := t.ID
	a.TemplateID = &id
	a.TemplateVersion = t.TemplateVersion
	a.Structure = t.Structure
	a.CustomTiers = append(Tiers(nil), t.Tiers...)
	a.EscompteRate = t.EscompteRate
	a.CooperationRate = t.CooperationRate
	a.FreeGoodsRatio = t.FreeGoodsRatio
	a.FreeGoodsThreshold = t.FreeGoodsThreshold
	if buy, _, ok := ParseFreeGoodsRatio(t.FreeGoodsRatio); ok && buy > 0 {
		a.FreeGoodsEnabled = true
	}
	a.touch()
}

// ValidateConfig checks the staged rate table against the stage catalog.
func (a *LaboratoryAgreement) ValidateConfig() error {
	return a.Config.Validate(a.Structure)
}

// IsActive reports whether the agreement is the one in force.
func (a *LaboratoryAgreement) IsActive() bool {
	return a.Status == AgreementStatusActive
}

// CoversDate reports whether the validity window contains the date.
func (a *LaboratoryAgreement) CoversDate(d time.Time) bool {
	if d.Before(a.StartDate) {
		return false
	}
	return a.EndDate == nil || !d.After(*a.EndDate)
}

// NewVersion duplicates the agreement for copy-on-write evolution. The
// successor starts as a draft at version+1 pointing back to this row, and
// this row is archived. Activation is a separate call.
func (a *LaboratoryAgreement) NewVersion() (*LaboratoryAgreement, error) {
	if a.Status == AgreementStatusArchived {
		return nil, shared.NewDomainError("AGREEMENT_ARCHIVED", "Cannot version an archived agreement")
	}

	prev := a.ID
	next := &LaboratoryAgreement{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(a.TenantID),
		LaboratoryID:        a.LaboratoryID,
		TemplateID:          a.TemplateID,
		TemplateVersion:     a.TemplateVersion,
		Name:                a.Name,
		StartDate:           a.StartDate,
		EndDate:             a.EndDate,
		Status:              AgreementStatusDraft,
		TargetRateA:         a.TargetRateA,
		TargetRateB:         a.TargetRateB,
		TargetRateOTC:       a.TargetRateOTC,
		EscompteApplicable:  a.EscompteApplicable,
		EscompteRate:        a.EscompteRate,
		EscompteDelayDays:   a.EscompteDelayDays,
		CooperationRate:     a.CooperationRate,
		FrancoThreshold:     a.FrancoThreshold,
		ShippingFeeEstim:    a.ShippingFeeEstim,
		FreeGoodsEnabled:    a.FreeGoodsEnabled,
		FreeGoodsRatio:      a.FreeGoodsRatio,
		FreeGoodsThreshold:  a.FreeGoodsThreshold,
		AnnualObjective:     a.AnnualObjective,
		Config:              a.Config.DeepCopy(),
		Structure:           a.Structure,
		CustomTiers:         append(Tiers(nil), a.CustomTiers...),
		AgreementVersion:    a.AgreementVersion + 1,
		PreviousVersionID:   &prev,
	}

	a.Status = AgreementStatusArchived
	a.touch()
	return next, nil
}

// Activate transitions the agreement to active. The caller must suspend any
// other active agreement for the same (tenant, laboratory) pair in the same
// transaction.
func (a *LaboratoryAgreement) Activate() error {
	switch a.Status {
	case AgreementStatusDraft, AgreementStatusSuspended:
		a.Status = AgreementStatusActive
		a.touch()
		return nil
	case AgreementStatusActive:
		return nil
	default:
		return shared.NewDomainError("INVALID_STATUS_TRANSITION",
			"Only draft or suspended agreements can be activated")
	}
}

// Suspend takes the agreement out of force without archiving it.
func (a *LaboratoryAgreement) Suspend() error {
	if a.Status != AgreementStatusActive {
		return shared.NewDomainError("INVALID_STATUS_TRANSITION", "Only active agreements can be suspended")
	}
	a.Status = AgreementStatusSuspended
	a.touch()
	return nil
}

// Expire marks an agreement whose validity window has closed.
func (a *LaboratoryAgreement) Expire() error {
	if a.Status != AgreementStatusActive && a.Status != AgreementStatusSuspended {
		return shared.NewDomainError("INVALID_STATUS_TRANSITION", "Only active or suspended agreements can expire")
	}
	a.Status = AgreementStatusExpired
	a.touch()
	return nil
}

// RecordCumulatives refreshes the running revenue counters.
func (a *LaboratoryAgreement) RecordCumulatives(caCumule, remiseCumulee decimal.Decimal) {
	now := time.Now()
	a.CACumule = caCumule
	a.RemiseCumulee = remiseCumulee
	a.LastRecomputeAt = &now
	a.touch()
}

func (a *LaboratoryAgreement) touch() {
	a.UpdatedAt = time.Now()
	a.IncrementVersion()
}

// AgreementFilter carries list-query options for agreements.
type AgreementFilter struct {
	LaboratoryID *uuid.UUID
	Status       *AgreementStatus
	Page         int
	PageSize     int
}

// AgreementRepository provides access to laboratory agreements.
type AgreementRepository interface {
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*LaboratoryAgreement, error)
	// FindActiveForPair returns the single active agreement for a
	// (tenant, laboratory) pair, or a not-found error.
	FindActiveForPair(ctx context.Context, tenantID, laboratoryID uuid.UUID) (*LaboratoryAgreement, error)
	// FindActiveOthersForPair lists active agreements for the pair excluding
	// one id. Used by the activation compare-and-swap.
	FindActiveOthersForPair(ctx context.Context, tenantID, laboratoryID, excludeID uuid.UUID) ([]LaboratoryAgreement, error)
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter AgreementFilter) ([]LaboratoryAgreement, int64, error)
	Save(ctx context.Context, agreement *LaboratoryAgreement) error
	SaveWithLock(ctx context.Context, agreement *LaboratoryAgreement) error
}
