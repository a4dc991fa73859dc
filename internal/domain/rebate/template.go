package rebate

import (
	"context"
	"regexp"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rfa/backend/internal/domain/shared"
)

// RebateType categorizes the commercial advantage a template grants.
type RebateType string

const (
	RebateTypeRFA         RebateType = "rfa"
	RebateTypeEscompte    RebateType = "escompte"
	RebateTypeCooperation RebateType = "cooperation"
	RebateTypeGratuite    RebateType = "gratuite"
)

// IsValid checks if the rebate type is a valid value
func (r RebateType) IsValid() bool {
	switch r {
	case RebateTypeRFA, RebateTypeEscompte, RebateTypeCooperation, RebateTypeGratuite:
		return true
	}
	return false
}

// Frequency is the settlement cadence of a template.
type Frequency string

const (
	FrequencyMonthly    Frequency = "monthly"
	FrequencyQuarterly  Frequency = "quarterly"
	FrequencySemiannual Frequency = "semiannual"
	FrequencyAnnual     Frequency = "annual"
)

// IsValid checks if the frequency is a valid value
func (f Frequency) IsValid() bool {
	switch f {
	case FrequencyMonthly, FrequencyQuarterly, FrequencySemiannual, FrequencyAnnual:
		return true
	}
	return false
}

// TemplateScope tells who maintains the template.
type TemplateScope string

const (
	ScopeSystem   TemplateScope = "system"
	ScopeGroup    TemplateScope = "group"
	ScopePharmacy TemplateScope = "pharmacy"
)

// IsValid checks if the scope is a valid value
func (s TemplateScope) IsValid() bool {
	return s == ScopeSystem || s == ScopeGroup || s == ScopePharmacy
}

// freeGoodsPattern matches a "N+M" ratio like "10+1".
var freeGoodsPattern = regexp.MustCompile(`^(\d+)\+(\d+)$`)

// ParseFreeGoodsRatio splits a "N+M" ratio into its buy and free counts.
func ParseFreeGoodsRatio(ratio string) (buy, free int, ok bool) {
	m := freeGoodsPattern.FindStringSubmatch(ratio)
	if m == nil {
		return 0, 0, false
	}
	buy, _ = strconv.Atoi(m[1])
	free, _ = strconv.Atoi(m[2])
	if buy <= 0 {
		return 0, 0, false
	}
	return buy, free, true
}

// RebateTemplate is a reusable vendor-family rebate grid. A template is
// immutable in effect once referenced by an active agreement; edits bump the
// version instead of mutating the applied snapshot.
type RebateTemplate struct {
	shared.TenantAggregateRoot
	Name               string          `json:"name"`
	LaboratoryName     string          `json:"laboratory_name"`
	RebateType         RebateType      `json:"rebate_type"`
	Frequency          Frequency       `json:"frequency"`
	Tiers              Tiers           `json:"tiers"`
	Structure          Structure       `json:"structure"`
	EscompteRate       decimal.Decimal `json:"escompte_rate"`
	CooperationRate    decimal.Decimal `json:"cooperation_rate"`
	FreeGoodsRatio     string          `json:"free_goods_ratio"`
	FreeGoodsThreshold int             `json:"free_goods_threshold"`
	TemplateVersion    int             `json:"template_version"`
	Scope              TemplateScope   `json:"scope"`
	Active             bool            `json:"active"`
}

// NewRebateTemplate creates a template at version 1.
func NewRebateTemplate(tenantID uuid.UUID, name, laboratoryName string, rebateType RebateType, frequency Frequency, scope TemplateScope) (*RebateTemplate, error) {
	if name == "" {
		return nil, shared.NewDomainError("INVALID_TEMPLATE_NAME", "Template name cannot be empty")
	}
	if !rebateType.IsValid() {
		return nil, shared.NewDomainError("INVALID_REBATE_TYPE", "Unknown rebate type")
	}
	if !frequency.IsValid() {
		return nil, shared.NewDomainError("INVALID_FREQUENCY", "Unknown settlement frequency")
	}
	if !scope.IsValid() {
		return nil, shared.NewDomainError("INVALID_SCOPE", "Unknown template scope")
	}

	return &RebateTemplate{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		Name:                name,
		LaboratoryName:      laboratoryName,
		RebateType:          rebateType,
		Frequency:           frequency,
		TemplateVersion:     1,
		Scope:               scope,
		Active:              true,
	}, nil
}

// SetStructure replaces the stage catalog after validating it.
func (t *RebateTemplate) SetStructure(structure Structure) error {
	if err := structure.Validate(); err != nil {
		return err
	}
	t.Structure = structure
	t.touch()
	return nil
}

// SetFreeGoods records the "N+M" ratio and quantity threshold.
func (t *RebateTemplate) SetFreeGoods(ratio string, threshold int) error {
	if ratio != "" {
		if _, _, ok := ParseFreeGoodsRatio(ratio); !ok {
			return shared.NewDomainError("INVALID_FREE_GOODS_RATIO", "Free-goods ratio must look like \"10+1\"")
		}
	}
	t.FreeGoodsRatio = ratio
	t.FreeGoodsThreshold = threshold
	t.touch()
	return nil
}

// BumpVersion marks an edit of a template already referenced by agreements.
func (t *RebateTemplate) BumpVersion() {
	t.TemplateVersion++
	t.touch()
}

func (t *RebateTemplate) touch() {
	t.UpdatedAt = time.Now()
	t.IncrementVersion()
}

// TemplateFilter carries list-query options for templates.
type TemplateFilter struct {
	RebateType *RebateType
	Scope      *TemplateScope
	Search     string
	Page       int
	PageSize   int
}

// TemplateRepository provides access to rebate templates.
type TemplateRepository interface {
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*RebateTemplate, error)
	FindByNameForTenant(ctx context.Context, tenantID uuid.UUID, name string) (*RebateTemplate, error)
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter TemplateFilter) ([]RebateTemplate, int64, error)
	Save(ctx context.Context, template *RebateTemplate) error
	DeleteForTenant(ctx context.Context, tenantID, id uuid.UUID) error
}
