package rebate

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/rfa/backend/internal/domain/shared"
)

// RateType distinguishes how a stage expresses its rate.
type RateType string

const (
	// RateTypePercentage carries a standalone rate applied to the tranche base.
	RateTypePercentage RateType = "percentage"
	// RateTypeIncremental carries the increment over the previous stage;
	// the running total is tracked as cumulative_rate.
	RateTypeIncremental RateType = "incremental_percentage"
	// RateTypeConditional is incremental but only due once a cumulative
	// revenue threshold is met.
	RateTypeConditional RateType = "conditional_percentage"
)

// IsValid checks if the rate type is a valid value
func (r RateType) IsValid() bool {
	return r == RateTypePercentage || r == RateTypeIncremental || r == RateTypeConditional
}

// PaymentMethod describes how a stage's amount reaches the pharmacy.
type PaymentMethod string

const (
	PaymentMethodInvoiceDeduction PaymentMethod = "invoice_deduction"
	PaymentMethodEMACTransfer     PaymentMethod = "emac_transfer"
	PaymentMethodYearEndTransfer  PaymentMethod = "year_end_transfer"
)

// IsValid checks if the payment method is a valid value
func (p PaymentMethod) IsValid() bool {
	return p == PaymentMethodInvoiceDeduction || p == PaymentMethodEMACTransfer || p == PaymentMethodYearEndTransfer
}

// StageCondition gates a conditional stage on a cumulative threshold.
type StageCondition struct {
	Type           string          `json:"type"`
	Operator       string          `json:"operator"`
	ThresholdField string          `json:"threshold_field"`
	Threshold      decimal.Decimal `json:"threshold"`
	Unit           string          `json:"unit,omitempty"`
}

// Stage is one step of the staged-rebate catalog. DelayMonths is 0 for
// amounts deducted on the invoice itself, 12 for the year-end settlement.
type Stage struct {
	StageID       string           `json:"stage_id"`
	Label         string           `json:"label"`
	Order         int              `json:"order"`
	DelayMonths   int              `json:"delay_months"`
	RateType      RateType         `json:"rate_type"`
	PaymentMethod PaymentMethod    `json:"payment_method"`
	Conditions    []StageCondition `json:"conditions,omitempty"`
}

// Structure is the ordered stage catalog of a template, stored as JSONB.
type Structure struct {
	Stages []Stage `json:"stages"`
}

// OrderedStages returns the stages sorted by their declared order.
func (s Structure) OrderedStages() []Stage {
	out := make([]Stage, len(s.Stages))
	copy(out, s.Stages)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

// StageByID returns the stage with the given id, or nil.
func (s Structure) StageByID(id string) *Stage {
	for i := range s.Stages {
		if s.Stages[i].StageID == id {
			return &s.Stages[i]
		}
	}
	return nil
}

// Validate rejects structurally broken catalogs.
func (s Structure) Validate() error {
	if len(s.Stages) == 0 {
		return shared.NewDomainError("INVALID_CONFIG", "Structure must declare at least one stage")
	}
	seen := make(map[string]bool, len(s.Stages))
	for _, st := range s.Stages {
		if st.StageID == "" {
			return shared.NewDomainError("INVALID_CONFIG", "Stage ID cannot be empty")
		}
		if seen[st.StageID] {
			return shared.NewDomainError("INVALID_CONFIG", fmt.Sprintf("Duplicate stage ID %q", st.StageID))
		}
		seen[st.StageID] = true
		if !st.RateType.IsValid() {
			return shared.NewDomainError("INVALID_CONFIG", fmt.Sprintf("Stage %q has unknown rate type %q", st.StageID, st.RateType))
		}
		if !st.PaymentMethod.IsValid() {
			return shared.NewDomainError("INVALID_CONFIG", fmt.Sprintf("Stage %q has unknown payment method %q", st.StageID, st.PaymentMethod))
		}
		if st.DelayMonths < 0 {
			return shared.NewDomainError("INVALID_CONFIG", fmt.Sprintf("Stage %q has negative delay", st.StageID))
		}
	}
	return nil
}

// Value implements driver.Valuer for database storage
func (s Structure) Value() (driver.Value, error) {
	return json.Marshal(s)
}

// Scan implements sql.Scanner for database retrieval
func (s *Structure) Scan(value interface{}) error {
	if value == nil {
		*s = Structure{}
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, s)
	case string:
		return json.Unmarshal([]byte(v), s)
	default:
		return fmt.Errorf("cannot scan %T into Structure", value)
	}
}
