package rebate

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/rfa/backend/internal/domain/shared"
)

// configEpsilon bounds the cumulative-vs-incremental drift tolerated in a
// tranche's stage table.
var configEpsilon = decimal.New(1, -6)

// StageRate carries the per-tranche rate figures of one stage. Rates are
// fractions (0.10 means 10%) mirroring the template schema. Rate is set for
// percentage stages, IncrementalRate for incremental and conditional ones.
type StageRate struct {
	Rate               *decimal.Decimal `json:"rate,omitempty"`
	IncrementalRate    *decimal.Decimal `json:"incremental_rate,omitempty"`
	CumulativeRate     decimal.Decimal  `json:"cumulative_rate"`
	ConditionThreshold *decimal.Decimal `json:"condition_threshold,omitempty"`
}

// EffectiveRate resolves the fraction the engine applies for this stage.
func (sr StageRate) EffectiveRate(rateType RateType) decimal.Decimal {
	if rateType == RateTypePercentage {
		if sr.Rate != nil {
			return *sr.Rate
		}
		return decimal.Zero
	}
	if sr.IncrementalRate != nil {
		return *sr.IncrementalRate
	}
	return decimal.Zero
}

// TrancheConfig is the staged rate table of one tranche.
type TrancheConfig struct {
	MaxRebate decimal.Decimal      `json:"max_rebate"`
	Stages    map[string]StageRate `json:"stages"`
}

// AgreementConfig is the per-tranche staged rate table of an agreement,
// stored as a JSONB column. The engine refuses to compute against a config
// that has not passed Validate.
type AgreementConfig struct {
	TrancheConfigurations map[string]TrancheConfig `json:"tranche_configurations"`
}

// Tranche config keys.
const (
	ConfigTrancheA = "tranche_A"
	ConfigTrancheB = "tranche_B"
)

// TrancheFor returns the config block for a tranche key.
func (c AgreementConfig) TrancheFor(key string) (TrancheConfig, bool) {
	tc, ok := c.TrancheConfigurations[key]
	return tc, ok
}

// Validate checks the config against the stage catalog: a well-formed
// non-empty catalog, both tranche blocks present, every rate within
// [0, max_rebate], and for incremental stages the declared cumulative
// consistent with the sum of increments.
func (c AgreementConfig) Validate(structure Structure) error {
	if err := structure.Validate(); err != nil {
		return err
	}
	for _, key := range []string{ConfigTrancheA, ConfigTrancheB} {
		tc, ok := c.TrancheConfigurations[key]
		if !ok {
			return shared.NewDomainError("INVALID_CONFIG", fmt.Sprintf("Missing configuration for %s", key))
		}
		if err := tc.validate(key, structure); err != nil {
			return err
		}
	}
	return nil
}

func (tc TrancheConfig) validate(key string, structure Structure) error {
	runningSum := decimal.Zero
	for _, stage := range structure.OrderedStages() {
		sr, ok := tc.Stages[stage.StageID]
		if !ok {
			return shared.NewDomainError("INVALID_CONFIG",
				fmt.Sprintf("%s: missing rate for stage %q", key, stage.StageID))
		}
		rate := sr.EffectiveRate(stage.RateType)
		if rate.IsNegative() || (tc.MaxRebate.IsPositive() && rate.GreaterThan(tc.MaxRebate)) {
			return shared.NewDomainError("INVALID_CONFIG",
				fmt.Sprintf("%s: stage %q rate %s outside [0, %s]", key, stage.StageID, rate, tc.MaxRebate))
		}
		if stage.RateType == RateTypeIncremental || stage.RateType == RateTypeConditional {
			runningSum = runningSum.Add(rate)
			if sr.CumulativeRate.Sub(runningSum).Abs().GreaterThan(configEpsilon) {
				return shared.NewDomainError("INVALID_CONFIG",
					fmt.Sprintf("%s: stage %q cumulative rate %s does not match running sum %s",
						key, stage.StageID, sr.CumulativeRate, runningSum))
			}
		}
	}
	return nil
}

// DeepCopy clones the config so snapshots never alias the live agreement.
func (c AgreementConfig) DeepCopy() AgreementConfig {
	out := AgreementConfig{TrancheConfigurations: make(map[string]TrancheConfig, len(c.TrancheConfigurations))}
	for key, tc := range c.TrancheConfigurations {
		stages := make(map[string]StageRate, len(tc.Stages))
		for id, sr := range tc.Stages {
			copySR := StageRate{CumulativeRate: sr.CumulativeRate}
			if sr.Rate != nil {
				v := *sr.Rate
				copySR.Rate = &v
			}
			if sr.IncrementalRate != nil {
				v := *sr.IncrementalRate
				copySR.IncrementalRate = &v
			}
			if sr.ConditionThreshold != nil {
				v := *sr.ConditionThreshold
				copySR.ConditionThreshold = &v
			}
			stages[id] = copySR
		}
		out.TrancheConfigurations[key] = TrancheConfig{MaxRebate: tc.MaxRebate, Stages: stages}
	}
	return out
}

// Value implements driver.Valuer for database storage
func (c AgreementConfig) Value() (driver.Value, error) {
	return json.Marshal(c)
}

// Scan implements sql.Scanner for database retrieval
func (c *AgreementConfig) Scan(value interface{}) error {
	if value == nil {
		*c = AgreementConfig{}
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, c)
	case string:
		return json.Unmarshal([]byte(v), c)
	default:
		return fmt.Errorf("cannot scan %T into AgreementConfig", value)
	}
}
