package rebate

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Tier is one revenue bracket of an RFA grid. Max nil means open-ended.
// Rate is a percent value (2.0 means 2%).
type Tier struct {
	Min   decimal.Decimal  `json:"min"`
	Max   *decimal.Decimal `json:"max,omitempty"`
	Rate  decimal.Decimal  `json:"rate"`
	Label string           `json:"label,omitempty"`
}

// Contains reports whether the cumulative revenue falls in this bracket.
func (t Tier) Contains(cumul decimal.Decimal) bool {
	if cumul.LessThan(t.Min) {
		return false
	}
	return t.Max == nil || cumul.LessThan(*t.Max)
}

// Tiers is an ordered RFA grid stored as a JSONB column.
type Tiers []Tier

// FindTier returns the bracket containing cumul, or nil when none matches.
func (ts Tiers) FindTier(cumul decimal.Decimal) *Tier {
	for i := range ts {
		if ts[i].Contains(cumul) {
			return &ts[i]
		}
	}
	return nil
}

// NextTier returns the bracket following the one containing cumul, or nil
// when cumul sits in the top bracket.
func (ts Tiers) NextTier(cumul decimal.Decimal) *Tier {
	for i := range ts {
		if ts[i].Contains(cumul) {
			if i+1 < len(ts) {
				return &ts[i+1]
			}
			return nil
		}
	}
	return nil
}

// Value implements driver.Valuer for database storage
func (ts Tiers) Value() (driver.Value, error) {
	if ts == nil {
		return nil, nil
	}
	return json.Marshal(ts)
}

// Scan implements sql.Scanner for database retrieval
func (ts *Tiers) Scan(value interface{}) error {
	if value == nil {
		*ts = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, ts)
	case string:
		return json.Unmarshal([]byte(v), ts)
	default:
		return fmt.Errorf("cannot scan %T into Tiers", value)
	}
}
