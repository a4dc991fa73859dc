package rebate

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rfa/backend/internal/domain/shared"
)

// ScheduleStatus is the lifecycle of a schedule row.
type ScheduleStatus string

const (
	ScheduleStatusForecast    ScheduleStatus = "forecast"
	ScheduleStatusIssued      ScheduleStatus = "issued"
	ScheduleStatusReceived    ScheduleStatus = "received"
	ScheduleStatusDiscrepancy ScheduleStatus = "discrepancy"
	ScheduleStatusCancelled   ScheduleStatus = "cancelled"
)

// IsValid checks if the status is a valid value
func (s ScheduleStatus) IsValid() bool {
	switch s {
	case ScheduleStatusForecast, ScheduleStatusIssued, ScheduleStatusReceived, ScheduleStatusDiscrepancy, ScheduleStatusCancelled:
		return true
	}
	return false
}

// EntryStatus is the state of one stage payment.
type EntryStatus string

const (
	EntryStatusReceived    EntryStatus = "received"    // deducted on the invoice itself
	EntryStatusScheduled   EntryStatus = "scheduled"   // due at a future date
	EntryStatusConditional EntryStatus = "conditional" // gated on a cumulative threshold
)

// RebateEntry is one stage payment of the calendar.
type RebateEntry struct {
	StageID       string          `json:"stage_id"`
	Label         string          `json:"label"`
	Order         int             `json:"order"`
	DueDate       time.Time       `json:"due_date"`
	Amount        decimal.Decimal `json:"amount"`
	AmountA       decimal.Decimal `json:"amount_a"`
	AmountB       decimal.Decimal `json:"amount_b"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
	Status        EntryStatus     `json:"status"`
}

// RebateEntries is the ordered calendar stored as a JSONB column.
type RebateEntries []RebateEntry

// Value implements driver.Valuer for database storage
func (re RebateEntries) Value() (driver.Value, error) {
	if re == nil {
		return nil, nil
	}
	return json.Marshal(re)
}

// Scan implements sql.Scanner for database retrieval
func (re *RebateEntries) Scan(value interface{}) error {
	if value == nil {
		*re = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, re)
	case string:
		return json.Unmarshal([]byte(v), re)
	default:
		return fmt.Errorf("cannot scan %T into RebateEntries", value)
	}
}

// TrancheAmounts is one tranche's slice of the schedule.
type TrancheAmounts struct {
	Base     decimal.Decimal `json:"base"`
	Expected decimal.Decimal `json:"expected"`
}

// TrancheBreakdown maps tranche keys to their base and expected amounts.
type TrancheBreakdown map[string]TrancheAmounts

// Value implements driver.Valuer for database storage
func (tb TrancheBreakdown) Value() (driver.Value, error) {
	if tb == nil {
		return nil, nil
	}
	return json.Marshal(tb)
}

// Scan implements sql.Scanner for database retrieval
func (tb *TrancheBreakdown) Scan(value interface{}) error {
	if value == nil {
		*tb = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, tb)
	case string:
		return json.Unmarshal([]byte(v), tb)
	default:
		return fmt.Errorf("cannot scan %T into TrancheBreakdown", value)
	}
}

// AppliedConfig is the frozen snapshot of the agreement config in force at
// compute time, with the stage catalog and versions. Stored as JSONB and
// never edited afterwards.
type AppliedConfig struct {
	Config           AgreementConfig `json:"config"`
	Structure        Structure       `json:"structure"`
	TemplateVersion  int             `json:"template_version"`
	AgreementVersion int             `json:"agreement_version"`
}

// Value implements driver.Valuer for database storage
func (ac AppliedConfig) Value() (driver.Value, error) {
	return json.Marshal(ac)
}

// Scan implements sql.Scanner for database retrieval
func (ac *AppliedConfig) Scan(value interface{}) error {
	if value == nil {
		*ac = AppliedConfig{}
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, ac)
	case string:
		return json.Unmarshal([]byte(v), ac)
	default:
		return fmt.Errorf("cannot scan %T into AppliedConfig", value)
	}
}

// RebateSchedule is the immutable payment calendar computed from one invoice
// under one agreement. Corrections never edit a persisted row: the old row is
// cancelled and a new one written, both staying visible for audit.
type RebateSchedule struct {
	shared.TenantAggregateRoot
	AgreementID      uuid.UUID        `json:"agreement_id"`
	InvoiceID        uuid.UUID        `json:"invoice_id"`
	LaboratoryID     uuid.UUID        `json:"laboratory_id"`
	RebateType       RebateType       `json:"rebate_type"`
	MontantBaseHT    decimal.Decimal  `json:"montant_base_ht"`
	TauxApplique     decimal.Decimal  `json:"taux_applique"` // percent
	MontantPrevu     decimal.Decimal  `json:"montant_prevu"`
	MontantRecu      *decimal.Decimal `json:"montant_recu,omitempty"`
	Ecart            *decimal.Decimal `json:"ecart,omitempty"`
	Applied          AppliedConfig    `json:"applied_config"`
	Breakdown        TrancheBreakdown `json:"tranche_breakdown"`
	Entries          RebateEntries    `json:"rebate_entries"`
	Status           ScheduleStatus   `json:"status"`
	InvoiceDate      time.Time        `json:"invoice_date"`
	InvoiceAmount    decimal.Decimal  `json:"invoice_amount"`
	DateEcheance     time.Time        `json:"date_echeance"`
	DateReception    *time.Time       `json:"date_reception,omitempty"`
	AgreementVersion int              `json:"agreement_version"`
}

// Cancel supersedes the schedule before a recompute. The only mutation a
// persisted schedule accepts.
func (s *RebateSchedule) Cancel() error {
	if s.Status == ScheduleStatusCancelled {
		return shared.NewDomainError("SCHEDULE_CANCELLED", "Schedule is already cancelled")
	}
	s.Status = ScheduleStatusCancelled
	s.UpdatedAt = time.Now()
	s.IncrementVersion()
	return nil
}

// RecordReception stores the observed amount against the forecast and
// derives the gap and final status.
func (s *RebateSchedule) RecordReception(amount decimal.Decimal, receivedAt time.Time) error {
	if s.Status == ScheduleStatusCancelled {
		return shared.NewDomainError("SCHEDULE_CANCELLED", "Cannot record a reception on a cancelled schedule")
	}
	ecart := amount.Sub(s.MontantPrevu)
	s.MontantRecu = &amount
	s.Ecart = &ecart
	s.DateReception = &receivedAt
	if ecart.Abs().LessThanOrEqual(decimal.NewFromFloat(0.01)) {
		s.Status = ScheduleStatusReceived
	} else {
		s.Status = ScheduleStatusDiscrepancy
	}
	s.UpdatedAt = time.Now()
	s.IncrementVersion()
	return nil
}

// CarryReception copies a superseded schedule's observed amount onto this
// replacement row so a manual reception entry survives a recompute.
func (s *RebateSchedule) CarryReception(from *RebateSchedule) {
	if from == nil || from.MontantRecu == nil {
		return
	}
	amount := *from.MontantRecu
	ecart := amount.Sub(s.MontantPrevu)
	s.MontantRecu = &amount
	s.Ecart = &ecart
	s.DateReception = from.DateReception
	if ecart.Abs().LessThanOrEqual(decimal.NewFromFloat(0.01)) {
		s.Status = ScheduleStatusReceived
	} else {
		s.Status = ScheduleStatusDiscrepancy
	}
}

// ScheduleFilter carries list-query options for schedules.
type ScheduleFilter struct {
	LaboratoryID *uuid.UUID
	AgreementID  *uuid.UUID
	Status       *ScheduleStatus
	Page         int
	PageSize     int
}

// MonthlyForecast aggregates expected rebates per laboratory for one month.
type MonthlyForecast struct {
	LaboratoryID   uuid.UUID       `json:"laboratory_id"`
	LaboratoryName string          `json:"laboratory_name"`
	ExpectedTotal  decimal.Decimal `json:"expected_total"`
	EntryCount     int             `json:"entry_count"`
}

// ScheduleRepository provides access to rebate schedules.
type ScheduleRepository interface {
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*RebateSchedule, error)
	// FindCurrentByInvoice returns the non-cancelled schedule for an invoice,
	// or a not-found error.
	FindCurrentByInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) (*RebateSchedule, error)
	FindAllByInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) ([]RebateSchedule, error)
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter ScheduleFilter) ([]RebateSchedule, int64, error)
	Save(ctx context.Context, schedule *RebateSchedule) error
	// MonthlyForecast sums rebate entries due in one calendar month, grouped
	// by laboratory, cancelled schedules excluded.
	MonthlyForecast(ctx context.Context, tenantID uuid.UUID, year int, month time.Month) ([]MonthlyForecast, error)
}
