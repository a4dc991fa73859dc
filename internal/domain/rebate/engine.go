package rebate

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/rfa/backend/internal/domain/invoice"
	"github.com/rfa/backend/internal/domain/shared"
	"github.com/rfa/backend/internal/domain/shared/valueobject"
)

// Engine computes the staged payment calendar one invoice generates under
// one agreement. Pure and deterministic: identical inputs produce identical
// entries and bit-exact totals.
type Engine struct{}

// NewEngine creates an Engine.
func NewEngine() *Engine {
	return &Engine{}
}

// AddMonths advances a date by whole calendar months, clamping the day to
// the last valid day of the target month (Jan 31 + 1 month = Feb 28/29).
func AddMonths(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	month += time.Month(months)
	for month > 12 {
		month -= 12
		year++
	}
	for month < 1 {
		month += 12
		year--
	}
	last := lastDayOfMonth(year, month)
	if day > last {
		day = last
	}
	return time.Date(year, month, day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func lastDayOfMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Compute builds the schedule for an invoice. yearCumulative is the
// tenant-scoped yearly revenue for the laboratory at compute time; it only
// gates conditional stages. The returned schedule snapshots the agreement
// config: later edits of the agreement never touch it.
func (e *Engine) Compute(inv *invoice.LaboInvoice, agreement *LaboratoryAgreement, yearCumulative decimal.Decimal) (*RebateSchedule, error) {
	if err := agreement.Config.Validate(agreement.Structure); err != nil {
		return nil, err
	}

	// Eligibility partition: the OTC slice of the invoice never enters any
	// stage, and each tranche's rate applies to its own base only.
	baseA, baseB := e.partition(inv)
	baseEligible := baseA.Add(baseB)

	trancheA, _ := agreement.Config.TrancheFor(ConfigTrancheA)
	trancheB, _ := agreement.Config.TrancheFor(ConfigTrancheB)

	entries := make(RebateEntries, 0, len(agreement.Structure.Stages))
	total := decimal.Zero
	expectedA := decimal.Zero
	expectedB := decimal.Zero
	lastDue := inv.InvoiceDate

	for _, stage := range agreement.Structure.OrderedStages() {
		rateA := trancheA.Stages[stage.StageID].EffectiveRate(stage.RateType)
		rateB := trancheB.Stages[stage.StageID].EffectiveRate(stage.RateType)

		amountA := valueobject.RoundHalfUp(baseA.Mul(rateA))
		amountB := valueobject.RoundHalfUp(baseB.Mul(rateB))
		amount := amountA.Add(amountB)

		dueDate := AddMonths(inv.InvoiceDate, stage.DelayMonths)
		if dueDate.After(lastDue) {
			lastDue = dueDate
		}

		entries = append(entries, RebateEntry{
			StageID:       stage.StageID,
			Label:         stage.Label,
			Order:         stage.Order,
			DueDate:       dueDate,
			Amount:        amount,
			AmountA:       amountA,
			AmountB:       amountB,
			PaymentMethod: stage.PaymentMethod,
			Status:        e.entryStatus(stage, trancheA.Stages[stage.StageID], yearCumulative),
		})
		total = total.Add(amount)
		expectedA = expectedA.Add(amountA)
		expectedB = expectedB.Add(amountB)
	}

	taux := decimal.Zero
	if baseEligible.IsPositive() {
		taux = valueobject.RoundHalfUp(total.Div(baseEligible).Mul(decimal.NewFromInt(100)))
	}

	schedule := &RebateSchedule{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(inv.TenantID),
		AgreementID:         agreement.ID,
		InvoiceID:           inv.ID,
		LaboratoryID:        inv.LaboratoryID,
		RebateType:          RebateTypeRFA,
		MontantBaseHT:       baseEligible,
		TauxApplique:        taux,
		MontantPrevu:        total,
		Applied: AppliedConfig{
			Config:           agreement.Config.DeepCopy(),
			Structure:        agreement.Structure,
			TemplateVersion:  agreement.TemplateVersion,
			AgreementVersion: agreement.AgreementVersion,
		},
		Breakdown: TrancheBreakdown{
			ConfigTrancheA: {Base: baseA, Expected: expectedA},
			ConfigTrancheB: {Base: baseB, Expected: expectedB},
		},
		Entries:          entries,
		Status:           ScheduleStatusForecast,
		InvoiceDate:      inv.InvoiceDate,
		InvoiceAmount:    inv.BrutHT,
		DateEcheance:     lastDue,
		AgreementVersion: agreement.AgreementVersion,
	}
	return schedule, nil
}

// partition sums montant_ht by tranche, re-deriving the tranche from the
// line's declared VAT and discount so a stale stored label cannot skew the
// base.
func (e *Engine) partition(inv *invoice.LaboInvoice) (baseA, baseB decimal.Decimal) {
	baseA, baseB = decimal.Zero, decimal.Zero
	for idx := range inv.Lines {
		line := &inv.Lines[idx]
		switch invoice.ClassifyLine(line.TauxTVA, line.RemisePct) {
		case invoice.TrancheA:
			baseA = baseA.Add(line.MontantHT)
		case invoice.TrancheB:
			baseB = baseB.Add(line.MontantHT)
		}
	}
	return baseA, baseB
}

// entryStatus derives the stage payment status. Zero delay means the amount
// is deducted on the invoice itself.
func (e *Engine) entryStatus(stage Stage, sr StageRate, yearCumulative decimal.Decimal) EntryStatus {
	if stage.DelayMonths == 0 {
		return EntryStatusReceived
	}
	if stage.RateType == RateTypeConditional {
		threshold := sr.ConditionThreshold
		if threshold == nil {
			for i := range stage.Conditions {
				t := stage.Conditions[i].Threshold
				threshold = &t
				break
			}
		}
		if threshold != nil && yearCumulative.LessThan(*threshold) {
			return EntryStatusConditional
		}
	}
	return EntryStatusScheduled
}
