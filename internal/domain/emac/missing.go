package emac

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rfa/backend/internal/domain/invoice"
	"github.com/rfa/backend/internal/domain/partner"
)

// MissingEMAC flags a month with invoice activity but no statement covering
// it.
type MissingEMAC struct {
	LaboratoryID   uuid.UUID       `json:"laboratory_id"`
	LaboratoryName string          `json:"laboratory_name"`
	Year           int             `json:"year"`
	Month          time.Month      `json:"month"`
	PeriodStart    time.Time       `json:"period_start"`
	PeriodEnd      time.Time       `json:"period_end"`
	InvoiceCount   int             `json:"invoice_count"`
	CA             decimal.Decimal `json:"ca"`
}

// MissingDetector finds months whose invoices have no EMAC coverage.
type MissingDetector struct{}

// NewMissingDetector creates a MissingDetector.
func NewMissingDetector() *MissingDetector {
	return &MissingDetector{}
}

// Detect walks every month of the year up to now for each active laboratory.
// A month is flagged when it has at least one invoice and no statement of the
// same laboratory overlaps it.
func (d *MissingDetector) Detect(year int, now time.Time, laboratories []partner.Laboratory, activity []invoice.MonthlyActivity, statements []EMAC) []MissingEMAC {
	byLab := make(map[uuid.UUID]*partner.Laboratory, len(laboratories))
	for i := range laboratories {
		if laboratories[i].Active {
			byLab[laboratories[i].ID] = &laboratories[i]
		}
	}

	statementsByLab := make(map[uuid.UUID][]EMAC)
	for _, s := range statements {
		statementsByLab[s.LaboratoryID] = append(statementsByLab[s.LaboratoryID], s)
	}

	lastMonth := time.December
	if year > now.Year() {
		return nil
	}
	if year == now.Year() {
		lastMonth = now.Month()
	}

	var out []MissingEMAC
	for _, act := range activity {
		lab, ok := byLab[act.LaboratoryID]
		if !ok || act.Year != year || act.Month > lastMonth || act.InvoiceCount == 0 {
			continue
		}
		if monthCovered(statementsByLab[act.LaboratoryID], year, act.Month) {
			continue
		}
		start := time.Date(year, act.Month, 1, 0, 0, 0, 0, time.UTC)
		out = append(out, MissingEMAC{
			LaboratoryID:   act.LaboratoryID,
			LaboratoryName: lab.Name,
			Year:           year,
			Month:          act.Month,
			PeriodStart:    start,
			PeriodEnd:      start.AddDate(0, 1, -1),
			InvoiceCount:   act.InvoiceCount,
			CA:             act.TotalBrutHT,
		})
	}
	return out
}

func monthCovered(statements []EMAC, year int, month time.Month) bool {
	for i := range statements {
		if statements[i].CoversMonth(year, month) {
			return true
		}
	}
	return false
}
