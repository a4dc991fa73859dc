package invoice

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rfa/backend/internal/domain/shared"
)

// InvoiceStatus represents the verification lifecycle of an invoice.
type InvoiceStatus string

const (
	InvoiceStatusImported InvoiceStatus = "IMPORTED"
	InvoiceStatusVerified InvoiceStatus = "VERIFIED"  // verified, no unresolved critical anomaly
	InvoiceStatusAnomaly  InvoiceStatus = "ANOMALY"   // verified, at least one unresolved critical anomaly
	InvoiceStatusArchived InvoiceStatus = "ARCHIVED"
)

// IsValid checks if the status is a valid InvoiceStatus
func (s InvoiceStatus) IsValid() bool {
	switch s {
	case InvoiceStatusImported, InvoiceStatusVerified, InvoiceStatusAnomaly, InvoiceStatusArchived:
		return true
	}
	return false
}

// LaboInvoice is an imported vendor invoice with its product lines.
// Per-tranche aggregates are recomputed from the lines at classification time
// and feed both the verifier and the rebate engine.
type LaboInvoice struct {
	shared.TenantAggregateRoot
	LaboratoryID uuid.UUID       `json:"laboratory_id"`
	Number       string          `json:"number"`
	InvoiceDate  time.Time       `json:"invoice_date"`
	BrutHT       decimal.Decimal `json:"brut_ht"`
	NetHT        decimal.Decimal `json:"net_ht"`
	TotalTVA     decimal.Decimal `json:"total_tva"`
	TTC          decimal.Decimal `json:"ttc"`
	PaymentMode  string          `json:"payment_mode"`
	PaymentDelay string          `json:"payment_delay"` // free text, e.g. "30 jours fin de mois"
	ABrut        decimal.Decimal `json:"a_brut"`
	ARemise      decimal.Decimal `json:"a_remise"`
	BBrut        decimal.Decimal `json:"b_brut"`
	BRemise      decimal.Decimal `json:"b_remise"`
	OTCBrut      decimal.Decimal `json:"otc_brut"`
	OTCRemise    decimal.Decimal `json:"otc_remise"`
	Status       InvoiceStatus   `json:"status"`
	Lines        []InvoiceLine   `json:"lines"`
}

// NewLaboInvoice creates an imported invoice.
func NewLaboInvoice(tenantID, laboratoryID uuid.UUID, number string, invoiceDate time.Time) (*LaboInvoice, error) {
	if number == "" {
		return nil, shared.NewDomainError("INVALID_INVOICE_NUMBER", "Invoice number cannot be empty")
	}
	if laboratoryID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_LABORATORY", "Laboratory ID cannot be empty")
	}
	if invoiceDate.IsZero() {
		return nil, shared.NewDomainError("INVALID_INVOICE_DATE", "Invoice date is required")
	}

	return &LaboInvoice{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		LaboratoryID:        laboratoryID,
		Number:              number,
		InvoiceDate:         invoiceDate,
		Status:              InvoiceStatusImported,
	}, nil
}

// AddLine attaches a line to the invoice.
func (i *LaboInvoice) AddLine(line *InvoiceLine) {
	line.InvoiceID = i.ID
	i.Lines = append(i.Lines, *line)
}

// ClassifyLines classifies every line and recomputes the per-tranche
// aggregates. Running it twice on unchanged lines is a no-op.
func (i *LaboInvoice) ClassifyLines() {
	aBrut, aRem := decimal.Zero, decimal.Zero
	bBrut, bRem := decimal.Zero, decimal.Zero
	otcBrut, otcRem := decimal.Zero, decimal.Zero

	for idx := range i.Lines {
		line := &i.Lines[idx]
		line.Classify()
		switch line.Tranche {
		case TrancheA:
			aBrut = aBrut.Add(line.MontantBrut)
			aRem = aRem.Add(line.MontantRemise)
		case TrancheB:
			bBrut = bBrut.Add(line.MontantBrut)
			bRem = bRem.Add(line.MontantRemise)
		default:
			otcBrut = otcBrut.Add(line.MontantBrut)
			otcRem = otcRem.Add(line.MontantRemise)
		}
	}

	i.ABrut, i.ARemise = aBrut, aRem
	i.BBrut, i.BRemise = bBrut, bRem
	i.OTCBrut, i.OTCRemise = otcBrut, otcRem
}

// MarkVerified records the verification outcome.
func (i *LaboInvoice) MarkVerified(hasCritical bool) {
	if hasCritical {
		i.Status = InvoiceStatusAnomaly
	} else {
		i.Status = InvoiceStatusVerified
	}
	i.UpdatedAt = time.Now()
	i.IncrementVersion()
}

// EligibleBase returns the RFA-eligible base: the sum of montant_ht over
// reimbursable lines. OTC lines contribute nothing.
func (i *LaboInvoice) EligibleBase() decimal.Decimal {
	base := decimal.Zero
	for idx := range i.Lines {
		if IsReimbursableVAT(i.Lines[idx].TauxTVA) {
			base = base.Add(i.Lines[idx].MontantHT)
		}
	}
	return base
}

// InvoiceFilter carries list-query options for invoices.
type InvoiceFilter struct {
	LaboratoryID *uuid.UUID
	Status       *InvoiceStatus
	FromDate     *time.Time
	ToDate       *time.Time
	Search       string
	Page         int
	PageSize     int
}

// MonthlyActivity summarizes the invoices of one laboratory for one month.
// Used by missing-EMAC detection.
type MonthlyActivity struct {
	LaboratoryID uuid.UUID
	Year         int
	Month        time.Month
	InvoiceCount int
	TotalBrutHT  decimal.Decimal
}

// InvoiceRepository provides access to laboratory invoices.
type InvoiceRepository interface {
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*LaboInvoice, error)
	// FindByIDForTenantLocked loads the invoice under a row lock so concurrent
	// verifications of the same invoice serialize.
	FindByIDForTenantLocked(ctx context.Context, tenantID, id uuid.UUID) (*LaboInvoice, error)
	FindByNumberForTenant(ctx context.Context, tenantID, laboratoryID uuid.UUID, number string) (*LaboInvoice, error)
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter InvoiceFilter) ([]LaboInvoice, int64, error)
	Save(ctx context.Context, invoice *LaboInvoice) error
	// YearCumulativeBrut sums brut_ht for a laboratory over one calendar year
	// up to and including asOf.
	YearCumulativeBrut(ctx context.Context, tenantID, laboratoryID uuid.UUID, year int, asOf time.Time) (decimal.Decimal, error)
	// SumBrutForPeriod aggregates brut_ht and invoice count over a date range.
	SumBrutForPeriod(ctx context.Context, tenantID, laboratoryID uuid.UUID, from, to time.Time) (decimal.Decimal, int, error)
	// MonthlyActivityForYear returns per-laboratory monthly invoice activity.
	MonthlyActivityForYear(ctx context.Context, tenantID uuid.UUID, year int) ([]MonthlyActivity, error)
}

// AnomalyRepository provides access to invoice anomalies.
type AnomalyRepository interface {
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Anomaly, error)
	FindByInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) ([]Anomaly, error)
	// DeleteUnresolvedByInvoice removes unresolved anomalies before a re-run;
	// resolved anomalies keep their human history.
	DeleteUnresolvedByInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) error
	SaveAll(ctx context.Context, anomalies []Anomaly) error
	Save(ctx context.Context, anomaly *Anomaly) error
}
