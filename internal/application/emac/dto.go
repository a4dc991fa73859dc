package emac

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rfa/backend/internal/domain/emac"
)

// CreateEMACRequest represents a manually entered statement.
type CreateEMACRequest struct {
	LaboratoryID     uuid.UUID `json:"laboratory_id" binding:"required"`
	PeriodStart      time.Time `json:"period_start" binding:"required"`
	PeriodEnd        time.Time `json:"period_end" binding:"required"`
	DeclaredCA       string    `json:"declared_ca"`
	DeclaredRFA      string    `json:"declared_rfa"`
	DeclaredCOP      string    `json:"declared_cop"`
	DeclaredDiffered string    `json:"declared_differed"`
	OtherAdvantages  string    `json:"other_advantages"`
	TotalDeclared    string    `json:"total_declared_advantages"`
	AmountPaid       string    `json:"amount_paid"`
	RemainingBalance string    `json:"remaining_balance"`
}

// EMACResponse is the public view of a statement.
type EMACResponse struct {
	ID                 uuid.UUID       `json:"id"`
	LaboratoryID       uuid.UUID       `json:"laboratory_id"`
	PeriodStart        time.Time       `json:"period_start"`
	PeriodEnd          time.Time       `json:"period_end"`
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
	AnomaliesResume    string          `json:"anomalies_resume,omitempty"`
	NbAnomalies        int             `json:"nb_anomalies"`
	Status             string          `json:"statut"`
	MontantRecouvrable decimal.Decimal `json:"montant_recouvrable"`
	VerifiedAt         *time.Time      `json:"verified_at,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
}

// ToEMACResponse maps a statement aggregate to its response.
func ToEMACResponse(e *emac.EMAC) EMACResponse {
	return EMACResponse{
		ID:                 e.ID,
		LaboratoryID:       e.LaboratoryID,
		PeriodStart:        e.PeriodStart,
		PeriodEnd:          e.PeriodEnd,
		DeclaredCA:         e.DeclaredCA,
		DeclaredRFA:        e.DeclaredRFA,
		DeclaredCOP:        e.DeclaredCOP,
		DeclaredDiffered:   e.DeclaredDiffered,
		OtherAdvantages:    e.OtherAdvantages,
		TotalDeclared:      e.TotalDeclared,
		AmountPaid:         e.AmountPaid,
		RemainingBalance:   e.RemainingBalance,
		CAReel:             e.CAReel,
		NbInvoicesMatched:  e.NbInvoicesMatched,
		EcartCA:            e.EcartCA,
		EcartCAPct:         e.EcartCAPct,
		RFAAttendue:        e.RFAAttendue,
		EcartRFA:           e.EcartRFA,
		AnomaliesResume:    e.AnomaliesResume,
		NbAnomalies:        e.NbAnomalies,
		Status:             string(e.Status),
		MontantRecouvrable: e.MontantRecouvrable,
		VerifiedAt:         e.VerifiedAt,
		CreatedAt:          e.CreatedAt,
	}
}

// EMACAnomalyResponse is one reconciliation finding.
type EMACAnomalyResponse struct {
	ID             uuid.UUID       `json:"id"`
	EMACID         uuid.UUID       `json:"emac_id"`
	Kind           string          `json:"kind"`
	Severity       string          `json:"severity"`
	Description    string          `json:"description"`
	MontantEcart   decimal.Decimal `json:"montant_ecart"`
	ActionSuggeree string          `json:"action_suggeree"`
	Resolu         bool            `json:"resolu"`
}

// ToEMACAnomalyResponse maps a finding to its response.
func ToEMACAnomalyResponse(a *emac.Anomaly) EMACAnomalyResponse {
	return EMACAnomalyResponse{
		ID:             a.ID,
		EMACID:         a.EMACID,
		Kind:           string(a.Kind),
		Severity:       string(a.Severity),
		Description:    a.Description,
		MontantEcart:   a.MontantEcart,
		ActionSuggeree: a.ActionSuggeree,
		Resolu:         a.Resolu,
	}
}

// VerificationResult bundles the reconciled statement and its findings.
type VerificationResult struct {
	EMAC      EMACResponse          `json:"emac"`
	Anomalies []EMACAnomalyResponse `json:"anomalies"`
}

// TriangleResponse is the three-way view: declared figures, invoice reality
// and the schedule expectation for the period.
type TriangleResponse struct {
	EMACID             uuid.UUID       `json:"emac_id"`
	LaboratoryID       uuid.UUID       `json:"laboratory_id"`
	PeriodStart        time.Time       `json:"period_start"`
	PeriodEnd          time.Time       `json:"period_end"`
	DeclaredCA         decimal.Decimal `json:"declared_ca"`
	InvoicedCA         decimal.Decimal `json:"invoiced_ca"`
	EcartCA            decimal.Decimal `json:"ecart_ca"`
	DeclaredRFA        decimal.Decimal `json:"declared_rfa"`
	ExpectedRFA        decimal.Decimal `json:"expected_rfa"`
	ScheduledRFA       decimal.Decimal `json:"scheduled_rfa"`
	EcartRFA           decimal.Decimal `json:"ecart_rfa"`
	Status             string          `json:"statut"`
	MontantRecouvrable decimal.Decimal `json:"montant_recouvrable"`
}

// MissingEMACResponse flags a month with invoices but no statement.
type MissingEMACResponse struct {
	LaboratoryID   uuid.UUID       `json:"laboratory_id"`
	LaboratoryName string          `json:"laboratory_name"`
	Year           int             `json:"year"`
	Month          int             `json:"month"`
	PeriodStart    time.Time       `json:"period_start"`
	PeriodEnd      time.Time       `json:"period_end"`
	InvoiceCount   int             `json:"invoice_count"`
	CA             decimal.Decimal `json:"ca"`
}
