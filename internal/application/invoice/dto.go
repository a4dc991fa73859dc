package invoice

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rfa/backend/internal/domain/invoice"
	csvimport "github.com/rfa/backend/internal/infrastructure/import"
)

// ImportLineRequest is one normalized invoice line from the upload.
type ImportLineRequest struct {
	CIP13         string `json:"cip13" binding:"required,len=13"`
	Designation   string `json:"designation" binding:"required,max=300"`
	Lot           string `json:"lot" binding:"max=50"`
	Quantity      int    `json:"quantity" binding:"required,gt=0"`
	PuHT          string `json:"pu_ht" binding:"required"`
	RemisePct     string `json:"remise_pct"`
	PuAfterRemise string `json:"pu_after_remise" binding:"required"`
	MontantHT     string `json:"montant_ht" binding:"required"`
	TauxTVA       string `json:"taux_tva" binding:"required"`
}

// ImportInvoiceRequest represents a request to import a vendor invoice.
type ImportInvoiceRequest struct {
	LaboratoryID uuid.UUID           `json:"laboratory_id" binding:"required"`
	Number       string              `json:"number" binding:"required,max=100"`
	InvoiceDate  time.Time           `json:"invoice_date" binding:"required"`
	BrutHT       string              `json:"brut_ht"`
	NetHT        string              `json:"net_ht"`
	TotalTVA     string              `json:"total_tva"`
	TTC          string              `json:"ttc"`
	PaymentMode  string              `json:"payment_mode" binding:"max=50"`
	PaymentDelay string              `json:"payment_delay" binding:"max=100"`
	Lines        []ImportLineRequest `json:"lines" binding:"required,min=1,dive"`
}

// CSVInvoiceFailure reports one invoice that could not be imported from an
// otherwise accepted file.
type CSVInvoiceFailure struct {
	Laboratory string `json:"laboratory"`
	Number     string `json:"number"`
	Error      string `json:"error"`
}

// CSVImportResult summarizes the processing of one uploaded invoice file.
type CSVImportResult struct {
	SessionID  uuid.UUID             `json:"session_id"`
	FileName   string                `json:"file_name"`
	TotalRows  int                   `json:"total_rows"`
	ValidRows  int                   `json:"valid_rows"`
	ErrorRows  int                   `json:"error_rows"`
	RowErrors  []csvimport.RowError  `json:"row_errors,omitempty"`
	Imported   []InvoiceResponse     `json:"imported,omitempty"`
	Failures   []CSVInvoiceFailure   `json:"failures,omitempty"`
	ArchiveKey string                `json:"archive_key,omitempty"`
}

// ResolveAnomalyRequest carries the resolution note.
type ResolveAnomalyRequest struct {
	Note string `json:"note" binding:"required,max=1000"`
}

// InvoiceLineResponse is the public view of an invoice line.
type InvoiceLineResponse struct {
	ID            uuid.UUID       `json:"id"`
	CIP13         string          `json:"cip13"`
	Designation   string          `json:"designation"`
	Lot           string          `json:"lot,omitempty"`
	Quantity      int             `json:"quantity"`
	PuHT          decimal.Decimal `json:"pu_ht"`
	RemisePct     decimal.Decimal `json:"remise_pct"`
	PuAfterRemise decimal.Decimal `json:"pu_after_remise"`
	MontantHT     decimal.Decimal `json:"montant_ht"`
	TauxTVA       decimal.Decimal `json:"taux_tva"`
	MontantBrut   decimal.Decimal `json:"montant_brut"`
	MontantRemise decimal.Decimal `json:"montant_remise"`
	Tranche       string          `json:"tranche"`
}

// InvoiceResponse is the public view of an imported invoice.
type InvoiceResponse struct {
	ID           uuid.UUID             `json:"id"`
	LaboratoryID uuid.UUID             `json:"laboratory_id"`
	Number       string                `json:"number"`
	InvoiceDate  time.Time             `json:"invoice_date"`
	BrutHT       decimal.Decimal       `json:"brut_ht"`
	NetHT        decimal.Decimal       `json:"net_ht"`
	TotalTVA     decimal.Decimal       `json:"total_tva"`
	TTC          decimal.Decimal       `json:"ttc"`
	PaymentMode  string                `json:"payment_mode,omitempty"`
	PaymentDelay string                `json:"payment_delay,omitempty"`
	ABrut        decimal.Decimal       `json:"a_brut"`
	ARemise      decimal.Decimal       `json:"a_remise"`
	BBrut        decimal.Decimal       `json:"b_brut"`
	BRemise      decimal.Decimal       `json:"b_remise"`
	OTCBrut      decimal.Decimal       `json:"otc_brut"`
	OTCRemise    decimal.Decimal       `json:"otc_remise"`
	Status       string                `json:"status"`
	Lines        []InvoiceLineResponse `json:"lines,omitempty"`
	CreatedAt    time.Time             `json:"created_at"`
}

// AnomalyResponse is the public view of a verification anomaly.
type AnomalyResponse struct {
	ID             uuid.UUID       `json:"id"`
	InvoiceID      uuid.UUID       `json:"invoice_id"`
	Kind           string          `json:"kind"`
	Severity       string          `json:"severity"`
	Description    string          `json:"description"`
	MontantEcart   decimal.Decimal `json:"montant_ecart"`
	ActionSuggeree string          `json:"action_suggeree"`
	Resolu         bool            `json:"resolu"`
	ResolutionNote string          `json:"resolution_note,omitempty"`
	ResolvedAt     *time.Time      `json:"resolved_at,omitempty"`
}

// VerificationReport is the outcome of running the verifier on one invoice.
type VerificationReport struct {
	InvoiceID           uuid.UUID         `json:"invoice_id"`
	Status              string            `json:"status"`
	Anomalies           []AnomalyResponse `json:"anomalies"`
	CriticalCount       int               `json:"critical_count"`
	WarningCount        int               `json:"warning_count"`
	OpportunityCount    int               `json:"opportunity_count"`
	InfoCount           int               `json:"info_count"`
	RecoverableEstimate decimal.Decimal   `json:"recoverable_estimate"`
	AgreementApplied    bool              `json:"agreement_applied"`
	VerifiedAt          time.Time         `json:"verified_at"`
}

// ToInvoiceResponse maps an invoice aggregate to its response.
func ToInvoiceResponse(inv *invoice.LaboInvoice, withLines bool) InvoiceResponse {
	resp := InvoiceResponse{
		ID:           inv.ID,
		LaboratoryID: inv.LaboratoryID,
		Number:       inv.Number,
		InvoiceDate:  inv.InvoiceDate,
		BrutHT:       inv.BrutHT,
		NetHT:        inv.NetHT,
		TotalTVA:     inv.TotalTVA,
		TTC:          inv.TTC,
		PaymentMode:  inv.PaymentMode,
		PaymentDelay: inv.PaymentDelay,
		ABrut:        inv.ABrut,
		ARemise:      inv.ARemise,
		BBrut:        inv.BBrut,
		BRemise:      inv.BRemise,
		OTCBrut:      inv.OTCBrut,
		OTCRemise:    inv.OTCRemise,
		Status:       string(inv.Status),
		CreatedAt:    inv.CreatedAt,
	}
	if withLines {
		resp.Lines = make([]InvoiceLineResponse, 0, len(inv.Lines))
		for i := range inv.Lines {
			resp.Lines = append(resp.Lines, ToInvoiceLineResponse(&inv.Lines[i]))
		}
	}
	return resp
}

// ToInvoiceLineResponse maps a line to its response.
func ToInvoiceLineResponse(l *invoice.InvoiceLine) InvoiceLineResponse {
	return InvoiceLineResponse{
		ID:            l.ID,
		CIP13:         l.CIP13,
		Designation:   l.Designation,
		Lot:           l.Lot,
		Quantity:      l.Quantity,
		PuHT:          l.PuHT,
		RemisePct:     l.RemisePct,
		PuAfterRemise: l.PuAfterRemise,
		MontantHT:     l.MontantHT,
		TauxTVA:       l.TauxTVA,
		MontantBrut:   l.MontantBrut,
		MontantRemise: l.MontantRemise,
		Tranche:       string(l.Tranche),
	}
}

// ToAnomalyResponse maps an anomaly aggregate to its response.
func ToAnomalyResponse(a *invoice.Anomaly) AnomalyResponse {
	return AnomalyResponse{
		ID:             a.ID,
		InvoiceID:      a.InvoiceID,
		Kind:           string(a.Kind),
		Severity:       string(a.Severity),
		Description:    a.Description,
		MontantEcart:   a.MontantEcart,
		ActionSuggeree: a.ActionSuggeree,
		Resolu:         a.Resolu,
		ResolutionNote: a.ResolutionNote,
		ResolvedAt:     a.ResolvedAt,
	}
}
