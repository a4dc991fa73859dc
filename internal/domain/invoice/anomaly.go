package invoice

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rfa/backend/internal/domain/shared"
)

// AnomalyKind identifies which verifier check produced the anomaly.
type AnomalyKind string

const (
	AnomalyKindRemiseTranche   AnomalyKind = "REMISE_TRANCHE"    // check 1: per-tranche discount off target
	AnomalyKindEscompte        AnomalyKind = "ESCOMPTE"          // check 2: prompt-payment discount not taken
	AnomalyKindFranco          AnomalyKind = "FRANCO"            // check 3: order under/near franco threshold
	AnomalyKindRFAProgression  AnomalyKind = "RFA_PROGRESSION"   // check 4: close to the next RFA tier
	AnomalyKindFreeGoods       AnomalyKind = "UG_MANQUANTES"     // check 5: missing free-goods lines
	AnomalyKindTVAIncoherence  AnomalyKind = "TVA_TRANCHE"       // check 6: VAT/tranche mismatch
	AnomalyKindLineArithmetic  AnomalyKind = "LIGNE_ARITHMETIQUE" // check 7: line identities broken
)

// AnomalySeverity ranks anomalies. Opportunity marks money the pharmacy can
// still claim, not a vendor fault.
type AnomalySeverity string

const (
	SeverityCritical    AnomalySeverity = "CRITICAL"
	SeverityWarning     AnomalySeverity = "WARNING"
	SeverityOpportunity AnomalySeverity = "OPPORTUNITY"
	SeverityInfo        AnomalySeverity = "INFO"
)

// IsValid checks if the severity is a valid value
func (s AnomalySeverity) IsValid() bool {
	switch s {
	case SeverityCritical, SeverityWarning, SeverityOpportunity, SeverityInfo:
		return true
	}
	return false
}

// Anomaly is one finding of the invoice verifier. Anomalies are first-class
// output, not errors: they never fail the verification request.
type Anomaly struct {
	shared.TenantAggregateRoot
	InvoiceID      uuid.UUID       `json:"invoice_id"`
	Kind           AnomalyKind     `json:"kind"`
	Severity       AnomalySeverity `json:"severity"`
	Description    string          `json:"description"`
	MontantEcart   decimal.Decimal `json:"montant_ecart"`
	ActionSuggeree string          `json:"action_suggeree"`
	Resolu         bool            `json:"resolu"`
	ResolutionNote string          `json:"resolution_note"`
	ResolvedAt     *time.Time      `json:"resolved_at"`
}

// NewAnomaly creates an unresolved anomaly for an invoice.
func NewAnomaly(tenantID, invoiceID uuid.UUID, kind AnomalyKind, severity AnomalySeverity, description string, montantEcart decimal.Decimal, action string) Anomaly {
	return Anomaly{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		InvoiceID:           invoiceID,
		Kind:                kind,
		Severity:            severity,
		Description:         description,
		MontantEcart:        montantEcart,
		ActionSuggeree:      action,
	}
}

// Resolve marks the anomaly handled with a note. Resolved anomalies survive
// re-verification.
func (a *Anomaly) Resolve(note string) error {
	if a.Resolu {
		return shared.NewDomainError("ALREADY_RESOLVED", "Anomaly is already resolved")
	}
	now := time.Now()
	a.Resolu = true
	a.ResolutionNote = note
	a.ResolvedAt = &now
	a.UpdatedAt = now
	a.IncrementVersion()
	return nil
}
