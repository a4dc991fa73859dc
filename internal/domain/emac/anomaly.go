package emac

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rfa/backend/internal/domain/shared"
)

// AnomalyKind identifies which reconciliation check produced the finding.
type AnomalyKind string

const (
	AnomalyKindEcartCA        AnomalyKind = "ECART_CA"         // declared CA off the invoice total
	AnomalyKindEcartRFA       AnomalyKind = "ECART_RFA"        // declared RFA off the computed expectation
	AnomalyKindCOPManuel      AnomalyKind = "COP_MANUEL"       // cooperation declared, manual review
	AnomalyKindEscompteFaible AnomalyKind = "ESCOMPTE_FAIBLE"  // escompte advantages below expectation
	AnomalyKindIncoherence    AnomalyKind = "INCOHERENCE"      // internal totals do not add up
)

// AnomalySeverity ranks reconciliation findings.
type AnomalySeverity string

const (
	SeverityCritical AnomalySeverity = "CRITICAL"
	SeverityWarning  AnomalySeverity = "WARNING"
	SeverityInfo     AnomalySeverity = "INFO"
)

// Anomaly is one reconciliation finding on a statement.
type Anomaly struct {
	shared.TenantAggregateRoot
	EMACID         uuid.UUID       `json:"emac_id"`
	Kind           AnomalyKind     `json:"kind"`
	Severity       AnomalySeverity `json:"severity"`
	Description    string          `json:"description"`
	MontantEcart   decimal.Decimal `json:"montant_ecart"`
	ActionSuggeree string          `json:"action_suggeree"`
	Resolu         bool            `json:"resolu"`
	ResolutionNote string          `json:"resolution_note"`
	ResolvedAt     *time.Time      `json:"resolved_at"`
}

// NewAnomaly creates an unresolved reconciliation finding.
func NewAnomaly(tenantID, emacID uuid.UUID, kind AnomalyKind, severity AnomalySeverity, description string, montantEcart decimal.Decimal, action string) Anomaly {
	return Anomaly{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		EMACID:              emacID,
		Kind:                kind,
		Severity:            severity,
		Description:         description,
		MontantEcart:        montantEcart,
		ActionSuggeree:      action,
	}
}

// Resolve marks the finding handled with a note.
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
