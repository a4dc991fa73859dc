package emac

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rfa/backend/internal/domain/rebate"
	"github.com/rfa/backend/internal/domain/shared/valueobject"
)

// Reconciliation tolerances and severity ladders. CA deviations escalate at
// 1% and 5%, RFA deviations at 2% and 5%; absolute comparisons allow one
// currency unit of drift.
var (
	UnitTolerance      = decimal.NewFromInt(1)
	CAWarningPct       = decimal.NewFromInt(1)
	CACriticalPct      = decimal.NewFromInt(5)
	RFAWarningPct      = decimal.NewFromInt(2)
	RFACriticalPct     = decimal.NewFromInt(5)
	EscompteFloorRatio = decimal.NewFromFloat(0.5)
)

// ReconcileTerms is the reconciler's view of the active agreement, mapped by
// the application layer from the rebate context. Nil terms skip the
// agreement-dependent check 2.
type ReconcileTerms struct {
	Tiers              rebate.Tiers
	EscompteApplicable bool
	EscompteRate       decimal.Decimal // percent
	AnnualCumulative   decimal.Decimal // tenant-scoped cumulative for the year of period start
}

// Reconciler crosschecks one statement against the invoices of its period
// and the agreement in force.
type Reconciler struct{}

// NewReconciler creates a Reconciler.
func NewReconciler() *Reconciler {
	return &Reconciler{}
}

// Reconcile runs the three crosschecks, fills the statement's computed
// fields and derives its status. Returns the findings; deterministic for
// identical inputs.
func (r *Reconciler) Reconcile(e *EMAC, caReel decimal.Decimal, invoiceCount int, terms *ReconcileTerms) []Anomaly {
	var anomalies []Anomaly

	anomalies = append(anomalies, r.checkDeclaredCA(e, caReel, invoiceCount)...)
	if terms != nil {
		anomalies = append(anomalies, r.checkAdvantages(e, caReel, terms)...)
	}
	anomalies = append(anomalies, r.checkCoherence(e)...)

	r.finalize(e, anomalies)
	return anomalies
}

// checkDeclaredCA compares the declared revenue with the invoice total of
// the period (check 1).
func (r *Reconciler) checkDeclaredCA(e *EMAC, caReel decimal.Decimal, invoiceCount int) []Anomaly {
	e.CAReel = caReel
	e.NbInvoicesMatched = invoiceCount
	e.EcartCA = valueobject.RoundHalfUp(e.DeclaredCA.Sub(caReel))

	if caReel.IsZero() && e.DeclaredCA.IsPositive() {
		e.EcartCAPct = decimal.NewFromInt(100)
		return []Anomaly{NewAnomaly(e.TenantID, e.ID,
			AnomalyKindEcartCA, SeverityCritical,
			fmt.Sprintf("CA déclaré de %s€ mais aucune facture trouvée sur la période", e.DeclaredCA.Round(2)),
			e.EcartCA,
			"Vérifier que les factures de la période ont bien été importées")}
	}

	if !e.DeclaredCA.IsPositive() {
		e.EcartCAPct = decimal.Zero
		return nil
	}

	e.EcartCAPct = valueobject.RoundHalfUp(e.EcartCA.Abs().Div(e.DeclaredCA).Mul(decimal.NewFromInt(100)))
	if e.EcartCA.IsZero() {
		return nil
	}

	severity := SeverityInfo
	switch {
	case e.EcartCAPct.GreaterThanOrEqual(CACriticalPct):
		severity = SeverityCritical
	case e.EcartCAPct.GreaterThanOrEqual(CAWarningPct):
		severity = SeverityWarning
	}
	return []Anomaly{NewAnomaly(e.TenantID, e.ID,
		AnomalyKindEcartCA, severity,
		fmt.Sprintf("CA déclaré %s€ contre %s€ de factures réelles (écart %s%%)",
			e.DeclaredCA.Round(2), caReel.Round(2), e.EcartCAPct),
		e.EcartCA,
		"Rapprocher le relevé des factures de la période")}
}

// checkAdvantages compares declared advantages with the agreement (check 2).
func (r *Reconciler) checkAdvantages(e *EMAC, caReel decimal.Decimal, terms *ReconcileTerms) []Anomaly {
	var out []Anomaly

	base := caReel
	if !base.IsPositive() {
		base = e.DeclaredCA
	}

	if tier := terms.Tiers.FindTier(terms.AnnualCumulative); tier != nil {
		e.RFAAttendue = valueobject.RoundHalfUp(base.Mul(tier.Rate).Div(decimal.NewFromInt(100)))
		e.EcartRFA = valueobject.RoundHalfUp(e.DeclaredRFA.Sub(e.RFAAttendue))

		if e.EcartRFA.Abs().GreaterThan(UnitTolerance) {
			severity := SeverityInfo
			if e.RFAAttendue.IsPositive() {
				pct := e.EcartRFA.Abs().Div(e.RFAAttendue).Mul(decimal.NewFromInt(100))
				switch {
				case pct.GreaterThanOrEqual(RFACriticalPct):
					severity = SeverityCritical
				case pct.GreaterThanOrEqual(RFAWarningPct):
					severity = SeverityWarning
				}
			}
			out = append(out, NewAnomaly(e.TenantID, e.ID,
				AnomalyKindEcartRFA, severity,
				fmt.Sprintf("RFA déclarée %s€ contre %s€ attendus au palier en vigueur",
					e.DeclaredRFA.Round(2), e.RFAAttendue.Round(2)),
				e.EcartRFA,
				"Contrôler le palier appliqué par le laboratoire"))
		}
	}

	if e.DeclaredCOP.IsPositive() {
		out = append(out, NewAnomaly(e.TenantID, e.ID,
			AnomalyKindCOPManuel, SeverityInfo,
			fmt.Sprintf("Coopération commerciale déclarée de %s€: contrôle manuel requis", e.DeclaredCOP.Round(2)),
			decimal.Zero,
			"Vérifier la contrepartie de coopération sur le contrat"))
	}

	if terms.EscompteApplicable && terms.EscompteRate.IsPositive() {
		expected := valueobject.RoundHalfUp(base.Mul(terms.EscompteRate).Div(decimal.NewFromInt(100)))
		floor := expected.Mul(EscompteFloorRatio)
		if e.OtherAdvantages.LessThan(floor) {
			out = append(out, NewAnomaly(e.TenantID, e.ID,
				AnomalyKindEscompteFaible, SeverityWarning,
				fmt.Sprintf("Autres avantages de %s€ inférieurs à la moitié de l'escompte attendu (%s€)",
					e.OtherAdvantages.Round(2), expected.Round(2)),
				valueobject.RoundHalfUp(expected.Sub(e.OtherAdvantages)),
				"Vérifier que l'escompte négocié est bien appliqué"))
		}
	}
	return out
}

// checkCoherence verifies the statement's internal arithmetic (check 3).
func (r *Reconciler) checkCoherence(e *EMAC) []Anomaly {
	var out []Anomaly

	sum := e.DeclaredRFA.Add(e.DeclaredCOP).Add(e.DeclaredDiffered).Add(e.OtherAdvantages)
	if sum.Sub(e.TotalDeclared).Abs().GreaterThan(UnitTolerance) {
		out = append(out, NewAnomaly(e.TenantID, e.ID,
			AnomalyKindIncoherence, SeverityWarning,
			fmt.Sprintf("Total des avantages déclarés %s€ différent de la somme des postes %s€",
				e.TotalDeclared.Round(2), sum.Round(2)),
			valueobject.RoundHalfUp(sum.Sub(e.TotalDeclared)),
			"Demander un relevé corrigé au laboratoire"))
	}

	expectedBalance := decimal.Max(decimal.Zero, e.TotalDeclared.Sub(e.AmountPaid))
	if expectedBalance.Sub(e.RemainingBalance).Abs().GreaterThan(UnitTolerance) {
		out = append(out, NewAnomaly(e.TenantID, e.ID,
			AnomalyKindIncoherence, SeverityWarning,
			fmt.Sprintf("Solde restant déclaré %s€ au lieu de %s€",
				e.RemainingBalance.Round(2), expectedBalance.Round(2)),
			valueobject.RoundHalfUp(expectedBalance.Sub(e.RemainingBalance)),
			"Demander un relevé corrigé au laboratoire"))
	}
	return out
}

// finalize derives the statement status, summary and recoverable estimate
// from the findings.
func (r *Reconciler) finalize(e *EMAC, anomalies []Anomaly) {
	now := time.Now()
	e.NbAnomalies = len(anomalies)
	e.VerifiedAt = &now

	recoverable := decimal.Zero
	var parts []string
	status := StatusConforme
	for _, a := range anomalies {
		parts = append(parts, fmt.Sprintf("[%s] %s", a.Severity, a.Description))
		switch a.Severity {
		case SeverityCritical:
			status = StatusAnomalie
		case SeverityWarning:
			if status != StatusAnomalie {
				status = StatusEcartDetecte
			}
		}
		// money the pharmacy can still claim: declared short of expectation
		if a.Kind == AnomalyKindEcartRFA && a.MontantEcart.IsNegative() {
			recoverable = recoverable.Add(a.MontantEcart.Abs())
		}
		if a.Kind == AnomalyKindEscompteFaible && a.MontantEcart.IsPositive() {
			recoverable = recoverable.Add(a.MontantEcart)
		}
	}
	e.Status = status
	e.AnomaliesResume = strings.Join(parts, "\n")
	e.MontantRecouvrable = valueobject.RoundHalfUp(recoverable)
	e.UpdatedAt = now
	e.IncrementVersion()
}
