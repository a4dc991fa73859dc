package invoice

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/rfa/backend/internal/domain/shared/valueobject"
)

// Verifier tolerances. Monetary identities allow two cents of drift, rates
// half a percentage point, thresholds a 10% proximity band.
var (
	VerifyAmountTolerance = decimal.NewFromFloat(0.02)
	VerifyRateTolerance   = decimal.NewFromFloat(0.5)
	ProximityPct          = decimal.NewFromFloat(10)
)

// RevenueTier is one RFA revenue bracket as seen by the verifier. Max nil
// means an open-ended top tier. Rate is a percent value.
type RevenueTier struct {
	Min   decimal.Decimal
	Max   *decimal.Decimal
	Rate  decimal.Decimal
	Label string
}

// AgreementTerms is the verifier's view of the active agreement, mapped by
// the application layer from the rebate context. A nil terms pointer means
// no active agreement: only the agreement-independent checks (6, 7) run.
type AgreementTerms struct {
	TargetRateA   decimal.Decimal // percent
	TargetRateB   decimal.Decimal
	TargetRateOTC decimal.Decimal

	EscompteApplicable bool
	EscompteRate       decimal.Decimal // percent
	EscompteDelayDays  int

	FrancoThreshold  decimal.Decimal
	ShippingFeeEstim decimal.Decimal

	FreeGoodsEnabled   bool
	FreeGoodsBuy       int // N of "N+M"
	FreeGoodsFree      int // M of "N+M"
	FreeGoodsThreshold int // minimum line quantity triggering free goods

	Tiers              []RevenueTier
	YearCumulativeBrut decimal.Decimal // tenant-scoped yearly cumulative for this laboratory
}

// Verifier runs the compliance checks of one invoice against the active
// agreement. Pure: it reads its inputs and returns anomalies, nothing else.
type Verifier struct{}

// NewVerifier creates a Verifier.
func NewVerifier() *Verifier {
	return &Verifier{}
}

// Verify runs all applicable checks and returns the anomalies found.
// Deterministic and idempotent for unchanged inputs.
func (v *Verifier) Verify(inv *LaboInvoice, terms *AgreementTerms) []Anomaly {
	var anomalies []Anomaly

	if terms != nil {
		anomalies = append(anomalies, v.checkTrancheRates(inv, terms)...)
		anomalies = append(anomalies, v.checkEscompte(inv, terms)...)
		anomalies = append(anomalies, v.checkFranco(inv, terms)...)
		anomalies = append(anomalies, v.checkRFAProgression(inv, terms)...)
		anomalies = append(anomalies, v.checkFreeGoods(inv, terms)...)
	}
	anomalies = append(anomalies, v.checkVATCoherence(inv)...)
	anomalies = append(anomalies, v.checkLineArithmetic(inv)...)

	return anomalies
}

// checkTrancheRates compares the realized discount rate of each tranche
// against the agreement target (check 1).
func (v *Verifier) checkTrancheRates(inv *LaboInvoice, terms *AgreementTerms) []Anomaly {
	var out []Anomaly

	tranches := []struct {
		label  Tranche
		brut   decimal.Decimal
		remise decimal.Decimal
		target decimal.Decimal
	}{
		{TrancheA, inv.ABrut, inv.ARemise, terms.TargetRateA},
		{TrancheB, inv.BBrut, inv.BRemise, terms.TargetRateB},
		{TrancheOTC, inv.OTCBrut, inv.OTCRemise, terms.TargetRateOTC},
	}

	hundred := decimal.NewFromInt(100)
	for _, tr := range tranches {
		if !tr.brut.IsPositive() {
			continue
		}
		tauxReel := tr.remise.Div(tr.brut).Mul(hundred)
		ecart := tauxReel.Sub(tr.target)
		if ecart.Abs().LessThan(VerifyRateTolerance) {
			continue
		}
		gap := valueobject.RoundHalfUp(tr.brut.Mul(ecart.Abs()).Div(hundred))
		out = append(out, NewAnomaly(inv.TenantID, inv.ID,
			AnomalyKindRemiseTranche, SeverityCritical,
			fmt.Sprintf("Tranche %s: taux de remise constaté %s%% au lieu de %s%% négociés",
				tr.label, tauxReel.Round(2), tr.target.Round(2)),
			gap,
			"Réclamer un avoir au laboratoire ou vérifier les conditions négociées"))
	}
	return out
}

var delayPattern = regexp.MustCompile(`\d+`)

// parsePaymentDelay extracts the first integer from a free-text payment delay
// ("30 jours fin de mois" -> 30). Returns false when no number is present.
func parsePaymentDelay(text string) (int, bool) {
	m := delayPattern.FindString(text)
	if m == "" {
		return 0, false
	}
	days, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	return days, true
}

// checkEscompte flags a prompt-payment discount the pharmacy could take
// (check 2).
func (v *Verifier) checkEscompte(inv *LaboInvoice, terms *AgreementTerms) []Anomaly {
	if !terms.EscompteApplicable || !terms.EscompteRate.IsPositive() {
		return nil
	}
	days, ok := parsePaymentDelay(inv.PaymentDelay)
	if !ok || days > terms.EscompteDelayDays {
		return nil
	}

	amount := valueobject.RoundHalfUp(inv.NetHT.Mul(terms.EscompteRate).Div(decimal.NewFromInt(100)))
	return []Anomaly{NewAnomaly(inv.TenantID, inv.ID,
		AnomalyKindEscompte, SeverityOpportunity,
		fmt.Sprintf("Escompte de %s%% applicable pour un paiement sous %d jours (délai facture: %d jours)",
			terms.EscompteRate.Round(2), terms.EscompteDelayDays, days),
		amount,
		"Payer sous le délai d'escompte pour bénéficier de la remise")}
}

// checkFranco warns when the order misses or barely clears the free-shipping
// threshold (check 3).
func (v *Verifier) checkFranco(inv *LaboInvoice, terms *AgreementTerms) []Anomaly {
	if !terms.FrancoThreshold.IsPositive() {
		return nil
	}

	if inv.BrutHT.LessThan(terms.FrancoThreshold) {
		return []Anomaly{NewAnomaly(inv.TenantID, inv.ID,
			AnomalyKindFranco, SeverityOpportunity,
			fmt.Sprintf("Commande de %s€ sous le franco de %s€: frais de port facturables",
				inv.BrutHT.Round(2), terms.FrancoThreshold.Round(2)),
			terms.ShippingFeeEstim,
			"Regrouper les commandes pour atteindre le franco")}
	}

	margin := terms.FrancoThreshold.Mul(ProximityPct).Div(decimal.NewFromInt(100))
	if inv.BrutHT.Sub(terms.FrancoThreshold).LessThanOrEqual(margin) {
		return []Anomaly{NewAnomaly(inv.TenantID, inv.ID,
			AnomalyKindFranco, SeverityInfo,
			fmt.Sprintf("Commande de %s€ juste au-dessus du franco de %s€: un retour produit pourrait le faire repasser dessous",
				inv.BrutHT.Round(2), terms.FrancoThreshold.Round(2)),
			decimal.Zero,
			"Surveiller les retours sur cette commande")}
	}
	return nil
}

// checkRFAProgression signals when the yearly cumulative is close to the next
// RFA tier (check 4).
func (v *Verifier) checkRFAProgression(inv *LaboInvoice, terms *AgreementTerms) []Anomaly {
	if len(terms.Tiers) == 0 {
		return nil
	}

	cumul := terms.YearCumulativeBrut
	var current *RevenueTier
	var next *RevenueTier
	for idx := range terms.Tiers {
		tier := &terms.Tiers[idx]
		if cumul.GreaterThanOrEqual(tier.Min) && (tier.Max == nil || cumul.LessThan(*tier.Max)) {
			current = tier
			if idx+1 < len(terms.Tiers) {
				next = &terms.Tiers[idx+1]
			}
			break
		}
	}
	if current == nil || next == nil {
		return nil
	}

	remaining := next.Min.Sub(cumul)
	margin := next.Min.Mul(ProximityPct).Div(decimal.NewFromInt(100))
	if remaining.GreaterThan(margin) {
		return nil
	}

	extra := valueobject.RoundHalfUp(cumul.Mul(next.Rate.Sub(current.Rate)).Div(decimal.NewFromInt(100)))
	return []Anomaly{NewAnomaly(inv.TenantID, inv.ID,
		AnomalyKindRFAProgression, SeverityInfo,
		fmt.Sprintf("Plus que %s€ de CA pour atteindre le palier RFA suivant (%s%% au lieu de %s%%)",
			remaining.Round(2), next.Rate.Round(2), current.Rate.Round(2)),
		extra,
		"Anticiper les commandes de fin de période pour franchir le palier")}
}

// checkFreeGoods finds paid lines entitled to free goods with no companion
// free line on the same invoice (check 5).
func (v *Verifier) checkFreeGoods(inv *LaboInvoice, terms *AgreementTerms) []Anomaly {
	if !terms.FreeGoodsEnabled || terms.FreeGoodsThreshold <= 0 || terms.FreeGoodsBuy <= 0 {
		return nil
	}

	freeByCIP := make(map[string]bool)
	for idx := range inv.Lines {
		if inv.Lines[idx].IsFreeGood() {
			freeByCIP[inv.Lines[idx].CIP13] = true
		}
	}

	var out []Anomaly
	for idx := range inv.Lines {
		line := &inv.Lines[idx]
		if line.IsFreeGood() || line.Quantity < terms.FreeGoodsThreshold {
			continue
		}
		if freeByCIP[line.CIP13] {
			continue
		}
		expected := (line.Quantity / terms.FreeGoodsBuy) * terms.FreeGoodsFree
		if expected <= 0 {
			continue
		}
		value := valueobject.RoundHalfUp(line.PuHT.Mul(decimal.NewFromInt(int64(expected))))
		out = append(out, NewAnomaly(inv.TenantID, inv.ID,
			AnomalyKindFreeGoods, SeverityOpportunity,
			fmt.Sprintf("%s: %d unités gratuites attendues (%d+%d) non livrées pour %d unités facturées",
				line.Designation, expected, terms.FreeGoodsBuy, terms.FreeGoodsFree, line.Quantity),
			value,
			"Réclamer les unités gratuites prévues à l'accord"))
	}
	return out
}

// checkVATCoherence flags lines whose VAT rate contradicts their tranche
// (check 6). Data-quality signals: no monetary gap attached.
func (v *Verifier) checkVATCoherence(inv *LaboInvoice) []Anomaly {
	var out []Anomaly
	for idx := range inv.Lines {
		line := &inv.Lines[idx]
		reimbursable := IsReimbursableVAT(line.TauxTVA)

		if reimbursable && line.Tranche == TrancheOTC {
			out = append(out, NewAnomaly(inv.TenantID, inv.ID,
				AnomalyKindTVAIncoherence, SeverityCritical,
				fmt.Sprintf("%s: TVA à 2,10%% mais ligne classée OTC", line.Designation),
				decimal.Zero,
				"Vérifier la classification de la ligne"))
		}
		if !reimbursable && line.TauxTVA.GreaterThan(TVAEligible) && (line.Tranche == TrancheA || line.Tranche == TrancheB) {
			out = append(out, NewAnomaly(inv.TenantID, inv.ID,
				AnomalyKindTVAIncoherence, SeverityCritical,
				fmt.Sprintf("%s: TVA à %s%% mais ligne classée %s", line.Designation, line.TauxTVA.Round(2), line.Tranche),
				decimal.Zero,
				"Vérifier la classification de la ligne"))
		}
	}
	return out
}

// checkLineArithmetic verifies the three per-line monetary identities
// (check 7).
func (v *Verifier) checkLineArithmetic(inv *LaboInvoice) []Anomaly {
	var out []Anomaly
	hundred := decimal.NewFromInt(100)

	for idx := range inv.Lines {
		line := &inv.Lines[idx]
		qty := decimal.NewFromInt(int64(line.Quantity))

		expectedPu := line.PuHT.Mul(decimal.NewFromInt(1).Sub(line.RemisePct.Div(hundred)))
		if expectedPu.Sub(line.PuAfterRemise).Abs().GreaterThan(VerifyAmountTolerance) {
			out = append(out, v.arithmeticAnomaly(inv, line,
				fmt.Sprintf("prix unitaire remisé incohérent (%s attendu, %s facturé)",
					expectedPu.Round(4), line.PuAfterRemise.Round(4))))
		}

		expectedHT := line.PuAfterRemise.Mul(qty)
		if expectedHT.Sub(line.MontantHT).Abs().GreaterThan(VerifyAmountTolerance) {
			out = append(out, v.arithmeticAnomaly(inv, line,
				fmt.Sprintf("montant HT incohérent (%s attendu, %s facturé)",
					expectedHT.Round(2), line.MontantHT.Round(2))))
		}

		expectedBrut := line.PuHT.Mul(qty)
		if expectedBrut.Sub(line.MontantBrut).Abs().GreaterThan(VerifyAmountTolerance) {
			out = append(out, v.arithmeticAnomaly(inv, line,
				fmt.Sprintf("montant brut incohérent (%s attendu, %s calculé)",
					expectedBrut.Round(2), line.MontantBrut.Round(2))))
		}
	}
	return out
}

func (v *Verifier) arithmeticAnomaly(inv *LaboInvoice, line *InvoiceLine, detail string) Anomaly {
	return NewAnomaly(inv.TenantID, inv.ID,
		AnomalyKindLineArithmetic, SeverityCritical,
		fmt.Sprintf("%s: %s", line.Designation, detail),
		decimal.Zero,
		"Contrôler la ligne sur la facture papier")
}
