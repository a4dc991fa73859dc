package invoice

import (
	"github.com/shopspring/decimal"

	"github.com/rfa/backend/internal/domain/shared/valueobject"
)

// Classification rule constants. Exported as named values so the rules can
// evolve without touching the classifier itself.
var (
	// TVAEligible is the VAT rate (percent) of reimbursable products.
	TVAEligible = decimal.NewFromFloat(2.10)
	// TVATolerance is the acceptance window around TVAEligible.
	TVATolerance = decimal.NewFromFloat(0.01)
	// TrancheAMaxRemise is the headline-discount ceiling (percent, inclusive)
	// under which a reimbursable line falls in tranche A.
	TrancheAMaxRemise = decimal.NewFromFloat(2.5)
)

// IsReimbursableVAT reports whether a VAT rate marks a reimbursable product.
func IsReimbursableVAT(tauxTVA decimal.Decimal) bool {
	return tauxTVA.Sub(TVAEligible).Abs().LessThanOrEqual(TVATolerance)
}

// ClassifyLine assigns the tranche for a line from its VAT rate and headline
// discount. Pure and idempotent: classifying twice yields the same result.
func ClassifyLine(tauxTVA, remisePct decimal.Decimal) Tranche {
	if !IsReimbursableVAT(tauxTVA) {
		return TrancheOTC
	}
	if remisePct.LessThanOrEqual(TrancheAMaxRemise) {
		return TrancheA
	}
	return TrancheB
}

// Classify fills the line's derived fields: tranche, montant_brut
// (catalog price x quantity) and montant_remise (brut minus net).
func (l *InvoiceLine) Classify() {
	l.Tranche = ClassifyLine(l.TauxTVA, l.RemisePct)
	l.MontantBrut = valueobject.RoundHalfUp(l.PuHT.Mul(decimal.NewFromInt(int64(l.Quantity))))
	l.MontantRemise = valueobject.RoundHalfUp(l.MontantBrut.Sub(l.MontantHT))
}
