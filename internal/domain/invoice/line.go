package invoice

import (
	"regexp"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rfa/backend/internal/domain/shared"
)

// Tranche classifies an invoice line for rebate purposes.
type Tranche string

const (
	TrancheA   Tranche = "A"   // reimbursable, low headline discount
	TrancheB   Tranche = "B"   // reimbursable, standard discount
	TrancheOTC Tranche = "OTC" // non-reimbursable, excluded from the RFA base
)

// IsValid checks if the tranche is a valid value
func (t Tranche) IsValid() bool {
	return t == TrancheA || t == TrancheB || t == TrancheOTC
}

// cip13Pattern matches French-market 13-digit product codes (prefix 34 or 36).
var cip13Pattern = regexp.MustCompile(`^(34|36)\d{11}$`)

// ValidCIP13 reports whether the code is a well-formed CIP13.
func ValidCIP13(code string) bool {
	return cip13Pattern.MatchString(code)
}

// InvoiceLine is one product line of a laboratory invoice. PuHT is the
// catalog unit price, PuAfterRemise the unit price after the line discount,
// MontantHT the extended net amount as printed by the vendor. MontantBrut,
// MontantRemise and Tranche are derived at classification time.
type InvoiceLine struct {
	ID            uuid.UUID       `json:"id"`
	InvoiceID     uuid.UUID       `json:"invoice_id"`
	CIP13         string          `json:"cip13"`
	Designation   string          `json:"designation"`
	Lot           string          `json:"lot"`
	Quantity      int             `json:"quantity"`
	PuHT          decimal.Decimal `json:"pu_ht"`
	RemisePct     decimal.Decimal `json:"remise_pct"`
	PuAfterRemise decimal.Decimal `json:"pu_after_remise"`
	MontantHT     decimal.Decimal `json:"montant_ht"`
	TauxTVA       decimal.Decimal `json:"taux_tva"`
	MontantBrut   decimal.Decimal `json:"montant_brut"`
	MontantRemise decimal.Decimal `json:"montant_remise"`
	Tranche       Tranche         `json:"tranche"`
}

// NewInvoiceLine creates a line with vendor-declared values. Derived fields
// are filled by Classify.
func NewInvoiceLine(cip13, designation string, quantity int, puHT, remisePct, puAfterRemise, montantHT, tauxTVA decimal.Decimal) (*InvoiceLine, error) {
	if !ValidCIP13(cip13) {
		return nil, shared.NewDomainError("INVALID_CIP13", "CIP13 must be 13 digits starting with 34 or 36")
	}
	if quantity <= 0 {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "Line quantity must be positive")
	}
	if puHT.IsNegative() {
		return nil, shared.NewDomainError("INVALID_UNIT_PRICE", "Unit price cannot be negative")
	}

	return &InvoiceLine{
		ID:            uuid.New(),
		CIP13:         cip13,
		Designation:   designation,
		Quantity:      quantity,
		PuHT:          puHT,
		RemisePct:     remisePct,
		PuAfterRemise: puAfterRemise,
		MontantHT:     montantHT,
		TauxTVA:       tauxTVA,
	}, nil
}

// IsFreeGood reports whether the line is a free-goods companion line
// (zero-priced or 100%-discounted).
func (l *InvoiceLine) IsFreeGood() bool {
	return l.PuAfterRemise.IsZero() || l.RemisePct.GreaterThanOrEqual(decimal.NewFromInt(100))
}
