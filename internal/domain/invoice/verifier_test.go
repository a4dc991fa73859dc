package invoice

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newTestInvoice(t *testing.T) *LaboInvoice {
	t.Helper()
	inv, err := NewLaboInvoice(uuid.New(), uuid.New(), "FAC-2026-042", time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	return inv
}

func findByKind(anomalies []Anomaly, kind AnomalyKind) []Anomaly {
	var out []Anomaly
	for _, a := range anomalies {
		if a.Kind == kind {
			out = append(out, a)
		}
	}
	return out
}

func TestVerifierTrancheRateGap(t *testing.T) {
	inv := newTestInvoice(t)
	inv.ABrut = dec("1000")
	inv.ARemise = dec("22") // 2.2% realized vs 2.7% target
	terms := &AgreementTerms{
		TargetRateA:   dec("2.7"),
		TargetRateB:   dec("30"),
		TargetRateOTC: dec("0"),
	}

	anomalies := NewVerifier().Verify(inv, terms)

	found := findByKind(anomalies, AnomalyKindRemiseTranche)
	require.Len(t, found, 1)
	assert.Equal(t, SeverityCritical, found[0].Severity)
	assert.True(t, found[0].MontantEcart.Equal(dec("5.00")), "gap: %s", found[0].MontantEcart)
}

func TestVerifierTrancheRateWithinTolerance(t *testing.T) {
	inv := newTestInvoice(t)
	inv.BBrut = dec("2000")
	inv.BRemise = dec("596") // 29.8% vs 30% target, 0.2pp off
	terms := &AgreementTerms{TargetRateB: dec("30")}

	anomalies := NewVerifier().Verify(inv, terms)
	assert.Empty(t, findByKind(anomalies, AnomalyKindRemiseTranche))
}

func TestVerifierEscompteOpportunity(t *testing.T) {
	inv := newTestInvoice(t)
	inv.NetHT = dec("5000")
	inv.PaymentDelay = "30 jours"
	terms := &AgreementTerms{
		EscompteApplicable: true,
		EscompteRate:       dec("2"),
		EscompteDelayDays:  30,
	}

	anomalies := NewVerifier().Verify(inv, terms)

	found := findByKind(anomalies, AnomalyKindEscompte)
	require.Len(t, found, 1)
	assert.Equal(t, SeverityOpportunity, found[0].Severity)
	assert.True(t, found[0].MontantEcart.Equal(dec("100.00")), "amount: %s", found[0].MontantEcart)
}

func TestVerifierEscompteDelayTooLong(t *testing.T) {
	inv := newTestInvoice(t)
	inv.NetHT = dec("5000")
	inv.PaymentDelay = "60 jours fin de mois"
	terms := &AgreementTerms{
		EscompteApplicable: true,
		EscompteRate:       dec("2"),
		EscompteDelayDays:  30,
	}

	anomalies := NewVerifier().Verify(inv, terms)
	assert.Empty(t, findByKind(anomalies, AnomalyKindEscompte))
}

func TestParsePaymentDelay(t *testing.T) {
	tests := []struct {
		text string
		days int
		ok   bool
	}{
		{"30 jours", 30, true},
		{"30 jours fin de mois", 30, true},
		{"comptant", 0, false},
		{"45j net", 45, true},
		{"", 0, false},
	}
	for _, tt := range tests {
		days, ok := parsePaymentDelay(tt.text)
		assert.Equal(t, tt.ok, ok, tt.text)
		assert.Equal(t, tt.days, days, tt.text)
	}
}

func TestVerifierFrancoUnderThreshold(t *testing.T) {
	inv := newTestInvoice(t)
	inv.BrutHT = dec("400")
	terms := &AgreementTerms{
		FrancoThreshold:  dec("500"),
		ShippingFeeEstim: dec("15.00"),
	}

	anomalies := NewVerifier().Verify(inv, terms)

	found := findByKind(anomalies, AnomalyKindFranco)
	require.Len(t, found, 1)
	assert.Equal(t, SeverityOpportunity, found[0].Severity)
	assert.True(t, found[0].MontantEcart.Equal(dec("15.00")))
}

func TestVerifierFrancoJustAbove(t *testing.T) {
	inv := newTestInvoice(t)
	inv.BrutHT = dec("520") // within 10% above the 500 threshold
	terms := &AgreementTerms{FrancoThreshold: dec("500")}

	anomalies := NewVerifier().Verify(inv, terms)

	found := findByKind(anomalies, AnomalyKindFranco)
	require.Len(t, found, 1)
	assert.Equal(t, SeverityInfo, found[0].Severity)
}

func TestVerifierFrancoComfortablyAbove(t *testing.T) {
	inv := newTestInvoice(t)
	inv.BrutHT = dec("800")
	terms := &AgreementTerms{FrancoThreshold: dec("500")}

	anomalies := NewVerifier().Verify(inv, terms)
	assert.Empty(t, findByKind(anomalies, AnomalyKindFranco))
}

func TestVerifierRFAProgressionNearNextTier(t *testing.T) {
	max1 := dec("50000")
	inv := newTestInvoice(t)
	terms := &AgreementTerms{
		Tiers: []RevenueTier{
			{Min: dec("0"), Max: &max1, Rate: dec("2")},
			{Min: dec("50000"), Rate: dec("3")},
		},
		YearCumulativeBrut: dec("48000"), // 2000 short, within 10% of 50000
	}

	anomalies := NewVerifier().Verify(inv, terms)

	found := findByKind(anomalies, AnomalyKindRFAProgression)
	require.Len(t, found, 1)
	assert.Equal(t, SeverityInfo, found[0].Severity)
	// extra RFA at the higher rate on the current cumulative: 48000 x 1% = 480
	assert.True(t, found[0].MontantEcart.Equal(dec("480.00")), "extra: %s", found[0].MontantEcart)
}

func TestVerifierRFAProgressionFarFromTier(t *testing.T) {
	max1 := dec("50000")
	inv := newTestInvoice(t)
	terms := &AgreementTerms{
		Tiers: []RevenueTier{
			{Min: dec("0"), Max: &max1, Rate: dec("2")},
			{Min: dec("50000"), Rate: dec("3")},
		},
		YearCumulativeBrut: dec("20000"),
	}

	anomalies := NewVerifier().Verify(inv, terms)
	assert.Empty(t, findByKind(anomalies, AnomalyKindRFAProgression))
}

func TestVerifierFreeGoodsMissing(t *testing.T) {
	inv := newTestInvoice(t)
	line, err := NewInvoiceLine("3400900000017", "DOLIPRANE 1000MG", 23,
		dec("4.50"), dec("0"), dec("4.50"), dec("103.50"), dec("2.10"))
	require.NoError(t, err)
	inv.AddLine(line)
	inv.ClassifyLines()

	terms := &AgreementTerms{
		FreeGoodsEnabled:   true,
		FreeGoodsBuy:       10,
		FreeGoodsFree:      1,
		FreeGoodsThreshold: 10,
	}

	anomalies := NewVerifier().Verify(inv, terms)

	found := findByKind(anomalies, AnomalyKindFreeGoods)
	require.Len(t, found, 1)
	assert.Equal(t, SeverityOpportunity, found[0].Severity)
	// 23 // 10 = 2 free units at 4.50
	assert.True(t, found[0].MontantEcart.Equal(dec("9.00")), "value: %s", found[0].MontantEcart)
}

func TestVerifierFreeGoodsDelivered(t *testing.T) {
	inv := newTestInvoice(t)
	paid, err := NewInvoiceLine("3400900000017", "DOLIPRANE 1000MG", 23,
		dec("4.50"), dec("0"), dec("4.50"), dec("103.50"), dec("2.10"))
	require.NoError(t, err)
	free, err := NewInvoiceLine("3400900000017", "DOLIPRANE 1000MG UG", 2,
		dec("4.50"), dec("100"), dec("0"), dec("0"), dec("2.10"))
	require.NoError(t, err)
	inv.AddLine(paid)
	inv.AddLine(free)
	inv.ClassifyLines()

	terms := &AgreementTerms{
		FreeGoodsEnabled:   true,
		FreeGoodsBuy:       10,
		FreeGoodsFree:      1,
		FreeGoodsThreshold: 10,
	}

	anomalies := NewVerifier().Verify(inv, terms)
	assert.Empty(t, findByKind(anomalies, AnomalyKindFreeGoods))
}

func TestVerifierVATTrancheCoherence(t *testing.T) {
	inv := newTestInvoice(t)
	line, err := NewInvoiceLine("3400900000017", "PRODUIT", 1,
		dec("10.00"), dec("0"), dec("10.00"), dec("10.00"), dec("2.10"))
	require.NoError(t, err)
	inv.AddLine(line)
	inv.Lines[0].Tranche = TrancheOTC // corrupted classification

	anomalies := NewVerifier().Verify(inv, nil)

	found := findByKind(anomalies, AnomalyKindTVAIncoherence)
	require.Len(t, found, 1)
	assert.Equal(t, SeverityCritical, found[0].Severity)
}

func TestVerifierLineArithmetic(t *testing.T) {
	inv := newTestInvoice(t)
	// montant_ht should be 9.80 x 10 = 98.00, vendor printed 95.00
	line, err := NewInvoiceLine("3400900000017", "PRODUIT", 10,
		dec("10.00"), dec("2.0"), dec("9.80"), dec("95.00"), dec("2.10"))
	require.NoError(t, err)
	inv.AddLine(line)
	inv.ClassifyLines()

	anomalies := NewVerifier().Verify(inv, nil)

	found := findByKind(anomalies, AnomalyKindLineArithmetic)
	require.Len(t, found, 1)
	assert.Equal(t, SeverityCritical, found[0].Severity)
}

func TestVerifierNoAgreementRunsDataChecksOnly(t *testing.T) {
	inv := newTestInvoice(t)
	inv.ABrut = dec("1000")
	inv.ARemise = dec("10") // would trip check 1 if an agreement existed
	inv.NetHT = dec("5000")
	inv.PaymentDelay = "30 jours"
	line, err := NewInvoiceLine("3400900000017", "PRODUIT", 10,
		dec("10.00"), dec("2.0"), dec("9.80"), dec("98.00"), dec("2.10"))
	require.NoError(t, err)
	inv.AddLine(line)
	inv.ClassifyLines()

	anomalies := NewVerifier().Verify(inv, nil)
	assert.Empty(t, anomalies)
}

func TestVerifierDeterministic(t *testing.T) {
	inv := newTestInvoice(t)
	inv.ABrut = dec("1000")
	inv.ARemise = dec("22")
	terms := &AgreementTerms{TargetRateA: dec("2.7")}

	first := NewVerifier().Verify(inv, terms)
	second := NewVerifier().Verify(inv, terms)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].Kind, second[i].Kind)
		assert.Equal(t, first[i].Severity, second[i].Severity)
		assert.True(t, first[i].MontantEcart.Equal(second[i].MontantEcart))
	}
}
