package invoice

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyLine(t *testing.T) {
	tests := []struct {
		name      string
		tauxTVA   string
		remisePct string
		want      Tranche
	}{
		{"reimbursable low discount", "2.10", "2.5", TrancheA},
		{"reimbursable boundary inclusive on A", "2.10", "2.50", TrancheA},
		{"reimbursable above boundary", "2.10", "2.51", TrancheB},
		{"reimbursable high discount", "2.10", "30", TrancheB},
		{"vat within tolerance low", "2.09", "1.0", TrancheA},
		{"vat within tolerance high", "2.11", "10", TrancheB},
		{"vat outside tolerance", "2.12", "1.0", TrancheOTC},
		{"standard vat", "20.0", "40", TrancheOTC},
		{"reduced vat", "5.5", "0", TrancheOTC},
		{"zero discount reimbursable", "2.10", "0", TrancheA},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyLine(decimal.RequireFromString(tt.tauxTVA), decimal.RequireFromString(tt.remisePct))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassifyLineIdempotent(t *testing.T) {
	line, err := NewInvoiceLine("3400912345678", "DOLIPRANE 1000MG", 10,
		decimal.RequireFromString("4.50"),
		decimal.RequireFromString("2.0"),
		decimal.RequireFromString("4.41"),
		decimal.RequireFromString("44.10"),
		decimal.RequireFromString("2.10"))
	require.NoError(t, err)

	line.Classify()
	first := *line
	line.Classify()

	assert.Equal(t, first.Tranche, line.Tranche)
	assert.True(t, first.MontantBrut.Equal(line.MontantBrut))
	assert.True(t, first.MontantRemise.Equal(line.MontantRemise))
}

func TestValidCIP13(t *testing.T) {
	assert.True(t, ValidCIP13("3400912345678"))
	assert.True(t, ValidCIP13("3612345678901"))
	assert.False(t, ValidCIP13("1234567890123"))
	assert.False(t, ValidCIP13("340091234567"))
	assert.False(t, ValidCIP13("34009123456789"))
	assert.False(t, ValidCIP13("34009abc45678"))
}

func TestClassifyLinesAggregates(t *testing.T) {
	inv, err := NewLaboInvoice(uuid.New(), uuid.New(), "FAC-2026-001", time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	addLine := func(cip string, qty int, puHT, remisePct, puNet, montantHT, tva string) {
		line, err := NewInvoiceLine(cip, "PRODUIT", qty,
			decimal.RequireFromString(puHT),
			decimal.RequireFromString(remisePct),
			decimal.RequireFromString(puNet),
			decimal.RequireFromString(montantHT),
			decimal.RequireFromString(tva))
		require.NoError(t, err)
		inv.AddLine(line)
	}

	// tranche A: brut 100.00, net 98.00
	addLine("3400900000017", 10, "10.00", "2.0", "9.80", "98.00", "2.10")
	// tranche B: brut 200.00, net 180.00
	addLine("3400900000024", 20, "10.00", "10.0", "9.00", "180.00", "2.10")
	// OTC: brut 50.00, net 50.00
	addLine("3400900000031", 5, "10.00", "0", "10.00", "50.00", "20.0")

	inv.ClassifyLines()

	assert.True(t, inv.ABrut.Equal(decimal.RequireFromString("100.00")), "A brut: %s", inv.ABrut)
	assert.True(t, inv.ARemise.Equal(decimal.RequireFromString("2.00")), "A remise: %s", inv.ARemise)
	assert.True(t, inv.BBrut.Equal(decimal.RequireFromString("200.00")), "B brut: %s", inv.BBrut)
	assert.True(t, inv.BRemise.Equal(decimal.RequireFromString("20.00")), "B remise: %s", inv.BRemise)
	assert.True(t, inv.OTCBrut.Equal(decimal.RequireFromString("50.00")), "OTC brut: %s", inv.OTCBrut)
	assert.True(t, inv.OTCRemise.IsZero(), "OTC remise: %s", inv.OTCRemise)

	// only reimbursable net amounts count toward the RFA base
	assert.True(t, inv.EligibleBase().Equal(decimal.RequireFromString("278.00")), "eligible: %s", inv.EligibleBase())
}
