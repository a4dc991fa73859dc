package invoice

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rfa/backend/internal/domain/invoice"
	"github.com/rfa/backend/internal/domain/partner"
	"github.com/rfa/backend/internal/domain/rebate"
	"github.com/rfa/backend/internal/domain/shared"
)

// MockInvoiceRepository is a mock implementation of InvoiceRepository
type MockInvoiceRepository struct {
	mock.Mock
}

func (m *MockInvoiceRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*invoice.LaboInvoice, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*invoice.LaboInvoice), args.Error(1)
}

func (m *MockInvoiceRepository) FindByIDForTenantLocked(ctx context.Context, tenantID, id uuid.UUID) (*invoice.LaboInvoice, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*invoice.LaboInvoice), args.Error(1)
}

func (m *MockInvoiceRepository) FindByNumberForTenant(ctx context.Context, tenantID, laboratoryID uuid.UUID, number string) (*invoice.LaboInvoice, error) {
	args := m.Called(ctx, tenantID, laboratoryID, number)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*invoice.LaboInvoice), args.Error(1)
}

func (m *MockInvoiceRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter invoice.InvoiceFilter) ([]invoice.LaboInvoice, int64, error) {
	args := m.Called(ctx, tenantID, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]invoice.LaboInvoice), args.Get(1).(int64), args.Error(2)
}

func (m *MockInvoiceRepository) Save(ctx context.Context, inv *invoice.LaboInvoice) error {
	args := m.Called(ctx, inv)
	return args.Error(0)
}

func (m *MockInvoiceRepository) YearCumulativeBrut(ctx context.Context, tenantID, laboratoryID uuid.UUID, year int, asOf time.Time) (decimal.Decimal, error) {
	args := m.Called(ctx, tenantID, laboratoryID, year, asOf)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockInvoiceRepository) SumBrutForPeriod(ctx context.Context, tenantID, laboratoryID uuid.UUID, from, to time.Time) (decimal.Decimal, int, error) {
	args := m.Called(ctx, tenantID, laboratoryID, from, to)
	return args.Get(0).(decimal.Decimal), args.Int(1), args.Error(2)
}

func (m *MockInvoiceRepository) MonthlyActivityForYear(ctx context.Context, tenantID uuid.UUID, year int) ([]invoice.MonthlyActivity, error) {
	args := m.Called(ctx, tenantID, year)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]invoice.MonthlyActivity), args.Error(1)
}

// MockAnomalyRepository is a mock implementation of AnomalyRepository
type MockAnomalyRepository struct {
	mock.Mock
}

func (m *MockAnomalyRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*invoice.Anomaly, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*invoice.Anomaly), args.Error(1)
}

func (m *MockAnomalyRepository) FindByInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) ([]invoice.Anomaly, error) {
	args := m.Called(ctx, tenantID, invoiceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]invoice.Anomaly), args.Error(1)
}

func (m *MockAnomalyRepository) DeleteUnresolvedByInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) error {
	args := m.Called(ctx, tenantID, invoiceID)
	return args.Error(0)
}

func (m *MockAnomalyRepository) SaveAll(ctx context.Context, anomalies []invoice.Anomaly) error {
	args := m.Called(ctx, anomalies)
	return args.Error(0)
}

func (m *MockAnomalyRepository) Save(ctx context.Context, anomaly *invoice.Anomaly) error {
	args := m.Called(ctx, anomaly)
	return args.Error(0)
}

// MockLaboratoryRepository is a mock implementation of LaboratoryRepository
type MockLaboratoryRepository struct {
	mock.Mock
}

func (m *MockLaboratoryRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*partner.Laboratory, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*partner.Laboratory), args.Error(1)
}

func (m *MockLaboratoryRepository) FindByNameForTenant(ctx context.Context, tenantID uuid.UUID, name string) (*partner.Laboratory, error) {
	args := m.Called(ctx, tenantID, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*partner.Laboratory), args.Error(1)
}

func (m *MockLaboratoryRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]partner.Laboratory, int64, error) {
	args := m.Called(ctx, tenantID, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]partner.Laboratory), args.Get(1).(int64), args.Error(2)
}

func (m *MockLaboratoryRepository) FindActiveForTenant(ctx context.Context, tenantID uuid.UUID) ([]partner.Laboratory, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]partner.Laboratory), args.Error(1)
}

func (m *MockLaboratoryRepository) Save(ctx context.Context, laboratory *partner.Laboratory) error {
	args := m.Called(ctx, laboratory)
	return args.Error(0)
}

func (m *MockLaboratoryRepository) DeleteForTenant(ctx context.Context, tenantID, id uuid.UUID) error {
	args := m.Called(ctx, tenantID, id)
	return args.Error(0)
}

// MockAgreementRepository is a mock implementation of AgreementRepository
type MockAgreementRepository struct {
	mock.Mock
}

func (m *MockAgreementRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*rebate.LaboratoryAgreement, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*rebate.LaboratoryAgreement), args.Error(1)
}

func (m *MockAgreementRepository) FindActiveForPair(ctx context.Context, tenantID, laboratoryID uuid.UUID) (*rebate.LaboratoryAgreement, error) {
	args := m.Called(ctx, tenantID, laboratoryID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*rebate.LaboratoryAgreement), args.Error(1)
}

func (m *MockAgreementRepository) FindActiveOthersForPair(ctx context.Context, tenantID, laboratoryID, excludeID uuid.UUID) ([]rebate.LaboratoryAgreement, error) {
	args := m.Called(ctx, tenantID, laboratoryID, excludeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]rebate.LaboratoryAgreement), args.Error(1)
}

func (m *MockAgreementRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter rebate.AgreementFilter) ([]rebate.LaboratoryAgreement, int64, error) {
	args := m.Called(ctx, tenantID, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]rebate.LaboratoryAgreement), args.Get(1).(int64), args.Error(2)
}

func (m *MockAgreementRepository) Save(ctx context.Context, agreement *rebate.LaboratoryAgreement) error {
	args := m.Called(ctx, agreement)
	return args.Error(0)
}

func (m *MockAgreementRepository) SaveWithLock(ctx context.Context, agreement *rebate.LaboratoryAgreement) error {
	args := m.Called(ctx, agreement)
	return args.Error(0)
}

// stubTxManager runs the function directly, no transaction semantics.
type stubTxManager struct{}

func (stubTxManager) InTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func newTestService(invRepo *MockInvoiceRepository, anomalyRepo *MockAnomalyRepository, labRepo *MockLaboratoryRepository, agreementRepo *MockAgreementRepository) *InvoiceService {
	return NewInvoiceService(invRepo, anomalyRepo, labRepo, agreementRepo, stubTxManager{}, zap.NewNop())
}

func mustLine(t *testing.T, cip, designation string, qty int, puHT, remise, puAfter, montantHT, tva string) *invoice.InvoiceLine {
	t.Helper()
	line, err := invoice.NewInvoiceLine(cip, designation,
		qty, dec(puHT), dec(remise), dec(puAfter), dec(montantHT), dec(tva))
	require.NoError(t, err)
	return line
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testInvoice(t *testing.T, tenantID, labID uuid.UUID) *invoice.LaboInvoice {
	t.Helper()
	inv, err := invoice.NewLaboInvoice(tenantID, labID, "FAC-2026-042", time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	// consistent arithmetic: 10 x 10.00 at 10% discount
	inv.AddLine(mustLine(t, "3401234567890", "DOLIPRANE 1000MG", 10, "10.00", "10", "9.00", "90.00", "2.10"))
	inv.ClassifyLines()
	inv.BrutHT = dec("100.00")
	inv.NetHT = dec("90.00")
	return inv
}

func testAgreement(t *testing.T, tenantID, labID uuid.UUID, targetB string) *rebate.LaboratoryAgreement {
	t.Helper()
	agreement, err := rebate.NewLaboratoryAgreement(tenantID, labID, "Accord 2026", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	agreement.TargetRateB = dec(targetB)
	require.NoError(t, agreement.Activate())
	return agreement
}

func TestVerifyDiscountGapProducesCriticalAnomaly(t *testing.T) {
	tenantID, labID := uuid.New(), uuid.New()
	inv := testInvoice(t, tenantID, labID)
	lab, err := partner.NewLaboratory(tenantID, "Biogaran")
	require.NoError(t, err)
	// negotiated 15% on tranche B, invoice shows 10%
	agreement := testAgreement(t, tenantID, labID, "15")

	invRepo := new(MockInvoiceRepository)
	anomalyRepo := new(MockAnomalyRepository)
	labRepo := new(MockLaboratoryRepository)
	agreementRepo := new(MockAgreementRepository)

	invRepo.On("FindByIDForTenantLocked", mock.Anything, tenantID, inv.ID).Return(inv, nil)
	labRepo.On("FindByIDForTenant", mock.Anything, tenantID, labID).Return(lab, nil)
	agreementRepo.On("FindActiveForPair", mock.Anything, tenantID, labID).Return(agreement, nil)
	invRepo.On("YearCumulativeBrut", mock.Anything, tenantID, labID, 2026, inv.InvoiceDate).Return(decimal.Zero, nil)
	anomalyRepo.On("DeleteUnresolvedByInvoice", mock.Anything, tenantID, inv.ID).Return(nil)
	anomalyRepo.On("SaveAll", mock.Anything, mock.Anything).Return(nil)
	invRepo.On("Save", mock.Anything, inv).Return(nil)
	anomalyRepo.On("FindByInvoice", mock.Anything, tenantID, inv.ID).Return([]invoice.Anomaly{}, nil)

	service := newTestService(invRepo, anomalyRepo, labRepo, agreementRepo)
	report, err := service.Verify(context.Background(), tenantID, inv.ID)
	require.NoError(t, err)

	assert.Equal(t, string(invoice.InvoiceStatusAnomaly), report.Status)
	assert.True(t, report.AgreementApplied)

	saved := anomalyRepo.Calls[1].Arguments.Get(1).([]invoice.Anomaly)
	require.Len(t, saved, 1)
	assert.Equal(t, invoice.AnomalyKindRemiseTranche, saved[0].Kind)
	assert.Equal(t, invoice.SeverityCritical, saved[0].Severity)
	// 5 points of discount on a 100.00 tranche B base
	assert.True(t, saved[0].MontantEcart.Equal(dec("5.00")), "got %s", saved[0].MontantEcart)
	anomalyRepo.AssertCalled(t, "DeleteUnresolvedByInvoice", mock.Anything, tenantID, inv.ID)
}

func TestVerifyWithoutAgreementRunsDataChecksOnly(t *testing.T) {
	tenantID, labID := uuid.New(), uuid.New()
	inv := testInvoice(t, tenantID, labID)
	lab, err := partner.NewLaboratory(tenantID, "Biogaran")
	require.NoError(t, err)

	invRepo := new(MockInvoiceRepository)
	anomalyRepo := new(MockAnomalyRepository)
	labRepo := new(MockLaboratoryRepository)
	agreementRepo := new(MockAgreementRepository)

	invRepo.On("FindByIDForTenantLocked", mock.Anything, tenantID, inv.ID).Return(inv, nil)
	labRepo.On("FindByIDForTenant", mock.Anything, tenantID, labID).Return(lab, nil)
	agreementRepo.On("FindActiveForPair", mock.Anything, tenantID, labID).Return(nil, shared.ErrNotFound)
	anomalyRepo.On("DeleteUnresolvedByInvoice", mock.Anything, tenantID, inv.ID).Return(nil)
	invRepo.On("Save", mock.Anything, inv).Return(nil)
	anomalyRepo.On("FindByInvoice", mock.Anything, tenantID, inv.ID).Return([]invoice.Anomaly{}, nil)

	service := newTestService(invRepo, anomalyRepo, labRepo, agreementRepo)
	report, err := service.Verify(context.Background(), tenantID, inv.ID)
	require.NoError(t, err)

	assert.Equal(t, string(invoice.InvoiceStatusVerified), report.Status)
	assert.False(t, report.AgreementApplied)
	anomalyRepo.AssertNotCalled(t, "SaveAll", mock.Anything, mock.Anything)
}

func TestResolveLastCriticalAnomalyClearsInvoiceStatus(t *testing.T) {
	tenantID, labID := uuid.New(), uuid.New()
	inv := testInvoice(t, tenantID, labID)
	inv.MarkVerified(true)
	require.Equal(t, invoice.InvoiceStatusAnomaly, inv.Status)

	anomaly := invoice.NewAnomaly(tenantID, inv.ID, invoice.AnomalyKindRemiseTranche,
		invoice.SeverityCritical, "Tranche B hors cible", dec("5.00"), "Réclamer un avoir")

	invRepo := new(MockInvoiceRepository)
	anomalyRepo := new(MockAnomalyRepository)
	labRepo := new(MockLaboratoryRepository)
	agreementRepo := new(MockAgreementRepository)

	resolvedCopy := anomaly
	resolvedCopy.Resolu = true

	anomalyRepo.On("FindByIDForTenant", mock.Anything, tenantID, anomaly.ID).Return(&anomaly, nil)
	anomalyRepo.On("Save", mock.Anything, &anomaly).Return(nil)
	invRepo.On("FindByIDForTenantLocked", mock.Anything, tenantID, inv.ID).Return(inv, nil)
	anomalyRepo.On("FindByInvoice", mock.Anything, tenantID, inv.ID).Return([]invoice.Anomaly{resolvedCopy}, nil)
	invRepo.On("Save", mock.Anything, inv).Return(nil)

	service := newTestService(invRepo, anomalyRepo, labRepo, agreementRepo)
	resp, err := service.ResolveAnomaly(context.Background(), tenantID, anomaly.ID, "Avoir reçu du laboratoire")
	require.NoError(t, err)

	assert.True(t, resp.Resolu)
	assert.Equal(t, "Avoir reçu du laboratoire", resp.ResolutionNote)
	assert.Equal(t, invoice.InvoiceStatusVerified, inv.Status)
}

func TestImportRejectsDuplicateNumber(t *testing.T) {
	tenantID, labID := uuid.New(), uuid.New()
	lab, err := partner.NewLaboratory(tenantID, "Biogaran")
	require.NoError(t, err)
	existing := testInvoice(t, tenantID, labID)

	invRepo := new(MockInvoiceRepository)
	anomalyRepo := new(MockAnomalyRepository)
	labRepo := new(MockLaboratoryRepository)
	agreementRepo := new(MockAgreementRepository)

	labRepo.On("FindByIDForTenant", mock.Anything, tenantID, labID).Return(lab, nil)
	invRepo.On("FindByNumberForTenant", mock.Anything, tenantID, labID, "FAC-2026-042").Return(existing, nil)

	service := newTestService(invRepo, anomalyRepo, labRepo, agreementRepo)
	_, err = service.Import(context.Background(), tenantID, ImportInvoiceRequest{
		LaboratoryID: labID,
		Number:       "FAC-2026-042",
		InvoiceDate:  time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
		Lines: []ImportLineRequest{{
			CIP13: "3401234567890", Designation: "DOLIPRANE", Quantity: 1,
			PuHT: "10.00", PuAfterRemise: "10.00", MontantHT: "10.00", TauxTVA: "2.10",
		}},
	})

	require.Error(t, err)
	de, ok := err.(*shared.DomainError)
	require.True(t, ok)
	assert.Equal(t, "DUPLICATE_INVOICE", de.Code)
	invRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestImportDerivesTotalsAndClassifies(t *testing.T) {
	tenantID, labID := uuid.New(), uuid.New()
	lab, err := partner.NewLaboratory(tenantID, "Biogaran")
	require.NoError(t, err)

	invRepo := new(MockInvoiceRepository)
	anomalyRepo := new(MockAnomalyRepository)
	labRepo := new(MockLaboratoryRepository)
	agreementRepo := new(MockAgreementRepository)

	labRepo.On("FindByIDForTenant", mock.Anything, tenantID, labID).Return(lab, nil)
	invRepo.On("FindByNumberForTenant", mock.Anything, tenantID, labID, "FAC-2026-100").Return(nil, shared.ErrNotFound)
	invRepo.On("Save", mock.Anything, mock.Anything).Return(nil)

	service := newTestService(invRepo, anomalyRepo, labRepo, agreementRepo)
	resp, err := service.Import(context.Background(), tenantID, ImportInvoiceRequest{
		LaboratoryID: labID,
		Number:       "FAC-2026-100",
		InvoiceDate:  time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
		Lines: []ImportLineRequest{
			// tranche A: reimbursable, 2% headline discount
			{CIP13: "3401234567890", Designation: "PRODUIT A", Quantity: 10,
				PuHT: "10.00", RemisePct: "2", PuAfterRemise: "9.80", MontantHT: "98.00", TauxTVA: "2.10"},
			// OTC: 20% VAT
			{CIP13: "3609876543210", Designation: "PRODUIT OTC", Quantity: 5,
				PuHT: "4.00", RemisePct: "0", PuAfterRemise: "4.00", MontantHT: "20.00", TauxTVA: "20"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, string(invoice.InvoiceStatusImported), resp.Status)
	assert.True(t, resp.ABrut.Equal(dec("100.00")), "a_brut %s", resp.ABrut)
	assert.True(t, resp.OTCBrut.Equal(dec("20.00")), "otc_brut %s", resp.OTCBrut)
	assert.True(t, resp.BrutHT.Equal(dec("120.00")), "brut_ht %s", resp.BrutHT)
	assert.True(t, resp.NetHT.Equal(dec("118.00")), "net_ht %s", resp.NetHT)
	require.Len(t, resp.Lines, 2)
	assert.Equal(t, "A", resp.Lines[0].Tranche)
	assert.Equal(t, "OTC", resp.Lines[1].Tranche)
}
