package rebate

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

// MockScheduleRepository is a mock implementation of ScheduleRepository
type MockScheduleRepository struct {
	mock.Mock
}

func (m *MockScheduleRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*rebate.RebateSchedule, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*rebate.RebateSchedule), args.Error(1)
}

func (m *MockScheduleRepository) FindCurrentByInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) (*rebate.RebateSchedule, error) {
	args := m.Called(ctx, tenantID, invoiceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*rebate.RebateSchedule), args.Error(1)
}

func (m *MockScheduleRepository) FindAllByInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) ([]rebate.RebateSchedule, error) {
	args := m.Called(ctx, tenantID, invoiceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]rebate.RebateSchedule), args.Error(1)
}

func (m *MockScheduleRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter rebate.ScheduleFilter) ([]rebate.RebateSchedule, int64, error) {
	args := m.Called(ctx, tenantID, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]rebate.RebateSchedule), args.Get(1).(int64), args.Error(2)
}

func (m *MockScheduleRepository) Save(ctx context.Context, schedule *rebate.RebateSchedule) error {
	args := m.Called(ctx, schedule)
	return args.Error(0)
}

func (m *MockScheduleRepository) MonthlyForecast(ctx context.Context, tenantID uuid.UUID, year int, month time.Month) ([]rebate.MonthlyForecast, error) {
	args := m.Called(ctx, tenantID, year, month)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]rebate.MonthlyForecast), args.Error(1)
}

func newScheduleService(scheduleRepo *MockScheduleRepository, invoiceRepo *MockInvoiceRepository, agreementRepo *MockAgreementRepository) *ScheduleService {
	return NewScheduleService(scheduleRepo, invoiceRepo, agreementRepo, stubTxManager{}, zap.NewNop())
}

func rate(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

// singleStageAgreement builds an active agreement with one monthly transfer
// stage at 10% on tranche A and 20% on tranche B.
func singleStageAgreement(t *testing.T, tenantID, labID uuid.UUID) *rebate.LaboratoryAgreement {
	t.Helper()
	agreement, err := rebate.NewLaboratoryAgreement(tenantID, labID, "Accord 2026",
		time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	agreement.Structure = rebate.Structure{Stages: []rebate.Stage{
		{StageID: "m1", Label: "RFA mensuelle", Order: 1, DelayMonths: 1,
			RateType: rebate.RateTypePercentage, PaymentMethod: rebate.PaymentMethodEMACTransfer},
	}}
	agreement.Config = rebate.AgreementConfig{TrancheConfigurations: map[string]rebate.TrancheConfig{
		rebate.ConfigTrancheA: {MaxRebate: decimal.RequireFromString("0.30"),
			Stages: map[string]rebate.StageRate{"m1": {Rate: rate("0.10")}}},
		rebate.ConfigTrancheB: {MaxRebate: decimal.RequireFromString("0.30"),
			Stages: map[string]rebate.StageRate{"m1": {Rate: rate("0.20")}}},
	}}
	require.NoError(t, agreement.Activate())
	return agreement
}

func twoTrancheInvoice(t *testing.T, tenantID, labID uuid.UUID) *invoice.LaboInvoice {
	t.Helper()
	inv, err := invoice.NewLaboInvoice(tenantID, labID, "FAC-2026-042",
		time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	inv.Lines = []invoice.InvoiceLine{
		{ID: uuid.New(), InvoiceID: inv.ID, CIP13: "3400900000017", Quantity: 1,
			MontantHT: decimal.RequireFromString("1000"), TauxTVA: decimal.RequireFromString("2.10"), RemisePct: decimal.RequireFromString("2.0")},
		{ID: uuid.New(), InvoiceID: inv.ID, CIP13: "3400900000024", Quantity: 1,
			MontantHT: decimal.RequireFromString("2000"), TauxTVA: decimal.RequireFromString("2.10"), RemisePct: decimal.RequireFromString("15")},
	}
	return inv
}

func TestPreviewUsesStoredAgreement(t *testing.T) {
	tenantID, labID := uuid.New(), uuid.New()
	inv := twoTrancheInvoice(t, tenantID, labID)
	agreement := singleStageAgreement(t, tenantID, labID)

	scheduleRepo := new(MockScheduleRepository)
	invoiceRepo := new(MockInvoiceRepository)
	agreementRepo := new(MockAgreementRepository)

	invoiceRepo.On("FindByIDForTenant", mock.Anything, tenantID, inv.ID).Return(inv, nil)
	agreementRepo.On("FindActiveForPair", mock.Anything, tenantID, labID).Return(agreement, nil)
	invoiceRepo.On("YearCumulativeBrut", mock.Anything, tenantID, labID, 2026, inv.InvoiceDate).
		Return(decimal.Zero, nil)

	service := newScheduleService(scheduleRepo, invoiceRepo, agreementRepo)
	resp, err := service.Preview(context.Background(), tenantID, PreviewScheduleRequest{InvoiceID: inv.ID})
	require.NoError(t, err)

	// 10% of 1000 + 20% of 2000
	assert.True(t, resp.MontantPrevu.Equal(decimal.RequireFromString("500.00")), "total: %s", resp.MontantPrevu)
	scheduleRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestPreviewWithConfigOverride(t *testing.T) {
	tenantID, labID := uuid.New(), uuid.New()
	inv := twoTrancheInvoice(t, tenantID, labID)
	agreement := singleStageAgreement(t, tenantID, labID)

	scheduleRepo := new(MockScheduleRepository)
	invoiceRepo := new(MockInvoiceRepository)
	agreementRepo := new(MockAgreementRepository)

	invoiceRepo.On("FindByIDForTenant", mock.Anything, tenantID, inv.ID).Return(inv, nil)
	agreementRepo.On("FindActiveForPair", mock.Anything, tenantID, labID).Return(agreement, nil)
	invoiceRepo.On("YearCumulativeBrut", mock.Anything, tenantID, labID, 2026, inv.InvoiceDate).
		Return(decimal.Zero, nil)

	override := rebate.AgreementConfig{TrancheConfigurations: map[string]rebate.TrancheConfig{
		rebate.ConfigTrancheA: {MaxRebate: decimal.RequireFromString("0.30"),
			Stages: map[string]rebate.StageRate{"m1": {Rate: rate("0.05")}}},
		rebate.ConfigTrancheB: {MaxRebate: decimal.RequireFromString("0.30"),
			Stages: map[string]rebate.StageRate{"m1": {Rate: rate("0.10")}}},
	}}

	service := newScheduleService(scheduleRepo, invoiceRepo, agreementRepo)
	resp, err := service.Preview(context.Background(), tenantID, PreviewScheduleRequest{
		InvoiceID: inv.ID,
		Config:    &override,
	})
	require.NoError(t, err)

	// 5% of 1000 + 10% of 2000, the stored grid untouched
	assert.True(t, resp.MontantPrevu.Equal(decimal.RequireFromString("250.00")), "total: %s", resp.MontantPrevu)
	stored := agreement.Config.TrancheConfigurations[rebate.ConfigTrancheA].Stages["m1"]
	require.NotNil(t, stored.Rate)
	assert.True(t, stored.Rate.Equal(decimal.RequireFromString("0.10")))
	scheduleRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestPreviewRejectsInvalidOverride(t *testing.T) {
	tenantID, labID := uuid.New(), uuid.New()
	inv := twoTrancheInvoice(t, tenantID, labID)
	agreement := singleStageAgreement(t, tenantID, labID)

	scheduleRepo := new(MockScheduleRepository)
	invoiceRepo := new(MockInvoiceRepository)
	agreementRepo := new(MockAgreementRepository)

	invoiceRepo.On("FindByIDForTenant", mock.Anything, tenantID, inv.ID).Return(inv, nil)
	agreementRepo.On("FindActiveForPair", mock.Anything, tenantID, labID).Return(agreement, nil)
	invoiceRepo.On("YearCumulativeBrut", mock.Anything, tenantID, labID, 2026, inv.InvoiceDate).
		Return(decimal.Zero, nil)

	override := rebate.AgreementConfig{TrancheConfigurations: map[string]rebate.TrancheConfig{
		rebate.ConfigTrancheA: {MaxRebate: decimal.RequireFromString("0.30"),
			Stages: map[string]rebate.StageRate{"m1": {Rate: rate("0.05")}}},
	}}

	service := newScheduleService(scheduleRepo, invoiceRepo, agreementRepo)
	_, err := service.Preview(context.Background(), tenantID, PreviewScheduleRequest{
		InvoiceID: inv.ID,
		Config:    &override,
	})
	var de *shared.DomainError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "INVALID_CONFIG", de.Code)
}

func TestComputeRetriesOnceWhenAgreementMoves(t *testing.T) {
	tenantID, labID := uuid.New(), uuid.New()
	inv := twoTrancheInvoice(t, tenantID, labID)
	agreement := singleStageAgreement(t, tenantID, labID)

	moved := *agreement
	moved.Version++

	scheduleRepo := new(MockScheduleRepository)
	invoiceRepo := new(MockInvoiceRepository)
	agreementRepo := new(MockAgreementRepository)

	invoiceRepo.On("FindByIDForTenantLocked", mock.Anything, tenantID, inv.ID).Return(inv, nil)
	agreementRepo.On("FindActiveForPair", mock.Anything, tenantID, labID).Return(agreement, nil)
	invoiceRepo.On("YearCumulativeBrut", mock.Anything, tenantID, labID, 2026, inv.InvoiceDate).
		Return(decimal.Zero, nil)
	agreementRepo.On("FindByIDForTenant", mock.Anything, tenantID, agreement.ID).Return(&moved, nil).Once()
	agreementRepo.On("FindByIDForTenant", mock.Anything, tenantID, agreement.ID).Return(agreement, nil)
	scheduleRepo.On("FindCurrentByInvoice", mock.Anything, tenantID, inv.ID).Return(nil, shared.ErrNotFound)
	scheduleRepo.On("Save", mock.Anything, mock.Anything).Return(nil)

	service := newScheduleService(scheduleRepo, invoiceRepo, agreementRepo)
	resp, err := service.Compute(context.Background(), tenantID, inv.ID)
	require.NoError(t, err)

	assert.True(t, resp.MontantPrevu.Equal(decimal.RequireFromString("500.00")), "total: %s", resp.MontantPrevu)
	invoiceRepo.AssertNumberOfCalls(t, "FindByIDForTenantLocked", 2)
	scheduleRepo.AssertNumberOfCalls(t, "Save", 1)
}

func TestComputeStaleReadAfterRetry(t *testing.T) {
	tenantID, labID := uuid.New(), uuid.New()
	inv := twoTrancheInvoice(t, tenantID, labID)
	agreement := singleStageAgreement(t, tenantID, labID)

	moved := *agreement
	moved.Version++

	scheduleRepo := new(MockScheduleRepository)
	invoiceRepo := new(MockInvoiceRepository)
	agreementRepo := new(MockAgreementRepository)

	invoiceRepo.On("FindByIDForTenantLocked", mock.Anything, tenantID, inv.ID).Return(inv, nil)
	agreementRepo.On("FindActiveForPair", mock.Anything, tenantID, labID).Return(agreement, nil)
	invoiceRepo.On("YearCumulativeBrut", mock.Anything, tenantID, labID, 2026, inv.InvoiceDate).
		Return(decimal.Zero, nil)
	agreementRepo.On("FindByIDForTenant", mock.Anything, tenantID, agreement.ID).Return(&moved, nil)

	service := newScheduleService(scheduleRepo, invoiceRepo, agreementRepo)
	_, err := service.Compute(context.Background(), tenantID, inv.ID)

	assert.ErrorIs(t, err, shared.ErrStaleRead)
	invoiceRepo.AssertNumberOfCalls(t, "FindByIDForTenantLocked", 2)
	scheduleRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}
