package rebate

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rfa/backend/internal/domain/partner"
	"github.com/rfa/backend/internal/domain/rebate"
	"github.com/rfa/backend/internal/domain/shared"
)

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

// MockTemplateRepository is a mock implementation of TemplateRepository
type MockTemplateRepository struct {
	mock.Mock
}

func (m *MockTemplateRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*rebate.RebateTemplate, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*rebate.RebateTemplate), args.Error(1)
}

func (m *MockTemplateRepository) FindByNameForTenant(ctx context.Context, tenantID uuid.UUID, name string) (*rebate.RebateTemplate, error) {
	args := m.Called(ctx, tenantID, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*rebate.RebateTemplate), args.Error(1)
}

func (m *MockTemplateRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter rebate.TemplateFilter) ([]rebate.RebateTemplate, int64, error) {
	args := m.Called(ctx, tenantID, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]rebate.RebateTemplate), args.Get(1).(int64), args.Error(2)
}

func (m *MockTemplateRepository) Save(ctx context.Context, template *rebate.RebateTemplate) error {
	args := m.Called(ctx, template)
	return args.Error(0)
}

func (m *MockTemplateRepository) DeleteForTenant(ctx context.Context, tenantID, id uuid.UUID) error {
	args := m.Called(ctx, tenantID, id)
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

// MockAuditRepository is a mock implementation of AuditRepository
type MockAuditRepository struct {
	mock.Mock
}

func (m *MockAuditRepository) Append(ctx context.Context, entry *rebate.AgreementAuditLog) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockAuditRepository) FindByAgreement(ctx context.Context, tenantID, agreementID uuid.UUID) ([]rebate.AgreementAuditLog, error) {
	args := m.Called(ctx, tenantID, agreementID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]rebate.AgreementAuditLog), args.Error(1)
}

// stubTxManager runs the function directly, no transaction semantics.
type stubTxManager struct{}

func (stubTxManager) InTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func newAgreementService(agreementRepo *MockAgreementRepository, templateRepo *MockTemplateRepository, labRepo *MockLaboratoryRepository, auditRepo *MockAuditRepository) *AgreementService {
	return NewAgreementService(agreementRepo, templateRepo, labRepo, auditRepo, stubTxManager{}, zap.NewNop())
}

func draftAgreement(t *testing.T, tenantID, labID uuid.UUID, name string) *rebate.LaboratoryAgreement {
	t.Helper()
	agreement, err := rebate.NewLaboratoryAgreement(tenantID, labID, name, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	return agreement
}

func auditActions(auditRepo *MockAuditRepository) []string {
	var actions []string
	for _, call := range auditRepo.Calls {
		if call.Method == "Append" {
			actions = append(actions, call.Arguments.Get(1).(*rebate.AgreementAuditLog).Action)
		}
	}
	return actions
}

func TestActivateSuspendsCompetitorInSameTransaction(t *testing.T) {
	tenantID, labID := uuid.New(), uuid.New()
	candidate := draftAgreement(t, tenantID, labID, "Accord 2026")
	competitor := draftAgreement(t, tenantID, labID, "Accord 2025")
	require.NoError(t, competitor.Activate())

	agreementRepo := new(MockAgreementRepository)
	auditRepo := new(MockAuditRepository)

	agreementRepo.On("FindByIDForTenant", mock.Anything, tenantID, candidate.ID).Return(candidate, nil)
	agreementRepo.On("FindActiveOthersForPair", mock.Anything, tenantID, labID, candidate.ID).
		Return([]rebate.LaboratoryAgreement{*competitor}, nil)
	agreementRepo.On("SaveWithLock", mock.Anything, mock.Anything).Return(nil)
	auditRepo.On("Append", mock.Anything, mock.Anything).Return(nil)

	service := newAgreementService(agreementRepo, new(MockTemplateRepository), new(MockLaboratoryRepository), auditRepo)
	resp, err := service.Activate(context.Background(), tenantID, candidate.ID, Actor{UserID: uuid.New()})
	require.NoError(t, err)

	assert.Equal(t, string(rebate.AgreementStatusActive), resp.Status)

	suspended := agreementRepo.Calls[2].Arguments.Get(1).(*rebate.LaboratoryAgreement)
	assert.Equal(t, competitor.ID, suspended.ID)
	assert.Equal(t, rebate.AgreementStatusSuspended, suspended.Status)

	assert.Equal(t, []string{rebate.AuditActionSuspend, rebate.AuditActionActivate}, auditActions(auditRepo))
}

func TestActivateIdempotentWithoutCompetitor(t *testing.T) {
	tenantID, labID := uuid.New(), uuid.New()
	agreement := draftAgreement(t, tenantID, labID, "Accord 2026")
	require.NoError(t, agreement.Activate())

	agreementRepo := new(MockAgreementRepository)
	auditRepo := new(MockAuditRepository)

	agreementRepo.On("FindByIDForTenant", mock.Anything, tenantID, agreement.ID).Return(agreement, nil)
	agreementRepo.On("FindActiveOthersForPair", mock.Anything, tenantID, labID, agreement.ID).
		Return([]rebate.LaboratoryAgreement{}, nil)
	agreementRepo.On("SaveWithLock", mock.Anything, agreement).Return(nil)
	auditRepo.On("Append", mock.Anything, mock.Anything).Return(nil)

	service := newAgreementService(agreementRepo, new(MockTemplateRepository), new(MockLaboratoryRepository), auditRepo)
	resp, err := service.Activate(context.Background(), tenantID, agreement.ID, Actor{UserID: uuid.New()})
	require.NoError(t, err)

	assert.Equal(t, string(rebate.AgreementStatusActive), resp.Status)
	assert.Equal(t, []string{rebate.AuditActionActivate}, auditActions(auditRepo))
}

func TestUpdateActiveAgreementCreatesNewVersion(t *testing.T) {
	tenantID, labID := uuid.New(), uuid.New()
	agreement := draftAgreement(t, tenantID, labID, "Accord 2026")
	require.NoError(t, agreement.Activate())

	agreementRepo := new(MockAgreementRepository)
	auditRepo := new(MockAuditRepository)

	agreementRepo.On("FindByIDForTenant", mock.Anything, tenantID, agreement.ID).Return(agreement, nil)
	agreementRepo.On("SaveWithLock", mock.Anything, agreement).Return(nil)
	agreementRepo.On("Save", mock.Anything, mock.Anything).Return(nil)
	auditRepo.On("Append", mock.Anything, mock.Anything).Return(nil)

	service := newAgreementService(agreementRepo, new(MockTemplateRepository), new(MockLaboratoryRepository), auditRepo)
	newRate := "12.5"
	resp, err := service.Update(context.Background(), tenantID, agreement.ID, Actor{UserID: uuid.New()},
		UpdateAgreementRequest{TargetRateB: &newRate})
	require.NoError(t, err)

	// the caller gets an activated successor, the original row is archived
	assert.Equal(t, 2, resp.AgreementVersion)
	assert.Equal(t, string(rebate.AgreementStatusActive), resp.Status)
	require.NotNil(t, resp.PreviousVersionID)
	assert.Equal(t, agreement.ID, *resp.PreviousVersionID)
	assert.Equal(t, rebate.AgreementStatusArchived, agreement.Status)
	assert.Equal(t, "12.5", resp.TargetRateB.String())

	assert.Equal(t, []string{rebate.AuditActionArchive, rebate.AuditActionVersionBump}, auditActions(auditRepo))
}

func TestUpdateDraftAgreementEditsInPlace(t *testing.T) {
	tenantID, labID := uuid.New(), uuid.New()
	agreement := draftAgreement(t, tenantID, labID, "Accord 2026")

	agreementRepo := new(MockAgreementRepository)
	auditRepo := new(MockAuditRepository)

	agreementRepo.On("FindByIDForTenant", mock.Anything, tenantID, agreement.ID).Return(agreement, nil)
	agreementRepo.On("Save", mock.Anything, agreement).Return(nil)
	auditRepo.On("Append", mock.Anything, mock.Anything).Return(nil)

	service := newAgreementService(agreementRepo, new(MockTemplateRepository), new(MockLaboratoryRepository), auditRepo)
	name := "Accord 2026 révisé"
	resp, err := service.Update(context.Background(), tenantID, agreement.ID, Actor{UserID: uuid.New()},
		UpdateAgreementRequest{Name: &name})
	require.NoError(t, err)

	assert.Equal(t, 1, resp.AgreementVersion)
	assert.Equal(t, "Accord 2026 révisé", resp.Name)
	assert.Equal(t, []string{rebate.AuditActionUpdate}, auditActions(auditRepo))
	agreementRepo.AssertNotCalled(t, "SaveWithLock", mock.Anything, mock.Anything)
}

func TestCreateAgreementFromTemplate(t *testing.T) {
	tenantID, labID := uuid.New(), uuid.New()
	lab, err := partner.NewLaboratory(tenantID, "Biogaran")
	require.NoError(t, err)

	tpl, err := rebate.NewRebateTemplate(tenantID, "Grille générique", "Biogaran",
		rebate.RebateTypeRFA, rebate.FrequencyMonthly, rebate.ScopePharmacy)
	require.NoError(t, err)
	require.NoError(t, tpl.SetFreeGoods("10+1", 10))

	agreementRepo := new(MockAgreementRepository)
	templateRepo := new(MockTemplateRepository)
	labRepo := new(MockLaboratoryRepository)
	auditRepo := new(MockAuditRepository)

	labRepo.On("FindByIDForTenant", mock.Anything, tenantID, labID).Return(lab, nil)
	templateRepo.On("FindByIDForTenant", mock.Anything, tenantID, tpl.ID).Return(tpl, nil)
	agreementRepo.On("Save", mock.Anything, mock.Anything).Return(nil)
	auditRepo.On("Append", mock.Anything, mock.Anything).Return(nil)

	service := newAgreementService(agreementRepo, templateRepo, labRepo, auditRepo)
	tplID := tpl.ID
	resp, err := service.Create(context.Background(), tenantID, Actor{UserID: uuid.New()}, CreateAgreementRequest{
		LaboratoryID: labID,
		TemplateID:   &tplID,
		Name:         "Accord Biogaran 2026",
		StartDate:    time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	assert.Equal(t, string(rebate.AgreementStatusDraft), resp.Status)
	require.NotNil(t, resp.TemplateID)
	assert.Equal(t, tpl.ID, *resp.TemplateID)
	assert.True(t, resp.FreeGoodsEnabled)
	assert.Equal(t, "10+1", resp.FreeGoodsRatio)
	assert.Equal(t, []string{rebate.AuditActionCreate}, auditActions(auditRepo))
}
