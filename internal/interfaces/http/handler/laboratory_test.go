package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	partnerapp "github.com/rfa/backend/internal/application/partner"
	"github.com/rfa/backend/internal/domain/partner"
	"github.com/rfa/backend/internal/domain/shared"
)

// MockLaboratoryRepository is a mock implementation of partner.LaboratoryRepository
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

func newLaboratoryTestStack() (*LaboratoryHandler, *MockLaboratoryRepository) {
	repo := new(MockLaboratoryRepository)
	service := partnerapp.NewLaboratoryService(repo, zap.NewNop())
	return NewLaboratoryHandler(service), repo
}

func newLaboratoryRouter(handler *LaboratoryHandler) *gin.Engine {
	router := gin.New()
	router.POST("/laboratories", handler.Create)
	router.GET("/laboratories", handler.List)
	router.GET("/laboratories/:id", handler.GetByID)
	router.PUT("/laboratories/:id", handler.Update)
	router.DELETE("/laboratories/:id", handler.Delete)
	return router
}

func TestLaboratoryHandler_Create_Success(t *testing.T) {
	handler, repo := newLaboratoryTestStack()
	tenantID := uuid.New()

	repo.On("FindByNameForTenant", mock.Anything, tenantID, "Biogaran").Return(nil, shared.ErrNotFound)
	repo.On("Save", mock.Anything, mock.Anything).Return(nil)

	router := newLaboratoryRouter(handler)

	body, _ := json.Marshal(partnerapp.CreateLaboratoryRequest{
		Name:            "Biogaran",
		ContactEmail:    "commandes@biogaran.fr",
		FrancoThreshold: "500.00",
	})
	req := httptest.NewRequest(http.MethodPost, "/laboratories", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tenant-ID", tenantID.String())
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		Success bool                          `json:"success"`
		Data    partnerapp.LaboratoryResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "Biogaran", resp.Data.Name)
	assert.True(t, resp.Data.Active)
	repo.AssertCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestLaboratoryHandler_Create_DuplicateName(t *testing.T) {
	handler, repo := newLaboratoryTestStack()
	tenantID := uuid.New()

	existing, err := partner.NewLaboratory(tenantID, "Biogaran")
	require.NoError(t, err)
	repo.On("FindByNameForTenant", mock.Anything, tenantID, "Biogaran").Return(existing, nil)

	router := newLaboratoryRouter(handler)

	body, _ := json.Marshal(partnerapp.CreateLaboratoryRequest{Name: "Biogaran"})
	req := httptest.NewRequest(http.MethodPost, "/laboratories", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tenant-ID", tenantID.String())
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestLaboratoryHandler_Create_InvalidBody(t *testing.T) {
	handler, _ := newLaboratoryTestStack()

	router := newLaboratoryRouter(handler)

	req := httptest.NewRequest(http.MethodPost, "/laboratories", bytes.NewReader([]byte(`{"contact_email":"not-an-email"}`)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tenant-ID", uuid.NewString())
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLaboratoryHandler_GetByID_NotFound(t *testing.T) {
	handler, repo := newLaboratoryTestStack()
	tenantID := uuid.New()
	labID := uuid.New()

	repo.On("FindByIDForTenant", mock.Anything, tenantID, labID).Return(nil, shared.ErrNotFound)

	router := newLaboratoryRouter(handler)

	req := httptest.NewRequest(http.MethodGet, "/laboratories/"+labID.String(), nil)
	req.Header.Set("X-Tenant-ID", tenantID.String())
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLaboratoryHandler_GetByID_InvalidID(t *testing.T) {
	handler, _ := newLaboratoryTestStack()

	router := newLaboratoryRouter(handler)

	req := httptest.NewRequest(http.MethodGet, "/laboratories/not-a-uuid", nil)
	req.Header.Set("X-Tenant-ID", uuid.NewString())
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLaboratoryHandler_List_Success(t *testing.T) {
	handler, repo := newLaboratoryTestStack()
	tenantID := uuid.New()

	labA, err := partner.NewLaboratory(tenantID, "Biogaran")
	require.NoError(t, err)
	labB, err := partner.NewLaboratory(tenantID, "Sandoz")
	require.NoError(t, err)

	repo.On("FindAllForTenant", mock.Anything, tenantID, mock.Anything).
		Return([]partner.Laboratory{*labA, *labB}, int64(2), nil)

	router := newLaboratoryRouter(handler)

	req := httptest.NewRequest(http.MethodGet, "/laboratories?page=1&page_size=20", nil)
	req.Header.Set("X-Tenant-ID", tenantID.String())
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Success bool                            `json:"success"`
		Data    []partnerapp.LaboratoryResponse `json:"data"`
		Meta    struct {
			Total    int64 `json:"total"`
			Page     int   `json:"page"`
			PageSize int   `json:"page_size"`
		} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Data, 2)
	assert.Equal(t, int64(2), resp.Meta.Total)
	assert.Equal(t, 1, resp.Meta.Page)
}

func TestLaboratoryHandler_Update_Success(t *testing.T) {
	handler, repo := newLaboratoryTestStack()
	tenantID := uuid.New()

	lab, err := partner.NewLaboratory(tenantID, "Biogaran")
	require.NoError(t, err)

	repo.On("FindByIDForTenant", mock.Anything, tenantID, lab.ID).Return(lab, nil)
	repo.On("Save", mock.Anything, mock.Anything).Return(nil)

	router := newLaboratoryRouter(handler)

	newName := "Biogaran France"
	body, _ := json.Marshal(partnerapp.UpdateLaboratoryRequest{Name: &newName})
	req := httptest.NewRequest(http.MethodPut, "/laboratories/"+lab.ID.String(), bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tenant-ID", tenantID.String())
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data partnerapp.LaboratoryResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Biogaran France", resp.Data.Name)
}

func TestLaboratoryHandler_Delete_Success(t *testing.T) {
	handler, repo := newLaboratoryTestStack()
	tenantID := uuid.New()

	lab, err := partner.NewLaboratory(tenantID, "Biogaran")
	require.NoError(t, err)

	repo.On("FindByIDForTenant", mock.Anything, tenantID, lab.ID).Return(lab, nil)
	repo.On("DeleteForTenant", mock.Anything, tenantID, lab.ID).Return(nil)

	router := newLaboratoryRouter(handler)

	req := httptest.NewRequest(http.MethodDelete, "/laboratories/"+lab.ID.String(), nil)
	req.Header.Set("X-Tenant-ID", tenantID.String())
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	repo.AssertCalled(t, "DeleteForTenant", mock.Anything, tenantID, lab.ID)
}
