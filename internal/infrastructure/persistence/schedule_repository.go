package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/rfa/backend/internal/domain/rebate"
	"github.com/rfa/backend/internal/domain/shared"
	"github.com/rfa/backend/internal/infrastructure/persistence/models"
)

// GormScheduleRepository implements ScheduleRepository using GORM
type GormScheduleRepository struct {
	db *gorm.DB
}

// NewGormScheduleRepository creates a new GormScheduleRepository
func NewGormScheduleRepository(db *gorm.DB) *GormScheduleRepository {
	return &GormScheduleRepository{db: db}
}

// FindByIDForTenant finds a schedule by ID within a tenant
func (r *GormScheduleRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*rebate.RebateSchedule, error) {
	var m models.RebateScheduleModel
	if err := dbFromContext(ctx, r.db).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return m.ToDomain(), nil
}

// FindCurrentByInvoice returns the non-cancelled schedule for an invoice, or
// a not-found error
func (r *GormScheduleRepository) FindCurrentByInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) (*rebate.RebateSchedule, error) {
	var m models.RebateScheduleModel
	if err := dbFromContext(ctx, r.db).
		Where("tenant_id = ? AND invoice_id = ? AND status <> ?",
			tenantID, invoiceID, rebate.ScheduleStatusCancelled).
		First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return m.ToDomain(), nil
}

// FindAllByInvoice returns every schedule of an invoice, superseded rows
// included, newest first
func (r *GormScheduleRepository) FindAllByInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) ([]rebate.RebateSchedule, error) {
	var rows []models.RebateScheduleModel
	if err := dbFromContext(ctx, r.db).
		Where("tenant_id = ? AND invoice_id = ?", tenantID, invoiceID).
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]rebate.RebateSchedule, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, nil
}

// FindAllForTenant finds schedules matching the filter with the total count
func (r *GormScheduleRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter rebate.ScheduleFilter) ([]rebate.RebateSchedule, int64, error) {
	query := dbFromContext(ctx, r.db).Model(&models.RebateScheduleModel{}).Where("tenant_id = ?", tenantID)
	if filter.LaboratoryID != nil {
		query = query.Where("laboratory_id = ?", *filter.LaboratoryID)
	}
	if filter.AgreementID != nil {
		query = query.Where("agreement_id = ?", *filter.AgreementID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.RebateScheduleModel
	if err := applyPagination(query.Order("date_echeance ASC"), filter.Page, filter.PageSize).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	out := make([]rebate.RebateSchedule, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, total, nil
}

// Save creates or updates a schedule
func (r *GormScheduleRepository) Save(ctx context.Context, schedule *rebate.RebateSchedule) error {
	m := models.RebateScheduleModelFromDomain(schedule)
	return dbFromContext(ctx, r.db).Save(m).Error
}

// MonthlyForecast sums rebate entries due in one calendar month grouped by
// laboratory, cancelled schedules excluded. Entries live in a JSONB array, so
// the month window applies per entry, not per schedule.
func (r *GormScheduleRepository) MonthlyForecast(ctx context.Context, tenantID uuid.UUID, year int, month time.Month) ([]rebate.MonthlyForecast, error) {
	monthStart := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	monthEnd := monthStart.AddDate(0, 1, 0)

	var rows []struct {
		LaboratoryID   uuid.UUID
		LaboratoryName string
		ExpectedTotal  decimal.Decimal
		EntryCount     int
	}
	err := dbFromContext(ctx, r.db).Raw(`
		SELECT s.laboratory_id,
		       l.name AS laboratory_name,
		       COALESCE(SUM((e->>'amount')::numeric), 0) AS expected_total,
		       COUNT(*) AS entry_count
		FROM rebate_schedules s
		JOIN laboratories l ON l.id = s.laboratory_id AND l.tenant_id = s.tenant_id
		CROSS JOIN LATERAL jsonb_array_elements(s.rebate_entries) e
		WHERE s.tenant_id = ?
		  AND s.status <> ?
		  AND (e->>'due_date')::timestamptz >= ?
		  AND (e->>'due_date')::timestamptz < ?
		GROUP BY s.laboratory_id, l.name
		ORDER BY expected_total DESC`,
		tenantID, rebate.ScheduleStatusCancelled, monthStart, monthEnd).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]rebate.MonthlyForecast, len(rows))
	for i, row := range rows {
		out[i] = rebate.MonthlyForecast{
			LaboratoryID:   row.LaboratoryID,
			LaboratoryName: row.LaboratoryName,
			ExpectedTotal:  row.ExpectedTotal,
			EntryCount:     row.EntryCount,
		}
	}
	return out, nil
}

// Ensure GormScheduleRepository implements ScheduleRepository
var _ rebate.ScheduleRepository = (*GormScheduleRepository)(nil)

// GormAuditRepository implements AuditRepository using GORM
type GormAuditRepository struct {
	db *gorm.DB
}

// NewGormAuditRepository creates a new GormAuditRepository
func NewGormAuditRepository(db *gorm.DB) *GormAuditRepository {
	return &GormAuditRepository{db: db}
}

// Append inserts one audit entry. Entries are never updated or deleted.
func (r *GormAuditRepository) Append(ctx context.Context, entry *rebate.AgreementAuditLog) error {
	m := models.AgreementAuditLogModelFromDomain(entry)
	return dbFromContext(ctx, r.db).Create(m).Error
}

// FindByAgreement returns the audit entries of one agreement, newest first
func (r *GormAuditRepository) FindByAgreement(ctx context.Context, tenantID, agreementID uuid.UUID) ([]rebate.AgreementAuditLog, error) {
	var rows []models.AgreementAuditLogModel
	if err := dbFromContext(ctx, r.db).
		Where("tenant_id = ? AND agreement_id = ?", tenantID, agreementID).
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]rebate.AgreementAuditLog, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, nil
}

// Ensure GormAuditRepository implements AuditRepository
var _ rebate.AuditRepository = (*GormAuditRepository)(nil)
