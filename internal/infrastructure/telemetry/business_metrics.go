// Package telemetry provides OpenTelemetry integration for metrics collection.
package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"go.opentelemetry.io/otel/metric"
)

// BusinessMetrics tracks the verification and rebate activity of the system:
// invoices imported and verified, anomalies found and resolved, rebate
// schedules computed and EMAC reconciliations.
type BusinessMetrics struct {
	meter  metric.Meter
	logger *zap.Logger

	// Counter metrics (monotonically increasing)
	invoiceImportedTotal  *Counter
	invoiceVerifiedTotal  *Counter
	anomalyDetectedTotal  *Counter
	anomalyResolvedTotal  *Counter
	recoverableCentsTotal *Counter
	scheduleComputedTotal *Counter
	emacVerifiedTotal     *Counter

	// Gauge metrics (point-in-time values)
	unresolvedAnomalyCount *Gauge
	pendingScheduleCount   *Gauge

	// Periodic collector
	stopChan    chan struct{}
	stopOnce    sync.Once
	collectOnce sync.Once

	backlogProvider BacklogMetricsProvider
}

// BacklogMetricsProvider supplies backlog gauges for periodic collection.
// The interface keeps the telemetry layer off the domain repositories.
type BacklogMetricsProvider interface {
	// GetUnresolvedAnomalyCount returns the number of open anomalies for a tenant
	GetUnresolvedAnomalyCount(ctx context.Context, tenantID uuid.UUID) (int64, error)

	// GetPendingScheduleCount returns the number of rebate schedules awaiting reception
	GetPendingScheduleCount(ctx context.Context, tenantID uuid.UUID) (int64, error)
}

// BusinessMetricsConfig holds configuration for business metrics.
type BusinessMetricsConfig struct {
	Meter           metric.Meter
	Logger          *zap.Logger
	CollectInterval time.Duration // Default: 5 minutes
	BacklogProvider BacklogMetricsProvider
}

// NewBusinessMetrics creates a new BusinessMetrics instance.
func NewBusinessMetrics(cfg BusinessMetricsConfig) (*BusinessMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	bm := &BusinessMetrics{
		meter:           cfg.Meter,
		logger:          logger,
		stopChan:        make(chan struct{}),
		backlogProvider: cfg.BacklogProvider,
	}

	var err error

	bm.invoiceImportedTotal, err = NewCounter(
		cfg.Meter,
		"rfa_invoice_imported_total",
		"Total number of laboratory invoices imported",
		"{invoices}",
	)
	if err != nil {
		return nil, err
	}

	bm.invoiceVerifiedTotal, err = NewCounter(
		cfg.Meter,
		"rfa_invoice_verified_total",
		"Total number of invoice verification runs",
		"{runs}",
	)
	if err != nil {
		return nil, err
	}

	bm.anomalyDetectedTotal, err = NewCounter(
		cfg.Meter,
		"rfa_anomaly_detected_total",
		"Total number of anomalies raised by the verifier",
		"{anomalies}",
	)
	if err != nil {
		return nil, err
	}

	bm.anomalyResolvedTotal, err = NewCounter(
		cfg.Meter,
		"rfa_anomaly_resolved_total",
		"Total number of anomalies marked resolved",
		"{anomalies}",
	)
	if err != nil {
		return nil, err
	}

	bm.recoverableCentsTotal, err = NewCounter(
		cfg.Meter,
		"rfa_recoverable_amount_total",
		"Total recoverable amount detected, in cents",
		"{cents}",
	)
	if err != nil {
		return nil, err
	}

	bm.scheduleComputedTotal, err = NewCounter(
		cfg.Meter,
		"rfa_schedule_computed_total",
		"Total number of rebate schedules computed",
		"{schedules}",
	)
	if err != nil {
		return nil, err
	}

	bm.emacVerifiedTotal, err = NewCounter(
		cfg.Meter,
		"rfa_emac_verified_total",
		"Total number of EMAC reconciliation runs",
		"{runs}",
	)
	if err != nil {
		return nil, err
	}

	bm.unresolvedAnomalyCount, err = NewGauge(
		cfg.Meter,
		"rfa_anomaly_unresolved_count",
		"Current number of unresolved anomalies",
		"{anomalies}",
	)
	if err != nil {
		return nil, err
	}

	bm.pendingScheduleCount, err = NewGauge(
		cfg.Meter,
		"rfa_schedule_pending_count",
		"Current number of rebate schedules awaiting reception",
		"{schedules}",
	)
	if err != nil {
		return nil, err
	}

	return bm, nil
}

// =============================================================================
// Invoice Metrics
// =============================================================================

// RecordInvoiceImported records an invoice import.
func (bm *BusinessMetrics) RecordInvoiceImported(ctx context.Context, tenantID, laboratoryID uuid.UUID) {
	bm.invoiceImportedTotal.Inc(ctx,
		AttrTenantID.String(tenantID.String()),
		AttrLaboratoryID.String(laboratoryID.String()),
	)
}

// RecordInvoiceVerified records one verification run and its outcome status
// (verified or anomaly).
func (bm *BusinessMetrics) RecordInvoiceVerified(ctx context.Context, tenantID uuid.UUID, status string) {
	bm.invoiceVerifiedTotal.Inc(ctx,
		AttrTenantID.String(tenantID.String()),
		AttrInvoiceStatus.String(status),
	)
}

// =============================================================================
// Anomaly Metrics
// =============================================================================

// RecordAnomalyDetected records one anomaly raised by the verifier.
func (bm *BusinessMetrics) RecordAnomalyDetected(ctx context.Context, tenantID uuid.UUID, kind, severity string) {
	bm.anomalyDetectedTotal.Inc(ctx,
		AttrTenantID.String(tenantID.String()),
		AttrAnomalyKind.String(kind),
		AttrAnomalySeverity.String(severity),
	)
}

// RecordAnomalyResolved records an anomaly resolution.
func (bm *BusinessMetrics) RecordAnomalyResolved(ctx context.Context, tenantID uuid.UUID, kind string) {
	bm.anomalyResolvedTotal.Inc(ctx,
		AttrTenantID.String(tenantID.String()),
		AttrAnomalyKind.String(kind),
	)
}

// RecordRecoverableAmount accumulates the monetary gap a verification found.
// The decimal amount is recorded in cents to keep the counter integral.
func (bm *BusinessMetrics) RecordRecoverableAmount(ctx context.Context, tenantID uuid.UUID, amount decimal.Decimal) {
	cents := amount.Mul(decimal.NewFromInt(100)).IntPart()
	if cents <= 0 {
		return
	}
	bm.recoverableCentsTotal.Add(ctx, cents,
		AttrTenantID.String(tenantID.String()),
	)
}

// =============================================================================
// Rebate and EMAC Metrics
// =============================================================================

// RecordScheduleComputed records a rebate schedule computation.
func (bm *BusinessMetrics) RecordScheduleComputed(ctx context.Context, tenantID, laboratoryID uuid.UUID) {
	bm.scheduleComputedTotal.Inc(ctx,
		AttrTenantID.String(tenantID.String()),
		AttrLaboratoryID.String(laboratoryID.String()),
	)
}

// RecordEmacVerified records an EMAC reconciliation run and its outcome status.
func (bm *BusinessMetrics) RecordEmacVerified(ctx context.Context, tenantID uuid.UUID, status string) {
	bm.emacVerifiedTotal.Inc(ctx,
		AttrTenantID.String(tenantID.String()),
		AttrEmacStatus.String(status),
	)
}

// =============================================================================
// Backlog Gauges
// =============================================================================

// RecordUnresolvedAnomalyCount records the current open-anomaly backlog.
func (bm *BusinessMetrics) RecordUnresolvedAnomalyCount(ctx context.Context, tenantID uuid.UUID, count int64) {
	bm.unresolvedAnomalyCount.Record(ctx, count,
		AttrTenantID.String(tenantID.String()),
	)
}

// RecordPendingScheduleCount records the current pending-schedule backlog.
func (bm *BusinessMetrics) RecordPendingScheduleCount(ctx context.Context, tenantID uuid.UUID, count int64) {
	bm.pendingScheduleCount.Record(ctx, count,
		AttrTenantID.String(tenantID.String()),
	)
}

// =============================================================================
// Periodic Collection
// =============================================================================

// TenantProvider provides tenant IDs for periodic metrics collection.
type TenantProvider interface {
	GetActiveTenantIDs(ctx context.Context) ([]uuid.UUID, error)
}

// StartPeriodicCollection starts periodic collection of backlog gauges.
// Non-blocking; use Stop() to stop collection.
func (bm *BusinessMetrics) StartPeriodicCollection(ctx context.Context, tenantProvider TenantProvider, interval time.Duration) {
	bm.collectOnce.Do(func() {
		if interval <= 0 {
			interval = 5 * time.Minute
		}

		go bm.runPeriodicCollection(ctx, tenantProvider, interval)
	})
}

func (bm *BusinessMetrics) runPeriodicCollection(ctx context.Context, tenantProvider TenantProvider, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Collect immediately on start
	bm.collectBacklogMetrics(ctx, tenantProvider)

	for {
		select {
		case <-bm.stopChan:
			bm.logger.Info("Stopping periodic business metrics collection")
			return
		case <-ctx.Done():
			bm.logger.Info("Context cancelled, stopping periodic business metrics collection")
			return
		case <-ticker.C:
			bm.collectBacklogMetrics(ctx, tenantProvider)
		}
	}
}

func (bm *BusinessMetrics) collectBacklogMetrics(ctx context.Context, tenantProvider TenantProvider) {
	if bm.backlogProvider == nil {
		bm.logger.Debug("No backlog provider configured, skipping backlog metrics collection")
		return
	}

	tenantIDs, err := tenantProvider.GetActiveTenantIDs(ctx)
	if err != nil {
		bm.logger.Error("Failed to get tenant IDs for metrics collection", zap.Error(err))
		return
	}

	for _, tenantID := range tenantIDs {
		bm.collectTenantBacklog(ctx, tenantID)
	}
}

func (bm *BusinessMetrics) collectTenantBacklog(ctx context.Context, tenantID uuid.UUID) {
	anomalies, err := bm.backlogProvider.GetUnresolvedAnomalyCount(ctx, tenantID)
	if err != nil {
		bm.logger.Warn("Failed to get unresolved anomaly count for tenant",
			zap.String("tenant_id", tenantID.String()),
			zap.Error(err),
		)
	} else {
		bm.RecordUnresolvedAnomalyCount(ctx, tenantID, anomalies)
	}

	schedules, err := bm.backlogProvider.GetPendingScheduleCount(ctx, tenantID)
	if err != nil {
		bm.logger.Warn("Failed to get pending schedule count for tenant",
			zap.String("tenant_id", tenantID.String()),
			zap.Error(err),
		)
	} else {
		bm.RecordPendingScheduleCount(ctx, tenantID, schedules)
	}
}

// Stop stops the periodic collection.
func (bm *BusinessMetrics) Stop() {
	bm.stopOnce.Do(func() {
		close(bm.stopChan)
	})
}

// =============================================================================
// Error Types
// =============================================================================

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewBusinessMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}
