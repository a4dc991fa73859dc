package rebate

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rfa/backend/internal/domain/shared"
)

// Audit action names.
const (
	AuditActionCreate      = "create"
	AuditActionUpdate      = "update"
	AuditActionVersionBump = "version_bump"
	AuditActionActivate    = "activate"
	AuditActionSuspend     = "suspend"
	AuditActionArchive     = "archive"
)

// AuditState is a JSON snapshot of agreement fields before or after a
// mutation.
type AuditState map[string]interface{}

// Value implements driver.Valuer for database storage
func (s AuditState) Value() (driver.Value, error) {
	if s == nil {
		return nil, nil
	}
	return json.Marshal(s)
}

// Scan implements sql.Scanner for database retrieval
func (s *AuditState) Scan(value interface{}) error {
	if value == nil {
		*s = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, s)
	case string:
		return json.Unmarshal([]byte(v), s)
	default:
		return fmt.Errorf("cannot scan %T into AuditState", value)
	}
}

// AgreementAuditLog is one append-only record of an agreement mutation.
// Entries are written in the same transaction as the mutation they describe.
type AgreementAuditLog struct {
	ID          uuid.UUID  `json:"id"`
	TenantID    uuid.UUID  `json:"tenant_id"`
	AgreementID uuid.UUID  `json:"agreement_id"`
	UserID      uuid.UUID  `json:"user_id"`
	Action      string     `json:"action"`
	AncienEtat  AuditState `json:"ancien_etat,omitempty"`
	NouvelEtat  AuditState `json:"nouvel_etat,omitempty"`
	Description string     `json:"description"`
	IPAddress   string     `json:"ip_address"`
	CreatedAt   time.Time  `json:"created_at"`
}

// NewAuditEntry creates an audit record for one agreement mutation.
func NewAuditEntry(tenantID, agreementID, userID uuid.UUID, action, description, ipAddress string, before, after AuditState) (*AgreementAuditLog, error) {
	if action == "" {
		return nil, shared.NewDomainError("INVALID_AUDIT_ACTION", "Audit action cannot be empty")
	}
	return &AgreementAuditLog{
		ID:          uuid.New(),
		TenantID:    tenantID,
		AgreementID: agreementID,
		UserID:      userID,
		Action:      action,
		AncienEtat:  before,
		NouvelEtat:  after,
		Description: description,
		IPAddress:   ipAddress,
		CreatedAt:   time.Now(),
	}, nil
}

// SnapshotAgreement captures the audit-relevant fields of an agreement.
func SnapshotAgreement(a *LaboratoryAgreement) AuditState {
	if a == nil {
		return nil
	}
	return AuditState{
		"id":                a.ID.String(),
		"status":            string(a.Status),
		"agreement_version": a.AgreementVersion,
		"template_version":  a.TemplateVersion,
		"target_rate_a":     a.TargetRateA.String(),
		"target_rate_b":     a.TargetRateB.String(),
		"target_rate_otc":   a.TargetRateOTC.String(),
		"start_date":        a.StartDate.Format(time.RFC3339),
	}
}

// AuditRepository provides append-only access to agreement audit entries.
type AuditRepository interface {
	Append(ctx context.Context, entry *AgreementAuditLog) error
	FindByAgreement(ctx context.Context, tenantID, agreementID uuid.UUID) ([]AgreementAuditLog, error)
}
