package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rfa/backend/internal/domain/emac"
)

// EMACModel is the persistence model for the EMAC statement aggregate root.
type EMACModel struct {
	TenantAggregateModel
	LaboratoryID uuid.UUID `gorm:"type:uuid;not null;index:idx_emac_tenant_labo"`
	PeriodStart  time.Time `gorm:"not null;index"`
	PeriodEnd    time.Time `gorm:"not null;index"`

	DeclaredCA       decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	DeclaredRFA      decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	DeclaredCOP      decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	DeclaredDiffered decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	OtherAdvantages  decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	TotalDeclared    decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	AmountPaid       decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	RemainingBalance decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`

	CAReel             decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	NbInvoicesMatched  int             `gorm:"not null;default:0"`
	EcartCA            decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	EcartCAPct         decimal.Decimal `gorm:"type:decimal(8,4);not null;default:0"`
	RFAAttendue        decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	EcartRFA           decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	AnomaliesResume    string          `gorm:"type:text"`
	NbAnomalies        int             `gorm:"not null;default:0"`
	Status             emac.EMACStatus `gorm:"type:varchar(20);not null;default:'non_verifie';index"`
	MontantRecouvrable decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	VerifiedAt         *time.Time      `gorm:""`
}

// TableName returns the table name for GORM
func (EMACModel) TableName() string {
	return "emac_statements"
}

// ToDomain converts the persistence model to a domain EMAC entity.
func (m *EMACModel) ToDomain() *emac.EMAC {
	e := &emac.EMAC{
		LaboratoryID:       m.LaboratoryID,
		PeriodStart:        m.PeriodStart,
		PeriodEnd:          m.PeriodEnd,
		DeclaredCA:         m.DeclaredCA,
		DeclaredRFA:        m.DeclaredRFA,
		DeclaredCOP:        m.DeclaredCOP,
		DeclaredDiffered:   m.DeclaredDiffered,
		OtherAdvantages:    m.OtherAdvantages,
		TotalDeclared:      m.TotalDeclared,
		AmountPaid:         m.AmountPaid,
		RemainingBalance:   m.RemainingBalance,
		CAReel:             m.CAReel,
		NbInvoicesMatched:  m.NbInvoicesMatched,
		EcartCA:            m.EcartCA,
		EcartCAPct:         m.EcartCAPct,
		RFAAttendue:        m.RFAAttendue,
		EcartRFA:           m.EcartRFA,
		AnomaliesResume:    m.AnomaliesResume,
		NbAnomalies:        m.NbAnomalies,
		Status:             m.Status,
		MontantRecouvrable: m.MontantRecouvrable,
		VerifiedAt:         m.VerifiedAt,
	}
	m.PopulateTenantAggregateRoot(&e.TenantAggregateRoot)
	return e
}

// FromDomain populates the persistence model from a domain EMAC entity.
func (m *EMACModel) FromDomain(e *emac.EMAC) {
	m.FromDomainTenantAggregateRoot(e.TenantAggregateRoot)
	m.LaboratoryID = e.LaboratoryID
	m.PeriodStart = e.PeriodStart
	m.PeriodEnd = e.PeriodEnd
	m.DeclaredCA = e.DeclaredCA
	m.DeclaredRFA = e.DeclaredRFA
	m.DeclaredCOP = e.DeclaredCOP
	m.DeclaredDiffered = e.DeclaredDiffered
	m.OtherAdvantages = e.OtherAdvantages
	m.TotalDeclared = e.TotalDeclared
	m.AmountPaid = e.AmountPaid
	m.RemainingBalance = e.RemainingBalance
	m.CAReel = e.CAReel
	m.NbInvoicesMatched = e.NbInvoicesMatched
	m.EcartCA = e.EcartCA
	m.EcartCAPct = e.EcartCAPct
	m.RFAAttendue = e.RFAAttendue
	m.EcartRFA = e.EcartRFA
	m.AnomaliesResume = e.AnomaliesResume
	m.NbAnomalies = e.NbAnomalies
	m.Status = e.Status
	m.MontantRecouvrable = e.MontantRecouvrable
	m.VerifiedAt = e.VerifiedAt
}

// EMACModelFromDomain creates a new persistence model from a domain EMAC entity.
func EMACModelFromDomain(e *emac.EMAC) *EMACModel {
	m := &EMACModel{}
	m.FromDomain(e)
	return m
}

// EMACAnomalyModel is the persistence model for EMAC reconciliation findings.
type EMACAnomalyModel struct {
	TenantAggregateModel
	EMACID         uuid.UUID            `gorm:"type:uuid;not null;index;column:emac_id"`
	Kind           emac.AnomalyKind     `gorm:"type:varchar(30);not null"`
	Severity       emac.AnomalySeverity `gorm:"type:varchar(15);not null"`
	Description    string               `gorm:"type:text"`
	MontantEcart   decimal.Decimal      `gorm:"type:decimal(18,4);not null;default:0"`
	ActionSuggeree string               `gorm:"type:text"`
	Resolu         bool                 `gorm:"not null;default:false;index"`
	ResolutionNote string               `gorm:"type:text"`
	ResolvedAt     *time.Time           `gorm:""`
}

// TableName returns the table name for GORM
func (EMACAnomalyModel) TableName() string {
	return "emac_anomalies"
}

// ToDomain converts the persistence model to a domain Anomaly entity.
func (m *EMACAnomalyModel) ToDomain() *emac.Anomaly {
	a := &emac.Anomaly{
		EMACID:         m.EMACID,
		Kind:           m.Kind,
		Severity:       m.Severity,
		Description:    m.Description,
		MontantEcart:   m.MontantEcart,
		ActionSuggeree: m.ActionSuggeree,
		Resolu:         m.Resolu,
		ResolutionNote: m.ResolutionNote,
		ResolvedAt:     m.ResolvedAt,
	}
	m.PopulateTenantAggregateRoot(&a.TenantAggregateRoot)
	return a
}

// FromDomain populates the persistence model from a domain Anomaly entity.
func (m *EMACAnomalyModel) FromDomain(a *emac.Anomaly) {
	m.FromDomainTenantAggregateRoot(a.TenantAggregateRoot)
	m.EMACID = a.EMACID
	m.Kind = a.Kind
	m.Severity = a.Severity
	m.Description = a.Description
	m.MontantEcart = a.MontantEcart
	m.ActionSuggeree = a.ActionSuggeree
	m.Resolu = a.Resolu
	m.ResolutionNote = a.ResolutionNote
	m.ResolvedAt = a.ResolvedAt
}

// EMACAnomalyModelFromDomain creates a new persistence model from a domain Anomaly entity.
func EMACAnomalyModelFromDomain(a *emac.Anomaly) *EMACAnomalyModel {
	m := &EMACAnomalyModel{}
	m.FromDomain(a)
	return m
}
