package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rfa/backend/internal/domain/rebate"
)

// RebateTemplateModel is the persistence model for the RebateTemplate aggregate root.
type RebateTemplateModel struct {
	TenantAggregateModel
	Name               string               `gorm:"type:varchar(200);not null;uniqueIndex:idx_template_tenant_name,priority:2"`
	LaboratoryName     string               `gorm:"type:varchar(200)"`
	RebateType         rebate.RebateType    `gorm:"type:varchar(20);not null"`
	Frequency          rebate.Frequency     `gorm:"type:varchar(20);not null"`
	Tiers              rebate.Tiers         `gorm:"type:jsonb"`
	Structure          rebate.Structure     `gorm:"type:jsonb"`
	EscompteRate       decimal.Decimal      `gorm:"type:decimal(8,4);not null;default:0"`
	CooperationRate    decimal.Decimal      `gorm:"type:decimal(8,4);not null;default:0"`
	FreeGoodsRatio     string               `gorm:"type:varchar(20)"`
	FreeGoodsThreshold int                  `gorm:"not null;default:0"`
	TemplateVersion    int                  `gorm:"not null;default:1"`
	Scope              rebate.TemplateScope `gorm:"type:varchar(20);not null;default:'pharmacy'"`
	Active             bool                 `gorm:"not null;default:true"`
}

// TableName returns the table name for GORM
func (RebateTemplateModel) TableName() string {
	return "rebate_templates"
}

// ToDomain converts the persistence model to a domain RebateTemplate entity.
func (m *RebateTemplateModel) ToDomain() *rebate.RebateTemplate {
	t := &rebate.RebateTemplate{
		Name:               m.Name,
		LaboratoryName:     m.LaboratoryName,
		RebateType:         m.RebateType,
		Frequency:          m.Frequency,
		Tiers:              m.Tiers,
		Structure:          m.Structure,
		EscompteRate:       m.EscompteRate,
		CooperationRate:    m.CooperationRate,
		FreeGoodsRatio:     m.FreeGoodsRatio,
		FreeGoodsThreshold: m.FreeGoodsThreshold,
		TemplateVersion:    m.TemplateVersion,
		Scope:              m.Scope,
		Active:             m.Active,
	}
	m.PopulateTenantAggregateRoot(&t.TenantAggregateRoot)
	return t
}

// FromDomain populates the persistence model from a domain RebateTemplate entity.
func (m *RebateTemplateModel) FromDomain(t *rebate.RebateTemplate) {
	m.FromDomainTenantAggregateRoot(t.TenantAggregateRoot)
	m.Name = t.Name
	m.LaboratoryName = t.LaboratoryName
	m.RebateType = t.RebateType
	m.Frequency = t.Frequency
	m.Tiers = t.Tiers
	m.Structure = t.Structure
	m.EscompteRate = t.EscompteRate
	m.CooperationRate = t.CooperationRate
	m.FreeGoodsRatio = t.FreeGoodsRatio
	m.FreeGoodsThreshold = t.FreeGoodsThreshold
	m.TemplateVersion = t.TemplateVersion
	m.Scope = t.Scope
	m.Active = t.Active
}

// RebateTemplateModelFromDomain creates a new persistence model from a domain RebateTemplate entity.
func RebateTemplateModelFromDomain(t *rebate.RebateTemplate) *RebateTemplateModel {
	m := &RebateTemplateModel{}
	m.FromDomain(t)
	return m
}

// LaboratoryAgreementModel is the persistence model for the LaboratoryAgreement aggregate root.
// Partial unique index enforcing a single active agreement per
// (tenant, laboratory) pair lives in the SQL migration.
type LaboratoryAgreementModel struct {
	TenantAggregateModel
	LaboratoryID       uuid.UUID              `gorm:"type:uuid;not null;index:idx_agreement_tenant_labo"`
	TemplateID         *uuid.UUID             `gorm:"type:uuid;index"`
	TemplateVersion    int                    `gorm:"not null;default:0"`
	Name               string                 `gorm:"type:varchar(200);not null"`
	StartDate          time.Time              `gorm:"not null"`
	EndDate            *time.Time             `gorm:""`
	Status             rebate.AgreementStatus `gorm:"type:varchar(20);not null;default:'draft';index"`
	TargetRateA        decimal.Decimal        `gorm:"type:decimal(8,4);not null;default:0"`
	TargetRateB        decimal.Decimal        `gorm:"type:decimal(8,4);not null;default:0"`
	TargetRateOTC      decimal.Decimal        `gorm:"type:decimal(8,4);not null;default:0"`
	EscompteApplicable bool                   `gorm:"not null;default:false"`
	EscompteRate       decimal.Decimal        `gorm:"type:decimal(8,4);not null;default:0"`
	EscompteDelayDays  int                    `gorm:"not null;default:0"`
	CooperationRate    decimal.Decimal        `gorm:"type:decimal(8,4);not null;default:0"`
	FrancoThreshold    decimal.Decimal        `gorm:"type:decimal(18,4);not null;default:0"`
	ShippingFeeEstim   decimal.Decimal        `gorm:"type:decimal(18,4);not null;default:0"`
	FreeGoodsEnabled   bool                   `gorm:"not null;default:false"`
	FreeGoodsRatio     string                 `gorm:"type:varchar(20)"`
	FreeGoodsThreshold int                    `gorm:"not null;default:0"`
	AnnualObjective    decimal.Decimal        `gorm:"type:decimal(18,4);not null;default:0"`
	Config             rebate.AgreementConfig `gorm:"type:jsonb"`
	Structure          rebate.Structure       `gorm:"type:jsonb"`
	CustomTiers        rebate.Tiers           `gorm:"type:jsonb"`
	AgreementVersion   int                    `gorm:"not null;default:1"`
	PreviousVersionID  *uuid.UUID             `gorm:"type:uuid;index"`
	CACumule           decimal.Decimal        `gorm:"type:decimal(18,4);not null;default:0"`
	RemiseCumulee      decimal.Decimal        `gorm:"type:decimal(18,4);not null;default:0"`
	LastRecomputeAt    *time.Time             `gorm:""`
}

// TableName returns the table name for GORM
func (LaboratoryAgreementModel) TableName() string {
	return "laboratory_agreements"
}

// ToDomain converts the persistence model to a domain LaboratoryAgreement entity.
func (m *LaboratoryAgreementModel) ToDomain() *rebate.LaboratoryAgreement {
	a := &rebate.LaboratoryAgreement{
		LaboratoryID:       m.LaboratoryID,
		TemplateID:         m.TemplateID,
		TemplateVersion:    m.TemplateVersion,
		Name:               m.Name,
		StartDate:          m.StartDate,
		EndDate:            m.EndDate,
		Status:             m.Status,
		TargetRateA:        m.TargetRateA,
		TargetRateB:        m.TargetRateB,
		TargetRateOTC:      m.TargetRateOTC,
		EscompteApplicable: m.EscompteApplicable,
		EscompteRate:       m.EscompteRate,
		EscompteDelayDays:  m.EscompteDelayDays,
		CooperationRate:    m.CooperationRate,
		FrancoThreshold:    m.FrancoThreshold,
		ShippingFeeEstim:   m.ShippingFeeEstim,
		FreeGoodsEnabled:   m.FreeGoodsEnabled,
		FreeGoodsRatio:     m.FreeGoodsRatio,
		FreeGoodsThreshold: m.FreeGoodsThreshold,
		AnnualObjective:    m.AnnualObjective,
		Config:             m.Config,
		Structure:          m.Structure,
		CustomTiers:        m.CustomTiers,
		AgreementVersion:   m.AgreementVersion,
		PreviousVersionID:  m.PreviousVersionID,
		CACumule:           m.CACumule,
		RemiseCumulee:      m.RemiseCumulee,
		LastRecomputeAt:    m.LastRecomputeAt,
	}
	m.PopulateTenantAggregateRoot(&a.TenantAggregateRoot)
	return a
}

// FromDomain populates the persistence model from a domain LaboratoryAgreement entity.
func (m *LaboratoryAgreementModel) FromDomain(a *rebate.LaboratoryAgreement) {
	m.FromDomainTenantAggregateRoot(a.TenantAggregateRoot)
	m.LaboratoryID = a.LaboratoryID
	m.TemplateID = a.TemplateID
	m.TemplateVersion = a.TemplateVersion
	m.Name = a.Name
	m.StartDate = a.StartDate
	m.EndDate = a.EndDate
	m.Status = a.Status
	m.TargetRateA = a.TargetRateA
	m.TargetRateB = a.TargetRateB
	m.TargetRateOTC = a.TargetRateOTC
	m.EscompteApplicable = a.EscompteApplicable
	m.EscompteRate = a.EscompteRate
	m.EscompteDelayDays = a.EscompteDelayDays
	m.CooperationRate = a.CooperationRate
	m.FrancoThreshold = a.FrancoThreshold
	m.ShippingFeeEstim = a.ShippingFeeEstim
	m.FreeGoodsEnabled = a.FreeGoodsEnabled
	m.FreeGoodsRatio = a.FreeGoodsRatio
	m.FreeGoodsThreshold = a.FreeGoodsThreshold
	m.AnnualObjective = a.AnnualObjective
	m.Config = a.Config
	m.Structure = a.Structure
	m.CustomTiers = a.CustomTiers
	m.AgreementVersion = a.AgreementVersion
	m.PreviousVersionID = a.PreviousVersionID
	m.CACumule = a.CACumule
	m.RemiseCumulee = a.RemiseCumulee
	m.LastRecomputeAt = a.LastRecomputeAt
}

// LaboratoryAgreementModelFromDomain creates a new persistence model from a domain LaboratoryAgreement entity.
func LaboratoryAgreementModelFromDomain(a *rebate.LaboratoryAgreement) *LaboratoryAgreementModel {
	m := &LaboratoryAgreementModel{}
	m.FromDomain(a)
	return m
}

// RebateScheduleModel is the persistence model for the RebateSchedule aggregate root.
type RebateScheduleModel struct {
	TenantAggregateModel
	AgreementID      uuid.UUID               `gorm:"type:uuid;not null;index"`
	InvoiceID        uuid.UUID               `gorm:"type:uuid;not null;index"`
	LaboratoryID     uuid.UUID               `gorm:"type:uuid;not null;index"`
	RebateType       rebate.RebateType       `gorm:"type:varchar(20);not null"`
	MontantBaseHT    decimal.Decimal         `gorm:"type:decimal(18,4);not null;default:0"`
	TauxApplique     decimal.Decimal         `gorm:"type:decimal(8,4);not null;default:0"`
	MontantPrevu     decimal.Decimal         `gorm:"type:decimal(18,4);not null;default:0"`
	MontantRecu      *decimal.Decimal        `gorm:"type:decimal(18,4)"`
	Ecart            *decimal.Decimal        `gorm:"type:decimal(18,4)"`
	Applied          rebate.AppliedConfig    `gorm:"type:jsonb;column:applied_config"`
	Breakdown        rebate.TrancheBreakdown `gorm:"type:jsonb;column:tranche_breakdown"`
	Entries          rebate.RebateEntries    `gorm:"type:jsonb;column:rebate_entries"`
	Status           rebate.ScheduleStatus   `gorm:"type:varchar(20);not null;default:'forecast';index"`
	InvoiceDate      time.Time               `gorm:"not null"`
	InvoiceAmount    decimal.Decimal         `gorm:"type:decimal(18,4);not null;default:0"`
	DateEcheance     time.Time               `gorm:"not null;index"`
	DateReception    *time.Time              `gorm:""`
	AgreementVersion int                     `gorm:"not null;default:1"`
}

// TableName returns the table name for GORM
func (RebateScheduleModel) TableName() string {
	return "rebate_schedules"
}

// ToDomain converts the persistence model to a domain RebateSchedule entity.
func (m *RebateScheduleModel) ToDomain() *rebate.RebateSchedule {
	s := &rebate.RebateSchedule{
		AgreementID:      m.AgreementID,
		InvoiceID:        m.InvoiceID,
		LaboratoryID:     m.LaboratoryID,
		RebateType:       m.RebateType,
		MontantBaseHT:    m.MontantBaseHT,
		TauxApplique:     m.TauxApplique,
		MontantPrevu:     m.MontantPrevu,
		MontantRecu:      m.MontantRecu,
		Ecart:            m.Ecart,
		Applied:          m.Applied,
		Breakdown:        m.Breakdown,
		Entries:          m.Entries,
		Status:           m.Status,
		InvoiceDate:      m.InvoiceDate,
		InvoiceAmount:    m.InvoiceAmount,
		DateEcheance:     m.DateEcheance,
		DateReception:    m.DateReception,
		AgreementVersion: m.AgreementVersion,
	}
	m.PopulateTenantAggregateRoot(&s.TenantAggregateRoot)
	return s
}

// FromDomain populates the persistence model from a domain RebateSchedule entity.
func (m *RebateScheduleModel) FromDomain(s *rebate.RebateSchedule) {
	m.FromDomainTenantAggregateRoot(s.TenantAggregateRoot)
	m.AgreementID = s.AgreementID
	m.InvoiceID = s.InvoiceID
	m.LaboratoryID = s.LaboratoryID
	m.RebateType = s.RebateType
	m.MontantBaseHT = s.MontantBaseHT
	m.TauxApplique = s.TauxApplique
	m.MontantPrevu = s.MontantPrevu
	m.MontantRecu = s.MontantRecu
	m.Ecart = s.Ecart
	m.Applied = s.Applied
	m.Breakdown = s.Breakdown
	m.Entries = s.Entries
	m.Status = s.Status
	m.InvoiceDate = s.InvoiceDate
	m.InvoiceAmount = s.InvoiceAmount
	m.DateEcheance = s.DateEcheance
	m.DateReception = s.DateReception
	m.AgreementVersion = s.AgreementVersion
}

// RebateScheduleModelFromDomain creates a new persistence model from a domain RebateSchedule entity.
func RebateScheduleModelFromDomain(s *rebate.RebateSchedule) *RebateScheduleModel {
	m := &RebateScheduleModel{}
	m.FromDomain(s)
	return m
}

// AgreementAuditLogModel is the persistence model for the append-only agreement audit log.
type AgreementAuditLogModel struct {
	ID          uuid.UUID         `gorm:"type:uuid;primary_key"`
	TenantID    uuid.UUID         `gorm:"type:uuid;not null;index"`
	AgreementID uuid.UUID         `gorm:"type:uuid;not null;index"`
	UserID      uuid.UUID         `gorm:"type:uuid;not null"`
	Action      string            `gorm:"type:varchar(30);not null"`
	AncienEtat  rebate.AuditState `gorm:"type:jsonb"`
	NouvelEtat  rebate.AuditState `gorm:"type:jsonb"`
	Description string            `gorm:"type:text"`
	IPAddress   string            `gorm:"type:varchar(50)"`
	CreatedAt   time.Time         `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (AgreementAuditLogModel) TableName() string {
	return "agreement_audit_logs"
}

// ToDomain converts the persistence model to a domain AgreementAuditLog entity.
func (m *AgreementAuditLogModel) ToDomain() *rebate.AgreementAuditLog {
	return &rebate.AgreementAuditLog{
		ID:          m.ID,
		TenantID:    m.TenantID,
		AgreementID: m.AgreementID,
		UserID:      m.UserID,
		Action:      m.Action,
		AncienEtat:  m.AncienEtat,
		NouvelEtat:  m.NouvelEtat,
		Description: m.Description,
		IPAddress:   m.IPAddress,
		CreatedAt:   m.CreatedAt,
	}
}

// AgreementAuditLogModelFromDomain creates a new persistence model from a domain AgreementAuditLog entity.
func AgreementAuditLogModelFromDomain(e *rebate.AgreementAuditLog) *AgreementAuditLogModel {
	return &AgreementAuditLogModel{
		ID:          e.ID,
		TenantID:    e.TenantID,
		AgreementID: e.AgreementID,
		UserID:      e.UserID,
		Action:      e.Action,
		AncienEtat:  e.AncienEtat,
		NouvelEtat:  e.NouvelEtat,
		Description: e.Description,
		IPAddress:   e.IPAddress,
		CreatedAt:   e.CreatedAt,
	}
}
