package models

import (
	"github.com/shopspring/decimal"

	"github.com/rfa/backend/internal/domain/partner"
)

// LaboratoryModel is the persistence model for the Laboratory aggregate root.
type LaboratoryModel struct {
	TenantAggregateModel
	Name              string          `gorm:"type:varchar(200);not null;uniqueIndex:idx_laboratory_tenant_name,priority:2"`
	ContactEmail      string          `gorm:"type:varchar(200)"`
	ContactPhone      string          `gorm:"type:varchar(50)"`
	Active            bool            `gorm:"not null;default:true;index"`
	FrancoThreshold   decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	ShippingFeeEstim  decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	DefaultPaymentDay int             `gorm:"not null;default:0"`
	Notes             string          `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (LaboratoryModel) TableName() string {
	return "laboratories"
}

// ToDomain converts the persistence model to a domain Laboratory entity.
func (m *LaboratoryModel) ToDomain() *partner.Laboratory {
	lab := &partner.Laboratory{
		Name:              m.Name,
		ContactEmail:      m.ContactEmail,
		ContactPhone:      m.ContactPhone,
		Active:            m.Active,
		FrancoThreshold:   m.FrancoThreshold,
		ShippingFeeEstim:  m.ShippingFeeEstim,
		DefaultPaymentDay: m.DefaultPaymentDay,
		Notes:             m.Notes,
	}
	m.PopulateTenantAggregateRoot(&lab.TenantAggregateRoot)
	return lab
}

// FromDomain populates the persistence model from a domain Laboratory entity.
func (m *LaboratoryModel) FromDomain(l *partner.Laboratory) {
	m.FromDomainTenantAggregateRoot(l.TenantAggregateRoot)
	m.Name = l.Name
	m.ContactEmail = l.ContactEmail
	m.ContactPhone = l.ContactPhone
	m.Active = l.Active
	m.FrancoThreshold = l.FrancoThreshold
	m.ShippingFeeEstim = l.ShippingFeeEstim
	m.DefaultPaymentDay = l.DefaultPaymentDay
	m.Notes = l.Notes
}

// LaboratoryModelFromDomain creates a new persistence model from a domain Laboratory entity.
func LaboratoryModelFromDomain(l *partner.Laboratory) *LaboratoryModel {
	m := &LaboratoryModel{}
	m.FromDomain(l)
	return m
}
