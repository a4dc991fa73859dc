package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rfa/backend/internal/domain/invoice"
)

// LaboInvoiceModel is the persistence model for the LaboInvoice aggregate root.
type LaboInvoiceModel struct {
	TenantAggregateModel
	LaboratoryID uuid.UUID              `gorm:"type:uuid;not null;index;uniqueIndex:idx_invoice_tenant_labo_number,priority:2"`
	Number       string                 `gorm:"type:varchar(100);not null;uniqueIndex:idx_invoice_tenant_labo_number,priority:3"`
	InvoiceDate  time.Time              `gorm:"not null;index"`
	BrutHT       decimal.Decimal        `gorm:"type:decimal(18,4);not null;default:0"`
	NetHT        decimal.Decimal        `gorm:"type:decimal(18,4);not null;default:0"`
	TotalTVA     decimal.Decimal        `gorm:"type:decimal(18,4);not null;default:0"`
	TTC          decimal.Decimal        `gorm:"type:decimal(18,4);not null;default:0"`
	PaymentMode  string                 `gorm:"type:varchar(50)"`
	PaymentDelay string                 `gorm:"type:varchar(100)"`
	ABrut        decimal.Decimal        `gorm:"type:decimal(18,4);not null;default:0"`
	ARemise      decimal.Decimal        `gorm:"type:decimal(18,4);not null;default:0"`
	BBrut        decimal.Decimal        `gorm:"type:decimal(18,4);not null;default:0"`
	BRemise      decimal.Decimal        `gorm:"type:decimal(18,4);not null;default:0"`
	OTCBrut      decimal.Decimal        `gorm:"type:decimal(18,4);not null;default:0"`
	OTCRemise    decimal.Decimal        `gorm:"type:decimal(18,4);not null;default:0"`
	Status       invoice.InvoiceStatus  `gorm:"type:varchar(20);not null;default:'IMPORTED';index"`
	Lines        []InvoiceLineModel     `gorm:"foreignKey:InvoiceID;references:ID"`
}

// TableName returns the table name for GORM
func (LaboInvoiceModel) TableName() string {
	return "labo_invoices"
}

// ToDomain converts the persistence model to a domain LaboInvoice entity.
func (m *LaboInvoiceModel) ToDomain() *invoice.LaboInvoice {
	inv := &invoice.LaboInvoice{
		LaboratoryID: m.LaboratoryID,
		Number:       m.Number,
		InvoiceDate:  m.InvoiceDate,
		BrutHT:       m.BrutHT,
		NetHT:        m.NetHT,
		TotalTVA:     m.TotalTVA,
		TTC:          m.TTC,
		PaymentMode:  m.PaymentMode,
		PaymentDelay: m.PaymentDelay,
		ABrut:        m.ABrut,
		ARemise:      m.ARemise,
		BBrut:        m.BBrut,
		BRemise:      m.BRemise,
		OTCBrut:      m.OTCBrut,
		OTCRemise:    m.OTCRemise,
		Status:       m.Status,
		Lines:        make([]invoice.InvoiceLine, len(m.Lines)),
	}
	m.PopulateTenantAggregateRoot(&inv.TenantAggregateRoot)
	for i := range m.Lines {
		inv.Lines[i] = *m.Lines[i].ToDomain()
	}
	return inv
}

// FromDomain populates the persistence model from a domain LaboInvoice entity.
func (m *LaboInvoiceModel) FromDomain(inv *invoice.LaboInvoice) {
	m.FromDomainTenantAggregateRoot(inv.TenantAggregateRoot)
	m.LaboratoryID = inv.LaboratoryID
	m.Number = inv.Number
	m.InvoiceDate = inv.InvoiceDate
	m.BrutHT = inv.BrutHT
	m.NetHT = inv.NetHT
	m.TotalTVA = inv.TotalTVA
	m.TTC = inv.TTC
	m.PaymentMode = inv.PaymentMode
	m.PaymentDelay = inv.PaymentDelay
	m.ABrut = inv.ABrut
	m.ARemise = inv.ARemise
	m.BBrut = inv.BBrut
	m.BRemise = inv.BRemise
	m.OTCBrut = inv.OTCBrut
	m.OTCRemise = inv.OTCRemise
	m.Status = inv.Status
	m.Lines = make([]InvoiceLineModel, len(inv.Lines))
	for i := range inv.Lines {
		m.Lines[i] = *InvoiceLineModelFromDomain(&inv.Lines[i])
	}
}

// LaboInvoiceModelFromDomain creates a new persistence model from a domain LaboInvoice entity.
func LaboInvoiceModelFromDomain(inv *invoice.LaboInvoice) *LaboInvoiceModel {
	m := &LaboInvoiceModel{}
	m.FromDomain(inv)
	return m
}

// InvoiceLineModel is the persistence model for the InvoiceLine entity.
type InvoiceLineModel struct {
	ID            uuid.UUID       `gorm:"type:uuid;primary_key"`
	InvoiceID     uuid.UUID       `gorm:"type:uuid;not null;index"`
	CIP13         string          `gorm:"type:varchar(13);not null;index"`
	Designation   string          `gorm:"type:varchar(300)"`
	Lot           string          `gorm:"type:varchar(100)"`
	Quantity      int             `gorm:"not null"`
	PuHT          decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	RemisePct     decimal.Decimal `gorm:"type:decimal(8,4);not null;default:0"`
	PuAfterRemise decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	MontantHT     decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	TauxTVA       decimal.Decimal `gorm:"type:decimal(8,4);not null;default:0"`
	MontantBrut   decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	MontantRemise decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	Tranche       invoice.Tranche `gorm:"type:varchar(5)"`
}

// TableName returns the table name for GORM
func (InvoiceLineModel) TableName() string {
	return "invoice_lines"
}

// ToDomain converts the persistence model to a domain InvoiceLine entity.
func (m *InvoiceLineModel) ToDomain() *invoice.InvoiceLine {
	return &invoice.InvoiceLine{
		ID:            m.ID,
		InvoiceID:     m.InvoiceID,
		CIP13:         m.CIP13,
		Designation:   m.Designation,
		Lot:           m.Lot,
		Quantity:      m.Quantity,
		PuHT:          m.PuHT,
		RemisePct:     m.RemisePct,
		PuAfterRemise: m.PuAfterRemise,
		MontantHT:     m.MontantHT,
		TauxTVA:       m.TauxTVA,
		MontantBrut:   m.MontantBrut,
		MontantRemise: m.MontantRemise,
		Tranche:       m.Tranche,
	}
}

// InvoiceLineModelFromDomain creates a new persistence model from a domain InvoiceLine entity.
func InvoiceLineModelFromDomain(l *invoice.InvoiceLine) *InvoiceLineModel {
	return &InvoiceLineModel{
		ID:            l.ID,
		InvoiceID:     l.InvoiceID,
		CIP13:         l.CIP13,
		Designation:   l.Designation,
		Lot:           l.Lot,
		Quantity:      l.Quantity,
		PuHT:          l.PuHT,
		RemisePct:     l.RemisePct,
		PuAfterRemise: l.PuAfterRemise,
		MontantHT:     l.MontantHT,
		TauxTVA:       l.TauxTVA,
		MontantBrut:   l.MontantBrut,
		MontantRemise: l.MontantRemise,
		Tranche:       l.Tranche,
	}
}

// InvoiceAnomalyModel is the persistence model for the invoice Anomaly aggregate.
type InvoiceAnomalyModel struct {
	TenantAggregateModel
	InvoiceID      uuid.UUID               `gorm:"type:uuid;not null;index"`
	Kind           invoice.AnomalyKind     `gorm:"type:varchar(30);not null"`
	Severity       invoice.AnomalySeverity `gorm:"type:varchar(15);not null;index"`
	Description    string                  `gorm:"type:text"`
	MontantEcart   decimal.Decimal         `gorm:"type:decimal(18,4);not null;default:0"`
	ActionSuggeree string                  `gorm:"type:text"`
	Resolu         bool                    `gorm:"not null;default:false;index"`
	ResolutionNote string                  `gorm:"type:text"`
	ResolvedAt     *time.Time              `gorm:""`
}

// TableName returns the table name for GORM
func (InvoiceAnomalyModel) TableName() string {
	return "invoice_anomalies"
}

// ToDomain converts the persistence model to a domain Anomaly entity.
func (m *InvoiceAnomalyModel) ToDomain() *invoice.Anomaly {
	a := &invoice.Anomaly{
		InvoiceID:      m.InvoiceID,
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
func (m *InvoiceAnomalyModel) FromDomain(a *invoice.Anomaly) {
	m.FromDomainTenantAggregateRoot(a.TenantAggregateRoot)
	m.InvoiceID = a.InvoiceID
	m.Kind = a.Kind
	m.Severity = a.Severity
	m.Description = a.Description
	m.MontantEcart = a.MontantEcart
	m.ActionSuggeree = a.ActionSuggeree
	m.Resolu = a.Resolu
	m.ResolutionNote = a.ResolutionNote
	m.ResolvedAt = a.ResolvedAt
}

// InvoiceAnomalyModelFromDomain creates a new persistence model from a domain Anomaly entity.
func InvoiceAnomalyModelFromDomain(a *invoice.Anomaly) *InvoiceAnomalyModel {
	m := &InvoiceAnomalyModel{}
	m.FromDomain(a)
	return m
}
