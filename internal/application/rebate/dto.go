package rebate

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rfa/backend/internal/domain/rebate"
)

// CreateTemplateRequest represents a request to create a rebate template.
type CreateTemplateRequest struct {
	Name               string                 `json:"name" binding:"required,min=1,max=200"`
	LaboratoryName     string                 `json:"laboratory_name" binding:"max=200"`
	RebateType         string                 `json:"rebate_type" binding:"required"`
	Frequency          string                 `json:"frequency" binding:"required"`
	Scope              string                 `json:"scope" binding:"required"`
	Tiers              rebate.Tiers           `json:"tiers"`
	Structure          *rebate.Structure      `json:"structure"`
	EscompteRate       string                 `json:"escompte_rate"`
	CooperationRate    string                 `json:"cooperation_rate"`
	FreeGoodsRatio     string                 `json:"free_goods_ratio"`
	FreeGoodsThreshold int                    `json:"free_goods_threshold" binding:"gte=0"`
}

// UpdateTemplateRequest is a partial template update. Any change on a template
// referenced by agreements bumps its version.
type UpdateTemplateRequest struct {
	Name               *string           `json:"name" binding:"omitempty,min=1,max=200"`
	Tiers              *rebate.Tiers     `json:"tiers"`
	Structure          *rebate.Structure `json:"structure"`
	EscompteRate       *string           `json:"escompte_rate"`
	CooperationRate    *string           `json:"cooperation_rate"`
	FreeGoodsRatio     *string           `json:"free_goods_ratio"`
	FreeGoodsThreshold *int              `json:"free_goods_threshold" binding:"omitempty,gte=0"`
	Active             *bool             `json:"active"`
}

// TemplateResponse is the public view of a rebate template.
type TemplateResponse struct {
	ID                 uuid.UUID        `json:"id"`
	Name               string           `json:"name"`
	LaboratoryName     string           `json:"laboratory_name,omitempty"`
	RebateType         string           `json:"rebate_type"`
	Frequency          string           `json:"frequency"`
	Scope              string           `json:"scope"`
	Tiers              rebate.Tiers     `json:"tiers,omitempty"`
	Structure          rebate.Structure `json:"structure"`
	EscompteRate       decimal.Decimal  `json:"escompte_rate"`
	CooperationRate    decimal.Decimal  `json:"cooperation_rate"`
	FreeGoodsRatio     string           `json:"free_goods_ratio,omitempty"`
	FreeGoodsThreshold int              `json:"free_goods_threshold"`
	TemplateVersion    int              `json:"template_version"`
	Active             bool             `json:"active"`
	CreatedAt          time.Time        `json:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at"`
}

// ToTemplateResponse maps a template aggregate to its response.
func ToTemplateResponse(t *rebate.RebateTemplate) TemplateResponse {
	return TemplateResponse{
		ID:                 t.ID,
		Name:               t.Name,
		LaboratoryName:     t.LaboratoryName,
		RebateType:         string(t.RebateType),
		Frequency:          string(t.Frequency),
		Scope:              string(t.Scope),
		Tiers:              t.Tiers,
		Structure:          t.Structure,
		EscompteRate:       t.EscompteRate,
		CooperationRate:    t.CooperationRate,
		FreeGoodsRatio:     t.FreeGoodsRatio,
		FreeGoodsThreshold: t.FreeGoodsThreshold,
		TemplateVersion:    t.TemplateVersion,
		Active:             t.Active,
		CreatedAt:          t.CreatedAt,
		UpdatedAt:          t.UpdatedAt,
	}
}

// CreateAgreementRequest represents a request to create a laboratory
// agreement, optionally seeded from a template.
type CreateAgreementRequest struct {
	LaboratoryID       uuid.UUID               `json:"laboratory_id" binding:"required"`
	TemplateID         *uuid.UUID              `json:"template_id"`
	Name               string                  `json:"name" binding:"required,min=1,max=200"`
	StartDate          time.Time               `json:"start_date" binding:"required"`
	EndDate            *time.Time              `json:"end_date"`
	TargetRateA        string                  `json:"target_rate_a"`
	TargetRateB        string                  `json:"target_rate_b"`
	TargetRateOTC      string                  `json:"target_rate_otc"`
	EscompteApplicable bool                    `json:"escompte_applicable"`
	EscompteRate       string                  `json:"escompte_rate"`
	EscompteDelayDays  int                     `json:"escompte_delay_days" binding:"gte=0"`
	FrancoThreshold    string                  `json:"franco_threshold"`
	ShippingFeeEstim   string                  `json:"shipping_fee_estim"`
	AnnualObjective    string                  `json:"annual_objective"`
	Config             *rebate.AgreementConfig `json:"agreement_config"`
	CustomTiers        rebate.Tiers            `json:"custom_tiers"`
}

// UpdateAgreementRequest is a partial agreement update. Updating an active
// agreement archives it and produces a new draft version.
type UpdateAgreementRequest struct {
	Name               *string                 `json:"name" binding:"omitempty,min=1,max=200"`
	EndDate            *time.Time              `json:"end_date"`
	TargetRateA        *string                 `json:"target_rate_a"`
	TargetRateB        *string                 `json:"target_rate_b"`
	TargetRateOTC      *string                 `json:"target_rate_otc"`
	EscompteApplicable *bool                   `json:"escompte_applicable"`
	EscompteRate       *string                 `json:"escompte_rate"`
	EscompteDelayDays  *int                    `json:"escompte_delay_days" binding:"omitempty,gte=0"`
	FrancoThreshold    *string                 `json:"franco_threshold"`
	ShippingFeeEstim   *string                 `json:"shipping_fee_estim"`
	AnnualObjective    *string                 `json:"annual_objective"`
	Config             *rebate.AgreementConfig `json:"agreement_config"`
	CustomTiers        *rebate.Tiers           `json:"custom_tiers"`
}

// AgreementResponse is the public view of a laboratory agreement.
type AgreementResponse struct {
	ID                 uuid.UUID              `json:"id"`
	LaboratoryID       uuid.UUID              `json:"laboratory_id"`
	TemplateID         *uuid.UUID             `json:"template_id,omitempty"`
	TemplateVersion    int                    `json:"template_version"`
	Name               string                 `json:"name"`
	StartDate          time.Time              `json:"start_date"`
	EndDate            *time.Time             `json:"end_date,omitempty"`
	Status             string                 `json:"status"`
	TargetRateA        decimal.Decimal        `json:"target_rate_a"`
	TargetRateB        decimal.Decimal        `json:"target_rate_b"`
	TargetRateOTC      decimal.Decimal        `json:"target_rate_otc"`
	EscompteApplicable bool                   `json:"escompte_applicable"`
	EscompteRate       decimal.Decimal        `json:"escompte_rate"`
	EscompteDelayDays  int                    `json:"escompte_delay_days"`
	FrancoThreshold    decimal.Decimal        `json:"franco_threshold"`
	ShippingFeeEstim   decimal.Decimal        `json:"shipping_fee_estim"`
	FreeGoodsEnabled   bool                   `json:"free_goods_enabled"`
	FreeGoodsRatio     string                 `json:"free_goods_ratio,omitempty"`
	FreeGoodsThreshold int                    `json:"free_goods_threshold"`
	AnnualObjective    decimal.Decimal        `json:"annual_objective"`
	Config             rebate.AgreementConfig `json:"agreement_config"`
	Structure          rebate.Structure       `json:"structure"`
	CustomTiers        rebate.Tiers           `json:"custom_tiers,omitempty"`
	AgreementVersion   int                    `json:"agreement_version"`
	PreviousVersionID  *uuid.UUID             `json:"previous_version_id,omitempty"`
	CACumule           decimal.Decimal        `json:"ca_cumule"`
	RemiseCumulee      decimal.Decimal        `json:"remise_cumulee"`
	CreatedAt          time.Time              `json:"created_at"`
	UpdatedAt          time.Time              `json:"updated_at"`
}

// ToAgreementResponse maps an agreement aggregate to its response.
func ToAgreementResponse(a *rebate.LaboratoryAgreement) AgreementResponse {
	return AgreementResponse{
		ID:                 a.ID,
		LaboratoryID:       a.LaboratoryID,
		TemplateID:         a.TemplateID,
		TemplateVersion:    a.TemplateVersion,
		Name:               a.Name,
		StartDate:          a.StartDate,
		EndDate:            a.EndDate,
		Status:             string(a.Status),
		TargetRateA:        a.TargetRateA,
		TargetRateB:        a.TargetRateB,
		TargetRateOTC:      a.TargetRateOTC,
		EscompteApplicable: a.EscompteApplicable,
		EscompteRate:       a.EscompteRate,
		EscompteDelayDays:  a.EscompteDelayDays,
		FrancoThreshold:    a.FrancoThreshold,
		ShippingFeeEstim:   a.ShippingFeeEstim,
		FreeGoodsEnabled:   a.FreeGoodsEnabled,
		FreeGoodsRatio:     a.FreeGoodsRatio,
		FreeGoodsThreshold: a.FreeGoodsThreshold,
		AnnualObjective:    a.AnnualObjective,
		Config:             a.Config,
		Structure:          a.Structure,
		CustomTiers:        a.CustomTiers,
		AgreementVersion:   a.AgreementVersion,
		PreviousVersionID:  a.PreviousVersionID,
		CACumule:           a.CACumule,
		RemiseCumulee:      a.RemiseCumulee,
		CreatedAt:          a.CreatedAt,
		UpdatedAt:          a.UpdatedAt,
	}
}

// AuditEntryResponse is one agreement audit record.
type AuditEntryResponse struct {
	ID          uuid.UUID         `json:"id"`
	AgreementID uuid.UUID         `json:"agreement_id"`
	UserID      uuid.UUID         `json:"user_id"`
	Action      string            `json:"action"`
	AncienEtat  rebate.AuditState `json:"ancien_etat,omitempty"`
	NouvelEtat  rebate.AuditState `json:"nouvel_etat,omitempty"`
	Description string            `json:"description"`
	IPAddress   string            `json:"ip_address,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

// ToAuditEntryResponse maps an audit record to its response.
func ToAuditEntryResponse(e *rebate.AgreementAuditLog) AuditEntryResponse {
	return AuditEntryResponse{
		ID:          e.ID,
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

// ScheduleEntryResponse is one stage payment of a schedule.
type ScheduleEntryResponse struct {
	StageID       string          `json:"stage_id"`
	Label         string          `json:"label"`
	Order         int             `json:"order"`
	DueDate       time.Time       `json:"due_date"`
	Amount        decimal.Decimal `json:"amount"`
	AmountA       decimal.Decimal `json:"amount_a"`
	AmountB       decimal.Decimal `json:"amount_b"`
	PaymentMethod string          `json:"payment_method"`
	Status        string          `json:"status"`
}

// ScheduleResponse is the public view of a rebate schedule.
type ScheduleResponse struct {
	ID               uuid.UUID               `json:"id"`
	AgreementID      uuid.UUID               `json:"agreement_id"`
	InvoiceID        uuid.UUID               `json:"invoice_id"`
	LaboratoryID     uuid.UUID               `json:"laboratory_id"`
	RebateType       string                  `json:"rebate_type"`
	MontantBaseHT    decimal.Decimal         `json:"montant_base_ht"`
	TauxApplique     decimal.Decimal         `json:"taux_applique"`
	MontantPrevu     decimal.Decimal         `json:"montant_prevu"`
	MontantRecu      *decimal.Decimal        `json:"montant_recu,omitempty"`
	Ecart            *decimal.Decimal        `json:"ecart,omitempty"`
	Breakdown        rebate.TrancheBreakdown `json:"tranche_breakdown"`
	Entries          []ScheduleEntryResponse `json:"rebate_entries"`
	Status           string                  `json:"status"`
	InvoiceDate      time.Time               `json:"invoice_date"`
	InvoiceAmount    decimal.Decimal         `json:"invoice_amount"`
	DateEcheance     time.Time               `json:"date_echeance"`
	DateReception    *time.Time              `json:"date_reception,omitempty"`
	AgreementVersion int                     `json:"agreement_version"`
	CreatedAt        time.Time               `json:"created_at"`
}

// ToScheduleResponse maps a schedule aggregate to its response.
func ToScheduleResponse(s *rebate.RebateSchedule) ScheduleResponse {
	entries := make([]ScheduleEntryResponse, 0, len(s.Entries))
	for _, e := range s.Entries {
		entries = append(entries, ScheduleEntryResponse{
			StageID:       e.StageID,
			Label:         e.Label,
			Order:         e.Order,
			DueDate:       e.DueDate,
			Amount:        e.Amount,
			AmountA:       e.AmountA,
			AmountB:       e.AmountB,
			PaymentMethod: string(e.PaymentMethod),
			Status:        string(e.Status),
		})
	}
	return ScheduleResponse{
		ID:               s.ID,
		AgreementID:      s.AgreementID,
		InvoiceID:        s.InvoiceID,
		LaboratoryID:     s.LaboratoryID,
		RebateType:       string(s.RebateType),
		MontantBaseHT:    s.MontantBaseHT,
		TauxApplique:     s.TauxApplique,
		MontantPrevu:     s.MontantPrevu,
		MontantRecu:      s.MontantRecu,
		Ecart:            s.Ecart,
		Breakdown:        s.Breakdown,
		Entries:          entries,
		Status:           string(s.Status),
		InvoiceDate:      s.InvoiceDate,
		InvoiceAmount:    s.InvoiceAmount,
		DateEcheance:     s.DateEcheance,
		DateReception:    s.DateReception,
		AgreementVersion: s.AgreementVersion,
		CreatedAt:        s.CreatedAt,
	}
}

// PreviewScheduleRequest selects the invoice to simulate. Config and
// Structure, when set, stand in for the stored active agreement's grid during
// the simulation, so a renegotiated rate table can be tried before saving it.
type PreviewScheduleRequest struct {
	InvoiceID uuid.UUID               `json:"invoice_id" binding:"required"`
	Config    *rebate.AgreementConfig `json:"agreement_config"`
	Structure *rebate.Structure       `json:"structure"`
}

// RecordReceptionRequest carries the amount actually received.
type RecordReceptionRequest struct {
	Amount     string    `json:"amount" binding:"required"`
	ReceivedAt time.Time `json:"received_at" binding:"required"`
}

// MonthlyDashboardResponse aggregates expected rebates for one month.
type MonthlyDashboardResponse struct {
	Year          int                      `json:"year"`
	Month         int                      `json:"month"`
	ExpectedTotal decimal.Decimal          `json:"expected_total"`
	Laboratories  []rebate.MonthlyForecast `json:"laboratories"`
}
