// Package entity holds consultations, submissions, contracts and their amendments.
package entity

import (
	"time"

	planentity "github.com/bitfantasy/procurement/internal/plan/entity"
	prventity "github.com/bitfantasy/procurement/internal/provider/entity"
	refentity "github.com/bitfantasy/procurement/internal/reference/entity"
	"github.com/bitfantasy/procurement/internal/shared/model"
)

// AmendmentType financial, deadline, scope...
type AmendmentType struct {
	model.Lookup
}

func (AmendmentType) TableName() string { return "ctr_amendment_types" }

// AmendmentPhase stage grouping amendment steps
type AmendmentPhase struct {
	model.Lookup
}

func (AmendmentPhase) TableName() string { return "ctr_amendment_phases" }

// AmendmentStep step of an amendment phase
type AmendmentStep struct {
	ID                int64 `gorm:"primaryKey;autoIncrement"`
	model.Designation `gorm:"embedded"`
	PhaseID           int64 `gorm:"not null;index"`

	Phase *AmendmentPhase `gorm:"foreignKey:PhaseID"`
}

func (AmendmentStep) TableName() string { return "ctr_amendment_steps" }

func (s *AmendmentStep) GetID() int64 { return s.ID }

// Consultation call for tenders
type Consultation struct {
	ID                  int64   `gorm:"primaryKey;autoIncrement"`
	Reference           string  `gorm:"size:100;not null"`
	Object              string  `gorm:"size:1000;not null"`
	ProcurementNatureID int64   `gorm:"not null;index"`
	ApprovalStatusID    *int64  `gorm:"index"`
	PlanID              *int64  `gorm:"index"`
	EstimatedAmount     float64 `gorm:"type:numeric(18,2);not null;default:0"`
	PublicationDate     *time.Time
	DeadlineDate        *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time

	ProcurementNature *refentity.ProcurementNature `gorm:"foreignKey:ProcurementNatureID"`
	ApprovalStatus    *refentity.ApprovalStatus    `gorm:"foreignKey:ApprovalStatusID"`
	Plan              *planentity.Plan             `gorm:"foreignKey:PlanID"`
}

func (Consultation) TableName() string { return "ctr_consultations" }

func (c *Consultation) GetID() int64 { return c.ID }

// Submission bid of a provider on a consultation
type Submission struct {
	ID             int64     `gorm:"primaryKey;autoIncrement"`
	ConsultationID int64     `gorm:"not null;index"`
	ProviderID     int64     `gorm:"not null;index"`
	CurrencyID     int64     `gorm:"not null;index"`
	Amount         float64   `gorm:"type:numeric(18,2);not null;default:0"`
	SubmissionDate time.Time `gorm:"not null"`
	CreatedAt      time.Time

	Consultation *Consultation       `gorm:"foreignKey:ConsultationID"`
	Provider     *prventity.Provider `gorm:"foreignKey:ProviderID"`
	Currency     *refentity.Currency `gorm:"foreignKey:CurrencyID"`
}

func (Submission) TableName() string { return "ctr_submissions" }

func (s *Submission) GetID() int64 { return s.ID }

// Contract awarded to a provider
type Contract struct {
	ID                  int64   `gorm:"primaryKey;autoIncrement"`
	Reference           string  `gorm:"size:100;not null"`
	Object              string  `gorm:"size:1000;not null"`
	ProviderID          int64   `gorm:"not null;index"`
	ConsultationID      *int64  `gorm:"index"`
	ContractTypeID      int64   `gorm:"not null;index"`
	ProcurementNatureID int64   `gorm:"not null;index"`
	CurrencyID          int64   `gorm:"not null;index"`
	RealizationStatusID int64   `gorm:"not null;index"`
	ApprovalStatusID    *int64  `gorm:"index"`
	Amount              float64 `gorm:"type:numeric(18,2);not null;default:0"`
	SignatureDate       *time.Time
	StartDate           *time.Time
	EndDate             *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time

	Provider          *prventity.Provider          `gorm:"foreignKey:ProviderID"`
	Consultation      *Consultation                `gorm:"foreignKey:ConsultationID"`
	ContractType      *refentity.ContractType      `gorm:"foreignKey:ContractTypeID"`
	ProcurementNature *refentity.ProcurementNature `gorm:"foreignKey:ProcurementNatureID"`
	Currency          *refentity.Currency          `gorm:"foreignKey:CurrencyID"`
	RealizationStatus *refentity.RealizationStatus `gorm:"foreignKey:RealizationStatusID"`
	ApprovalStatus    *refentity.ApprovalStatus    `gorm:"foreignKey:ApprovalStatusID"`
}

func (Contract) TableName() string { return "ctr_contracts" }

func (c *Contract) GetID() int64 { return c.ID }

// Amendment change to a signed contract
type Amendment struct {
	ID                  int64   `gorm:"primaryKey;autoIncrement"`
	Reference           string  `gorm:"size:100;not null"`
	Object              string  `gorm:"size:1000;not null"`
	ContractID          int64   `gorm:"not null;index"`
	AmendmentTypeID     int64   `gorm:"not null;index"`
	RealizationStatusID int64   `gorm:"not null;index"`
	AmendmentStepID     int64   `gorm:"not null;index"`
	ApprovalStatusID    *int64  `gorm:"index"`
	CurrencyID          int64   `gorm:"not null;index"`
	Amount              float64 `gorm:"type:numeric(18,2);not null;default:0"`
	SignatureDate       *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time

	Contract          *Contract                    `gorm:"foreignKey:ContractID"`
	AmendmentType     *AmendmentType               `gorm:"foreignKey:AmendmentTypeID"`
	RealizationStatus *refentity.RealizationStatus `gorm:"foreignKey:RealizationStatusID"`
	AmendmentStep     *AmendmentStep               `gorm:"foreignKey:AmendmentStepID"`
	ApprovalStatus    *refentity.ApprovalStatus    `gorm:"foreignKey:ApprovalStatusID"`
	Currency          *refentity.Currency          `gorm:"foreignKey:CurrencyID"`
}

func (Amendment) TableName() string { return "ctr_amendments" }

func (a *Amendment) GetID() int64 { return a.ID }
