package entity

import (
	"time"

	refentity "github.com/bitfantasy/procurement/internal/reference/entity"
	"github.com/bitfantasy/procurement/internal/shared/model"
)

// Budget yearly envelope
type Budget struct {
	ID                int64 `gorm:"primaryKey;autoIncrement"`
	model.Designation `gorm:"embedded"`
	FinancialYear     int     `gorm:"not null"`
	Amount            float64 `gorm:"type:numeric(18,2);not null;default:0"`
	CurrencyID        int64   `gorm:"not null;index"`

	Currency *refentity.Currency `gorm:"foreignKey:CurrencyID"`
}

func (Budget) TableName() string { return "pln_budgets" }

func (b *Budget) GetID() int64 { return b.ID }

// Plan procurement plan of a year
type Plan struct {
	ID                int64 `gorm:"primaryKey;autoIncrement"`
	model.Designation `gorm:"embedded"`
	Year              int    `gorm:"not null"`
	BudgetID          *int64 `gorm:"index"`
	CreatedAt         time.Time
	UpdatedAt         time.Time

	Budget *Budget `gorm:"foreignKey:BudgetID"`
}

func (Plan) TableName() string { return "pln_plans" }

func (p *Plan) GetID() int64 { return p.ID }

// PlannedItem line of a plan; owns its distributions
type PlannedItem struct {
	ID                  int64 `gorm:"primaryKey;autoIncrement"`
	model.Designation   `gorm:"embedded"`
	PlanID              int64   `gorm:"not null;index"`
	ProcurementNatureID int64   `gorm:"not null;index"`
	EstimatedAmount     float64 `gorm:"type:numeric(18,2);not null;default:0"`

	Plan              *Plan                        `gorm:"foreignKey:PlanID"`
	ProcurementNature *refentity.ProcurementNature `gorm:"foreignKey:ProcurementNatureID"`
	Distributions     []ItemDistribution           `gorm:"foreignKey:PlannedItemID"`
}

func (PlannedItem) TableName() string { return "pln_planned_items" }

func (i *PlannedItem) GetID() int64 { return i.ID }

// ItemDistribution share of a planned item allotted to a structure
type ItemDistribution struct {
	ID            int64   `gorm:"primaryKey;autoIncrement"`
	PlannedItemID int64   `gorm:"not null;index"`
	Structure     string  `gorm:"size:200;not null"`
	Quantity      float64 `gorm:"type:numeric(18,3);not null"`
	Amount        float64 `gorm:"type:numeric(18,2);not null;default:0"`
}

func (ItemDistribution) TableName() string { return "pln_item_distributions" }

func (d *ItemDistribution) GetID() int64 { return d.ID }
