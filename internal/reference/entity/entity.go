// Package entity holds the reference tables every procurement record points at.
package entity

import "github.com/bitfantasy/procurement/internal/shared/model"

// Currency ISO currency
type Currency struct {
	ID                int64 `gorm:"primaryKey;autoIncrement"`
	model.Designation `gorm:"embedded"`
	Code              string `gorm:"size:3;not null"`
	Symbol            string `gorm:"size:10"`
}

func (Currency) TableName() string { return "ref_currencies" }

func (c *Currency) GetID() int64 { return c.ID }

// Country ISO country
type Country struct {
	ID                int64 `gorm:"primaryKey;autoIncrement"`
	model.Designation `gorm:"embedded"`
	Code              string `gorm:"size:3;not null"`
}

func (Country) TableName() string { return "ref_countries" }

func (c *Country) GetID() int64 { return c.ID }

// ApprovalStatus approval state of a consultation, contract or amendment
type ApprovalStatus struct {
	model.Lookup
}

func (ApprovalStatus) TableName() string { return "ref_approval_statuses" }

// RealizationStatus execution state of a contract or amendment
type RealizationStatus struct {
	model.Lookup
}

func (RealizationStatus) TableName() string { return "ref_realization_statuses" }

// EconomicDomain business sector of providers
type EconomicDomain struct {
	model.Lookup
}

func (EconomicDomain) TableName() string { return "ref_economic_domains" }

// ProcurementNature works, supplies, services...
type ProcurementNature struct {
	model.Lookup
}

func (ProcurementNature) TableName() string { return "ref_procurement_natures" }

// ContractType market, framework agreement, order...
type ContractType struct {
	model.Lookup
}

func (ContractType) TableName() string { return "ref_contract_types" }
