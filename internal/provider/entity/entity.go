package entity

import (
	"time"

	refentity "github.com/bitfantasy/procurement/internal/reference/entity"
	"github.com/bitfantasy/procurement/internal/shared/model"
)

// Provider supplier able to bid on consultations and hold contracts
type Provider struct {
	ID                int64 `gorm:"primaryKey;autoIncrement"`
	model.Designation `gorm:"embedded"`
	Acronym           string `gorm:"size:50"`
	Address           string `gorm:"size:500"`
	Phone             string `gorm:"size:30"`
	Fax               string `gorm:"size:30"`
	Email             string `gorm:"size:150"`
	Website           string `gorm:"size:200"`
	CountryID         *int64
	CreatedAt         time.Time
	UpdatedAt         time.Time

	// relations
	Country         *refentity.Country         `gorm:"foreignKey:CountryID"`
	EconomicDomains []refentity.EconomicDomain `gorm:"many2many:prv_provider_economic_domains;joinForeignKey:ProviderID;joinReferences:EconomicDomainID"`
}

func (Provider) TableName() string { return "prv_providers" }

func (p *Provider) GetID() int64 { return p.ID }

// ProviderExclusion period during which a provider may not bid
type ProviderExclusion struct {
	ID         int64     `gorm:"primaryKey;autoIncrement"`
	ProviderID int64     `gorm:"not null;index"`
	Reason     string    `gorm:"size:500;not null"`
	StartDate  time.Time `gorm:"not null"`
	EndDate    *time.Time

	Provider *Provider `gorm:"foreignKey:ProviderID"`
}

func (ProviderExclusion) TableName() string { return "prv_provider_exclusions" }

func (e *ProviderExclusion) GetID() int64 { return e.ID }

// ActiveAt reports whether the exclusion covers the calendar day of t.
// An open-ended exclusion never expires.
func (e *ProviderExclusion) ActiveAt(t time.Time) bool {
	day := dayOf(t)
	if dayOf(e.StartDate).After(day) {
		return false
	}
	return e.EndDate == nil || !dayOf(*e.EndDate).Before(day)
}

func dayOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ProviderRepresentator contact person of a provider
type ProviderRepresentator struct {
	ID         int64  `gorm:"primaryKey;autoIncrement"`
	ProviderID int64  `gorm:"not null;index"`
	FirstName  string `gorm:"size:100"`
	LastName   string `gorm:"size:100;not null"`
	Function   string `gorm:"size:100"`
	Phone      string `gorm:"size:30"`
	Email      string `gorm:"size:150"`

	Provider *Provider `gorm:"foreignKey:ProviderID"`
}

func (ProviderRepresentator) TableName() string { return "prv_provider_representators" }

func (r *ProviderRepresentator) GetID() int64 { return r.ID }

// Clearance tax or social clearance certificate
type Clearance struct {
	ID         int64     `gorm:"primaryKey;autoIncrement"`
	ProviderID int64     `gorm:"not null;index"`
	Reference  string    `gorm:"size:100;not null"`
	Issuer     string    `gorm:"size:200"`
	IssueDate  time.Time `gorm:"not null"`
	ExpiryDate *time.Time

	Provider *Provider `gorm:"foreignKey:ProviderID"`
}

func (Clearance) TableName() string { return "prv_clearances" }

func (c *Clearance) GetID() int64 { return c.ID }
