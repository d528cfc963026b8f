// Package model holds record fragments shared by every business module.
package model

import (
	"strings"

	"github.com/bitfantasy/procurement/internal/shared/validation"
)

// DesignationMaxLen is the column size of each designation.
const DesignationMaxLen = 200

// Designation is the multilingual label carried by most records.
// The French designation is required and usually the natural key.
type Designation struct {
	DesignationAr string `json:"designationAr,omitempty" gorm:"size:200"`
	DesignationEn string `json:"designationEn,omitempty" gorm:"size:200"`
	DesignationFr string `json:"designationFr" gorm:"size:200;not null"`
}

// Validate records missing or oversized designations.
func (d Designation) Validate(v validation.Violations) {
	v.Required("designationFr", d.DesignationFr)
	v.MaxLen("designationFr", d.DesignationFr, DesignationMaxLen)
	v.MaxLen("designationEn", d.DesignationEn, DesignationMaxLen)
	v.MaxLen("designationAr", d.DesignationAr, DesignationMaxLen)
}

// Trimmed returns d with surrounding whitespace removed from every label.
func (d Designation) Trimmed() Designation {
	return Designation{
		DesignationAr: strings.TrimSpace(d.DesignationAr),
		DesignationEn: strings.TrimSpace(d.DesignationEn),
		DesignationFr: strings.TrimSpace(d.DesignationFr),
	}
}

// Label picks the designation for lang ("ar", "en", "fr"), falling back to
// French, then English, then Arabic when the requested one is empty.
func (d Designation) Label(lang string) string {
	var preferred string
	switch strings.ToLower(lang) {
	case "ar":
		preferred = d.DesignationAr
	case "en":
		preferred = d.DesignationEn
	case "fr":
		preferred = d.DesignationFr
	}
	for _, s := range []string{preferred, d.DesignationFr, d.DesignationEn, d.DesignationAr} {
		if s != "" {
			return s
		}
	}
	return ""
}

// Lookup is a reference row made only of an id and a designation.
type Lookup struct {
	ID          int64 `gorm:"primaryKey;autoIncrement"`
	Designation `gorm:"embedded"`
}

// Record gives generic code access to the embedded lookup.
func (l *Lookup) Record() *Lookup { return l }

func (l *Lookup) GetID() int64 { return l.ID }
