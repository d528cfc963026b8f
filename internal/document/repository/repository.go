package repository

import (
	"github.com/bitfantasy/procurement/internal/document/entity"
	"github.com/bitfantasy/procurement/internal/shared/crud"
	"gorm.io/gorm"
)

// Repositories document repositories
type Repositories struct {
	DocumentType *crud.Repository[entity.DocumentType]
	File         *crud.Repository[entity.File]
	Mail         *crud.Repository[entity.Mail]
}

func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		DocumentType: crud.NewRepository[entity.DocumentType](db, crud.Options{
			Name:          "DocumentType",
			SearchColumns: []string{"designation_fr", "designation_en", "designation_ar"},
			SortColumns: map[string]string{
				"designationFr": "designation_fr",
				"designationEn": "designation_en",
				"scope":         "scope",
			},
			DefaultSort: "designation_fr",
		}),
		File: crud.NewRepository[entity.File](db, crud.Options{
			Name:          "File",
			SearchColumns: []string{"original_name", "file_type", "uploaded_by"},
			SortColumns: map[string]string{
				"originalName": "original_name",
				"size":         "size",
				"createdAt":    "created_at",
			},
			DefaultSort: "created_at",
		}),
		Mail: crud.NewRepository[entity.Mail](db, crud.Options{
			Name:          "Mail",
			SearchColumns: []string{"reference", "subject", "sender", "recipient"},
			SortColumns: map[string]string{
				"reference": "reference",
				"mailDate":  "mail_date",
				"direction": "direction",
				"createdAt": "created_at",
			},
			DefaultSort: "mail_date",
			Preloads:    []string{"DocumentType", "File"},
		}),
	}
}
