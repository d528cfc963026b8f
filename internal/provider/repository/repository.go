package repository

import (
	"context"

	"github.com/bitfantasy/procurement/internal/provider/entity"
	"github.com/bitfantasy/procurement/internal/shared/crud"
	"gorm.io/gorm"
)

// Repositories provider repositories
type Repositories struct {
	Provider      *ProviderRepository
	Exclusion     *crud.Repository[entity.ProviderExclusion]
	Representator *crud.Repository[entity.ProviderRepresentator]
	Clearance     *crud.Repository[entity.Clearance]
}

func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Provider: NewProviderRepository(db),
		Exclusion: crud.NewRepository[entity.ProviderExclusion](db, crud.Options{
			Name:          "ProviderExclusion",
			SearchColumns: []string{"reason"},
			SortColumns:   map[string]string{"startDate": "start_date", "endDate": "end_date"},
			DefaultSort:   "start_date",
			Preloads:      []string{"Provider"},
		}),
		Representator: crud.NewRepository[entity.ProviderRepresentator](db, crud.Options{
			Name:          "ProviderRepresentator",
			SearchColumns: []string{"first_name", "last_name", "function", "email"},
			SortColumns:   map[string]string{"lastName": "last_name", "firstName": "first_name"},
			DefaultSort:   "last_name",
			Preloads:      []string{"Provider"},
		}),
		Clearance: crud.NewRepository[entity.Clearance](db, crud.Options{
			Name:          "Clearance",
			SearchColumns: []string{"reference", "issuer"},
			SortColumns:   map[string]string{"reference": "reference", "issueDate": "issue_date", "expiryDate": "expiry_date"},
			DefaultSort:   "issue_date",
			Preloads:      []string{"Provider"},
		}),
	}
}

// ProviderRepository providers and their economic domain links
type ProviderRepository struct {
	*crud.Repository[entity.Provider]
}

func NewProviderRepository(db *gorm.DB) *ProviderRepository {
	return &ProviderRepository{Repository: crud.NewRepository[entity.Provider](db, crud.Options{
		Name:          "Provider",
		SearchColumns: []string{"designation_fr", "designation_en", "designation_ar", "acronym", "email"},
		SortColumns: map[string]string{
			"designationFr": "designation_fr",
			"designationEn": "designation_en",
			"acronym":       "acronym",
			"createdAt":     "created_at",
		},
		DefaultSort:     "designation_fr",
		Preloads:        []string{"Country"},
		DefaultPreloads: []string{"EconomicDomains"},
	})}
}

// ListForExport returns every provider with country and domains loaded.
func (r *ProviderRepository) ListForExport(ctx context.Context) ([]entity.Provider, error) {
	var items []entity.Provider
	err := r.Conn(ctx).
		Preload("Country").
		Preload("EconomicDomains").
		Order("designation_fr").
		Order("id").
		Find(&items).Error
	return items, err
}
