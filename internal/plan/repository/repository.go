package repository

import (
	"context"

	"github.com/bitfantasy/procurement/internal/plan/entity"
	"github.com/bitfantasy/procurement/internal/shared/crud"
	"gorm.io/gorm"
)

// Repositories plan repositories
type Repositories struct {
	Budget       *crud.Repository[entity.Budget]
	Plan         *crud.Repository[entity.Plan]
	PlannedItem  *crud.Repository[entity.PlannedItem]
	Distribution *DistributionRepository
}

func NewRepositories(db *gorm.DB) *Repositories {
	designation := map[string]string{
		"designationFr": "designation_fr",
		"designationEn": "designation_en",
		"designationAr": "designation_ar",
	}
	with := func(extra map[string]string) map[string]string {
		out := make(map[string]string, len(designation)+len(extra))
		for k, v := range designation {
			out[k] = v
		}
		for k, v := range extra {
			out[k] = v
		}
		return out
	}
	searchable := []string{"designation_fr", "designation_en", "designation_ar"}

	return &Repositories{
		Budget: crud.NewRepository[entity.Budget](db, crud.Options{
			Name:          "Budget",
			SearchColumns: searchable,
			SortColumns:   with(map[string]string{"financialYear": "financial_year", "amount": "amount"}),
			DefaultSort:   "designation_fr",
			Preloads:      []string{"Currency"},
		}),
		Plan: crud.NewRepository[entity.Plan](db, crud.Options{
			Name:          "Plan",
			SearchColumns: searchable,
			SortColumns:   with(map[string]string{"year": "year", "createdAt": "created_at"}),
			DefaultSort:   "designation_fr",
			Preloads:      []string{"Budget"},
		}),
		PlannedItem: crud.NewRepository[entity.PlannedItem](db, crud.Options{
			Name:          "PlannedItem",
			SearchColumns: searchable,
			SortColumns:   with(map[string]string{"estimatedAmount": "estimated_amount"}),
			DefaultSort:   "designation_fr",
			Preloads:      []string{"Plan", "ProcurementNature", "Distributions"},
		}),
		Distribution: &DistributionRepository{Repository: crud.NewRepository[entity.ItemDistribution](db, crud.Options{
			Name:          "ItemDistribution",
			SearchColumns: []string{"structure"},
			SortColumns:   map[string]string{"structure": "structure", "quantity": "quantity", "amount": "amount"},
			DefaultSort:   "structure",
		})},
	}
}

// DistributionRepository item distributions
type DistributionRepository struct {
	*crud.Repository[entity.ItemDistribution]
}

// DistributionTotals sums of the distributions of one planned item
type DistributionTotals struct {
	Count    int64
	Quantity float64
	Amount   float64
}

// TotalsByItem aggregates the distributions of planned item id.
func (r *DistributionRepository) TotalsByItem(ctx context.Context, itemID int64) (*DistributionTotals, error) {
	var t DistributionTotals
	err := r.Conn(ctx).
		Model(&entity.ItemDistribution{}).
		Select("COUNT(*) AS count, COALESCE(SUM(quantity), 0) AS quantity, COALESCE(SUM(amount), 0) AS amount").
		Where("planned_item_id = ?", itemID).
		Scan(&t).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}
