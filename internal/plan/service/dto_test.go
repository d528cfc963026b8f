package service

import (
	"testing"

	"github.com/bitfantasy/procurement/internal/plan/entity"
	"github.com/bitfantasy/procurement/internal/shared/model"
	"github.com/stretchr/testify/assert"
)

func TestDTOEntityRoundTrip(t *testing.T) {
	budgetID := int64(4)
	designation := model.Designation{
		DesignationAr: "ميزانية التجهيز",
		DesignationEn: "Equipment budget",
		DesignationFr: "Budget d'équipement",
	}

	tests := []struct {
		name string
		run  func() (want, got any)
	}{
		{"budget", func() (any, any) {
			dto := BudgetDTO{Designation: designation, FinancialYear: 2024, Amount: 9500000, CurrencyID: 2}
			e := &entity.Budget{}
			(&BudgetService{}).apply(&dto, e)
			return dto, BudgetToDTO(e)
		}},
		{"plan", func() (any, any) {
			dto := PlanDTO{Designation: designation, Year: 2024, BudgetID: &budgetID}
			e := &entity.Plan{}
			(&PlanService{}).apply(&dto, e)
			return dto, PlanToDTO(e)
		}},
		{"planned item", func() (any, any) {
			dto := PlannedItemDTO{
				Designation:         designation,
				PlanID:              7,
				ProcurementNatureID: 3,
				EstimatedAmount:     1200000,
			}
			e := &entity.PlannedItem{}
			(&PlannedItemService{}).apply(&dto, e)
			return dto, PlannedItemToDTO(e)
		}},
		{"distribution", func() (any, any) {
			dto := DistributionDTO{PlannedItemID: 9, Structure: "Direction des moyens", Quantity: 12, Amount: 300000}
			e := &entity.ItemDistribution{}
			(&DistributionService{}).apply(&dto, e)
			return dto, DistributionToDTO(e)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			want, got := tt.run()
			assert.Equal(t, want, got)
		})
	}
}
