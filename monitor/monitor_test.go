package monitor

import (
	"testing"

	"mealmind/store"

	"github.com/stretchr/testify/assert"
)

func TestCheck(t *testing.T) {
	profile := store.Profile{
		DailyCalories:     2000,
		DailyProtein:      100,
		DailyCarbohydrate: 250,
		DailyFat:          70,
	}

	tests := []struct {
		name     string
		totals   store.Nutrition
		warnings int
		contains string
	}{
		{
			name:     "within all bands",
			totals:   store.Nutrition{Calories: 1950, ProteinG: 95, CarbohydratesG: 240, FatG: 65},
			warnings: 0,
		},
		{
			name:     "calories just inside the band",
			totals:   store.Nutrition{Calories: 2199, ProteinG: 100, CarbohydratesG: 250, FatG: 70},
			warnings: 0,
		},
		{
			name:     "calories over",
			totals:   store.Nutrition{Calories: 2300, ProteinG: 100, CarbohydratesG: 250, FatG: 70},
			warnings: 1,
			contains: "over your 2000 kcal target",
		},
		{
			name:     "calories under",
			totals:   store.Nutrition{Calories: 1700, ProteinG: 100, CarbohydratesG: 250, FatG: 70},
			warnings: 1,
			contains: "under your 2000 kcal target",
		},
		{
			name:     "protein short",
			totals:   store.Nutrition{Calories: 2000, ProteinG: 70, CarbohydratesG: 250, FatG: 70},
			warnings: 1,
			contains: "Protein is at 70g",
		},
		{
			name:     "carbs over",
			totals:   store.Nutrition{Calories: 2000, ProteinG: 100, CarbohydratesG: 320, FatG: 70},
			warnings: 1,
			contains: "Carbs are at 320g",
		},
		{
			name:     "fat over",
			totals:   store.Nutrition{Calories: 2000, ProteinG: 100, CarbohydratesG: 250, FatG: 90},
			warnings: 1,
			contains: "Fat is at 90g",
		},
		{
			name:     "everything off at once",
			totals:   store.Nutrition{Calories: 2600, ProteinG: 40, CarbohydratesG: 400, FatG: 100},
			warnings: 4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Check(profile, tt.totals)
			assert.Len(t, got, tt.warnings)
			if tt.contains != "" && len(got) > 0 {
				assert.Contains(t, got[0], tt.contains)
			}
		})
	}
}

func TestCheckSkipsUnsetTargets(t *testing.T) {
	got := Check(store.Profile{}, store.Nutrition{Calories: 5000, ProteinG: 1, CarbohydratesG: 900, FatG: 300})
	assert.Empty(t, got, "zero targets mean no monitoring, not always-on warnings")
}
