// Package monitor compares a day's nutrition totals against the user's
// profile targets and produces plain-language warnings for the response.
package monitor

import (
	"fmt"

	"mealmind/store"
)

// Tolerances around the profile targets. Calories warn in both directions;
// the macros warn only in the direction that works against a typical goal.
const (
	calorieBand      = 0.10 // +/- 10%
	proteinShortfall = 0.20 // warn below 80% of target
	carbOverage      = 0.20 // warn above 120% of target
	fatOverage       = 0.20 // warn above 120% of target
)

// Check returns zero or more warnings for the given daily totals. Targets
// that are zero or unset are skipped rather than treated as exceeded.
func Check(profile store.Profile, totals store.Nutrition) []string {
	var warnings []string

	if profile.DailyCalories > 0 {
		lo := profile.DailyCalories * (1 - calorieBand)
		hi := profile.DailyCalories * (1 + calorieBand)
		switch {
		case totals.Calories > hi:
			warnings = append(warnings, fmt.Sprintf(
				"This day is now at %.0f kcal, more than 10%% over your %.0f kcal target.",
				totals.Calories, profile.DailyCalories))
		case totals.Calories < lo:
			warnings = append(warnings, fmt.Sprintf(
				"This day is now at %.0f kcal, more than 10%% under your %.0f kcal target.",
				totals.Calories, profile.DailyCalories))
		}
	}

	if profile.DailyProtein > 0 && totals.ProteinG < profile.DailyProtein*(1-proteinShortfall) {
		warnings = append(warnings, fmt.Sprintf(
			"Protein is at %.0fg for the day, well short of your %.0fg target.",
			totals.ProteinG, profile.DailyProtein))
	}
	if profile.DailyCarbohydrate > 0 && totals.CarbohydratesG > profile.DailyCarbohydrate*(1+carbOverage) {
		warnings = append(warnings, fmt.Sprintf(
			"Carbs are at %.0fg for the day, well over your %.0fg target.",
			totals.CarbohydratesG, profile.DailyCarbohydrate))
	}
	if profile.DailyFat > 0 && totals.FatG > profile.DailyFat*(1+fatOverage) {
		warnings = append(warnings, fmt.Sprintf(
			"Fat is at %.0fg for the day, well over your %.0fg target.",
			totals.FatG, profile.DailyFat))
	}

	return warnings
}
