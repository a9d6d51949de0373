package lottery

import (
	"math"
	"sort"

	"github.com/chrisnesbitt427/steplotto/internal/domain"
)

// Rank orders totals by steps descending, breaking ties by user id ascending, and assigns
// each entry its share of the cohort's steps.
func Rank(totals map[string]int64) []domain.Standing {
	var sum int64
	standings := make([]domain.Standing, 0, len(totals))
	for userID, steps := range totals {
		sum += steps
		standings = append(standings, domain.Standing{UserID: userID, TotalSteps: steps})
	}

	sort.Slice(standings, func(i, j int) bool {
		if standings[i].TotalSteps != standings[j].TotalSteps {
			return standings[i].TotalSteps > standings[j].TotalSteps
		}
		return standings[i].UserID < standings[j].UserID
	})

	for i := range standings {
		standings[i].Rank = i + 1
		standings[i].WinProbability = WinProbability(standings[i].TotalSteps, sum)
	}
	return standings
}

// WinProbability returns steps as a percentage of sum rounded to one decimal place.
// A zero sum yields 0.
func WinProbability(steps, sum int64) float64 {
	if sum <= 0 || steps <= 0 {
		return 0
	}
	return math.Round(float64(steps)*1000/float64(sum)) / 10
}

// BuildPotSchedule folds daily participation into one PotPeriod per day of window. Days
// without activity contribute nothing but still appear.
func BuildPotSchedule(window domain.Window, activity []domain.DayActivity, stake domain.Money) []domain.PotPeriod {
	byDay := make(map[domain.Date]domain.DayActivity, len(activity))
	for _, a := range activity {
		byDay[a.Date] = a
	}

	days := window.Days()
	schedule := make([]domain.PotPeriod, 0, len(days))
	var cumulative domain.Money
	for _, d := range days {
		a := byDay[d]
		daily := domain.Money(a.ActivePlayers) * stake
		if daily < 0 {
			daily = 0
		}
		cumulative += daily
		schedule = append(schedule, domain.PotPeriod{
			Date:          d,
			TotalSteps:    a.TotalSteps,
			PayingPlayers: a.ActivePlayers,
			DailyPot:      daily,
			CumulativePot: cumulative,
		})
	}
	return schedule
}
