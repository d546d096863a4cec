// Package report turns loaded runner sets into the structured views the
// result pages and export writers consume. It only arranges data that the
// caller already queried; rendering to HTML/PDF/XLS is not its concern.
package report

import (
	"strings"

	"example.com/raceday/services/registration/internal/models"
	"example.com/raceday/services/registration/internal/repository"
)

// GroupBy selects the grouping dimensions of a finished report. Results
// are always partitioned by race first; gender and age class nest below
// that. Age class grouping only applies together with gender grouping,
// matching the report layouts the organizers print.
type GroupBy struct {
	Gender   bool
	AgeClass bool
}

// ParseGroupBy reads a comma-separated dimension list ("gender,age_class").
// Unknown dimensions are ignored.
func ParseGroupBy(s string) GroupBy {
	var g GroupBy
	for _, part := range strings.Split(s, ",") {
		switch strings.TrimSpace(part) {
		case "gender":
			g.Gender = true
		case "age_class":
			g.AgeClass = true
		}
	}
	return g
}

// StarterList is the flat roster of registered runners, regardless of
// finish status.
type StarterList struct {
	Event   *models.Event          `json:"event"`
	Race    models.Race            `json:"race,omitempty"`
	Order   repository.RunnerOrder `json:"order"`
	Runners []*models.Runner       `json:"runners"`
}

// NewStarterList wraps an already filtered and ordered runner set.
func NewStarterList(event *models.Event, runners []*models.Runner, race models.Race, order repository.RunnerOrder) *StarterList {
	return &StarterList{
		Event:   event,
		Race:    race,
		Order:   order,
		Runners: runners,
	}
}

// FinishedReport holds finished runners grouped for result output.
// Exactly one of the three group maps is populated, depending on GroupBy.
// Leaf slices keep the time-ascending order of the input set; grouping
// never re-sorts.
type FinishedReport struct {
	Event   *models.Event `json:"event"`
	Race    models.Race   `json:"race,omitempty"`
	GroupBy GroupBy       `json:"group_by"`

	ByRace           map[models.Race][]*models.Runner                              `json:"by_race,omitempty"`
	ByGender         map[models.Race]map[models.Gender][]*models.Runner            `json:"by_gender,omitempty"`
	ByGenderAgeClass map[models.Race]map[models.Gender]map[string][]*models.Runner `json:"by_gender_age_class,omitempty"`
}

// NewFinishedReport groups a time-sorted set of finished runners. The
// caller is responsible for having filtered out runners without a time
// and for the ascending time order of the input.
func NewFinishedReport(event *models.Event, runners []*models.Runner, race models.Race, groupBy GroupBy) *FinishedReport {
	rep := &FinishedReport{
		Event:   event,
		Race:    race,
		GroupBy: groupBy,
	}

	switch {
	case groupBy.Gender && groupBy.AgeClass:
		rep.ByGenderAgeClass = make(map[models.Race]map[models.Gender]map[string][]*models.Runner)
		for _, r := range runners {
			byGender, ok := rep.ByGenderAgeClass[r.Race]
			if !ok {
				byGender = make(map[models.Gender]map[string][]*models.Runner)
				rep.ByGenderAgeClass[r.Race] = byGender
			}
			byClass, ok := byGender[r.Gender]
			if !ok {
				byClass = make(map[string][]*models.Runner)
				byGender[r.Gender] = byClass
			}
			byClass[r.AgeClass] = append(byClass[r.AgeClass], r)
		}
	case groupBy.Gender:
		rep.ByGender = make(map[models.Race]map[models.Gender][]*models.Runner)
		for _, r := range runners {
			byGender, ok := rep.ByGender[r.Race]
			if !ok {
				byGender = make(map[models.Gender][]*models.Runner)
				rep.ByGender[r.Race] = byGender
			}
			byGender[r.Gender] = append(byGender[r.Gender], r)
		}
	default:
		rep.ByRace = make(map[models.Race][]*models.Runner)
		for _, r := range runners {
			rep.ByRace[r.Race] = append(rep.ByRace[r.Race], r)
		}
	}

	return rep
}
