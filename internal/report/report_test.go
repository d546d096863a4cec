package report

import (
	"testing"

	"example.com/raceday/services/registration/internal/models"
	"example.com/raceday/services/registration/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(n int) *int { return &n }

func testEvent() *models.Event {
	return &models.Event{
		UID:          "e-1",
		Organization: "sf_lotte",
		Title:        "Herbstlauf",
		Year:         2016,
		NextStartNo:  5,
	}
}

// Finished runners in ascending time order, the way the repository
// delivers them.
func finishedRunners() []*models.Runner {
	return []*models.Runner{
		{UID: "r-1", StartNo: 3, Name: "Anna", Gender: models.GenderFemale, BirthYear: 1990, Race: models.RaceShort, AgeClass: "LW20", TimeSeconds: intPtr(25 * 60)},
		{UID: "r-2", StartNo: 1, Name: "Bernd", Gender: models.GenderMale, BirthYear: 1985, Race: models.RaceShort, AgeClass: "LM30", TimeSeconds: intPtr(26 * 60)},
		{UID: "r-3", StartNo: 4, Name: "Clara", Gender: models.GenderFemale, BirthYear: 1992, Race: models.RaceLong, AgeClass: "LW20", TimeSeconds: intPtr(55 * 60)},
		{UID: "r-4", StartNo: 2, Name: "Doris", Gender: models.GenderFemale, BirthYear: 1988, Race: models.RaceShort, AgeClass: "LW20", TimeSeconds: intPtr(27 * 60)},
	}
}

func TestParseGroupBy(t *testing.T) {
	assert.Equal(t, GroupBy{}, ParseGroupBy(""))
	assert.Equal(t, GroupBy{Gender: true}, ParseGroupBy("gender"))
	assert.Equal(t, GroupBy{Gender: true, AgeClass: true}, ParseGroupBy("gender,age_class"))
	assert.Equal(t, GroupBy{Gender: true, AgeClass: true}, ParseGroupBy(" age_class , gender "))
	assert.Equal(t, GroupBy{}, ParseGroupBy("podium,unknown"))
}

func TestNewFinishedReportFlat(t *testing.T) {
	rep := NewFinishedReport(testEvent(), finishedRunners(), "", GroupBy{})

	require.NotNil(t, rep.ByRace)
	assert.Nil(t, rep.ByGender)
	assert.Nil(t, rep.ByGenderAgeClass)

	short := rep.ByRace[models.RaceShort]
	require.Len(t, short, 3)
	// Grouping keeps the time-ascending input order.
	assert.Equal(t, "Anna", short[0].Name)
	assert.Equal(t, "Bernd", short[1].Name)
	assert.Equal(t, "Doris", short[2].Name)
	assert.Len(t, rep.ByRace[models.RaceLong], 1)
}

func TestNewFinishedReportByGender(t *testing.T) {
	rep := NewFinishedReport(testEvent(), finishedRunners(), "", GroupBy{Gender: true})

	require.NotNil(t, rep.ByGender)
	assert.Nil(t, rep.ByRace)

	women := rep.ByGender[models.RaceShort][models.GenderFemale]
	require.Len(t, women, 2)
	assert.Equal(t, "Anna", women[0].Name)
	assert.Equal(t, "Doris", women[1].Name)
	assert.Len(t, rep.ByGender[models.RaceShort][models.GenderMale], 1)
}

func TestNewFinishedReportByGenderAndAgeClass(t *testing.T) {
	rep := NewFinishedReport(testEvent(), finishedRunners(), "", GroupBy{Gender: true, AgeClass: true})

	require.NotNil(t, rep.ByGenderAgeClass)
	assert.Nil(t, rep.ByRace)
	assert.Nil(t, rep.ByGender)

	lw20 := rep.ByGenderAgeClass[models.RaceShort][models.GenderFemale]["LW20"]
	require.Len(t, lw20, 2)
	assert.Equal(t, "Anna", lw20[0].Name)
	assert.Equal(t, "Doris", lw20[1].Name)
	assert.Len(t, rep.ByGenderAgeClass[models.RaceShort][models.GenderMale]["LM30"], 1)
}

func TestNewStarterList(t *testing.T) {
	event := testEvent()
	runners := finishedRunners()
	list := NewStarterList(event, runners, models.RaceShort, repository.OrderByName)

	assert.Equal(t, event, list.Event)
	assert.Equal(t, models.RaceShort, list.Race)
	assert.Equal(t, repository.OrderByName, list.Order)
	assert.Equal(t, runners, list.Runners)
}
