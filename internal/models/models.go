package models

import (
	"time"

	"example.com/raceday/services/registration/internal/timing"
)

// Model is the base model with common fields for all database entities.
// Deletes are real deletes: a removed runner must free its start number
// immediately, so there is no soft-delete column.
type Model struct {
	ID        uint      `json:"id" gorm:"primarykey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Gender is the registered gender of a runner.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

// Race is the distance a runner is registered for.
type Race string

const (
	RaceShort Race = "6km"
	RaceLong  Race = "12km"
)

// Races lists all valid distance codes.
var Races = []Race{RaceShort, RaceLong}

// Event represents one race day, e.g. "Volkslauf 2024". It owns its
// runners and the start number sequence handed out to them.
type Event struct {
	Model
	UID          string `json:"uid" gorm:"Column:uuid;uniqueIndex"`
	Organization string `json:"organization" gorm:"Column:organization;index"`
	Title        string `json:"title" gorm:"Column:title"`
	Year         int    `json:"year" gorm:"Column:year"`
	NextStartNo  int    `json:"next_start_no" gorm:"Column:next_start_no"`
}

// Runner represents one participant registered in an Event. The start
// number is unique within the owning event, enforced both by the
// registration transaction and by the composite index below.
type Runner struct {
	Model
	UID         string `json:"uid" gorm:"Column:uuid;uniqueIndex"`
	Event       *Event `json:"-" gorm:"foreignKey:EventID"`
	EventID     uint   `json:"-" gorm:"Column:event_id;uniqueIndex:idx_runners_event_start_no"`
	StartNo     int    `json:"start_no" gorm:"Column:start_no;uniqueIndex:idx_runners_event_start_no"`
	Name        string `json:"name" gorm:"Column:name;index"`
	Team        string `json:"team" gorm:"Column:team"`
	Gender      Gender `json:"gender" gorm:"Column:gender"`
	BirthYear   int    `json:"birth_year" gorm:"Column:birth_year"`
	Race        Race   `json:"race" gorm:"Column:race;index"`
	AgeClass    string `json:"age_class" gorm:"Column:age_class"`
	TimeSeconds *int   `json:"time_seconds" gorm:"Column:time_seconds;index"`
}

// Finished reports whether the runner has a recorded finish time.
func (r *Runner) Finished() bool {
	return r.TimeSeconds != nil
}

// TimeDisplay renders the finish time as [hh:]mm:ss, or "" if the
// runner has not finished.
func (r *Runner) TimeDisplay() string {
	return timing.Format(r.TimeSeconds)
}

// EventStats summarizes registration and finish progress for one event.
type EventStats struct {
	Registered  int64 `json:"registered"`
	Finished    int64 `json:"finished"`
	Missing     int64 `json:"missing"`
	PercentDone int   `json:"percent_done"`
}
