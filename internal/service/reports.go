package service

import (
	"context"
	"io"

	"example.com/raceday/services/registration/internal/ageclass"
	"example.com/raceday/services/registration/internal/models"
	"example.com/raceday/services/registration/internal/report"
	"example.com/raceday/services/registration/internal/repository"
	"example.com/raceday/services/registration/internal/timing"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// StarterList returns the roster of an event, optionally filtered to one
// race, ordered by start number (default) or name.
func (s *service) StarterList(ctx context.Context, eventUID, race, orderBy string) (*report.StarterList, error) {
	event, err := s.repo.FindEventByUID(ctx, s.org, eventUID)
	if err != nil {
		return nil, err
	}

	order := repository.ParseRunnerOrder(orderBy)
	runners, err := s.repo.ListRunners(ctx, event.ID, models.Race(race), order)
	if err != nil {
		return nil, err
	}

	return report.NewStarterList(event, runners, models.Race(race), order), nil
}

// FinishedReport returns the finished runners of an event sorted by
// ascending time, grouped per the requested dimensions.
func (s *service) FinishedReport(ctx context.Context, eventUID, race, groupBy string) (*report.FinishedReport, error) {
	event, err := s.repo.FindEventByUID(ctx, s.org, eventUID)
	if err != nil {
		return nil, err
	}

	runners, err := s.repo.ListFinishedRunners(ctx, event.ID, models.Race(race))
	if err != nil {
		return nil, err
	}

	return report.NewFinishedReport(event, runners, models.Race(race), report.ParseGroupBy(groupBy)), nil
}

// ExportArchive builds the portable text view of an event: header with
// the event metadata plus all runners by start number.
func (s *service) ExportArchive(ctx context.Context, eventUID string) (*report.Archive, error) {
	event, err := s.repo.FindEventByUID(ctx, s.org, eventUID)
	if err != nil {
		return nil, err
	}
	runners, err := s.repo.ListRunners(ctx, event.ID, "", repository.OrderByStartNo)
	if err != nil {
		return nil, err
	}
	return report.NewArchive(event, runners), nil
}

// ImportArchive recreates an event with all of its runners from an
// archive. Everything commits in one transaction; a malformed row or a
// duplicated start number aborts the whole import. Age classes are
// recomputed from the imported data, the archived column is ignored.
func (s *service) ImportArchive(ctx context.Context, r io.Reader) (*models.Event, error) {
	archive, err := report.ParseArchive(r)
	if err != nil {
		return nil, err
	}

	input := EventInput{
		Title:       archive.Title,
		Year:        archive.Year,
		NextStartNo: archive.NextStartNo,
	}
	if verr := validateEventInput(input); verr != nil {
		return nil, verr
	}

	event := &models.Event{
		UID:          uuid.New().String(),
		Organization: s.org,
		Title:        input.Title,
		Year:         input.Year,
		NextStartNo:  input.NextStartNo,
	}

	err = s.runTx(ctx, func(ctx context.Context, txRepo repository.Repository) error {
		if err := txRepo.CreateEvent(ctx, event); err != nil {
			return err
		}
		for _, row := range archive.Rows {
			if err := importRow(ctx, txRepo, event, row); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithField("event", event.UID).
		WithField("runners", len(archive.Rows)).
		Info("Event imported from archive")
	return event, nil
}

func importRow(ctx context.Context, txRepo repository.Repository, event *models.Event, row report.ArchiveRow) error {
	input := RunnerInput{
		StartNo:   row.StartNo,
		Name:      row.Name,
		Team:      row.Team,
		Gender:    row.Gender,
		BirthYear: row.BirthYear,
		Race:      row.Race,
	}
	if verr := checkStruct(input); verr != nil {
		return verr
	}

	seconds, err := timing.Parse(row.Time)
	if err != nil {
		return err
	}

	runner := &models.Runner{
		UID:         uuid.New().String(),
		EventID:     event.ID,
		StartNo:     row.StartNo,
		Name:        row.Name,
		Team:        row.Team,
		Gender:      models.Gender(row.Gender),
		BirthYear:   row.BirthYear,
		Race:        models.Race(row.Race),
		AgeClass:    ageclass.Classify(row.Gender, row.BirthYear, event.Year),
		TimeSeconds: seconds,
	}
	if err := txRepo.CreateRunner(ctx, runner); err != nil {
		if errors.Is(err, repository.ErrDuplicateStartNo) {
			return NewDuplicateStartNoError(row.StartNo)
		}
		return err
	}
	return nil
}
