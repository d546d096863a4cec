package service

import (
	"context"
	"strings"

	"example.com/raceday/services/registration/internal/ageclass"
	"example.com/raceday/services/registration/internal/models"
	"example.com/raceday/services/registration/internal/repository"
	"example.com/raceday/services/registration/internal/timing"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// CreateRunner registers a runner in an event. The start number
// uniqueness check, the optional advancement of the event's next start
// number and the insert commit as one transaction; two concurrent
// registrations of the same number cannot both succeed.
func (s *service) CreateRunner(ctx context.Context, eventUID string, input RunnerInput) (*models.Runner, error) {
	if _, verr := validateRunnerInput(input); verr != nil {
		return nil, verr
	}

	var runner *models.Runner
	err := s.runTx(ctx, func(ctx context.Context, txRepo repository.Repository) error {
		event, err := txRepo.FindEventByUIDForUpdate(ctx, s.org, eventUID)
		if err != nil {
			return err
		}

		if err := checkStartNoFree(ctx, txRepo, event.ID, input.StartNo, ""); err != nil {
			return err
		}

		// Hand out the next number when the suggested one was taken
		if input.StartNo == event.NextStartNo {
			event.NextStartNo++
			if err := txRepo.UpdateEvent(ctx, event); err != nil {
				return err
			}
		}

		runner = &models.Runner{
			UID:       uuid.New().String(),
			EventID:   event.ID,
			StartNo:   input.StartNo,
			Name:      input.Name,
			Team:      input.Team,
			Gender:    models.Gender(input.Gender),
			BirthYear: input.BirthYear,
			Race:      models.Race(input.Race),
			AgeClass:  ageclass.Classify(input.Gender, input.BirthYear, event.Year),
		}
		if err := txRepo.CreateRunner(ctx, runner); err != nil {
			if errors.Is(err, repository.ErrDuplicateStartNo) {
				return NewDuplicateStartNoError(input.StartNo)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidateStats(ctx, eventUID)
	s.log.WithField("event", eventUID).
		WithField("start_no", runner.StartNo).
		WithField("runner", runner.UID).
		Info("Runner registered")
	return runner, nil
}

// UpdateRunner edits a runner. The uniqueness check excludes the runner
// itself, the age class is recomputed, and an omitted or empty time
// clears the recorded finish. The event's next start number is never
// touched here.
func (s *service) UpdateRunner(ctx context.Context, eventUID, runnerUID string, input RunnerInput) (*models.Runner, error) {
	seconds, verr := validateRunnerInput(input)
	if verr != nil {
		return nil, verr
	}

	var runner *models.Runner
	err := s.runTx(ctx, func(ctx context.Context, txRepo repository.Repository) error {
		event, err := txRepo.FindEventByUIDForUpdate(ctx, s.org, eventUID)
		if err != nil {
			return err
		}

		runner, err = txRepo.FindRunnerByUID(ctx, event.ID, runnerUID)
		if err != nil {
			return err
		}

		if err := checkStartNoFree(ctx, txRepo, event.ID, input.StartNo, runner.UID); err != nil {
			return err
		}

		runner.StartNo = input.StartNo
		runner.Name = input.Name
		runner.Team = input.Team
		runner.Gender = models.Gender(input.Gender)
		runner.BirthYear = input.BirthYear
		runner.Race = models.Race(input.Race)
		runner.AgeClass = ageclass.Classify(input.Gender, input.BirthYear, event.Year)
		runner.TimeSeconds = seconds

		if err := txRepo.UpdateRunner(ctx, runner); err != nil {
			if errors.Is(err, repository.ErrDuplicateStartNo) {
				return NewDuplicateStartNoError(input.StartNo)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidateStats(ctx, eventUID)
	s.log.WithField("event", eventUID).WithField("runner", runnerUID).Info("Runner updated")
	return runner, nil
}

// checkStartNoFree fails with a DuplicateStartNoError when startNo is
// held by a runner of the event other than excludeUID.
func checkStartNoFree(ctx context.Context, txRepo repository.Repository, eventID uint, startNo int, excludeUID string) error {
	existing, err := txRepo.FindRunnerByStartNo(ctx, eventID, startNo)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return err
	}
	if existing.UID == excludeUID {
		return nil
	}
	return NewDuplicateStartNoError(startNo)
}

// DeleteRunner removes a single runner from an event.
func (s *service) DeleteRunner(ctx context.Context, eventUID, runnerUID string) error {
	event, err := s.repo.FindEventByUID(ctx, s.org, eventUID)
	if err != nil {
		return err
	}
	runner, err := s.repo.FindRunnerByUID(ctx, event.ID, runnerUID)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteRunner(ctx, runner); err != nil {
		return err
	}

	s.invalidateStats(ctx, eventUID)
	s.log.WithField("event", eventUID).WithField("runner", runnerUID).Info("Runner deleted")
	return nil
}

// GetRunner returns one runner of an event.
func (s *service) GetRunner(ctx context.Context, eventUID, runnerUID string) (*models.Runner, error) {
	event, err := s.repo.FindEventByUID(ctx, s.org, eventUID)
	if err != nil {
		return nil, err
	}
	return s.repo.FindRunnerByUID(ctx, event.ID, runnerUID)
}

// ListRunners returns the runners of an event, optionally filtered to
// one race, ordered by start number or name. An unrecognized order
// falls back to start number.
func (s *service) ListRunners(ctx context.Context, eventUID, race, orderBy string) ([]*models.Runner, error) {
	event, err := s.repo.FindEventByUID(ctx, s.org, eventUID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListRunners(ctx, event.ID, models.Race(race), repository.ParseRunnerOrder(orderBy))
}

// RecordFinish sets the finish time of the runner wearing startNo. This
// is the hot path during live timing: one point read by the indexed
// start number and one point write, no table scan and no transaction
// spanning other runners. Clearing a time is not possible here, that is
// what UpdateRunner is for.
func (s *service) RecordFinish(ctx context.Context, eventUID string, startNo int, timeText string) (*models.Runner, error) {
	if strings.TrimSpace(timeText) == "" {
		verr := NewValidationError()
		verr.Add("time", "a finish time is required; edit the runner to clear a time")
		return nil, verr
	}

	seconds, err := timing.Parse(timeText)
	if err != nil {
		return nil, err
	}

	event, err := s.repo.FindEventByUID(ctx, s.org, eventUID)
	if err != nil {
		return nil, err
	}
	runner, err := s.repo.FindRunnerByStartNo(ctx, event.ID, startNo)
	if err != nil {
		return nil, err
	}

	// Gender, birth year and event year are untouched here, so the age
	// class stays as it is.
	runner.TimeSeconds = seconds
	if err := s.repo.UpdateRunner(ctx, runner); err != nil {
		return nil, err
	}

	s.invalidateStats(ctx, eventUID)
	s.log.WithField("event", eventUID).
		WithField("start_no", startNo).
		WithField("time", timing.Format(seconds)).
		Info("Finish time recorded")
	return runner, nil
}
