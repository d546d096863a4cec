package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"example.com/raceday/services/registration/internal/ageclass"
	"example.com/raceday/services/registration/internal/models"
	"example.com/raceday/services/registration/internal/repository"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// statsCacheTTL bounds how stale the cached event statistics may get.
const statsCacheTTL = 30 * time.Second

// CreateEvent creates a new event in the configured organization.
func (s *service) CreateEvent(ctx context.Context, input EventInput) (*models.Event, error) {
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

	if err := s.repo.CreateEvent(ctx, event); err != nil {
		return nil, errors.Wrap(err, "failed to create event")
	}

	s.log.WithField("event", event.UID).WithField("title", event.Title).Info("Event created")
	return event, nil
}

// UpdateEvent edits title, year and next start number of an event. The
// next start number may only move forward; when the year changes, every
// runner's age class is recomputed in the same transaction.
func (s *service) UpdateEvent(ctx context.Context, uid string, input EventInput) (*models.Event, error) {
	if verr := validateEventInput(input); verr != nil {
		return nil, verr
	}

	var event *models.Event
	err := s.runTx(ctx, func(ctx context.Context, txRepo repository.Repository) error {
		var err error
		event, err = txRepo.FindEventByUIDForUpdate(ctx, s.org, uid)
		if err != nil {
			return err
		}

		if input.NextStartNo < event.NextStartNo {
			verr := NewValidationError()
			verr.Add("next_start_no", fmt.Sprintf("must not fall below %d", event.NextStartNo))
			return verr
		}

		yearChanged := event.Year != input.Year
		event.Title = input.Title
		event.Year = input.Year
		event.NextStartNo = input.NextStartNo

		if err := txRepo.UpdateEvent(ctx, event); err != nil {
			return err
		}

		if yearChanged {
			return reclassifyRunners(ctx, txRepo, event)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidateStats(ctx, uid)
	s.log.WithField("event", event.UID).Info("Event updated")
	return event, nil
}

// reclassifyRunners recomputes the age class of every runner of an event.
// Called when the event year changes, since the age bands shift with it.
func reclassifyRunners(ctx context.Context, txRepo repository.Repository, event *models.Event) error {
	runners, err := txRepo.ListRunners(ctx, event.ID, "", repository.OrderByStartNo)
	if err != nil {
		return err
	}
	for _, r := range runners {
		class := ageclass.Classify(string(r.Gender), r.BirthYear, event.Year)
		if class == r.AgeClass {
			continue
		}
		r.AgeClass = class
		if err := txRepo.UpdateRunner(ctx, r); err != nil {
			return err
		}
	}
	return nil
}

// DeleteEvent removes an event and all of its runners in one transaction.
func (s *service) DeleteEvent(ctx context.Context, uid string) error {
	err := s.runTx(ctx, func(ctx context.Context, txRepo repository.Repository) error {
		event, err := txRepo.FindEventByUIDForUpdate(ctx, s.org, uid)
		if err != nil {
			return err
		}
		if err := txRepo.DeleteEventRunners(ctx, event.ID); err != nil {
			return err
		}
		return txRepo.DeleteEvent(ctx, event)
	})
	if err != nil {
		return err
	}

	s.invalidateStats(ctx, uid)
	s.log.WithField("event", uid).Info("Event deleted with all runners")
	return nil
}

// GetEvent returns one event of the configured organization.
func (s *service) GetEvent(ctx context.Context, uid string) (*models.Event, error) {
	return s.repo.FindEventByUID(ctx, s.org, uid)
}

// ListEvents returns all events of the configured organization.
func (s *service) ListEvents(ctx context.Context) ([]*models.Event, error) {
	return s.repo.ListEvents(ctx, s.org)
}

// EventStats returns registration and finish counts for one event.
// Served from cache when available; counts may trail recent writes by up
// to the cache TTL.
func (s *service) EventStats(ctx context.Context, uid string) (*models.EventStats, error) {
	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, statsCacheKey(uid)); err == nil {
			var stats models.EventStats
			if err := json.Unmarshal([]byte(raw), &stats); err == nil {
				return &stats, nil
			}
		}
	}

	event, err := s.repo.FindEventByUID(ctx, s.org, uid)
	if err != nil {
		return nil, err
	}

	registered, err := s.repo.CountRunners(ctx, event.ID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to count runners")
	}
	finished, err := s.repo.CountFinishedRunners(ctx, event.ID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to count finished runners")
	}

	stats := &models.EventStats{
		Registered: registered,
		Finished:   finished,
		Missing:    registered - finished,
	}
	if registered > 0 {
		stats.PercentDone = int(100 * finished / registered)
	}

	if s.cache != nil {
		if raw, err := json.Marshal(stats); err == nil {
			if err := s.cache.Set(ctx, statsCacheKey(uid), string(raw), statsCacheTTL); err != nil {
				s.log.WithError(err).Debug("Failed to cache event stats")
			}
		}
	}

	return stats, nil
}

func statsCacheKey(uid string) string {
	return "event_stats:" + uid
}

// invalidateStats drops the cached statistics of an event after a write.
func (s *service) invalidateStats(ctx context.Context, uid string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, statsCacheKey(uid)); err != nil {
		s.log.WithError(err).Debug("Failed to invalidate event stats cache")
	}
}
