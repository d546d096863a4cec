package service

import (
	"context"
	"errors"
	"io"

	"example.com/raceday/services/registration/internal/cache"
	"example.com/raceday/services/registration/internal/models"
	"example.com/raceday/services/registration/internal/report"
	"example.com/raceday/services/registration/internal/repository"

	"github.com/sirupsen/logrus"
)

// maxTxAttempts bounds how often a write is retried after losing a
// serialization or deadlock race before the conflict is surfaced.
const maxTxAttempts = 3

// Service defines the business logic operations
type Service interface {
	// Event operations
	CreateEvent(ctx context.Context, input EventInput) (*models.Event, error)
	UpdateEvent(ctx context.Context, uid string, input EventInput) (*models.Event, error)
	DeleteEvent(ctx context.Context, uid string) error
	GetEvent(ctx context.Context, uid string) (*models.Event, error)
	ListEvents(ctx context.Context) ([]*models.Event, error)
	EventStats(ctx context.Context, uid string) (*models.EventStats, error)

	// Runner operations
	CreateRunner(ctx context.Context, eventUID string, input RunnerInput) (*models.Runner, error)
	UpdateRunner(ctx context.Context, eventUID, runnerUID string, input RunnerInput) (*models.Runner, error)
	DeleteRunner(ctx context.Context, eventUID, runnerUID string) error
	GetRunner(ctx context.Context, eventUID, runnerUID string) (*models.Runner, error)
	ListRunners(ctx context.Context, eventUID, race, orderBy string) ([]*models.Runner, error)
	RecordFinish(ctx context.Context, eventUID string, startNo int, timeText string) (*models.Runner, error)

	// Report operations
	StarterList(ctx context.Context, eventUID, race, orderBy string) (*report.StarterList, error)
	FinishedReport(ctx context.Context, eventUID, race, groupBy string) (*report.FinishedReport, error)
	ExportArchive(ctx context.Context, eventUID string) (*report.Archive, error)
	ImportArchive(ctx context.Context, r io.Reader) (*models.Event, error)
}

// service is an implementation of the Service interface
type service struct {
	repo  repository.Repository
	cache cache.RedisClient
	log   *logrus.Logger
	org   string
}

// NewService creates a new service instance. org is the organization
// namespace key all events are scoped to; cache may be nil.
func NewService(repo repository.Repository, cache cache.RedisClient, log *logrus.Logger, org string) Service {
	return &service{
		repo:  repo,
		cache: cache,
		log:   log,
		org:   org,
	}
}

// runTx executes fn in a transaction, retrying a bounded number of times
// when the transaction lost a serialization or deadlock race.
func (s *service) runTx(ctx context.Context, fn func(ctx context.Context, txRepo repository.Repository) error) error {
	var err error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err = s.repo.WithTransaction(ctx, fn)
		if !errors.Is(err, repository.ErrTxConflict) {
			return err
		}
		s.log.WithField("attempt", attempt).Warn("Transaction conflict, retrying")
	}
	return err
}
