package repository

import (
	"context"
	"errors"

	"example.com/raceday/services/registration/internal/database"
	"example.com/raceday/services/registration/internal/models"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RunnerOrder selects the ordering of a runner listing.
type RunnerOrder string

const (
	// OrderByStartNo orders runners by their start number.
	OrderByStartNo RunnerOrder = "start_no"
	// OrderByName orders runners alphabetically.
	OrderByName RunnerOrder = "name"
)

// ParseRunnerOrder maps a caller-supplied order string to a RunnerOrder.
// Anything unrecognized falls back to start number ordering.
func ParseRunnerOrder(s string) RunnerOrder {
	if RunnerOrder(s) == OrderByName {
		return OrderByName
	}
	return OrderByStartNo
}

// Repository provides data access methods for events and runners.
type Repository interface {
	// WithTransaction executes fn against a repository bound to a single
	// database transaction. Used by the registration engine so that the
	// start number uniqueness check and the write commit atomically.
	WithTransaction(ctx context.Context, fn func(ctx context.Context, txRepo Repository) error) error

	// Event operations
	CreateEvent(ctx context.Context, event *models.Event) error
	UpdateEvent(ctx context.Context, event *models.Event) error
	DeleteEvent(ctx context.Context, event *models.Event) error
	FindEventByUID(ctx context.Context, org, uid string) (*models.Event, error)
	// FindEventByUIDForUpdate locks the event row until the surrounding
	// transaction ends, serializing runner writes per event.
	FindEventByUIDForUpdate(ctx context.Context, org, uid string) (*models.Event, error)
	ListEvents(ctx context.Context, org string) ([]*models.Event, error)

	// Runner operations
	CreateRunner(ctx context.Context, runner *models.Runner) error
	UpdateRunner(ctx context.Context, runner *models.Runner) error
	DeleteRunner(ctx context.Context, runner *models.Runner) error
	DeleteEventRunners(ctx context.Context, eventID uint) error
	FindRunnerByUID(ctx context.Context, eventID uint, uid string) (*models.Runner, error)
	FindRunnerByStartNo(ctx context.Context, eventID uint, startNo int) (*models.Runner, error)
	ListRunners(ctx context.Context, eventID uint, race models.Race, order RunnerOrder) ([]*models.Runner, error)
	ListFinishedRunners(ctx context.Context, eventID uint, race models.Race) ([]*models.Runner, error)
	CountRunners(ctx context.Context, eventID uint) (int64, error)
	CountFinishedRunners(ctx context.Context, eventID uint) (int64, error)
}

// repo is an implementation of the Repository interface
type repo struct {
	db database.DB
}

// Helper type for transaction support
type dbWrapper struct {
	db *gorm.DB
}

func (w *dbWrapper) DB() (*gorm.DB, error) {
	return w.db, nil
}

func (w *dbWrapper) Close() error {
	return nil
}

// NewRepository creates a new repository instance
func NewRepository(db database.DB) Repository {
	return &repo{
		db: db,
	}
}

// WithTransaction executes the given function within a database transaction
func (r *repo) WithTransaction(ctx context.Context, fn func(ctx context.Context, txRepo Repository) error) error {
	gormDB, err := r.db.DB()
	if err != nil {
		return err
	}

	return gormDB.Transaction(func(tx *gorm.DB) error {
		txRepo := &repo{
			db: &dbWrapper{db: tx},
		}
		return fn(ctx, txRepo)
	})
}

// translateError maps database errors to the repository sentinels.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation, only runners carry a composite unique index
			return ErrDuplicateStartNo
		case "40001", "40P01": // serialization_failure, deadlock_detected
			return ErrTxConflict
		}
	}
	return err
}

// Event operations implementation

func (r *repo) CreateEvent(ctx context.Context, event *models.Event) error {
	db, err := r.db.DB()
	if err != nil {
		return err
	}
	return translateError(db.WithContext(ctx).Create(event).Error)
}

func (r *repo) UpdateEvent(ctx context.Context, event *models.Event) error {
	db, err := r.db.DB()
	if err != nil {
		return err
	}
	return translateError(db.WithContext(ctx).Save(event).Error)
}

func (r *repo) DeleteEvent(ctx context.Context, event *models.Event) error {
	db, err := r.db.DB()
	if err != nil {
		return err
	}
	return translateError(db.WithContext(ctx).Delete(event).Error)
}

func (r *repo) FindEventByUID(ctx context.Context, org, uid string) (*models.Event, error) {
	db, err := r.db.DB()
	if err != nil {
		return nil, err
	}
	var event models.Event
	err = db.WithContext(ctx).
		Where("uuid = ? AND organization = ?", uid, org).
		First(&event).Error
	if err != nil {
		return nil, translateError(err)
	}
	return &event, nil
}

func (r *repo) FindEventByUIDForUpdate(ctx context.Context, org, uid string) (*models.Event, error) {
	db, err := r.db.DB()
	if err != nil {
		return nil, err
	}
	var event models.Event
	err = db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("uuid = ? AND organization = ?", uid, org).
		First(&event).Error
	if err != nil {
		return nil, translateError(err)
	}
	return &event, nil
}

func (r *repo) ListEvents(ctx context.Context, org string) ([]*models.Event, error) {
	db, err := r.db.DB()
	if err != nil {
		return nil, err
	}
	var events []*models.Event
	err = db.WithContext(ctx).
		Where("organization = ?", org).
		Order("year DESC, created_at DESC").
		Find(&events).Error
	if err != nil {
		return nil, translateError(err)
	}
	return events, nil
}

// Runner operations implementation

func (r *repo) CreateRunner(ctx context.Context, runner *models.Runner) error {
	db, err := r.db.DB()
	if err != nil {
		return err
	}
	return translateError(db.WithContext(ctx).Create(runner).Error)
}

func (r *repo) UpdateRunner(ctx context.Context, runner *models.Runner) error {
	db, err := r.db.DB()
	if err != nil {
		return err
	}
	// Save writes all fields so that a cleared finish time reaches the
	// database as NULL.
	return translateError(db.WithContext(ctx).Save(runner).Error)
}

func (r *repo) DeleteRunner(ctx context.Context, runner *models.Runner) error {
	db, err := r.db.DB()
	if err != nil {
		return err
	}
	return translateError(db.WithContext(ctx).Delete(runner).Error)
}

func (r *repo) DeleteEventRunners(ctx context.Context, eventID uint) error {
	db, err := r.db.DB()
	if err != nil {
		return err
	}
	return translateError(db.WithContext(ctx).
		Where("event_id = ?", eventID).
		Delete(&models.Runner{}).Error)
}

func (r *repo) FindRunnerByUID(ctx context.Context, eventID uint, uid string) (*models.Runner, error) {
	db, err := r.db.DB()
	if err != nil {
		return nil, err
	}
	var runner models.Runner
	err = db.WithContext(ctx).
		Where("uuid = ? AND event_id = ?", uid, eventID).
		First(&runner).Error
	if err != nil {
		return nil, translateError(err)
	}
	return &runner, nil
}

func (r *repo) FindRunnerByStartNo(ctx context.Context, eventID uint, startNo int) (*models.Runner, error) {
	db, err := r.db.DB()
	if err != nil {
		return nil, err
	}
	var runner models.Runner
	err = db.WithContext(ctx).
		Where("event_id = ? AND start_no = ?", eventID, startNo).
		First(&runner).Error
	if err != nil {
		return nil, translateError(err)
	}
	return &runner, nil
}

func (r *repo) ListRunners(ctx context.Context, eventID uint, race models.Race, order RunnerOrder) ([]*models.Runner, error) {
	db, err := r.db.DB()
	if err != nil {
		return nil, err
	}
	query := db.WithContext(ctx).Where("event_id = ?", eventID)
	if race != "" {
		query = query.Where("race = ?", race)
	}
	if order == OrderByName {
		query = query.Order("name, start_no")
	} else {
		query = query.Order("start_no")
	}
	var runners []*models.Runner
	if err := query.Find(&runners).Error; err != nil {
		return nil, translateError(err)
	}
	return runners, nil
}

func (r *repo) ListFinishedRunners(ctx context.Context, eventID uint, race models.Race) ([]*models.Runner, error) {
	db, err := r.db.DB()
	if err != nil {
		return nil, err
	}
	query := db.WithContext(ctx).
		Where("event_id = ? AND time_seconds IS NOT NULL", eventID)
	if race != "" {
		query = query.Where("race = ?", race)
	}
	var runners []*models.Runner
	// Ties on the finish time break by start number so repeated report
	// runs produce the same placement order.
	if err := query.Order("time_seconds, start_no").Find(&runners).Error; err != nil {
		return nil, translateError(err)
	}
	return runners, nil
}

func (r *repo) CountRunners(ctx context.Context, eventID uint) (int64, error) {
	db, err := r.db.DB()
	if err != nil {
		return 0, err
	}
	var count int64
	err = db.WithContext(ctx).
		Model(&models.Runner{}).
		Where("event_id = ?", eventID).
		Count(&count).Error
	if err != nil {
		return 0, translateError(err)
	}
	return count, nil
}

func (r *repo) CountFinishedRunners(ctx context.Context, eventID uint) (int64, error) {
	db, err := r.db.DB()
	if err != nil {
		return 0, err
	}
	var count int64
	err = db.WithContext(ctx).
		Model(&models.Runner{}).
		Where("event_id = ? AND time_seconds IS NOT NULL", eventID).
		Count(&count).Error
	if err != nil {
		return 0, translateError(err)
	}
	return count, nil
}
