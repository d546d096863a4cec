package service

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"testing"

	"example.com/raceday/services/registration/internal/models"
	"example.com/raceday/services/registration/internal/repository"
	"example.com/raceday/services/registration/internal/timing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testOrg = "sf_lotte"

// fakeRepo is an in-memory Repository. WithTransaction serializes all
// transactional work behind one mutex, giving the same "one writer per
// event at a time" guarantee the row lock gives in Postgres, and rolls
// the maps back when the function fails.
type fakeRepo struct {
	mu      sync.Mutex
	nextID  uint
	events  map[string]*models.Event  // by UID
	runners map[string]*models.Runner // by UID
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		events:  make(map[string]*models.Event),
		runners: make(map[string]*models.Runner),
	}
}

func (f *fakeRepo) WithTransaction(ctx context.Context, fn func(ctx context.Context, txRepo repository.Repository) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	savedID := f.nextID
	savedEvents := make(map[string]*models.Event, len(f.events))
	for uid, e := range f.events {
		copied := *e
		savedEvents[uid] = &copied
	}
	savedRunners := make(map[string]*models.Runner, len(f.runners))
	for uid, r := range f.runners {
		copied := *r
		savedRunners[uid] = &copied
	}

	if err := fn(ctx, f); err != nil {
		f.nextID = savedID
		f.events = savedEvents
		f.runners = savedRunners
		return err
	}
	return nil
}

func (f *fakeRepo) CreateEvent(ctx context.Context, event *models.Event) error {
	f.nextID++
	event.ID = f.nextID
	copied := *event
	f.events[event.UID] = &copied
	return nil
}

func (f *fakeRepo) UpdateEvent(ctx context.Context, event *models.Event) error {
	if _, ok := f.events[event.UID]; !ok {
		return repository.ErrNotFound
	}
	copied := *event
	f.events[event.UID] = &copied
	return nil
}

func (f *fakeRepo) DeleteEvent(ctx context.Context, event *models.Event) error {
	delete(f.events, event.UID)
	return nil
}

func (f *fakeRepo) FindEventByUID(ctx context.Context, org, uid string) (*models.Event, error) {
	event, ok := f.events[uid]
	if !ok || event.Organization != org {
		return nil, repository.ErrNotFound
	}
	copied := *event
	return &copied, nil
}

func (f *fakeRepo) FindEventByUIDForUpdate(ctx context.Context, org, uid string) (*models.Event, error) {
	return f.FindEventByUID(ctx, org, uid)
}

func (f *fakeRepo) ListEvents(ctx context.Context, org string) ([]*models.Event, error) {
	var out []*models.Event
	for _, e := range f.events {
		if e.Organization == org {
			copied := *e
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (f *fakeRepo) CreateRunner(ctx context.Context, runner *models.Runner) error {
	for _, r := range f.runners {
		if r.EventID == runner.EventID && r.StartNo == runner.StartNo {
			return repository.ErrDuplicateStartNo
		}
	}
	f.nextID++
	runner.ID = f.nextID
	copied := *runner
	f.runners[runner.UID] = &copied
	return nil
}

func (f *fakeRepo) UpdateRunner(ctx context.Context, runner *models.Runner) error {
	if _, ok := f.runners[runner.UID]; !ok {
		return repository.ErrNotFound
	}
	for _, r := range f.runners {
		if r.UID != runner.UID && r.EventID == runner.EventID && r.StartNo == runner.StartNo {
			return repository.ErrDuplicateStartNo
		}
	}
	copied := *runner
	f.runners[runner.UID] = &copied
	return nil
}

func (f *fakeRepo) DeleteRunner(ctx context.Context, runner *models.Runner) error {
	delete(f.runners, runner.UID)
	return nil
}

func (f *fakeRepo) DeleteEventRunners(ctx context.Context, eventID uint) error {
	for uid, r := range f.runners {
		if r.EventID == eventID {
			delete(f.runners, uid)
		}
	}
	return nil
}

func (f *fakeRepo) FindRunnerByUID(ctx context.Context, eventID uint, uid string) (*models.Runner, error) {
	runner, ok := f.runners[uid]
	if !ok || runner.EventID != eventID {
		return nil, repository.ErrNotFound
	}
	copied := *runner
	return &copied, nil
}

func (f *fakeRepo) FindRunnerByStartNo(ctx context.Context, eventID uint, startNo int) (*models.Runner, error) {
	for _, r := range f.runners {
		if r.EventID == eventID && r.StartNo == startNo {
			copied := *r
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeRepo) ListRunners(ctx context.Context, eventID uint, race models.Race, order repository.RunnerOrder) ([]*models.Runner, error) {
	var out []*models.Runner
	for _, r := range f.runners {
		if r.EventID != eventID {
			continue
		}
		if race != "" && r.Race != race {
			continue
		}
		copied := *r
		out = append(out, &copied)
	}
	sortRunners(out, order)
	return out, nil
}

func (f *fakeRepo) ListFinishedRunners(ctx context.Context, eventID uint, race models.Race) ([]*models.Runner, error) {
	all, _ := f.ListRunners(ctx, eventID, race, repository.OrderByStartNo)
	var out []*models.Runner
	for _, r := range all {
		if r.TimeSeconds != nil {
			out = append(out, r)
		}
	}
	sortByTime(out)
	return out, nil
}

func (f *fakeRepo) CountRunners(ctx context.Context, eventID uint) (int64, error) {
	all, _ := f.ListRunners(ctx, eventID, "", repository.OrderByStartNo)
	return int64(len(all)), nil
}

func (f *fakeRepo) CountFinishedRunners(ctx context.Context, eventID uint) (int64, error) {
	finished, _ := f.ListFinishedRunners(ctx, eventID, "")
	return int64(len(finished)), nil
}

func sortRunners(runners []*models.Runner, order repository.RunnerOrder) {
	for i := 1; i < len(runners); i++ {
		for j := i; j > 0 && runnerLess(runners[j], runners[j-1], order); j-- {
			runners[j], runners[j-1] = runners[j-1], runners[j]
		}
	}
}

func runnerLess(a, b *models.Runner, order repository.RunnerOrder) bool {
	if order == repository.OrderByName && a.Name != b.Name {
		return a.Name < b.Name
	}
	return a.StartNo < b.StartNo
}

func sortByTime(runners []*models.Runner) {
	for i := 1; i < len(runners); i++ {
		for j := i; j > 0; j-- {
			a, b := runners[j], runners[j-1]
			if *a.TimeSeconds < *b.TimeSeconds ||
				(*a.TimeSeconds == *b.TimeSeconds && a.StartNo < b.StartNo) {
				runners[j], runners[j-1] = runners[j-1], runners[j]
			} else {
				break
			}
		}
	}
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newTestService(t *testing.T) (Service, *fakeRepo) {
	t.Helper()
	repo := newFakeRepo()
	return NewService(repo, nil, testLogger(), testOrg), repo
}

func createTestEvent(t *testing.T, svc Service) *models.Event {
	t.Helper()
	event, err := svc.CreateEvent(context.Background(), EventInput{
		Title:       "Herbstlauf",
		Year:        2016,
		NextStartNo: 5,
	})
	require.NoError(t, err)
	return event
}

func runnerInput(startNo int) RunnerInput {
	return RunnerInput{
		StartNo:   startNo,
		Name:      "Anna Meier",
		Team:      "SF Lotte",
		Gender:    "female",
		BirthYear: 1990,
		Race:      "6km",
	}
}

func TestCreateEventValidation(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.CreateEvent(context.Background(), EventInput{Year: 1980, NextStartNo: 0})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "title")
	assert.Contains(t, verr.Fields, "year")
	assert.Contains(t, verr.Fields, "next_start_no")
}

func TestCreateRunnerAtSuggestedNumberAdvancesIt(t *testing.T) {
	svc, _ := newTestService(t)
	event := createTestEvent(t, svc)

	runner, err := svc.CreateRunner(context.Background(), event.UID, runnerInput(5))
	require.NoError(t, err)
	assert.Equal(t, 5, runner.StartNo)
	assert.Equal(t, "LW20", runner.AgeClass)

	got, err := svc.GetEvent(context.Background(), event.UID)
	require.NoError(t, err)
	assert.Equal(t, 6, got.NextStartNo)
}

func TestCreateRunnerAtOtherNumberLeavesSuggestion(t *testing.T) {
	svc, _ := newTestService(t)
	event := createTestEvent(t, svc)

	_, err := svc.CreateRunner(context.Background(), event.UID, runnerInput(3))
	require.NoError(t, err)

	got, err := svc.GetEvent(context.Background(), event.UID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.NextStartNo)
}

func TestCreateRunnerDuplicateStartNo(t *testing.T) {
	svc, _ := newTestService(t)
	event := createTestEvent(t, svc)

	_, err := svc.CreateRunner(context.Background(), event.UID, runnerInput(5))
	require.NoError(t, err)

	input := runnerInput(5)
	input.Name = "Bernd Schulz"
	_, err = svc.CreateRunner(context.Background(), event.UID, input)

	var dup *DuplicateStartNoError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, 5, dup.StartNo)

	// It is also catchable as a plain field error.
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "start_no")

	// A rejected registration must not advance the suggestion again.
	got, err := svc.GetEvent(context.Background(), event.UID)
	require.NoError(t, err)
	assert.Equal(t, 6, got.NextStartNo)
}

func TestCreateRunnerConcurrentSameNumber(t *testing.T) {
	svc, _ := newTestService(t)
	event := createTestEvent(t, svc)

	const attempts = 8
	errs := make(chan error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.CreateRunner(context.Background(), event.UID, runnerInput(5))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var ok, dups int
	for err := range errs {
		if err == nil {
			ok++
			continue
		}
		var dup *DuplicateStartNoError
		require.ErrorAs(t, err, &dup)
		dups++
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, attempts-1, dups)

	got, err := svc.GetEvent(context.Background(), event.UID)
	require.NoError(t, err)
	assert.Equal(t, 6, got.NextStartNo)
}

func TestUpdateRunnerKeepsOwnStartNo(t *testing.T) {
	svc, _ := newTestService(t)
	event := createTestEvent(t, svc)

	runner, err := svc.CreateRunner(context.Background(), event.UID, runnerInput(5))
	require.NoError(t, err)

	input := runnerInput(5)
	input.Team = "LG Osnabrueck"
	updated, err := svc.UpdateRunner(context.Background(), event.UID, runner.UID, input)
	require.NoError(t, err)
	assert.Equal(t, "LG Osnabrueck", updated.Team)

	// Editing without changing the number never advances the suggestion.
	got, err := svc.GetEvent(context.Background(), event.UID)
	require.NoError(t, err)
	assert.Equal(t, 6, got.NextStartNo)
}

func TestUpdateRunnerToTakenStartNo(t *testing.T) {
	svc, _ := newTestService(t)
	event := createTestEvent(t, svc)

	_, err := svc.CreateRunner(context.Background(), event.UID, runnerInput(5))
	require.NoError(t, err)
	second, err := svc.CreateRunner(context.Background(), event.UID, runnerInput(6))
	require.NoError(t, err)

	_, err = svc.UpdateRunner(context.Background(), event.UID, second.UID, runnerInput(5))
	var dup *DuplicateStartNoError
	require.ErrorAs(t, err, &dup)
}

func TestUpdateRunnerRecomputesAgeClass(t *testing.T) {
	svc, _ := newTestService(t)
	event := createTestEvent(t, svc)

	runner, err := svc.CreateRunner(context.Background(), event.UID, runnerInput(5))
	require.NoError(t, err)
	assert.Equal(t, "LW20", runner.AgeClass)

	input := runnerInput(5)
	input.BirthYear = 1960
	updated, err := svc.UpdateRunner(context.Background(), event.UID, runner.UID, input)
	require.NoError(t, err)
	assert.Equal(t, "LW55", updated.AgeClass)
}

func TestUpdateRunnerClearsTime(t *testing.T) {
	svc, _ := newTestService(t)
	event := createTestEvent(t, svc)

	runner, err := svc.CreateRunner(context.Background(), event.UID, runnerInput(5))
	require.NoError(t, err)
	_, err = svc.RecordFinish(context.Background(), event.UID, 5, "25:00")
	require.NoError(t, err)

	// Omitted time clears the recorded finish.
	updated, err := svc.UpdateRunner(context.Background(), event.UID, runner.UID, runnerInput(5))
	require.NoError(t, err)
	assert.Nil(t, updated.TimeSeconds)

	// So does an explicitly empty one.
	_, err = svc.RecordFinish(context.Background(), event.UID, 5, "25:00")
	require.NoError(t, err)
	input := runnerInput(5)
	empty := ""
	input.Time = &empty
	updated, err = svc.UpdateRunner(context.Background(), event.UID, runner.UID, input)
	require.NoError(t, err)
	assert.Nil(t, updated.TimeSeconds)
}

func TestUpdateRunnerSetsTime(t *testing.T) {
	svc, _ := newTestService(t)
	event := createTestEvent(t, svc)

	runner, err := svc.CreateRunner(context.Background(), event.UID, runnerInput(5))
	require.NoError(t, err)

	input := runnerInput(5)
	text := "1:02:03"
	input.Time = &text
	updated, err := svc.UpdateRunner(context.Background(), event.UID, runner.UID, input)
	require.NoError(t, err)
	require.NotNil(t, updated.TimeSeconds)
	assert.Equal(t, 3600+2*60+3, *updated.TimeSeconds)
}

func TestRecordFinish(t *testing.T) {
	svc, _ := newTestService(t)
	event := createTestEvent(t, svc)

	_, err := svc.CreateRunner(context.Background(), event.UID, runnerInput(5))
	require.NoError(t, err)

	runner, err := svc.RecordFinish(context.Background(), event.UID, 5, "47:11")
	require.NoError(t, err)
	require.NotNil(t, runner.TimeSeconds)
	assert.Equal(t, 47*60+11, *runner.TimeSeconds)
	// Recording a time never touches the age class.
	assert.Equal(t, "LW20", runner.AgeClass)

	// A second recording overwrites the first.
	runner, err = svc.RecordFinish(context.Background(), event.UID, 5, "46:00")
	require.NoError(t, err)
	assert.Equal(t, 46*60, *runner.TimeSeconds)
}

func TestRecordFinishRejectsEmptyTime(t *testing.T) {
	svc, _ := newTestService(t)
	event := createTestEvent(t, svc)

	_, err := svc.RecordFinish(context.Background(), event.UID, 5, "  ")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "time")
}

func TestRecordFinishRejectsMalformedTime(t *testing.T) {
	svc, _ := newTestService(t)
	event := createTestEvent(t, svc)

	_, err := svc.RecordFinish(context.Background(), event.UID, 5, "90")
	var ferr *timing.FormatError
	require.ErrorAs(t, err, &ferr)
}

func TestRecordFinishUnknownStartNo(t *testing.T) {
	svc, _ := newTestService(t)
	event := createTestEvent(t, svc)

	_, err := svc.RecordFinish(context.Background(), event.UID, 99, "47:11")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateEventRejectsLowerNextStartNo(t *testing.T) {
	svc, _ := newTestService(t)
	event := createTestEvent(t, svc)

	_, err := svc.UpdateEvent(context.Background(), event.UID, EventInput{
		Title:       event.Title,
		Year:        event.Year,
		NextStartNo: 2,
	})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "next_start_no")
}

func TestUpdateEventYearReclassifiesRunners(t *testing.T) {
	svc, repo := newTestService(t)
	event := createTestEvent(t, svc)

	input := runnerInput(5)
	input.BirthYear = 2000
	runner, err := svc.CreateRunner(context.Background(), event.UID, input)
	require.NoError(t, err)
	assert.Equal(t, "WJG B", runner.AgeClass)

	_, err = svc.UpdateEvent(context.Background(), event.UID, EventInput{
		Title:       event.Title,
		Year:        2020,
		NextStartNo: event.NextStartNo + 1,
	})
	require.NoError(t, err)

	got, err := repo.FindRunnerByUID(context.Background(), event.ID, runner.UID)
	require.NoError(t, err)
	assert.Equal(t, "LW20", got.AgeClass)
}

func TestDeleteEventCascades(t *testing.T) {
	svc, repo := newTestService(t)
	event := createTestEvent(t, svc)

	_, err := svc.CreateRunner(context.Background(), event.UID, runnerInput(5))
	require.NoError(t, err)
	_, err = svc.CreateRunner(context.Background(), event.UID, runnerInput(6))
	require.NoError(t, err)

	require.NoError(t, svc.DeleteEvent(context.Background(), event.UID))

	_, err = svc.GetEvent(context.Background(), event.UID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, repo.runners)
}

func TestDeleteRunnerFreesStartNo(t *testing.T) {
	svc, _ := newTestService(t)
	event := createTestEvent(t, svc)

	runner, err := svc.CreateRunner(context.Background(), event.UID, runnerInput(5))
	require.NoError(t, err)
	require.NoError(t, svc.DeleteRunner(context.Background(), event.UID, runner.UID))

	// The freed number can be handed out again.
	_, err = svc.CreateRunner(context.Background(), event.UID, runnerInput(5))
	require.NoError(t, err)
}

func TestEventStats(t *testing.T) {
	svc, _ := newTestService(t)
	event := createTestEvent(t, svc)

	_, err := svc.CreateRunner(context.Background(), event.UID, runnerInput(5))
	require.NoError(t, err)
	_, err = svc.CreateRunner(context.Background(), event.UID, runnerInput(6))
	require.NoError(t, err)
	_, err = svc.RecordFinish(context.Background(), event.UID, 5, "25:00")
	require.NoError(t, err)

	stats, err := svc.EventStats(context.Background(), event.UID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Registered)
	assert.Equal(t, int64(1), stats.Finished)
	assert.Equal(t, int64(1), stats.Missing)
	assert.Equal(t, 50, stats.PercentDone)
}

func TestFinishedReportOrdersByTime(t *testing.T) {
	svc, _ := newTestService(t)
	event := createTestEvent(t, svc)

	for i, text := range []string{"27:00", "25:00", "26:00"} {
		_, err := svc.CreateRunner(context.Background(), event.UID, runnerInput(5+i))
		require.NoError(t, err)
		_, err = svc.RecordFinish(context.Background(), event.UID, 5+i, text)
		require.NoError(t, err)
	}
	// Registered but not finished, excluded from the report.
	_, err := svc.CreateRunner(context.Background(), event.UID, runnerInput(20))
	require.NoError(t, err)

	rep, err := svc.FinishedReport(context.Background(), event.UID, "", "")
	require.NoError(t, err)
	flat := rep.ByRace[models.RaceShort]
	require.Len(t, flat, 3)
	assert.Equal(t, 6, flat[0].StartNo)
	assert.Equal(t, 7, flat[1].StartNo)
	assert.Equal(t, 5, flat[2].StartNo)
}

func TestImportExportRoundTrip(t *testing.T) {
	svc, _ := newTestService(t)
	event := createTestEvent(t, svc)

	_, err := svc.CreateRunner(context.Background(), event.UID, runnerInput(5))
	require.NoError(t, err)
	_, err = svc.RecordFinish(context.Background(), event.UID, 5, "25:00")
	require.NoError(t, err)

	archive, err := svc.ExportArchive(context.Background(), event.UID)
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, archive.WriteTSV(&buf))

	imported, err := svc.ImportArchive(context.Background(), &buf)
	require.NoError(t, err)
	assert.NotEqual(t, event.UID, imported.UID)
	assert.Equal(t, event.Title, imported.Title)
	assert.Equal(t, 6, imported.NextStartNo)

	runners, err := svc.ListRunners(context.Background(), imported.UID, "", "")
	require.NoError(t, err)
	require.Len(t, runners, 1)
	assert.Equal(t, 5, runners[0].StartNo)
	assert.Equal(t, "LW20", runners[0].AgeClass)
	require.NotNil(t, runners[0].TimeSeconds)
	assert.Equal(t, 25*60, *runners[0].TimeSeconds)
}

func TestImportArchiveDuplicateRowAborts(t *testing.T) {
	svc, repo := newTestService(t)

	text := "#title:\tWinterlauf\n" +
		"#year:\t2017\n" +
		"#next_start_no:\t3\n" +
		"#start_no\tname\tteam\tbirth_year\tgender\tage_class\trace\ttime\n" +
		"1\tAnna\t\t1990\tfemale\t\t6km\t\n" +
		"1\tBernd\t\t1985\tmale\t\t12km\t\n"

	_, err := svc.ImportArchive(context.Background(), strings.NewReader(text))
	var dup *DuplicateStartNoError
	require.ErrorAs(t, err, &dup)
	assert.Empty(t, repo.runners)
}
