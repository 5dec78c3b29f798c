package service

import (
	"context"
	"slices"
	"sync"
	"testing"
	"time"

	"Mansoor88-6/time-targets-agent/internal/calendar"
	"Mansoor88-6/time-targets-agent/internal/client"
	"Mansoor88-6/time-targets-agent/internal/clock"
	"Mansoor88-6/time-targets-agent/internal/models"
	"Mansoor88-6/time-targets-agent/internal/period"
	"Mansoor88-6/time-targets-agent/internal/projectindex"
	"Mansoor88-6/time-targets-agent/internal/retrieval"
	"Mansoor88-6/time-targets-agent/internal/scheduler"
	"Mansoor88-6/time-targets-agent/internal/targets"

	"go.uber.org/zap/zaptest"
)

type fakeAPI struct {
	mu             sync.Mutex
	runningEntry   *models.RunningEntry
	reportCalls    int
	runningFetches []time.Time
}

func (f *fakeAPI) FetchProfile(_ context.Context, cred *models.Credential) (models.Profile, error) {
	if cred == nil {
		return models.Profile{}, client.ErrNoCredentials
	}
	return models.Profile{ID: 1, Name: "Ada", WorkspaceIDs: []int64{1}}, nil
}

func (f *fakeAPI) FetchProjects(context.Context, *client.Session, int64) ([]models.Project, error) {
	return []models.Project{{ID: 10, WorkspaceID: 1}, {ID: 20, WorkspaceID: 1}, {ID: 30, WorkspaceID: 1}}, nil
}

func (f *fakeAPI) FetchReports(_ context.Context, _ *client.Session, _ int64, p calendar.Period) ([]models.ReportEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reportCalls++
	if p.Start == p.End {
		return []models.ReportEntry{{ProjectID: 20, WorkedTime: 2 * time.Hour}}, nil
	}
	return []models.ReportEntry{{ProjectID: 20, WorkedTime: 10 * time.Hour}}, nil
}

func (f *fakeAPI) FetchRunningEntry(context.Context, *client.Session) (*models.RunningEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runningFetches = append(f.runningFetches, time.Now())
	return f.runningEntry, nil
}

func (f *fakeAPI) runningEntryFetches() []time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.runningFetches)
}

func (f *fakeAPI) setRunningEntry(e *models.RunningEntry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runningEntry = e
}

func (f *fakeAPI) reports() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reportCalls
}

type memoryCache struct {
	mu       sync.Mutex
	profile  *models.Profile
	projects map[int64]models.Project
}

func (c *memoryCache) PersistProfile(p models.Profile) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.profile = &p
	return nil
}

func (c *memoryCache) RetrieveProfile() (*models.Profile, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.profile, nil
}

func (c *memoryCache) DeleteProfile() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.profile = nil
	return nil
}

func (c *memoryCache) PersistProjects(p map[int64]models.Project) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.projects = p
	return nil
}

func (c *memoryCache) RetrieveProjects() (map[int64]models.Project, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.projects, nil
}

func (c *memoryCache) DeleteProjects() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.projects = nil
	return nil
}

type memoryTargets struct {
	mu   sync.Mutex
	rows map[int64]models.TimeTarget
}

func (r *memoryTargets) List() ([]models.TimeTarget, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []models.TimeTarget
	for _, t := range r.rows {
		all = append(all, t)
	}
	return all, nil
}

func (r *memoryTargets) Upsert(t models.TimeTarget) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[t.ProjectID] = t
	return nil
}

func (r *memoryTargets) Delete(projectID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rows, projectID)
	return nil
}

type memoryKV struct {
	mu     sync.Mutex
	values map[string]int
}

func (kv *memoryKV) GetBool(key string) (bool, bool, error) {
	v, found, err := kv.GetInt(key)
	return v != 0, found, err
}

func (kv *memoryKV) GetInt(key string) (int, bool, error) {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	v, ok := kv.values[key]
	return v, ok, nil
}

func (kv *memoryKV) SetBool(key string, value bool) error {
	v := 0
	if value {
		v = 1
	}
	return kv.SetInt(key, v)
}

func (kv *memoryKV) SetInt(key string, value int) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	kv.values[key] = value
	return nil
}

func (kv *memoryKV) Delete(key string) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	delete(kv.values, key)
	return nil
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

type fixture struct {
	api         *fakeAPI
	coordinator *ModelCoordinator
	kv          *memoryKV
	now         time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	now := time.Date(2017, time.October, 11, 9, 0, 30, 0, time.UTC)
	f := newFixtureWith(t, Options{Clock: clock.NewFixed(now)})
	f.now = now
	return f
}

func newFixtureWith(t *testing.T, opts Options) *fixture {
	t.Helper()
	logger := zaptest.NewLogger(t)
	api := &fakeAPI{}
	retriever := retrieval.NewDataRetriever(api, &memoryCache{}, logger)

	store, err := targets.NewStore(&memoryTargets{rows: map[int64]models.TimeTarget{
		20: {ProjectID: 20, HoursTarget: 40, WorkWeekdays: calendar.ExceptWeekend},
	}}, logger)
	if err != nil {
		t.Fatal(err)
	}

	kv := &memoryKV{values: map[string]int{}}
	opts.Calendar = calendar.New(time.UTC)
	coordinator := NewModelCoordinator(retriever, store, period.NewPreferenceStore(kv), opts, logger)
	t.Cleanup(coordinator.Stop)

	return &fixture{api: api, coordinator: coordinator, kv: kv}
}

func (f *fixture) start(t *testing.T) {
	t.Helper()
	cred := models.NewTokenCredential("secret")
	if err := f.coordinator.Start(&cred); err != nil {
		t.Fatal(err)
	}
	eventually(t, "project index", func() bool {
		return f.coordinator.ProjectIndex().Len() == 3
	})
}

func TestModelCoordinator_ResolvesPeriodAndIndexesProjects(t *testing.T) {
	f := newFixture(t)
	f.start(t)

	twoPart, ok := f.coordinator.TwoPartPeriod()
	if !ok {
		t.Fatal("expected a resolved period")
	}
	wantScope := calendar.Period{
		Start: calendar.DayComponents{Year: 2017, Month: time.October, Day: 1},
		End:   calendar.DayComponents{Year: 2017, Month: time.October, Day: 31},
	}
	if twoPart.Scope != wantScope || twoPart.DayOfRequest.Day != 11 {
		t.Errorf("unexpected period %+v", twoPart)
	}

	index := f.coordinator.ProjectIndex()
	if got := index.SortedIDs(); len(got) != 3 || got[0] != 20 || got[1] != 30 || got[2] != 10 {
		t.Errorf("expected [20 30 10], got %v", got)
	}
}

func TestModelCoordinator_ProgressTracker(t *testing.T) {
	f := newFixture(t)
	f.start(t)

	tracker := f.coordinator.ProgressTracker(20)
	if f.coordinator.ProgressTracker(20) != tracker {
		t.Error("expected the same tracker for the same project")
	}

	// the strategy starts today, so only time worked before today counts
	eventually(t, "progress with reports", func() bool {
		p, ok := tracker.Progress()
		return ok && p.WorkedTime == 10*time.Hour
	})
	p, _ := tracker.Progress()
	if p.RemainingTimeToTarget != 30*time.Hour {
		t.Errorf("expected 30h remaining, got %v", p.RemainingTimeToTarget)
	}
	if p.TimeWorkedToday != 2*time.Hour {
		t.Errorf("expected 2h worked today, got %v", p.TimeWorkedToday)
	}
	if !p.TotalWorkDays.Valid || p.TotalWorkDays.Int != 22 {
		t.Errorf("expected 22 work days, got %+v", p.TotalWorkDays)
	}

	// deleting the target makes progress unavailable
	if err := f.coordinator.DeleteTarget(20); err != nil {
		t.Fatal(err)
	}
	if _, ok := tracker.Progress(); ok {
		t.Error("expected no progress without a target")
	}
}

func TestModelCoordinator_IncrementalIndexUpdates(t *testing.T) {
	f := newFixture(t)
	f.start(t)

	var events []IndexEvent
	var mu sync.Mutex
	f.coordinator.OnIndexEvent(func(e IndexEvent) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	})

	if err := f.coordinator.WriteTarget(models.TimeTarget{ProjectID: 10, HoursTarget: 5, WorkWeekdays: calendar.WholeWeek}); err != nil {
		t.Fatal(err)
	}
	if err := f.coordinator.WriteTarget(models.TimeTarget{ProjectID: 999, HoursTarget: 5}); err != nil {
		t.Fatal(err)
	}

	eventually(t, "index event", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(events) > 0
	})
	mu.Lock()
	defer mu.Unlock()
	if len(events) != 1 || events[0].Update == nil {
		t.Fatalf("expected one incremental update, got %+v", events)
	}
	update := *events[0].Update
	if update.Kind != projectindex.Create || update.Change != (projectindex.IndexChange{Old: 2, New: 1}) {
		t.Errorf("unexpected update %+v", update)
	}
	if got := events[0].Index.SortedIDs(); got[1] != 10 || events[0].Index.CountWithTargets() != 2 {
		t.Errorf("unexpected index %v", got)
	}
}

func TestModelCoordinator_StoppedEntryRefreshesReports(t *testing.T) {
	f := newFixture(t)
	f.api.setRunningEntry(&models.RunningEntry{ID: 1, ProjectID: 20, Start: f.now.Add(-time.Hour)})
	f.start(t)

	retriever := f.coordinator.Retriever()
	eventually(t, "running entry", func() bool { return retriever.RunningEntry().Get() != nil })
	eventually(t, "first reports", func() bool { return f.api.reports() > 0 })
	eventually(t, "reports idle", retriever.CanRefreshReports)
	before := f.api.reports()

	f.api.setRunningEntry(nil)
	eventually(t, "running entry update", func() bool { return retriever.UpdateRunningEntry() == nil })
	eventually(t, "report refresh", func() bool { return f.api.reports() > before })
}

func TestModelCoordinator_SetPreference(t *testing.T) {
	f := newFixture(t)
	f.start(t)

	if err := f.coordinator.SetPreference(period.WeeklyPreference(time.Monday)); err != nil {
		t.Fatal(err)
	}
	twoPart, ok := f.coordinator.TwoPartPeriod()
	if !ok || twoPart.Scope.Start.Day != 9 || twoPart.Scope.End.Day != 15 {
		t.Errorf("expected week of Oct 9-15, got %+v", twoPart.Scope)
	}
	if f.kv.values["periodicity.weekly"] != 1 {
		t.Error("expected the weekly preference to be persisted")
	}
}

func TestModelCoordinator_IndexSubscriberMayWriteTargets(t *testing.T) {
	f := newFixture(t)
	f.start(t)

	var events []IndexEvent
	var mu sync.Mutex
	f.coordinator.OnIndexEvent(func(e IndexEvent) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
		if e.Update != nil && e.Update.Kind == projectindex.Create && e.Index.CountWithTargets() == 2 {
			if err := f.coordinator.WriteTarget(models.TimeTarget{ProjectID: 30, HoursTarget: 1, WorkWeekdays: calendar.WholeWeek}); err != nil {
				t.Error(err)
			}
		}
	})

	done := make(chan error, 1)
	go func() {
		done <- f.coordinator.WriteTarget(models.TimeTarget{ProjectID: 10, HoursTarget: 5, WorkWeekdays: calendar.WholeWeek})
	}()
	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("target write from an index subscriber did not complete")
	}

	eventually(t, "both index updates", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(events) == 2
	})
	mu.Lock()
	defer mu.Unlock()
	if events[0].Index.CountWithTargets() != 2 || events[1].Index.CountWithTargets() != 3 {
		t.Errorf("expected updates in write order, got %d then %d targets",
			events[0].Index.CountWithTargets(), events[1].Index.CountWithTargets())
	}
	if _, ok := f.coordinator.ReadTarget(30); !ok {
		t.Error("expected the target written by the subscriber to be stored")
	}
}

func TestModelCoordinator_TargetsWrittenBeforeStartAreIndexed(t *testing.T) {
	f := newFixture(t)
	if err := f.coordinator.WriteTarget(models.TimeTarget{ProjectID: 10, HoursTarget: 50, WorkWeekdays: calendar.WholeWeek}); err != nil {
		t.Fatal(err)
	}
	f.start(t)

	index := f.coordinator.ProjectIndex()
	if got := index.SortedIDs(); len(got) != 3 || got[0] != 10 || got[1] != 20 || got[2] != 30 {
		t.Errorf("expected [10 20 30], got %v", got)
	}
	if index.CountWithTargets() != 2 {
		t.Errorf("expected 2 projects with targets, got %d", index.CountWithTargets())
	}
}

func TestModelCoordinator_RunningEntryRefreshAlignsToEntryStart(t *testing.T) {
	const interval = time.Second
	f := newFixtureWith(t, Options{Clock: clock.NewFunc(time.Now), RunningEntryInterval: interval})

	// half an interval away from where the unaligned first refresh lands
	offset := (scheduler.OffsetWithin(time.Now(), interval) + interval/2) % interval
	start := time.Now().Add(-time.Hour).Truncate(interval).Add(offset)
	f.api.setRunningEntry(&models.RunningEntry{ID: 1, ProjectID: 20, Start: start})
	f.start(t)

	eventually(t, "realigned refreshes", func() bool { return len(f.api.runningEntryFetches()) >= 3 })

	f.coordinator.mu.Lock()
	aligned := f.coordinator.runningOffset
	f.coordinator.mu.Unlock()
	if aligned == nil || *aligned != offset {
		t.Fatalf("expected refresh offset %v, got %v", offset, aligned)
	}

	fetches := f.api.runningEntryFetches()
	last := scheduler.OffsetWithin(fetches[len(fetches)-1], interval)
	drift := last - offset
	if drift < 0 {
		drift = -drift
	}
	if drift > interval/2 {
		drift = interval - drift
	}
	if drift > 200*time.Millisecond {
		t.Errorf("expected refresh near offset %v, fired at %v", offset, last)
	}
}
