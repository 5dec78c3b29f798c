package service

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"Mansoor88-6/time-targets-agent/internal/calendar"
	"Mansoor88-6/time-targets-agent/internal/clock"
	"Mansoor88-6/time-targets-agent/internal/models"
	"Mansoor88-6/time-targets-agent/internal/observable"
	"Mansoor88-6/time-targets-agent/internal/period"
	"Mansoor88-6/time-targets-agent/internal/progress"
	"Mansoor88-6/time-targets-agent/internal/projectindex"
	"Mansoor88-6/time-targets-agent/internal/retrieval"
	"Mansoor88-6/time-targets-agent/internal/scheduler"
	"Mansoor88-6/time-targets-agent/internal/targets"

	"go.uber.org/zap"
)

const (
	minuteTickInterval          = time.Minute
	defaultRunningEntryInterval = 60 * time.Second
)

// IndexEvent publishes a new project ordering. Update is nil for a full rebuild and
// describes the single move otherwise.
type IndexEvent struct {
	Index  projectindex.ProjectIDsByTimeTargets
	Update *projectindex.IndexUpdate
}

// Options tunes the coordinator. Zero values select defaults; the zero Calendar is UTC.
type Options struct {
	Calendar             calendar.Calendar
	Clock                clock.Clock
	FeasibilityThreshold time.Duration
	RunningEntryInterval time.Duration
}

// ModelCoordinator wires retrieval, period resolution, targets and progress together
// and drives the periodic refreshes.
type ModelCoordinator struct {
	retriever   *retrieval.DataRetriever
	targets     *targets.Store
	preferences *period.PreferenceStore
	clock       clock.Clock
	now         *clock.Service
	cal         calendar.Calendar
	threshold   time.Duration
	interval    time.Duration
	logger      *zap.Logger

	mu               sync.Mutex
	credential       *models.Credential
	preference       period.Preference
	twoPart          *period.TwoPartPeriod
	strategyTomorrow bool
	runningEntry     *models.RunningEntry
	runningOffset    *time.Duration
	reports          map[int64]models.TwoPartTimeReport
	trackers         map[int64]*progress.Tracker

	// serializes index mutations so events are enqueued in the order they were computed
	indexMu        sync.Mutex
	index          projectindex.ProjectIDsByTimeTargets
	indexIDs       []int64
	indexTargets   map[int64]models.TimeTarget
	indexEvents    *observable.Property[IndexEvent]
	indexPublisher *observable.Publisher[IndexEvent]

	runningEntryRefresh *scheduler.Repeating
	minuteTick          *scheduler.Repeating
	cancels             []func()
	stopped             bool
}

// NewModelCoordinator creates a coordinator. Nothing runs until Start.
func NewModelCoordinator(
	retriever *retrieval.DataRetriever,
	targetStore *targets.Store,
	preferences *period.PreferenceStore,
	opts Options,
	logger *zap.Logger,
) *ModelCoordinator {
	if opts.Clock == nil {
		opts.Clock = clock.NewReal()
	}
	if opts.RunningEntryInterval <= 0 {
		opts.RunningEntryInterval = defaultRunningEntryInterval
	}

	mc := &ModelCoordinator{
		retriever:    retriever,
		targets:      targetStore,
		preferences:  preferences,
		clock:        opts.Clock,
		now:          clock.NewService(opts.Clock),
		cal:          opts.Calendar,
		threshold:    opts.FeasibilityThreshold,
		interval:     opts.RunningEntryInterval,
		logger:       logger,
		preference:   period.MonthlyPreference(),
		trackers:     make(map[int64]*progress.Tracker),
		indexTargets: make(map[int64]models.TimeTarget),
		indexEvents:  observable.NewStream[IndexEvent](),
	}
	mc.indexPublisher = observable.NewPublisher(func(v IndexEvent) { mc.indexEvents.Set(v) })
	mc.runningEntryRefresh = scheduler.NewRepeating("running_entry_refresh", mc.refreshRunningEntry, logger)
	mc.minuteTick = scheduler.NewRepeating("minute_tick", func() { mc.now.Tick() }, logger)
	return mc
}

// Start loads the stored preference, binds cred and starts the schedules
func (mc *ModelCoordinator) Start(cred *models.Credential) error {
	mc.logger.Info("Starting model coordinator")

	pref, err := mc.preferences.Load()
	if err != nil {
		return fmt.Errorf("failed to load period preference: %w", err)
	}
	if pref != nil {
		mc.mu.Lock()
		mc.preference = *pref
		mc.mu.Unlock()
	}

	mc.cancels = append(mc.cancels,
		mc.now.Subscribe(mc.onTick),
		mc.retriever.RunningEntry().Subscribe(mc.onRunningEntry),
		mc.retriever.Reports().Subscribe(mc.onReports),
		mc.targets.OnChange(mc.onTargetChange),
	)

	// changes written before Start are only visible through the snapshot
	snapshot := mc.targets.All()
	mc.indexMu.Lock()
	mc.indexTargets = snapshot
	mc.indexMu.Unlock()
	mc.cancels = append(mc.cancels, mc.retriever.Projects().Observe(mc.onProjects))

	now := mc.now.Tick()
	mc.SetCredential(cred)
	mc.cancels = append(mc.cancels, mc.retriever.Profile().Observe(mc.onProfile))

	mc.minuteTick.Schedule(scheduler.DelayUntilAligned(now, 0, minuteTickInterval), minuteTickInterval)
	mc.runningEntryRefresh.Schedule(0, mc.interval)

	mc.logger.Info("Model coordinator started",
		zap.String("periodicity", mc.Preference().String()),
		zap.Bool("has_credential", cred != nil),
	)
	return nil
}

// Stop stops the schedules, detaches from every source and closes the retriever
func (mc *ModelCoordinator) Stop() {
	mc.mu.Lock()
	if mc.stopped {
		mc.mu.Unlock()
		return
	}
	mc.stopped = true
	mc.mu.Unlock()

	mc.logger.Info("Stopping model coordinator")
	mc.minuteTick.Stop()
	mc.runningEntryRefresh.Stop()
	for _, cancel := range mc.cancels {
		cancel()
	}
	mc.retriever.Close()
	mc.logger.Info("Model coordinator stopped")
}

func (mc *ModelCoordinator) Retriever() *retrieval.DataRetriever {
	return mc.retriever
}

// SetCredential binds cred, or signs out when it is nil
func (mc *ModelCoordinator) SetCredential(cred *models.Credential) {
	mc.mu.Lock()
	mc.credential = cred
	mc.mu.Unlock()
	mc.retriever.SetCredential(cred)
}

func (mc *ModelCoordinator) Preference() period.Preference {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return mc.preference
}

// SetPreference persists pref and re-resolves the reporting period
func (mc *ModelCoordinator) SetPreference(pref period.Preference) error {
	if err := mc.preferences.Save(pref); err != nil {
		return err
	}
	mc.mu.Lock()
	mc.preference = pref
	mc.mu.Unlock()

	mc.logger.Info("Period preference changed", zap.String("periodicity", pref.String()))
	mc.now.Tick()
	return nil
}

// SetStrategyStartsTomorrow moves the day remaining work is planned from to tomorrow
func (mc *ModelCoordinator) SetStrategyStartsTomorrow(tomorrow bool) {
	mc.mu.Lock()
	mc.strategyTomorrow = tomorrow
	mc.mu.Unlock()
	mc.now.Tick()
}

// TwoPartPeriod returns the resolved reporting period, if any
func (mc *ModelCoordinator) TwoPartPeriod() (period.TwoPartPeriod, bool) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	if mc.twoPart == nil {
		return period.TwoPartPeriod{}, false
	}
	return *mc.twoPart, true
}

func (mc *ModelCoordinator) ReadTarget(projectID int64) (models.TimeTarget, bool) {
	return mc.targets.Read(projectID)
}

func (mc *ModelCoordinator) SubscribeTarget(projectID int64, fn func(*models.TimeTarget)) (cancel func()) {
	return mc.targets.Subscribe(projectID, fn)
}

func (mc *ModelCoordinator) WriteTarget(target models.TimeTarget) error {
	return mc.targets.Write(target)
}

func (mc *ModelCoordinator) DeleteTarget(projectID int64) error {
	return mc.targets.Delete(projectID)
}

func (mc *ModelCoordinator) Targets() map[int64]models.TimeTarget {
	return mc.targets.All()
}

// ProjectIndex returns the current project ordering
func (mc *ModelCoordinator) ProjectIndex() projectindex.ProjectIDsByTimeTargets {
	mc.indexMu.Lock()
	defer mc.indexMu.Unlock()
	return mc.index
}

// OnIndexEvent registers fn for every full rebuild and incremental update of the index.
// Events arrive in the order they were computed. Events caused by fn itself, such as a
// target written from within fn, are delivered after fn returns.
func (mc *ModelCoordinator) OnIndexEvent(fn func(IndexEvent)) (cancel func()) {
	return mc.indexEvents.Subscribe(fn)
}

// ProgressTracker returns the tracker of projectID, creating and feeding it on first use
func (mc *ModelCoordinator) ProgressTracker(projectID int64) *progress.Tracker {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if t, ok := mc.trackers[projectID]; ok {
		return t
	}

	t := progress.NewTracker(projectID, mc.threshold)
	mc.trackers[projectID] = t

	t.SetCalendar(mc.cal)
	if target, ok := mc.targets.Read(projectID); ok {
		t.SetTarget(&target)
	}
	if now, ok := mc.now.Now(); ok {
		t.SetNow(now)
		t.SetStartStrategyDay(mc.strategyDay(now))
	}
	if mc.twoPart != nil {
		t.SetGoalPeriod(mc.twoPart.Scope)
		t.SetReport(mc.reportFor(projectID))
	}
	t.SetRunningEntry(mc.runningEntry)
	return t
}

// strategyDay must be called with mu held
func (mc *ModelCoordinator) strategyDay(now time.Time) calendar.DayComponents {
	today := mc.cal.DayComponents(now)
	if !mc.strategyTomorrow {
		return today
	}
	if tomorrow, ok := calendar.AddDays(today, 1); ok {
		return tomorrow
	}
	return today
}

// reportFor must be called with mu held. Projects without an entry get a zero report.
func (mc *ModelCoordinator) reportFor(projectID int64) *models.TwoPartTimeReport {
	if mc.reports == nil || mc.twoPart == nil {
		return nil
	}
	report, ok := mc.reports[projectID]
	if !ok {
		report = models.ZeroReport(projectID, mc.twoPart.Scope)
	}
	return &report
}

func (mc *ModelCoordinator) trackerSnapshot() []*progress.Tracker {
	trackers := make([]*progress.Tracker, 0, len(mc.trackers))
	for _, t := range mc.trackers {
		trackers = append(trackers, t)
	}
	return trackers
}

func (mc *ModelCoordinator) onTick(now time.Time) {
	mc.mu.Lock()
	twoPart, ok := period.Resolve(mc.preference, mc.cal, now)
	if ok {
		mc.twoPart = &twoPart
	}
	strategyDay := mc.strategyDay(now)
	trackers := mc.trackerSnapshot()
	mc.mu.Unlock()

	if !ok {
		mc.logger.Warn("Failed to resolve reporting period", zap.Time("now", now))
	} else {
		mc.retriever.SetTwoPartPeriod(&twoPart)
	}

	for _, t := range trackers {
		t.SetNow(now)
		t.SetStartStrategyDay(strategyDay)
		if ok {
			t.SetGoalPeriod(twoPart.Scope)
		}
	}
}

func (mc *ModelCoordinator) onProfile(profile *models.Profile) {
	mc.mu.Lock()
	signedIn := mc.credential != nil
	mc.mu.Unlock()

	if profile == nil || !signedIn {
		return
	}
	mc.retriever.SetWorkspaceIDs(profile.WorkspaceIDs)
}

func (mc *ModelCoordinator) onRunningEntry(entry *models.RunningEntry) {
	mc.mu.Lock()
	previous := mc.runningEntry
	mc.runningEntry = entry
	trackers := mc.trackerSnapshot()
	mc.mu.Unlock()

	if previous != nil && entry == nil {
		mc.logger.Info("Running entry stopped, refreshing reports", zap.Int64("entry_id", previous.ID))
		mc.retriever.TriggerReports()
	}
	if entry != nil {
		mc.alignRunningEntryRefresh(entry.Start)
	}

	for _, t := range trackers {
		t.SetRunningEntry(entry)
	}
	mc.now.Tick()
}

// alignRunningEntryRefresh reschedules the refresh to fire at the entry's start offset
func (mc *ModelCoordinator) alignRunningEntryRefresh(start time.Time) {
	offset := scheduler.OffsetWithin(start, mc.interval)

	mc.mu.Lock()
	unchanged := mc.runningOffset != nil && *mc.runningOffset == offset
	if !unchanged {
		mc.runningOffset = &offset
	}
	stopped := mc.stopped
	mc.mu.Unlock()

	if unchanged || stopped {
		return
	}
	delay := scheduler.DelayUntilAligned(mc.clock.Now(), offset, mc.interval)
	mc.runningEntryRefresh.Schedule(delay, mc.interval)
	mc.logger.Debug("Running entry refresh realigned", zap.Duration("offset", offset))
}

func (mc *ModelCoordinator) refreshRunningEntry() {
	if err := mc.retriever.UpdateRunningEntry(); err != nil && !errors.Is(err, retrieval.ErrActionDisabled) {
		mc.logger.Warn("Failed to refresh running entry", zap.Error(err))
	}
}

func (mc *ModelCoordinator) onReports(reports map[int64]models.TwoPartTimeReport) {
	mc.mu.Lock()
	mc.reports = reports
	type feed struct {
		tracker *progress.Tracker
		report  *models.TwoPartTimeReport
	}
	feeds := make([]feed, 0, len(mc.trackers))
	for id, t := range mc.trackers {
		feeds = append(feeds, feed{tracker: t, report: mc.reportFor(id)})
	}
	mc.mu.Unlock()

	for _, f := range feeds {
		f.tracker.SetReport(f.report)
	}
}

// onProjects rebuilds the index when the set of project IDs changed
func (mc *ModelCoordinator) onProjects(projects map[int64]models.Project) {
	ids := make([]int64, 0, len(projects))
	for id := range projects {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	mc.indexMu.Lock()
	if mc.indexIDs != nil && slices.Equal(ids, mc.indexIDs) {
		mc.indexMu.Unlock()
		return
	}
	mc.indexIDs = ids
	mc.index = projectindex.New(ids, mc.indexTargets)
	mc.logger.Debug("Project index rebuilt",
		zap.Int("projects", mc.index.Len()),
		zap.Int("with_targets", mc.index.CountWithTargets()),
	)
	mc.indexPublisher.Enqueue(IndexEvent{Index: mc.index})
	mc.indexMu.Unlock()

	mc.indexPublisher.Flush()
}

func (mc *ModelCoordinator) onTargetChange(change targets.Change) {
	mc.indexMu.Lock()
	update, ok := mc.index.ComputeUpdate(change.ProjectID, change.New, mc.indexTargets)
	if change.New != nil {
		mc.indexTargets[change.ProjectID] = *change.New
	} else {
		delete(mc.indexTargets, change.ProjectID)
	}
	if ok {
		if next, applied := update.Apply(mc.index); applied {
			mc.index = next
			mc.indexPublisher.Enqueue(IndexEvent{Index: next, Update: &update})
		} else {
			mc.index = projectindex.New(mc.indexIDs, mc.indexTargets)
			mc.indexPublisher.Enqueue(IndexEvent{Index: mc.index})
		}
	}
	mc.indexMu.Unlock()
	mc.indexPublisher.Flush()

	mc.mu.Lock()
	t, tracked := mc.trackers[change.ProjectID]
	mc.mu.Unlock()
	if tracked {
		t.SetTarget(change.New)
	}
}
