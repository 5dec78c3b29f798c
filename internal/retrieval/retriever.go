// Package retrieval fetches remote data through throttled actions, keeps the latest
// results in observable cells and mirrors profile and projects into the local cache.
package retrieval

import (
	"context"
	"errors"
	"slices"
	"sync"

	"Mansoor88-6/time-targets-agent/internal/calendar"
	"Mansoor88-6/time-targets-agent/internal/client"
	"Mansoor88-6/time-targets-agent/internal/models"
	"Mansoor88-6/time-targets-agent/internal/observable"
	"Mansoor88-6/time-targets-agent/internal/period"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// maxParallelFetches bounds the per-workspace fan-out of one action
const maxParallelFetches = 4

// Fetcher is the remote API
type Fetcher interface {
	FetchProfile(ctx context.Context, cred *models.Credential) (models.Profile, error)
	FetchProjects(ctx context.Context, session *client.Session, workspaceID int64) ([]models.Project, error)
	FetchReports(ctx context.Context, session *client.Session, workspaceID int64, p calendar.Period) ([]models.ReportEntry, error)
	FetchRunningEntry(ctx context.Context, session *client.Session) (*models.RunningEntry, error)
}

// Cache is the local store profile and projects are written through to
type Cache interface {
	PersistProfile(profile models.Profile) error
	RetrieveProfile() (*models.Profile, error)
	DeleteProfile() error
	PersistProjects(projects map[int64]models.Project) error
	RetrieveProjects() (map[int64]models.Project, error)
	DeleteProjects() error
}

type projectsInput struct {
	session      *client.Session
	workspaceIDs []int64
}

type reportsInput struct {
	session      *client.Session
	workspaceIDs []int64
	period       period.TwoPartPeriod
}

// DataRetriever coordinates the retrieval of profile, projects, reports and the running
// entry. Each kind has at most one fetch in flight.
type DataRetriever struct {
	fetcher Fetcher
	cache   Cache
	logger  *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.RWMutex
	credential   *models.Credential
	session      *client.Session
	workspaceIDs []int64
	hasWorkspace bool
	period       *period.TwoPartPeriod

	profile      *observable.Property[*models.Profile]
	projects     *observable.Property[map[int64]models.Project]
	reports      *observable.Property[map[int64]models.TwoPartTimeReport]
	runningEntry *observable.Property[*models.RunningEntry]
	status       *observable.Property[ActivityStatus]

	statusMu sync.RWMutex
	latest   map[Kind]ActivityStatus

	profileAction      *Action[*models.Credential, models.Profile]
	projectsAction     *Action[projectsInput, map[int64]models.Project]
	reportsAction      *Action[reportsInput, map[int64]models.TwoPartTimeReport]
	runningEntryAction *Action[*client.Session, *models.RunningEntry]
}

// NewDataRetriever creates a retriever and surfaces the cached profile and projects as
// provisional values. Nothing is fetched until a credential is set.
func NewDataRetriever(fetcher Fetcher, cache Cache, logger *zap.Logger) *DataRetriever {
	ctx, cancel := context.WithCancel(context.Background())
	r := &DataRetriever{
		fetcher: fetcher,
		cache:   cache,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
		reports: observable.NewStream[map[int64]models.TwoPartTimeReport](),
		runningEntry: observable.NewDedupedStream(func(a, b *models.RunningEntry) bool {
			return a.Equal(b)
		}),
		status: observable.NewStream[ActivityStatus](),
		latest: make(map[Kind]ActivityStatus),
	}
	r.loadProvisional()

	r.profileAction = NewAction(ctx, ProfileKind, r.fetchProfile, logger)
	r.profileAction.OnSuccess(r.profileRetrieved)
	r.profileAction.OnError(r.profileFailed)
	r.profileAction.OnStatus(r.publishStatus)

	r.projectsAction = NewAction(ctx, ProjectsKind, r.fetchProjects, logger)
	r.projectsAction.OnSuccess(r.projectsRetrieved)
	r.projectsAction.OnStatus(r.publishStatus)

	r.reportsAction = NewAction(ctx, ReportsKind, r.fetchReports, logger)
	r.reportsAction.OnSuccess(func(in reportsInput, reports map[int64]models.TwoPartTimeReport) {
		if !r.isCurrentSession(in.session) {
			r.logger.Debug("Discarding reports of a previous session")
			return
		}
		r.reports.Set(reports)
	})
	r.reportsAction.OnStatus(r.publishStatus)

	r.runningEntryAction = NewAction(ctx, RunningEntryKind, r.fetchRunningEntry, logger)
	r.runningEntryAction.OnSuccess(func(session *client.Session, entry *models.RunningEntry) {
		if !r.isCurrentSession(session) {
			r.logger.Debug("Discarding running entry of a previous session")
			return
		}
		r.runningEntry.Set(entry)
	})
	r.runningEntryAction.OnStatus(r.publishStatus)

	return r
}

func (r *DataRetriever) loadProvisional() {
	cachedProfile, err := r.cache.RetrieveProfile()
	if err != nil {
		r.logger.Warn("Failed to load cached profile", zap.Error(err))
	}
	r.profile = observable.NewProperty(cachedProfile)

	cachedProjects, err := r.cache.RetrieveProjects()
	if err != nil {
		r.logger.Warn("Failed to load cached projects", zap.Error(err))
	}
	if cachedProjects == nil {
		cachedProjects = map[int64]models.Project{}
	}
	r.projects = observable.NewProperty(cachedProjects)

	r.logger.Info("Cached data loaded",
		zap.Bool("has_profile", cachedProfile != nil),
		zap.Int("project_count", len(cachedProjects)),
	)
}

// Close stops starting new fetches and cancels those in flight
func (r *DataRetriever) Close() {
	r.cancel()
	r.profileAction.Wait()
	r.projectsAction.Wait()
	r.reportsAction.Wait()
	r.runningEntryAction.Wait()
}

// Profile holds the latest profile, nil when signed out
func (r *DataRetriever) Profile() *observable.Property[*models.Profile] {
	return r.profile
}

// Projects holds the latest projects indexed by ID
func (r *DataRetriever) Projects() *observable.Property[map[int64]models.Project] {
	return r.projects
}

// Reports holds the latest two-part reports indexed by project ID
func (r *DataRetriever) Reports() *observable.Property[map[int64]models.TwoPartTimeReport] {
	return r.reports
}

// RunningEntry holds the entry being timed, nil when none is
func (r *DataRetriever) RunningEntry() *observable.Property[*models.RunningEntry] {
	return r.runningEntry
}

// Status merges the activity status of every kind
func (r *DataRetriever) Status() *observable.Property[ActivityStatus] {
	return r.status
}

// Statuses returns the latest status of each kind that has run at least once
func (r *DataRetriever) Statuses() []ActivityStatus {
	r.statusMu.RLock()
	defer r.statusMu.RUnlock()
	var statuses []ActivityStatus
	for _, kind := range Kinds {
		if s, ok := r.latest[kind]; ok {
			statuses = append(statuses, s)
		}
	}
	return statuses
}

// SetCredential binds cred, or signs out when cred is nil, and retrieves the profile
func (r *DataRetriever) SetCredential(cred *models.Credential) {
	var session *client.Session
	if cred != nil {
		c := *cred
		cred = &c
		session = client.NewSession(c)
	}

	r.mu.Lock()
	r.credential = cred
	r.session = session
	r.mu.Unlock()

	r.logger.Info("Credential changed", zap.Bool("present", cred != nil))
	r.profileAction.SetInput(cred)
	r.runningEntryAction.SetInput(session)
	r.profileAction.Trigger()
}

// SetWorkspaceIDs retrieves the projects of ids and, once a period is known, their reports
func (r *DataRetriever) SetWorkspaceIDs(ids []int64) {
	ids = slices.Clone(ids)

	r.mu.Lock()
	r.workspaceIDs = ids
	r.hasWorkspace = true
	session := r.session
	r.mu.Unlock()

	r.projectsAction.SetInput(projectsInput{session: session, workspaceIDs: ids})
	r.projectsAction.Trigger()
	r.updateReportsInput(true)
}

// SetTwoPartPeriod sets the period reports are retrieved for and retrieves them if it changed
func (r *DataRetriever) SetTwoPartPeriod(p *period.TwoPartPeriod) {
	r.mu.Lock()
	changed := (r.period == nil) != (p == nil) || (p != nil && !r.period.Equal(*p))
	if p != nil {
		c := *p
		p = &c
	}
	r.period = p
	r.mu.Unlock()

	if changed {
		r.updateReportsInput(true)
	}
}

// TwoPartPeriod returns the period reports are retrieved for, if known
func (r *DataRetriever) TwoPartPeriod() (period.TwoPartPeriod, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.period == nil {
		return period.TwoPartPeriod{}, false
	}
	return *r.period, true
}

func (r *DataRetriever) updateReportsInput(trigger bool) bool {
	r.mu.RLock()
	in := reportsInput{session: r.session, workspaceIDs: r.workspaceIDs}
	ready := r.hasWorkspace && r.period != nil
	if r.period != nil {
		in.period = *r.period
	}
	r.mu.RUnlock()

	if !ready {
		return false
	}
	r.reportsAction.SetInput(in)
	if trigger {
		r.reportsAction.Trigger()
	}
	return true
}

// CanRefreshAllData reports whether a credential is bound and the profile slot is idle
func (r *DataRetriever) CanRefreshAllData() bool {
	r.mu.RLock()
	hasCredential := r.credential != nil
	r.mu.RUnlock()
	return hasCredential && !r.profileAction.IsExecuting()
}

// RefreshAllData retrieves the profile, and through it projects and reports, and the running entry
func (r *DataRetriever) RefreshAllData() error {
	if !r.CanRefreshAllData() {
		return ErrActionDisabled
	}
	r.profileAction.Trigger()
	r.runningEntryAction.Trigger()
	return nil
}

// CanRefreshReports reports whether workspaces and period are known and the reports slot is idle
func (r *DataRetriever) CanRefreshReports() bool {
	r.mu.RLock()
	ready := r.hasWorkspace && r.period != nil
	r.mu.RUnlock()
	return ready && !r.reportsAction.IsExecuting()
}

func (r *DataRetriever) RefreshReports() error {
	if !r.CanRefreshReports() {
		return ErrActionDisabled
	}
	r.updateReportsInput(true)
	return nil
}

// TriggerReports requests a report retrieval even while one is in flight, in which case
// it runs once the current one completes. It returns false while workspaces or period are unknown.
func (r *DataRetriever) TriggerReports() bool {
	return r.updateReportsInput(true)
}

// CanUpdateRunningEntry reports whether a session exists and no running entry fetch is in flight
func (r *DataRetriever) CanUpdateRunningEntry() bool {
	r.mu.RLock()
	hasSession := r.session != nil
	r.mu.RUnlock()
	return hasSession && !r.runningEntryAction.IsExecuting()
}

func (r *DataRetriever) UpdateRunningEntry() error {
	if !r.CanUpdateRunningEntry() {
		return ErrActionDisabled
	}
	r.runningEntryAction.Trigger()
	return nil
}

func (r *DataRetriever) publishStatus(status ActivityStatus) {
	r.statusMu.Lock()
	r.latest[status.Kind] = status
	r.statusMu.Unlock()
	r.status.Set(status)
}

func (r *DataRetriever) fetchProfile(ctx context.Context, cred *models.Credential) (models.Profile, error) {
	return r.fetcher.FetchProfile(ctx, cred)
}

func (r *DataRetriever) profileRetrieved(cred *models.Credential, profile models.Profile) {
	r.mu.RLock()
	current := r.credential == cred
	r.mu.RUnlock()
	if !current {
		r.logger.Debug("Discarding profile of a previous credential")
		return
	}
	if err := r.cache.PersistProfile(profile); err != nil {
		r.logger.Error("Failed to cache profile", zap.Error(err))
	}
	r.profile.Set(&profile)
}

func (r *DataRetriever) isCurrentSession(session *client.Session) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.session == session
}

// profileFailed clears everything retrieved for the previous account when there is no
// credential to fetch with. Workspaces are forgotten too, so reports stay disabled until
// a new profile arrives.
func (r *DataRetriever) profileFailed(_ *models.Credential, err error) {
	if !errors.Is(err, client.ErrNoCredentials) {
		return
	}

	r.mu.Lock()
	r.workspaceIDs = nil
	r.hasWorkspace = false
	r.mu.Unlock()

	if err := r.cache.DeleteProfile(); err != nil {
		r.logger.Error("Failed to delete cached profile", zap.Error(err))
	}
	if err := r.cache.DeleteProjects(); err != nil {
		r.logger.Error("Failed to delete cached projects", zap.Error(err))
	}
	r.profile.Set(nil)
	r.projects.Set(map[int64]models.Project{})
	r.reports.Set(map[int64]models.TwoPartTimeReport{})
	r.runningEntry.Set(nil)
	r.logger.Info("Signed out, retrieved data cleared")
}

func (r *DataRetriever) fetchProjects(ctx context.Context, in projectsInput) (map[int64]models.Project, error) {
	if in.session == nil {
		return nil, client.ErrNoCredentials
	}

	results := make([][]models.Project, len(in.workspaceIDs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelFetches)
	for i, wid := range in.workspaceIDs {
		i, wid := i, wid
		g.Go(func() error {
			projects, err := r.fetcher.FetchProjects(gctx, in.session, wid)
			results[i] = projects
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := make(map[int64]models.Project)
	for _, projects := range results {
		for _, p := range projects {
			merged[p.ID] = p
		}
	}
	return merged, nil
}

func (r *DataRetriever) projectsRetrieved(in projectsInput, projects map[int64]models.Project) {
	if !r.isCurrentSession(in.session) {
		r.logger.Debug("Discarding projects of a previous session")
		return
	}
	if err := r.cache.PersistProjects(projects); err != nil {
		r.logger.Error("Failed to cache projects", zap.Error(err))
	}
	r.projects.Set(projects)
}

// fetchReports retrieves each workspace's two sub-periods separately and merges them per project
func (r *DataRetriever) fetchReports(ctx context.Context, in reportsInput) (map[int64]models.TwoPartTimeReport, error) {
	if in.session == nil {
		return nil, client.ErrNoCredentials
	}

	type part struct {
		entries  []models.ReportEntry
		previous bool
	}
	var parts []*part

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelFetches)
	for _, wid := range in.workspaceIDs {
		wid := wid
		if prev := in.period.PreviousToDayOfRequest; prev != nil {
			p := &part{previous: true}
			parts = append(parts, p)
			g.Go(func() error {
				entries, err := r.fetcher.FetchReports(gctx, in.session, wid, *prev)
				p.entries = entries
				return err
			})
		}
		p := &part{}
		parts = append(parts, p)
		g.Go(func() error {
			entries, err := r.fetcher.FetchReports(gctx, in.session, wid, in.period.DayOfRequestPeriod())
			p.entries = entries
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	reports := make(map[int64]models.TwoPartTimeReport)
	for _, p := range parts {
		for _, entry := range p.entries {
			report, ok := reports[entry.ProjectID]
			if !ok {
				report = models.ZeroReport(entry.ProjectID, in.period.Scope)
			}
			if p.previous {
				report.WorkedTimeUntilDayBeforeRequest += entry.WorkedTime
			} else {
				report.WorkedTimeOnDayOfRequest += entry.WorkedTime
			}
			reports[entry.ProjectID] = report
		}
	}
	return reports, nil
}

func (r *DataRetriever) fetchRunningEntry(ctx context.Context, session *client.Session) (*models.RunningEntry, error) {
	if session == nil {
		return nil, client.ErrNoCredentials
	}
	return r.fetcher.FetchRunningEntry(ctx, session)
}
