// Package targets keeps the user's time targets in memory, backed by persistent storage,
// and publishes per-project and global change notifications.
package targets

import (
	"errors"
	"fmt"
	"sync"

	"Mansoor88-6/time-targets-agent/internal/models"
	"Mansoor88-6/time-targets-agent/internal/observable"
	"Mansoor88-6/time-targets-agent/internal/repository"

	"go.uber.org/zap"
)

// ErrInvalidTarget is returned by Write for targets that cannot be stored
var ErrInvalidTarget = errors.New("invalid time target")

// Repository is the persistent storage of targets
type Repository interface {
	List() ([]models.TimeTarget, error)
	Upsert(target models.TimeTarget) error
	Delete(projectID int64) error
}

// Change describes one target transition. Old is nil for a creation, New is nil for a deletion.
type Change struct {
	ProjectID int64
	Old       *models.TimeTarget
	New       *models.TimeTarget
}

type Store struct {
	// serializes writers so notifications are enqueued in write order
	writeMu sync.Mutex

	mu         sync.RWMutex
	targets    map[int64]models.TimeTarget
	perProject map[int64]*observable.Property[*models.TimeTarget]

	changes   *observable.Property[Change]
	publisher *observable.Publisher[Change]
	repo    Repository
	logger  *zap.Logger
}

// NewStore loads every stored target from repo
func NewStore(repo Repository, logger *zap.Logger) (*Store, error) {
	stored, err := repo.List()
	if err != nil {
		return nil, fmt.Errorf("failed to load time targets: %w", err)
	}

	targets := make(map[int64]models.TimeTarget, len(stored))
	for _, t := range stored {
		targets[t.ProjectID] = t
	}

	logger.Info("Time targets loaded", zap.Int("count", len(targets)))
	s := &Store{
		targets:    targets,
		perProject: make(map[int64]*observable.Property[*models.TimeTarget]),
		changes:    observable.NewStream[Change](),
		repo:       repo,
		logger:     logger,
	}
	s.publisher = observable.NewPublisher(s.deliver)
	return s, nil
}

func (s *Store) Read(projectID int64) (models.TimeTarget, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.targets[projectID]
	return t, ok
}

// All returns a copy of every known target keyed by project
func (s *Store) All() map[int64]models.TimeTarget {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := make(map[int64]models.TimeTarget, len(s.targets))
	for id, t := range s.targets {
		all[id] = t
	}
	return all
}

// Subscribe calls fn with the current target of projectID (nil if none) and with
// every later distinct value.
func (s *Store) Subscribe(projectID int64, fn func(*models.TimeTarget)) (cancel func()) {
	return s.property(projectID).Observe(fn)
}

// OnChange registers fn for every write or delete that changed a target. fn may write
// targets itself; those changes are delivered after fn returns.
func (s *Store) OnChange(fn func(Change)) (cancel func()) {
	return s.changes.Subscribe(fn)
}

func (s *Store) Write(target models.TimeTarget) error {
	if target.HoursTarget < 0 {
		return fmt.Errorf("%w: negative hours target %d", ErrInvalidTarget, target.HoursTarget)
	}

	s.writeMu.Lock()
	err := s.write(target)
	s.writeMu.Unlock()
	if err != nil {
		return err
	}
	s.publisher.Flush()
	return nil
}

func (s *Store) write(target models.TimeTarget) error {
	old, had := s.Read(target.ProjectID)
	if had && old == target {
		return nil
	}
	if err := s.repo.Upsert(target); err != nil {
		return err
	}

	s.mu.Lock()
	s.targets[target.ProjectID] = target
	s.mu.Unlock()

	change := Change{ProjectID: target.ProjectID, New: &target}
	if had {
		change.Old = &old
	}
	s.logger.Info("Time target written",
		zap.Int64("project_id", target.ProjectID),
		zap.Int("hours_target", target.HoursTarget),
		zap.String("work_weekdays", target.WorkWeekdays.String()),
	)
	s.publisher.Enqueue(change)
	return nil
}

// Delete removes the target of projectID. Deleting a missing target is a no-op.
func (s *Store) Delete(projectID int64) error {
	s.writeMu.Lock()
	err := s.delete(projectID)
	s.writeMu.Unlock()
	if err != nil {
		return err
	}
	s.publisher.Flush()
	return nil
}

func (s *Store) delete(projectID int64) error {
	old, had := s.Read(projectID)
	if !had {
		return nil
	}
	if err := s.repo.Delete(projectID); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return err
	}

	s.mu.Lock()
	delete(s.targets, projectID)
	s.mu.Unlock()

	s.logger.Info("Time target deleted", zap.Int64("project_id", projectID))
	s.publisher.Enqueue(Change{ProjectID: projectID, Old: &old})
	return nil
}

func (s *Store) deliver(change Change) {
	s.property(change.ProjectID).Set(change.New)
	s.changes.Set(change)
}

func (s *Store) property(projectID int64) *observable.Property[*models.TimeTarget] {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.perProject[projectID]
	if !ok {
		var current *models.TimeTarget
		if t, had := s.targets[projectID]; had {
			current = &t
		}
		p = observable.NewDedupedProperty(current, equalTargets)
		s.perProject[projectID] = p
	}
	return p
}

func equalTargets(a, b *models.TimeTarget) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
