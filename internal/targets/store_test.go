package targets

import (
	"errors"
	"testing"
	"time"

	"Mansoor88-6/time-targets-agent/internal/calendar"
	"Mansoor88-6/time-targets-agent/internal/models"

	"go.uber.org/zap/zaptest"
)

type memoryRepository struct {
	rows    map[int64]models.TimeTarget
	failing bool
}

func (r *memoryRepository) List() ([]models.TimeTarget, error) {
	var all []models.TimeTarget
	for _, t := range r.rows {
		all = append(all, t)
	}
	return all, nil
}

func (r *memoryRepository) Upsert(target models.TimeTarget) error {
	if r.failing {
		return errors.New("disk full")
	}
	r.rows[target.ProjectID] = target
	return nil
}

func (r *memoryRepository) Delete(projectID int64) error {
	delete(r.rows, projectID)
	return nil
}

func newStore(t *testing.T, initial ...models.TimeTarget) (*Store, *memoryRepository) {
	t.Helper()
	repo := &memoryRepository{rows: map[int64]models.TimeTarget{}}
	for _, target := range initial {
		repo.rows[target.ProjectID] = target
	}
	store, err := NewStore(repo, zaptest.NewLogger(t))
	if err != nil {
		t.Fatal(err)
	}
	return store, repo
}

func TestStore_LoadsAndReads(t *testing.T) {
	existing := models.TimeTarget{ProjectID: 1, HoursTarget: 10, WorkWeekdays: calendar.ExceptWeekend}
	store, _ := newStore(t, existing)

	if got, ok := store.Read(1); !ok || got != existing {
		t.Errorf("expected %+v, got %+v (ok=%v)", existing, got, ok)
	}
	if _, ok := store.Read(2); ok {
		t.Error("expected no target for project 2")
	}
	if len(store.All()) != 1 {
		t.Errorf("expected 1 target, got %d", len(store.All()))
	}
}

func TestStore_ChangeNotifications(t *testing.T) {
	store, repo := newStore(t)

	var changes []Change
	store.OnChange(func(c Change) { changes = append(changes, c) })
	var seen []*models.TimeTarget
	store.Subscribe(5, func(t *models.TimeTarget) { seen = append(seen, t) })

	first := models.TimeTarget{ProjectID: 5, HoursTarget: 8, WorkWeekdays: calendar.WholeWeek}
	if err := store.Write(first); err != nil {
		t.Fatal(err)
	}
	if err := store.Write(first); err != nil {
		t.Fatal(err)
	}
	second := first
	second.HoursTarget = 12
	if err := store.Write(second); err != nil {
		t.Fatal(err)
	}
	if err := store.Delete(5); err != nil {
		t.Fatal(err)
	}
	if err := store.Delete(5); err != nil {
		t.Fatal(err)
	}

	if len(changes) != 3 {
		t.Fatalf("expected 3 changes, got %d", len(changes))
	}
	if changes[0].Old != nil || *changes[0].New != first {
		t.Errorf("expected creation, got %+v", changes[0])
	}
	if *changes[1].Old != first || *changes[1].New != second {
		t.Errorf("expected update, got %+v", changes[1])
	}
	if *changes[2].Old != second || changes[2].New != nil {
		t.Errorf("expected deletion, got %+v", changes[2])
	}

	// initial nil, then create, update, delete
	if len(seen) != 4 || seen[0] != nil || seen[3] != nil {
		t.Errorf("unexpected per-project stream %v", seen)
	}
	if len(repo.rows) != 0 {
		t.Errorf("expected repository to be empty, got %v", repo.rows)
	}
}

func TestStore_Write_Failures(t *testing.T) {
	store, repo := newStore(t)

	if err := store.Write(models.TimeTarget{ProjectID: 1, HoursTarget: -1}); !errors.Is(err, ErrInvalidTarget) {
		t.Errorf("expected ErrInvalidTarget, got %v", err)
	}

	repo.failing = true
	notified := false
	store.OnChange(func(Change) { notified = true })
	if err := store.Write(models.TimeTarget{ProjectID: 1, HoursTarget: 3}); err == nil {
		t.Error("expected repository failure to surface")
	}
	if _, ok := store.Read(1); ok || notified {
		t.Error("expected a failed write to leave the store unchanged")
	}
}

func TestStore_WriteFromChangeSubscriber(t *testing.T) {
	store, _ := newStore(t)

	follower := models.TimeTarget{ProjectID: 2, HoursTarget: 4, WorkWeekdays: calendar.WholeWeek}
	var changed []int64
	store.OnChange(func(c Change) {
		changed = append(changed, c.ProjectID)
		if c.ProjectID == 1 {
			if err := store.Write(follower); err != nil {
				t.Error(err)
			}
		}
	})

	done := make(chan error, 1)
	go func() {
		done <- store.Write(models.TimeTarget{ProjectID: 1, HoursTarget: 8, WorkWeekdays: calendar.WholeWeek})
	}()
	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("write from a change subscriber did not complete")
	}

	if got, ok := store.Read(2); !ok || got != follower {
		t.Errorf("expected follower target, got %+v (ok=%v)", got, ok)
	}
	if len(changed) != 2 || changed[0] != 1 || changed[1] != 2 {
		t.Errorf("expected changes for 1 then 2, got %v", changed)
	}
}
