package cache

import (
	"path/filepath"
	"testing"

	"Mansoor88-6/time-targets-agent/internal/database"
	"Mansoor88-6/time-targets-agent/internal/models"

	"go.uber.org/zap/zaptest"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	logger := zaptest.NewLogger(t)
	db, err := database.New(filepath.Join(t.TempDir(), "cache.db"), logger)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewStore(db.DB, logger)
}

func TestProfileRoundTrip(t *testing.T) {
	store := newStore(t)

	if p, err := store.RetrieveProfile(); err != nil || p != nil {
		t.Fatalf("expected empty cache, got %+v (err=%v)", p, err)
	}

	first := models.Profile{ID: 1, Name: "Ada", Email: "ada@example.com", Timezone: "UTC", WorkspaceIDs: []int64{30, 10, 20}}
	if err := store.PersistProfile(first); err != nil {
		t.Fatal(err)
	}
	second := models.Profile{ID: 2, Name: "Grace", Email: "grace@example.com", Timezone: "Europe/Berlin", WorkspaceIDs: []int64{5}}
	if err := store.PersistProfile(second); err != nil {
		t.Fatal(err)
	}

	got, err := store.RetrieveProfile()
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || !got.Equal(second) {
		t.Errorf("expected %+v, got %+v", second, got)
	}

	if err := store.DeleteProfile(); err != nil {
		t.Fatal(err)
	}
	if p, _ := store.RetrieveProfile(); p != nil {
		t.Errorf("expected profile to be deleted, got %+v", p)
	}
}

func TestProjectsReplacedWholesale(t *testing.T) {
	store := newStore(t)

	if err := store.PersistProjects(models.ProjectsByID([]models.Project{
		{ID: 1, Name: "Alpha", Active: true, WorkspaceID: 9},
		{ID: 2, Name: "Beta", WorkspaceID: 9},
	})); err != nil {
		t.Fatal(err)
	}
	if err := store.PersistProjects(models.ProjectsByID([]models.Project{
		{ID: 3, Name: "Gamma", Active: true, WorkspaceID: 8},
	})); err != nil {
		t.Fatal(err)
	}

	projects, err := store.RetrieveProjects()
	if err != nil {
		t.Fatal(err)
	}
	if len(projects) != 1 || projects[3].Name != "Gamma" || !projects[3].Active {
		t.Errorf("expected only Gamma, got %+v", projects)
	}

	if err := store.DeleteProjects(); err != nil {
		t.Fatal(err)
	}
	if projects, _ := store.RetrieveProjects(); len(projects) != 0 {
		t.Errorf("expected no projects, got %+v", projects)
	}
}
