// Package cache persists the profile and projects so they survive offline restarts.
package cache

import (
	"database/sql"
	"errors"
	"fmt"

	"Mansoor88-6/time-targets-agent/internal/models"

	"go.uber.org/zap"
)

// Store is the local cache of remote data. Reports and running entries are not cached.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewStore creates a new cache store
func NewStore(db *sql.DB, logger *zap.Logger) *Store {
	return &Store{
		db:     db,
		logger: logger,
	}
}

// PersistProfile replaces the cached profile
func (s *Store) PersistProfile(profile models.Profile) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM profile"); err != nil {
		return fmt.Errorf("failed to clear profile: %w", err)
	}
	if _, err := tx.Exec(`
		INSERT INTO profile (id, name, email, timezone) VALUES (?, ?, ?, ?)
	`, profile.ID, profile.Name, profile.Email, profile.Timezone); err != nil {
		return fmt.Errorf("failed to insert profile: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO profile_workspaces (profile_id, position, workspace_id) VALUES (?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for i, wid := range profile.WorkspaceIDs {
		if _, err := stmt.Exec(profile.ID, i, wid); err != nil {
			return fmt.Errorf("failed to insert workspace %d: %w", wid, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.Debug("Profile cached",
		zap.Int64("profile_id", profile.ID),
		zap.Int("workspace_count", len(profile.WorkspaceIDs)),
	)
	return nil
}

// RetrieveProfile returns the cached profile, or nil if none is cached
func (s *Store) RetrieveProfile() (*models.Profile, error) {
	var profile models.Profile
	err := s.db.QueryRow(`
		SELECT id, name, email, timezone FROM profile LIMIT 1
	`).Scan(&profile.ID, &profile.Name, &profile.Email, &profile.Timezone)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	rows, err := s.db.Query(`
		SELECT workspace_id FROM profile_workspaces WHERE profile_id = ? ORDER BY position
	`, profile.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to query workspaces: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var wid int64
		if err := rows.Scan(&wid); err != nil {
			return nil, fmt.Errorf("failed to scan workspace: %w", err)
		}
		profile.WorkspaceIDs = append(profile.WorkspaceIDs, wid)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return &profile, nil
}

// DeleteProfile removes the cached profile and its workspaces
func (s *Store) DeleteProfile() error {
	if _, err := s.db.Exec("DELETE FROM profile"); err != nil {
		return fmt.Errorf("failed to delete profile: %w", err)
	}
	s.logger.Debug("Cached profile deleted")
	return nil
}

// PersistProjects replaces the cached projects with projects
func (s *Store) PersistProjects(projects map[int64]models.Project) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM projects"); err != nil {
		return fmt.Errorf("failed to clear projects: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO projects (id, name, active, workspace_id) VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, p := range projects {
		if _, err := stmt.Exec(p.ID, p.Name, p.Active, p.WorkspaceID); err != nil {
			return fmt.Errorf("failed to insert project %d: %w", p.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.Debug("Projects cached", zap.Int("count", len(projects)))
	return nil
}

// RetrieveProjects returns the cached projects, empty if none are cached
func (s *Store) RetrieveProjects() (map[int64]models.Project, error) {
	rows, err := s.db.Query("SELECT id, name, active, workspace_id FROM projects")
	if err != nil {
		return nil, fmt.Errorf("failed to query projects: %w", err)
	}
	defer rows.Close()

	projects := make(map[int64]models.Project)
	for rows.Next() {
		var p models.Project
		if err := rows.Scan(&p.ID, &p.Name, &p.Active, &p.WorkspaceID); err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return projects, nil
}

// DeleteProjects removes every cached project
func (s *Store) DeleteProjects() error {
	result, err := s.db.Exec("DELETE FROM projects")
	if err != nil {
		return fmt.Errorf("failed to delete projects: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	s.logger.Debug("Cached projects deleted", zap.Int64("count", rowsAffected))
	return nil
}
