package repository

import (
	"database/sql"
	"errors"
	"fmt"

	"Mansoor88-6/time-targets-agent/internal/calendar"
	"Mansoor88-6/time-targets-agent/internal/models"
)

// ErrNotFound is returned when a row addressed by key does not exist
var ErrNotFound = errors.New("not found")

type TimeTargetRepository struct {
	db *sql.DB
}

func NewTimeTargetRepository(db *sql.DB) *TimeTargetRepository {
	return &TimeTargetRepository{db: db}
}

// Upsert creates or replaces the target of target.ProjectID
func (r *TimeTargetRepository) Upsert(target models.TimeTarget) error {
	query := `
		INSERT INTO time_targets (project_id, hours_target, work_weekdays, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(project_id) DO UPDATE SET
			hours_target = excluded.hours_target,
			work_weekdays = excluded.work_weekdays,
			updated_at = CURRENT_TIMESTAMP
	`
	if _, err := r.db.Exec(query, target.ProjectID, target.HoursTarget, target.WorkWeekdays.Int()); err != nil {
		return fmt.Errorf("failed to store time target: %w", err)
	}
	return nil
}

func (r *TimeTargetRepository) GetByProjectID(projectID int64) (models.TimeTarget, error) {
	query := `
		SELECT project_id, hours_target, work_weekdays
		FROM time_targets
		WHERE project_id = ?
	`

	target, err := scanTarget(r.db.QueryRow(query, projectID))
	if errors.Is(err, sql.ErrNoRows) {
		return models.TimeTarget{}, fmt.Errorf("time target for project %d: %w", projectID, ErrNotFound)
	}
	if err != nil {
		return models.TimeTarget{}, fmt.Errorf("failed to get time target: %w", err)
	}
	return target, nil
}

func (r *TimeTargetRepository) List() ([]models.TimeTarget, error) {
	rows, err := r.db.Query(`
		SELECT project_id, hours_target, work_weekdays
		FROM time_targets
		ORDER BY hours_target DESC, project_id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query time targets: %w", err)
	}
	defer rows.Close()

	var targets []models.TimeTarget
	for rows.Next() {
		target, err := scanTarget(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan time target: %w", err)
		}
		targets = append(targets, target)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return targets, nil
}

func (r *TimeTargetRepository) Delete(projectID int64) error {
	result, err := r.db.Exec("DELETE FROM time_targets WHERE project_id = ?", projectID)
	if err != nil {
		return fmt.Errorf("failed to delete time target: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("time target for project %d: %w", projectID, ErrNotFound)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTarget(row rowScanner) (models.TimeTarget, error) {
	var target models.TimeTarget
	var weekdays int
	if err := row.Scan(&target.ProjectID, &target.HoursTarget, &weekdays); err != nil {
		return models.TimeTarget{}, err
	}
	target.WorkWeekdays = calendar.WeekdaySelectionFromInt(weekdays)
	return target, nil
}
