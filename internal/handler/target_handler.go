package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"Mansoor88-6/time-targets-agent/internal/calendar"
	"Mansoor88-6/time-targets-agent/internal/models"
	"Mansoor88-6/time-targets-agent/internal/progress"
	"Mansoor88-6/time-targets-agent/internal/targets"

	"go.uber.org/zap"
)

// TargetService is the part of the model coordinator the target endpoints need
type TargetService interface {
	Targets() map[int64]models.TimeTarget
	ReadTarget(projectID int64) (models.TimeTarget, bool)
	WriteTarget(target models.TimeTarget) error
	DeleteTarget(projectID int64) error
	ProgressTracker(projectID int64) *progress.Tracker
}

type TargetHandler struct {
	service TargetService
	logger  *zap.Logger
}

func NewTargetHandler(service TargetService, logger *zap.Logger) *TargetHandler {
	return &TargetHandler{
		service: service,
		logger:  logger,
	}
}

type targetRequest struct {
	ProjectID    int64  `json:"project_id"`
	HoursTarget  int    `json:"hours_target"`
	WorkWeekdays string `json:"work_weekdays"`
}

type targetResponse struct {
	ProjectID    int64  `json:"project_id"`
	HoursTarget  int    `json:"hours_target"`
	WorkWeekdays string `json:"work_weekdays"`
}

func newTargetResponse(t models.TimeTarget) targetResponse {
	return targetResponse{
		ProjectID:    t.ProjectID,
		HoursTarget:  t.HoursTarget,
		WorkWeekdays: t.WorkWeekdays.String(),
	}
}

// ListTargets returns every target, or one when project_id is given
func (h *TargetHandler) ListTargets(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("project_id") != "" {
		projectID, ok := projectIDParam(w, r)
		if !ok {
			return
		}
		target, found := h.service.ReadTarget(projectID)
		if !found {
			http.Error(w, "Time target not found", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, newTargetResponse(target))
		return
	}

	all := h.service.Targets()
	resp := make([]targetResponse, 0, len(all))
	for _, t := range all {
		resp = append(resp, newTargetResponse(t))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *TargetHandler) PutTarget(w http.ResponseWriter, r *http.Request) {
	var req targetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("Failed to decode request", zap.Error(err))
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.ProjectID == 0 {
		http.Error(w, "Missing project_id", http.StatusBadRequest)
		return
	}

	weekdays := calendar.ExceptWeekend
	if req.WorkWeekdays != "" {
		parsed, err := calendar.ParseWeekdaySelection(req.WorkWeekdays)
		if err != nil {
			http.Error(w, "Invalid work_weekdays", http.StatusBadRequest)
			return
		}
		weekdays = parsed
	}

	target := models.TimeTarget{ProjectID: req.ProjectID, HoursTarget: req.HoursTarget, WorkWeekdays: weekdays}
	if err := h.service.WriteTarget(target); err != nil {
		if errors.Is(err, targets.ErrInvalidTarget) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.logger.Error("Failed to write time target", zap.Int64("project_id", req.ProjectID), zap.Error(err))
		http.Error(w, "Failed to write time target", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, newTargetResponse(target))
}

func (h *TargetHandler) DeleteTarget(w http.ResponseWriter, r *http.Request) {
	projectID, ok := projectIDParam(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteTarget(projectID); err != nil {
		h.logger.Error("Failed to delete time target", zap.Int64("project_id", projectID), zap.Error(err))
		http.Error(w, "Failed to delete time target", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type durationResponse struct {
	Seconds float64 `json:"seconds"`
	Text    string  `json:"text"`
}

func newDuration(d time.Duration) durationResponse {
	return durationResponse{Seconds: d.Seconds(), Text: d.String()}
}

func optionalDuration(d progress.NullDuration) *durationResponse {
	if !d.Valid {
		return nil
	}
	resp := newDuration(d.Duration)
	return &resp
}

func optionalInt(n progress.NullInt) *int {
	if !n.Valid {
		return nil
	}
	return &n.Int
}

type feasibilityResponse struct {
	Level    progress.Level `json:"level"`
	Relative float64        `json:"relative"`
}

type progressResponse struct {
	ProjectID                     int64                `json:"project_id"`
	TotalWorkDays                 *int                 `json:"total_work_days"`
	RemainingWorkDays             *int                 `json:"remaining_work_days"`
	StrategyStartsToday           bool                 `json:"strategy_starts_today"`
	WorkedTime                    durationResponse     `json:"worked_time"`
	RemainingTimeToTarget         durationResponse     `json:"remaining_time_to_target"`
	TimeWorkedToday               durationResponse     `json:"time_worked_today"`
	DayBaseline                   *durationResponse    `json:"day_baseline"`
	DayBaselineAdjustedToProgress *durationResponse    `json:"day_baseline_adjusted_to_progress"`
	DayBaselineDifferential       *float64             `json:"day_baseline_differential"`
	RemainingTimeToDayBaseline    *durationResponse    `json:"remaining_time_to_day_baseline"`
	Feasibility                   *feasibilityResponse `json:"feasibility"`
}

func newProgressResponse(projectID int64, p progress.Progress) progressResponse {
	resp := progressResponse{
		ProjectID:                     projectID,
		TotalWorkDays:                 optionalInt(p.TotalWorkDays),
		RemainingWorkDays:             optionalInt(p.RemainingWorkDays),
		StrategyStartsToday:           p.StrategyStartsToday,
		WorkedTime:                    newDuration(p.WorkedTime),
		RemainingTimeToTarget:         newDuration(p.RemainingTimeToTarget),
		TimeWorkedToday:               newDuration(p.TimeWorkedToday),
		DayBaseline:                   optionalDuration(p.DayBaseline),
		DayBaselineAdjustedToProgress: optionalDuration(p.DayBaselineAdjustedToProgress),
		RemainingTimeToDayBaseline:    optionalDuration(p.RemainingTimeToDayBaseline),
	}
	if p.DayBaselineDifferential.Valid {
		resp.DayBaselineDifferential = &p.DayBaselineDifferential.Float64
	}
	if p.Feasibility != nil {
		resp.Feasibility = &feasibilityResponse{Level: p.Feasibility.Level, Relative: p.Feasibility.Relative}
	}
	return resp
}

// GetProgress returns the latest computed progress of a project
func (h *TargetHandler) GetProgress(w http.ResponseWriter, r *http.Request) {
	projectID, ok := projectIDParam(w, r)
	if !ok {
		return
	}

	p, available := h.service.ProgressTracker(projectID).Progress()
	if !available {
		http.Error(w, "Progress not available", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, newProgressResponse(projectID, p))
}

func projectIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	idStr := r.URL.Query().Get("project_id")
	if idStr == "" {
		http.Error(w, "Missing project_id parameter", http.StatusBadRequest)
		return 0, false
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		http.Error(w, "Invalid project_id parameter", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
