package handler

import (
	"errors"
	"net/http"

	"Mansoor88-6/time-targets-agent/internal/period"
	"Mansoor88-6/time-targets-agent/internal/retrieval"

	"go.uber.org/zap"
)

// StatusService exposes retrieval state and the refresh actions
type StatusService interface {
	Statuses() []retrieval.ActivityStatus
	RefreshAllData() error
	RefreshReports() error
}

// PeriodService reports the goal period currently in force
type PeriodService interface {
	Preference() period.Preference
	TwoPartPeriod() (period.TwoPartPeriod, bool)
}

type StatusHandler struct {
	statuses StatusService
	periods  PeriodService
	logger   *zap.Logger
}

func NewStatusHandler(statuses StatusService, periods PeriodService, logger *zap.Logger) *StatusHandler {
	return &StatusHandler{
		statuses: statuses,
		periods:  periods,
		logger:   logger,
	}
}

type activityResponse struct {
	Kind  string `json:"kind"`
	State string `json:"state"`
	Error string `json:"error,omitempty"`
}

type periodResponse struct {
	Preference             string  `json:"preference"`
	Start                  string  `json:"start"`
	End                    string  `json:"end"`
	PreviousToDayOfRequest *string `json:"previous_to_day_of_request"`
	DayOfRequest           string  `json:"day_of_request"`
}

type statusResponse struct {
	Activities []activityResponse `json:"activities"`
	Period     *periodResponse    `json:"period"`
}

func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{Activities: []activityResponse{}}
	for _, s := range h.statuses.Statuses() {
		a := activityResponse{Kind: s.Kind.String(), State: s.State.String()}
		if s.Err != nil {
			a.Error = s.Err.Error()
		}
		resp.Activities = append(resp.Activities, a)
	}

	if twoPart, ok := h.periods.TwoPartPeriod(); ok {
		p := &periodResponse{
			Preference:   h.periods.Preference().String(),
			Start:        twoPart.Scope.Start.String(),
			End:          twoPart.Scope.End.String(),
			DayOfRequest: twoPart.DayOfRequest.String(),
		}
		if twoPart.PreviousToDayOfRequest != nil {
			previous := twoPart.PreviousToDayOfRequest.String()
			p.PreviousToDayOfRequest = &previous
		}
		resp.Period = p
	}

	writeJSON(w, http.StatusOK, resp)
}

// Refresh starts a refresh of all data, or of reports only with ?scope=reports
func (h *StatusHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var err error
	scope := r.URL.Query().Get("scope")
	switch scope {
	case "", "all":
		err = h.statuses.RefreshAllData()
	case "reports":
		err = h.statuses.RefreshReports()
	default:
		http.Error(w, "Invalid scope parameter", http.StatusBadRequest)
		return
	}

	if err != nil {
		if errors.Is(err, retrieval.ErrActionDisabled) {
			http.Error(w, "Refresh is not available right now", http.StatusConflict)
			return
		}
		h.logger.Error("Failed to start refresh", zap.String("scope", scope), zap.Error(err))
		http.Error(w, "Failed to start refresh", http.StatusInternalServerError)
		return
	}

	h.logger.Info("Refresh requested", zap.String("scope", scope))
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}
