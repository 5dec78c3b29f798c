package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"Mansoor88-6/time-targets-agent/internal/calendar"
	"Mansoor88-6/time-targets-agent/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Session binds a credential to an identity so requests made under the same
// credential can be correlated. A new session is created on every credential change.
type Session struct {
	ID         uuid.UUID
	credential models.Credential
}

func NewSession(cred models.Credential) *Session {
	return &Session{ID: uuid.New(), credential: cred}
}

func (s *Session) Credential() models.Credential {
	return s.credential
}

// APIClient handles communication with the remote time tracking API
type APIClient struct {
	baseURL        string
	reportsBaseURL string
	userAgent      string
	httpClient     *http.Client
	now            func() time.Time
	logger         *zap.Logger
}

// NewAPIClient creates a new API client
func NewAPIClient(baseURL, reportsBaseURL, userAgent string, timeout time.Duration, logger *zap.Logger) *APIClient {
	return &APIClient{
		baseURL:        baseURL,
		reportsBaseURL: reportsBaseURL,
		userAgent:      userAgent,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		now:    time.Now,
		logger: logger,
	}
}

type envelope[T any] struct {
	Data *T `json:"data"`
}

type profileDTO struct {
	ID         int64  `json:"id"`
	Fullname   string `json:"fullname"`
	Email      string `json:"email"`
	Timezone   string `json:"timezone"`
	Workspaces []struct {
		ID int64 `json:"id"`
	} `json:"workspaces"`
}

type projectDTO struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Active      bool   `json:"active"`
	WorkspaceID int64  `json:"wid"`
}

type reportEntryDTO struct {
	ID   *int64 `json:"id"`
	Time int64  `json:"time"`
}

type runningEntryDTO struct {
	ID          int64     `json:"id"`
	ProjectID   int64     `json:"pid"`
	Description string    `json:"description"`
	Start       time.Time `json:"start"`
}

// FetchProfile retrieves the profile of the user the credential belongs to
func (c *APIClient) FetchProfile(ctx context.Context, cred *models.Credential) (models.Profile, error) {
	if cred == nil {
		return models.Profile{}, ErrNoCredentials
	}

	var body envelope[profileDTO]
	if err := c.get(ctx, *cred, c.baseURL+"/api/v8/me", &body); err != nil {
		return models.Profile{}, err
	}
	if body.Data == nil {
		return models.Profile{}, &APIError{Kind: UnexpectedlyFormedJSON, Message: "profile response has no data"}
	}

	dto := body.Data
	profile := models.Profile{
		ID:       dto.ID,
		Name:     dto.Fullname,
		Email:    dto.Email,
		Timezone: dto.Timezone,
	}
	for _, ws := range dto.Workspaces {
		profile.WorkspaceIDs = append(profile.WorkspaceIDs, ws.ID)
	}
	return profile, nil
}

// FetchProjects retrieves the projects of one workspace
func (c *APIClient) FetchProjects(ctx context.Context, session *Session, workspaceID int64) ([]models.Project, error) {
	if session == nil {
		return nil, ErrNoCredentials
	}

	endpoint := fmt.Sprintf("%s/api/v8/workspaces/%d/projects", c.baseURL, workspaceID)
	var dtos []projectDTO
	if err := c.get(ctx, session.credential, endpoint, &dtos); err != nil {
		return nil, err
	}

	projects := make([]models.Project, 0, len(dtos))
	for _, dto := range dtos {
		projects = append(projects, models.Project{
			ID:          dto.ID,
			Name:        dto.Name,
			Active:      dto.Active,
			WorkspaceID: dto.WorkspaceID,
		})
	}
	return projects, nil
}

// FetchReports retrieves per-project worked time in workspaceID over period.
// Entries for time tracked without a project are skipped.
func (c *APIClient) FetchReports(ctx context.Context, session *Session, workspaceID int64, period calendar.Period) ([]models.ReportEntry, error) {
	if session == nil {
		return nil, ErrNoCredentials
	}
	if !session.credential.IsToken() {
		return nil, &APIError{Kind: Authentication, Message: "reports require an API token"}
	}

	query := url.Values{}
	query.Set("workspace_id", strconv.FormatInt(workspaceID, 10))
	query.Set("since", period.Start.String())
	query.Set("until", period.End.String())
	query.Set("grouping", "projects")
	query.Set("user_agent", c.userAgent)
	endpoint := c.reportsBaseURL + "/reports/api/v2/summary?" + query.Encode()

	var body struct {
		Data *[]reportEntryDTO `json:"data"`
	}
	if err := c.get(ctx, session.credential, endpoint, &body); err != nil {
		return nil, err
	}
	if body.Data == nil {
		return nil, &APIError{Kind: UnexpectedlyFormedJSON, Message: "report response has no data"}
	}

	entries := make([]models.ReportEntry, 0, len(*body.Data))
	for _, dto := range *body.Data {
		if dto.ID == nil {
			continue
		}
		entries = append(entries, models.ReportEntry{
			ProjectID:  *dto.ID,
			WorkedTime: time.Duration(dto.Time) * time.Millisecond,
		})
	}
	return entries, nil
}

// FetchRunningEntry retrieves the entry currently being timed, or nil if there is none
func (c *APIClient) FetchRunningEntry(ctx context.Context, session *Session) (*models.RunningEntry, error) {
	if session == nil {
		return nil, ErrNoCredentials
	}

	var body envelope[runningEntryDTO]
	if err := c.get(ctx, session.credential, c.baseURL+"/api/v8/time_entries/current", &body); err != nil {
		return nil, err
	}
	if body.Data == nil {
		return nil, nil
	}

	return &models.RunningEntry{
		ID:          body.Data.ID,
		ProjectID:   body.Data.ProjectID,
		Description: body.Data.Description,
		Start:       body.Data.Start,
		RetrievedAt: c.now(),
	}, nil
}

// HealthCheck checks if the remote API is reachable
func (c *APIClient) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v8/status", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}
	return nil
}

func (c *APIClient) get(ctx context.Context, cred models.Credential, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return &APIError{Kind: LoadingSubsystem, Message: "failed to create request", Err: err}
	}
	if req.URL.Scheme != "http" && req.URL.Scheme != "https" {
		return &APIError{Kind: NonHTTPResponse, Message: fmt.Sprintf("unsupported scheme %q", req.URL.Scheme)}
	}
	req.SetBasicAuth(cred.BasicAuth())
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	startTime := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(startTime)

	if err != nil {
		c.logger.Error("Request failed",
			zap.String("url", req.URL.Path),
			zap.Error(err),
			zap.Duration("duration", duration),
		)
		return &APIError{Kind: LoadingSubsystem, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &APIError{Kind: LoadingSubsystem, StatusCode: resp.StatusCode, Message: "failed to read response", Err: err}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		c.logger.Debug("Request succeeded",
			zap.String("url", req.URL.Path),
			zap.Int("status_code", resp.StatusCode),
			zap.Duration("duration", duration),
		)
		return decode(body, out)
	}

	errMsg := fmt.Sprintf("remote API returned status %d: %s", resp.StatusCode, string(body))

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		c.logger.Error("Authentication failed",
			zap.Int("status_code", resp.StatusCode),
			zap.String("response", string(body)),
		)
		return &APIError{Kind: Authentication, StatusCode: resp.StatusCode, Message: errMsg}
	case resp.StatusCode >= 500:
		c.logger.Warn("Remote API error",
			zap.Int("status_code", resp.StatusCode),
		)
		return &APIError{Kind: ServerHiccups, StatusCode: resp.StatusCode, Message: errMsg}
	default:
		c.logger.Error("Unexpected response",
			zap.Int("status_code", resp.StatusCode),
			zap.String("response", string(body)),
		)
		return &APIError{Kind: OtherHTTP, StatusCode: resp.StatusCode, Message: errMsg}
	}
}

func decode(body []byte, out any) error {
	err := json.Unmarshal(body, out)
	if err == nil {
		return nil
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &syntaxErr):
		return &APIError{Kind: InvalidJSON, Message: "failed to parse response", Err: err}
	case errors.As(err, &typeErr):
		return &APIError{Kind: UnexpectedlyFormedJSON, Message: "failed to decode response", Err: err}
	default:
		return &APIError{Kind: UnexpectedlyFormedJSON, Message: "failed to decode response", Err: err}
	}
}
