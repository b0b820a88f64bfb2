package studiolinesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client is a minimal studioline HTTP API client.
type Client struct {
	BaseURL     string
	BasePath    string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:  baseURL,
		BasePath: "/v0",
		Timeout:  10 * time.Second,
	}
}

type CharacterDetail struct {
	Name       string `json:"name"`
	Gender     string `json:"gender"`
	Age        string `json:"age"`
	VocalStyle string `json:"vocal_style"`
}

// IntakeForm is the submission payload.
type IntakeForm struct {
	ClientType       string            `json:"client_type"`
	ClientName       string            `json:"client_name"`
	Email            string            `json:"email"`
	ProjectTitle     string            `json:"project_title"`
	WordCount        string            `json:"word_count"`
	Style            string            `json:"style"`
	Genres           []string          `json:"genres"`
	CharacterDetails []CharacterDetail `json:"character_details"`
	TimelinePrefs    string            `json:"timeline_prefs"`
	Notes            string            `json:"notes,omitempty"`
}

type Intake struct {
	ID           string `json:"id"`
	RefID        string `json:"intake_ref_id"`
	ProjectTitle string `json:"project_title"`
	Style        string `json:"style"`
	Status       string `json:"status"`
	CreatedAt    string `json:"created_at"`
}

type TalentRef struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email,omitempty"`
}

// Role represents a casting manifest entry.
type Role struct {
	RoleID       string `json:"role_id"`
	Position     int    `json:"position"`
	Name         string `json:"name"`
	Status       string `json:"status"`
	ActorRequest struct {
		Primary *TalentRef `json:"primary"`
		Backup  *TalentRef `json:"backup"`
	} `json:"actor_request"`
	Contract struct {
		Status string `json:"status"`
		Email  string `json:"email"`
	} `json:"contract"`
	Version int64 `json:"version"`
}

type CrewSlot struct {
	PositionKey string `json:"position_key"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	Status      string `json:"status"`
	Version     int64  `json:"version"`
}

type Note struct {
	ID        int64  `json:"id"`
	Author    string `json:"author"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
}

// Production represents the API production model (partial).
type Production struct {
	ID               string              `json:"id"`
	ProjectRefID     string              `json:"project_ref_id"`
	IntakeID         string              `json:"intake_id"`
	Title            string              `json:"title"`
	Style            string              `json:"style"`
	ProductionStatus string              `json:"production_status"`
	CastingManifest  []Role              `json:"casting_manifest"`
	CrewManifest     map[string]CrewSlot `json:"crew_manifest"`
	ContractData     struct {
		ProductionStep string            `json:"production_step"`
		StepTimestamps map[string]string `json:"step_timestamps"`
	} `json:"contract_data"`
	Correspondence []Note `json:"project_correspondence"`
	Version        int64  `json:"version"`
}

type Candidate struct {
	Actor TalentRef `json:"actor"`
	Score float64   `json:"score"`
}

// Event represents a log entry.
type Event struct {
	ID           int64          `json:"id"`
	TS           string         `json:"ts"`
	Type         string         `json:"type"`
	ProductionID string         `json:"production_id"`
	EntityKind   string         `json:"entity_kind"`
	EntityID     string         `json:"entity_id"`
	ActorID      string         `json:"actor_id"`
	Payload      map[string]any `json:"payload"`
}

// PaginatedEvents wraps list responses with cursors.
type PaginatedEvents struct {
	Items      []Event `json:"items"`
	NextCursor string  `json:"next_cursor"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

func (c *Client) SubmitIntake(ctx context.Context, form IntakeForm) (Intake, error) {
	var resp Intake
	err := c.do(ctx, http.MethodPost, "intakes", form, &resp)
	return resp, err
}

// PendingIntakes lists NEW intakes, newest first.
func (c *Client) PendingIntakes(ctx context.Context) ([]Intake, error) {
	var resp []Intake
	err := c.do(ctx, http.MethodGet, "intakes", nil, &resp)
	return resp, err
}

// Greenlight is safe to repeat; the second call returns the same production.
func (c *Client) Greenlight(ctx context.Context, intakeID string) (Production, error) {
	var resp Production
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("intakes/%s/greenlight", url.PathEscape(intakeID)), nil, &resp)
	return resp, err
}

func (c *Client) Production(ctx context.Context, id string) (Production, error) {
	var resp Production
	err := c.do(ctx, http.MethodGet, "productions/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

func (c *Client) AssignActor(ctx context.Context, productionID, roleID, talentID, slot string) (Role, error) {
	body := map[string]any{"talent_id": talentID, "slot": slot}
	var resp Role
	err := c.do(ctx, http.MethodPost, c.rolePath(productionID, roleID, "assign"), body, &resp)
	return resp, err
}

func (c *Client) SetRoleContract(ctx context.Context, productionID, roleID, status string, force bool) (Role, error) {
	body := map[string]any{"status": status, "force": force}
	var resp Role
	err := c.do(ctx, http.MethodPost, c.rolePath(productionID, roleID, "contract"), body, &resp)
	return resp, err
}

func (c *Client) Matches(ctx context.Context, productionID, roleID string, limit int) ([]Candidate, error) {
	endpoint := c.rolePath(productionID, roleID, "matches")
	if limit > 0 {
		endpoint += "?limit=" + strconv.Itoa(limit)
	}
	var resp []Candidate
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) AdvanceStep(ctx context.Context, productionID, step string, force bool) (Production, error) {
	body := map[string]any{"step": step, "force": force}
	var resp Production
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("productions/%s/step", url.PathEscape(productionID)), body, &resp)
	return resp, err
}

func (c *Client) PostNote(ctx context.Context, productionID, text string) (Note, error) {
	var resp Note
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("productions/%s/notes", url.PathEscape(productionID)), map[string]any{"text": text}, &resp)
	return resp, err
}

func (c *Client) NotificationTargets(ctx context.Context, productionID string) ([]string, error) {
	var resp struct {
		Emails []string `json:"emails"`
	}
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("productions/%s/notification-targets", url.PathEscape(productionID)), nil, &resp)
	return resp.Emails, err
}

// EventsPage returns a page of audit events for a production.
func (c *Client) EventsPage(ctx context.Context, productionID string, limit int, cursor string) (PaginatedEvents, error) {
	q := url.Values{}
	if productionID != "" {
		q.Set("production_id", productionID)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	endpoint := "events"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp PaginatedEvents
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	target := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, target, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var envelope struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(b, &envelope) == nil {
			apiErr.Code = envelope.Error.Code
			apiErr.Message = envelope.Error.Message
		}
		return apiErr
	}
	if out != nil && resp.StatusCode != http.StatusNoContent {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) rolePath(productionID, roleID, action string) string {
	return fmt.Sprintf("productions/%s/roles/%s/%s", url.PathEscape(productionID), url.PathEscape(roleID), action)
}

func (c *Client) base() string {
	base := strings.TrimRight(c.BaseURL, "/")
	if c.BasePath == "" {
		return base
	}
	return base + "/" + strings.Trim(c.BasePath, "/")
}
