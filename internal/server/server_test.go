package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studioline/internal/config"
	"studioline/internal/db"
	"studioline/internal/domain"
	"studioline/internal/engine"
	"studioline/internal/engine/auth"
	"studioline/internal/migrate"
	studiolinesdk "studioline/sdk/go"
)

const testSecret = "test-secret"

// testClock sits before every timeline date used by the fixtures.
var testClock = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

type testServer struct {
	URL    string
	Engine engine.Engine
	client *http.Client
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	require.NoError(t, migrate.Migrate(conn))
	e := engine.New(conn, config.Default("studio-1"))
	e.Now = func() time.Time { return testClock }
	handler, err := New(Config{
		Engine:   e,
		BasePath: "/v0",
		Auth: AuthConfig{
			JWTSecret:        testSecret,
			AllowActorHeader: true,
			DevLogin:         true,
		},
	})
	require.NoError(t, err)
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	require.NoError(t, err)
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	t.Cleanup(func() {
		srv.Shutdown(context.Background())
		ln.Close()
		conn.Close()
	})
	return &testServer{URL: "http://" + ln.Addr().String(), Engine: e, client: &http.Client{}}
}

var asOps = map[string]string{"X-Actor-Id": "ops"}

func doJSON(t *testing.T, s *testServer, method, path string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, s.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := s.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

type errorEnvelope struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func decodeError(t *testing.T, data []byte) errorEnvelope {
	t.Helper()
	var env errorEnvelope
	require.NoError(t, json.Unmarshal(data, &env), string(data))
	return env
}

func duetForm() map[string]any {
	return map[string]any{
		"client_type":   "Publisher",
		"client_name":   "Harbor House",
		"email":         "rights@harbor.example",
		"project_title": "Two Lamps",
		"word_count":    "80,000",
		"style":         "Duet Audio Drama",
		"genres":        []string{"Romance"},
		"character_details": []map[string]string{
			{"name": "Ada", "gender": "Female", "age": "30s", "vocal_style": "Bright"},
			{"name": "Rook", "gender": "Male", "age": "40s", "vocal_style": "Gravel"},
		},
		"timeline_prefs": "2025-09-01|2025-11-01",
	}
}

func greenlitProduction(t *testing.T, s *testServer) domain.Production {
	t.Helper()
	resp, data := doJSON(t, s, http.MethodPost, "/v0/intakes", duetForm(), asOps)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))
	var in domain.Intake
	require.NoError(t, json.Unmarshal(data, &in))
	resp, data = doJSON(t, s, http.MethodPost, "/v0/intakes/"+in.ID+"/greenlight", nil, asOps)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	var p domain.Production
	require.NoError(t, json.Unmarshal(data, &p))
	return p
}

func TestHealthAndOpenAPIArePublic(t *testing.T) {
	s := newTestServer(t)
	resp, data := doJSON(t, s, http.MethodGet, "/v0/health", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(data))

	resp, data = doJSON(t, s, http.MethodGet, "/v0/openapi.json", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var spec map[string]any
	require.NoError(t, json.Unmarshal(data, &spec))
	paths, ok := spec["paths"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, paths, "/v0/intakes/{intake_id}/greenlight")
	assert.Contains(t, paths, "/v0/productions/{production_id}/roles/{role_id}/contract")
}

func TestRequestsWithoutCredentialsAreRejected(t *testing.T) {
	s := newTestServer(t)
	resp, data := doJSON(t, s, http.MethodGet, "/v0/intakes", nil, nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "unauthorized", decodeError(t, data).Error.Code)

	resp, _ = doJSON(t, s, http.MethodGet, "/v0/intakes", nil, map[string]string{"X-Api-Key": "sl_nope"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = doJSON(t, s, http.MethodGet, "/v0/intakes", nil, map[string]string{"Authorization": "Bearer garbage"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestDevLoginTokenAuthenticates(t *testing.T) {
	s := newTestServer(t)
	resp, data := doJSON(t, s, http.MethodPost, "/v0/auth/dev/login", map[string]string{"actor_id": "casting-lead"}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	var login DevLoginResponse
	require.NoError(t, json.Unmarshal(data, &login))
	require.NotEmpty(t, login.Token)

	resp, data = doJSON(t, s, http.MethodGet, "/v0/me", nil, map[string]string{"Authorization": "Bearer " + login.Token})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	var me WhoAmIResponse
	require.NoError(t, json.Unmarshal(data, &me))
	assert.Equal(t, "casting-lead", me.ActorID)
	assert.Equal(t, "jwt", me.Source)
}

func TestTokenFromAnotherStudioIsRejected(t *testing.T) {
	s := newTestServer(t)
	other, err := AuthConfig{JWTSecret: testSecret, Studio: "studio-2"}.mintDevToken("casting-lead", time.Now())
	require.NoError(t, err)
	resp, data := doJSON(t, s, http.MethodGet, "/v0/me", nil, map[string]string{"Authorization": "Bearer " + other})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "invalid_credentials", decodeError(t, data).Error.Code)

	expired, err := AuthConfig{JWTSecret: testSecret, Studio: "studio-1"}.mintDevToken("casting-lead", time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	resp, _ = doJSON(t, s, http.MethodGet, "/v0/me", nil, map[string]string{"Authorization": "Bearer " + expired})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAPIKeyAuthenticates(t *testing.T) {
	s := newTestServer(t)
	svc := auth.Service{Repo: s.Engine.Repo}
	plain, _, err := svc.Issue(context.Background(), "producer", "ci")
	require.NoError(t, err)

	resp, data := doJSON(t, s, http.MethodGet, "/v0/me", nil, map[string]string{"X-Api-Key": plain})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	var me WhoAmIResponse
	require.NoError(t, json.Unmarshal(data, &me))
	assert.Equal(t, "producer", me.ActorID)
	assert.Equal(t, "api_key", me.Source)
}

func TestSubmitIntakeValidationEnvelope(t *testing.T) {
	s := newTestServer(t)
	form := duetForm()
	form["email"] = "not-an-email"
	resp, data := doJSON(t, s, http.MethodPost, "/v0/intakes", form, asOps)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode, string(data))
	env := decodeError(t, data)
	assert.Equal(t, "validation_failed", env.Error.Code)
	assert.Equal(t, "email", env.Error.Details["field"])
}

func TestGreenlightIsIdempotentOverHTTP(t *testing.T) {
	s := newTestServer(t)
	p := greenlitProduction(t, s)
	assert.Equal(t, "ACT-1001", p.ProjectRefID)
	assert.Len(t, p.CastingManifest, 2)

	resp, data := doJSON(t, s, http.MethodPost, "/v0/intakes/"+p.IntakeID+"/greenlight", nil, asOps)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	var again domain.Production
	require.NoError(t, json.Unmarshal(data, &again))
	assert.Equal(t, p.ID, again.ID)

	resp, data = doJSON(t, s, http.MethodPost, "/v0/intakes/"+p.IntakeID+"/greenlight?strict=true", nil, asOps)
	require.Equal(t, http.StatusConflict, resp.StatusCode, string(data))
	assert.Equal(t, "precondition_failed", decodeError(t, data).Error.Code)

	resp, data = doJSON(t, s, http.MethodGet, "/v0/intakes", nil, asOps)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `[]`, string(data))
}

func TestUnknownProductionIsNotFound(t *testing.T) {
	s := newTestServer(t)
	resp, data := doJSON(t, s, http.MethodGet, "/v0/productions/ACT-9999", nil, asOps)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not_found", decodeError(t, data).Error.Code)
}

func TestRoleLockAndStaleWriteOverHTTP(t *testing.T) {
	s := newTestServer(t)
	p := greenlitProduction(t, s)
	role := p.CastingManifest[0]
	rolePath := "/v0/productions/" + p.ID + "/roles/" + role.RoleID

	resp, data := doJSON(t, s, http.MethodPost, "/v0/roster/actors",
		map[string]any{"id": "act-1", "display_name": "Nell Vance", "email": "nell@voices.example"}, asOps)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))

	resp, data = doJSON(t, s, http.MethodPatch, rolePath, map[string]any{"age": "50s", "expected_version": 99}, asOps)
	require.Equal(t, http.StatusConflict, resp.StatusCode, string(data))
	env := decodeError(t, data)
	assert.Equal(t, "stale_write", env.Error.Code)
	assert.EqualValues(t, 99, env.Error.Details["expected_version"])

	resp, data = doJSON(t, s, http.MethodPost, rolePath+"/contract", map[string]any{"status": "Active"}, asOps)
	require.Equal(t, http.StatusConflict, resp.StatusCode, string(data))
	assert.Equal(t, "precondition_failed", decodeError(t, data).Error.Code)

	resp, data = doJSON(t, s, http.MethodPost, rolePath+"/assign", map[string]any{"talent_id": "act-1", "slot": "primary"}, asOps)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	resp, data = doJSON(t, s, http.MethodPost, rolePath+"/contract", map[string]any{"status": "Active"}, asOps)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))

	resp, data = doJSON(t, s, http.MethodPatch, rolePath, map[string]any{"age": "50s"}, asOps)
	require.Equal(t, http.StatusConflict, resp.StatusCode, string(data))
	env = decodeError(t, data)
	assert.Equal(t, "precondition_failed", env.Error.Code)
	assert.Equal(t, "Active", env.Error.Details["state"])

	resp, _ = doJSON(t, s, http.MethodDelete, rolePath, nil, asOps)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestSchemaViolationIsBadRequest(t *testing.T) {
	s := newTestServer(t)
	p := greenlitProduction(t, s)
	resp, data := doJSON(t, s, http.MethodPost, "/v0/productions/"+p.ID+"/step", map[string]any{"step": "Mastering"}, asOps)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode, string(data))
}

func TestEventsCursorPagination(t *testing.T) {
	s := newTestServer(t)
	p := greenlitProduction(t, s)
	resp, data := doJSON(t, s, http.MethodPost, "/v0/productions/"+p.ID+"/notes", map[string]any{"text": "kickoff booked"}, asOps)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))

	seen := map[int64]bool{}
	cursor := ""
	var last int64
	for pages := 0; pages < 10; pages++ {
		q := "/v0/events?limit=1&production_id=" + p.ID
		if cursor != "" {
			q += "&cursor=" + cursor
		}
		resp, data := doJSON(t, s, http.MethodGet, q, nil, asOps)
		require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
		var page paginatedEvents
		require.NoError(t, json.Unmarshal(data, &page))
		require.Len(t, page.Items, 1)
		id := page.Items[0].ID
		assert.False(t, seen[id], "event %d returned twice", id)
		if last != 0 {
			assert.Less(t, id, last)
		}
		seen[id], last = true, id
		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}
	assert.GreaterOrEqual(t, len(seen), 3)

	resp, data = doJSON(t, s, http.MethodGet, "/v0/events?cursor=abc", nil, asOps)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode, string(data))
}

func TestSDKFlow(t *testing.T) {
	s := newTestServer(t)
	resp, data := doJSON(t, s, http.MethodPost, "/v0/auth/dev/login", map[string]string{"actor_id": "sdk"}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	var login DevLoginResponse
	require.NoError(t, json.Unmarshal(data, &login))

	ctx := context.Background()
	c := studiolinesdk.New(s.URL)
	c.BearerToken = login.Token

	in, err := c.SubmitIntake(ctx, studiolinesdk.IntakeForm{
		ClientType:    "Indie Author",
		ClientName:    "Jo Penn",
		Email:         "jo@example.com",
		ProjectTitle:  "Salt and Signal",
		WordCount:     "65000",
		Style:         "Solo Narration",
		Genres:        []string{"Mystery"},
		TimelinePrefs: "2025-09-01|2025-10-01",
		CharacterDetails: []studiolinesdk.CharacterDetail{
			{Name: "Mara", Gender: "Female", Age: "30s", VocalStyle: "Warm"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "INT-1001", in.RefID)

	pending, err := c.PendingIntakes(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	p, err := c.Greenlight(ctx, in.ID)
	require.NoError(t, err)
	require.Len(t, p.CastingManifest, 1)
	assert.Equal(t, "Pre-Production", p.ContractData.ProductionStep)

	_, err = s.Engine.UpsertActor(ctx, domain.RosterActor{
		ID: "act-1", DisplayName: "Nell Vance", Email: "nell@voices.example", Gender: "Female", AgeRange: "30s",
		VoiceTags: []string{"warm"},
	}, "ops")
	require.NoError(t, err)

	roleID := p.CastingManifest[0].RoleID
	matches, err := c.Matches(ctx, p.ID, roleID, 5)
	require.NoError(t, err)
	require.NotEmpty(t, matches)
	assert.Equal(t, "act-1", matches[0].Actor.ID)

	role, err := c.AssignActor(ctx, p.ID, roleID, "act-1", "primary")
	require.NoError(t, err)
	require.NotNil(t, role.ActorRequest.Primary)
	assert.Equal(t, "Filled", role.Status)

	role, err = c.SetRoleContract(ctx, p.ID, roleID, "Active", false)
	require.NoError(t, err)
	assert.Equal(t, "Active", role.Contract.Status)

	p, err = c.AdvanceStep(ctx, p.ID, "Recording", false)
	require.NoError(t, err)
	assert.Equal(t, "Recording", p.ContractData.ProductionStep)
	assert.Contains(t, p.ContractData.StepTimestamps, "Recording")

	note, err := c.PostNote(ctx, p.ID, "sessions booked")
	require.NoError(t, err)
	assert.Equal(t, "sessions booked", note.Text)

	targets, err := c.NotificationTargets(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"nell@voices.example"}, targets)

	page, err := c.EventsPage(ctx, p.ID, 2, "")
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)
	assert.NotEmpty(t, page.NextCursor)

	_, err = c.Production(ctx, "ACT-4040")
	var apiErr *studiolinesdk.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "not_found", apiErr.Code)
}

func TestUnrecordedNoticeMapsToDistinctCode(t *testing.T) {
	err := handleError(&engine.UnrecordedNoticeError{Recipients: []string{"d@x.com"}, Err: context.DeadlineExceeded})
	require.Error(t, err)
	assert.Equal(t, http.StatusInternalServerError, err.GetStatus())
	ae, ok := err.(*apiError)
	require.True(t, ok)
	assert.Equal(t, "notice_not_recorded", ae.Body.Code)
	assert.Equal(t, true, ae.Body.Details["delivered"])
}
