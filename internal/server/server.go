package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"studioline/internal/domain"
	"studioline/internal/engine"
	"studioline/internal/metrics"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	Auth     AuthConfig
	Log      *zap.Logger
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"precondition_failed"`
	Message string         `json:"message" example:"role ROLE-1717236000000 is locked by an active contract"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true" example:"{\"state\":\"Active\"}"`
}

type requestKey struct{}
type bodyBytesKey struct{}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// body wraps a response payload.
type body[T any] struct {
	Body T `json:"body"`
}

func reply[T any](v T) *body[T] {
	return &body[T]{Body: v}
}

// New returns an HTTP handler exposing the studioline API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Auth.Log == nil {
		cfg.Auth.Log = log
	}
	if cfg.Auth.Studio == "" && cfg.Engine.Config != nil {
		cfg.Auth.Studio = cfg.Engine.Config.Studio.ID
	}
	if cfg.Auth.Keys.Repo.DB == nil {
		cfg.Auth.Keys.Repo = cfg.Engine.Repo
	}
	huma.DefaultArrayNullable = false
	// Override Huma errors to use the envelope.
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			// Schema/request validation errors are malformed requests.
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(requestLogger(log))
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bodyBytes, _ := io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
			ctx := context.WithValue(r.Context(), requestKey{}, r)
			ctx = context.WithValue(ctx, bodyBytesKey{}, bodyBytes)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	router.Use(newAuthMiddleware(basePath, cfg.Auth))
	hcfg := huma.DefaultConfig("studioline API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	router.Handle("/metrics", metrics.Handler())
	registerHealth(group)
	registerIntakes(group, cfg.Engine)
	registerProductions(group, cfg.Engine)
	registerRoles(group, cfg.Engine)
	registerCrew(group, cfg.Engine)
	registerCorrespondence(group, cfg.Engine)
	registerEvents(group, cfg.Engine)
	registerRoster(group, cfg.Engine)
	registerMe(group)
	if cfg.Auth.DevLogin {
		registerDevAuth(group, cfg.Auth)
	}
	registerOpenAPI(router, api, basePath, cfg.Auth)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

// handleError maps the engine error taxonomy onto HTTP statuses.
func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var se huma.StatusError
	if errors.As(err, &se) {
		return se
	}
	msg := err.Error()
	switch engine.KindOf(err) {
	case engine.KindValidation:
		var ve *engine.ValidationError
		errors.As(err, &ve)
		return newAPIError(http.StatusUnprocessableEntity, "validation_failed", msg, map[string]any{"field": ve.Field})
	case engine.KindPrecondition:
		var pe *engine.PreconditionError
		errors.As(err, &pe)
		return newAPIError(http.StatusConflict, "precondition_failed", msg, map[string]any{"state": pe.State})
	case engine.KindStale:
		details := map[string]any{}
		var sw *engine.StaleWriteError
		if errors.As(err, &sw) {
			details["expected_version"] = sw.Expected
			details["actual_version"] = sw.Actual
		}
		return newAPIError(http.StatusConflict, "stale_write", msg, details)
	case engine.KindNotFound:
		return newAPIError(http.StatusNotFound, "not_found", msg, nil)
	case engine.KindTransient:
		var te *engine.TransientStoreError
		errors.As(err, &te)
		return newAPIError(http.StatusServiceUnavailable, "store_unavailable", msg, map[string]any{"attempts": te.Attempts})
	case engine.KindDelivery:
		return newAPIError(http.StatusBadGateway, "delivery_failed", msg, nil)
	case engine.KindUnrecorded:
		var ue *engine.UnrecordedNoticeError
		errors.As(err, &ue)
		return newAPIError(http.StatusInternalServerError, "notice_not_recorded", msg,
			map[string]any{"delivered": true, "recipients": ue.Recipients})
	default:
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": msg})
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusServiceUnavailable:
		return "store_unavailable"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

// requestInfo is filled by inner middleware so the request log can name the actor.
type requestInfo struct {
	actor string
}

type requestInfoKey struct{}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			info := &requestInfo{}
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(context.WithValue(r.Context(), requestInfoKey{}, info)))
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			metrics.ObserveHTTP(r.Method, strconv.Itoa(status))
			log.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", status),
				zap.Duration("duration", time.Since(start)),
				zap.String("actor", info.actor))
		})
	}
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*body[map[string]string], error) {
		return reply(map[string]string{"status": "ok"}), nil
	})
}

func registerEvents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "List audit events, newest first",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProductionID string `query:"production_id"`
		Type         string `query:"type"`
		EntityKind   string `query:"entity_kind"`
		EntityID     string `query:"entity_id"`
		Limit        int    `query:"limit" default:"50"`
		Cursor       string `query:"cursor"`
	}) (*body[paginatedEvents], error) {
		limit := normalizeLimit(input.Limit)
		var cursorID int64
		if input.Cursor != "" {
			parsed, err := strconv.ParseInt(input.Cursor, 10, 64)
			if err != nil {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid cursor", map[string]any{"cursor": input.Cursor})
			}
			cursorID = parsed
		}
		items, err := e.ListEvents(ctx, engine.EventQuery{
			ProductionID: input.ProductionID,
			Type:         input.Type,
			EntityKind:   input.EntityKind,
			EntityID:     input.EntityID,
			Cursor:       cursorID,
			Limit:        limit + 1,
		})
		if err != nil {
			return nil, handleError(err)
		}
		resp := paginatedEvents{Items: []EventResponse{}}
		if len(items) > limit {
			resp.NextCursor = strconv.FormatInt(items[limit-1].ID, 10)
			items = items[:limit]
		}
		for _, evt := range items {
			resp.Items = append(resp.Items, eventResponse(evt))
		}
		return reply(resp), nil
	})
}

func bodyBytes(ctx context.Context) []byte {
	if buf, ok := ctx.Value(bodyBytesKey{}).([]byte); ok {
		return buf
	}
	req, ok := ctx.Value(requestKey{}).(*http.Request)
	if !ok || req == nil {
		return nil
	}
	data, _ := io.ReadAll(req.Body)
	return data
}

func requireBody(ctx context.Context) huma.StatusError {
	if len(bytes.TrimSpace(bodyBytes(ctx))) == 0 {
		return newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
	}
	return nil
}

func normalizeLimit(in int) int {
	if in <= 0 {
		return 50
	}
	if in > 200 {
		return 200
	}
	return in
}

func eventResponse(evt domain.Event) EventResponse {
	payload := map[string]any{}
	if evt.Payload != "" {
		_ = json.Unmarshal([]byte(evt.Payload), &payload)
	}
	return EventResponse{
		ID:           evt.ID,
		TS:           evt.TS,
		Type:         evt.Type,
		ProductionID: evt.ProductionID,
		EntityKind:   evt.EntityKind,
		EntityID:     evt.EntityID,
		ActorID:      evt.ActorID,
		Payload:      payload,
	}
}
