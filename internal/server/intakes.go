package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"studioline/internal/domain"
	"studioline/internal/engine"
)

func registerIntakes(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "submit-intake",
		Method:        http.MethodPost,
		Path:          "/intakes",
		Summary:       "Submit an intake form",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnprocessableEntity,
			http.StatusServiceUnavailable,
		},
	}, func(ctx context.Context, input *struct {
		Body SubmitIntakeRequest `json:"body"`
	}) (*body[domain.Intake], error) {
		if err := requireBody(ctx); err != nil {
			return nil, err
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		b := input.Body
		in, err := e.SubmitIntake(ctx, engine.IntakeInput{
			ClientType:       b.ClientType,
			ClientName:       b.ClientName,
			Email:            b.Email,
			ProjectTitle:     b.ProjectTitle,
			WordCount:        b.WordCount,
			Style:            b.Style,
			Genres:           b.Genres,
			CharacterDetails: b.CharacterDetails,
			TimelinePrefs:    b.TimelinePrefs,
			Notes:            b.Notes,
			ActorID:          actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return reply(in), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-pending-intakes",
		Method:      http.MethodGet,
		Path:        "/intakes",
		Summary:     "List intakes awaiting greenlight",
		Errors:      []int{http.StatusBadRequest, http.StatusUnprocessableEntity, http.StatusServiceUnavailable},
	}, func(ctx context.Context, input *struct {
		Format string `query:"format" enum:"Solo,Dual,Duet,Multi"`
		Search string `query:"search"`
		Sort   string `query:"sort" enum:"newest,oldest,title" default:"newest"`
		Limit  int    `query:"limit" default:"50"`
	}) (*body[[]domain.Intake], error) {
		items, err := e.ListPendingIntakes(ctx, engine.PendingFilter{
			Format: domain.Format(input.Format),
			Search: input.Search,
			Sort:   domain.IntakeSort(input.Sort),
			Limit:  normalizeLimit(input.Limit),
		})
		if err != nil {
			return nil, handleError(err)
		}
		return reply(items), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-intake",
		Method:      http.MethodGet,
		Path:        "/intakes/{intake_id}",
		Summary:     "Get an intake by id or INT reference",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		IntakeID string `path:"intake_id"`
	}) (*body[domain.Intake], error) {
		in, err := e.GetIntake(ctx, input.IntakeID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(in), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "greenlight-intake",
		Method:      http.MethodPost,
		Path:        "/intakes/{intake_id}/greenlight",
		Summary:     "Greenlight an intake into an active production",
		Description: "Idempotent per intake: repeating the call returns the production created the first time unless strict is set.",
		Errors: []int{
			http.StatusNotFound,
			http.StatusConflict,
			http.StatusUnprocessableEntity,
			http.StatusServiceUnavailable,
		},
	}, func(ctx context.Context, input *struct {
		IntakeID string `path:"intake_id"`
		Strict   bool   `query:"strict"`
	}) (*body[domain.Production], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p, err := e.Greenlight(ctx, engine.GreenlightOptions{IntakeID: input.IntakeID, ActorID: actorID, Strict: input.Strict})
		if err != nil {
			return nil, handleError(err)
		}
		return reply(p), nil
	})
}
