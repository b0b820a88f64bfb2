package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"studioline/internal/domain"
	"studioline/internal/engine"
)

type productionPath struct {
	ProductionID string `path:"production_id" doc:"Production id or ACT reference"`
}

func registerProductions(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-productions",
		Method:      http.MethodGet,
		Path:        "/productions",
		Summary:     "List productions",
		Errors:      []int{http.StatusBadRequest, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		View   string `query:"view" enum:"active,archived,all" default:"active"`
		Status string `query:"status"`
		Search string `query:"search"`
		Limit  int    `query:"limit" default:"50"`
	}) (*body[[]domain.Production], error) {
		q := engine.ProductionQuery{
			Status: domain.ProductionStatus(input.Status),
			Search: input.Search,
			Limit:  normalizeLimit(input.Limit),
		}
		switch input.View {
		case "", "active":
			archived := false
			q.Archived = &archived
		case "archived":
			archived := true
			q.Archived = &archived
		}
		items, err := e.ListProductions(ctx, q)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(items), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-production",
		Method:      http.MethodGet,
		Path:        "/productions/{production_id}",
		Summary:     "Get a production with its manifests, tracker and correspondence",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *productionPath) (*body[domain.Production], error) {
		p, err := e.GetProduction(ctx, input.ProductionID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(p), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-production-status",
		Method:      http.MethodPost,
		Path:        "/productions/{production_id}/status",
		Summary:     "Change production status",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		productionPath
		Body SetStatusRequest `json:"body"`
	}) (*body[domain.Production], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p, err := e.SetProductionStatus(ctx, engine.StatusOptions{
			ProductionID:    input.ProductionID,
			Status:          domain.ProductionStatus(input.Body.Status),
			ExpectedVersion: input.Body.ExpectedVersion,
			ActorID:         actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return reply(p), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "advance-step",
		Method:      http.MethodPost,
		Path:        "/productions/{production_id}/step",
		Summary:     "Move the workflow tracker",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		productionPath
		Body AdvanceStepRequest `json:"body"`
	}) (*body[domain.Production], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p, err := e.AdvanceStep(ctx, engine.AdvanceStepOptions{
			ProductionID:    input.ProductionID,
			Step:            domain.ProductionStep(input.Body.Step),
			ExpectedVersion: input.Body.ExpectedVersion,
			Force:           input.Body.Force,
			ActorID:         actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return reply(p), nil
	})
}

func registerCorrespondence(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "post-note",
		Method:        http.MethodPost,
		Path:          "/productions/{production_id}/notes",
		Summary:       "Append to the correspondence log",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		productionPath
		Body NoteRequest `json:"body"`
	}) (*body[domain.CorrespondenceEntry], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		entry, err := e.PostNote(ctx, engine.NoteOptions{
			ProductionID: input.ProductionID,
			Author:       input.Body.Author,
			Text:         input.Body.Text,
			ActorID:      actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return reply(entry), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-notes",
		Method:      http.MethodGet,
		Path:        "/productions/{production_id}/notes",
		Summary:     "Read the correspondence log, oldest first",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *productionPath) (*body[[]domain.CorrespondenceEntry], error) {
		p, err := e.GetProduction(ctx, input.ProductionID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(p.Correspondence), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "notification-targets",
		Method:      http.MethodGet,
		Path:        "/productions/{production_id}/notification-targets",
		Summary:     "Unique contact emails of the casting and crew manifests",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *productionPath) (*body[TargetsResponse], error) {
		emails, err := e.CollectNotificationTargets(ctx, input.ProductionID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(TargetsResponse{ProductionID: input.ProductionID, Emails: emails}), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "send-notice",
		Method:      http.MethodPost,
		Path:        "/productions/{production_id}/notices",
		Summary:     "Send a bulk notice to every notification target",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusConflict,
			http.StatusUnprocessableEntity,
			http.StatusBadGateway,
		},
	}, func(ctx context.Context, input *struct {
		productionPath
		Body NoticeRequest `json:"body"`
	}) (*body[engine.NoticeResult], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		res, err := e.SendBulkNotice(ctx, engine.NoticeOptions{
			ProductionID: input.ProductionID,
			Subject:      input.Body.Subject,
			Body:         input.Body.Body,
			ActorID:      actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return reply(res), nil
	})
}
