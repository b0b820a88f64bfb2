package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"studioline/internal/domain"
	"studioline/internal/engine"
)

func registerRoster(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-actors",
		Method:      http.MethodGet,
		Path:        "/roster/actors",
		Summary:     "List the actor roster",
	}, func(ctx context.Context, input *struct {
		ActiveOnly bool `query:"active_only"`
	}) (*body[[]domain.RosterActor], error) {
		items, err := e.ListActors(ctx, input.ActiveOnly)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(items), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-actor",
		Method:      http.MethodGet,
		Path:        "/roster/actors/{actor_id}",
		Summary:     "Get a roster actor",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ActorID string `path:"actor_id"`
	}) (*body[domain.RosterActor], error) {
		a, err := e.GetActor(ctx, input.ActorID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(a), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "upsert-actor",
		Method:      http.MethodPost,
		Path:        "/roster/actors",
		Summary:     "Create or replace a roster actor",
		Errors:      []int{http.StatusBadRequest, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		Body UpsertActorRequest `json:"body"`
	}) (*body[domain.RosterActor], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		a, err := e.UpsertActor(ctx, input.Body.actor(), actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(a), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-actor-status",
		Method:      http.MethodPost,
		Path:        "/roster/actors/{actor_id}/status",
		Summary:     "Activate or offboard an actor",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		ActorID string              `path:"actor_id"`
		Body    RosterStatusRequest `json:"body"`
	}) (*struct{}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.SetActorStatus(ctx, input.ActorID, domain.RosterStatus(input.Body.Status), actorID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-crew-members",
		Method:      http.MethodGet,
		Path:        "/roster/crew",
		Summary:     "List the crew roster",
	}, func(ctx context.Context, input *struct {
		ActiveOnly bool `query:"active_only"`
	}) (*body[[]domain.RosterCrew], error) {
		items, err := e.ListCrewMembers(ctx, input.ActiveOnly)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(items), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "upsert-crew-member",
		Method:      http.MethodPost,
		Path:        "/roster/crew",
		Summary:     "Create or replace a crew roster member",
		Errors:      []int{http.StatusBadRequest, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		Body UpsertCrewMemberRequest `json:"body"`
	}) (*body[domain.RosterCrew], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		c, err := e.UpsertCrewMember(ctx, input.Body.member(), actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(c), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-crew-member-status",
		Method:      http.MethodPost,
		Path:        "/roster/crew/{member_id}/status",
		Summary:     "Activate or offboard a crew member",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		MemberID string              `path:"member_id"`
		Body     RosterStatusRequest `json:"body"`
	}) (*struct{}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.SetCrewMemberStatus(ctx, input.MemberID, domain.RosterStatus(input.Body.Status), actorID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "import-roster",
		Method:      http.MethodPost,
		Path:        "/roster/import",
		Summary:     "Upsert many roster records in one transaction",
		Errors:      []int{http.StatusBadRequest, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		Body RosterImportRequest `json:"body"`
	}) (*body[engine.ImportResult], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		f := engine.RosterFile{}
		for _, a := range input.Body.Actors {
			f.Actors = append(f.Actors, a.actor())
		}
		for _, c := range input.Body.Crew {
			f.Crew = append(f.Crew, c.member())
		}
		res, err := e.ImportRoster(ctx, f, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(res), nil
	})
}
