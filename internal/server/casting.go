package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"studioline/internal/domain"
	"studioline/internal/engine"
)

type rolePath struct {
	ProductionID string `path:"production_id"`
	RoleID       string `path:"role_id"`
}

type crewPath struct {
	ProductionID string `path:"production_id"`
	PositionKey  string `path:"position_key"`
}

var mutationErrors = []int{
	http.StatusBadRequest,
	http.StatusNotFound,
	http.StatusConflict,
	http.StatusUnprocessableEntity,
	http.StatusServiceUnavailable,
}

func registerRoles(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "add-role",
		Method:        http.MethodPost,
		Path:          "/productions/{production_id}/roles",
		Summary:       "Add a role to the casting manifest",
		DefaultStatus: http.StatusCreated,
		Errors:        mutationErrors,
	}, func(ctx context.Context, input *struct {
		productionPath
		Body AddRoleRequest `json:"body"`
	}) (*body[domain.RoleSlot], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		role, err := e.AddRole(ctx, engine.AddRoleOptions{
			ProductionID: input.ProductionID,
			Name:         input.Body.Name,
			Gender:       input.Body.Gender,
			Age:          input.Body.Age,
			VocalSpecs:   input.Body.VocalSpecs,
			ActorID:      actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return reply(role), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-role",
		Method:      http.MethodPatch,
		Path:        "/productions/{production_id}/roles/{role_id}",
		Summary:     "Edit role details while the contract is Draft",
		Errors:      mutationErrors,
	}, func(ctx context.Context, input *struct {
		rolePath
		Body UpdateRoleRequest `json:"body"`
	}) (*body[domain.RoleSlot], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		b := input.Body
		role, err := e.UpdateRoleSpec(ctx, engine.RoleSpecUpdate{
			ProductionID:    input.ProductionID,
			RoleID:          input.RoleID,
			Name:            b.Name,
			Gender:          b.Gender,
			Age:             b.Age,
			VocalSpecs:      b.VocalSpecs,
			ContractEmail:   b.ContractEmail,
			ExpectedVersion: b.ExpectedVersion,
			ActorID:         actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return reply(role), nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-role",
		Method:        http.MethodDelete,
		Path:          "/productions/{production_id}/roles/{role_id}",
		Summary:       "Remove a Draft role",
		DefaultStatus: http.StatusNoContent,
		Errors:        mutationErrors,
	}, func(ctx context.Context, input *struct {
		rolePath
		ExpectedVersion int64 `query:"expected_version"`
	}) (*struct{}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		err := e.DeleteRole(ctx, engine.DeleteRoleOptions{
			ProductionID:    input.ProductionID,
			RoleID:          input.RoleID,
			ExpectedVersion: input.ExpectedVersion,
			ActorID:         actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "assign-actor",
		Method:      http.MethodPost,
		Path:        "/productions/{production_id}/roles/{role_id}/assign",
		Summary:     "Place a roster actor in the primary or backup slot",
		Description: "Assigning the current holder of the slot again clears it. An actor occupies at most one of the two slots.",
		Errors:      mutationErrors,
	}, func(ctx context.Context, input *struct {
		rolePath
		Body AssignActorRequest `json:"body"`
	}) (*body[domain.RoleSlot], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		role, err := e.AssignActor(ctx, engine.AssignActorOptions{
			ProductionID:    input.ProductionID,
			RoleID:          input.RoleID,
			TalentID:        input.Body.TalentID,
			Slot:            domain.SlotType(input.Body.Slot),
			ExpectedVersion: input.Body.ExpectedVersion,
			ActorID:         actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return reply(role), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-role-contract",
		Method:      http.MethodPost,
		Path:        "/productions/{production_id}/roles/{role_id}/contract",
		Summary:     "Move a role contract between Draft and Active",
		Errors:      mutationErrors,
	}, func(ctx context.Context, input *struct {
		rolePath
		Body ContractRequest `json:"body"`
	}) (*body[domain.RoleSlot], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		role, err := e.SetContractStatus(ctx, engine.SetContractOptions{
			ProductionID:    input.ProductionID,
			RoleID:          input.RoleID,
			Status:          domain.ContractStatus(input.Body.Status),
			ExpectedVersion: input.Body.ExpectedVersion,
			Force:           input.Body.Force,
			ActorID:         actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return reply(role), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "match-candidates",
		Method:      http.MethodGet,
		Path:        "/productions/{production_id}/roles/{role_id}/matches",
		Summary:     "Rank roster actors against a role",
		Description: "Advisory only; nothing is assigned.",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		rolePath
		Limit int `query:"limit"`
	}) (*body[[]engine.Candidate], error) {
		items, err := e.MatchCandidates(ctx, input.ProductionID, input.RoleID, input.Limit)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(items), nil
	})
}

func registerCrew(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "add-crew-position",
		Method:        http.MethodPost,
		Path:          "/productions/{production_id}/crew",
		Summary:       "Open a crew position",
		DefaultStatus: http.StatusCreated,
		Errors:        mutationErrors,
	}, func(ctx context.Context, input *struct {
		productionPath
		Body AddCrewRequest `json:"body"`
	}) (*body[domain.CrewSlot], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		slot, err := e.AddCrewPosition(ctx, engine.CrewPositionOptions{
			ProductionID: input.ProductionID,
			PositionKey:  input.Body.PositionKey,
			Name:         input.Body.Name,
			Email:        input.Body.Email,
			ActorID:      actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return reply(slot), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-crew-position",
		Method:      http.MethodPatch,
		Path:        "/productions/{production_id}/crew/{position_key}",
		Summary:     "Edit a Draft crew position",
		Errors:      mutationErrors,
	}, func(ctx context.Context, input *struct {
		crewPath
		Body UpdateCrewRequest `json:"body"`
	}) (*body[domain.CrewSlot], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		slot, err := e.UpdateCrewSlot(ctx, engine.CrewSlotUpdate{
			ProductionID:    input.ProductionID,
			PositionKey:     input.PositionKey,
			Name:            input.Body.Name,
			Email:           input.Body.Email,
			ExpectedVersion: input.Body.ExpectedVersion,
			ActorID:         actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return reply(slot), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "assign-crew",
		Method:      http.MethodPost,
		Path:        "/productions/{production_id}/crew/{position_key}/assign",
		Summary:     "Fill a crew position from the crew roster",
		Errors:      mutationErrors,
	}, func(ctx context.Context, input *struct {
		crewPath
		Body AssignCrewRequest `json:"body"`
	}) (*body[domain.CrewSlot], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		slot, err := e.AssignCrew(ctx, engine.AssignCrewOptions{
			ProductionID:    input.ProductionID,
			PositionKey:     input.PositionKey,
			MemberID:        input.Body.MemberID,
			ExpectedVersion: input.Body.ExpectedVersion,
			ActorID:         actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return reply(slot), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-crew-contract",
		Method:      http.MethodPost,
		Path:        "/productions/{production_id}/crew/{position_key}/contract",
		Summary:     "Move a crew contract between Draft and Active",
		Errors:      mutationErrors,
	}, func(ctx context.Context, input *struct {
		crewPath
		Body ContractRequest `json:"body"`
	}) (*body[domain.CrewSlot], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		slot, err := e.SetCrewContractStatus(ctx, engine.CrewContractOptions{
			ProductionID:    input.ProductionID,
			PositionKey:     input.PositionKey,
			Status:          domain.ContractStatus(input.Body.Status),
			ExpectedVersion: input.Body.ExpectedVersion,
			Force:           input.Body.Force,
			ActorID:         actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return reply(slot), nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-crew-position",
		Method:        http.MethodDelete,
		Path:          "/productions/{production_id}/crew/{position_key}",
		Summary:       "Remove a Draft crew position",
		DefaultStatus: http.StatusNoContent,
		Errors:        mutationErrors,
	}, func(ctx context.Context, input *struct {
		crewPath
		ExpectedVersion int64 `query:"expected_version"`
	}) (*struct{}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		err := e.DeleteCrewPosition(ctx, engine.DeleteCrewOptions{
			ProductionID:    input.ProductionID,
			PositionKey:     input.PositionKey,
			ExpectedVersion: input.ExpectedVersion,
			ActorID:         actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}
