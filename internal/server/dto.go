package server

import (
	"studioline/internal/domain"
)

// Request payloads. Optional fields carry omitempty so that domain validation,
// not the schema, decides what is missing.

type SubmitIntakeRequest struct {
	ClientType       string                   `json:"client_type,omitempty" example:"Indie Author"`
	ClientName       string                   `json:"client_name,omitempty"`
	Email            string                   `json:"email,omitempty"`
	ProjectTitle     string                   `json:"project_title,omitempty"`
	WordCount        string                   `json:"word_count,omitempty" example:"65,000"`
	Style            string                   `json:"style,omitempty" example:"Duet Audio Drama"`
	Genres           []string                 `json:"genres,omitempty"`
	CharacterDetails []domain.CharacterDetail `json:"character_details,omitempty"`
	TimelinePrefs    string                   `json:"timeline_prefs,omitempty" example:"2025-09-01|2025-10-01"`
	Notes            string                   `json:"notes,omitempty"`
}

type SetStatusRequest struct {
	Status          string `json:"status" enum:"Pre-Production,Recording,Post-Production,Review,Final Delivery,Complete,Cancelled,Paid"`
	ExpectedVersion int64  `json:"expected_version,omitempty"`
}

type AdvanceStepRequest struct {
	Step            string `json:"step" enum:"Pre-Production,Recording,Post-Production,Review,Final Delivery"`
	ExpectedVersion int64  `json:"expected_version,omitempty"`
	Force           bool   `json:"force,omitempty"`
}

type AddRoleRequest struct {
	Name       string `json:"name,omitempty"`
	Gender     string `json:"gender,omitempty"`
	Age        string `json:"age,omitempty"`
	VocalSpecs string `json:"vocal_specs,omitempty"`
}

type UpdateRoleRequest struct {
	Name            *string `json:"name,omitempty"`
	Gender          *string `json:"gender,omitempty"`
	Age             *string `json:"age,omitempty"`
	VocalSpecs      *string `json:"vocal_specs,omitempty"`
	ContractEmail   *string `json:"contract_email,omitempty"`
	ExpectedVersion int64   `json:"expected_version,omitempty"`
}

type AssignActorRequest struct {
	TalentID        string `json:"talent_id"`
	Slot            string `json:"slot" enum:"primary,backup"`
	ExpectedVersion int64  `json:"expected_version,omitempty"`
}

type ContractRequest struct {
	Status          string `json:"status" enum:"Draft,Active"`
	ExpectedVersion int64  `json:"expected_version,omitempty"`
	Force           bool   `json:"force,omitempty"`
}

type AddCrewRequest struct {
	PositionKey string `json:"position_key"`
	Name        string `json:"name,omitempty"`
	Email       string `json:"email,omitempty"`
}

type UpdateCrewRequest struct {
	Name            *string `json:"name,omitempty"`
	Email           *string `json:"email,omitempty"`
	ExpectedVersion int64   `json:"expected_version,omitempty"`
}

type AssignCrewRequest struct {
	MemberID        string `json:"member_id"`
	ExpectedVersion int64  `json:"expected_version,omitempty"`
}

type NoteRequest struct {
	Author string `json:"author,omitempty"`
	Text   string `json:"text"`
}

type NoticeRequest struct {
	Subject string `json:"subject"`
	Body    string `json:"body,omitempty"`
}

type UpsertActorRequest struct {
	ID          string   `json:"id,omitempty"`
	DisplayName string   `json:"display_name"`
	HeadshotURL string   `json:"headshot_url,omitempty"`
	Email       string   `json:"email,omitempty"`
	Gender      string   `json:"gender,omitempty"`
	AgeRange    string   `json:"age_range,omitempty"`
	VoiceTags   []string `json:"voice_tags,omitempty"`
	Status      string   `json:"status,omitempty" enum:"active,inactive"`
}

type UpsertCrewMemberRequest struct {
	ID          string `json:"id,omitempty"`
	DisplayName string `json:"display_name"`
	HeadshotURL string `json:"headshot_url,omitempty"`
	Email       string `json:"email,omitempty"`
	Role        string `json:"role,omitempty"`
	Status      string `json:"status,omitempty" enum:"active,inactive"`
}

type RosterStatusRequest struct {
	Status string `json:"status" enum:"active,inactive"`
}

type RosterImportRequest struct {
	Actors []UpsertActorRequest      `json:"actors,omitempty"`
	Crew   []UpsertCrewMemberRequest `json:"crew,omitempty"`
}

type DevLoginRequest struct {
	ActorID string `json:"actor_id"`
}

// Response payloads

type DevLoginResponse struct {
	Token string `json:"token"`
}

type WhoAmIResponse struct {
	ActorID string `json:"actor_id"`
	Source  string `json:"source" enum:"jwt,api_key,actor_header"`
}

type TargetsResponse struct {
	ProductionID string   `json:"production_id"`
	Emails       []string `json:"emails"`
}

type EventResponse struct {
	ID           int64          `json:"id"`
	TS           string         `json:"ts" format:"date-time"`
	Type         string         `json:"type"`
	ProductionID string         `json:"production_id,omitempty"`
	EntityKind   string         `json:"entity_kind"`
	EntityID     string         `json:"entity_id,omitempty"`
	ActorID      string         `json:"actor_id"`
	Payload      map[string]any `json:"payload"`
}

type paginatedEvents struct {
	Items      []EventResponse `json:"items"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

// Conversion helpers

func (r UpsertActorRequest) actor() domain.RosterActor {
	return domain.RosterActor{
		ID:          r.ID,
		DisplayName: r.DisplayName,
		HeadshotURL: r.HeadshotURL,
		Email:       r.Email,
		Gender:      r.Gender,
		AgeRange:    r.AgeRange,
		VoiceTags:   r.VoiceTags,
		Status:      domain.RosterStatus(r.Status),
	}
}

func (r UpsertCrewMemberRequest) member() domain.RosterCrew {
	return domain.RosterCrew{
		ID:          r.ID,
		DisplayName: r.DisplayName,
		HeadshotURL: r.HeadshotURL,
		Email:       r.Email,
		Role:        r.Role,
		Status:      domain.RosterStatus(r.Status),
	}
}
