package domain

// TimeLayout is the stored timestamp form. It is fixed-width in UTC so stored
// values sort lexically in time order.
const TimeLayout = "2006-01-02T15:04:05.000Z07:00"

type CharacterDetail struct {
	Name       string `json:"name" yaml:"name"`
	Gender     string `json:"gender" yaml:"gender"`
	Age        string `json:"age" yaml:"age"`
	VocalStyle string `json:"vocal_style" yaml:"vocal_style"`
}

type Intake struct {
	ID               string            `json:"id"`
	RefID            string            `json:"intake_ref_id"`
	ClientType       ClientType        `json:"client_type"`
	ClientName       string            `json:"client_name"`
	Email            string            `json:"email"`
	ProjectTitle     string            `json:"project_title"`
	WordCount        int               `json:"word_count"`
	Style            string            `json:"style"`
	Genres           []string          `json:"genres"`
	CharacterDetails []CharacterDetail `json:"character_details"`
	TimelinePrefs    string            `json:"timeline_prefs"`
	Notes            string            `json:"notes,omitempty"`
	Status           IntakeStatus      `json:"status"`
	CreatedAt        string            `json:"created_at" format:"date-time"`
}

// Format returns the base format of the intake style, or "" if unparseable.
func (i Intake) Format() Format {
	f, _, err := ParseStyle(i.Style)
	if err != nil {
		return ""
	}
	return f
}

// TalentRef is a snapshot of a roster record copied into a manifest at
// assignment time. It is never joined back to the roster.
type TalentRef struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	HeadshotURL string `json:"headshot_url,omitempty"`
	Email       string `json:"email,omitempty"`
}

type ActorRequest struct {
	Primary *TalentRef `json:"primary"`
	Backup  *TalentRef `json:"backup"`
}

type Contract struct {
	Status ContractStatus `json:"status"`
	Email  string         `json:"email"`
}

type RoleSlot struct {
	RoleID       string       `json:"role_id"`
	ProductionID string       `json:"production_id"`
	Position     int          `json:"position"`
	Name         string       `json:"name"`
	Gender       string       `json:"gender"`
	Age          string       `json:"age"`
	VocalSpecs   string       `json:"vocal_specs"`
	Status       SlotStatus   `json:"status"`
	ActorRequest ActorRequest `json:"actor_request"`
	Contract     Contract     `json:"contract"`
	Version      int64        `json:"version"`
	UpdatedAt    string       `json:"updated_at" format:"date-time"`
}

// Locked reports whether the role details are frozen by an active contract.
func (r RoleSlot) Locked() bool {
	return r.Contract.Status == ContractActive
}

type CrewSlot struct {
	PositionKey  string         `json:"position_key"`
	ProductionID string         `json:"production_id"`
	Name         string         `json:"name"`
	Email        string         `json:"email"`
	Status       ContractStatus `json:"status"`
	Assignee     *TalentRef     `json:"assignee,omitempty"`
	Version      int64          `json:"version"`
	UpdatedAt    string         `json:"updated_at" format:"date-time"`
}

func (c CrewSlot) Locked() bool {
	return c.Status == ContractActive
}

type WorkflowState struct {
	ProductionStep ProductionStep            `json:"production_step"`
	StepTimestamps map[ProductionStep]string `json:"step_timestamps"`
}

type CorrespondenceEntry struct {
	ID           int64  `json:"id"`
	ProductionID string `json:"production_id"`
	Author       string `json:"author"`
	Text         string `json:"text"`
	Timestamp    string `json:"timestamp" format:"date-time"`
}

type Production struct {
	ID               string                `json:"id"`
	ProjectRefID     string                `json:"project_ref_id"`
	IntakeID         string                `json:"intake_id"`
	Title            string                `json:"title"`
	Style            string                `json:"style"`
	ProductionStatus ProductionStatus      `json:"production_status"`
	CastingManifest  []RoleSlot            `json:"casting_manifest"`
	CrewManifest     map[string]CrewSlot   `json:"crew_manifest"`
	ContractData     WorkflowState         `json:"contract_data"`
	Correspondence   []CorrespondenceEntry `json:"project_correspondence"`
	Version          int64                 `json:"version"`
	CreatedAt        string                `json:"created_at" format:"date-time"`
	UpdatedAt        string                `json:"updated_at" format:"date-time"`
	GreenlitAt       string                `json:"greenlit_at" format:"date-time"`
}

// Archived reports whether the production reached a terminal status.
func (p Production) Archived() bool {
	return p.ProductionStatus.Terminal()
}

func (p Production) Format() Format {
	f, _, err := ParseStyle(p.Style)
	if err != nil {
		return ""
	}
	return f
}

type RosterActor struct {
	ID          string       `json:"id"`
	DisplayName string       `json:"display_name" yaml:"display_name"`
	HeadshotURL string       `json:"headshot_url,omitempty" yaml:"headshot_url"`
	Email       string       `json:"email,omitempty" yaml:"email"`
	Gender      string       `json:"gender,omitempty" yaml:"gender"`
	AgeRange    string       `json:"age_range,omitempty" yaml:"age_range"`
	VoiceTags   []string     `json:"voice_tags,omitempty" yaml:"voice_tags"`
	Status      RosterStatus `json:"status" yaml:"status"`
	UpdatedAt   string       `json:"updated_at,omitempty" yaml:"-"`
}

func (a RosterActor) Ref() TalentRef {
	return TalentRef{ID: a.ID, DisplayName: a.DisplayName, HeadshotURL: a.HeadshotURL, Email: a.Email}
}

type RosterCrew struct {
	ID          string       `json:"id"`
	DisplayName string       `json:"display_name" yaml:"display_name"`
	HeadshotURL string       `json:"headshot_url,omitempty" yaml:"headshot_url"`
	Email       string       `json:"email,omitempty" yaml:"email"`
	Role        string       `json:"role,omitempty" yaml:"role"`
	Status      RosterStatus `json:"status" yaml:"status"`
	UpdatedAt   string       `json:"updated_at,omitempty" yaml:"-"`
}

func (c RosterCrew) Ref() TalentRef {
	return TalentRef{ID: c.ID, DisplayName: c.DisplayName, HeadshotURL: c.HeadshotURL, Email: c.Email}
}

type Event struct {
	ID           int64  `json:"id"`
	TS           string `json:"ts" format:"date-time"`
	Type         string `json:"type"`
	ProductionID string `json:"production_id,omitempty"`
	EntityKind   string `json:"entity_kind"`
	EntityID     string `json:"entity_id,omitempty"`
	ActorID      string `json:"actor_id"`
	Payload      string `json:"payload_json"`
}

type APIKey struct {
	ID         string `json:"id"`
	ActorID    string `json:"actor_id"`
	Name       string `json:"name,omitempty"`
	KeyHash    string `json:"key_hash"`
	CreatedAt  string `json:"created_at" format:"date-time"`
	LastUsedAt string `json:"last_used_at,omitempty"`
	RevokedAt  string `json:"revoked_at,omitempty"`
}
