package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"studioline/internal/domain"
)

// Event types written by the workflow engine.
const (
	IntakeSubmitted      = "intake.submitted"
	IntakeGreenlit       = "intake.greenlit"
	ProductionCreated    = "production.created"
	ProductionStatus     = "production.status"
	ProductionReconciled = "production.reconciled"
	RoleAdded            = "role.added"
	RoleUpdated          = "role.updated"
	RoleAssigned         = "role.assigned"
	RoleContract         = "role.contract"
	RoleContractReverted = "role.contract.reverted"
	RoleDeleted          = "role.deleted"
	CrewAdded            = "crew.added"
	CrewUpdated          = "crew.updated"
	CrewAssigned         = "crew.assigned"
	CrewContract         = "crew.contract"
	CrewContractReverted = "crew.contract.reverted"
	CrewDeleted          = "crew.deleted"
	WorkflowStep         = "workflow.step"
	NotePosted           = "note.posted"
	NoticeSent           = "notice.sent"
	RosterUpserted       = "roster.upserted"
	RosterStatus         = "roster.status"
)

type Payload map[string]any

// Entry is one audit record. Entries are written inside the transaction of the
// mutation they describe so they commit or roll back together.
type Entry struct {
	Type         string
	ProductionID string
	EntityKind   string
	EntityID     string
	ActorID      string
	Payload      Payload
}

type Writer struct {
	Now func() time.Time
}

func (w Writer) Append(ctx context.Context, tx *sql.Tx, e Entry) (int64, error) {
	if tx == nil {
		return 0, errors.New("events: append requires a transaction")
	}
	if e.Type == "" || e.EntityKind == "" {
		return 0, errors.New("events: type and entity kind are required")
	}
	now := time.Now
	if w.Now != nil {
		now = w.Now
	}
	ts := now().UTC().Format(domain.TimeLayout)
	if e.Payload == nil {
		e.Payload = Payload{}
	}
	data, err := json.Marshal(e.Payload)
	if err != nil {
		return 0, fmt.Errorf("marshal event payload: %w", err)
	}
	actor := e.ActorID
	if actor == "" {
		actor = "system"
	}
	res, err := tx.ExecContext(ctx, `INSERT INTO events(ts,type,production_id,entity_kind,entity_id,actor_id,payload_json) VALUES (?,?,?,?,?,?,?)`,
		ts, e.Type, nullable(e.ProductionID), e.EntityKind, nullable(e.EntityID), actor, string(data))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
