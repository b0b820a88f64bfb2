package engine

import (
	"context"
	"database/sql"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"studioline/internal/domain"
	"studioline/internal/events"
	"studioline/internal/metrics"
	"studioline/internal/notify"
)

const maxNoteLength = 10000

type NoteOptions struct {
	ProductionID string
	Author       string
	Text         string
	ActorID      string
}

// PostNote appends to the correspondence log. Archived productions still
// accept notes.
func (e Engine) PostNote(ctx context.Context, opts NoteOptions) (domain.CorrespondenceEntry, error) {
	text := strings.TrimSpace(opts.Text)
	if text == "" {
		return domain.CorrespondenceEntry{}, invalid("text", "is required")
	}
	if len(text) > maxNoteLength {
		return domain.CorrespondenceEntry{}, invalid("text", "must be at most %d characters", maxNoteLength)
	}
	author := strings.TrimSpace(opts.Author)
	if author == "" {
		author = opts.ActorID
	}
	if author == "" {
		return domain.CorrespondenceEntry{}, invalid("author", "is required")
	}
	var entry domain.CorrespondenceEntry
	err := e.withTx(ctx, "post_note", func(ctx context.Context, tx *sql.Tx) error {
		p, err := e.Repo.GetProductionRow(ctx, tx, opts.ProductionID)
		if err != nil {
			return storeErr("production", opts.ProductionID, 0, err)
		}
		entry, err = e.Repo.InsertNote(ctx, tx, p.ID, author, text, e.stamp())
		if err != nil {
			return err
		}
		return e.appendEvent(ctx, tx, events.Entry{
			Type:         events.NotePosted,
			ProductionID: p.ID,
			EntityKind:   "note",
			EntityID:     strconv.FormatInt(entry.ID, 10),
			ActorID:      opts.ActorID,
			Payload:      events.Payload{"author": author},
		})
	})
	return entry, err
}

// CollectNotificationTargets returns the unique contact emails of a production.
func (e Engine) CollectNotificationTargets(ctx context.Context, productionID string) ([]string, error) {
	p, err := e.GetProduction(ctx, productionID)
	if err != nil {
		return []string{}, err
	}
	return NotificationTargets(p), nil
}

// NotificationTargets gathers non-empty contract emails from the casting
// manifest in manifest order, then crew emails in key order. Duplicates are
// matched case-insensitively and the first spelling wins.
func NotificationTargets(p domain.Production) []string {
	seen := map[string]bool{}
	out := []string{}
	add := func(email string) {
		email = strings.TrimSpace(email)
		if email == "" {
			return
		}
		key := strings.ToLower(email)
		if seen[key] {
			return
		}
		seen[key] = true
		out = append(out, email)
	}
	for _, role := range p.CastingManifest {
		add(role.Contract.Email)
	}
	keys := make([]string, 0, len(p.CrewManifest))
	for k := range p.CrewManifest {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		add(p.CrewManifest[k].Email)
	}
	return out
}

type NoticeOptions struct {
	ProductionID string
	Subject      string
	Body         string
	ActorID      string
}

type NoticeResult struct {
	Recipients []string                   `json:"recipients"`
	Entry      domain.CorrespondenceEntry `json:"entry"`
}

// SendBulkNotice delivers one notice to every notification target and records
// it in the correspondence log. When delivery succeeds but the record write
// fails, the recipients are still returned with an UnrecordedNoticeError.
func (e Engine) SendBulkNotice(ctx context.Context, opts NoticeOptions) (NoticeResult, error) {
	subject := strings.TrimSpace(opts.Subject)
	if subject == "" {
		return NoticeResult{}, invalid("subject", "is required")
	}
	p, err := e.GetProduction(ctx, opts.ProductionID)
	if err != nil {
		return NoticeResult{}, err
	}
	targets := NotificationTargets(p)
	if len(targets) == 0 {
		return NoticeResult{}, precondition("no_targets", "production %s has no contact emails to notify", p.ProjectRefID)
	}
	sender := opts.ActorID
	if sender == "" {
		sender = "system"
	}
	notice := notify.Notice{
		ProductionID: p.ID,
		ProjectRefID: p.ProjectRefID,
		Title:        p.Title,
		Subject:      subject,
		Body:         strings.TrimSpace(opts.Body),
		Recipients:   targets,
		SentBy:       sender,
		SentAt:       e.stamp(),
	}
	if err := e.notifier().Send(ctx, notice); err != nil {
		e.log().Error("notice delivery failed", zap.String("production", p.ProjectRefID), zap.Error(err))
		return NoticeResult{}, &DeliveryError{Err: err}
	}
	metrics.ObserveNotice(len(targets))

	var entry domain.CorrespondenceEntry
	err = e.withTx(ctx, "record_notice", func(ctx context.Context, tx *sql.Tx) error {
		text := "Notice sent to " + strings.Join(targets, ", ") + ": " + subject
		var err error
		entry, err = e.Repo.InsertNote(ctx, tx, p.ID, sender, text, notice.SentAt)
		if err != nil {
			return err
		}
		return e.appendEvent(ctx, tx, events.Entry{
			Type:         events.NoticeSent,
			ProductionID: p.ID,
			EntityKind:   "production",
			EntityID:     p.ID,
			ActorID:      opts.ActorID,
			Payload:      events.Payload{"subject": subject, "recipients": len(targets)},
		})
	})
	if err != nil {
		e.log().Error("notice delivered but not recorded",
			zap.String("production", p.ProjectRefID),
			zap.Strings("recipients", targets),
			zap.Error(err))
		return NoticeResult{Recipients: targets}, &UnrecordedNoticeError{Recipients: targets, Err: err}
	}
	return NoticeResult{Recipients: targets, Entry: entry}, nil
}
