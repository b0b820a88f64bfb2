package engine

import (
	"context"
	"database/sql"
	"errors"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"studioline/internal/config"
	"studioline/internal/domain"
	"studioline/internal/events"
	"studioline/internal/repo"
)

const (
	maxGenres        = 3
	maxTimelineDates = 3
	dateLayout       = "2006-01-02"
)

// IntakeInput is an intake form as typed by the operator or client.
type IntakeInput struct {
	ClientType       string
	ClientName       string
	Email            string
	ProjectTitle     string
	WordCount        string
	Style            string
	Genres           []string
	CharacterDetails []domain.CharacterDetail
	TimelinePrefs    string
	Notes            string
	ActorID          string
}

// SubmitIntake validates and stores a new intake with status NEW.
func (e Engine) SubmitIntake(ctx context.Context, in IntakeInput) (domain.Intake, error) {
	intake, format, err := validateIntake(in, e.cfg(), e.now())
	if err != nil {
		return domain.Intake{}, err
	}
	err = e.withTx(ctx, "submit_intake", func(ctx context.Context, tx *sql.Tx) error {
		ref, err := e.Repo.NextRef(ctx, tx, repo.PrefixIntake)
		if err != nil {
			return err
		}
		intake.ID = uuid.NewString()
		intake.RefID = ref
		intake.Status = domain.IntakeNew
		intake.CreatedAt = e.stamp()
		if err := e.Repo.InsertIntake(ctx, tx, intake, format); err != nil {
			return err
		}
		return e.appendEvent(ctx, tx, events.Entry{
			Type:       events.IntakeSubmitted,
			EntityKind: "intake",
			EntityID:   intake.ID,
			ActorID:    in.ActorID,
			Payload:    events.Payload{"ref": intake.RefID, "format": format, "title": intake.ProjectTitle},
		})
	})
	if err != nil {
		return domain.Intake{}, err
	}
	return intake, nil
}

func (e Engine) GetIntake(ctx context.Context, id string) (domain.Intake, error) {
	var in domain.Intake
	err := e.run(ctx, "get_intake", func(ctx context.Context) error {
		var err error
		in, err = e.Repo.GetIntake(ctx, id)
		return storeErr("intake", id, 0, err)
	})
	return in, err
}

type PendingFilter struct {
	Format domain.Format
	Search string
	Sort   domain.IntakeSort
	Limit  int
}

// ListPendingIntakes lists intakes still awaiting review. On store failure it
// returns an empty list along with the error.
func (e Engine) ListPendingIntakes(ctx context.Context, f PendingFilter) ([]domain.Intake, error) {
	var format domain.Format
	if f.Format != "" {
		var ok bool
		if format, ok = domain.ParseFormat(string(f.Format)); !ok {
			return []domain.Intake{}, invalid("format", "unknown format %q", f.Format)
		}
	}
	sort, ok := domain.ParseIntakeSort(string(f.Sort))
	if !ok {
		return []domain.Intake{}, invalid("sort", "unknown sort %q", f.Sort)
	}
	var res []domain.Intake
	err := e.run(ctx, "list_pending_intakes", func(ctx context.Context) error {
		var err error
		res, err = e.Repo.ListIntakes(ctx, repo.IntakeFilters{
			Status: domain.IntakeNew,
			Format: format,
			Search: f.Search,
			Sort:   sort,
			Limit:  f.Limit,
		})
		return err
	})
	if err != nil || res == nil {
		return []domain.Intake{}, err
	}
	return res, nil
}

func validateIntake(in IntakeInput, cfg *config.Config, now time.Time) (domain.Intake, domain.Format, error) {
	var out domain.Intake
	ct, ok := domain.ParseClientType(in.ClientType)
	if !ok {
		return out, "", invalid("client_type", "must be one of Publisher, Production Company, Indie Author, Talent Agency")
	}
	out.ClientType = ct
	if out.ClientName = strings.TrimSpace(in.ClientName); out.ClientName == "" {
		return out, "", invalid("client_name", "is required")
	}
	email, err := parseEmail(in.Email)
	if err != nil {
		return out, "", invalid("email", "%v", err)
	}
	if email == "" {
		return out, "", invalid("email", "is required")
	}
	out.Email = email
	if out.ProjectTitle = strings.TrimSpace(in.ProjectTitle); out.ProjectTitle == "" {
		return out, "", invalid("project_title", "is required")
	}
	words, err := ParseWordCount(in.WordCount)
	if err != nil {
		return out, "", invalid("word_count", "%v", err)
	}
	out.WordCount = words

	format, _, err := domain.ParseStyle(in.Style)
	if err != nil {
		return out, "", invalid("style", "%v", err)
	}
	out.Style = strings.TrimSpace(in.Style)

	genres := make([]string, 0, len(in.Genres))
	for _, g := range in.Genres {
		genres = append(genres, strings.TrimSpace(g))
	}
	for len(genres) > 0 && genres[len(genres)-1] == "" {
		genres = genres[:len(genres)-1]
	}
	if len(genres) == 0 || genres[0] == "" {
		return out, "", invalid("genres", "a primary genre is required")
	}
	if len(genres) > maxGenres {
		return out, "", invalid("genres", "at most %d genres", maxGenres)
	}
	out.Genres = genres

	want := cfg.CharacterCount(format)
	if len(in.CharacterDetails) != want {
		return out, "", invalid("character_details", "%s requires %d character(s), got %d", format, want, len(in.CharacterDetails))
	}
	out.CharacterDetails = make([]domain.CharacterDetail, len(in.CharacterDetails))
	for i, cd := range in.CharacterDetails {
		cd.Name = strings.TrimSpace(cd.Name)
		cd.Gender = strings.TrimSpace(cd.Gender)
		cd.Age = strings.TrimSpace(cd.Age)
		cd.VocalStyle = strings.TrimSpace(cd.VocalStyle)
		out.CharacterDetails[i] = cd
	}

	timeline, err := parseTimeline(in.TimelinePrefs, now)
	if err != nil {
		return out, "", invalid("timeline_prefs", "%v", err)
	}
	out.TimelinePrefs = timeline
	out.Notes = strings.TrimSpace(in.Notes)
	return out, format, nil
}

// ParseWordCount accepts operator text such as "65,000", "65 000" or
// "65.000". A dot only separates thousands: "65.5" is rejected.
func ParseWordCount(s string) (int, error) {
	cleaned := strings.NewReplacer(",", "", "_", "", " ", "").Replace(strings.TrimSpace(s))
	if cleaned == "" {
		return 0, errors.New("is required")
	}
	if groups := strings.Split(cleaned, "."); len(groups) > 1 {
		for _, g := range groups[1:] {
			if len(g) != 3 {
				return 0, errors.New("must be a whole number")
			}
		}
		cleaned = strings.Join(groups, "")
	}
	n, err := strconv.Atoi(cleaned)
	if err != nil {
		return 0, errors.New("must be a whole number")
	}
	if n < 0 {
		return 0, errors.New("must not be negative")
	}
	return n, nil
}

// parseTimeline checks a pipe-delimited list of preferred start dates. The
// first date is required and must be after today.
func parseTimeline(s string, now time.Time) (string, error) {
	parts := strings.Split(s, "|")
	dates := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			dates = append(dates, p)
		}
	}
	if len(dates) == 0 {
		return "", errors.New("at least one preferred date is required")
	}
	if len(dates) > maxTimelineDates {
		return "", errors.New("at most 3 preferred dates")
	}
	today := now.UTC().Format(dateLayout)
	for i, d := range dates {
		if _, err := time.Parse(dateLayout, d); err != nil {
			return "", errors.New("dates must be YYYY-MM-DD")
		}
		if i == 0 && d <= today {
			return "", errors.New("first preferred date must be after today")
		}
	}
	return strings.Join(dates, "|"), nil
}

// parseEmail returns the bare address, or "" for blank input.
func parseEmail(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", nil
	}
	addr, err := mail.ParseAddress(s)
	if err != nil {
		return "", errors.New("not a valid email address")
	}
	return addr.Address, nil
}
