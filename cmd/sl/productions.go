package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"studioline/internal/domain"
	"studioline/internal/engine"
)

func intakeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "intake",
		Short: "Submit and review intake forms",
	}
	cmd.AddCommand(intakeSubmitCmd())
	cmd.AddCommand(intakeListCmd())
	cmd.AddCommand(intakeShowCmd())
	return cmd
}

// intakeFile is the YAML/JSON shape accepted by intake submit --file.
type intakeFile struct {
	ClientType       string                   `yaml:"client_type"`
	ClientName       string                   `yaml:"client_name"`
	Email            string                   `yaml:"email"`
	ProjectTitle     string                   `yaml:"project_title"`
	WordCount        string                   `yaml:"word_count"`
	Style            string                   `yaml:"style"`
	Genres           []string                 `yaml:"genres"`
	CharacterDetails []domain.CharacterDetail `yaml:"character_details"`
	TimelinePrefs    string                   `yaml:"timeline_prefs"`
	Notes            string                   `yaml:"notes"`
}

func intakeSubmitCmd() *cobra.Command {
	var (
		file       string
		form       intakeFile
		characters []string
	)
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit an intake form",
		Long:  "Reads the form from --file (YAML or JSON) and lets flags override individual fields. Characters are given as name|gender|age|vocal style.",
		RunE: func(cmd *cobra.Command, args []string) error {
			in := intakeFile{}
			if file != "" {
				data, err := os.ReadFile(file)
				if err != nil {
					return err
				}
				if err := yaml.Unmarshal(data, &in); err != nil {
					return fmt.Errorf("parse %s: %w", file, err)
				}
			}
			overrideString(cmd, "client-type", &in.ClientType, form.ClientType)
			overrideString(cmd, "client-name", &in.ClientName, form.ClientName)
			overrideString(cmd, "email", &in.Email, form.Email)
			overrideString(cmd, "title", &in.ProjectTitle, form.ProjectTitle)
			overrideString(cmd, "word-count", &in.WordCount, form.WordCount)
			overrideString(cmd, "style", &in.Style, form.Style)
			overrideString(cmd, "timeline", &in.TimelinePrefs, form.TimelinePrefs)
			overrideString(cmd, "notes", &in.Notes, form.Notes)
			if cmd.Flags().Changed("genre") {
				in.Genres = form.Genres
			}
			if len(characters) > 0 {
				in.CharacterDetails = nil
				for _, raw := range characters {
					in.CharacterDetails = append(in.CharacterDetails, parseCharacter(raw))
				}
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				res, err := e.SubmitIntake(ctx, engine.IntakeInput{
					ClientType:       in.ClientType,
					ClientName:       in.ClientName,
					Email:            in.Email,
					ProjectTitle:     in.ProjectTitle,
					WordCount:        in.WordCount,
					Style:            in.Style,
					Genres:           in.Genres,
					CharacterDetails: in.CharacterDetails,
					TimelinePrefs:    in.TimelinePrefs,
					Notes:            in.Notes,
					ActorID:          actorID(),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(res)
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&file, "file", "", "intake form file (YAML or JSON)")
	f.StringVar(&form.ClientType, "client-type", "", "client type")
	f.StringVar(&form.ClientName, "client-name", "", "client name")
	f.StringVar(&form.Email, "email", "", "client email")
	f.StringVar(&form.ProjectTitle, "title", "", "project title")
	f.StringVar(&form.WordCount, "word-count", "", "word count, separators allowed")
	f.StringVar(&form.Style, "style", "", "production style, e.g. \"Duet Audio Drama\"")
	f.StringArrayVar(&form.Genres, "genre", nil, "genre (repeatable)")
	f.StringArrayVar(&characters, "character", nil, "character as name|gender|age|vocal style (repeatable)")
	f.StringVar(&form.TimelinePrefs, "timeline", "", "timeline preference as start|end dates")
	f.StringVar(&form.Notes, "notes", "", "free-form notes")
	return cmd
}

func overrideString(cmd *cobra.Command, flag string, dst *string, value string) {
	if cmd.Flags().Changed(flag) {
		*dst = value
	}
}

func parseCharacter(raw string) domain.CharacterDetail {
	parts := strings.SplitN(raw, "|", 4)
	for len(parts) < 4 {
		parts = append(parts, "")
	}
	return domain.CharacterDetail{
		Name:       strings.TrimSpace(parts[0]),
		Gender:     strings.TrimSpace(parts[1]),
		Age:        strings.TrimSpace(parts[2]),
		VocalStyle: strings.TrimSpace(parts[3]),
	}
}

func intakeListCmd() *cobra.Command {
	var f engine.PendingFilter
	var format, sort string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List intakes awaiting greenlight",
		RunE: func(cmd *cobra.Command, args []string) error {
			f.Format = domain.Format(format)
			f.Sort = domain.IntakeSort(sort)
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListPendingIntakes(ctx, f)
				if err != nil {
					return err
				}
				rows := make([]table.Row, 0, len(items))
				for _, in := range items {
					rows = append(rows, table.Row{in.RefID, in.ProjectTitle, in.Style, in.ClientName, len(in.CharacterDetails), in.CreatedAt})
				}
				return printTable(items, table.Row{"Ref", "Title", "Style", "Client", "Characters", "Submitted"}, rows)
			})
		},
	}
	cmd.Flags().StringVar(&format, "format", "", "format filter (Solo, Dual, Duet, Multi)")
	cmd.Flags().StringVar(&f.Search, "search", "", "match title, client or email")
	cmd.Flags().StringVar(&sort, "sort", "newest", "newest, oldest or title")
	cmd.Flags().IntVar(&f.Limit, "limit", 50, "maximum rows")
	return cmd
}

func intakeShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <intake>",
		Short: "Show an intake by id or INT reference",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				in, err := e.GetIntake(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(in)
			})
		},
	}
}

func greenlightCmd() *cobra.Command {
	var strict bool
	cmd := &cobra.Command{
		Use:   "greenlight <intake>",
		Short: "Turn an intake into an active production",
		Long:  "Safe to repeat: a second greenlight of the same intake returns the existing production unless --strict is set.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.Greenlight(ctx, engine.GreenlightOptions{IntakeID: args[0], ActorID: actorID(), Strict: strict})
				if err != nil {
					return err
				}
				return printProduction(p)
			})
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "fail when the intake was already greenlit")
	return cmd
}

func productionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "production",
		Aliases: []string{"prod"},
		Short:   "Inspect productions and change their status",
	}
	cmd.AddCommand(productionListCmd())
	cmd.AddCommand(productionShowCmd())
	cmd.AddCommand(productionStatusCmd())
	return cmd
}

func productionListCmd() *cobra.Command {
	var q engine.ProductionQuery
	var view, status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List productions",
		RunE: func(cmd *cobra.Command, args []string) error {
			switch view {
			case "active":
				archived := false
				q.Archived = &archived
			case "archived":
				archived := true
				q.Archived = &archived
			case "all":
			default:
				return fmt.Errorf("--view must be active, archived or all")
			}
			q.Status = domain.ProductionStatus(status)
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListProductions(ctx, q)
				if err != nil {
					return err
				}
				rows := make([]table.Row, 0, len(items))
				for _, p := range items {
					rows = append(rows, table.Row{p.ProjectRefID, p.Title, p.Style, p.ProductionStatus, p.ContractData.ProductionStep, p.UpdatedAt})
				}
				return printTable(items, table.Row{"Ref", "Title", "Style", "Status", "Step", "Updated"}, rows)
			})
		},
	}
	cmd.Flags().StringVar(&view, "view", "active", "active, archived or all")
	cmd.Flags().StringVar(&status, "status", "", "status filter")
	cmd.Flags().StringVar(&q.Search, "search", "", "match title or reference")
	cmd.Flags().IntVar(&q.Limit, "limit", 50, "maximum rows")
	return cmd
}

func productionShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <production>",
		Short: "Show a production with manifests and tracker",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.GetProduction(ctx, args[0])
				if err != nil {
					return err
				}
				return printProduction(p)
			})
		},
	}
}

func printProduction(p domain.Production) error {
	if viper.GetBool("json") {
		return printJSON(p)
	}
	fmt.Printf("%s  %s  [%s / %s]  v%d\n", p.ProjectRefID, p.Title, p.ProductionStatus, p.ContractData.ProductionStep, p.Version)
	rows := make([]table.Row, 0, len(p.CastingManifest))
	for _, r := range p.CastingManifest {
		rows = append(rows, table.Row{r.RoleID, r.Name, r.Status, talentName(r.ActorRequest.Primary), talentName(r.ActorRequest.Backup), r.Contract.Status, r.Version})
	}
	if err := printTable(nil, table.Row{"Role", "Name", "Slot", "Primary", "Backup", "Contract", "Version"}, rows); err != nil {
		return err
	}
	if len(p.CrewManifest) > 0 {
		crew := make([]table.Row, 0, len(p.CrewManifest))
		for key, c := range p.CrewManifest {
			crew = append(crew, table.Row{key, c.Name, c.Email, c.Status, c.Version})
		}
		if err := printTable(nil, table.Row{"Position", "Name", "Email", "Contract", "Version"}, crew); err != nil {
			return err
		}
	}
	for _, step := range domain.Steps {
		if ts, ok := p.ContractData.StepTimestamps[step]; ok {
			fmt.Printf("  %-16s %s\n", step, ts)
		}
	}
	return nil
}

func talentName(t *domain.TalentRef) string {
	if t == nil {
		return "-"
	}
	return t.DisplayName
}

func productionStatusCmd() *cobra.Command {
	var expected int64
	cmd := &cobra.Command{
		Use:   "status <production> <status>",
		Short: "Set the production status; Complete, Cancelled and Paid archive it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.SetProductionStatus(ctx, engine.StatusOptions{
					ProductionID:    args[0],
					Status:          domain.ProductionStatus(args[1]),
					ExpectedVersion: expected,
					ActorID:         actorID(),
				})
				if err != nil {
					return err
				}
				return printProduction(p)
			})
		},
	}
	cmd.Flags().Int64Var(&expected, "expected-version", 0, "reject the write unless the production is at this version")
	return cmd
}

func stepCmd() *cobra.Command {
	var expected int64
	var force bool
	cmd := &cobra.Command{
		Use:   "step <production> <step>",
		Short: "Move the workflow tracker",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.AdvanceStep(ctx, engine.AdvanceStepOptions{
					ProductionID:    args[0],
					Step:            domain.ProductionStep(args[1]),
					ExpectedVersion: expected,
					Force:           force,
					ActorID:         actorID(),
				})
				if err != nil {
					return err
				}
				return printProduction(p)
			})
		},
	}
	cmd.Flags().Int64Var(&expected, "expected-version", 0, "reject the write unless the production is at this version")
	cmd.Flags().BoolVar(&force, "force", false, "bypass the step policy")
	return cmd
}

func noteCmd() *cobra.Command {
	var author string
	cmd := &cobra.Command{
		Use:   "note <production> <text>",
		Short: "Append to the correspondence log",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				entry, err := e.PostNote(ctx, engine.NoteOptions{
					ProductionID: args[0],
					Author:       author,
					Text:         strings.Join(args[1:], " "),
					ActorID:      actorID(),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(entry)
			})
		},
	}
	cmd.Flags().StringVar(&author, "author", "", "author shown in the log (defaults to the actor id)")
	return cmd
}

func targetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "targets <production>",
		Short: "List the unique contact emails of a production",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				emails, err := e.CollectNotificationTargets(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(emails)
				}
				for _, addr := range emails {
					fmt.Println(addr)
				}
				return nil
			})
		},
	}
}

func noticeCmd() *cobra.Command {
	var subject, body string
	cmd := &cobra.Command{
		Use:   "notice <production>",
		Short: "Send a bulk notice to every notification target",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				res, err := e.SendBulkNotice(ctx, engine.NoticeOptions{
					ProductionID: args[0],
					Subject:      subject,
					Body:         body,
					ActorID:      actorID(),
				})
				if engine.KindOf(err) == engine.KindUnrecorded {
					logger.Error("notice went out but is missing from the log; do not resend", zap.Error(err))
					if perr := printJSONOrTable(res); perr != nil {
						return perr
					}
				}
				if err != nil {
					return err
				}
				return printJSONOrTable(res)
			})
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "notice subject")
	cmd.Flags().StringVar(&body, "body", "", "notice body")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}

func eventsCmd() *cobra.Command {
	var q engine.EventQuery
	var cursor string
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Show the audit log, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cursor != "" {
				id, err := strconv.ParseInt(cursor, 10, 64)
				if err != nil {
					return fmt.Errorf("invalid --cursor %q", cursor)
				}
				q.Cursor = id
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListEvents(ctx, q)
				if err != nil {
					return err
				}
				rows := make([]table.Row, 0, len(items))
				for _, evt := range items {
					rows = append(rows, table.Row{evt.ID, evt.TS, evt.Type, evt.EntityKind, evt.EntityID, evt.ActorID})
				}
				return printTable(items, table.Row{"ID", "When", "Type", "Kind", "Entity", "Actor"}, rows)
			})
		},
	}
	cmd.Flags().StringVar(&q.ProductionID, "production", "", "production id or reference")
	cmd.Flags().StringVar(&q.Type, "type", "", "event type filter")
	cmd.Flags().StringVar(&q.EntityKind, "entity-kind", "", "entity kind filter")
	cmd.Flags().StringVar(&q.EntityID, "entity-id", "", "entity id filter")
	cmd.Flags().StringVar(&cursor, "cursor", "", "only events older than this id")
	cmd.Flags().IntVarP(&q.Limit, "limit", "n", 20, "number of events")
	return cmd
}
