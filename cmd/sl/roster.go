package main

import (
	"context"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"studioline/internal/domain"
	"studioline/internal/engine"
)

func rosterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "roster",
		Short: "Manage the actor and crew rosters",
		Long:  "Roster records are snapshotted into roles and crew slots when assigned; later roster edits do not rewrite existing assignments.",
	}
	cmd.AddCommand(rosterImportCmd())
	cmd.AddCommand(rosterListCmd())
	cmd.AddCommand(rosterActorCmd())
	cmd.AddCommand(rosterCrewMemberCmd())
	cmd.AddCommand(rosterStatusCmd())
	return cmd
}

func rosterImportCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Upsert actors and crew from a YAML roster file",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			f, err := engine.ParseRosterYAML(data)
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				res, err := e.ImportRoster(ctx, f, actorID())
				if err != nil {
					return err
				}
				return printJSONOrTable(res)
			})
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "roster YAML file")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func rosterListCmd() *cobra.Command {
	var activeOnly, crew bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List roster actors, or crew with --crew",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if crew {
					items, err := e.ListCrewMembers(ctx, activeOnly)
					if err != nil {
						return err
					}
					rows := make([]table.Row, 0, len(items))
					for _, c := range items {
						rows = append(rows, table.Row{c.ID, c.DisplayName, c.Role, c.Email, c.Status})
					}
					return printTable(items, table.Row{"ID", "Name", "Role", "Email", "Status"}, rows)
				}
				items, err := e.ListActors(ctx, activeOnly)
				if err != nil {
					return err
				}
				rows := make([]table.Row, 0, len(items))
				for _, a := range items {
					rows = append(rows, table.Row{a.ID, a.DisplayName, a.Gender, a.AgeRange, strings.Join(a.VoiceTags, ", "), a.Status})
				}
				return printTable(items, table.Row{"ID", "Name", "Gender", "Age", "Voice", "Status"}, rows)
			})
		},
	}
	cmd.Flags().BoolVar(&activeOnly, "active", false, "only active records")
	cmd.Flags().BoolVar(&crew, "crew", false, "list the crew roster")
	return cmd
}

func rosterActorCmd() *cobra.Command {
	var a domain.RosterActor
	cmd := &cobra.Command{
		Use:   "actor",
		Short: "Create or replace a roster actor",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				res, err := e.UpsertActor(ctx, a, actorID())
				if err != nil {
					return err
				}
				return printJSONOrTable(res)
			})
		},
	}
	cmd.Flags().StringVar(&a.ID, "id", "", "actor id (generated when empty)")
	cmd.Flags().StringVar(&a.DisplayName, "name", "", "display name")
	cmd.Flags().StringVar(&a.Email, "email", "", "contact email")
	cmd.Flags().StringVar(&a.HeadshotURL, "headshot", "", "headshot URL")
	cmd.Flags().StringVar(&a.Gender, "gender", "", "gender")
	cmd.Flags().StringVar(&a.AgeRange, "age", "", "age range")
	cmd.Flags().StringSliceVar(&a.VoiceTags, "voice", nil, "voice tags")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func rosterCrewMemberCmd() *cobra.Command {
	var c domain.RosterCrew
	cmd := &cobra.Command{
		Use:   "crew-member",
		Short: "Create or replace a crew roster member",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				res, err := e.UpsertCrewMember(ctx, c, actorID())
				if err != nil {
					return err
				}
				return printJSONOrTable(res)
			})
		},
	}
	cmd.Flags().StringVar(&c.ID, "id", "", "member id (generated when empty)")
	cmd.Flags().StringVar(&c.DisplayName, "name", "", "display name")
	cmd.Flags().StringVar(&c.Email, "email", "", "contact email")
	cmd.Flags().StringVar(&c.HeadshotURL, "headshot", "", "headshot URL")
	cmd.Flags().StringVar(&c.Role, "role", "", "crew role, e.g. engineer")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func rosterStatusCmd() *cobra.Command {
	var crew bool
	cmd := &cobra.Command{
		Use:   "status <id> <active|inactive>",
		Short: "Activate or offboard a roster record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			status := domain.RosterStatus(args[1])
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if crew {
					return e.SetCrewMemberStatus(ctx, args[0], status, actorID())
				}
				return e.SetActorStatus(ctx, args[0], status, actorID())
			})
		},
	}
	cmd.Flags().BoolVar(&crew, "crew", false, "the id names a crew member")
	return cmd
}
