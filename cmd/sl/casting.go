package main

import (
	"context"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"studioline/internal/domain"
	"studioline/internal/engine"
)

func roleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "role",
		Short: "Manage the casting manifest",
		Long:  "Roles are edited while their contract is Draft. Setting the contract Active locks the role details and the primary actor until it is reverted.",
	}
	cmd.AddCommand(roleAddCmd())
	cmd.AddCommand(roleUpdateCmd())
	cmd.AddCommand(roleAssignCmd())
	cmd.AddCommand(roleContractCmd())
	cmd.AddCommand(roleDeleteCmd())
	cmd.AddCommand(roleMatchCmd())
	return cmd
}

func roleAddCmd() *cobra.Command {
	var opts engine.AddRoleOptions
	cmd := &cobra.Command{
		Use:   "add <production>",
		Short: "Add a role",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ProductionID = args[0]
			opts.ActorID = actorID()
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				role, err := e.AddRole(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(role)
			})
		},
	}
	cmd.Flags().StringVar(&opts.Name, "name", "", "character name")
	cmd.Flags().StringVar(&opts.Gender, "gender", "", "gender")
	cmd.Flags().StringVar(&opts.Age, "age", "", "age range")
	cmd.Flags().StringVar(&opts.VocalSpecs, "vocal", "", "vocal specs")
	return cmd
}

func roleUpdateCmd() *cobra.Command {
	var name, gender, age, vocal, email string
	var expected int64
	cmd := &cobra.Command{
		Use:   "update <production> <role>",
		Short: "Edit a Draft role",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			upd := engine.RoleSpecUpdate{
				ProductionID:    args[0],
				RoleID:          args[1],
				Name:            optionalString(cmd, "name", name),
				Gender:          optionalString(cmd, "gender", gender),
				Age:             optionalString(cmd, "age", age),
				VocalSpecs:      optionalString(cmd, "vocal", vocal),
				ContractEmail:   optionalString(cmd, "contract-email", email),
				ExpectedVersion: expected,
				ActorID:         actorID(),
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				role, err := e.UpdateRoleSpec(ctx, upd)
				if err != nil {
					return err
				}
				return printJSONOrTable(role)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "character name")
	cmd.Flags().StringVar(&gender, "gender", "", "gender")
	cmd.Flags().StringVar(&age, "age", "", "age range")
	cmd.Flags().StringVar(&vocal, "vocal", "", "vocal specs")
	cmd.Flags().StringVar(&email, "contract-email", "", "contract email")
	cmd.Flags().Int64Var(&expected, "expected-version", 0, "reject the write unless the role is at this version")
	return cmd
}

func roleAssignCmd() *cobra.Command {
	var slot string
	var expected int64
	cmd := &cobra.Command{
		Use:   "assign <production> <role> <actor>",
		Short: "Place a roster actor in the primary or backup slot",
		Long:  "Assigning the actor that already holds the slot clears it.",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				role, err := e.AssignActor(ctx, engine.AssignActorOptions{
					ProductionID:    args[0],
					RoleID:          args[1],
					TalentID:        args[2],
					Slot:            domain.SlotType(slot),
					ExpectedVersion: expected,
					ActorID:         actorID(),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(role)
			})
		},
	}
	cmd.Flags().StringVar(&slot, "slot", "primary", "primary or backup")
	cmd.Flags().Int64Var(&expected, "expected-version", 0, "reject the write unless the role is at this version")
	return cmd
}

func roleContractCmd() *cobra.Command {
	var expected int64
	var force bool
	cmd := &cobra.Command{
		Use:   "contract <production> <role> <Draft|Active>",
		Short: "Move a role contract between Draft and Active",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				role, err := e.SetContractStatus(ctx, engine.SetContractOptions{
					ProductionID:    args[0],
					RoleID:          args[1],
					Status:          domain.ContractStatus(args[2]),
					ExpectedVersion: expected,
					Force:           force,
					ActorID:         actorID(),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(role)
			})
		},
	}
	cmd.Flags().Int64Var(&expected, "expected-version", 0, "reject the write unless the role is at this version")
	cmd.Flags().BoolVar(&force, "force", false, "revert even when the studio policy forbids it")
	return cmd
}

func roleDeleteCmd() *cobra.Command {
	var expected int64
	cmd := &cobra.Command{
		Use:   "delete <production> <role>",
		Short: "Remove a Draft role",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.DeleteRole(ctx, engine.DeleteRoleOptions{
					ProductionID:    args[0],
					RoleID:          args[1],
					ExpectedVersion: expected,
					ActorID:         actorID(),
				})
			})
		},
	}
	cmd.Flags().Int64Var(&expected, "expected-version", 0, "reject the delete unless the role is at this version")
	return cmd
}

func roleMatchCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "match <production> <role>",
		Short: "Rank roster actors against a role",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.MatchCandidates(ctx, args[0], args[1], limit)
				if err != nil {
					return err
				}
				rows := make([]table.Row, 0, len(items))
				for i, c := range items {
					rows = append(rows, table.Row{i + 1, c.Actor.ID, c.Actor.DisplayName, c.Score})
				}
				return printTable(items, table.Row{"#", "Actor", "Name", "Score"}, rows)
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum candidates (studio default when 0)")
	return cmd
}

func crewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crew",
		Short: "Manage the crew manifest",
	}
	cmd.AddCommand(crewAddCmd())
	cmd.AddCommand(crewUpdateCmd())
	cmd.AddCommand(crewAssignCmd())
	cmd.AddCommand(crewContractCmd())
	cmd.AddCommand(crewDeleteCmd())
	return cmd
}

func crewAddCmd() *cobra.Command {
	var opts engine.CrewPositionOptions
	cmd := &cobra.Command{
		Use:   "add <production> <position>",
		Short: "Open a crew position such as director or engineer",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ProductionID, opts.PositionKey = args[0], args[1]
			opts.ActorID = actorID()
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				slot, err := e.AddCrewPosition(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(slot)
			})
		},
	}
	cmd.Flags().StringVar(&opts.Name, "name", "", "crew member name")
	cmd.Flags().StringVar(&opts.Email, "email", "", "crew member email")
	return cmd
}

func crewUpdateCmd() *cobra.Command {
	var name, email string
	var expected int64
	cmd := &cobra.Command{
		Use:   "update <production> <position>",
		Short: "Edit a Draft crew position",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			upd := engine.CrewSlotUpdate{
				ProductionID:    args[0],
				PositionKey:     args[1],
				Name:            optionalString(cmd, "name", name),
				Email:           optionalString(cmd, "email", email),
				ExpectedVersion: expected,
				ActorID:         actorID(),
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				slot, err := e.UpdateCrewSlot(ctx, upd)
				if err != nil {
					return err
				}
				return printJSONOrTable(slot)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "crew member name")
	cmd.Flags().StringVar(&email, "email", "", "crew member email")
	cmd.Flags().Int64Var(&expected, "expected-version", 0, "reject the write unless the slot is at this version")
	return cmd
}

func crewAssignCmd() *cobra.Command {
	var expected int64
	cmd := &cobra.Command{
		Use:   "assign <production> <position> <member>",
		Short: "Fill a crew position from the crew roster",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				slot, err := e.AssignCrew(ctx, engine.AssignCrewOptions{
					ProductionID:    args[0],
					PositionKey:     args[1],
					MemberID:        args[2],
					ExpectedVersion: expected,
					ActorID:         actorID(),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(slot)
			})
		},
	}
	cmd.Flags().Int64Var(&expected, "expected-version", 0, "reject the write unless the slot is at this version")
	return cmd
}

func crewContractCmd() *cobra.Command {
	var expected int64
	var force bool
	cmd := &cobra.Command{
		Use:   "contract <production> <position> <Draft|Active>",
		Short: "Move a crew contract between Draft and Active",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				slot, err := e.SetCrewContractStatus(ctx, engine.CrewContractOptions{
					ProductionID:    args[0],
					PositionKey:     args[1],
					Status:          domain.ContractStatus(args[2]),
					ExpectedVersion: expected,
					Force:           force,
					ActorID:         actorID(),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(slot)
			})
		},
	}
	cmd.Flags().Int64Var(&expected, "expected-version", 0, "reject the write unless the slot is at this version")
	cmd.Flags().BoolVar(&force, "force", false, "revert even when the studio policy forbids it")
	return cmd
}

func crewDeleteCmd() *cobra.Command {
	var expected int64
	cmd := &cobra.Command{
		Use:   "delete <production> <position>",
		Short: "Remove a Draft crew position",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.DeleteCrewPosition(ctx, engine.DeleteCrewOptions{
					ProductionID:    args[0],
					PositionKey:     args[1],
					ExpectedVersion: expected,
					ActorID:         actorID(),
				})
			})
		},
	}
	cmd.Flags().Int64Var(&expected, "expected-version", 0, "reject the delete unless the slot is at this version")
	return cmd
}
