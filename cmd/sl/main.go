package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"studioline/internal/app"
	"studioline/internal/db"
	"studioline/internal/engine"
	"studioline/internal/logging"
	"studioline/internal/migrate"
	"studioline/internal/notify"
	"studioline/internal/repo"
)

var logger = zap.NewNop()

var rootCmd = &cobra.Command{
	Use:   "sl",
	Short: "Studioline CLI",
	Long: `Studioline runs the casting side of an audiobook studio.
- Intakes: client submissions waiting for a greenlight (INT-####).
- Productions: greenlit projects (ACT-####) with a casting manifest, a crew manifest and a workflow tracker.
- Roles: casting slots (ROLE-<ms>) with a primary and a backup actor. An Active contract locks the role.
- Roster: the actors and crew members that can be assigned.
- Correspondence: an append-only note log per production.
- Event log: every change, view with 'sl events'.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		if err := godotenv.Load(filepath.Join(workspace, ".env")); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load .env: %w", err)
		}
		l, err := logging.New(logging.Config{
			Level:      viper.GetString("log-level"),
			Encoding:   viper.GetString("log-format"),
			OutputPath: "stderr",
		})
		if err != nil {
			return err
		}
		logger = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(exitCode(err))
	}
}

func initConfig() {
	viper.SetEnvPrefix("STUDIOLINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	flags := rootCmd.PersistentFlags()
	flags.StringP("workspace", "w", ".", "workspace directory")
	flags.Bool("json", false, "output JSON")
	flags.String("actor-id", "local-user", "actor identifier")
	flags.String("studio", "", "studio id (overrides studioline.yml and STUDIOLINE_STUDIO)")
	flags.String("log-level", "warn", "log level (debug, info, warn, error)")
	flags.String("log-format", "console", "log encoding (console or json)")
	for _, name := range []string{"workspace", "json", "actor-id", "studio", "log-level", "log-format"} {
		_ = viper.BindPFlag(name, flags.Lookup(name))
	}
}

func registerCommands() {
	rootCmd.AddCommand(intakeCmd())
	rootCmd.AddCommand(greenlightCmd())
	rootCmd.AddCommand(productionCmd())
	rootCmd.AddCommand(stepCmd())
	rootCmd.AddCommand(roleCmd())
	rootCmd.AddCommand(crewCmd())
	rootCmd.AddCommand(noteCmd())
	rootCmd.AddCommand(targetsCmd())
	rootCmd.AddCommand(noticeCmd())
	rootCmd.AddCommand(rosterCmd())
	rootCmd.AddCommand(eventsCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(studioCmd())
	rootCmd.AddCommand(apikeyCmd())
	rootCmd.AddCommand(serveCmd())
}

// exitCode maps the engine error kinds onto distinct process exit codes.
func exitCode(err error) int {
	switch engine.KindOf(err) {
	case engine.KindValidation:
		return 2
	case engine.KindPrecondition, engine.KindStale:
		return 3
	case engine.KindNotFound:
		return 4
	case engine.KindTransient, engine.KindDelivery:
		return 5
	case engine.KindUnrecorded:
		return 6
	default:
		return 1
	}
}

func actorID() string {
	return viper.GetString("actor-id")
}

// --- helpers ---

func openStore() (*repoHandle, error) {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return nil, err
	}
	applied, err := migrate.Apply(context.Background(), conn)
	if err != nil {
		conn.Close()
		return nil, err
	}
	if len(applied) > 0 {
		logger.Info("schema migrated", zap.Strings("applied", applied), zap.String("db", db.Path(workspace)))
	}
	return &repoHandle{Repo: repo.Repo{DB: conn}, workspace: workspace}, nil
}

type repoHandle struct {
	repo.Repo
	workspace string
}

func (h *repoHandle) Close() error { return h.DB.Close() }

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	h, err := openStore()
	if err != nil {
		return err
	}
	defer h.Close()
	e, err := buildEngine(ctx, h)
	if err != nil {
		return err
	}
	return fn(ctx, e)
}

func buildEngine(ctx context.Context, h *repoHandle) (engine.Engine, error) {
	studioID, cfg, err := app.ResolveStudioConfig(ctx, h.workspace, viper.GetString("studio"), h.Repo)
	if err != nil {
		return engine.Engine{}, err
	}
	e := engine.New(h.DB, cfg)
	e.Log = logger.With(zap.String("studio", studioID))
	e.Notifier = notify.FromConfig(cfg.Notifications, e.Log)
	return e, nil
}

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	h, err := openStore()
	if err != nil {
		return err
	}
	defer h.Close()
	return fn(ctx, h.Repo)
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printTable renders rows unless --json is set, in which case raw is printed.
func printTable(raw any, header table.Row, rows []table.Row) error {
	if viper.GetBool("json") {
		return printJSON(raw)
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(header)
	tw.AppendRows(rows)
	tw.Render()
	return nil
}

func optionalString(cmd *cobra.Command, flag, value string) *string {
	if !cmd.Flags().Changed(flag) {
		return nil
	}
	return &value
}
