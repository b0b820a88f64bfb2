package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"studioline/internal/app"
	"studioline/internal/config"
	"studioline/internal/engine"
	"studioline/internal/engine/auth"
	"studioline/internal/repo"
	"studioline/internal/server"
)

func configCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Manage the studio policy stored in the DB",
		Long:  "The studio policy (format caps, workflow and contract rules, matcher weights, store retries, notification webhook) lives in the database. studioline.yml only seeds it or is imported explicitly.",
	}
	cfg.AddCommand(configShowCmd())
	cfg.AddCommand(configImportCmd())
	cfg.AddCommand(configValidateCmd())
	cfg.AddCommand(configInitCmd())
	return cfg
}

func configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the active studio policy",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if viper.GetBool("json") {
					return printJSON(e.Config)
				}
				out, err := e.Config.YAML()
				if err != nil {
					return err
				}
				fmt.Print(string(out))
				return nil
			})
		},
	}
}

func configImportCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a studioline.yml into the DB",
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				file = config.Path(viper.GetString("workspace"))
			}
			cfg, err := config.FromFile(file)
			if err != nil {
				return err
			}
			if override := viper.GetString("studio"); override != "" {
				cfg.Studio.ID = override
			}
			if cfg.Studio.ID == "" {
				return fmt.Errorf("studio.id is missing in %s; set it or pass --studio", file)
			}
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				if err := r.UpsertStudioConfig(ctx, cfg); err != nil {
					return err
				}
				logger.Info("studio config imported", zap.String("studio", cfg.Studio.ID), zap.String("file", file))
				if viper.GetBool("json") {
					return printJSON(map[string]any{"ok": true, "studio": cfg.Studio.ID})
				}
				fmt.Printf("imported %s for studio %s\n", file, cfg.Studio.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "config file (defaults to <workspace>/studioline.yml)")
	return cmd
}

func configValidateCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the stored policy, or a file with --file",
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if file != "" {
				_, err = config.FromFile(file)
			} else {
				err = withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
					return e.Config.Validate()
				})
			}
			if viper.GetBool("json") {
				return printJSON(map[string]any{"ok": err == nil, "error": fmt.Sprint(err)})
			}
			if err != nil {
				return err
			}
			fmt.Println("config OK")
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "validate this file instead of the stored policy")
	return cmd
}

func configInitCmd() *cobra.Command {
	var studioID string
	var overwrite bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default studioline.yml into the workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil && !overwrite {
				return fmt.Errorf("%s already exists; pass --overwrite to replace it", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault(studioID)), 0o644); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&studioID, "id", app.DefaultStudioID, "studio id")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "replace an existing file")
	return cmd
}

func studioCmd() *cobra.Command {
	st := &cobra.Command{Use: "studio", Short: "Select the studio for this workspace"}
	st.AddCommand(&cobra.Command{
		Use:   "use <id>",
		Short: "Pin the studio in <workspace>/.env",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			studioID := strings.TrimSpace(args[0])
			if studioID == "" {
				return fmt.Errorf("studio id is required")
			}
			path := filepath.Join(viper.GetString("workspace"), ".env")
			env, err := godotenv.Read(path)
			if err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}
			if env == nil {
				env = map[string]string{}
			}
			env["STUDIOLINE_STUDIO"] = studioID
			if err := godotenv.Write(env, path); err != nil {
				return err
			}
			fmt.Printf("Set STUDIOLINE_STUDIO=%s in %s\n", studioID, path)
			return nil
		},
	})
	return st
}

func apikeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apikey",
		Short: "Manage API keys for the HTTP server",
	}
	cmd.AddCommand(apikeyCreateCmd())
	cmd.AddCommand(apikeyListCmd())
	cmd.AddCommand(apikeyRevokeCmd())
	return cmd
}

func apikeyCreateCmd() *cobra.Command {
	var owner, name string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Issue a key; the plain value is printed once",
		RunE: func(cmd *cobra.Command, args []string) error {
			if owner == "" {
				owner = actorID()
			}
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				plain, key, err := auth.Service{Repo: r}.Issue(ctx, owner, name)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"key": plain, "id": key.ID, "actor_id": key.ActorID})
				}
				fmt.Printf("%s\n(id %s, actor %s; store it now, it cannot be shown again)\n", plain, key.ID, key.ActorID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&owner, "actor", "", "operator the key acts as (defaults to --actor-id)")
	cmd.Flags().StringVar(&name, "name", "", "label")
	return cmd
}

func apikeyListCmd() *cobra.Command {
	var owner string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List issued keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				keys, err := auth.Service{Repo: r}.List(ctx, owner)
				if err != nil {
					return err
				}
				rows := make([]table.Row, 0, len(keys))
				for _, k := range keys {
					rows = append(rows, table.Row{k.ID, k.ActorID, k.Name, k.CreatedAt, k.LastUsedAt, k.RevokedAt})
				}
				return printTable(keys, table.Row{"ID", "Actor", "Name", "Created", "Last used", "Revoked"}, rows)
			})
		},
	}
	cmd.Flags().StringVar(&owner, "actor", "", "only keys of this operator")
	return cmd
}

func apikeyRevokeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <id>",
		Short: "Revoke a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				return auth.Service{Repo: r}.Revoke(ctx, args[0])
			})
		},
	}
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	var devLogin, actorHeader bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := openStore()
			if err != nil {
				return err
			}
			defer h.Close()
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			e, err := buildEngine(ctx, h)
			if err != nil {
				return err
			}
			authCfg := server.AuthConfig{
				JWTSecret:        viper.GetString("jwt-secret"),
				AllowActorHeader: actorHeader,
				DevLogin:         devLogin,
				Keys:             auth.Service{Repo: h.Repo},
				Log:              logger,
			}
			if authCfg.JWTSecret == "" {
				return fmt.Errorf("STUDIOLINE_JWT_SECRET is required for bearer auth")
			}
			if devLogin {
				logger.Warn("dev login endpoint enabled; anyone can mint a token")
			}
			handler, err := server.New(server.Config{Engine: e, BasePath: basePath, Auth: authCfg, Log: logger})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(shutdownCtx)
			}()
			logger.Info("serving studioline API",
				zap.String("addr", addr),
				zap.String("base_path", basePath),
				zap.String("studio", e.Config.Studio.ID))
			fmt.Printf("Serving studioline API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs, metrics at /metrics)\n", addr, basePath, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	cmd.Flags().BoolVar(&devLogin, "dev-auth", false, "expose POST <base>/auth/dev/login (local testing only)")
	cmd.Flags().BoolVar(&actorHeader, "allow-actor-header", false, "trust X-Actor-Id without credentials (local testing only)")
	cmd.Flags().String("jwt-secret", "", "HS256 secret for bearer tokens (or STUDIOLINE_JWT_SECRET)")
	_ = viper.BindPFlag("jwt-secret", cmd.Flags().Lookup("jwt-secret"))
	return cmd
}
