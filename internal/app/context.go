package app

import (
	"context"
	"errors"
	"fmt"

	"studioline/internal/config"
	"studioline/internal/repo"
)

// DefaultStudioID is used when the database holds no studio yet and no
// override or workspace file names one.
const DefaultStudioID = "default"

// ResolveStudioConfig picks the active studio and makes sure its policy is
// stored in the DB, seeding it if missing. It prefers the override, then a
// studioline.yml in the workspace, then the single studio already stored.
func ResolveStudioConfig(ctx context.Context, workspace, studioOverride string, r repo.Repo) (string, *config.Config, error) {
	fileCfg, err := config.LoadOptional(workspace)
	if err != nil {
		return "", nil, fmt.Errorf("load %s: %w", config.Path(workspace), err)
	}
	studioID := studioOverride
	if studioID == "" && fileCfg != nil {
		studioID = fileCfg.Studio.ID
	}
	if studioID == "" {
		id, err := r.SingleStudio(ctx)
		switch {
		case err == nil:
			studioID = id
		case errors.Is(err, repo.ErrNotFound):
			studioID = DefaultStudioID
		default:
			return "", nil, err
		}
	}

	cfg, err := r.GetStudioConfig(ctx, studioID)
	if err == nil {
		return studioID, cfg, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return "", nil, err
	}
	seed := config.Default(studioID)
	if fileCfg != nil && fileCfg.Studio.ID == studioID {
		seed = fileCfg
	}
	if err := r.UpsertStudioConfig(ctx, seed); err != nil {
		return "", nil, fmt.Errorf("seed studio config: %w", err)
	}
	return studioID, seed, nil
}
