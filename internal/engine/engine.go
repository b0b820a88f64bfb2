package engine

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"

	"studioline/internal/config"
	"studioline/internal/domain"
	"studioline/internal/events"
	"studioline/internal/metrics"
	"studioline/internal/notify"
	"studioline/internal/repo"
)

type Engine struct {
	DB       *sql.DB
	Repo     repo.Repo
	Events   events.Writer
	Config   *config.Config
	Log      *zap.Logger
	Notifier notify.Notifier
	Scorer   Scorer
	Now      func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	return Engine{
		DB:       db,
		Repo:     repo.Repo{DB: db},
		Config:   cfg,
		Log:      zap.NewNop(),
		Notifier: notify.Noop{},
		Now:      time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) stamp() string {
	return e.now().UTC().Format(domain.TimeLayout)
}

func (e Engine) cfg() *config.Config {
	if e.Config != nil {
		return e.Config
	}
	return config.Default("default")
}

func (e Engine) log() *zap.Logger {
	if e.Log != nil {
		return e.Log
	}
	return zap.NewNop()
}

func (e Engine) scorer() Scorer {
	if e.Scorer != nil {
		return e.Scorer
	}
	return HeuristicScorer{Weights: e.cfg().Matching.Weights}
}

func (e Engine) notifier() notify.Notifier {
	if e.Notifier != nil {
		return e.Notifier
	}
	return notify.Noop{}
}

func (e Engine) appendEvent(ctx context.Context, tx *sql.Tx, entry events.Entry) error {
	w := e.Events
	if w.Now == nil {
		w.Now = e.now
	}
	_, err := w.Append(ctx, tx, entry)
	return err
}

// run executes fn under the request timeout, retrying busy-store failures
// with backoff. Exhausted or timed-out calls come back as TransientStoreError.
func (e Engine) run(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, e.cfg().RequestTimeout())
	defer cancel()
	hook := func(attempt int, delay time.Duration, err error) {
		metrics.ObserveRetry(op)
		e.log().Warn("store busy, retrying",
			zap.String("operation", op),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err))
	}
	attempts, err := repo.RetryOnBusy(ctx, e.cfg().Store.RetryAttempts, hook, func() error {
		return fn(ctx)
	})
	if err != nil && KindOf(err) == KindInternal && isTransient(err) {
		e.log().Error("store unavailable",
			zap.String("operation", op),
			zap.Int("attempts", attempts),
			zap.Error(err))
		err = &TransientStoreError{Op: op, Attempts: attempts, Err: err}
	}
	outcome := "ok"
	if err != nil {
		outcome = KindOf(err)
	}
	metrics.ObserveOperation(op, outcome, time.Since(start))
	return err
}

// withTx runs fn inside one transaction per attempt. Every attempt starts
// from a fresh read, so a retried write re-checks its preconditions.
func (e Engine) withTx(ctx context.Context, op string, fn func(ctx context.Context, tx *sql.Tx) error) error {
	return e.run(ctx, op, func(ctx context.Context) error {
		tx, err := e.DB.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()
		if err := fn(ctx, tx); err != nil {
			return err
		}
		return tx.Commit()
	})
}

// loadMutable loads a production header that manifest and tracker writes may
// change. Archived productions are rejected.
func (e Engine) loadMutable(ctx context.Context, tx *sql.Tx, productionID string) (domain.Production, error) {
	p, err := e.Repo.GetProductionRow(ctx, tx, productionID)
	if err != nil {
		return p, storeErr("production", productionID, 0, err)
	}
	if p.Archived() {
		return p, precondition(string(p.ProductionStatus), "production %s is archived (%s)", p.ProjectRefID, p.ProductionStatus)
	}
	return p, nil
}
