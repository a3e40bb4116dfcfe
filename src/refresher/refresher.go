package refresher

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"restic-exporter/src/backend"
	"restic-exporter/src/snapshot"
	"restic-exporter/src/state"
)

// Target is the immutable description of one repository to monitor.
type Target struct {
	Name         string
	Repository   string
	Password     string
	PasswordFile string
	Options      map[string]string
}

type Options struct {
	Driver   backend.Driver
	Interval time.Duration
	// Timeout bounds each Open and Reconcile call. Zero means no
	// limit, in which case a hung backend stalls only this refresher.
	Timeout time.Duration
	Logger  *slog.Logger
}

// Refresher keeps the state cell of a single target up to date.
type Refresher struct {
	target   Target
	driver   backend.Driver
	interval time.Duration
	timeout  time.Duration
	log      *slog.Logger

	cell     state.Cell
	disabled atomic.Bool
}

func New(t Target, opts Options) (*Refresher, error) {
	if opts.Driver == nil {
		return nil, errors.New("refresher: backend driver is required")
	}
	if opts.Interval <= 0 {
		return nil, errors.New("refresher: interval must be positive")
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Refresher{
		target:   t,
		driver:   opts.Driver,
		interval: opts.Interval,
		timeout:  opts.Timeout,
		log:      log.With("target", t.Name),
	}, nil
}

func (r *Refresher) Name() string { return r.target.Name }

// Disabled reports whether the target was rejected for missing or
// ambiguous credentials. A disabled target never becomes ready.
func (r *Refresher) Disabled() bool { return r.disabled.Load() }

// State returns the latest published state without blocking.
func (r *Refresher) State() state.TargetState { return r.cell.Snapshot() }

// Run opens the repository and keeps its snapshot list fresh until ctx is
// cancelled. Failures never escape Run: they are logged and retried on the
// next cycle, except for a misconfigured target which stays unready.
func (r *Refresher) Run(ctx context.Context) {
	opts, err := backend.BuildConnectOptions(r.target.Repository, r.target.Password, r.target.PasswordFile, r.target.Options)
	if err != nil {
		r.disabled.Store(true)
		r.log.Error("target disabled", "err", err)
		return
	}

	var repo backend.Repository
	for {
		if repo == nil {
			repo = r.open(ctx, opts)
		}
		if repo != nil {
			r.refresh(ctx, repo)
		}

		timer := time.NewTimer(r.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (r *Refresher) open(ctx context.Context, opts backend.ConnectOptions) backend.Repository {
	loc, err := r.driver.Resolve(opts)
	if err != nil {
		r.log.Error("unable to set the backend", "err", &backend.ResolveError{Err: err})
		return nil
	}

	callCtx, cancel := r.callContext(ctx)
	defer cancel()
	repo, err := r.driver.Open(callCtx, loc)
	if err != nil {
		r.log.Error("unable to open the repository", "location", loc.String(), "err", &backend.OpenError{Err: err})
		return nil
	}

	info := repo.Describe()
	r.cell.Publish(state.TargetState{Ready: true, Repository: repo})
	r.log.Info("repository is ready", "repo_id", info.ID, "version", info.Version)
	return repo
}

func (r *Refresher) refresh(ctx context.Context, repo backend.Repository) {
	prev := r.cell.Snapshot()
	r.log.Debug("updating snapshots", "known", len(prev.Snapshots))

	callCtx, cancel := r.callContext(ctx)
	defer cancel()
	start := time.Now()
	snaps, err := repo.Reconcile(callCtx, prev.Snapshots)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		r.log.Error("unable to update snapshots", "err", &backend.ReconcileError{Err: err})
		r.cell.Publish(prev)
		return
	}
	if snaps == nil {
		snaps = []snapshot.Snapshot{}
	}

	r.cell.Publish(state.TargetState{Ready: true, Repository: repo, Snapshots: snaps})
	r.log.Debug("snapshots updated", "count", len(snaps), "took", time.Since(start))
}

func (r *Refresher) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout > 0 {
		return context.WithTimeout(ctx, r.timeout)
	}
	return context.WithCancel(ctx)
}
