package fake

import (
	"context"
	"errors"
	"sync"

	"restic-exporter/src/backend"
	"restic-exporter/src/snapshot"
)

// Driver is an in-memory backend.Driver for unit tests. Errors and snapshot
// listings are consumed in order; once a script is exhausted the last
// listing is repeated and no further errors are returned.
type Driver struct {
	mu sync.Mutex

	Info        snapshot.RepositoryInfo
	ResolveErrs []error
	OpenErrs    []error
	// Listings are returned by successive Reconcile calls. A nil error in
	// ReconcileErrs at the same position means success.
	Listings      [][]snapshot.Snapshot
	ReconcileErrs []error

	resolves   int
	opens      int
	reconciles int
	lastListed []snapshot.Snapshot
}

type location struct{ repo string }

func (l location) String() string { return l.repo }

func (d *Driver) Resolve(opts backend.ConnectOptions) (backend.Location, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	i := d.resolves
	d.resolves++
	if i < len(d.ResolveErrs) && d.ResolveErrs[i] != nil {
		return nil, d.ResolveErrs[i]
	}
	if opts.Repository == "" {
		return nil, errors.New("fake: empty repository")
	}
	return location{repo: opts.Repository}, nil
}

func (d *Driver) Open(ctx context.Context, loc backend.Location) (backend.Repository, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	i := d.opens
	d.opens++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if i < len(d.OpenErrs) && d.OpenErrs[i] != nil {
		return nil, d.OpenErrs[i]
	}
	return &Repository{d: d}, nil
}

// Counts reports how many times each operation was called.
func (d *Driver) Counts() (resolves, opens, reconciles int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.resolves, d.opens, d.reconciles
}

// Repository is the handle returned by Driver.Open.
type Repository struct {
	d *Driver
}

func (r *Repository) Describe() snapshot.RepositoryInfo {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	return r.d.Info
}

func (r *Repository) Reconcile(ctx context.Context, previous []snapshot.Snapshot) ([]snapshot.Snapshot, error) {
	d := r.d
	d.mu.Lock()
	defer d.mu.Unlock()
	i := d.reconciles
	d.reconciles++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if i < len(d.ReconcileErrs) && d.ReconcileErrs[i] != nil {
		return nil, d.ReconcileErrs[i]
	}
	listed := d.lastListed
	if i < len(d.Listings) {
		listed = d.Listings[i]
		d.lastListed = listed
	}
	return snapshot.Merge(previous, listed), nil
}
