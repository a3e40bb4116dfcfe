package restic

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/mitchellh/go-homedir"

	"restic-exporter/src/backend"
	"restic-exporter/src/restic"
	"restic-exporter/src/snapshot"
	"restic-exporter/src/target"
)

type detectFunc func(context.Context, string) (restic.BinaryInfo, error)
type catConfigFunc func(context.Context, restic.BinaryInfo, restic.Repo) (restic.Config, error)
type listSnapshotsFunc func(context.Context, restic.BinaryInfo, restic.Repo, []string) ([]restic.Snapshot, error)

var detect detectFunc = restic.Detect
var catConfig catConfigFunc = restic.CatConfig
var listSnapshots listSnapshotsFunc = restic.ListSnapshots

// Driver opens repositories through the restic CLI. It is shared by all
// refreshers; the binary is detected on first use and cached.
type Driver struct {
	binary string
	log    *slog.Logger

	mu  sync.Mutex
	bin *restic.BinaryInfo
}

var _ backend.Driver = (*Driver)(nil)

// New returns a driver using binary, a path or a name looked up on PATH.
func New(binary string, log *slog.Logger) *Driver {
	if binary == "" {
		binary = restic.DefaultBinary
	}
	if log == nil {
		log = slog.Default()
	}
	return &Driver{binary: binary, log: log}
}

type location struct {
	target target.Target
	repo   restic.Repo
	bin    restic.BinaryInfo
}

func (l location) String() string { return l.target.String() }

func (d *Driver) Resolve(opts backend.ConnectOptions) (backend.Location, error) {
	tgt, err := target.Parse(opts.Repository)
	if err != nil {
		return nil, err
	}
	passwordFile := opts.PasswordFile
	if passwordFile != "" {
		if passwordFile, err = homedir.Expand(passwordFile); err != nil {
			return nil, fmt.Errorf("password file: %w", err)
		}
	}
	bin, err := d.binaryInfo()
	if err != nil {
		return nil, err
	}
	return location{
		target: tgt,
		repo: restic.Repo{
			Location:     opts.Repository,
			Password:     opts.Password,
			PasswordFile: passwordFile,
			Options:      opts.Options,
		},
		bin: bin,
	}, nil
}

func (d *Driver) binaryInfo() (restic.BinaryInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.bin != nil {
		return *d.bin, nil
	}
	info, err := detect(context.Background(), d.binary)
	if err != nil {
		return restic.BinaryInfo{}, err
	}
	if !restic.IsCompatible(info.Version) {
		d.log.Warn("restic is older than required, snapshot summaries will be missing",
			"version", info.Version, "required", restic.RequiredVersion)
	}
	d.bin = &info
	return info, nil
}

func (d *Driver) Open(ctx context.Context, loc backend.Location) (backend.Repository, error) {
	l, ok := loc.(location)
	if !ok {
		return nil, errors.New("restic backend: foreign location")
	}
	cfg, err := catConfig(ctx, l.bin, l.repo)
	if err != nil {
		return nil, err
	}
	return &Repository{
		info: snapshot.RepositoryInfo{ID: cfg.ID, Version: strconv.Itoa(cfg.Version)},
		bin:  l.bin,
		repo: l.repo,
	}, nil
}

// Repository is an opened restic repository.
type Repository struct {
	info snapshot.RepositoryInfo
	bin  restic.BinaryInfo
	repo restic.Repo
}

func (r *Repository) Describe() snapshot.RepositoryInfo { return r.info }

func (r *Repository) Reconcile(ctx context.Context, previous []snapshot.Snapshot) ([]snapshot.Snapshot, error) {
	listed, err := listSnapshots(ctx, r.bin, r.repo, nil)
	if err != nil {
		return nil, err
	}
	out := make([]snapshot.Snapshot, 0, len(listed))
	for _, s := range listed {
		out = append(out, convert(s))
	}
	return snapshot.Merge(previous, out), nil
}

func convert(s restic.Snapshot) snapshot.Snapshot {
	out := snapshot.Snapshot{
		ID:             s.ID,
		Time:           s.Time,
		Paths:          s.Paths,
		Tags:           s.Tags,
		Hostname:       s.Hostname,
		Username:       s.Username,
		ProgramVersion: s.ProgramVersion,
	}
	if s.Summary != nil {
		out.Summary = &snapshot.Summary{
			TotalFilesProcessed: s.Summary.TotalFilesProcessed,
			TotalBytesProcessed: s.Summary.TotalBytesProcessed,
			BackupStart:         s.Summary.BackupStart,
			BackupEnd:           s.Summary.BackupEnd,
		}
	}
	return out
}

// SetDetectForTest allows tests to stub binary detection. The returned
// function restores the previous implementation.
func SetDetectForTest(fn detectFunc) func() {
	prev := detect
	detect = fn
	return func() { detect = prev }
}

// SetCatConfigForTest allows tests to stub `restic cat config`.
func SetCatConfigForTest(fn catConfigFunc) func() {
	prev := catConfig
	catConfig = fn
	return func() { catConfig = prev }
}

// SetListSnapshotsForTest allows tests to stub `restic snapshots`.
func SetListSnapshotsForTest(fn listSnapshotsFunc) func() {
	prev := listSnapshots
	listSnapshots = fn
	return func() { listSnapshots = prev }
}
