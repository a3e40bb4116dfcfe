package backend

import (
	"context"

	"restic-exporter/src/snapshot"
)

// ConnectOptions describe how to reach one repository. Exactly one of
// Password and PasswordFile is set once BuildConnectOptions succeeded.
type ConnectOptions struct {
	Repository   string
	Password     string
	PasswordFile string
	Options      map[string]string
}

// Location is a resolved backend transport, ready to be opened. Its content
// is private to the Driver that produced it.
type Location interface {
	// String returns a printable form without credentials.
	String() string
}

// Repository is an opened and unlocked repository. It is owned by a single
// refresher and never shared between goroutines that mutate it.
type Repository interface {
	Describe() snapshot.RepositoryInfo
	// Reconcile returns the current snapshot list, reusing entries of
	// previous that are still present.
	Reconcile(ctx context.Context, previous []snapshot.Snapshot) ([]snapshot.Snapshot, error)
}

// Driver is the storage capability the refresher calls into. Keep it small
// so it stays mockable.
type Driver interface {
	Resolve(opts ConnectOptions) (Location, error)
	Open(ctx context.Context, loc Location) (Repository, error)
}

// BuildConnectOptions validates the credential sources of a target.
func BuildConnectOptions(repository, password, passwordFile string, options map[string]string) (ConnectOptions, error) {
	switch {
	case password == "" && passwordFile == "":
		return ConnectOptions{}, &ConfigError{Err: ErrNoCredentials}
	case password != "" && passwordFile != "":
		return ConnectOptions{}, &ConfigError{Err: ErrAmbiguousCredentials}
	}
	opts := make(map[string]string, len(options))
	for k, v := range options {
		opts[k] = v
	}
	return ConnectOptions{
		Repository:   repository,
		Password:     password,
		PasswordFile: passwordFile,
		Options:      opts,
	}, nil
}
