package backend

import "errors"

var (
	ErrNoCredentials        = errors.New("either password or password_file must be set")
	ErrAmbiguousCredentials = errors.New("only one of password and password_file may be set")
)

// ConfigError is fatal for the affected target only.
type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string { return wrapMsg("configuration error", e.Err) }

func (e *ConfigError) Unwrap() error { return e.Err }

// ResolveError reports a failure to set up the backend transport.
type ResolveError struct {
	Err error
}

func (e *ResolveError) Error() string { return wrapMsg("resolve backend", e.Err) }

func (e *ResolveError) Unwrap() error { return e.Err }

// OpenError reports a failure to open or unlock a repository.
type OpenError struct {
	Err error
}

func (e *OpenError) Error() string { return wrapMsg("open repository", e.Err) }

func (e *OpenError) Unwrap() error { return e.Err }

// ReconcileError reports a failed snapshot refresh.
type ReconcileError struct {
	Err error
}

func (e *ReconcileError) Error() string { return wrapMsg("reconcile snapshots", e.Err) }

func (e *ReconcileError) Unwrap() error { return e.Err }

func wrapMsg(prefix string, err error) string {
	if err == nil {
		return prefix
	}
	return prefix + ": " + err.Error()
}
