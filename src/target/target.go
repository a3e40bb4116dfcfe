package target

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

// Target is a parsed restic repository location.
// Examples: /srv/restic, sftp:user@host:/srv/restic, s3:s3.amazonaws.com/bucket
type Target struct {
	// Raw is the original input string.
	Raw string
	// Scheme is the backend kind (local, sftp, rest, s3, ...).
	Scheme string
	// Value is the scheme-specific part.
	Value string
}

// SupportedSchemes lists the backends restic knows about.
var SupportedSchemes = map[string]struct{}{
	"local":  {},
	"sftp":   {},
	"rest":   {},
	"s3":     {},
	"b2":     {},
	"azure":  {},
	"gs":     {},
	"swift":  {},
	"rclone": {},
}

// Parse splits a repository location into its backend scheme and value.
// Locations without a scheme prefix are local paths.
func Parse(raw string) (Target, error) {
	t := Target{Raw: raw}
	s := strings.TrimSpace(raw)
	if s == "" {
		return t, fmt.Errorf("repository must not be empty")
	}

	i := strings.Index(s, ":")
	if i <= 0 || isDrivePath(s) || strings.ContainsAny(s[:i], `/\`) {
		t.Scheme = "local"
		t.Value = filepath.Clean(s)
		return t, nil
	}

	scheme := strings.ToLower(s[:i])
	val := s[i+1:]
	if _, ok := SupportedSchemes[scheme]; !ok {
		return t, fmt.Errorf("unsupported backend scheme %q", scheme)
	}
	if val == "" {
		return t, fmt.Errorf("invalid repository %q; expected format '%s:<location>'", raw, scheme)
	}
	t.Scheme = scheme
	t.Value = val

	switch scheme {
	case "local":
		t.Value = filepath.Clean(val)
	case "rest":
		u, err := url.Parse(val)
		if err != nil {
			return t, fmt.Errorf("invalid rest server url %q: %w", val, err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return t, fmt.Errorf("rest server url must use http or https: %q", val)
		}
	}
	return t, nil
}

// isDrivePath reports whether s looks like a Windows path such as C:\backup.
func isDrivePath(s string) bool {
	if len(s) < 3 || s[1] != ':' || (s[2] != '\\' && s[2] != '/') {
		return false
	}
	c := s[0] | 0x20
	return c >= 'a' && c <= 'z'
}

// String returns a canonical form of the location without credentials.
func (t Target) String() string {
	if t.Scheme == "" {
		return t.Raw
	}
	if t.Scheme == "rest" {
		if u, err := url.Parse(t.Value); err == nil {
			return t.Scheme + ":" + u.Redacted()
		}
	}
	return fmt.Sprintf("%s:%s", t.Scheme, t.Value)
}
