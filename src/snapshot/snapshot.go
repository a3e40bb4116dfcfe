package snapshot

import (
	"sort"
	"strings"
	"time"
)

// RepositoryInfo identifies an opened repository.
type RepositoryInfo struct {
	ID      string
	Version string
}

// Summary holds the statistics restic records for the backup run that
// produced a snapshot. Older repositories have snapshots without one.
type Summary struct {
	TotalFilesProcessed uint64
	TotalBytesProcessed uint64
	BackupStart         time.Time
	BackupEnd           time.Time
}

// Duration returns BackupEnd - BackupStart. ok is false when the recorded
// end precedes the start.
func (s Summary) Duration() (d time.Duration, ok bool) {
	if s.BackupEnd.Before(s.BackupStart) {
		return 0, false
	}
	return s.BackupEnd.Sub(s.BackupStart), true
}

// Snapshot is a single restic snapshot. Values are never modified after they
// have been fetched.
type Snapshot struct {
	ID             string
	Time           time.Time
	Paths          []string
	Tags           []string
	Hostname       string
	Username       string
	ProgramVersion string
	Summary        *Summary
}

// PathsLabel renders the snapshot paths as a single label value.
func (s Snapshot) PathsLabel() string { return strings.Join(s.Paths, ",") }

// TagsLabel renders the snapshot tags as a single label value.
func (s Snapshot) TagsLabel() string { return strings.Join(s.Tags, ",") }

// Less orders snapshots by creation time, then by ID.
func Less(a, b Snapshot) bool {
	if !a.Time.Equal(b.Time) {
		return a.Time.Before(b.Time)
	}
	return a.ID < b.ID
}

// Seconds converts t to fractional Unix seconds with microsecond precision.
func Seconds(t time.Time) float64 {
	return float64(t.UnixMicro()) / 1e6
}

// DurationSeconds converts d to fractional seconds with microsecond precision.
func DurationSeconds(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1e6
}

// Merge reconciles a fresh listing against the previously known snapshots.
// Snapshots already known keep their previously fetched value, new ones are
// added, and the result is ordered with Less. The inputs are not modified.
func Merge(previous, listed []Snapshot) []Snapshot {
	known := make(map[string]Snapshot, len(previous))
	for _, s := range previous {
		known[s.ID] = s
	}
	out := make([]Snapshot, 0, len(listed))
	seen := make(map[string]struct{}, len(listed))
	for _, s := range listed {
		if _, dup := seen[s.ID]; dup {
			continue
		}
		seen[s.ID] = struct{}{}
		if prev, ok := known[s.ID]; ok {
			out = append(out, prev)
			continue
		}
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool { return Less(out[i], out[j]) })
	return out
}
