package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restic-exporter/src/snapshot"
	"restic-exporter/src/state"
)

type repo struct{ info snapshot.RepositoryInfo }

func (r repo) Describe() snapshot.RepositoryInfo { return r.info }

func (r repo) Reconcile(_ context.Context, prev []snapshot.Snapshot) ([]snapshot.Snapshot, error) {
	return prev, nil
}

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 250000000, time.UTC)

func readyState(snaps ...snapshot.Snapshot) state.TargetState {
	return state.TargetState{
		Ready:      true,
		Repository: repo{info: snapshot.RepositoryInfo{ID: "4a5b6c", Version: "2"}},
		Snapshots:  snaps,
	}
}

func byFamily(res Result) map[Family][]Observation {
	out := map[Family][]Observation{}
	for _, o := range res.Observations {
		out[o.Family] = append(out[o.Family], o)
	}
	return out
}

func TestMapUnreadyIsEmpty(t *testing.T) {
	cases := []struct {
		name string
		st   state.TargetState
	}{
		{"zero", state.TargetState{}},
		{"snapshots but not ready", state.TargetState{Snapshots: []snapshot.Snapshot{{ID: "x"}}}},
		{"ready without repository", state.TargetState{Ready: true}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := Map("home", tc.st)
			assert.Empty(t, res.Observations)
			assert.Empty(t, res.Warnings)
		})
	}
}

func TestMapRepositoryInfoOnly(t *testing.T) {
	res := Map("home", readyState())
	require.Len(t, res.Observations, 1)
	o := res.Observations[0]
	assert.Equal(t, RepositoryInfo, o.Family)
	assert.Equal(t, []string{"home", "4a5b6c", "2"}, o.Labels)
	assert.Equal(t, 1.0, o.Value)
}

func TestMapSnapshotWithoutSummary(t *testing.T) {
	s := snapshot.Snapshot{
		ID:             "s1",
		Time:           t0,
		Paths:          []string{"/home", "/etc"},
		Tags:           []string{"daily"},
		Hostname:       "nas",
		Username:       "root",
		ProgramVersion: "restic 0.17.3",
	}
	res := Map("home", readyState(s))
	fams := byFamily(res)

	require.Len(t, res.Observations, 3)
	require.Len(t, fams[SnapshotInfo], 1)
	assert.Equal(t,
		[]string{"home", "4a5b6c", "s1", "/home,/etc", "nas", "root", "daily", "restic 0.17.3"},
		fams[SnapshotInfo][0].Labels)
	require.Len(t, fams[SnapshotTimestamp], 1)
	assert.Equal(t, []string{"home", "4a5b6c", "s1"}, fams[SnapshotTimestamp][0].Labels)
	assert.Equal(t, 1709294400.25, fams[SnapshotTimestamp][0].Value)

	for _, f := range []Family{SnapshotFilesTotal, SnapshotSizeBytes, SnapshotBackupStart, SnapshotBackupEnd, SnapshotBackupDuration} {
		assert.Empty(t, fams[f], f.Name())
	}
	assert.Equal(t, []Warning{{Kind: WarningMissingSummary, SnapshotID: "s1"}}, res.Warnings)
}

func TestMapSnapshotWithSummary(t *testing.T) {
	s := snapshot.Snapshot{
		ID:   "s1",
		Time: t0,
		Summary: &snapshot.Summary{
			TotalFilesProcessed: 42,
			TotalBytesProcessed: 1 << 40,
			BackupStart:         t0,
			BackupEnd:           t0.Add(125*time.Second + 500*time.Millisecond),
		},
	}
	res := Map("home", readyState(s))
	fams := byFamily(res)

	assert.Empty(t, res.Warnings)
	assert.Equal(t, 42.0, fams[SnapshotFilesTotal][0].Value)
	assert.Equal(t, float64(1<<40), fams[SnapshotSizeBytes][0].Value)
	assert.Equal(t, snapshot.Seconds(t0), fams[SnapshotBackupStart][0].Value)
	assert.Equal(t, 1709294525.75, fams[SnapshotBackupEnd][0].Value)
	assert.Equal(t, 125.5, fams[SnapshotBackupDuration][0].Value)
}

func TestMapNegativeDurationIsOmitted(t *testing.T) {
	s := snapshot.Snapshot{
		ID:   "s1",
		Time: t0,
		Summary: &snapshot.Summary{
			TotalFilesProcessed: 1,
			BackupStart:         t0,
			BackupEnd:           t0.Add(-time.Second),
		},
	}
	res := Map("home", readyState(s))
	fams := byFamily(res)

	assert.Empty(t, fams[SnapshotBackupDuration])
	assert.Len(t, fams[SnapshotFilesTotal], 1)
	assert.Len(t, fams[SnapshotSizeBytes], 1)
	assert.Len(t, fams[SnapshotBackupStart], 1)
	assert.Len(t, fams[SnapshotBackupEnd], 1)
	assert.Equal(t, []Warning{{Kind: WarningNegativeDuration, SnapshotID: "s1"}}, res.Warnings)
}

func TestMapIsDeterministic(t *testing.T) {
	st := readyState(
		snapshot.Snapshot{ID: "s1", Time: t0},
		snapshot.Snapshot{ID: "s2", Time: t0.Add(time.Hour), Summary: &snapshot.Summary{
			BackupStart: t0, BackupEnd: t0.Add(time.Minute),
		}},
	)
	assert.Equal(t, Map("home", st), Map("home", st))
}

func TestFamiliesAreComplete(t *testing.T) {
	fams := Families()
	require.Len(t, fams, 8)
	seen := map[string]bool{}
	for _, f := range fams {
		assert.NotEmpty(t, f.Name())
		assert.NotEmpty(t, f.Help())
		assert.Equal(t, "target", f.Labels()[0])
		assert.False(t, seen[f.Name()], "duplicate family %s", f.Name())
		seen[f.Name()] = true
	}
}
