package metrics

import (
	"restic-exporter/src/snapshot"
	"restic-exporter/src/state"
)

// Observation is one gauge sample. Labels follow Family.Labels order.
type Observation struct {
	Family Family
	Labels []string
	Value  float64
}

type WarningKind int

const (
	// WarningMissingSummary: the snapshot carries no backup summary.
	WarningMissingSummary WarningKind = iota + 1
	// WarningNegativeDuration: the summary ends before it starts.
	WarningNegativeDuration
)

func (k WarningKind) String() string {
	switch k {
	case WarningMissingSummary:
		return "snapshot summary has no data"
	case WarningNegativeDuration:
		return "snapshot backup ends before it starts"
	}
	return "unknown"
}

// Warning is a data-quality condition found while mapping a snapshot.
type Warning struct {
	Kind       WarningKind
	SnapshotID string
}

type Result struct {
	Observations []Observation
	Warnings     []Warning
}

// Map converts the state of one target into gauge observations. It has no
// side effects and returns the same result for the same input. An unready
// target yields an empty result.
func Map(target string, st state.TargetState) Result {
	var res Result
	if !st.Ready || st.Repository == nil {
		return res
	}

	info := st.Repository.Describe()
	res.add(RepositoryInfo, 1, target, info.ID, info.Version)

	for _, s := range st.Snapshots {
		res.add(SnapshotInfo, 1,
			target, info.ID, s.ID, s.PathsLabel(), s.Hostname, s.Username, s.TagsLabel(), s.ProgramVersion)
		res.add(SnapshotTimestamp, snapshot.Seconds(s.Time), target, info.ID, s.ID)

		sum := s.Summary
		if sum == nil {
			res.Warnings = append(res.Warnings, Warning{Kind: WarningMissingSummary, SnapshotID: s.ID})
			continue
		}
		res.add(SnapshotFilesTotal, float64(sum.TotalFilesProcessed), target, info.ID, s.ID)
		res.add(SnapshotSizeBytes, float64(sum.TotalBytesProcessed), target, info.ID, s.ID)
		res.add(SnapshotBackupStart, snapshot.Seconds(sum.BackupStart), target, info.ID, s.ID)
		res.add(SnapshotBackupEnd, snapshot.Seconds(sum.BackupEnd), target, info.ID, s.ID)

		d, ok := sum.Duration()
		if !ok {
			res.Warnings = append(res.Warnings, Warning{Kind: WarningNegativeDuration, SnapshotID: s.ID})
			continue
		}
		res.add(SnapshotBackupDuration, snapshot.DurationSeconds(d), target, info.ID, s.ID)
	}
	return res
}

func (r *Result) add(f Family, v float64, labels ...string) {
	r.Observations = append(r.Observations, Observation{Family: f, Labels: labels, Value: v})
}
