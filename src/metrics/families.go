package metrics

// Family identifies one exposed metric family.
type Family int

const (
	RepositoryInfo Family = iota
	SnapshotInfo
	SnapshotTimestamp
	SnapshotFilesTotal
	SnapshotSizeBytes
	SnapshotBackupStart
	SnapshotBackupEnd
	SnapshotBackupDuration

	familyCount
)

// Families lists every family in exposition order.
func Families() []Family {
	out := make([]Family, 0, familyCount)
	for f := Family(0); f < familyCount; f++ {
		out = append(out, f)
	}
	return out
}

const Namespace = "restic"

var (
	repositoryLabels   = []string{"target", "repo_id", "version"}
	snapshotInfoLabels = []string{"target", "repo_id", "snapshot_id", "paths", "hostname", "username", "tags", "program_version"}
	snapshotLabels     = []string{"target", "repo_id", "snapshot_id"}
)

type familyDef struct {
	name   string
	help   string
	labels []string
}

var familyDefs = [familyCount]familyDef{
	RepositoryInfo:         {"repository_info", "Repository information.", repositoryLabels},
	SnapshotInfo:           {"snapshot_info", "Snapshot information.", snapshotInfoLabels},
	SnapshotTimestamp:      {"snapshot_timestamp_seconds", "Snapshot creation time in unix timestamp.", snapshotLabels},
	SnapshotFilesTotal:     {"snapshot_files_total", "Total files processed by the backup of a snapshot.", snapshotLabels},
	SnapshotSizeBytes:      {"snapshot_size_bytes", "Total bytes processed by the backup of a snapshot.", snapshotLabels},
	SnapshotBackupStart:    {"snapshot_backup_start_timestamp_seconds", "Backup start time of a snapshot in unix timestamp.", snapshotLabels},
	SnapshotBackupEnd:      {"snapshot_backup_end_timestamp_seconds", "Backup end time of a snapshot in unix timestamp.", snapshotLabels},
	SnapshotBackupDuration: {"snapshot_backup_duration_seconds", "Backup duration of a snapshot.", snapshotLabels},
}

// Name is the family name without namespace.
func (f Family) Name() string { return familyDefs[f].name }

func (f Family) Help() string { return familyDefs[f].help }

// Labels returns the label names, in the order of Observation.Labels.
func (f Family) Labels() []string { return familyDefs[f].labels }

func (f Family) String() string { return f.Name() }
