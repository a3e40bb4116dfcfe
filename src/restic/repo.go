package restic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"slices"
	"sort"
	"strings"
	"time"
)

// Repo describes how to reach a repository with the restic CLI.
type Repo struct {
	Location     string
	Password     string
	PasswordFile string
	// Options are passed as `-o key=value`.
	Options map[string]string
}

// Config is the repository config as printed by `restic cat config`.
type Config struct {
	Version int    `json:"version"`
	ID      string `json:"id"`
}

// Summary is the backup summary restic >= 0.17 stores in each snapshot.
type Summary struct {
	BackupStart         time.Time `json:"backup_start"`
	BackupEnd           time.Time `json:"backup_end"`
	TotalFilesProcessed uint64    `json:"total_files_processed"`
	TotalBytesProcessed uint64    `json:"total_bytes_processed"`
}

// Snapshot represents a restic snapshot as returned by `restic snapshots --json`.
type Snapshot struct {
	ID             string    `json:"id"`
	ShortID        string    `json:"short_id"`
	Time           time.Time `json:"time"`
	Tags           []string  `json:"tags"`
	Paths          []string  `json:"paths"`
	Hostname       string    `json:"hostname"`
	Username       string    `json:"username"`
	ProgramVersion string    `json:"program_version"`
	Summary        *Summary  `json:"summary"`
}

// CatConfig reads the repository config. It needs the repository key, so a
// successful call also proves the password is valid.
func CatConfig(ctx context.Context, bin BinaryInfo, repo Repo) (Config, error) {
	stdout, stderr, err := runCommand(ctx, bin, repo, []string{"--no-lock", "cat", "config"})
	if err != nil {
		return Config{}, fmt.Errorf("restic: cat config: %w: %s", err, strings.TrimSpace(stderr))
	}
	return ParseConfig([]byte(stdout))
}

// ParseConfig decodes `restic cat config` output.
func ParseConfig(data []byte) (Config, error) {
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("restic: parse config json: %w", err)
	}
	if cfg.ID == "" {
		return Config{}, fmt.Errorf("restic: config has no repository id")
	}
	return cfg, nil
}

// ListSnapshots returns snapshots matching the provided tags, oldest first.
func ListSnapshots(ctx context.Context, bin BinaryInfo, repo Repo, tags []string) ([]Snapshot, error) {
	args := []string{"--no-lock", "snapshots", "--json"}
	for _, tag := range tags {
		args = append(args, "--tag", tag)
	}
	stdout, stderr, err := runCommand(ctx, bin, repo, args)
	if err != nil {
		return nil, fmt.Errorf("restic: list snapshots: %w: %s", err, strings.TrimSpace(stderr))
	}
	return ParseSnapshots([]byte(stdout))
}

// ParseSnapshots decodes `restic snapshots --json` output.
func ParseSnapshots(data []byte) ([]Snapshot, error) {
	var snaps []Snapshot
	if err := json.Unmarshal(data, &snaps); err != nil {
		return nil, fmt.Errorf("restic: parse snapshots json: %w", err)
	}
	sort.SliceStable(snaps, func(i, j int) bool { return snaps[i].Time.Before(snaps[j].Time) })
	return snaps, nil
}

func (r Repo) args() []string {
	keys := make([]string, 0, len(r.Options))
	for k := range r.Options {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	args := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		args = append(args, "-o", k+"="+r.Options[k])
	}
	return args
}

// credentialEnv lists variables that would let the inherited environment
// override the configured repository or password.
var credentialEnv = []string{
	"RESTIC_REPOSITORY", "RESTIC_REPOSITORY_FILE",
	"RESTIC_PASSWORD", "RESTIC_PASSWORD_FILE", "RESTIC_PASSWORD_COMMAND",
}

func appendRepoEnv(env []string, repo Repo) []string {
	if env == nil {
		env = os.Environ()
	}
	env = slices.DeleteFunc(slices.Clone(env), func(kv string) bool {
		name, _, _ := strings.Cut(kv, "=")
		return slices.Contains(credentialEnv, name)
	})
	env = append(env, fmt.Sprintf("RESTIC_REPOSITORY=%s", repo.Location))
	switch {
	case repo.Password != "":
		env = append(env, fmt.Sprintf("RESTIC_PASSWORD=%s", repo.Password))
	case repo.PasswordFile != "":
		env = append(env, fmt.Sprintf("RESTIC_PASSWORD_FILE=%s", repo.PasswordFile))
	}
	return env
}

func runCommand(ctx context.Context, bin BinaryInfo, repo Repo, args []string) (string, string, error) {
	cmd := exec.CommandContext(ctx, bin.Path, append(repo.args(), args...)...)
	cmd.Env = appendRepoEnv(nil, repo)
	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf
	err := cmd.Run()
	return stdoutBuf.String(), stderrBuf.String(), err
}
