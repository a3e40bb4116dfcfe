package restic

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restic-exporter/src/backend"
	resticlib "restic-exporter/src/restic"
	"restic-exporter/src/snapshot"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func stubDetect(t *testing.T, calls *int) {
	t.Helper()
	reset := SetDetectForTest(func(_ context.Context, binary string) (resticlib.BinaryInfo, error) {
		*calls++
		return resticlib.BinaryInfo{Path: "/usr/bin/" + binary, Version: resticlib.RequiredVersion}, nil
	})
	t.Cleanup(reset)
}

func connect(t *testing.T, repo string) backend.ConnectOptions {
	t.Helper()
	opts, err := backend.BuildConnectOptions(repo, "secret", "", map[string]string{"sftp.connections": "2"})
	require.NoError(t, err)
	return opts
}

func TestResolveRejectsUnknownScheme(t *testing.T) {
	var calls int
	stubDetect(t, &calls)
	d := New("", discard)
	_, err := d.Resolve(connect(t, "ftp:host/repo"))
	require.Error(t, err)
	assert.Zero(t, calls)
}

func TestResolveFailsWithoutBinaryAndRetries(t *testing.T) {
	attempts := 0
	reset := SetDetectForTest(func(context.Context, string) (resticlib.BinaryInfo, error) {
		attempts++
		if attempts == 1 {
			return resticlib.BinaryInfo{}, errors.New("restic binary not found")
		}
		return resticlib.BinaryInfo{Path: "/opt/restic", Version: "0.17.3"}, nil
	})
	defer reset()

	d := New("/opt/restic", discard)
	_, err := d.Resolve(connect(t, "/srv/restic"))
	require.Error(t, err)

	loc, err := d.Resolve(connect(t, "/srv/restic"))
	require.NoError(t, err)
	assert.Equal(t, "local:/srv/restic", loc.String())

	_, err = d.Resolve(connect(t, "/srv/other"))
	require.NoError(t, err)
	assert.Equal(t, 2, attempts, "binary must be detected once and cached")
}

func TestOpenDescribesRepository(t *testing.T) {
	var calls int
	stubDetect(t, &calls)
	reset := SetCatConfigForTest(func(_ context.Context, bin resticlib.BinaryInfo, repo resticlib.Repo) (resticlib.Config, error) {
		assert.Equal(t, "/usr/bin/restic", bin.Path)
		assert.Equal(t, "sftp:nas:/srv/restic", repo.Location)
		assert.Equal(t, "secret", repo.Password)
		assert.Equal(t, map[string]string{"sftp.connections": "2"}, repo.Options)
		return resticlib.Config{Version: 2, ID: "cafe"}, nil
	})
	defer reset()

	d := New("", discard)
	loc, err := d.Resolve(connect(t, "sftp:nas:/srv/restic"))
	require.NoError(t, err)
	repo, err := d.Open(context.Background(), loc)
	require.NoError(t, err)
	assert.Equal(t, snapshot.RepositoryInfo{ID: "cafe", Version: "2"}, repo.Describe())
}

func TestOpenPropagatesFailure(t *testing.T) {
	var calls int
	stubDetect(t, &calls)
	reset := SetCatConfigForTest(func(context.Context, resticlib.BinaryInfo, resticlib.Repo) (resticlib.Config, error) {
		return resticlib.Config{}, errors.New("wrong password or no key found")
	})
	defer reset()

	d := New("", discard)
	loc, err := d.Resolve(connect(t, "/srv/restic"))
	require.NoError(t, err)
	_, err = d.Open(context.Background(), loc)
	require.Error(t, err)
}

func TestReconcileConvertsAndKeepsKnownSnapshots(t *testing.T) {
	var calls int
	stubDetect(t, &calls)
	resetCfg := SetCatConfigForTest(func(context.Context, resticlib.BinaryInfo, resticlib.Repo) (resticlib.Config, error) {
		return resticlib.Config{Version: 2, ID: "cafe"}, nil
	})
	defer resetCfg()

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	listing := []resticlib.Snapshot{
		{ID: "s1", Time: start, Hostname: "nas", Paths: []string{"/data"}},
	}
	reset := SetListSnapshotsForTest(func(context.Context, resticlib.BinaryInfo, resticlib.Repo, []string) ([]resticlib.Snapshot, error) {
		return listing, nil
	})
	defer reset()

	d := New("", discard)
	loc, err := d.Resolve(connect(t, "/srv/restic"))
	require.NoError(t, err)
	repo, err := d.Open(context.Background(), loc)
	require.NoError(t, err)

	first, err := repo.Reconcile(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Nil(t, first[0].Summary)

	listing = []resticlib.Snapshot{
		{ID: "s1", Time: start, Hostname: "changed"},
		{ID: "s2", Time: start.Add(time.Hour), ProgramVersion: "restic 0.17.3", Summary: &resticlib.Summary{
			BackupStart:         start.Add(time.Hour),
			BackupEnd:           start.Add(time.Hour + time.Minute),
			TotalFilesProcessed: 7,
			TotalBytesProcessed: 512,
		}},
	}
	second, err := repo.Reconcile(context.Background(), first)
	require.NoError(t, err)
	require.Len(t, second, 2)
	assert.Equal(t, first[0], second[0], "known snapshot must keep its fetched value")
	require.NotNil(t, second[1].Summary)
	assert.EqualValues(t, 7, second[1].Summary.TotalFilesProcessed)
	assert.Equal(t, "restic 0.17.3", second[1].ProgramVersion)
}

func TestReconcileFailure(t *testing.T) {
	reset := SetListSnapshotsForTest(func(context.Context, resticlib.BinaryInfo, resticlib.Repo, []string) ([]resticlib.Snapshot, error) {
		return nil, errors.New("repository is already locked exclusively")
	})
	defer reset()

	r := &Repository{info: snapshot.RepositoryInfo{ID: "cafe", Version: "2"}}
	_, err := r.Reconcile(context.Background(), nil)
	require.Error(t, err)
}
