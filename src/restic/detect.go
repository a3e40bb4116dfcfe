package restic

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
)

// RequiredVersion is the first restic release that records a backup
// summary in every snapshot.
const RequiredVersion = "0.17.0"

// DefaultBinary is looked up on PATH when no binary is configured.
const DefaultBinary = "restic"

// BinaryInfo describes a detected restic CLI binary.
type BinaryInfo struct {
	Path    string
	Version string
}

var versionRegexp = regexp.MustCompile(`restic\s+([0-9]+\.[0-9]+\.[0-9]+(?:-[A-Za-z0-9.]+)?)`)

var minVersion = semver.MustParse(RequiredVersion)

// Detect locates the restic binary (a path, or a name looked up on PATH),
// queries its version and returns the gathered metadata.
func Detect(ctx context.Context, binary string) (BinaryInfo, error) {
	if binary == "" {
		binary = DefaultBinary
	}
	exe, err := exec.LookPath(binary)
	if err != nil {
		return BinaryInfo{}, fmt.Errorf("restic binary %q not found: %w", binary, err)
	}
	ver, err := queryVersion(ctx, exe)
	if err != nil {
		return BinaryInfo{}, err
	}
	return BinaryInfo{Path: exe, Version: ver}, nil
}

// IsCompatible reports whether the provided version satisfies the minimum
// supported restic release.
func IsCompatible(version string) bool {
	v, err := semver.NewVersion(strings.TrimSpace(version))
	if err != nil {
		return false
	}
	return !v.LessThan(minVersion)
}

func queryVersion(ctx context.Context, exe string) (string, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
	}

	out, err := exec.CommandContext(ctx, exe, "version").CombinedOutput()
	version, parseErr := ExtractVersion(string(out))
	if parseErr != nil {
		return "", parseErr
	}
	if version == "" {
		return "", errors.New("restic: could not parse version output")
	}
	if err != nil {
		return "", fmt.Errorf("restic: version command failed: %w", err)
	}
	return version, nil
}

func parseVersion(r io.Reader) (string, error) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if matches := versionRegexp.FindStringSubmatch(scanner.Text()); len(matches) == 2 {
			return matches[1], nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("restic: read version output: %w", err)
	}
	return "", nil
}

// ExtractVersion derives the restic version string from `restic version`
// output. An empty string without error means no version was found.
func ExtractVersion(output string) (string, error) {
	return parseVersion(strings.NewReader(output))
}
