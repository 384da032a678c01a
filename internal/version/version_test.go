package version

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/protoplast/internal/cycles"
)

func withVersion(t *testing.T, version, commit, built string) {
	t.Helper()
	oldVersion, oldCommit, oldBuilt := Version, GitCommit, BuildTime
	Version, GitCommit, BuildTime = version, commit, built
	t.Cleanup(func() { Version, GitCommit, BuildTime = oldVersion, oldCommit, oldBuilt })
}

func TestReleaseVersion(t *testing.T) {
	withVersion(t, "v1.4.2", "0123456789abcdef", "2026-01-02T03:04:05Z")

	assert.Equal(t, "v1.4.2 (0123456)", GetShortVersion())
	assert.True(t, IsRelease())

	v, err := Semver()
	require.NoError(t, err)
	assert.Equal(t, uint64(4), v.Minor())

	info := GetBuildInfo()
	assert.Equal(t, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), info.BuildTime)
	assert.Equal(t, cycles.DefaultResponse().String(), info.CycleDefault)
	assert.Contains(t, GetDetailedVersion(), "Commit: 0123456789abcdef")
}

func TestPrereleaseVersion(t *testing.T) {
	withVersion(t, "1.5.0-rc.1", "unknown", "unknown")
	assert.False(t, IsRelease())
	assert.True(t, GetBuildInfo().BuildTime.IsZero())
}

func TestParseBuildTime(t *testing.T) {
	assert.True(t, parseBuildTime("yesterday").IsZero())
	assert.False(t, parseBuildTime("2026-10-17T00:00:00Z").IsZero())
}
