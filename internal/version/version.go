// Package version reports build metadata for the omnigrid binary.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
	"time"
)

// Set at build time with -ldflags "-X github.com/conneroisu/omnigrid/internal/version.Version=...".
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// BuildInfo contains version and build information.
type BuildInfo struct {
	Version   string    `json:"version"`
	GitCommit string    `json:"git_commit"`
	BuildTime time.Time `json:"build_time"`
	Dirty     bool      `json:"dirty"`
	GoVersion string    `json:"go_version"`
	Platform  string    `json:"platform"`
}

// Get collects build information from the linker variables, falling back
// to the VCS stamps embedded by the go tool.
func Get() BuildInfo {
	info := BuildInfo{
		Version:   Version,
		GitCommit: GitCommit,
		BuildTime: parseBuildTime(BuildTime),
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}

	if bi, ok := debug.ReadBuildInfo(); ok {
		applyBuildSettings(&info, bi)
	}

	return info
}

func applyBuildSettings(info *BuildInfo, bi *debug.BuildInfo) {
	if info.Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		info.Version = bi.Main.Version
	}
	for _, setting := range bi.Settings {
		switch setting.Key {
		case "vcs.revision":
			if info.GitCommit == "unknown" {
				info.GitCommit = setting.Value
			}
		case "vcs.time":
			if info.BuildTime.IsZero() {
				info.BuildTime = parseBuildTime(setting.Value)
			}
		case "vcs.modified":
			info.Dirty = setting.Value == "true"
		}
	}
}

// IsRelease reports whether this is a tagged build.
func (b BuildInfo) IsRelease() bool {
	return b.Version != "dev" && !strings.HasPrefix(b.Version, "dev-")
}

// Short returns "<version> (<commit>)", or just the version without a commit.
func (b BuildInfo) Short() string {
	if len(b.GitCommit) < 7 || b.GitCommit == "unknown" {
		return b.Version
	}
	return fmt.Sprintf("%s (%s)", b.Version, b.GitCommit[:7])
}

// String renders every known field, one per line.
func (b BuildInfo) String() string {
	lines := []string{"omnigrid " + b.Short()}
	if b.Dirty {
		lines = append(lines, "Working tree: dirty")
	}
	if !b.BuildTime.IsZero() {
		lines = append(lines, "Built: "+b.BuildTime.UTC().Format(time.RFC3339))
	}
	lines = append(lines, "Go: "+b.GoVersion, "Platform: "+b.Platform)

	return strings.Join(lines, "\n")
}

func parseBuildTime(value string) time.Time {
	if value == "" || value == "unknown" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	return time.Time{}
}
