package config

import "time"

// These are injected at build time via -ldflags
var (
	Version   string
	GitCommit string
	BuildTime string
)

// BuildInfo is the version information reported by the server
type BuildInfo struct {
	Version   string `json:"version"`
	GitCommit string `json:"commit"`
	BuildTime string `json:"buildTime"`
}

func init() {
	// Local / dev fallback
	if Version == "" {
		Version = "dev"
	}
	if GitCommit == "" {
		GitCommit = "local"
	}
	if BuildTime == "" {
		BuildTime = time.Now().Format("2006-01-02 15:04:05")
	}
}

// GetBuildInfo returns the version information of this binary
func GetBuildInfo() BuildInfo {
	return BuildInfo{Version: Version, GitCommit: GitCommit, BuildTime: BuildTime}
}
