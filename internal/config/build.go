package config

import "fmt"

// Set with -ldflags at release time, e.g.
//
//	go build -ldflags "-X atbat/internal/config.version=1.4.0 \
//	    -X atbat/internal/config.commit=$(git rev-parse --short HEAD) \
//	    -X atbat/internal/config.buildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)" ./cmd/...
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

// NewBuildInfo reports the linker-injected build metadata.
func NewBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   version,
		Commit:    commit,
		BuildTime: buildTime,
	}
}

// String is the one-line form printed by `atbat --version`.
func (b BuildInfo) String() string {
	return fmt.Sprintf("%s (commit: %s, built: %s)", b.Version, b.Commit, b.BuildTime)
}

// UserAgent identifies this build to the remote model endpoint.
func (b BuildInfo) UserAgent() string {
	return "atbat/" + b.Version
}
