// Package version provides build-time version information.
//
// Variables are set at build time via ldflags:
//
//	go build -ldflags "-X github.com/rickgao/soc/internal/version.Version=1.0.0 \
//	                   -X github.com/rickgao/soc/internal/version.Commit=$(git rev-parse --short HEAD) \
//	                   -X github.com/rickgao/soc/internal/version.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
package version

// Set via ldflags.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// String returns a formatted version string.
func String() string {
	return Version + " (" + Commit + ") built " + BuildTime
}

// UserAgent is the User-Agent a binary sends on the websocket handshake,
// e.g. "socclient/1.0.0 (abc1234)".
func UserAgent(binary string) string {
	return binary + "/" + Version + " (" + Commit + ")"
}
