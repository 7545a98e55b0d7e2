package version

// Version is overridden at build time via
// -ldflags "-X voice-control/internal/version.Version=...".
var Version = "2.5.11-dev"

func String() string {
	return Version
}
