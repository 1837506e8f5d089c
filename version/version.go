// Package version exposes build metadata for callbridge binaries.
// Variables can be set at build time:
//
//	go build -ldflags "-X github.com/AltairaLabs/CallBridge/version.version=1.0.0"
package version

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"
	"strings"
)

const (
	devVersion     = "dev"
	shortCommitLen = 7
)

// Build-time variables, overridable with -ldflags.
var (
	version   = devVersion
	gitCommit = ""
	buildDate = ""
)

// GetVersion returns the release version, falling back to module build
// info when no ldflags were set.
func GetVersion() string {
	if version != devVersion {
		return version
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		if v := info.Main.Version; v != "" && v != "(devel)" {
			return v
		}
	}
	return devVersion
}

// buildSetting returns one VCS setting from the embedded build info.
func buildSetting(key string) string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, s := range info.Settings {
		if s.Key == key {
			return s.Value
		}
	}
	return ""
}

// commit returns the short commit hash, preferring the ldflags value.
func commit() string {
	if gitCommit != "" {
		return gitCommit
	}
	c := buildSetting("vcs.revision")
	if len(c) > shortCommitLen {
		c = c[:shortCommitLen]
	}
	return c
}

// GetVersionInfo renders the banner for the -version flag.
func GetVersionInfo() string {
	var b strings.Builder
	fmt.Fprintf(&b, "callbridge version %s", GetVersion())
	if c := commit(); c != "" {
		fmt.Fprintf(&b, "\ncommit: %s", c)
	}
	if buildDate != "" {
		fmt.Fprintf(&b, "\nbuilt: %s", buildDate)
	}
	return b.String()
}

// GetBuildInfo returns version details as slog attributes for startup
// log messages.
func GetBuildInfo() []any {
	attrs := []any{"version", GetVersion()}
	if c := commit(); c != "" {
		attrs = append(attrs, "commit", c)
	}
	if gitCommit == "" && buildSetting("vcs.modified") == "true" {
		attrs = append(attrs, "dirty", true)
	}
	if buildDate != "" {
		attrs = append(attrs, "built", buildDate)
	}
	return attrs
}

// LogStartup logs build metadata at debug level; at the default info
// level it stays quiet.
func LogStartup() {
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug", "trace":
	default:
		return
	}
	slog.Log(context.Background(), slog.LevelDebug, "callbridge starting", GetBuildInfo()...)
}
