// Package version holds clrmeta build metadata. The variables can be
// overridden at build time via -ldflags "-X clrmeta/internal/version.GitCommit=...".
package version

import (
	"strings"

	"github.com/fatih/color"
)

const (
	major = "0"
	minor = "3"
	patch = "0"
)

var (
	// Version is the semantic version of clrmeta.
	Version = major + "." + minor + "." + patch + "-dev"

	// GitCommit is an optional git commit hash.
	GitCommit = ""

	// BuildDate is an optional build date in ISO-8601.
	BuildDate = ""
)

var (
	majorColor = color.New(color.FgYellow, color.Bold)
	minorColor = color.New(color.FgGreen, color.Bold)
	patchColor = color.New(color.FgBlue, color.Bold)
)

// Colored renders Version with each numeric part colored. It honours
// color.NoColor, so the result is plain when color is disabled.
func Colored() string {
	v := strings.TrimSpace(Version)
	core, suffix, hasSuffix := strings.Cut(v, "-")
	parts := strings.SplitN(core, ".", 3)
	if len(parts) != 3 {
		return v
	}
	out := majorColor.Sprint(parts[0]) + "." + minorColor.Sprint(parts[1]) + "." + patchColor.Sprint(parts[2])
	if hasSuffix {
		out += "-" + suffix
	}
	return out
}
