// Package version reports the taskflow release embedded at build time.
package version

import (
	_ "embed"
	"strings"
)

// Name is the program name announced to MCP clients and printed by the CLI.
const Name = "taskflow"

//go:embed VERSION
var versionContent string

// Get returns the current version, with whitespace trimmed
func Get() string {
	return strings.TrimSpace(versionContent)
}

// String returns the program name and version, e.g. "taskflow 0.1.0".
func String() string {
	return Name + " " + Get()
}
