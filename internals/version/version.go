package version

import "strings"

// SemVer is set at build time for releases.
//
// Example:
//
//	-ldflags "-X github.com/orcalabs/orcad/internals/version.SemVer=1.2.3"
var SemVer = "0.0.0-dev"

// BuiltAt is set at build time for releases.
//
// Example:
//
//	-ldflags "-X github.com/orcalabs/orcad/internals/version.BuiltAt=2026-08-31T00:00:00Z"
var BuiltAt = ""

// Version returns the SemVer string, with build metadata when present.
func Version() string {
	v := strings.TrimSpace(SemVer)
	if v == "" {
		v = "0.0.0-dev"
	}
	at := strings.TrimSpace(BuiltAt)
	if at == "" {
		return v
	}
	if strings.Contains(v, "+") {
		return v + "." + at
	}
	return v + "+" + at
}
