package config

import "fmt"

// VersionMajor, VersionMinor and VersionPatch identify this build of the
// crawler. ToolVersion is recorded in every sidecar it writes (spec.md §3).
const (
	VersionMajor = 1
	VersionMinor = 0
	VersionPatch = 0
)

// ToolVersion is the dotted tool_version string stamped into sidecars.
var ToolVersion = fmt.Sprintf("%d.%d.%d", VersionMajor, VersionMinor, VersionPatch)

// BuiltinPolicyVersion is used when QC_POLICY_VERSION is unset.
const BuiltinPolicyVersion = "default"
