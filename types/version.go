//nolint:revive // types is a common Go package naming convention
package types

// Version is the canonical project version.
// The CLI and the library packages share this version.
const Version = "0.4.0"

// MinFirmwareVersion is the oldest device firmware this tool speaks to.
// Reported alongside Version by `jac version`.
const MinFirmwareVersion = "0.0.19"
