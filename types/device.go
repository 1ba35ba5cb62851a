//nolint:revive // types is a common Go package naming convention
package types

// SessionMeta identifies one host/device session.
// Attached to every log line emitted while the session is open.
type SessionMeta struct {
	// SessionID is a random identifier generated when the session opens.
	SessionID string `json:"session_id" yaml:"session_id"`
	// Endpoint is the serial port path or socket address.
	Endpoint string `json:"endpoint" yaml:"endpoint"`
}

// Status is the device's report on the running program.
type Status struct {
	Running  bool   `json:"running" yaml:"running"`
	ExitCode int    `json:"exit_code" yaml:"exit_code"`
	Text     string `json:"status" yaml:"status"`
}

// DirEntry is one directory listing entry.
type DirEntry struct {
	Name  string `json:"name" yaml:"name"`
	IsDir bool   `json:"is_dir" yaml:"is_dir"`
	Size  uint32 `json:"size" yaml:"size"`
}

// HashEntry is a file path and the hex SHA-1 digest of its contents.
type HashEntry struct {
	Name string `json:"name" yaml:"name"`
	SHA1 string `json:"sha1" yaml:"sha1"`
}

// Resource is a named, read-only blob bundled into the device firmware.
type Resource struct {
	Name string `json:"name" yaml:"name"`
	Size uint32 `json:"size" yaml:"size"`
}
