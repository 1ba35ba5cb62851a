package uploader

import "fmt"

// Command is a one-byte storage protocol code. Requests, streamed
// framing markers and outcomes share one code space.
type Command byte

// Request codes.
const (
	ReadFile      Command = 0x01
	WriteFile     Command = 0x02
	DeleteFile    Command = 0x03
	ListDir       Command = 0x04
	CreateDir     Command = 0x05
	DeleteDir     Command = 0x06
	FormatStorage Command = 0x07
	ListResources Command = 0x08
	ReadResource  Command = 0x09
	GetDirHashes  Command = 0x0A
)

// Streamed data markers.
const (
	HasMoreData Command = 0x10
	LastData    Command = 0x11
)

// Outcome and flow control codes.
const (
	OK           Command = 0x20
	Error        Command = 0x21
	NotFound     Command = 0x22
	Continue     Command = 0x23
	LockNotOwned Command = 0x24
)

var commandNames = map[Command]string{
	ReadFile:      "READ_FILE",
	WriteFile:     "WRITE_FILE",
	DeleteFile:    "DELETE_FILE",
	ListDir:       "LIST_DIR",
	CreateDir:     "CREATE_DIR",
	DeleteDir:     "DELETE_DIR",
	FormatStorage: "FORMAT_STORAGE",
	ListResources: "LIST_RESOURCES",
	ReadResource:  "READ_RESOURCE",
	GetDirHashes:  "GET_DIR_HASHES",
	HasMoreData:   "HAS_MORE_DATA",
	LastData:      "LAST_DATA",
	OK:            "OK",
	Error:         "ERROR",
	NotFound:      "NOT_FOUND",
	Continue:      "CONTINUE",
	LockNotOwned:  "LOCK_NOT_OWNED",
}

// String returns the symbolic protocol name of the code.
func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN(0x%02X)", byte(c))
}
