package controller

import "fmt"

// Command is a one-byte control protocol code.
type Command byte

// Program lifecycle.
const (
	Start   Command = 0x01
	Stop    Command = 0x02
	Status  Command = 0x03
	Version Command = 0x04
)

// Device lock.
const (
	Lock        Command = 0x10
	Unlock      Command = 0x11
	ForceUnlock Command = 0x12
)

// Outcomes.
const (
	OK           Command = 0x20
	Error        Command = 0x21
	LockNotOwned Command = 0x22
)

// Key-value configuration store.
const (
	ConfigSet   Command = 0x30
	ConfigGet   Command = 0x31
	ConfigErase Command = 0x32
)

var commandNames = map[Command]string{
	Start:        "START",
	Stop:         "STOP",
	Status:       "STATUS",
	Version:      "VERSION",
	Lock:         "LOCK",
	Unlock:       "UNLOCK",
	ForceUnlock:  "FORCE_UNLOCK",
	OK:           "OK",
	Error:        "ERROR",
	LockNotOwned: "LOCK_NOT_OWNED",
	ConfigSet:    "CONFIG_SET",
	ConfigGet:    "CONFIG_GET",
	ConfigErase:  "CONFIG_ERASE",
}

func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN(0x%02X)", byte(c))
}

// ValueType tags a configuration value on the wire.
type ValueType byte

const (
	TypeInt64   ValueType = 0
	TypeFloat32 ValueType = 1
	TypeString  ValueType = 2
)

func (t ValueType) String() string {
	switch t {
	case TypeInt64:
		return "int64"
	case TypeFloat32:
		return "float32"
	case TypeString:
		return "string"
	default:
		return fmt.Sprintf("type(%d)", byte(t))
	}
}
