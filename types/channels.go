//nolint:revive // types is a common Go package naming convention
package types

// Link channel assignments. Every conversation with the device runs on
// one of these channels of a single multiplexed transport.
const (
	// ChannelControl carries the controller protocol.
	ChannelControl byte = 0
	// ChannelStorage carries the uploader (file/storage) protocol.
	ChannelStorage byte = 1
	// ChannelStdin carries bytes written to the running program's input.
	ChannelStdin byte = 16
	// ChannelStdout carries the running program's output.
	ChannelStdout byte = 17
	// ChannelLog carries device log text.
	ChannelLog byte = 253
	// ChannelDebug carries device debug text.
	ChannelDebug byte = 254
	// ChannelError carries device error text.
	ChannelError byte = 255
)

// ChannelName returns a short label for well-known channels, used in
// logs and traces. Unknown channels render as "".
func ChannelName(ch byte) string {
	switch ch {
	case ChannelControl:
		return "control"
	case ChannelStorage:
		return "storage"
	case ChannelStdin:
		return "stdin"
	case ChannelStdout:
		return "stdout"
	case ChannelLog:
		return "log"
	case ChannelDebug:
		return "debug"
	case ChannelError:
		return "error"
	default:
		return ""
	}
}
