package uploader

import (
	"errors"
	"fmt"
)

var (
	// ErrBusy is returned when an operation is started while another one
	// on the same Uploader is still waiting for the device.
	ErrBusy = errors.New("uploader: operation already in progress")
	// ErrTimeout is returned when the device does not answer in time.
	ErrTimeout = errors.New("uploader: timed out waiting for device")
	// ErrPathTooLong is returned when a request does not fit one packet.
	ErrPathTooLong = errors.New("uploader: path does not fit in one packet")
	// ErrMalformedListing is returned when a listing response cannot be parsed.
	ErrMalformedListing = errors.New("uploader: malformed listing")
	// ErrLinkClosed is returned when the link goes down mid-operation.
	ErrLinkClosed = errors.New("uploader: link closed")
)

// CommandError reports a device response other than the expected one.
type CommandError struct {
	Op   string
	Code Command
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s: device replied %s", e.Op, e.Code)
}

// CodeOf returns the device code carried by err, if err wraps a
// *CommandError.
func CodeOf(err error) (Command, bool) {
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr.Code, true
	}
	return 0, false
}

// PreconditionError reports a local check that failed before anything
// was sent to the device.
type PreconditionError struct {
	Op     string
	Path   string
	Reason string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Op, e.Path, e.Reason)
}
