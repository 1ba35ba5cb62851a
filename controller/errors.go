package controller

import (
	"errors"
	"fmt"
)

var (
	// ErrBusy is returned when a request is made while another one on the
	// same Controller is still waiting for the device.
	ErrBusy = errors.New("controller: request already in progress")
	// ErrTimeout is returned when the device does not answer in time.
	ErrTimeout = errors.New("controller: timed out waiting for device")
	// ErrArgumentTooLong is returned when a request does not fit one packet.
	ErrArgumentTooLong = errors.New("controller: arguments do not fit in one packet")
	// ErrMalformedResponse is returned when a response payload is too short.
	ErrMalformedResponse = errors.New("controller: malformed response")
	// ErrValueOutOfRange is returned for integers outside the 48-bit range
	// the device stores.
	ErrValueOutOfRange = errors.New("controller: integer outside 48-bit range")
	// ErrLinkClosed is returned when the link goes down mid-request.
	ErrLinkClosed = errors.New("controller: link closed")
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
