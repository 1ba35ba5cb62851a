// Package transport opens the byte streams a device session runs over:
// a serial port or a TCP socket.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"go.bug.st/serial"
)

// Stream is a duplex byte stream to the device. Close unblocks a pending
// Read.
type Stream = io.ReadWriteCloser

// Serial and socket defaults.
const (
	DefaultBaudRate    = 921600
	DefaultDialTimeout = 5 * time.Second
	DefaultSocketPort  = "17531"
)

// ErrNoEndpoint is returned by Open when neither a port nor a socket is set.
var ErrNoEndpoint = errors.New("transport: no serial port or socket configured")

// Config selects and parameterizes a transport. Exactly one of Port and
// Socket should be set; Port wins when both are.
type Config struct {
	Port        string
	BaudRate    int
	Socket      string
	DialTimeout time.Duration
}

// Endpoint returns the human-readable address of the configured transport.
func (c Config) Endpoint() string {
	if c.Port != "" {
		return c.Port
	}
	return c.Socket
}

// Open opens the transport described by cfg.
func Open(ctx context.Context, cfg Config) (Stream, error) {
	switch {
	case cfg.Port != "":
		baud := cfg.BaudRate
		if baud <= 0 {
			baud = DefaultBaudRate
		}
		return OpenSerial(cfg.Port, baud)
	case cfg.Socket != "":
		timeout := cfg.DialTimeout
		if timeout <= 0 {
			timeout = DefaultDialTimeout
		}
		return DialTCP(ctx, cfg.Socket, timeout)
	default:
		return nil, ErrNoEndpoint
	}
}

// OpenSerial opens a serial port in 8N1 mode.
func OpenSerial(path string, baud int) (Stream, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("transport: open %s: %w", path, err)
	}
	return port, nil
}

// ListSerialPorts returns the serial ports present on the host.
func ListSerialPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("transport: list ports: %w", err)
	}
	return ports, nil
}

// DialTCP connects to a device socket. An address without a port gets
// DefaultSocketPort.
func DialTCP(ctx context.Context, address string, timeout time.Duration) (Stream, error) {
	if _, _, err := net.SplitHostPort(address); err != nil {
		address = net.JoinHostPort(address, DefaultSocketPort)
	}
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", address, err)
	}
	return conn, nil
}
