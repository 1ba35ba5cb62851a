// Package controller implements the control protocol: program lifecycle,
// the device lock and the typed configuration store.
//
// Every request sends one packet and waits for exactly one response.
// A Controller handles one request at a time; a second concurrent request
// fails with ErrBusy. A response that arrives after its request timed out
// is dropped.
package controller

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cubicap/Jaculus-tools-sub000/log"
	"github.com/cubicap/Jaculus-tools-sub000/metrics"
	"github.com/cubicap/Jaculus-tools-sub000/mux"
	"github.com/cubicap/Jaculus-tools-sub000/types"
)

// Defaults for request timing.
const (
	DefaultTimeout     = 5 * time.Second
	LockAttempts       = 50
	LockAttemptTimeout = 100 * time.Millisecond
	LockSettleDelay    = 10 * time.Millisecond
)

// PacketInput is the receive side of a packet channel.
type PacketInput interface {
	OnData(fn func(data []byte))
	Close()
}

// PacketOutput is the send side of a packet channel.
type PacketOutput interface {
	BuildPacket() (*mux.Packet, error)
	MaxPacketSize() int
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger. Defaults to log.Nop().
func WithLogger(logger *log.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithCollector sets the metrics collector.
func WithCollector(collector *metrics.Collector) Option {
	return func(c *Controller) {
		c.collector = collector
	}
}

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLockAttemptTimeout overrides LockAttemptTimeout.
func WithLockAttemptTimeout(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.lockAttemptTimeout = d
		}
	}
}

// WithLinkDone makes waiting requests fail with ErrLinkClosed once done
// is closed. Typically mux.Done().
func WithLinkDone(done <-chan struct{}) Option {
	return func(c *Controller) {
		c.linkDone = done
	}
}

type reply struct {
	code Command
	data []byte
}

// Controller drives the control protocol.
type Controller struct {
	in                 PacketInput
	out                PacketOutput
	logger             *log.Logger
	collector          *metrics.Collector
	timeout            time.Duration
	lockAttemptTimeout time.Duration
	linkDone           <-chan struct{}

	mu      sync.Mutex
	op      string
	replies chan reply // nil when idle
}

// New creates a Controller and registers it on in.
func New(in PacketInput, out PacketOutput, opts ...Option) *Controller {
	c := &Controller{
		in:                 in,
		out:                out,
		logger:             log.Nop(),
		timeout:            DefaultTimeout,
		lockAttemptTimeout: LockAttemptTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	in.OnData(c.onPacket)
	return c
}

// Close unregisters the Controller from its channel.
func (c *Controller) Close() {
	c.in.Close()
}

func (c *Controller) onPacket(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.replies == nil || len(data) == 0 {
		c.collector.IncUnexpectedFrame()
		c.logger.Debug("dropped control packet with no pending request", map[string]any{
			"size": len(data),
		})
		return
	}

	r := reply{code: Command(data[0]), data: append([]byte(nil), data[1:]...)}
	select {
	case c.replies <- r:
	default:
		c.collector.IncUnexpectedFrame()
		c.logger.Debug("dropped surplus control reply", map[string]any{
			"op":   c.op,
			"code": r.code.String(),
		})
	}
}

func (c *Controller) begin(op string) (chan reply, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.replies != nil {
		c.collector.IncBusyRejection()
		return nil, fmt.Errorf("%s: %w (pending %s)", op, ErrBusy, c.op)
	}
	c.op = op
	c.replies = make(chan reply, 1)
	return c.replies, nil
}

func (c *Controller) end() {
	c.mu.Lock()
	c.op = ""
	c.replies = nil
	c.mu.Unlock()
}

// request sends cmd and args in one packet and returns the single
// response, waiting at most timeout.
func (c *Controller) request(ctx context.Context, op string, cmd Command, args []byte, timeout time.Duration) (reply, error) {
	replies, err := c.begin(op)
	if err != nil {
		return reply{}, err
	}
	defer c.end()

	pkt, err := c.out.BuildPacket()
	if err != nil {
		return reply{}, fmt.Errorf("%s: %w", op, err)
	}
	if 1+len(args) > pkt.Space() {
		return reply{}, fmt.Errorf("%s: %w (%d bytes)", op, ErrArgumentTooLong, len(args))
	}
	pkt.Put(byte(cmd))
	for _, b := range args {
		pkt.Put(b)
	}
	if err := pkt.Send(); err != nil {
		return reply{}, fmt.Errorf("%s: %w", op, err)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case r := <-replies:
		return r, nil
	case <-ctx.Done():
		return reply{}, fmt.Errorf("%s: %w", op, ctx.Err())
	case <-timer.C:
		c.collector.IncTimeout()
		return reply{}, fmt.Errorf("%s: %w after %s", op, ErrTimeout, timeout)
	case <-c.linkDone:
		return reply{}, fmt.Errorf("%s: %w", op, ErrLinkClosed)
	}
}

// call performs a request that succeeds when the device answers with want.
func (c *Controller) call(ctx context.Context, op string, cmd Command, args []byte, want Command) ([]byte, error) {
	r, err := c.request(ctx, op, cmd, args, c.timeout)
	if err != nil {
		return nil, err
	}
	if r.code != want {
		c.collector.IncProtocolError()
		return nil, &CommandError{Op: op, Code: r.code}
	}
	return r.data, nil
}

// Start runs the program at entry on the device.
func (c *Controller) Start(ctx context.Context, entry string) error {
	_, err := c.call(ctx, "start", Start, []byte(entry), OK)
	return err
}

// Stop terminates the running program.
func (c *Controller) Stop(ctx context.Context) error {
	_, err := c.call(ctx, "stop", Stop, nil, OK)
	return err
}

// Status reports whether a program is running, its last exit code and
// the device's status text.
func (c *Controller) Status(ctx context.Context) (types.Status, error) {
	data, err := c.call(ctx, "status", Status, nil, Status)
	if err != nil {
		return types.Status{}, err
	}
	if len(data) < 2 {
		return types.Status{}, fmt.Errorf("status: %w (%d bytes)", ErrMalformedResponse, len(data))
	}
	return types.Status{
		Running:  data[0] != 0,
		ExitCode: int(int8(data[1])),
		Text:     string(data[2:]),
	}, nil
}

// Version returns the firmware version lines.
func (c *Controller) Version(ctx context.Context) ([]string, error) {
	data, err := c.call(ctx, "version", Version, nil, Version)
	if err != nil {
		return nil, err
	}
	lines := []string{}
	for _, line := range strings.Split(string(data), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, nil
}

// Lock acquires the device lock, retrying up to LockAttempts times.
//
// When every attempt fails Lock logs a warning and returns nil; callers
// that must know the lock is held should check with a follow-up request.
func (c *Controller) Lock(ctx context.Context) error {
	for attempt := 1; attempt <= LockAttempts; attempt++ {
		c.collector.IncLockAttempt()
		r, err := c.request(ctx, "lock", Lock, nil, c.lockAttemptTimeout)
		switch {
		case err == nil && r.code == OK:
			return sleepCtx(ctx, LockSettleDelay)
		case err == nil:
			c.logger.Debug("lock refused", map[string]any{"attempt": attempt, "code": r.code.String()})
		case errors.Is(err, ErrTimeout):
			c.logger.Debug("lock attempt timed out", map[string]any{"attempt": attempt})
		default:
			return err
		}
	}

	c.collector.IncLockGiveUp()
	c.logger.Warn("device lock not acquired, continuing", map[string]any{
		"attempts": LockAttempts,
	})
	return nil
}

// Unlock releases the device lock.
func (c *Controller) Unlock(ctx context.Context) error {
	_, err := c.call(ctx, "unlock", Unlock, nil, OK)
	return err
}

// ForceUnlock releases the device lock regardless of its owner.
func (c *Controller) ForceUnlock(ctx context.Context) error {
	_, err := c.call(ctx, "force unlock", ForceUnlock, nil, OK)
	return err
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
