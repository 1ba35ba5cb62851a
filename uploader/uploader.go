// Package uploader implements the storage protocol: file and directory
// operations on the device filesystem over one packet channel.
//
// An Uploader runs one operation at a time. Every operation blocks until
// the device answers, the context ends or the configured timeout fires.
// Starting a second operation while one is outstanding fails with ErrBusy.
// A frame that arrives when no operation is waiting for it is dropped.
package uploader

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cubicap/Jaculus-tools-sub000/log"
	"github.com/cubicap/Jaculus-tools-sub000/metrics"
	"github.com/cubicap/Jaculus-tools-sub000/mux"
	"github.com/cubicap/Jaculus-tools-sub000/types"
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

// ProgressFunc reports how many bytes of a write have been sent.
type ProgressFunc func(sent, total int)

// Option configures an Uploader.
type Option func(*Uploader)

// WithLogger sets the logger. Defaults to log.Nop().
func WithLogger(logger *log.Logger) Option {
	return func(u *Uploader) {
		if logger != nil {
			u.logger = logger
		}
	}
}

// WithCollector sets the metrics collector.
func WithCollector(c *metrics.Collector) Option {
	return func(u *Uploader) {
		u.collector = c
	}
}

// WithTimeout bounds how long each device response may take.
// Zero waits for the context only.
func WithTimeout(d time.Duration) Option {
	return func(u *Uploader) {
		u.timeout = d
	}
}

// WithProgress sets a callback invoked after every chunk WriteFile sends.
func WithProgress(fn ProgressFunc) Option {
	return func(u *Uploader) {
		u.progress = fn
	}
}

// WithLinkDone makes waiting operations fail with ErrLinkClosed once done
// is closed. Typically mux.Done().
func WithLinkDone(done <-chan struct{}) Option {
	return func(u *Uploader) {
		u.linkDone = done
	}
}

type state int

const (
	stateIdle state = iota
	stateAwaitingOK
	stateAwaitingData
	stateAwaitingWrite
)

func (s state) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateAwaitingOK:
		return "awaiting_ok"
	case stateAwaitingData:
		return "awaiting_data"
	case stateAwaitingWrite:
		return "awaiting_write"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

type reply struct {
	code Command
	data []byte
}

// Uploader drives the storage protocol.
type Uploader struct {
	in        PacketInput
	out       PacketOutput
	logger    *log.Logger
	collector *metrics.Collector
	timeout   time.Duration
	progress  ProgressFunc
	linkDone  <-chan struct{}

	mu      sync.Mutex
	state   state
	op      string
	acc     []byte
	replies chan reply
}

// New creates an Uploader and registers it on in.
func New(in PacketInput, out PacketOutput, opts ...Option) *Uploader {
	u := &Uploader{
		in:     in,
		out:    out,
		logger: log.Nop(),
	}
	for _, opt := range opts {
		opt(u)
	}
	in.OnData(u.onPacket)
	return u
}

// Close unregisters the Uploader from its channel.
func (u *Uploader) Close() {
	u.in.Close()
}

func (u *Uploader) onPacket(data []byte) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.state == stateIdle || len(data) == 0 {
		u.collector.IncUnexpectedFrame()
		u.logger.Debug("dropped storage packet with no pending operation", map[string]any{
			"size": len(data),
		})
		return
	}

	code := Command(data[0])
	payload := data[1:]

	if u.state == stateAwaitingData {
		switch code {
		case HasMoreData:
			u.acc = append(u.acc, payload...)
			return
		case LastData:
			u.acc = append(u.acc, payload...)
			u.deliver(reply{code: code, data: u.acc})
			u.acc = nil
			return
		}
	}
	u.deliver(reply{code: code, data: append([]byte(nil), payload...)})
}

// deliver hands r to the waiting operation. Called with mu held.
func (u *Uploader) deliver(r reply) {
	select {
	case u.replies <- r:
	default:
		u.collector.IncUnexpectedFrame()
		u.logger.Debug("dropped surplus storage reply", map[string]any{
			"op":   u.op,
			"code": r.code.String(),
		})
	}
}

func (u *Uploader) begin(op string, st state) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.state != stateIdle {
		u.collector.IncBusyRejection()
		return fmt.Errorf("%s: %w (pending %s, %s)", op, ErrBusy, u.op, u.state)
	}
	u.state = st
	u.op = op
	u.acc = nil
	u.replies = make(chan reply, 1)
	return nil
}

func (u *Uploader) end() {
	u.mu.Lock()
	u.state = stateIdle
	u.op = ""
	u.acc = nil
	u.replies = nil
	u.mu.Unlock()
}

func (u *Uploader) wait(ctx context.Context, op string) (reply, error) {
	u.mu.Lock()
	replies := u.replies
	u.mu.Unlock()

	var timeout <-chan time.Time
	if u.timeout > 0 {
		timer := time.NewTimer(u.timeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case r := <-replies:
		return r, nil
	case <-ctx.Done():
		return reply{}, fmt.Errorf("%s: %w", op, ctx.Err())
	case <-timeout:
		u.collector.IncTimeout()
		u.logger.Warn("storage operation timed out", map[string]any{
			"op":      op,
			"timeout": u.timeout.String(),
		})
		return reply{}, fmt.Errorf("%s: %w", op, ErrTimeout)
	case <-u.linkDone:
		return reply{}, fmt.Errorf("%s: %w", op, ErrLinkClosed)
	}
}

func (u *Uploader) fail(op string, code Command) error {
	u.collector.IncProtocolError()
	u.logger.Debug("storage operation failed", map[string]any{
		"op":   op,
		"code": code.String(),
	})
	return &CommandError{Op: op, Code: code}
}

// request sends cmd followed by arg in one packet and waits for the
// first response.
func (u *Uploader) request(ctx context.Context, op string, st state, cmd Command, arg []byte) (reply, error) {
	if err := u.begin(op, st); err != nil {
		return reply{}, err
	}
	defer u.end()

	pkt, err := u.out.BuildPacket()
	if err != nil {
		return reply{}, fmt.Errorf("%s: %w", op, err)
	}
	if 1+len(arg) > pkt.Space() {
		return reply{}, fmt.Errorf("%s %q: %w", op, arg, ErrPathTooLong)
	}
	pkt.Put(byte(cmd))
	for _, b := range arg {
		pkt.Put(b)
	}
	if err := pkt.Send(); err != nil {
		return reply{}, fmt.Errorf("%s: %w", op, err)
	}
	return u.wait(ctx, op)
}

func (u *Uploader) simple(ctx context.Context, op string, cmd Command, arg string) error {
	r, err := u.request(ctx, op, stateAwaitingOK, cmd, []byte(arg))
	if err != nil {
		return err
	}
	if r.code != OK {
		return u.fail(op, r.code)
	}
	return nil
}

func (u *Uploader) streamed(ctx context.Context, op string, cmd Command, arg string) ([]byte, error) {
	r, err := u.request(ctx, op, stateAwaitingData, cmd, []byte(arg))
	if err != nil {
		return nil, err
	}
	if r.code != LastData {
		return nil, u.fail(op, r.code)
	}
	return r.data, nil
}

// DeleteFile removes a file on the device.
func (u *Uploader) DeleteFile(ctx context.Context, path string) error {
	return u.simple(ctx, "delete file", DeleteFile, path)
}

// CreateDirectory creates a directory on the device.
func (u *Uploader) CreateDirectory(ctx context.Context, path string) error {
	return u.simple(ctx, "create directory", CreateDir, path)
}

// DeleteDirectory removes a directory on the device.
func (u *Uploader) DeleteDirectory(ctx context.Context, path string) error {
	return u.simple(ctx, "delete directory", DeleteDir, path)
}

// FormatStorage erases the device filesystem. label names the new volume
// and may be empty.
func (u *Uploader) FormatStorage(ctx context.Context, label string) error {
	return u.simple(ctx, "format storage", FormatStorage, label)
}

// ReadFile returns the contents of a device file.
func (u *Uploader) ReadFile(ctx context.Context, path string) ([]byte, error) {
	return u.streamed(ctx, "read file", ReadFile, path)
}

// ReadResource returns the contents of a firmware resource.
func (u *Uploader) ReadResource(ctx context.Context, name string) ([]byte, error) {
	return u.streamed(ctx, "read resource", ReadResource, name)
}

// ListDirectory returns the entries of a device directory. Any flags are
// sent right after the path; entries are always parsed with their type
// byte.
func (u *Uploader) ListDirectory(ctx context.Context, path string, flags ...byte) ([]types.DirEntry, error) {
	data, err := u.streamed(ctx, "list directory", ListDir, path+string(flags))
	if err != nil {
		return nil, err
	}
	entries, err := parseListing(data)
	if err != nil {
		return nil, fmt.Errorf("list directory %s: %w", path, err)
	}
	return entries, nil
}

// ListResources returns the resources bundled into the firmware.
func (u *Uploader) ListResources(ctx context.Context) ([]types.Resource, error) {
	data, err := u.streamed(ctx, "list resources", ListResources, "")
	if err != nil {
		return nil, err
	}
	entries, err := parseResources(data)
	if err != nil {
		return nil, fmt.Errorf("list resources: %w", err)
	}
	return entries, nil
}

// GetDirHashes returns the SHA-1 digest of every file below path.
// Names are relative to path with '/' separators.
func (u *Uploader) GetDirHashes(ctx context.Context, path string) ([]types.HashEntry, error) {
	data, err := u.streamed(ctx, "get directory hashes", GetDirHashes, path)
	if err != nil {
		return nil, err
	}
	entries, err := parseHashes(data)
	if err != nil {
		return nil, fmt.Errorf("get directory hashes %s: %w", path, err)
	}
	return entries, nil
}

// WriteFile stores data at path, replacing any existing file.
//
// The command and the zero-terminated path travel alone in the first
// packet. The data follows in chunks of at most capacity-1 bytes, each in
// a fresh packet tagged HasMoreData or, for the last one, LastData. After
// each non-final chunk the device must answer Continue before the next is
// sent, and OK after the last. An empty file is a single LastData packet
// with no data.
func (u *Uploader) WriteFile(ctx context.Context, path string, data []byte) error {
	const op = "write file"
	if err := u.begin(op, stateAwaitingWrite); err != nil {
		return err
	}
	defer u.end()

	pkt, err := u.out.BuildPacket()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if len(path)+2 > pkt.Space() {
		return fmt.Errorf("%s %q: %w", op, path, ErrPathTooLong)
	}
	pkt.Put(byte(WriteFile))
	for i := 0; i < len(path); i++ {
		pkt.Put(path[i])
	}
	pkt.Put(0)
	if err := pkt.Send(); err != nil {
		return fmt.Errorf("%s %s: %w", op, path, err)
	}

	capacity := u.out.MaxPacketSize()
	sent := 0
	for {
		if pkt, err = u.out.BuildPacket(); err != nil {
			return fmt.Errorf("%s %s: %w", op, path, err)
		}
		n := min(len(data)-sent, capacity-1, pkt.Space()-1)
		last := sent+n == len(data)
		tag := HasMoreData
		if last {
			tag = LastData
		}

		pkt.Put(byte(tag))
		for _, b := range data[sent : sent+n] {
			pkt.Put(b)
		}
		if err := pkt.Send(); err != nil {
			return fmt.Errorf("%s %s: %w", op, path, err)
		}
		sent += n
		if u.progress != nil {
			u.progress(sent, len(data))
		}

		r, err := u.wait(ctx, op)
		if err != nil {
			return err
		}
		if last {
			if r.code != OK {
				return u.fail(op, r.code)
			}
			u.logger.Debug("file written", map[string]any{"path": path, "size": len(data)})
			return nil
		}
		if r.code != Continue {
			return u.fail(op, r.code)
		}
	}
}
