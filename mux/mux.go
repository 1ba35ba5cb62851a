// Package mux splits one duplex byte stream into 256 independent message
// channels.
//
// Incoming bytes pass through a single frame decoder; every valid frame is
// handed to the consumer registered for its channel and to the optional
// global observer. Malformed frames are counted and dropped, never
// surfaced. Outgoing messages are built one frame at a time with
// BuildPacket; the mux never splits or reassembles multi-frame messages.
package mux

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/cubicap/Jaculus-tools-sub000/ipc"
	"github.com/cubicap/Jaculus-tools-sub000/log"
	"github.com/cubicap/Jaculus-tools-sub000/metrics"
)

// ErrClosed is returned by operations on a closed mux.
var ErrClosed = errors.New("mux: already closed")

const readBufferSize = 1024

// Consumer receives the payload of every valid frame on one channel.
// Consumers run on the read goroutine and must not block.
type Consumer func(payload []byte)

// Observer receives every frame regardless of channel.
type Observer func(channel byte, payload []byte)

// Option configures a Mux.
type Option func(*Mux)

// WithLogger sets the logger. Defaults to log.Nop().
func WithLogger(logger *log.Logger) Option {
	return func(m *Mux) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithCollector sets the metrics collector. Nil disables metrics.
func WithCollector(c *metrics.Collector) Option {
	return func(m *Mux) {
		m.collector = c
	}
}

// WithTxObserver sets a callback invoked for every frame written.
func WithTxObserver(obs Observer) Option {
	return func(m *Mux) {
		m.txObserver = obs
	}
}

// WithOnClose sets a callback invoked once when the mux closes. err is nil
// for a clean end of stream or an explicit Close.
func WithOnClose(fn func(err error)) Option {
	return func(m *Mux) {
		m.onClose = fn
	}
}

// Mux multiplexes channels over one transport.
type Mux struct {
	stream     io.ReadWriter
	logger     *log.Logger
	collector  *metrics.Collector
	txObserver Observer
	onClose    func(error)

	// recvMu serializes Receive so the decoder sees one ordered stream.
	recvMu  sync.Mutex
	decoder ipc.Decoder

	writeMu sync.Mutex

	mu        sync.Mutex
	consumers [256]Consumer
	global    Observer
	closed    bool
	err       error
	done      chan struct{}
}

// New creates a mux over stream. Call Start to begin reading.
func New(stream io.ReadWriter, opts ...Option) *Mux {
	m := &Mux{
		stream: stream,
		logger: log.Nop(),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start launches the read loop. The loop ends when the stream reports
// EOF or an error, when ctx is cancelled, or when Close is called.
func (m *Mux) Start(ctx context.Context) {
	go m.readLoop()
	go func() {
		select {
		case <-ctx.Done():
			m.shutdown(ctx.Err())
		case <-m.done:
		}
	}()
}

func (m *Mux) readLoop() {
	buf := make([]byte, readBufferSize)
	for {
		n, err := m.stream.Read(buf)
		if n > 0 {
			if rerr := m.Receive(buf[:n]); rerr != nil {
				return
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) || m.isClosed() {
				m.shutdown(nil)
			} else {
				m.logger.Error("transport read failed", map[string]any{"error": err.Error()})
				m.shutdown(fmt.Errorf("mux: read: %w", err))
			}
			return
		}
	}
}

// Receive feeds raw transport bytes through the decoder and dispatches
// every frame they complete.
func (m *Mux) Receive(data []byte) error {
	m.recvMu.Lock()
	defer m.recvMu.Unlock()

	if m.isClosed() {
		return ErrClosed
	}
	m.collector.AddBytesReceived(len(data))

	for _, b := range data {
		if !m.decoder.Put(b) {
			continue
		}
		frame, err := m.decoder.Decode()
		if err != nil {
			reason := metrics.DropStructure
			if kind, ok := ipc.FrameErrorKindOf(err); ok {
				reason = kind.String()
			}
			m.collector.IncFrameDropped(reason)
			m.logger.Debug("dropped malformed frame", map[string]any{
				"reason": reason,
				"error":  err.Error(),
			})
			continue
		}
		m.dispatch(frame)
	}
	return nil
}

func (m *Mux) dispatch(frame ipc.Frame) {
	m.mu.Lock()
	consumer := m.consumers[frame.Channel]
	global := m.global
	m.mu.Unlock()

	m.collector.IncFrameReceived(frame.Channel)

	// observer first: a consumer may complete a request and end the session
	if global != nil {
		global(frame.Channel, frame.Payload)
	}
	if consumer != nil {
		consumer(frame.Payload)
	}
}

// Subscribe registers consumer for channel, replacing any previous one.
// A nil consumer clears the registration.
func (m *Mux) Subscribe(channel byte, consumer Consumer) {
	m.mu.Lock()
	m.consumers[channel] = consumer
	m.mu.Unlock()
}

// SetGlobal sets or clears (nil) the observer that sees every frame.
func (m *Mux) SetGlobal(obs Observer) {
	m.mu.Lock()
	m.global = obs
	m.mu.Unlock()
}

// BuildPacket returns an empty outgoing packet bound to channel.
func (m *Mux) BuildPacket(channel byte) (*Packet, error) {
	if m.isClosed() {
		return nil, ErrClosed
	}
	return &Packet{mux: m, channel: channel}, nil
}

// MaxPacketSize returns the payload capacity of one packet.
func (m *Mux) MaxPacketSize() int {
	return ipc.Capacity
}

func (m *Mux) write(channel byte, payload, frame []byte) error {
	if m.isClosed() {
		return ErrClosed
	}

	m.writeMu.Lock()
	_, err := m.stream.Write(frame)
	m.writeMu.Unlock()
	if err != nil {
		return fmt.Errorf("mux: write channel %d: %w", channel, err)
	}

	m.collector.IncFrameSent(len(frame))
	if m.txObserver != nil {
		m.txObserver(channel, payload)
	}
	return nil
}

// Done is closed when the mux has shut down.
func (m *Mux) Done() <-chan struct{} {
	return m.done
}

// Err returns the error that ended the read loop, or nil for a clean
// shutdown. Only meaningful after Done is closed.
func (m *Mux) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

// Close shuts the mux down and closes the transport if it is an io.Closer.
// Close is idempotent.
func (m *Mux) Close() error {
	return m.shutdown(nil)
}

func (m *Mux) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *Mux) shutdown(cause error) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.err = cause
	m.mu.Unlock()

	var closeErr error
	if c, ok := m.stream.(io.Closer); ok {
		closeErr = c.Close()
	}
	close(m.done)

	if m.onClose != nil {
		m.onClose(cause)
	}
	return closeErr
}
