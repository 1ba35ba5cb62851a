// Package runtime opens a device session: it connects the transport,
// starts the multiplexer and binds every well-known channel to its
// protocol or text stream.
package runtime

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/cubicap/Jaculus-tools-sub000/comm"
	"github.com/cubicap/Jaculus-tools-sub000/controller"
	"github.com/cubicap/Jaculus-tools-sub000/iox"
	"github.com/cubicap/Jaculus-tools-sub000/log"
	"github.com/cubicap/Jaculus-tools-sub000/metrics"
	"github.com/cubicap/Jaculus-tools-sub000/mux"
	"github.com/cubicap/Jaculus-tools-sub000/trace"
	"github.com/cubicap/Jaculus-tools-sub000/transport"
	"github.com/cubicap/Jaculus-tools-sub000/types"
	"github.com/cubicap/Jaculus-tools-sub000/uploader"
)

// StreamFactory opens the transport stream. Used for test injection.
type StreamFactory func(ctx context.Context, cfg transport.Config) (transport.Stream, error)

// SessionConfig configures a device session.
type SessionConfig struct {
	// Transport selects the serial port or socket.
	Transport transport.Config
	// LogLevel is used when Logger is nil.
	LogLevel string
	// Logger overrides the session logger. If nil, a JSON logger on
	// os.Stderr is created with the session identity attached.
	Logger *log.Logger
	// Collector receives link and protocol counters. If nil, one is
	// created for the session.
	Collector *metrics.Collector
	// Trace, if set, receives every frame in both directions.
	Trace io.Writer
	// Stdout receives the running program's output. Nil discards.
	Stdout io.Writer
	// Stderr receives device error text and, prefixed, device log text.
	// Nil discards.
	Stderr io.Writer
	// Debug receives device debug text. Nil discards.
	Debug io.Writer
	// ControlTimeout overrides the controller request timeout.
	ControlTimeout time.Duration
	// StorageTimeout bounds each storage response. Zero waits for the
	// caller's context only.
	StorageTimeout time.Duration
	// LockAttemptTimeout overrides the per-attempt lock timeout.
	LockAttemptTimeout time.Duration
	// Progress, if set, is called as file writes advance.
	Progress uploader.ProgressFunc
	// StreamFactory overrides transport.Open (for testing).
	StreamFactory StreamFactory
}

// Device is an open session with one device.
type Device struct {
	// Meta identifies the session.
	Meta types.SessionMeta
	// Controller drives the control channel.
	Controller *controller.Controller
	// Uploader drives the storage channel.
	Uploader *uploader.Uploader
	// Stdin writes to the running program's input.
	Stdin *comm.OutputStream

	mux       *mux.Mux
	logger    *log.Logger
	collector *metrics.Collector
	recorder  *trace.Recorder
	inputs    []*comm.InputStream
	flushers  []*iox.PrefixWriter
}

// Open connects to the device and starts the session. The session lives
// until ctx is cancelled, the link drops or Close is called.
func Open(ctx context.Context, cfg *SessionConfig) (*Device, error) {
	meta := types.SessionMeta{
		SessionID: uuid.NewString(),
		Endpoint:  cfg.Transport.Endpoint(),
	}

	logger := cfg.Logger
	if logger == nil {
		var err error
		if logger, err = log.NewLogger(&meta, cfg.LogLevel); err != nil {
			return nil, err
		}
	}

	collector := cfg.Collector
	if collector == nil {
		collector = metrics.NewCollector(meta.SessionID, meta.Endpoint)
	}

	open := cfg.StreamFactory
	if open == nil {
		open = transport.Open
	}
	stream, err := open(ctx, cfg.Transport)
	if err != nil {
		logger.Error("failed to open transport", map[string]any{"error": err.Error()})
		return nil, err
	}

	d := &Device{
		Meta:      meta,
		logger:    logger,
		collector: collector,
	}

	muxOpts := []mux.Option{
		mux.WithLogger(logger.Named("mux")),
		mux.WithCollector(collector),
		mux.WithOnClose(d.onLinkClosed),
	}
	if cfg.Trace != nil {
		d.recorder = trace.NewRecorder(cfg.Trace)
		muxOpts = append(muxOpts, mux.WithTxObserver(d.recorder.TX))
	}
	d.mux = mux.New(stream, muxOpts...)
	if d.recorder != nil {
		d.mux.SetGlobal(d.recorder.RX)
	}

	d.Controller = controller.New(
		comm.NewInputPacket(d.mux, types.ChannelControl),
		comm.NewOutputPacket(d.mux, types.ChannelControl),
		controller.WithLogger(logger.Named("controller")),
		controller.WithCollector(collector),
		controller.WithTimeout(cfg.ControlTimeout),
		controller.WithLockAttemptTimeout(cfg.LockAttemptTimeout),
		controller.WithLinkDone(d.mux.Done()),
	)
	d.Uploader = uploader.New(
		comm.NewInputPacket(d.mux, types.ChannelStorage),
		comm.NewOutputPacket(d.mux, types.ChannelStorage),
		uploader.WithLogger(logger.Named("uploader")),
		uploader.WithCollector(collector),
		uploader.WithTimeout(cfg.StorageTimeout),
		uploader.WithProgress(cfg.Progress),
		uploader.WithLinkDone(d.mux.Done()),
	)
	d.Stdin = comm.NewOutputStream(d.mux, types.ChannelStdin)

	d.forward(types.ChannelStdout, cfg.Stdout, "")
	d.forward(types.ChannelError, cfg.Stderr, "")
	d.forward(types.ChannelLog, cfg.Stderr, "[log] ")
	d.forward(types.ChannelDebug, cfg.Debug, "[debug] ")

	d.mux.Start(ctx)
	logger.Info("session opened", nil)
	return d, nil
}

// forward copies a text channel to w. Channels with a prefix are
// line-buffered so each device line is tagged once.
func (d *Device) forward(channel byte, w io.Writer, prefix string) {
	if w == nil {
		return
	}
	if prefix != "" {
		pw := iox.NewPrefixWriter(w, prefix)
		d.flushers = append(d.flushers, pw)
		w = pw
	}
	in := comm.NewInputStream(d.mux, channel)
	in.OnData(func(data []byte) {
		if _, err := w.Write(data); err != nil {
			d.logger.Warn("dropping device output", map[string]any{
				"channel": types.ChannelName(channel),
				"error":   err.Error(),
			})
		}
	})
	d.inputs = append(d.inputs, in)
}

func (d *Device) onLinkClosed(err error) {
	if err != nil {
		d.logger.Warn("link closed", map[string]any{"error": err.Error()})
		return
	}
	d.logger.Debug("link closed", nil)
}

// Done is closed when the link is down.
func (d *Device) Done() <-chan struct{} {
	return d.mux.Done()
}

// Err returns why the link went down, or nil for a clean shutdown.
func (d *Device) Err() error {
	return d.mux.Err()
}

// Metrics returns a snapshot of the session counters.
func (d *Device) Metrics() metrics.Snapshot {
	return d.collector.Snapshot()
}

// Logger returns the session logger.
func (d *Device) Logger() *log.Logger {
	return d.logger
}

// Close unbinds every channel and closes the link.
func (d *Device) Close() error {
	for _, in := range d.inputs {
		in.Close()
	}
	d.Controller.Close()
	d.Uploader.Close()
	for _, f := range d.flushers {
		iox.DiscardErr(f.Flush)
	}

	err := d.mux.Close()
	if d.recorder != nil {
		if terr := d.recorder.Err(); terr != nil {
			d.logger.Warn("trace incomplete", map[string]any{"error": terr.Error()})
		}
	}
	d.logger.Info("session closed", map[string]any{
		"frames_received": d.collector.Snapshot().FramesReceived,
		"frames_dropped":  d.collector.Snapshot().FramesDropped,
	})
	iox.DiscardErr(d.logger.Sync)
	if err != nil {
		return fmt.Errorf("close session: %w", err)
	}
	return nil
}

// Monitor copies in to the program's input until ctx ends, in reaches
// EOF or the link drops. Program output keeps flowing to the configured
// writers throughout.
func (d *Device) Monitor(ctx context.Context, in io.Reader) error {
	copyErr := make(chan error, 1)
	if in != nil {
		go func() {
			_, err := io.Copy(d.Stdin, in)
			copyErr <- err
		}()
	}

	select {
	case <-ctx.Done():
		return nil
	case <-d.Done():
		return d.Err()
	case err := <-copyErr:
		if err != nil {
			return fmt.Errorf("forward stdin: %w", err)
		}
		// input exhausted; keep showing output
		select {
		case <-ctx.Done():
			return nil
		case <-d.Done():
			return d.Err()
		}
	}
}
