package runtime

import (
	"bytes"
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cubicap/Jaculus-tools-sub000/controller"
	"github.com/cubicap/Jaculus-tools-sub000/ipc"
	"github.com/cubicap/Jaculus-tools-sub000/log"
	"github.com/cubicap/Jaculus-tools-sub000/trace"
	"github.com/cubicap/Jaculus-tools-sub000/transport"
	"github.com/cubicap/Jaculus-tools-sub000/types"
)

// syncBuffer is a bytes.Buffer safe for the read goroutine and the test.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *syncBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]byte(nil), b.buf.Bytes()...)
}

// board is the device end of a net.Pipe. It answers host frames with
// handle and can push unsolicited frames.
type board struct {
	conn    net.Conn
	writeMu sync.Mutex
	handle  func(ipc.Frame) []ipc.Frame
}

func (b *board) run() {
	var dec ipc.Decoder
	buf := make([]byte, 256)
	for {
		n, err := b.conn.Read(buf)
		for _, c := range buf[:n] {
			if !dec.Put(c) {
				continue
			}
			f, derr := dec.Decode()
			if derr != nil || b.handle == nil {
				continue
			}
			for _, r := range b.handle(f) {
				_ = b.send(r.Channel, r.Payload)
			}
		}
		if err != nil {
			return
		}
	}
}

func (b *board) send(channel byte, payload []byte) error {
	frame, err := ipc.Encode(channel, payload)
	if err != nil {
		return err
	}
	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	_, err = b.conn.Write(frame)
	return err
}

func openTestDevice(t *testing.T, handle func(ipc.Frame) []ipc.Frame, cfg SessionConfig) (*Device, *board) {
	t.Helper()
	host, dev := net.Pipe()
	b := &board{conn: dev, handle: handle}
	go b.run()
	t.Cleanup(func() { _ = dev.Close() })

	cfg.Logger = log.Nop()
	cfg.StreamFactory = func(context.Context, transport.Config) (transport.Stream, error) {
		return host, nil
	}
	d, err := Open(t.Context(), &cfg)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d, b
}

func controlReply(payload ...byte) []ipc.Frame {
	return []ipc.Frame{{Channel: types.ChannelControl, Payload: payload}}
}

func TestOpen_ControllerRoundTrip(t *testing.T) {
	d, _ := openTestDevice(t, func(f ipc.Frame) []ipc.Frame {
		if f.Channel == types.ChannelControl && controller.Command(f.Payload[0]) == controller.Status {
			return controlReply(append([]byte{byte(controller.Status), 0, 0}, "idle"...)...)
		}
		return nil
	}, SessionConfig{})

	st, err := d.Controller.Status(t.Context())
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if st != (types.Status{Running: false, ExitCode: 0, Text: "idle"}) {
		t.Errorf("Status = %+v", st)
	}
	if d.Meta.SessionID == "" {
		t.Error("session id not generated")
	}
	if m := d.Metrics(); m.FramesSent != 1 || m.FramesReceived != 1 {
		t.Errorf("metrics sent=%d received=%d", m.FramesSent, m.FramesReceived)
	}
}

func TestOpen_ForwardsTextChannels(t *testing.T) {
	var stdout, stderr syncBuffer
	_, b := openTestDevice(t, nil, SessionConfig{Stdout: &stdout, Stderr: &stderr})

	if err := b.send(types.ChannelStdout, []byte("hello ")); err != nil {
		t.Fatal(err)
	}
	if err := b.send(types.ChannelStdout, []byte("world")); err != nil {
		t.Fatal(err)
	}
	if err := b.send(types.ChannelLog, []byte("boot\n")); err != nil {
		t.Fatal(err)
	}
	if err := b.send(types.ChannelError, []byte("oops\n")); err != nil {
		t.Fatal(err)
	}

	waitFor(t, func() bool {
		return stdout.String() == "hello world" && strings.Contains(stderr.String(), "oops\n")
	})
	if got := stderr.String(); !strings.Contains(got, "[log] boot\n") {
		t.Errorf("stderr = %q", got)
	}
}

func TestOpen_StdinAndTrace(t *testing.T) {
	var traceBuf syncBuffer
	got := make(chan string, 1)
	d, _ := openTestDevice(t, func(f ipc.Frame) []ipc.Frame {
		if f.Channel == types.ChannelStdin {
			got <- string(f.Payload)
			return []ipc.Frame{{Channel: types.ChannelStdout, Payload: []byte("echo")}}
		}
		return nil
	}, SessionConfig{Trace: &traceBuf})

	if _, err := d.Stdin.Write([]byte("1+1\n")); err != nil {
		t.Fatalf("stdin write failed: %v", err)
	}
	select {
	case s := <-got:
		if s != "1+1\n" {
			t.Errorf("device got %q", s)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("stdin frame not delivered")
	}

	var records []trace.Record
	waitFor(t, func() bool {
		var err error
		records, err = trace.NewReader(bytes.NewReader(traceBuf.Bytes())).ReadAll()
		return err == nil && len(records) == 2
	})
	var sawTX, sawRX bool
	for _, r := range records {
		switch {
		case r.Direction == trace.DirectionTX && r.Channel == types.ChannelStdin && string(r.Payload) == "1+1\n":
			sawTX = true
		case r.Direction == trace.DirectionRX && r.Channel == types.ChannelStdout && string(r.Payload) == "echo":
			sawRX = true
		}
	}
	if !sawTX || !sawRX {
		t.Errorf("records = %+v", records)
	}
}

func TestLinkDropEndsSession(t *testing.T) {
	d, b := openTestDevice(t, nil, SessionConfig{})

	errc := make(chan error, 1)
	go func() { errc <- d.Monitor(t.Context(), nil) }()

	_ = b.conn.Close()

	select {
	case <-d.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("session did not end after link drop")
	}
	select {
	case err := <-errc:
		if err != nil {
			t.Errorf("Monitor err = %v, want nil on clean EOF", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Monitor did not return")
	}

	if _, err := d.Controller.Status(t.Context()); err == nil {
		t.Error("request succeeded on a dropped link")
	}
}

func TestOpen_TransportError(t *testing.T) {
	cfg := &SessionConfig{
		Logger: log.Nop(),
		StreamFactory: func(context.Context, transport.Config) (transport.Stream, error) {
			return nil, errors.New("no such port")
		},
	}
	if _, err := Open(t.Context(), cfg); err == nil {
		t.Error("expected error")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
