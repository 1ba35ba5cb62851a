package mux

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/cubicap/Jaculus-tools-sub000/ipc"
	"github.com/cubicap/Jaculus-tools-sub000/metrics"
)

// captureStream records writes; reads report EOF immediately.
type captureStream struct {
	mu     sync.Mutex
	buf    bytes.Buffer
	closed bool
}

func (s *captureStream) Read([]byte) (int, error) { return 0, io.EOF }

func (s *captureStream) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *captureStream) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *captureStream) frames(t *testing.T) []ipc.Frame {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()

	var d ipc.Decoder
	var out []ipc.Frame
	for _, b := range s.buf.Bytes() {
		if d.Put(b) {
			f, err := d.Decode()
			if err != nil {
				t.Fatalf("written frame does not decode: %v", err)
			}
			out = append(out, f)
		}
	}
	return out
}

func mustEncode(t *testing.T, channel byte, payload []byte) []byte {
	t.Helper()
	frame, err := ipc.Encode(channel, payload)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	return frame
}

func TestReceive_ChannelIsolation(t *testing.T) {
	m := New(&captureStream{})

	var onA, onB [][]byte
	m.Subscribe(1, func(p []byte) { onA = append(onA, p) })
	m.Subscribe(2, func(p []byte) { onB = append(onB, p) })

	type seen struct {
		ch      byte
		payload string
	}
	var global []seen
	m.SetGlobal(func(ch byte, p []byte) { global = append(global, seen{ch, string(p)}) })

	var stream []byte
	stream = append(stream, mustEncode(t, 1, []byte("a1"))...)
	stream = append(stream, mustEncode(t, 3, []byte("nobody"))...)
	stream = append(stream, mustEncode(t, 1, []byte("a2"))...)
	if err := m.Receive(stream); err != nil {
		t.Fatalf("Receive failed: %v", err)
	}

	if len(onA) != 2 || string(onA[0]) != "a1" || string(onA[1]) != "a2" {
		t.Errorf("channel 1 consumer got %q", onA)
	}
	if len(onB) != 0 {
		t.Errorf("channel 2 consumer got %q, want nothing", onB)
	}
	want := []seen{{1, "a1"}, {3, "nobody"}, {1, "a2"}}
	if len(global) != len(want) {
		t.Fatalf("global observer saw %d frames, want %d", len(global), len(want))
	}
	for i := range want {
		if global[i] != want[i] {
			t.Errorf("global[%d] = %+v, want %+v", i, global[i], want[i])
		}
	}
}

func TestReceive_SplitAcrossChunks(t *testing.T) {
	m := New(&captureStream{})

	var got []byte
	m.Subscribe(17, func(p []byte) { got = append(got, p...) })

	frame := mustEncode(t, 17, []byte("split me"))
	for _, b := range frame {
		if err := m.Receive([]byte{b}); err != nil {
			t.Fatalf("Receive failed: %v", err)
		}
	}

	if string(got) != "split me" {
		t.Errorf("got %q", got)
	}
}

func TestReceive_DropsMalformedFrames(t *testing.T) {
	collector := metrics.NewCollector("sess", "ep")
	m := New(&captureStream{}, WithCollector(collector))

	var got []string
	m.Subscribe(0, func(p []byte) { got = append(got, string(p)) })

	bad := mustEncode(t, 0, []byte("corrupt"))
	bad[5] ^= 0x01
	good := mustEncode(t, 0, []byte("fine"))

	if err := m.Receive(append(bad, good...)); err != nil {
		t.Fatalf("Receive must not surface link errors, got %v", err)
	}

	if len(got) != 1 || got[0] != "fine" {
		t.Errorf("got %q, want only the valid frame", got)
	}
	s := collector.Snapshot()
	if s.FramesDropped != 1 || s.DroppedByReason[metrics.DropChecksum] != 1 {
		t.Errorf("dropped = %d by reason %v", s.FramesDropped, s.DroppedByReason)
	}
	if s.FramesReceived != 1 {
		t.Errorf("FramesReceived = %d, want 1", s.FramesReceived)
	}
}

func TestSubscribe_NilUnregisters(t *testing.T) {
	m := New(&captureStream{})

	calls := 0
	m.Subscribe(5, func([]byte) { calls++ })
	m.Subscribe(5, nil)

	if err := m.Receive(mustEncode(t, 5, []byte("x"))); err != nil {
		t.Fatalf("Receive failed: %v", err)
	}
	if calls != 0 {
		t.Errorf("unregistered consumer called %d times", calls)
	}
}

func TestPacket_SendWritesFrame(t *testing.T) {
	stream := &captureStream{}
	var observed []byte
	m := New(stream, WithTxObserver(func(ch byte, p []byte) {
		if ch == 16 {
			observed = append(observed, p...)
		}
	}))

	pkt, err := m.BuildPacket(16)
	if err != nil {
		t.Fatalf("BuildPacket failed: %v", err)
	}
	if pkt.Space() != m.MaxPacketSize() {
		t.Errorf("Space() = %d, want %d", pkt.Space(), m.MaxPacketSize())
	}
	for _, b := range []byte("print(1)") {
		pkt.Put(b)
	}
	if pkt.Space() != m.MaxPacketSize()-8 {
		t.Errorf("Space() = %d, want %d", pkt.Space(), m.MaxPacketSize()-8)
	}
	if err := pkt.Send(); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	frames := stream.frames(t)
	if len(frames) != 1 {
		t.Fatalf("wrote %d frames, want 1", len(frames))
	}
	if frames[0].Channel != 16 || string(frames[0].Payload) != "print(1)" {
		t.Errorf("frame = %+v", frames[0])
	}
	if string(observed) != "print(1)" {
		t.Errorf("tx observer saw %q", observed)
	}
}

func TestClose_RejectsFurtherUse(t *testing.T) {
	stream := &captureStream{}
	var closeErr error
	closed := false
	m := New(stream, WithOnClose(func(err error) { closed = true; closeErr = err }))

	pkt, err := m.BuildPacket(1)
	if err != nil {
		t.Fatalf("BuildPacket failed: %v", err)
	}

	if err := m.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}

	if !stream.closed {
		t.Error("transport was not closed")
	}
	if !closed || closeErr != nil {
		t.Errorf("onClose called=%v err=%v", closed, closeErr)
	}
	if err := m.Receive([]byte{0}); !errors.Is(err, ErrClosed) {
		t.Errorf("Receive after close = %v, want ErrClosed", err)
	}
	if _, err := m.BuildPacket(1); !errors.Is(err, ErrClosed) {
		t.Errorf("BuildPacket after close = %v, want ErrClosed", err)
	}
	if err := pkt.Send(); !errors.Is(err, ErrClosed) {
		t.Errorf("Send after close = %v, want ErrClosed", err)
	}
}

// pipeStream joins an io.Pipe reader (device → host) with a discard writer.
type pipeStream struct {
	*io.PipeReader
}

func (pipeStream) Write(p []byte) (int, error) { return len(p), nil }

func TestStart_ReadLoopDeliversAndEnds(t *testing.T) {
	r, w := io.Pipe()
	m := New(pipeStream{r})

	got := make(chan string, 1)
	m.Subscribe(17, func(p []byte) { got <- string(p) })
	m.Start(t.Context())

	frame := mustEncode(t, 17, []byte("hello"))
	go func() {
		_, _ = w.Write(frame)
		_ = w.Close()
	}()

	select {
	case s := <-got:
		if s != "hello" {
			t.Errorf("got %q", s)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("frame not delivered")
	}

	select {
	case <-m.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("mux did not shut down on EOF")
	}
	if m.Err() != nil {
		t.Errorf("Err() = %v, want nil on EOF", m.Err())
	}
}

func TestStart_ContextCancel(t *testing.T) {
	r, _ := io.Pipe()
	m := New(pipeStream{r})

	ctx, cancel := context.WithCancel(t.Context())
	m.Start(ctx)
	cancel()

	select {
	case <-m.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("mux did not shut down on cancel")
	}
	if !errors.Is(m.Err(), context.Canceled) {
		t.Errorf("Err() = %v, want context.Canceled", m.Err())
	}
}
