// Package comm binds a mux channel to one of four narrow roles: a byte
// stream in either direction, or a packet source/sink for the command
// protocols. Communicators hold no buffering of their own; a stream
// input delivers each frame's payload exactly once and performs no
// cross-frame reassembly.
package comm

import (
	"fmt"

	"github.com/cubicap/Jaculus-tools-sub000/mux"
)

// Transport is the part of *mux.Mux the communicators use.
type Transport interface {
	BuildPacket(channel byte) (*mux.Packet, error)
	MaxPacketSize() int
	Subscribe(channel byte, consumer mux.Consumer)
}

var _ Transport = (*mux.Mux)(nil)

// OutputStream writes a continuous byte stream to a channel.
type OutputStream struct {
	tr      Transport
	channel byte
}

// NewOutputStream binds a stream writer to channel.
func NewOutputStream(tr Transport, channel byte) *OutputStream {
	return &OutputStream{tr: tr, channel: channel}
}

// Write fills successive packets, sending each as it fills, and flushes
// the final partial packet.
func (s *OutputStream) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	pkt, err := s.tr.BuildPacket(s.channel)
	if err != nil {
		return 0, err
	}

	// sent counts bytes of p that are in frames already on the wire.
	sent := 0
	for i, b := range p {
		if !pkt.Put(b) {
			continue
		}
		if err := pkt.Send(); err != nil {
			return sent, fmt.Errorf("channel %d: %w", s.channel, err)
		}
		sent = i + 1
		if sent == len(p) {
			return sent, nil
		}
		if pkt, err = s.tr.BuildPacket(s.channel); err != nil {
			return sent, err
		}
	}

	if pkt.Size() > 0 {
		if err := pkt.Send(); err != nil {
			return sent, fmt.Errorf("channel %d: %w", s.channel, err)
		}
	}
	return len(p), nil
}

// Put writes a single byte.
func (s *OutputStream) Put(b byte) error {
	_, err := s.Write([]byte{b})
	return err
}

// InputStream delivers every frame payload of a channel to a callback.
type InputStream struct {
	tr      Transport
	channel byte
}

// NewInputStream binds a stream reader to channel.
func NewInputStream(tr Transport, channel byte) *InputStream {
	return &InputStream{tr: tr, channel: channel}
}

// OnData registers fn as the channel's consumer. A nil fn unregisters.
func (s *InputStream) OnData(fn func(data []byte)) {
	if fn == nil {
		s.tr.Subscribe(s.channel, nil)
		return
	}
	s.tr.Subscribe(s.channel, mux.Consumer(fn))
}

// Close unregisters the stream from its channel.
func (s *InputStream) Close() {
	s.tr.Subscribe(s.channel, nil)
}

// OutputPacket lets a protocol build single frames with mixed command and
// argument bytes.
type OutputPacket struct {
	tr      Transport
	channel byte
}

// NewOutputPacket binds a packet writer to channel.
func NewOutputPacket(tr Transport, channel byte) *OutputPacket {
	return &OutputPacket{tr: tr, channel: channel}
}

// BuildPacket returns a fresh packet bound to the channel.
func (p *OutputPacket) BuildPacket() (*mux.Packet, error) {
	return p.tr.BuildPacket(p.channel)
}

// MaxPacketSize returns the payload capacity of one packet.
func (p *OutputPacket) MaxPacketSize() int {
	return p.tr.MaxPacketSize()
}

// InputPacket forwards each decoded frame payload of a channel unmodified.
type InputPacket struct {
	tr      Transport
	channel byte
}

// NewInputPacket binds a packet reader to channel.
func NewInputPacket(tr Transport, channel byte) *InputPacket {
	return &InputPacket{tr: tr, channel: channel}
}

// OnData registers fn as the channel's consumer. A nil fn unregisters.
func (p *InputPacket) OnData(fn func(data []byte)) {
	if fn == nil {
		p.tr.Subscribe(p.channel, nil)
		return
	}
	p.tr.Subscribe(p.channel, mux.Consumer(fn))
}

// Close unregisters the packet reader from its channel.
func (p *InputPacket) Close() {
	p.tr.Subscribe(p.channel, nil)
}
