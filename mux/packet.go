package mux

import "github.com/cubicap/Jaculus-tools-sub000/ipc"

// Packet is one outgoing frame under construction, bound to a channel.
// Callers check Put's result or Space and build a new packet when a
// message does not fit.
type Packet struct {
	mux     *Mux
	channel byte
	enc     ipc.Encoder
}

// Put appends b and reports whether the packet is full afterwards.
func (p *Packet) Put(b byte) bool {
	return p.enc.Put(b)
}

// Space returns how many more payload bytes fit.
func (p *Packet) Space() int {
	return p.enc.Capacity() - p.enc.Size()
}

// Size returns the number of payload bytes accumulated.
func (p *Packet) Size() int {
	return p.enc.Size()
}

// Channel returns the channel the packet is bound to.
func (p *Packet) Channel() byte {
	return p.channel
}

// Send finalizes the frame and writes it to the transport.
// The packet is empty afterwards and may be reused.
func (p *Packet) Send() error {
	var payload []byte
	if p.mux.txObserver != nil {
		payload = p.enc.Payload()
	}
	frame := p.enc.Finalize(p.channel)
	return p.mux.write(p.channel, payload, frame)
}
