// Package metrics provides per-session link and protocol counters.
//
// The Collector accumulates counters while a device session is open. It is
// a leaf package with no internal dependencies so the codec-adjacent
// layers can record into it without import cycles.
package metrics

import "sync"

// Drop reasons recorded by IncFrameDropped. They match the frame error
// kinds of the codec.
const (
	DropIncomplete = "incomplete"
	DropStructure  = "structure"
	DropChecksum   = "checksum"
)

// Snapshot is an immutable point-in-time view of all counters.
// Returned by Collector.Snapshot(). Safe to read concurrently after creation.
type Snapshot struct {
	// Link
	FramesReceived   int64            `json:"frames_received" yaml:"frames_received"`
	FramesSent       int64            `json:"frames_sent" yaml:"frames_sent"`
	FramesDropped    int64            `json:"frames_dropped" yaml:"frames_dropped"`
	DroppedByReason  map[string]int64 `json:"dropped_by_reason" yaml:"dropped_by_reason"`
	ReceivedByChan   map[byte]int64   `json:"received_by_channel" yaml:"received_by_channel"`
	BytesReceived    int64            `json:"bytes_received" yaml:"bytes_received"`
	BytesSent        int64            `json:"bytes_sent" yaml:"bytes_sent"`
	UnexpectedFrames int64            `json:"unexpected_frames" yaml:"unexpected_frames"`

	// Protocols
	ProtocolErrors int64 `json:"protocol_errors" yaml:"protocol_errors"`
	Timeouts       int64 `json:"timeouts" yaml:"timeouts"`
	BusyRejections int64 `json:"busy_rejections" yaml:"busy_rejections"`
	LockAttempts   int64 `json:"lock_attempts" yaml:"lock_attempts"`
	LockGiveUps    int64 `json:"lock_give_ups" yaml:"lock_give_ups"`

	// Dimensions
	SessionID string `json:"session_id" yaml:"session_id"`
	Endpoint  string `json:"endpoint" yaml:"endpoint"`
}

// Collector accumulates metrics during a single session.
// Thread-safe via sync.Mutex. All increment methods are nil-receiver safe.
type Collector struct {
	mu sync.Mutex

	framesReceived   int64
	framesSent       int64
	framesDropped    int64
	droppedByReason  map[string]int64
	receivedByChan   map[byte]int64
	bytesReceived    int64
	bytesSent        int64
	unexpectedFrames int64

	protocolErrors int64
	timeouts       int64
	busyRejections int64
	lockAttempts   int64
	lockGiveUps    int64

	sessionID string
	endpoint  string
}

// NewCollector creates a Collector with dimension labels.
func NewCollector(sessionID, endpoint string) *Collector {
	return &Collector{
		droppedByReason: make(map[string]int64),
		receivedByChan:  make(map[byte]int64),
		sessionID:       sessionID,
		endpoint:        endpoint,
	}
}

// --- Link ---

// IncFrameReceived records a frame that passed validation on channel.
func (c *Collector) IncFrameReceived(channel byte) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.framesReceived++
	c.receivedByChan[channel]++
	c.mu.Unlock()
}

// IncFrameDropped records a frame discarded by the decoder.
func (c *Collector) IncFrameDropped(reason string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.framesDropped++
	c.droppedByReason[reason]++
	c.mu.Unlock()
}

// IncFrameSent records one frame of wireBytes written to the transport.
func (c *Collector) IncFrameSent(wireBytes int) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.framesSent++
	c.bytesSent += int64(wireBytes)
	c.mu.Unlock()
}

// AddBytesReceived records raw bytes read from the transport.
func (c *Collector) AddBytesReceived(n int) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.bytesReceived += int64(n)
	c.mu.Unlock()
}

// IncUnexpectedFrame records a protocol frame that arrived with no
// request pending.
func (c *Collector) IncUnexpectedFrame() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.unexpectedFrames++
	c.mu.Unlock()
}

// --- Protocols ---

// IncProtocolError records a non-success response code.
func (c *Collector) IncProtocolError() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.protocolErrors++
	c.mu.Unlock()
}

// IncTimeout records a request that expired without a response.
func (c *Collector) IncTimeout() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.timeouts++
	c.mu.Unlock()
}

// IncBusyRejection records a request refused because another was pending.
func (c *Collector) IncBusyRejection() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.busyRejections++
	c.mu.Unlock()
}

// IncLockAttempt records one LOCK round trip.
func (c *Collector) IncLockAttempt() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.lockAttempts++
	c.mu.Unlock()
}

// IncLockGiveUp records a lock loop that exhausted its attempts.
func (c *Collector) IncLockGiveUp() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.lockGiveUps++
	c.mu.Unlock()
}

// --- Snapshot ---

// Snapshot returns an immutable point-in-time view of all metrics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	dropped := make(map[string]int64, len(c.droppedByReason))
	for k, v := range c.droppedByReason {
		dropped[k] = v
	}
	byChan := make(map[byte]int64, len(c.receivedByChan))
	for k, v := range c.receivedByChan {
		byChan[k] = v
	}

	return Snapshot{
		FramesReceived:   c.framesReceived,
		FramesSent:       c.framesSent,
		FramesDropped:    c.framesDropped,
		DroppedByReason:  dropped,
		ReceivedByChan:   byChan,
		BytesReceived:    c.bytesReceived,
		BytesSent:        c.bytesSent,
		UnexpectedFrames: c.unexpectedFrames,

		ProtocolErrors: c.protocolErrors,
		Timeouts:       c.timeouts,
		BusyRejections: c.busyRejections,
		LockAttempts:   c.lockAttempts,
		LockGiveUps:    c.lockGiveUps,

		SessionID: c.sessionID,
		Endpoint:  c.endpoint,
	}
}
