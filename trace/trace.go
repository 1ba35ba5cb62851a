// Package trace records link traffic to a file and reads it back.
//
// A trace is a sequence of records, each written as a 4-byte big-endian
// length followed by the msgpack encoding of a Record.
package trace

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Direction of a traced frame relative to the host.
type Direction string

const (
	DirectionRX Direction = "rx"
	DirectionTX Direction = "tx"
)

const (
	lengthPrefixSize = 4
	// MaxRecordSize bounds one encoded record; a frame payload is at most
	// 251 bytes so anything larger is corrupt.
	MaxRecordSize = 4096
)

// ErrCorrupt is returned by Reader.Next for truncated or oversized records.
var ErrCorrupt = errors.New("trace: corrupt record")

// Record is one traced frame.
type Record struct {
	Time      time.Time `msgpack:"t"`
	Direction Direction `msgpack:"dir"`
	Channel   byte      `msgpack:"ch"`
	Payload   []byte    `msgpack:"p"`
}

// Recorder appends records to a writer. Safe for concurrent use; the mux
// reports RX and TX frames from different goroutines.
type Recorder struct {
	mu  sync.Mutex
	w   io.Writer
	now func() time.Time
	err error
}

// NewRecorder returns a Recorder writing to w.
func NewRecorder(w io.Writer) *Recorder {
	return &Recorder{w: w, now: time.Now}
}

// Record writes one record. After the first write error every later call
// returns that error.
func (r *Recorder) Record(dir Direction, channel byte, payload []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.err != nil {
		return r.err
	}
	body, err := msgpack.Marshal(&Record{
		Time:      r.now(),
		Direction: dir,
		Channel:   channel,
		Payload:   payload,
	})
	if err != nil {
		r.err = fmt.Errorf("trace: encode: %w", err)
		return r.err
	}

	buf := make([]byte, lengthPrefixSize, lengthPrefixSize+len(body))
	binary.BigEndian.PutUint32(buf, uint32(len(body)))
	buf = append(buf, body...)
	if _, err := r.w.Write(buf); err != nil {
		r.err = fmt.Errorf("trace: write: %w", err)
	}
	return r.err
}

// RX records a received frame, discarding errors. It matches the mux
// observer signature.
func (r *Recorder) RX(channel byte, payload []byte) {
	_ = r.Record(DirectionRX, channel, payload)
}

// TX records a sent frame, discarding errors. It matches the mux
// observer signature.
func (r *Recorder) TX(channel byte, payload []byte) {
	_ = r.Record(DirectionTX, channel, payload)
}

// Err returns the first error the recorder hit, if any.
func (r *Recorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Reader reads records written by a Recorder.
type Reader struct {
	r io.Reader
}

// NewReader returns a Reader over r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// Next returns the next record, or io.EOF at a clean end of stream.
func (rd *Reader) Next() (Record, error) {
	var prefix [lengthPrefixSize]byte
	if _, err := io.ReadFull(rd.r, prefix[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return Record{}, io.EOF
		}
		return Record{}, fmt.Errorf("%w: length prefix: %v", ErrCorrupt, err)
	}

	size := binary.BigEndian.Uint32(prefix[:])
	if size > MaxRecordSize {
		return Record{}, fmt.Errorf("%w: record size %d exceeds %d", ErrCorrupt, size, MaxRecordSize)
	}
	body := make([]byte, size)
	if _, err := io.ReadFull(rd.r, body); err != nil {
		return Record{}, fmt.Errorf("%w: body: %v", ErrCorrupt, err)
	}

	var rec Record
	if err := msgpack.Unmarshal(body, &rec); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return rec, nil
}

// ReadAll returns every record until end of stream.
func (rd *Reader) ReadAll() ([]Record, error) {
	var out []Record
	for {
		rec, err := rd.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, rec)
	}
}
