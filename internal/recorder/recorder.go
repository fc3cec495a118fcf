// Package recorder persists dispatched messages as newline-delimited JSON.
//
// A log holds one boot record, any number of message records and a shutdown record, all
// tagged with the session id of the recorder that wrote them. Records are buffered in
// memory and written by Flush, which Run calls periodically.
package recorder

import (
	"bufio"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/leandrodaf/midiroute/internal/clock"
	"github.com/leandrodaf/midiroute/internal/codec"
	"github.com/leandrodaf/midiroute/sdk/contracts"
)

// Record types.
const (
	TypeBoot     = "boot"
	TypeMessage  = "message"
	TypeShutdown = "shutdown"
)

// DefaultFlushInterval is used by Run when no interval is configured.
const DefaultFlushInterval = 2 * time.Second

// ErrClosed is returned when recording into a closed recorder.
var ErrClosed = errors.New("recorder closed")

// Record is one line of the log.
type Record struct {
	Type    string         `json:"type"`
	Session string         `json:"session"`
	Wall    int64          `json:"wall"`
	Total   float64        `json:"total"`
	Port    string         `json:"port,omitempty"`
	Message *MessageRecord `json:"message,omitempty"`
}

// MessageRecord is the message part of a TypeMessage record.
type MessageRecord struct {
	Kind            string  `json:"kind"`
	Channel         uint8   `json:"channel"`
	Data            uint8   `json:"data"`
	Value           uint8   `json:"value"`
	Status          uint8   `json:"status"`
	Delta           float64 `json:"dt"`
	Nanos           int64   `json:"nanos"`
	OriginalChannel uint8   `json:"originalChannel"`
	OriginalData    uint8   `json:"originalData"`
	Raw             string  `json:"raw"`
}

// Recorder buffers records and writes them to an io.Writer.
type Recorder struct {
	log      contracts.Logger
	clock    *clock.Clock
	session  string
	port     string
	interval time.Duration

	mu      sync.Mutex
	w       io.Writer
	bw      *bufio.Writer
	pending []Record
	closed  bool
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithClock stamps boot and shutdown records with c.
func WithClock(c *clock.Clock) Option {
	return func(r *Recorder) {
		r.clock = c
	}
}

// WithFlushInterval sets the period used by Run.
func WithFlushInterval(d time.Duration) Option {
	return func(r *Recorder) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithPort tags boot and shutdown records with a port name.
func WithPort(name string) Option {
	return func(r *Recorder) {
		r.port = name
	}
}

// WithSession overrides the generated session id.
func WithSession(id string) Option {
	return func(r *Recorder) {
		r.session = id
	}
}

// New creates a recorder writing to w and queues the boot record.
func New(w io.Writer, log contracts.Logger, opts ...Option) *Recorder {
	r := &Recorder{
		log:      log,
		session:  uuid.NewString(),
		interval: DefaultFlushInterval,
		w:        w,
		bw:       bufio.NewWriter(w),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.clock == nil {
		r.clock = clock.New()
	}
	r.pending = append(r.pending, r.marker(TypeBoot))
	return r
}

// Open creates or appends to the log file at path.
func Open(path string, log contracts.Logger, opts ...Option) (*Recorder, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open event log: %w", err)
	}
	return New(f, log, opts...), nil
}

// Session returns the session id written on every record.
func (r *Recorder) Session() string {
	return r.session
}

// Record queues a message record. Its signature matches router.RecordFunc.
func (r *Recorder) Record(msg codec.Message, raw []byte) {
	rec := Record{
		Type:    TypeMessage,
		Session: r.session,
		Wall:    msg.Timestamp.Wall,
		Total:   msg.Timestamp.Total,
		Port:    msg.Origin.Port,
		Message: &MessageRecord{
			Kind:            msg.Kind.Name(),
			Channel:         msg.Channel,
			Data:            msg.Data,
			Value:           msg.Value,
			Status:          msg.Status,
			Delta:           finite(msg.Timestamp.Delta),
			Nanos:           msg.Timestamp.Nanos,
			OriginalChannel: msg.Origin.OriginalChannel,
			OriginalData:    msg.Origin.OriginalData,
			Raw:             hex.EncodeToString(raw),
		},
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.pending = append(r.pending, rec)
}

// Pending returns the number of records not yet flushed.
func (r *Recorder) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// Flush writes pending records.
func (r *Recorder) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	return r.flushLocked()
}

// Run flushes every flush interval until ctx is done. Flush errors are logged.
func (r *Recorder) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := r.Flush(); err != nil {
				if errors.Is(err, ErrClosed) {
					return nil
				}
				r.log.Error("Failed to flush event log", r.log.Field().Error("error", err))
			}
		}
	}
}

// Close writes the shutdown record, flushes and closes the writer when it is an io.Closer.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.pending = append(r.pending, r.marker(TypeShutdown))
	err := r.flushLocked()
	r.closed = true
	if c, ok := r.w.(io.Closer); ok {
		if cerr := c.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

func (r *Recorder) marker(typ string) Record {
	return Record{
		Type:    typ,
		Session: r.session,
		Wall:    r.clock.WallMillis(),
		Total:   r.clock.Secs(),
		Port:    r.port,
	}
}

func (r *Recorder) flushLocked() error {
	if len(r.pending) == 0 {
		return nil
	}
	enc := json.NewEncoder(r.bw)
	for i, rec := range r.pending {
		if err := enc.Encode(rec); err != nil {
			r.pending = r.pending[i:]
			return fmt.Errorf("encode %s record: %w", rec.Type, err)
		}
	}
	r.pending = r.pending[:0]
	return r.bw.Flush()
}

func finite(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// ReadAll decodes every record of a log.
func ReadAll(rd io.Reader) ([]Record, error) {
	var out []Record
	dec := json.NewDecoder(rd)
	for {
		var rec Record
		err := dec.Decode(&rec)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, fmt.Errorf("decode record %d: %w", len(out)+1, err)
		}
		out = append(out, rec)
	}
}
