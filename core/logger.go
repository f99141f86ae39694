package core

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"go.uber.org/zap"
)

// LogEmitterMetaSize, LogConsumerMetaSize and LogNameSize are the exact
// field widths from spec.md §6's packed record layout.
const (
	LogEmitterMetaSize  = 2
	LogTimestampSize    = 8
	LogEmitterIDSize    = 4
	LogNameSize         = 14 // includes null terminator
	LogFilterSize       = 1
	LogConsumerMetaSize = LogTimestampSize + LogEmitterIDSize + LogNameSize + LogFilterSize
)

// LogRecord is a fixed-size slot sized exactly to a dataport: emitter
// metadata, a consumer-reserved region the emitter zeroes, and a
// null-terminated message filling the remainder.
type LogRecord struct {
	EmitterLevel  uint8
	EmitterFilter uint8

	Timestamp     int64
	EmitterID     uint32
	EmitterName   [LogNameSize]byte
	ConsumerFilter uint8

	Message []byte
}

// MarshalSlot packs r into a buffer exactly slotSize bytes long, the
// dataport-sized wire form of the record (spec.md §6: "static assertion
// on sizeof == dataport size").
func (r *LogRecord) MarshalSlot(slotSize int) ([]byte, error) {
	headerSize := LogEmitterMetaSize + LogConsumerMetaSize
	if slotSize < headerSize+1 {
		return nil, ErrInsufficientSpace
	}
	buf := make([]byte, slotSize)
	buf[0] = r.EmitterLevel
	buf[1] = r.EmitterFilter
	off := LogEmitterMetaSize
	binary.BigEndian.PutUint64(buf[off:off+8], uint64(r.Timestamp))
	off += 8
	binary.BigEndian.PutUint32(buf[off:off+4], r.EmitterID)
	off += 4
	copy(buf[off:off+LogNameSize], r.EmitterName[:])
	off += LogNameSize
	buf[off] = r.ConsumerFilter
	off++
	maxMsg := slotSize - off - 1
	msg := r.Message
	if len(msg) > maxMsg {
		msg = msg[:maxMsg]
	}
	copy(buf[off:], msg)
	return buf, nil
}

// emitterName packs name into the fixed null-terminated field, silently
// truncating anything too long to fit with its terminator.
func emitterName(name string) [LogNameSize]byte {
	var out [LogNameSize]byte
	n := copy(out[:LogNameSize-1], name)
	out[n] = 0
	return out
}

// LogObserver is a stateless sink for finalized log entries, the Go
// shape of the Logger's attach/detach/notify observer chain.
type LogObserver interface {
	Notify(r LogRecord)
}

// ConsoleObserver writes entries to stdout via logrus, the
// caller-facing sink callers are expected to configure themselves.
type ConsoleObserver struct{ log *logrus.Logger }

// NewConsoleObserver returns an observer writing through a dedicated
// logrus.Logger so its formatter/level are independent of the rest of
// the process's logging.
func NewConsoleObserver() *ConsoleObserver {
	l := logrus.New()
	l.SetOutput(os.Stdout)
	return &ConsoleObserver{log: l}
}

func (c *ConsoleObserver) Notify(r LogRecord) {
	c.log.WithFields(logrus.Fields{
		"emitter_id": r.EmitterID,
		"emitter":    nullTerminated(r.EmitterName[:]),
		"level":      r.EmitterLevel,
	}).Info(nullTerminated(r.Message))
}

// FileObserver appends entries to an io.Writer-backed file sink.
type FileObserver struct {
	mu sync.Mutex
	f  *os.File
}

// NewFileObserver opens path for appending.
func NewFileObserver(path string) (*FileObserver, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, ErrIO
	}
	return &FileObserver{f: f}, nil
}

func (fo *FileObserver) Notify(r LogRecord) {
	fo.mu.Lock()
	defer fo.mu.Unlock()
	line := fmt.Sprintf("%d\t%d\t%s\t%s\n", r.Timestamp, r.EmitterID, nullTerminated(r.EmitterName[:]), nullTerminated(r.Message))
	_, _ = fo.f.WriteString(line)
}

func nullTerminated(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return string(b[:i])
	}
	return string(b)
}

// Logger is the consumer side of the emit protocol: it fills in
// timestamp/id/name/filter on an emitter-submitted slot, then passes it
// to every attached observer. Internal diagnostics (dropped entries)
// are reported through zap, independent of whatever logrus sink
// observers are configured with.
type Logger struct {
	mu        sync.Mutex
	observers []LogObserver
	zl        *zap.Logger
	dropped   prometheus.Counter
	emitted   prometheus.Counter
}

// NewLogger constructs a Logger context, registering its counters on
// reg under name.
func NewLogger(reg prometheus.Registerer, name string) (*Logger, error) {
	zl, err := zap.NewProduction()
	if err != nil {
		return nil, ErrGeneric
	}
	l := &Logger{
		zl: zl,
		emitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trentos_log_entries_emitted_total", ConstLabels: prometheus.Labels{"logger": name},
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trentos_log_entries_dropped_total", ConstLabels: prometheus.Labels{"logger": name},
		}),
	}
	if reg != nil {
		reg.MustRegister(l.emitted, l.dropped)
	}
	return l, nil
}

// Attach registers an observer to receive future entries.
func (l *Logger) Attach(o LogObserver) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.observers = append(l.observers, o)
}

// Detach removes a previously attached observer.
func (l *Logger) Detach(o LogObserver) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, ob := range l.observers {
		if ob == o {
			l.observers = append(l.observers[:i], l.observers[i+1:]...)
			return
		}
	}
}

// Emit completes the consumer side of a submitted record and notifies
// every observer, unless the entry's level is above consumerFilter, in
// which case it is silently dropped (spec.md §4.8).
func (l *Logger) Emit(emitterID uint32, name string, level uint8, consumerFilter uint8, message []byte) {
	r := LogRecord{
		EmitterLevel:   level,
		EmitterFilter:  consumerFilter,
		Timestamp:      time.Now().UnixNano(),
		EmitterID:      emitterID,
		EmitterName:    emitterName(name),
		ConsumerFilter: consumerFilter,
		Message:        message,
	}
	if level > consumerFilter {
		l.dropped.Inc()
		l.zl.Debug("entry dropped by filter", zap.Uint8("level", level), zap.Uint8("filter", consumerFilter))
		return
	}
	l.mu.Lock()
	obs := append([]LogObserver(nil), l.observers...)
	l.mu.Unlock()
	for _, o := range obs {
		o.Notify(r)
	}
	l.emitted.Inc()
}

// Close flushes internal diagnostics.
func (l *Logger) Close() error {
	return l.zl.Sync()
}
