package core

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type recordingObserver struct {
	records []LogRecord
}

func (o *recordingObserver) Notify(r LogRecord) { o.records = append(o.records, r) }

func TestLogRecordMarshalSlotExactSize(t *testing.T) {
	r := &LogRecord{EmitterLevel: 1, EmitterID: 42, EmitterName: emitterName("core"), Message: []byte("hello world")}
	slot, err := r.MarshalSlot(64)
	require.NoError(t, err)
	require.Len(t, slot, 64)
}

func TestLogRecordMarshalSlotTooSmallInsufficientSpace(t *testing.T) {
	r := &LogRecord{}
	_, err := r.MarshalSlot(LogEmitterMetaSize + LogConsumerMetaSize)
	require.Equal(t, ErrInsufficientSpace, err)
}

func TestLogRecordMarshalSlotTruncatesOverlongMessage(t *testing.T) {
	r := &LogRecord{Message: []byte("this message is far too long for a tiny slot")}
	slotSize := LogEmitterMetaSize + LogConsumerMetaSize + 4
	slot, err := r.MarshalSlot(slotSize)
	require.NoError(t, err)
	require.Len(t, slot, slotSize)
}

func TestLoggerEmitDropsAboveConsumerFilter(t *testing.T) {
	l, err := NewLogger(nil, "test")
	require.NoError(t, err)
	obs := &recordingObserver{}
	l.Attach(obs)

	l.Emit(1, "core", 5, 2, []byte("too verbose"))
	require.Empty(t, obs.records)
}

func TestLoggerEmitNotifiesObserversWithinFilter(t *testing.T) {
	l, err := NewLogger(nil, "test")
	require.NoError(t, err)
	obs := &recordingObserver{}
	l.Attach(obs)

	l.Emit(7, "socket", 1, 5, []byte("connected"))
	require.Len(t, obs.records, 1)
	require.Equal(t, uint32(7), obs.records[0].EmitterID)
	require.Equal(t, "connected", nullTerminated(obs.records[0].Message))
}

func TestLoggerDetachStopsNotification(t *testing.T) {
	l, err := NewLogger(nil, "test")
	require.NoError(t, err)
	obs := &recordingObserver{}
	l.Attach(obs)
	l.Detach(obs)

	l.Emit(1, "core", 1, 5, []byte("x"))
	require.Empty(t, obs.records)
}

func TestEmitterNameTruncatesAndNullTerminates(t *testing.T) {
	name := emitterName("this-name-is-definitely-too-long")
	require.Equal(t, "this-name-is-", nullTerminated(name[:]))
}
