package recorder

import (
	"bytes"
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leandrodaf/midiroute/internal/codec"
	"github.com/leandrodaf/midiroute/internal/logger"
	"github.com/leandrodaf/midiroute/internal/router"
)

func TestRecorder_BootMessagesShutdown(t *testing.T) {
	var buf bytes.Buffer
	rec := New(&buf, logger.NewNopLogger(), WithPort("keys"), WithSession("s1"))
	assert.Equal(t, 1, rec.Pending())

	rec.Record(codec.CC(21, 3, 64), []byte{0xB3, 21, 64})
	require.NoError(t, rec.Flush())
	assert.Zero(t, rec.Pending())
	require.NoError(t, rec.Close())
	require.NoError(t, rec.Close())

	records, err := ReadAll(&buf)
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, TypeBoot, records[0].Type)
	assert.Equal(t, "keys", records[0].Port)
	assert.Equal(t, TypeMessage, records[1].Type)
	assert.Equal(t, TypeShutdown, records[2].Type)
	for _, r := range records {
		assert.Equal(t, "s1", r.Session)
	}

	m := records[1].Message
	require.NotNil(t, m)
	assert.Equal(t, "cc", m.Kind)
	assert.Equal(t, uint8(3), m.Channel)
	assert.Equal(t, uint8(21), m.Data)
	assert.Equal(t, uint8(64), m.Value)
	assert.Equal(t, uint8(0xB3), m.Status)
	assert.Equal(t, "b31540", m.Raw)
}

func TestRecorder_NothingWrittenBeforeFlush(t *testing.T) {
	var buf bytes.Buffer
	rec := New(&buf, logger.NewNopLogger())
	rec.Record(codec.ProgramMsg(1, 0), []byte{0xC0, 1})
	assert.Zero(t, buf.Len())
	assert.NotEmpty(t, rec.Session())

	require.NoError(t, rec.Close())
	assert.ErrorIs(t, rec.Flush(), ErrClosed)
	rec.Record(codec.ProgramMsg(2, 0), []byte{0xC0, 2})
	assert.Zero(t, rec.Pending())
}

func TestRecorder_NaNDeltaIsWritable(t *testing.T) {
	var buf bytes.Buffer
	rec := New(&buf, logger.NewNopLogger())
	msg := codec.CC(1, 0, 1)
	msg.Timestamp.Delta = math.NaN()
	rec.Record(msg, []byte{0xB0, 1, 1})
	require.NoError(t, rec.Close())

	records, err := ReadAll(&buf)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Zero(t, records[1].Message.Delta)
}

func TestRecorder_SkipsSimulatedMessages(t *testing.T) {
	var buf bytes.Buffer
	rec := New(&buf, logger.NewNopLogger())
	r := router.New(logger.NewNopLogger(), router.WithPortName("pads"))
	r.OnRecord(rec.Record)

	r.DispatchRaw(0.5, []byte{0x90, 36, 100})
	_, err := r.Simulate(codec.NoteMsg(37, 0, false, 100), 0)
	require.NoError(t, err)
	require.NoError(t, rec.Close())

	records, err := ReadAll(&buf)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, uint8(36), records[1].Message.Data)
	assert.Equal(t, 0.5, records[1].Message.Delta)
	assert.Equal(t, "pads", records[1].Port)
}

func TestRecorder_RunFlushesPeriodically(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.ndjson")
	rec, err := Open(path, logger.NewNopLogger(), WithFlushInterval(10*time.Millisecond))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rec.Run(ctx) }()

	rec.Record(codec.CC(7, 0, 100), []byte{0xB0, 7, 100})
	assert.Eventually(t, func() bool { return rec.Pending() == 0 }, 2*time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	require.NoError(t, rec.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records, err := ReadAll(f)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, TypeShutdown, records[2].Type)
}

func TestOpen_BadPath(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing", "events.ndjson"), logger.NewNopLogger())
	assert.Error(t, err)
}
