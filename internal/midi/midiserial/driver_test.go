package midiserial

import (
	"bytes"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"

	"github.com/leandrodaf/midiroute/internal/logger"
	"github.com/leandrodaf/midiroute/sdk/contracts"
)

// fakeLine feeds reads from a pipe and records writes.
type fakeLine struct {
	r *io.PipeReader
	w *io.PipeWriter

	mu      sync.Mutex
	written bytes.Buffer
	closed  int
}

func newFakeLine() *fakeLine {
	r, w := io.Pipe()
	return &fakeLine{r: r, w: w}
}

func (f *fakeLine) Read(p []byte) (int, error) { return f.r.Read(p) }

func (f *fakeLine) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.written.Write(p)
}

func (f *fakeLine) Close() error {
	f.mu.Lock()
	f.closed++
	f.mu.Unlock()
	return f.r.Close()
}

func (f *fakeLine) bytes() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]byte(nil), f.written.Bytes()...)
}

func newTestDriver(t *testing.T, lines map[string]*fakeLine, device string) (*Driver, *[]*serial.Mode) {
	t.Helper()
	var modes []*serial.Mode
	names := make([]string, 0, len(lines))
	for n := range lines {
		names = append(names, n)
	}
	d, err := New(&contracts.ClientOptions{
		Logger:       logger.NewNopLogger(),
		SerialConfig: &contracts.SerialConfig{Device: device},
	},
		WithLister(func() ([]string, error) { return names, nil }),
		WithOpener(func(name string, mode *serial.Mode) (io.ReadWriteCloser, error) {
			modes = append(modes, mode)
			l, ok := lines[name]
			if !ok {
				return nil, errors.New("no such device")
			}
			return l, nil
		}),
	)
	require.NoError(t, err)
	return d, &modes
}

func TestDriver_InputFramesStream(t *testing.T) {
	line := newFakeLine()
	d, modes := newTestDriver(t, map[string]*fakeLine{"/dev/ttyACM0": line}, "")

	in, err := d.OpenInput(contracts.Selector{Pattern: "acm"})
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyACM0", in.Name())
	require.Len(t, *modes, 1)
	assert.Equal(t, DefaultBaudRate, (*modes)[0].BaudRate)

	got := make(chan []byte, 8)
	in.OnMessage(func(delta float64, raw []byte) { got <- raw })

	go func() { _, _ = line.w.Write([]byte{0x90, 60, 100, 62, 100, 0xF8}) }()

	for _, want := range [][]byte{{0x90, 60, 100}, {0x90, 62, 100}, {0xF8}} {
		select {
		case raw := <-got:
			assert.Equal(t, want, raw)
		case <-time.After(2 * time.Second):
			t.Fatal("no delivery")
		}
	}
	require.NoError(t, in.Close())
	assert.Equal(t, 1, line.closed)
}

func TestDriver_OutputWritesAndSharesLine(t *testing.T) {
	line := newFakeLine()
	d, modes := newTestDriver(t, map[string]*fakeLine{"/tmp/midi": line}, "/tmp/midi")

	in, err := d.OpenInput(contracts.Selector{})
	require.NoError(t, err)
	out, err := d.OpenOutput(contracts.Selector{})
	require.NoError(t, err)
	assert.Len(t, *modes, 1)

	require.NoError(t, out.Send([]byte{0xB0, 7, 100}))
	assert.Equal(t, []byte{0xB0, 7, 100}, line.bytes())

	require.NoError(t, out.Close())
	assert.ErrorIs(t, out.Send([]byte{0xF8}), ErrClosed)
	assert.Zero(t, line.closed)
	require.NoError(t, in.Close())
	assert.Equal(t, 1, line.closed)
}

func TestDriver_ListPutsConfiguredDeviceFirst(t *testing.T) {
	d, _ := newTestDriver(t, map[string]*fakeLine{"/dev/ttyUSB0": newFakeLine()}, "/tmp/pty")
	devices, err := d.ListInputs()
	require.NoError(t, err)
	assert.Equal(t, []string{"/tmp/pty", "/dev/ttyUSB0"}, contracts.Names(devices))
	assert.Equal(t, 1, devices[1].Index)
}

func TestDriver_Errors(t *testing.T) {
	d, _ := newTestDriver(t, map[string]*fakeLine{"/dev/ttyUSB0": newFakeLine()}, "")

	_, err := d.OpenInput(contracts.Selector{Pattern: "acm"})
	assert.ErrorIs(t, err, contracts.ErrPortNotFound)
	var nf *contracts.PortNotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, []string{"/dev/ttyUSB0"}, nf.Available)

	_, err = d.OpenOutput(contracts.Selector{Pattern: "x", Virtual: true})
	assert.ErrorIs(t, err, contracts.ErrVirtualUnsupported)

	require.NoError(t, d.Close())
	_, err = d.OpenInput(contracts.Selector{})
	assert.ErrorIs(t, err, ErrClosed)
}
