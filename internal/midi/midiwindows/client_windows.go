//go:build windows
// +build windows

package midiwindows

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	"go.uber.org/multierr"
	"golang.org/x/sys/windows"

	"github.com/leandrodaf/midiroute/internal/codec"
	"github.com/leandrodaf/midiroute/sdk/contracts"
)

// Type definitions for MIDI handles
type (
	HMIDIIN  windows.Handle
	HMIDIOUT windows.Handle
)

// Constants for callback flags
const (
	CALLBACK_NULL     = 0x00000000 // No callback
	CALLBACK_FUNCTION = 0x00030000 // Indicates that the callback is a function
	MIDI_IO_STATUS    = 0x00000020 // MIDI input/output status
)

// Constants for MIDI message types
const (
	MIM_OPEN      = 0x3C1 // MIDI device opened
	MIM_CLOSE     = 0x3C2 // MIDI device closed
	MIM_DATA      = 0x3C3 // MIDI data received
	MIM_LONGDATA  = 0x3C4 // System exclusive buffer returned
	MIM_ERROR     = 0x3C5 // MIDI error
	MIM_LONGERROR = 0x3C6 // Long MIDI error
	MIM_MOREDATA  = 0x3CC // More MIDI data available
)

const mhdrDone = 0x00000001

// ErrDeviceCall wraps a failing winmm call.
var ErrDeviceCall = errors.New("winmm call failed")

// Struct representing MIDI input device capabilities
type midiInCaps struct {
	wMid           uint16
	wPid           uint16
	vDriverVersion uint32
	szPname        [32]uint16
	dwSupport      uint32
}

// Struct representing MIDI output device capabilities
type midiOutCaps struct {
	wMid           uint16
	wPid           uint16
	vDriverVersion uint32
	szPname        [32]uint16
	wTechnology    uint16
	wVoices        uint16
	wNotes         uint16
	wChannelMask   uint16
	dwSupport      uint32
}

// midiHdr is MIDIHDR, used for system exclusive output.
type midiHdr struct {
	lpData          *byte
	dwBufferLength  uint32
	dwBytesRecorded uint32
	dwUser          uintptr
	dwFlags         uint32
	lpNext          uintptr
	reserved        uintptr
	dwOffset        uint32
	dwReserved      [8]uintptr
}

// Load the winmm.dll library and required functions
var (
	winmm                      = windows.NewLazySystemDLL("winmm.dll")
	procMidiInGetNumDevs       = winmm.NewProc("midiInGetNumDevs")
	procMidiInGetDevCaps       = winmm.NewProc("midiInGetDevCapsW")
	procMidiInOpen             = winmm.NewProc("midiInOpen")
	procMidiInStart            = winmm.NewProc("midiInStart")
	procMidiInStop             = winmm.NewProc("midiInStop")
	procMidiInClose            = winmm.NewProc("midiInClose")
	procMidiOutGetNumDevs      = winmm.NewProc("midiOutGetNumDevs")
	procMidiOutGetDevCaps      = winmm.NewProc("midiOutGetDevCapsW")
	procMidiOutOpen            = winmm.NewProc("midiOutOpen")
	procMidiOutShortMsg        = winmm.NewProc("midiOutShortMsg")
	procMidiOutPrepareHeader   = winmm.NewProc("midiOutPrepareHeader")
	procMidiOutUnprepareHeader = winmm.NewProc("midiOutUnprepareHeader")
	procMidiOutLongMsg         = winmm.NewProc("midiOutLongMsg")
	procMidiOutReset           = winmm.NewProc("midiOutReset")
	procMidiOutClose           = winmm.NewProc("midiOutClose")
)

// Inputs are looked up by id in the callback so no Go pointer crosses into winmm.
var (
	inputs      sync.Map // uintptr -> *input
	nextInputID atomic.Uintptr
	callback    = windows.NewCallback(midiInCallback)
)

// Driver opens winmm MIDI devices.
type Driver struct {
	logger contracts.Logger

	mu    sync.Mutex
	ports []interface{ Close() error }
}

// NewDriver creates a MIDI driver for Windows.
func NewDriver(options *contracts.ClientOptions) (contracts.Driver, error) {
	options.Logger.Info("MIDI client created for Windows")
	return &Driver{logger: options.Logger}, nil
}

// ListInputs lists the MIDI input devices.
func (d *Driver) ListInputs() ([]contracts.DeviceInfo, error) {
	r0, _, _ := procMidiInGetNumDevs.Call()
	numDevices := uint32(r0)

	devices := make([]contracts.DeviceInfo, 0, numDevices)
	for i := uint32(0); i < numDevices; i++ {
		var caps midiInCaps
		r1, _, _ := procMidiInGetDevCaps.Call(
			uintptr(i),
			uintptr(unsafe.Pointer(&caps)),
			unsafe.Sizeof(caps),
		)
		if r1 != 0 {
			d.logger.Warn("Failed to get information for MIDI input device", d.logger.Field().Int("device", int(i)))
			continue
		}
		name := windows.UTF16ToString(caps.szPname[:])
		devices = append(devices, contracts.DeviceInfo{
			Index:        int(i),
			Name:         name,
			EntityName:   name,
			Manufacturer: fmt.Sprintf("MID: %d PID: %d", caps.wMid, caps.wPid),
		})
	}
	return devices, nil
}

// ListOutputs lists the MIDI output devices.
func (d *Driver) ListOutputs() ([]contracts.DeviceInfo, error) {
	r0, _, _ := procMidiOutGetNumDevs.Call()
	numDevices := uint32(r0)

	devices := make([]contracts.DeviceInfo, 0, numDevices)
	for i := uint32(0); i < numDevices; i++ {
		var caps midiOutCaps
		r1, _, _ := procMidiOutGetDevCaps.Call(
			uintptr(i),
			uintptr(unsafe.Pointer(&caps)),
			unsafe.Sizeof(caps),
		)
		if r1 != 0 {
			d.logger.Warn("Failed to get information for MIDI output device", d.logger.Field().Int("device", int(i)))
			continue
		}
		name := windows.UTF16ToString(caps.szPname[:])
		devices = append(devices, contracts.DeviceInfo{
			Index:        int(i),
			Name:         name,
			EntityName:   name,
			Manufacturer: fmt.Sprintf("MID: %d PID: %d", caps.wMid, caps.wPid),
		})
	}
	return devices, nil
}

func pick(direction string, sel contracts.Selector, devices []contracts.DeviceInfo) (contracts.DeviceInfo, error) {
	if sel.Virtual {
		return contracts.DeviceInfo{}, contracts.ErrVirtualUnsupported
	}
	idx, err := sel.Resolve(direction, contracts.Names(devices))
	if err != nil {
		return contracts.DeviceInfo{}, err
	}
	return devices[idx], nil
}

// OpenInput opens and starts the selected input device.
func (d *Driver) OpenInput(sel contracts.Selector) (contracts.Input, error) {
	devices, err := d.ListInputs()
	if err != nil {
		return nil, err
	}
	dev, err := pick("input", sel, devices)
	if err != nil {
		return nil, err
	}

	in := &input{logger: d.logger, name: dev.Name, id: nextInputID.Add(1)}
	inputs.Store(in.id, in)

	r1, _, _ := procMidiInOpen.Call(
		uintptr(unsafe.Pointer(&in.handle)),
		uintptr(dev.Index),
		callback,
		in.id,
		uintptr(CALLBACK_FUNCTION|MIDI_IO_STATUS),
	)
	if r1 != 0 {
		inputs.Delete(in.id)
		return nil, fmt.Errorf("%w: midiInOpen %d returned %d", ErrDeviceCall, dev.Index, r1)
	}
	if r1, _, _ = procMidiInStart.Call(uintptr(in.handle)); r1 != 0 {
		procMidiInClose.Call(uintptr(in.handle))
		inputs.Delete(in.id)
		return nil, fmt.Errorf("%w: midiInStart returned %d", ErrDeviceCall, r1)
	}

	d.logger.Info("MIDI device connected", d.logger.Field().String("deviceName", dev.Name))
	d.track(in)
	return in, nil
}

// OpenOutput opens the selected output device.
func (d *Driver) OpenOutput(sel contracts.Selector) (contracts.Output, error) {
	devices, err := d.ListOutputs()
	if err != nil {
		return nil, err
	}
	dev, err := pick("output", sel, devices)
	if err != nil {
		return nil, err
	}

	out := &output{name: dev.Name}
	r1, _, _ := procMidiOutOpen.Call(
		uintptr(unsafe.Pointer(&out.handle)),
		uintptr(dev.Index),
		0, 0,
		uintptr(CALLBACK_NULL),
	)
	if r1 != 0 {
		return nil, fmt.Errorf("%w: midiOutOpen %d returned %d", ErrDeviceCall, dev.Index, r1)
	}
	d.logger.Info("MIDI output connected", d.logger.Field().String("deviceName", dev.Name))
	d.track(out)
	return out, nil
}

// Close closes every device opened by the driver.
func (d *Driver) Close() error {
	d.mu.Lock()
	ports := d.ports
	d.ports = nil
	d.mu.Unlock()

	var err error
	for _, p := range ports {
		err = multierr.Append(err, p.Close())
	}
	return err
}

func (d *Driver) track(p interface{ Close() error }) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ports = append(d.ports, p)
}

type input struct {
	logger  contracts.Logger
	name    string
	id      uintptr
	handle  HMIDIIN
	handler atomic.Value // contracts.MessageHandler

	mu       sync.Mutex
	lastMs   uintptr
	started  bool
	closed   bool
	stopOnce sync.Once
}

func (in *input) Name() string {
	return in.name
}

func (in *input) OnMessage(handler contracts.MessageHandler) {
	if handler == nil {
		in.logger.Error("OnMessage called with nil handler")
		return
	}
	in.handler.Store(handler)
}

// deliver unpacks a short message. dwParam2 holds milliseconds since midiInStart.
func (in *input) deliver(msg, ms uintptr) {
	handler, _ := in.handler.Load().(contracts.MessageHandler)
	if handler == nil {
		return
	}

	status := byte(msg & 0xFF)
	raw := []byte{status, byte((msg >> 8) & 0xFF), byte((msg >> 16) & 0xFF)}
	raw = raw[:codec.MessageSize(codec.KindFromStatus(status), status)]

	in.mu.Lock()
	if in.closed {
		in.mu.Unlock()
		return
	}
	delta := 0.0
	if in.started {
		delta = float64(ms-in.lastMs) / 1000
	}
	in.started = true
	in.lastMs = ms
	in.mu.Unlock()

	handler(delta, raw)
}

// Close stops and closes the device.
func (in *input) Close() error {
	var err error
	in.stopOnce.Do(func() {
		in.mu.Lock()
		in.closed = true
		in.mu.Unlock()

		if r1, _, _ := procMidiInStop.Call(uintptr(in.handle)); r1 != 0 {
			err = multierr.Append(err, fmt.Errorf("%w: midiInStop returned %d", ErrDeviceCall, r1))
		}
		if r1, _, _ := procMidiInClose.Call(uintptr(in.handle)); r1 != 0 {
			err = multierr.Append(err, fmt.Errorf("%w: midiInClose returned %d", ErrDeviceCall, r1))
		}
		inputs.Delete(in.id)
		in.logger.Info("MIDI capture stopped and device closed", in.logger.Field().String("deviceName", in.name))
	})
	return err
}

// midiInCallback processes incoming MIDI messages
func midiInCallback(hMidiIn uintptr, wMsg uint32, dwInstance uintptr, dwParam1 uintptr, dwParam2 uintptr) uintptr {
	v, ok := inputs.Load(dwInstance)
	if !ok {
		return 0
	}
	in := v.(*input)

	switch wMsg {
	case MIM_OPEN:
		in.logger.Debug("MIDI device opened", in.logger.Field().String("deviceName", in.name))
	case MIM_CLOSE:
		in.logger.Debug("MIDI device closed", in.logger.Field().String("deviceName", in.name))
	case MIM_DATA, MIM_MOREDATA:
		in.deliver(dwParam1, dwParam2)
	case MIM_ERROR, MIM_LONGERROR:
		in.logger.Error("MIDI error", in.logger.Field().Uint64("msg", uint64(wMsg)))
	default:
		in.logger.Debug("Unhandled MIDI message", in.logger.Field().Uint64("msg", uint64(wMsg)))
	}
	return 0
}

type output struct {
	name   string
	handle HMIDIOUT

	mu     sync.Mutex
	closed bool
}

func (out *output) Name() string {
	return out.name
}

// Send writes short messages with midiOutShortMsg and system exclusive messages with
// midiOutLongMsg.
func (out *output) Send(raw []byte) error {
	out.mu.Lock()
	defer out.mu.Unlock()
	if out.closed {
		return fmt.Errorf("MIDI output %q is closed", out.name)
	}
	if len(raw) == 0 {
		return nil
	}
	if codec.IsSysEx(raw) {
		return out.sendLong(raw)
	}

	var msg uintptr
	for i := 0; i < len(raw) && i < 3; i++ {
		msg |= uintptr(raw[i]) << (8 * i)
	}
	if r1, _, _ := procMidiOutShortMsg.Call(uintptr(out.handle), msg); r1 != 0 {
		return fmt.Errorf("%w: midiOutShortMsg returned %d", ErrDeviceCall, r1)
	}
	return nil
}

func (out *output) sendLong(raw []byte) error {
	buf := append([]byte(nil), raw...)
	hdr := midiHdr{lpData: &buf[0], dwBufferLength: uint32(len(buf)), dwBytesRecorded: uint32(len(buf))}
	size := unsafe.Sizeof(hdr)

	if r1, _, _ := procMidiOutPrepareHeader.Call(uintptr(out.handle), uintptr(unsafe.Pointer(&hdr)), size); r1 != 0 {
		return fmt.Errorf("%w: midiOutPrepareHeader returned %d", ErrDeviceCall, r1)
	}
	defer procMidiOutUnprepareHeader.Call(uintptr(out.handle), uintptr(unsafe.Pointer(&hdr)), size)

	if r1, _, _ := procMidiOutLongMsg.Call(uintptr(out.handle), uintptr(unsafe.Pointer(&hdr)), size); r1 != 0 {
		return fmt.Errorf("%w: midiOutLongMsg returned %d", ErrDeviceCall, r1)
	}
	deadline := time.Now().Add(time.Second)
	for atomic.LoadUint32(&hdr.dwFlags)&mhdrDone == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	return nil
}

func (out *output) Close() error {
	out.mu.Lock()
	defer out.mu.Unlock()
	if out.closed {
		return nil
	}
	out.closed = true
	procMidiOutReset.Call(uintptr(out.handle))
	if r1, _, _ := procMidiOutClose.Call(uintptr(out.handle)); r1 != 0 {
		return fmt.Errorf("%w: midiOutClose returned %d", ErrDeviceCall, r1)
	}
	return nil
}
