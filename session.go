package main

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"
	"unsafe"

	evdev "github.com/gvalkov/golang-evdev"
)

const defaultInputDir = "/dev/input"

// Failure stages of session establishment. main maps any of these to exit 1.
var (
	ErrContextInit   = errors.New("input system unavailable")
	ErrNoDevice      = errors.New("no force feedback device found")
	ErrAccessDenied  = errors.New("device configuration refused")
	ErrAcquireFailed = errors.New("device acquisition failed")
	ErrEffectCreate  = errors.New("effect creation failed")
)

// Session owns the exclusive device binding for one feedback run: an open
// handle on the input device directory, the bound event device and the slot
// of the currently uploaded effect.
type Session struct {
	inputDir string
	override string // explicit event node, skips enumeration
	root     *os.File
	device   *evdev.InputDevice
	grabbed  bool
	effectID int16
	released bool
}

func NewSession(override string) *Session {
	return &Session{
		inputDir: defaultInputDir,
		override: override,
		effectID: -1,
	}
}

// Open establishes the input context: an open handle on the event device
// directory that the rest of the session enumerates from.
func (s *Session) Open() error {
	root, err := os.Open(s.inputDir)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrContextInit, err)
	}
	s.root = root
	return nil
}

// FindDevice scans the event nodes in numeric order and binds the first one
// that advertises constant force output plus an absolute X axis. With an
// override node set, only that node is tried.
func (s *Session) FindDevice() error {
	if s.root == nil {
		return fmt.Errorf("%w: session not open", ErrNoDevice)
	}

	if s.override != "" {
		dev, err := openForceDevice(s.override)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrNoDevice, s.override, err)
		}
		s.bind(dev)
		return nil
	}

	log.Println("Looking for force feedback controller...")
	names, err := s.root.Readdirnames(-1)
	if err != nil {
		return fmt.Errorf("%w: reading %s: %v", ErrNoDevice, s.inputDir, err)
	}
	for _, node := range eventNodes(names) {
		dev, err := openForceDevice(filepath.Join(s.inputDir, node))
		if err != nil {
			continue
		}
		s.bind(dev)
		return nil
	}
	return fmt.Errorf("%w: no usable node under %s", ErrNoDevice, s.inputDir)
}

func (s *Session) bind(dev *evdev.InputDevice) {
	s.device = dev
	log.Printf("✨ Found: %s (%s)", dev.Name, dev.Fn)
	if dev.Bustype == busUsb {
		if desc := usbProductString(dev.Vendor, dev.Product); desc != "" {
			log.Printf("   USB %04x:%04x: %s", dev.Vendor, dev.Product, desc)
		}
	}
}

// Setup configures the bound device for the run: verifies the standard X/Y
// joystick layout, sets full gain, then takes the exclusive grab so the
// effect keeps playing no matter where input focus sits.
func (s *Session) Setup() error {
	if s.device == nil {
		return fmt.Errorf("%w: no device bound", ErrAccessDenied)
	}
	if !hasEventCode(s.device, evAbs, "EV_ABS", absX) || !hasEventCode(s.device, evAbs, "EV_ABS", absY) {
		return fmt.Errorf("%w: %s has no X/Y joystick layout", ErrAccessDenied, s.device.Name)
	}
	if err := s.writeEvent(evFF, ffGain, gainMax); err != nil {
		return fmt.Errorf("%w: setting gain: %v", ErrAccessDenied, err)
	}
	if err := s.device.Grab(); err != nil {
		return fmt.Errorf("%w: %v", ErrAcquireFailed, err)
	}
	s.grabbed = true
	return nil
}

// UploadEffect replaces the device effect slot with a fresh constant force
// effect and remembers the kernel-assigned id.
func (s *Session) UploadEffect(level int16, direction int, length time.Duration) error {
	if s.device == nil {
		return fmt.Errorf("%w: no device bound", ErrEffectCreate)
	}
	eff := newConstantEffect(level, direction, length)
	if err := ioctlPtr(s.device.File.Fd(), eviocSFF, unsafe.Pointer(&eff)); err != nil {
		return fmt.Errorf("%w: %v", ErrEffectCreate, err)
	}
	s.effectID = eff.id
	return nil
}

// EraseEffect removes the uploaded effect, if any, freeing its device slot.
func (s *Session) EraseEffect() error {
	if s.device == nil || s.effectID < 0 {
		return nil
	}
	id := s.effectID
	s.effectID = -1
	if err := ioctl(s.device.File.Fd(), eviocRMFF, uintptr(id)); err != nil {
		return fmt.Errorf("removing effect %d: %w", id, err)
	}
	return nil
}

// StartEffect plays the uploaded effect once.
func (s *Session) StartEffect() error {
	if s.device == nil || s.effectID < 0 {
		return errors.New("no effect uploaded")
	}
	return s.writeEvent(evFF, uint16(s.effectID), 1)
}

// StopEffect halts playback of the uploaded effect, if any, leaving the
// effect in its slot.
func (s *Session) StopEffect() error {
	if s.device == nil || s.effectID < 0 {
		return nil
	}
	return s.writeEvent(evFF, uint16(s.effectID), 0)
}

// DeviceName reports the bound device name, empty before binding.
func (s *Session) DeviceName() string {
	if s.device == nil {
		return ""
	}
	return s.device.Name
}

// Release tears the session down: erase any effect, drop the grab, close the
// device and the directory handle. Safe on a partially established session
// and on repeat calls; only the first call does the work.
func (s *Session) Release() {
	if s.released {
		return
	}
	s.released = true
	if s.device != nil {
		s.EraseEffect()
		if s.grabbed {
			s.device.Release()
			s.grabbed = false
		}
		s.device.File.Close()
		s.device = nil
	}
	if s.root != nil {
		s.root.Close()
		s.root = nil
	}
	log.Println("🧹 Cleanup complete")
}

func (s *Session) writeEvent(evType uint16, code uint16, value int32) error {
	ev := evdev.InputEvent{Type: evType, Code: code, Value: value}
	return binary.Write(s.device.File, binary.LittleEndian, ev)
}
