package main

import (
	"math"
	"syscall"
	"time"
	"unsafe"
)

// Linux input event codes used by the force feedback path
const (
	evAbs = 0x03
	evFF  = 0x15

	absX = 0x00
	absY = 0x01

	ffRumble   = 0x50
	ffPeriodic = 0x51
	ffConstant = 0x52
	ffGain     = 0x60

	busUsb = 0x03

	// ioctl requests on the event node (64-bit layout)
	eviocSFF  = 0x40304580 // upload/update an effect
	eviocRMFF = 0x40044581 // erase an effect, id passed by value
)

const (
	// Full scale of a signed 16-bit effect level
	forceLevelMax = 0x7FFF

	// Base strength, multiplied by the per-pattern strength
	baseStrength = 1.0

	// Device gain range is 0..0xFFFF
	gainMax = 0xFFFF

	// Effect direction encoding: 0x0000 down, 0x4000 left, 0x8000 up, 0xC000 right
	directionLeft  = 0x4000
	directionRight = 0xC000
)

type ffTrigger struct {
	button   uint16
	interval uint16
}

type ffReplay struct {
	length uint16 // milliseconds, 0 plays with no fixed length
	delay  uint16
}

type ffEnvelope struct {
	attackLength uint16
	attackLevel  uint16
	fadeLength   uint16
	fadeLevel    uint16
}

// constantEffect mirrors struct ff_effect with the constant-force union member.
// The union is 8-byte aligned (ff_periodic_effect carries a pointer), so two
// pad bytes follow the replay block; the tail pad keeps the struct at the full
// union size so the kernel copy stays in bounds.
type constantEffect struct {
	effectType uint16
	id         int16
	direction  uint16
	trigger    ffTrigger
	replay     ffReplay
	_          [2]byte
	level      int16
	envelope   ffEnvelope
	_          [22]byte
}

// newConstantEffect builds an upload-ready constant force effect. A negative
// direction pushes along -X (left), anything else along +X (right). The id of
// -1 asks the kernel to allocate a new effect slot on upload.
func newConstantEffect(level int16, direction int, length time.Duration) constantEffect {
	dir := uint16(directionRight)
	if direction < 0 {
		dir = directionLeft
	}
	return constantEffect{
		effectType: ffConstant,
		id:         -1,
		direction:  dir,
		replay:     ffReplay{length: uint16(length / time.Millisecond)},
		level:      level,
	}
}

// forceLevel scales the nominal maximum level by a pattern strength in [0,1].
func forceLevel(strength float64) int16 {
	return int16(math.Round(forceLevelMax * baseStrength * strength))
}

func ioctl(fd uintptr, request uintptr, arg uintptr) error {
	_, _, errno := syscall.Syscall(syscall.SYS_IOCTL, fd, request, arg)
	if errno != 0 {
		return errno
	}
	return nil
}

func ioctlPtr(fd uintptr, request uintptr, arg unsafe.Pointer) error {
	_, _, errno := syscall.Syscall(syscall.SYS_IOCTL, fd, request, uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}
