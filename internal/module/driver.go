package module

import "ctrlscript/internal/errors"

// Concrete device drivers (GPIO, LEDC/PWM, CAN transceivers, UART) are
// out of scope for this repo (§1); these are the minimal collaborator
// interfaces the implemented module kinds consume, grounded on the
// original firmware's driver surface (main/modules/input.h, output.h,
// pwm_output.h, can.h). A test harness or a separate hardware package
// supplies concrete implementations.

// DigitalPin backs Input and Output modules.
type DigitalPin interface {
	Read() (bool, error)
	Write(level bool) error
}

// PWMPin backs PWMOutput modules.
type PWMPin interface {
	SetFrequency(hz int64) error
	SetDuty(duty int64) error
}

// Bus backs Can and Serial modules: a byte-oriented device channel that
// may also frame discrete messages (CAN arbitration IDs + payload).
type Bus interface {
	Send(frame []byte) error
	Recv() ([]byte, bool, error)
}

// LineChannel is the byte-oriented, \n-terminated line stream an
// Expander owns and a Proxy writes constructor/call/assignment lines
// into (§4.8, §6). Implementations may be a serial UART, an in-process
// pipe (tests), or a websocket connection (internal/proxy).
type LineChannel interface {
	WriteLine(line string) error
}

// noDriver is returned by constructors invoked without a real
// collaborator (e.g. from tests exercising only the compiled-script
// side of a module). It always fails, consistent with the spec's
// DeviceError bubble-up for external-collaborator failures (§7).
type noDriver struct{}

func (noDriver) Read() (bool, error)           { return false, errNoDriver }
func (noDriver) Write(bool) error              { return errNoDriver }
func (noDriver) SetFrequency(int64) error      { return errNoDriver }
func (noDriver) SetDuty(int64) error           { return errNoDriver }
func (noDriver) Send([]byte) error             { return errNoDriver }
func (noDriver) Recv() ([]byte, bool, error)   { return nil, false, errNoDriver }
func (noDriver) WriteLine(string) error        { return errNoDriver }

var errNoDriver = errors.NewDeviceError("no hardware collaborator attached")

// NoPin returns a DigitalPin/PWMPin/Bus/LineChannel stub that reports
// DeviceError on every operation, for constructing modules without a
// live collaborator.
func NoPin() noDriver { return noDriver{} }

// Drivers resolves constructor arguments (pin numbers, baud rates) to
// live hardware collaborators. Create() calls back into it once per
// constructed module; a nil Drivers (or the NopDrivers default) yields
// stub collaborators that fail every operation with DeviceError, which
// is sufficient for compiling and stepping scripts under test without
// real hardware attached.
type Drivers interface {
	DigitalPin(name string, pin int64) (DigitalPin, error)
	PWMPin(name string, pin int64) (PWMPin, error)
	Bus(name string, rx, tx int64, baud int64) (Bus, error)
	Channel(name string) (LineChannel, error)
}

// NopDrivers is the zero-value Drivers: every collaborator is the
// DeviceError stub. Useful in tests that only exercise script
// compilation and scheduling, not hardware interaction.
type NopDrivers struct{}

func (NopDrivers) DigitalPin(string, int64) (DigitalPin, error) { return NoPin(), nil }
func (NopDrivers) PWMPin(string, int64) (PWMPin, error)         { return NoPin(), nil }
func (NopDrivers) Bus(string, int64, int64, int64) (Bus, error) { return NoPin(), nil }
func (NopDrivers) Channel(string) (LineChannel, error)          { return NoPin(), nil }
