package drivers

import (
	"context"
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/racerxdl/go-mcp23017"

	"github.com/hubertat/pacball/machine"
)

const mcpioDriverName = "mcpio"

// pin numbering of go-mcp23017: 0-7 is port A, 8-15 is port B
const (
	mcpPortAFirstPin uint8 = 0
	mcpPortBFirstPin uint8 = 8
	mcpPortWidth     uint8 = 8
)

// mcpPins is the part of *mcp23017.Device used after setup.
type mcpPins interface {
	DigitalRead(pin uint8) (mcp23017.PinLevel, error)
	DigitalWrite(pin uint8, level mcp23017.PinLevel) error
	Close() error
}

// McpIO is the pin-level alternative to ExpanderArray. It goes through the
// kernel i2c-dev node with one transaction per pin, which is slower but
// works on boards where periph has no host driver.
type McpIO struct {
	devices [machine.Devices]mcpPins
	isReady bool

	BusNo         uint8
	InvertOutputs bool
}

func (mcp *McpIO) String() string {
	return mcpioDriverName
}

func (mcp *McpIO) IsReady() bool {
	return mcp.isReady
}

func (mcp *McpIO) Setup(ctx context.Context) error {
	for i, addr := range machine.Addresses {
		devNo := uint8(addr - Mcp23017BaseAddr)
		device, err := mcp23017.Open(mcp.BusNo, devNo)
		if err != nil {
			return errors.Wrapf(err, "failed to open mcp23017 at 0x%02x", addr)
		}
		mcp.devices[i] = device

		for pin := uint8(0); pin < mcpPortWidth; pin++ {
			err = device.PinMode(mcpPortAFirstPin+pin, mcp23017.OUTPUT)
			if err != nil {
				return &BusError{Addr: addr, Register: RegIODIRA, Op: OpWrite, Err: err}
			}
			err = device.PinMode(mcpPortBFirstPin+pin, mcp23017.INPUT)
			if err != nil {
				return &BusError{Addr: addr, Register: RegIODIRB, Op: OpWrite, Err: err}
			}
			err = device.SetPullUp(mcpPortBFirstPin+pin, true)
			if err != nil {
				return &BusError{Addr: addr, Register: RegGPPUB, Op: OpWrite, Err: err}
			}
		}
	}

	mcp.isReady = true
	return nil
}

func (mcp *McpIO) Inputs() (in machine.Inputs, err error) {
	if !mcp.isReady {
		err = errors.New("mcpio driver not set up")
		return
	}

	var values [machine.Devices]byte
	for i, device := range mcp.devices {
		for pin := uint8(0); pin < mcpPortWidth; pin++ {
			var level mcp23017.PinLevel
			level, err = device.DigitalRead(mcpPortBFirstPin + pin)
			if err != nil {
				err = &BusError{Addr: machine.Addresses[i], Register: RegGPIOB, Op: OpRead, Err: err}
				return
			}
			if bool(level) {
				values[i] |= 1 << pin
			}
		}
	}

	in = machine.DecodeInputs(values)
	return
}

func (mcp *McpIO) SetOutputs(out machine.Outputs) error {
	if !mcp.isReady {
		return errors.New("mcpio driver not set up")
	}

	values := machine.EncodeOutputs(out)
	for i, device := range mcp.devices {
		for pin := uint8(0); pin < mcpPortWidth; pin++ {
			state := values[i]&(1<<pin) != 0
			if mcp.InvertOutputs {
				state = !state
			}
			err := device.DigitalWrite(mcpPortAFirstPin+pin, mcp23017.PinLevel(state))
			if err != nil {
				return &BusError{Addr: machine.Addresses[i], Register: RegGPIOA, Op: OpWrite, Err: err}
			}
		}
	}

	return nil
}

func (mcp *McpIO) Close() (err error) {
	if mcp.isReady {
		mcp.SetOutputs(machine.Outputs{})
	}
	mcp.isReady = false

	for _, device := range mcp.devices {
		if device == nil {
			continue
		}
		closeErr := device.Close()
		if closeErr != nil && err == nil {
			err = closeErr
		}
	}
	return
}

func (mcp *McpIO) PrintStatus(writer io.Writer) {
	fmt.Fprintf(writer, "| bus: /dev/i2c-%d\n", mcp.BusNo)
	for i, addr := range machine.Addresses {
		fmt.Fprintf(writer, "| device %d: 0x%02x (dev no %d)\n", i, addr, addr-Mcp23017BaseAddr)
	}
}
