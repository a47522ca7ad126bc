package drivers

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/pkg/errors"
	"periph.io/x/conn/v3/i2c"

	"github.com/hubertat/pacball/machine"
)

const expanderArrayDriverName = "i2c"

const (
	portAllOutput byte = 0x00
	portAllInput  byte = 0xFF
	pullUpAll     byte = 0xFF
)

// ExpanderArray drives the chained expanders listed in machine.Addresses as
// one device: port A of every chip is an output, port B an input with
// pull-ups enabled.
type ExpanderArray struct {
	// BusName selects the host bus when Bus is nil, "" picks the first one.
	BusName string
	// Bus may be set directly, the array then never closes it.
	Bus i2c.Bus

	busCloser i2c.BusCloser
	devices   [machine.Devices]*Mcp23017
	lock      sync.Mutex
	isReady   bool
}

func (ea *ExpanderArray) String() string {
	return expanderArrayDriverName
}

func (ea *ExpanderArray) IsReady() bool {
	ea.lock.Lock()
	defer ea.lock.Unlock()

	return ea.isReady
}

// Setup configures every chip in address order. The first failure aborts
// and is returned as is.
func (ea *ExpanderArray) Setup(ctx context.Context) (err error) {
	ea.lock.Lock()
	defer ea.lock.Unlock()

	if ea.Bus == nil {
		ea.busCloser, err = OpenBus(ea.BusName)
		if err != nil {
			return
		}
		ea.Bus = ea.busCloser
	}

	for i, addr := range machine.Addresses {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		ea.devices[i] = NewMcp23017(ea.Bus, addr)
		err = ea.devices[i].Configure(portAllOutput, portAllInput, pullUpAll)
		if err != nil {
			return
		}
	}

	ea.isReady = true
	return
}

// Inputs reads port B of every chip. Either all reads succeed or no
// snapshot is produced.
func (ea *ExpanderArray) Inputs() (in machine.Inputs, err error) {
	ea.lock.Lock()
	defer ea.lock.Unlock()

	if !ea.isReady {
		err = errors.New("expander array not set up")
		return
	}

	var values [machine.Devices]byte
	for i, dev := range ea.devices {
		values[i], err = dev.ReadPortB()
		if err != nil {
			return
		}
	}

	in = machine.DecodeInputs(values)
	return
}

// SetOutputs writes port A of every chip in order. A failure stops the
// sequence and chips already written keep their new value.
func (ea *ExpanderArray) SetOutputs(out machine.Outputs) error {
	ea.lock.Lock()
	defer ea.lock.Unlock()

	if !ea.isReady {
		return errors.New("expander array not set up")
	}

	values := machine.EncodeOutputs(out)
	for i, dev := range ea.devices {
		err := dev.WritePortA(values[i])
		if err != nil {
			return err
		}
	}

	return nil
}

// Close drives every output low and releases the bus if the array opened it.
func (ea *ExpanderArray) Close() (err error) {
	ea.lock.Lock()
	defer ea.lock.Unlock()

	if ea.isReady {
		for _, dev := range ea.devices {
			writeErr := dev.WritePortA(0)
			if writeErr != nil && err == nil {
				err = writeErr
			}
		}
	}
	ea.isReady = false

	if ea.busCloser != nil {
		closeErr := ea.busCloser.Close()
		if closeErr != nil && err == nil {
			err = errors.Wrap(closeErr, "failed to close i2c bus")
		}
		ea.busCloser = nil
		ea.Bus = nil
	}

	return
}

func (ea *ExpanderArray) PrintStatus(writer io.Writer) {
	busName := ea.BusName
	if ea.Bus != nil {
		busName = ea.Bus.String()
	}
	fmt.Fprintf(writer, "| bus: %s\n", busName)
	for i, addr := range machine.Addresses {
		fmt.Fprintf(writer, "| device %d: 0x%02x (A: outputs, B: inputs)\n", i, addr)
	}
}
