package drivers

import (
	"context"
	"io"

	"github.com/hubertat/pacball/machine"
)

// IoDriver is the hardware side of the machine: one logical device that
// reads every sensor and drives every actuator.
type IoDriver interface {
	Setup(ctx context.Context) error
	Inputs() (machine.Inputs, error)
	SetOutputs(machine.Outputs) error
	Close() error
	String() string
	IsReady() bool
}

// StatusPrinter is implemented by drivers that can describe their wiring.
type StatusPrinter interface {
	PrintStatus(writer io.Writer)
}

func DriverNames() []string {
	return []string{expanderArrayDriverName, mcpioDriverName, mockDriverName}
}
