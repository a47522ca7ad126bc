package drivers

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/hubertat/pacball/machine"
)

const mockDriverName = "mock"

const (
	DefaultMockChangeProbability = 0.1
	DefaultMockInterval          = time.Second
)

// MockIoDriver simulates the machine without hardware. Every Interval each
// input is re-rolled and comes up asserted with ChangeProbability. Written
// outputs are kept and can be echoed to a writer.
type MockIoDriver struct {
	ChangeProbability float64
	Interval          time.Duration
	// Frozen disables the re-rolling, inputs then only change via SetInputs.
	Frozen bool
	Source rand.Source

	lock     sync.Mutex
	rnd      *rand.Rand
	inputs   machine.Inputs
	outputs  machine.Outputs
	lastRoll time.Time
	writeTo  io.Writer
	ready    bool
}

func (md *MockIoDriver) String() string {
	return mockDriverName
}

func (md *MockIoDriver) Setup(ctx context.Context) error {
	md.lock.Lock()
	defer md.lock.Unlock()

	if md.Source == nil {
		md.Source = rand.NewSource(time.Now().UnixNano())
	}
	md.rnd = rand.New(md.Source)
	md.ready = true
	return nil
}

func (md *MockIoDriver) Close() error {
	md.lock.Lock()
	defer md.lock.Unlock()

	md.ready = false
	return nil
}

func (md *MockIoDriver) IsReady() bool {
	md.lock.Lock()
	defer md.lock.Unlock()

	return md.ready
}

func (md *MockIoDriver) Inputs() (machine.Inputs, error) {
	md.lock.Lock()
	defer md.lock.Unlock()

	if !md.ready {
		return machine.Inputs{}, fmt.Errorf("mock driver not set up")
	}

	if !md.Frozen && time.Since(md.lastRoll) >= md.Interval {
		md.roll()
		md.lastRoll = time.Now()
	}

	return md.inputs, nil
}

func (md *MockIoDriver) roll() {
	for _, f := range machine.InputFields() {
		md.inputs.Set(f.Name, md.rnd.Float64() < md.ChangeProbability)
	}
}

// SetInputs forces the simulated sensor state.
func (md *MockIoDriver) SetInputs(in machine.Inputs) {
	md.lock.Lock()
	defer md.lock.Unlock()

	md.inputs = in
}

func (md *MockIoDriver) SetOutputs(out machine.Outputs) error {
	md.lock.Lock()
	defer md.lock.Unlock()

	if !md.ready {
		return fmt.Errorf("mock driver not set up")
	}

	if md.writeTo != nil && out != md.outputs {
		previous, next := md.outputs.Map(), out.Map()
		for _, f := range machine.OutputFields() {
			if previous[f.Name] != next[f.Name] {
				fmt.Fprintf(md.writeTo, "[%s] state changed to %v\n", f.Name, next[f.Name])
			}
		}
	}
	md.outputs = out
	return nil
}

// Outputs returns the last written outputs.
func (md *MockIoDriver) Outputs() machine.Outputs {
	md.lock.Lock()
	defer md.lock.Unlock()

	return md.outputs
}

func (md *MockIoDriver) MonitorStateChanges(writer io.Writer) {
	md.lock.Lock()
	defer md.lock.Unlock()

	md.writeTo = writer
}

func (md *MockIoDriver) PrintStatus(writer io.Writer) {
	if md.Frozen {
		fmt.Fprintln(writer, "| simulated inputs: frozen")
		return
	}
	fmt.Fprintf(writer, "| simulated inputs: p=%.2f every %s\n", md.ChangeProbability, md.Interval)
}
