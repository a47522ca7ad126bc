// Package telemetry mirrors machine state changes to external stores. It is
// fed from the polling loop and never blocks it.
package telemetry

import (
	"context"
	"os"
	"time"

	"github.com/charmbracelet/log"

	"github.com/hubertat/pacball/bridge"
	"github.com/hubertat/pacball/machine"
)

const sinkWriteTimeout = 3 * time.Second

const (
	KindInputs  = "inputs"
	KindOutputs = "outputs"
)

type Sink interface {
	String() string
	Write(ctx context.Context, kind string, fields map[string]bool, ts time.Time) error
	Close() error
}

type sample[T any] struct {
	value T
	ts    time.Time
}

// Recorder forwards only changed snapshots. Observe* is meant to be called
// from a single goroutine, Run from another.
type Recorder struct {
	sinks   []Sink
	logger  *log.Logger
	inputs  *bridge.Signal[sample[machine.Inputs]]
	outputs *bridge.Signal[sample[machine.Outputs]]

	lastInputs  *machine.Inputs
	lastOutputs *machine.Outputs
}

func NewRecorder(sinks ...Sink) *Recorder {
	return &Recorder{
		sinks: sinks,
		logger: log.NewWithOptions(os.Stderr, log.Options{
			Prefix: "Telemetry: ",
			Level:  log.GetLevel(),
		}),
		inputs:  bridge.NewSignal[sample[machine.Inputs]](),
		outputs: bridge.NewSignal[sample[machine.Outputs]](),
	}
}

func (r *Recorder) SetLogger(logger *log.Logger) {
	r.logger = logger
}

func (r *Recorder) ObserveInputs(in machine.Inputs) {
	if r.lastInputs != nil && *r.lastInputs == in {
		return
	}
	r.lastInputs = &in
	r.inputs.Publish(sample[machine.Inputs]{in, time.Now()})
}

func (r *Recorder) ObserveOutputs(out machine.Outputs) {
	if r.lastOutputs != nil && *r.lastOutputs == out {
		return
	}
	r.lastOutputs = &out
	r.outputs.Publish(sample[machine.Outputs]{out, time.Now()})
}

// Run writes pending snapshots to every sink until ctx is done, then
// closes the sinks.
func (r *Recorder) Run(ctx context.Context) {
	defer r.close()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.inputs.Ready():
			if s, ok := r.inputs.TryTake(); ok {
				r.write(ctx, KindInputs, s.value.Map(), s.ts)
			}
		case <-r.outputs.Ready():
			if s, ok := r.outputs.TryTake(); ok {
				r.write(ctx, KindOutputs, s.value.Map(), s.ts)
			}
		}
	}
}

func (r *Recorder) write(ctx context.Context, kind string, fields map[string]bool, ts time.Time) {
	for _, sink := range r.sinks {
		writeCtx, cancel := context.WithTimeout(ctx, sinkWriteTimeout)
		err := sink.Write(writeCtx, kind, fields, ts)
		cancel()
		if err != nil {
			r.logger.Warn("telemetry write failed", "sink", sink, "kind", kind, "err", err)
		}
	}
}

func (r *Recorder) close() {
	for _, sink := range r.sinks {
		err := sink.Close()
		if err != nil {
			r.logger.Warn("failed to close sink", "sink", sink, "err", err)
		}
	}
}
