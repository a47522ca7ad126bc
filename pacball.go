package pacball

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/pkg/errors"

	"github.com/hubertat/pacball/announce"
	"github.com/hubertat/pacball/bridge"
	"github.com/hubertat/pacball/drivers"
	"github.com/hubertat/pacball/machine"
	"github.com/hubertat/pacball/mqtt"
	"github.com/hubertat/pacball/server"
	"github.com/hubertat/pacball/telemetry"
)

// PacBall wires the hardware poll loop to the WebSocket server. The poll
// loop is the only user of the driver, the two signals are the only thing
// it shares with the network side.
type PacBall struct {
	Config  Config
	Version string
	// Driver overrides the driver selected in Config.
	Driver drivers.IoDriver

	leds     *drivers.GpIO
	inputs   *bridge.Signal[machine.Inputs]
	commands *bridge.Signal[machine.Outputs]
	recorder *telemetry.Recorder
	logger   *log.Logger
}

func New(cfg Config, version string) *PacBall {
	return &PacBall{
		Config:   cfg,
		Version:  version,
		inputs:   bridge.NewSignal[machine.Inputs](),
		commands: bridge.NewSignal[machine.Outputs](),
		recorder: telemetry.NewRecorder(),
		logger: log.NewWithOptions(os.Stderr, log.Options{
			Prefix: "PacBall 🎰: ",
			Level:  log.GetLevel(),
		}),
	}
}

func (pb *PacBall) SetLogger(logger *log.Logger) {
	pb.logger = logger
}

// InitDrivers sets up the io driver and, when enabled, the status LEDs. Any
// failure here is fatal for startup.
func (pb *PacBall) InitDrivers(ctx context.Context) (err error) {
	if pb.Driver == nil {
		pb.Driver, err = pb.Config.IoDriver()
		if err != nil {
			return
		}
	}

	err = pb.Driver.Setup(ctx)
	if err != nil {
		return errors.Wrapf(err, "failed to setup %s driver", pb.Driver)
	}

	if pb.Config.Heartbeat.Enabled {
		pb.leds = &drivers.GpIO{
			HeartbeatPin: pb.Config.Heartbeat.Pin,
			ClientPin:    pb.Config.Heartbeat.ClientPin,
		}
		err = pb.leds.Setup(ctx)
		if err != nil {
			return errors.Wrapf(err, "failed to setup %s driver", pb.leds)
		}
	}

	return nil
}

// InitTelemetry attaches the configured sinks. A broker that is not
// reachable yet is only logged, the client keeps reconnecting.
func (pb *PacBall) InitTelemetry() {
	sinks := []telemetry.Sink{}

	if pb.Config.Influx.Host != "" {
		ic := pb.Config.Influx
		sinks = append(sinks, telemetry.NewInfluxSink(ic.Host, ic.Token, ic.Organization, ic.Bucket, ic.Measurement, pb.Config.Name))
	}

	if pb.Config.Mqtt.Broker != "" {
		mc := pb.Config.Mqtt
		client := mqtt.NewMqttClient(mc.Broker, pb.Config.Name, mc.Username, mc.Password, mc.Prefix)
		err := client.Connect()
		if err != nil {
			pb.logger.Warn("mqtt broker not connected yet", "broker", mc.Broker, "err", err)
		}
		sinks = append(sinks, telemetry.NewMqttSink(client))
	}

	pb.recorder = telemetry.NewRecorder(sinks...)
}

// PollOnce runs one cycle: read inputs, publish them, then apply the
// newest pending command. A failed read leaves the command pending, a
// failed write drops it.
func (pb *PacBall) PollOnce() error {
	in, err := pb.Driver.Inputs()
	if err != nil {
		return errors.Wrap(err, "failed to read inputs")
	}
	pb.inputs.Publish(in)
	pb.recorder.ObserveInputs(in)

	out, pending := pb.commands.TryTake()
	if !pending {
		return nil
	}
	err = pb.Driver.SetOutputs(out)
	if err != nil {
		return errors.Wrap(err, "failed to write outputs")
	}
	pb.recorder.ObserveOutputs(out)

	return nil
}

// StartPolling calls PollOnce every interval until ctx is done.
func (pb *PacBall) StartPolling(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := pb.PollOnce()
			if err != nil {
				pb.logger.Error("poll cycle failed", "err", err)
			}
		}
	}
}

// Server is the WebSocket endpoint bound to this machine's signals.
func (pb *PacBall) Server() *server.Server {
	srv := &server.Server{
		Inputs:         pb.inputs,
		Commands:       pb.commands,
		AllowedOrigins: pb.Config.AllowedOrigins,
		StrictOrigin:   pb.Config.StrictOrigin,
	}
	if pb.leds != nil {
		srv.OnStream = pb.leds.SetClient
	}
	return srv
}

// Run starts every background task and serves until ctx is done.
func (pb *PacBall) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	goRun := func(task func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			task()
		}()
	}

	goRun(func() { pb.StartPolling(ctx, pb.Config.PollInterval) })
	goRun(func() { pb.recorder.Run(ctx) })

	if pb.leds != nil {
		goRun(func() { pb.leds.Heartbeat(ctx, pb.Config.Heartbeat.Interval) })
	}

	if pb.Config.Announce.Enabled {
		announcer, err := announce.New(pb.Config.Name, pb.Config.Listen, pb.Version)
		if err != nil {
			pb.logger.Warn("mDNS announcement disabled", "err", err)
		} else {
			announcer.Debug = pb.logger.GetLevel() == log.DebugLevel
			goRun(func() {
				err := announcer.Run(ctx)
				if err != nil {
					pb.logger.Error("mDNS announcement stopped", "err", err)
				}
			})
		}
	}

	supervisor := &server.Supervisor{
		Addr:    pb.Config.Listen,
		Backoff: pb.Config.RestartBackoff,
		Serve:   pb.Server().Serve,
	}
	err := supervisor.Run(ctx)
	wg.Wait()

	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (pb *PacBall) Close() (err error) {
	if pb.Driver != nil {
		err = pb.Driver.Close()
	}
	if pb.leds != nil {
		ledErr := pb.leds.Close()
		if ledErr != nil && err == nil {
			err = ledErr
		}
	}

	return
}

func (pb *PacBall) PrintIoStatus(writer io.Writer) {
	fmt.Fprintln(writer)
	fmt.Fprintln(writer, "=== active io driver ===")
	if pb.Driver == nil {
		fmt.Fprintln(writer, "| none")
	} else {
		fmt.Fprintf(writer, "| driver: %s (ready: %v)\n", pb.Driver, pb.Driver.IsReady())
		if printer, ok := pb.Driver.(drivers.StatusPrinter); ok {
			printer.PrintStatus(writer)
		}
	}
	if pb.leds != nil {
		fmt.Fprintf(writer, "| status leds: heartbeat pin %d, client pin %d\n", pb.Config.Heartbeat.Pin, pb.Config.Heartbeat.ClientPin)
	}
	fmt.Fprintln(writer, "-----------------------------")
	fmt.Fprintln(writer)
}

// PrintIoTable lists every named field with its expander address and bit.
func PrintIoTable(writer io.Writer) {
	printFields := func(title string, fields []machine.Field) {
		fmt.Fprintf(writer, "=== %s ===\n", title)
		for _, f := range fields {
			fmt.Fprintf(writer, "| %-24s 0x%02x  bit 0x%02x\n", f.Name, machine.Addresses[f.Device], f.Mask)
		}
	}
	printFields("inputs (port B, active low)", machine.InputFields())
	printFields("outputs (port A, active high)", machine.OutputFields())
}
