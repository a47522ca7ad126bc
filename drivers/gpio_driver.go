package drivers

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/stianeikeland/go-rpio/v4"
)

const gpioDriverName = "gpio"

const DefaultHeartbeatInterval = time.Second

type statusLed interface {
	High()
	Low()
	Toggle()
}

// GpIO drives the status LEDs wired straight to the board header: a
// heartbeat that blinks while the process is alive and a client LED lit
// while a remote client is streaming. Pin 0 disables an LED.
type GpIO struct {
	HeartbeatPin uint8
	ClientPin    uint8

	heartbeat statusLed
	client    statusLed
	lock      sync.Mutex
	isReady   bool

	openPins  func() error
	closePins func() error
	pinFor    func(pin uint8) statusLed
}

func (gp *GpIO) String() string {
	return gpioDriverName
}

func (gp *GpIO) IsReady() bool {
	gp.lock.Lock()
	defer gp.lock.Unlock()

	return gp.isReady
}

func (gp *GpIO) Setup(ctx context.Context) error {
	gp.lock.Lock()
	defer gp.lock.Unlock()

	if gp.openPins == nil {
		gp.openPins = rpio.Open
		gp.closePins = rpio.Close
		gp.pinFor = func(pin uint8) statusLed {
			p := rpio.Pin(pin)
			p.Output()
			return p
		}
	}

	err := gp.openPins()
	if err != nil {
		return errors.Wrapf(err, "failed to Setup gpio driver for pins: %d, %d", gp.HeartbeatPin, gp.ClientPin)
	}

	if gp.HeartbeatPin > 0 {
		gp.heartbeat = gp.pinFor(gp.HeartbeatPin)
		gp.heartbeat.Low()
	}
	if gp.ClientPin > 0 {
		gp.client = gp.pinFor(gp.ClientPin)
		gp.client.Low()
	}

	gp.isReady = true
	return nil
}

// Heartbeat toggles the heartbeat LED every interval until ctx is done.
func (gp *GpIO) Heartbeat(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			gp.lock.Lock()
			if gp.isReady && gp.heartbeat != nil {
				gp.heartbeat.Toggle()
			}
			gp.lock.Unlock()
		}
	}
}

// SetClient lights the client LED while a stream is active.
func (gp *GpIO) SetClient(active bool) {
	gp.lock.Lock()
	defer gp.lock.Unlock()

	if !gp.isReady || gp.client == nil {
		return
	}
	if active {
		gp.client.High()
	} else {
		gp.client.Low()
	}
}

func (gp *GpIO) Close() error {
	gp.lock.Lock()
	defer gp.lock.Unlock()

	if !gp.isReady {
		return nil
	}
	gp.isReady = false
	for _, led := range []statusLed{gp.heartbeat, gp.client} {
		if led != nil {
			led.Low()
		}
	}
	return gp.closePins()
}
