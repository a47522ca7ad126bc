package drivers

import (
	"sync"

	"github.com/pkg/errors"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

var hostInit struct {
	once sync.Once
	err  error
}

// OpenBus loads the host drivers once and opens the named i2c bus.
func OpenBus(name string) (i2c.BusCloser, error) {
	hostInit.once.Do(func() {
		_, hostInit.err = host.Init()
	})
	if hostInit.err != nil {
		return nil, errors.Wrap(hostInit.err, "failed to initialize host drivers")
	}

	bus, err := i2creg.Open(name)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open i2c bus %q", name)
	}

	return bus, nil
}
