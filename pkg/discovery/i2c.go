package discovery

import (
	"github.com/pkg/errors"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

type i2cBus struct {
	bus i2c.BusCloser
}

// I2COpener opens the named I2C bus ("1" for /dev/i2c-1, "" for the first
// one found). Missing drivers or devices are reported as ErrBusUnavailable.
func I2COpener(name string) Opener {
	return func() (Bus, error) {
		if _, err := host.Init(); err != nil {
			return nil, errors.Wrapf(ErrBusUnavailable, "host init: %v", err)
		}
		bus, err := i2creg.Open(name)
		if err != nil {
			return nil, errors.Wrapf(ErrBusUnavailable, "open i2c bus %q: %v", name, err)
		}
		return &i2cBus{bus: bus}, nil
	}
}

// Probe reads a single byte, the usual presence check on I2C.
func (b *i2cBus) Probe(addr uint16) error {
	if err := b.bus.Tx(addr, nil, make([]byte, 1)); err != nil {
		return errors.Wrapf(ErrNoDevice, "0x%02X: %v", addr, err)
	}
	return nil
}

func (b *i2cBus) Write(addr uint16, data []byte) error {
	return b.bus.Tx(addr, data, nil)
}

func (b *i2cBus) Read(addr uint16, buf []byte) error {
	return b.bus.Tx(addr, nil, buf)
}

func (b *i2cBus) Close() error {
	return b.bus.Close()
}
