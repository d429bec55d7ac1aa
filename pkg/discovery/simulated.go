package discovery

import (
	"sync"

	"github.com/pkg/errors"
)

// SimulatedBus answers identify requests from a fixed table of devices.
type SimulatedBus struct {
	mu        sync.Mutex
	devices   map[uint16][]byte
	lastWrite map[uint16][]byte
}

// DefaultSimulatedDevices is what a scan reports without hardware: one led
// actuator at 0x08 with write and digital capabilities.
func DefaultSimulatedDevices() map[uint16][]byte {
	return map[uint16][]byte{
		0x08: {Magic, classActuator, 0x20, capWrite | capDigital},
	}
}

func NewSimulatedBus(devices map[uint16][]byte) *SimulatedBus {
	if devices == nil {
		devices = DefaultSimulatedDevices()
	}
	return &SimulatedBus{devices: devices, lastWrite: map[uint16][]byte{}}
}

// SimulatedOpener always opens a fresh SimulatedBus over devices.
func SimulatedOpener(devices map[uint16][]byte) Opener {
	return func() (Bus, error) {
		return NewSimulatedBus(devices), nil
	}
}

func (b *SimulatedBus) Probe(addr uint16) error {
	if _, ok := b.devices[addr]; !ok {
		return ErrNoDevice
	}
	return nil
}

func (b *SimulatedBus) Write(addr uint16, data []byte) error {
	if err := b.Probe(addr); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastWrite[addr] = append([]byte(nil), data...)
	return nil
}

// Read returns the device response once IDENTIFY was written to it.
func (b *SimulatedBus) Read(addr uint16, buf []byte) error {
	if err := b.Probe(addr); err != nil {
		return err
	}
	b.mu.Lock()
	written := b.lastWrite[addr]
	b.mu.Unlock()
	if len(written) != 1 || written[0] != CmdIdentify {
		return errors.Errorf("0x%02X: read without identify", addr)
	}
	copy(buf, b.devices[addr])
	return nil
}

func (b *SimulatedBus) Close() error { return nil }
