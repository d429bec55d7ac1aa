package discovery

import (
	"github.com/pkg/errors"
)

var (
	// ErrBusUnavailable means the bus hardware or its driver is absent.
	ErrBusUnavailable = errors.New("bus unavailable")
	// ErrNoDevice means nothing acknowledged at the probed address.
	ErrNoDevice = errors.New("no device at address")
)

// Bus is a byte-oriented addressable bus. Implementations need not be safe
// for concurrent use; the scanner serialises every transaction.
type Bus interface {
	Probe(addr uint16) error
	Write(addr uint16, data []byte) error
	Read(addr uint16, buf []byte) error
	Close() error
}

// Opener opens the bus a Scanner works on.
type Opener func() (Bus, error)
