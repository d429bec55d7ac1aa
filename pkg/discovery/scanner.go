package discovery

import (
	"context"
	"time"

	"github.com/janael-pinheiro/xiot-cloud-sdk-golang/pkg/entities"
	"github.com/janael-pinheiro/xiot-cloud-sdk-golang/pkg/metrics"
	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// scans collapses concurrent scans of the same bus into one.
var scans singleflight.Group

// Scanner walks the address range of one bus, one address at a time.
type Scanner struct {
	busName string
	open    Opener
	settle  time.Duration
	clock   clockwork.Clock
	log     *logrus.Entry
	metrics *metrics.Metrics

	// ctx bounds the shared scan; it outlives any single caller.
	ctx    context.Context
	cancel context.CancelFunc
}

func NewScanner(busName string, open Opener, settle time.Duration, clock clockwork.Clock, log *logrus.Entry, m *metrics.Metrics) *Scanner {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scanner{busName: busName, open: open, settle: settle, clock: clock, log: log, metrics: m, ctx: ctx, cancel: cancel}
}

// Scan returns a descriptor for every address that completed the handshake,
// lowest address first. Callers arriving while a scan of the same bus is
// running share its result. Without bus hardware the simulated devices are
// reported instead.
func (s *Scanner) Scan(ctx context.Context) ([]entities.DeviceDescriptor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	results := scans.DoChan(s.busName, func() (interface{}, error) {
		return s.scan(s.ctx)
	})
	// A caller that gives up leaves the scan running for the others.
	var result singleflight.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case result = <-results:
	}
	if result.Shared {
		s.log.Debugf("joined scan already running on bus %s", s.busName)
	}
	if result.Err != nil {
		return nil, result.Err
	}
	devices := result.Val.([]entities.DeviceDescriptor)
	return append([]entities.DeviceDescriptor(nil), devices...), nil
}

// Close abandons a scan in progress at the next address.
func (s *Scanner) Close() {
	s.cancel()
}

func (s *Scanner) scan(ctx context.Context) ([]entities.DeviceDescriptor, error) {
	bus, err := s.open()
	if errors.Is(err, ErrBusUnavailable) {
		s.log.Warnf("%v, using simulated devices", err)
		bus, err = NewSimulatedBus(nil), nil
	}
	if err != nil {
		return nil, err
	}
	defer bus.Close()

	s.log.Printf("scanning addresses %s - %s on bus %s", FormatAddress(ScanStart), FormatAddress(ScanEnd), s.busName)
	devices := []entities.DeviceDescriptor{}
	for addr := ScanStart; addr <= ScanEnd; addr++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := bus.Probe(addr); err != nil {
			continue
		}
		s.log.Debugf("found device at %s", FormatAddress(addr))

		response, err := Identify(bus, addr, s.settle, s.clock.Sleep)
		if err != nil {
			s.log.Warnf("failed to identify device at %s: %v", FormatAddress(addr), err)
			continue
		}
		descriptor, err := Decode(addr, response)
		if err != nil {
			s.log.Printf("device at %s skipped: %v", FormatAddress(addr), err)
			continue
		}
		s.log.Printf("identified %s (%s) at %s", descriptor.DeviceClass, descriptor.DeviceType, descriptor.Address)
		devices = append(devices, descriptor)
	}
	s.metrics.DevicesDiscovered(len(devices))
	s.log.Printf("scan complete, %d xiot devices", len(devices))
	return devices, nil
}
