// Package agent runs bus discovery on a board: on start, on a fixed interval
// and whenever the backend publishes a trigger on xiot/<board>/discover.
package agent

import (
	"context"
	"encoding/json"
	"time"

	"github.com/janael-pinheiro/xiot-cloud-sdk-golang/pkg/entities"
	"github.com/janael-pinheiro/xiot-cloud-sdk-golang/pkg/gateways/xiot/network"
	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
)

type DeviceScanner interface {
	Scan(ctx context.Context) ([]entities.DeviceDescriptor, error)
}

// DeviceRegistrar is satisfied by RegistrationClient and by the in-process
// registrar.
type DeviceRegistrar interface {
	RegisterAll(ctx context.Context, board string, devices []entities.DeviceDescriptor) []entities.RegistrationOutcome
}

type Config struct {
	Board    string
	Interval time.Duration
	// Output, when set, receives a YAML report of every scan.
	Output string
}

type Agent struct {
	conf       Config
	scanner    DeviceScanner
	registrar  DeviceRegistrar
	messaging  network.Messaging
	publisher  network.Publisher
	subscriber network.Subscriber
	files      filesystemManagement
	clock      clockwork.Clock
	log        *logrus.Entry
	triggers   chan struct{}
}

// New builds an agent. A nil registrar only scans; a nil messaging runs
// without broker triggers.
func New(conf Config, scanner DeviceScanner, registrar DeviceRegistrar, messaging network.Messaging, log *logrus.Entry, clock clockwork.Clock) *Agent {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	a := &Agent{
		conf:      conf,
		scanner:   scanner,
		registrar: registrar,
		messaging: messaging,
		files:     new(fileManagement),
		clock:     clock,
		log:       log,
		triggers:  make(chan struct{}, 1),
	}
	if messaging != nil {
		a.publisher = network.NewMsgPublisher(messaging, clock)
		a.subscriber = network.NewMsgSubscriber(messaging)
	}
	return a
}

// RunOnce scans, registers what was found and returns the summary.
func (a *Agent) RunOnce(ctx context.Context) (entities.DiscoverySummary, error) {
	devices, err := a.scanner.Scan(ctx)
	if err != nil {
		return entities.Summarize(nil, nil), errors.Wrap(err, "scan")
	}
	var outcomes []entities.RegistrationOutcome
	switch {
	case len(devices) == 0:
		a.log.Println("no xiot devices found")
	case a.registrar == nil:
		a.log.Println("registration disabled, skipping")
	default:
		outcomes = a.registrar.RegisterAll(ctx, a.conf.Board, devices)
	}
	summary := entities.Summarize(devices, outcomes)
	a.log.Printf("found %d, registered %d, updated %d, failed %d",
		len(summary.Devices), len(summary.Registered), len(summary.Updated), len(summary.Failed))

	if a.conf.Output != "" {
		if err := a.writeSummary(summary); err != nil {
			return summary, err
		}
	}
	return summary, nil
}

// Run scans once, then again on every tick or trigger until ctx is done.
func (a *Agent) Run(ctx context.Context) error {
	if a.messaging != nil {
		if err := a.subscriber.SubscribeToDiscoveryTrigger(a.conf.Board, a.onTrigger); err != nil {
			return errors.Wrap(err, "subscribe discovery trigger")
		}
		if err := a.messaging.Start(); err != nil {
			return err
		}
		defer a.messaging.Stop()
		a.announce(entities.BoardOnline)
		defer a.announce(entities.BoardOffline)
	}

	var tick <-chan time.Time
	if a.conf.Interval > 0 {
		ticker := a.clock.NewTicker(a.conf.Interval)
		defer ticker.Stop()
		tick = ticker.Chan()
		a.log.Printf("running every %s", a.conf.Interval)
	}

	a.runLogged(ctx)
	for {
		select {
		case <-ctx.Done():
			a.log.Println("stopped")
			return nil
		case <-tick:
			a.runLogged(ctx)
		case <-a.triggers:
			a.log.Println("discovery triggered by backend")
			a.runLogged(ctx)
		}
	}
}

func (a *Agent) runLogged(ctx context.Context) {
	if _, err := a.RunOnce(ctx); err != nil && ctx.Err() == nil {
		a.log.Errorf("discovery: %v", err)
	}
}

// onTrigger coalesces triggers that arrive while a scan is running.
func (a *Agent) onTrigger(msg network.InMsg) {
	var trigger network.DiscoveryTrigger
	if err := json.Unmarshal(msg.Body, &trigger); err != nil {
		a.log.Debugf("ignoring malformed trigger: %v", err)
		return
	}
	if trigger.BoardID != "" && trigger.BoardID != a.conf.Board {
		return
	}
	select {
	case a.triggers <- struct{}{}:
	default:
	}
}

func (a *Agent) announce(status string) {
	if err := a.publisher.PublishBoardStatus(a.conf.Board, status); err != nil {
		a.log.Warnf("announce %s: %v", status, err)
	}
}

func (a *Agent) writeSummary(summary entities.DiscoverySummary) error {
	data, err := yaml.Marshal(summary)
	if err != nil {
		return errors.Wrap(err, "encode summary")
	}
	return errors.Wrap(a.files.writeSummaryFile(a.conf.Output, data), "write summary")
}
