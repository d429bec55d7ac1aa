package xiot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/janael-pinheiro/xiot-cloud-sdk-golang/pkg/entities"
	"github.com/janael-pinheiro/xiot-cloud-sdk-golang/pkg/gateways/xiot/network"
	"github.com/janael-pinheiro/xiot-cloud-sdk-golang/pkg/metrics"
	"github.com/janael-pinheiro/xiot-cloud-sdk-golang/pkg/store"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
)

const (
	eventStatusChange   = "status_change"
	discardDecode       = "decode"
	discardMissingBoard = "missing_board"
)

// Forwarder relays a routed broker message to live observers.
type Forwarder interface {
	Publish(kind string, payload json.RawMessage)
}

// Ingestion consumes board telemetry and status from the broker, applies it
// to the store and forwards every routed message to observers. Handlers run
// on the transport's delivery goroutine, one message at a time.
type Ingestion struct {
	messaging  network.Messaging
	subscriber network.Subscriber
	store      store.Store
	forwarder  Forwarder
	filter     measurementFilter
	conf       entities.IngestConfig
	log        *logrus.Entry
	metrics    *metrics.Metrics
	clock      clockwork.Clock

	ctx    context.Context
	cancel context.CancelFunc
}

type IngestionOption func(*Ingestion)

func WithIngestionClock(clock clockwork.Clock) IngestionOption {
	return func(i *Ingestion) { i.clock = clock }
}

func WithIngestionMetrics(m *metrics.Metrics) IngestionOption {
	return func(i *Ingestion) { i.metrics = m }
}

func NewIngestion(messaging network.Messaging, s store.Store, forwarder Forwarder, conf entities.IngestConfig, log *logrus.Entry, opts ...IngestionOption) *Ingestion {
	ctx, cancel := context.WithCancel(context.Background())
	i := &Ingestion{
		messaging:  messaging,
		subscriber: network.NewMsgSubscriber(messaging),
		store:      s,
		forwarder:  forwarder,
		filter:     newMeasurementFilter(conf),
		conf:       conf,
		log:        log,
		clock:      clockwork.NewRealClock(),
		ctx:        ctx,
		cancel:     cancel,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Start registers the topic handlers and connects. Subscriptions are
// re-applied by the transport after every reconnect.
func (i *Ingestion) Start() error {
	if err := i.subscriber.SubscribeToSensorData(i.handleSensorBatch); err != nil {
		return fmt.Errorf("subscribe sensor data: %w", err)
	}
	if err := i.subscriber.SubscribeToBoardStatus(i.handleBoardStatus); err != nil {
		return fmt.Errorf("subscribe board status: %w", err)
	}
	return i.messaging.Start()
}

// Stop closes the broker connection without reconnecting.
func (i *Ingestion) Stop() {
	i.cancel()
	i.messaging.Stop()
}

func (i *Ingestion) State() network.ConnectionState {
	return i.messaging.State()
}

func (i *Ingestion) handleSensorBatch(msg network.InMsg) {
	var batch network.SensorBatch
	if err := json.Unmarshal(msg.Body, &batch); err != nil {
		i.discard(msg, discardDecode, err)
		return
	}
	board := i.boardID(batch.BoardID, msg.Topic)
	if board == "" {
		i.discard(msg, discardMissingBoard, nil)
		return
	}
	i.metrics.MessageReceived(entities.KindSensorUpdate)

	now := i.clock.Now().UTC()
	i.provision(board)
	if err := i.store.TouchBoard(i.ctx, board, entities.BoardOnline, now); err != nil {
		i.logStoreError(err, "unknown board %s", board)
	}
	for _, record := range batch.Sensors {
		i.applySensorRecord(board, batch.Timestamp, record)
	}

	i.forwarder.Publish(entities.KindSensorUpdate, msg.Body)
}

func (i *Ingestion) applySensorRecord(board, timestamp string, record network.SensorRecord) {
	sensor, err := i.store.FindSensor(i.ctx, board, record.Address)
	if err != nil {
		i.logStoreError(err, "sensor %s not found on board %s", record.Address, board)
		return
	}

	if record.Value == nil {
		if err := i.store.SetSensorStatus(i.ctx, sensor.ID, entities.SensorOffline); err != nil {
			i.logStoreError(err, "sensor %d vanished", sensor.ID)
		}
		return
	}

	if i.filter.seen(board, record.Address, timestamp) {
		i.log.Debugf("skipping redelivered reading %s@%s on %s", record.Address, timestamp, board)
		return
	}

	status := record.Status
	if status == "" {
		status = entities.SensorActive
	}
	now := i.clock.Now().UTC()
	if err := i.store.RecordSensorValue(i.ctx, sensor.ID, *record.Value, status, now); err != nil {
		i.logStoreError(err, "sensor %d vanished", sensor.ID)
		return
	}
	if _, err := i.store.AppendReading(i.ctx, sensor.ID, *record.Value, now); err != nil {
		i.log.Errorf("append reading for sensor %d: %v", sensor.ID, err)
		return
	}
	i.metrics.ReadingAppended()
}

func (i *Ingestion) handleBoardStatus(msg network.InMsg) {
	var status network.StatusMessage
	if err := json.Unmarshal(msg.Body, &status); err != nil {
		i.discard(msg, discardDecode, err)
		return
	}
	board := i.boardID(status.BoardID, msg.Topic)
	if board == "" {
		i.discard(msg, discardMissingBoard, nil)
		return
	}
	i.metrics.MessageReceived(entities.KindBoardStatus)
	defer i.forwarder.Publish(entities.KindBoardStatus, msg.Body)

	// Without a status there is nothing to record, observers still get it.
	if status.Status == "" {
		i.log.Debugf("status message from %s carries no status", board)
		return
	}
	i.log.Printf("status update from %s: %s", board, status.Status)

	i.provision(board)
	err := i.store.TouchBoard(i.ctx, board, status.Status, i.clock.Now().UTC())
	if err == nil {
		i.appendStatusEvent(board, status.Status)
	} else {
		i.logStoreError(err, "unknown board %s", board)
	}
}

func (i *Ingestion) appendStatusEvent(board, status string) {
	severity := entities.SeverityWarning
	if status == entities.BoardOnline {
		severity = entities.SeverityInfo
	}
	_, err := i.store.AppendEvent(i.ctx, entities.Event{
		Source:   board,
		Type:     eventStatusChange,
		Message:  fmt.Sprintf("Baseboard %s is now %s", board, status),
		Severity: severity,
	})
	if err != nil {
		i.log.Errorf("append status event for %s: %v", board, err)
	}
}

// provision creates an unknown board when auto-provisioning is enabled.
func (i *Ingestion) provision(board string) {
	if !i.conf.AutoProvisionBoards {
		return
	}
	_, created, err := i.store.CreateBoard(i.ctx, newBoard(board))
	if err != nil {
		i.log.Errorf("auto-provision board %s: %v", board, err)
		return
	}
	if created {
		i.log.Printf("auto-provisioned board %s", board)
	}
}

// boardID prefers the payload identifier and falls back to the topic.
func (i *Ingestion) boardID(fromPayload, topic string) string {
	if fromPayload != "" {
		return fromPayload
	}
	board, _ := network.BoardFromTopic(topic)
	return board
}

func (i *Ingestion) discard(msg network.InMsg, reason string, err error) {
	i.metrics.MessageDiscarded(reason)
	i.log.Debugf("discarding message on %s (%s): %v", msg.Topic, reason, err)
}

func (i *Ingestion) logStoreError(err error, format string, args ...interface{}) {
	if errors.Is(err, store.ErrNotFound) {
		i.log.Debugf(format, args...)
		return
	}
	i.log.Errorf("store: %v", err)
}
