package xiot

import (
	"context"
	"fmt"
	"strings"

	"github.com/janael-pinheiro/xiot-cloud-sdk-golang/pkg/entities"
	"github.com/janael-pinheiro/xiot-cloud-sdk-golang/pkg/store"
	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	eventSourceDiscovery    = "discovery"
	eventBoardDiscovered    = "board_discovered"
	eventSensorDiscovered   = "sensor_discovered"
	eventActuatorDiscovered = "actuator_discovered"
)

var sensorUnits = map[string]string{
	"temperature": "°C",
	"humidity":    "%",
	"pressure":    "hPa",
	"light":       "lux",
	"gas":         "ppm",
	"vibration":   "g",
}

type valueRange struct {
	min, max float64
}

var actuatorRanges = map[string]valueRange{
	"pwm":   {0, 255},
	"servo": {0, 255},
	"motor": {-100, 100},
}

var defaultActuatorRange = valueRange{0, 1}

// Registrar upserts discovered devices, keyed on (board, address).
type Registrar struct {
	store store.Store
	log   *logrus.Entry
	clock clockwork.Clock
}

func NewRegistrar(s store.Store, log *logrus.Entry, clock clockwork.Clock) *Registrar {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Registrar{store: s, log: log, clock: clock}
}

// RegisterAll registers every descriptor for board. A failing descriptor
// yields a failed outcome and does not stop the rest of the batch.
func (r *Registrar) RegisterAll(ctx context.Context, board string, devices []entities.DeviceDescriptor) []entities.RegistrationOutcome {
	outcomes := make([]entities.RegistrationOutcome, 0, len(devices))
	for _, device := range devices {
		outcome := entities.RegistrationOutcome{Address: device.Address}
		response, err := r.Register(ctx, board, device)
		switch {
		case err != nil:
			outcome.Result = entities.OutcomeFailed
			outcome.Reason = err.Error()
			r.log.Warnf("registration of %s on %s failed: %v", device.Address, board, err)
		case response.Created:
			outcome.Result = entities.OutcomeCreated
			outcome.Response = &response
		default:
			outcome.Result = entities.OutcomeUpdated
			outcome.Response = &response
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes
}

// Register upserts one descriptor, creating board first when needed.
func (r *Registrar) Register(ctx context.Context, board string, device entities.DeviceDescriptor) (entities.RegistrationResponse, error) {
	if board == "" {
		return entities.RegistrationResponse{}, &entities.ValidationError{Reason: "baseboard_id is required"}
	}
	if device.Address == "" {
		return entities.RegistrationResponse{}, &entities.ValidationError{Reason: "i2c_address is required"}
	}
	if device.DeviceType == "" {
		device.DeviceType = entities.DeviceTypeCustom
	}
	switch device.DeviceClass {
	case entities.DeviceClassSensor:
		if err := r.ensureBoard(ctx, board); err != nil {
			return entities.RegistrationResponse{}, err
		}
		return r.registerSensor(ctx, board, device)
	case entities.DeviceClassActuator:
		if err := r.ensureBoard(ctx, board); err != nil {
			return entities.RegistrationResponse{}, err
		}
		return r.registerActuator(ctx, board, device)
	default:
		return entities.RegistrationResponse{}, &entities.ValidationError{
			Reason: fmt.Sprintf("unknown device class %q", device.DeviceClass),
		}
	}
}

func (r *Registrar) ensureBoard(ctx context.Context, identifier string) error {
	board := newBoard(identifier)
	seen := r.clock.Now().UTC()
	board.LastSeen = &seen
	stored, created, err := r.store.CreateBoard(ctx, board)
	if err != nil {
		return errors.Wrap(err, "create board")
	}
	if !created {
		return nil
	}
	r.log.Printf("new board discovered: %s", stored.Identifier)
	r.appendEvent(ctx, eventBoardDiscovered, fmt.Sprintf("New baseboard discovered: %s", stored.Identifier))
	return nil
}

func (r *Registrar) registerSensor(ctx context.Context, board string, device entities.DeviceDescriptor) (entities.RegistrationResponse, error) {
	sensor, created, err := r.store.UpsertSensor(ctx, entities.Sensor{
		Board:   board,
		Name:    deviceName(device),
		Type:    device.DeviceType,
		Address: device.Address,
		Unit:    sensorUnits[device.DeviceType],
		Status:  entities.SensorActive,
	})
	if err != nil {
		return entities.RegistrationResponse{}, errors.Wrap(err, "upsert sensor")
	}
	if created {
		r.appendEvent(ctx, eventSensorDiscovered, fmt.Sprintf("New sensor discovered: %s at %s on %s", sensor.Name, sensor.Address, board))
	}
	return entities.RegistrationResponse{
		Created:     created,
		DeviceClass: entities.DeviceClassSensor,
		ID:          sensor.ID,
		Name:        sensor.Name,
		Type:        sensor.Type,
		Address:     sensor.Address,
		Board:       board,
	}, nil
}

func (r *Registrar) registerActuator(ctx context.Context, board string, device entities.DeviceDescriptor) (entities.RegistrationResponse, error) {
	limits, ok := actuatorRanges[device.DeviceType]
	if !ok {
		limits = defaultActuatorRange
	}
	actuator, created, err := r.store.UpsertActuator(ctx, entities.Actuator{
		Board:    board,
		Name:     deviceName(device),
		Type:     device.DeviceType,
		Address:  device.Address,
		Status:   entities.ActuatorOff,
		MinValue: limits.min,
		MaxValue: limits.max,
	})
	if err != nil {
		return entities.RegistrationResponse{}, errors.Wrap(err, "upsert actuator")
	}
	if created {
		r.appendEvent(ctx, eventActuatorDiscovered, fmt.Sprintf("New actuator discovered: %s at %s on %s", actuator.Name, actuator.Address, board))
	}
	return entities.RegistrationResponse{
		Created:     created,
		DeviceClass: entities.DeviceClassActuator,
		ID:          actuator.ID,
		Name:        actuator.Name,
		Type:        actuator.Type,
		Address:     actuator.Address,
		Board:       board,
	}, nil
}

func (r *Registrar) appendEvent(ctx context.Context, eventType, message string) {
	_, err := r.store.AppendEvent(ctx, entities.Event{
		Source:   eventSourceDiscovery,
		Type:     eventType,
		Message:  message,
		Severity: entities.SeverityInfo,
	})
	if err != nil {
		r.log.Errorf("append %s event: %v", eventType, err)
	}
}

func newBoard(identifier string) entities.Board {
	return entities.Board{
		Identifier: identifier,
		Name:       fmt.Sprintf("Baseboard %s", identifier),
		Status:     entities.BoardOnline,
	}
}

// deviceName renders "<Type> (<address>)", e.g. "Led (0x08)".
func deviceName(device entities.DeviceDescriptor) string {
	deviceType := device.DeviceType
	return fmt.Sprintf("%s%s (%s)", strings.ToUpper(deviceType[:1]), deviceType[1:], device.Address)
}
