package xiot

import (
	"context"
	"fmt"
	"strconv"

	"github.com/janael-pinheiro/xiot-cloud-sdk-golang/pkg/entities"
	"github.com/janael-pinheiro/xiot-cloud-sdk-golang/pkg/gateways/xiot/network"
	"github.com/janael-pinheiro/xiot-cloud-sdk-golang/pkg/metrics"
	"github.com/janael-pinheiro/xiot-cloud-sdk-golang/pkg/store"
	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	eventCommandSent      = "command_sent"
	dispatchStatusSuccess = "success"
)

// ErrCommandNotSent is returned when the broker refused the command.
var ErrCommandNotSent = errors.New("command not sent")

// Dispatcher turns validated commands into broker messages, then updates the
// actuator optimistically. Nothing is written when the publish fails.
type Dispatcher struct {
	store     store.Store
	publisher network.Publisher
	log       *logrus.Entry
	clock     clockwork.Clock
	metrics   *metrics.Metrics
}

func NewDispatcher(s store.Store, publisher network.Publisher, log *logrus.Entry, clock clockwork.Clock, m *metrics.Metrics) *Dispatcher {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Dispatcher{store: s, publisher: publisher, log: log, clock: clock, metrics: m}
}

func ValidateCommand(request entities.CommandRequest) error {
	if request.Command == "" {
		return &entities.ValidationError{Reason: "command is required", ValidCommands: entities.ValidCommands}
	}
	valid := false
	for _, command := range entities.ValidCommands {
		if command == request.Command {
			valid = true
			break
		}
	}
	if !valid {
		return &entities.ValidationError{
			Reason:        fmt.Sprintf("invalid command '%s'", request.Command),
			ValidCommands: entities.ValidCommands,
		}
	}
	if request.Command == entities.CommandSet && request.Value == nil {
		return &entities.ValidationError{Reason: "value is required for set command"}
	}
	return nil
}

func (d *Dispatcher) Dispatch(ctx context.Context, actuatorID int64, request entities.CommandRequest) (entities.CommandResponse, error) {
	if err := ValidateCommand(request); err != nil {
		return entities.CommandResponse{}, err
	}
	actuator, err := d.store.GetActuator(ctx, actuatorID)
	if err != nil {
		return entities.CommandResponse{}, errors.Wrapf(err, "actuator %d", actuatorID)
	}

	sentAt := d.clock.Now().UTC()
	message := network.ActuatorCommand{
		ActuatorID:   actuator.ID,
		Name:         actuator.Name,
		Address:      actuator.Address,
		ActuatorType: actuator.Type,
		Command:      request.Command,
		Value:        request.Value,
	}
	if err := d.publisher.PublishActuatorCommand(actuator.Board, message); err != nil {
		return entities.CommandResponse{}, errors.Wrapf(ErrCommandNotSent, "%v", err)
	}
	latency := d.clock.Since(sentAt)
	d.metrics.CommandDispatched(request.Command, latency.Seconds())

	state := nextState(actuator, request)
	state.LastCommandTime = sentAt
	state.LastCommandLatency = latency.Milliseconds()
	if err := d.store.UpdateActuatorState(ctx, actuator.ID, state); err != nil {
		return entities.CommandResponse{}, errors.Wrap(err, "update actuator state")
	}

	_, err = d.store.AppendEvent(ctx, entities.Event{
		Source:   fmt.Sprintf("actuator:%s", actuator.Name),
		Type:     eventCommandSent,
		Message:  fmt.Sprintf("Command '%s' sent to %s", state.LastCommand, actuator.Name),
		Severity: entities.SeverityInfo,
	})
	if err != nil {
		d.log.Errorf("append command event for actuator %d: %v", actuator.ID, err)
	}
	d.log.Printf("sent %s to %s on %s", state.LastCommand, actuator.Address, actuator.Board)

	return entities.CommandResponse{
		Status:   dispatchStatusSuccess,
		Actuator: actuator.ID,
		Command:  request.Command,
		Value:    request.Value,
		Topic:    network.ActuatorsTopic(actuator.Board),
	}, nil
}

// nextState applies a command to the actuator's last known state.
func nextState(actuator entities.Actuator, request entities.CommandRequest) entities.ActuatorState {
	state := entities.ActuatorState{LastCommand: request.Command}
	switch request.Command {
	case entities.CommandOn:
		state.Status = entities.ActuatorOn
	case entities.CommandOff:
		state.Status = entities.ActuatorOff
	case entities.CommandToggle:
		state.Status = entities.ActuatorOn
		if actuator.Status == entities.ActuatorOn {
			state.Status = entities.ActuatorOff
		}
	case entities.CommandSet:
		value := *request.Value
		state.CurrentValue = &value
		state.Status = entities.ActuatorOff
		if value > 0 {
			state.Status = entities.ActuatorRunning
		}
		state.LastCommand = fmt.Sprintf("%s:%s", request.Command, strconv.FormatFloat(value, 'f', -1, 64))
	}
	return state
}
