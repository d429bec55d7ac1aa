package xiot

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/janael-pinheiro/xiot-cloud-sdk-golang/pkg/entities"
	"github.com/janael-pinheiro/xiot-cloud-sdk-golang/pkg/gateways/xiot/network"
	"github.com/janael-pinheiro/xiot-cloud-sdk-golang/pkg/gateways/xiot/network/mocks"
	"github.com/janael-pinheiro/xiot-cloud-sdk-golang/pkg/logging"
	"github.com/janael-pinheiro/xiot-cloud-sdk-golang/pkg/store"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

func formatTestAddress(address int) string {
	return fmt.Sprintf("0x%02X", address)
}

func floatPtr(v float64) *float64 {
	return &v
}

type dispatcherSuite struct {
	suite.Suite
	ctx        context.Context
	store      *store.Memory
	publisher  *mocks.PublisherMock
	dispatcher *Dispatcher
	led        entities.Actuator
	pwm        entities.Actuator
}

func (s *dispatcherSuite) SetupTest() {
	s.ctx = context.Background()
	clock := clockwork.NewFakeClockAt(testNow)
	s.store = store.NewMemory(clock)
	s.Require().NoError(seedTestStore(s.ctx, s.store))
	var err error
	s.led, err = s.store.FindActuator(s.ctx, testBoard, "0x09")
	s.Require().NoError(err)
	s.pwm, _, err = s.store.UpsertActuator(s.ctx, entities.Actuator{
		Board: testBoard, Name: "Pwm (0x0B)", Type: "pwm", Address: "0x0B", Status: entities.ActuatorOff, MaxValue: 255,
	})
	s.Require().NoError(err)
	s.publisher = new(mocks.PublisherMock)
	s.dispatcher = NewDispatcher(s.store, s.publisher, logging.Discard(), clock, nil)
}

func (s *dispatcherSuite) actuator(id int64) entities.Actuator {
	actuator, err := s.store.GetActuator(s.ctx, id)
	s.Require().NoError(err)
	return actuator
}

func (s *dispatcherSuite) TestSetPublishesOnceAndRuns() {
	expected := network.ActuatorCommand{
		ActuatorID:   s.pwm.ID,
		Name:         "Pwm (0x0B)",
		Address:      "0x0B",
		ActuatorType: "pwm",
		Command:      entities.CommandSet,
		Value:        floatPtr(150),
	}
	s.publisher.On("PublishActuatorCommand", testBoard, expected).Return(nil).Once()

	response, err := s.dispatcher.Dispatch(s.ctx, s.pwm.ID, entities.CommandRequest{Command: entities.CommandSet, Value: floatPtr(150)})

	s.Require().NoError(err)
	s.publisher.AssertNumberOfCalls(s.T(), "PublishActuatorCommand", 1)
	s.Equal("success", response.Status)
	s.Equal("xiot/PI-001/actuators", response.Topic)
	s.Equal(150.0, *response.Value)

	actuator := s.actuator(s.pwm.ID)
	s.Equal(150.0, *actuator.CurrentValue)
	s.Equal(entities.ActuatorRunning, actuator.Status)
	s.Equal("set:150", actuator.LastCommand)
	s.Equal(testNow, *actuator.LastCommandTime)
	s.Equal(int64(0), *actuator.LastCommandLatency)

	events, err := s.store.ListEvents(s.ctx)
	s.NoError(err)
	s.Require().Len(events, 1)
	s.Equal("actuator:Pwm (0x0B)", events[0].Source)
	s.Equal(entities.SeverityInfo, events[0].Severity)
}

func (s *dispatcherSuite) TestSetZeroTurnsOff() {
	s.publisher.On("PublishActuatorCommand", testBoard, mock.Anything).Return(nil)
	_, err := s.dispatcher.Dispatch(s.ctx, s.pwm.ID, entities.CommandRequest{Command: entities.CommandSet, Value: floatPtr(0)})
	s.Require().NoError(err)
	s.Equal(entities.ActuatorOff, s.actuator(s.pwm.ID).Status)
}

func (s *dispatcherSuite) TestOnOffAndToggle() {
	s.publisher.On("PublishActuatorCommand", testBoard, mock.Anything).Return(nil)
	steps := []struct {
		command string
		status  string
	}{
		{entities.CommandOn, entities.ActuatorOn},
		{entities.CommandToggle, entities.ActuatorOff},
		{entities.CommandToggle, entities.ActuatorOn},
		{entities.CommandOff, entities.ActuatorOff},
	}
	for _, step := range steps {
		_, err := s.dispatcher.Dispatch(s.ctx, s.led.ID, entities.CommandRequest{Command: step.command})
		s.Require().NoError(err)
		actuator := s.actuator(s.led.ID)
		s.Equal(step.status, actuator.Status, step.command)
		s.Equal(step.command, actuator.LastCommand)
	}
}

func (s *dispatcherSuite) TestInvalidCommandsLeaveStateUnchanged() {
	requests := []entities.CommandRequest{
		{},
		{Command: "blink"},
		{Command: entities.CommandSet},
	}
	for _, request := range requests {
		_, err := s.dispatcher.Dispatch(s.ctx, s.led.ID, request)
		var validation *entities.ValidationError
		s.ErrorAs(err, &validation, request.Command)
	}
	s.publisher.AssertNotCalled(s.T(), "PublishActuatorCommand", mock.Anything, mock.Anything)
	s.Equal(s.led, s.actuator(s.led.ID))
}

func (s *dispatcherSuite) TestInvalidCommandListsValidCommands() {
	_, err := s.dispatcher.Dispatch(s.ctx, s.led.ID, entities.CommandRequest{Command: "blink"})
	s.EqualError(err, "invalid command 'blink' (valid commands: on, off, toggle, set)")
}

func (s *dispatcherSuite) TestPublishFailureLeavesStateUnchanged() {
	s.publisher.On("PublishActuatorCommand", testBoard, mock.Anything).Return(errors.New("publish xiot/PI-001/actuators: broker disconnected"))
	_, err := s.dispatcher.Dispatch(s.ctx, s.led.ID, entities.CommandRequest{Command: entities.CommandOn})
	s.ErrorIs(err, ErrCommandNotSent)
	s.ErrorContains(err, "broker disconnected")
	s.Equal(s.led, s.actuator(s.led.ID))
	events, err := s.store.ListEvents(s.ctx)
	s.NoError(err)
	s.Empty(events)
}

func (s *dispatcherSuite) TestUnknownActuatorIsNotFound() {
	_, err := s.dispatcher.Dispatch(s.ctx, 404, entities.CommandRequest{Command: entities.CommandOn})
	s.ErrorIs(err, store.ErrNotFound)
}

func TestDispatcherSuite(t *testing.T) {
	suite.Run(t, new(dispatcherSuite))
}
