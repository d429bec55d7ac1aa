package network

import (
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

var publishedAt = time.Date(2026, 1, 2, 7, 45, 4, 0, time.UTC)

func createFakeCommand() ActuatorCommand {
	value := 128.0
	return ActuatorCommand{
		ActuatorID:   3,
		Name:         "Led (0x09)",
		Address:      "0x09",
		ActuatorType: "led",
		Command:      "set",
		Value:        &value,
	}
}

func TestPublishActuatorCommandStampsTimestamp(t *testing.T) {
	messagingMock := new(MessagingMock)
	command := createFakeCommand()
	expected := command
	expected.Timestamp = "2026-01-02T07:45:04Z"
	messagingMock.On("Publish", "xiot/PI-001/actuators", expected).Return(nil)

	publisher := NewMsgPublisher(messagingMock, clockwork.NewFakeClockAt(publishedAt))
	err := publisher.PublishActuatorCommand("PI-001", command)
	assert.NoError(t, err)
	messagingMock.AssertExpectations(t)
}

func TestPublishActuatorCommandWhenBrokerFailsReturnError(t *testing.T) {
	messagingMock := new(MessagingMock)
	messagingMock.On("Publish", "xiot/PI-001/actuators", mock.Anything).Return(errors.New("not connected"))

	publisher := NewMsgPublisher(messagingMock, clockwork.NewFakeClockAt(publishedAt))
	err := publisher.PublishActuatorCommand("PI-001", createFakeCommand())
	assert.Error(t, err)
	messagingMock.AssertExpectations(t)
}

func TestPublishDiscoveryTrigger(t *testing.T) {
	messagingMock := new(MessagingMock)
	message := DiscoveryTrigger{BoardID: "PI-001", RequestedAt: "2026-01-02T07:45:04Z"}
	messagingMock.On("Publish", "xiot/PI-001/discover", message).Return(nil)

	publisher := NewMsgPublisher(messagingMock, clockwork.NewFakeClockAt(publishedAt))
	assert.NoError(t, publisher.PublishDiscoveryTrigger("PI-001"))
	messagingMock.AssertExpectations(t)
}

func TestPublishBoardStatus(t *testing.T) {
	messagingMock := new(MessagingMock)
	message := StatusMessage{BoardID: "PI-001", Status: "online", Timestamp: "2026-01-02T07:45:04Z"}
	messagingMock.On("Publish", "xiot/PI-001/status", message).Return(nil)

	publisher := NewMsgPublisher(messagingMock, clockwork.NewFakeClockAt(publishedAt))
	assert.NoError(t, publisher.PublishBoardStatus("PI-001", "online"))
	messagingMock.AssertExpectations(t)
}

func TestPublishDisplayUsesDisplayTopic(t *testing.T) {
	messagingMock := new(MessagingMock)
	command := DisplayCommand{Text: "Temperature high", Color: "RED", Alarm: true}
	messagingMock.On("Publish", "lcd/display", command).Return(nil)

	publisher := NewMsgPublisher(messagingMock, clockwork.NewFakeClockAt(publishedAt))
	assert.NoError(t, publisher.PublishDisplay(command))
	messagingMock.AssertExpectations(t)
}
