package network

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestSubscribeToSensorData(t *testing.T) {
	messagingMock := new(MessagingMock)
	messagingMock.On("OnMessage", TopicSensors, mock.AnythingOfType("network.Handler")).Return(nil)
	subscriber := NewMsgSubscriber(messagingMock)
	err := subscriber.SubscribeToSensorData(func(InMsg) {})
	assert.NoError(t, err)
	messagingMock.AssertExpectations(t)
}

func TestSubscribeToBoardStatus(t *testing.T) {
	messagingMock := new(MessagingMock)
	messagingMock.On("OnMessage", TopicStatus, mock.AnythingOfType("network.Handler")).Return(nil)
	subscriber := NewMsgSubscriber(messagingMock)
	err := subscriber.SubscribeToBoardStatus(func(InMsg) {})
	assert.NoError(t, err)
	messagingMock.AssertExpectations(t)
}

func TestSubscribeToDiscoveryTriggerWhenRegistrationFailsReturnError(t *testing.T) {
	messagingMock := new(MessagingMock)
	messagingMock.On("OnMessage", "xiot/PI-002/discover", mock.Anything).Return(errors.New("nil handler"))
	subscriber := NewMsgSubscriber(messagingMock)
	err := subscriber.SubscribeToDiscoveryTrigger("PI-002", func(InMsg) {})
	assert.Error(t, err)
	messagingMock.AssertExpectations(t)
}
