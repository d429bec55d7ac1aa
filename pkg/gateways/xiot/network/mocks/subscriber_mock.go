package mocks

import (
	"github.com/janael-pinheiro/xiot-cloud-sdk-golang/pkg/gateways/xiot/network"
	"github.com/stretchr/testify/mock"
)

type SubscriberMock struct {
	mock.Mock
}

func (s *SubscriberMock) SubscribeToSensorData(handler network.Handler) error {
	args := s.Called(handler)
	return args.Error(0)
}

func (s *SubscriberMock) SubscribeToBoardStatus(handler network.Handler) error {
	args := s.Called(handler)
	return args.Error(0)
}

func (s *SubscriberMock) SubscribeToDiscoveryTrigger(board string, handler network.Handler) error {
	args := s.Called(board, handler)
	return args.Error(0)
}
