package mocks

import (
	"github.com/janael-pinheiro/xiot-cloud-sdk-golang/pkg/gateways/xiot/network"
	"github.com/stretchr/testify/mock"
)

type PublisherMock struct {
	mock.Mock
}

func (p *PublisherMock) PublishActuatorCommand(board string, command network.ActuatorCommand) error {
	args := p.Called(board, command)
	return args.Error(0)
}

func (p *PublisherMock) PublishDiscoveryTrigger(board string) error {
	args := p.Called(board)
	return args.Error(0)
}

func (p *PublisherMock) PublishBoardStatus(board, status string) error {
	args := p.Called(board, status)
	return args.Error(0)
}

func (p *PublisherMock) PublishDisplay(command network.DisplayCommand) error {
	args := p.Called(command)
	return args.Error(0)
}
