package network

import "github.com/stretchr/testify/mock"

type MessagingMock struct {
	mock.Mock
}

func (m *MessagingMock) Start() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MessagingMock) Stop() {
	m.Called()
}

func (m *MessagingMock) State() ConnectionState {
	args := m.Called()
	return args.Get(0).(ConnectionState)
}

func (m *MessagingMock) OnMessage(pattern string, handler Handler) error {
	args := m.Called(pattern, handler)
	return args.Error(0)
}

func (m *MessagingMock) Publish(topic string, data interface{}) error {
	args := m.Called(topic, data)
	return args.Error(0)
}
