package network

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// Publisher sends the messages the backend and the board agent originate.
type Publisher interface {
	PublishActuatorCommand(board string, command ActuatorCommand) error
	PublishDiscoveryTrigger(board string) error
	PublishBoardStatus(board, status string) error
	PublishDisplay(command DisplayCommand) error
}

type msgPublisher struct {
	messaging Messaging
	clock     clockwork.Clock
}

func NewMsgPublisher(messaging Messaging, clock clockwork.Clock) Publisher {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &msgPublisher{messaging, clock}
}

func (mp *msgPublisher) PublishActuatorCommand(board string, command ActuatorCommand) error {
	if command.Timestamp == "" {
		command.Timestamp = mp.now()
	}
	return mp.messaging.Publish(ActuatorsTopic(board), command)
}

func (mp *msgPublisher) PublishDiscoveryTrigger(board string) error {
	message := DiscoveryTrigger{
		BoardID:     board,
		RequestedAt: mp.now(),
	}
	return mp.messaging.Publish(DiscoverTopic(board), message)
}

func (mp *msgPublisher) PublishBoardStatus(board, status string) error {
	message := StatusMessage{
		BoardID:   board,
		Status:    status,
		Timestamp: mp.now(),
	}
	return mp.messaging.Publish(StatusTopic(board), message)
}

func (mp *msgPublisher) PublishDisplay(command DisplayCommand) error {
	return mp.messaging.Publish(TopicLCD, command)
}

func (mp *msgPublisher) now() string {
	return mp.clock.Now().UTC().Format(time.RFC3339)
}
