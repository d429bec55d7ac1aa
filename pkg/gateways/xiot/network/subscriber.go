package network

// Subscriber binds handlers to the board-originated topics.
type Subscriber interface {
	SubscribeToSensorData(handler Handler) error
	SubscribeToBoardStatus(handler Handler) error
	SubscribeToDiscoveryTrigger(board string, handler Handler) error
}

type msgSubscriber struct {
	messaging Messaging
}

func NewMsgSubscriber(messaging Messaging) Subscriber {
	return &msgSubscriber{messaging}
}

func (ms *msgSubscriber) SubscribeToSensorData(handler Handler) error {
	return ms.messaging.OnMessage(TopicSensors, handler)
}

func (ms *msgSubscriber) SubscribeToBoardStatus(handler Handler) error {
	return ms.messaging.OnMessage(TopicStatus, handler)
}

func (ms *msgSubscriber) SubscribeToDiscoveryTrigger(board string, handler Handler) error {
	return ms.messaging.OnMessage(DiscoverTopic(board), handler)
}
