package entities

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	KindSensorUpdate          string = "sensor_update"
	KindBoardStatus           string = "baseboard_status"
	KindConnectionEstablished string = "connection_established"
	KindPing                  string = "ping"
	KindPong                  string = "pong"
	KindSubscribe             string = "subscribe"
)

// ObserverMessage is the envelope exchanged with live observers.
type ObserverMessage struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Message   string          `json:"message,omitempty"`
	Timestamp string          `json:"timestamp,omitempty"`
}

const (
	CommandOn     string = "on"
	CommandOff    string = "off"
	CommandToggle string = "toggle"
	CommandSet    string = "set"
)

// ValidCommands lists the accepted actuator commands in display order.
var ValidCommands = []string{CommandOn, CommandOff, CommandToggle, CommandSet}

type CommandRequest struct {
	Command string   `json:"command"`
	Value   *float64 `json:"value,omitempty"`
}

type CommandResponse struct {
	Status   string   `json:"status"`
	Actuator int64    `json:"actuator"`
	Command  string   `json:"command"`
	Value    *float64 `json:"value"`
	Topic    string   `json:"topic"`
}

// ValidationError rejects a request before any state changes.
type ValidationError struct {
	Reason        string
	ValidCommands []string
}

func (e *ValidationError) Error() string {
	if len(e.ValidCommands) == 0 {
		return e.Reason
	}
	return fmt.Sprintf("%s (valid commands: %s)", e.Reason, strings.Join(e.ValidCommands, ", "))
}
