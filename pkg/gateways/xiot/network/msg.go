package network

type SensorRecord struct {
	Address string   `json:"i2c_address"`
	Value   *float64 `json:"value"`
	Status  string   `json:"status,omitempty"`
}

// SensorBatch is published by a board on xiot/<board>/sensors.
type SensorBatch struct {
	BoardID   string         `json:"baseboard_id"`
	Sensors   []SensorRecord `json:"sensors"`
	Timestamp string         `json:"timestamp,omitempty"`
}

// StatusMessage is published by a board on xiot/<board>/status.
type StatusMessage struct {
	BoardID   string `json:"baseboard_id"`
	Status    string `json:"status"`
	Timestamp string `json:"timestamp,omitempty"`
}

// DiscoveryTrigger asks a board agent to rescan its bus.
type DiscoveryTrigger struct {
	BoardID     string `json:"baseboard_id"`
	RequestedAt string `json:"requested_at"`
}

// ActuatorCommand is the wire payload sent on xiot/<board>/actuators.
type ActuatorCommand struct {
	ActuatorID   int64    `json:"actuator_id"`
	Name         string   `json:"name"`
	Address      string   `json:"i2c_address"`
	ActuatorType string   `json:"actuator_type"`
	Command      string   `json:"command"`
	Value        *float64 `json:"value"`
	Timestamp    string   `json:"timestamp"`
}

// DisplayCommand drives the board display on lcd/display.
type DisplayCommand struct {
	Text  string `json:"text"`
	Color string `json:"color,omitempty"`
	Alarm bool   `json:"alarm"`
}
