package entities

import "time"

const (
	BoardOnline  string = "online"
	BoardOffline string = "offline"
	BoardWarning string = "warning"
	BoardError   string = "error"
)

const (
	SensorActive   string = "active"
	SensorInactive string = "inactive"
	SensorWarning  string = "warning"
	SensorCritical string = "critical"
	SensorOffline  string = "offline"
)

const (
	ActuatorOn           string = "on"
	ActuatorOff          string = "off"
	ActuatorRunning      string = "running"
	ActuatorStopped      string = "stopped"
	ActuatorIdle         string = "idle"
	ActuatorHolding      string = "holding"
	ActuatorLocked       string = "locked"
	ActuatorDisconnected string = "disconnected"
	ActuatorError        string = "error"
)

const (
	SeverityInfo     string = "info"
	SeverityWarning  string = "warning"
	SeverityError    string = "error"
	SeverityCritical string = "critical"
)

// Board is a controller unit hosting one bus segment. Identifier never changes
// once the board exists.
type Board struct {
	Identifier  string     `yaml:"identifier" json:"identifier"`
	Name        string     `yaml:"name" json:"name"`
	Description string     `yaml:"description" json:"description"`
	Status      string     `yaml:"status" json:"status"`
	IPAddress   string     `yaml:"ipAddress" json:"ip_address,omitempty"`
	Topic       string     `yaml:"topic" json:"mqtt_topic,omitempty"`
	LastSeen    *time.Time `yaml:"-" json:"last_seen,omitempty"`
	Uptime      string     `yaml:"uptime" json:"uptime,omitempty"`
	CreatedAt   time.Time  `yaml:"-" json:"created_at"`
}

type Sensor struct {
	ID           int64      `yaml:"-" json:"id"`
	Board        string     `yaml:"-" json:"baseboard"`
	Name         string     `yaml:"name" json:"name"`
	Type         string     `yaml:"type" json:"sensor_type"`
	Address      string     `yaml:"i2cAddress" json:"i2c_address"`
	Unit         string     `yaml:"unit" json:"unit"`
	CurrentValue *float64   `yaml:"-" json:"current_value"`
	Status       string     `yaml:"status" json:"status"`
	MinThreshold *float64   `yaml:"minThreshold" json:"min_threshold"`
	MaxThreshold *float64   `yaml:"maxThreshold" json:"max_threshold"`
	LastReading  *time.Time `yaml:"-" json:"last_reading"`
	CreatedAt    time.Time  `yaml:"-" json:"created_at"`
}

type Actuator struct {
	ID                 int64      `yaml:"-" json:"id"`
	Board              string     `yaml:"-" json:"baseboard"`
	Name               string     `yaml:"name" json:"name"`
	Type               string     `yaml:"type" json:"actuator_type"`
	Address            string     `yaml:"i2cAddress" json:"i2c_address"`
	Status             string     `yaml:"status" json:"status"`
	CurrentValue       *float64   `yaml:"-" json:"current_value"`
	MinValue           float64    `yaml:"minValue" json:"min_value"`
	MaxValue           float64    `yaml:"maxValue" json:"max_value"`
	Unit               string     `yaml:"unit" json:"unit"`
	LastCommand        string     `yaml:"-" json:"last_command"`
	LastCommandTime    *time.Time `yaml:"-" json:"last_command_time"`
	LastCommandLatency *int64     `yaml:"-" json:"last_command_latency"`
	CreatedAt          time.Time  `yaml:"-" json:"created_at"`
}

// ActuatorState is the part of an Actuator rewritten after a dispatched command.
type ActuatorState struct {
	Status             string
	CurrentValue       *float64
	LastCommand        string
	LastCommandTime    time.Time
	LastCommandLatency int64
}

// Reading is append-only.
type Reading struct {
	ID        int64     `json:"id"`
	SensorID  int64     `json:"sensor"`
	Value     float64   `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

type Event struct {
	ID           int64     `json:"id"`
	Source       string    `json:"source"`
	Type         string    `json:"event_type"`
	Message      string    `json:"message"`
	Severity     string    `json:"severity"`
	Timestamp    time.Time `json:"timestamp"`
	Acknowledged bool      `json:"acknowledged"`
}

// SeedBoard is the YAML shape used to pre-provision boards and their devices.
type SeedBoard struct {
	Board     `yaml:",inline"`
	Sensors   []Sensor   `yaml:"sensors"`
	Actuators []Actuator `yaml:"actuators"`
}

type SeedData struct {
	Boards []SeedBoard `yaml:"boards"`
}
