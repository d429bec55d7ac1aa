package entities

const (
	DeviceClassSensor   string = "sensor"
	DeviceClassActuator string = "actuator"
	DeviceClassUnknown  string = "unknown"

	DeviceTypeCustom string = "custom"
)

const (
	CapabilityRead    string = "read"
	CapabilityWrite   string = "write"
	CapabilityPWM     string = "pwm"
	CapabilityAnalog  string = "analog"
	CapabilityDigital string = "digital"
)

// RawIdentity keeps the identify bytes after the magic for diagnostics.
type RawIdentity struct {
	Class   byte `json:"class" yaml:"class"`
	Subtype byte `json:"subtype" yaml:"subtype"`
	Caps    byte `json:"caps" yaml:"caps"`
}

// DeviceDescriptor is the decoded result of a successful identify handshake.
type DeviceDescriptor struct {
	Address      string      `json:"i2c_address" yaml:"i2cAddress"`
	DeviceClass  string      `json:"device_class" yaml:"deviceClass"`
	DeviceType   string      `json:"device_type" yaml:"deviceType"`
	Capabilities []string    `json:"capabilities" yaml:"capabilities"`
	Raw          RawIdentity `json:"raw" yaml:"raw"`
}

type RegistrationRequest struct {
	BoardID      string   `json:"baseboard_id"`
	Address      string   `json:"i2c_address"`
	DeviceClass  string   `json:"device_class"`
	DeviceType   string   `json:"device_type"`
	Capabilities []string `json:"capabilities"`
	DiscoveredAt string   `json:"discovered_at"`
}

type RegistrationResponse struct {
	Created     bool   `json:"created"`
	DeviceClass string `json:"device_class"`
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Type        string `json:"type"`
	Address     string `json:"i2c_address"`
	Board       string `json:"baseboard"`
}

const (
	OutcomeCreated string = "created"
	OutcomeUpdated string = "updated"
	OutcomeFailed  string = "failed"
)

// RegistrationOutcome reports what happened to one descriptor of a batch.
type RegistrationOutcome struct {
	Address  string                `json:"i2c_address"`
	Result   string                `json:"result"`
	Reason   string                `json:"reason,omitempty"`
	Response *RegistrationResponse `json:"response,omitempty"`
}

// DiscoverySummary groups the outcomes of one scan by result.
type DiscoverySummary struct {
	Devices    []DeviceDescriptor `json:"devices" yaml:"devices"`
	Registered []string           `json:"registered" yaml:"registered"`
	Updated    []string           `json:"updated" yaml:"updated"`
	Failed     []FailedAddress    `json:"failed" yaml:"failed"`
}

type FailedAddress struct {
	Address string `json:"address" yaml:"address"`
	Error   string `json:"error" yaml:"error"`
}

// Summarize folds per-descriptor outcomes into a DiscoverySummary.
func Summarize(devices []DeviceDescriptor, outcomes []RegistrationOutcome) DiscoverySummary {
	summary := DiscoverySummary{
		Devices:    devices,
		Registered: []string{},
		Updated:    []string{},
		Failed:     []FailedAddress{},
	}
	for _, outcome := range outcomes {
		switch outcome.Result {
		case OutcomeCreated:
			summary.Registered = append(summary.Registered, outcome.Address)
		case OutcomeUpdated:
			summary.Updated = append(summary.Updated, outcome.Address)
		default:
			summary.Failed = append(summary.Failed, FailedAddress{Address: outcome.Address, Error: outcome.Reason})
		}
	}
	return summary
}
