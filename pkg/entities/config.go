package entities

import "time"

type GatewayConfig struct {
	Log       LogConfig       `yaml:"log"`
	Broker    BrokerConfig    `yaml:"broker"`
	Store     StoreConfig     `yaml:"store"`
	Ingest    IngestConfig    `yaml:"ingest"`
	HTTP      HTTPConfig      `yaml:"http"`
	Discovery DiscoveryConfig `yaml:"discovery"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type BrokerConfig struct {
	Kind                  string        `yaml:"kind"`
	URL                   string        `yaml:"url"`
	Username              string        `yaml:"username"`
	Password              string        `yaml:"password"`
	ClientPrefix          string        `yaml:"clientPrefix"`
	QoS                   byte          `yaml:"qos"`
	InitialConnectTimeout time.Duration `yaml:"initialConnectTimeout"`
	MinReconnectDelay     time.Duration `yaml:"minReconnectDelay"`
	MaxReconnectDelay     time.Duration `yaml:"maxReconnectDelay"`
}

type StoreConfig struct {
	Driver   string `yaml:"driver"`
	DSN      string `yaml:"dsn"`
	SeedFile string `yaml:"seedFile"`
}

type IngestConfig struct {
	AutoProvisionBoards  bool    `yaml:"autoProvisionBoards"`
	DuplicateFilter      bool    `yaml:"duplicateFilter"`
	FilterCapacity       uint    `yaml:"filterCapacity"`
	DuplicateProbability float64 `yaml:"duplicateProbability"`
	ResetFilterUsage     float32 `yaml:"resetFilterUsage"`
}

type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

type DiscoveryConfig struct {
	Bus         string        `yaml:"bus"`
	BoardID     string        `yaml:"baseboardId"`
	Interval    time.Duration `yaml:"interval"`
	APIURL      string        `yaml:"apiUrl"`
	APIToken    string        `yaml:"apiToken"`
	Register    bool          `yaml:"register"`
	SettleDelay time.Duration `yaml:"settleDelay"`
}
