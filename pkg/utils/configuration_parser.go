package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/janael-pinheiro/xiot-cloud-sdk-golang/pkg/entities"
	"gopkg.in/yaml.v2"
)

const (
	defaultBrokerURL             = "tcp://localhost:1883"
	defaultClientPrefix          = "xiot-backend"
	defaultInitialConnectTimeout = 30 * time.Second
	defaultMinReconnectDelay     = 1 * time.Second
	defaultMaxReconnectDelay     = 30 * time.Second
	defaultHTTPAddr              = ":8000"
	defaultBoardID               = "PI-001"
	defaultBus                   = "1"
	defaultDiscoveryInterval     = 30 * time.Second
	defaultSettleDelay           = 10 * time.Millisecond
	defaultAPIURL                = "http://localhost:8000/api"
	defaultFilterCapacity        = 1000000
	defaultDuplicateProbability  = 0.01
	defaultResetFilterUsage      = 75
)

type config interface {
	entities.GatewayConfig | entities.SeedData
}

func readTextFile(filepathName string) ([]byte, error) {
	fileContent, err := os.ReadFile(filepath.Clean(filepathName))
	return fileContent, err
}

func ConfigurationParser[T config](filepathName string, configEntity T) (T, error) {
	fileContent, err := readTextFile(filepath.Clean(filepathName))
	if err != nil {
		return configEntity, err
	}

	err = yaml.Unmarshal(fileContent, &configEntity)
	return configEntity, err
}

// LoadGatewayConfig parses the file at path, applies environment overrides
// and defaults, then validates the result. An empty path yields the defaults.
func LoadGatewayConfig(path string) (entities.GatewayConfig, error) {
	conf := entities.GatewayConfig{}
	conf.Discovery.Register = true
	if path != "" {
		var err error
		conf, err = ConfigurationParser(path, conf)
		if err != nil {
			return conf, err
		}
	}
	applyEnvironment(&conf)
	ApplyDefaults(&conf)
	return conf, Validate(conf)
}

func applyEnvironment(conf *entities.GatewayConfig) {
	conf.Broker.URL = GetValueFromEnvironmentVariable("XIOT_BROKER_URL", conf.Broker.URL)
	conf.Broker.Username = GetValueFromEnvironmentVariable("XIOT_BROKER_USERNAME", conf.Broker.Username)
	conf.Broker.Password = GetValueFromEnvironmentVariable("XIOT_BROKER_PASSWORD", conf.Broker.Password)
	conf.Store.DSN = GetValueFromEnvironmentVariable("XIOT_STORE_DSN", conf.Store.DSN)
	conf.Discovery.BoardID = GetValueFromEnvironmentVariable("XIOT_BASEBOARD_ID", conf.Discovery.BoardID)
	conf.Discovery.APIURL = GetValueFromEnvironmentVariable("XIOT_API_URL", conf.Discovery.APIURL)
	conf.Discovery.APIToken = GetValueFromEnvironmentVariable("XIOT_API_TOKEN", conf.Discovery.APIToken)
	conf.Log.Level = GetValueFromEnvironmentVariable("XIOT_LOG_LEVEL", conf.Log.Level)
}

func ApplyDefaults(conf *entities.GatewayConfig) {
	if conf.Log.Level == "" {
		conf.Log.Level = "info"
	}
	if conf.Broker.Kind == "" {
		conf.Broker.Kind = "mqtt"
	}
	if conf.Broker.URL == "" {
		conf.Broker.URL = defaultBrokerURL
	}
	if conf.Broker.ClientPrefix == "" {
		conf.Broker.ClientPrefix = defaultClientPrefix
	}
	if conf.Broker.QoS == 0 {
		conf.Broker.QoS = 1
	}
	if conf.Broker.InitialConnectTimeout == 0 {
		conf.Broker.InitialConnectTimeout = defaultInitialConnectTimeout
	}
	if conf.Broker.MinReconnectDelay == 0 {
		conf.Broker.MinReconnectDelay = defaultMinReconnectDelay
	}
	if conf.Broker.MaxReconnectDelay == 0 {
		conf.Broker.MaxReconnectDelay = defaultMaxReconnectDelay
	}
	if conf.Store.Driver == "" {
		conf.Store.Driver = "memory"
	}
	if conf.Ingest.FilterCapacity == 0 {
		conf.Ingest.FilterCapacity = defaultFilterCapacity
	}
	if conf.Ingest.DuplicateProbability == 0 {
		conf.Ingest.DuplicateProbability = defaultDuplicateProbability
	}
	if conf.Ingest.ResetFilterUsage == 0 {
		conf.Ingest.ResetFilterUsage = defaultResetFilterUsage
	}
	if conf.HTTP.Addr == "" {
		conf.HTTP.Addr = defaultHTTPAddr
	}
	if conf.Discovery.Bus == "" {
		conf.Discovery.Bus = defaultBus
	}
	if conf.Discovery.BoardID == "" {
		conf.Discovery.BoardID = defaultBoardID
	}
	if conf.Discovery.Interval == 0 {
		conf.Discovery.Interval = defaultDiscoveryInterval
	}
	if conf.Discovery.SettleDelay == 0 {
		conf.Discovery.SettleDelay = defaultSettleDelay
	}
	if conf.Discovery.APIURL == "" {
		conf.Discovery.APIURL = defaultAPIURL
	}
}

func Validate(conf entities.GatewayConfig) error {
	switch conf.Broker.Kind {
	case "mqtt", "amqp":
	default:
		return fmt.Errorf("broker.kind must be mqtt or amqp, got %q", conf.Broker.Kind)
	}
	if conf.Broker.QoS > 2 {
		return fmt.Errorf("broker.qos must be 0, 1 or 2")
	}
	if conf.Broker.MinReconnectDelay > conf.Broker.MaxReconnectDelay {
		return fmt.Errorf("broker.minReconnectDelay exceeds broker.maxReconnectDelay")
	}
	switch conf.Store.Driver {
	case "memory":
	case "postgres":
		if conf.Store.DSN == "" {
			return fmt.Errorf("store.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("store.driver must be memory or postgres, got %q", conf.Store.Driver)
	}
	if conf.Ingest.ResetFilterUsage <= 0 || conf.Ingest.ResetFilterUsage > 100 {
		return fmt.Errorf("ingest.resetFilterUsage must be a percentage")
	}
	return nil
}

func GetValueFromEnvironmentVariable(variableName, defaultValue string) string {
	value := os.Getenv(variableName)
	if value != "" {
		return value
	}
	return defaultValue
}
