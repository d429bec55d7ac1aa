package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/janael-pinheiro/xiot-cloud-sdk-golang/pkg/agent"
	"github.com/janael-pinheiro/xiot-cloud-sdk-golang/pkg/discovery"
	"github.com/janael-pinheiro/xiot-cloud-sdk-golang/pkg/entities"
	"github.com/janael-pinheiro/xiot-cloud-sdk-golang/pkg/logging"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

type discoverFlags struct {
	daemon     bool
	interval   time.Duration
	noRegister bool
	apiURL     string
	board      string
	bus        string
	output     string
}

func (f *discoverFlags) apply(conf *entities.GatewayConfig) {
	if f.apiURL != "" {
		conf.Discovery.APIURL = f.apiURL
	}
	if f.board != "" {
		conf.Discovery.BoardID = f.board
	}
	if f.bus != "" {
		conf.Discovery.Bus = f.bus
	}
	if f.noRegister {
		conf.Discovery.Register = false
	}
}

func newDiscoverCommand(flags *globalFlags) *cobra.Command {
	local := &discoverFlags{}
	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Scan the bus for XIOT devices and register them with the backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, logger, err := flags.load()
			if err != nil {
				return errors.Wrap(err, "load configuration")
			}
			local.apply(&conf)
			interval := time.Duration(0)
			if local.daemon {
				interval = local.interval
			}
			scanner := newScanner(conf, logger)
			defer scanner.Close()
			a := agent.New(agent.Config{
				Board:    conf.Discovery.BoardID,
				Interval: interval,
				Output:   local.output,
			}, scanner, newRegistrationClient(conf, logger), nil, logger.Get("Agent"), nil)

			if local.daemon {
				return a.Run(cmd.Context())
			}
			summary, err := a.RunOnce(cmd.Context())
			if err != nil {
				return err
			}
			encoder := json.NewEncoder(os.Stdout)
			encoder.SetIndent("", "  ")
			return encoder.Encode(summary)
		},
	}
	cmd.Flags().BoolVar(&local.daemon, "daemon", false, "keep scanning every --interval")
	cmd.Flags().DurationVar(&local.interval, "interval", 30*time.Second, "scan interval in daemon mode")
	cmd.Flags().BoolVar(&local.noRegister, "no-register", false, "scan only, skip registration")
	cmd.Flags().StringVar(&local.apiURL, "api-url", "", "backend API base URL")
	cmd.Flags().StringVar(&local.board, "baseboard", "", "baseboard identifier")
	cmd.Flags().StringVar(&local.bus, "bus", "", "I2C bus name or number")
	cmd.Flags().StringVarP(&local.output, "output", "o", "", "write a YAML summary of each scan to this file")
	return cmd
}

func newScanner(conf entities.GatewayConfig, logger *logging.Logrus) *discovery.Scanner {
	bus := conf.Discovery.Bus
	return discovery.NewScanner(bus, discovery.I2COpener(bus), conf.Discovery.SettleDelay, nil, logger.Get("Discovery"), nil)
}

// newRegistrationClient returns nil when registration is disabled, which the
// agent treats as scan-only.
func newRegistrationClient(conf entities.GatewayConfig, logger *logging.Logrus) agent.DeviceRegistrar {
	if !conf.Discovery.Register {
		return nil
	}
	return agent.NewRegistrationClient(conf.Discovery.APIURL, conf.Discovery.APIToken, logger.Get("Registrar"), nil)
}
