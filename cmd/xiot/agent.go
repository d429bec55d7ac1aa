package main

import (
	"fmt"

	"github.com/janael-pinheiro/xiot-cloud-sdk-golang/pkg/agent"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newAgentCommand(flags *globalFlags) *cobra.Command {
	local := &discoverFlags{}
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Run on a baseboard: rescan the bus whenever the backend asks, and on an interval",
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, logger, err := flags.load()
			if err != nil {
				return errors.Wrap(err, "load configuration")
			}
			local.apply(&conf)
			if cmd.Flags().Changed("interval") {
				conf.Discovery.Interval = local.interval
			}
			conf.Broker.ClientPrefix = fmt.Sprintf("xiot-agent-%s", conf.Discovery.BoardID)

			scanner := newScanner(conf, logger)
			defer scanner.Close()
			a := agent.New(agent.Config{
				Board:    conf.Discovery.BoardID,
				Interval: conf.Discovery.Interval,
				Output:   local.output,
			}, scanner, newRegistrationClient(conf, logger),
				newMessaging(conf.Broker, logger.Get("Broker")), logger.Get("Agent"), nil)
			return a.Run(cmd.Context())
		},
	}
	cmd.Flags().DurationVar(&local.interval, "interval", 0, "periodic scan interval, 0 scans only on trigger")
	cmd.Flags().BoolVar(&local.noRegister, "no-register", false, "scan only, skip registration")
	cmd.Flags().StringVar(&local.apiURL, "api-url", "", "backend API base URL")
	cmd.Flags().StringVar(&local.board, "baseboard", "", "baseboard identifier")
	cmd.Flags().StringVar(&local.bus, "bus", "", "I2C bus name or number")
	cmd.Flags().StringVarP(&local.output, "output", "o", "", "write a YAML summary of each scan to this file")
	return cmd
}
