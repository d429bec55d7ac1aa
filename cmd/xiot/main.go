package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/janael-pinheiro/xiot-cloud-sdk-golang/pkg/entities"
	"github.com/janael-pinheiro/xiot-cloud-sdk-golang/pkg/gateways/xiot/network"
	"github.com/janael-pinheiro/xiot-cloud-sdk-golang/pkg/logging"
	"github.com/janael-pinheiro/xiot-cloud-sdk-golang/pkg/utils"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type globalFlags struct {
	configPath string
	logLevel   string
}

func main() {
	flags := &globalFlags{}
	root := &cobra.Command{
		Use:           "xiot",
		Short:         "XIOT telemetry backend and board discovery agent",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", os.Getenv("XIOT_CONFIG"), "path to the YAML configuration file")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "overrides log.level")

	root.AddCommand(newServeCommand(flags), newDiscoverCommand(flags), newAgentCommand(flags))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := root.ExecuteContext(ctx); err != nil {
		logrus.Error(err)
		stop()
		os.Exit(1)
	}
}

func (f *globalFlags) load() (entities.GatewayConfig, *logging.Logrus, error) {
	conf, err := utils.LoadGatewayConfig(f.configPath)
	if err != nil {
		return conf, nil, err
	}
	if f.logLevel != "" {
		conf.Log.Level = f.logLevel
	}
	return conf, logging.NewLogrus(conf.Log.Level, os.Stdout), nil
}

func newMessaging(conf entities.BrokerConfig, log *logrus.Entry) network.Messaging {
	if conf.Kind == "amqp" {
		return network.NewAMQP(conf, log)
	}
	return network.NewMQTT(conf, log)
}
