package main

import (
	"context"
	"net/http"
	"time"

	"github.com/janael-pinheiro/xiot-cloud-sdk-golang/pkg/api"
	"github.com/janael-pinheiro/xiot-cloud-sdk-golang/pkg/broadcast"
	"github.com/janael-pinheiro/xiot-cloud-sdk-golang/pkg/entities"
	"github.com/janael-pinheiro/xiot-cloud-sdk-golang/pkg/gateways/xiot"
	"github.com/janael-pinheiro/xiot-cloud-sdk-golang/pkg/gateways/xiot/network"
	"github.com/janael-pinheiro/xiot-cloud-sdk-golang/pkg/metrics"
	"github.com/janael-pinheiro/xiot-cloud-sdk-golang/pkg/store"
	"github.com/janael-pinheiro/xiot-cloud-sdk-golang/pkg/utils"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 5 * time.Second

func newServeCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Ingest board telemetry, stream it to observers and serve the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, logger, err := flags.load()
			if err != nil {
				return errors.Wrap(err, "load configuration")
			}
			return serve(cmd.Context(), conf, logger.Get)
		},
	}
}

func serve(ctx context.Context, conf entities.GatewayConfig, logFor func(string) *logrus.Entry) error {
	log := logFor("API")
	st, err := openStore(ctx, conf.Store, log)
	if err != nil {
		return err
	}
	defer st.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	bridge := broadcast.NewBridge(broadcast.GroupSensorUpdates, logFor("Bridge"), broadcast.WithMetrics(m))
	defer bridge.Close()

	messaging := newMessaging(conf.Broker, logFor("Broker"))
	ingestion := xiot.NewIngestion(messaging, st, bridge, conf.Ingest, logFor("Ingestion"), xiot.WithIngestionMetrics(m))
	if err := ingestion.Start(); err != nil {
		return errors.Wrap(err, "start ingestion")
	}
	defer ingestion.Stop()

	publisher := network.NewMsgPublisher(messaging, nil)
	handler := api.NewServer(api.Dependencies{
		Dispatcher: xiot.NewDispatcher(st, publisher, logFor("Dispatcher"), nil, m),
		Registrar:  xiot.NewRegistrar(st, logFor("Registrar"), nil),
		Publisher:  publisher,
		Broker:     ingestion,
		Boards:     st,
		Stream:     broadcast.NewHandler(bridge, logFor("Bridge")),
		Observers:  bridge,
		Gatherer:   registry,
	}, log)

	server := &http.Server{Addr: conf.HTTP.Addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	serveErr := make(chan error, 1)
	go func() {
		log.Printf("listening on %s", conf.HTTP.Addr)
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		return errors.Wrap(err, "http server")
	case <-ctx.Done():
	}
	log.Println("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func openStore(ctx context.Context, conf entities.StoreConfig, log *logrus.Entry) (store.Store, error) {
	var st store.Store
	switch conf.Driver {
	case "postgres":
		pg, err := store.OpenPostgres(ctx, conf.DSN)
		if err != nil {
			return nil, errors.Wrap(err, "open postgres store")
		}
		st = pg
	default:
		st = store.NewMemory(nil)
	}
	if conf.SeedFile == "" {
		return st, nil
	}
	seed, err := utils.ConfigurationParser(conf.SeedFile, entities.SeedData{})
	if err != nil {
		st.Close()
		return nil, errors.Wrap(err, "read seed file")
	}
	if err := store.Seed(ctx, st, seed); err != nil {
		st.Close()
		return nil, errors.Wrap(err, "seed store")
	}
	log.Printf("seeded %d baseboards from %s", len(seed.Boards), conf.SeedFile)
	return st, nil
}
