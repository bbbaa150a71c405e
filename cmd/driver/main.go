// Command driver wires one internal/driverrt.Runtime to one fixed
// instance's hardware Backend, exactly as the teacher's cmd/direwolf
// wires one modem to one serial/audio channel - but split into its own
// small binary rather than folded into the domain server, since a
// driver runs wherever its hardware is physically attached while the
// domain server runs wherever is convenient.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"

	"github.com/doismellburning/audiocloud-domain/internal/config"
	"github.com/doismellburning/audiocloud-domain/internal/driverrt"
	"github.com/doismellburning/audiocloud-domain/internal/pubsub"
)

func main() {
	configFile := pflag.StringP("config-file", "c", "driver.yaml", "Configuration file name.")
	help := pflag.BoolP("help", "h", false, "Display help text.")

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "%s - Audio Cloud Instance Driver\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS]\n\n", os.Args[0])
		pflag.PrintDefaults()
	}

	pflag.Parse()

	if *help {
		pflag.Usage()
		os.Exit(0)
	}

	logger := log.NewWithOptions(os.Stderr, log.Options{Prefix: "driver"})

	cfg, err := config.LoadDriverConfig(*configFile)
	if err != nil {
		logger.Fatal("could not load configuration", "error", err)
	}

	bus, err := newBus(cfg.PubSub)
	if err != nil {
		logger.Fatal("could not start pub/sub bus", "error", err)
	}
	defer bus.Close()

	factory, err := newBackendFactory(cfg)
	if err != nil {
		logger.Fatal("could not configure backend", "error", err)
	}

	sink := pubSubEventSink{bus: bus}
	runtime := driverrt.NewRuntime(factory, sink, logger)
	driver := runtime.NewDriver(cfg.Backend, cfg.InstanceID)

	if err := subscribeCommands(bus, cfg.InstanceID, driver, logger); err != nil {
		logger.Fatal("could not subscribe to commands", "error", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger.Info("driving instance", "instance", cfg.InstanceID, "backend", cfg.Backend)

	runtime.Run(ctx)
}

func newBus(cfg config.PubSubConfig) (pubsub.Bus, error) {
	switch cfg.Backend {
	case "nats":
		return pubsub.NewNATSBus(cfg.NATSURL)
	default:
		return pubsub.NewMemoryBus(), nil
	}
}
