// Command domain-server wires the Instance Supervisor, Tasks
// Supervisor, and REST/WebSocket surface into one process, exactly as
// the teacher's cmd/direwolf wires channels, modems and the AGW/KISS
// network servers into one process.
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
	"github.com/doismellburning/audiocloud-domain/internal/instancesup"
	"github.com/doismellburning/audiocloud-domain/internal/kv"
	"github.com/doismellburning/audiocloud-domain/internal/pubsub"
	"github.com/doismellburning/audiocloud-domain/internal/restapi"
	"github.com/doismellburning/audiocloud-domain/internal/tasksup"
)

func main() {
	configFile := pflag.StringP("config-file", "c", "domain-server.yaml", "Configuration file name.")
	help := pflag.BoolP("help", "h", false, "Display help text.")

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "%s - Audio Cloud Domain Server\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS]\n\n", os.Args[0])
		pflag.PrintDefaults()
	}

	pflag.Parse()

	if *help {
		pflag.Usage()
		os.Exit(0)
	}

	logger := log.NewWithOptions(os.Stderr, log.Options{Prefix: "domain-server"})

	cfg, err := config.LoadDomainConfig(*configFile)
	if err != nil {
		logger.Fatal("could not load configuration", "error", err)
	}

	bus, err := newBus(*cfg)
	if err != nil {
		logger.Fatal("could not start pub/sub bus", "error", err)
	}
	defer bus.Close()

	store := kv.NewMemoryStore()

	instances := instancesup.New(instancesup.PubSubDriverFactory{Bus: bus}, logger.With("component", "instancesup"))

	engines := tasksup.NewEngines(cfg.Tasks.EngineIDs)
	tasks := tasksup.New(engines, tasksup.PubSubDispatcherFactory{Bus: bus}, cfg.Tasks.MaxPacketAge, cfg.Tasks.MaxPacketFrames, logger)

	mode := restapi.AuthProduction
	if cfg.Development {
		mode = restapi.AuthDevelopment
	}

	server := restapi.New(cfg.SecureKey, mode, nil, logger)
	api := restapi.NewAPI(instances, tasks, store)
	api.RegisterRoutes(server)
	server.RegisterWebSocket(bus)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go instances.Run(ctx)
	go tasks.Run(ctx)

	logger.Info("listening", "addr", cfg.ListenAddr, "development", cfg.Development)

	if err := server.ListenAndServe(ctx, cfg.ListenAddr); err != nil {
		logger.Fatal("server exited", "error", err)
	}
}

func newBus(cfg config.DomainConfig) (pubsub.Bus, error) {
	switch cfg.PubSub.Backend {
	case "nats":
		return pubsub.NewNATSBus(cfg.PubSub.NATSURL)
	default:
		return pubsub.NewMemoryBus(), nil
	}
}
