package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	agentconfig "github.com/core-tools/hsu-nginx-agent/pkg/config"
	"github.com/core-tools/hsu-nginx-agent/pkg/eventd"
	"github.com/core-tools/hsu-nginx-agent/pkg/logging"
	"github.com/core-tools/hsu-nginx-agent/pkg/nginx"
	"github.com/core-tools/hsu-nginx-agent/pkg/probe"
	"github.com/core-tools/hsu-nginx-agent/pkg/registry"
	"github.com/core-tools/hsu-nginx-agent/pkg/scheduler"

	flags "github.com/jessevdk/go-flags"
)

type flagOptions struct {
	Config    string `long:"config" description:"path to agent configuration file"`
	LocalID   string `long:"local-id" description:"instance identifier assigned by the manager"`
	RootUUID  string `long:"root-uuid" description:"parent grouping entity uuid"`
	Pid       int    `long:"pid" description:"nginx master process pid"`
	Version   string `long:"nginx-version" description:"discovered nginx version"`
	Workers   int    `long:"workers" description:"nginx worker process count"`
	Prefix    string `long:"prefix" description:"nginx install prefix"`
	BinPath   string `long:"bin-path" description:"path to the nginx binary"`
	ConfPath  string `long:"conf-path" description:"path to nginx.conf"`
	Container bool   `long:"container" description:"report the instance as the container variant"`
}

func main() {
	var opts flagOptions
	var argv []string = os.Args[1:]
	var parser = flags.NewParser(&opts, flags.HelpFlag)
	var err error
	_, err = parser.ParseArgs(argv)
	if err != nil {
		fmt.Printf("Command line flags parsing failed: %v", err)
		os.Exit(1)
	}

	config := agentconfig.Default()
	if opts.Config != "" {
		config, err = agentconfig.LoadFromFile(opts.Config)
		if err != nil {
			fmt.Printf("Failed to load configuration: %v\n", err)
			os.Exit(1)
		}
	}

	logger, err := logging.NewZapLogger(logging.ZapConfig{Level: config.Agent.LogLevel})
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}

	logger.Infof("opts: %+v", opts)

	if opts.LocalID == "" || opts.Pid == 0 || opts.BinPath == "" || opts.ConfPath == "" {
		fmt.Println("--local-id, --pid, --bin-path and --conf-path are required")
		os.Exit(1)
	}

	var events eventd.Sink
	if config.EventSink != nil {
		amqpSink, err := eventd.NewAMQPSink(eventd.AMQPSinkOptions{
			URL:        config.EventSink.URL,
			Exchange:   config.EventSink.Exchange,
			RoutingKey: config.EventSink.RoutingKey,
		}, logger)
		if err != nil {
			logger.Errorf("Failed to create AMQP event sink: %v", err)
			os.Exit(1)
		}
		defer amqpSink.Close()
		events = amqpSink
	} else {
		events = eventd.NewLogSink(logger)
	}

	data := nginx.DiscoveryData{
		LocalID:  opts.LocalID,
		RootUUID: opts.RootUUID,
		Pid:      opts.Pid,
		Version:  opts.Version,
		Workers:  opts.Workers,
		Prefix:   opts.Prefix,
		BinPath:  opts.BinPath,
		ConfPath: opts.ConfPath,
	}

	deps := nginx.Deps{
		AgentConfig: config,
		Probe:       probe.NewClient(logger),
		Events:      events,
		Logger:      logger,
	}

	var instance *nginx.Instance
	if opts.Container {
		instance, err = nginx.NewContainerInstance(data, deps)
	} else {
		instance, err = nginx.NewInstance(data, deps)
	}
	if err != nil {
		logger.Errorf("Failed to construct nginx instance: %v", err)
		os.Exit(1)
	}

	definition := instance.Definition()
	logger.Infof("Instance active, type: %s, local_id: %s", definition.Type, definition.LocalID)

	if config.Registry != nil {
		reg, err := registry.Open(config.Registry.Path, logger)
		if err != nil {
			logger.Errorf("Failed to open instance registry: %v", err)
			os.Exit(1)
		}
		defer reg.Close()

		known, err := reg.Known(definition)
		if err != nil {
			logger.Errorf("Failed to query instance registry: %v", err)
			os.Exit(1)
		}
		if known {
			logger.Infof("Instance recognized from a previous run, local_id: %s", definition.LocalID)
		}
		if err := reg.Record(definition); err != nil {
			logger.Errorf("Failed to record instance definition: %v", err)
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sched := scheduler.NewScheduler(logger)
	if err := sched.Start(ctx, instance.Collectors()); err != nil {
		logger.Errorf("Failed to start scheduler: %v", err)
		os.Exit(1)
	}

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)
	<-signalChan

	logger.Infof("Shutting down...")
	sched.Stop()
}
