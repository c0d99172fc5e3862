package cmd

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fleetsim/gridnet/logger"
	"github.com/fleetsim/gridnet/mapper"
	"github.com/fleetsim/gridnet/medium"
	"github.com/fleetsim/gridnet/metrics"
	"github.com/fleetsim/gridnet/node"
	"github.com/fleetsim/gridnet/radio"
	"github.com/fleetsim/gridnet/sched"
)

var (
	vehicleName     string
	radioBind       string
	radioPeers      []string
	statusInterval  time.Duration
	staleMultiplier int
	metricsAddr     string
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start one vehicle on a zmq radio bridge",
	Long: `Start a single vehicle whose radio is bridged over ZeroMQ PUB/SUB.
The vehicle binds its antenna locally and tunes its receiver to each
relay endpoint given with --peer.

Examples:
  # First vehicle
  gridnet start --name=Outpost --bind=tcp://127.0.0.1:7001

  # Second vehicle, in range of the first
  gridnet start --name=Miner-7 --bind=tcp://127.0.0.1:7002 --peer=tcp://127.0.0.1:7001`,
	RunE: runStart,
}

func init() {
	rootCmd.AddCommand(startCmd)

	startCmd.Flags().StringVarP(&vehicleName, "name", "n", "", "Vehicle name (required)")
	startCmd.Flags().StringVarP(&radioBind, "bind", "b", "tcp://127.0.0.1:7001", "Endpoint to bind the antenna on")
	startCmd.Flags().StringSliceVarP(&radioPeers, "peer", "p", []string{}, "Relay endpoints to tune the receiver to")
	startCmd.Flags().DurationVar(&statusInterval, "status-interval", node.DefaultStatusInterval, "Interval between status announces")
	startCmd.Flags().IntVar(&staleMultiplier, "stale-multiplier", node.DefaultStaleMultiplier, "Status intervals of silence before a peer is offline")
	startCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Address to serve Prometheus /metrics on (empty disables)")
	startCmd.MarkFlagRequired("name")
}

func runStart(cmd *cobra.Command, args []string) error {
	logger.Init(true)

	config := node.DefaultConfig(vehicleName)
	config.RadioBind = radioBind
	config.RadioPeers = radioPeers
	config.StatusInterval = statusInterval
	config.StaleMultiplier = staleMultiplier
	config.MetricsAddr = metricsAddr

	bus := medium.NewZmq(config.RadioBind, config.RadioPeers)
	s := sched.New(config.TickInterval)

	blocks := radio.NewBlockRegistry()
	blocks.Add("Command Router", radio.RouterFunc(func(data string) {
		logger.Printf("[%s] command received: %s", config.Name, data)
	}))

	// A bridged vehicle is stationary; range covers the relay set.
	source := mapper.StatusSourceFunc(func() (mapper.Vector3, mapper.Vector3, float64) {
		return mapper.Vector3{}, mapper.Vector3{}, 500
	})

	n, err := node.New(config, bus, s, blocks, source)
	if err != nil {
		return err
	}

	var metricsServer *metrics.Server
	if config.MetricsAddr != "" {
		metricsServer = metrics.NewServer(config.MetricsAddr)
		metricsServer.StartAsync()
		logger.Infof("metrics on http://%s/metrics", config.MetricsAddr)
	}

	s.Start()
	s.Do(n.Start)
	logger.Infof("%s on %s (peers: %v)", config.Name, config.RadioBind, config.RadioPeers)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	n.Stop()
	s.Stop()
	bus.Close()
	if metricsServer != nil {
		metricsServer.Stop()
	}
	return nil
}
