// Command quorumdbd runs one node of a replicated state machine.
// Subcommands mirror the two ways a Member can join a cluster (seed a
// new one, or join an existing one over UDP) plus a demo mode that
// runs a small cluster in a single process against the in-memory
// Network, for trying the protocol out without standing up real
// sockets.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/spf13/cobra"

	"github.com/quorumdb/server"
	"github.com/quorumdb/server/member"
	"github.com/quorumdb/server/network"
	"github.com/quorumdb/server/paxos"
	"github.com/quorumdb/server/role"
	"github.com/quorumdb/server/stats"
)

func init() {
	network.RegisterMessageType(paxos.Join{})
	network.RegisterMessageType(paxos.Welcome{})
	network.RegisterMessageType(paxos.Prepare{})
	network.RegisterMessageType(paxos.Promise{})
	network.RegisterMessageType(paxos.Accept{})
	network.RegisterMessageType(paxos.Accepted{})
	network.RegisterMessageType(paxos.Decision{})
	network.RegisterMessageType(paxos.Invoke{})
	network.RegisterMessageType(paxos.Invoked{})
	network.RegisterMessageType(paxos.Propose{})
	network.RegisterMessageType(paxos.Adopted{})
	network.RegisterMessageType(paxos.Accepting{})
	network.RegisterMessageType(paxos.Active{})
	network.RegisterMessageType(paxos.Preempted{})
	network.RegisterMessageType(paxos.Decided{})
}

// addInt is the reference state machine used by the demo command: the
// state is a running total, each invocation adds its input and returns
// the new total.
func addInt(state interface{}, input interface{}) (interface{}, interface{}) {
	total, _ := state.(int)
	n, _ := input.(int)
	total += n
	return total, total
}

func main() {
	var logLevel string
	var prometheusPort int

	root := &cobra.Command{
		Use:   "quorumdbd",
		Short: "run a node of a Multi-Paxos replicated state machine",
		Version: server.ServerVersion,
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "debug, info, warn, or error")
	root.PersistentFlags().IntVar(&prometheusPort, "prometheus-port", server.DefaultPrometheusPort, "port to serve /metrics on, 0 to disable")

	newLogger := func() log.Logger {
		base := log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
		base = log.With(base, "ts", log.DefaultTimestampUTC)
		return level.NewFilter(base, parseLevel(logLevel))
	}

	startMetrics := func(logger log.Logger) stats.Recorder {
		if prometheusPort == 0 {
			return stats.Noop{}
		}
		recorder := stats.NewPrometheus("quorumdb")
		addr := fmt.Sprintf(":%d", prometheusPort)
		go func() {
			if err := stats.ServeHTTP(addr); err != nil {
				level.Warn(logger).Log("msg", "metrics server stopped", "error", err)
			}
		}()
		return recorder
	}

	var listen string
	var peersFlag string
	var joinRetransmit, acceptRetransmit, prepareRetransmit, invokeRetransmit, leaderTimeout time.Duration

	addRetransmitFlags := func(cmd *cobra.Command) {
		cmd.Flags().StringVar(&listen, "listen", "0.0.0.0:9001", "UDP address to listen on")
		cmd.Flags().StringVar(&peersFlag, "peers", "", "comma-separated host:port list of every node, including this one")
		cmd.Flags().DurationVar(&joinRetransmit, "join-retransmit", server.JoinRetransmit, "")
		cmd.Flags().DurationVar(&acceptRetransmit, "accept-retransmit", server.AcceptRetransmit, "")
		cmd.Flags().DurationVar(&prepareRetransmit, "prepare-retransmit", server.PrepareRetransmit, "")
		cmd.Flags().DurationVar(&invokeRetransmit, "invoke-retransmit", server.InvokeRetransmit, "")
		cmd.Flags().DurationVar(&leaderTimeout, "leader-timeout", server.LeaderTimeout, "")
	}

	buildConfig := func(recorder stats.Recorder) *paxos.Config {
		peers := make([]role.Address, 0)
		for _, p := range strings.Split(peersFlag, ",") {
			p = strings.TrimSpace(p)
			if p != "" {
				peers = append(peers, role.Address(p))
			}
		}
		return &paxos.Config{
			Peers:             peers,
			Execute:           addInt,
			JoinRetransmit:    joinRetransmit,
			PrepareRetransmit: prepareRetransmit,
			AcceptRetransmit:  acceptRetransmit,
			InvokeRetransmit:  invokeRetransmit,
			LeaderTimeout:     leaderTimeout,
			Stats:             recorder,
		}
	}

	seedCmd := &cobra.Command{
		Use:   "seed",
		Short: "form a new cluster on this node",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			recorder := startMetrics(logger)
			transport, err := network.NewUDPTransport(role.Address(listen), listen,
				network.WithUDPLogger(logger), network.WithUDPRecorder(recorder))
			if err != nil {
				return err
			}
			defer transport.Close()

			cfg := buildConfig(recorder)
			paxos.NewSeed(transport, cfg, 0)
			go transport.RunTimers()
			level.Info(logger).Log("msg", "seed starting", "address", listen, "peers", peersFlag)
			return serveUntilSignal(transport)
		},
	}
	addRetransmitFlags(seedCmd)

	joinCmd := &cobra.Command{
		Use:   "join",
		Short: "join an existing cluster",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			recorder := startMetrics(logger)
			transport, err := network.NewUDPTransport(role.Address(listen), listen,
				network.WithUDPLogger(logger), network.WithUDPRecorder(recorder))
			if err != nil {
				return err
			}
			defer transport.Close()

			cfg := buildConfig(recorder)
			paxos.NewBootstrap(transport, cfg)
			go transport.RunTimers()
			level.Info(logger).Log("msg", "join starting", "address", listen, "peers", peersFlag)
			return serveUntilSignal(transport)
		},
	}
	addRetransmitFlags(joinCmd)

	var demoNodes int
	var demoRequests int
	demoCmd := &cobra.Command{
		Use:   "demo",
		Short: "run a small in-process cluster and submit a handful of requests",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			recorder := startMetrics(logger)
			return runDemo(logger, recorder, demoNodes, demoRequests)
		},
	}
	demoCmd.Flags().IntVar(&demoNodes, "nodes", 5, "cluster size")
	demoCmd.Flags().IntVar(&demoRequests, "requests", 10, "number of sequential add requests to submit")

	root.AddCommand(seedCmd, joinCmd, demoCmd)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveUntilSignal(transport *network.UDPTransport) error {
	ctx, cancel := context.WithCancel(context.Background())
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		cancel()
	}()
	return transport.Serve(ctx)
}

func runDemo(logger log.Logger, recorder stats.Recorder, numNodes, numRequests int) error {
	net := network.New(network.WithLogger(logger), network.WithRecorder(recorder))

	peers := make([]role.Address, numNodes)
	for i := range peers {
		peers[i] = role.Address(fmt.Sprintf("node-%d", i+1))
	}
	cfg := &paxos.Config{
		Peers:             peers,
		Execute:           addInt,
		JoinRetransmit:    server.JoinRetransmit,
		PrepareRetransmit: server.PrepareRetransmit,
		AcceptRetransmit:  server.AcceptRetransmit,
		InvokeRetransmit:  server.InvokeRetransmit,
		LeaderTimeout:     server.LeaderTimeout,
		Stats:             recorder,
	}

	members := make([]*member.Member, numNodes)
	members[0] = member.NewSeed(net, peers[0], cfg, 0)
	for i := 1; i < numNodes; i++ {
		members[i] = member.New(net, peers[i], cfg)
	}
	for _, m := range members {
		m.Start()
	}

	level.Info(logger).Log("msg", "demo cluster started", "nodes", numNodes)
	for i := 0; i < numRequests; i++ {
		m := members[i%numNodes]
		output, err := m.Invoke(i + 1)
		if err != nil {
			return err
		}
		level.Info(logger).Log("msg", "request completed", "member", m.Address(), "input", i+1, "output", output)
	}
	return nil
}

func parseLevel(s string) level.Option {
	switch strings.ToLower(s) {
	case "debug":
		return level.AllowDebug()
	case "warn":
		return level.AllowWarn()
	case "error":
		return level.AllowError()
	default:
		return level.AllowInfo()
	}
}
