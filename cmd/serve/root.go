package serve

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	cmdUtil "github.com/ValentinKolb/csIPC/cmd/util"
	"github.com/ValentinKolb/csIPC/rpc/common"
	"github.com/ValentinKolb/csIPC/rpc/proto"
	"github.com/ValentinKolb/csIPC/rpc/server"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var log = logger.GetLogger("ipc/cmd")

const drainTimeout = time.Second

// Version is announced to peers in UpdateSystemInfo notifies, set by the root command
var Version = "dev"

var (
	serveCmdConfigs []common.ServerConfig
	ServeCmd        = &cobra.Command{
		Use:     "serve",
		Short:   "Start the csIPC pipe servers",
		Long:    `Start one pipe server per configured role. The configuration can be set via command line flags or environment variables. The format of the environment variables is CSIPC_<flag> (e.g. CSIPC_IO_LOOPS=4)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(cmdUtil.InitConfig)

	// add flags
	key := "endpoints"
	ServeCmd.PersistentFlags().String(key, "main=main,service=service", cmdUtil.WrapString("Comma-separated list of server roles to start. Format: NAME=ENDPOINT where ENDPOINT is a socket path, a windows pipe path or a plain name mapped to the platform's default pipe"))

	key = "io-loops"
	ServeCmd.PersistentFlags().Int(key, common.DefaultIOLoops, cmdUtil.WrapString("Number of I/O loops per server role. With 0 every connection is served by the control loop"))

	key = "loop-selection"
	ServeCmd.PersistentFlags().String(key, string(common.LoopSelectionRoundRobin), cmdUtil.WrapString("How new connections are assigned to I/O loops (round-robin, hash)"))

	key = "read-buffer"
	ServeCmd.PersistentFlags().Int(key, common.DefaultReadBufferSize/1024, cmdUtil.WrapString("The number of KB requested per read"))

	key = "max-content-length"
	ServeCmd.PersistentFlags().Uint32(key, common.DefaultMaxContentLength, cmdUtil.WrapString("The largest accepted payload of a single frame in bytes. Peers sending larger frames are disconnected"))

	key = "accept-rate"
	ServeCmd.PersistentFlags().Float64(key, 0, cmdUtil.WrapString("Maximum number of new connections per second and role. Peers above the rate are disconnected right away. 0 disables the limit"))

	key = "dispatch-mode"
	ServeCmd.PersistentFlags().String(key, string(common.DispatchInline), cmdUtil.WrapString("Where handlers run (inline, pool). Inline keeps the order of messages per connection"))

	key = "dispatch-workers"
	ServeCmd.PersistentFlags().Int(key, 16, cmdUtil.WrapString("(pool dispatch mode) Number of handler workers per server role"))

	key = "relay-notify"
	ServeCmd.PersistentFlags().Bool(key, true, cmdUtil.WrapString("Forward notify messages of one peer to every other peer of all roles"))

	key = "metrics-endpoint"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Address of the HTTP metrics endpoint (e.g. localhost:9090). Empty disables it"))

	key = "log-level"
	ServeCmd.PersistentFlags().String(key, "info", cmdUtil.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to one server configuration per role
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := cmdUtil.BindCommandFlags(cmd); err != nil {
		return err
	}

	endpoints, err := common.ParseEndpoints(viper.GetString("endpoints"))
	if err != nil {
		return err
	}

	serveCmdConfigs = serveCmdConfigs[:0]
	for _, name := range common.SortedNames(endpoints) {
		config := common.ServerConfig{
			Name:             name,
			Endpoint:         cmdUtil.ResolveEndpoint(endpoints[name]),
			IOLoops:          viper.GetInt("io-loops"),
			LoopSelection:    common.LoopSelection(viper.GetString("loop-selection")),
			ReadBufferSize:   viper.GetInt("read-buffer") * 1024,
			MaxContentLength: viper.GetUint32("max-content-length"),
			AcceptRate:       viper.GetFloat64("accept-rate"),
			DispatchMode:     common.DispatchMode(viper.GetString("dispatch-mode")),
			DispatchWorkers:  viper.GetInt("dispatch-workers"),
			RelayNotify:      viper.GetBool("relay-notify"),
			LogLevel:         viper.GetString("log-level"),
		}
		config.ApplyDefaults()
		if err := config.Validate(); err != nil {
			return err
		}
		serveCmdConfigs = append(serveCmdConfigs, config)
	}

	return cmdUtil.InitLogging()
}

// run starts the servers and blocks until the process is interrupted
func run(_ *cobra.Command, _ []string) error {
	set := metrics.NewSet()
	hub := NewHub(Version)

	servers, err := startServers(hub, set, serveCmdConfigs)
	if err != nil {
		return err
	}

	var metricsSrv *metricsServer
	if addr := viper.GetString("metrics-endpoint"); addr != "" {
		if metricsSrv, err = newMetricsServer(addr, set); err != nil {
			stopServers(hub, servers)
			return err
		}
		metricsSrv.Start()
	}

	// wait for a termination signal
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigs
	log.Infof("received %s, shutting down", sig)

	stopServers(hub, servers)
	if metricsSrv != nil {
		return metricsSrv.Stop()
	}
	return nil
}

// startServers starts one server per configuration. On failure the servers
// started so far are stopped again.
func startServers(hub *Hub, set *metrics.Set, configs []common.ServerConfig) ([]*server.Server, error) {
	servers := make([]*server.Server, 0, len(configs))
	for _, config := range configs {
		fmt.Print(config.String())

		s, err := server.NewServer(config, hub.Options(config, common.NewMetrics(set, config.Name)))
		if err != nil {
			stopServers(hub, servers)
			return nil, err
		}
		if err := s.Start(); err != nil {
			stopServers(hub, servers)
			return nil, fmt.Errorf("starting server %s: %w", config.Name, err)
		}
		hub.Attach(s)
		servers = append(servers, s)
	}
	return servers, nil
}

// stopServers announces the shutdown to all peers, gives them drainTimeout
// to receive it and stops every server
func stopServers(hub *Hub, servers []*server.Server) {
	hub.Shutdown(proto.ShutdownNormal)
	for _, s := range servers {
		s.ShutdownAllConnection()
	}

	deadline := time.Now().Add(drainTimeout)
	for _, s := range servers {
		for s.Len() > 0 && time.Now().Before(deadline) {
			time.Sleep(10 * time.Millisecond)
		}
		s.Stop()
	}
}
