package client

import (
	"context"
	"time"

	"github.com/ValentinKolb/csIPC/cmd/util"
	"github.com/ValentinKolb/csIPC/rpc/client"
	"github.com/ValentinKolb/csIPC/rpc/common"
	"github.com/ValentinKolb/csIPC/rpc/connection"
	"github.com/ValentinKolb/csIPC/rpc/dispatch"
	"github.com/ValentinKolb/csIPC/rpc/proto"
	"github.com/spf13/cobra"
)

var (
	ipcClient *client.Client
	config    *common.ClientConfig

	// pushed receives every message the service sends without being asked
	pushed = make(chan proto.Message, 256)

	// ClientCommands represents the client command group
	ClientCommands = &cobra.Command{
		Use:                "client",
		Short:              "Talk to a running csIPC service",
		PersistentPreRunE:  setupClient,
		PersistentPostRunE: closeClient,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add connection flags to the client command
	util.SetupClientFlags(ClientCommands)
	ClientCommands.PersistentFlags().String("log-level", "warn", util.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))

	// Add subcommands
	ClientCommands.AddCommand(pingCmd)
	ClientCommands.AddCommand(clientsCmd)
	ClientCommands.AddCommand(announceCmd)
	ClientCommands.AddCommand(renameCmd)
	ClientCommands.AddCommand(notifyCmd)
	ClientCommands.AddCommand(sendFileCmd)
	ClientCommands.AddCommand(watchCmd)
}

// setupClient connects to the configured endpoint
func setupClient(cmd *cobra.Command, _ []string) error {
	// Bind command flags to viper
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}
	if err := util.InitLogging(); err != nil {
		return err
	}

	config = util.GetClientConfig()

	router := dispatch.NewRouter()
	router.Fallback(func(_ *connection.Connection, msg proto.Message) {
		select {
		case pushed <- msg:
		default:
		}
	})

	var err error
	ipcClient, err = client.Dial(cmd.Context(), *config, client.Options{Router: router})
	return err
}

// closeClient closes the connection after the command ran
func closeClient(_ *cobra.Command, _ []string) error {
	if ipcClient == nil {
		return nil
	}
	return ipcClient.Close()
}

// callContext bounds a call by the configured timeout
func callContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), time.Duration(config.TimeoutSecond)*time.Second)
}

func now() uint64 {
	return uint64(time.Now().UnixMilli())
}
