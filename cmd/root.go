package cmd

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/csIPC/cmd/client"
	"github.com/ValentinKolb/csIPC/cmd/serve"
	"github.com/spf13/cobra"
)

const (
	Version = "0.3.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "csipc",
		Short: "local inter-process communication core",
		Long: fmt.Sprintf(`csIPC (v%s)

The local IPC core of a clipboard and file sharing service. It connects the
GUI and the background service over named pipes (unix domain sockets on
unix) using length-prefixed binary frames.`, Version),
		SilenceUsage: true,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of csIPC",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("csIPC v%s\n", Version)
		},
	}
)

func init() {
	serve.Version = Version

	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(client.ClientCommands)
	RootCmd.AddCommand(versionCmd)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
